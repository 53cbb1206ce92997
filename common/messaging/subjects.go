package messaging

import "strings"

// Subjects used by the console. Pattern: {app}.{resource}[.{tenant}].
const (
	SubjectLogs             = "console.logs"
	SubjectSavedViewChanged = "console.saved_views.changed"
)

// LogSubject returns the per-tenant log subject, e.g. console.logs.acme.
// An empty tenant yields the wildcard that matches every tenant.
func LogSubject(base, tenant string) string {
	if base == "" {
		base = SubjectLogs
	}
	tenant = strings.TrimSpace(tenant)
	if tenant == "" {
		return base + ".>"
	}
	return base + "." + sanitizeToken(tenant)
}

// sanitizeToken keeps a value usable as a single subject token.
func sanitizeToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}
