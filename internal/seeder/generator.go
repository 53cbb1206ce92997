// Package seeder generates fake admin-console rows for demos and tests.
package seeder

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// ErrUnknownResource is returned for resources the generator has no shape for.
var ErrUnknownResource = errors.New("no generator for resource")

// Generator produces rows with the fields the built-in views declare. The
// same seed and clock produce the same rows.
type Generator struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
	now   time.Time
	spans map[string]int
}

// New creates a Generator. Timestamps are placed before now.
func New(seed int64, now time.Time) *Generator {
	return &Generator{
		faker: gofakeit.New(seed),
		now:   now.UTC().Truncate(time.Second),
		spans: map[string]int{},
	}
}

type rowFunc func(g *Generator, i int) map[string]any

var generators = map[string]rowFunc{
	"tenants":          (*Generator).tenant,
	"clients":          (*Generator).client,
	"api-keys":         (*Generator).apiKey,
	"policies":         (*Generator).policy,
	"login-templates":  (*Generator).loginTemplate,
	"members":          (*Generator).member,
	"signup-flows":     (*Generator).signupFlow,
	"onboarding-flows": (*Generator).onboardingFlow,
	"logs":             (*Generator).logRow,
	"analytics":        (*Generator).analytic,
}

// Supports reports whether resource has a generator.
func Supports(resource string) bool {
	_, ok := generators[resource]
	return ok
}

// Rows generates n rows of resource.
func (g *Generator) Rows(resource string, n int) ([]map[string]any, error) {
	gen, ok := generators[resource]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = gen(g, i)
	}
	return rows, nil
}

// LogAt generates one log row stamped at ts, for live streams.
func (g *Generator) LogAt(ts time.Time) map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	row := g.logRow(0)
	row["timestamp"] = ts.UTC()
	return row
}

func (g *Generator) id(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(g.faker.UUID(), "-", "")[:16]
}

// ago returns a time up to maxAge before now.
func (g *Generator) ago(maxAge time.Duration) time.Time {
	secs := g.faker.Number(0, int(maxAge/time.Second))
	return g.now.Add(-time.Duration(secs) * time.Second)
}

func (g *Generator) pick(values ...string) string {
	return g.faker.RandomString(values)
}

func (g *Generator) slug(name string) string {
	s := strings.ToLower(name)
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, s)
	return strings.Trim(s, "-")
}

func (g *Generator) tenant(int) map[string]any {
	name := g.faker.Company()
	return map[string]any{
		"id":           g.id("ten"),
		"name":         name,
		"slug":         g.slug(name),
		"plan":         g.pick("free", "pro", "enterprise"),
		"status":       g.pick("active", "active", "active", "suspended"),
		"region":       g.pick("us-east", "us-west", "eu-central", "ap-south"),
		"member_count": g.faker.Number(1, 500),
		"created_at":   g.ago(2 * 365 * 24 * time.Hour),
	}
}

func (g *Generator) client(int) map[string]any {
	kind := g.pick("spa", "web", "native", "m2m")
	grants := []string{"authorization_code", "refresh_token"}
	if kind == "m2m" {
		grants = []string{"client_credentials"}
	} else if g.faker.Bool() {
		grants = append(grants, "device_code")
	}
	return map[string]any{
		"id":          g.id("cli"),
		"name":        g.faker.AppName(),
		"client_id":   strings.ReplaceAll(g.faker.UUID(), "-", ""),
		"type":        kind,
		"status":      g.pick("active", "active", "disabled"),
		"grant_types": grants,
		"first_party": g.faker.Bool(),
		"created_at":  g.ago(365 * 24 * time.Hour),
	}
}

func (g *Generator) apiKey(int) map[string]any {
	created := g.ago(180 * 24 * time.Hour)
	scopes := []string{g.pick("read:members", "read:logs")}
	if g.faker.Bool() {
		scopes = append(scopes, g.pick("write:members", "admin"))
	}
	row := map[string]any{
		"id":         g.id("key"),
		"name":       g.faker.Word() + "-" + g.pick("ci", "backend", "sync", "export"),
		"prefix":     "sk_" + strings.ToLower(g.faker.LetterN(6)),
		"scopes":     scopes,
		"status":     g.pick("active", "active", "revoked", "expired"),
		"created_at": created,
		"expires_at": created.Add(365 * 24 * time.Hour),
	}
	if g.faker.Number(0, 4) > 0 {
		row["last_used_at"] = g.ago(30 * 24 * time.Hour)
	}
	return row
}

func (g *Generator) policy(int) map[string]any {
	resource := g.pick("members", "tenants", "api-keys", "logs", "billing")
	action := g.pick("read", "write", "delete")
	return map[string]any{
		"id":       g.id("pol"),
		"name":     fmt.Sprintf("%s-%s-%s", g.pick("allow", "deny"), action, resource),
		"effect":   g.pick("allow", "allow", "deny"),
		"resource": "console:" + resource,
		"actions":  []string{action},
		"priority": g.faker.Number(0, 100),
		"enabled":  g.faker.Number(0, 3) > 0,
	}
}

func (g *Generator) loginTemplate(int) map[string]any {
	return map[string]any{
		"id":         g.id("tpl"),
		"name":       g.pick("welcome", "magic-link", "password-reset", "otp", "invite") + "-" + g.faker.Word(),
		"subject":    g.faker.Sentence(4),
		"locale":     g.pick("en-US", "de-DE", "fr-FR", "ja-JP"),
		"channel":    g.pick("email", "email", "sms"),
		"published":  g.faker.Bool(),
		"updated_at": g.ago(90 * 24 * time.Hour),
	}
}

func (g *Generator) member(int) map[string]any {
	first, last := g.faker.FirstName(), g.faker.LastName()
	status := g.pick("active", "active", "active", "inactive", "invited")
	row := map[string]any{
		"id":          g.id("mem"),
		"name":        first + " " + last,
		"email":       strings.ToLower(first+"."+last) + "@" + g.faker.DomainName(),
		"role":        g.pick("owner", "admin", "member", "member", "member", "viewer"),
		"status":      status,
		"mfa_enabled": g.faker.Bool(),
		"login_count": 0,
		"created_at":  g.ago(365 * 24 * time.Hour),
	}
	if status != "invited" {
		row["login_count"] = g.faker.Number(1, 400)
		row["last_login_at"] = g.ago(60 * 24 * time.Hour)
	}
	return row
}

func (g *Generator) signupFlow(int) map[string]any {
	return map[string]any{
		"id":              g.id("suf"),
		"name":            g.faker.BuzzWord() + " signup",
		"status":          g.pick("draft", "active", "archived"),
		"steps":           g.faker.Number(1, 8),
		"conversion_rate": roundTo(g.faker.Float64Range(0.05, 0.95), 2),
		"created_at":      g.ago(365 * 24 * time.Hour),
	}
}

func (g *Generator) onboardingFlow(int) map[string]any {
	status := g.pick("draft", "active", "archived")
	return map[string]any{
		"id":              g.id("onb"),
		"name":            g.faker.BuzzWord() + " onboarding",
		"audience":        g.pick("admins", "members", "all"),
		"status":          status,
		"completion_rate": roundTo(g.faker.Float64Range(0.1, 1), 2),
		"active":          status == "active",
	}
}

var logMessages = map[string][]string{
	"auth":      {"login succeeded", "login failed: bad password", "mfa challenge issued", "token refreshed", "session revoked"},
	"admin-api": {"member invited", "role changed", "policy updated", "api key created", "api key revoked"},
	"signup":    {"signup started", "email verified", "signup completed", "signup abandoned"},
	"billing":   {"invoice generated", "payment failed", "plan upgraded", "plan downgraded"},
}

func (g *Generator) logRow(int) map[string]any {
	service := g.pick("auth", "admin-api", "signup", "billing")
	level := g.pick("debug", "info", "info", "info", "warn", "error")
	status := 200
	switch level {
	case "warn":
		status = g.faker.RandomInt([]int{400, 401, 403, 404, 429})
	case "error":
		status = g.faker.RandomInt([]int{500, 502, 503})
	}
	return map[string]any{
		"id":          g.id("log"),
		"timestamp":   g.ago(48 * time.Hour),
		"level":       level,
		"service":     service,
		"message":     g.pick(logMessages[service]...),
		"actor":       g.faker.Email(),
		"tenant_id":   g.slug(g.faker.Company()),
		"status_code": status,
		"ip":          g.faker.IPv4Address(),
	}
}

func (g *Generator) analytic(int) map[string]any {
	return map[string]any{
		"id":          g.id("ana"),
		"metric":      g.pick("logins", "signups", "active_users", "mfa_enrollments"),
		"tenant":      g.slug(g.faker.Company()),
		"period":      g.pick("day", "week", "month"),
		"value":       g.faker.Number(0, 10000),
		"recorded_at": g.ago(30 * 24 * time.Hour),
	}
}

func roundTo(f float64, places int) float64 {
	p := 1.0
	for range places {
		p *= 10
	}
	return float64(int(f*p+0.5)) / p
}
