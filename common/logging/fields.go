package logging

import (
	"log/slog"
	"time"
)

// Field names shared by every console component.
const (
	FieldView      = "view"
	FieldRequestID = "request_id"
	FieldSeq       = "seq"
	FieldFilter    = "filter"
	FieldSearch    = "search"
	FieldQuery     = "query"
	FieldPage      = "page"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldTenant    = "tenant_id"
)

// View returns the list view name attribute.
func View(name string) slog.Attr {
	return slog.String(FieldView, name)
}

// RequestID returns the request ID attribute.
func RequestID(id string) slog.Attr {
	return slog.String(FieldRequestID, id)
}

// Seq returns the fetch sequence attribute.
func Seq(n uint64) slog.Attr {
	return slog.Uint64(FieldSeq, n)
}

// Filter returns the filter key attribute.
func Filter(key string) slog.Attr {
	return slog.String(FieldFilter, key)
}

// Search returns the committed search term attribute.
func Search(term string) slog.Attr {
	return slog.String(FieldSearch, term)
}

// Query returns the encoded query string attribute.
func Query(query string) slog.Attr {
	return slog.String(FieldQuery, query)
}

// Page returns the 1-based page attribute.
func Page(n int) slog.Attr {
	return slog.Int(FieldPage, n)
}

// Method returns the HTTP method attribute.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns the HTTP path attribute.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns the HTTP status attribute.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a duration in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns the error attribute. A nil error renders as "".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// Tenant returns the tenant scope attribute.
func Tenant(id string) slog.Attr {
	return slog.String(FieldTenant, id)
}
