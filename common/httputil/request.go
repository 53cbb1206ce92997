package httputil

import (
	"strconv"
	"strings"
)

// ParseIntParam parses an integer query parameter with a default value.
// Returns defaultVal if the parameter is empty or invalid.
//
// Example:
//
//	page := httputil.ParseIntParam(q.Get("page"), 1)
func ParseIntParam(s string, defaultVal int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return defaultVal
}

// Pagination is the 1-based page contract shared by list endpoints and
// their clients.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// TotalPages returns the page count for Total rows.
func (p Pagination) TotalPages() int {
	if p.Limit <= 0 || p.Total <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}
