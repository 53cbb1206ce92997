package httputil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		defaultVal int
		want       int
	}{
		{"empty uses default", "", 20, 20},
		{"valid", "3", 1, 3},
		{"padded", " 7 ", 1, 7},
		{"negative passes through", "-2", 1, -2},
		{"garbage uses default", "two", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseIntParam(tt.input, tt.defaultVal))
		})
	}
}

func TestPaginationTotalPages(t *testing.T) {
	tests := []struct {
		p     Pagination
		pages int
	}{
		{Pagination{Page: 1, Limit: 10, Total: 0}, 0},
		{Pagination{Page: 2, Limit: 10, Total: 10}, 1},
		{Pagination{Page: 3, Limit: 10, Total: 21}, 3},
		{Pagination{Page: 1, Limit: 0, Total: 5}, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.pages, tt.p.TotalPages(), "%+v", tt.p)
	}
}
