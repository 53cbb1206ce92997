package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/console/internal/views"
	"github.com/telhawk-systems/console/pkg/listview"
)

func membersSpec(t *testing.T) *listview.Spec {
	t.Helper()
	catalog, err := views.Default()
	require.NoError(t, err)
	v, err := catalog.Get("members")
	require.NoError(t, err)
	return v.Spec()
}

func TestQueryFlagsBuild(t *testing.T) {
	tests := []struct {
		name  string
		flags queryFlags
		want  string
	}{
		{
			name: "empty",
			want: "",
		},
		{
			name:  "search and filters",
			flags: queryFlags{search: "ada", filters: []string{"status=active,invited", "logins=5.."}},
			want:  "logins=5..&search=ada&status=active%2Cinvited",
		},
		{
			name:  "sort defaults to ascending",
			flags: queryFlags{sort: "name"},
			want:  "sortBy=name&sortOrder=asc",
		},
		{
			name:  "sort descending with page and limit",
			flags: queryFlags{sort: "login_count:DESC", page: 3, limit: 20},
			want:  "limit=20&page=3&sortBy=login_count&sortOrder=desc",
		},
		{
			name:  "flags override the base query",
			flags: queryFlags{query: "?status=inactive&page=2", filters: []string{"status=active"}},
			want:  "page=2&status=active",
		},
		{
			name:  "empty filter value clears the base query",
			flags: queryFlags{query: "status=inactive&mfa=true", filters: []string{"status="}},
			want:  "mfa=true",
		},
		{
			name:  "default values are dropped",
			flags: queryFlags{filters: []string{"timeRange=all", "mfa=false"}, page: 1, limit: 10},
			want:  "",
		},
		{
			name:  "malformed base query values fall back",
			flags: queryFlags{query: "logins=abc&page=zero&sortBy=password"},
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.flags.build(membersSpec(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryFlagsBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		flags   queryFlags
		wantErr string
	}{
		{"missing equals", queryFlags{filters: []string{"status"}}, "expected key=value"},
		{"unknown filter", queryFlags{filters: []string{"plan=pro"}}, `no filter "plan"`},
		{"bad range", queryFlags{filters: []string{"logins=9..1"}}, "invalid range value"},
		{"bad flag", queryFlags{filters: []string{"mfa=maybe"}}, "want true or false"},
		{"bad window", queryFlags{filters: []string{"timeRange=2w"}}, "want 5m"},
		{"unsortable", queryFlags{sort: "password"}, `cannot sort by "password"`},
		{"bad order", queryFlags{sort: "name:up"}, "invalid sort order"},
		{"negative page", queryFlags{page: -1}, "--page must be positive"},
		{"limit outside allow-list", queryFlags{limit: 30}, "--limit 30 is not allowed"},
		{"bad base query", queryFlags{query: "a=%zz"}, "invalid --query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.flags.build(membersSpec(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseSortArg(t *testing.T) {
	spec := membersSpec(t)

	field, order, err := parseSortArg(spec, " email ")
	require.NoError(t, err)
	assert.Equal(t, "email", field)
	assert.Equal(t, "asc", order)

	_, _, err = parseSortArg(spec, "")
	assert.Error(t, err)
}

func TestHasSortAndWindowKey(t *testing.T) {
	assert.True(t, hasSort("?sortBy=timestamp&sortOrder=desc"))
	assert.False(t, hasSort("level=error"))

	key, ok := windowKey(membersSpec(t))
	assert.True(t, ok)
	assert.Equal(t, "timeRange", key)

	_, ok = windowKey(&listview.Spec{Name: "plain"})
	assert.False(t, ok)
}
