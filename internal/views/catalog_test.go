package views

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/console/pkg/listview"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"tenants", "clients", "api-keys", "policies", "login-templates",
		"members", "signup-flows", "onboarding-flows", "logs", "analytics",
	}, c.Names())

	for _, v := range c.All() {
		t.Run(v.Name, func(t *testing.T) {
			spec := v.Spec()
			require.NoError(t, spec.Validate())
			assert.NotEmpty(t, v.Columns)
			assert.NotEmpty(t, spec.SearchFields)
		})
	}
}

func TestCatalog_Get(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	members, err := c.Get("members")
	require.NoError(t, err)
	assert.Equal(t, ModeRemote, members.Mode)
	assert.Equal(t, "members", members.Resource)

	spec := members.Spec()
	role, ok := spec.Filter("role")
	require.True(t, ok)
	assert.Equal(t, listview.MultiJoin, role.Multi)
	assert.Equal(t, []int{10, 20, 50}, spec.PageSizes)

	logs, err := c.Get(" logs ")
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, logs.Mode)
	window, ok := logs.Spec().Filter("timeRange")
	require.True(t, ok)
	assert.Equal(t, listview.Window24h, window.Default)

	_, err = c.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownView)
}

func TestView_SpecIsFresh(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	v, err := c.Get("tenants")
	require.NoError(t, err)

	a := v.Spec()
	a.Filters[0].Label = "changed"
	b := v.Spec()
	assert.Equal(t, "Status", b.Filters[0].Label)
}

func TestWithPageSizes(t *testing.T) {
	c, err := Default(WithPageSizes([]int{25, 50}, 50))
	require.NoError(t, err)

	tenants, err := c.Get("tenants")
	require.NoError(t, err)
	spec := tenants.Spec()
	assert.Equal(t, []int{25, 50}, spec.PageSizes)
	assert.Equal(t, 50, spec.DefaultPageSize)

	// Views with their own allow-list keep it.
	members, err := c.Get("members")
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, 50}, members.Spec().PageSizes)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "empty",
			yaml:    "views: []",
			wantErr: "no views",
		},
		{
			name:    "malformed",
			yaml:    "views: [",
			wantErr: "parse catalog",
		},
		{
			name: "unknown mode",
			yaml: `
views:
  - name: a
    mode: streaming`,
			wantErr: "unknown mode",
		},
		{
			name: "duplicate view",
			yaml: `
views:
  - name: a
  - name: a`,
			wantErr: "declared twice",
		},
		{
			name: "unknown kind",
			yaml: `
views:
  - name: a
    filters:
      - {key: x, kind: fuzzy}`,
			wantErr: "unknown kind",
		},
		{
			name: "unknown multi policy",
			yaml: `
views:
  - name: a
    filters:
      - {key: x, kind: membership, multi: any}`,
			wantErr: "unknown multi policy",
		},
		{
			name: "bad default",
			yaml: `
views:
  - name: a
    filters:
      - {key: x, kind: window, default: fortnight}`,
			wantErr: "bad default",
		},
		{
			name: "reserved key",
			yaml: `
views:
  - name: a
    filters:
      - {key: page, kind: flag}`,
			wantErr: "reserved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(strings.NewReader(`
views:
  - name: widgets
    filters:
      - {key: size, kind: numeric}
`))
	require.NoError(t, err)

	v, err := c.Get("widgets")
	require.NoError(t, err)
	assert.Equal(t, ModeRemote, v.Mode)
	assert.Equal(t, "widgets", v.Resource)
	assert.Equal(t, "widgets", v.Title)

	f, ok := v.Spec().Filter("size")
	require.True(t, ok)
	assert.Equal(t, listview.KindRange, f.Kind)
	assert.Equal(t, listview.MultiOmit, f.Multi)
}
