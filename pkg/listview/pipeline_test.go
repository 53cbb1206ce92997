package listview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(rows []Record) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		v, _ := r.Field("name")
		out = append(out, v.(string))
	}
	return out
}

func sampleMembers() []Record {
	return []Record{
		Fields{"name": "Alpha", "status": "active", "email": "alpha@acme.io", "login_count": 3, "mfa_enabled": true},
		Fields{"name": "Beta", "status": "inactive", "email": "beta@globex.io", "login_count": 0, "mfa_enabled": false},
		Fields{"name": "Alpha2", "status": "active", "email": "a2@globex.io", "login_count": 12, "mfa_enabled": false},
		Fields{"name": "Gamma", "status": "invited", "email": "gamma@acme.io", "login_count": 1, "mfa_enabled": true},
	}
}

func TestApplyMembershipAndSearch(t *testing.T) {
	spec := membersSpec(t)
	records := []Record{
		Fields{"name": "Alpha", "status": "active"},
		Fields{"name": "Beta", "status": "inactive"},
		Fields{"name": "Alpha2", "status": "active"},
	}
	state := DefaultState(spec)
	state.Search = "alpha"
	state.Filters["status"] = NewMembership("active")

	assert.Equal(t, []string{"Alpha", "Alpha2"}, names(Apply(records, state, spec, fixedNow)))
}

func TestApplyEmptyMembershipIsNoConstraint(t *testing.T) {
	spec := membersSpec(t)
	state := DefaultState(spec)
	state.Filters["status"] = Membership{}

	assert.Len(t, Apply(sampleMembers(), state, spec, fixedNow), 4)
}

func TestApplyTimeWindow(t *testing.T) {
	spec := membersSpec(t)
	records := []Record{
		Fields{"name": "recent", "timestamp": fixedNow.Add(-2 * time.Minute)},
		Fields{"name": "older", "timestamp": fixedNow.Add(-20 * time.Minute)},
		Fields{"name": "oldest", "timestamp": fixedNow.Add(-2 * time.Hour)},
	}
	state := DefaultState(spec)
	state.Filters["timeRange"] = Window15m

	assert.Equal(t, []string{"recent"}, names(Apply(records, state, spec, fixedNow)))
}

func TestApplyAndAcrossOrWithin(t *testing.T) {
	spec := membersSpec(t)
	filters := map[string]FilterValue{
		"status": NewMembership("active", "invited"),
		"email":  Substring("acme"),
		"mfa":    Flag(true),
		"logins": AtLeast(1),
	}
	state := DefaultState(spec)
	state.Filters = filters

	got := Apply(sampleMembers(), state, spec, fixedNow)

	for _, r := range sampleMembers() {
		want := true
		for _, def := range spec.Filters {
			if v, ok := filters[def.Key]; ok && !Matches(r, def.FieldName(), v, fixedNow) {
				want = false
			}
		}
		name, _ := r.Field("name")
		assert.Equal(t, want, contains(names(got), name.(string)), "record %s", name)
	}
	assert.Equal(t, []string{"Alpha", "Gamma"}, names(got))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestApplyDeclaredDefaultFilter(t *testing.T) {
	spec := &Spec{
		Name:    "active-members",
		Filters: []FilterDef{{Key: "status", Kind: KindMembership, Default: NewMembership("active")}},
	}
	require.NoError(t, spec.Validate())

	got := Apply(sampleMembers(), DefaultState(spec), spec, fixedNow)
	assert.Equal(t, []string{"Alpha", "Alpha2"}, names(got))
}

func TestApplySortStable(t *testing.T) {
	spec := membersSpec(t)
	records := []Record{
		Fields{"name": "c", "created_at": "2026-01-02T00:00:00Z"},
		Fields{"name": "a", "created_at": "2026-01-01T00:00:00Z"},
		Fields{"name": "b", "created_at": "2026-01-02T00:00:00Z"},
		Fields{"name": "d"},
		Fields{"name": "e", "created_at": "2026-01-01T00:00:00Z"},
	}

	tests := []struct {
		sort Sort
		want []string
	}{
		{Sort{Field: "created_at"}, []string{"d", "a", "e", "c", "b"}},
		{Sort{Field: "created_at", Descending: true}, []string{"c", "b", "a", "e", "d"}},
		{Sort{Field: "name", Descending: true}, []string{"e", "d", "c", "b", "a"}},
	}
	for _, tt := range tests {
		state := DefaultState(spec)
		state.Sort = &tt.sort
		assert.Equal(t, tt.want, names(Apply(records, state, spec, fixedNow)), "%+v", tt.sort)
	}
	assert.Equal(t, "c", names(records)[0], "input is not reordered")
}

func TestApplySortNumericAndTime(t *testing.T) {
	spec := membersSpec(t)
	state := DefaultState(spec)
	state.Sort = &Sort{Field: "login_count", Descending: true}
	assert.Equal(t, []string{"Alpha2", "Alpha", "Gamma", "Beta"}, names(Apply(sampleMembers(), state, spec, fixedNow)))

	timed := []Record{
		Fields{"name": "late", "ts": fixedNow},
		Fields{"name": "early", "ts": fixedNow.Add(-time.Hour)},
	}
	SortRecords(timed, Sort{Field: "ts"})
	assert.Equal(t, []string{"early", "late"}, names(timed))
}

func TestPaginate(t *testing.T) {
	rows := sampleMembers()
	tests := []struct {
		p    Pagination
		want []string
	}{
		{Pagination{PageIndex: 0, PageSize: 3}, []string{"Alpha", "Beta", "Alpha2"}},
		{Pagination{PageIndex: 1, PageSize: 3}, []string{"Gamma"}},
		{Pagination{PageIndex: 2, PageSize: 3}, []string{}},
		{Pagination{PageIndex: 0, PageSize: 0}, []string{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, names(Paginate(rows, tt.p)), "%+v", tt.p)
	}
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 0, PageCount(0, 10))
	assert.Equal(t, 1, PageCount(10, 10))
	assert.Equal(t, 2, PageCount(11, 10))
	assert.Equal(t, 0, PageCount(5, 0))
}
