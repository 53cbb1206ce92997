package listview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func membersSpec(t *testing.T) *Spec {
	t.Helper()
	spec := &Spec{
		Name: "members",
		Filters: []FilterDef{
			{Key: "status", Kind: KindMembership, Label: "Status", Options: []string{"active", "inactive", "invited"}},
			{Key: "role", Kind: KindMembership, Label: "Role", Multi: MultiJoin},
			{Key: "email", Kind: KindSubstring, Label: "Email"},
			{Key: "logins", Kind: KindRange, Field: "login_count", Param: "logins", Label: "Logins"},
			{Key: "mfa", Kind: KindFlag, Field: "mfa_enabled", Label: "MFA"},
			{Key: "timeRange", Kind: KindWindow, Field: "timestamp", Param: "time_range", Label: "Time"},
		},
		SearchFields: []string{"name", "email"},
		SortFields:   []string{"name", "created_at", "login_count"},
	}
	require.NoError(t, spec.Validate())
	return spec
}

func ptr(f float64) *float64 { return &f }

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
