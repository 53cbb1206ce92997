package cli

import (
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/console/internal/config"
	"github.com/telhawk-systems/console/internal/savedviews"
)

func useRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	useConfig(t, func(c *config.Config) {
		c.Redis.Enabled = true
		c.Redis.URL = "redis://" + mr.Addr()
	})
	return mr
}

func TestSavedCommandsRequireRedis(t *testing.T) {
	useConfig(t, nil)

	_, err := execute(t, savedSaveCmd, "members", "admins")
	assert.ErrorIs(t, err, errSavedViewsDisabled)
	_, err = execute(t, savedListCmd, "members")
	assert.ErrorIs(t, err, errSavedViewsDisabled)
	_, err = execute(t, savedRecentCmd, "members")
	assert.ErrorIs(t, err, errSavedViewsDisabled)
}

func TestSavedLifecycle(t *testing.T) {
	mr := useRedis(t)

	setFlags(t, savedSaveCmd, map[string]any{"filter": []string{"role=admin,owner"}, "sort": "name"})
	out, err := execute(t, savedSaveCmd, "members", "admins")
	require.NoError(t, err)
	assert.Contains(t, out, `✓ saved "admins": members?role=admin%2Cowner&sortBy=name&sortOrder=asc`)
	assert.True(t, mr.Exists("console:saved:members"))

	out, err = execute(t, savedListCmd, "members")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "admins")
	assert.Contains(t, out, "members?role=admin%2Cowner&sortBy=name&sortOrder=asc")

	out, err = execute(t, savedDeleteCmd, "members", "admins")
	require.NoError(t, err)
	assert.Contains(t, out, `✓ deleted "admins" from members`)

	out, err = execute(t, savedListCmd, "members")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved views for members.")

	_, err = execute(t, savedDeleteCmd, "members", "admins")
	assert.ErrorIs(t, err, savedviews.ErrSavedViewNotFound)
}

func TestSavedListJSON(t *testing.T) {
	useRedis(t)
	setFlags(t, savedSaveCmd, map[string]any{"query": "?level=error"})
	_, err := execute(t, savedSaveCmd, "logs", "errors")
	require.NoError(t, err)

	outputFormat = "json"
	out, err := execute(t, savedListCmd, "logs")
	require.NoError(t, err)

	var saved []savedviews.SavedView
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	require.Len(t, saved, 1)
	assert.Equal(t, "errors", saved[0].Name)
	assert.Equal(t, "logs", saved[0].View)
	assert.Equal(t, "level=error", saved[0].Query)
	assert.NotEmpty(t, saved[0].ID)
}

func TestSavedOpenRecordsRecent(t *testing.T) {
	useRedis(t)
	setFlags(t, savedSaveCmd, map[string]any{"filter": []string{"level=error", "timeRange=7d"}})
	_, err := execute(t, savedSaveCmd, "logs", "errors")
	require.NoError(t, err)

	setFlags(t, savedOpenCmd, map[string]any{"demo": 80})
	out, err := execute(t, savedOpenCmd, "logs", "errors")
	require.NoError(t, err)
	assert.Contains(t, out, "filters: Level: error; Time: Last 7 days")
	assert.Contains(t, out, "link: logs?level=error&timeRange=7d")

	out, err = execute(t, savedRecentCmd, "logs")
	require.NoError(t, err)
	assert.Contains(t, out, "logs?level=error&timeRange=7d")

	_, err = execute(t, savedOpenCmd, "logs", "missing")
	assert.ErrorIs(t, err, savedviews.ErrSavedViewNotFound)
}

func TestSavedRecentEmptyAndJSON(t *testing.T) {
	useRedis(t)

	out, err := execute(t, savedRecentCmd, "members")
	require.NoError(t, err)
	assert.Contains(t, out, "No recent queries for members.")

	outputFormat = "json"
	out, err = execute(t, savedRecentCmd, "members")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestSavedSaveValidatesQuery(t *testing.T) {
	useRedis(t)
	setFlags(t, savedSaveCmd, map[string]any{"sort": "password"})

	_, err := execute(t, savedSaveCmd, "members", "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot sort by")
}
