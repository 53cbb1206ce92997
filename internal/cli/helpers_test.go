package cli

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/console/internal/config"
	"github.com/telhawk-systems/console/internal/devserver"
	"github.com/telhawk-systems/console/internal/views"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// useConfig installs a default config, adjusted by mutate, for one test.
func useConfig(t *testing.T, mutate func(*config.Config)) {
	t.Helper()
	prevCfg, prevFormat, prevNoColor := cfg, outputFormat, noColor
	c := config.Default()
	if mutate != nil {
		mutate(c)
	}
	cfg = c
	outputFormat = "table"
	noColor = true
	t.Cleanup(func() {
		cfg, outputFormat, noColor = prevCfg, prevFormat, prevNoColor
	})
}

// setFlags sets flags on cmd and restores their defaults after the test.
// Repeatable flags take a slice.
func setFlags(t *testing.T, cmd *cobra.Command, values map[string]any) {
	t.Helper()
	for name, v := range values {
		switch val := v.(type) {
		case []string:
			for _, item := range val {
				require.NoError(t, cmd.Flags().Set(name, item))
			}
		default:
			require.NoError(t, cmd.Flags().Set(name, fmt.Sprint(val)))
		}
	}
	t.Cleanup(func() { resetFlags(cmd) })
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
}

// execute runs cmd's RunE with captured output.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetErr(nil)
	})
	err := cmd.RunE(cmd, args)
	return out.String(), err
}

func memberRows() []map[string]any {
	return []map[string]any{
		{"id": "m1", "name": "Ada Lovelace", "email": "ada@example.com", "role": "admin", "status": "active",
			"mfa_enabled": true, "login_count": 10, "last_login_at": fixedNow.Add(-time.Hour), "tenant_id": "acme"},
		{"id": "m2", "name": "Grace Hopper", "email": "grace@example.com", "role": "member", "status": "active",
			"mfa_enabled": false, "login_count": 3, "last_login_at": fixedNow.Add(-48 * time.Hour), "tenant_id": "acme"},
		{"id": "m3", "name": "Alan Turing", "email": "alan@example.org", "role": "owner", "status": "invited",
			"mfa_enabled": true, "login_count": 0, "last_login_at": fixedNow.Add(-30 * 24 * time.Hour), "tenant_id": "globex"},
		{"id": "m4", "name": "Edsger Dijkstra", "email": "edsger@example.org", "role": "viewer", "status": "inactive",
			"mfa_enabled": false, "login_count": 42, "last_login_at": fixedNow.Add(-10 * time.Minute), "tenant_id": "globex"},
	}
}

// startBackend serves the member fixture through the demo backend and
// points the config at it.
func startBackend(t *testing.T) *devserver.Server {
	t.Helper()
	catalog, err := views.Default()
	require.NoError(t, err)
	srv := devserver.New(catalog)
	srv.SetRows("members", memberRows())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	useConfig(t, func(c *config.Config) {
		c.API.BaseURL = ts.URL
		c.API.TimeoutSeconds = 5
	})
	return srv
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
