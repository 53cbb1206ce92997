package devserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/console/common/httputil"
	"github.com/telhawk-systems/console/common/logging"
	"github.com/telhawk-systems/console/common/messaging"
	"github.com/telhawk-systems/console/common/middleware"
	"github.com/telhawk-systems/console/internal/client"
	"github.com/telhawk-systems/console/internal/seeder"
	"github.com/telhawk-systems/console/internal/views"
	"github.com/telhawk-systems/console/pkg/listview"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *clock.Mock, *httptest.Server) {
	t.Helper()
	catalog, err := views.Default()
	require.NoError(t, err)

	mock := clock.NewMock()
	mock.Set(fixedNow)
	s := New(catalog, WithClock(mock), WithMaxLimit(50),
		WithLogger(&logging.Logger{Logger: logging.Discard()}))
	s.SetRows("members", []map[string]any{
		{"id": "m1", "name": "Ada Lovelace", "email": "ada@example.com", "role": "admin", "status": "active",
			"mfa_enabled": true, "login_count": 10, "last_login_at": fixedNow.Add(-time.Hour)},
		{"id": "m2", "name": "Grace Hopper", "email": "grace@example.com", "role": "member", "status": "active",
			"mfa_enabled": false, "login_count": 3, "last_login_at": fixedNow.Add(-48 * time.Hour)},
		{"id": "m3", "name": "Linus Torvalds", "email": "linus@example.org", "role": "member", "status": "inactive",
			"mfa_enabled": true, "login_count": 50, "last_login_at": fixedNow.Add(-2 * time.Hour)},
		{"id": "m4", "name": "Ken Thompson", "email": "ken@example.org", "role": "viewer", "status": "invited",
			"mfa_enabled": false, "login_count": 0},
	})

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, mock, ts
}

func getCollection(t *testing.T, ts *httptest.Server, path string) (int, httputil.CollectionDocument, http.Header) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var doc httputil.CollectionDocument
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &doc), string(body))
	return resp.StatusCode, doc, resp.Header
}

func ids(doc httputil.CollectionDocument) []string {
	out := make([]string, len(doc.Data))
	for i, r := range doc.Data {
		out[i] = r.ID
	}
	return out
}

func TestServer_List(t *testing.T) {
	_, _, ts := newTestServer(t)

	tests := []struct {
		name      string
		query     url.Values
		wantIDs   []string
		wantTotal int
	}{
		{
			name:      "everything",
			query:     url.Values{},
			wantIDs:   []string{"m1", "m2", "m3", "m4"},
			wantTotal: 4,
		},
		{
			name:      "status filter sorted by logins",
			query:     url.Values{"status": {"active"}, "sort_by": {"login_count"}, "sort_order": {"desc"}},
			wantIDs:   []string{"m1", "m2"},
			wantTotal: 2,
		},
		{
			name:      "search",
			query:     url.Values{"search": {"ADA"}},
			wantIDs:   []string{"m1"},
			wantTotal: 1,
		},
		{
			name:      "window excludes missing timestamps",
			query:     url.Values{"last_login_within": {"24h"}},
			wantIDs:   []string{"m1", "m3"},
			wantTotal: 2,
		},
		{
			name:      "range and flag",
			query:     url.Values{"login_count_min": {"5"}, "mfa_enabled": {"true"}, "sort_by": {"name"}},
			wantIDs:   []string{"m1", "m3"},
			wantTotal: 2,
		},
		{
			name:      "second page",
			query:     url.Values{"page": {"2"}, "limit": {"10"}},
			wantIDs:   []string{},
			wantTotal: 4,
		},
		{
			name:      "non allow-listed limit under the cap",
			query:     url.Values{"limit": {"3"}, "page": {"2"}},
			wantIDs:   []string{"m4"},
			wantTotal: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, doc, _ := getCollection(t, ts, "/api/v1/members?"+tt.query.Encode())
			assert.Equal(t, http.StatusOK, status)
			assert.Equal(t, tt.wantIDs, ids(doc))
			require.NotNil(t, doc.Meta)
			require.NotNil(t, doc.Meta.Pagination)
			assert.Equal(t, tt.wantTotal, doc.Meta.Pagination.Total)
		})
	}
}

func TestServer_ListErrors(t *testing.T) {
	_, _, ts := newTestServer(t)

	status, doc, _ := getCollection(t, ts, "/api/v1/widgets")
	assert.Equal(t, http.StatusNotFound, status)
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, "not_found", doc.Errors[0].Code)

	for _, limit := range []string{"0", "-1", "abc", "51"} {
		status, doc, _ = getCollection(t, ts, "/api/v1/members?limit="+limit)
		assert.Equal(t, http.StatusBadRequest, status, limit)
		require.Len(t, doc.Errors, 1)
		assert.Equal(t, "validation_failed", doc.Errors[0].Code)
	}
}

func TestServer_RequestIDAndCORS(t *testing.T) {
	_, _, ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/members", nil)
	require.NoError(t, err)
	req.Header.Set(middleware.HeaderRequestID, "req-42")
	req.Header.Set("Origin", "https://console.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "req-42", resp.Header.Get(middleware.HeaderRequestID))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, httputil.ContentTypeJSONAPI, resp.Header.Get("Content-Type"))
}

func TestServer_TenantScope(t *testing.T) {
	s, _, ts := newTestServer(t)
	s.SetRows("logs", []map[string]any{
		{"id": "l1", "tenant_id": "acme", "timestamp": fixedNow.Add(-time.Minute), "level": "info"},
		{"id": "l2", "tenant_id": "globex", "timestamp": fixedNow.Add(-time.Minute), "level": "info"},
		{"id": "l3", "tenant_id": "acme", "timestamp": fixedNow.Add(-72 * time.Hour), "level": "info"},
	})

	_, doc, _ := getCollection(t, ts, "/api/v1/logs?tenant_id=acme")
	assert.Equal(t, []string{"l1"}, ids(doc), "default 24h window applies server-side too")

	_, doc, _ = getCollection(t, ts, "/api/v1/logs?tenant_id=acme&timestamp=all")
	assert.ElementsMatch(t, []string{"l1", "l3"}, ids(doc))
}

func TestServer_HealthAndMetrics(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	getCollection(t, ts, "/api/v1/members")
	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `console_api_list_requests_total{resource="members",status="2xx"}`)
}

func TestServer_Seed(t *testing.T) {
	catalog, err := views.Default()
	require.NoError(t, err)
	s := New(catalog)
	require.NoError(t, s.Seed(seeder.New(1, fixedNow), 25))

	for _, v := range catalog.All() {
		assert.Equal(t, 25, s.Count(v.Resource), v.Resource)
	}
}

// The console's remote view, the HTTP client and this server agree on the
// request contract end to end.
func TestServer_RemoteViewEndToEnd(t *testing.T) {
	_, mock, ts := newTestServer(t)
	catalog, err := views.Default()
	require.NoError(t, err)
	members, err := catalog.Get("members")
	require.NoError(t, err)

	bar := listview.NewMemoryAddressBar("status=active")
	view, err := listview.NewView(members.Spec(),
		listview.WithRemote(client.New(ts.URL).Source(members.Resource)),
		listview.WithAddressBar(bar),
		listview.WithViewClock(mock),
		listview.WithViewLogger(logging.Discard()))
	require.NoError(t, err)
	defer view.Close()

	view.Wait()
	res := view.Result()
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.TotalCount)
	assert.Equal(t, 1, res.PageCount)

	view.SetSort("login_count")
	view.SetSort("login_count")
	view.Wait()
	res = view.Result()
	require.Len(t, res.Rows, 2)
	first, _ := res.Rows[0].Field("id")
	assert.Equal(t, "m1", first)
	assert.Equal(t, "sortBy=login_count&sortOrder=desc&status=active", bar.Read())

	view.SetFilter("status", listview.NewMembership("active", "inactive"))
	view.Wait()
	res = view.Result()
	assert.Equal(t, 4, res.TotalCount, "multi-select is omitted from the request")
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	return p.Publish(ctx, msg.Subject, msg.Data)
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subjects)
}

func TestServer_EmitLogs(t *testing.T) {
	s, mock, _ := newTestServer(t)
	pub := &recordingPublisher{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.EmitLogs(ctx, pub, messaging.SubjectLogs, seeder.New(1, fixedNow), time.Second)
	}()

	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		return pub.count() >= 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, s.Count("logs"), 2)

	pub.mu.Lock()
	assert.Regexp(t, `^console\.logs\.[a-z0-9-]+$`, pub.subjects[0])
	pub.mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("EmitLogs did not stop")
	}
}

func TestServer_EmitLogsRejectsBadInterval(t *testing.T) {
	s, _, _ := newTestServer(t)
	err := s.EmitLogs(context.Background(), nil, "", seeder.New(1, fixedNow), 0)
	assert.Error(t, err)
}
