package cli

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/console/internal/output"
	"github.com/telhawk-systems/console/internal/savedviews"
	"github.com/telhawk-systems/console/pkg/listview"
)

type fakeSaved struct {
	saved  map[string]string
	recent []string
}

func newFakeSaved() *fakeSaved { return &fakeSaved{saved: map[string]string{}} }

func (f *fakeSaved) Save(_ context.Context, view, name, query string) (savedviews.SavedView, error) {
	f.saved[name] = query
	return savedviews.SavedView{View: view, Name: name, Query: query}, nil
}

func (f *fakeSaved) Get(_ context.Context, view, name string) (savedviews.SavedView, error) {
	q, ok := f.saved[name]
	if !ok {
		return savedviews.SavedView{}, savedviews.ErrSavedViewNotFound
	}
	return savedviews.SavedView{View: view, Name: name, Query: q}, nil
}

func (f *fakeSaved) PushRecent(_ context.Context, _ string, query string) error {
	f.recent = append(f.recent, query)
	return nil
}

type browseFixture struct {
	session *session
	view    *listview.View
	clock   *clock.Mock
	out     *syncBuffer
	store   *fakeSaved
}

func newBrowseFixture(t *testing.T, query string) *browseFixture {
	t.Helper()
	useConfig(t, nil)
	catalogView := membersView(t)
	spec := catalogView.Spec()

	records := make([]listview.Record, 0, 4)
	for _, row := range memberRows() {
		records = append(records, listview.Fields(row))
	}
	mock := clock.NewMock()
	mock.Set(fixedNow)
	lv, err := listview.NewView(spec,
		listview.WithLocal(records),
		listview.WithAddressBar(listview.NewMemoryAddressBar(query)),
		listview.WithViewClock(mock),
		listview.WithDebounce(300*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(lv.Close)

	out := &syncBuffer{}
	store := newFakeSaved()
	p := output.New(out, out, false)
	s := newSession(context.Background(), p, output.FormatTable, catalogView, spec, lv, store)
	return &browseFixture{session: s, view: lv, clock: mock, out: out, store: store}
}

func TestBrowseCommands(t *testing.T) {
	f := newBrowseFixture(t, "")
	script := strings.Join([]string{
		"filter status=active",
		"sort login_count",
		"sort login_count",
		"save busy",
		"clear",
		"open busy",
		"link",
		"quit",
		"filter status=invited",
	}, "\n")

	require.NoError(t, f.session.run(strings.NewReader(script)))

	out := f.out.String()
	assert.Contains(t, out, "page 1 of 1, 4 total")
	assert.Contains(t, out, "link: members?status=active\n")
	assert.Contains(t, out, "link: members?sortBy=login_count&sortOrder=asc&status=active")
	assert.Contains(t, out, "link: members?sortBy=login_count&sortOrder=desc&status=active")
	assert.Contains(t, out, `✓ saved members?sortBy=login_count&sortOrder=desc&status=active as "busy"`)
	assert.Contains(t, out, "link: members?sortBy=login_count&sortOrder=desc\n")
	assert.Equal(t, "sortBy=login_count&sortOrder=desc&status=active", f.view.QueryString())
	assert.NotContains(t, out, "status=invited", "commands after quit are ignored")
	assert.Equal(t, []string{"sortBy=login_count&sortOrder=desc&status=active"}, f.store.recent)
}

func TestBrowseDebouncedTyping(t *testing.T) {
	f := newBrowseFixture(t, "")
	unsubscribe := f.view.OnResult(f.session.frame)
	defer unsubscribe()
	f.session.frame(f.view.Result())

	require.NoError(t, f.session.exec("type ada"))
	assert.Equal(t, "", f.view.State().Search, "typing alone does not commit")
	assert.Equal(t, "ada", f.view.Result().SearchInput)

	f.clock.Add(300 * time.Millisecond)
	require.Eventually(t, func() bool { return f.view.State().Search == "ada" }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(f.out.String(), "link: members?search=ada")
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, f.out.String(), "page 1 of 1, 1 total")
}

func TestBrowseEnterCommitsImmediately(t *testing.T) {
	f := newBrowseFixture(t, "")
	require.NoError(t, f.session.run(strings.NewReader("type grace\nenter\n")))
	assert.Equal(t, "grace", f.view.State().Search)
	assert.Contains(t, f.out.String(), "link: members?search=grace")
}

func TestBrowsePaging(t *testing.T) {
	f := newBrowseFixture(t, "")
	script := "prev\npage 1 20\nnext\npage 2 15\npage x\n"
	require.NoError(t, f.session.run(strings.NewReader(script)))

	out := f.out.String()
	assert.Contains(t, out, "✗ already on the first page")
	assert.Contains(t, out, "link: members?limit=20")
	assert.Contains(t, out, "✗ already on the last page")
	assert.Contains(t, out, "✗ page size 15 not allowed")
	assert.Contains(t, out, `✗ invalid page "x"`)
}

func TestBrowseErrors(t *testing.T) {
	f := newBrowseFixture(t, "")
	script := strings.Join([]string{
		"dance",
		"filter plan=pro",
		"unset plan",
		"sort password",
		"open missing",
		"open",
	}, "\n")
	require.NoError(t, f.session.run(strings.NewReader(script)))

	out := f.out.String()
	assert.Contains(t, out, `unknown command "dance"`)
	assert.Contains(t, out, `no filter "plan"`)
	assert.Contains(t, out, `cannot sort by "password"`)
	assert.Contains(t, out, savedviews.ErrSavedViewNotFound.Error())
	assert.Contains(t, out, "usage: open")
}

func TestBrowseOpenQueryAndUnset(t *testing.T) {
	f := newBrowseFixture(t, "mfa=true")
	require.NoError(t, f.session.run(strings.NewReader("open ?status=inactive&mfa=false\nfilter mfa=true\nunset mfa\n")))

	out := f.out.String()
	assert.Contains(t, out, "link: members?mfa=true\n")
	assert.Contains(t, out, "link: members?status=inactive\n")
	assert.Contains(t, out, "link: members?mfa=true&status=inactive")
	assert.Equal(t, "status=inactive", f.view.QueryString())
}

func TestBrowseWithoutStore(t *testing.T) {
	f := newBrowseFixture(t, "")
	f.session.store = nil
	require.NoError(t, f.session.run(strings.NewReader("save x\nopen x\n")))
	assert.Equal(t, 2, strings.Count(f.out.String(), errSavedViewsDisabled.Error()))
}

func TestBrowseRefreshRerenders(t *testing.T) {
	f := newBrowseFixture(t, "")
	require.NoError(t, f.session.run(strings.NewReader("refresh\n")))
	assert.Equal(t, 2, strings.Count(f.out.String(), "page 1 of 1, 4 total"))
}

func TestSessionFrameSkipsDuplicates(t *testing.T) {
	f := newBrowseFixture(t, "")
	res := f.view.Result()
	f.session.frame(res)
	f.session.frame(res)
	loading := res
	loading.Loading = true
	f.session.frame(loading)

	assert.Equal(t, 1, strings.Count(f.out.String(), "4 total"))
}

func TestBrowseReloadsWhenWindowWidens(t *testing.T) {
	useConfig(t, nil)
	view, err := lookupView(logsView)
	require.NoError(t, err)
	spec := view.Spec()

	now := time.Now().UTC()
	recent := listview.Fields{"timestamp": now.Add(-30 * time.Minute), "level": "info", "message": "recent row"}
	old := listview.Fields{"timestamp": now.Add(-40 * 24 * time.Hour), "level": "warn", "message": "old row"}
	lv, err := listview.NewView(spec, listview.WithLocal([]listview.Record{recent}))
	require.NoError(t, err)
	t.Cleanup(lv.Close)

	out := &syncBuffer{}
	s := newSession(context.Background(), output.New(out, out, false), output.FormatTable, view, spec, lv, nil)
	var loads []listview.TimeWindow
	s.reload = &windowLoader{
		loaded: activeWindow(lv.State(), spec),
		load: func(_ context.Context, w listview.TimeWindow) ([]listview.Record, error) {
			loads = append(loads, w)
			return []listview.Record{recent, old}, nil
		},
	}
	assert.Equal(t, listview.Window24h, s.reload.loaded)

	require.NoError(t, s.run(strings.NewReader("filter timeRange=1h\nfilter timeRange=all\nfilter timeRange=7d\n")))

	assert.Equal(t, []listview.TimeWindow{listview.WindowAll}, loads, "only widening reloads")
	assert.Equal(t, listview.WindowAll, s.reload.loaded)
	assert.Contains(t, out.String(), "old row")
	assert.Equal(t, 1, lv.Result().TotalCount)
}

func TestBrowseReloadErrorKeepsLoadedWindow(t *testing.T) {
	useConfig(t, nil)
	view, err := lookupView(logsView)
	require.NoError(t, err)
	spec := view.Spec()
	lv, err := listview.NewView(spec, listview.WithLocal(nil))
	require.NoError(t, err)
	t.Cleanup(lv.Close)

	out := &syncBuffer{}
	s := newSession(context.Background(), output.New(out, out, false), output.FormatTable, view, spec, lv, nil)
	s.reload = &windowLoader{
		loaded: listview.Window24h,
		load: func(context.Context, listview.TimeWindow) ([]listview.Record, error) {
			return nil, assert.AnError
		},
	}
	require.NoError(t, s.run(strings.NewReader("filter timeRange=30d\n")))

	assert.Contains(t, out.String(), "reload logs for Last 30 days")
	assert.Equal(t, listview.Window24h, s.reload.loaded)
}

func TestWidens(t *testing.T) {
	tests := []struct {
		loaded, next listview.TimeWindow
		want         bool
	}{
		{listview.Window24h, listview.Window1h, false},
		{listview.Window24h, listview.Window24h, false},
		{listview.Window24h, listview.Window7d, true},
		{listview.Window24h, listview.WindowAll, true},
		{listview.WindowAll, listview.Window5m, false},
		{listview.WindowAll, listview.WindowAll, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.loaded)+"->"+string(tt.next), func(t *testing.T) {
			assert.Equal(t, tt.want, widens(tt.loaded, tt.next))
		})
	}
}
