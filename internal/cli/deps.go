package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"github.com/telhawk-systems/console/common/logging"
	"github.com/telhawk-systems/console/common/messaging/nats"
	"github.com/telhawk-systems/console/internal/client"
	"github.com/telhawk-systems/console/internal/devserver"
	"github.com/telhawk-systems/console/internal/logsource"
	"github.com/telhawk-systems/console/internal/metrics"
	"github.com/telhawk-systems/console/internal/savedviews"
	"github.com/telhawk-systems/console/internal/seeder"
	"github.com/telhawk-systems/console/internal/views"
	"github.com/telhawk-systems/console/pkg/listview"
)

// demoSeed fixes generated demo rows across runs.
const demoSeed = 42

var errSavedViewsDisabled = errors.New("saved views need redis.enabled=true")

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newAPIClient() *client.Client {
	c := currentConfig()
	return client.New(c.API.BaseURL,
		client.WithToken(c.API.Token),
		client.WithTimeout(c.API.Timeout()))
}

func connectNATS() (*nats.Client, error) {
	c := currentConfig()
	nc := nats.DefaultConfig()
	nc.URL = c.NATS.URL
	nc.MaxReconnects = c.NATS.MaxReconnects
	nc.ReconnectWait = c.NATS.ReconnectWaitDuration()
	nc.Logger = currentLogger()
	return nats.NewClient(nc)
}

// openStore connects to the saved-view store. Changes are announced on NATS
// when it is enabled and reachable.
func openStore() (*savedviews.Store, func(), error) {
	c := currentConfig()
	if !c.Redis.Enabled {
		return nil, nil, errSavedViewsDisabled
	}
	opts := []savedviews.Option{savedviews.WithLogger(currentLogger())}
	var nc *nats.Client
	if c.NATS.Enabled {
		var err error
		nc, err = connectNATS()
		if err != nil {
			currentLogger().Warn("saved view changes will not be announced", logging.Error(err))
		} else {
			opts = append(opts, savedviews.WithPublisher(nc))
		}
	}
	store, err := savedviews.NewStore(c.Redis.URL, c.Redis.KeyPrefix, opts...)
	if err != nil {
		if nc != nil {
			_ = nc.Close()
		}
		return nil, nil, err
	}
	closeAll := func() {
		_ = store.Close()
		if nc != nil {
			_ = nc.Close()
		}
	}
	return store, closeAll, nil
}

// rememberQuery records query in the recent list when saved views are on.
func rememberQuery(ctx context.Context, view, query string) {
	if !currentConfig().Redis.Enabled {
		return
	}
	store, closeStore, err := openStore()
	if err != nil {
		currentLogger().Warn("recent views unavailable", logging.Error(err))
		return
	}
	defer closeStore()
	if err := store.PushRecent(ctx, view, query); err != nil {
		currentLogger().Warn("failed to record recent view", logging.View(view), logging.Error(err))
	}
}

type mountOptions struct {
	tenant string
	demo   int
	bar    listview.AddressBar
	// records replaces the local dataset when set.
	records []listview.Record
}

// mountView creates a listview.View for a catalog entry: remote views read
// the admin API and local views filter their records in memory.
func mountView(ctx context.Context, view *views.View, spec *listview.Spec, opts mountOptions) (*listview.View, error) {
	c := currentConfig()
	if opts.bar == nil {
		opts.bar = listview.NewMemoryAddressBar("")
	}
	viewOpts := []listview.ViewOption{
		listview.WithAddressBar(opts.bar),
		listview.WithViewLogger(currentLogger()),
		listview.WithDebounce(c.ListView.Debounce()),
		listview.WithFetchObserver(metrics.NewObserver()),
	}

	if view.Mode == views.ModeRemote {
		viewOpts = append(viewOpts, listview.WithRemote(newAPIClient().Source(view.Resource)))
		if opts.tenant != "" {
			viewOpts = append(viewOpts, listview.WithScope(url.Values{devserver.ParamTenant: {opts.tenant}}))
		}
		return listview.NewView(spec, viewOpts...)
	}

	records := opts.records
	if records == nil {
		initial := listview.FromQueryString(opts.bar.Read(), spec)
		var err error
		records, err = loadLocalRecords(ctx, view, spec, initial, opts.demo)
		if err != nil {
			return nil, err
		}
	}
	if opts.tenant != "" {
		records = scopeRecords(records, opts.tenant)
	}
	viewOpts = append(viewOpts, listview.WithLocal(records))
	return listview.NewView(spec, viewOpts...)
}

// loadLocalRecords reads the dataset of a local view: recent documents from
// OpenSearch when it is enabled, generated demo rows otherwise.
func loadLocalRecords(ctx context.Context, view *views.View, spec *listview.Spec, state listview.State, demo int) ([]listview.Record, error) {
	if currentConfig().OpenSearch.Enabled {
		return loadRecent(ctx, spec, activeWindow(state, spec))
	}

	gen := seeder.New(demoSeed, time.Now())
	rows, err := gen.Rows(view.Resource, demo)
	if err != nil {
		return nil, fmt.Errorf("no data for local view %s: %w", view.Name, err)
	}
	records := make([]listview.Record, len(rows))
	for i, row := range rows {
		records[i] = listview.Fields(row)
	}
	return records, nil
}

// loadRecent reads OpenSearch documents inside window.
func loadRecent(ctx context.Context, spec *listview.Spec, window listview.TimeWindow) ([]listview.Record, error) {
	c := currentConfig()
	osClient, err := logsource.NewOpenSearchClient(c.OpenSearch)
	if err != nil {
		return nil, err
	}
	src := logsource.NewOpenSearchSource(osClient, c.OpenSearch.Index, spec)
	return src.Recent(ctx, window, 0)
}

// windowLoader reloads a local dataset that was read for one time window,
// so widening the window in a session brings in the older rows.
type windowLoader struct {
	loaded listview.TimeWindow
	load   func(ctx context.Context, window listview.TimeWindow) ([]listview.Record, error)
}

// newWindowLoader returns nil unless the view's records come from OpenSearch.
func newWindowLoader(view *views.View, spec *listview.Spec, state listview.State, tenant string) *windowLoader {
	if view.Mode == views.ModeRemote || !currentConfig().OpenSearch.Enabled {
		return nil
	}
	return &windowLoader{
		loaded: activeWindow(state, spec),
		load: func(ctx context.Context, window listview.TimeWindow) ([]listview.Record, error) {
			records, err := loadRecent(ctx, spec, window)
			if err != nil {
				return nil, err
			}
			if tenant != "" {
				records = scopeRecords(records, tenant)
			}
			return records, nil
		},
	}
}

// widens reports whether next covers time that loaded does not.
func widens(loaded, next listview.TimeWindow) bool {
	if loaded.IsZero() {
		return false
	}
	if next.IsZero() {
		return true
	}
	ld, _ := loaded.Duration()
	nd, _ := next.Duration()
	return nd > ld
}

// activeWindow is the first time-window filter in effect, or all time.
func activeWindow(state listview.State, spec *listview.Spec) listview.TimeWindow {
	for _, def := range spec.Filters {
		if def.Kind != listview.KindWindow {
			continue
		}
		if value, ok := state.Filter(spec, def.Key); ok {
			if w, ok := value.(listview.TimeWindow); ok {
				return w
			}
		}
	}
	return listview.WindowAll
}

func scopeRecords(records []listview.Record, tenant string) []listview.Record {
	set := listview.NewMembership(tenant)
	out := make([]listview.Record, 0, len(records))
	for _, r := range records {
		if listview.MatchMembership(r, devserver.ParamTenant, set) {
			out = append(out, r)
		}
	}
	return out
}
