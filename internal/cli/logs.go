package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/telhawk-systems/console/common/logging"
	"github.com/telhawk-systems/console/common/messaging"
	"github.com/telhawk-systems/console/internal/devserver"
	"github.com/telhawk-systems/console/internal/logsource"
	"github.com/telhawk-systems/console/internal/metrics"
	"github.com/telhawk-systems/console/pkg/listview"
)

const logsView = "logs"

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Search recent platform logs",
	Long: `Filters recent log rows locally. Rows come from OpenSearch when it is
enabled, generated demo rows otherwise. --follow keeps the page live with rows
published on NATS; --server-side lets OpenSearch filter and page instead.`,
	Example: `  console logs --time-range 1h --filter level=error
  console logs --search "token refresh" --follow`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	addQueryFlags(logsCmd)
	logsCmd.Flags().String("time-range", "", "time window: 5m, 15m, 1h, 6h, 24h, 7d, 30d or all")
	logsCmd.Flags().String("tenant", "", "restrict rows to a tenant (default api.tenant_id)")
	logsCmd.Flags().Int("demo", 500, "rows generated when no log backend is enabled")
	logsCmd.Flags().Bool("follow", false, "keep rendering as new rows arrive on NATS")
	logsCmd.Flags().Bool("server-side", false, "filter, sort and page in OpenSearch")
}

func runLogs(cmd *cobra.Command, _ []string) error {
	format, err := currentFormat()
	if err != nil {
		return err
	}
	view, err := lookupView(logsView)
	if err != nil {
		return err
	}
	spec := view.Spec()

	flags, err := readQueryFlags(cmd)
	if err != nil {
		return err
	}
	if tr, _ := cmd.Flags().GetString("time-range"); tr != "" {
		key, ok := windowKey(spec)
		if !ok {
			return fmt.Errorf("view %s has no time window filter", spec.Name)
		}
		flags.filters = append(flags.filters, key+"="+tr)
	}
	if flags.sort == "" && !hasSort(flags.query) {
		flags.sort = listview.DefaultTimestampField + ":desc"
	}
	query, err := flags.build(spec)
	if err != nil {
		return err
	}

	tenant, _ := cmd.Flags().GetString("tenant")
	if tenant == "" {
		tenant = currentConfig().API.TenantID
	}
	demo, _ := cmd.Flags().GetInt("demo")
	follow, _ := cmd.Flags().GetBool("follow")
	serverSide, _ := cmd.Flags().GetBool("server-side")
	if follow && serverSide {
		return errors.New("--follow and --server-side cannot be combined")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	p := newPrinter(cmd)
	bar := listview.NewMemoryAddressBar(query)

	if serverSide {
		lv, err := mountOpenSearchView(spec, bar, tenant)
		if err != nil {
			return err
		}
		defer lv.Close()
		lv.Wait()
		res := lv.Result()
		if res.Err != nil {
			return fmt.Errorf("search logs: %w", res.Err)
		}
		return renderPage(p, format, view, spec, res)
	}

	records, err := loadLocalRecords(ctx, view, spec, listview.FromQueryString(query, spec), demo)
	if err != nil {
		return err
	}
	if tenant != "" {
		records = scopeRecords(records, tenant)
	}
	lv, err := mountView(ctx, view, spec, mountOptions{bar: bar, records: records})
	if err != nil {
		return err
	}
	defer lv.Close()

	if !follow {
		return renderPage(p, format, view, spec, lv.Result())
	}
	return followLogs(ctx, newSession(ctx, p, format, view, spec, lv, nil), records, tenant)
}

// followLogs renders every change while a NATS tail feeds the view, until
// ctx is canceled.
func followLogs(ctx context.Context, s *session, seed []listview.Record, tenant string) error {
	c := currentConfig()
	if !c.NATS.Enabled {
		return errors.New("--follow needs nats.enabled=true")
	}
	nc, err := connectNATS()
	if err != nil {
		return err
	}
	defer nc.Close()

	return tailInto(ctx, s, nc, messaging.LogSubject(c.NATS.Subject, tenant), seed, c.NATS.Buffer)
}

func tailInto(ctx context.Context, s *session, sub messaging.Subscriber, subject string, seed []listview.Record, buffer int) error {
	unsubscribe := s.lv.OnResult(s.frame)
	defer unsubscribe()
	s.frame(s.lv.Result())

	tail := logsource.NewTail(sub, subject, seed,
		logsource.WithBuffer(buffer),
		logsource.WithTailLogger(currentLogger()),
		logsource.OnChange(s.lv.SetRecords))
	if err := tail.Start(); err != nil {
		return err
	}
	defer func() {
		if err := tail.Stop(); err != nil {
			currentLogger().Warn("failed to stop log tail", logging.Error(err))
		}
	}()

	<-ctx.Done()
	if dropped := tail.Dropped(); dropped > 0 {
		s.p.Muted("%d older rows dropped from the live buffer", dropped)
	}
	return nil
}

func mountOpenSearchView(spec *listview.Spec, bar listview.AddressBar, tenant string) (*listview.View, error) {
	c := currentConfig()
	if !c.OpenSearch.Enabled {
		return nil, errors.New("--server-side needs opensearch.enabled=true")
	}
	client, err := logsource.NewOpenSearchClient(c.OpenSearch)
	if err != nil {
		return nil, err
	}
	opts := []listview.ViewOption{
		listview.WithAddressBar(bar),
		listview.WithRemote(logsource.NewOpenSearchSource(client, c.OpenSearch.Index, spec)),
		listview.WithViewLogger(currentLogger()),
		listview.WithFetchObserver(metrics.NewObserver()),
	}
	if tenant != "" {
		opts = append(opts, listview.WithScope(url.Values{devserver.ParamTenant: {tenant}}))
	}
	return listview.NewView(spec, opts...)
}

func windowKey(spec *listview.Spec) (string, bool) {
	for _, def := range spec.Filters {
		if def.Kind == listview.KindWindow {
			return def.Key, true
		}
	}
	return "", false
}

func hasSort(query string) bool {
	values, _ := url.ParseQuery(strings.TrimPrefix(strings.TrimSpace(query), "?"))
	return values.Get(listview.KeySortBy) != ""
}
