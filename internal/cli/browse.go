package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/telhawk-systems/console/common/logging"
	"github.com/telhawk-systems/console/internal/output"
	"github.com/telhawk-systems/console/internal/savedviews"
	"github.com/telhawk-systems/console/internal/views"
	"github.com/telhawk-systems/console/pkg/listview"
)

var browseCmd = &cobra.Command{
	Use:   "browse <view>",
	Short: "Explore a list view interactively",
	Long: `Reads one command per line from stdin and re-renders the page whenever the
result changes. "type" input is debounced like a search box; "enter" commits it.

Commands:
  type <text>        type into the search box
  enter              commit the typed search now
  search <text>      set the search immediately
  filter key=value   set a filter; an empty value resets it
  unset <key>        reset a filter
  clear              reset every filter
  sort <field>       cycle a column: ascending, descending, unsorted
  page <n> [size]    go to a page, optionally changing the page size
  next, prev         move one page
  open <name|query>  open a saved view or a query string
  save <name>        save the current query
  link               print the bookmark link
  refresh            fetch the current page again
  quit               leave`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeViewNames,
	RunE:              runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
	browseCmd.Flags().String("query", "", "initial query string")
	browseCmd.Flags().String("tenant", "", "restrict rows to a tenant (default api.tenant_id)")
	browseCmd.Flags().Int("demo", 200, "rows generated for local views when no log backend is enabled")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	format, err := currentFormat()
	if err != nil {
		return err
	}
	view, err := lookupView(args[0])
	if err != nil {
		return err
	}
	query, _ := cmd.Flags().GetString("query")
	tenant, _ := cmd.Flags().GetString("tenant")
	if tenant == "" {
		tenant = currentConfig().API.TenantID
	}
	demo, _ := cmd.Flags().GetInt("demo")

	ctx := commandContext(cmd)
	spec := view.Spec()
	lv, err := mountView(ctx, view, spec, mountOptions{
		tenant: tenant,
		demo:   demo,
		bar:    listview.NewMemoryAddressBar(query),
	})
	if err != nil {
		return err
	}
	defer lv.Close()

	var store savedQueries
	if currentConfig().Redis.Enabled {
		s, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()
		store = s
	}

	s := newSession(ctx, newPrinter(cmd), format, view, spec, lv, store)
	s.reload = newWindowLoader(view, spec, lv.State(), tenant)
	return s.run(cmd.InOrStdin())
}

// savedQueries is the part of the saved-view store a session uses.
type savedQueries interface {
	Save(ctx context.Context, view, name, query string) (savedviews.SavedView, error)
	Get(ctx context.Context, view, name string) (savedviews.SavedView, error)
	PushRecent(ctx context.Context, view, query string) error
}

var errQuit = errors.New("quit")

// session drives one mounted view from line commands.
type session struct {
	ctx    context.Context
	p      *output.Printer
	format output.Format
	view   *views.View
	spec   *listview.Spec
	lv     *listview.View
	store  savedQueries
	reload *windowLoader

	mu       sync.Mutex
	lastKey  string
	forceOne bool
}

func newSession(ctx context.Context, p *output.Printer, format output.Format, view *views.View, spec *listview.Spec, lv *listview.View, store savedQueries) *session {
	return &session{ctx: ctx, p: p, format: format, view: view, spec: spec, lv: lv, store: store}
}

func (s *session) run(in io.Reader) error {
	unsubscribe := s.lv.OnResult(s.frame)
	defer unsubscribe()

	s.lv.Wait()
	s.frame(s.lv.Result())

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		err := s.exec(line)
		s.lv.Wait()
		s.reloadIfWidened()
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			s.p.Error("%v", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read commands: %w", err)
	}
	if s.store != nil {
		if err := s.store.PushRecent(s.ctx, s.view.Name, s.lv.QueryString()); err != nil {
			currentLogger().Warn("failed to record recent view", logging.View(s.view.Name), logging.Error(err))
		}
	}
	return nil
}

// frame renders res unless it is still loading or shows the same page as the
// last rendered frame.
// reloadIfWidened refetches the dataset when the window grew past what was
// loaded.
func (s *session) reloadIfWidened() {
	if s.reload == nil {
		return
	}
	window := activeWindow(s.lv.State(), s.spec)
	if !widens(s.reload.loaded, window) {
		return
	}
	records, err := s.reload.load(s.ctx, window)
	if err != nil {
		s.p.Error("reload %s for %s: %v", s.view.Name, window.Label(), err)
		return
	}
	s.reload.loaded = window
	s.lv.SetRecords(records)
	s.lv.Wait()
}

func (s *session) frame(res listview.Result) {
	if res.Loading {
		return
	}
	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}
	first := ""
	if len(res.Rows) > 0 {
		first = formatCell(res.Rows[0].Field("id"))
	}
	key := fmt.Sprint(listview.ToQueryString(res.State, s.spec), "|", res.TotalCount, "|", len(res.Rows), "|", first, "|", errText)

	s.mu.Lock()
	defer s.mu.Unlock()
	if key == s.lastKey && !s.forceOne {
		return
	}
	s.lastKey = key
	s.forceOne = false

	if res.Err != nil {
		s.p.Error("%s: %v", s.view.Name, res.Err)
		return
	}
	if err := renderPage(s.p, s.format, s.view, s.spec, res); err != nil {
		s.p.Error("%v", err)
	}
}

func (s *session) exec(line string) error {
	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(verb) {
	case "type":
		s.lv.SetSearchInput(arg)
	case "enter":
		s.lv.ConfirmSearch()
	case "search":
		s.lv.SetSearch(arg)
	case "filter":
		return s.setFilter(arg)
	case "unset":
		if _, ok := s.spec.Filter(arg); !ok {
			return fmt.Errorf("view %s has no filter %q", s.spec.Name, arg)
		}
		s.lv.SetFilter(arg, nil)
	case "clear":
		s.lv.ClearAll()
	case "sort":
		if !s.spec.Sortable(arg) {
			return fmt.Errorf("view %s cannot sort by %q", s.spec.Name, arg)
		}
		s.lv.SetSort(arg)
	case "page":
		return s.goToPage(arg)
	case "next", "prev":
		return s.step(verb == "next")
	case "open":
		return s.open(arg)
	case "save":
		return s.save(arg)
	case "link":
		s.p.Info("%s", viewLink(s.view, s.lv.QueryString()))
	case "refresh":
		s.mu.Lock()
		s.forceOne = true
		s.mu.Unlock()
		s.lv.Refresh()
	case "help":
		s.p.Muted("commands: type, enter, search, filter, unset, clear, sort, page, next, prev, open, save, link, refresh, quit")
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", verb)
	}
	return nil
}

func (s *session) setFilter(arg string) error {
	key, raw, err := parseFilterArg(s.spec, arg)
	if err != nil {
		return err
	}
	if raw == "" {
		s.lv.SetFilter(key, nil)
		return nil
	}
	def, _ := s.spec.Filter(key)
	value, _ := listview.ParseFilterValue(def, raw)
	s.lv.SetFilter(key, value)
	return nil
}

func (s *session) goToPage(arg string) error {
	fields := strings.Fields(arg)
	if len(fields) == 0 || len(fields) > 2 {
		return errors.New("usage: page <n> [size]")
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 1 {
		return fmt.Errorf("invalid page %q", fields[0])
	}
	size := s.lv.State().Pagination.PageSize
	if len(fields) == 2 {
		size, err = strconv.Atoi(fields[1])
		if err != nil || !s.spec.AllowsPageSize(size) {
			return fmt.Errorf("page size %s not allowed (choose from %s)", fields[1], joinInts(s.spec.PageSizes))
		}
	}
	s.lv.SetPagination(n-1, size)
	return nil
}

func (s *session) step(forward bool) error {
	res := s.lv.Result()
	p := res.State.Pagination
	switch {
	case forward && p.PageIndex+1 >= res.PageCount:
		return errors.New("already on the last page")
	case !forward && p.PageIndex == 0:
		return errors.New("already on the first page")
	case forward:
		s.lv.SetPagination(p.PageIndex+1, p.PageSize)
	default:
		s.lv.SetPagination(p.PageIndex-1, p.PageSize)
	}
	return nil
}

// open accepts a query string ("?status=active" or "status=active") or the
// name of a saved view.
func (s *session) open(arg string) error {
	if arg == "" {
		return errors.New("usage: open <name|query>")
	}
	if strings.HasPrefix(arg, "?") || strings.Contains(arg, "=") {
		s.lv.Open(arg)
		return nil
	}
	if s.store == nil {
		return errSavedViewsDisabled
	}
	sv, err := s.store.Get(s.ctx, s.view.Name, arg)
	if err != nil {
		return err
	}
	s.lv.Open(sv.Query)
	return nil
}

func (s *session) save(name string) error {
	if s.store == nil {
		return errSavedViewsDisabled
	}
	sv, err := s.store.Save(s.ctx, s.view.Name, name, s.lv.QueryString())
	if err != nil {
		return err
	}
	s.p.Success("saved %s as %q", viewLink(s.view, sv.Query), sv.Name)
	return nil
}
