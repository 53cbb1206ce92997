package listview

import (
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/telhawk-systems/console/common/logging"
)

// AddressBar is the durable query-string port of a view. It is read once
// when the view mounts and written on every later change.
type AddressBar interface {
	Read() string
	Write(query string)
}

// MemoryAddressBar is an in-process AddressBar.
type MemoryAddressBar struct {
	mu     sync.Mutex
	query  string
	writes int
}

// NewMemoryAddressBar returns a bar holding query.
func NewMemoryAddressBar(query string) *MemoryAddressBar {
	return &MemoryAddressBar{query: query}
}

func (b *MemoryAddressBar) Read() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.query
}

func (b *MemoryAddressBar) Write(query string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.query = query
	b.writes++
}

// Writes reports how many times the view wrote the bar.
func (b *MemoryAddressBar) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

// Result is everything the rendering layer needs for one frame.
type Result struct {
	Rows          []Record
	TotalCount    int
	PageCount     int
	Loading       bool
	Err           error
	ActiveFilters []FilterDescriptor
	State         State
	SearchInput   string
}

// View wires a Model, a Debouncer, an AddressBar and either a remote
// Fetcher or an in-memory record set.
type View struct {
	spec      *Spec
	model     *Model
	debouncer *Debouncer
	fetcher   *Fetcher
	bar       AddressBar
	scope     url.Values
	logger    *slog.Logger
	clock     clock.Clock

	source   PageSource
	delay    time.Duration
	observer Observer

	mu         sync.Mutex
	records    []Record
	gen        uint64
	memo       localMemo
	lastParams string
	closed     bool

	unsubs []func()

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Result)
}

type localMemo struct {
	valid bool
	gen   uint64
	key   string
	rows  []Record
}

// ViewOption configures a View.
type ViewOption func(*View)

// WithAddressBar sets the query-string port. The default is an empty
// MemoryAddressBar.
func WithAddressBar(bar AddressBar) ViewOption {
	return func(v *View) {
		if bar != nil {
			v.bar = bar
		}
	}
}

// WithRemote makes the view fetch pages from source.
func WithRemote(source PageSource) ViewOption {
	return func(v *View) { v.source = source }
}

// WithLocal makes the view filter records in memory.
func WithLocal(records []Record) ViewOption {
	return func(v *View) { v.records = records }
}

// WithScope adds fixed request params, such as the current tenant, to every
// remote request. Scope values win over state-derived params.
func WithScope(scope url.Values) ViewOption {
	return func(v *View) {
		v.scope = url.Values{}
		for k, vals := range scope {
			v.scope[k] = append([]string(nil), vals...)
		}
	}
}

// WithViewClock sets the clock for debounce timers and time windows.
func WithViewClock(c clock.Clock) ViewOption {
	return func(v *View) {
		if c != nil {
			v.clock = c
		}
	}
}

// WithViewLogger sets the logger shared by the view's parts.
func WithViewLogger(l *slog.Logger) ViewOption {
	return func(v *View) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithDebounce sets the search debounce delay.
func WithDebounce(d time.Duration) ViewOption {
	return func(v *View) { v.delay = d }
}

// WithFetchObserver forwards remote fetch events to o.
func WithFetchObserver(o Observer) ViewOption {
	return func(v *View) { v.observer = o }
}

// NewView validates spec, reads the address bar and mounts the view. A
// remote view dispatches its first request before returning.
func NewView(spec *Spec, opts ...ViewOption) (*View, error) {
	if spec == nil {
		return nil, errors.New("listview: nil spec")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	v := &View{
		spec:   spec,
		bar:    NewMemoryAddressBar(""),
		logger: slog.Default(),
		clock:  clock.New(),
		delay:  DefaultDebounce,
		subs:   make(map[int]func(Result)),
	}
	for _, opt := range opts {
		opt(v)
	}
	base := v.logger
	v.logger = v.logger.With(logging.View(spec.Name))

	initial := FromQueryString(v.bar.Read(), spec)
	v.model = NewModel(spec, WithInitialState(initial), WithModelLogger(base))
	v.debouncer = NewDebouncer(v.model.SetSearch, WithClock(v.clock), WithDelay(v.delay))
	v.debouncer.Reset(initial.Search)
	v.unsubs = append(v.unsubs, v.model.OnChange(v.onStateChange))

	if v.source != nil {
		v.fetcher = NewFetcher(spec.Name, v.source,
			WithObserver(v.observer), WithFetcherLogger(v.logger))
		v.unsubs = append(v.unsubs, v.fetcher.Subscribe(func(Snapshot) { v.emit() }))
		v.fetch(v.model.State(), false)
	}
	return v, nil
}

// Spec returns the view declaration.
func (v *View) Spec() *Spec { return v.spec }

// State returns the committed state.
func (v *View) State() State { return v.model.State() }

// QueryString renders the current state for the address bar.
func (v *View) QueryString() string { return ToQueryString(v.model.State(), v.spec) }

// Remote reports whether rows come from a PageSource.
func (v *View) Remote() bool { return v.fetcher != nil }

// RequestParams returns the params the current state sends, scope included.
func (v *View) RequestParams() url.Values {
	return v.requestParams(v.model.State())
}

// OnResult registers fn for every change in what the view displays.
func (v *View) OnResult(fn func(Result)) (unsubscribe func()) {
	v.subMu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	v.subMu.Unlock()
	return func() {
		v.subMu.Lock()
		delete(v.subs, id)
		v.subMu.Unlock()
	}
}

// SetSearchInput records a keystroke. The committed search follows after the
// debounce delay.
func (v *View) SetSearchInput(text string) {
	v.debouncer.Input(text)
	v.emit()
}

// ConfirmSearch commits the typed text immediately.
func (v *View) ConfirmSearch() { v.debouncer.Confirm() }

// SetSearch commits text without debouncing.
func (v *View) SetSearch(text string) {
	v.debouncer.Reset(text)
	v.model.SetSearch(text)
}

func (v *View) SetFilter(key string, value FilterValue) { v.model.SetFilter(key, value) }

// ClearAll resets every filter, keeping search, sort and pagination size.
func (v *View) ClearAll() { v.model.ClearFilters() }

func (v *View) SetSort(field string) { v.model.SetSort(field) }

func (v *View) SetPagination(index, size int) { v.model.SetPagination(index, size) }

// Open replaces the whole state from an address-bar query, e.g. a saved view.
func (v *View) Open(query string) {
	next := FromQueryString(query, v.spec)
	v.debouncer.Reset(next.Search)
	v.model.Replace(next)
}

// SetRecords swaps the in-memory dataset of a local view.
func (v *View) SetRecords(records []Record) {
	v.mu.Lock()
	v.records = records
	v.gen++
	v.mu.Unlock()
	v.emit()
}

// Refresh re-requests the current page, or recomputes a local view.
func (v *View) Refresh() {
	if v.fetcher != nil {
		v.fetch(v.model.State(), true)
		return
	}
	v.emit()
}

// Wait blocks until in-flight remote requests resolve.
func (v *View) Wait() {
	if v.fetcher != nil {
		v.fetcher.Wait()
	}
}

// Result computes the current frame.
func (v *View) Result() Result {
	state := v.model.State()
	res := Result{
		State:         state,
		SearchInput:   v.debouncer.Value(),
		ActiveFilters: ActiveFilters(state, v.spec),
	}
	if v.fetcher != nil {
		snap := v.fetcher.Snapshot()
		res.Loading = snap.Loading
		res.Err = snap.Err
		if snap.Data != nil {
			res.Rows = snap.Data.Rows
			res.TotalCount = snap.Data.TotalCount
			res.PageCount = snap.Data.PageCount
		}
		return res
	}
	filtered := v.filtered(state)
	res.Rows = Paginate(filtered, state.Pagination)
	res.TotalCount = len(filtered)
	res.PageCount = PageCount(len(filtered), state.Pagination.PageSize)
	return res
}

// Close unmounts the view: the debounce timer is canceled and in-flight
// responses are discarded.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()

	v.debouncer.Close()
	for _, unsub := range v.unsubs {
		unsub()
	}
	if v.fetcher != nil {
		v.fetcher.Close()
	}
	v.subMu.Lock()
	v.subs = map[int]func(Result){}
	v.subMu.Unlock()
}

func (v *View) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

func (v *View) onStateChange(s State) {
	if v.isClosed() {
		return
	}
	v.bar.Write(ToQueryString(s, v.spec))
	if !v.debouncer.Pending() && v.debouncer.Value() != s.Search {
		v.debouncer.Reset(s.Search)
	}
	if v.fetcher != nil {
		v.fetch(s, false)
		return
	}
	v.emit()
}

func (v *View) requestParams(s State) url.Values {
	params := ToRequestParams(s, v.spec)
	for k, vals := range v.scope {
		params[k] = append([]string(nil), vals...)
	}
	return params
}

// fetch dispatches a request unless the params equal the last dispatched
// ones and force is false.
func (v *View) fetch(s State, force bool) {
	params := v.requestParams(s)
	key := params.Encode()

	v.mu.Lock()
	if v.closed || (!force && key == v.lastParams) {
		v.mu.Unlock()
		return
	}
	v.lastParams = key
	v.mu.Unlock()

	if dropped := DroppedSelections(s, v.spec); len(dropped) > 0 {
		v.logger.Debug("multi-value selections not sent to backend", slog.Any("filters", dropped))
	}
	v.fetcher.Fetch(params, s.Pagination.PageSize)
}

// filtered runs the local pipeline, reusing the last result while the
// dataset and the non-pagination state are unchanged. Results with an active
// time window depend on the clock and are never reused.
func (v *View) filtered(s State) []Record {
	keyState := s.Clone()
	keyState.Pagination = Pagination{PageSize: v.spec.defaultPageSize()}
	key := ToQueryString(keyState, v.spec)
	cacheable := !hasActiveWindow(s, v.spec)

	v.mu.Lock()
	if cacheable && v.memo.valid && v.memo.gen == v.gen && v.memo.key == key {
		rows := v.memo.rows
		v.mu.Unlock()
		return rows
	}
	records, gen := v.records, v.gen
	v.mu.Unlock()

	rows := Apply(records, s, v.spec, v.clock.Now())

	if cacheable {
		v.mu.Lock()
		if v.gen == gen {
			v.memo = localMemo{valid: true, gen: gen, key: key, rows: rows}
		}
		v.mu.Unlock()
	}
	return rows
}

// hasActiveWindow reports whether a window filter narrows s, counting
// declared defaults that the canonical state leaves out of Filters.
func hasActiveWindow(s State, spec *Spec) bool {
	for _, def := range spec.Filters {
		if def.Kind != KindWindow {
			continue
		}
		value, ok := s.Filter(spec, def.Key)
		if !ok {
			continue
		}
		if w, ok := value.(TimeWindow); ok && !w.IsZero() {
			return true
		}
	}
	return false
}

func (v *View) emit() {
	if v.isClosed() {
		return
	}
	v.subMu.Lock()
	subs := make([]func(Result), 0, len(v.subs))
	for id := 0; id < v.nextID; id++ {
		if fn, ok := v.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	v.subMu.Unlock()
	if len(subs) == 0 {
		return
	}
	res := v.Result()
	for _, fn := range subs {
		fn(res)
	}
}
