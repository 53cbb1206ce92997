package listview

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/telhawk-systems/console/common/logging"
	"github.com/telhawk-systems/console/common/middleware"
)

// Page is what a PageSource returns for one request.
type Page struct {
	Rows  []Record
	Total int
}

// PageSource is a paginated-list endpoint.
type PageSource interface {
	FetchPage(ctx context.Context, params url.Values) (Page, error)
}

// PageSourceFunc adapts a function to PageSource.
type PageSourceFunc func(ctx context.Context, params url.Values) (Page, error)

// FetchPage implements PageSource.
func (f PageSourceFunc) FetchPage(ctx context.Context, params url.Values) (Page, error) {
	return f(ctx, params)
}

// ResultPage is one page of rows ready for display.
type ResultPage struct {
	Rows       []Record
	TotalCount int
	PageCount  int
}

// Snapshot is the observable state of a Fetcher. Data is kept while a newer
// request is loading and after it fails.
type Snapshot struct {
	Loading bool
	Err     error
	Data    *ResultPage
	Seq     uint64
}

// Observer receives fetch lifecycle events, typically for metrics.
type Observer interface {
	FetchStarted(view string)
	FetchFinished(view string, elapsed time.Duration, err error)
	FetchDiscarded(view string)
}

type nopObserver struct{}

func (nopObserver) FetchStarted(string)                        {}
func (nopObserver) FetchFinished(string, time.Duration, error) {}
func (nopObserver) FetchDiscarded(string)                      {}

// Fetcher issues page requests and applies last-request-wins: a response
// only lands if no newer request was started after it.
type Fetcher struct {
	view     string
	source   PageSource
	observer Observer
	logger   *slog.Logger
	now      func() time.Time

	base   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	snap   Snapshot
	closed bool

	nextID int
	subs   map[int]func(Snapshot)
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithObserver installs a lifecycle observer.
func WithObserver(o Observer) FetcherOption {
	return func(f *Fetcher) {
		if o != nil {
			f.observer = o
		}
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher creates a Fetcher for one view.
func NewFetcher(view string, source PageSource, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		view:     view,
		source:   source,
		observer: nopObserver{},
		logger:   slog.Default(),
		now:      time.Now,
		subs:     make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.base, f.stop = context.WithCancel(context.Background())
	return f
}

// Fetch dispatches a request for params without blocking. Any earlier
// request still in flight is canceled and its result will be discarded.
// It returns the request's sequence number.
func (f *Fetcher) Fetch(params url.Values, pageSize int) uint64 {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0
	}
	if f.cancel != nil {
		f.cancel()
	}
	f.seq++
	seq := f.seq
	ctx, cancel := context.WithCancel(f.base)
	f.cancel = cancel
	ctx, reqID := middleware.EnsureRequestID(ctx)
	f.snap = Snapshot{Loading: true, Data: f.snap.Data, Seq: seq}
	snap := f.snap
	f.wg.Add(1)
	f.mu.Unlock()

	f.logger.Debug("dispatching page request",
		logging.Seq(seq),
		logging.RequestID(reqID),
		logging.Query(params.Encode()))
	f.observer.FetchStarted(f.view)
	f.publish(snap)

	go f.run(ctx, cancel, seq, params, pageSize)
	return seq
}

func (f *Fetcher) run(ctx context.Context, cancel context.CancelFunc, seq uint64, params url.Values, pageSize int) {
	defer f.wg.Done()
	defer cancel()

	start := f.now()
	page, err := f.source.FetchPage(ctx, params)
	elapsed := f.now().Sub(start)

	f.mu.Lock()
	if f.closed || seq != f.seq {
		f.mu.Unlock()
		f.observer.FetchDiscarded(f.view)
		f.logger.Debug("discarding stale response", logging.Seq(seq))
		return
	}
	f.cancel = nil
	if err != nil {
		f.snap = Snapshot{Err: err, Data: f.snap.Data, Seq: seq}
	} else {
		f.snap = Snapshot{
			Data: &ResultPage{
				Rows:       page.Rows,
				TotalCount: page.Total,
				PageCount:  PageCount(page.Total, pageSize),
			},
			Seq: seq,
		}
	}
	snap := f.snap
	f.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		f.logger.Warn("page request failed", logging.Seq(seq), logging.Error(err))
	}
	f.observer.FetchFinished(f.view, elapsed, err)
	f.publish(snap)
}

// Snapshot returns the current state.
func (f *Fetcher) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

// Subscribe registers fn as a change signal. Delivery happens on the
// goroutine that produced the snapshot; two deliveries may race, so readers
// that need the latest state call Snapshot.
func (f *Fetcher) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *Fetcher) publish(snap Snapshot) {
	f.mu.Lock()
	if f.closed || snap.Seq != f.seq {
		f.mu.Unlock()
		return
	}
	subs := make([]func(Snapshot), 0, len(f.subs))
	for id := 0; id < f.nextID; id++ {
		if fn, ok := f.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// Wait blocks until every dispatched request has resolved.
func (f *Fetcher) Wait() {
	f.wg.Wait()
}

// Close cancels in-flight requests. Their results are discarded.
func (f *Fetcher) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.subs = map[int]func(Snapshot){}
	f.mu.Unlock()
	f.stop()
	f.wg.Wait()
}
