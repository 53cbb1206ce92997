// Package devserver is an in-memory admin API serving the paginated list
// contract the console consumes. It backs demos and end-to-end tests.
package devserver

import (
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/console/common/httputil"
	"github.com/telhawk-systems/console/common/logging"
	"github.com/telhawk-systems/console/common/middleware"
	"github.com/telhawk-systems/console/internal/metrics"
	"github.com/telhawk-systems/console/internal/seeder"
	"github.com/telhawk-systems/console/internal/views"
	"github.com/telhawk-systems/console/pkg/listview"
)

// DefaultMaxLimit caps the page size a client may request.
const DefaultMaxLimit = 100

// ParamTenant restricts rows to one tenant when present.
const ParamTenant = "tenant_id"

// Server holds one dataset per catalog view.
type Server struct {
	catalog  *views.Catalog
	maxLimit int
	logger   *logging.Logger
	clock    clock.Clock
	cors     middleware.CORSConfig

	mu    sync.RWMutex
	data  map[string][]listview.Record
	specs map[string]*listview.Spec
}

// Option configures a Server.
type Option func(*Server)

// WithMaxLimit caps the limit param.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for time-window filters and log emission.
func WithClock(c clock.Clock) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithCORS replaces the default CORS policy.
func WithCORS(cfg middleware.CORSConfig) Option {
	return func(s *Server) { s.cors = cfg }
}

// New creates a Server with empty datasets for every view in catalog.
func New(catalog *views.Catalog, opts ...Option) *Server {
	s := &Server{
		catalog:  catalog,
		maxLimit: DefaultMaxLimit,
		logger:   logging.Default(),
		clock:    clock.New(),
		cors:     middleware.DefaultCORSConfig(),
		data:     map[string][]listview.Record{},
		specs:    map[string]*listview.Spec{},
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, v := range catalog.All() {
		s.specs[v.Resource] = v.Spec()
		s.data[v.Resource] = nil
	}
	return s
}

// Seed fills every dataset with n generated rows.
func (s *Server) Seed(gen *seeder.Generator, n int) error {
	for _, v := range s.catalog.All() {
		rows, err := gen.Rows(v.Resource, n)
		if err != nil {
			return err
		}
		s.SetRows(v.Resource, rows)
	}
	return nil
}

// SetRows replaces the dataset of resource.
func (s *Server) SetRows(resource string, rows []map[string]any) {
	records := make([]listview.Record, len(rows))
	for i, row := range rows {
		records[i] = listview.Fields(row)
	}
	s.mu.Lock()
	s.data[resource] = records
	s.mu.Unlock()
}

// AppendRow adds one row to resource.
func (s *Server) AppendRow(resource string, row map[string]any) {
	s.mu.Lock()
	s.data[resource] = append(s.data[resource], listview.Fields(row))
	s.mu.Unlock()
}

// Count returns how many rows resource holds.
func (s *Server) Count(resource string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[resource])
}

// Handler returns the HTTP handler with request-ID and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/{resource}", s.List)
	mux.HandleFunc("GET /healthz", s.Health)
	mux.Handle("GET /metrics", promhttp.Handler())
	return middleware.RequestID(middleware.CORS(s.cors)(mux))
}

// Health reports liveness.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// List serves one page of a resource. It honors the same params the
// console sends: page, limit, sort_by, sort_order, search, every declared
// filter and the tenant scope.
func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	start := s.clock.Now()
	resource := r.PathValue("resource")
	status := http.StatusOK
	log := s.logger.WithContext(r.Context())
	defer func() {
		elapsed := s.clock.Since(start)
		metrics.ObserveListRequest(resource, status, elapsed)
		log.Debug("list request",
			logging.Method(r.Method),
			logging.Path(r.URL.Path),
			logging.Status(status),
			logging.Duration(elapsed))
	}()

	s.mu.RLock()
	spec, ok := s.specs[resource]
	records := s.data[resource]
	s.mu.RUnlock()
	if !ok {
		status = http.StatusNotFound
		httputil.WriteJSONAPINotFoundError(w, resource)
		return
	}

	q := r.URL.Query()
	if raw := q.Get(listview.ParamLimit); raw != "" {
		limit := httputil.ParseIntParam(raw, 0)
		if limit <= 0 || limit > s.maxLimit {
			status = http.StatusBadRequest
			httputil.WriteJSONAPIValidationError(w, "limit must be between 1 and "+strconv.Itoa(s.maxLimit))
			return
		}
		if !spec.AllowsPageSize(limit) {
			spec = withPageSize(spec, limit)
		}
	}

	state := listview.FromRequestParams(q, spec)
	if tenant := q.Get(ParamTenant); tenant != "" {
		records = scopeToTenant(records, tenant)
		log = log.With(logging.Tenant(tenant))
	}

	rows := listview.Apply(records, state, spec, s.clock.Now())
	page := listview.Paginate(rows, state.Pagination)

	items := make([]httputil.Resource, len(page))
	for i, rec := range page {
		items[i] = httputil.NewResource(resource, toRow(rec))
	}
	httputil.WriteJSONAPICollection(w, status, items, &httputil.Pagination{
		Page:  state.Pagination.PageIndex + 1,
		Limit: state.Pagination.PageSize,
		Total: len(rows),
	})
}

// withPageSize returns a copy of spec that also accepts size, so any limit
// within the server cap is served.
func withPageSize(spec *listview.Spec, size int) *listview.Spec {
	cp := *spec
	cp.PageSizes = append(slices.Clone(spec.PageSizes), size)
	return &cp
}

func scopeToTenant(records []listview.Record, tenant string) []listview.Record {
	set := listview.NewMembership(tenant)
	out := make([]listview.Record, 0, len(records))
	for _, r := range records {
		if listview.MatchMembership(r, ParamTenant, set) {
			out = append(out, r)
		}
	}
	return out
}

func toRow(rec listview.Record) map[string]any {
	if f, ok := rec.(listview.Fields); ok {
		return f
	}
	return map[string]any{}
}

// NewHTTPServer wraps h with the configured timeouts.
func NewHTTPServer(addr string, h http.Handler, read, write, idle time.Duration) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}
}
