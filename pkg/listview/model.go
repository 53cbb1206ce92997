package listview

import (
	"log/slog"
	"sync"

	"github.com/telhawk-systems/console/common/logging"
)

// Model owns the State of one list view. All mutation goes through its
// reducers; invalid input is logged and ignored.
type Model struct {
	spec   *Spec
	logger *slog.Logger

	// notifyMu serializes change delivery so listeners observe states in
	// mutation order. It is always taken before mu.
	notifyMu sync.Mutex
	mu       sync.RWMutex
	state    State

	nextID    int
	listeners map[int]func(State)
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithModelLogger sets the logger used for invalid-transition warnings.
func WithModelLogger(l *slog.Logger) ModelOption {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithInitialState seeds the model, e.g. from a parsed address bar.
func WithInitialState(s State) ModelOption {
	return func(m *Model) {
		m.state = s.canonical(m.spec)
	}
}

// NewModel creates a Model holding DefaultState(spec).
func NewModel(spec *Spec, opts ...ModelOption) *Model {
	m := &Model{
		spec:      spec,
		logger:    slog.Default(),
		state:     DefaultState(spec),
		listeners: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logging.View(spec.Name))
	return m
}

// Spec returns the view declaration.
func (m *Model) Spec() *Spec { return m.spec }

// State returns a copy of the current state.
func (m *Model) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// OnChange registers fn to receive every new state. Listeners run
// synchronously and must not call the Model's reducers.
func (m *Model) OnChange(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// SetSearch stores text untrimmed and returns to the first page.
func (m *Model) SetSearch(text string) {
	m.update(func(s *State) {
		s.Search = text
		s.Pagination.PageIndex = 0
	})
}

// SetFilter sets one declared filter. A value equal to the declared default
// removes the entry. A nil value resets the filter to its default.
func (m *Model) SetFilter(key string, value FilterValue) {
	def, ok := m.spec.Filter(key)
	if !ok {
		m.logger.Warn("ignoring unknown filter key", logging.Filter(key))
		return
	}
	normalized, ok := normalizeValue(def, value)
	if !ok {
		m.logger.Warn("ignoring invalid filter value",
			logging.Filter(key),
			slog.String("kind", def.Kind.String()))
		return
	}
	m.update(func(s *State) {
		if filterValuesEqual(normalized, def.DefaultValue()) {
			delete(s.Filters, key)
		} else {
			s.Filters[key] = normalized
		}
		s.Pagination.PageIndex = 0
	})
}

// ClearFilters resets every filter to its default. Search, sort and page
// size are kept.
func (m *Model) ClearFilters() {
	m.update(func(s *State) {
		s.Filters = map[string]FilterValue{}
		s.Pagination.PageIndex = 0
	})
}

// SetSort cycles a column: ascending, then descending, then unsorted.
// Choosing a different column starts it ascending.
func (m *Model) SetSort(field string) {
	if !m.spec.Sortable(field) {
		m.logger.Warn("ignoring unsortable field", slog.String("field", field))
		return
	}
	m.update(func(s *State) {
		switch {
		case s.Sort == nil || s.Sort.Field != field:
			s.Sort = &Sort{Field: field}
		case !s.Sort.Descending:
			s.Sort = &Sort{Field: field, Descending: true}
		default:
			s.Sort = nil
		}
		s.Pagination.PageIndex = 0
	})
}

// SetPagination moves to a page and page size. The page index is not
// clamped to the result count, which the model does not know.
func (m *Model) SetPagination(index, size int) {
	if index < 0 {
		m.logger.Warn("ignoring negative page index", slog.Int("page_index", index))
		return
	}
	if !m.spec.AllowsPageSize(size) {
		m.logger.Warn("ignoring page size outside allow-list", slog.Int("page_size", size))
		return
	}
	m.update(func(s *State) {
		s.Pagination = Pagination{PageIndex: index, PageSize: size}
	})
}

// Replace swaps in a whole state, e.g. when opening a saved view.
func (m *Model) Replace(next State) {
	if !m.spec.AllowsPageSize(next.Pagination.PageSize) || next.Pagination.PageIndex < 0 {
		m.logger.Warn("ignoring invalid replacement state",
			slog.Int("page_index", next.Pagination.PageIndex),
			slog.Int("page_size", next.Pagination.PageSize))
		return
	}
	m.update(func(s *State) {
		*s = next.canonical(m.spec)
	})
}

func (m *Model) update(mutate func(*State)) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	next := m.state.Clone()
	mutate(&next)
	if next.Equal(m.state) {
		m.mu.Unlock()
		return
	}
	m.state = next
	listeners := make([]func(State), 0, len(m.listeners))
	for id := 0; id < m.nextID; id++ {
		if l, ok := m.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(next.Clone())
	}
}
