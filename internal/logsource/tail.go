package logsource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/telhawk-systems/console/common/messaging"
	"github.com/telhawk-systems/console/pkg/listview"
)

// DefaultTailBuffer is how many log rows a Tail keeps when none is set.
const DefaultTailBuffer = 1000

// Tail keeps the most recent log rows published on a subject. It is the
// in-memory dataset of a local logs view.
type Tail struct {
	sub     messaging.Subscriber
	subject string
	limit   int
	logger  *slog.Logger

	mu       sync.Mutex
	rows     []listview.Record
	dropped  int
	handle   messaging.Subscription
	onChange func([]listview.Record)
}

// TailOption configures a Tail.
type TailOption func(*Tail)

// WithBuffer bounds the number of rows kept.
func WithBuffer(n int) TailOption {
	return func(t *Tail) {
		if n > 0 {
			t.limit = n
		}
	}
}

// WithTailLogger sets the logger.
func WithTailLogger(l *slog.Logger) TailOption {
	return func(t *Tail) {
		if l != nil {
			t.logger = l
		}
	}
}

// OnChange registers fn to receive a snapshot after every accepted row.
func OnChange(fn func([]listview.Record)) TailOption {
	return func(t *Tail) { t.onChange = fn }
}

// NewTail creates a Tail on subject. Seed rows, e.g. from Recent, are kept
// ahead of streamed ones.
func NewTail(sub messaging.Subscriber, subject string, seed []listview.Record, opts ...TailOption) *Tail {
	t := &Tail{
		sub:     sub,
		subject: subject,
		limit:   DefaultTailBuffer,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.rows = slices.Clone(seed)
	t.trimLocked()
	return t
}

// Start subscribes to the subject.
func (t *Tail) Start() error {
	handle, err := t.sub.Subscribe(t.subject, t.receive)
	if err != nil {
		return fmt.Errorf("tail %s: %w", t.subject, err)
	}
	t.mu.Lock()
	t.handle = handle
	t.mu.Unlock()
	t.logger.Debug("tailing logs", slog.String("subject", t.subject))
	return nil
}

// Stop unsubscribes. Rows already received are kept.
func (t *Tail) Stop() error {
	t.mu.Lock()
	handle := t.handle
	t.handle = nil
	t.mu.Unlock()
	if handle == nil {
		return nil
	}
	return handle.Unsubscribe()
}

// Records returns a copy of the buffered rows, oldest first.
func (t *Tail) Records() []listview.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.rows)
}

// Dropped reports how many rows were evicted to respect the buffer bound.
func (t *Tail) Dropped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

func (t *Tail) receive(_ context.Context, msg *messaging.Message) error {
	var doc map[string]any
	if err := json.Unmarshal(msg.Data, &doc); err != nil {
		return fmt.Errorf("decode log row: %w", err)
	}
	if _, ok := doc["tenant_id"]; !ok {
		if tenant := tenantFromSubject(msg.Subject, t.subject); tenant != "" {
			doc["tenant_id"] = tenant
		}
	}

	t.mu.Lock()
	t.rows = append(t.rows, normalizeLog(doc))
	t.trimLocked()
	var snapshot []listview.Record
	if t.onChange != nil {
		snapshot = slices.Clone(t.rows)
	}
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
	return nil
}

func (t *Tail) trimLocked() {
	if over := len(t.rows) - t.limit; over > 0 {
		t.rows = slices.Delete(t.rows, 0, over)
		t.dropped += over
	}
}

// tenantFromSubject extracts the tenant token of console.logs.<tenant>
// when subscribed with the console.logs.> wildcard.
func tenantFromSubject(subject, pattern string) string {
	base, ok := strings.CutSuffix(pattern, ".>")
	if !ok {
		return ""
	}
	rest, ok := strings.CutPrefix(subject, base+".")
	if !ok {
		return ""
	}
	return rest
}
