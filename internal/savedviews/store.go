// Package savedviews persists named list-view queries in Redis so an
// operator can reopen a filtered, sorted view later.
//
// Redis key structure:
//
//	{prefix}:saved:{view}   - Hash of name -> JSON SavedView
//	{prefix}:recent:{view}  - List of recently opened query strings, newest first
package savedviews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/console/common/logging"
	"github.com/telhawk-systems/console/common/messaging"
)

// DefaultRecentLimit is how many recent queries are kept per view.
const DefaultRecentLimit = 10

var (
	ErrSavedViewNotFound = errors.New("saved view not found")
	ErrInvalidName       = errors.New("saved view name is required")
)

// SavedView is a named address-bar query for one view.
type SavedView struct {
	ID        string    `json:"id"`
	View      string    `json:"view"`
	Name      string    `json:"name"`
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChangeEvent is published after a saved view is written or removed.
type ChangeEvent struct {
	Action string    `json:"action"` // saved or deleted
	View   string    `json:"view"`
	Name   string    `json:"name"`
	At     time.Time `json:"at"`
}

// Store reads and writes saved views.
type Store struct {
	redis       *redis.Client
	prefix      string
	recentLimit int64
	publisher   messaging.Publisher
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPublisher announces every change on messaging.SubjectSavedViewChanged.
func WithPublisher(p messaging.Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

// WithRecentLimit sets how many recent queries are kept per view.
func WithRecentLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.recentLimit = int64(n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore connects to redisURL and pings it.
func NewStore(redisURL, prefix string, opts ...Option) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewStoreFromRedis(client, prefix, opts...), nil
}

// NewStoreFromRedis wraps an existing connection.
func NewStoreFromRedis(client *redis.Client, prefix string, opts ...Option) *Store {
	if prefix == "" {
		prefix = "console"
	}
	s := &Store{
		redis:       client,
		prefix:      prefix,
		recentLimit: DefaultRecentLimit,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.redis.Close()
}

func (s *Store) savedKey(view string) string {
	return fmt.Sprintf("%s:saved:%s", s.prefix, view)
}

func (s *Store) recentKey(view string) string {
	return fmt.Sprintf("%s:recent:%s", s.prefix, view)
}

// Save creates or overwrites the named query. Overwriting keeps the ID and
// creation time.
func (s *Store) Save(ctx context.Context, view, name, query string) (SavedView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return SavedView{}, ErrInvalidName
	}
	now := s.now().UTC()

	sv := SavedView{
		ID:        uuid.NewString(),
		View:      view,
		Name:      name,
		Query:     strings.TrimPrefix(query, "?"),
		CreatedAt: now,
		UpdatedAt: now,
	}
	existing, err := s.Get(ctx, view, name)
	switch {
	case err == nil:
		sv.ID = existing.ID
		sv.CreatedAt = existing.CreatedAt
	case !errors.Is(err, ErrSavedViewNotFound):
		return SavedView{}, err
	}

	data, err := json.Marshal(sv)
	if err != nil {
		return SavedView{}, fmt.Errorf("encode saved view: %w", err)
	}
	if err := s.redis.HSet(ctx, s.savedKey(view), name, data).Err(); err != nil {
		return SavedView{}, fmt.Errorf("failed to save view %s/%s: %w", view, name, err)
	}
	s.announce(ctx, "saved", view, name)
	return sv, nil
}

// Get returns one saved view.
func (s *Store) Get(ctx context.Context, view, name string) (SavedView, error) {
	raw, err := s.redis.HGet(ctx, s.savedKey(view), strings.TrimSpace(name)).Result()
	if errors.Is(err, redis.Nil) {
		return SavedView{}, fmt.Errorf("%w: %s/%s", ErrSavedViewNotFound, view, name)
	}
	if err != nil {
		return SavedView{}, fmt.Errorf("failed to get view %s/%s: %w", view, name, err)
	}
	var sv SavedView
	if err := json.Unmarshal([]byte(raw), &sv); err != nil {
		return SavedView{}, fmt.Errorf("decode saved view %s/%s: %w", view, name, err)
	}
	return sv, nil
}

// List returns every saved view of view, ordered by name. Corrupt entries
// are skipped.
func (s *Store) List(ctx context.Context, view string) ([]SavedView, error) {
	all, err := s.redis.HGetAll(ctx, s.savedKey(view)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list views for %s: %w", view, err)
	}
	out := make([]SavedView, 0, len(all))
	for name, raw := range all {
		var sv SavedView
		if err := json.Unmarshal([]byte(raw), &sv); err != nil {
			s.logger.Warn("skipping corrupt saved view",
				logging.View(view), slog.String("name", name), logging.Error(err))
			continue
		}
		out = append(out, sv)
	}
	slices.SortFunc(out, func(a, b SavedView) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Delete removes a saved view.
func (s *Store) Delete(ctx context.Context, view, name string) error {
	n, err := s.redis.HDel(ctx, s.savedKey(view), strings.TrimSpace(name)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete view %s/%s: %w", view, name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrSavedViewNotFound, view, name)
	}
	s.announce(ctx, "deleted", view, name)
	return nil
}

// PushRecent records query as the most recently opened one for view. A
// query already in the list moves to the front.
func (s *Store) PushRecent(ctx context.Context, view, query string) error {
	query = strings.TrimPrefix(query, "?")
	key := s.recentKey(view)

	pipe := s.redis.TxPipeline()
	pipe.LRem(ctx, key, 0, query)
	pipe.LPush(ctx, key, query)
	pipe.LTrim(ctx, key, 0, s.recentLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record recent query for %s: %w", view, err)
	}
	return nil
}

// Recent returns up to n recent queries for view, newest first.
func (s *Store) Recent(ctx context.Context, view string, n int) ([]string, error) {
	if n <= 0 || int64(n) > s.recentLimit {
		n = int(s.recentLimit)
	}
	out, err := s.redis.LRange(ctx, s.recentKey(view), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent queries for %s: %w", view, err)
	}
	return out, nil
}

func (s *Store) announce(ctx context.Context, action, view, name string) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(ChangeEvent{Action: action, View: view, Name: name, At: s.now().UTC()})
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, messaging.SubjectSavedViewChanged, data); err != nil {
		s.logger.Warn("failed to announce saved view change",
			logging.View(view), slog.String("name", name), logging.Error(err))
	}
}
