package history

import (
	"context"
	"log/slog"
	"time"

	"chathistory/internal/kv"
)

const (
	// DefaultTTL срок жизни записей и индексов (30 дней).
	DefaultTTL = 30 * 24 * time.Hour

	DefaultUserLimit   = 50
	DefaultGlobalLimit = 100
	DefaultSearchLimit = 50
	MaxPageLimit       = 100

	// searchOversample во сколько раз больше записей глобального индекса
	// читает Search, чтобы после фильтров осталось limit.
	searchOversample = 2
)

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock задаёт источник времени для записей без Timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithIndexLocking сериализует обновления одного индекса внутри процесса.
// Между процессами гонка остаётся.
func WithIndexLocking() Option {
	return func(s *Store) {
		s.locks = newKeyedMutex()
	}
}

// Store публичная граница истории. Все методы безопасны для конкурентного
// использования и никогда не возвращают ошибок.
type Store struct {
	entries    *entryStore
	indexes    *indexMaintainer
	query      *queryEngine
	logger     *slog.Logger
	now        func() time.Time
	defaultTTL time.Duration
	locks      *keyedMutex
}

func NewStore(backend kv.Backend, opts ...Option) *Store {
	s := &Store{
		logger:     slog.Default(),
		now:        time.Now,
		defaultTTL: DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.entries = &entryStore{backend: backend, logger: s.logger}
	s.indexes = &indexMaintainer{backend: backend, logger: s.logger, locks: s.locks}
	s.query = &queryEngine{entries: s.entries, indexes: s.indexes, logger: s.logger}
	return s
}

// Save сохраняет запись и добавляет её в индекс пользователя и глобальный.
// Результат отражает только запись самой Entry: сбой обновления индекса
// логируется, но не откатывает запись и не влияет на второй индекс.
// ttl <= 0 означает DefaultTTL (или WithDefaultTTL).
func (s *Store) Save(ctx context.Context, e Entry, ttl time.Duration) bool {
	e = e.normalized()
	if e.Timestamp == 0 {
		e.Timestamp = s.now().Unix()
	}
	if err := e.validate(); err != nil {
		logOutcome(s.logger, "save", entryKey(e.ID), err)
		return false
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	if err := s.entries.put(ctx, e, ttl); err != nil {
		logOutcome(s.logger, "save", entryKey(e.ID), err)
		return false
	}

	rec := Record{ID: e.ID, Timestamp: e.Timestamp}
	for _, key := range []string{UserIndexKey(e.Platform, e.UserID), GlobalIndexKey} {
		if err := s.indexes.append(ctx, key, rec, ttl); err != nil {
			s.logger.Warn("history index update failed",
				slog.String("key", key),
				slog.String("task_id", e.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return true
}

// Get запись по task_id. Отсутствие, истечение и порча неразличимы.
func (s *Store) Get(ctx context.Context, id string) (Entry, bool) {
	if id == "" {
		return Entry{}, false
	}
	id = validUTF8(id)
	res := s.entries.fetch(ctx, id)
	if res.Status != StatusOK {
		logOutcome(s.logger, "get", entryKey(id), res.Err)
	}
	return res.Get()
}

// ListByUser история пользователя, от новых к старым.
func (s *Store) ListByUser(ctx context.Context, platform, userID string, limit, offset int) []Entry {
	return s.list(ctx, "list_by_user", UserIndexKey(platform, userID), clampLimit(limit, DefaultUserLimit), offset, ownedBy(platform, userID))
}

// ownedBy отсекает записи, которые были пересохранены под другим
// пользователем: старый индекс ещё ссылается на них, но они уже чужие.
func ownedBy(platform, userID string) func(Entry) bool {
	return func(e Entry) bool {
		return e.Platform == platform && e.UserID == userID
	}
}

// ListGlobal история всех пользователей, от новых к старым.
func (s *Store) ListGlobal(ctx context.Context, limit, offset int) []Entry {
	return s.list(ctx, "list_global", GlobalIndexKey, clampLimit(limit, DefaultGlobalLimit), offset, nil)
}

func (s *Store) list(ctx context.Context, op, key string, limit, offset int, keep func(Entry) bool) []Entry {
	if offset < 0 {
		offset = 0
	}
	res := s.query.listByIndex(ctx, key, limit, offset)
	entries, ok := res.Get()
	if !ok {
		logOutcome(s.logger, op, key, res.Err)
		return []Entry{}
	}
	if keep == nil {
		return entries
	}

	out := entries[:0]
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
			continue
		}
		s.logger.Debug("history entry owned by another index skipped",
			slog.String("key", key),
			slog.String("task_id", e.ID),
		)
	}
	return out
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}
