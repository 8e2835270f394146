package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chathistory/internal/kv"
)

// indexMaintainer ведёт индексы. append это чтение, добавление и полная
// перезапись значения; атомарности между чтением и записью нет, если не
// включены locks.
type indexMaintainer struct {
	backend kv.Backend
	logger  *slog.Logger
	locks   *keyedMutex
}

func (m *indexMaintainer) load(ctx context.Context, key string) Result[Index] {
	raw, found, err := m.backend.Read(ctx, key)
	if err != nil {
		return Failure[Index](&BackendError{Op: "read", Key: key, Err: err})
	}
	if !found {
		return NotFound[Index]()
	}
	ix, err := decodeIndex(raw)
	if err != nil {
		return Failure[Index](&SerializationError{Key: key, Err: err})
	}
	return OK(ix)
}

// append добавляет rec в индекс key и перезаписывает его с ttl.
// Нечитаемый индекс не перезаписывается: ссылка теряется, содержимое остаётся для разбора.
func (m *indexMaintainer) append(ctx context.Context, key string, rec Record, ttl time.Duration) error {
	if m.locks != nil {
		unlock := m.locks.lock(key)
		defer unlock()
	}

	var current Index
	res := m.load(ctx, key)
	switch res.Status {
	case StatusOK:
		current = res.Value
	case StatusFailure:
		return res.Err
	}

	next := current.With(rec)
	payload, err := next.encode()
	if err != nil {
		return &SerializationError{Key: key, Err: err}
	}
	if err := m.backend.Write(ctx, key, payload, ttl); err != nil {
		return &BackendError{Op: "write", Key: key, Err: err}
	}
	return nil
}

// keyedMutex мьютекс на ключ; запись удаляется, когда ключ никто не держит.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyLock)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
