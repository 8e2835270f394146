package history

import (
	"context"
	"log/slog"
	"time"

	"chathistory/internal/kv"
)

// entryStore хранит Entry под ключом entry:{task_id}.
type entryStore struct {
	backend kv.Backend
	logger  *slog.Logger
}

func (s *entryStore) put(ctx context.Context, e Entry, ttl time.Duration) error {
	key := entryKey(e.ID)
	payload, err := encodeEntry(e)
	if err != nil {
		return &SerializationError{Key: key, Err: err}
	}
	if err := s.backend.Write(ctx, key, payload, ttl); err != nil {
		return &BackendError{Op: "write", Key: key, Err: err}
	}
	return nil
}

func (s *entryStore) fetch(ctx context.Context, id string) Result[Entry] {
	key := entryKey(id)
	raw, found, err := s.backend.Read(ctx, key)
	if err != nil {
		return Failure[Entry](&BackendError{Op: "read", Key: key, Err: err})
	}
	if !found {
		return NotFound[Entry]()
	}
	e, err := decodeEntry(raw)
	if err != nil {
		return Failure[Entry](&SerializationError{Key: key, Err: err})
	}
	return OK(e)
}
