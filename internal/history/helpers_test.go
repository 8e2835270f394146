package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"chathistory/internal/kv"
)

var errInjected = errors.New("injected backend failure")

// faultyBackend отказывает на ключах, для которых срабатывает предикат.
type faultyBackend struct {
	kv.Backend
	failRead  func(key string) bool
	failWrite func(key string) bool
}

func (f *faultyBackend) Read(ctx context.Context, key string) (string, bool, error) {
	if f.failRead != nil && f.failRead(key) {
		return "", false, errInjected
	}
	return f.Backend.Read(ctx, key)
}

func (f *faultyBackend) Write(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.failWrite != nil && f.failWrite(key) {
		return errInjected
	}
	return f.Backend.Write(ctx, key, value, ttl)
}

func hasPrefix(prefix string) func(string) bool {
	return func(key string) bool { return strings.HasPrefix(key, prefix) }
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(backend kv.Backend, opts ...Option) *Store {
	return NewStore(backend, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func i64Ptr(i int64) *int64   { return &i }

func makeEntry(id string, ts int64, platform, user string) Entry {
	return Entry{
		ID:         id,
		Timestamp:  ts,
		Platform:   platform,
		UserID:     user,
		ChatID:     "chat-" + user,
		Request:    "question " + id,
		Response:   "answer " + id,
		Model:      strPtr("gpt-4o-mini"),
		ToolCalls:  []string{"search"},
		TokenUsage: intPtr(42),
	}
}

func ids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func equalIDs(got []Entry, want ...string) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}
