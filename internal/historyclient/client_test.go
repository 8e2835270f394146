package historyclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"chathistory/internal/history"
	"chathistory/internal/historyapi"
	"chathistory/internal/httpserver"
	"chathistory/internal/kv"
	"chathistory/internal/retry"
	"chathistory/internal/transport"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPolicy(attempts int) retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = attempts
	p.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return p
}

func newServer(t *testing.T, apiKey string) (*httptest.Server, *history.Store) {
	t.Helper()
	logger := quietLogger()
	store := history.NewStore(kv.NewMemoryBackend(), history.WithLogger(logger))
	router := httpserver.NewRouter(httpserver.RouterDeps{
		Logger:         logger,
		HistoryHandler: historyapi.NewHandler(historyapi.Deps{Store: store, Logger: logger}),
		APIKey:         apiKey,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, store
}

func newClient(srv *httptest.Server, apiKey string) *Client {
	return New(Config{BaseURL: srv.URL + "/", APIKey: apiKey}, transport.NewHTTPClient(5*time.Second), fastPolicy(3), quietLogger())
}

func TestSaveAndRead(t *testing.T) {
	srv, _ := newServer(t, "secret")
	c := newClient(srv, "secret")
	ctx := context.Background()

	model := "gpt"
	id, err := c.Save(ctx, history.Entry{
		Timestamp: 10,
		Platform:  "telegram",
		UserID:    "42",
		Request:   "hi",
		Response:  "hello",
		Model:     &model,
	}, time.Hour)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated task id")
	}

	got, err := c.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Request != "hi" || got.Model == nil || *got.Model != "gpt" {
		t.Fatalf("unexpected entry %+v", got)
	}

	list, err := c.ListByUser(ctx, "telegram", "42", 10, 0)
	if err != nil || len(list) != 1 || list[0].ID != id {
		t.Fatalf("unexpected user list %v (err %v)", list, err)
	}

	global, err := c.ListGlobal(ctx, 0, 0)
	if err != nil || len(global) != 1 {
		t.Fatalf("unexpected global list %v (err %v)", global, err)
	}
}

func TestGetMissing(t *testing.T) {
	srv, _ := newServer(t, "")
	c := newClient(srv, "")

	if _, err := c.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveWithoutKey(t *testing.T) {
	srv, _ := newServer(t, "secret")
	c := newClient(srv, "")

	_, err := c.Save(context.Background(), history.Entry{Platform: "p", UserID: "u"}, 0)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
}

func TestSearchPassesFilters(t *testing.T) {
	srv, store := newServer(t, "")
	c := newClient(srv, "")
	ctx := context.Background()

	for i, ts := range []int64{100, 200, 300} {
		e := history.Entry{ID: string(rune('a' + i)), Timestamp: ts, Platform: "p", UserID: "u"}
		if !store.Save(ctx, e, 0) {
			t.Fatalf("seed failed")
		}
	}

	start, end := int64(150), int64(250)
	got, err := c.Search(ctx, history.SearchQuery{Platform: "p", UserID: "u", StartTime: &start, EndTime: &end, Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected [b], got %v", got)
	}
}

func TestReadRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		httpserver.WriteJSON(w, http.StatusOK, historyapi.ListResponse{Entries: []history.Entry{{ID: "x"}}, Count: 1})
	}))
	defer srv.Close()

	c := newClient(srv, "")
	got, err := c.ListGlobal(context.Background(), 5, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls and %v", calls.Load(), got)
	}
}

func TestSaveDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newClient(srv, "")
	if _, err := c.Save(context.Background(), history.Entry{Platform: "p", UserID: "u"}, 0); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single attempt, got %d", calls.Load())
	}
}
