package retry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type recordSleeper struct {
	delays []time.Duration
}

func (s *recordSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func testPolicy(attempts int, sleep Sleeper, jitter float64) Policy {
	return Policy{
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       8 * time.Second,
		Multiplier:     2.0,
		MaxAttempts:    attempts,
		JitterFraction: 0.30,
		SnippetLimit:   200,
		Sleep:          sleep,
		Now:            time.Now,
		Rand:           func() float64 { return jitter },
	}
}

func doRequest(t *testing.T, client *http.Client, url string) func(ctx context.Context) (*http.Response, []byte, error) {
	t.Helper()
	return func(ctx context.Context) (*http.Response, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp, nil, err
		}
		return resp, body, nil
	}
}

func TestDoHTTP429WithJitterRange(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("rate limit"))
	}))
	t.Cleanup(server.Close)

	sleep := &recordSleeper{}
	_, _, err := DoHTTP(context.Background(), testPolicy(2, sleep.Sleep, 0.0), nil, doRequest(t, server.Client(), server.URL))
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(sleep.delays) != 1 {
		t.Fatalf("expected 1 sleep, got %d", len(sleep.delays))
	}
	if d := sleep.delays[0]; d < 350*time.Millisecond || d > 650*time.Millisecond {
		t.Fatalf("delay out of jitter range: %s", d)
	}
}

func TestDoHTTPHonoursRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	sleep := &recordSleeper{}
	_, _, err := DoHTTP(context.Background(), testPolicy(2, sleep.Sleep, 0.5), nil, doRequest(t, server.Client(), server.URL))
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if len(sleep.delays) != 1 || sleep.delays[0] != 2*time.Second {
		t.Fatalf("expected single retry-after sleep of 2s, got %v", sleep.delays)
	}
}

func TestDoHTTP503ThenSuccess(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	sleep := &recordSleeper{}
	resp, body, err := DoHTTP(context.Background(), testPolicy(3, sleep.Sleep, 0.5), nil, doRequest(t, server.Client(), server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 || len(sleep.delays) != 2 {
		t.Fatalf("expected 3 calls and 2 sleeps, got %d and %d", calls, len(sleep.delays))
	}
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected response: %d %q", resp.StatusCode, body)
	}
}

func TestDoHTTPNoRetryOn404(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	sleep := &recordSleeper{}
	resp, _, err := DoHTTP(context.Background(), testPolicy(3, sleep.Sleep, 0.5), nil, doRequest(t, server.Client(), server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 || len(sleep.delays) != 0 {
		t.Fatalf("expected a single call without sleeps, got %d calls", calls)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDoHTTPContextCancelStopsRetry(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	sleep := func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, _, err := DoHTTP(ctx, testPolicy(3, sleep, 0.5), nil, doRequest(t, server.Client(), server.URL))
	if err == nil {
		t.Fatalf("expected context error, got nil")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
