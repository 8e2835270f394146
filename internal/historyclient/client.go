// Package historyclient HTTP-клиент к historyapi. Им пользуются
// подкоманды CLI, а также внешние сервисы, которые пишут историю удалённо.
package historyclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chathistory/internal/history"
	"chathistory/internal/historyapi"
	"chathistory/internal/pkg/json"
	"chathistory/internal/retry"
)

var ErrNotFound = errors.New("history entry not found")

type Config struct {
	BaseURL string
	APIKey  string
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	policy     retry.Policy
	logger     *slog.Logger
}

func New(cfg Config, httpClient *http.Client, policy retry.Policy, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		policy:     policy,
		logger:     logger,
	}
}

type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) Get(ctx context.Context, id string) (history.Entry, error) {
	var e history.Entry
	status, err := c.getJSON(ctx, "/history/entries/"+url.PathEscape(id), nil, &e)
	if status == http.StatusNotFound {
		return history.Entry{}, ErrNotFound
	}
	if err != nil {
		return history.Entry{}, err
	}
	return e, nil
}

func (c *Client) ListByUser(ctx context.Context, platform, userID string, limit, offset int) ([]history.Entry, error) {
	path := "/history/users/" + url.PathEscape(platform) + "/" + url.PathEscape(userID)
	return c.list(ctx, path, pageQuery(limit, offset))
}

func (c *Client) ListGlobal(ctx context.Context, limit, offset int) ([]history.Entry, error) {
	return c.list(ctx, "/history/global", pageQuery(limit, offset))
}

func (c *Client) Search(ctx context.Context, q history.SearchQuery) ([]history.Entry, error) {
	v := url.Values{}
	if q.Platform != "" {
		v.Set("platform", q.Platform)
	}
	if q.UserID != "" {
		v.Set("user_id", q.UserID)
	}
	if q.StartTime != nil {
		v.Set("start_time", strconv.FormatInt(*q.StartTime, 10))
	}
	if q.EndTime != nil {
		v.Set("end_time", strconv.FormatInt(*q.EndTime, 10))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return c.list(ctx, "/history/search", v)
}

// Save отправляет запись на сервер и возвращает её task_id. Запрос не
// повторяется: повтор создал бы вторую ссылку в индексах.
func (c *Client) Save(ctx context.Context, e history.Entry, ttl time.Duration) (string, error) {
	buf, err := json.Marshal(historyapi.SaveRequest{Entry: e, TTLSeconds: int64(ttl / time.Second)})
	if err != nil {
		return "", fmt.Errorf("marshal entry: %w", err)
	}

	resp, body, err := c.do(ctx, http.MethodPost, "/history/entries", nil, buf)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusCreated {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed historyapi.SaveResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return parsed.TaskID, nil
}

func (c *Client) list(ctx context.Context, path string, query url.Values) ([]history.Entry, error) {
	var parsed historyapi.ListResponse
	if _, err := c.getJSON(ctx, path, query, &parsed); err != nil {
		return nil, err
	}
	return parsed.Entries, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) (int, error) {
	resp, body, err := retry.DoHTTP(ctx, c.policy, c.logger, func(ctx context.Context) (*http.Response, []byte, error) {
		return c.do(ctx, http.MethodGet, path, query, nil)
	})
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte) (*http.Response, []byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, fmt.Errorf("read response: %w", err)
	}
	return resp, body, nil
}

func pageQuery(limit, offset int) url.Values {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		v.Set("offset", strconv.Itoa(offset))
	}
	return v
}
