// Package historyapi отдаёт history.Store по HTTP: чтение истории
// пользователя, глобальной ленты, поиск и запись новых пар запрос/ответ.
package historyapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"chathistory/internal/history"
	"chathistory/internal/httpserver"
	"chathistory/internal/pkg/json"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// Store операции хранилища истории, которые нужны HTTP-слою.
type Store interface {
	Save(ctx context.Context, e history.Entry, ttl time.Duration) bool
	Get(ctx context.Context, id string) (history.Entry, bool)
	ListByUser(ctx context.Context, platform, userID string, limit, offset int) []history.Entry
	ListGlobal(ctx context.Context, limit, offset int) []history.Entry
	Search(ctx context.Context, q history.SearchQuery) []history.Entry
}

// Recorder фоновая запись. Record не ждёт сохранения и возвращает false,
// если запись отброшена.
type Recorder interface {
	Record(e history.Entry) bool
}

type Deps struct {
	Store Store
	// Recorder необязателен; без него POST ?async=true отвечает 501.
	Recorder Recorder
	Logger   *slog.Logger
	// NewID выдаёт task_id для записей без него; по умолчанию UUID.
	NewID func() string
}

type Handler struct {
	store    Store
	recorder Recorder
	logger   *slog.Logger
	newID    func() string
	router   chi.Router
}

func NewHandler(deps Deps) *Handler {
	h := &Handler{
		store:    deps.Store,
		recorder: deps.Recorder,
		logger:   deps.Logger,
		newID:    deps.NewID,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.newID == nil {
		h.newID = uuid.NewString
	}

	r := chi.NewRouter()
	r.Get("/entries/{id}", h.getEntry)
	r.Post("/entries", h.saveEntry)
	r.Get("/users/{platform}/{userID}", h.listByUser)
	r.Get("/global", h.listGlobal)
	r.Get("/search", h.search)
	h.router = r

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// ListResponse тело ответа списочных запросов.
type ListResponse struct {
	Entries []history.Entry `json:"entries"`
	Count   int             `json:"count"`
}

// SaveRequest запись плюс необязательный срок жизни в секундах.
type SaveRequest struct {
	history.Entry
	TTLSeconds int64 `json:"ttl_seconds,omitempty"`
}

type SaveResponse struct {
	Saved  bool   `json:"saved"`
	Queued bool   `json:"queued,omitempty"`
	TaskID string `json:"task_id"`
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, ok := h.store.Get(r.Context(), id)
	if !ok {
		httpserver.WriteJSONError(w, http.StatusNotFound, "not_found", "history entry not found")
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) saveEntry(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "cannot parse entry")
		return
	}
	if req.TTLSeconds < 0 {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "ttl_seconds must be >= 0")
		return
	}

	entry := req.Entry
	if entry.ID == "" {
		entry.ID = h.newID()
	}
	if entry.Platform == "" || entry.UserID == "" {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "platform and user_id are required")
		return
	}

	if isTrue(r.URL.Query().Get("async")) {
		h.recordAsync(w, entry, req.TTLSeconds)
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	if !h.store.Save(r.Context(), entry, ttl) {
		h.logger.Warn("history entry not saved", slog.String("task_id", entry.ID))
		httpserver.WriteJSONError(w, http.StatusServiceUnavailable, "not_saved", "history entry was not saved")
		return
	}
	httpserver.WriteJSON(w, http.StatusCreated, SaveResponse{Saved: true, TaskID: entry.ID})
}

// recordAsync отдаёт запись Recorder и отвечает 202, не дожидаясь бэкенда.
// Recorder пишет со своим TTL, поэтому ttl_seconds здесь не поддерживается.
func (h *Handler) recordAsync(w http.ResponseWriter, entry history.Entry, ttlSeconds int64) {
	if h.recorder == nil {
		httpserver.WriteJSONError(w, http.StatusNotImplemented, "not_supported", "async recording is disabled")
		return
	}
	if ttlSeconds != 0 {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "ttl_seconds is not supported with async")
		return
	}
	if !h.recorder.Record(entry) {
		httpserver.WriteJSONError(w, http.StatusServiceUnavailable, "busy", "recorder is saturated")
		return
	}
	httpserver.WriteJSON(w, http.StatusAccepted, SaveResponse{Queued: true, TaskID: entry.ID})
}

func (h *Handler) listByUser(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r, history.DefaultUserLimit)
	if !ok {
		return
	}
	entries := h.store.ListByUser(r.Context(), chi.URLParam(r, "platform"), chi.URLParam(r, "userID"), limit, offset)
	writeList(w, entries)
}

func (h *Handler) listGlobal(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r, history.DefaultGlobalLimit)
	if !ok {
		return
	}
	writeList(w, h.store.ListGlobal(r.Context(), limit, offset))
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := history.SearchQuery{
		Platform: q.Get("platform"),
		UserID:   q.Get("user_id"),
	}
	if query.UserID != "" && query.Platform == "" {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "user_id requires platform")
		return
	}

	var err error
	if query.Limit, err = intParam(q.Get("limit"), history.DefaultSearchLimit); err != nil {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "limit must be an integer")
		return
	}
	if query.StartTime, err = optionalUnix(q.Get("start_time")); err != nil {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "start_time must be unix seconds")
		return
	}
	if query.EndTime, err = optionalUnix(q.Get("end_time")); err != nil {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "end_time must be unix seconds")
		return
	}

	writeList(w, h.store.Search(r.Context(), query))
}

func writeList(w http.ResponseWriter, entries []history.Entry) {
	if entries == nil {
		entries = []history.Entry{}
	}
	httpserver.WriteJSON(w, http.StatusOK, ListResponse{Entries: entries, Count: len(entries)})
}

func pageParams(w http.ResponseWriter, r *http.Request, defLimit int) (limit, offset int, ok bool) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), defLimit)
	if err != nil {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "limit must be an integer")
		return 0, 0, false
	}
	offset, err = intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "offset must be a non-negative integer")
		return 0, 0, false
	}
	return limit, offset, true
}

func isTrue(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func optionalUnix(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
