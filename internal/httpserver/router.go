package httpserver

import (
	"log/slog"
	"net/http"

	"chathistory/internal/middleware"

	"github.com/go-chi/chi/v5"
)

type RouterDeps struct {
	Logger         *slog.Logger
	HistoryHandler http.Handler
	// APIKey если задан, обязателен для записывающих запросов.
	APIKey string
}

// NewRouter собирает chi-роутер с общими middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Mount("/history", middleware.APIKey(deps.APIKey, WriteJSONError)(deps.HistoryHandler))

	return r
}
