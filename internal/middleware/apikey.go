package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const headerAPIKey = "X-API-Key"

// ErrorWriter пишет ответ с ошибкой в формате сервиса.
type ErrorWriter func(w http.ResponseWriter, status int, code, message string)

// APIKey требует ключ на изменяющих запросах (всё, кроме GET/HEAD/OPTIONS).
// Ключ берётся из X-API-Key или Authorization: Bearer. Пустой key отключает проверку.
func APIKey(key string, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get(headerAPIKey)
			if got == "" {
				auth := strings.TrimSpace(r.Header.Get("Authorization"))
				if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
					got = strings.TrimSpace(auth[7:])
				}
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
