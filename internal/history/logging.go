package history

import (
	"errors"
	"log/slog"
)

// logOutcome пишет неуспешный исход с уровнем по виду ошибки:
// отсутствие это debug, порча данных и сбой бэкенда это error.
func logOutcome(logger *slog.Logger, op, key string, err error) {
	if err == nil {
		return
	}

	attrs := []any{
		slog.String("op", op),
		slog.String("key", key),
		slog.String("error", err.Error()),
	}

	var serErr *SerializationError
	var backendErr *BackendError
	switch {
	case errors.Is(err, ErrNotFound):
		logger.Debug("history miss", attrs...)
	case errors.As(err, &serErr):
		logger.Error("history serialization failure", attrs...)
	case errors.As(err, &backendErr):
		logger.Error("history backend failure", attrs...)
	case errors.Is(err, ErrInvalidEntry):
		logger.Warn("history invalid entry", attrs...)
	default:
		logger.Error("history failure", attrs...)
	}
}
