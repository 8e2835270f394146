package history

import (
	"context"
	"log/slog"
)

type queryEngine struct {
	entries *entryStore
	indexes *indexMaintainer
	logger  *slog.Logger
}

// listByIndex гидрирует окно [offset, offset+limit) индекса key по одной
// записи, сохраняя порядок индекса. Промахи выбрасываются, поэтому
// результат может быть короче limit. Если контекст завершился, отдаётся
// уже собранная часть.
func (q *queryEngine) listByIndex(ctx context.Context, key string, limit, offset int) Result[[]Entry] {
	res := q.indexes.load(ctx, key)
	switch res.Status {
	case StatusNotFound:
		return OK([]Entry{})
	case StatusFailure:
		return Failure[[]Entry](res.Err)
	}

	window := res.Value.Window(offset, limit)
	out := make([]Entry, 0, len(window))
	for _, rec := range window {
		if ctx.Err() != nil {
			q.logger.Warn("history hydration interrupted",
				slog.String("key", key),
				slog.Int("hydrated", len(out)),
				slog.Int("requested", len(window)),
			)
			break
		}
		entry := q.entries.fetch(ctx, rec.ID)
		if e, ok := entry.Get(); ok {
			out = append(out, e)
			continue
		}
		// Висячая ссылка или испорченная запись: пропускаем.
		logOutcome(q.logger, "hydrate", entryKey(rec.ID), entry.Err)
	}
	return OK(out)
}
