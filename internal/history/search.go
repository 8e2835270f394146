package history

import "context"

// SearchQuery фильтры поиска. Пустые строки и nil означают "не задано".
type SearchQuery struct {
	Platform  string
	UserID    string
	StartTime *int64 // включительно
	EndTime   *int64 // включительно
	Limit     int
}

func (q SearchQuery) byUser() bool {
	return q.Platform != "" && q.UserID != ""
}

func (q SearchQuery) matches(e Entry) bool {
	if q.StartTime != nil && e.Timestamp < *q.StartTime {
		return false
	}
	if q.EndTime != nil && e.Timestamp > *q.EndTime {
		return false
	}
	if q.Platform != "" && e.Platform != q.Platform {
		return false
	}
	if q.byUser() && e.UserID != q.UserID {
		return false
	}
	return true
}

// Search ограниченный просмотр, а не полный фильтрованный запрос.
//
// С Platform и UserID читаются первые Limit записей индекса пользователя.
// Иначе читаются первые 2*Limit записей глобального индекса. Затем
// применяются фильтры по времени и платформе до набора Limit совпадений.
// Узкое окно глубоко в истории может вернуть меньше Limit, даже если
// подходящие записи есть дальше в индексе. UserID без Platform не фильтрует.
func (s *Store) Search(ctx context.Context, q SearchQuery) []Entry {
	limit := clampLimit(q.Limit, DefaultSearchLimit)

	key, fetch := GlobalIndexKey, limit*searchOversample
	if q.byUser() {
		key, fetch = UserIndexKey(q.Platform, q.UserID), limit
	}

	res := s.query.listByIndex(ctx, key, fetch, 0)
	candidates, ok := res.Get()
	if !ok {
		logOutcome(s.logger, "search", key, res.Err)
		return []Entry{}
	}

	out := make([]Entry, 0, limit)
	for _, e := range candidates {
		if !q.matches(e) {
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out
}
