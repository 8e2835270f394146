package history

import (
	"sort"

	"chathistory/internal/pkg/json"
)

// MaxIndexSize верхняя граница длины любого индекса; старые записи вытесняются первыми.
const MaxIndexSize = 1000

// GlobalIndexKey ключ индекса по всем пользователям.
const GlobalIndexKey = "global:all"

// UserIndexKey ключ индекса одного пользователя платформы.
func UserIndexKey(platform, userID string) string {
	return "user:" + platform + ":" + userID
}

// Record ссылка на Entry внутри индекса. Копию записи индекс не хранит.
type Record struct {
	ID        string `json:"task_id"`
	Timestamp int64  `json:"timestamp"`
}

// Index упорядоченный по убыванию Timestamp список Record длиной не больше
// MaxIndexSize. Значение неизменяемое: With возвращает новый Index.
type Index struct {
	records []Record
}

// NewIndex строит индекс из произвольного набора записей, восстанавливая
// порядок и границу.
func NewIndex(records []Record) Index {
	out := make([]Record, len(records))
	copy(out, records)
	return Index{records: boundAndSort(out)}
}

// With добавляет rec, пересортировывает и обрезает до MaxIndexSize.
// Прежняя запись с тем же ID заменяется: на одну Entry в индексе не больше
// одной ссылки. При равных Timestamp более ранние добавления остаются впереди.
func (ix Index) With(rec Record) Index {
	out := make([]Record, 0, len(ix.records)+1)
	for _, r := range ix.records {
		if r.ID != rec.ID {
			out = append(out, r)
		}
	}
	out = append(out, rec)
	return Index{records: boundAndSort(out)}
}

func (ix Index) Len() int { return len(ix.records) }

// Records копия записей индекса.
func (ix Index) Records() []Record {
	out := make([]Record, len(ix.records))
	copy(out, ix.records)
	return out
}

// Window записи в позициях [offset, offset+limit). Выход за границы даёт пустой срез.
func (ix Index) Window(offset, limit int) []Record {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= len(ix.records) {
		return nil
	}
	end := offset + limit
	if end > len(ix.records) || end < offset {
		end = len(ix.records)
	}
	out := make([]Record, end-offset)
	copy(out, ix.records[offset:end])
	return out
}

func (ix Index) encode() (string, error) {
	records := ix.records
	if records == nil {
		records = []Record{}
	}
	return json.MarshalString(records)
}

func decodeIndex(raw string) (Index, error) {
	var records []Record
	if err := json.UnmarshalString(raw, &records); err != nil {
		return Index{}, err
	}
	// Индекс мог записать другой процесс, поэтому порядок не принимается на веру.
	return Index{records: boundAndSort(records)}, nil
}

func boundAndSort(records []Record) []Record {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
	if len(records) > MaxIndexSize {
		records = records[:MaxIndexSize]
	}
	return records
}
