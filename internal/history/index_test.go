package history

import (
	"strconv"
	"testing"
)

func TestIndexWithKeepsDescendingOrder(t *testing.T) {
	ix := Index{}
	for _, ts := range []int64{200, 100, 300, 250} {
		ix = ix.With(Record{ID: "e" + strconv.FormatInt(ts, 10), Timestamp: ts})
	}

	recs := ix.Records()
	want := []int64{300, 250, 200, 100}
	for i, ts := range want {
		if recs[i].Timestamp != ts {
			t.Fatalf("position %d: expected %d, got %d", i, ts, recs[i].Timestamp)
		}
	}
}

func TestIndexWithIsImmutable(t *testing.T) {
	base := NewIndex([]Record{{ID: "a", Timestamp: 1}})
	_ = base.With(Record{ID: "b", Timestamp: 2})

	if base.Len() != 1 {
		t.Fatalf("With must not modify the receiver, len=%d", base.Len())
	}
}

func TestIndexEqualTimestampsKeepInsertionOrder(t *testing.T) {
	ix := Index{}.With(Record{ID: "first", Timestamp: 10}).With(Record{ID: "second", Timestamp: 10})
	recs := ix.Records()
	if recs[0].ID != "first" || recs[1].ID != "second" {
		t.Fatalf("expected stable order, got %+v", recs)
	}
}

func TestIndexBoundEvictsOldest(t *testing.T) {
	ix := Index{}
	for i := 1; i <= MaxIndexSize+25; i++ {
		ix = ix.With(Record{ID: "e" + strconv.Itoa(i), Timestamp: int64(i)})
	}

	if ix.Len() != MaxIndexSize {
		t.Fatalf("expected %d records, got %d", MaxIndexSize, ix.Len())
	}
	recs := ix.Records()
	if recs[0].Timestamp != int64(MaxIndexSize+25) {
		t.Fatalf("expected newest first, got %d", recs[0].Timestamp)
	}
	if recs[len(recs)-1].Timestamp != 26 {
		t.Fatalf("expected oldest retained timestamp 26, got %d", recs[len(recs)-1].Timestamp)
	}
}

func TestIndexOlderRecordOnFullIndexIsDropped(t *testing.T) {
	records := make([]Record, MaxIndexSize)
	for i := range records {
		records[i] = Record{ID: "e", Timestamp: int64(1000 + i)}
	}
	ix := NewIndex(records).With(Record{ID: "old", Timestamp: 1})

	for _, rec := range ix.Records() {
		if rec.ID == "old" {
			t.Fatalf("record older than the whole full index must be evicted")
		}
	}
}

func TestIndexWindow(t *testing.T) {
	ix := NewIndex([]Record{{ID: "a", Timestamp: 1}, {ID: "b", Timestamp: 2}, {ID: "c", Timestamp: 3}})

	tests := []struct {
		name          string
		offset, limit int
		want          []string
	}{
		{"all", 0, 10, []string{"c", "b", "a"}},
		{"middle", 1, 1, []string{"b"}},
		{"tail", 2, 5, []string{"a"}},
		{"past end", 3, 5, nil},
		{"zero limit", 0, 0, nil},
		{"negative offset", -4, 2, []string{"c", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ix.Window(tt.offset, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %+v", tt.want, got)
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Fatalf("expected %v, got %+v", tt.want, got)
				}
			}
		})
	}
}

func TestIndexEncodeDecode(t *testing.T) {
	empty, err := Index{}.encode()
	if err != nil {
		t.Fatalf("encode empty: %v", err)
	}
	if empty != "[]" {
		t.Fatalf("expected [], got %s", empty)
	}

	raw := `[{"task_id":"a","timestamp":100},{"task_id":"b","timestamp":300}]`
	ix, err := decodeIndex(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if recs := ix.Records(); recs[0].ID != "b" {
		t.Fatalf("decoded index must be re-sorted, got %+v", recs)
	}

	if _, err := decodeIndex(`{"task_id":"a"}`); err == nil {
		t.Fatalf("expected error for non-list payload")
	}
}

func TestIndexWithReplacesSameID(t *testing.T) {
	ix := Index{}.
		With(Record{ID: "a", Timestamp: 10}).
		With(Record{ID: "b", Timestamp: 20}).
		With(Record{ID: "a", Timestamp: 30})

	recs := ix.Records()
	if len(recs) != 2 {
		t.Fatalf("expected one record per id, got %+v", recs)
	}
	if recs[0].ID != "a" || recs[0].Timestamp != 30 || recs[1].ID != "b" {
		t.Fatalf("expected re-added record to take its new position, got %+v", recs)
	}
}
