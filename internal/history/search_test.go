package history

import (
	"context"
	"strconv"
	"testing"

	"chathistory/internal/kv"
)

func seedSearch(t *testing.T) *Store {
	t.Helper()
	store := newTestStore(kv.NewMemoryBackend())
	ctx := context.Background()
	for i, ts := range []int64{100, 200, 300} {
		if !store.Save(ctx, makeEntry("e"+strconv.Itoa(i+1), ts, "p", "u"), 0) {
			t.Fatalf("seed save failed")
		}
	}
	if !store.Save(ctx, makeEntry("other", 250, "q", "v"), 0) {
		t.Fatalf("seed save failed")
	}
	return store
}

func TestSearch_StartTimeExcludesOlder(t *testing.T) {
	store := seedSearch(t)

	got := store.Search(context.Background(), SearchQuery{Platform: "p", StartTime: i64Ptr(150)})
	if !equalIDs(got, "e3", "e2") {
		t.Fatalf("expected [e3 e2], got %v", ids(got))
	}
}

func TestSearch_BoundsAreInclusive(t *testing.T) {
	store := seedSearch(t)

	got := store.Search(context.Background(), SearchQuery{StartTime: i64Ptr(200), EndTime: i64Ptr(300)})
	if !equalIDs(got, "e3", "other", "e2") {
		t.Fatalf("expected [e3 other e2], got %v", ids(got))
	}
}

func TestSearch_ByUserUsesUserIndex(t *testing.T) {
	store := seedSearch(t)

	got := store.Search(context.Background(), SearchQuery{Platform: "p", UserID: "u", EndTime: i64Ptr(200), Limit: 10})
	if !equalIDs(got, "e2", "e1") {
		t.Fatalf("expected [e2 e1], got %v", ids(got))
	}
}

func TestSearch_ByUserFetchesOnlyLimit(t *testing.T) {
	store := seedSearch(t)

	// Первые limit записей индекса пользователя (e3) не проходят фильтр,
	// дальше поиск не идёт.
	got := store.Search(context.Background(), SearchQuery{Platform: "p", UserID: "u", EndTime: i64Ptr(150), Limit: 1})
	if len(got) != 0 {
		t.Fatalf("expected bounded scan to return nothing, got %v", ids(got))
	}
}

func TestSearch_StopsAtLimit(t *testing.T) {
	store := seedSearch(t)

	got := store.Search(context.Background(), SearchQuery{Limit: 2})
	if !equalIDs(got, "e3", "other") {
		t.Fatalf("expected [e3 other], got %v", ids(got))
	}
}

func TestSearch_UserWithoutPlatformDoesNotFilter(t *testing.T) {
	store := seedSearch(t)

	got := store.Search(context.Background(), SearchQuery{UserID: "u", Limit: 10})
	if len(got) != 4 {
		t.Fatalf("expected global scan over all 4 entries, got %v", ids(got))
	}
}

func TestSearch_GlobalOversampleIsBestEffort(t *testing.T) {
	store := newTestStore(kv.NewMemoryBackend())
	ctx := context.Background()

	// Две старые записи платформы "p" закрыты шестью новыми записями "noise".
	store.Save(ctx, makeEntry("p1", 1, "p", "u"), 0)
	store.Save(ctx, makeEntry("p2", 2, "p", "u"), 0)
	for i := 0; i < 6; i++ {
		store.Save(ctx, makeEntry("n"+strconv.Itoa(i), int64(100+i), "noise", "x"), 0)
	}

	got := store.Search(ctx, SearchQuery{Platform: "p", Limit: 2})
	if len(got) != 0 {
		t.Fatalf("global scan reads only 2*limit records, expected 0, got %v", ids(got))
	}

	got = store.Search(ctx, SearchQuery{Platform: "p", Limit: 4})
	if !equalIDs(got, "p2", "p1") {
		t.Fatalf("expected [p2 p1] within oversample window, got %v", ids(got))
	}
}

func TestSearch_EmptyStore(t *testing.T) {
	store := newTestStore(kv.NewMemoryBackend())

	got := store.Search(context.Background(), SearchQuery{Platform: "p"})
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
}
