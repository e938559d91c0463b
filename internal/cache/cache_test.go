package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glabrego/prism-cli/internal/feed"
)

type fakeStore struct {
	persisted  map[string][]feed.Page
	persistErr error

	restorePages []feed.Page
	restoreAt    time.Time
	restoreOK    bool
	restoreErr   error
	restoreCalls int
}

func (f *fakeStore) Persist(ctx context.Context, key string, pages []feed.Page) error {
	if f.persisted == nil {
		f.persisted = make(map[string][]feed.Page)
	}
	f.persisted[key] = pages
	return f.persistErr
}

func (f *fakeStore) Restore(ctx context.Context, key string) ([]feed.Page, time.Time, bool, error) {
	f.restoreCalls++
	return f.restorePages, f.restoreAt, f.restoreOK, f.restoreErr
}

func latestDescriptor(t *testing.T) feed.Descriptor {
	t.Helper()
	d, err := feed.BuildDescriptor(feed.ModeLatest, nil)
	if err != nil {
		t.Fatalf("BuildDescriptor: %v", err)
	}
	return d
}

func items(ids ...string) []feed.Item {
	out := make([]feed.Item, len(ids))
	for i, id := range ids {
		out[i] = feed.Item{ID: id, Version: 1}
	}
	return out
}

func TestLoadFirstPage_StartsFetchOnce(t *testing.T) {
	c := New(nil, 0)
	d := latestDescriptor(t)

	view, job := c.LoadFirstPage(d)
	if job == nil || job.Cursor != "" {
		t.Fatalf("expected first-page fetch job, got %+v", job)
	}
	if !view.Loading {
		t.Fatal("view must report loading while fetch is in flight")
	}

	// A second call while in flight must not duplicate the fetch.
	_, dup := c.LoadFirstPage(d)
	if dup != nil {
		t.Fatalf("duplicate fetch started: %+v", dup)
	}
}

func TestLoadFirstPage_CachedIsFreshForSession(t *testing.T) {
	c := New(nil, 0)
	d := latestDescriptor(t)

	_, job := c.LoadFirstPage(d)
	view, applied := c.CompleteFetch(context.Background(), *job, feed.Page{Items: items("a"), NextCursor: "c1"}, nil)
	if !applied || len(view.Items) != 1 {
		t.Fatalf("unexpected completion view: %+v applied=%v", view, applied)
	}

	view, job = c.LoadFirstPage(d)
	if job != nil {
		t.Fatal("fresh cached first page must not refetch")
	}
	if len(view.Items) != 1 || view.Loading {
		t.Fatalf("unexpected cached view: %+v", view)
	}
}

func TestLoadFirstPage_StaleAfterMaxAge(t *testing.T) {
	c := New(nil, time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }
	d := latestDescriptor(t)

	_, job := c.LoadFirstPage(d)
	c.CompleteFetch(context.Background(), *job, feed.Page{Items: items("a")}, nil)

	now = now.Add(30 * time.Second)
	if _, job := c.LoadFirstPage(d); job != nil {
		t.Fatal("entry within max age must be served from cache")
	}

	now = now.Add(31 * time.Second)
	if _, job := c.LoadFirstPage(d); job == nil {
		t.Fatal("entry past max age must refetch")
	}
}

func TestLoadNextPage_PaginationIdempotence(t *testing.T) {
	c := New(nil, 0)
	d := latestDescriptor(t)
	ctx := context.Background()

	_, job := c.LoadFirstPage(d)
	c.CompleteFetch(ctx, *job, feed.Page{Items: items("a", "b"), NextCursor: "c1"}, nil)

	_, job, status := c.LoadNextPage(d)
	if status != LoadStarted || job == nil || job.Cursor != "c1" {
		t.Fatalf("expected next-page fetch with cursor c1, got status=%d job=%+v", status, job)
	}
	view, _ := c.CompleteFetch(ctx, *job, feed.Page{Items: items("c", "d")}, nil)
	if view.HasMore {
		t.Fatal("terminal page must clear HasMore")
	}

	// Repeated calls after the terminal page never fetch again and
	// always return the same concatenation.
	for i := 0; i < 3; i++ {
		view, job, status := c.LoadNextPage(d)
		if status != LoadNoMorePages || job != nil {
			t.Fatalf("expected no-more-pages, got status=%d job=%+v", status, job)
		}
		if got := len(view.Items); got != 4 {
			t.Fatalf("expected 4 items, got %d", got)
		}
	}
}

func TestLoadNextPage_AlreadyLoadingIsDistinguishable(t *testing.T) {
	c := New(nil, 0)
	d := latestDescriptor(t)
	ctx := context.Background()

	_, job := c.LoadFirstPage(d)
	c.CompleteFetch(ctx, *job, feed.Page{Items: items("a"), NextCursor: "c1"}, nil)

	_, first, status := c.LoadNextPage(d)
	if status != LoadStarted || first == nil {
		t.Fatalf("expected started, got %d", status)
	}
	_, dup, status := c.LoadNextPage(d)
	if status != LoadAlreadyLoading || dup != nil {
		t.Fatalf("rapid second call must report already-loading, got status=%d job=%+v", status, dup)
	}
}

func TestLoadNextPage_NotLoaded(t *testing.T) {
	c := New(nil, 0)
	_, job, status := c.LoadNextPage(latestDescriptor(t))
	if status != LoadNotLoaded || job != nil {
		t.Fatalf("expected not-loaded, got status=%d", status)
	}
}

func TestCompleteFetch_DeduplicatesByID(t *testing.T) {
	c := New(nil, 0)
	d := latestDescriptor(t)
	ctx := context.Background()

	_, job := c.LoadFirstPage(d)
	c.CompleteFetch(ctx, *job, feed.Page{Items: items("a", "b", "c"), NextCursor: "c1"}, nil)

	// Server pages overlap: b and c reappear on page two.
	_, job, _ = c.LoadNextPage(d)
	view, _ := c.CompleteFetch(ctx, *job, feed.Page{Items: items("b", "c", "d")}, nil)

	ids := make(map[string]int)
	for _, it := range view.Items {
		ids[it.ID]++
	}
	if len(view.Items) != 4 {
		t.Fatalf("expected 4 unique items, got %d: %v", len(view.Items), ids)
	}
	for id, n := range ids {
		if n != 1 {
			t.Fatalf("item %s appears %d times", id, n)
		}
	}
	// First occurrence wins: order is a b c d.
	want := []string{"a", "b", "c", "d"}
	for i, it := range view.Items {
		if it.ID != want[i] {
			t.Fatalf("unexpected order at %d: %s", i, it.ID)
		}
	}
}

func TestCompleteFetch_FailureKeepsPriorPages(t *testing.T) {
	c := New(nil, 0)
	d := latestDescriptor(t)
	ctx := context.Background()

	_, job := c.LoadFirstPage(d)
	c.CompleteFetch(ctx, *job, feed.Page{Items: items("a", "b"), NextCursor: "c1"}, nil)

	_, job, _ = c.LoadNextPage(d)
	view, applied := c.CompleteFetch(ctx, *job, feed.Page{}, errors.New("connection reset"))
	if !applied {
		t.Fatal("failure must still apply to the entry")
	}
	if len(view.Items) != 2 {
		t.Fatalf("failed fetch regressed cached pages: %d items", len(view.Items))
	}
	if view.Err == nil {
		t.Fatal("transient error must be surfaced")
	}

	// The next successful attempt clears the error.
	_, job, _ = c.LoadNextPage(d)
	view, _ = c.CompleteFetch(ctx, *job, feed.Page{Items: items("c")}, nil)
	if view.Err != nil {
		t.Fatalf("error not cleared after success: %v", view.Err)
	}
}

func TestCompleteFetch_OfflineFallback(t *testing.T) {
	store := &fakeStore{
		restorePages: []feed.Page{{Items: items("s1", "s2"), NextCursor: ""}},
		restoreAt:    time.Unix(500, 0),
		restoreOK:    true,
	}
	c := New(store, 0)
	d := latestDescriptor(t)

	_, job := c.LoadFirstPage(d)
	view, _ := c.CompleteFetch(context.Background(), *job, feed.Page{}, errors.New("no network"))
	if !view.Offline {
		t.Fatal("restored snapshot must be annotated offline")
	}
	if len(view.Items) != 2 {
		t.Fatalf("expected snapshot items, got %d", len(view.Items))
	}
	if view.Err == nil {
		t.Fatal("fetch error still surfaced alongside the snapshot")
	}

	// Retry goes back to the network because offline entries are
	// never treated as fresh.
	_, job = c.LoadFirstPage(d)
	if job == nil {
		t.Fatal("offline entry must refetch on retry")
	}
	view, _ = c.CompleteFetch(context.Background(), *job, feed.Page{Items: items("f1")}, nil)
	if view.Offline {
		t.Fatal("successful fetch must clear offline annotation")
	}
	if len(view.Items) != 1 || view.Items[0].ID != "f1" {
		t.Fatalf("snapshot not replaced by fresh fetch: %+v", view.Items)
	}
}

func TestCompleteFetch_SuccessWritesSnapshot(t *testing.T) {
	store := &fakeStore{}
	c := New(store, 0)
	d := latestDescriptor(t)
	ctx := context.Background()

	_, job := c.LoadFirstPage(d)
	c.CompleteFetch(ctx, *job, feed.Page{Items: items("a"), NextCursor: "c1"}, nil)
	_, job, _ = c.LoadNextPage(d)
	c.CompleteFetch(ctx, *job, feed.Page{Items: items("b")}, nil)

	pages := store.persisted[d.Key()]
	if len(pages) != 2 {
		t.Fatalf("expected 2 persisted pages, got %d", len(pages))
	}
}

func TestCompleteFetch_PersistErrorDoesNotFailFetch(t *testing.T) {
	store := &fakeStore{persistErr: errors.New("disk full")}
	c := New(store, 0)
	d := latestDescriptor(t)

	_, job := c.LoadFirstPage(d)
	view, applied := c.CompleteFetch(context.Background(), *job, feed.Page{Items: items("a")}, nil)
	if !applied || view.Err != nil || len(view.Items) != 1 {
		t.Fatalf("persist failure leaked into fetch path: %+v applied=%v", view, applied)
	}
}

func TestCompleteFetch_DiscardsAfterInvalidate(t *testing.T) {
	c := New(nil, 0)
	d := latestDescriptor(t)

	_, job := c.LoadFirstPage(d)
	c.Invalidate(d)

	_, applied := c.CompleteFetch(context.Background(), *job, feed.Page{Items: items("a")}, nil)
	if applied {
		t.Fatal("completion for invalidated descriptor must be discarded")
	}
	if view := c.CurrentView(d); len(view.Items) != 0 {
		t.Fatalf("discarded fetch leaked items: %+v", view.Items)
	}
}

func TestInvalidate_SupersedesPendingFetch(t *testing.T) {
	c := New(nil, 0)
	d := latestDescriptor(t)
	ctx := context.Background()

	_, stale := c.LoadFirstPage(d)

	// Invalidate while the first fetch is still running, then refetch:
	// the refetch supersedes the pending job instead of racing it.
	c.Invalidate(d)
	_, fresh := c.LoadFirstPage(d)
	if fresh == nil {
		t.Fatal("invalidated descriptor must start a superseding fetch")
	}

	if _, applied := c.CompleteFetch(ctx, *stale, feed.Page{}, errors.New("network down")); applied {
		t.Fatal("pre-invalidation completion must be discarded")
	}
	view, applied := c.CompleteFetch(ctx, *fresh, feed.Page{Items: items("a", "b")}, nil)
	if !applied {
		t.Fatal("superseding completion must be applied")
	}
	if len(view.Items) != 2 || view.Err != nil {
		t.Fatalf("view after superseding fetch: %d items, err %v", len(view.Items), view.Err)
	}
}

func TestRetain_EvictsOtherDescriptorsAndTheirFetches(t *testing.T) {
	c := New(nil, 0)
	ctx := context.Background()
	dLatest := latestDescriptor(t)
	dClustered, _ := feed.BuildDescriptor(feed.ModeClustered, nil)

	_, jobA := c.LoadFirstPage(dLatest)
	c.CompleteFetch(ctx, *jobA, feed.Page{Items: items("a")}, nil)
	_, jobB := c.LoadFirstPage(dClustered)

	c.Retain(dLatest.Key())

	if _, applied := c.CompleteFetch(ctx, *jobB, feed.Page{Items: items("x")}, nil); applied {
		t.Fatal("completion for evicted descriptor must be discarded")
	}
	if view := c.CurrentView(dLatest); len(view.Items) != 1 {
		t.Fatal("retained descriptor lost its entry")
	}
}

func TestInvalidate_ForcesRefetch(t *testing.T) {
	c := New(nil, 0)
	d := latestDescriptor(t)
	ctx := context.Background()

	_, job := c.LoadFirstPage(d)
	c.CompleteFetch(ctx, *job, feed.Page{Items: items("a")}, nil)

	c.Invalidate(d)
	_, job = c.LoadFirstPage(d)
	if job == nil {
		t.Fatal("invalidated descriptor must refetch")
	}
}

func TestUpdateAndLookupItem(t *testing.T) {
	c := New(nil, 0)
	ctx := context.Background()
	dLatest := latestDescriptor(t)
	dClustered, _ := feed.BuildDescriptor(feed.ModeClustered, nil)

	_, job := c.LoadFirstPage(dLatest)
	c.CompleteFetch(ctx, *job, feed.Page{Items: []feed.Item{{ID: "a", Version: 1}}}, nil)
	_, job = c.LoadFirstPage(dClustered)
	c.CompleteFetch(ctx, *job, feed.Page{Items: []feed.Item{{ID: "a", Version: 1}, {ID: "b", Version: 1}}}, nil)

	c.UpdateItem("a", true, 2)

	for _, d := range []feed.Descriptor{dLatest, dClustered} {
		view := c.CurrentView(d)
		for _, it := range view.Items {
			if it.ID == "a" && (!it.Saved || it.Version != 2) {
				t.Fatalf("item a not updated in %s: %+v", d.Key(), it)
			}
		}
	}

	it, ok := c.LookupItem("a")
	if !ok || it.Version != 2 || !it.Saved {
		t.Fatalf("unexpected lookup: %+v ok=%v", it, ok)
	}
	if _, ok := c.LookupItem("zz"); ok {
		t.Fatal("lookup of unknown id must fail")
	}
}
