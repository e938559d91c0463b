// Package cache holds fetched feed pages per descriptor, de-duplicates
// concurrent fetches for the same descriptor, and falls back to the
// offline snapshot store when a first-page fetch fails.
package cache

import (
	"context"
	"time"

	"github.com/glabrego/prism-cli/internal/feed"
)

// SnapshotStore is the persistence boundary the cache writes through.
// Persist failures are swallowed: snapshot writes must never fail the
// fetch path.
type SnapshotStore interface {
	Persist(ctx context.Context, key string, pages []feed.Page) error
	Restore(ctx context.Context, key string) ([]feed.Page, time.Time, bool, error)
}

// Fetch is a network job the caller must execute and hand back via
// CompleteFetch. The descriptor and generation tags are what let the
// cache discard results that arrive after the descriptor was
// invalidated or evicted.
type Fetch struct {
	Descriptor feed.Descriptor
	Cursor     string // empty means first page

	generation uint64
}

// LoadStatus tells callers why LoadNextPage did or did not start a
// fetch, so the UI can tell "already loading" from "no more pages".
type LoadStatus int

const (
	LoadStarted LoadStatus = iota
	LoadCached
	LoadAlreadyLoading
	LoadNoMorePages
	LoadNotLoaded
)

// View is an immutable read of one descriptor's cached state.
type View struct {
	Descriptor feed.Descriptor
	Items      []feed.Item
	HasMore    bool
	Loading    bool
	Offline    bool
	FetchedAt  time.Time
	Err        error // transient: last fetch failure, cleared on the next attempt
}

type entry struct {
	descriptor     feed.Descriptor
	pages          []feed.Page
	seen           map[string]struct{}
	fetchedAt      time.Time
	generation     uint64 // bumped on Invalidate; completions from older generations are stale
	inFlight       bool
	inFlightCursor string
	offline        bool
	lastErr        error
}

// PageCache is not goroutine-safe on its own; the orchestrator
// serializes access, including fetch completions arriving from the
// goroutines that ran the network calls.
type PageCache struct {
	entries map[string]*entry
	store   SnapshotStore
	maxAge  time.Duration // 0 means fresh for the session
	now     func() time.Time
}

// New builds a cache backed by store. A nil store disables snapshot
// persistence and restore.
func New(store SnapshotStore, maxAge time.Duration) *PageCache {
	return &PageCache{
		entries: make(map[string]*entry),
		store:   store,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// LoadFirstPage returns the current view for d and, when the cached
// first page is missing or stale, a fetch job the caller must run.
func (c *PageCache) LoadFirstPage(d feed.Descriptor) (View, *Fetch) {
	e := c.ensure(d)

	if e.inFlight {
		return c.view(e), nil
	}
	if len(e.pages) > 0 && !e.offline && c.fresh(e) {
		return c.view(e), nil
	}

	e.inFlight = true
	e.inFlightCursor = ""
	e.lastErr = nil
	return c.view(e), &Fetch{Descriptor: d, generation: e.generation}
}

// LoadNextPage starts a fetch for the page after the last cached one.
// No-op when the last page is terminal or a fetch for d is in flight.
func (c *PageCache) LoadNextPage(d feed.Descriptor) (View, *Fetch, LoadStatus) {
	e, ok := c.entries[d.Key()]
	if !ok || len(e.pages) == 0 {
		return c.viewFor(d), nil, LoadNotLoaded
	}
	if e.inFlight {
		return c.view(e), nil, LoadAlreadyLoading
	}
	cursor := e.pages[len(e.pages)-1].NextCursor
	if cursor == "" {
		return c.view(e), nil, LoadNoMorePages
	}

	e.inFlight = true
	e.inFlightCursor = cursor
	e.lastErr = nil
	return c.view(e), &Fetch{Descriptor: d, Cursor: cursor, generation: e.generation}, LoadStarted
}

// CompleteFetch applies the outcome of a fetch job. Results whose
// descriptor entry is gone, whose entry generation moved on, or whose
// cursor no longer matches the in-flight one, are discarded: the caller
// navigated away or invalidated the feed while the fetch was running.
func (c *PageCache) CompleteFetch(ctx context.Context, f Fetch, page feed.Page, fetchErr error) (View, bool) {
	e, ok := c.entries[f.Descriptor.Key()]
	if !ok || f.generation != e.generation || !e.inFlight || e.inFlightCursor != f.Cursor {
		return c.viewFor(f.Descriptor), false
	}
	e.inFlight = false
	e.inFlightCursor = ""

	if fetchErr != nil {
		e.lastErr = fetchErr
		// Prior pages stay untouched: a failed refresh never regresses
		// the feed to empty. With nothing cached, fall back to the
		// offline snapshot.
		if len(e.pages) == 0 && f.Cursor == "" {
			c.restoreSnapshot(ctx, e)
		}
		return c.view(e), true
	}

	if f.Cursor == "" {
		// First page replaces whatever was cached, including a
		// restored offline snapshot.
		e.pages = nil
		e.seen = nil
		e.offline = false
	}
	c.appendPage(e, page)
	e.fetchedAt = c.now()
	e.lastErr = nil
	e.offline = false

	if c.store != nil {
		pages := append([]feed.Page(nil), e.pages...)
		_ = c.store.Persist(ctx, f.Descriptor.Key(), pages)
	}
	return c.view(e), true
}

// Invalidate drops every cached page for d and supersedes any fetch in
// flight for it: the entry's generation moves on, so the pending
// fetch's completion is discarded instead of racing the refetch the
// next LoadFirstPage starts.
func (c *PageCache) Invalidate(d feed.Descriptor) {
	e, ok := c.entries[d.Key()]
	if !ok {
		return
	}
	e.pages = nil
	e.seen = nil
	e.fetchedAt = time.Time{}
	e.generation++
	e.inFlight = false
	e.inFlightCursor = ""
	e.offline = false
	e.lastErr = nil
}

// Retain evicts every entry whose key is not listed. In-flight fetches
// for evicted descriptors are implicitly cancelled: their completions
// find no entry and are discarded.
func (c *PageCache) Retain(keys ...string) {
	keep := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keep[k] = struct{}{}
	}
	for k := range c.entries {
		if _, ok := keep[k]; !ok {
			delete(c.entries, k)
		}
	}
}

// CurrentView reads d's state without side effects.
func (c *PageCache) CurrentView(d feed.Descriptor) View {
	return c.viewFor(d)
}

// UpdateItem rewrites the saved flag and version of every cached
// occurrence of id, across all descriptors.
func (c *PageCache) UpdateItem(id string, saved bool, version int64) {
	for _, e := range c.entries {
		for pi := range e.pages {
			items := e.pages[pi].Items
			for i := range items {
				if items[i].ID == id {
					items[i].Saved = saved
					items[i].Version = version
				}
			}
		}
	}
}

// LookupItem returns the cached occurrence of id with the highest
// version, which is the item's current local state.
func (c *PageCache) LookupItem(id string) (feed.Item, bool) {
	var best feed.Item
	found := false
	for _, e := range c.entries {
		for _, p := range e.pages {
			for _, it := range p.Items {
				if it.ID == id && (!found || it.Version > best.Version) {
					best = it
					found = true
				}
			}
		}
	}
	return best, found
}

func (c *PageCache) ensure(d feed.Descriptor) *entry {
	e, ok := c.entries[d.Key()]
	if !ok {
		e = &entry{descriptor: d}
		c.entries[d.Key()] = e
	}
	return e
}

func (c *PageCache) fresh(e *entry) bool {
	if c.maxAge <= 0 {
		return true
	}
	return c.now().Sub(e.fetchedAt) < c.maxAge
}

// appendPage adds page, dropping items whose id was already seen in an
// earlier page of this entry. First occurrence wins.
func (c *PageCache) appendPage(e *entry, page feed.Page) {
	if e.seen == nil {
		e.seen = make(map[string]struct{})
	}
	kept := make([]feed.Item, 0, len(page.Items))
	for _, it := range page.Items {
		if _, dup := e.seen[it.ID]; dup {
			continue
		}
		e.seen[it.ID] = struct{}{}
		kept = append(kept, it)
	}
	e.pages = append(e.pages, feed.Page{Items: kept, NextCursor: page.NextCursor})
}

func (c *PageCache) restoreSnapshot(ctx context.Context, e *entry) {
	if c.store == nil {
		return
	}
	pages, savedAt, ok, err := c.store.Restore(ctx, e.descriptor.Key())
	if err != nil || !ok {
		return
	}
	e.pages = nil
	e.seen = nil
	for _, p := range pages {
		c.appendPage(e, p)
	}
	e.fetchedAt = savedAt
	e.offline = true
}

func (c *PageCache) viewFor(d feed.Descriptor) View {
	if e, ok := c.entries[d.Key()]; ok {
		return c.view(e)
	}
	return View{Descriptor: d}
}

func (c *PageCache) view(e *entry) View {
	v := View{
		Descriptor: e.descriptor,
		Loading:    e.inFlight,
		Offline:    e.offline,
		FetchedAt:  e.fetchedAt,
		Err:        e.lastErr,
	}
	for _, p := range e.pages {
		v.Items = append(v.Items, p.Items...)
	}
	if n := len(e.pages); n > 0 {
		v.HasMore = e.pages[n-1].NextCursor != ""
	}
	return v
}
