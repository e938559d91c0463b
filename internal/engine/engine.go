// Package engine is the feed orchestrator: it owns the active
// descriptor, drives page loads and mode switches through the access
// gate, and exposes a single observable state to the presentation
// layer. Network jobs are returned to the caller to execute; their
// results come back through the Complete methods, which re-check
// staleness under the engine lock.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/glabrego/prism-cli/internal/access"
	"github.com/glabrego/prism-cli/internal/cache"
	"github.com/glabrego/prism-cli/internal/feed"
	"github.com/glabrego/prism-cli/internal/gesture"
	"github.com/glabrego/prism-cli/internal/mutation"
	"github.com/glabrego/prism-cli/internal/newsapi"
)

// GateDenial reports a mode switch the access gate refused. It is a
// gating event consumed by the UI (login prompt), not an error.
type GateDenial struct {
	Mode   feed.Mode
	Reason string
}

// State is the engine's observable snapshot for the presentation layer.
type State struct {
	Mode      feed.Mode
	Tier      access.Tier
	Items     []feed.Item
	HasMore   bool
	Loading   bool
	Offline   bool
	FetchedAt time.Time
	Err       error
}

// Options configures a new Engine.
type Options struct {
	Store          cache.SnapshotStore
	Tier           access.Tier
	SwipeThreshold float64
	CacheMaxAge    time.Duration // 0: cached pages stay fresh for the session
}

// Engine composes the page cache, mutation coordinator, access gate and
// gesture machine behind one mutex, so completions arriving from fetch
// goroutines and calls from the UI loop interleave safely.
type Engine struct {
	mu       sync.Mutex
	cache    *cache.PageCache
	muts     *mutation.Coordinator
	gestures *gesture.Machine
	tier     access.Tier

	active      feed.Descriptor
	previous    feed.Descriptor
	hasPrevious bool
	filters     map[string]string
}

func New(opts Options) *Engine {
	pc := cache.New(opts.Store, opts.CacheMaxAge)
	return &Engine{
		cache:    pc,
		muts:     mutation.NewCoordinator(pc),
		gestures: gesture.NewMachine(feed.ModeLatest, opts.SwipeThreshold),
		tier:     opts.Tier,
	}
}

// Activate makes (mode, filters) the active feed. It returns a fetch
// job when the feed needs loading, a denial when the gate refuses the
// mode, or a *feed.ValidationError for a malformed descriptor. The
// previously active feed's entry is retained for instant back-swipes;
// everything else is evicted.
func (e *Engine) Activate(mode feed.Mode, filters map[string]string) (*cache.Fetch, *GateDenial, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activate(mode, filters)
}

func (e *Engine) activate(mode feed.Mode, filters map[string]string) (*cache.Fetch, *GateDenial, error) {
	if d := access.CanActivate(mode, e.tier); !d.Allowed {
		return nil, &GateDenial{Mode: mode, Reason: d.Reason}, nil
	}

	desc, err := feed.BuildDescriptor(mode, filters)
	if err != nil {
		return nil, nil, err
	}

	if !e.active.Zero() && e.active.Key() != desc.Key() {
		e.previous = e.active
		e.hasPrevious = true
	}
	// Keep the caller's filter set, not the canonical one: a sentiment
	// filter dropped by a balanced descriptor comes back when the user
	// swipes to a mode that understands it.
	e.filters = make(map[string]string, len(filters))
	for k, v := range filters {
		e.filters[k] = v
	}
	e.active = desc
	e.gestures.Commit(mode)

	keep := []string{e.active.Key()}
	if e.hasPrevious {
		keep = append(keep, e.previous.Key())
	}
	e.cache.Retain(keep...)

	_, job := e.cache.LoadFirstPage(desc)
	return job, nil, nil
}

// Swipe feeds a drag's net displacement through the gesture machine.
// moved is true when the active mode changed; a non-nil denial means
// the gate blocked the transition and the mode stayed put.
func (e *Engine) Swipe(dx, dy float64) (job *cache.Fetch, denial *GateDenial, moved bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	target, ok := e.gestures.Propose(dx, dy)
	if !ok {
		return nil, nil, false
	}
	job, denial, err := e.activate(target, e.filters)
	if denial != nil || err != nil {
		return nil, denial, false
	}
	return job, nil, true
}

// LoadNextPage starts fetching the page after the last cached one for
// the active feed. The status lets the UI distinguish already-loading
// from end-of-feed.
func (e *Engine) LoadNextPage() (*cache.Fetch, cache.LoadStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active.Zero() {
		return nil, cache.LoadNotLoaded
	}
	_, job, status := e.cache.LoadNextPage(e.active)
	return job, status
}

// Refresh drops the active feed's cached pages and refetches page one.
// Retry after a failure is always user-initiated; this is that path.
func (e *Engine) Refresh() *cache.Fetch {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active.Zero() {
		return nil
	}
	e.cache.Invalidate(e.active)
	_, job := e.cache.LoadFirstPage(e.active)
	return job
}

// CompleteFetch applies a finished fetch job. Results for descriptors
// that were invalidated or evicted since the job started are discarded.
func (e *Engine) CompleteFetch(ctx context.Context, f cache.Fetch, page feed.Page, fetchErr error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, applied := e.cache.CompleteFetch(ctx, f, page, fetchErr)
	return applied
}

// AdjacentPrefetch returns first-page jobs for the modes one swipe away
// from the active one, skipping gated modes and feeds already cached or
// loading. Callers run these at their leisure.
func (e *Engine) AdjacentPrefetch() []cache.Fetch {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active.Zero() {
		return nil
	}

	var jobs []cache.Fetch
	for _, mode := range adjacentModes(e.active.Mode()) {
		if d := access.CanActivate(mode, e.tier); !d.Allowed {
			continue
		}
		desc, err := feed.BuildDescriptor(mode, e.filters)
		if err != nil {
			continue
		}
		if _, job := e.cache.LoadFirstPage(desc); job != nil {
			jobs = append(jobs, *job)
		}
	}
	return jobs
}

// ToggleSaved applies an optimistic saved-flag flip and returns the
// intent to send to the server.
func (e *Engine) ToggleSaved(itemID string) (mutation.Intent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muts.ToggleSaved(itemID)
}

// CompleteToggle reconciles the server's answer to a toggle.
func (e *Engine) CompleteToggle(intent mutation.Intent, result newsapi.SaveResult, reqErr error) mutation.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muts.Complete(intent, result, reqErr)
}

// ActiveDescriptor returns the identity of the active feed.
func (e *Engine) ActiveDescriptor() feed.Descriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// State snapshots the active feed for rendering.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := State{Mode: e.gestures.Current(), Tier: e.tier}
	if e.active.Zero() {
		return s
	}
	v := e.cache.CurrentView(e.active)
	s.Items = v.Items
	s.HasMore = v.HasMore
	s.Loading = v.Loading
	s.Offline = v.Offline
	s.FetchedAt = v.FetchedAt
	s.Err = v.Err
	return s
}

func adjacentModes(mode feed.Mode) []feed.Mode {
	var out []feed.Mode
	for i, m := range feed.Order {
		if m != mode {
			continue
		}
		if i > 0 {
			out = append(out, feed.Order[i-1])
		}
		if i+1 < len(feed.Order) {
			out = append(out, feed.Order[i+1])
		}
	}
	return out
}
