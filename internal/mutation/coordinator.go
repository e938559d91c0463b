// Package mutation applies user-initiated saved-flag changes to the
// cache optimistically, then reconciles or rolls back when the server
// answers. A newer intent for the same item supersedes an unresolved
// older one; the older server response is discarded when it lands.
package mutation

import (
	"fmt"

	"github.com/glabrego/prism-cli/internal/feed"
	"github.com/glabrego/prism-cli/internal/newsapi"
)

// Cache is the slice of the page cache the coordinator mutates.
type Cache interface {
	LookupItem(id string) (feed.Item, bool)
	UpdateItem(id string, saved bool, version int64)
}

// Intent tags one in-flight mutation. FromVersion is the item version
// the toggle was computed from; it is what detects stale responses.
type Intent struct {
	ItemID      string
	FromVersion int64
	Desired     bool
}

// Outcome classifies how a server response was reconciled.
type Outcome int

const (
	// Confirmed: the server agreed with the optimistic guess.
	Confirmed Outcome = iota
	// Conflicted: a concurrent mutation won server-side; local state
	// was overwritten with the authoritative value. Not a user error.
	Conflicted
	// RolledBack: the server rejected the mutation; the item was
	// reverted to its pre-toggle state.
	RolledBack
	// Superseded: a newer toggle replaced this intent before it
	// resolved; the response was discarded.
	Superseded
)

type pendingOp struct {
	intent       Intent
	priorSaved   bool
	priorVersion int64
}

// Coordinator tracks at most one pending intent per item. Not
// goroutine-safe on its own; the orchestrator serializes access.
type Coordinator struct {
	cache   Cache
	pending map[string]pendingOp
}

func NewCoordinator(cache Cache) *Coordinator {
	return &Coordinator{cache: cache, pending: make(map[string]pendingOp)}
}

// ToggleSaved flips the cached saved flag immediately and returns the
// intent the caller must send to the server. The version bump makes the
// optimistic state observable synchronously.
func (c *Coordinator) ToggleSaved(itemID string) (Intent, error) {
	cur, ok := c.cache.LookupItem(itemID)
	if !ok {
		return Intent{}, fmt.Errorf("toggle saved: item %q not in cache", itemID)
	}

	intent := Intent{ItemID: itemID, FromVersion: cur.Version, Desired: !cur.Saved}
	// Replacing an unresolved intent supersedes it; its response will
	// fail the stale check in Complete.
	c.pending[itemID] = pendingOp{
		intent:       intent,
		priorSaved:   cur.Saved,
		priorVersion: cur.Version,
	}
	c.cache.UpdateItem(itemID, intent.Desired, cur.Version+1)
	return intent, nil
}

// Pending reports whether an unresolved intent exists for itemID.
func (c *Coordinator) Pending(itemID string) bool {
	_, ok := c.pending[itemID]
	return ok
}

// Complete reconciles a server response against the cache.
func (c *Coordinator) Complete(intent Intent, result newsapi.SaveResult, reqErr error) Outcome {
	op, ok := c.pending[intent.ItemID]
	if !ok || op.intent != intent {
		// A newer toggle owns the item now; this response is stale.
		return Superseded
	}
	if cur, ok := c.cache.LookupItem(intent.ItemID); ok && cur.Version != intent.FromVersion+1 {
		// The item moved on without a replacing toggle (a refresh
		// reloaded it); this intent is resolved, not still pending.
		delete(c.pending, intent.ItemID)
		return Superseded
	}
	delete(c.pending, intent.ItemID)

	if reqErr != nil {
		c.cache.UpdateItem(intent.ItemID, op.priorSaved, op.priorVersion)
		return RolledBack
	}

	// Adopt the server's version either way; overwrite the flag only
	// when the optimistic guess lost.
	c.cache.UpdateItem(intent.ItemID, result.Saved, result.Version)
	if result.Saved != intent.Desired {
		return Conflicted
	}
	return Confirmed
}
