// Package feed defines the identity and record types shared by the
// synchronization engine: feed modes, descriptors, items and pages.
package feed

import "encoding/json"

// Mode selects one of the service's feed variants.
type Mode string

const (
	ModeLatest    Mode = "latest"
	ModeClustered Mode = "clustered"
	ModeBalanced  Mode = "balanced"
)

// Order lists the modes in swipe order, left to right.
var Order = []Mode{ModeLatest, ModeClustered, ModeBalanced}

func (m Mode) Valid() bool {
	switch m {
	case ModeLatest, ModeClustered, ModeBalanced:
		return true
	}
	return false
}

// Item is the subset of an editorial record the engine interprets.
// Payload carries the server's full record untouched; the presentation
// layer renders it without the engine inspecting it.
type Item struct {
	ID      string          `json:"id"`
	Saved   bool            `json:"saved"`
	Version int64           `json:"version"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Page is one fetched slice of a feed. An empty NextCursor marks the
// terminal page.
type Page struct {
	Items      []Item `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}
