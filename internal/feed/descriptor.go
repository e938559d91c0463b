package feed

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports a descriptor that cannot identify a feed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid feed descriptor: %s: %s", e.Field, e.Reason)
}

// Filter keys the service understands per mode. The balanced feed mixes
// sources across the spectrum server-side, so sentiment is meaningless
// there; it is dropped rather than rejected so callers can carry filter
// state across a mode switch without breaking.
const (
	FilterTopic     = "topic"
	FilterSource    = "source"
	FilterSentiment = "sentiment"
)

func allowedFilter(mode Mode, key string) bool {
	switch key {
	case FilterTopic, FilterSource:
		return true
	case FilterSentiment:
		return mode != ModeBalanced
	}
	return false
}

// Descriptor is the canonical identity of a logical feed: a mode plus a
// filter set. Immutable once built; Key is stable across filter map
// ordering and doubles as the cache and snapshot key.
type Descriptor struct {
	mode    Mode
	filters map[string]string
	key     string
}

// BuildDescriptor validates mode and filters and returns the canonical
// descriptor. Unknown filter keys produce a *ValidationError, except
// sentiment in balanced mode, which is silently dropped.
func BuildDescriptor(mode Mode, filters map[string]string) (Descriptor, error) {
	if !mode.Valid() {
		return Descriptor{}, &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", string(mode))}
	}

	kept := make(map[string]string, len(filters))
	for k, v := range filters {
		if k == FilterSentiment && mode == ModeBalanced {
			continue
		}
		if !allowedFilter(mode, k) {
			return Descriptor{}, &ValidationError{Field: k, Reason: fmt.Sprintf("filter not supported by mode %q", string(mode))}
		}
		kept[k] = v
	}

	keys := make([]string, 0, len(kept))
	for k := range kept {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(mode))
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(kept[k])
	}

	return Descriptor{mode: mode, filters: kept, key: b.String()}, nil
}

func (d Descriptor) Mode() Mode { return d.mode }

// Key returns the canonical string form. Two descriptors are the same
// feed iff their keys are equal.
func (d Descriptor) Key() string { return d.key }

// Filters returns a copy of the filter set.
func (d Descriptor) Filters() map[string]string {
	out := make(map[string]string, len(d.filters))
	for k, v := range d.filters {
		out[k] = v
	}
	return out
}

// Zero reports whether the descriptor was never built.
func (d Descriptor) Zero() bool { return d.key == "" }
