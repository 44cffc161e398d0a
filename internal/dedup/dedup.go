// Package dedup decides which candidate sources still need transcribing.
package dedup

import (
	"context"
	"strings"
	"sync"

	"bobbin/internal/source"
)

// Set is a membership set of media identifiers.
type Set map[string]struct{}

// NewSet builds a Set from values, ignoring blanks.
func NewSet(values ...string) Set {
	set := make(Set, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// Has reports whether media is a member.
func (s Set) Has(media string) bool {
	if s == nil {
		return false
	}
	_, ok := s[media]
	return ok
}

// ShouldInclude reports whether item should be queued: its media identity
// must be absent from both sets, and when a cutoff is set its event date must
// be strictly after the cutoff. Items without an event date are excluded
// whenever a cutoff is set.
func ShouldInclude(item source.Record, existing, exclusions Set, cutoff *source.Date) bool {
	media := item.Media()
	if existing.Has(media) || exclusions.Has(media) {
		return false
	}
	if cutoff == nil || cutoff.IsZero() {
		return true
	}
	if item.EventDate == nil || item.EventDate.IsZero() {
		return false
	}
	return item.EventDate.After(*cutoff)
}

// Filter applies ShouldInclude to candidates and returns the survivors in
// order together with the excluded count.
func Filter(candidates []source.Source, existing, exclusions Set, cutoff *source.Date) ([]source.Source, int) {
	included := make([]source.Source, 0, len(candidates))
	excluded := 0
	for _, candidate := range candidates {
		if ShouldInclude(candidate.Record, existing, exclusions, cutoff) {
			included = append(included, candidate)
			continue
		}
		excluded++
	}
	return included, excluded
}

// Lister produces the set of already covered media identifiers.
type Lister interface {
	ListExistingMedia(ctx context.Context) (map[string]struct{}, error)
}

// Index loads the existing media set on first use and caches the result,
// including a failed load, until Invalidate.
type Index struct {
	lister Lister

	mu     sync.Mutex
	loaded bool
	set    Set
	err    error
}

// NewIndex wraps a Lister. A nil lister yields an empty set.
func NewIndex(lister Lister) *Index {
	return &Index{lister: lister}
}

// Get returns the cached set, loading it on the first call after
// construction or Invalidate. A failed load is cached too.
func (i *Index) Get(ctx context.Context) (Set, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.loaded {
		return i.set, i.err
	}
	i.loaded = true
	i.set, i.err = Set{}, nil
	if i.lister == nil {
		return i.set, nil
	}
	media, err := i.lister.ListExistingMedia(ctx)
	if err != nil {
		i.set, i.err = nil, err
		return nil, err
	}
	if media != nil {
		i.set = Set(media)
	}
	return i.set, nil
}

// Invalidate drops the cached set so the next Get reloads it.
func (i *Index) Invalidate() {
	i.mu.Lock()
	i.loaded = false
	i.set, i.err = nil, nil
	i.mu.Unlock()
}
