package reader

import (
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SourceRegistry caches the subscribed sources in canonical order: display
// name ascending under locale collation, case-sensitive.
type SourceRegistry struct {
	mu      sync.RWMutex
	sources []Source
}

// NewSourceRegistry returns an empty registry.
func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{}
}

// Replace swaps in a fresh snapshot and sorts it.
func (r *SourceRegistry) Replace(sources []Source) {
	cp := slices.Clone(sources)
	SortSources(cp)

	r.mu.Lock()
	r.sources = cp
	r.mu.Unlock()
}

// List returns a copy of the sources in canonical order.
func (r *SourceRegistry) List() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.sources)
}

// Get returns the source with the given ID.
func (r *SourceRegistry) Get(id int64) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// Lookup resolves a source by numeric ID or by exact display name.
func (r *SourceRegistry) Lookup(ref string) (Source, bool) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if s, ok := r.Get(id); ok {
			return s, true
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sources {
		if s.Name == ref {
			return s, true
		}
	}
	return Source{}, false
}

// Len reports the number of cached sources.
func (r *SourceRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

// SortSources orders sources by display name using root-locale collation.
// Names that collate equal fall back to byte order, then ID, so the result
// is deterministic.
func SortSources(sources []Source) {
	// collators are not safe for concurrent use
	c := collate.New(language.Und)
	slices.SortStableFunc(sources, func(a, b Source) int {
		if n := c.CompareString(a.Name, b.Name); n != 0 {
			return n
		}
		if n := strings.Compare(a.Name, b.Name); n != 0 {
			return n
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
