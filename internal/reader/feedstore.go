package reader

import (
	"slices"
	"sync"
)

// FeedStore holds the current snapshot of feed items. Mutations are applied
// by item identity, so a late response only touches its own item.
type FeedStore struct {
	mu    sync.RWMutex
	items []FeedItem
	index map[int64]int // item ID -> position in items
}

// NewFeedStore returns an empty store.
func NewFeedStore() *FeedStore {
	return &FeedStore{index: make(map[int64]int)}
}

// Replace installs a freshly loaded snapshot. Items already known to be read
// stay read even if the snapshot says otherwise, which keeps IsRead monotonic
// when a reload races a mark-read.
func (s *FeedStore) Replace(items []FeedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]FeedItem, len(items))
	index := make(map[int64]int, len(items))
	for i, it := range items {
		if pos, ok := s.index[it.ID]; ok && s.items[pos].IsRead {
			it.IsRead = true
		}
		next[i] = it
		index[it.ID] = i
	}
	s.items = next
	s.index = index
}

// Snapshot returns a copy of all items in load order.
func (s *FeedStore) Snapshot() []FeedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Get returns the item with the given ID.
func (s *FeedStore) Get(id int64) (FeedItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[id]
	if !ok {
		return FeedItem{}, false
	}
	return s.items[pos], true
}

// MarkRead flips IsRead to true for id. It reports whether the flag changed.
// IsRead never goes back to false.
func (s *FeedStore) MarkRead(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.index[id]
	if !ok || s.items[pos].IsRead {
		return false
	}
	s.items[pos].IsRead = true
	return true
}

// Len reports the number of items in the snapshot.
func (s *FeedStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
