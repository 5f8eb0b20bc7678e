package reader

import "testing"

func TestFeedStore_MarkRead(t *testing.T) {
	t.Parallel()

	s := NewFeedStore()
	s.Replace(sampleItems())

	if !s.MarkRead(1) {
		t.Error("MarkRead(1) = false, want true for unread item")
	}
	if s.MarkRead(1) {
		t.Error("second MarkRead(1) = true, want false")
	}
	if s.MarkRead(999) {
		t.Error("MarkRead(999) = true for unknown item")
	}

	it, ok := s.Get(1)
	if !ok || !it.IsRead {
		t.Errorf("Get(1) = %+v, %v; want read item", it, ok)
	}
}

func TestFeedStore_ReplaceKeepsReadMonotonic(t *testing.T) {
	t.Parallel()

	s := NewFeedStore()
	s.Replace(sampleItems())
	s.MarkRead(2)

	// a reload that raced the mark-read still reports item 2 unread
	s.Replace(sampleItems())

	it, _ := s.Get(2)
	if !it.IsRead {
		t.Error("item 2 went back to unread after Replace")
	}
	it, _ = s.Get(1)
	if it.IsRead {
		t.Error("item 1 became read without a mark-read")
	}
}

func TestFeedStore_ReplaceDropsMissingItems(t *testing.T) {
	t.Parallel()

	s := NewFeedStore()
	s.Replace(sampleItems())
	s.Replace(sampleItems()[:2])

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if _, ok := s.Get(5); ok {
		t.Error("Get(5) found an item that is no longer in the snapshot")
	}
}

func TestFeedStore_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	s := NewFeedStore()
	s.Replace(sampleItems())

	snap := s.Snapshot()
	snap[0].IsRead = true
	snap[0].Title = "mutated"

	it, _ := s.Get(snap[0].ID)
	if it.IsRead || it.Title == "mutated" {
		t.Errorf("mutating the snapshot changed the store: %+v", it)
	}
}
