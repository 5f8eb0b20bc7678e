// Package ingest fetches RSS, Atom and JSON feeds and turns their entries
// into feeds.Feed values ready for storage.
package ingest
