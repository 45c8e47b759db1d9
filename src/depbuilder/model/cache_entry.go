// Package model holds the storage shapes used by repositories.
package model

import "time"

// CacheSlot is where a result lives in the cache. The content hash is not part
// of it, so a stale entry for the same query can be found and purged.
type CacheSlot struct {
	Path      string
	Method    int
	Line      int
	Character int
}

// CacheEntry is the repository layer model for one cached result.
type CacheEntry struct {
	Slot        CacheSlot
	ContentHash string
	// Value is the encoded result. Callers only ever see copies.
	Value    []byte
	StoredAt time.Time
	// LastAccess is when the entry was last stored or served.
	LastAccess time.Time
}
