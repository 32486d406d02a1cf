package ratchet

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"silent/internal/domain"
	"silent/internal/util/memzero"
)

// MaxSkip bounds both the skipped-key cache and the index gap a single
// message may open.
const MaxSkip = 100

// SkippedKey identifies a message key derived ahead of the receiving counter.
type SkippedKey struct {
	DH    domain.X25519Public
	Index uint32
}

// SkippedEntry is one cached message key, as returned by Entries.
type SkippedEntry struct {
	SkippedKey
	MessageKey []byte
}

// SkippedKeyCache holds message keys for messages that have not arrived yet.
// It keeps insertion order and evicts the oldest entry once full.
type SkippedKeyCache struct {
	keys     *orderedmap.OrderedMap[SkippedKey, []byte]
	capacity int
}

// NewSkippedKeyCache returns an empty cache holding at most MaxSkip keys.
func NewSkippedKeyCache() *SkippedKeyCache {
	return newSkippedKeyCache(MaxSkip)
}

func newSkippedKeyCache(capacity int) *SkippedKeyCache {
	return &SkippedKeyCache{
		keys:     orderedmap.New[SkippedKey, []byte](),
		capacity: capacity,
	}
}

// Put stores a message key. Re-putting an existing key replaces its value in
// place.
func (c *SkippedKeyCache) Put(dh domain.X25519Public, index uint32, messageKey []byte) {
	k := SkippedKey{DH: dh, Index: index}
	if old, ok := c.keys.Get(k); ok {
		memzero.Zero(old)
	} else {
		for c.keys.Len() >= c.capacity {
			oldest := c.keys.Oldest()
			memzero.Zero(oldest.Value)
			c.keys.Delete(oldest.Key)
		}
	}
	c.keys.Set(k, append([]byte(nil), messageKey...))
}

// Take removes and returns the key for (dh, index).
func (c *SkippedKeyCache) Take(dh domain.X25519Public, index uint32) ([]byte, bool) {
	return c.keys.Delete(SkippedKey{DH: dh, Index: index})
}

// Peek returns the key for (dh, index) without removing it.
func (c *SkippedKeyCache) Peek(dh domain.X25519Public, index uint32) ([]byte, bool) {
	return c.keys.Get(SkippedKey{DH: dh, Index: index})
}

// HasDH reports whether any cached key belongs to the ratchet key dh.
func (c *SkippedKeyCache) HasDH(dh domain.X25519Public) bool {
	for p := c.keys.Oldest(); p != nil; p = p.Next() {
		if p.Key.DH == dh {
			return true
		}
	}
	return false
}

// Len is the number of cached keys.
func (c *SkippedKeyCache) Len() int { return c.keys.Len() }

// Entries lists cached keys oldest first. The returned keys are copies.
func (c *SkippedKeyCache) Entries() []SkippedEntry {
	out := make([]SkippedEntry, 0, c.keys.Len())
	for p := c.keys.Oldest(); p != nil; p = p.Next() {
		out = append(out, SkippedEntry{
			SkippedKey: p.Key,
			MessageKey: append([]byte(nil), p.Value...),
		})
	}
	return out
}

// Clone returns a deep copy.
func (c *SkippedKeyCache) Clone() *SkippedKeyCache {
	cp := newSkippedKeyCache(c.capacity)
	for p := c.keys.Oldest(); p != nil; p = p.Next() {
		cp.keys.Set(p.Key, append([]byte(nil), p.Value...))
	}
	return cp
}

// Wipe zeroes and drops every cached key.
func (c *SkippedKeyCache) Wipe() {
	for p := c.keys.Oldest(); p != nil; p = p.Next() {
		memzero.Zero(p.Value)
	}
	c.keys = orderedmap.New[SkippedKey, []byte]()
}
