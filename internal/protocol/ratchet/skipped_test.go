package ratchet_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"silent/internal/domain"
	"silent/internal/protocol/ratchet"
)

func key(b byte) []byte { return bytes.Repeat([]byte{b}, 32) }

func TestSkippedKeyCache_FIFOEviction(t *testing.T) {
	require := require.New(t)
	c := ratchet.NewSkippedKeyCache()

	var dh domain.X25519Public
	dh[0] = 1
	for i := 0; i <= ratchet.MaxSkip; i++ {
		c.Put(dh, uint32(i), key(byte(i)))
	}
	require.Equal(ratchet.MaxSkip, c.Len())

	_, ok := c.Peek(dh, 0)
	require.False(ok, "oldest entry should have been evicted")

	entries := c.Entries()
	require.Equal(uint32(1), entries[0].Index)
	require.Equal(uint32(ratchet.MaxSkip), entries[len(entries)-1].Index)
}

func TestSkippedKeyCache_TakeRemoves(t *testing.T) {
	require := require.New(t)
	c := ratchet.NewSkippedKeyCache()

	var a, b domain.X25519Public
	a[0], b[0] = 1, 2
	c.Put(a, 3, key(0xaa))
	c.Put(b, 3, key(0xbb))

	got, ok := c.Take(a, 3)
	require.True(ok)
	require.Equal(key(0xaa), got)
	require.Equal(1, c.Len())

	_, ok = c.Take(a, 3)
	require.False(ok)
	require.True(c.HasDH(b))
	require.False(c.HasDH(a))
}

func TestSkippedKeyCache_PutExistingKeepsSize(t *testing.T) {
	require := require.New(t)
	c := ratchet.NewSkippedKeyCache()

	var dh domain.X25519Public
	for i := 0; i < ratchet.MaxSkip; i++ {
		c.Put(dh, uint32(i), key(1))
	}
	c.Put(dh, 0, key(2))
	require.Equal(ratchet.MaxSkip, c.Len())

	got, ok := c.Peek(dh, 0)
	require.True(ok)
	require.Equal(key(2), got)
}

func TestSkippedKeyCache_CloneIsDeep(t *testing.T) {
	require := require.New(t)
	c := ratchet.NewSkippedKeyCache()

	var dh domain.X25519Public
	c.Put(dh, 1, key(7))
	cp := c.Clone()
	c.Wipe()

	require.Zero(c.Len())
	got, ok := cp.Peek(dh, 1)
	require.True(ok)
	require.Equal(key(7), got)
}
