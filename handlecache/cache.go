// Package handlecache implements the bounded, sparse, index-addressed
// collection of open segment handles described in spec §4.4: at most
// MaxOpenFiles resident at a time (a soft target, not a hard cap),
// opening an index is serialized per-index so concurrent openers share
// one handle, and eviction picks uniformly at random among segments that
// are neither the current writable segment nor mid-read.
package handlecache

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	"golang.org/x/sync/singleflight"

	"github.com/INLOpen/urkelstore/segment"
)

// MaxOpenFiles is the default soft cap on resident segment handles.
const MaxOpenFiles = 32

// OpenFunc opens the segment file for index.
type OpenFunc func(index uint16) (*segment.Segment, error)

// ErrAssertion signals a violated internal invariant: a programming
// error, not an I/O failure.
type ErrAssertion struct{ Msg string }

func (e *ErrAssertion) Error() string { return "handlecache: assertion failed: " + e.Msg }

// Cache is a bounded map of open segment handles keyed by segment index.
type Cache struct {
	capacity int

	mu       sync.Mutex
	segments map[uint16]*segment.Segment
	resident *roaring.Bitmap // mirrors the keys of segments, for membership snapshots

	openLocks singleflight.Group // per-index "really_open" serialization

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New returns an empty cache bounded at capacity (MaxOpenFiles if <= 0).
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = MaxOpenFiles
	}
	return &Cache{
		capacity: capacity,
		segments: make(map[uint16]*segment.Segment),
		resident: roaring.New(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Len returns the number of resident handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.segments)
}

// Resident returns a snapshot bitmap of currently-resident segment
// indexes.
func (c *Cache) Resident() *roaring.Bitmap {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resident.Clone()
}

// Get returns the already-resident handle for index, if any, without
// opening it.
func (c *Cache) Get(index uint16) (*segment.Segment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.segments[index]
	return s, ok
}

// GetOrOpen returns the resident handle for index, opening it via open
// if absent. currentIndex names the writable segment, which eviction
// must never pick. Two goroutines calling GetOrOpen(index, ...)
// concurrently are guaranteed to produce (and share) exactly one handle.
func (c *Cache) GetOrOpen(index uint16, currentIndex uint16, open OpenFunc) (*segment.Segment, error) {
	if s, ok := c.Get(index); ok {
		return s, nil
	}

	key := fmt.Sprintf("%d", index)
	v, err, _ := c.openLocks.Do(key, func() (interface{}, error) {
		if s, ok := c.Get(index); ok {
			return s, nil
		}

		s, err := open(index)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if _, ok := c.segments[index]; ok {
			c.mu.Unlock()
			s.Close()
			return nil, &ErrAssertion{Msg: fmt.Sprintf("segment %d admitted twice", index)}
		}
		if len(c.segments) >= c.capacity {
			c.evictLocked(currentIndex)
		}
		c.segments[index] = s
		c.resident.Add(uint32(index))
		c.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*segment.Segment), nil
}

// evictLocked picks a uniformly random victim among cached segments that
// are not currentIndex and have no outstanding reads, and closes it. If
// no such candidate exists, eviction is a no-op: the cap is a soft
// target. Must be called with c.mu held.
func (c *Cache) evictLocked(currentIndex uint16) {
	candidates := make([]uint16, 0, len(c.segments))
	for idx, s := range c.segments {
		if idx == currentIndex {
			continue
		}
		if s.Reads() > 0 {
			continue
		}
		candidates = append(candidates, idx)
	}
	if len(candidates) == 0 {
		return
	}

	c.rngMu.Lock()
	victim := candidates[c.rng.Intn(len(candidates))]
	c.rngMu.Unlock()

	s := c.segments[victim]
	delete(c.segments, victim)
	c.resident.Remove(uint32(victim))
	s.Close()
}

// Remove closes and evicts index unconditionally (used when the store
// advances past a segment or closes). It is the caller's responsibility
// to ensure no read is outstanding.
func (c *Cache) Remove(index uint16) error {
	c.mu.Lock()
	s, ok := c.segments[index]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.segments, index)
	c.resident.Remove(uint32(index))
	c.mu.Unlock()
	return s.Close()
}

// CloseAll closes every resident handle, e.g. on store Close.
func (c *Cache) CloseAll() error {
	c.mu.Lock()
	segs := make([]*segment.Segment, 0, len(c.segments))
	for _, s := range c.segments {
		segs = append(segs, s)
	}
	c.segments = make(map[uint16]*segment.Segment)
	c.resident = roaring.New()
	c.mu.Unlock()

	var firstErr error
	for _, s := range segs {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
