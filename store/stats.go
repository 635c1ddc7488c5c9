package store

import "github.com/INLOpen/urkelstore/storemetrics"

// Stats is a snapshot of store-level counters, exposed over expvar by
// storemetrics and returned here for programmatic callers (e.g. the
// debug gRPC service's Stat RPC).
type Stats struct {
	SegmentCount  int
	CachedHandles int
	RootCacheSize int
	CommitLatency storemetrics.Percentiles
	ReadLatency   storemetrics.Percentiles
}

// Stats returns a snapshot of the store's current size and latency
// counters (SPEC_FULL §3.4).
func (s *Store) Stats() (Stats, error) {
	if err := s.requireOpen(); err != nil {
		return Stats{}, err
	}
	s.rootCacheMu.Lock()
	rootCacheSize := len(s.rootCache)
	s.rootCacheMu.Unlock()
	return Stats{
		SegmentCount:  int(s.currentIndex),
		CachedHandles: s.cache.Len(),
		RootCacheSize: rootCacheSize,
		CommitLatency: s.opts.Metrics.CommitLatency(),
		ReadLatency:   s.opts.Metrics.ReadLatency(),
	}, nil
}
