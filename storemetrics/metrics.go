// Package storemetrics tracks commit and read latency percentiles for a
// store and exposes them over expvar, mirroring the teacher's
// wal.metricsBytesWritten / cache.hits expvar convention and its use of
// go-tdigest for streaming quantile estimation (iterator package).
package storemetrics

import (
	"expvar"
	"fmt"
	"sync"
	"time"

	"github.com/caio/go-tdigest/v4"
)

// Metrics accumulates commit/read latency samples for one store instance.
type Metrics struct {
	name string

	mu          sync.Mutex
	commitTD    *tdigest.TDigest
	readTD      *tdigest.TDigest
	commitCount *expvar.Int
	readCount   *expvar.Int
	bytesWritten *expvar.Int
}

// New creates a Metrics set and registers its expvar map under
// "urkelstore.<name>". Passing an empty name skips expvar registration
// (useful in tests that construct many stores in one process).
func New(name string) (*Metrics, error) {
	commitTD, err := tdigest.New()
	if err != nil {
		return nil, fmt.Errorf("storemetrics: commit tdigest: %w", err)
	}
	readTD, err := tdigest.New()
	if err != nil {
		return nil, fmt.Errorf("storemetrics: read tdigest: %w", err)
	}
	m := &Metrics{
		name:         name,
		commitTD:     commitTD,
		readTD:       readTD,
		commitCount:  new(expvar.Int),
		readCount:    new(expvar.Int),
		bytesWritten: new(expvar.Int),
	}
	if name != "" {
		mapName := "urkelstore." + name
		if expvar.Get(mapName) == nil {
			em := expvar.NewMap(mapName)
			em.Set("commits", m.commitCount)
			em.Set("reads", m.readCount)
			em.Set("bytes_written", m.bytesWritten)
		}
	}
	return m, nil
}

// ObserveCommit records one commit's latency and byte count.
func (m *Metrics) ObserveCommit(d time.Duration, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.commitTD.AddWeighted(float64(d.Microseconds()), 1)
	m.commitCount.Add(1)
	m.bytesWritten.Add(bytes)
}

// ObserveRead records one node/value read's latency.
func (m *Metrics) ObserveRead(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.readTD.AddWeighted(float64(d.Microseconds()), 1)
	m.readCount.Add(1)
}

// Percentiles is a latency snapshot in microseconds.
type Percentiles struct {
	P50, P90, P99 float64
}

// CommitLatency returns the commit latency percentiles observed so far;
// all zero until the first commit is observed.
func (m *Metrics) CommitLatency() Percentiles {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitTD.Count() == 0 {
		return Percentiles{}
	}
	return Percentiles{
		P50: m.commitTD.Quantile(0.50),
		P90: m.commitTD.Quantile(0.90),
		P99: m.commitTD.Quantile(0.99),
	}
}

// ReadLatency returns the read latency percentiles observed so far; all
// zero until the first read is observed.
func (m *Metrics) ReadLatency() Percentiles {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readTD.Count() == 0 {
		return Percentiles{}
	}
	return Percentiles{
		P50: m.readTD.Quantile(0.50),
		P90: m.readTD.Quantile(0.90),
		P99: m.readTD.Quantile(0.99),
	}
}
