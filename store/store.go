// Package store orchestrates the persistent Urkel node store: segment
// lifecycle, the write buffer, meta-record recovery, and the root
// history chain (spec §4.6).
package store

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"go.opentelemetry.io/otel/trace"

	"github.com/INLOpen/urkelstore/compressors"
	"github.com/INLOpen/urkelstore/handlecache"
	"github.com/INLOpen/urkelstore/hashcap"
	"github.com/INLOpen/urkelstore/meta"
	"github.com/INLOpen/urkelstore/node"
	"github.com/INLOpen/urkelstore/segment"
	"github.com/INLOpen/urkelstore/storefs"
	"github.com/INLOpen/urkelstore/storefs/osfs"
	"github.com/INLOpen/urkelstore/storelock"
	"github.com/INLOpen/urkelstore/storemetrics"
	"github.com/INLOpen/urkelstore/writebuffer"
)

// lowDiskSpaceThreshold is the default free-space floor below which
// Open logs a Warn (SPEC_FULL §3.3). Advisory only; never blocks Open.
const lowDiskSpaceThreshold = 512 * 1024 * 1024

// Options configures a Store. FS, Hasher and Logger default to sane
// values (osfs, BLAKE2b-256, slog.Default) when left zero.
type Options struct {
	Dir                 string
	FS                  storefs.FS
	Hasher              hashcap.Hasher
	KeySize             int
	MaxFileSize         int64
	HandleCacheCapacity int
	Standalone          bool
	Compressor          compressors.ValueCompressor
	Logger              *slog.Logger
	Tracer              trace.Tracer
	Metrics             *storemetrics.Metrics
	LockStaleTTL        time.Duration
}

func (o *Options) setDefaults() {
	if o.FS == nil {
		o.FS = osfs.New()
	}
	if o.Hasher == nil {
		o.Hasher = hashcap.Blake2b256{}
	}
	if o.KeySize == 0 {
		o.KeySize = 32
	}
	if o.MaxFileSize == 0 {
		o.MaxFileSize = 0x7FFF_F000
	}
	if o.HandleCacheCapacity == 0 {
		o.HandleCacheCapacity = handlecache.MaxOpenFiles
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Tracer == nil {
		o.Tracer = trace.NewNoopTracerProvider().Tracer("urkelstore")
	}
}

// Store is a single-writer, many-reader persistent node store.
type Store struct {
	opts    Options
	codec   node.Codec
	log     *slog.Logger

	mu    sync.Mutex
	state State

	cache        *handlecache.Cache
	current      *segment.Segment
	currentIndex uint16
	buf          *writebuffer.Buffer

	lastMetaSegment uint16
	lastMetaOffset  uint32

	rootChild  node.Child
	rootDigest []byte

	rootCacheMu sync.Mutex
	rootCache   map[string]node.Child

	readLock sync.Mutex

	lock *storelock.Handle
}

// New validates opts and returns a Store in the Closed state. Call
// Open before reading or writing.
func New(opts Options) (*Store, error) {
	opts.setDefaults()
	if opts.Dir == "" {
		return nil, fmt.Errorf("store: Dir is required")
	}
	metrics := opts.Metrics
	if metrics == nil {
		m, err := storemetrics.New("")
		if err != nil {
			return nil, err
		}
		metrics = m
	}
	opts.Metrics = metrics

	return &Store{
		opts:  opts,
		codec: node.Codec{Hasher: opts.Hasher, KeySize: opts.KeySize},
		log:   opts.Logger.With("component", "store"),
		state: StateClosed,
	}, nil
}

// Hasher returns the hash capability this store was opened with, e.g.
// for a caller building node graphs to pass to WriteNode/Commit.
func (s *Store) Hasher() hashcap.Hasher { return s.opts.Hasher }

// State reports the store's current lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) requireOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return ErrStoreClosed
	}
	return nil
}

// Open prepares the current segment and write buffer and, in standalone
// mode, recovers the committed root from the meta chain. Reopening an
// already-open store is an error; reopening after Close is legal.
func (s *Store) Open(ctx context.Context) error {
	ctx, span := s.opts.Tracer.Start(ctx, "Store.Open")
	defer span.End()

	s.mu.Lock()
	if s.state != StateClosed {
		s.mu.Unlock()
		return ErrStoreOpen
	}
	s.state = StateOpening
	s.mu.Unlock()

	fail := func(err error) error {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		return err
	}

	fs := s.opts.FS
	if err := fs.MkdirAll(s.opts.Dir, 0o750); err != nil {
		return fail(fmt.Errorf("store: mkdir %s: %w", s.opts.Dir, err))
	}

	if s.opts.Standalone {
		lockPath := filepath.Join(s.opts.Dir, "LOCK")
		lock, err := storelock.Acquire(fs, lockPath, os.Getpid(), s.opts.LockStaleTTL)
		if err != nil {
			return fail(fmt.Errorf("store: acquire lock: %w", err))
		}
		s.lock = lock
		s.checkDiskSpace()
	}

	indices, err := listSegmentIndices(fs, s.opts.Dir)
	if err != nil {
		return fail(err)
	}

	if len(indices) > 0 {
		for i, idx := range indices {
			if int(idx) != i+1 {
				return fail(ErrMissingTreeFiles)
			}
		}
	}

	if err := s.recover(indices); err != nil {
		return fail(err)
	}

	current, err := segment.Open(fs, segmentPath(s.opts.Dir, s.currentIndex), s.currentIndex, true)
	if err != nil {
		return fail(fmt.Errorf("store: open current segment: %w", err))
	}
	if s.opts.MaxFileSize > 0 {
		_ = osfs.Preallocate(current.Handle(), s.opts.MaxFileSize)
	}
	s.current = current
	s.buf = writebuffer.New(s.currentIndex, uint32(current.Size()), s.opts.MaxFileSize)
	s.cache = handlecache.New(s.opts.HandleCacheCapacity)

	if err := s.loadRoot(ctx); err != nil {
		return fail(err)
	}

	s.mu.Lock()
	s.state = StateOpen
	s.mu.Unlock()
	return nil
}

func (s *Store) checkDiskSpace() {
	usage, err := disk.Usage(s.opts.Dir)
	if err != nil {
		return
	}
	if usage.Free < lowDiskSpaceThreshold {
		s.log.Warn("low disk space at store directory", "dir", s.opts.Dir, "free_bytes", usage.Free)
	}
}

// loadRoot resolves the committed root node referenced by the adopted
// meta record (if any) into s.rootChild/s.rootDigest and seeds the root
// cache. Embedded-mode stores never track a root (SPEC_FULL §4).
func (s *Store) loadRoot(ctx context.Context) error {
	if !s.opts.Standalone || s.lastMetaSegment == 0 {
		s.rootChild = node.NullChild()
		s.rootDigest = s.opts.Hasher.Zero()
		s.rootCache = map[string]node.Child{hexDigest(s.rootDigest): s.rootChild}
		return nil
	}

	rootPtr, err := s.readMetaRootPointer(s.lastMetaSegment, s.lastMetaOffset)
	if err != nil {
		return err
	}
	s.rootCache = make(map[string]node.Child)
	if rootPtr.Segment == 0 {
		s.rootChild = node.NullChild()
		s.rootDigest = s.opts.Hasher.Zero()
		s.rootCache[hexDigest(s.rootDigest)] = s.rootChild
		return nil
	}

	// Read the node directly: the store is still Opening here, so the
	// public ReadNodeSync (which requires Open) cannot be used.
	seg, err := s.segmentForRead(rootPtr.Segment)
	if err != nil {
		return fmt.Errorf("store: resolve recovered root: %w", err)
	}
	data, err := seg.ReadSync(int64(rootPtr.Offset), s.codec.NodeSize())
	if err != nil {
		return fmt.Errorf("store: resolve recovered root: %w", err)
	}
	root, err := s.codec.Decode(data, rootPtr.Segment, rootPtr.Offset)
	if err != nil {
		return fmt.Errorf("store: resolve recovered root: %w", err)
	}
	s.rootDigest = root.Digest(s.opts.Hasher)
	s.rootChild = node.ResolvedChild(root, s.opts.Hasher)
	s.rootCache[hexDigest(s.rootDigest)] = s.rootChild
	// get_history(zero) must always succeed, even when the current
	// root is non-null and no commit in the recovered chain happens to
	// be the empty tree.
	s.rootCache[hexDigest(s.opts.Hasher.Zero())] = node.NullChild()
	return nil
}

func (s *Store) readMetaRootPointer(segIdx uint16, offset uint32) (node.Pointer, error) {
	seg, err := segment.Open(s.opts.FS, segmentPath(s.opts.Dir, segIdx), segIdx, false)
	if err != nil {
		return node.Pointer{}, err
	}
	defer seg.Close()
	buf, err := seg.ReadSync(int64(offset), meta.Size)
	if err != nil {
		return node.Pointer{}, err
	}
	rec, err := meta.Decode(buf, s.opts.Hasher)
	if err != nil {
		return node.Pointer{}, err
	}
	return node.Pointer{Segment: rec.RootSegment, Offset: rec.RootOffset}, nil
}

// Close drops in-memory state and closes every open segment. It never
// flushes: a caller who omitted Commit loses the uncommitted tail.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	s.state = StateClosing
	s.mu.Unlock()

	var firstErr error
	if s.cache != nil {
		if err := s.cache.CloseAll(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.current != nil {
		if err := s.current.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.lock != nil {
		if err := s.lock.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.lock = nil
	}

	s.current = nil
	s.cache = nil
	s.buf = nil
	s.rootCache = nil

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	return firstErr
}

// Destroy unlinks every segment file and removes the directory. It is
// only valid while the store is closed. If the directory cannot be
// removed (e.g. an unexpected extra file), it is renamed to a
// randomized sibling path instead and the rename is logged.
func (s *Store) Destroy(ctx context.Context) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateClosed {
		return ErrStoreOpen
	}

	fs := s.opts.FS
	indices, err := listSegmentIndices(fs, s.opts.Dir)
	if err != nil {
		return err
	}
	for _, idx := range indices {
		_ = fs.Unlink(segmentPath(s.opts.Dir, idx))
	}
	_ = fs.Unlink(filepath.Join(s.opts.Dir, "LOCK"))

	if err := fs.Rmdir(s.opts.Dir); err != nil {
		sibling := fmt.Sprintf("%s.destroyed-%08x", s.opts.Dir, rand.Uint32())
		if rerr := fs.Rename(s.opts.Dir, sibling); rerr != nil {
			return fmt.Errorf("store: destroy: rmdir failed (%v) and rename failed (%w)", err, rerr)
		}
		s.log.Warn("destroy: directory not empty, renamed aside", "dir", s.opts.Dir, "renamed_to", sibling)
	}
	return nil
}

func hexDigest(d []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(d)*2)
	for i, b := range d {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}
