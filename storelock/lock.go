// Package storelock provides the advisory single-writer guard standalone
// stores acquire on Open and release on Close (SPEC_FULL §3.5), adapted
// from the teacher's create-exclusive + stale-TTL-break protocol to the
// storefs.FS capability instead of the os package directly.
package storelock

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/INLOpen/urkelstore/storefs"
)

const (
	osExclCreate = os.O_CREATE | os.O_EXCL | os.O_WRONLY
	osReadOnly   = os.O_RDONLY
)

// DefaultStaleTTL is how old an existing lock file's recorded timestamp
// must be before a new acquirer is allowed to break it.
var DefaultStaleTTL = 30 * time.Second

// Handle releases an acquired lock.
type Handle struct {
	fs   storefs.FS
	path string
	pid  uint32
	ts   int64
}

// Acquire creates path atomically (O_EXCL) recording the current pid and
// timestamp. If path already exists and its recorded timestamp is older
// than staleTTL, the stale file is removed and acquisition retried once.
func Acquire(fs storefs.FS, path string, pid int, staleTTL time.Duration) (*Handle, error) {
	if staleTTL <= 0 {
		staleTTL = DefaultStaleTTL
	}

	for attempt := 0; attempt < 2; attempt++ {
		h, err := fs.OpenFile(path, osExclCreate, 0o644)
		if err == nil {
			ts := time.Now().UTC().UnixNano()
			buf := encode(uint32(pid), ts)
			if _, werr := h.Write(buf); werr != nil {
				h.Close()
				return nil, fmt.Errorf("storelock: write %s: %w", path, werr)
			}
			h.Close()
			return &Handle{fs: fs, path: path, pid: uint32(pid), ts: ts}, nil
		}

		existing, rerr := readLock(fs, path)
		if rerr != nil {
			return nil, fmt.Errorf("storelock: acquire %s: %w", path, err)
		}
		age := time.Now().UTC().Sub(time.Unix(0, existing.ts))
		if age <= staleTTL {
			return nil, fmt.Errorf("storelock: %s held by pid %d (age %s)", path, existing.pid, age)
		}
		_ = fs.Unlink(path)
	}
	return nil, fmt.Errorf("storelock: could not acquire %s", path)
}

// Release removes the lock file, but only if it still records this
// handle's pid/timestamp (it has not been broken by a stale-TTL sweep).
func (h *Handle) Release() error {
	existing, err := readLock(h.fs, h.path)
	if err != nil {
		if errors.Is(err, storefs.ErrNotExist) {
			return nil
		}
		return err
	}
	if existing.pid != h.pid || existing.ts != h.ts {
		return nil
	}
	return h.fs.Unlink(h.path)
}

type lockRecord struct {
	pid uint32
	ts  int64
}

func encode(pid uint32, ts int64) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], pid)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(ts))
	return buf
}

func readLock(fs storefs.FS, path string) (lockRecord, error) {
	h, err := fs.OpenFile(path, osReadOnly, 0)
	if err != nil {
		return lockRecord{}, err
	}
	defer h.Close()
	buf := make([]byte, 12)
	if _, err := h.ReadAt(buf, 0); err != nil {
		return lockRecord{}, err
	}
	return lockRecord{
		pid: binary.LittleEndian.Uint32(buf[0:4]),
		ts:  int64(binary.LittleEndian.Uint64(buf[4:12])),
	}, nil
}
