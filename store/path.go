package store

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/INLOpen/urkelstore/storefs"
)

// segmentNameWidth is the fixed decimal width of a segment filename
// (spec §6.1: "the 10-digit zero-padded decimal segment index").
const segmentNameWidth = 10

func segmentName(index uint16) string {
	return fmt.Sprintf("%0*d", segmentNameWidth, index)
}

func segmentPath(dir string, index uint16) string {
	return filepath.Join(dir, segmentName(index))
}

// listSegmentIndices returns every segment index present in dir, sorted
// ascending. Entries whose name doesn't parse as a segmentNameWidth-digit
// decimal are ignored (e.g. a LOCK file).
func listSegmentIndices(fs storefs.FS, dir string) ([]uint16, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	indices := make([]uint16, 0, len(entries))
	for _, e := range entries {
		if e.IsDir || len(e.Name) != segmentNameWidth {
			continue
		}
		n, err := strconv.ParseUint(e.Name, 10, 32)
		if err != nil || n > 0xFFFF {
			continue
		}
		indices = append(indices, uint16(n))
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices, nil
}
