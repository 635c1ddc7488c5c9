package store

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/INLOpen/urkelstore/compressors"
	"github.com/INLOpen/urkelstore/hashcap"
	"github.com/INLOpen/urkelstore/node"
	"github.com/INLOpen/urkelstore/storefs/memfs"
)

func newTestStore(t *testing.T, fs *memfs.FS, dir string, standalone bool) *Store {
	t.Helper()
	return newTestStoreWithCompressor(t, fs, dir, standalone, nil)
}

func newTestStoreWithCompressor(t *testing.T, fs *memfs.FS, dir string, standalone bool, compressor compressors.ValueCompressor) *Store {
	t.Helper()
	s, err := New(Options{
		Dir:         dir,
		FS:          fs,
		Hasher:      hashcap.Blake2b256{},
		KeySize:     32,
		MaxFileSize: 1 << 20,
		Standalone:  standalone,
		Compressor:  compressor,
	})
	require.NoError(t, err)
	return s
}

func openTestStore(t *testing.T, fs *memfs.FS, dir string, standalone bool) *Store {
	t.Helper()
	s := newTestStore(t, fs, dir, standalone)
	require.NoError(t, s.Open(context.Background()))
	return s
}

func openTestStoreWithCompressor(t *testing.T, fs *memfs.FS, dir string, standalone bool, compressor compressors.ValueCompressor) *Store {
	t.Helper()
	s := newTestStoreWithCompressor(t, fs, dir, standalone, compressor)
	require.NoError(t, s.Open(context.Background()))
	return s
}

func leafKey(b byte) []byte {
	k := make([]byte, 32)
	k[0] = b
	return k
}

// writeLeaf writes a value and a leaf node referencing it, returning the
// leaf with its placement set.
func writeLeaf(t *testing.T, s *Store, key, value []byte) *node.Leaf {
	t.Helper()
	digest := s.opts.Hasher.Digest(append(append([]byte{}, key...), value...))
	leaf := node.NewLeaf(key, digest)
	require.NoError(t, s.WriteValue(leaf, value))
	_, err := s.WriteNode(leaf)
	require.NoError(t, err)
	return leaf
}

func TestOpenFreshDirectoryStartsAtSegmentOne(t *testing.T) {
	fs := memfs.New()
	s := openTestStore(t, fs, "/db", true)
	defer s.Close()

	require.Equal(t, StateOpen, s.State())
	require.EqualValues(t, 1, s.currentIndex)

	root, err := s.GetRoot()
	require.NoError(t, err)
	require.True(t, root.IsNull(s.opts.Hasher))
}

func TestCommitRoundTripsALeaf(t *testing.T) {
	fs := memfs.New()
	s := openTestStore(t, fs, "/db", true)
	defer s.Close()

	leaf := writeLeaf(t, s, leafKey(1), []byte("hello urkel"))
	rootDigest, err := s.Commit(context.Background(), leaf)
	require.NoError(t, err)
	require.NotEmpty(t, rootDigest)

	ptr, ok := leaf.Placement()
	require.True(t, ok)

	readBack, err := s.ReadNodeSync(ptr)
	require.NoError(t, err)
	readLeaf, ok := readBack.(*node.Leaf)
	require.True(t, ok)
	require.True(t, bytes.Equal(readLeaf.Key, leaf.Key))

	value, err := s.ReadValue(readLeaf)
	require.NoError(t, err)
	require.Equal(t, "hello urkel", string(value))
}

func TestCommitPersistsRootAcrossReopen(t *testing.T) {
	fs := memfs.New()
	s := openTestStore(t, fs, "/db", true)

	leaf := writeLeaf(t, s, leafKey(2), []byte("persisted"))
	rootDigest, err := s.Commit(context.Background(), leaf)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened := openTestStore(t, fs, "/db", true)
	defer reopened.Close()

	gotDigest, err := reopened.GetRootHash()
	require.NoError(t, err)
	require.True(t, bytes.Equal(rootDigest, gotDigest))

	root, err := reopened.GetRoot()
	require.NoError(t, err)
	require.False(t, root.IsNull(reopened.opts.Hasher))
}

func TestGetHistoryWalksBackwardChain(t *testing.T) {
	fs := memfs.New()
	s := openTestStore(t, fs, "/db", true)

	leaf1 := writeLeaf(t, s, leafKey(3), []byte("v1"))
	digest1, err := s.Commit(context.Background(), leaf1)
	require.NoError(t, err)

	leaf2 := writeLeaf(t, s, leafKey(4), []byte("v2"))
	digest2, err := s.Commit(context.Background(), leaf2)
	require.NoError(t, err)
	require.False(t, bytes.Equal(digest1, digest2))
	require.NoError(t, s.Close())

	// Reopening seeds the root cache only with the latest commit and the
	// zero digest, so looking up digest1 forces an actual walk back through the meta
	// chain rather than a cache hit.
	reopened := openTestStore(t, fs, "/db", true)
	defer reopened.Close()

	child, err := reopened.GetHistory(digest1)
	require.NoError(t, err)
	require.False(t, child.IsNull(reopened.opts.Hasher))
	require.True(t, bytes.Equal(child.Digest, digest1))

	_, err = reopened.GetHistory([]byte("not-a-real-root-digest-32-bytes"))
	require.ErrorIs(t, err, ErrMissingNode)
}

func TestRecoveryTruncatesTornTail(t *testing.T) {
	fs := memfs.New()
	s := openTestStore(t, fs, "/db", true)

	leaf := writeLeaf(t, s, leafKey(5), []byte("clean commit"))
	_, err := s.Commit(context.Background(), leaf)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.NoError(t, fs.AppendJunk(segmentPath("/db", 1), 17))

	reopened := openTestStore(t, fs, "/db", true)
	defer reopened.Close()

	value, err := reopened.ReadValue(leaf)
	require.NoError(t, err)
	require.Equal(t, "clean commit", string(value))
}

func TestReopeningAnOpenStoreFails(t *testing.T) {
	fs := memfs.New()
	s := openTestStore(t, fs, "/db", true)
	defer s.Close()

	require.ErrorIs(t, s.Open(context.Background()), ErrStoreOpen)
}

func TestOperationsOnClosedStoreFail(t *testing.T) {
	fs := memfs.New()
	s := newTestStore(t, fs, "/db", true)

	_, err := s.GetRootHash()
	require.ErrorIs(t, err, ErrStoreClosed)
}

func TestEmbeddedStoreHasNoHistoryChain(t *testing.T) {
	fs := memfs.New()
	s := openTestStore(t, fs, "/db", false)
	defer s.Close()

	leaf := writeLeaf(t, s, leafKey(6), []byte("embedded"))
	_, err := s.Commit(context.Background(), leaf)
	require.NoError(t, err)

	_, err = s.GetHistory(s.opts.Hasher.Zero())
	require.ErrorIs(t, err, ErrStandaloneOnly)
}

func TestCommitRoundTripsACompressedLeaf(t *testing.T) {
	fs := memfs.New()
	s := openTestStoreWithCompressor(t, fs, "/db", true, compressors.LZ4{})
	defer s.Close()

	value := bytes.Repeat([]byte("compress me please compress me please "), 64)
	leaf := writeLeaf(t, s, leafKey(8), value)
	_, err := s.Commit(context.Background(), leaf)
	require.NoError(t, err)

	readBack, err := s.ReadValue(leaf)
	require.NoError(t, err)
	require.True(t, bytes.Equal(value, readBack))
}

func TestGetHistoryZeroDigestSucceedsAfterNonNullRestart(t *testing.T) {
	fs := memfs.New()
	s := openTestStore(t, fs, "/db", true)

	leaf := writeLeaf(t, s, leafKey(9), []byte("non-null root"))
	_, err := s.Commit(context.Background(), leaf)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening recovers a non-null root and, per the non-empty branch
	// of loadRoot, must still seed the zero digest so get_history(zero)
	// succeeds even though no commit in the chain had a null root.
	reopened := openTestStore(t, fs, "/db", true)
	defer reopened.Close()

	root, err := reopened.GetRoot()
	require.NoError(t, err)
	require.False(t, root.IsNull(reopened.opts.Hasher))

	child, err := reopened.GetHistory(reopened.opts.Hasher.Zero())
	require.NoError(t, err)
	require.True(t, child.IsNull(reopened.opts.Hasher))
}

func TestDestroyRemovesSegmentFiles(t *testing.T) {
	fs := memfs.New()
	s := openTestStore(t, fs, "/db", true)

	leaf := writeLeaf(t, s, leafKey(7), []byte("gone soon"))
	_, err := s.Commit(context.Background(), leaf)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.NoError(t, s.Destroy(context.Background()))

	entries, err := fs.ReadDir("/db")
	require.NoError(t, err)
	require.Empty(t, entries)
}
