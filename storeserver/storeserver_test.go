package storeserver

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/INLOpen/urkelstore/hashcap"
	"github.com/INLOpen/urkelstore/node"
	"github.com/INLOpen/urkelstore/store"
	"github.com/INLOpen/urkelstore/storefs/memfs"
	"github.com/INLOpen/urkelstore/storepb"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := store.New(store.Options{
		Dir:         "/db",
		FS:          memfs.New(),
		Hasher:      hashcap.Blake2b256{},
		KeySize:     32,
		MaxFileSize: 1 << 20,
		Standalone:  true,
	})
	require.NoError(t, err)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { s.Close() })
	return &Server{Store: s}
}

func commitLeaf(t *testing.T, srv *Server, key byte, value string) []byte {
	t.Helper()
	k := make([]byte, 32)
	k[0] = key
	hasher := srv.Store.Hasher()
	digest := hasher.Digest(append(append([]byte{}, k...), value...))
	leaf := node.NewLeaf(k, digest)
	require.NoError(t, srv.Store.WriteValue(leaf, []byte(value)))
	_, err := srv.Store.WriteNode(leaf)
	require.NoError(t, err)
	root, err := srv.Store.Commit(context.Background(), leaf)
	require.NoError(t, err)
	return root
}

func TestServerGetRootReportsZeroDigestInitially(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.GetRoot(context.Background(), &storepb.GetRootRequest{})
	require.NoError(t, err)
	zero, err := srv.Store.GetRootHash()
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(zero), resp.RootDigestHex)
}

func TestServerGetHistoryFoundAndNotFound(t *testing.T) {
	srv := newTestServer(t)
	root := commitLeaf(t, srv, 1, "hello")

	found, err := srv.GetHistory(context.Background(), &storepb.GetHistoryRequest{
		RootDigestHex: hex.EncodeToString(root),
	})
	require.NoError(t, err)
	require.True(t, found.Found)
	require.Equal(t, hex.EncodeToString(root), found.RootDigestHex)

	notFound, err := srv.GetHistory(context.Background(), &storepb.GetHistoryRequest{
		RootDigestHex: hex.EncodeToString([]byte("not a real committed root digest")),
	})
	require.NoError(t, err)
	require.False(t, notFound.Found)
}

func TestServerGetHistoryRejectsInvalidHex(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.GetHistory(context.Background(), &storepb.GetHistoryRequest{RootDigestHex: "not-hex"})
	require.Error(t, err)
}

func TestServerStatReportsSegmentCount(t *testing.T) {
	srv := newTestServer(t)
	commitLeaf(t, srv, 2, "world")

	resp, err := srv.Stat(context.Background(), &storepb.StatRequest{})
	require.NoError(t, err)
	require.GreaterOrEqual(t, resp.SegmentCount, 1)
	require.GreaterOrEqual(t, resp.RootCacheSize, 1)
}

func TestHandlersDecodeRequestsWithoutInterceptor(t *testing.T) {
	srv := newTestServer(t)
	root := commitLeaf(t, srv, 3, "value")

	out, err := getRootHandler(srv, context.Background(), func(v interface{}) error {
		return nil
	}, nil)
	require.NoError(t, err)
	resp, ok := out.(*storepb.GetRootResponse)
	require.True(t, ok)
	require.NotEmpty(t, resp.RootDigestHex)

	out, err = getHistoryHandler(srv, context.Background(), func(v interface{}) error {
		req := v.(*storepb.GetHistoryRequest)
		req.RootDigestHex = hex.EncodeToString(root)
		return nil
	}, nil)
	require.NoError(t, err)
	histResp, ok := out.(*storepb.GetHistoryResponse)
	require.True(t, ok)
	require.True(t, histResp.Found)

	out, err = statHandler(srv, context.Background(), func(v interface{}) error {
		return nil
	}, nil)
	require.NoError(t, err)
	_, ok = out.(*storepb.StatResponse)
	require.True(t, ok)
}

func TestHandlersPropagateDecodeErrors(t *testing.T) {
	srv := newTestServer(t)

	_, err := getRootHandler(srv, context.Background(), func(v interface{}) error {
		return errDecodeFailed
	}, nil)
	require.ErrorIs(t, err, errDecodeFailed)
}

var errDecodeFailed = errors.New("decode failed")

func TestServiceDescListsAllThreeMethods(t *testing.T) {
	require.Equal(t, "urkelstore.Store", ServiceDesc.ServiceName)
	require.Len(t, ServiceDesc.Methods, 3)
	require.Empty(t, ServiceDesc.Streams)

	names := map[string]bool{}
	for _, m := range ServiceDesc.Methods {
		names[m.MethodName] = true
	}
	require.True(t, names["GetRoot"])
	require.True(t, names["GetHistory"])
	require.True(t, names["Stat"])
}

func TestJSONCodecRoundTrip(t *testing.T) {
	var codec jsonCodec
	require.Equal(t, "json", codec.Name())

	in := &storepb.StatResponse{SegmentCount: 3, CachedHandles: 2, RootCacheSize: 1}
	data, err := codec.Marshal(in)
	require.NoError(t, err)

	out := &storepb.StatResponse{}
	require.NoError(t, codec.Unmarshal(data, out))
	require.Equal(t, in.SegmentCount, out.SegmentCount)
	require.Equal(t, in.CachedHandles, out.CachedHandles)
	require.Equal(t, in.RootCacheSize, out.RootCacheSize)
}
