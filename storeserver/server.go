// Package storeserver exposes a read-only debug gRPC service over a
// running store: GetRoot, GetHistory and Stat. It carries no mutation
// RPCs -- the store's single-writer discipline is a same-process
// contract, not a network one, and this surface mirrors a read-only
// slice of a typical admin gRPC service without any write-path RPCs.
package storeserver

import (
	"context"
	"encoding/hex"
	"errors"

	"google.golang.org/grpc"

	"github.com/INLOpen/urkelstore/store"
	"github.com/INLOpen/urkelstore/storepb"
)

// Server adapts a *store.Store to the three debug RPCs.
type Server struct {
	Store *store.Store
}

// GetRoot reports the current root digest.
func (s *Server) GetRoot(ctx context.Context, req *storepb.GetRootRequest) (*storepb.GetRootResponse, error) {
	digest, err := s.Store.GetRootHash()
	if err != nil {
		return nil, err
	}
	return &storepb.GetRootResponse{RootDigestHex: hex.EncodeToString(digest)}, nil
}

// GetHistory reports whether root_digest_hex names a commit still
// reachable from the meta chain.
func (s *Server) GetHistory(ctx context.Context, req *storepb.GetHistoryRequest) (*storepb.GetHistoryResponse, error) {
	want, err := hex.DecodeString(req.RootDigestHex)
	if err != nil {
		return nil, err
	}
	child, err := s.Store.GetHistory(want)
	if err != nil {
		if errors.Is(err, store.ErrMissingNode) {
			return &storepb.GetHistoryResponse{Found: false}, nil
		}
		return nil, err
	}
	return &storepb.GetHistoryResponse{Found: true, RootDigestHex: hex.EncodeToString(child.Digest)}, nil
}

// Stat reports a size/latency snapshot.
func (s *Server) Stat(ctx context.Context, req *storepb.StatRequest) (*storepb.StatResponse, error) {
	stats, err := s.Store.Stats()
	if err != nil {
		return nil, err
	}
	return &storepb.StatResponse{
		SegmentCount:    stats.SegmentCount,
		CachedHandles:   stats.CachedHandles,
		RootCacheSize:   stats.RootCacheSize,
		CommitP50Micros: stats.CommitLatency.P50,
		CommitP90Micros: stats.CommitLatency.P90,
		CommitP99Micros: stats.CommitLatency.P99,
		ReadP50Micros:   stats.ReadLatency.P50,
		ReadP90Micros:   stats.ReadLatency.P90,
		ReadP99Micros:   stats.ReadLatency.P99,
	}, nil
}

func getRootHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(storepb.GetRootRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).GetRoot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/urkelstore.Store/GetRoot"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).GetRoot(ctx, req.(*storepb.GetRootRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getHistoryHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(storepb.GetHistoryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).GetHistory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/urkelstore.Store/GetHistory"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).GetHistory(ctx, req.(*storepb.GetHistoryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func statHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(storepb.StatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Stat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/urkelstore.Store/Stat"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).Stat(ctx, req.(*storepb.StatRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the hand-written equivalent of a protoc-generated
// _ServiceDesc: three unary methods, no streams.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "urkelstore.Store",
	HandlerType: (*interface{})(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetRoot", Handler: getRootHandler},
		{MethodName: "GetHistory", Handler: getHistoryHandler},
		{MethodName: "Stat", Handler: statHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storeserver/store.proto",
}

// Register attaches srv to grpcServer under the json content-subtype.
func Register(grpcServer *grpc.Server, srv *Server) {
	grpcServer.RegisterService(&ServiceDesc, srv)
}
