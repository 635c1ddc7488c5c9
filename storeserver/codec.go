package storeserver

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec is a grpc.encoding.Codec keyed by content-subtype "json". A
// client dials with grpc.CallContentSubtype("json") to use it instead of
// protobuf; the wire framing (length-prefixed messages over HTTP/2) is
// still real gRPC, only the payload encoding differs.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
