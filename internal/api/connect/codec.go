package connect

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// jsonCodec marshals plain Go structs. connect's built-in JSON codec only
// accepts protobuf messages.
type jsonCodec struct{}

var _ connect.Codec = jsonCodec{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// WithJSON selects the plain JSON codec for handlers and clients.
func WithJSON() connect.Option {
	return connect.WithCodec(jsonCodec{})
}
