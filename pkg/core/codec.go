package core

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName selects JSON framing on the wire. The core scheduler speaks
// JSON-over-gRPC, so messages stay plain structs on both ends.
const codecName = "json"

type jsonCodec struct{}

var _ encoding.Codec = jsonCodec{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
