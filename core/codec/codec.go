// Package codec encodes stats snapshots for the admin endpoint.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	ErrUnsupportedCodec = errors.New("unsupported codec")
)

// Codec encodes and decodes values
type Codec interface {
	// Encode encodes a value to bytes
	Encode(v any) ([]byte, error)

	// Decode decodes bytes to a value
	Decode(data []byte, v any) error

	// Name returns the codec name
	Name() string

	// ContentType returns the MIME type of encoded data
	ContentType() string
}

const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf"
)

// ForContentType returns the codec for a MIME type
func ForContentType(contentType string) (Codec, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, contentType)
	}
	switch mt {
	case ContentTypeJSON:
		return &JSONCodec{}, nil
	case ContentTypeProtobuf, "application/protobuf":
		return &ProtobufCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, contentType)
	}
}

// Negotiate picks a codec from an Accept header, defaulting to JSON
func Negotiate(accept string) Codec {
	for _, part := range strings.Split(accept, ",") {
		if c, err := ForContentType(strings.TrimSpace(part)); err == nil {
			return c
		}
	}
	return &JSONCodec{}
}

// JSONCodec implements JSON encoding/decoding
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Name() string {
	return "json"
}

func (c *JSONCodec) ContentType() string {
	return ContentTypeJSON
}

// ProtobufCodec implements Protocol Buffers encoding/decoding. Values that
// are not proto messages travel as a google.protobuf.Struct built from
// their JSON form.
type ProtobufCodec struct{}

func (c *ProtobufCodec) Encode(v any) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return proto.Marshal(msg)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protobuf codec: %w", err)
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("protobuf codec: value must encode as a JSON object, got %T: %w", v, err)
	}
	return proto.Marshal(st)
}

func (c *ProtobufCodec) Decode(data []byte, v any) error {
	if msg, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, msg)
	}

	st := &structpb.Struct{}
	if err := proto.Unmarshal(data, st); err != nil {
		return err
	}
	raw, err := protojson.Marshal(st)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (c *ProtobufCodec) Name() string {
	return "protobuf"
}

func (c *ProtobufCodec) ContentType() string {
	return ContentTypeProtobuf
}
