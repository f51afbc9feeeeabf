package server

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"

	"google.golang.org/grpc/encoding"
	grpcproto "google.golang.org/grpc/encoding/proto"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
)

// JSONCodecName is the optional content-subtype for JSON-encoded calls.
const JSONCodecName = "json"

func init() {
	encoding.RegisterCodec(protoCodec{})
	encoding.RegisterCodec(jsonCodec{})
}

// wireMessage is implemented by the spotify.proto messages, which encode themselves.
type wireMessage interface {
	appendWire(b []byte) []byte
	consumeWire(b []byte) error
}

// protoCodec replaces the default "proto" codec. The spotify.proto messages use their own
// encoding; any other [proto.Message] goes through the protobuf runtime unchanged.
type protoCodec struct{}

func (protoCodec) Name() string { return grpcproto.Name }

func (protoCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case wireMessage:
		return m.appendWire(nil), nil
	case proto.Message:
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("proto codec: cannot marshal %T", v)
}

func (protoCodec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case wireMessage:
		return m.consumeWire(data)
	case proto.Message:
		return proto.Unmarshal(data, m)
	}
	return fmt.Errorf("proto codec: cannot unmarshal into %T", v)
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return JSONCodecName }

func (r *TracksRequest) appendWire(b []byte) []byte {
	for _, id := range r.TrackIDs {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, id)
	}
	return b
}

func (r *TracksRequest) consumeWire(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			r.TrackIDs = append(r.TrackIDs, v)
			return n, nil
		}
		return skipField(num, typ, b)
	})
}

func (t *TrackEmbedding) appendWire(b []byte) []byte {
	if t.ID != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, t.ID)
	}
	if len(t.Embedding) > 0 {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(4*len(t.Embedding)))
		for _, v := range t.Embedding {
			b = protowire.AppendFixed32(b, math.Float32bits(v))
		}
	}
	for _, k := range slices.Sorted(maps.Keys(t.Metadata)) {
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		entry = protowire.AppendTag(entry, 2, protowire.BytesType)
		entry = protowire.AppendString(entry, t.Metadata[k])
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

func (t *TrackEmbedding) consumeWire(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			t.ID = v
			return n, nil

		case num == 2 && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			if len(packed)%4 != 0 {
				return 0, fmt.Errorf("embedding: packed length %d is not a multiple of 4", len(packed))
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeFixed32(packed)
				if m < 0 {
					return 0, protowire.ParseError(m)
				}
				t.Embedding = append(t.Embedding, math.Float32frombits(v))
				packed = packed[m:]
			}
			return n, nil

		case num == 2 && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			t.Embedding = append(t.Embedding, math.Float32frombits(v))
			return n, nil

		case num == 3 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			var key, value string
			err := consumeFields(raw, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				if (num == 1 || num == 2) && typ == protowire.BytesType {
					v, n := protowire.ConsumeString(b)
					if n < 0 {
						return 0, protowire.ParseError(n)
					}
					if num == 1 {
						key = v
					} else {
						value = v
					}
					return n, nil
				}
				return skipField(num, typ, b)
			})
			if err != nil {
				return 0, fmt.Errorf("metadata entry: %w", err)
			}
			if t.Metadata == nil {
				t.Metadata = map[string]string{}
			}
			t.Metadata[key] = value
			return n, nil
		}
		return skipField(num, typ, b)
	})
}

func (r *TracksResponse) appendWire(b []byte) []byte {
	for i := range r.Tracks {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Tracks[i].appendWire(nil))
	}
	return b
}

func (r *TracksResponse) consumeWire(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			var track TrackEmbedding
			if err := track.consumeWire(raw); err != nil {
				return 0, fmt.Errorf("tracks[%d]: %w", len(r.Tracks), err)
			}
			r.Tracks = append(r.Tracks, track)
			return n, nil
		}
		return skipField(num, typ, b)
	})
}

// consumeFields walks the fields of one message. fn reports how many bytes of the value it used.
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		b = b[m:]
	}
	return nil
}

// skipField steps over a field this side does not know.
func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}
