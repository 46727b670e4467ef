// Package tlv is a pluggable "fields" codec: a message body made of
// id/kind/length-prefixed fields.
package tlv

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/danmuck/wirescript/internal/protocol"
	"github.com/danmuck/wirescript/internal/protocol/serial"
)

// TypeFields is the registry tag of the codec.
const TypeFields = "fields"

// HeaderLen is id(2) + kind(1) + length(4).
const HeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
)

// Field kinds. Values are carried as raw bytes whatever the kind.
const (
	KindU8     uint8 = 1
	KindU16    uint8 = 2
	KindU32    uint8 = 3
	KindU64    uint8 = 4
	KindBool   uint8 = 5
	KindString uint8 = 6
	KindBytes  uint8 = 7
)

type Field struct {
	ID    uint16 `json:"id"`
	Kind  uint8  `json:"kind"`
	Value []byte `json:"value"`
}

// Register adds the fields codec to r.
func Register(r *serial.Registry) {
	r.Register(TypeFields, serial.Codec{Serialize: serialize, Deserialize: deserialize})
}

func serialize(v any) ([]byte, error) {
	var fields []Field
	switch x := v.(type) {
	case []Field:
		fields = x
	case Field:
		fields = []Field{x}
	default:
		// Generic values, as produced by JSON decoding, go through their
		// JSON form.
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: fields: %v", protocol.ErrEncoding, err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("%w: fields: %v", protocol.ErrEncoding, err)
		}
	}
	out, err := Encode(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrEncoding, err)
	}
	return out, nil
}

func deserialize(b []byte) (any, error) {
	fields, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrEncoding, err)
	}
	return fields, nil
}

func Encode(fields []Field) ([]byte, error) {
	size := 0
	for _, f := range fields {
		if uint64(len(f.Value)) > math.MaxUint32 {
			return nil, fmt.Errorf("tlv: field %d value too large", f.ID)
		}
		size += HeaderLen + len(f.Value)
	}
	out := make([]byte, size)
	i := 0
	for _, f := range fields {
		binary.BigEndian.PutUint16(out[i:i+2], f.ID)
		out[i+2] = f.Kind
		binary.BigEndian.PutUint32(out[i+3:i+7], uint32(len(f.Value)))
		i += HeaderLen
		i += copy(out[i:], f.Value)
	}
	return out, nil
}

// Decode splits payload into fields. Unknown ids and kinds are kept.
func Decode(payload []byte) ([]Field, error) {
	fields := make([]Field, 0)
	for i := 0; i < len(payload); {
		if len(payload)-i < HeaderLen {
			return nil, ErrShortFieldHeader
		}
		id := binary.BigEndian.Uint16(payload[i : i+2])
		kind := payload[i+2]
		l := binary.BigEndian.Uint32(payload[i+3 : i+7])
		i += HeaderLen
		if uint64(len(payload)-i) < uint64(l) {
			return nil, ErrShortFieldValue
		}
		val := make([]byte, l)
		copy(val, payload[i:i+int(l)])
		i += int(l)
		fields = append(fields, Field{ID: id, Kind: kind, Value: val})
	}
	return fields, nil
}

func Get(fields []Field, id uint16) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// Uint reads a big-endian unsigned value from an integer-kinded field.
func Uint(f Field) (uint64, error) {
	switch {
	case f.Kind == KindU8 && len(f.Value) == 1:
		return uint64(f.Value[0]), nil
	case f.Kind == KindU16 && len(f.Value) == 2:
		return uint64(binary.BigEndian.Uint16(f.Value)), nil
	case f.Kind == KindU32 && len(f.Value) == 4:
		return uint64(binary.BigEndian.Uint32(f.Value)), nil
	case f.Kind == KindU64 && len(f.Value) == 8:
		return binary.BigEndian.Uint64(f.Value), nil
	default:
		return 0, fmt.Errorf("tlv: field %d is not an unsigned integer (kind %d, %d bytes)", f.ID, f.Kind, len(f.Value))
	}
}
