package serial

import (
	"encoding/json"
	"fmt"

	"github.com/danmuck/wirescript/internal/protocol"
)

func serializeObject(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: object: %v", protocol.ErrEncoding, err)
	}
	return b, nil
}

// Empty payloads decode to nil.
func deserializeObject(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("%w: object: %v", protocol.ErrEncoding, err)
	}
	return v, nil
}

func serializeString(v any) ([]byte, error) {
	switch s := v.(type) {
	case string:
		return []byte(s), nil
	case []byte:
		out := make([]byte, len(s))
		copy(out, s)
		return out, nil
	case fmt.Stringer:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("%w: string: unsupported value %T", protocol.ErrEncoding, v)
	}
}

func deserializeString(b []byte) (any, error) {
	return string(b), nil
}

// The caller keeps ownership of v, so outbound bytes are copied.
func serializeBuffer(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	case string:
		return []byte(b), nil
	default:
		return nil, fmt.Errorf("%w: buffer: unsupported value %T", protocol.ErrEncoding, v)
	}
}

// Inbound slices are already owned by the parser queue.
func deserializeBuffer(b []byte) (any, error) {
	return b, nil
}
