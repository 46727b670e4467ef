package script

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/wirescript/internal/protocol"
	"github.com/danmuck/wirescript/internal/protocol/definition"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Message is one declarative message definition.
type Message struct {
	Name   string `toml:"name" yaml:"name"`
	Type   string `toml:"type" yaml:"type"`
	Length *int   `toml:"length" yaml:"length"`
	First  bool   `toml:"first" yaml:"first"`

	// Next is the following message; empty ends the protocol.
	Next       string `toml:"next" yaml:"next"`
	NextLength *int   `toml:"next_length" yaml:"next_length"`
	// NextLengthFromValue uses the decoded value as the next length.
	NextLengthFromValue bool `toml:"next_length_from_value" yaml:"next_length_from_value"`
}

// Script is a parsed protocol script.
type Script struct {
	Name     string    `toml:"name" yaml:"name"`
	Messages []Message `toml:"message" yaml:"message"`
}

func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script load failed (%s): %w", path, err)
	}
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("script parse failed (%s): %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	log.Debug().Str("path", path).Int("messages", len(s.Messages)).Msg("script loaded")
	return s, nil
}

func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("script: unsupported file extension %q", filepath.Ext(path))
	}
}

func Parse(data []byte, format Format) (*Script, error) {
	var s Script
	switch format {
	case FormatTOML:
		meta, err := toml.Decode(string(data), &s)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("script: unknown key %q", undecoded[0].String())
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("script: unsupported format %q", format)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks what Build cannot: transition targets and length sources.
func (s *Script) Validate() error {
	known := make(map[string]Message, len(s.Messages))
	for _, m := range s.Messages {
		known[m.Name] = m
	}
	for _, m := range s.Messages {
		if m.Next == "" {
			if m.NextLength != nil || m.NextLengthFromValue {
				return protocol.DefinitionError{Name: m.Name, Reason: "next length without next message"}
			}
			continue
		}
		target, ok := known[m.Next]
		if !ok {
			return protocol.DefinitionError{Name: m.Name, Reason: fmt.Sprintf("next message %q is not defined", m.Next)}
		}
		if m.NextLength != nil && m.NextLengthFromValue {
			return protocol.DefinitionError{Name: m.Name, Reason: "next_length and next_length_from_value are exclusive"}
		}
		if m.NextLength != nil && *m.NextLength < 0 {
			return protocol.DefinitionError{Name: m.Name, Reason: "negative next_length"}
		}
		if m.NextLength == nil && !m.NextLengthFromValue && target.Length == nil {
			return protocol.DefinitionError{Name: m.Name, Reason: fmt.Sprintf("next message %q has no length", m.Next)}
		}
	}
	return nil
}

func (s *Script) Definitions() []definition.Definition {
	defs := make([]definition.Definition, 0, len(s.Messages))
	for _, m := range s.Messages {
		defs = append(defs, definition.Definition{
			Name:       m.Name,
			Type:       m.Type,
			Length:     m.Length,
			First:      m.First,
			Transition: m.transition(),
		})
	}
	return defs
}

func (s *Script) Table(opts ...definition.Option) (*definition.Table, error) {
	return definition.Build(s.Definitions(), opts...)
}

func (m Message) transition() definition.Transition {
	switch {
	case m.Next == "":
		return definition.End
	case m.NextLengthFromValue:
		next := m.Next
		return definition.TransitionFunc(func(v any) (definition.Step, bool) {
			n, err := LengthOf(v)
			if err != nil {
				// An impossible length halts the parser with ErrInvalidLength.
				return definition.GotoLen(next, -1), true
			}
			return definition.GotoLen(next, n), true
		})
	case m.NextLength != nil:
		return definition.Always(definition.GotoLen(m.Next, *m.NextLength))
	default:
		return definition.Always(definition.Goto(m.Next))
	}
}

// LengthOf reads a byte count from a decoded value: a JSON number, a
// decimal string, or a big-endian unsigned buffer of 1, 2, 4 or 8 bytes.
func LengthOf(v any) (int, error) {
	switch x := v.(type) {
	case float64:
		if x < 0 || x != math.Trunc(x) || x > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %v", protocol.ErrInvalidLength, x)
		}
		return int(x), nil
	case json.Number:
		n, err := strconv.Atoi(x.String())
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %v", protocol.ErrInvalidLength, x)
		}
		return n, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", protocol.ErrInvalidLength, x)
		}
		return n, nil
	case []byte:
		var n uint64
		switch len(x) {
		case 1:
			n = uint64(x[0])
		case 2:
			n = uint64(binary.BigEndian.Uint16(x))
		case 4:
			n = uint64(binary.BigEndian.Uint32(x))
		case 8:
			n = binary.BigEndian.Uint64(x)
		default:
			return 0, fmt.Errorf("%w: %d byte length prefix", protocol.ErrInvalidLength, len(x))
		}
		if n > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %d", protocol.ErrInvalidLength, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: unsupported value %T", protocol.ErrInvalidLength, v)
	}
}
