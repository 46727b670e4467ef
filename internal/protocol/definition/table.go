package definition

import (
	"fmt"
	"strings"

	"github.com/danmuck/wirescript/internal/protocol"
	"github.com/danmuck/wirescript/internal/protocol/serial"
	"github.com/rs/zerolog/log"
)

// Entry is a resolved, immutable definition.
type Entry struct {
	Name        string
	Type        string
	Length      int
	Sized       bool
	First       bool
	Serialize   serial.SerializeFunc
	Deserialize serial.DeserializeFunc
	Transition  Transition
}

// Table is the ordered set of resolved definitions. It is read-only after
// Build and may be shared between engines.
type Table struct {
	entries map[string]Entry
	order   []string
	first   string
}

type Option func(*buildOptions)

type buildOptions struct {
	registry *serial.Registry
}

// WithRegistry resolves type tags against r instead of serial.Default().
func WithRegistry(r *serial.Registry) Option {
	return func(o *buildOptions) {
		o.registry = r
	}
}

func Build(defs []Definition, opts ...Option) (*Table, error) {
	o := buildOptions{registry: serial.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	t := &Table{
		entries: make(map[string]Entry, len(defs)),
		order:   make([]string, 0, len(defs)),
	}
	for _, d := range defs {
		e, err := resolve(d, o.registry)
		if err != nil {
			log.Error().Err(err).Str("message_name", d.Name).Msg("definition.Build refused")
			return nil, err
		}
		if _, dup := t.entries[e.Name]; dup {
			return nil, protocol.DefinitionError{Name: e.Name, Reason: "duplicate name"}
		}
		if e.First {
			if t.first != "" {
				return nil, protocol.DefinitionError{
					Name:   e.Name,
					Reason: fmt.Sprintf("second first message (already %q)", t.first),
				}
			}
			t.first = e.Name
		}
		t.entries[e.Name] = e
		t.order = append(t.order, e.Name)
	}
	if t.first == "" {
		return nil, protocol.DefinitionError{Reason: "no first message"}
	}
	log.Debug().Int("messages", len(t.order)).Str("first", t.first).Msg("definition.Build ok")
	return t, nil
}

func resolve(d Definition, reg *serial.Registry) (Entry, error) {
	if strings.TrimSpace(d.Name) == "" {
		return Entry{}, protocol.DefinitionError{Reason: "missing name"}
	}
	if protocol.IsReserved(d.Name) {
		return Entry{}, protocol.DefinitionError{Name: d.Name, Reason: "reserved event name"}
	}

	e := Entry{
		Name:        d.Name,
		Type:        d.Type,
		First:       d.First,
		Serialize:   d.Serialize,
		Deserialize: d.Deserialize,
		Transition:  d.Transition,
	}
	if e.Type == "" {
		e.Type = serial.DefaultType
	}
	if d.Length != nil {
		if *d.Length < 0 {
			return Entry{}, protocol.DefinitionError{Name: d.Name, Reason: "negative length"}
		}
		e.Length = *d.Length
		e.Sized = true
	}
	if e.First && !e.Sized {
		return Entry{}, protocol.DefinitionError{Name: d.Name, Reason: "first message must specify a length"}
	}

	if e.Serialize == nil || e.Deserialize == nil {
		codec, ok := reg.Lookup(e.Type)
		if !ok {
			return Entry{}, protocol.DefinitionError{Name: d.Name, Reason: fmt.Sprintf("unknown type %q", e.Type)}
		}
		if e.Serialize == nil {
			e.Serialize = codec.Serialize
		}
		if e.Deserialize == nil {
			e.Deserialize = codec.Deserialize
		}
	}
	if e.Transition == nil {
		e.Transition = End
	}
	return e, nil
}

func (t *Table) Lookup(name string) (Entry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

func (t *Table) First() Entry {
	return t.entries[t.first]
}

// Names lists definitions in construction order.
func (t *Table) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

func (t *Table) Len() int {
	return len(t.order)
}
