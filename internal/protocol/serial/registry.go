package serial

import (
	"sort"
	"sync"
)

// Built-in type tags.
const (
	TypeObject = "object"
	TypeString = "string"
	TypeBuffer = "buffer"
)

// DefaultType is used when a definition does not name one.
const DefaultType = TypeBuffer

type (
	SerializeFunc   func(v any) ([]byte, error)
	DeserializeFunc func(b []byte) (any, error)
)

// Codec is one serialize/deserialize pair.
type Codec struct {
	Serialize   SerializeFunc
	Deserialize DeserializeFunc
}

// Registry maps type tags to codecs.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// WithBuiltins returns a registry preloaded with object, string and buffer.
func WithBuiltins() *Registry {
	r := NewRegistry()
	r.Register(TypeObject, Codec{Serialize: serializeObject, Deserialize: deserializeObject})
	r.Register(TypeString, Codec{Serialize: serializeString, Deserialize: deserializeString})
	r.Register(TypeBuffer, Codec{Serialize: serializeBuffer, Deserialize: deserializeBuffer})
	return r
}

func (r *Registry) Register(name string, c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[name] = c
}

func (r *Registry) Lookup(name string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[name]
	return c, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.codecs))
	for name := range r.codecs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

var defaultRegistry = WithBuiltins()

// Default returns the process-wide registry used when a table is built without one.
func Default() *Registry {
	return defaultRegistry
}

// Register adds or replaces a codec in the default registry.
func Register(name string, c Codec) {
	defaultRegistry.Register(name, c)
}

func Lookup(name string) (Codec, bool) {
	return defaultRegistry.Lookup(name)
}
