package wire

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/danmuck/wirescript/internal/observability"
	"github.com/danmuck/wirescript/internal/protocol"
	"github.com/danmuck/wirescript/internal/protocol/definition"
	"github.com/danmuck/wirescript/internal/protocol/frame"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultLabel = "wire"

// Handler receives the decoded value of one named message.
type Handler func(value any)

type Option func(*options)

type options struct {
	logger *zerolog.Logger
	label  string
	limits frame.Limits
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &l
	}
}

// WithLabel sets the protocol label used in logs and metrics.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

func WithLimits(l frame.Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// Engine is the event-emitter binding of the framer: inbound bytes go to
// Write, decoded messages reach On handlers, and Send output reaches OnData
// observers.
//
// Handlers run on the goroutine that called Write and must not call Write,
// Expecting or State on the same engine. Send is safe from a handler.
type Engine struct {
	id    string
	label string
	table *definition.Table
	log   zerolog.Logger

	mu     sync.Mutex
	parser *frame.Parser

	ended   atomic.Bool
	endOnce sync.Once
	done    chan struct{}
	errMu   sync.Mutex
	err     error

	obsMu    sync.RWMutex
	handlers map[string][]Handler
	onEnd    []func()
	onData   []func([]byte)
	onError  []func(error)
}

// New creates an engine awaiting the table's first message. Engines may
// share one table; parse state is per engine.
func New(table *definition.Table, opts ...Option) *Engine {
	o := options{label: DefaultLabel, limits: frame.DefaultLimits()}
	for _, opt := range opts {
		opt(&o)
	}
	base := log.Logger
	if o.logger != nil {
		base = *o.logger
	}

	id := uuid.NewString()
	e := &Engine{
		id:       id,
		label:    o.label,
		table:    table,
		log:      base.With().Str("engine", id).Str("protocol", o.label).Logger(),
		parser:   frame.NewParser(table, o.limits),
		done:     make(chan struct{}),
		handlers: make(map[string][]Handler),
	}
	first, required := e.parser.Expecting()
	e.log.Debug().Str("awaiting", first).Int("required", required).Msg("engine created")
	return e
}

func (e *Engine) ID() string {
	return e.id
}

// On registers h for every decoded message called name.
func (e *Engine) On(name string, h Handler) error {
	if _, ok := e.table.Lookup(name); !ok {
		return fmt.Errorf("%w: %q", protocol.ErrUnknownMessage, name)
	}
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.handlers[name] = append(e.handlers[name], h)
	return nil
}

// OnEnd registers fn for the single end-of-protocol notification.
func (e *Engine) OnEnd(fn func()) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.onEnd = append(e.onEnd, fn)
}

// OnData registers fn for outbound bytes produced by Send.
func (e *Engine) OnData(fn func([]byte)) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.onData = append(e.onData, fn)
}

// OnError registers fn for inbound failures that halt the parser.
func (e *Engine) OnError(fn func(error)) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.onError = append(e.onError, fn)
}

// Write feeds inbound bytes. It returns once every message the buffered
// bytes complete has been dispatched, which is the signal that the engine
// is ready for more input.
func (e *Engine) Write(p []byte) (int, error) {
	if e.ended.Load() {
		return 0, protocol.ErrProtocolEnded
	}

	e.mu.Lock()
	if e.parser == nil {
		e.mu.Unlock()
		return 0, protocol.ErrProtocolEnded
	}
	observability.RecordBytes(e.label, observability.DirectionIn, len(p))
	ended, err := e.parser.Ingest(p, e.dispatch)
	if ended {
		e.parser = nil
		e.ended.Store(true)
	}
	e.mu.Unlock()

	if err != nil {
		if errors.Is(err, protocol.ErrProtocolEnded) {
			return 0, err
		}
		e.halt(err)
		return 0, err
	}
	if ended {
		e.finish()
	}
	return len(p), nil
}

// Send serializes value as message name and hands the bytes to OnData
// observers. A nil value produces no bytes.
func (e *Engine) Send(name string, value any) error {
	if e.ended.Load() {
		return fmt.Errorf("%w: send %q", protocol.ErrProtocolEnded, name)
	}
	entry, ok := e.table.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q is not a known message definition", protocol.ErrUnknownMessage, name)
	}
	if value == nil {
		return nil
	}
	b, err := entry.Serialize(value)
	if err != nil {
		observability.RecordError(e.label, "encoding")
		return fmt.Errorf("send %q: %w", name, err)
	}
	observability.RecordBytes(e.label, observability.DirectionOut, len(b))
	e.log.Debug().Str("message_name", name).Int("bytes", len(b)).Msg("send")

	e.obsMu.RLock()
	sinks := append([]func([]byte){}, e.onData...)
	e.obsMu.RUnlock()
	for _, fn := range sinks {
		fn(b)
	}
	return nil
}

// Done is closed after the end-of-protocol notification.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

func (e *Engine) Ended() bool {
	return e.ended.Load()
}

// Err returns the failure that halted inbound parsing, if any.
func (e *Engine) Err() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

// Expecting reports the awaited message name and byte count; ok is false
// once the protocol has ended.
func (e *Engine) Expecting() (name string, required int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.parser == nil {
		return "", 0, false
	}
	name, required = e.parser.Expecting()
	return name, required, true
}

func (e *Engine) State() frame.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.parser == nil {
		return frame.StateEnded
	}
	return e.parser.State()
}

func (e *Engine) dispatch(m frame.Message) {
	observability.RecordMessage(e.label, m.Name)
	e.log.Debug().Str("message_name", m.Name).Int("bytes", m.Size).Msg("message")

	e.obsMu.RLock()
	hs := append([]Handler{}, e.handlers[m.Name]...)
	e.obsMu.RUnlock()
	for _, h := range hs {
		h(m.Value)
	}
}

func (e *Engine) finish() {
	e.endOnce.Do(func() {
		observability.RecordEnd(e.label)
		e.log.Info().Msg("end of protocol")

		e.obsMu.RLock()
		fns := append([]func(){}, e.onEnd...)
		e.obsMu.RUnlock()

		for _, fn := range fns {
			fn()
		}
		close(e.done)
	})
}

func (e *Engine) halt(err error) {
	e.errMu.Lock()
	first := e.err == nil
	if first {
		e.err = err
	}
	e.errMu.Unlock()
	if !first {
		return
	}

	observability.RecordError(e.label, errorKind(err))
	e.log.Error().Err(err).Msg("inbound parsing halted")

	e.obsMu.RLock()
	fns := append([]func(error){}, e.onError...)
	e.obsMu.RUnlock()
	for _, fn := range fns {
		fn(err)
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, protocol.ErrEncoding):
		return "encoding"
	case errors.Is(err, protocol.ErrUnknownMessage):
		return "unknown_message"
	case errors.Is(err, protocol.ErrInvalidLength):
		return "invalid_length"
	case errors.Is(err, protocol.ErrMessageTooLarge), errors.Is(err, protocol.ErrBufferOverflow):
		return "limit"
	default:
		return "other"
	}
}
