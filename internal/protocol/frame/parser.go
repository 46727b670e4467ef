package frame

import (
	"fmt"

	"github.com/danmuck/wirescript/internal/protocol"
	"github.com/danmuck/wirescript/internal/protocol/definition"
)

type State int

const (
	StateAwaiting State = iota
	StateEnded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaiting:
		return "awaiting"
	case StateEnded:
		return "ended"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Message is one decoded inbound message.
type Message struct {
	Name  string
	Value any
	Size  int
}

// Parser turns arbitrarily fragmented input into messages following the
// table's transitions. It is not safe for concurrent use.
type Parser struct {
	table    *definition.Table
	limits   Limits
	queue    Queue
	current  definition.Entry
	required int
	state    State
	err      error
}

func NewParser(table *definition.Table, limits Limits) *Parser {
	first := table.First()
	return &Parser{
		table:    table,
		limits:   limits,
		current:  first,
		required: first.Length,
		state:    StateAwaiting,
	}
}

// Ingest buffers chunk and emits every message the buffered bytes now
// complete. It reports ended=true on the call that reaches end of protocol.
// A failure halts the parser and is returned again by later calls.
func (p *Parser) Ingest(chunk []byte, emit func(Message)) (ended bool, err error) {
	switch p.state {
	case StateEnded:
		return false, protocol.ErrProtocolEnded
	case StateFailed:
		return false, p.err
	}

	p.queue.Push(chunk)
	for p.queue.Len() >= p.required {
		data := p.queue.Take(p.required)
		value, err := p.current.Deserialize(data)
		if err != nil {
			return false, p.fail(fmt.Errorf("frame: decode %q: %w", p.current.Name, err))
		}
		emit(Message{Name: p.current.Name, Value: value, Size: len(data)})

		step, next := p.current.Transition.Decide(value)
		if !next {
			p.end()
			return true, nil
		}
		if err := p.advance(step); err != nil {
			return false, p.fail(err)
		}
	}
	if p.limits.MaxBufferedBytes > 0 && p.queue.Len() > p.limits.MaxBufferedBytes {
		return false, p.fail(fmt.Errorf("%w: %d > %d", protocol.ErrBufferOverflow, p.queue.Len(), p.limits.MaxBufferedBytes))
	}
	return false, nil
}

func (p *Parser) advance(step definition.Step) error {
	next, ok := p.table.Lookup(step.Name)
	if !ok {
		return fmt.Errorf("%w: transition from %q to %q", protocol.ErrUnknownMessage, p.current.Name, step.Name)
	}
	required := next.Length
	switch {
	case step.Sized:
		required = step.Length
	case !next.Sized:
		return fmt.Errorf("%w: %q has no length and the transition gave none", protocol.ErrInvalidLength, next.Name)
	}
	if required < 0 {
		return fmt.Errorf("%w: %q length %d", protocol.ErrInvalidLength, next.Name, required)
	}
	if p.limits.MaxMessageBytes > 0 && required > p.limits.MaxMessageBytes {
		return fmt.Errorf("%w: %q length %d > %d", protocol.ErrMessageTooLarge, next.Name, required, p.limits.MaxMessageBytes)
	}
	p.current = next
	p.required = required
	return nil
}

func (p *Parser) end() {
	p.queue.Reset()
	p.current = definition.Entry{}
	p.required = 0
	p.table = nil
	p.state = StateEnded
}

func (p *Parser) fail(err error) error {
	p.state = StateFailed
	p.err = err
	return err
}

func (p *Parser) State() State {
	return p.state
}

// Expecting reports the awaited message and its required byte count.
func (p *Parser) Expecting() (string, int) {
	return p.current.Name, p.required
}

// Buffered reports bytes held but not yet consumed.
func (p *Parser) Buffered() int {
	return p.queue.Len()
}
