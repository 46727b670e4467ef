package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/wirescript/internal/protocol"
	"github.com/danmuck/wirescript/internal/protocol/definition"
	"github.com/danmuck/wirescript/internal/protocol/serial"
	"github.com/danmuck/wirescript/internal/testutil/testlog"
)

func headerBodyTable(t *testing.T) *definition.Table {
	t.Helper()
	table, err := definition.Build([]definition.Definition{
		{
			Name:       "header",
			Type:       serial.TypeObject,
			First:      true,
			Length:     definition.Len(9),
			Transition: definition.Always(definition.GotoLen("body", 11)),
		},
		{
			Name:       "body",
			Type:       serial.TypeString,
			Transition: definition.Always(definition.GotoLen("endM", 0)),
		},
		{Name: "endM"},
	})
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	return table
}

type recorder struct {
	msgs []Message
}

func (r *recorder) emit(m Message) {
	r.msgs = append(r.msgs, m)
}

func feed(t *testing.T, p *Parser, chunks ...[]byte) (*recorder, bool) {
	t.Helper()
	rec := &recorder{}
	ended := false
	for i, c := range chunks {
		done, err := p.Ingest(c, rec.emit)
		if err != nil {
			t.Fatalf("ingest chunk %d: %v", i, err)
		}
		if done {
			if ended {
				t.Fatalf("ended reported twice")
			}
			ended = true
		}
	}
	return rec, ended
}

func TestParserHeaderBodyEnd(t *testing.T) {
	testlog.Start(t)
	p := NewParser(headerBodyTable(t), DefaultLimits())
	if name, req := p.Expecting(); name != "header" || req != 9 {
		t.Fatalf("unexpected initial expectation: %s/%d", name, req)
	}

	rec, ended := feed(t, p, []byte(`"NOTDONE"hello world`))
	if !ended {
		t.Fatalf("expected end of protocol")
	}
	if len(rec.msgs) != 3 {
		t.Fatalf("expected 3 messages, got %+v", rec.msgs)
	}
	if rec.msgs[0].Name != "header" || rec.msgs[0].Value != "NOTDONE" {
		t.Fatalf("unexpected header: %+v", rec.msgs[0])
	}
	if rec.msgs[1].Name != "body" || rec.msgs[1].Value != "hello world" {
		t.Fatalf("unexpected body: %+v", rec.msgs[1])
	}
	if rec.msgs[2].Name != "endM" || !bytes.Equal(rec.msgs[2].Value.([]byte), []byte{}) {
		t.Fatalf("unexpected endM: %+v", rec.msgs[2])
	}
	if p.State() != StateEnded {
		t.Fatalf("unexpected state: %s", p.State())
	}

	_, err := p.Ingest([]byte("x"), func(Message) {})
	if !errors.Is(err, protocol.ErrProtocolEnded) {
		t.Fatalf("expected ErrProtocolEnded, got %v", err)
	}
}

func TestParserFragmentationInvariance(t *testing.T) {
	testlog.Start(t)
	stream := []byte(`"NOTDONE"hello world`)

	whole, _ := feed(t, NewParser(headerBodyTable(t), DefaultLimits()), stream)

	partitions := [][]int{
		{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		{9, 11},
		{8, 2, 10},
		{3, 17},
		{0, 20},
		{19, 1},
	}
	for _, sizes := range partitions {
		chunks := make([][]byte, 0, len(sizes))
		off := 0
		for _, n := range sizes {
			chunks = append(chunks, stream[off:off+n])
			off += n
		}
		got, ended := feed(t, NewParser(headerBodyTable(t), DefaultLimits()), chunks...)
		if !ended {
			t.Fatalf("partition %v did not end", sizes)
		}
		if !reflect.DeepEqual(got.msgs, whole.msgs) {
			t.Fatalf("partition %v mismatch: got=%+v want=%+v", sizes, got.msgs, whole.msgs)
		}
	}
}

func TestParserAwaitsPartialInput(t *testing.T) {
	testlog.Start(t)
	p := NewParser(headerBodyTable(t), DefaultLimits())
	rec, ended := feed(t, p, []byte(`"NOTD`))
	if ended || len(rec.msgs) != 0 {
		t.Fatalf("expected no output for partial header")
	}
	if p.Buffered() != 5 {
		t.Fatalf("unexpected buffered: %d", p.Buffered())
	}
	rec, _ = feed(t, p, []byte(`ONE"hel`))
	if len(rec.msgs) != 1 || rec.msgs[0].Name != "header" {
		t.Fatalf("expected header only: %+v", rec.msgs)
	}
	if name, req := p.Expecting(); name != "body" || req != 11 {
		t.Fatalf("unexpected expectation: %s/%d", name, req)
	}
	if p.Buffered() != 3 {
		t.Fatalf("unexpected buffered after header: %d", p.Buffered())
	}
}

func TestParserZeroLengthObjectIsNull(t *testing.T) {
	testlog.Start(t)
	table, err := definition.Build([]definition.Definition{
		{
			Name:       "ping",
			Type:       serial.TypeObject,
			First:      true,
			Length:     definition.Len(0),
			Transition: definition.Always(definition.GotoLen("tail", 2)),
		},
		{Name: "tail", Type: serial.TypeString},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	p := NewParser(table, DefaultLimits())
	rec, ended := feed(t, p, nil)
	if ended || len(rec.msgs) != 1 || rec.msgs[0].Value != nil {
		t.Fatalf("expected one null ping, got %+v", rec.msgs)
	}
	rec, ended = feed(t, p, []byte("ok"))
	if !ended || len(rec.msgs) != 1 || rec.msgs[0].Value != "ok" {
		t.Fatalf("expected tail then end, got %+v ended=%v", rec.msgs, ended)
	}
}

func TestParserCyclicChain(t *testing.T) {
	testlog.Start(t)
	cycles := 0
	table, err := definition.Build([]definition.Definition{{
		Name:   "cycle",
		Type:   serial.TypeString,
		First:  true,
		Length: definition.Len(3),
		Transition: definition.TransitionFunc(func(any) (definition.Step, bool) {
			cycles++
			if cycles < 8 {
				return definition.GotoLen("cycle", 3), true
			}
			return definition.Step{}, false
		}),
	}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	p := NewParser(table, DefaultLimits())
	rec, ended := feed(t, p, bytes.Repeat([]byte("abc"), 4), bytes.Repeat([]byte("abc"), 5))
	if !ended {
		t.Fatalf("expected end after 8 cycles")
	}
	if len(rec.msgs) != 8 {
		t.Fatalf("expected 8 messages, got %d", len(rec.msgs))
	}
	for _, m := range rec.msgs {
		if m.Value != "abc" {
			t.Fatalf("unexpected cycle value: %+v", m)
		}
	}
}

func TestParserDynamicLength(t *testing.T) {
	testlog.Start(t)
	table, err := definition.Build([]definition.Definition{
		{
			Name:   "length",
			Type:   serial.TypeBuffer,
			First:  true,
			Length: definition.Len(4),
			Transition: definition.TransitionFunc(func(v any) (definition.Step, bool) {
				n := binary.BigEndian.Uint32(v.([]byte))
				return definition.GotoLen("payload", int(n)), true
			}),
		},
		{
			Name:       "payload",
			Type:       serial.TypeObject,
			Length:     definition.Len(1000),
			Transition: definition.Always(definition.Goto("length")),
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	var stream []byte
	for _, body := range []string{`{"a":"hello world"}`, `{"a":"test"}`} {
		var hdr [4]byte
		binary.BigEndian.PutUint32(hdr[:], uint32(len(body)))
		stream = append(stream, hdr[:]...)
		stream = append(stream, body...)
	}

	p := NewParser(table, DefaultLimits())
	rec, ended := feed(t, p, stream)
	if ended {
		t.Fatalf("dynamic chain should not end")
	}
	if len(rec.msgs) != 4 {
		t.Fatalf("expected 4 messages, got %+v", rec.msgs)
	}
	if got := rec.msgs[1].Value.(map[string]any)["a"]; got != "hello world" {
		t.Fatalf("unexpected first payload: %v", got)
	}
	if got := rec.msgs[3].Value.(map[string]any)["a"]; got != "test" {
		t.Fatalf("unexpected second payload: %v", got)
	}
	if name, req := p.Expecting(); name != "length" || req != 4 {
		t.Fatalf("declared length should apply after Goto: %s/%d", name, req)
	}
}

func TestParserDecodeErrorHalts(t *testing.T) {
	testlog.Start(t)
	p := NewParser(headerBodyTable(t), DefaultLimits())
	_, err := p.Ingest([]byte(`{notjson}hello world`), func(Message) {
		t.Fatalf("nothing should be emitted")
	})
	if !errors.Is(err, protocol.ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
	if p.State() != StateFailed {
		t.Fatalf("unexpected state: %s", p.State())
	}
	if p.Buffered() != 11 {
		t.Fatalf("trailing bytes must be kept, buffered=%d", p.Buffered())
	}
	_, again := p.Ingest([]byte("more"), func(Message) {})
	if !errors.Is(again, protocol.ErrEncoding) {
		t.Fatalf("expected sticky error, got %v", again)
	}
}

func TestParserTransitionFailures(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		step definition.Step
		want error
	}{
		{"unknown next", definition.Goto("nope"), protocol.ErrUnknownMessage},
		{"unsized next", definition.Goto("open"), protocol.ErrInvalidLength},
		{"negative", definition.GotoLen("open", -2), protocol.ErrInvalidLength},
		{"too large", definition.GotoLen("open", 1<<20), protocol.ErrMessageTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			table, err := definition.Build([]definition.Definition{
				{Name: "start", First: true, Length: definition.Len(1), Transition: definition.Always(tc.step)},
				{Name: "open"},
			})
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			p := NewParser(table, Limits{MaxMessageBytes: 1024})
			_, err = p.Ingest([]byte{1}, func(Message) {})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParserBufferLimit(t *testing.T) {
	testlog.Start(t)
	p := NewParser(headerBodyTable(t), Limits{MaxBufferedBytes: 8})
	if _, err := p.Ingest([]byte(`"NOTDONE`), func(Message) {}); err != nil {
		t.Fatalf("ingest within limit: %v", err)
	}
	if _, err := p.Ingest([]byte(`"`), func(Message) {}); err != nil {
		t.Fatalf("header completes with nothing left over: %v", err)
	}
	_, err := p.Ingest(bytes.Repeat([]byte("x"), 9), func(Message) {})
	if !errors.Is(err, protocol.ErrBufferOverflow) {
		t.Fatalf("expected ErrBufferOverflow, got %v", err)
	}
}
