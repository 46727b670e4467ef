package wire

import (
	"errors"
	"io"
	"sync"

	"github.com/danmuck/wirescript/internal/protocol"
	"github.com/danmuck/wirescript/internal/protocol/definition"
	"github.com/danmuck/wirescript/internal/protocol/frame"
)

const readChunkSize = 32 * 1024

// Stream is the duplex binding: writes feed the parser and reads yield the
// bytes produced by Send. The read side reaches io.EOF once the protocol has
// ended and all outbound bytes were read, or after Close.
type Stream struct {
	*Engine

	mu     sync.Mutex
	cond   *sync.Cond
	out    frame.Queue
	closed bool
}

var (
	_ io.ReadWriteCloser = (*Stream)(nil)
	_ io.ReaderFrom      = (*Stream)(nil)
	_ io.WriterTo        = (*Stream)(nil)
)

func NewStream(table *definition.Table, opts ...Option) *Stream {
	s := &Stream{Engine: New(table, opts...)}
	s.cond = sync.NewCond(&s.mu)
	s.Engine.OnData(s.push)
	s.Engine.OnEnd(s.closeRead)
	return s
}

func (s *Stream) push(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.out.Push(b)
	s.cond.Broadcast()
}

func (s *Stream) closeRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
}

// Read blocks until outbound bytes are available or the read side closes.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.out.Len() == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.out.Len() == 0 {
		return 0, io.EOF
	}
	return s.out.Read(p), nil
}

// Close ends the read side. Bytes already queued stay readable.
func (s *Stream) Close() error {
	s.closeRead()
	return nil
}

// Buffered reports outbound bytes not yet read.
func (s *Stream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Len()
}

// ReadFrom pumps r into the engine until r is exhausted or the protocol
// ends. Reaching end of protocol is not an error.
func (s *Stream) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, readChunkSize)
	var total int64
	for {
		if s.Engine.Ended() {
			return total, nil
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, err := s.Engine.Write(buf[:n]); err != nil {
				if errors.Is(err, protocol.ErrProtocolEnded) {
					return total, nil
				}
				return total, err
			}
			total += int64(n)
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// WriteTo drains outbound bytes into w until the read side reaches io.EOF.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, readChunkSize)
	var total int64
	for {
		n, rerr := s.Read(buf)
		if n > 0 {
			m, err := w.Write(buf[:n])
			total += int64(m)
			if err != nil {
				return total, err
			}
			if m < n {
				return total, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}
