package frame

// Queue is an owned FIFO of byte chunks with a running length. Extraction
// only concatenates the chunks it needs.
type Queue struct {
	chunks [][]byte
	size   int
}

// Push copies b onto the tail; the caller keeps ownership of b.
func (q *Queue) Push(b []byte) {
	if len(b) == 0 {
		return
	}
	c := make([]byte, len(b))
	copy(c, b)
	q.chunks = append(q.chunks, c)
	q.size += len(c)
}

func (q *Queue) Len() int {
	return q.size
}

// Take removes and returns exactly n bytes from the head. It panics if n
// exceeds Len; callers check first.
func (q *Queue) Take(n int) []byte {
	if n > q.size || n < 0 {
		panic("frame: take beyond buffered length")
	}
	if n == 0 {
		return []byte{}
	}
	head := q.chunks[0]
	if len(head) >= n {
		out := head[:n:n]
		q.advance(n)
		return out
	}
	out := make([]byte, 0, n)
	for len(out) < n {
		head = q.chunks[0]
		need := n - len(out)
		if len(head) > need {
			head = head[:need]
		}
		out = append(out, head...)
		q.advance(len(head))
	}
	return out
}

// Read drains up to len(p) bytes into p.
func (q *Queue) Read(p []byte) int {
	n := 0
	for n < len(p) && len(q.chunks) > 0 {
		c := copy(p[n:], q.chunks[0])
		q.advance(c)
		n += c
	}
	return n
}

func (q *Queue) Reset() {
	q.chunks = nil
	q.size = 0
}

func (q *Queue) advance(n int) {
	q.size -= n
	for n > 0 {
		head := q.chunks[0]
		if n < len(head) {
			q.chunks[0] = head[n:]
			return
		}
		n -= len(head)
		q.chunks[0] = nil
		q.chunks = q.chunks[1:]
	}
	if len(q.chunks) == 0 {
		q.chunks = nil
	}
}
