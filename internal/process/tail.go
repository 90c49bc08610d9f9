package process

import "sync"

// Tail keeps the most recent lines of a stream.
type Tail struct {
	mu    sync.Mutex
	lines []string
	size  int
	head  int
	count int
}

// NewTail creates a tail holding at most size lines.
func NewTail(size int) *Tail {
	if size < 1 {
		size = 1
	}
	return &Tail{lines: make([]string, size), size: size}
}

// Push appends a line, dropping the oldest when full.
func (t *Tail) Push(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines[t.head] = line
	t.head = (t.head + 1) % t.size
	if t.count < t.size {
		t.count++
	}
}

// Lines returns the retained lines, oldest first.
func (t *Tail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, t.count)
	start := (t.head - t.count + t.size) % t.size
	for i := range t.count {
		out = append(out, t.lines[(start+i)%t.size])
	}
	return out
}

// Len returns the number of retained lines.
func (t *Tail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}
