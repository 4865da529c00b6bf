package process

import (
	"bytes"
	"sync"
	"time"
)

// Stream identifies which standard stream a line came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Line is one line of captured service output.
type Line struct {
	Timestamp time.Time
	Service   string
	PID       int
	Stream    Stream
	Text      string
}

// OutputSink receives every captured line. It must not block for long.
type OutputSink func(Line)

const maxPartialLine = 64 * 1024

// lineCapture is the io.Writer attached to a child's stdout or stderr. It splits
// output into lines, forwards them to the sink and keeps the most recent ones.
type lineCapture struct {
	mu      sync.Mutex
	service string
	pid     int
	stream  Stream
	sink    OutputSink
	partial []byte
	tail    []string
	next    int
	full    bool
	closed  bool
}

func newLineCapture(service string, stream Stream, keep int, sink OutputSink) *lineCapture {
	if keep <= 0 {
		keep = 1
	}
	return &lineCapture{
		service: service,
		stream:  stream,
		sink:    sink,
		tail:    make([]string, keep),
	}
}

func (c *lineCapture) setPID(pid int) {
	c.mu.Lock()
	c.pid = pid
	c.mu.Unlock()
}

func (c *lineCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return len(p), nil
	}
	c.partial = append(c.partial, p...)
	var lines []string
	for {
		i := bytes.IndexByte(c.partial, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(c.partial[:i], "\r")))
		c.partial = c.partial[i+1:]
	}
	if len(c.partial) > maxPartialLine {
		lines = append(lines, string(c.partial))
		c.partial = nil
	}
	for _, l := range lines {
		c.remember(l)
	}
	pid := c.pid
	c.mu.Unlock()

	c.emit(pid, lines)
	return len(p), nil
}

// Close flushes a trailing partial line. Later writes are discarded.
func (c *lineCapture) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	var lines []string
	if len(c.partial) > 0 {
		lines = append(lines, string(c.partial))
		c.remember(lines[0])
		c.partial = nil
	}
	pid := c.pid
	c.mu.Unlock()

	c.emit(pid, lines)
	return nil
}

func (c *lineCapture) remember(line string) {
	c.tail[c.next] = line
	c.next = (c.next + 1) % len(c.tail)
	if c.next == 0 {
		c.full = true
	}
}

func (c *lineCapture) emit(pid int, lines []string) {
	if c.sink == nil {
		return
	}
	now := time.Now()
	for _, l := range lines {
		c.sink(Line{Timestamp: now, Service: c.service, PID: pid, Stream: c.stream, Text: l})
	}
}

// Lines returns the retained lines, oldest first.
func (c *lineCapture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.full {
		return append([]string(nil), c.tail[:c.next]...)
	}
	out := make([]string, 0, len(c.tail))
	out = append(out, c.tail[c.next:]...)
	return append(out, c.tail[:c.next]...)
}
