// Package linkmux carries the simulator protocol over a line-oriented
// serial link, for vehicles that talk to the controller through a
// USB-serial bridge instead of a websocket.
//
// One reader goroutine scans the port and fans each line out to
// subscribers; writes are serialised so replies and admin commands never
// interleave.
package linkmux

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

var ErrWriteFailed = errors.New("short write to link")

// maxLine bounds a single frame. Telemetry with a few dozen waypoints is
// well under this.
const maxLine = 256 * 1024

// Mux is the interface the driver and admin routes need.
type Mux interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
	Send(string) error
	Monitor(context.Context) error
	Close() error
}

// LinkMux multiplexes one port between any number of line subscribers.
type LinkMux[T Porter] struct {
	port   T
	closed atomic.Bool

	subMu sync.Mutex
	subs  map[string]chan string

	writeMu sync.Mutex
}

var _ Mux = (*LinkMux[Porter])(nil)

func New[T Porter](port T) *LinkMux[T] {
	return &LinkMux[T]{port: port, subs: make(map[string]chan string)}
}

// Subscribe registers a channel for incoming lines. A line is delivered only
// if the subscriber is ready for it; a busy subscriber misses it rather than
// stalling the link. After Close the returned channel is already closed.
func (m *LinkMux[T]) Subscribe() (string, chan string) {
	id := uuid.NewString()
	ch := make(chan string)

	m.subMu.Lock()
	defer m.subMu.Unlock()
	if m.closed.Load() {
		close(ch)
	} else {
		m.subs[id] = ch
	}
	return id, ch
}

func (m *LinkMux[T]) Unsubscribe(id string) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if ch, ok := m.subs[id]; ok {
		delete(m.subs, id)
		close(ch)
	}
}

// Send writes one frame, adding the newline if the caller left it off.
func (m *LinkMux[T]) Send(line string) error {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	n, err := m.port.Write([]byte(line))
	switch {
	case err != nil:
		return err
	case n < len(line):
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads lines until the port ends, ctx is cancelled or Close is
// called. A clean end of input returns nil.
func (m *LinkMux[T]) Monitor(ctx context.Context) error {
	lines, errc := m.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				// The scanner reports its error before closing lines.
				if err := <-errc; err != nil && !m.closed.Load() {
					return err
				}
				return nil
			}
			if m.closed.Load() {
				return nil
			}
			m.publish(line)
		}
	}
}

// scan runs the blocking reader. errc always receives exactly one value,
// nil on a clean end of input, before lines is closed.
func (m *LinkMux[T]) scan(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(m.port)
		sc.Buffer(make([]byte, 0, 64*1024), maxLine)
		for sc.Scan() {
			line := strings.TrimRight(sc.Text(), "\r")
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
		errc <- sc.Err()
	}()
	return lines, errc
}

func (m *LinkMux[T]) publish(line string) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- line:
		default:
		}
	}
}

// Close closes every subscriber channel and the port.
func (m *LinkMux[T]) Close() error {
	m.closed.Store(true)

	m.subMu.Lock()
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
	m.subMu.Unlock()
	return m.port.Close()
}
