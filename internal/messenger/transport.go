// Package messenger moves protocol messages between the embedded document and
// the host. Delivery is fire-and-forget and at-most-once, FIFO per direction.
package messenger

import (
	"context"
	"errors"
	"sync"

	"github.com/standardbeagle/livedit/internal/protocol"
)

var (
	// ErrClosed is returned by operations on a closed transport.
	ErrClosed = errors.New("transport closed")
	// ErrQueueFull is returned when a non-blocking send finds no room.
	ErrQueueFull = errors.New("transport queue full")
)

// Transport carries messages in both directions.
type Transport interface {
	Read(ctx context.Context) (protocol.Message, error)
	Write(ctx context.Context, m protocol.Message) error
	Close() error
}

// DefaultPipeBuffer is the per-direction queue length of a Pipe.
const DefaultPipeBuffer = 256

type pipeState struct {
	once sync.Once
	done chan struct{}
}

// PipeEnd is one side of an in-process transport.
type PipeEnd struct {
	in    <-chan protocol.Message
	out   chan<- protocol.Message
	state *pipeState
}

// Pipe returns two connected in-process transport ends. Writes never block:
// when the peer's queue is full the message is dropped with ErrQueueFull.
func Pipe(buffer int) (*PipeEnd, *PipeEnd) {
	if buffer <= 0 {
		buffer = DefaultPipeBuffer
	}
	ab := make(chan protocol.Message, buffer)
	ba := make(chan protocol.Message, buffer)
	st := &pipeState{done: make(chan struct{})}
	return &PipeEnd{in: ba, out: ab, state: st}, &PipeEnd{in: ab, out: ba, state: st}
}

// Read returns the next message in FIFO order. Messages queued before Close
// are still delivered.
func (p *PipeEnd) Read(ctx context.Context) (protocol.Message, error) {
	select {
	case m := <-p.in:
		return m, nil
	default:
	}
	select {
	case m := <-p.in:
		return m, nil
	case <-p.state.done:
		select {
		case m := <-p.in:
			return m, nil
		default:
			return protocol.Message{}, ErrClosed
		}
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	}
}

// Write queues m for the peer without blocking.
func (p *PipeEnd) Write(_ context.Context, m protocol.Message) error {
	select {
	case <-p.state.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- m:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close closes both ends.
func (p *PipeEnd) Close() error {
	p.state.once.Do(func() { close(p.state.done) })
	return nil
}
