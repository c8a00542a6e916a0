package messenger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/standardbeagle/livedit/internal/debug"
	"github.com/standardbeagle/livedit/internal/protocol"
)

// Handler receives a dispatched message.
type Handler func(protocol.Message)

// Messenger stamps, sends and dispatches protocol messages over a Transport.
type Messenger struct {
	name   string
	t      Transport
	expect protocol.Direction
	log    *debug.Logger
	now    func() time.Time

	mu       sync.RWMutex
	handlers map[protocol.Type][]Handler
	any      []Handler
}

// New returns a messenger named for logs. It dispatches only messages that
// travel in direction expect; DirectionUnknown accepts every known type.
func New(name string, t Transport, expect protocol.Direction) *Messenger {
	return &Messenger{
		name:     name,
		t:        t,
		expect:   expect,
		log:      debug.For("messenger." + name),
		now:      time.Now,
		handlers: make(map[protocol.Type][]Handler),
	}
}

// Send stamps and writes a message. It never blocks on a full in-process queue.
func (m *Messenger) Send(t protocol.Type, data any) error {
	return m.SendContext(context.Background(), t, data)
}

// SendContext is Send with a context for transports that may block.
func (m *Messenger) SendContext(ctx context.Context, t protocol.Type, data any) error {
	msg, err := protocol.NewAt(t, data, m.now())
	if err != nil {
		return err
	}
	if err := m.t.Write(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", t, err)
	}
	m.log.Tracef("sent %s", t)
	return nil
}

// On registers h for messages of type t.
func (m *Messenger) On(t protocol.Type, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[t] = append(m.handlers[t], h)
}

// OnAny registers h for every accepted message, after type handlers.
func (m *Messenger) OnAny(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.any = append(m.any, h)
}

// Accepts reports whether msg would be dispatched.
func (m *Messenger) Accepts(msg protocol.Message) bool {
	dir := msg.Type.Direction()
	if dir == protocol.DirectionUnknown {
		return false
	}
	return m.expect == protocol.DirectionUnknown || dir == m.expect
}

// Dispatch delivers msg to its handlers. Unknown and misdirected messages are
// dropped, and a panicking handler is logged rather than propagated.
func (m *Messenger) Dispatch(msg protocol.Message) {
	if !m.Accepts(msg) {
		m.log.Warnf("dropping %q message (%s)", msg.Type, msg.Type.Direction())
		return
	}

	m.mu.RLock()
	hs := append([]Handler(nil), m.handlers[msg.Type]...)
	hs = append(hs, m.any...)
	m.mu.RUnlock()

	for _, h := range hs {
		m.call(h, msg)
	}
}

func (m *Messenger) call(h Handler, msg protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Errorf("handler for %s panicked: %v", msg.Type, r)
		}
	}()
	h(msg)
}

// Run reads and dispatches messages until the transport closes or ctx is
// done. Malformed frames are skipped.
func (m *Messenger) Run(ctx context.Context) error {
	for {
		msg, err := m.t.Read(ctx)
		switch {
		case err == nil:
			m.Dispatch(msg)
		case errors.Is(err, protocol.ErrMalformed), errors.Is(err, protocol.ErrMissingType):
			m.log.Warnf("skipping frame: %v", err)
		case errors.Is(err, ErrClosed):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return err
		}
	}
}

// Close closes the transport.
func (m *Messenger) Close() error {
	return m.t.Close()
}
