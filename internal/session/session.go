// Package session assembles live editing sessions: an embedded page document
// driven by the selection controller, and the host editor model, joined by a
// pair of messengers.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/livedit/internal/debug"
	"github.com/standardbeagle/livedit/internal/dom"
	"github.com/standardbeagle/livedit/internal/editor"
	"github.com/standardbeagle/livedit/internal/messenger"
	"github.com/standardbeagle/livedit/internal/protocol"
	"github.com/standardbeagle/livedit/internal/selection"
)

var log = debug.For("session")

var (
	// ErrStopped is returned for operations on a stopped session.
	ErrStopped = errors.New("session stopped")
	// ErrWrongDirection is returned when forwarding a message the embedded side does not accept.
	ErrWrongDirection = errors.New("message does not travel host to embedded")
)

// DefaultSubscriberBuffer is the queue length of a subscription channel.
const DefaultSubscriberBuffer = 64

// Batch is the set of document mutations produced by one input, in order.
type Batch struct {
	Seq       uint64         `json:"seq"`
	Mutations []dom.Mutation `json:"mutations"`
}

// Options configures a session.
type Options struct {
	Name      string
	Selection selection.Config
	Editor    editor.Options
}

// Session is one page being edited.
type Session struct {
	ID        string
	Name      string
	CreatedAt time.Time

	controller *selection.Controller
	store      *editor.Store
	embedded   *messenger.Messenger
	host       *messenger.Messenger

	cancel  context.CancelFunc
	loops   sync.WaitGroup
	stopped atomic.Bool
	seq     atomic.Uint64
	flushMu sync.Mutex

	subMu   sync.Mutex
	nextSub int
	hostSub map[int]chan protocol.Message
	mutSub  map[int]chan Batch
}

// New parses content and starts a session. The host history starts with the
// parsed content and the controller announces itself before New returns.
func New(ctx context.Context, id, content string, opts Options) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := dom.ParseString(content)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	initial, err := doc.Content()
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        id,
		Name:      opts.Name,
		CreatedAt: time.Now(),
		hostSub:   make(map[int]chan protocol.Message),
		mutSub:    make(map[int]chan Batch),
	}

	embeddedEnd, hostEnd := messenger.Pipe(messenger.DefaultPipeBuffer)
	s.embedded = messenger.New("embedded", embeddedEnd, protocol.ToEmbedded)
	s.host = messenger.New("host", hostEnd, protocol.ToHost)

	selCfg := opts.Selection
	selCfg.Scheduler = flushingScheduler{inner: selCfg.Scheduler, flush: s.flush}
	s.controller = selection.New(doc, s.embedded, selCfg)
	s.store = editor.NewStore(s.host, opts.Editor)

	s.embedded.OnAny(func(m protocol.Message) {
		s.controller.Handle(m)
		s.flush()
	})
	s.host.OnAny(func(m protocol.Message) {
		s.store.Handle(m)
		s.publish(m)
	})

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	for _, m := range []*messenger.Messenger{s.embedded, s.host} {
		s.loops.Add(1)
		go func(m *messenger.Messenger) {
			defer s.loops.Done()
			if err := m.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warnf("session %s: loop stopped: %v", id, err)
			}
		}(m)
	}

	s.store.PushHistory(initial)
	s.controller.Init()
	log.Infof("session %s started (%s)", id, opts.Name)
	return s, nil
}

// Controller returns the embedded-side selection controller.
func (s *Session) Controller() *selection.Controller { return s.controller }

// Store returns the host-side editor model.
func (s *Session) Store() *editor.Store { return s.store }

// Running reports whether the session is still live.
func (s *Session) Running() bool { return !s.stopped.Load() }

// Render returns the live document including editor artifacts, for serving
// to the browser relay.
func (s *Session) Render() (string, error) { return s.controller.Render() }

// Content returns the page without editor artifacts.
func (s *Session) Content() (string, error) { return s.controller.Content() }

// Save persists the host's current content.
func (s *Session) Save(ctx context.Context) error {
	if s.stopped.Load() {
		return ErrStopped
	}
	return s.store.Save(ctx)
}

// Forward sends a host→embedded command on behalf of a remote host.
func (s *Session) Forward(m protocol.Message) error {
	if s.stopped.Load() {
		return ErrStopped
	}
	if m.Type.Direction() != protocol.ToEmbedded {
		return fmt.Errorf("forward %s: %w", m.Type, ErrWrongDirection)
	}
	var data any
	if len(m.Data) > 0 {
		data = m.Data
	}
	return s.host.Send(m.Type, data)
}

// SubscribeHost returns a channel receiving every embedded→host message and
// a function that ends the subscription.
func (s *Session) SubscribeHost(buffer int) (<-chan protocol.Message, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan protocol.Message, buffer)
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.stopped.Load() {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.hostSub[id] = ch
	return ch, func() { s.unsubscribe(id) }
}

// SubscribeMutations returns a channel receiving mutation batches for the
// browser relay and a function that ends the subscription.
func (s *Session) SubscribeMutations(buffer int) (<-chan Batch, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan Batch, buffer)
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.stopped.Load() {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.mutSub[id] = ch
	return ch, func() { s.unsubscribe(id) }
}

func (s *Session) unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.hostSub[id]; ok {
		delete(s.hostSub, id)
		close(ch)
	}
	if ch, ok := s.mutSub[id]; ok {
		delete(s.mutSub, id)
		close(ch)
	}
}

func (s *Session) publish(m protocol.Message) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.hostSub {
		select {
		case ch <- m:
		default:
			log.Warnf("session %s: host subscriber %d full, dropping %s", s.ID, id, m.Type)
		}
	}
}

// flush drains pending document mutations and fans them out.
func (s *Session) flush() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	muts := s.controller.Flush()
	if len(muts) == 0 {
		return
	}
	b := Batch{Seq: s.seq.Add(1), Mutations: muts}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.mutSub {
		select {
		case ch <- b:
		default:
			// A relay that misses a batch is out of sync; it must reload.
			log.Warnf("session %s: relay subscriber %d full, dropping batch %d", s.ID, id, b.Seq)
		}
	}
}

// Request runs send and waits for the first embedded→host message of one of
// the wanted types. It is how synchronous callers observe the asynchronous
// result of a host command.
func (s *Session) Request(ctx context.Context, send func() error, want ...protocol.Type) (protocol.Message, error) {
	if s.stopped.Load() {
		return protocol.Message{}, ErrStopped
	}
	ch, done := s.SubscribeHost(DefaultSubscriberBuffer)
	defer done()

	if err := send(); err != nil {
		return protocol.Message{}, err
	}
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return protocol.Message{}, ErrStopped
			}
			for _, t := range want {
				if m.Type == t {
					return m, nil
				}
			}
		case <-ctx.Done():
			return protocol.Message{}, ctx.Err()
		}
	}
}

// Stop ends both loops and closes every subscription.
func (s *Session) Stop(ctx context.Context) error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	s.cancel()
	err := errors.Join(s.embedded.Close(), s.host.Close())

	done := make(chan struct{})
	go func() {
		s.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, ctx.Err())
	}

	s.subMu.Lock()
	for id, ch := range s.hostSub {
		delete(s.hostSub, id)
		close(ch)
	}
	for id, ch := range s.mutSub {
		delete(s.mutSub, id)
		close(ch)
	}
	s.subMu.Unlock()

	log.Infof("session %s stopped", s.ID)
	return err
}

// flushingScheduler flushes mutations after each timer callback, so changes
// made outside an input event still reach the relay.
type flushingScheduler struct {
	inner selection.Scheduler
	flush func()
}

func (f flushingScheduler) AfterFunc(d time.Duration, fn func()) selection.Timer {
	wrapped := func() {
		fn()
		f.flush()
	}
	if f.inner != nil {
		return f.inner.AfterFunc(d, wrapped)
	}
	return time.AfterFunc(d, wrapped)
}
