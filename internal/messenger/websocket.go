package messenger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/standardbeagle/livedit/internal/protocol"
)

const (
	writeTimeout = 5 * time.Second
	// ReadIdleTimeout closes a websocket that has been silent this long.
	ReadIdleTimeout = 60 * time.Second
)

// WebSocket is a Transport over a gorilla websocket connection. Each frame is
// one JSON-encoded protocol.Message.
type WebSocket struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	once    sync.Once
}

// NewWebSocket wraps conn. A pong extends the read deadline.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(ReadIdleTimeout))
	})
	return &WebSocket{conn: conn}
}

// Ping sends a ping control frame.
func (w *WebSocket) Ping() error {
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// Conn returns the underlying connection.
func (w *WebSocket) Conn() *websocket.Conn { return w.conn }

// Read returns the next message. Frames that are not protocol messages yield
// an error wrapping protocol.ErrMalformed and leave the connection usable.
func (w *WebSocket) Read(ctx context.Context) (protocol.Message, error) {
	deadline := time.Now().Add(ReadIdleTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = w.conn.SetReadDeadline(deadline)

	_, data, err := w.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return protocol.Message{}, ErrClosed
		}
		return protocol.Message{}, fmt.Errorf("read frame: %w", err)
	}
	return protocol.Decode(data)
}

// Write sends m as one text frame.
func (w *WebSocket) Write(ctx context.Context, m protocol.Message) error {
	data, err := protocol.Encode(m)
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.Type, err)
	}
	return w.WriteRaw(ctx, data)
}

// WriteRaw sends an already encoded text frame.
func (w *WebSocket) WriteRaw(ctx context.Context, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = w.conn.SetWriteDeadline(deadline)
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return ErrClosed
		}
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close sends a close frame and closes the connection.
func (w *WebSocket) Close() error {
	var err error
	w.once.Do(func() {
		w.writeMu.Lock()
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		w.writeMu.Unlock()
		err = w.conn.Close()
	})
	return err
}
