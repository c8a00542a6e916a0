// Package preview serves live editing sessions over HTTP: the page with the
// relay script injected, a websocket for the browser relay and a websocket
// for a remote editor host.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/standardbeagle/livedit/internal/debug"
	"github.com/standardbeagle/livedit/internal/messenger"
	"github.com/standardbeagle/livedit/internal/protocol"
	"github.com/standardbeagle/livedit/internal/session"
)

var log = debug.For("preview")

const (
	// MaxPageSize bounds uploaded page content.
	MaxPageSize = 8 << 20
	// PingInterval keeps idle websockets inside the read deadline.
	PingInterval = 25 * time.Second
)

// Server is the preview HTTP server.
type Server struct {
	manager *session.Manager
	origins messenger.OriginPolicy
	router  chi.Router

	embedUpgrader websocket.Upgrader
	hostUpgrader  websocket.Upgrader
}

// NewServer returns a server over m. allowedOrigins governs the host
// websocket; the relay websocket only accepts the serving host.
func NewServer(m *session.Manager, allowedOrigins []string) *Server {
	s := &Server{
		manager: m,
		origins: messenger.NewOriginPolicy(allowedOrigins),
	}
	sameHost := messenger.NewOriginPolicy(nil)
	s.embedUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 65536,
		CheckOrigin:     sameHost.CheckOrigin,
	}
	s.hostUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 65536,
		CheckOrigin:     s.origins.CheckOrigin,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.manager.ActiveCount()})
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleInfo)
			r.Delete("/", s.handleStop)
			r.Get("/page", s.handlePage)
			r.Get("/content", s.handleContent)
			r.Post("/save", s.handleSave)
			r.Get("/embed", s.handleEmbed)
			r.Get("/host", s.handleHost)
		})
	})
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("preview server listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// SessionInfo describes a session over HTTP.
type SessionInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	PageURL   string    `json:"page_url"`
	Editing   bool      `json:"editing"`
	Selected  string    `json:"selected,omitempty"`
	History   int       `json:"history"`
}

func info(sess *session.Session) SessionInfo {
	i := SessionInfo{
		ID:        sess.ID,
		Name:      sess.Name,
		CreatedAt: sess.CreatedAt,
		PageURL:   "/sessions/" + sess.ID + "/page",
		Editing:   sess.Store().Editing(),
		History:   sess.Store().History().Len,
	}
	if snap, ok := sess.Store().Selection(); ok {
		i.Selected = snap.Path
	}
	return i
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.manager.Get(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, session.ErrSessionAmbiguous):
		writeError(w, http.StatusConflict, err)
		return nil, false
	case err != nil:
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	list := s.manager.List()
	out := make([]SessionInfo, 0, len(list))
	for _, sess := range list {
		out = append(out, info(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateRequest is the JSON body of POST /sessions. A text/html body is
// taken as the content, with the name from the ?name= query parameter.
type CreateRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPageSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(body) > MaxPageSize {
		writeError(w, http.StatusRequestEntityTooLarge, errors.New("page too large"))
		return
	}

	var req CreateRequest
	if ShouldInject(r.Header.Get("Content-Type")) {
		req = CreateRequest{Name: r.URL.Query().Get("name"), Content: string(body)}
	} else if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	var sess *session.Session
	if strings.TrimSpace(req.Content) == "" && req.Name != "" {
		sess, err = s.manager.Open(r.Context(), req.Name)
	} else {
		sess, err = s.manager.Create(r.Context(), req.Name, req.Content)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, info(sess))
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		writeJSON(w, http.StatusOK, info(sess))
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := s.manager.Stop(r.Context(), sess.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	page, err := sess.Render()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(InjectRelay([]byte(page), sess.ID))
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	content, err := sess.Content()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, content)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Save(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// handleEmbed carries relay events in and mutation batches out.
func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	conn, err := s.embedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("embed upgrade: %v", err)
		return
	}
	ws := messenger.NewWebSocket(conn)
	defer ws.Close()
	log.Debugf("relay connected to session %s from %s", sess.ID, r.RemoteAddr)

	batches, unsubscribe := sess.SubscribeMutations(0)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer func() {
			cancel()
			ws.Close()
		}()
		ping := time.NewTicker(PingInterval)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case b, ok := <-batches:
				if !ok {
					return
				}
				data, _ := json.Marshal(b)
				if err := ws.WriteRaw(ctx, data); err != nil {
					return
				}
			case <-ping.C:
				if err := ws.Ping(); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(messenger.ReadIdleTimeout))
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(messenger.ReadIdleTimeout))

		var ev session.Event
		if err := json.Unmarshal(frame, &ev); err != nil {
			log.Warnf("session %s: bad relay frame: %v", sess.ID, err)
			continue
		}
		if _, err := sess.Dispatch(ev); err != nil {
			if errors.Is(err, session.ErrStopped) {
				break
			}
			log.Warnf("session %s: %v", sess.ID, err)
		}
	}
	log.Debugf("relay disconnected from session %s", sess.ID)
}

// handleHost lets a remote editor host drive the session with protocol
// commands and observe its notifications.
func (s *Server) handleHost(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	conn, err := s.hostUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("host upgrade: %v", err)
		return
	}
	ws := messenger.NewWebSocket(conn)
	defer ws.Close()

	notes, unsubscribe := sess.SubscribeHost(0)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Replay readiness so a late host learns the protocol version.
	if ready, ok := sess.Store().Ready(); ok {
		if m, err := protocol.New(protocol.TypeReady, ready); err == nil {
			ws.Write(ctx, m)
		}
	}

	go func() {
		defer func() {
			cancel()
			ws.Close()
		}()
		ping := time.NewTicker(PingInterval)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-notes:
				if !ok {
					return
				}
				if err := ws.Write(ctx, m); err != nil {
					return
				}
			case <-ping.C:
				if err := ws.Ping(); err != nil {
					return
				}
			}
		}
	}()

	remote := messenger.New("remote-host", ws, protocol.ToEmbedded)
	remote.OnAny(func(m protocol.Message) {
		if err := sess.Forward(m); err != nil {
			log.Warnf("session %s: forward %s: %v", sess.ID, m.Type, err)
		}
	})
	if err := remote.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Debugf("host connection for session %s ended: %v", sess.ID, err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
