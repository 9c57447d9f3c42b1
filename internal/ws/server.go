package ws

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wcscanner/server/internal/command"
	"github.com/wcscanner/server/internal/session"
)

const maxMessageSize = 1 << 20

// Archives locates zipped projects for download.
type Archives interface {
	ArchivePath(name string) (string, error)
}

type Options struct {
	SendBuffer     int
	WriteTimeout   time.Duration
	MaxConnections int
	AllowedOrigins []string
}

// Server owns the client connections: it registers each one, runs its
// message loop and unregisters it on every exit path.
type Server struct {
	registry       *session.Registry
	broadcaster    *Broadcaster
	dispatcher     *Dispatcher
	archives       Archives
	opts           Options
	upgrader       websocket.Upgrader
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewServer(registry *session.Registry, broadcaster *Broadcaster, dispatcher *Dispatcher, archives Archives, opts Options) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		registry:       registry,
		broadcaster:    broadcaster,
		dispatcher:     dispatcher,
		archives:       archives,
		opts:           opts,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		ctx:            ctx,
		cancel:         cancel,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	for _, origin := range opts.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("GET /download/{name}", securityHeaders(http.HandlerFunc(s.handleDownload)))
	// Existing clients connect to the bare host:port.
	mux.HandleFunc("/", s.handleWS)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if limit := s.opts.MaxConnections; limit > 0 && s.registry.Len() >= limit {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.serve(conn, r.RemoteAddr)
}

type connTransport struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (t connTransport) WriteMessage(data []byte) error {
	if t.timeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close may run on a broadcasting goroutine, so the close frame is written
// in the background; a stalled peer must not hold up the caller.
func (t connTransport) Close() error {
	go func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		t.conn.Close()
	}()
	return nil
}

// serve runs one connection from registration to unregistration.
func (s *Server) serve(conn *websocket.Conn, remote string) {
	sess := session.New(connTransport{conn: conn, timeout: s.opts.WriteTimeout}, remote, s.opts.SendBuffer)
	if err := s.registry.Add(sess); err != nil {
		log.Printf("rejecting %s: %v", remote, err)
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		sess.Close()
		return
	}
	defer func() {
		if p := recover(); p != nil {
			log.Printf("session %s: panic: %v", sess.ID, p)
		}
		s.unregister(sess)
	}()

	log.Printf("WebSocket client connected: %s (session %s, %d connected)", remote, sess.ID, s.registry.Len())
	s.broadcastState()

	conn.SetReadLimit(maxMessageSize)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if sess.Alive() && websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Printf("session %s read error: %v", sess.ID, err)
			}
			return
		}
		s.handleMessage(sess, raw)
	}
}

func (s *Server) unregister(sess *session.Session) {
	if !s.registry.Remove(sess) {
		return
	}
	sess.Close()
	log.Printf("WebSocket client disconnected: %s (session %s, %d connected)", sess.RemoteAddr, sess.ID, s.registry.Len())
	if s.ctx.Err() != nil {
		// Shutting down; everyone else is leaving too.
		return
	}
	s.broadcastState()
}

// handleMessage decodes and dispatches one message. Bad messages and failed
// commands are answered on the requesting session only.
func (s *Server) handleMessage(sess *session.Session, raw []byte) {
	cmd, err := command.Decode(raw)
	if err != nil {
		log.Printf("session %s: dropping message: %v", sess.ID, err)
		s.reply(sess, newErrorMessage("", err))
		return
	}
	log.Printf("session %s: %s", sess.ID, cmd.Action())

	res, err := s.dispatcher.Dispatch(s.ctx, cmd)
	if err != nil {
		log.Printf("session %s: %s failed: %v", sess.ID, cmd.Action(), err)
		s.reply(sess, newErrorMessage(cmd.Action(), err))
		return
	}

	switch res.Outcome {
	case OutcomeBroadcastState:
		s.broadcastState()
	case OutcomeBroadcastEvent:
		if _, err := s.broadcaster.BroadcastEvent(res.Message); err != nil {
			log.Printf("broadcast %s: %v", cmd.Action(), err)
		}
	case OutcomeReply:
		s.reply(sess, res.Message)
	}
}

func (s *Server) broadcastState() {
	if _, err := s.broadcaster.BroadcastState(s.ctx); err != nil {
		log.Printf("broadcast state: %v", err)
	}
}

func (s *Server) reply(sess *session.Session, msg any) {
	if err := Reply(sess, msg); err != nil {
		log.Printf("reply to %s: %v", sess.ID, err)
	}
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	path, err := s.archives.ArchivePath(name)
	if err != nil {
		http.Error(w, "archive not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".zip"))
	http.ServeFile(w, r, path)
}

// Shutdown closes every session and waits for their handlers to finish or
// for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.registry.CloseAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || s.allowedOrigins[origin] {
		return true
	}
	if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
		return s.allowedHosts[parsed.Host]
	}
	return false
}
