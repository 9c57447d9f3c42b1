package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	ErrSendFailed         = errors.New("send failed")
	ErrDuplicateSession   = errors.New("session already registered")
	ErrTooManyConnections = errors.New("too many connections")
)

// Transport is the write side of one client connection.
type Transport interface {
	WriteMessage(data []byte) error
	Close() error
}

// Session is the server-side handle of one connected client. Messages are
// queued by Send and written in order by a dedicated write pump.
type Session struct {
	ID         string
	RemoteAddr string

	transport Transport
	send      chan []byte
	closed    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	alive     atomic.Bool
}

// New wraps t in a Session with a send queue of the given capacity and
// starts its write pump.
func New(t Transport, remoteAddr string, buffer int) *Session {
	if buffer <= 0 {
		buffer = 1
	}
	s := &Session{
		ID:         uuid.NewString(),
		RemoteAddr: remoteAddr,
		transport:  t,
		send:       make(chan []byte, buffer),
		closed:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.alive.Store(true)
	go s.writePump()
	return s
}

func (s *Session) writePump() {
	defer close(s.done)
	for {
		select {
		case msg := <-s.send:
			if err := s.transport.WriteMessage(msg); err != nil {
				log.Printf("session %s write error: %v", s.ID, err)
				s.Close()
				return
			}
		case <-s.closed:
			return
		}
	}
}

// Send queues data for delivery. It never blocks: a dead session or a full
// queue yields ErrSendFailed.
func (s *Session) Send(data []byte) error {
	if !s.alive.Load() {
		return fmt.Errorf("%w: session %s closed", ErrSendFailed, s.ID)
	}
	select {
	case s.send <- data:
		return nil
	default:
		return fmt.Errorf("%w: session %s queue full", ErrSendFailed, s.ID)
	}
}

// Alive reports whether the session can still accept messages.
func (s *Session) Alive() bool {
	return s.alive.Load()
}

// Close marks the session dead and closes its transport. Safe to call more
// than once and from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.alive.Store(false)
		close(s.closed)
		s.transport.Close()
	})
}

// Done is closed once the write pump has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
