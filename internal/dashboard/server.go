// Package dashboard provides a real-time WebSocket server for browser views.
//
// The dashboard broadcasts the active segment and station, and sync point
// changes, so a map or text view running in a browser follows the same
// playback state as the terminal views.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/damgoweb/tokaido-orai/internal/state"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeActiveSegment carries the segment and station active at the
	// current playback time.
	MessageTypeActiveSegment MessageType = "active_segment"

	// MessageTypeSyncPoints indicates the sync points were replaced.
	MessageTypeSyncPoints MessageType = "sync_points"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ActiveSegmentData is the payload of an active_segment message.
type ActiveSegmentData struct {
	SegmentID string  `json:"segment_id,omitempty"`
	StationID *int    `json:"station_id,omitempty"`
	Time      float64 `json:"time"`
	Duration  float64 `json:"duration"`
	Playing   bool    `json:"playing"`
}

// SyncPointsData is the payload of a sync_points message.
type SyncPointsData struct {
	Count int `json:"count"`
}

const (
	queueSize    = 32
	writeTimeout = 5 * time.Second
)

// Config holds server configuration.
type Config struct {
	Host   string       // default 127.0.0.1
	Port   int          // 0 picks a free port
	State  *state.Store // nil for a server that only relays Broadcast
	Logger *log.Logger
}

// viewer is one connected browser. Messages are queued per viewer so a
// slow browser never holds up the others.
type viewer struct {
	conn  *websocket.Conn
	queue chan []byte
}

// Server follows a state store and pushes its changes to browser views.
type Server struct {
	addr   string
	state  *state.Store
	logger *log.Logger

	ln  net.Listener
	srv *http.Server

	mu      sync.Mutex
	viewers map[*viewer]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a dashboard server. Call Start to listen.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    net.JoinHostPort(host, fmt.Sprint(cfg.Port)),
		state:   cfg.State,
		logger:  logger,
		viewers: make(map[*viewer]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start listens and serves /ws, /state and /health. With a state store it
// also starts following the store.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.ln = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/health", s.handleHealth)
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	if s.state != nil {
		updates, unsubscribe := s.state.Subscribe("dashboard")
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer unsubscribe()
			s.watch(updates)
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("listening on %s", ln.Addr())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("serve: %v", err)
		}
	}()
	return nil
}

// Stop disconnects every viewer and shuts the listener down.
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	viewers := s.viewers
	s.viewers = make(map[*viewer]struct{})
	s.mu.Unlock()
	for v := range viewers {
		_ = v.conn.Close(websocket.StatusGoingAway, "server stopping")
	}

	if s.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	s.wg.Wait()
	s.logger.Printf("stopped")
	return nil
}

// Broadcast queues msg for every connected viewer. A viewer whose queue is
// full is disconnected rather than allowed to fall behind.
func (s *Server) Broadcast(msg Message) {
	if s.ctx.Err() != nil {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Printf("marshal %s: %v", msg.Type, err)
		return
	}

	var slow []*viewer
	s.mu.Lock()
	for v := range s.viewers {
		select {
		case v.queue <- data:
		default:
			delete(s.viewers, v)
			slow = append(slow, v)
		}
	}
	s.mu.Unlock()

	for _, v := range slow {
		s.logger.Printf("viewer too slow, disconnecting")
		_ = v.conn.Close(websocket.StatusPolicyViolation, "too slow")
	}
}

// handleWebSocket registers a viewer and writes its queue until either side
// goes away. The viewer's first message is the current active segment.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Printf("websocket accept: %v", err)
		return
	}

	v := &viewer{conn: conn, queue: make(chan []byte, queueSize)}
	if welcome, err := json.Marshal(s.currentMessage()); err == nil {
		v.queue <- welcome
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "server stopping")
		return
	}
	s.viewers[v] = struct{}{}
	n := len(s.viewers)
	s.mu.Unlock()
	s.logger.Printf("viewer connected (%d total)", n)

	// Views are read-only; CloseRead discards anything they send and ends
	// ctx when the connection drops.
	ctx := conn.CloseRead(s.ctx)
	defer s.drop(v)
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-v.queue:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) drop(v *viewer) {
	s.mu.Lock()
	_, ok := s.viewers[v]
	delete(s.viewers, v)
	n := len(s.viewers)
	s.mu.Unlock()
	if ok {
		_ = v.conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("viewer disconnected (%d total)", n)
	}
}

func (s *Server) currentMessage() Message {
	var snap state.Snapshot
	if s.state != nil {
		snap = s.state.Snapshot()
	}
	return activeSegmentMessage(snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"viewers": s.ClientCount(),
	})
}

// handleState returns the current active segment as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(s.currentMessage().Data)
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of connected viewers.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.viewers)
}
