// Package main - server.go
//
// This file implements the status server: a small HTTP API plus a websocket
// feed that pushes SharedStatus snapshots to external UIs.
//
// Routes:
//
//	GET  /api/status      snapshot JSON
//	POST /api/start       flip the run flag on
//	POST /api/stop        flip the run flag off
//	GET  /api/detections  {boxes, window}
//	GET  /ws              snapshot stream
//
// The start/stop routes never touch the fishing loop directly; like hotkeys
// they only request a state change that the loop reconciles on its next tick.
//
// Publishing:
// One publisher goroutine reads the snapshot every publish interval and hands
// the encoded bytes to each client's send buffer. A client whose buffer is
// full misses that frame instead of stalling the publisher.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	sendBuffer    = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StatusServer serves the status API and websocket feed
type StatusServer struct {
	status   *SharedStatus
	interval time.Duration

	clients   map[*wsClient]bool
	clientsMu sync.Mutex

	httpSrv *http.Server
}

type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *StatusServer
	once   sync.Once
}

// NewStatusServer creates a server publishing status every interval
func NewStatusServer(status *SharedStatus, interval time.Duration) *StatusServer {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &StatusServer{
		status:   status,
		interval: interval,
		clients:  make(map[*wsClient]bool),
	}
}

// Handler returns an http.Handler with all routes configured.
func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/start", s.handleStart)
	mux.HandleFunc("POST /api/stop", s.handleStop)
	mux.HandleFunc("GET /api/detections", s.handleDetections)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves on addr and runs the publisher until ctx is cancelled
func (s *StatusServer) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln and runs the publisher until ctx is cancelled
func (s *StatusServer) Serve(ctx context.Context, ln net.Listener) error {
	s.httpSrv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go s.Publish(ctx)
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(shutdown)
		s.closeClients()
	}()

	LogInfo("[SERVER] Status server listening on %s", ln.Addr())
	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Publish broadcasts a snapshot every interval until ctx is cancelled
func (s *StatusServer) Publish(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcastSnapshot()
		}
	}
}

func (s *StatusServer) broadcastSnapshot() {
	data, err := s.status.JSON()
	if err != nil {
		LogWarn("[SERVER] Failed to encode snapshot: %v", err)
		return
	}
	s.broadcast(data)
}

// broadcast queues data on every client; full buffers drop the frame
func (s *StatusServer) broadcast(data []byte) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// ClientCount returns the number of connected websocket clients
func (s *StatusServer) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func (s *StatusServer) closeClients() {
	s.clientsMu.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()
	for _, c := range clients {
		s.removeClient(c)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Snapshot())
}

func (s *StatusServer) handleStart(w http.ResponseWriter, r *http.Request) {
	if !s.status.IsRunning() {
		s.status.RequestStart()
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"running": true})
}

func (s *StatusServer) handleStop(w http.ResponseWriter, r *http.Request) {
	if s.status.IsRunning() {
		s.status.RequestStop()
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"running": false})
}

func (s *StatusServer) handleDetections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Detections())
}

// handleWebSocket upgrades the connection and sends the current snapshot at once.
func (s *StatusServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		LogWarn("[SERVER] Websocket upgrade error: %v", err)
		return
	}

	c := &wsClient{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		server: s,
	}

	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()
	LogDebug("[SERVER] Websocket client connected (%s)", r.RemoteAddr)

	if data, err := s.status.JSON(); err == nil {
		c.send <- data
	}

	go c.writePump()
	go c.readPump()
}

// removeClient unregisters c and closes its send buffer once
func (s *StatusServer) removeClient(c *wsClient) {
	c.once.Do(func() {
		s.clientsMu.Lock()
		delete(s.clients, c)
		close(c.send)
		s.clientsMu.Unlock()
		LogDebug("[SERVER] Websocket client disconnected")
	})
}

// readPump drains the connection; clients have nothing to say but pongs and close frames
func (c *wsClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				LogDebug("[SERVER] Websocket read error: %v", err)
			}
			return
		}
	}
}

// writePump writes queued snapshots and keeps the connection alive with pings
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
