// Live preview over WebSocket plus metrics and health endpoints
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	clientBuffer   = 2
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	previewQuality = 80
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server broadcasts each presented frame as a JPEG binary message to every
// connected /ws client. Slow clients miss frames instead of stalling the
// pipeline.
type Server struct {
	addr     string
	gatherer prometheus.Gatherer
	logger   *logrus.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	latest  []byte

	presented atomic.Uint64
	dropped   atomic.Uint64

	httpServer *http.Server
	listener   net.Listener
	closeOnce  sync.Once
	closeErr   error
}

// NewServer builds a server for addr. gatherer may be nil, in which case
// /metrics is not served.
func NewServer(addr string, gatherer prometheus.Gatherer, logger *logrus.Logger) *Server {
	return &Server{
		addr:     addr,
		gatherer: gatherer,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/snapshot.jpg", s.handleSnapshot)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start listens on the configured address and serves until ctx is done or
// Close is called.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("preview listen on %s: %w", s.addr, err)
	}
	s.listener = lis
	s.httpServer = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	s.logger.WithField("addr", lis.Addr().String()).Info("PREVIEW: Server listening")

	go func() {
		if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("PREVIEW: Server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Present encodes img and queues it for every client.
func (s *Server) Present(img image.Image) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(previewQuality)); err != nil {
		s.logger.WithError(err).Warn("PREVIEW: Failed to encode frame")
		return
	}
	data := buf.Bytes()
	s.presented.Add(1)

	s.mu.Lock()
	s.latest = data
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Stats returns presented and dropped frame counts.
func (s *Server) Stats() (presented, dropped uint64) {
	return s.presented.Load(), s.dropped.Load()
}

// Close shuts the HTTP server down and disconnects every client.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.closeErr = s.httpServer.Shutdown(ctx)
		}

		s.mu.Lock()
		for c := range s.clients {
			delete(s.clients, c)
			close(c.send)
		}
		s.mu.Unlock()
		s.logger.Info("PREVIEW: Server closed")
	})
	return s.closeErr
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	data := s.latest
	s.mu.RUnlock()
	if data == nil {
		http.Error(w, "no frame yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("PREVIEW: WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	s.mu.Lock()
	if s.latest != nil {
		c.send <- s.latest
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	s.logger.WithField("remote", r.RemoteAddr).Info("PREVIEW: Client connected")

	go s.writePump(c)
	s.readPump(c)
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
}

// readPump discards client messages and detects disconnects.
func (s *Server) readPump(c *client) {
	defer func() {
		s.unregister(c)
		c.conn.Close()
		s.logger.Info("PREVIEW: Client disconnected")
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.WithError(err).Debug("PREVIEW: Client read error")
			}
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
