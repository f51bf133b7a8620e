// Package wsview is a preview surface that streams frames as JPEG images to
// websocket clients.
package wsview

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pion/cameraview/internal/logging"
)

const (
	// Path is where clients connect.
	Path = "/ws/camera"

	writeWait = time.Second
)

var logger = logging.NewLogger("cameraview/wsview")

var ErrClosed = errors.New("surface closed")

// Server broadcasts rendered frames to every connected client.
type Server struct {
	quality  int
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	closed  bool
	frames  uint64

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithQuality sets the JPEG quality, 1 to 100.
func WithQuality(q int) Option {
	return func(s *Server) {
		if q >= 1 && q <= 100 {
			s.quality = q
		}
	}
}

// WithCheckOrigin overrides the origin check. All origins are accepted by
// default.
func WithCheckOrigin(f func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = f
	}
}

func New(opts ...Option) *Server {
	s := &Server{
		quality: jpeg.DefaultQuality,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns a mux serving Path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.serveWS)
	return mux
}

// Serve accepts connections on l until ctx is done or Close is called.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { srv.Close() })
	defer stop()

	logger.Infof("serving preview on ws://%s%s", l.Addr(), Path)
	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("failed to upgrade connection from %s: %v", r.RemoteAddr, err)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[conn] = struct{}{}
	s.mu.Unlock()
	logger.Infof("client connected: %s", r.RemoteAddr)

	defer s.drop(conn)

	// Clients only receive; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			logger.Debugf("client %s gone: %v", r.RemoteAddr, err)
			return
		}
	}
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	_, ok := s.clients[conn]
	delete(s.clients, conn)
	s.mu.Unlock()
	if ok {
		conn.Close()
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Frames returns the number of frames broadcast so far.
func (s *Server) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Render encodes img and sends it to every client. Nothing is encoded while
// no client is connected. Clients that fail to keep up are disconnected.
func (s *Server) Render(img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if len(s.clients) == 0 {
		return nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return err
	}

	deadline := time.Now().Add(writeWait)
	for conn := range s.clients {
		conn.SetWriteDeadline(deadline)
		if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
			logger.Warnf("dropping client %s: %v", conn.RemoteAddr(), err)
			delete(s.clients, conn)
			conn.Close()
		}
	}
	s.frames++
	return nil
}

// Close disconnects every client and stops Serve.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	clients := s.clients
	s.clients = make(map[*websocket.Conn]struct{})
	srv := s.httpServer
	s.mu.Unlock()

	for conn := range clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(writeWait))
		conn.Close()
	}
	if srv != nil {
		return srv.Close()
	}
	return nil
}
