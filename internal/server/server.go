// Package server hosts the rendered document over HTTP during watch
// mode and pushes live-reload notifications over a websocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// reloadScript is injected into served pages. It reconnects with a
// small backoff so a server restart does not strand open tabs.
const reloadScript = `<script>
(function () {
    function connect() {
        var ws = new WebSocket("ws://" + location.host + "/ws");
        ws.onmessage = function () { location.reload(); };
        ws.onclose = function () { setTimeout(connect, 1000); };
    }
    connect();
})();
</script>`

// Server serves the latest rendered HTML and broadcasts a reload
// message whenever it is replaced.
type Server struct {
	addr   string
	logger *slog.Logger

	mu      sync.RWMutex
	content []byte
	clients map[*websocket.Conn]struct{}

	httpSrv *http.Server
}

// New creates a preview server bound to host:port.
func New(host string, port int, logger *slog.Logger) *Server {
	s := &Server{
		addr:    net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		logger:  logger,
		clients: make(map[*websocket.Conn]struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWS)
	s.httpSrv = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// URL returns the address the server serves on.
func (s *Server) URL() string {
	return "http://" + s.addr
}

// SetContent replaces the served document and tells connected clients
// to reload.
func (s *Server) SetContent(html []byte) {
	s.mu.Lock()
	s.content = html
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, conn := range conns {
		if err := conn.Write(ctx, websocket.MessageText, []byte("reload")); err != nil {
			s.logger.Debug("reload notify failed", "error", err)
		}
	}
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.mu.RLock()
	content := s.content
	s.mu.RUnlock()
	if content == nil {
		http.Error(w, "no document rendered yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(injectReload(content))
}

// injectReload places the reload script before </body> when one
// exists, otherwise at the end of the document. The result never
// shares memory with content, which concurrent requests read.
func injectReload(content []byte) []byte {
	out := make([]byte, 0, len(content)+len(reloadScript))
	if i := strings.LastIndex(string(content), "</body>"); i >= 0 {
		out = append(out, content[:i]...)
		out = append(out, reloadScript...)
		return append(out, content[i:]...)
	}
	out = append(out, content...)
	return append(out, reloadScript...)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.CloseNow()
	}()

	// The client never sends application data; reading keeps the
	// connection alive and notices the close.
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
	}
}
