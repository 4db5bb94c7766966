package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server exposes the pagerank CLI's collectors while a run is in progress,
// so a long ranking can be scraped before the process exits. The rank worker
// does not use it; it mounts Handler next to its API.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// StartServer binds port and serves GET /metrics in the background. Port 0
// picks a free port. A bind failure is returned rather than logged so the
// caller decides whether a run goes on without metrics.
func StartServer(port int) (*Server, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("metrics listener on port %d: %w", port, err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())

	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		ln: ln,
	}
	go func() {
		slog.Info("metrics server listening", "addr", s.Addr())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return s, nil
}

// Addr is the bound listen address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }
