// Package dashboard serves the feed's state over HTTP and accepts the user
// actions that drive it.
package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/afnaayusuf/kintsugi/internal/feed/fleet"
	"github.com/afnaayusuf/kintsugi/internal/feed/prefs"
	"github.com/afnaayusuf/kintsugi/internal/pkg/metrics"
	"github.com/afnaayusuf/kintsugi/pkg/log"
	"github.com/afnaayusuf/kintsugi/pkg/mqtt"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	cfg      *Config
	feed     *Feed
	mqtt     mqtt.Client
	presence *fleet.Presence
	server   *http.Server
	running  atomic.Bool
}

func newServer(cfg *Config, feed *Feed) *Server {
	s := &Server{cfg: cfg, feed: feed}
	s.server = &http.Server{
		Addr:              cfg.HttpOptions.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.HttpOptions.Timeout,
		WriteTimeout:      cfg.HttpOptions.Timeout,
	}
	return s
}

// Feed returns the feed the server drives.
func (s *Server) Feed() *Feed { return s.feed }

// Handler returns the router with every endpoint mounted.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(logRequests)

	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.readyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/state", s.getState).Methods(http.MethodGet)
	api.HandleFunc("/telemetry/current", s.getTelemetry).Methods(http.MethodGet)
	api.HandleFunc("/session", s.createSession).Methods(http.MethodPost)
	api.HandleFunc("/session", s.deleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/selection", s.putSelection).Methods(http.MethodPut)
	api.HandleFunc("/settings/update-interval", s.getUpdateInterval).Methods(http.MethodGet)
	api.HandleFunc("/settings/update-interval", s.putUpdateInterval).Methods(http.MethodPut)

	return r
}

// Run serves HTTP and runs the feed, the presence watcher and the
// preference watcher until ctx is done or one of them fails.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.feed.Run(ctx) })
	g.Go(func() error { return s.serve(ctx) })

	if s.presence != nil {
		g.Go(func() error { return s.presence.Run(ctx) })
	}
	if w := s.cfg.PrefsWatcher; w != nil {
		g.Go(func() error {
			return w.Watch(ctx, func() {
				log.Info("Preferences changed, applying from the next connection",
					"updateInterval", prefs.UpdateInterval(ctx, s.cfg.Coordinator.Prefs))
			})
		})
	}

	log.Info("Dashboard starting", "addr", s.server.Addr)
	return g.Wait()
}

func (s *Server) serve(ctx context.Context) error {
	ln, err := net.Listen(s.cfg.HttpOptions.Network, s.server.Addr)
	if err != nil {
		return err
	}
	log.Info("Starting HTTP server", "addr", ln.Addr().String())
	s.running.Store(true)
	defer s.running.Store(false)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) ready() bool {
	if !s.running.Load() {
		return false
	}
	return s.mqtt == nil || s.mqtt.IsConnected()
}

func logRequests(next http.Handler) http.Handler {
	access := log.WithName("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		access.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
