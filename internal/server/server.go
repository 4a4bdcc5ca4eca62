// If you are AI: This file implements the process server: it wires the profile, metrics,
// ingest listeners, push tasks and HTTP surfaces, and runs them as one errgroup.

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bwstream/internal/config"
	"bwstream/internal/core/profile"
	"bwstream/internal/metrics"
	"bwstream/internal/svc/api"
	"bwstream/internal/svc/health"
	"bwstream/internal/svc/ingest"
	"bwstream/internal/svc/push"
	"bwstream/internal/svc/wsingest"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Server owns every listener and background task of the process.
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.Collector
	profile   *push.Profile
	consumer  *ingest.Consumer
	ingest    *ingest.Server
	pushMgr   *push.Manager

	healthServer *http.Server
	httpServer   *http.Server
	healthLn     net.Listener
	httpLn       net.Listener
}

// New creates a server for cfg around a loaded profile table.
// Nothing listens until Run is called.
func New(cfg *config.Config, table *profile.Table[profile.StreamConfig], logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	collector := metrics.NewCollector("bwstream", logger)
	table.OnChange(func(level int, rec profile.Record[profile.StreamConfig]) {
		collector.ObserveLevel(level, rec.Bandwidth)
	})
	if cfg.Profile.DeclaredBandwidth > 0 {
		table.AdjustTo(cfg.Profile.DeclaredBandwidth)
	}
	if table.Len() > 0 {
		collector.ObserveLevel(table.CurrentIndex(), table.Record(table.CurrentIndex()).Bandwidth)
	}

	prof := push.NewProfile(table)
	consumer := ingest.NewConsumer(collector, logger)

	return &Server{
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "server")),
		collector: collector,
		profile:   prof,
		consumer:  consumer,
		ingest:    ingest.NewServer(consumer, logger),
		pushMgr:   push.NewManager(prof, collector, logger),
	}
}

// Run listens on every configured port, starts push tasks and serves until ctx
// is cancelled or any component fails; then everything is shut down.
// Returns nil after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	if err := s.listen(ctx); err != nil {
		s.closeListeners()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return serveHTTP(s.healthServer, s.healthLn)
	})
	g.Go(func() error {
		return serveHTTP(s.httpServer, s.httpLn)
	})
	g.Go(func() error {
		return s.ingest.Serve(gctx)
	})

	if err := s.pushMgr.StartTasks(gctx, s.cfg.Push); err != nil {
		s.logger.Error("push tasks not started", zap.Error(err))
		g.Go(func() error { return err })
	}

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	s.logger.Info("server started",
		zap.Int("health_port", s.cfg.Server.HealthPort),
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("ingest_port", s.cfg.Server.IngestPort),
		zap.Int("push_tasks", s.pushMgr.TaskCount()),
	)

	err := g.Wait()
	if err != nil {
		s.logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	s.logger.Info("server shut down cleanly")
	return nil
}

// listen binds every port and builds the HTTP servers; the websocket
// handler sessions end with ctx.
func (s *Server) listen(ctx context.Context) error {
	healthMux := http.NewServeMux()
	health.New(map[string]health.Check{
		"ingest": s.ingestReady,
	}).RegisterRoutes(healthMux)

	mux := http.NewServeMux()
	api.NewService(s.profile, s.pushMgr, s.consumer, s.logger).RegisterRoutes(mux)
	wsingest.NewService(ctx, s.cfg.Server.WSPath, s.consumer, s.logger).RegisterRoutes(mux)
	mux.Handle("/metrics", s.collector.Handler())

	s.healthServer = &http.Server{Handler: healthMux, ReadHeaderTimeout: readHeaderTimeout}
	s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	var err error
	if s.healthLn, err = net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Server.HealthPort)); err != nil {
		return fmt.Errorf("listen health: %w", err)
	}
	if s.httpLn, err = net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Server.HTTPPort)); err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	return s.ingest.Listen(fmt.Sprintf(":%d", s.cfg.Server.IngestPort))
}

// ingestReady reports whether the TCP ingest listener is bound.
func (s *Server) ingestReady() error {
	if s.ingest.Addr() == nil {
		return errors.New("not listening")
	}
	return nil
}

// shutdown stops HTTP servers and push tasks within shutdownTimeout.
// The ingest server stops on its own when the group context ends.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down")
	return errors.Join(
		s.healthServer.Shutdown(ctx),
		s.httpServer.Shutdown(ctx),
		s.pushMgr.Stop(ctx),
	)
}

// closeListeners releases whatever listen managed to bind.
func (s *Server) closeListeners() {
	for _, ln := range []net.Listener{s.healthLn, s.httpLn} {
		if ln != nil {
			_ = ln.Close()
		}
	}
}

// serveHTTP serves until Shutdown; a closed server is not an error.
func serveHTTP(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
