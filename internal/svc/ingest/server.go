// If you are AI: This file implements the TCP ingest server that accepts datum streams.
// Each connection runs in its own goroutine and is closed when the server context ends.

package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"bwstream/internal/metrics"
)

// Server accepts TCP ingest connections.
type Server struct {
	consumer *Consumer
	listener net.Listener
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewServer creates a TCP ingest server that hands connections to consumer.
func NewServer(consumer *Consumer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		consumer: consumer,
		logger:   logger.With(zap.String("component", "ingest_tcp")),
	}
}

// Listen starts listening on the specified address.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.logger.Info("ingest listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the listening address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx ends, then closes the listener and every
// open connection and waits for their goroutines.
// Returns nil on shutdown and the accept error otherwise.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("ingest server is not listening")
	}
	stop := context.AfterFunc(ctx, func() {
		_ = s.listener.Close()
	})
	defer stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// handleConnection consumes one connection until it ends or ctx is cancelled.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	// Consume closes conn through its reader
	_ = s.consumer.Consume(ctx, metrics.TransportTCP, conn.RemoteAddr().String(), conn)
}
