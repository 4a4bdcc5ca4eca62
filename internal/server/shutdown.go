// If you are AI: This file handles graceful shutdown orchestration for the server process.

package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// ShutdownHandler cancels its context on SIGINT or SIGTERM.
type ShutdownHandler struct {
	ctx     context.Context
	cancel  context.CancelFunc
	sigChan chan os.Signal
	logger  *zap.Logger
}

// NewShutdownHandler creates a handler that listens for termination signals.
// The provided context is used as the parent of Context.
func NewShutdownHandler(ctx context.Context, logger *zap.Logger) *ShutdownHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	shutdownCtx, cancel := context.WithCancel(ctx)
	h := &ShutdownHandler{
		ctx:     shutdownCtx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 1),
		logger:  logger,
	}
	signal.Notify(h.sigChan, os.Interrupt, syscall.SIGTERM)
	go h.wait()
	return h
}

// wait cancels the context on the first signal, or returns when it is cancelled otherwise.
func (h *ShutdownHandler) wait() {
	select {
	case sig := <-h.sigChan:
		h.logger.Info("signal received, shutting down", zap.String("signal", sig.String()))
		h.cancel()
	case <-h.ctx.Done():
	}
}

// Context returns the context that is cancelled when shutdown begins.
func (h *ShutdownHandler) Context() context.Context {
	return h.ctx
}

// Stop releases the signal subscription and cancels the context.
func (h *ShutdownHandler) Stop() {
	signal.Stop(h.sigChan)
	h.cancel()
}
