// If you are AI: This file implements the ingest consumer shared by the TCP and websocket services.
// It decodes datums from a byte stream, logs their latency and records metrics per session.

package ingest

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bwstream/internal/core/protocol/datum"
	"bwstream/internal/core/transport"
)

// Recorder receives per-frame and per-connection measurements.
type Recorder interface {
	RecordFrame(transportName string, payloadBytes int, latency time.Duration, stamped bool)
	ConnectionOpened(transportName string)
	ConnectionClosed(transportName string)
}

// SessionInfo describes one open ingest session for API responses.
type SessionInfo struct {
	ID        string    `json:"id"`
	Transport string    `json:"transport"`
	Remote    string    `json:"remote"`
	Started   time.Time `json:"started"`
	Frames    uint64    `json:"frames"`
	Bytes     uint64    `json:"bytes"`
	Level     uint16    `json:"level"`
}

// session tracks one connection. Counters are written by the connection goroutine
// and read by API handlers.
type session struct {
	id        string
	transport string
	remote    string
	started   time.Time
	frames    atomic.Uint64
	bytes     atomic.Uint64
	level     atomic.Uint32
	latency   atomic.Int64 // Sum of stamped latencies in nanoseconds
	stamped   atomic.Uint64
}

// Consumer decodes ingest streams.
// Lock expectations: Consume runs on the connection goroutine; Sessions may be
// called from any goroutine.
type Consumer struct {
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewConsumer creates a consumer. recorder may be nil.
func NewConsumer(recorder Recorder, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		recorder: recorder,
		logger:   logger.With(zap.String("component", "ingest")),
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Consume reads datums from r until end of stream, a read failure or ctx ends.
// r is closed when Consume returns. End of stream and cancellation are not errors.
func (c *Consumer) Consume(ctx context.Context, transportName, remote string, r io.Reader) error {
	sess := &session{
		id:        uuid.NewString(),
		transport: transportName,
		remote:    remote,
		started:   c.now(),
	}
	logger := c.logger.With(
		zap.String("session", sess.id),
		zap.String("transport", transportName),
		zap.String("remote", remote),
	)

	c.track(sess)
	defer c.untrack(sess)

	reader := transport.NewFrameReader[datum.Datum](r, datum.Codec{}, logger)
	defer reader.Close()

	logger.Info("ingest session opened")
	defer func() {
		fields := []zap.Field{
			zap.Uint64("frames", sess.frames.Load()),
			zap.Uint64("bytes", sess.bytes.Load()),
			zap.Duration("elapsed", c.now().Sub(sess.started)),
		}
		if n := sess.stamped.Load(); n > 0 {
			fields = append(fields, zap.Duration("mean_latency", time.Duration(sess.latency.Load()/int64(n))))
		}
		logger.Info("ingest session closed", fields...)
	}()

	for {
		d, err := reader.Next()
		switch {
		case err == nil:
			c.observe(sess, d, logger)
		case errors.Is(err, io.EOF):
			return nil
		case ctx.Err() != nil:
			return nil
		case transport.IsNotReady(err):
			continue
		default:
			logger.Warn("ingest session failed", zap.Error(err))
			return err
		}
	}
}

// observe records one decoded datum.
func (c *Consumer) observe(sess *session, d datum.Datum, logger *zap.Logger) {
	sess.frames.Add(1)
	sess.bytes.Add(uint64(len(d.Payload)))
	sess.level.Store(uint32(d.Level))

	latency, stamped := d.Latency(c.now())
	if stamped {
		sess.latency.Add(int64(latency))
		sess.stamped.Add(1)
		logger.Debug("latency",
			zap.Duration("latency", latency),
			zap.Uint16("level", d.Level),
			zap.Int("size", len(d.Payload)),
		)
	}
	if c.recorder != nil {
		c.recorder.RecordFrame(sess.transport, len(d.Payload), latency, stamped)
	}
}

// track registers an open session.
func (c *Consumer) track(sess *session) {
	c.mu.Lock()
	c.sessions[sess.id] = sess
	c.mu.Unlock()
	if c.recorder != nil {
		c.recorder.ConnectionOpened(sess.transport)
	}
}

// untrack removes a closed session.
func (c *Consumer) untrack(sess *session) {
	c.mu.Lock()
	delete(c.sessions, sess.id)
	c.mu.Unlock()
	if c.recorder != nil {
		c.recorder.ConnectionClosed(sess.transport)
	}
}

// Sessions returns a snapshot of open sessions, oldest first.
func (c *Consumer) Sessions() []SessionInfo {
	c.mu.Lock()
	infos := make([]SessionInfo, 0, len(c.sessions))
	for _, s := range c.sessions {
		infos = append(infos, SessionInfo{
			ID:        s.id,
			Transport: s.transport,
			Remote:    s.remote,
			Started:   s.started,
			Frames:    s.frames.Load(),
			Bytes:     s.bytes.Load(),
			Level:     uint16(s.level.Load()),
		})
	}
	c.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Started.Equal(infos[j].Started) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].Started.Before(infos[j].Started)
	})
	return infos
}
