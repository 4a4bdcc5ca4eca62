// If you are AI: This file implements the push task: a paced datum stream to a remote ingest server.
// Frame size and rate follow the task's selected profile level; the sink applies backpressure.

package push

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"bwstream/internal/config"
	"bwstream/internal/core/profile"
	"bwstream/internal/core/protocol/datum"
	"bwstream/internal/core/transport"
)

const (
	dialTimeout  = 5 * time.Second
	retryDelay   = 5 * time.Second
	closeTimeout = time.Second
)

// Recorder receives push measurements.
type Recorder interface {
	RecordSent(task string)
	RecordBackpressure(task string)
}

// TaskInfo describes a push task for API responses.
type TaskInfo struct {
	Name              string               `json:"name"`
	RemoteAddr        string               `json:"remote_addr"`
	DeclaredBandwidth float64              `json:"declared_bandwidth"`
	Running           bool                 `json:"running"`
	Level             int                  `json:"level"`
	Config            profile.StreamConfig `json:"config"`
	Frames            uint64               `json:"frames"`
	BytesSent         uint64               `json:"bytes_sent"`
}

// Task streams synthetic datums to one remote ingest server.
// Lock expectations: mu guards the selector and declared bandwidth; counters are atomic.
type Task struct {
	cfg      config.PushConfig
	records  []Record
	counter  *transport.Counter
	recorder Recorder
	logger   *zap.Logger

	mu       sync.Mutex
	selector profile.Selector
	declared float64

	running atomic.Bool
	frames  atomic.Uint64

	dial       func(ctx context.Context, network, addr string) (net.Conn, error)
	retryDelay time.Duration
}

// NewTask creates a push task with its own selector forked from prof,
// positioned for the task's declared bandwidth. recorder may be nil.
func NewTask(cfg config.PushConfig, prof *Profile, recorder Recorder, logger *zap.Logger) *Task {
	if logger == nil {
		logger = zap.NewNop()
	}
	records, selector := prof.fork()
	dialer := &net.Dialer{Timeout: dialTimeout}

	t := &Task{
		cfg:        cfg,
		records:    records,
		counter:    transport.NewCounter(),
		recorder:   recorder,
		logger:     logger.With(zap.String("component", "push"), zap.String("task", cfg.Name)),
		selector:   selector,
		dial:       dialer.DialContext,
		retryDelay: retryDelay,
	}
	t.Adjust(cfg.DeclaredBandwidth)
	return t
}

// Name returns the task name.
func (t *Task) Name() string {
	return t.cfg.Name
}

// Counter returns the bytes-sent counter, which survives reconnects.
func (t *Task) Counter() *transport.Counter {
	return t.counter
}

// Adjust selects the level for a newly declared bandwidth.
func (t *Task) Adjust(bandwidth float64) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.declared = bandwidth
	level, changed := t.selector.Adjust(bandwidth)
	rec := t.records[level]
	if changed {
		t.logChange(level, rec)
	}
	return rec, changed
}

// Advance moves the task one level up unless it is at the top.
func (t *Task) Advance() (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	level, changed := t.selector.Advance()
	rec := t.records[level]
	if changed {
		t.logChange(level, rec)
	}
	return rec, changed
}

// logChange logs a level change. Caller holds mu.
func (t *Task) logChange(level int, rec Record) {
	t.logger.Info("updating level",
		zap.Int("level", level),
		zap.Float64("bandwidth", rec.Bandwidth),
		zap.Stringer("config", rec.Config),
	)
}

// current returns the selected level and its configuration.
func (t *Task) current() (int, profile.StreamConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	level := t.selector.Current()
	return level, t.records[level].Config
}

// Info returns a snapshot of the task.
func (t *Task) Info() TaskInfo {
	level, cfg := t.current()
	t.mu.Lock()
	declared := t.declared
	t.mu.Unlock()

	return TaskInfo{
		Name:              t.cfg.Name,
		RemoteAddr:        t.cfg.RemoteAddr,
		DeclaredBandwidth: declared,
		Running:           t.running.Load(),
		Level:             level,
		Config:            cfg,
		Frames:            t.frames.Load(),
		BytesSent:         t.counter.Load(),
	}
}

// Run streams until the configured duration elapses or ctx is cancelled.
// With reconnect enabled, failed sessions are retried after a delay.
// Returns nil when stopped by time or cancellation, the session error otherwise.
func (t *Task) Run(ctx context.Context) error {
	t.running.Store(true)
	defer t.running.Store(false)

	if t.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Duration)
		defer cancel()
	}

	for {
		err := t.session(ctx)
		if ctx.Err() != nil {
			t.logger.Info("push stopped", zap.Uint64("bytes_sent", t.counter.Load()))
			return nil
		}
		if !t.cfg.Reconnect {
			t.logger.Error("push failed", zap.Error(err))
			return err
		}

		t.logger.Warn("push session ended, reconnecting",
			zap.Error(err),
			zap.Duration("delay", t.retryDelay),
		)
		select {
		case <-time.After(t.retryDelay):
		case <-ctx.Done():
			return nil
		}
	}
}

// session runs one connection. It returns when ctx ends or the transport fails.
func (t *Task) session(ctx context.Context) error {
	conn, err := t.dial(ctx, "tcp", t.cfg.RemoteAddr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", t.cfg.RemoteAddr, err)
	}
	t.logger.Info("push connected", zap.String("remote", conn.RemoteAddr().String()))

	sink := transport.NewSinkWithCounter[datum.Datum](conn, datum.Codec{}, t.counter, t.logger)
	defer func() {
		_ = conn.SetWriteDeadline(time.Now().Add(closeTimeout))
		_ = sink.Close()
	}()

	_, cfg := t.current()
	limiter := rate.NewLimiter(rate.Limit(cfg.FrameRate), 1)
	var payload []byte
	var pending *datum.Datum

	for {
		if err := limiter.Wait(ctx); err != nil {
			// With burst 1 and a positive rate, Wait only fails because of ctx.
			// It may fail early when the deadline is nearer than the next token.
			<-ctx.Done()
			return ctx.Err()
		}

		level, cfg := t.current()
		if limit := rate.Limit(cfg.FrameRate); limiter.Limit() != limit {
			limiter.SetLimit(limit)
		}

		if pending == nil {
			payload = synthesize(payload, cfg.FrameSize())
			d := datum.New(time.Now(), level, payload)
			pending = &d
		}

		accepted, err := sink.Enqueue(*pending)
		if err != nil {
			return err
		}
		if accepted {
			pending = nil
			t.frames.Add(1)
			if t.recorder != nil {
				t.recorder.RecordSent(t.cfg.Name)
			}
		} else {
			// The pending frame is retried on the next tick
			if t.recorder != nil {
				t.recorder.RecordBackpressure(t.cfg.Name)
			}
		}

		// A write that cannot finish within one frame interval reports not-ready
		// instead of blocking the pacing loop
		_ = conn.SetWriteDeadline(time.Now().Add(frameInterval(cfg.FrameRate)))
		if err := sink.Flush(); err != nil && !transport.IsNotReady(err) {
			return err
		}
	}
}

// frameInterval returns the time between frames at fps.
func frameInterval(fps int) time.Duration {
	if fps <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(fps)
}

// synthesize returns a payload of size bytes, reusing buf.
// The sink copies payload bytes on Enqueue, so reuse is safe.
func synthesize(buf []byte, size int) []byte {
	if cap(buf) < size {
		buf = make([]byte, size)
		for i := range buf {
			buf[i] = byte(i)
		}
	}
	return buf[:size]
}
