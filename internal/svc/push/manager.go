// If you are AI: This file implements the push manager.
// Manages lifecycle of all push tasks (start, stop, adjust).

package push

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"bwstream/internal/config"
	"bwstream/internal/core/transport"
)

// ErrUnknownTask is returned for a task name that is not configured.
var ErrUnknownTask = errors.New("unknown push task")

// MetricsRecorder is a Recorder that also exports each task's byte counter.
type MetricsRecorder interface {
	Recorder
	RegisterThroughput(task string, counter *transport.Counter) error
	UnregisterThroughput(task string)
}

// Manager manages push task lifecycle.
type Manager struct {
	profile  *Profile
	recorder MetricsRecorder
	logger   *zap.Logger

	tasks  []*Task
	byName map[string]*Task
	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewManager creates a push manager. recorder may be nil.
func NewManager(prof *Profile, recorder MetricsRecorder, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		profile:  prof,
		recorder: recorder,
		logger:   logger,
		byName:   make(map[string]*Task),
	}
}

// StartTasks creates and starts one task per configuration.
// Tasks run until ctx is cancelled, Stop is called, or their duration elapses.
func (m *Manager) StartTasks(ctx context.Context, cfgs []config.PushConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return errors.New("push tasks already started")
	}
	seen := make(map[string]bool, len(cfgs))
	for i := range cfgs {
		if err := cfgs[i].Validate(); err != nil {
			return fmt.Errorf("push config %q: %w", cfgs[i].Name, err)
		}
		if seen[cfgs[i].Name] {
			return fmt.Errorf("push config %q: duplicate name", cfgs[i].Name)
		}
		seen[cfgs[i].Name] = true
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for _, cfg := range cfgs {
		task := NewTask(cfg, m.profile, m.recorder, m.logger)
		if m.recorder != nil {
			if err := m.recorder.RegisterThroughput(cfg.Name, task.Counter()); err != nil {
				m.logger.Warn("throughput metric not registered", zap.String("task", cfg.Name), zap.Error(err))
			}
		}

		m.tasks = append(m.tasks, task)
		m.byName[cfg.Name] = task

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			// Run logs its own failure
			_ = task.Run(ctx)
		}()
	}

	m.logger.Info("push tasks started", zap.Int("count", len(m.tasks)))
	return nil
}

// Stop cancels all tasks and waits for them to finish, or for ctx to end.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	tasks := m.tasks
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("push tasks did not stop: %w", ctx.Err())
	}

	if m.recorder != nil {
		for _, t := range tasks {
			m.recorder.UnregisterThroughput(t.Name())
		}
	}
	return nil
}

// TaskCount returns the number of push tasks.
func (m *Manager) TaskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Tasks returns a snapshot of every task in configuration order.
func (m *Manager) Tasks() []TaskInfo {
	m.mu.Lock()
	tasks := append([]*Task(nil), m.tasks...)
	m.mu.Unlock()

	infos := make([]TaskInfo, 0, len(tasks))
	for _, t := range tasks {
		infos = append(infos, t.Info())
	}
	return infos
}

// Adjust declares a new bandwidth for the named task.
func (m *Manager) Adjust(name string, bandwidth float64) (Record, bool, error) {
	t, err := m.task(name)
	if err != nil {
		return Record{}, false, err
	}
	rec, changed := t.Adjust(bandwidth)
	return rec, changed, nil
}

// Advance moves the named task one level up.
func (m *Manager) Advance(name string) (Record, bool, error) {
	t, err := m.task(name)
	if err != nil {
		return Record{}, false, err
	}
	rec, changed := t.Advance()
	return rec, changed, nil
}

// task looks up a started task by name.
func (m *Manager) task(name string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.byName[name]
	if t == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	return t, nil
}
