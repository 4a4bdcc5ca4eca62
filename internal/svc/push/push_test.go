package push

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"bwstream/internal/config"
	"bwstream/internal/core/profile"
	"bwstream/internal/core/transport"
	"bwstream/internal/svc/ingest"
)

func testProfile(t *testing.T) *Profile {
	t.Helper()
	records := []Record{
		{Bandwidth: 8000, Config: profile.StreamConfig{Width: 160, Height: 90, FrameRate: 50, Bitrate: 8000}, Accuracy: 0.3},
		{Bandwidth: 16000, Config: profile.StreamConfig{Width: 320, Height: 180, FrameRate: 100, Bitrate: 16000}, Accuracy: 0.6},
		{Bandwidth: 64000, Config: profile.StreamConfig{Width: 640, Height: 360, FrameRate: 100, Bitrate: 64000}, Accuracy: 0.9},
	}
	return NewProfile(profile.NewTable(records, zaptest.NewLogger(t)))
}

type fakeRecorder struct {
	mu          sync.Mutex
	sent        map[string]int
	backpressed map[string]int
	registered  map[string]*transport.Counter
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		sent:        make(map[string]int),
		backpressed: make(map[string]int),
		registered:  make(map[string]*transport.Counter),
	}
}

func (r *fakeRecorder) RecordSent(task string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[task]++
}

func (r *fakeRecorder) RecordBackpressure(task string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backpressed[task]++
}

func (r *fakeRecorder) RegisterThroughput(task string, c *transport.Counter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.registered[task]; ok {
		return errors.New("duplicate")
	}
	r.registered[task] = c
	return nil
}

func (r *fakeRecorder) UnregisterThroughput(task string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.registered, task)
}

func startIngest(t *testing.T) (*ingest.Consumer, string) {
	t.Helper()
	consumer := ingest.NewConsumer(nil, zaptest.NewLogger(t))
	srv := ingest.NewServer(consumer, zaptest.NewLogger(t))
	require.NoError(t, srv.Listen("127.0.0.1:0"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return consumer, srv.Addr().String()
}

func TestProfileSnapshot(t *testing.T) {
	p := testProfile(t)

	info := p.Snapshot()
	assert.Len(t, info.Records, 3)
	assert.Equal(t, 0, info.Level)
	require.NotNil(t, info.NextThreshold)
	assert.Equal(t, 16000.0, *info.NextThreshold)

	rec, changed := p.AdjustTo(70000)
	assert.True(t, changed)
	assert.Equal(t, 640, rec.Config.Width)

	info = p.Snapshot()
	assert.Equal(t, 2, info.Level)
	assert.True(t, info.IsMax)
	assert.Nil(t, info.NextThreshold)

	_, changed = p.Advance()
	assert.False(t, changed)
}

func TestProfileConcurrentUse(t *testing.T) {
	p := testProfile(t)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				p.AdjustTo(float64((i*j)%70000 + 1))
				p.Advance()
				_ = p.Snapshot()
			}
		}()
	}
	wg.Wait()

	info := p.Snapshot()
	assert.GreaterOrEqual(t, info.Level, 0)
	assert.Less(t, info.Level, 3)
}

func TestTaskSelection(t *testing.T) {
	p := testProfile(t)
	task := NewTask(config.PushConfig{Name: "cam", RemoteAddr: "127.0.0.1:1", DeclaredBandwidth: 20000}, p, nil, zaptest.NewLogger(t))

	info := task.Info()
	assert.Equal(t, 1, info.Level)
	assert.Equal(t, 320, info.Config.Width)
	assert.Equal(t, 20000.0, info.DeclaredBandwidth)
	assert.False(t, info.Running)

	// The task owns its selector; the shared profile is unaffected
	assert.Equal(t, 0, p.Snapshot().Level)

	rec, changed := task.Advance()
	assert.True(t, changed)
	assert.Equal(t, 64000.0, rec.Bandwidth)

	_, changed = task.Adjust(64000)
	assert.False(t, changed)

	rec, changed = task.Adjust(100)
	assert.True(t, changed)
	assert.Equal(t, 8000.0, rec.Bandwidth, "below the lowest level selects level 0")
}

func TestTaskStreamsToIngest(t *testing.T) {
	consumer, addr := startIngest(t)
	rec := newFakeRecorder()
	task := NewTask(config.PushConfig{
		Name:              "cam",
		RemoteAddr:        addr,
		DeclaredBandwidth: 16000,
		Duration:          300 * time.Millisecond,
	}, testProfile(t), rec, zaptest.NewLogger(t))

	require.NoError(t, task.Run(context.Background()))

	info := task.Info()
	assert.False(t, info.Running)
	assert.Greater(t, info.Frames, uint64(5))
	assert.Greater(t, info.BytesSent, uint64(0))

	rec.mu.Lock()
	assert.Equal(t, int(info.Frames), rec.sent["cam"])
	rec.mu.Unlock()

	// Every accepted frame was flushed before the connection closed
	frameWire := uint64(4 + 10 + 16000/8/100)
	assert.Equal(t, info.Frames*frameWire, info.BytesSent)

	require.Eventually(t, func() bool {
		return len(consumer.Sessions()) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestTaskConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	task := NewTask(config.PushConfig{Name: "cam", RemoteAddr: addr, DeclaredBandwidth: 8000}, testProfile(t), nil, zaptest.NewLogger(t))
	err = task.Run(context.Background())
	assert.Error(t, err)
}

func TestTaskReconnects(t *testing.T) {
	_, addr := startIngest(t)
	task := NewTask(config.PushConfig{
		Name:              "cam",
		RemoteAddr:        addr,
		DeclaredBandwidth: 8000,
		Duration:          500 * time.Millisecond,
		Reconnect:         true,
	}, testProfile(t), nil, zaptest.NewLogger(t))
	task.retryDelay = 10 * time.Millisecond

	var mu sync.Mutex
	attempts := 0
	dialer := &net.Dialer{}
	task.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			return nil, errors.New("connection refused")
		}
		return dialer.DialContext(ctx, network, address)
	}

	require.NoError(t, task.Run(context.Background()))
	mu.Lock()
	assert.GreaterOrEqual(t, attempts, 2)
	mu.Unlock()
	assert.Greater(t, task.Info().Frames, uint64(0))
}

func TestManagerLifecycle(t *testing.T) {
	_, addr := startIngest(t)
	rec := newFakeRecorder()
	m := NewManager(testProfile(t), rec, zaptest.NewLogger(t))

	cfgs := []config.PushConfig{
		{Name: "low", RemoteAddr: addr, DeclaredBandwidth: 8000},
		{Name: "high", RemoteAddr: addr, DeclaredBandwidth: 64000},
	}
	require.NoError(t, m.StartTasks(context.Background(), cfgs))
	assert.Error(t, m.StartTasks(context.Background(), cfgs))
	assert.Equal(t, 2, m.TaskCount())

	rec.mu.Lock()
	assert.Len(t, rec.registered, 2)
	rec.mu.Unlock()

	infos := m.Tasks()
	require.Len(t, infos, 2)
	assert.Equal(t, "low", infos[0].Name)
	assert.Equal(t, 2, infos[1].Level)

	got, changed, err := m.Adjust("high", 10000)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 8000.0, got.Bandwidth)

	_, changed, err = m.Advance("high")
	require.NoError(t, err)
	assert.True(t, changed)

	_, _, err = m.Adjust("missing", 1)
	assert.ErrorIs(t, err, ErrUnknownTask)

	require.Eventually(t, func() bool {
		for _, info := range m.Tasks() {
			if info.Frames == 0 {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))

	for _, info := range m.Tasks() {
		assert.False(t, info.Running)
	}
	rec.mu.Lock()
	assert.Empty(t, rec.registered)
	rec.mu.Unlock()
}

func TestManagerRejectsInvalidConfig(t *testing.T) {
	m := NewManager(testProfile(t), nil, nil)

	err := m.StartTasks(context.Background(), []config.PushConfig{{Name: "x", RemoteAddr: "nope"}})
	assert.Error(t, err)
	assert.Equal(t, 0, m.TaskCount())

	dup := config.PushConfig{Name: "x", RemoteAddr: "127.0.0.1:1", DeclaredBandwidth: 1}
	assert.Error(t, m.StartTasks(context.Background(), []config.PushConfig{dup, dup}))
	assert.NoError(t, m.Stop(context.Background()))
}
