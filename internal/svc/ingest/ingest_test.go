package ingest

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"bwstream/internal/core/protocol/datum"
	"bwstream/internal/core/transport"
)

type frameRecord struct {
	transport string
	bytes     int
	latency   time.Duration
	stamped   bool
}

type fakeRecorder struct {
	mu     sync.Mutex
	frames []frameRecord
	open   int
	closed int
}

func (r *fakeRecorder) RecordFrame(transportName string, payloadBytes int, latency time.Duration, stamped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frameRecord{transportName, payloadBytes, latency, stamped})
}

func (r *fakeRecorder) ConnectionOpened(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open++
}

func (r *fakeRecorder) ConnectionClosed(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
}

func (r *fakeRecorder) snapshot() ([]frameRecord, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]frameRecord(nil), r.frames...), r.open, r.closed
}

func encode(t *testing.T, items ...datum.Datum) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, d := range items {
		require.NoError(t, datum.Codec{}.Encode(d, &buf))
	}
	return buf.Bytes()
}

func TestConsumerRecordsLatency(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	rec := &fakeRecorder{}
	core, logs := observer.New(zap.DebugLevel)
	c := NewConsumer(rec, zap.New(core))
	c.now = func() time.Time { return now }

	data := encode(t,
		datum.Datum{Timestamp: now.Add(-40 * time.Millisecond).UnixMilli(), Level: 1, Payload: []byte("abc")},
		datum.Datum{Level: 2, Payload: []byte("unstamped")},
	)
	require.NoError(t, c.Consume(context.Background(), "test", "pipe", bytes.NewReader(data)))

	frames, open, closed := rec.snapshot()
	require.Len(t, frames, 2)
	assert.Equal(t, frameRecord{"test", 3, 40 * time.Millisecond, true}, frames[0])
	assert.False(t, frames[1].stamped)
	assert.Equal(t, 1, open)
	assert.Equal(t, 1, closed)

	latencyLogs := logs.FilterMessage("latency").All()
	require.Len(t, latencyLogs, 1)
	assert.Equal(t, 40*time.Millisecond, latencyLogs[0].ContextMap()["latency"])

	closing := logs.FilterMessage("ingest session closed").All()
	require.Len(t, closing, 1)
	assert.Equal(t, uint64(2), closing[0].ContextMap()["frames"])

	assert.Empty(t, c.Sessions())
}

func TestConsumerTruncatedStream(t *testing.T) {
	c := NewConsumer(nil, zaptest.NewLogger(t))

	data := encode(t, datum.Datum{Payload: []byte("whole")}, datum.Datum{Payload: []byte("partial")})
	err := c.Consume(context.Background(), "test", "pipe", bytes.NewReader(data[:len(data)-2]))
	assert.ErrorIs(t, err, datum.ErrTruncated)
}

func TestServerAcceptsDatums(t *testing.T) {
	rec := &fakeRecorder{}
	consumer := NewConsumer(rec, zaptest.NewLogger(t))
	srv := NewServer(consumer, zaptest.NewLogger(t))
	require.NoError(t, srv.Listen("127.0.0.1:0"))

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx) }()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)

	sink := transport.NewSink[datum.Datum](conn, datum.Codec{}, zaptest.NewLogger(t))
	for i := range 10 {
		require.NoError(t, sink.Send(ctx, datum.New(time.Now(), i, bytes.Repeat([]byte{byte(i)}, 100))))
	}
	require.NoError(t, sink.Flush())

	require.Eventually(t, func() bool {
		frames, _, _ := rec.snapshot()
		return len(frames) == 10
	}, 5*time.Second, 10*time.Millisecond)

	sessions := consumer.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, uint64(10), sessions[0].Frames)
	assert.Equal(t, uint64(1000), sessions[0].Bytes)
	assert.Equal(t, uint16(9), sessions[0].Level)

	// Shutdown closes the open connection too
	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	_, open, closed := rec.snapshot()
	assert.Equal(t, open, closed)
	_ = sink.Close()
}

func TestServerServeWithoutListen(t *testing.T) {
	srv := NewServer(NewConsumer(nil, nil), nil)
	assert.Nil(t, srv.Addr())
	assert.Error(t, srv.Serve(context.Background()))
}
