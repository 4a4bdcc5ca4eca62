// If you are AI: This file implements the websocket ingest handler.
// Binary messages carry datum frames; a frame may span messages and a message may hold several frames.

package wsingest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bwstream/internal/core/protocol/datum"
	"bwstream/internal/metrics"
	"bwstream/internal/svc/ingest"
)

// maxMessageSize bounds one websocket message to one maximal frame.
const maxMessageSize = datum.LengthSize + datum.MaxFrameSize

// Handler upgrades requests and feeds the message stream to the ingest consumer.
type Handler struct {
	ctx      context.Context
	consumer *ingest.Consumer
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a websocket ingest handler.
// Sessions end when ctx is cancelled; hijacked connections outlive the HTTP server's shutdown otherwise.
func NewHandler(ctx context.Context, consumer *ingest.Consumer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		ctx:      ctx,
		consumer: consumer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Ingest clients are not browsers
				return true
			},
		},
		logger: logger.With(zap.String("component", "ingest_ws")),
	}
}

// ServeHTTP handles the websocket upgrade and consumes the session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade failed, response already sent
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	stop := context.AfterFunc(h.ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(closeTimeout))
		_ = conn.Close()
	})
	defer stop()

	_ = h.consumer.Consume(h.ctx, metrics.TransportWebSocket, r.RemoteAddr, &messageReader{conn: conn})
}

// messageReader presents consecutive binary messages as one byte stream.
// A normal close from the peer is end of stream.
type messageReader struct {
	conn *websocket.Conn
	cur  io.Reader
}

// Read implements io.Reader across message boundaries.
// Text messages are skipped.
func (m *messageReader) Read(p []byte) (int, error) {
	for {
		if m.cur == nil {
			kind, r, err := m.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if kind != websocket.BinaryMessage {
				continue
			}
			m.cur = r
		}

		n, err := m.cur.Read(p)
		if errors.Is(err, io.EOF) {
			m.cur = nil
			if n == 0 {
				continue
			}
			return n, nil
		}
		return n, err
	}
}

// Close closes the websocket connection.
func (m *messageReader) Close() error {
	return m.conn.Close()
}
