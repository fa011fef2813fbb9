package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/dzimika/counter-app-sphere/internal/adapter/metrics"
	"github.com/dzimika/counter-app-sphere/internal/domain"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	maxQueuedMessages = 4096
	maxFrameSize      = 64 * 1024
	shutdownReason    = "Server shutting down"
)

// Conn is a registered websocket connection. One goroutine writes to the socket;
// Send only queues. Queued messages are written in order and never discarded while
// the connection is open.
type Conn struct {
	id          string
	connection  *websocket.Conn
	clock       clockwork.Clock
	metrics     *metrics.WebSocketMetrics
	queueMu     sync.Mutex
	queue       [][]byte
	maxQueued   int
	wake        chan struct{}
	doneChannel chan struct{}
	closed      atomic.Bool
	stopOnce    sync.Once
	wg          sync.WaitGroup
	connectedAt time.Time
}

func newConn(connection *websocket.Conn, clock clockwork.Clock, m *metrics.WebSocketMetrics) *Conn {
	c := &Conn{
		id:          uuid.NewString(),
		connection:  connection,
		clock:       clock,
		metrics:     m,
		maxQueued:   maxQueuedMessages,
		wake:        make(chan struct{}, 1),
		doneChannel: make(chan struct{}),
		connectedAt: clock.Now(),
	}
	connection.SetReadLimit(maxFrameSize)
	c.wg.Add(1)
	go c.writeLoop()
	return c
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) IsOpen() bool {
	return !c.closed.Load()
}

// Send queues data without blocking. A peer that falls maxQueued messages behind
// is treated as stalled: the connection is aborted so the read loop unregisters it.
func (c *Conn) Send(data []byte) error {
	if c.closed.Load() {
		return domain.ErrConnectionClosed
	}

	c.queueMu.Lock()
	if len(c.queue) >= c.maxQueued {
		c.queueMu.Unlock()
		slog.Warn("Peer not reading, closing connection", "connection_id", c.id, "queued", c.maxQueued)
		c.abort()
		return domain.ErrSendBufferFull
	}
	c.queue = append(c.queue, data)
	c.queueMu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// takeQueued hands the pending messages to the writer.
func (c *Conn) takeQueued() [][]byte {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	pending := c.queue
	c.queue = nil
	return pending
}

// Close sends a normal close frame and releases the socket. Safe to call more than once.
func (c *Conn) Close() error {
	return c.closeWith(websocket.CloseNormalClosure, shutdownReason)
}

func (c *Conn) closeWith(code int, reason string) error {
	var err error
	c.stopOnce.Do(func() {
		c.closed.Store(true)
		close(c.doneChannel)

		// The writer must have exited before the close frame is written.
		c.wg.Wait()

		// Flush what was queued before the close so a graceful stop loses nothing.
		for _, msg := range c.takeQueued() {
			c.updateWriteDeadline()
			if c.connection.WriteMessage(websocket.TextMessage, msg) != nil {
				break
			}
		}

		closeMsg := websocket.FormatCloseMessage(code, reason)
		c.updateWriteDeadline()
		_ = c.connection.WriteMessage(websocket.CloseMessage, closeMsg)

		err = c.connection.Close()
		if c.metrics != nil {
			c.metrics.ConnectionDuration.Observe(c.clock.Since(c.connectedAt).Seconds())
		}
	})
	return err
}

func (c *Conn) writeLoop() {
	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.wg.Done()

	for {
		select {
		case <-c.wake:
			for _, msg := range c.takeQueued() {
				c.updateWriteDeadline()
				if err := c.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
					slog.Debug("Write failed, closing connection", "connection_id", c.id, "error", err)
					c.abort()
					return
				}
			}
		case <-ticker.Chan():
			c.updateWriteDeadline()
			if err := c.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				if c.metrics != nil {
					c.metrics.PingFailures.Inc()
				}
				c.abort()
				return
			}
		case <-c.doneChannel:
			return
		}
	}
}

// abort marks the connection closed and unblocks the reader so it can unregister.
func (c *Conn) abort() {
	c.closed.Store(true)
	_ = c.connection.Close()
}

// Receiver accepts inbound frames.
type Receiver interface {
	Receive(ctx context.Context, conn domain.Connection, frame []byte) error
}

// readLoop forwards every text frame to r until the peer goes away.
func (c *Conn) readLoop(ctx context.Context, r Receiver) {
	for {
		messageType, data, err := c.connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) && c.IsOpen() {
				slog.DebugContext(ctx, "Connection read error", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		if err := r.Receive(ctx, c, data); err != nil {
			if !errors.Is(err, domain.ErrBroadcasterStopped) {
				slog.WarnContext(ctx, "Frame not accepted", "error", err)
			}
			return
		}
	}
}

func (c *Conn) updateWriteDeadline() {
	deadline := c.clock.Now().Add(writeDeadline)
	_ = c.connection.SetWriteDeadline(deadline)
}

var _ domain.Connection = (*Conn)(nil)
