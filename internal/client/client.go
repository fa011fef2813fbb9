package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/dzimika/counter-app-sphere/internal/app"
	"github.com/dzimika/counter-app-sphere/internal/platform/retry"
	"github.com/dzimika/counter-app-sphere/internal/platform/version"
	"github.com/dzimika/counter-app-sphere/internal/rpc"
)

const (
	writeTimeout = 5 * time.Second
	closeTimeout = time.Second
)

var ErrClosed = errors.New("client closed")

// DefaultRetryPolicy is used when Config.Retry is left zero.
var DefaultRetryPolicy = retry.Policy{
	MaxAttempts:     5,
	InitialBackoff:  200 * time.Millisecond,
	MaxBackoff:      5 * time.Second,
	ThrottleBackoff: 2 * time.Second,
}

type Config struct {
	URL    string
	Origin string
	Dialer *websocket.Dialer
	Retry  retry.Policy
	Clock  clockwork.Clock

	// OnChange runs on the read goroutine after the mirror changes.
	OnChange func(State, Event)
}

// HandshakeError is returned when the server answers the upgrade with a non-101 status.
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake failed with status %d: %v", e.StatusCode, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// Client keeps a Mirror in sync with a counter server over one websocket.
type Client struct {
	conn     *websocket.Conn
	mirror   *Mirror
	clock    clockwork.Clock
	onChange func(State, Event)

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]string

	changedMu sync.Mutex
	changed   chan struct{}
	seen      map[Event]uint64

	synced   chan struct{}
	syncOnce sync.Once

	done      chan struct{}
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// Dial connects with retries and returns once the current count has arrived.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	policy := cfg.Retry
	if policy.InitialBackoff == 0 && policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy
	}
	if policy.Clock == nil {
		policy.Clock = clock
	}
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
			slog.WarnContext(ctx, "Dial failed, retrying", "url", cfg.URL, "attempt", attempt, "backoff", backoff, "error", err)
		}
	}

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())
	if cfg.Origin != "" {
		header.Set("Origin", cfg.Origin)
	}

	conn, err := retry.Do(ctx, policy, classifyDial, func(ctx context.Context) (*websocket.Conn, error) {
		conn, resp, err := dialer.DialContext(ctx, cfg.URL, header)
		if err != nil {
			if resp != nil {
				return nil, &HandshakeError{StatusCode: resp.StatusCode, Err: err}
			}
			return nil, err
		}
		return conn, nil
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	c := &Client{
		conn:     conn,
		mirror:   NewMirror(),
		clock:    clock,
		onChange: cfg.OnChange,
		pending:  make(map[string]string),
		changed:  make(chan struct{}),
		seen:     make(map[Event]uint64),
		synced:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.readLoop()

	if err := c.GetCount(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initial get_count: %w", err)
	}

	select {
	case <-c.synced:
		return c, nil
	case <-c.done:
		_ = c.Close()
		return nil, fmt.Errorf("initial get_count: %w", c.closedErr())
	case <-ctx.Done():
		_ = c.Close()
		return nil, fmt.Errorf("initial get_count: %w", ctx.Err())
	}
}

// classifyDial stops on rejections that will not change by waiting and backs off
// harder when the server reports it is saturated.
func classifyDial(err error) retry.Action {
	var he *HandshakeError
	if !errors.As(err, &he) {
		return retry.Retry
	}
	switch {
	case he.StatusCode == http.StatusTooManyRequests, he.StatusCode == http.StatusServiceUnavailable:
		return retry.After
	case he.StatusCode >= 400 && he.StatusCode < 500:
		return retry.Stop
	default:
		return retry.Retry
	}
}

// State returns the current mirror contents.
func (c *Client) State() State {
	return c.mirror.State()
}

func (c *Client) GetCount(ctx context.Context) error {
	return c.call(ctx, app.MethodGetCount)
}

func (c *Client) GetRadius(ctx context.Context) error {
	return c.call(ctx, app.MethodGetRadius)
}

func (c *Client) Increment(ctx context.Context) error {
	c.mirror.RecordClick()
	return c.call(ctx, app.MethodIncrement)
}

func (c *Client) Decrement(ctx context.Context) error {
	c.mirror.RecordClick()
	return c.call(ctx, app.MethodDecrement)
}

// SetRadius applies r locally, then asks the server to share it with every viewer.
// Values outside [MinRadius, MaxRadius] are rejected without contacting the server.
func (c *Client) SetRadius(ctx context.Context, r float64) error {
	if err := c.mirror.SetRadiusOptimistic(r); err != nil {
		return err
	}
	c.notify(EventRadius)
	return c.call(ctx, app.MethodSetRadius, r)
}

// WaitFor blocks until cond holds for the mirror, the context ends or the connection drops.
func (c *Client) WaitFor(ctx context.Context, cond func(State) bool) (State, error) {
	for {
		c.changedMu.Lock()
		ch := c.changed
		c.changedMu.Unlock()

		s := c.mirror.State()
		if cond(s) {
			return s, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return s, ctx.Err()
		case <-c.done:
			return c.mirror.State(), c.closedErr()
		}
	}
}

// Expect returns a wait function that blocks until the next ev after this call.
// Call it before issuing the request whose answer is awaited.
func (c *Client) Expect(ev Event) func(ctx context.Context) (State, error) {
	c.changedMu.Lock()
	mark := c.seen[ev]
	c.changedMu.Unlock()

	return func(ctx context.Context) (State, error) {
		for {
			c.changedMu.Lock()
			ch, n := c.changed, c.seen[ev]
			c.changedMu.Unlock()

			if n > mark {
				return c.mirror.State(), nil
			}
			select {
			case <-ch:
			case <-ctx.Done():
				return c.mirror.State(), ctx.Err()
			case <-c.done:
				return c.mirror.State(), c.closedErr()
			}
		}
	}
}

// Done is closed when the read loop exits.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the read loop exited. Nil after a normal close.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close sends a close frame and waits briefly for the server to answer it.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, c.clock.Now().Add(writeTimeout))
		c.writeMu.Unlock()

		timer := c.clock.NewTimer(closeTimeout)
		select {
		case <-c.done:
			timer.Stop()
		case <-timer.Chan():
		}
		err = c.conn.Close()
	})
	return err
}

type outbound struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, params ...any) error {
	select {
	case <-c.done:
		return c.closedErr()
	default:
	}

	id := uuid.NewString()
	data, err := json.Marshal(outbound{JSONRPC: rpc.Version, ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	c.pendingMu.Lock()
	c.pending[id] = method
	c.pendingMu.Unlock()

	deadline := c.clock.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.resolve(json.RawMessage(`"` + id + `"`))
		return fmt.Errorf("send %s: %w", method, err)
	}
	return nil
}

// resolve returns and forgets the method of one of our outstanding requests.
func (c *Client) resolve(raw json.RawMessage) string {
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return ""
	}
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	method := c.pending[id]
	delete(c.pending, id)
	return method
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.errMu.Lock()
				c.err = err
				c.errMu.Unlock()
			}
			return
		}

		ev, err := c.mirror.Apply(data, c.resolve)
		switch {
		case ev == EventError:
			slog.Warn("Server returned error", "error", err)
		case err != nil:
			slog.Debug("Frame ignored", "error", err)
		case ev == EventCount:
			c.syncOnce.Do(func() { close(c.synced) })
			c.notify(ev)
		case ev == EventRadius:
			c.notify(ev)
		}
	}
}

func (c *Client) notify(ev Event) {
	c.changedMu.Lock()
	c.seen[ev]++
	close(c.changed)
	c.changed = make(chan struct{})
	c.changedMu.Unlock()

	if c.onChange != nil {
		c.onChange(c.mirror.State(), ev)
	}
}

func (c *Client) closedErr() error {
	if err := c.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return ErrClosed
}
