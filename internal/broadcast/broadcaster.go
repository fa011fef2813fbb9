package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dzimika/counter-app-sphere/internal/adapter/metrics"
	"github.com/dzimika/counter-app-sphere/internal/domain"
	apperrors "github.com/dzimika/counter-app-sphere/internal/platform/errors"
	"github.com/dzimika/counter-app-sphere/internal/rpc"
	"github.com/dzimika/counter-app-sphere/internal/state"
)

const (
	commandTimeout    = 5 * time.Second
	stopTimeout       = 10 * time.Second
	commandBufferSize = 256
)

// ReplyMode selects who receives the response to a request.
type ReplyMode string

const (
	// ReplyBroadcast sends every response to every connection.
	ReplyBroadcast ReplyMode = "broadcast"
	// ReplyDirect sends responses to the requesting connection only.
	ReplyDirect ReplyMode = "direct"
)

// ParseReplyMode accepts "broadcast" or "direct" (case-insensitive).
func ParseReplyMode(s string) (ReplyMode, error) {
	switch mode := ReplyMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case ReplyBroadcast, ReplyDirect:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown reply mode %q (want broadcast or direct)", s)
	}
}

// Dispatcher executes decoded requests.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *rpc.Request) *rpc.Response
}

// StateReader exposes the current shared state.
type StateReader interface {
	Snapshot() state.Snapshot
}

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type registerCmd struct {
	baseBroadcasterCmd
	connection   domain.Connection
	errorChannel chan error
}

type unregisterCmd struct {
	baseBroadcasterCmd
	connection domain.Connection
}

type frameCmd struct {
	baseBroadcasterCmd
	ctx        context.Context
	connection domain.Connection
	data       []byte
}

type clientCountCmd struct {
	baseBroadcasterCmd
	replyChannel chan int
}

type snapshotCmd struct {
	baseBroadcasterCmd
	replyChannel chan domain.StateView
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithReplyMode sets the response routing policy. Defaults to ReplyBroadcast.
func WithReplyMode(mode ReplyMode) Option {
	return func(b *Broadcaster) { b.replyMode = mode }
}

// WithClock overrides the clock used for command timeouts.
func WithClock(clock clockwork.Clock) Option {
	return func(b *Broadcaster) { b.clock = clock }
}

// WithMetrics attaches frame and parse-error counters.
func WithMetrics(ws *metrics.WebSocketMetrics, rpcMetrics *metrics.RPCMetrics) Option {
	return func(b *Broadcaster) {
		b.wsMetrics = ws
		b.rpcMetrics = rpcMetrics
	}
}

// Broadcaster serializes connection membership, inbound requests and state reads
// through one goroutine.
type Broadcaster struct {
	cmdCh       chan broadcasterCmd
	clock       clockwork.Clock
	registry    *Registry
	dispatcher  Dispatcher
	state       StateReader
	replyMode   ReplyMode
	wsMetrics   *metrics.WebSocketMetrics
	rpcMetrics  *metrics.RPCMetrics
	done        chan struct{}
	stopOnce    sync.Once
	stopTimeout time.Duration
}

// NewBroadcaster starts the actor goroutine.
// registry must be the same Registry the dispatcher's handlers publish through.
func NewBroadcaster(registry *Registry, dispatcher Dispatcher, reader StateReader, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		cmdCh:       make(chan broadcasterCmd, commandBufferSize),
		clock:       clockwork.NewRealClock(),
		registry:    registry,
		dispatcher:  dispatcher,
		state:       reader,
		replyMode:   ReplyBroadcast,
		done:        make(chan struct{}),
		stopTimeout: stopTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.run()
	return b
}

// ReplyMode returns the configured routing policy.
func (b *Broadcaster) ReplyMode() ReplyMode {
	return b.replyMode
}

// Register adds conn to the registry. The connection starts receiving broadcasts
// once Register returns nil.
func (b *Broadcaster) Register(ctx context.Context, conn domain.Connection) error {
	errCh := make(chan error, 1)
	if err := b.send(registerCmd{connection: conn, errorChannel: errCh}); err != nil {
		return err
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return domain.ErrBroadcasterStopped
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes conn from the registry. Safe to call more than once.
func (b *Broadcaster) Unregister(conn domain.Connection) {
	_ = b.send(unregisterCmd{connection: conn})
}

// Receive queues an inbound frame from conn. Frames from one connection are handled
// in the order Receive is called.
func (b *Broadcaster) Receive(ctx context.Context, conn domain.Connection, frame []byte) error {
	return b.send(frameCmd{ctx: ctx, connection: conn, data: frame})
}

// ClientCount returns the number of registered connections.
// Returns -1 if the command times out or the broadcaster has stopped.
func (b *Broadcaster) ClientCount() int {
	replyCh := make(chan int, 1)
	if err := b.send(clientCountCmd{replyChannel: replyCh}); err != nil {
		return -1
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-b.done:
		return -1
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Snapshot returns the shared state and the number of registered connections.
func (b *Broadcaster) Snapshot(ctx context.Context) (domain.StateView, error) {
	replyCh := make(chan domain.StateView, 1)
	if err := b.send(snapshotCmd{replyChannel: replyCh}); err != nil {
		return domain.StateView{}, err
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case view := <-replyCh:
		return view, nil
	case <-ctx.Done():
		return domain.StateView{}, ctx.Err()
	case <-b.done:
		return domain.StateView{}, domain.ErrBroadcasterStopped
	case <-timer.Chan():
		return domain.StateView{}, fmt.Errorf("snapshot command timed out after %v", commandTimeout)
	}
}

// Stop closes every connection and ends the actor goroutine.
// Blocks until the goroutine has exited or the stop timeout is reached.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		if err := b.send(stopCmd{}); err != nil {
			return
		}

		timeout := b.clock.NewTimer(b.stopTimeout)
		defer timeout.Stop()

		select {
		case <-b.done:
			slog.Info("Broadcaster stopped gracefully")
		case <-timeout.Chan():
			slog.Warn("Broadcaster stop timeout exceeded", "timeout", b.stopTimeout)
		}
	})
}

func (b *Broadcaster) send(cmd broadcasterCmd) error {
	select {
	case <-b.done:
		return domain.ErrBroadcasterStopped
	default:
	}
	select {
	case b.cmdCh <- cmd:
		return nil
	case <-b.done:
		return domain.ErrBroadcasterStopped
	}
}

func (b *Broadcaster) run() {
	defer close(b.done)

	for cmd := range b.cmdCh {
		if _, ok := cmd.(stopCmd); ok {
			b.handleStop()
			return
		}
		b.handle(cmd)
	}
}

// handle runs one command. A panic is logged and the actor keeps serving.
func (b *Broadcaster) handle(cmd broadcasterCmd) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcaster panic recovered", "command_type", fmt.Sprintf("%T", cmd), "panic", r)
		}
	}()

	switch c := cmd.(type) {
	case registerCmd:
		b.handleRegister(c)
	case unregisterCmd:
		b.handleUnregister(c)
	case frameCmd:
		b.handleFrame(c)
	case clientCountCmd:
		c.replyChannel <- b.registry.Len()
	case snapshotCmd:
		snap := b.state.Snapshot()
		c.replyChannel <- domain.StateView{Count: snap.Count, Radius: snap.Radius, Connections: b.registry.Len()}
	default:
		slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
	}
}

func (b *Broadcaster) handleRegister(c registerCmd) {
	if err := b.registry.Add(c.connection); err != nil {
		c.errorChannel <- err
		return
	}
	slog.Debug("Client registered", "connection_id", c.connection.ID(), "total_clients", b.registry.Len())
	c.errorChannel <- nil
}

func (b *Broadcaster) handleUnregister(c unregisterCmd) {
	if !b.registry.Remove(c.connection) {
		return
	}
	slog.Debug("Client unregistered", "connection_id", c.connection.ID(), "remaining_clients", b.registry.Len())
}

func (b *Broadcaster) handleFrame(c frameCmd) {
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if b.wsMetrics != nil {
		b.wsMetrics.FramesReceived.Inc()
	}

	req, decodeErr := rpc.Decode(c.data)
	if decodeErr != nil {
		b.handleDecodeError(ctx, c.connection, req, decodeErr)
		return
	}

	resp := b.dispatcher.Dispatch(ctx, req)
	if resp == nil {
		return
	}
	b.reply(ctx, c.connection, resp)
}

// handleDecodeError answers a frame that is not a valid request. Unparsable frames are
// answered to the sender only; structurally invalid requests follow the reply mode.
func (b *Broadcaster) handleDecodeError(ctx context.Context, conn domain.Connection, req *rpc.Request, decodeErr *apperrors.Error) {
	var id json.RawMessage
	if req != nil {
		id = req.ID
	}
	resp := rpc.NewErrorResponse(id, rpc.ErrorFrom(decodeErr))

	if decodeErr.Type == apperrors.TypeParse {
		if b.rpcMetrics != nil {
			b.rpcMetrics.ParseErrors.Inc()
		}
		slog.DebugContext(ctx, "Discarding unparsable frame", "connection_id", conn.ID(), "error", decodeErr)
		if err := b.registry.SendTo(conn, resp); err != nil {
			slog.DebugContext(ctx, "Parse error reply not delivered", "connection_id", conn.ID(), "error", err)
		}
		return
	}

	slog.DebugContext(ctx, "Invalid request", "connection_id", conn.ID(), "error", decodeErr)
	b.reply(ctx, conn, resp)
}

func (b *Broadcaster) reply(ctx context.Context, conn domain.Connection, resp *rpc.Response) {
	if b.replyMode == ReplyDirect {
		if err := b.registry.SendTo(conn, resp); err != nil {
			slog.DebugContext(ctx, "Reply not delivered", "connection_id", conn.ID(), "error", err)
		}
		return
	}
	b.registry.Broadcast(ctx, resp)
}

func (b *Broadcaster) handleStop() {
	total := b.registry.Len()
	slog.Info("Broadcaster shutting down", "total_clients", total)

	closed := b.registry.CloseAll()

	slog.Info("Broadcaster shutdown complete", "disconnected_clients", closed)
}
