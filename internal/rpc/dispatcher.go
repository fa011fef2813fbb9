package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"

	apperrors "github.com/dzimika/counter-app-sphere/internal/platform/errors"
)

// ErrDuplicateMethod is returned when a method name is registered twice.
var ErrDuplicateMethod = errors.New("method already registered")

// Kind tags a method as read-only or state-changing.
type Kind int

const (
	KindQuery Kind = iota
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindCommand:
		return "command"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// HandlerFunc executes a method. Returned errors become error responses.
type HandlerFunc func(ctx context.Context, params Params) (any, error)

// Method binds a name to a handler.
type Method struct {
	Name    string
	Kind    Kind
	Handler HandlerFunc
}

// Outcome labels the result of a dispatch for metrics.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeError    Outcome = "error"
	OutcomeNotFound Outcome = "not_found"
	OutcomePanic    Outcome = "panic"
)

// Observer is notified after every dispatch.
type Observer interface {
	ObserveDispatch(method string, outcome Outcome, elapsed time.Duration)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver attaches a dispatch observer (e.g. metrics).
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// WithClock overrides the clock used to time dispatches.
func WithClock(clock clockwork.Clock) Option {
	return func(d *Dispatcher) { d.clock = clock }
}

// unknownMethodLabel is the metrics label shared by every unregistered method name.
const unknownMethodLabel = "unknown"

// Dispatcher maps method names to handlers.
// Not safe for concurrent registration; dispatch is serialized by the caller.
type Dispatcher struct {
	methods  map[string]Method
	observer Observer
	clock    clockwork.Clock
}

func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		methods: make(map[string]Method),
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register binds m.Name to m. Registering a name twice is an error.
func (d *Dispatcher) Register(m Method) error {
	if m.Name == "" {
		return errors.New("method name must not be empty")
	}
	if m.Handler == nil {
		return fmt.Errorf("method %q: handler must not be nil", m.Name)
	}
	if _, exists := d.methods[m.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMethod, m.Name)
	}
	d.methods[m.Name] = m
	return nil
}

// MustRegister registers all methods and panics on the first failure.
func (d *Dispatcher) MustRegister(methods ...Method) {
	for _, m := range methods {
		if err := d.Register(m); err != nil {
			panic(fmt.Sprintf("rpc: register %q: %v", m.Name, err))
		}
	}
}

// Lookup returns the method registered under name.
func (d *Dispatcher) Lookup(name string) (Method, bool) {
	m, ok := d.methods[name]
	return m, ok
}

// Methods returns the registered method names in sorted order.
func (d *Dispatcher) Methods() []string {
	names := make([]string, 0, len(d.methods))
	for name := range d.methods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Dispatch runs the handler for req and packages its outcome.
// Returns nil for notifications (requests without an id).
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	start := d.clock.Now()

	method, ok := d.methods[req.Method]
	if !ok {
		d.observe(unknownMethodLabel, OutcomeNotFound, start)
		slog.DebugContext(ctx, "Method not found", "method", req.Method)
		if req.IsNotification() {
			return nil
		}
		return NewErrorResponse(req.ID, &Error{Code: apperrors.CodeMethodNotFound, Message: "Method not found"})
	}

	result, panicked, err := invoke(ctx, method, req.Params)
	switch {
	case panicked:
		d.observe(method.Name, OutcomePanic, start)
	case err != nil:
		d.observe(method.Name, OutcomeError, start)
	default:
		d.observe(method.Name, OutcomeOK, start)
	}

	if req.IsNotification() {
		return nil
	}
	if err != nil {
		slog.DebugContext(ctx, "Method failed", "method", method.Name, "error", err)
		return NewErrorResponse(req.ID, ErrorFrom(err))
	}

	resp, err := NewResult(req.ID, result)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode result", "method", method.Name, "error", err)
		return NewErrorResponse(req.ID, ErrorFrom(apperrors.InternalError("Internal error", err)))
	}
	return resp
}

func invoke(ctx context.Context, method Method, params Params) (result any, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Method handler panic recovered", "method", method.Name, "panic", r)
			result = nil
			err = apperrors.InternalError("Internal error", fmt.Errorf("panic: %v", r))
			panicked = true
		}
	}()
	result, err = method.Handler(ctx, params)
	return result, false, err
}

func (d *Dispatcher) observe(method string, outcome Outcome, start time.Time) {
	if d.observer == nil {
		return
	}
	d.observer.ObserveDispatch(method, outcome, d.clock.Since(start))
}
