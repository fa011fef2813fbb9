package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/dzimika/counter-app-sphere/internal/app"
	"github.com/dzimika/counter-app-sphere/internal/rpc"
)

// Client-side bounds for set_radius. The server only requires a positive radius.
const (
	MinRadius = 1.0
	MaxRadius = 4.0
)

var (
	ErrRadiusOutOfRange = errors.New("radius out of range")
	ErrUnknownFrame     = errors.New("unrecognized frame")
)

// State is a point-in-time copy of the mirror.
type State struct {
	Count  int64   `json:"count"`
	Radius float64 `json:"radius"`
	Clicks int     `json:"clicks"`
}

// Event tells the caller which part of the mirror a frame touched.
type Event int

const (
	EventNone   Event = iota // frame carried nothing the mirror tracks
	EventCount               // counter changed
	EventRadius              // radius changed
	EventAck                 // set_radius acknowledged with "Success"
	EventError               // server answered with an error object
)

func (e Event) String() string {
	switch e {
	case EventCount:
		return "count"
	case EventRadius:
		return "radius"
	case EventAck:
		return "ack"
	case EventError:
		return "error"
	default:
		return "none"
	}
}

// MethodLookup resolves the method of an outstanding request by its id.
// An empty string means the id is unknown to this client.
type MethodLookup func(id json.RawMessage) string

// Mirror is the viewer's local copy of the shared state. Safe for concurrent use.
type Mirror struct {
	mu     sync.RWMutex
	count  int64
	radius float64
	clicks int
}

// NewMirror starts from the same defaults the server uses.
func NewMirror() *Mirror {
	return &Mirror{count: 1, radius: 1}
}

func (m *Mirror) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State{Count: m.count, Radius: m.radius, Clicks: m.clicks}
}

// RecordClick counts a locally issued increment or decrement.
func (m *Mirror) RecordClick() {
	m.mu.Lock()
	m.clicks++
	m.mu.Unlock()
}

// SetRadiusOptimistic applies r before the server confirms it.
func (m *Mirror) SetRadiusOptimistic(r float64) error {
	if err := ValidateRadius(r); err != nil {
		return err
	}
	m.mu.Lock()
	m.radius = r
	m.mu.Unlock()
	return nil
}

// ValidateRadius enforces the client-side range [MinRadius, MaxRadius].
func ValidateRadius(r float64) error {
	if math.IsNaN(r) || r < MinRadius || r > MaxRadius {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrRadiusOutOfRange, r, MinRadius, MaxRadius)
	}
	return nil
}

type inbound struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *rpc.Error      `json:"error"`
	Count  *int64          `json:"count"`
}

// Apply folds one server frame into the mirror.
//
// A numeric result is applied only when lookup names one of this client's own
// requests: get_radius sets the radius, get_count/increment/decrement set the count.
// "Success" acknowledges set_radius without touching state, since the radius was
// applied optimistically. An error object is returned as *rpc.Error with EventError.
func (m *Mirror) Apply(frame []byte, lookup MethodLookup) (Event, error) {
	var msg inbound
	if err := json.Unmarshal(frame, &msg); err != nil {
		return EventNone, fmt.Errorf("decode frame: %w", err)
	}

	switch {
	case msg.Error != nil:
		return EventError, msg.Error
	case msg.Count != nil:
		m.setCount(*msg.Count)
		return EventCount, nil
	case msg.Method == app.UpdateRadiusMethod:
		r, err := firstFloat(msg.Params)
		if err != nil {
			return EventNone, fmt.Errorf("update_radius params: %w", err)
		}
		m.setRadius(r)
		return EventRadius, nil
	case isPresent(msg.Result):
		return m.applyResult(msg, lookup)
	case msg.Method != "":
		return EventNone, nil
	}
	return EventNone, ErrUnknownFrame
}

func (m *Mirror) applyResult(msg inbound, lookup MethodLookup) (Event, error) {
	var ack string
	if json.Unmarshal(msg.Result, &ack) == nil {
		if ack == app.SetRadiusOK {
			return EventAck, nil
		}
		return EventNone, fmt.Errorf("%w: unexpected result %q", ErrUnknownFrame, ack)
	}

	method := ""
	if lookup != nil {
		method = lookup(msg.ID)
	}

	switch method {
	case app.MethodGetRadius:
		var r float64
		if err := json.Unmarshal(msg.Result, &r); err != nil {
			return EventNone, fmt.Errorf("get_radius result: %w", err)
		}
		m.setRadius(r)
		return EventRadius, nil
	case app.MethodGetCount, app.MethodIncrement, app.MethodDecrement:
		var count int64
		if err := json.Unmarshal(msg.Result, &count); err != nil {
			return EventNone, fmt.Errorf("count result: %w", err)
		}
		m.setCount(count)
		return EventCount, nil
	default:
		// Another viewer's answer. Counter changes also arrive as {count} pushes.
		return EventNone, nil
	}
}

func (m *Mirror) setCount(v int64) {
	m.mu.Lock()
	m.count = v
	m.mu.Unlock()
}

func (m *Mirror) setRadius(r float64) {
	m.mu.Lock()
	m.radius = r
	m.mu.Unlock()
}

func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// firstFloat reads a scalar or the first element of an array.
func firstFloat(raw json.RawMessage) (float64, error) {
	var list []float64
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return 0, errors.New("empty params")
		}
		return list[0], nil
	}
	var r float64
	if err := json.Unmarshal(raw, &r); err != nil {
		return 0, err
	}
	return r, nil
}
