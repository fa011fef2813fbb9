package client

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dzimika/counter-app-sphere/internal/rpc"
)

func TestNewMirror_Defaults(t *testing.T) {
	assert.Equal(t, State{Count: 1, Radius: 1}, NewMirror().State())
}

func TestMirror_Apply(t *testing.T) {
	getRadius := func(json.RawMessage) string { return "get_radius" }
	getCount := func(json.RawMessage) string { return "get_count" }
	increment := func(json.RawMessage) string { return "increment" }

	tests := []struct {
		name   string
		frame  string
		lookup MethodLookup
		event  Event
		want   State
	}{
		{"count response", `{"jsonrpc":"2.0","id":1,"result":7}`, getCount, EventCount, State{Count: 7, Radius: 1}},
		{"zero count response", `{"jsonrpc":"2.0","id":1,"result":0}`, getCount, EventCount, State{Count: 0, Radius: 1}},
		{"negative increment result", `{"jsonrpc":"2.0","id":1,"result":-3}`, increment, EventCount, State{Count: -3, Radius: 1}},
		{"result without lookup", `{"jsonrpc":"2.0","id":1,"result":7}`, nil, EventNone, State{Count: 1, Radius: 1}},
		{"count push", `{"count":4}`, nil, EventCount, State{Count: 4, Radius: 1}},
		{"radius notification array", `{"jsonrpc":"2.0","method":"update_radius","params":[2.5]}`, nil, EventRadius, State{Count: 1, Radius: 2.5}},
		{"radius notification scalar", `{"jsonrpc":"2.0","method":"update_radius","params":3}`, nil, EventRadius, State{Count: 1, Radius: 3}},
		{"get_radius response", `{"jsonrpc":"2.0","id":"a","result":1.5}`, getRadius, EventRadius, State{Count: 1, Radius: 1.5}},
		{"success ack", `{"jsonrpc":"2.0","id":1,"result":"Success"}`, nil, EventAck, State{Count: 1, Radius: 1}},
		{"other notification", `{"jsonrpc":"2.0","method":"ping","params":[]}`, nil, EventNone, State{Count: 1, Radius: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMirror()

			ev, err := m.Apply([]byte(tt.frame), tt.lookup)

			require.NoError(t, err)
			assert.Equal(t, tt.event, ev)
			assert.Equal(t, tt.want, m.State())
		})
	}
}

func TestMirror_IgnoresResultsForOtherViewers(t *testing.T) {
	m := NewMirror()
	m.setCount(42)
	foreign := func(json.RawMessage) string { return "" }

	for _, frame := range []string{
		`{"jsonrpc":"2.0","id":"someone-else","result":3}`,
		`{"jsonrpc":"2.0","id":"someone-else","result":2.5}`,
		`{"jsonrpc":"2.0","id":7,"result":-1}`,
	} {
		ev, err := m.Apply([]byte(frame), foreign)

		require.NoError(t, err, frame)
		assert.Equal(t, EventNone, ev, frame)
	}
	assert.Equal(t, State{Count: 42, Radius: 1}, m.State())
}

func TestMirror_ApplyError(t *testing.T) {
	m := NewMirror()

	ev, err := m.Apply([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`), nil)

	assert.Equal(t, EventError, ev)
	var rpcErr *rpc.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32601, rpcErr.Code)
	assert.Equal(t, State{Count: 1, Radius: 1}, m.State())
}

func TestMirror_ApplyRejectsGarbage(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  error
	}{
		{"not json", `nope`, nil},
		{"empty object", `{}`, ErrUnknownFrame},
		{"unexpected string result", `{"jsonrpc":"2.0","id":1,"result":"Nope"}`, ErrUnknownFrame},
		{"radius without params", `{"jsonrpc":"2.0","method":"update_radius","params":[]}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMirror()

			ev, err := m.Apply([]byte(tt.frame), nil)

			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			assert.Equal(t, EventNone, ev)
			assert.Equal(t, State{Count: 1, Radius: 1}, m.State())
		})
	}
}

func TestMirror_SetRadiusOptimistic(t *testing.T) {
	tests := []struct {
		name    string
		radius  float64
		wantErr bool
	}{
		{"lower bound", 1, false},
		{"upper bound", 4, false},
		{"inside", 2.25, false},
		{"below", 0.5, true},
		{"above", 4.01, true},
		{"nan", math.NaN(), true},
		{"infinite", math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMirror()

			err := m.SetRadiusOptimistic(tt.radius)

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrRadiusOutOfRange)
				assert.Equal(t, 1.0, m.State().Radius)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.radius, m.State().Radius)
		})
	}
}

func TestMirror_RecordClick(t *testing.T) {
	m := NewMirror()
	m.RecordClick()
	m.RecordClick()
	assert.Equal(t, 2, m.State().Clicks)
}
