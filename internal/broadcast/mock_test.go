package broadcast

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dzimika/counter-app-sphere/internal/domain"
)

var connSeq atomic.Int64

// mockConn records every payload queued for it.
type mockConn struct {
	id      string
	mu      sync.Mutex
	frames  []string
	open    bool
	sendErr error
	closes  int
}

func newMockConn() *mockConn {
	return &mockConn{id: fmt.Sprintf("conn-%d", connSeq.Add(1)), open: true}
}

func (c *mockConn) ID() string { return c.id }

func (c *mockConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return domain.ErrConnectionClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, string(data))
	return nil
}

func (c *mockConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *mockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	if !c.open {
		return errors.New("already closed")
	}
	c.open = false
	return nil
}

func (c *mockConn) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
}

func (c *mockConn) failSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

func (c *mockConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func (c *mockConn) requireFrames(t *testing.T, want ...string) {
	t.Helper()
	got := c.received()
	require.Len(t, got, len(want), "frames for %s: %v", c.id, got)
	for i := range want {
		require.JSONEq(t, want[i], got[i], "frame %d for %s", i, c.id)
	}
}

var _ domain.Connection = (*mockConn)(nil)
