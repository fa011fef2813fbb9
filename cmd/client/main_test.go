package main

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dzimika/counter-app-sphere/internal/client"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.Execute()
}

func TestRadiusValidatedBeforeDialing(t *testing.T) {
	// Nothing listens on this port; validation must fail first.
	err := execute(t, "--url", "ws://127.0.0.1:1/", "radius", "9")

	assert.ErrorIs(t, err, client.ErrRadiusOutOfRange)
}

func TestRadiusRejectsNonNumber(t *testing.T) {
	err := execute(t, "radius", "big")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid radius")
}

func TestArgumentCounts(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"radius without value", []string{"radius"}},
		{"inc with value", []string{"inc", "2"}},
		{"unknown command", []string{"reset"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, execute(t, tt.args...))
		})
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("COUNTER_URL", "ws://example.test/")
	assert.Equal(t, "ws://example.test/", envOr("COUNTER_URL", "fallback"))
	assert.Equal(t, "fallback", envOr("COUNTER_URL_UNSET", "fallback"))
}
