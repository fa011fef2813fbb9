package state

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultStore(t *testing.T) {
	s := NewDefaultStore()

	assert.Equal(t, int64(1), s.Count())
	assert.Equal(t, 1.0, s.Radius())
}

func TestNewStore_RejectsInvalidRadius(t *testing.T) {
	for _, r := range []float64{0, -1, math.Inf(1), math.NaN()} {
		_, err := NewStore(1, r)
		require.ErrorIs(t, err, ErrInvalidRadius)
	}
}

func TestIncrementDecrement(t *testing.T) {
	tests := []struct {
		name       string
		increments int
		decrements int
	}{
		{"no ops", 0, 0},
		{"only increments", 5, 0},
		{"only decrements", 0, 4},
		{"goes negative", 2, 10},
		{"balanced", 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewDefaultStore()
			for range tt.increments {
				s.Increment()
			}
			for range tt.decrements {
				s.Decrement()
			}
			assert.Equal(t, DefaultCount+int64(tt.increments-tt.decrements), s.Count())
		})
	}
}

func TestIncrement_ReturnsNewValue(t *testing.T) {
	s := NewDefaultStore()

	assert.Equal(t, int64(2), s.Increment())
	assert.Equal(t, int64(1), s.Decrement())
	assert.Equal(t, int64(0), s.Decrement())
}

func TestSetRadius_NoClamping(t *testing.T) {
	s := NewDefaultStore()

	require.NoError(t, s.SetRadius(2.5))
	assert.Equal(t, 2.5, s.Radius())

	// far outside the UI's 1..4 range is still accepted verbatim
	require.NoError(t, s.SetRadius(1234.5678))
	assert.Equal(t, 1234.5678, s.Radius())

	require.NoError(t, s.SetRadius(0.001))
	assert.Equal(t, 0.001, s.Radius())
}

func TestSetRadius_Invalid(t *testing.T) {
	s := NewDefaultStore()

	for _, r := range []float64{0, -2.5, math.Inf(-1), math.NaN()} {
		require.ErrorIs(t, s.SetRadius(r), ErrInvalidRadius)
	}
	assert.Equal(t, 1.0, s.Radius())
}

func TestGet(t *testing.T) {
	s, err := NewStore(-3, 2.25)
	require.NoError(t, err)

	assert.Equal(t, int64(-3), s.Get(KeyCount))
	assert.Equal(t, 2.25, s.Get(KeyRadius))
	assert.Nil(t, s.Get(Key("missing")))
}

func TestSet(t *testing.T) {
	tests := []struct {
		name    string
		key     Key
		value   any
		wantErr error
	}{
		{"count from int", KeyCount, 5, nil},
		{"count from whole float", KeyCount, 7.0, nil},
		{"count from fractional float", KeyCount, 7.5, ErrInvalidValue},
		{"count from string", KeyCount, "7", ErrInvalidValue},
		{"radius from float", KeyRadius, 3.5, nil},
		{"radius from int", KeyRadius, 2, nil},
		{"radius negative", KeyRadius, -1.0, ErrInvalidRadius},
		{"radius from bool", KeyRadius, true, ErrInvalidValue},
		{"unknown key", Key("other"), 1, ErrUnknownKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewDefaultStore()
			err := s.Set(tt.key, tt.value)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, Snapshot{Count: 1, Radius: 1}, s.Snapshot())
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSnapshot(t *testing.T) {
	s := NewDefaultStore()
	s.SetCount(42)
	require.NoError(t, s.SetRadius(3))

	assert.Equal(t, Snapshot{Count: 42, Radius: 3}, s.Snapshot())
}
