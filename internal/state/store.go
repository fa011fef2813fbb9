// Package state holds the authoritative counter and radius shared by every viewer.
package state

import (
	"errors"
	"fmt"
	"math"
)

// Key names one of the fixed values in the Store.
type Key string

const (
	KeyCount  Key = "count"
	KeyRadius Key = "radius"
)

const (
	DefaultCount  int64   = 1
	DefaultRadius float64 = 1
)

var (
	ErrInvalidRadius = errors.New("radius must be a positive finite number")
	ErrUnknownKey    = errors.New("unknown state key")
	ErrInvalidValue  = errors.New("invalid value type")
)

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Count  int64   `json:"count"`
	Radius float64 `json:"radius"`
}

// Store provides in-memory state for a single process.
// All methods are called from the broadcaster actor goroutine (no concurrent access).
type Store struct {
	count  int64
	radius float64
}

// NewStore creates a store with the given initial values.
func NewStore(count int64, radius float64) (*Store, error) {
	if !ValidRadius(radius) {
		return nil, fmt.Errorf("initial radius %v: %w", radius, ErrInvalidRadius)
	}
	return &Store{count: count, radius: radius}, nil
}

// NewDefaultStore creates a store with counter=1 and radius=1.
func NewDefaultStore() *Store {
	return &Store{count: DefaultCount, radius: DefaultRadius}
}

// ValidRadius reports whether r is positive and finite. No range is enforced.
func ValidRadius(r float64) bool {
	return r > 0 && !math.IsInf(r, 0) && !math.IsNaN(r)
}

func (s *Store) Count() int64 {
	return s.count
}

func (s *Store) SetCount(v int64) {
	s.count = v
}

func (s *Store) Increment() int64 {
	s.count++
	return s.count
}

func (s *Store) Decrement() int64 {
	s.count--
	return s.count
}

func (s *Store) Radius() float64 {
	return s.radius
}

// SetRadius overwrites the radius exactly as given; no rounding or clamping.
func (s *Store) SetRadius(r float64) error {
	if !ValidRadius(r) {
		return ErrInvalidRadius
	}
	s.radius = r
	return nil
}

func (s *Store) Snapshot() Snapshot {
	return Snapshot{Count: s.count, Radius: s.radius}
}

// Get returns the value stored under key, or nil for an unknown key.
func (s *Store) Get(key Key) any {
	switch key {
	case KeyCount:
		return s.count
	case KeyRadius:
		return s.radius
	default:
		return nil
	}
}

// Set overwrites the value under key. Numeric values are converted to the key's type.
func (s *Store) Set(key Key, value any) error {
	switch key {
	case KeyCount:
		v, err := toInt64(value)
		if err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		s.count = v
		return nil
	case KeyRadius:
		v, err := toFloat64(value)
		if err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		if err := s.SetRadius(v); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		return nil
	default:
		return fmt.Errorf("set %q: %w", key, ErrUnknownKey)
	}
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%v is not a whole number: %w", v, ErrInvalidValue)
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%T: %w", value, ErrInvalidValue)
	}
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%T: %w", value, ErrInvalidValue)
	}
}
