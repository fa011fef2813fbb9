package domain

// CountUpdate is pushed to every viewer after the counter changes.
type CountUpdate struct {
	Count int64 `json:"count"`
}

// StateView is the read-only view of the shared state plus registry size.
type StateView struct {
	Count       int64   `json:"count"`
	Radius      float64 `json:"radius"`
	Connections int     `json:"connections"`
}
