package types

import "github.com/google/uuid"

// RunID identifies a single pipeline run
type RunID string

// NewRunID generates a new random RunID
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

func (x RunID) String() string {
	return string(x)
}
