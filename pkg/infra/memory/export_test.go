package memory

import "time"

// SetClock replaces the time source for lock expiry tests
func (r *Repository) SetClock(now func() time.Time) {
	r.now = now
}
