package rate

import "time"

// Policy is a limit of Limit attempts per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Since returns the start of the window ending at now.
func (p Policy) Since(now time.Time) time.Time {
	return now.Add(-p.Window)
}

// Exceeded applies the policy to the creation times of recent attempts.
// A non-positive Limit disables the check.
func (p Policy) Exceeded(created []time.Time, now time.Time) bool {
	if p.Limit <= 0 {
		return false
	}
	return Exceeded(created, p.Limit, p.Since(now))
}

// Exceeded reports whether at least limit entries of created fall at or after since.
func Exceeded(created []time.Time, limit int, since time.Time) bool {
	count := 0
	for _, c := range created {
		if !c.Before(since) {
			count++
		}
	}
	return count >= limit
}
