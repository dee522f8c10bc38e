package quiz

import "fmt"

// Status is the lifecycle state of a session.
// Transitions only move forward: Active → Submitting → Completed|Expired.
type Status int

const (
	StatusIdle Status = iota
	StatusActive
	StatusSubmitting
	StatusCompleted
	StatusExpired
)

var statusNames = [...]string{
	StatusIdle:       "IDLE",
	StatusActive:     "ACTIVE",
	StatusSubmitting: "SUBMITTING",
	StatusCompleted:  "COMPLETED",
	StatusExpired:    "EXPIRED",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired
}

// MarshalText encodes the status by name so JSON payloads stay readable.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown quiz status %q", text)
}
