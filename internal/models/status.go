package models

import (
	"encoding/json"
	"fmt"
)

// Status is the lifecycle state of a Job. Only the four constants below are valid.
type Status string

const (
	StatusApplied   Status = "applied"
	StatusInterview Status = "interview"
	StatusOffer     Status = "offer"
	StatusRejected  Status = "rejected"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusApplied, StatusInterview, StatusOffer, StatusRejected}

// allowedTransitions maps a current status to every status reachable in one step,
// including staying put.
var allowedTransitions = map[Status]map[Status]bool{
	StatusApplied:   {StatusApplied: true, StatusInterview: true, StatusRejected: true},
	StatusInterview: {StatusInterview: true, StatusOffer: true, StatusRejected: true},
	StatusOffer:     {StatusOffer: true},
	StatusRejected:  {StatusRejected: true},
}

// InvalidStatusError is returned when a string is not one of the known statuses.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("%q is not a valid choice.", e.Value)
}

// ParseStatus converts raw input into a Status, rejecting unknown values.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", &InvalidStatusError{Value: raw}
	}
	return s, nil
}

func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

func (s Status) String() string { return string(s) }

// UnmarshalJSON keeps unknown values from ever reaching the lifecycle checks.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return &InvalidStatusError{Value: string(data)}
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IsTerminal reports whether no further change is possible from s.
func IsTerminal(s Status) bool {
	return s == StatusOffer || s == StatusRejected
}

// IsTransitionAllowed reports whether a job currently in `current` may move to `target`.
// A status missing from the table may only stay where it is.
func IsTransitionAllowed(current, target Status) bool {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return current == target
	}
	return allowed[target]
}

// AllowedTransitions returns the one-step reachable set for current, in lifecycle order.
func AllowedTransitions(current Status) []Status {
	out := make([]Status, 0, len(Statuses))
	for _, s := range Statuses {
		if IsTransitionAllowed(current, s) {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = append(out, current)
	}
	return out
}

// ActionableTransitions is AllowedTransitions without current itself: only moves that
// actually change state.
func ActionableTransitions(current Status) []Status {
	out := []Status{}
	for _, s := range AllowedTransitions(current) {
		if s != current {
			out = append(out, s)
		}
	}
	return out
}
