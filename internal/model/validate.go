package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTextLen is Slack's chat.postMessage text limit.
const MaxTextLen = 4000

// MaxScheduleAhead bounds how far in the future a message may be scheduled.
const MaxScheduleAhead = 365 * 24 * time.Hour

// ValidationError is surfaced synchronously to the caller before any
// persistence happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateText checks the message body. The returned error is nil for
// valid input.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if n := utf8.RuneCountInString(text); n > MaxTextLen {
		return &ValidationError{Field: "text", Reason: fmt.Sprintf("exceeds %d characters (got %d)", MaxTextLen, n)}
	}
	return nil
}

// ValidateSchedule checks that t is strictly in the future and no more
// than a year ahead of now.
func ValidateSchedule(now, t time.Time) error {
	if !t.After(now) {
		return &ValidationError{Field: "scheduled_for", Reason: "must be in the future"}
	}
	if t.After(now.Add(MaxScheduleAhead)) {
		return &ValidationError{Field: "scheduled_for", Reason: "must be within one year"}
	}
	return nil
}
