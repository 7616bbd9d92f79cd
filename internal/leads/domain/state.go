// Package domain provides core business rules for the leads bounded context.
package domain

import (
	"fmt"
	"time"
)

// OutreachState is the single authoritative lifecycle field of a lead.
// Any value outside this enumeration is a data-integrity error and is
// rejected at the store boundary.
type OutreachState string

const (
	StateNew           OutreachState = "new"
	StateInitialSent   OutreachState = "initial_sent"
	StateFollowup1Sent OutreachState = "followup_1_sent"
	StateFollowup2Sent OutreachState = "followup_2_sent"
	StateReplied       OutreachState = "replied"
	StateFailed        OutreachState = "failed"
)

var validStates = map[OutreachState]bool{
	StateNew:           true,
	StateInitialSent:   true,
	StateFollowup1Sent: true,
	StateFollowup2Sent: true,
	StateReplied:       true,
	StateFailed:        true,
}

// ParseState validates a raw status value read from storage.
func ParseState(raw string) (OutreachState, error) {
	state := OutreachState(raw)
	if !validStates[state] {
		return "", fmt.Errorf("invalid outreach state %q", raw)
	}
	return state, nil
}

// Terminal reports whether no further sends may ever happen for this state.
// Followup2Sent is a resting state, not terminal: it can still move to Replied.
func (s OutreachState) Terminal() bool {
	return s == StateReplied || s == StateFailed
}

// Stage is a send attempt class tied to one state transition.
type Stage string

const (
	StageInitial   Stage = "initial"
	StageFollowup1 Stage = "followup_1"
	StageFollowup2 Stage = "followup_2"
)

// StageFor maps a lead's current state to the next stage to send.
// Returns false when the state has no further stage (Followup2Sent and the
// terminal states).
func StageFor(state OutreachState) (Stage, bool) {
	switch state {
	case StateNew:
		return StageInitial, true
	case StateInitialSent:
		return StageFollowup1, true
	case StateFollowup1Sent:
		return StageFollowup2, true
	default:
		return "", false
	}
}

// StateAfter returns the state a lead enters when a send of the given stage
// succeeds.
func StateAfter(stage Stage) (OutreachState, error) {
	switch stage {
	case StageInitial:
		return StateInitialSent, nil
	case StageFollowup1:
		return StateFollowup1Sent, nil
	case StageFollowup2:
		return StateFollowup2Sent, nil
	default:
		return "", fmt.Errorf("unknown stage %q", stage)
	}
}

// Snapshot is the slice of a lead the state machine decides on. It carries no
// identity and no contact data: only lifecycle and retry bookkeeping.
type Snapshot struct {
	State          OutreachState
	InitialSentAt  *time.Time
	Followup1DueAt *time.Time
	Followup2DueAt *time.Time
	RetryCount     int
	NextRetryAt    *time.Time
}

// NextStage returns the stage this lead would send next, if any.
func (s Snapshot) NextStage() (Stage, bool) {
	return StageFor(s.State)
}

// DueAt returns the instant from which the next stage becomes due. The
// initial stage is due immediately. Returns false when no stage remains or a
// due timestamp that should exist is missing.
func (s Snapshot) DueAt() (time.Time, bool) {
	stage, ok := StageFor(s.State)
	if !ok {
		return time.Time{}, false
	}

	switch stage {
	case StageInitial:
		return time.Time{}, true
	case StageFollowup1:
		if s.Followup1DueAt == nil {
			return time.Time{}, false
		}
		return *s.Followup1DueAt, true
	case StageFollowup2:
		if s.Followup2DueAt == nil {
			return time.Time{}, false
		}
		return *s.Followup2DueAt, true
	}
	return time.Time{}, false
}

// SendEligible reports whether the state machine itself permits a send at
// now: a stage remains, its due time has passed, and any retry backoff has
// elapsed. Business-window and quota gates are the scheduler's concern, not
// the state machine's.
func (s Snapshot) SendEligible(now time.Time) bool {
	if s.State.Terminal() {
		return false
	}

	dueAt, ok := s.DueAt()
	if !ok {
		return false
	}
	if dueAt.After(now) {
		return false
	}

	if s.RetryCount > 0 && s.NextRetryAt != nil && s.NextRetryAt.After(now) {
		return false
	}

	return true
}

// FollowupDueTimes derives both follow-up due instants from the initial send
// time and the configured offsets.
func FollowupDueTimes(initialSentAt time.Time, offsets [2]time.Duration) (time.Time, time.Time) {
	return initialSentAt.Add(offsets[0]), initialSentAt.Add(offsets[1])
}
