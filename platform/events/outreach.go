package events

import "github.com/google/uuid"

// ---------------------------------------------------------------------------
// Lead acquisition events
// ---------------------------------------------------------------------------

// LeadsImported is published after a lead source fetch lands a batch.
type LeadsImported struct {
	BaseEvent
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
}

func (e LeadsImported) EventName() string { return "leads.imported" }

// ---------------------------------------------------------------------------
// Outreach lifecycle events
// ---------------------------------------------------------------------------

// EmailSent is published after a stage email was accepted by the mail relay
// and the lead's state advanced.
type EmailSent struct {
	BaseEvent
	LeadID   uuid.UUID `json:"lead_id"`
	Email    string    `json:"email"`
	Stage    string    `json:"stage"`
	ThreadID string    `json:"thread_id"`
}

func (e EmailSent) EventName() string { return "outreach.email.sent" }

// LeadReplied is published the first time an inbound reply is attributed to
// a lead. Duplicate reply deliveries never publish a second event.
type LeadReplied struct {
	BaseEvent
	LeadID   uuid.UUID `json:"lead_id"`
	Email    string    `json:"email"`
	ThreadID string    `json:"thread_id"`
	Snippet  string    `json:"snippet"`
}

func (e LeadReplied) EventName() string { return "outreach.lead.replied" }

// LeadDeadLettered is published when a lead exhausts its retry budget and is
// parked in the failed state for manual review.
type LeadDeadLettered struct {
	BaseEvent
	LeadID    uuid.UUID `json:"lead_id"`
	Email     string    `json:"email"`
	Stage     string    `json:"stage"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
}

func (e LeadDeadLettered) EventName() string { return "outreach.lead.dead_lettered" }
