// Package core defines the fundamental types shared across aide.
package core

import (
	"time"
)

// -----------------------------------------------------------------------------
// INTENT - What the user is trying to do this turn
// -----------------------------------------------------------------------------

// Intent is a type-safe label for the task a turn belongs to.
type Intent string

const (
	IntentResearch Intent = "research"
	IntentCalendar Intent = "calendar"
	IntentMail     Intent = "mail"
	IntentExit     Intent = "exit"
	IntentChat     Intent = "chat"
)

// -----------------------------------------------------------------------------
// TURN - One message in a conversation
// -----------------------------------------------------------------------------

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is a single message. The durable log stores these append-only; the
// in-memory window keeps the last few for marker recovery and chat context.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// -----------------------------------------------------------------------------
// TIME SLOT - A candidate window for a new event
// -----------------------------------------------------------------------------

// TimeSlot is a candidate start/end window produced by the pattern analyzer
// or the deterministic gap finder.
type TimeSlot struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	DisplayText string    `json:"display_text"`
}

// -----------------------------------------------------------------------------
// STYLE PROFILE - How to write to a given recipient
// -----------------------------------------------------------------------------

// StyleContext carries the conversational background inferred from prior
// correspondence with a recipient.
type StyleContext struct {
	PreviousTopics       []string `json:"previous_topics"`
	OngoingContext       string   `json:"ongoing_context"`
	TypicalPurpose       string   `json:"typical_purpose"`
	CommonTerms          []string `json:"common_terms"`
	RelationshipDynamics string   `json:"relationship_dynamics"`
	InsideReferences     []string `json:"inside_references,omitempty"`
	UpcomingEvents       []string `json:"upcoming_events,omitempty"`
}

// StyleProfile describes the tone and framing to use when drafting mail to a
// particular recipient.
type StyleProfile struct {
	Relationship string       `json:"relationship"`
	Tone         string       `json:"tone"`
	Greeting     string       `json:"greeting"`
	Closing      string       `json:"closing"`
	Style        string       `json:"style"`
	Context      StyleContext `json:"context"`
}

// -----------------------------------------------------------------------------
// REPLY - Tagged result of a flow turn
// -----------------------------------------------------------------------------

// Reply is what a flow hands back to the orchestrator for one turn. Exactly
// three variants exist; the orchestrator type-switches over them.
type Reply interface {
	isReply()
}

// Plain is a response to surface as-is.
type Plain struct {
	Text string
}

// NeedsChoice asks the user to pick one of the offered slots; the
// orchestrator stores a suggestion marker so the next input can be resolved
// against the offered list.
type NeedsChoice struct {
	Text        string
	Suggestions []TimeSlot
	EventTitle  string
	Duration    int // minutes
	Attendees   []string
}

// NeedsConfirmation asks the user to confirm a proposed calendar event; the
// orchestrator stores a confirmation marker keyed by PendingID.
type NeedsConfirmation struct {
	Text      string
	PendingID string
	EventName string
}

func (Plain) isReply()             {}
func (NeedsChoice) isReply()       {}
func (NeedsConfirmation) isReply() {}
