package dialog

import (
	"encoding/json"
	"strings"

	"github.com/aidehq/aide/internal/core"
)

// Markers are system turns recording that the assistant's last reply is
// waiting on the user. They live in the durable log like any other turn;
// only the newest window entry is ever consulted, so a marker buried by a
// later exchange is naturally void.
const (
	confirmationPrefix = "pending_confirmation:"
	suggestionPrefix   = "pending_suggestion:"
)

// confirmationMarker waits on a yes/no for a proposed calendar event.
type confirmationMarker struct {
	PendingID string `json:"pending_id"`
	EventName string `json:"event_name"`
}

// suggestionMarker waits on a numbered pick and carries everything needed
// to rebuild the scheduling flow if the in-process one is gone.
type suggestionMarker struct {
	Title     string          `json:"title"`
	Duration  int             `json:"duration"`
	Attendees []string        `json:"attendees,omitempty"`
	Slots     []core.TimeSlot `json:"slots"`
}

func encodeConfirmation(m confirmationMarker) string {
	payload, _ := json.Marshal(m)
	return confirmationPrefix + string(payload)
}

func encodeSuggestion(m suggestionMarker) string {
	payload, _ := json.Marshal(m)
	return suggestionPrefix + string(payload)
}

func decodeConfirmation(content string) (confirmationMarker, bool) {
	var m confirmationMarker
	payload, ok := strings.CutPrefix(content, confirmationPrefix)
	if !ok || json.Unmarshal([]byte(payload), &m) != nil {
		return confirmationMarker{}, false
	}
	return m, true
}

func decodeSuggestion(content string) (suggestionMarker, bool) {
	var m suggestionMarker
	payload, ok := strings.CutPrefix(content, suggestionPrefix)
	if !ok || json.Unmarshal([]byte(payload), &m) != nil {
		return suggestionMarker{}, false
	}
	return m, true
}
