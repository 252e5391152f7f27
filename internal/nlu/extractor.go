package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aidehq/aide/internal/core"
	"github.com/aidehq/aide/internal/llm"
	"github.com/aidehq/aide/internal/logging"
)

// Entities holds the intent-specific fields pulled out of a turn. Unset
// string fields are empty; unset Duration is zero.
type Entities struct {
	// calendar
	Date      string   `json:"date,omitempty"`       // "tomorrow", "monday", "2026-09-01", ...
	Time      string   `json:"time,omitempty"`       // "9am", "14:00", ...
	EndTime   string   `json:"end_time,omitempty"`
	Duration  int      `json:"duration,omitempty"`   // minutes
	Title     string   `json:"title,omitempty"`
	Attendees []string `json:"attendees,omitempty"`

	// mail
	Recipient string `json:"recipient,omitempty"`
	Purpose   string `json:"purpose,omitempty"`

	// research
	Topic string `json:"topic,omitempty"`
}

// IsEmpty reports whether nothing was extracted.
func (e Entities) IsEmpty() bool {
	return e.Date == "" && e.Time == "" && e.EndTime == "" && e.Duration == 0 &&
		e.Title == "" && len(e.Attendees) == 0 && e.Recipient == "" &&
		e.Purpose == "" && e.Topic == ""
}

var (
	emailPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	datePattern     = regexp.MustCompile(`(?i)\b(today|tomorrow|monday|tuesday|wednesday|thursday|friday|saturday|sunday|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}(?:/\d{2,4})?)\b`)
	timePattern     = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b|\b(\d{1,2}):(\d{2})\b`)
	titleQuoted     = regexp.MustCompile(`(?i)\b(?:called|titled|named)\s+"([^"]+)"`)
	titleBare       = regexp.MustCompile(`(?i)\b(?:called|titled|named)\s+([^",.!?]+)`)
	durationPattern = regexp.MustCompile(`(?i)\bfor\s+(\d+)\s*(minutes?|mins?|hours?|hrs?)\b`)
	aboutPattern    = regexp.MustCompile(`(?i)\babout\s+(.+)$`)
)

// titleStopwords end a bare (unquoted) title capture.
var titleStopwords = map[string]bool{
	"tomorrow": true, "today": true, "tonight": true, "at": true, "on": true,
	"for": true, "next": true, "this": true, "from": true, "with": true,
}

// extractTitle pulls an event title out of "called X" phrasing. Quoted
// titles are taken verbatim; bare titles stop at the first schedule word.
func extractTitle(text string) string {
	if m := titleQuoted.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	m := titleBare.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	var kept []string
	for _, word := range strings.Fields(m[1]) {
		if titleStopwords[strings.ToLower(word)] {
			break
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

// Extractor pulls structured fields out of free text.
type Extractor struct {
	gateway llm.Gateway
}

// NewExtractor creates an extractor backed by the given gateway.
func NewExtractor(gateway llm.Gateway) *Extractor {
	return &Extractor{gateway: gateway}
}

// Extract returns the fields for text under the given intent.
//
// While a mail composition flow is active, mail extraction is skipped
// entirely and an empty result is returned: mid-flow input is collection
// data, and re-extracting it would re-trigger field collection. This is a
// hard contract, not a heuristic.
func (e *Extractor) Extract(ctx context.Context, text string, intent core.Intent, mailFlowActive bool) Entities {
	if intent == core.IntentMail && mailFlowActive {
		return Entities{}
	}

	strategies := []func(context.Context, string, core.Intent) (Entities, bool){
		e.extractViaGateway,
		extractViaPatterns,
	}
	for _, strategy := range strategies {
		if fields, ok := strategy(ctx, text, intent); ok {
			return inferDuration(fields)
		}
	}
	return Entities{}
}

func (e *Extractor) extractViaGateway(ctx context.Context, text string, intent core.Intent) (Entities, bool) {
	prompt := extractionPrompt(text, intent)
	if prompt == "" {
		return Entities{}, false
	}

	response, err := e.gateway.Generate(ctx, prompt)
	if err != nil {
		logging.WithField("component", "extractor").Debug("gateway extraction failed: %v", err)
		return Entities{}, false
	}

	span := llm.ExtractJSONObject(response)
	if span == "" {
		return Entities{}, false
	}

	var fields Entities
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		logging.WithField("component", "extractor").Debug("unparsable extraction: %v", err)
		return Entities{}, false
	}
	return fields, true
}

func extractionPrompt(text string, intent core.Intent) string {
	switch intent {
	case core.IntentCalendar:
		return fmt.Sprintf(`Extract scheduling details from the message. Respond with ONLY a JSON object, no explanation:
{"date": "the date phrase as written, or empty", "time": "start time phrase, or empty", "end_time": "end time phrase, or empty", "duration": minutes as a number or 0, "title": "event title, or empty", "attendees": ["email addresses mentioned"]}

Message: %s`, text)
	case core.IntentMail:
		return fmt.Sprintf(`Extract email details from the message. Respond with ONLY a JSON object, no explanation:
{"recipient": "email address, or empty", "purpose": "what the email is about, or empty"}

Message: %s`, text)
	case core.IntentResearch:
		return fmt.Sprintf(`Extract the research topic from the message. Respond with ONLY a JSON object, no explanation:
{"topic": "what to research"}

Message: %s`, text)
	default:
		return ""
	}
}

// extractViaPatterns is the deterministic fallback.
func extractViaPatterns(_ context.Context, text string, intent core.Intent) (Entities, bool) {
	var fields Entities

	switch intent {
	case core.IntentCalendar:
		if m := datePattern.FindString(text); m != "" {
			fields.Date = m
		}
		times := timePattern.FindAllString(text, 2)
		if len(times) > 0 {
			fields.Time = strings.TrimSpace(times[0])
		}
		if len(times) > 1 {
			fields.EndTime = strings.TrimSpace(times[1])
		}
		fields.Title = extractTitle(text)
		if m := durationPattern.FindStringSubmatch(text); m != nil {
			n, _ := strconv.Atoi(m[1])
			if strings.HasPrefix(strings.ToLower(m[2]), "h") {
				n *= 60
			}
			fields.Duration = n
		}
		fields.Attendees = emailPattern.FindAllString(text, -1)
	case core.IntentMail:
		if m := emailPattern.FindString(text); m != "" {
			fields.Recipient = m
		}
		if m := aboutPattern.FindStringSubmatch(text); m != nil {
			fields.Purpose = strings.TrimSpace(m[1])
		}
	case core.IntentResearch:
		fields.Topic = strings.TrimSpace(text)
	default:
		return Entities{}, false
	}

	return fields, !fields.IsEmpty()
}

// inferDuration fills Duration from start and end clock times when both are
// known. A nonpositive difference is treated as crossing midnight.
func inferDuration(fields Entities) Entities {
	if fields.Duration != 0 || fields.Time == "" || fields.EndTime == "" {
		return fields
	}

	startH, startM, okStart := ResolveClockTime(fields.Time)
	endH, endM, okEnd := ResolveClockTime(fields.EndTime)
	if !okStart || !okEnd {
		return fields
	}

	minutes := (endH*60 + endM) - (startH*60 + startM)
	minutes = ((minutes % (24 * 60)) + 24*60) % (24 * 60)
	fields.Duration = minutes
	return fields
}
