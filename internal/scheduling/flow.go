package scheduling

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aidehq/aide/internal/core"
	"github.com/aidehq/aide/internal/gcal"
	"github.com/aidehq/aide/internal/logging"
	"github.com/aidehq/aide/internal/nlu"
)

type stage string

const (
	stageInactive       stage = "inactive"
	stageCollectingDate stage = "collecting_date"
	stageSuggesting     stage = "suggesting_time"
	stageConfirming     stage = "confirming"
)

const defaultDurationMin = 60

// DefaultTimeout is how long an idle scheduling flow survives, measured
// from flow start. Deliberately shorter than the mail flow's.
const DefaultTimeout = 10 * time.Minute

const recoveryMessage = "Something went wrong while scheduling, so I've cleared that request. Please try again."

// draft is the event being assembled across turns.
type draft struct {
	title       string
	date        time.Time
	hasDate     bool
	start       time.Time
	end         time.Time
	durationMin int
	attendees   []string
	suggestions []core.TimeSlot
	pendingID   string
}

// Flow is the scheduling state machine for one session.
type Flow struct {
	analyzer *Analyzer
	calendar gcal.Service
	timeout  time.Duration
	now      func() time.Time
	log      *logging.Logger

	active    bool
	stage     stage
	startedAt time.Time
	data      draft
}

// NewFlow creates an inactive scheduling flow.
func NewFlow(analyzer *Analyzer, calendar gcal.Service, timeout time.Duration) *Flow {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Flow{
		analyzer: analyzer,
		calendar: calendar,
		timeout:  timeout,
		now:      time.Now,
		stage:    stageInactive,
		log:      logging.WithField("component", "scheduling"),
	}
}

// Active reports whether a scheduling dialogue is in progress.
func (f *Flow) Active() bool {
	return f.active
}

// reset returns the flow to inactive regardless of stage.
func (f *Flow) reset() {
	f.active = false
	f.stage = stageInactive
	f.data = draft{}
}

// timedOut checks the idle limit, measured from flow start.
func (f *Flow) timedOut() bool {
	return f.active && f.now().Sub(f.startedAt) > f.timeout
}

// guard converts a panic in a stage handler into a full reset; a flow must
// never stay active in an unreachable stage.
func (f *Flow) guard(reply *core.Reply) {
	if r := recover(); r != nil {
		f.log.Error("scheduling stage panicked: %v", r)
		f.reset()
		*reply = core.Plain{Text: recoveryMessage}
	}
}

// Activate starts the flow from the extracted fields of the triggering
// message.
func (f *Flow) Activate(ctx context.Context, fields nlu.Entities) (reply core.Reply) {
	defer f.guard(&reply)

	f.active = true
	f.stage = stageInactive
	f.startedAt = f.now()
	f.data = draft{
		title:       fields.Title,
		durationMin: fields.Duration,
		attendees:   fields.Attendees,
	}
	if f.data.title == "" {
		f.data.title = "Meeting"
	}
	if f.data.durationMin <= 0 {
		f.data.durationMin = defaultDurationMin
	}

	now := f.now()
	date, hasDate := nlu.ResolveDate(fields.Date, now)
	hour, minute, hasTime := nlu.ResolveClockTime(fields.Time)

	switch {
	case hasDate && hasTime:
		start := date.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
		end := start.Add(time.Duration(f.data.durationMin) * time.Minute)
		f.data.date = date
		f.data.hasDate = true

		// A literal time in the past or on top of an existing event is
		// ignored in favor of alternatives.
		if start.Before(now) || f.analyzer.hasConflict(ctx, start, end) {
			return f.suggest(ctx)
		}
		f.data.start = start
		f.data.end = end
		return f.askConfirmation()

	case hasDate:
		f.data.date = date
		f.data.hasDate = true
		return f.suggest(ctx)

	default:
		f.stage = stageCollectingDate
		return core.Plain{Text: "Sure, I can set that up. What day works for you?"}
	}
}

// HandleTurn advances the flow with the next user input.
func (f *Flow) HandleTurn(ctx context.Context, input string) (reply core.Reply) {
	defer f.guard(&reply)

	if !f.active {
		return core.Plain{Text: "We're not in the middle of scheduling anything right now."}
	}
	if f.timedOut() {
		f.reset()
		return core.Plain{Text: "That scheduling request sat for a while, so I've cleared it. Let me know if you still want to set something up."}
	}

	switch f.stage {
	case stageCollectingDate:
		return f.handleCollectingDate(ctx, input)
	case stageSuggesting:
		return f.HandleSelection(ctx, input, nil)
	case stageConfirming:
		return f.HandleConfirmation(ctx, f.data.pendingID, input)
	default:
		f.reset()
		return core.Plain{Text: recoveryMessage}
	}
}

func (f *Flow) handleCollectingDate(ctx context.Context, input string) core.Reply {
	date, ok := nlu.ResolveDate(strings.TrimSpace(input), f.now())
	if !ok {
		// Dates also arrive embedded in sentences
		if m := datePhraseIn(input, f.now()); m != "" {
			date, ok = nlu.ResolveDate(m, f.now())
		}
	}
	if !ok {
		return core.Plain{Text: "I didn't catch a date there. Something like \"tomorrow\" or \"2026-09-15\" works."}
	}

	f.data.date = date
	f.data.hasDate = true
	return f.suggest(ctx)
}

func datePhraseIn(input string, now time.Time) string {
	for _, word := range strings.Fields(strings.ToLower(input)) {
		if _, ok := nlu.ResolveDate(word, now); ok {
			return word
		}
	}
	return ""
}

// suggest computes candidate slots and asks the user to pick one.
func (f *Flow) suggest(ctx context.Context) core.Reply {
	slots := f.analyzer.AnalyzeEventPatterns(ctx, f.data.date, f.data.durationMin, f.data.title)
	if len(slots) == 0 {
		slots = f.analyzer.FindAvailableTimeSlots(ctx, f.data.date, f.data.durationMin)
	}
	if len(slots) == 0 {
		f.stage = stageCollectingDate
		return core.Plain{Text: fmt.Sprintf("I couldn't find any openings on %s. Want to try another day?", f.data.date.Format("Monday, January 2"))}
	}
	if len(slots) > maxSlots {
		slots = slots[:maxSlots]
	}

	f.data.suggestions = slots
	f.stage = stageSuggesting

	var b strings.Builder
	fmt.Fprintf(&b, "Here's what's open on %s for \"%s\":\n", f.data.date.Format("Monday, January 2"), f.data.title)
	for i, slot := range slots {
		fmt.Fprintf(&b, "%d. %s\n", i+1, slot.DisplayText)
	}
	b.WriteString("Reply with a number to pick one.")

	return core.NeedsChoice{
		Text:        b.String(),
		Suggestions: slots,
		EventTitle:  f.data.title,
		Duration:    f.data.durationMin,
		Attendees:   f.data.attendees,
	}
}

// RestoreSuggestions rebuilds a lost flow from a stored suggestion marker
// so the user's pick can still be honored. A live flow is left alone.
func (f *Flow) RestoreSuggestions(title string, durationMin int, attendees []string, slots []core.TimeSlot) {
	if f.active || len(slots) == 0 {
		return
	}
	f.active = true
	f.stage = stageSuggesting
	f.startedAt = f.now()
	f.data = draft{
		title:       title,
		durationMin: durationMin,
		attendees:   attendees,
		suggestions: slots,
		date:        slots[0].Start,
		hasDate:     true,
	}
	if f.data.title == "" {
		f.data.title = "Meeting"
	}
	if f.data.durationMin <= 0 {
		f.data.durationMin = defaultDurationMin
	}
}

// HandleSelection resolves a numbered pick against the offered slots. The
// marker payload lets a selection survive a lost in-process flow; when the
// flow is live its own suggestions win.
func (f *Flow) HandleSelection(ctx context.Context, input string, fromMarker []core.TimeSlot) (reply core.Reply) {
	defer f.guard(&reply)

	suggestions := f.data.suggestions
	if len(suggestions) == 0 {
		suggestions = fromMarker
	}
	if len(suggestions) == 0 {
		f.reset()
		return core.Plain{Text: "I've lost track of those suggestions. Could you tell me again when you'd like to meet?"}
	}
	if !f.active {
		// Rehydrated from a marker after state loss
		f.active = true
		f.startedAt = f.now()
		f.data.suggestions = suggestions
		if f.data.title == "" {
			f.data.title = "Meeting"
		}
		if f.data.durationMin <= 0 {
			f.data.durationMin = defaultDurationMin
		}
	}

	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > len(suggestions) {
		f.stage = stageSuggesting
		return core.Plain{Text: fmt.Sprintf("Please pick a number between 1 and %d.", len(suggestions))}
	}

	chosen := suggestions[n-1]
	f.data.start = chosen.Start
	f.data.end = chosen.End
	return f.askConfirmation()
}

// askConfirmation moves to confirming and hands the orchestrator a pending
// marker to store.
func (f *Flow) askConfirmation() core.Reply {
	f.stage = stageConfirming
	f.data.pendingID = uuid.NewString()

	text := fmt.Sprintf("I'd like to schedule \"%s\" on %s at %s for %d minutes. Shall I create it? (yes/no)",
		f.data.title,
		f.data.start.Format("Monday, January 2"),
		f.data.start.Format("3:04 PM"),
		f.data.durationMin)

	return core.NeedsConfirmation{
		Text:      text,
		PendingID: f.data.pendingID,
		EventName: f.data.title,
	}
}

// HandleConfirmation settles a pending confirmation. Unlike the mail flow,
// only an exact case-normalized "yes" or "no" settles it; anything else
// re-prompts.
func (f *Flow) HandleConfirmation(ctx context.Context, pendingID, input string) (reply core.Reply) {
	defer f.guard(&reply)

	if !f.active || f.stage != stageConfirming || (pendingID != "" && pendingID != f.data.pendingID) {
		f.reset()
		return core.Plain{Text: "That confirmation is no longer pending. Tell me again what you'd like to schedule."}
	}
	if f.timedOut() {
		f.reset()
		return core.Plain{Text: "That scheduling request sat for a while, so I've cleared it. Let me know if you still want to set something up."}
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "yes":
		return f.createEvent(ctx)
	case "no":
		f.reset()
		return core.Plain{Text: "Okay, I won't schedule it."}
	default:
		return core.NeedsConfirmation{
			Text:      "Please answer yes or no: should I create the event?",
			PendingID: f.data.pendingID,
			EventName: f.data.title,
		}
	}
}

func (f *Flow) createEvent(ctx context.Context) core.Reply {
	if f.data.start.IsZero() || f.data.end.IsZero() || f.data.title == "" {
		f.reset()
		return core.Plain{Text: "I'm missing the event time, so nothing was created. Let's start over — when would you like to meet?"}
	}

	created, err := f.calendar.CreateEvent(ctx, gcal.CreateEventRequest{
		Summary:   f.data.title,
		Start:     f.data.start,
		End:       f.data.end,
		Attendees: f.data.attendees,
	})
	if err != nil {
		f.log.Warn("create event failed: %v", err)
		f.reset()
		return core.Plain{Text: "I couldn't create the event just now. Please try again in a moment."}
	}

	title := f.data.title
	when := f.data.start.Format("Monday, January 2 at 3:04 PM")
	f.reset()

	text := fmt.Sprintf("Done! \"%s\" is on your calendar for %s.", title, when)
	if created.Link != "" {
		text += " " + created.Link
	}
	return core.Plain{Text: text}
}
