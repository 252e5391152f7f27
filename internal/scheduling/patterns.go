// Package scheduling implements slot suggestion and the calendar
// scheduling flow.
package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aidehq/aide/internal/cache"
	"github.com/aidehq/aide/internal/core"
	"github.com/aidehq/aide/internal/gcal"
	"github.com/aidehq/aide/internal/llm"
	"github.com/aidehq/aide/internal/logging"
)

const (
	workdayStartHour = 9
	workdayEndHour   = 17
	slotAlignment    = 30 * time.Minute
	maxSlots         = 5
	maxLLMSlots      = 3
	eventWindowTTL   = 60 * time.Second
)

// Analyzer proposes time slots for a new event, preferring the gateway's
// pattern-aware suggestions and falling back to deterministic gap search.
type Analyzer struct {
	gateway  llm.Gateway
	calendar gcal.Service
	events   *cache.Cache[[]gcal.Event]
	now      func() time.Time
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(gateway llm.Gateway, calendar gcal.Service) *Analyzer {
	return &Analyzer{
		gateway:  gateway,
		calendar: calendar,
		events:   cache.New[[]gcal.Event](cache.Options{DefaultTTL: eventWindowTTL, MaxEntries: 64}),
		now:      time.Now,
	}
}

// Close stops the event cache sweep.
func (a *Analyzer) Close() {
	a.events.Stop()
}

// fetchWindow returns all events in [targetDate-2d, targetDate+2d), cached
// by the exact ISO window bounds.
func (a *Analyzer) fetchWindow(ctx context.Context, targetDate time.Time) ([]gcal.Event, error) {
	timeMin := targetDate.AddDate(0, 0, -2)
	timeMax := targetDate.AddDate(0, 0, 2)
	key := fmt.Sprintf("events:%s:%s", timeMin.Format(time.RFC3339), timeMax.Format(time.RFC3339))

	if events, ok := a.events.Get(key); ok {
		return events, nil
	}

	events, err := a.calendar.ListEvents(ctx, timeMin, timeMax)
	if err != nil {
		return nil, err
	}
	a.events.Set(key, events)
	return events, nil
}

// hasConflict reports whether [start, end) overlaps a timed event. All-day
// events never conflict. A failed fetch reports no conflict; the literal
// time is then honored rather than second-guessed.
func (a *Analyzer) hasConflict(ctx context.Context, start, end time.Time) bool {
	events, err := a.fetchWindow(ctx, start)
	if err != nil {
		return false
	}
	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		if start.Before(ev.End) && ev.Start.Before(end) {
			return true
		}
	}
	return false
}

// llmSlot is the shape the gateway is asked to produce.
type llmSlot struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	DisplayText string `json:"displayText"`
}

// AnalyzeEventPatterns asks the gateway for up to three slots on targetDate
// that fit around the existing events and suit the purpose. Returns an
// empty list on any gateway or parse failure; callers fall back to
// FindAvailableTimeSlots.
func (a *Analyzer) AnalyzeEventPatterns(ctx context.Context, targetDate time.Time, durationMin int, purpose string) []core.TimeSlot {
	events, err := a.fetchWindow(ctx, targetDate)
	if err != nil {
		logging.WithField("component", "scheduling").Warn("event fetch failed: %v", err)
		return nil
	}

	var eventLines []string
	for _, ev := range events {
		if ev.AllDay {
			eventLines = append(eventLines, fmt.Sprintf("- %s (all day %s)", ev.Summary, ev.Start.Format("2006-01-02")))
			continue
		}
		eventLines = append(eventLines, fmt.Sprintf("- %s: %s to %s",
			ev.Summary, ev.Start.Format(time.RFC3339), ev.End.Format(time.RFC3339)))
	}
	if len(eventLines) == 0 {
		eventLines = []string{"(no events)"}
	}

	prompt := fmt.Sprintf(`Suggest up to %d good time slots on %s for a new event.

Purpose: %s
Duration: %d minutes
Existing events around that date:
%s

Pick times that fit the person's apparent routine and avoid conflicts.
Respond with ONLY a JSON array, no explanation:
[{"start": "RFC3339 start", "end": "RFC3339 end", "displayText": "human-readable description"}]`,
		maxLLMSlots, targetDate.Format("2006-01-02"), purpose, durationMin, strings.Join(eventLines, "\n"))

	response, err := a.gateway.Generate(ctx, prompt)
	if err != nil {
		logging.WithField("component", "scheduling").Debug("gateway slot suggestion failed: %v", err)
		return nil
	}

	span := llm.ExtractJSONArray(response)
	if span == "" {
		return nil
	}

	var raw []llmSlot
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		logging.WithField("component", "scheduling").Debug("unparsable slot suggestion: %v", err)
		return nil
	}

	slots := make([]core.TimeSlot, 0, maxLLMSlots)
	for _, s := range raw {
		start, err1 := time.Parse(time.RFC3339, s.Start)
		end, err2 := time.Parse(time.RFC3339, s.End)
		if err1 != nil || err2 != nil || !end.After(start) {
			continue
		}
		display := s.DisplayText
		if display == "" {
			display = formatSlot(start, end)
		}
		slots = append(slots, core.TimeSlot{Start: start, End: end, DisplayText: display})
		if len(slots) == maxLLMSlots {
			break
		}
	}
	return slots
}

// FindAvailableTimeSlots runs a deterministic gap search over the working
// window (09:00-17:00 local) of targetDate. All-day events never block.
// Candidate starts are 30-minute aligned; for today the window begins at
// the next boundary at or after now. At most five slots, chronological.
func (a *Analyzer) FindAvailableTimeSlots(ctx context.Context, targetDate time.Time, durationMin int) []core.TimeSlot {
	events, err := a.fetchWindow(ctx, targetDate)
	if err != nil {
		logging.WithField("component", "scheduling").Warn("event fetch failed: %v", err)
		events = nil
	}
	return findSlots(events, targetDate, durationMin, a.now())
}

// findSlots is the pure core of FindAvailableTimeSlots.
func findSlots(events []gcal.Event, targetDate time.Time, durationMin int, now time.Time) []core.TimeSlot {
	if durationMin <= 0 {
		durationMin = 60
	}
	duration := time.Duration(durationMin) * time.Minute

	day := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	windowStart := day.Add(workdayStartHour * time.Hour)
	windowEnd := day.Add(workdayEndHour * time.Hour)

	if sameDay(day, now) && now.After(windowStart) {
		windowStart = alignUp(now)
	}
	if !windowStart.Before(windowEnd) {
		return nil
	}

	// Only timed events block; clip them to the window and sort.
	type interval struct{ start, end time.Time }
	var busy []interval
	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		if !ev.End.After(windowStart) || !ev.Start.Before(windowEnd) {
			continue
		}
		busy = append(busy, interval{start: ev.Start, end: ev.End})
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].start.Before(busy[j].start) })

	var slots []core.TimeSlot
	emit := func(gapStart, gapEnd time.Time) {
		for start := alignUp(gapStart); !start.Add(duration).After(gapEnd); start = start.Add(slotAlignment) {
			if len(slots) == maxSlots {
				return
			}
			end := start.Add(duration)
			slots = append(slots, core.TimeSlot{Start: start, End: end, DisplayText: formatSlot(start, end)})
		}
	}

	cursor := windowStart
	for _, b := range busy {
		if b.start.After(cursor) {
			emit(cursor, minTime(b.start, windowEnd))
		}
		if b.end.After(cursor) {
			cursor = b.end
		}
		if len(slots) == maxSlots {
			return slots
		}
	}
	if cursor.Before(windowEnd) {
		emit(cursor, windowEnd)
	}
	return slots
}

func formatSlot(start, end time.Time) string {
	return fmt.Sprintf("%s - %s", start.Format("3:04 PM"), end.Format("3:04 PM"))
}

func sameDay(day, now time.Time) bool {
	return day.Year() == now.Year() && day.YearDay() == now.YearDay()
}

// alignUp rounds t up to the next 30-minute boundary of its local day.
// Truncate would align against absolute time, which lands off the half-hour
// in zones with offsets like +05:45.
func alignUp(t time.Time) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	elapsed := t.Sub(midnight)
	aligned := elapsed.Truncate(slotAlignment)
	if aligned < elapsed {
		aligned += slotAlignment
	}
	return midnight.Add(aligned)
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
