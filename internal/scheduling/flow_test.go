package scheduling

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aidehq/aide/internal/core"
	"github.com/aidehq/aide/internal/gcal"
	"github.com/aidehq/aide/internal/nlu"
	"github.com/aidehq/aide/internal/testutil"
)

// offlineGateway always fails so flows exercise the deterministic paths.
func offlineGateway() *testutil.MockGateway {
	return &testutil.MockGateway{
		GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("offline")
		},
	}
}

func testFlow(t *testing.T, cal *testutil.MockCalendar) *Flow {
	t.Helper()
	a := NewAnalyzer(offlineGateway(), cal)
	t.Cleanup(a.Close)
	return NewFlow(a, cal, 0)
}

func TestDateOnlyGoesToSuggesting(t *testing.T) {
	f := testFlow(t, &testutil.MockCalendar{})

	reply := f.Activate(context.Background(), nlu.Entities{Date: "tomorrow"})
	choice, ok := reply.(core.NeedsChoice)
	if !ok {
		t.Fatalf("reply = %T, want NeedsChoice", reply)
	}
	if len(choice.Suggestions) == 0 {
		t.Error("no suggestions offered")
	}
	if f.stage != stageSuggesting {
		t.Errorf("stage = %s, want suggesting_time", f.stage)
	}
}

func TestFullDateTimeGoesToConfirming(t *testing.T) {
	cal := &testutil.MockCalendar{}
	f := testFlow(t, cal)

	reply := f.Activate(context.Background(), nlu.Entities{
		Date: "tomorrow", Time: "9am", Title: "Standup",
	})
	conf, ok := reply.(core.NeedsConfirmation)
	if !ok {
		t.Fatalf("reply = %T, want NeedsConfirmation", reply)
	}
	if !strings.Contains(conf.Text, "9:00 AM") {
		t.Errorf("confirmation text %q does not show 9:00 AM", conf.Text)
	}
	if !strings.Contains(conf.Text, "Standup") {
		t.Errorf("confirmation text %q does not show the title", conf.Text)
	}
	if conf.PendingID == "" {
		t.Error("confirmation has no pending id")
	}
}

func TestPastTimeFallsBackToSuggestions(t *testing.T) {
	f := testFlow(t, &testutil.MockCalendar{})

	// Yesterday at 9am is in the past
	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	reply := f.Activate(context.Background(), nlu.Entities{Date: yesterday, Time: "9am"})
	if _, ok := reply.(core.NeedsConfirmation); ok {
		t.Error("past literal time was confirmed instead of re-suggested")
	}
}

func TestConflictingTimeFallsBackToSuggestions(t *testing.T) {
	tomorrow9 := time.Now().AddDate(0, 0, 1)
	tomorrow9 = time.Date(tomorrow9.Year(), tomorrow9.Month(), tomorrow9.Day(), 9, 0, 0, 0, time.Local)

	cal := &testutil.MockCalendar{
		ListEventsFunc: func(ctx context.Context, timeMin, timeMax time.Time) ([]gcal.Event, error) {
			return []gcal.Event{
				{Summary: "Existing", Start: tomorrow9, End: tomorrow9.Add(time.Hour)},
			}, nil
		},
	}
	f := testFlow(t, cal)

	reply := f.Activate(context.Background(), nlu.Entities{Date: "tomorrow", Time: "9am"})
	if _, ok := reply.(core.NeedsConfirmation); ok {
		t.Error("conflicting literal time was confirmed instead of re-suggested")
	}
}

func TestNothingResolvesAsksForDate(t *testing.T) {
	f := testFlow(t, &testutil.MockCalendar{})

	reply := f.Activate(context.Background(), nlu.Entities{Title: "Catchup"})
	if _, ok := reply.(core.Plain); !ok {
		t.Fatalf("reply = %T, want Plain date prompt", reply)
	}
	if f.stage != stageCollectingDate {
		t.Errorf("stage = %s, want collecting_date", f.stage)
	}

	// An unparseable answer re-prompts without a stage change
	f.HandleTurn(context.Background(), "whenever suits")
	if f.stage != stageCollectingDate {
		t.Errorf("stage = %s after bad date, want collecting_date", f.stage)
	}

	// A date moves on to suggestions
	reply = f.HandleTurn(context.Background(), "tomorrow")
	if _, ok := reply.(core.NeedsChoice); !ok {
		t.Errorf("reply = %T after date, want NeedsChoice", reply)
	}
}

func TestEmbeddedDateUsesFlowClock(t *testing.T) {
	f := testFlow(t, &testutil.MockCalendar{})
	// A Wednesday, far from the real clock
	f.now = func() time.Time { return time.Date(2026, 3, 4, 12, 0, 0, 0, time.Local) }

	f.Activate(context.Background(), nlu.Entities{Title: "Catchup"})

	reply := f.HandleTurn(context.Background(), "maybe friday works for me")
	if _, ok := reply.(core.NeedsChoice); !ok {
		t.Fatalf("reply = %T, want NeedsChoice", reply)
	}
	want := time.Date(2026, 3, 6, 0, 0, 0, 0, time.Local)
	if !f.data.date.Equal(want) {
		t.Errorf("resolved date = %v, want %v (friday after the flow clock)", f.data.date, want)
	}
}

func TestSelectionBindsSlot(t *testing.T) {
	f := testFlow(t, &testutil.MockCalendar{})

	f.Activate(context.Background(), nlu.Entities{Date: "tomorrow", Title: "Review"})

	reply := f.HandleTurn(context.Background(), "2")
	conf, ok := reply.(core.NeedsConfirmation)
	if !ok {
		t.Fatalf("reply = %T, want NeedsConfirmation", reply)
	}
	if !f.data.start.Equal(f.data.suggestions[1].Start) {
		t.Errorf("bound start %v, want suggestion 2 start %v", f.data.start, f.data.suggestions[1].Start)
	}
	if conf.EventName != "Review" {
		t.Errorf("event name = %q, want Review", conf.EventName)
	}
}

func TestInvalidSelectionReprompts(t *testing.T) {
	f := testFlow(t, &testutil.MockCalendar{})
	f.Activate(context.Background(), nlu.Entities{Date: "tomorrow"})

	for _, input := range []string{"9", "0", "first one", ""} {
		reply := f.HandleTurn(context.Background(), input)
		if _, ok := reply.(core.Plain); !ok {
			t.Errorf("reply to %q = %T, want Plain re-prompt", input, reply)
		}
		if f.stage != stageSuggesting {
			t.Errorf("stage after %q = %s, want suggesting_time", input, f.stage)
		}
	}
}

func TestConfirmationRequiresExactYes(t *testing.T) {
	cal := &testutil.MockCalendar{}
	f := testFlow(t, cal)

	f.Activate(context.Background(), nlu.Entities{Date: "tomorrow", Time: "9am", Title: "Standup"})

	// Substring matches are not accepted here
	for _, input := range []string{"yes please", "sure", "yep"} {
		reply := f.HandleTurn(context.Background(), input)
		if _, ok := reply.(core.NeedsConfirmation); !ok {
			t.Errorf("reply to %q = %T, want re-prompt", input, reply)
		}
	}
	if len(cal.CreatedEvents) != 0 {
		t.Fatalf("%d events created without an exact yes", len(cal.CreatedEvents))
	}

	reply := f.HandleTurn(context.Background(), "  YES  ")
	if _, ok := reply.(core.Plain); !ok {
		t.Fatalf("reply to yes = %T, want Plain", reply)
	}
	if len(cal.CreatedEvents) != 1 {
		t.Fatalf("%d events created, want exactly 1", len(cal.CreatedEvents))
	}
	if f.Active() {
		t.Error("flow still active after event creation")
	}
}

func TestConfirmationNoCancels(t *testing.T) {
	cal := &testutil.MockCalendar{}
	f := testFlow(t, cal)

	f.Activate(context.Background(), nlu.Entities{Date: "tomorrow", Time: "9am"})
	f.HandleTurn(context.Background(), "no")

	if f.Active() {
		t.Error("flow still active after no")
	}
	if len(cal.CreatedEvents) != 0 {
		t.Errorf("%d events created after no, want 0", len(cal.CreatedEvents))
	}
}

func TestScheduleEndToEnd(t *testing.T) {
	cal := &testutil.MockCalendar{}
	f := testFlow(t, cal)

	reply := f.Activate(context.Background(), nlu.Entities{
		Date: "tomorrow", Time: "9am", Title: "Standup",
	})
	conf, ok := reply.(core.NeedsConfirmation)
	if !ok {
		t.Fatalf("reply = %T, want NeedsConfirmation", reply)
	}

	reply = f.HandleConfirmation(context.Background(), conf.PendingID, "yes")
	if _, ok := reply.(core.Plain); !ok {
		t.Fatalf("reply = %T, want Plain success", reply)
	}

	if len(cal.CreatedEvents) != 1 {
		t.Fatalf("%d createEvent calls, want exactly 1", len(cal.CreatedEvents))
	}
	req := cal.CreatedEvents[0]
	if req.Summary != "Standup" {
		t.Errorf("created title = %q, want Standup", req.Summary)
	}

	tomorrow := time.Now().AddDate(0, 0, 1)
	wantStart := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 9, 0, 0, 0, time.Local)
	if !req.Start.Equal(wantStart) {
		t.Errorf("created start = %v, want %v", req.Start, wantStart)
	}
	if !req.End.Equal(wantStart.Add(time.Hour)) {
		t.Errorf("created end = %v, want %v", req.End, wantStart.Add(time.Hour))
	}
}

func TestFlowTimeout(t *testing.T) {
	f := testFlow(t, &testutil.MockCalendar{})
	f.Activate(context.Background(), nlu.Entities{Date: "tomorrow"})

	// Push the clock past the idle limit
	f.now = func() time.Time { return time.Now().Add(DefaultTimeout + time.Minute) }

	reply := f.HandleTurn(context.Background(), "1")
	plain, ok := reply.(core.Plain)
	if !ok {
		t.Fatalf("reply = %T, want Plain timeout message", reply)
	}
	if !strings.Contains(strings.ToLower(plain.Text), "cleared") {
		t.Errorf("timeout message = %q", plain.Text)
	}
	if f.Active() {
		t.Error("flow still active after timeout")
	}
}

func TestBackendFailureResetsFlow(t *testing.T) {
	cal := &testutil.MockCalendar{
		CreateEventFunc: func(ctx context.Context, req gcal.CreateEventRequest) (*gcal.CreatedEvent, error) {
			return nil, errors.New("backend down")
		},
	}
	f := testFlow(t, cal)

	f.Activate(context.Background(), nlu.Entities{Date: "tomorrow", Time: "9am"})
	reply := f.HandleTurn(context.Background(), "yes")

	if _, ok := reply.(core.Plain); !ok {
		t.Fatalf("reply = %T, want Plain recovery message", reply)
	}
	if f.Active() {
		t.Error("flow left active after a backend failure")
	}
}
