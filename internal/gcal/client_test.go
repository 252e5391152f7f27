package gcal

import (
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"
)

func TestParseEventTime(t *testing.T) {
	tests := []struct {
		name       string
		dt         *calendar.EventDateTime
		wantZero   bool
		wantAllDay bool
	}{
		{
			name:     "timed event",
			dt:       &calendar.EventDateTime{DateTime: "2026-03-02T14:00:00Z"},
			wantZero: false,
		},
		{
			name:       "all-day event",
			dt:         &calendar.EventDateTime{Date: "2026-03-02"},
			wantZero:   false,
			wantAllDay: true,
		},
		{
			name:     "nil",
			dt:       nil,
			wantZero: true,
		},
		{
			name:     "empty",
			dt:       &calendar.EventDateTime{},
			wantZero: true,
		},
		{
			name:     "garbage datetime",
			dt:       &calendar.EventDateTime{DateTime: "not a time"},
			wantZero: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, allDay := parseEventTime(tt.dt)
			if got.IsZero() != tt.wantZero {
				t.Errorf("parseEventTime() = %v, wantZero %v", got, tt.wantZero)
			}
			if allDay != tt.wantAllDay {
				t.Errorf("allDay = %v, want %v", allDay, tt.wantAllDay)
			}
		})
	}
}

func TestParseEventTimeTimedValue(t *testing.T) {
	got, allDay := parseEventTime(&calendar.EventDateTime{DateTime: "2026-03-02T14:30:00Z"})
	if allDay {
		t.Error("timed event marked all-day")
	}
	want := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parseEventTime() = %v, want %v", got, want)
	}
}

func TestParseEventTimeAllDayIsMidnight(t *testing.T) {
	got, allDay := parseEventTime(&calendar.EventDateTime{Date: "2026-03-02"})
	if !allDay {
		t.Error("date-only event not marked all-day")
	}
	if got.Hour() != 0 || got.Minute() != 0 {
		t.Errorf("all-day start = %v, want midnight", got)
	}
}
