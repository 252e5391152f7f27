// Package gcal implements the Google Calendar backend used by the
// scheduling flow.
package gcal

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
)

// Service is the calendar surface the scheduling flow consumes.
type Service interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error)
	CreateEvent(ctx context.Context, req CreateEventRequest) (*CreatedEvent, error)
}

// Client wraps the Google Calendar API
type Client struct {
	service    *calendar.Service
	calendarID string
}

// NewClient creates a Calendar client against the primary calendar
func NewClient(service *calendar.Service) *Client {
	return &Client{service: service, calendarID: "primary"}
}

// Event is a calendar event. AllDay events carry date-only start/end values
// normalized to midnight; slot finding excludes them from blocking.
type Event struct {
	ID      string    `json:"id"`
	Summary string    `json:"summary"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	AllDay  bool      `json:"all_day"`
	Status  string    `json:"status"`
	Link    string    `json:"link"`
}

// ListEvents retrieves events in [timeMin, timeMax), expanded to single
// events and ordered by start time.
func (c *Client) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error) {
	resp, err := c.service.Events.List(c.calendarID).
		Context(ctx).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Status == "cancelled" {
			continue
		}
		ev := Event{
			ID:      item.Id,
			Summary: item.Summary,
			Status:  item.Status,
			Link:    item.HtmlLink,
		}
		ev.Start, ev.AllDay = parseEventTime(item.Start)
		ev.End, _ = parseEventTime(item.End)
		events = append(events, ev)
	}
	return events, nil
}

// parseEventTime handles the API's two time encodings: DateTime for timed
// events, Date for all-day events.
func parseEventTime(dt *calendar.EventDateTime) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t, false
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", dt.Date, time.Local)
		if err != nil {
			return time.Time{}, true
		}
		return t, true
	}
	return time.Time{}, false
}

// CreateEventRequest contains parameters for creating an event
type CreateEventRequest struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string // email addresses
}

// CreatedEvent is the result of event creation
type CreatedEvent struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}

// CreateEvent creates a timed event on the primary calendar
func (c *Client) CreateEvent(ctx context.Context, req CreateEventRequest) (*CreatedEvent, error) {
	event := &calendar.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start:       &calendar.EventDateTime{DateTime: req.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: req.End.Format(time.RFC3339)},
	}
	for _, email := range req.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	created, err := c.service.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	return &CreatedEvent{ID: created.Id, Link: created.HtmlLink}, nil
}
