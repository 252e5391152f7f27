// Package testutil provides Func-field mocks for the external collaborators.
// Unset funcs return zero values so tests only wire what they assert on.
package testutil

import (
	"context"
	"time"

	"github.com/aidehq/aide/internal/core"
	"github.com/aidehq/aide/internal/gcal"
	"github.com/aidehq/aide/internal/gmail"
)

// MockGateway implements llm.Gateway.
type MockGateway struct {
	GenerateFunc     func(ctx context.Context, prompt string) (string, error)
	GenerateChatFunc func(ctx context.Context, history []core.Turn, message string) (string, error)

	// Prompts records every Generate prompt for assertions.
	Prompts []string
}

// Generate calls the mock function if set.
func (m *MockGateway) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return "", nil
}

// GenerateChat calls the mock function if set.
func (m *MockGateway) GenerateChat(ctx context.Context, history []core.Turn, message string) (string, error) {
	if m.GenerateChatFunc != nil {
		return m.GenerateChatFunc(ctx, history, message)
	}
	return "", nil
}

// MockCalendar implements gcal.Service.
type MockCalendar struct {
	ListEventsFunc  func(ctx context.Context, timeMin, timeMax time.Time) ([]gcal.Event, error)
	CreateEventFunc func(ctx context.Context, req gcal.CreateEventRequest) (*gcal.CreatedEvent, error)

	// CreatedEvents records every CreateEvent request.
	CreatedEvents []gcal.CreateEventRequest
}

// ListEvents calls the mock function if set.
func (m *MockCalendar) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]gcal.Event, error) {
	if m.ListEventsFunc != nil {
		return m.ListEventsFunc(ctx, timeMin, timeMax)
	}
	return nil, nil
}

// CreateEvent calls the mock function if set.
func (m *MockCalendar) CreateEvent(ctx context.Context, req gcal.CreateEventRequest) (*gcal.CreatedEvent, error) {
	m.CreatedEvents = append(m.CreatedEvents, req)
	if m.CreateEventFunc != nil {
		return m.CreateEventFunc(ctx, req)
	}
	return &gcal.CreatedEvent{ID: "mock-event", Link: "https://calendar.example/mock-event"}, nil
}

// MockMail implements gmail.Service.
type MockMail struct {
	ListMessagesFunc func(ctx context.Context, query, pageToken string, maxResults int64) (*gmail.MessagePage, error)
	GetMessageFunc   func(ctx context.Context, messageID string) (*gmail.Message, error)
	SendFunc         func(ctx context.Context, to, subject, body string) (*gmail.SendResult, error)

	// Sent records every Send call.
	Sent []SentMail
}

// SentMail is one recorded Send call.
type SentMail struct {
	To      string
	Subject string
	Body    string
}

// ListMessages calls the mock function if set.
func (m *MockMail) ListMessages(ctx context.Context, query, pageToken string, maxResults int64) (*gmail.MessagePage, error) {
	if m.ListMessagesFunc != nil {
		return m.ListMessagesFunc(ctx, query, pageToken, maxResults)
	}
	return &gmail.MessagePage{}, nil
}

// GetMessage calls the mock function if set.
func (m *MockMail) GetMessage(ctx context.Context, messageID string) (*gmail.Message, error) {
	if m.GetMessageFunc != nil {
		return m.GetMessageFunc(ctx, messageID)
	}
	return &gmail.Message{ID: messageID}, nil
}

// Send calls the mock function if set.
func (m *MockMail) Send(ctx context.Context, to, subject, body string) (*gmail.SendResult, error) {
	m.Sent = append(m.Sent, SentMail{To: to, Subject: subject, Body: body})
	if m.SendFunc != nil {
		return m.SendFunc(ctx, to, subject, body)
	}
	return &gmail.SendResult{ID: "mock-message"}, nil
}
