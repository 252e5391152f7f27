// Package gmail implements the mail backend used by style analysis and the
// mail composition flow.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
)

// Service is the mail surface the composition flow consumes.
type Service interface {
	ListMessages(ctx context.Context, query, pageToken string, maxResults int64) (*MessagePage, error)
	GetMessage(ctx context.Context, messageID string) (*Message, error)
	Send(ctx context.Context, to, subject, body string) (*SendResult, error)
}

// Client wraps the Gmail API
type Client struct {
	service *gmail.Service
	userID  string // "me" for the authenticated user
}

// NewClient creates a Gmail client
func NewClient(service *gmail.Service) *Client {
	return &Client{service: service, userID: "me"}
}

// MessageSummary identifies a message within a list page
type MessageSummary struct {
	ID       string
	ThreadID string
}

// MessagePage is one page of a message listing
type MessagePage struct {
	Messages      []MessageSummary
	NextPageToken string
}

// Message contains full message details with the decoded plain-text body
type Message struct {
	ID       string
	ThreadID string
	From     string
	To       string
	Subject  string
	Body     string
	Snippet  string
	Date     time.Time
}

// SendResult is the outcome of sending a message
type SendResult struct {
	ID       string
	ThreadID string
}

// ListMessages lists messages matching query, one page at a time.
func (c *Client) ListMessages(ctx context.Context, query, pageToken string, maxResults int64) (*MessagePage, error) {
	call := c.service.Users.Messages.List(c.userID)
	if query != "" {
		call = call.Q(query)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	if maxResults > 0 {
		call = call.MaxResults(maxResults)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	page := &MessagePage{NextPageToken: resp.NextPageToken}
	for _, msg := range resp.Messages {
		page.Messages = append(page.Messages, MessageSummary{ID: msg.Id, ThreadID: msg.ThreadId})
	}
	return page, nil
}

// GetMessage fetches full message details including the decoded body.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	msg, err := c.service.Users.Messages.Get(c.userID, messageID).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return parseMessage(msg), nil
}

// parseMessage converts an API message into our Message struct
func parseMessage(msg *gmail.Message) *Message {
	result := &Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Date:     time.UnixMilli(msg.InternalDate),
	}

	if msg.Payload == nil {
		return result
	}

	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "From":
			result.From = header.Value
		case "To":
			result.To = header.Value
		case "Subject":
			result.Subject = header.Value
		}
	}

	result.Body = extractBody(msg.Payload)
	return result
}

// extractBody walks the MIME tree for the first text/plain part, falling
// back to text/html when no plain part exists.
func extractBody(part *gmail.MessagePart) string {
	if body := findPart(part, "text/plain"); body != "" {
		return body
	}
	return findPart(part, "text/html")
}

func findPart(part *gmail.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.HasPrefix(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(decoded)
	}
	for _, child := range part.Parts {
		if body := findPart(child, mimeType); body != "" {
			return body
		}
	}
	return ""
}

// Send sends a plain-text message.
func (c *Client) Send(ctx context.Context, to, subject, body string) (*SendResult, error) {
	var raw strings.Builder
	raw.WriteString(fmt.Sprintf("To: %s\r\n", to))
	raw.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	raw.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	raw.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	raw.WriteString("\r\n")
	raw.WriteString(body)

	msg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw.String())),
	}

	sent, err := c.service.Users.Messages.Send(c.userID, msg).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &SendResult{ID: sent.Id, ThreadID: sent.ThreadId}, nil
}
