package gmail

import (
	"encoding/base64"
	"strings"
	"testing"

	"google.golang.org/api/gmail/v1"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestParseMessageHeaders(t *testing.T) {
	msg := &gmail.Message{
		Id:           "m1",
		ThreadId:     "t1",
		Snippet:      "hey there",
		InternalDate: 1717000000000,
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "alice@example.com"},
				{Name: "To", Value: "bob@example.com"},
				{Name: "Subject", Value: "Lunch"},
				{Name: "X-Other", Value: "ignored"},
			},
			Body: &gmail.MessagePartBody{Data: b64("see you at noon")},
		},
	}

	got := parseMessage(msg)
	if got.From != "alice@example.com" || got.To != "bob@example.com" {
		t.Errorf("From/To = %q/%q", got.From, got.To)
	}
	if got.Subject != "Lunch" {
		t.Errorf("Subject = %q", got.Subject)
	}
	if got.Body != "see you at noon" {
		t.Errorf("Body = %q", got.Body)
	}
	if got.Date.IsZero() {
		t.Error("Date not set from InternalDate")
	}
}

func TestParseMessageNilPayload(t *testing.T) {
	got := parseMessage(&gmail.Message{Id: "m1", Snippet: "snip"})
	if got.ID != "m1" || got.Snippet != "snip" {
		t.Errorf("got = %+v", got)
	}
	if got.Body != "" {
		t.Errorf("Body = %q, want empty", got.Body)
	}
}

func TestExtractBodyPrefersPlainText(t *testing.T) {
	part := &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: b64("<p>hi</p>")}},
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("hi")}},
		},
	}

	if got := extractBody(part); got != "hi" {
		t.Errorf("extractBody() = %q, want the plain part", got)
	}
}

func TestExtractBodyFallsBackToHTML(t *testing.T) {
	part := &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: b64("<p>hi</p>")}},
		},
	}

	if got := extractBody(part); got != "<p>hi</p>" {
		t.Errorf("extractBody() = %q, want the html part", got)
	}
}

func TestExtractBodyNestedMultipart(t *testing.T) {
	part := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{MimeType: "application/pdf"},
			{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("deep")}},
				},
			},
		},
	}

	if got := extractBody(part); got != "deep" {
		t.Errorf("extractBody() = %q, want the nested plain part", got)
	}
}

func TestExtractBodyBadBase64(t *testing.T) {
	part := &gmail.MessagePart{
		MimeType: "text/plain",
		Body:     &gmail.MessagePartBody{Data: "!!! not base64 !!!"},
	}

	if got := extractBody(part); got != "" {
		t.Errorf("extractBody() = %q, want empty on decode failure", got)
	}
}

func TestFindPartMatchesCharsetSuffix(t *testing.T) {
	part := &gmail.MessagePart{
		MimeType: "text/plain; charset=UTF-8",
		Body:     &gmail.MessagePartBody{Data: b64("hello")},
	}

	if got := findPart(part, "text/plain"); !strings.Contains(got, "hello") {
		t.Errorf("findPart() = %q", got)
	}
}
