package gmail

import (
	"context"
	"fmt"

	"github.com/aidehq/aide/internal/core"
)

// Offline is the Service used when no Google token is available. History
// lookups come back empty so drafting still works; sending fails.
type Offline struct{}

func (Offline) ListMessages(ctx context.Context, query, pageToken string, maxResults int64) (*MessagePage, error) {
	return &MessagePage{}, nil
}

func (Offline) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	return nil, fmt.Errorf("gmail is not connected: %w", core.ErrBackendFailed)
}

func (Offline) Send(ctx context.Context, to, subject, body string) (*SendResult, error) {
	return nil, fmt.Errorf("gmail is not connected: %w", core.ErrMailNotSent)
}
