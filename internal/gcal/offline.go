package gcal

import (
	"context"
	"fmt"
	"time"

	"github.com/aidehq/aide/internal/core"
)

// Offline is the Service used when no Google token is available. Listing
// reports an empty calendar so scheduling still works; creating fails.
type Offline struct{}

func (Offline) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error) {
	return nil, nil
}

func (Offline) CreateEvent(ctx context.Context, req CreateEventRequest) (*CreatedEvent, error) {
	return nil, fmt.Errorf("google calendar is not connected: %w", core.ErrBackendFailed)
}
