package messaging

import (
	"context"

	"github.com/pixelatlas/conquest-engine/internal/domain"
)

// Publisher defines the interface for publishing conquest events to the
// message broker. Publishing is best-effort: the ownership transfer is
// already committed when the event goes out.
type Publisher interface {
	// PublishOwnershipChanged publishes an ownership change event
	PublishOwnershipChanged(ctx context.Context, event *domain.OwnershipChangedEvent) error
	// Close closes the connection
	Close()
}
