package audit

import (
	"context"
	"time"

	"presence/pkg/requestcontext"
)

// Publisher captures structured audit events. It is append-only and delegates
// persistence to a Store so tests can swap sinks easily.
type Publisher struct {
	store Store
	clock func() time.Time
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store, clock: time.Now}
}

// Emit fills timestamp, category and request correlation before appending.
func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = p.clock()
	}
	if base.Category == "" {
		base.Category = AuditEvent(base.Action).Category()
	}
	if base.RequestID == "" {
		base.RequestID = requestcontext.RequestID(ctx)
	}
	if base.ClientIP == "" {
		base.ClientIP = requestcontext.ClientIP(ctx)
	}
	return p.store.Append(ctx, base)
}
