// internal/repository/postgres/event_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qrconnect-service/internal/domain/event"
	xerrors "qrconnect-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepository struct {
	db *pgxpool.Pool
}

func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// TryInsertProcessing attempts the conditional insert that elects exactly one
// processor for a provider event id. It returns true when this caller won the
// insert and owns the event.
func (r *EventRepository) TryInsertProcessing(ctx context.Context, ev *event.WebhookEvent) (bool, error) {
	query := `
		INSERT INTO webhook_events (provider_event_id, event_type, resource_type, payload, status, received_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (provider_event_id) DO NOTHING
		RETURNING id, received_at
	`

	err := r.db.QueryRow(ctx, query,
		ev.ProviderEventID, ev.EventType, ev.ResourceType, ev.Payload, event.StatusProcessing,
	).Scan(&ev.ID, &ev.ReceivedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert webhook event: %w", err)
	}
	return true, nil
}

// TryReclaimFailed flips a failed event back to processing so a redelivery can
// re-drive it. Only one concurrent redelivery wins the flip.
func (r *EventRepository) TryReclaimFailed(ctx context.Context, providerEventID string) (bool, error) {
	query := `
		UPDATE webhook_events
		SET status = $2, parked_reason = NULL
		WHERE provider_event_id = $1 AND status = $3
	`

	tag, err := r.db.Exec(ctx, query, providerEventID, event.StatusProcessing, event.StatusFailed)
	if err != nil {
		return false, fmt.Errorf("failed to reclaim webhook event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// TryReclaimStale takes over a processing row whose claim is older than
// maxAge, covering a processor that crashed between claim and completion.
// Resetting received_at refreshes the winner's claim; only one concurrent
// redelivery wins the flip.
func (r *EventRepository) TryReclaimStale(ctx context.Context, providerEventID string, maxAge time.Duration) (bool, error) {
	query := `
		UPDATE webhook_events
		SET received_at = NOW()
		WHERE provider_event_id = $1
		  AND status = $2
		  AND received_at < NOW() - make_interval(secs => $3)
	`

	tag, err := r.db.Exec(ctx, query, providerEventID, event.StatusProcessing, maxAge.Seconds())
	if err != nil {
		return false, fmt.Errorf("failed to reclaim stale webhook event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FindByProviderEventID retrieves an event row by its provider-assigned id.
func (r *EventRepository) FindByProviderEventID(ctx context.Context, providerEventID string) (*event.WebhookEvent, error) {
	query := `
		SELECT id, provider_event_id, event_type, resource_type, payload, status, parked_reason, received_at, processed_at
		FROM webhook_events
		WHERE provider_event_id = $1
	`

	var ev event.WebhookEvent
	err := r.db.QueryRow(ctx, query, providerEventID).Scan(
		&ev.ID, &ev.ProviderEventID, &ev.EventType, &ev.ResourceType,
		&ev.Payload, &ev.Status, &ev.ParkedReason, &ev.ReceivedAt, &ev.ProcessedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find webhook event: %w", err)
	}
	return &ev, nil
}

// SetStatus finalizes an event row after processing.
func (r *EventRepository) SetStatus(ctx context.Context, providerEventID string, status event.Status, parkedReason string) error {
	query := `
		UPDATE webhook_events
		SET status = $2,
		    parked_reason = NULLIF($3, ''),
		    processed_at = CASE WHEN $2 IN ('processed', 'ignored') THEN NOW() ELSE processed_at END
		WHERE provider_event_id = $1
	`

	tag, err := r.db.Exec(ctx, query, providerEventID, status, parkedReason)
	if err != nil {
		return fmt.Errorf("failed to update webhook event status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
