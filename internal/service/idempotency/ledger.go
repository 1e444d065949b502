// internal/service/idempotency/ledger.go
package idempotency

import (
	"context"
	"fmt"
	"time"

	"qrconnect-service/internal/domain/event"
	xerrors "qrconnect-service/internal/pkg/errors"

	"go.uber.org/zap"
)

type Decision int

const (
	DecisionAccepted Decision = iota
	DecisionAlreadyProcessed
	DecisionInProgress
)

func (d Decision) String() string {
	switch d {
	case DecisionAccepted:
		return "accepted"
	case DecisionAlreadyProcessed:
		return "already_processed"
	case DecisionInProgress:
		return "in_progress"
	default:
		return "unknown"
	}
}

// EventStore is the conditional-write surface the ledger needs. The postgres
// EventRepository implements it.
type EventStore interface {
	TryInsertProcessing(ctx context.Context, ev *event.WebhookEvent) (bool, error)
	TryReclaimFailed(ctx context.Context, providerEventID string) (bool, error)
	TryReclaimStale(ctx context.Context, providerEventID string, maxAge time.Duration) (bool, error)
	FindByProviderEventID(ctx context.Context, providerEventID string) (*event.WebhookEvent, error)
	SetStatus(ctx context.Context, providerEventID string, status event.Status, parkedReason string) error
}

// staleClaimAge bounds how long a processing claim is trusted. A processor
// that crashed between claim and completion never finalizes its row, so a
// redelivery arriving after this window takes the claim over.
const staleClaimAge = 5 * time.Minute

// Ledger elects exactly one processor per provider event id. Everything rests
// on the store's conditional writes; the ledger itself holds no state.
type Ledger struct {
	store  EventStore
	logger *zap.Logger
}

func NewLedger(store EventStore, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, logger: logger}
}

// TryBegin claims an event for processing. Exactly one concurrent caller per
// provider event id observes DecisionAccepted; failed events are reclaimable
// so provider redelivery converges to full application.
func (l *Ledger) TryBegin(ctx context.Context, ev *event.WebhookEvent) (Decision, error) {
	inserted, err := l.store.TryInsertProcessing(ctx, ev)
	if err != nil {
		return 0, fmt.Errorf("failed to claim event: %w", err)
	}
	if inserted {
		return DecisionAccepted, nil
	}

	existing, err := l.store.FindByProviderEventID(ctx, ev.ProviderEventID)
	if err != nil {
		// The insert lost to a row we now cannot read; surface as transient so
		// the provider redelivers.
		return 0, fmt.Errorf("failed to load claimed event: %w", err)
	}

	switch existing.Status {
	case event.StatusProcessed, event.StatusIgnored:
		return DecisionAlreadyProcessed, nil
	case event.StatusFailed:
		reclaimed, err := l.store.TryReclaimFailed(ctx, ev.ProviderEventID)
		if err != nil {
			return 0, fmt.Errorf("failed to reclaim event: %w", err)
		}
		if reclaimed {
			l.logger.Info("reclaimed failed event for retry",
				zap.String("provider_event_id", ev.ProviderEventID))
			return DecisionAccepted, nil
		}
		return DecisionInProgress, nil
	default:
		reclaimed, err := l.store.TryReclaimStale(ctx, ev.ProviderEventID, staleClaimAge)
		if err != nil {
			return 0, fmt.Errorf("failed to reclaim stale event: %w", err)
		}
		if reclaimed {
			l.logger.Warn("reclaimed stale processing claim",
				zap.String("provider_event_id", ev.ProviderEventID),
				zap.Duration("max_age", staleClaimAge))
			return DecisionAccepted, nil
		}
		return DecisionInProgress, nil
	}
}

// Complete finalizes an accepted event. A nil handler error marks it
// processed; otherwise the row is left failed (retryable) with the reason.
func (l *Ledger) Complete(ctx context.Context, providerEventID string, handlerErr error) error {
	if handlerErr == nil {
		return l.store.SetStatus(ctx, providerEventID, event.StatusProcessed, "")
	}
	return l.store.SetStatus(ctx, providerEventID, event.StatusFailed, handlerErr.Error())
}

// Ignore marks an acknowledged-but-unhandled event.
func (l *Ledger) Ignore(ctx context.Context, providerEventID string) error {
	return l.store.SetStatus(ctx, providerEventID, event.StatusIgnored, "")
}

// IsDuplicate reports whether an error represents the benign duplicate cases.
func IsDuplicate(err error) bool {
	return xerrors.Is(err, xerrors.ErrAlreadyProcessed) || xerrors.Is(err, xerrors.ErrInProgress)
}
