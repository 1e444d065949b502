// internal/service/reconciler/reconciler.go
package reconciler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"qrconnect-service/internal/domain/business"
	"qrconnect-service/internal/domain/event"
	notifdomain "qrconnect-service/internal/domain/notification"
	subdomain "qrconnect-service/internal/domain/subscription"
	xerrors "qrconnect-service/internal/pkg/errors"
	"qrconnect-service/internal/pkg/ref"
	"qrconnect-service/internal/service/notification"
	"qrconnect-service/internal/service/payment"

	"go.uber.org/zap"
)

type SubscriptionStore interface {
	FindByBusiness(ctx context.Context, businessID int64) (*subdomain.Subscription, error)
	FindByProviderSubscriptionID(ctx context.Context, providerSubID string) (*subdomain.Subscription, error)
	Upsert(ctx context.Context, s *subdomain.Subscription) error
	MarkExpired(ctx context.Context, id int64) error
}

type PlanStore interface {
	FindByID(ctx context.Context, id int64) (*subdomain.Plan, error)
	FindByProviderPlanID(ctx context.Context, providerPlanID string) (*subdomain.Plan, error)
}

type LogStore interface {
	TryInsert(ctx context.Context, l *subdomain.Log) (bool, error)
	HasTrialForBusiness(ctx context.Context, businessID int64) (bool, error)
}

type BusinessStore interface {
	FindByID(ctx context.Context, id int64) (*business.Business, error)
	UpdateSubscriptionStatus(ctx context.Context, id int64, status business.SubscriptionStatus) error
}

// ProviderClient is the subset of the payment client the reconciler uses for
// the user-facing subscription surface.
type ProviderClient interface {
	CreateSubscription(ctx context.Context, params payment.SubscriptionParams) (*payment.CreatedSubscription, error)
	CancelSubscription(ctx context.Context, providerSubscriptionID, reason string) error
}

const defaultTrialDays = 7

// Reconciler maps provider subscription events onto the internal lifecycle:
// NoSubscription -> FreeTrial -> Active -> Expired, with renewal back to
// Active. Its three sub-writes are each idempotent, so a crash between them
// is safe to retry to completion on redelivery.
type Reconciler struct {
	subs       SubscriptionStore
	plans      PlanStore
	logs       LogStore
	businesses BusinessStore
	provider   ProviderClient
	notifier   notification.Sender
	logger     *zap.Logger
}

func NewReconciler(
	subs SubscriptionStore,
	plans PlanStore,
	logs LogStore,
	businesses BusinessStore,
	provider ProviderClient,
	notifier notification.Sender,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		subs:       subs,
		plans:      plans,
		logs:       logs,
		businesses: businesses,
		provider:   provider,
		notifier:   notifier,
		logger:     logger,
	}
}

// Activated upserts the subscription to Active for the referenced business.
// Replays converge: the upsert rewrites the same state, the log append is a
// keyed no-op, and the flag write is idempotent.
func (r *Reconciler) Activated(ctx context.Context, ev event.SubscriptionActivated) error {
	biz, err := r.businesses.FindByID(ctx, ev.BusinessID)
	if err != nil {
		return fmt.Errorf("business %d: %w", ev.BusinessID, err)
	}

	plan, err := r.plans.FindByProviderPlanID(ctx, ev.ProviderPlanID)
	if err != nil {
		return fmt.Errorf("plan %q: %w", ev.ProviderPlanID, err)
	}

	sub := &subdomain.Subscription{
		BusinessID:             biz.ID,
		PlanID:                 plan.ID,
		PlanName:               plan.Name,
		Status:                 subdomain.StatusActive,
		PaidAt:                 ev.PeriodStart,
		ExpiresAt:              ev.PeriodEnd,
		ProviderPlanID:         sql.NullString{String: ev.ProviderPlanID, Valid: true},
		ProviderSubscriptionID: sql.NullString{String: ev.ProviderSubscriptionID, Valid: true},
	}
	if err := r.subs.Upsert(ctx, sub); err != nil {
		return err
	}

	inserted, err := r.logs.TryInsert(ctx, &subdomain.Log{
		BusinessID: biz.ID,
		PlanID:     plan.ID,
		Reference:  ev.EventID,
		AmountPaid: plan.PriceMinor,
		StartDate:  ev.PeriodStart,
		EndDate:    ev.PeriodEnd,
		Comment:    plan.Name + " subscription activated",
	})
	if err != nil {
		return err
	}
	if !inserted {
		r.logger.Debug("subscription log already recorded",
			zap.String("reference", ev.EventID))
	}

	if err := r.businesses.UpdateSubscriptionStatus(ctx, biz.ID, business.StatusSubscribed); err != nil {
		return err
	}

	notification.FireAndForget(ctx, r.notifier, r.logger, notifdomain.Message{
		Template:  "subscription_activated",
		Recipient: biz.Email,
		Variables: map[string]string{"plan": plan.Name},
	})

	r.logger.Info("subscription activated",
		zap.Int64("business_id", biz.ID),
		zap.String("provider_subscription_id", ev.ProviderSubscriptionID))
	return nil
}

// Cancelled expires the subscription matching the provider subscription id.
// If no such subscription exists the event is rejected, never fabricated:
// a cancel arriving before its activate must park and rely on redelivery,
// otherwise out-of-order delivery would be silently masked.
func (r *Reconciler) Cancelled(ctx context.Context, ev event.SubscriptionCancelled) error {
	sub, err := r.subs.FindByProviderSubscriptionID(ctx, ev.ProviderSubscriptionID)
	if err != nil {
		return fmt.Errorf("subscription %q: %w", ev.ProviderSubscriptionID, err)
	}

	if err := r.subs.MarkExpired(ctx, sub.ID); err != nil {
		return err
	}

	if err := r.businesses.UpdateSubscriptionStatus(ctx, sub.BusinessID, business.StatusDeactivated); err != nil {
		return err
	}

	r.logger.Info("subscription cancelled",
		zap.Int64("business_id", sub.BusinessID),
		zap.String("provider_subscription_id", ev.ProviderSubscriptionID))
	return nil
}

// GrantFreeTrial starts the one-time trial. Any trial-plan row in the
// subscription log, regardless of status, burns the grant forever.
func (r *Reconciler) GrantFreeTrial(ctx context.Context, businessID, planID int64) (*subdomain.Subscription, error) {
	biz, err := r.businesses.FindByID(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("business %d: %w", businessID, err)
	}

	plan, err := r.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("plan %d: %w", planID, err)
	}
	if !plan.IsTrial {
		return nil, fmt.Errorf("plan %q is not a trial plan: %w", plan.Name, xerrors.ErrInvalidInput)
	}

	used, err := r.logs.HasTrialForBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, xerrors.ErrTrialAlreadyUsed
	}

	if existing, err := r.subs.FindByBusiness(ctx, businessID); err == nil {
		if existing.Status != subdomain.StatusExpired && existing.ExpiresAt.After(time.Now()) {
			return nil, fmt.Errorf("business already has a subscription: %w", xerrors.ErrConflict)
		}
	} else if !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	days := plan.TrialDays
	if days <= 0 {
		days = defaultTrialDays
	}
	now := time.Now()

	sub := &subdomain.Subscription{
		BusinessID: businessID,
		PlanID:     plan.ID,
		PlanName:   plan.Name,
		Status:     subdomain.StatusFreeTrial,
		PaidAt:     now,
		ExpiresAt:  now.AddDate(0, 0, days),
	}
	if err := r.subs.Upsert(ctx, sub); err != nil {
		return nil, err
	}

	inserted, err := r.logs.TryInsert(ctx, &subdomain.Log{
		BusinessID: businessID,
		PlanID:     plan.ID,
		Reference:  ref.Trial(businessID),
		AmountPaid: 0,
		StartDate:  now,
		EndDate:    sub.ExpiresAt,
		Comment:    "Free trial subscription package",
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		// A concurrent grant won the keyed insert; this request's trial is the
		// same one, already burned.
		return nil, xerrors.ErrTrialAlreadyUsed
	}

	if err := r.businesses.UpdateSubscriptionStatus(ctx, businessID, business.StatusFreeTrial); err != nil {
		return nil, err
	}

	notification.FireAndForget(ctx, r.notifier, r.logger, notifdomain.Message{
		Template:  "free_trial_started",
		Recipient: biz.Email,
		Variables: map[string]string{"plan": plan.Name},
	})

	return sub, nil
}

// StartProviderSubscription initiates a paid subscription and returns the
// approval link. The subscription itself is created later by the Activated
// webhook; nothing is written here.
func (r *Reconciler) StartProviderSubscription(ctx context.Context, businessID, planID int64) (string, error) {
	biz, err := r.businesses.FindByID(ctx, businessID)
	if err != nil {
		return "", fmt.Errorf("business %d: %w", businessID, err)
	}

	plan, err := r.plans.FindByID(ctx, planID)
	if err != nil {
		return "", fmt.Errorf("plan %d: %w", planID, err)
	}
	if plan.IsTrial {
		return "", fmt.Errorf("trial plans are not purchasable: %w", xerrors.ErrInvalidInput)
	}

	created, err := r.provider.CreateSubscription(ctx, payment.SubscriptionParams{
		ProviderPlanID: plan.ProviderPlanID,
		BusinessID:     biz.ID,
		GivenName:      biz.FirstName,
		Surname:        biz.LastName,
		Email:          biz.Email,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create provider subscription: %w", err)
	}

	return created.ApprovalURL, nil
}

// CancelProviderSubscription asks the provider to cancel; the internal state
// transition happens when the Cancelled webhook arrives.
func (r *Reconciler) CancelProviderSubscription(ctx context.Context, businessID int64, reason string) error {
	sub, err := r.subs.FindByBusiness(ctx, businessID)
	if err != nil {
		return fmt.Errorf("subscription for business %d: %w", businessID, err)
	}
	if !sub.ProviderSubscriptionID.Valid {
		return fmt.Errorf("subscription has no provider id: %w", xerrors.ErrInvalidInput)
	}
	return r.provider.CancelSubscription(ctx, sub.ProviderSubscriptionID.String, reason)
}
