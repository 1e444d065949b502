// internal/service/intake/intake.go
package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"qrconnect-service/internal/domain/event"
	xerrors "qrconnect-service/internal/pkg/errors"
	"qrconnect-service/internal/service/idempotency"
	"qrconnect-service/internal/service/payment"

	"go.uber.org/zap"
)

// Verifier validates a webhook delivery against the provider.
type Verifier interface {
	VerifySignature(ctx context.Context, headers http.Header, body []byte) (bool, error)
}

type SubscriptionHandler interface {
	Activated(ctx context.Context, ev event.SubscriptionActivated) error
	Cancelled(ctx context.Context, ev event.SubscriptionCancelled) error
}

type PaymentHandler interface {
	OnPaymentCompleted(ctx context.Context, ev event.PaymentCompleted) error
}

// Service is the webhook entry point: verify, canonicalize, gate on the
// idempotency ledger, dispatch.
type Service struct {
	verifier   Verifier
	ledger     *idempotency.Ledger
	reconciler SubscriptionHandler
	settlement PaymentHandler
	logger     *zap.Logger
}

func NewService(
	verifier Verifier,
	ledger *idempotency.Ledger,
	reconciler SubscriptionHandler,
	settlement PaymentHandler,
	logger *zap.Logger,
) *Service {
	return &Service{
		verifier:   verifier,
		ledger:     ledger,
		reconciler: reconciler,
		settlement: settlement,
		logger:     logger,
	}
}

// Provider wire shapes.

type envelope struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

type subscriptionResource struct {
	ID          string    `json:"id"`
	CustomID    string    `json:"custom_id"`
	PlanID      string    `json:"plan_id"`
	StartTime   time.Time `json:"start_time"`
	BillingInfo struct {
		NextBillingTime time.Time `json:"next_billing_time"`
	} `json:"billing_info"`
}

type saleResource struct {
	ID       string `json:"id"`
	CustomID string `json:"custom_id"`
	State    string `json:"state"`
	Amount   struct {
		Total    string `json:"total"`
		Currency string `json:"currency"`
	} `json:"amount"`
}

// VerifyAndParse validates the delivery and converts it into the canonical
// event union. It has zero side effects: a bad signature or malformed payload
// leaves no trace anywhere.
func (s *Service) VerifyAndParse(ctx context.Context, headers http.Header, body []byte) (event.Event, *event.WebhookEvent, error) {
	ok, err := s.verifier.VerifySignature(ctx, headers, body)
	if err != nil {
		return nil, nil, fmt.Errorf("signature verification errored: %w", err)
	}
	if !ok {
		return nil, nil, xerrors.ErrVerificationFailed
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, fmt.Errorf("malformed webhook body: %w", xerrors.ErrInvalidInput)
	}
	if env.ID == "" || env.EventType == "" {
		return nil, nil, fmt.Errorf("webhook body missing id or event_type: %w", xerrors.ErrInvalidInput)
	}

	record := &event.WebhookEvent{
		ProviderEventID: env.ID,
		EventType:       env.EventType,
		ResourceType:    env.ResourceType,
		Payload:         append(json.RawMessage(nil), body...),
	}

	ev, err := canonicalize(env)
	if err != nil {
		return nil, nil, err
	}
	return ev, record, nil
}

func canonicalize(env envelope) (event.Event, error) {
	switch env.EventType {
	case "BILLING.SUBSCRIPTION.ACTIVATED":
		if env.ResourceType != "subscription" {
			return event.Unknown{EventID: env.ID, EventType: env.EventType}, nil
		}
		var res subscriptionResource
		if err := json.Unmarshal(env.Resource, &res); err != nil {
			return nil, fmt.Errorf("malformed subscription resource: %w", xerrors.ErrInvalidInput)
		}
		businessID, err := strconv.ParseInt(res.CustomID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid custom_id %q: %w", res.CustomID, xerrors.ErrInvalidInput)
		}
		return event.SubscriptionActivated{
			EventID:                env.ID,
			ProviderSubscriptionID: res.ID,
			BusinessID:             businessID,
			ProviderPlanID:         res.PlanID,
			PeriodStart:            res.StartTime,
			PeriodEnd:              res.BillingInfo.NextBillingTime,
		}, nil

	case "BILLING.SUBSCRIPTION.CANCELLED":
		if env.ResourceType != "subscription" {
			return event.Unknown{EventID: env.ID, EventType: env.EventType}, nil
		}
		var res subscriptionResource
		if err := json.Unmarshal(env.Resource, &res); err != nil {
			return nil, fmt.Errorf("malformed subscription resource: %w", xerrors.ErrInvalidInput)
		}
		// custom_id is informational here; cancellation is keyed on the
		// provider subscription id alone.
		businessID, _ := strconv.ParseInt(res.CustomID, 10, 64)
		return event.SubscriptionCancelled{
			EventID:                env.ID,
			ProviderSubscriptionID: res.ID,
			BusinessID:             businessID,
		}, nil

	case "PAYMENT.SALE.COMPLETED":
		var res saleResource
		if err := json.Unmarshal(env.Resource, &res); err != nil {
			return nil, fmt.Errorf("malformed sale resource: %w", xerrors.ErrInvalidInput)
		}
		orderID, err := strconv.ParseInt(res.CustomID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid order reference %q: %w", res.CustomID, xerrors.ErrInvalidInput)
		}
		var amountMinor int64
		if res.Amount.Total != "" {
			amountMinor, err = payment.DecimalToMinor(res.Amount.Total)
			if err != nil {
				return nil, fmt.Errorf("%v: %w", err, xerrors.ErrInvalidInput)
			}
		}
		return event.PaymentCompleted{
			EventID:     env.ID,
			SessionID:   res.ID,
			OrderID:     orderID,
			AmountMinor: amountMinor,
			Currency:    res.Amount.Currency,
		}, nil

	default:
		return event.Unknown{EventID: env.ID, EventType: env.EventType}, nil
	}
}

// Process drives one delivery end to end. Duplicate and concurrent
// redeliveries return nil so the endpoint acknowledges them; handler failures
// leave the event retryable and surface as errors for a non-2xx status.
func (s *Service) Process(ctx context.Context, headers http.Header, body []byte) error {
	ev, record, err := s.VerifyAndParse(ctx, headers, body)
	if err != nil {
		return err
	}

	decision, err := s.ledger.TryBegin(ctx, record)
	if err != nil {
		return err
	}

	switch decision {
	case idempotency.DecisionAlreadyProcessed:
		s.logger.Debug("duplicate delivery acknowledged",
			zap.String("provider_event_id", record.ProviderEventID))
		return nil
	case idempotency.DecisionInProgress:
		s.logger.Debug("concurrent delivery acknowledged",
			zap.String("provider_event_id", record.ProviderEventID))
		return nil
	}

	if unknown, ok := ev.(event.Unknown); ok {
		s.logger.Info("unhandled event type acknowledged",
			zap.String("provider_event_id", unknown.EventID),
			zap.String("event_type", unknown.EventType))
		return s.ledger.Ignore(ctx, record.ProviderEventID)
	}

	handlerErr := s.dispatch(ctx, ev)
	if err := s.ledger.Complete(ctx, record.ProviderEventID, handlerErr); err != nil {
		s.logger.Error("failed to finalize event",
			zap.String("provider_event_id", record.ProviderEventID),
			zap.Error(err))
		if handlerErr == nil {
			return err
		}
	}

	if handlerErr != nil {
		s.logger.Error("event handling failed, left retryable",
			zap.String("provider_event_id", record.ProviderEventID),
			zap.String("event_type", record.EventType),
			zap.Error(handlerErr))
		return handlerErr
	}

	s.logger.Info("event processed",
		zap.String("provider_event_id", ev.ProviderID()),
		zap.String("event_type", ev.Type()))
	return nil
}

func (s *Service) dispatch(ctx context.Context, ev event.Event) error {
	switch e := ev.(type) {
	case event.SubscriptionActivated:
		return s.reconciler.Activated(ctx, e)
	case event.SubscriptionCancelled:
		return s.reconciler.Cancelled(ctx, e)
	case event.PaymentCompleted:
		return s.settlement.OnPaymentCompleted(ctx, e)
	default:
		return fmt.Errorf("unexpected event variant %T", ev)
	}
}
