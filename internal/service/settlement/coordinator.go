// internal/service/settlement/coordinator.go
package settlement

import (
	"context"
	"fmt"

	"qrconnect-service/internal/domain/event"
	notifdomain "qrconnect-service/internal/domain/notification"
	orderdomain "qrconnect-service/internal/domain/order"
	txdomain "qrconnect-service/internal/domain/transaction"
	xerrors "qrconnect-service/internal/pkg/errors"
	"qrconnect-service/internal/service/notification"

	"go.uber.org/zap"
)

type TransactionStore interface {
	TryInsert(ctx context.Context, t *txdomain.Transaction) (bool, error)
	FindByProviderSessionID(ctx context.Context, sessionID string) (*txdomain.Transaction, error)
}

type OrderStore interface {
	FindByID(ctx context.Context, id int64) (*orderdomain.Order, error)
	MarkPaid(ctx context.Context, orderID int64, paymentRef string) error
	FindProductByID(ctx context.Context, id int64) (*orderdomain.Product, error)
}

// WalletLedger is the crediting primitive of the wallet service.
type WalletLedger interface {
	Credit(ctx context.Context, businessID, amountMinor int64, refNo string, orderID int64, subRef string) (bool, error)
}

// Coordinator settles a completed payment: per-line business credits, the
// buyer-facing transaction, and the order transition. The steps are each
// idempotent and ordered so a crash at any point is re-driveable by the
// provider redelivering the event.
type Coordinator struct {
	transactions TransactionStore
	orders       OrderStore
	wallets      WalletLedger
	notifier     notification.Sender
	logger       *zap.Logger
}

func NewCoordinator(
	transactions TransactionStore,
	orders OrderStore,
	wallets WalletLedger,
	notifier notification.Sender,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		transactions: transactions,
		orders:       orders,
		wallets:      wallets,
		notifier:     notifier,
		logger:       logger,
	}
}

// OnPaymentCompleted applies the full settlement for a checkout session.
// Duplicate deliveries stop at the transaction-existence guard; a retry after
// a mid-loop crash skips already-credited lines via their refNo.
func (c *Coordinator) OnPaymentCompleted(ctx context.Context, ev event.PaymentCompleted) error {
	if _, err := c.transactions.FindByProviderSessionID(ctx, ev.SessionID); err == nil {
		c.logger.Debug("settlement already recorded",
			zap.String("session_id", ev.SessionID))
		return nil
	} else if !xerrors.Is(err, xerrors.ErrNotFound) {
		return err
	}

	ord, err := c.orders.FindByID(ctx, ev.OrderID)
	if err != nil {
		return fmt.Errorf("order %d: %w", ev.OrderID, err)
	}

	for _, line := range ord.Lines {
		product, err := c.orders.FindProductByID(ctx, line.ProductID)
		if err != nil {
			return fmt.Errorf("product %d: %w", line.ProductID, err)
		}

		refNo := ev.SessionID + "-" + line.SubRef
		applied, err := c.wallets.Credit(ctx, product.BusinessID, line.SubtotalMinor, refNo, ord.ID, line.SubRef)
		if err != nil {
			return fmt.Errorf("failed to credit line %s: %w", line.SubRef, err)
		}
		if !applied {
			c.logger.Debug("line already credited",
				zap.String("session_id", ev.SessionID),
				zap.String("sub_ref", line.SubRef))
		}
	}

	amount := ev.AmountMinor
	if amount == 0 {
		amount = ord.AmountMinor
	}

	tx := &txdomain.Transaction{
		BuyerID:           ord.BuyerID,
		OrderID:           ord.ID,
		ProviderSessionID: ev.SessionID,
		Type:              txdomain.TypeOrder,
		AmountMinor:       amount,
		Status:            txdomain.StatusCompleted,
		PaymentMethod:     "paypal",
		Comment:           "Order transaction completed",
	}
	if _, err := c.transactions.TryInsert(ctx, tx); err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}

	if err := c.orders.MarkPaid(ctx, ord.ID, ev.SessionID); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	notification.FireAndForget(ctx, c.notifier, c.logger, notifdomain.Message{
		Template:  "order_payment_success",
		Recipient: fmt.Sprintf("buyer:%d", ord.BuyerID),
		Variables: map[string]string{
			"order_id":   fmt.Sprintf("%d", ord.ID),
			"session_id": ev.SessionID,
		},
	})

	c.logger.Info("order settled",
		zap.Int64("order_id", ord.ID),
		zap.String("session_id", ev.SessionID),
		zap.Int("lines", len(ord.Lines)))
	return nil
}
