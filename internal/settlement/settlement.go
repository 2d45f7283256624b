// Package settlement closes a fully paid checkout. The payment, its order,
// the order lines and the table move to their settled states inside the
// caller's transaction, or none of them do.
package settlement

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/internal/orders"
	"github.com/mylittlestore/pos-backend/internal/payments"
	"github.com/mylittlestore/pos-backend/internal/storetables"
	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/outbox"
	"github.com/mylittlestore/pos-backend/pkg/outbox/payloads"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type Params struct {
	Orders   orders.Repository
	Payments payments.Repository
	Tables   storetables.Repository
	Outbox   outboxPublisher
	Logger   *logger.Logger
	Now      func() time.Time
}

// Settler runs the settlement cascade.
type Settler struct {
	orders   orders.Repository
	payments payments.Repository
	tables   storetables.Repository
	outbox   outboxPublisher
	logg     *logger.Logger
	now      func() time.Time
}

func New(params Params) (*Settler, error) {
	switch {
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payments repository required")
	case params.Tables == nil:
		return nil, fmt.Errorf("store tables repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Settler{
		orders:   params.Orders,
		payments: params.Payments,
		tables:   params.Tables,
		outbox:   params.Outbox,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Settle applies the cascade for payment, which must be fully paid, and its
// locked order. Any failure here means the aggregate is inconsistent and the
// transaction must roll back.
func (s *Settler) Settle(ctx context.Context, tx *gorm.DB, order *models.Order, payment *models.Payment, actor *outbox.ActorRef) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "settlement requires a transaction")
	}
	if !payment.IsFullyPaid() {
		return pkgerrors.New(pkgerrors.CodeInvariant, "payment is not fully paid").
			WithDetails(map[string]any{
				"payment_id":     payment.ID,
				"initial_amount": payment.InitialPaymentAmount,
				"paid_amount":    payment.PaidPaymentAmount,
			})
	}
	if order.ID != payment.OrderID {
		return pkgerrors.New(pkgerrors.CodeInvariant, "payment belongs to another order").
			WithDetails(map[string]any{"payment_id": payment.ID, "order_id": order.ID})
	}

	now := s.now()
	payment.MarkSuccess(now)
	closed, err := s.payments.WithTx(tx).MarkSuccess(ctx, payment.ID, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment success")
	}
	if !closed {
		return pkgerrors.New(pkgerrors.CodeInvariant, "payment already succeeded").
			WithReason(pkgerrors.ReasonPaymentAlreadySuccess).
			WithDetails(map[string]any{"payment_id": payment.ID})
	}

	lines := order.OrderedItems()
	if err := order.PaymentSuccess(now); err != nil {
		return err
	}
	ordersRepo := s.orders.WithTx(tx)
	moved, err := ordersRepo.TransitionStatus(ctx, order.ID, enums.OrderStatusInProgress, enums.OrderStatusPaid, order.EndTime)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeInvariant, "order is not in progress").
			WithReason(pkgerrors.ReasonOrderNotInProgress).
			WithDetails(map[string]any{"order_id": order.ID})
	}

	sold := make([]payloads.SaleLine, 0, len(lines))
	for i := range lines {
		if err := lines[i].MarkPaid(); err != nil {
			return err
		}
		sold = append(sold, payloads.SaleLine{
			OrderItemID: lines[i].ID,
			ItemID:      lines[i].ItemID,
			ItemName:    lines[i].ItemName,
			Price:       lines[i].Price,
			Count:       lines[i].Count,
		})
	}
	flipped, err := ordersRepo.UpdateLinesStatus(ctx, order.ID, enums.OrderItemStatusOrdered, enums.OrderItemStatusPaid, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order items paid")
	}
	if flipped != int64(len(lines)) {
		return pkgerrors.New(pkgerrors.CodeInvariant, "order items changed during settlement").
			WithDetails(map[string]any{"order_id": order.ID, "expected": len(lines), "updated": flipped})
	}

	released, err := s.tables.WithTx(tx).Release(ctx, order.StoreTableID, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release store table")
	}
	if !released && s.logg != nil {
		s.logg.Warn(s.logg.WithField(s.logg.WithOrderID(ctx, order.ID.String()), "store_table_id", order.StoreTableID.String()),
			"store table was not seated with the settled order")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentSettled,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Actor:         actor,
		OccurredAt:    now,
		Data: payloads.PaymentSettledEvent{
			PaymentID:   payment.ID,
			OrderID:     order.ID,
			StoreID:     order.StoreID,
			Amount:      payment.PaidPaymentAmount,
			CompletedAt: now,
			Tenders:     tenders(payment),
		},
	}); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		OccurredAt:    now,
		Data: payloads.OrderPaidEvent{
			OrderID:      order.ID,
			StoreID:      order.StoreID,
			StoreTableID: order.StoreTableID,
			PaymentID:    payment.ID,
			Total:        payment.InitialPaymentAmount,
			StartTime:    order.StartTime,
			EndTime:      now,
			Lines:        sold,
		},
	})
}

func tenders(payment *models.Payment) []payloads.TenderLine {
	out := make([]payloads.TenderLine, 0, len(payment.Methods))
	for _, method := range payment.Methods {
		if method.Status != enums.PaymentMethodStatusPaid {
			continue
		}
		out = append(out, payloads.TenderLine{
			PaymentMethodID: method.ID,
			Type:            method.Type,
			Amount:          method.Amount,
		})
	}
	return out
}
