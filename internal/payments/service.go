package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/internal/orders"
	"github.com/mylittlestore/pos-backend/internal/stores"
	"github.com/mylittlestore/pos-backend/pkg/db"
	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/metrics"
	"github.com/mylittlestore/pos-backend/pkg/money"
	"github.com/mylittlestore/pos-backend/pkg/outbox"
	"github.com/mylittlestore/pos-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service drives checkout of an order.
type Service interface {
	Start(ctx context.Context, input StartPaymentInput) (uuid.UUID, error)
	Abort(ctx context.Context, input AbortPaymentInput) (bool, error)
	Get(ctx context.Context, id, orderID, storeID uuid.UUID) (*PaymentDTO, error)
	Finish(ctx context.Context, id, orderID, storeID uuid.UUID) (bool, error)
	MethodTypes() []enums.PaymentMethodType
}

type ServiceParams struct {
	Repo    Repository
	Orders  orders.Repository
	Stores  stores.Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Money   money.Formatter
	Metrics *metrics.UseCaseMetrics
}

type service struct {
	repo    Repository
	orders  orders.Repository
	stores  stores.Repository
	tx      txRunner
	outbox  outboxPublisher
	money   money.Formatter
	metrics *metrics.UseCaseMetrics
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("payments repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Stores == nil:
		return nil, fmt.Errorf("stores repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    params.Repo,
		orders:  params.Orders,
		stores:  params.Stores,
		tx:      params.Tx,
		outbox:  params.Outbox,
		money:   params.Money,
		metrics: params.Metrics,
	}, nil
}

// Start snapshots the order total into a new payment and moves the order to
// in_progress. Later line edits are blocked by the payment's existence.
func (s *service) Start(ctx context.Context, input StartPaymentInput) (paymentID uuid.UUID, err error) {
	defer s.metrics.Track("start_payment", time.Now(), &err)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		order, err := orders.LoadActive(ctx, ordersRepo, input.OrderID, input.StoreID)
		if err != nil {
			return err
		}
		if len(order.OrderedItems()) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order has no ordered items").
				WithReason(pkgerrors.ReasonNoSuchOrderItem).
				WithDetails(map[string]any{"order_id": order.ID})
		}
		if _, err := stores.LoadOpen(ctx, s.stores.WithTx(tx), input.StoreID); err != nil {
			return err
		}
		if err := order.EnsureNoPayment(); err != nil {
			return err
		}
		if err := order.StartCheckout(); err != nil {
			return err
		}

		payment := &models.Payment{
			ID:                   uuid.New(),
			OrderID:              order.ID,
			InitialPaymentAmount: order.Total(),
			Status:               enums.PaymentStatusInProgress,
		}
		if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "payment already exists").
					WithReason(pkgerrors.ReasonPaymentAlreadyExists).
					WithDetails(map[string]any{"order_id": order.ID, "store_table_id": order.StoreTableID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		ok, err := ordersRepo.TransitionStatus(ctx, order.ID, enums.OrderStatusUsing, enums.OrderStatusInProgress, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start checkout")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently").
				WithDetails(map[string]any{"order_id": order.ID})
		}

		paymentID = payment.ID
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentStarted,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         actor(input.MemberID, input.StoreID),
			Data: payloads.PaymentStartedEvent{
				PaymentID:            payment.ID,
				OrderID:              order.ID,
				StoreID:              order.StoreID,
				InitialPaymentAmount: payment.InitialPaymentAmount,
			},
		})
	})
	if err != nil {
		return uuid.Nil, err
	}
	return paymentID, nil
}

// Abort removes a payment that has no tenders and reopens the order. With
// tenders recorded it reports false along with a PaymentMethodsExist error.
func (s *service) Abort(ctx context.Context, input AbortPaymentInput) (aborted bool, err error) {
	defer s.metrics.Track("abort_payment", time.Now(), &err)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		order, err := orders.LoadActive(ctx, ordersRepo, input.OrderID, input.StoreID)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		payment, err := LoadOpenForUpdate(ctx, repo, input.PaymentID, order.ID)
		if err != nil {
			return err
		}
		if len(payment.Methods) > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already has payment methods").
				WithReason(pkgerrors.ReasonPaymentMethodsExist).
				WithDetails(map[string]any{
					"payment_id":           payment.ID,
					"order_id":             order.ID,
					"payment_method_count": len(payment.Methods),
				})
		}
		if err := order.RevertToUsing(); err != nil {
			return err
		}

		deleted, err := repo.DeleteIfUntendered(ctx, payment.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete payment")
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already has payment methods").
				WithReason(pkgerrors.ReasonPaymentMethodsExist).
				WithDetails(map[string]any{"payment_id": payment.ID, "order_id": order.ID})
		}
		ok, err := ordersRepo.TransitionStatus(ctx, order.ID, enums.OrderStatusInProgress, enums.OrderStatusUsing, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reopen order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not in progress").
				WithReason(pkgerrors.ReasonOrderNotInProgress).
				WithDetails(map[string]any{"order_id": order.ID})
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentAborted,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         actor(input.MemberID, input.StoreID),
			Data: payloads.PaymentAbortedEvent{
				PaymentID: payment.ID,
				OrderID:   order.ID,
				StoreID:   order.StoreID,
			},
		})
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get returns an in-progress payment with its tenders.
func (s *service) Get(ctx context.Context, id, orderID, storeID uuid.UUID) (*PaymentDTO, error) {
	payment, err := s.repo.FindOpen(ctx, id, orderID, storeID)
	if err != nil {
		return nil, mapLoadErr(err, id)
	}
	return FromModel(payment, s.money), nil
}

// Finish reports whether checkout completed: the payment succeeded and its
// order is paid.
func (s *service) Finish(ctx context.Context, id, orderID, storeID uuid.UUID) (bool, error) {
	payment, err := s.repo.FindByID(ctx, id, orderID, storeID)
	if err != nil {
		return false, mapLoadErr(err, id)
	}
	if payment.Status != enums.PaymentStatusSuccess {
		return false, nil
	}
	order, err := s.orders.FindByID(ctx, orderID, storeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
				WithReason(pkgerrors.ReasonNoSuchOrder)
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusPaid {
		return false, pkgerrors.New(pkgerrors.CodeInvariant, "payment succeeded but order is not paid").
			WithDetails(map[string]any{"payment_id": payment.ID, "order_id": order.ID, "status": order.Status})
	}
	return true, nil
}

func (s *service) MethodTypes() []enums.PaymentMethodType {
	return enums.PaymentMethodTypes()
}

// LoadOpenForUpdate locks an in-progress payment of orderID or fails with
// NoSuchPayment.
func LoadOpenForUpdate(ctx context.Context, repo Repository, id, orderID uuid.UUID) (*models.Payment, error) {
	payment, err := repo.FindOpenForUpdate(ctx, id, orderID)
	if err != nil {
		return nil, mapLoadErr(err, id)
	}
	return payment, nil
}

func mapLoadErr(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found").
			WithReason(pkgerrors.ReasonNoSuchPayment).
			WithDetails(map[string]any{"payment_id": id})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
}

func actor(memberID, storeID uuid.UUID) *outbox.ActorRef {
	if memberID == uuid.Nil {
		return nil
	}
	store := storeID
	return &outbox.ActorRef{MemberID: memberID, StoreID: &store}
}
