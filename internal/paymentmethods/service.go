package paymentmethods

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/internal/orders"
	"github.com/mylittlestore/pos-backend/internal/payments"
	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/metrics"
	"github.com/mylittlestore/pos-backend/pkg/money"
	"github.com/mylittlestore/pos-backend/pkg/outbox"
	"github.com/mylittlestore/pos-backend/pkg/outbox/payloads"
	"github.com/mylittlestore/pos-backend/pkg/square"
)

const chargeLockTTL = 30 * time.Second

// Service records tenders and settles them.
type Service interface {
	Create(ctx context.Context, input CreatePaymentMethodInput) (uuid.UUID, error)
	Succeed(ctx context.Context, input SucceedInput) error
	Cancel(ctx context.Context, input CancelInput) error
	ChargeCard(ctx context.Context, input ChargeCardInput) (*payments.MethodDTO, error)
	Get(ctx context.Context, id, paymentID, storeID uuid.UUID) (*payments.MethodDTO, error)
	List(ctx context.Context, paymentID, storeID uuid.UUID) ([]payments.MethodDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type settler interface {
	Settle(ctx context.Context, tx *gorm.DB, order *models.Order, payment *models.Payment, actor *outbox.ActorRef) error
}

type cardCharger interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
}

type locker interface {
	AcquireLock(ctx context.Context, scope string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, scope, token string) error
}

// ServiceParams groups dependencies for the payment method service. Square
// and Locks are optional; without Square card charging is unavailable.
type ServiceParams struct {
	Repo       Repository
	Payments   payments.Repository
	Orders     orders.Repository
	Settler    settler
	Tx         txRunner
	Outbox     outboxPublisher
	Square     cardCharger
	Locks      locker
	LocationID string
	Money      money.Formatter
	Metrics    *metrics.UseCaseMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo       Repository
	payments   payments.Repository
	orders     orders.Repository
	settler    settler
	tx         txRunner
	outbox     outboxPublisher
	square     cardCharger
	locks      locker
	locationID string
	money      money.Formatter
	metrics    *metrics.UseCaseMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// NewService constructs a payment method service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("payment methods repository required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payments repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Settler == nil:
		return nil, fmt.Errorf("settler required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:       params.Repo,
		payments:   params.Payments,
		orders:     params.Orders,
		settler:    params.Settler,
		tx:         params.Tx,
		outbox:     params.Outbox,
		square:     params.Square,
		locks:      params.Locks,
		locationID: params.LocationID,
		money:      params.Money,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        now,
	}, nil
}

// Create records an in-progress tender. The amount may not exceed what the
// bill has left once every existing tender is counted.
func (s *service) Create(ctx context.Context, input CreatePaymentMethodInput) (methodID uuid.UUID, err error) {
	defer s.metrics.Track("create_payment_method", time.Now(), &err)

	if !input.Type.IsValid() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method type").
			WithDetails(map[string]any{"type": input.Type})
	}
	if input.Amount <= 0 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := orders.LoadActive(ctx, s.orders.WithTx(tx), input.OrderID, input.StoreID)
		if err != nil {
			return err
		}
		payment, err := payments.LoadOpenForUpdate(ctx, s.payments.WithTx(tx), input.PaymentID, order.ID)
		if err != nil {
			return err
		}
		if left := payment.LeftToPay(); input.Amount > left {
			return pkgerrors.New(pkgerrors.CodeCapacity, "amount exceeds what is left to pay").
				WithReason(pkgerrors.ReasonPaymentMethodAmountExceeds).
				WithDetails(map[string]any{
					"payment_id":  payment.ID,
					"left_to_pay": left,
					"requested":   input.Amount,
				})
		}

		method := &models.PaymentMethod{
			ID:        uuid.New(),
			PaymentID: payment.ID,
			Type:      input.Type,
			Amount:    input.Amount,
			Status:    enums.PaymentMethodStatusInProgress,
		}
		if err := s.repo.WithTx(tx).Create(ctx, method); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment method")
		}
		methodID = method.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return methodID, nil
}

// Succeed marks a tender paid and, when it covers the rest of the bill,
// settles the payment in the same transaction.
func (s *service) Succeed(ctx context.Context, input SucceedInput) (err error) {
	defer s.metrics.Track("payment_method_success", time.Now(), &err)

	owner, err := s.repo.Locate(ctx, input.ID)
	if err != nil {
		return mapLoadErr(err, input.ID)
	}
	if input.StoreID != uuid.Nil && input.StoreID != owner.StoreID {
		return noSuchMethod(input.ID)
	}
	if owner.Status == enums.PaymentMethodStatusPaid {
		return alreadyPaid(input.ID)
	}

	var settled *models.Payment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := orders.LoadActive(ctx, s.orders.WithTx(tx), owner.OrderID, owner.StoreID)
		if err != nil {
			return err
		}
		paymentsRepo := s.payments.WithTx(tx)
		payment, err := payments.LoadOpenForUpdate(ctx, paymentsRepo, owner.PaymentID, order.ID)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		method, err := repo.FindByID(ctx, input.ID, payment.ID)
		if err != nil {
			return mapLoadErr(err, input.ID)
		}

		now := s.now()
		if err := method.MarkPaid(now); err != nil {
			return err
		}
		if input.ProviderPaymentID != nil {
			method.ProviderPaymentID = input.ProviderPaymentID
		}
		if err := payment.Pays(method.Amount); err != nil {
			return err
		}

		marked, err := repo.MarkPaid(ctx, method.ID, now, input.ProviderPaymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment method paid")
		}
		if !marked {
			return alreadyPaid(method.ID)
		}
		added, err := paymentsRepo.AddPaid(ctx, payment.ID, method.Amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add paid amount")
		}
		if !added {
			return pkgerrors.New(pkgerrors.CodeCapacity, "paid amount would exceed the bill").
				WithReason(pkgerrors.ReasonPaidPaymentAmountExceeded).
				WithDetails(map[string]any{"payment_id": payment.ID, "requested": method.Amount})
		}
		replaceMethod(payment, method)

		who := actor(input.MemberID, owner.StoreID)
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentMethodPaid,
			AggregateType: enums.AggregatePaymentMethod,
			AggregateID:   method.ID,
			Actor:         who,
			OccurredAt:    now,
			Data: payloads.PaymentMethodPaidEvent{
				PaymentMethodID:   method.ID,
				PaymentID:         payment.ID,
				OrderID:           order.ID,
				StoreID:           order.StoreID,
				Type:              method.Type,
				Amount:            method.Amount,
				PaidPaymentAmount: payment.PaidPaymentAmount,
				PaidAt:            now,
				ProviderPaymentID: method.ProviderPaymentID,
			},
		}); err != nil {
			return err
		}

		if !payment.IsFullyPaid() {
			return nil
		}
		if err := s.settler.Settle(ctx, tx, order, payment, who); err != nil {
			return err
		}
		settled = payment
		return nil
	})
	if err != nil {
		return err
	}
	if settled != nil {
		s.metrics.Settled(settled.PaidPaymentAmount)
	}
	return nil
}

// Cancel removes an in-progress tender so its amount can be claimed again.
func (s *service) Cancel(ctx context.Context, input CancelInput) (err error) {
	defer s.metrics.Track("cancel_payment_method", time.Now(), &err)

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := orders.LoadActive(ctx, s.orders.WithTx(tx), input.OrderID, input.StoreID)
		if err != nil {
			return err
		}
		payment, err := payments.LoadOpenForUpdate(ctx, s.payments.WithTx(tx), input.PaymentID, order.ID)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		method, err := repo.FindByID(ctx, input.ID, payment.ID)
		if err != nil {
			return mapLoadErr(err, input.ID)
		}
		if method.Status == enums.PaymentMethodStatusPaid {
			return alreadyPaid(method.ID)
		}
		deleted, err := repo.DeleteOpen(ctx, method.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete payment method")
		}
		if !deleted {
			return noSuchMethod(method.ID)
		}
		return nil
	})
}

// ChargeCard charges a card tender through Square and settles it once the
// charge completes. Square receives the tender id as reference id so the
// payment.updated webhook can settle it too; whichever arrives second sees
// AlreadyPaid.
func (s *service) ChargeCard(ctx context.Context, input ChargeCardInput) (dto *payments.MethodDTO, err error) {
	defer s.metrics.Track("charge_card", time.Now(), &err)

	if s.square == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card processor is not configured")
	}
	sourceID := strings.TrimSpace(input.SourceID)
	if sourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source_id is required")
	}

	method, err := s.repo.FindOpen(ctx, input.ID, input.PaymentID, input.StoreID)
	if err != nil {
		return nil, mapLoadErr(err, input.ID)
	}
	if method.Type != enums.PaymentMethodTypeCard {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is not a card tender").
			WithDetails(map[string]any{"payment_method_id": method.ID, "type": method.Type})
	}

	if s.locks != nil {
		scope := "charge:" + method.ID.String()
		token, ok, err := s.locks.AcquireLock(ctx, scope, chargeLockTTL)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire charge lock")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "card charge already in flight").
				WithDetails(map[string]any{"payment_method_id": method.ID})
		}
		defer func() {
			if releaseErr := s.locks.ReleaseLock(context.WithoutCancel(ctx), scope, token); releaseErr != nil && s.logg != nil {
				s.logg.Error(ctx, "release charge lock", releaseErr)
			}
		}()
	}

	idempotencyKey := strings.TrimSpace(input.IdempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = "pm-" + method.ID.String()
	}
	charge, err := s.square.CreatePayment(ctx, square.PaymentCreateParams{
		AmountMinor:    method.Amount,
		Currency:       s.money.Currency(),
		LocationID:     s.locationID,
		SourceID:       sourceID,
		IdempotencyKey: idempotencyKey,
		ReferenceID:    method.ID.String(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "charge card")
	}
	if !square.IsCompleted(charge) {
		details := map[string]any{"payment_method_id": method.ID}
		if charge != nil && charge.GetStatus() != nil {
			details["status"] = *charge.GetStatus()
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "card charge did not complete").
			WithReason(pkgerrors.ReasonCardChargeNotCompleted).
			WithDetails(details)
	}

	err = s.Succeed(ctx, SucceedInput{
		ID:                method.ID,
		StoreID:           input.StoreID,
		MemberID:          input.MemberID,
		ProviderPaymentID: charge.GetID(),
	})
	if err != nil && !pkgerrors.HasReason(err, pkgerrors.ReasonAlreadyPaid) {
		return nil, err
	}

	paid, err := s.repo.FindByID(ctx, method.ID, method.PaymentID)
	if err != nil {
		return nil, mapLoadErr(err, method.ID)
	}
	out := payments.MethodFromModel(paid, s.money)
	return &out, nil
}

// Get returns a tender that has not been paid yet.
func (s *service) Get(ctx context.Context, id, paymentID, storeID uuid.UUID) (*payments.MethodDTO, error) {
	method, err := s.repo.FindOpen(ctx, id, paymentID, storeID)
	if err != nil {
		return nil, mapLoadErr(err, id)
	}
	dto := payments.MethodFromModel(method, s.money)
	return &dto, nil
}

func (s *service) List(ctx context.Context, paymentID, storeID uuid.UUID) ([]payments.MethodDTO, error) {
	methods, err := s.repo.ListByPayment(ctx, paymentID, storeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment methods")
	}
	out := make([]payments.MethodDTO, 0, len(methods))
	for i := range methods {
		out = append(out, payments.MethodFromModel(&methods[i], s.money))
	}
	return out, nil
}

func replaceMethod(payment *models.Payment, method *models.PaymentMethod) {
	for i := range payment.Methods {
		if payment.Methods[i].ID == method.ID {
			payment.Methods[i] = *method
			return
		}
	}
	payment.Methods = append(payment.Methods, *method)
}

func mapLoadErr(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return noSuchMethod(id)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment method")
}

func noSuchMethod(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "payment method not found").
		WithReason(pkgerrors.ReasonNoSuchPaymentMethod).
		WithDetails(map[string]any{"payment_method_id": id})
}

func alreadyPaid(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "payment method already paid").
		WithReason(pkgerrors.ReasonAlreadyPaid).
		WithDetails(map[string]any{"payment_method_id": id})
}

func actor(memberID, storeID uuid.UUID) *outbox.ActorRef {
	if memberID == uuid.Nil {
		return nil
	}
	store := storeID
	return &outbox.ActorRef{MemberID: memberID, StoreID: &store}
}
