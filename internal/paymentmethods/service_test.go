package paymentmethods

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/internal/orders"
	"github.com/mylittlestore/pos-backend/internal/payments"
	"github.com/mylittlestore/pos-backend/internal/settlement"
	"github.com/mylittlestore/pos-backend/internal/stores"
	"github.com/mylittlestore/pos-backend/internal/storetables"
	"github.com/mylittlestore/pos-backend/pkg/db/dbtest"
	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/money"
	"github.com/mylittlestore/pos-backend/pkg/outbox"
	"github.com/mylittlestore/pos-backend/pkg/outbox/payloads"
	squarepkg "github.com/mylittlestore/pos-backend/pkg/square"
)

type stubOutbox struct {
	events []outbox.DomainEvent
	failOn enums.OutboxEventType
}

func (s *stubOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	if s.failOn != "" && event.EventType == s.failOn {
		return errors.New("outbox down")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutbox) types() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, event.EventType)
	}
	return out
}

type stubCharger struct {
	status string
	err    error
	calls  []squarepkg.PaymentCreateParams
}

func (s *stubCharger) CreatePayment(_ context.Context, params squarepkg.PaymentCreateParams) (*sq.Payment, error) {
	s.calls = append(s.calls, params)
	if s.err != nil {
		return nil, s.err
	}
	id := "sq-" + params.ReferenceID
	status := s.status
	return &sq.Payment{ID: &id, Status: &status}, nil
}

type stubLocker struct {
	held     map[string]bool
	released []string
}

func (s *stubLocker) AcquireLock(_ context.Context, scope string, _ time.Duration) (string, bool, error) {
	if s.held == nil {
		s.held = map[string]bool{}
	}
	if s.held[scope] {
		return "", false, nil
	}
	s.held[scope] = true
	return "tok-" + scope, true, nil
}

func (s *stubLocker) ReleaseLock(_ context.Context, scope, _ string) error {
	delete(s.held, scope)
	s.released = append(s.released, scope)
	return nil
}

type fixture struct {
	conn      *gorm.DB
	svc       Service
	outbox    *stubOutbox
	charger   *stubCharger
	locks     *stubLocker
	order     *models.Order
	tableID   uuid.UUID
	paymentID uuid.UUID
}

// newFixture seats an order with one 1000 x 10 line and starts checkout, so
// the frozen bill is 10000.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	publisher := &stubOutbox{}
	formatter := money.NewFormatter("KRW", 0)

	ordersRepo := orders.NewRepository(conn)
	paymentsRepo := payments.NewRepository(conn)
	tablesRepo := storetables.NewRepository(conn)

	settler, err := settlement.New(settlement.Params{
		Orders:   ordersRepo,
		Payments: paymentsRepo,
		Tables:   tablesRepo,
		Outbox:   publisher,
	})
	require.NoError(t, err)

	charger := &stubCharger{status: "COMPLETED"}
	locks := &stubLocker{}
	svc, err := NewService(ServiceParams{
		Repo:       NewRepository(conn),
		Payments:   paymentsRepo,
		Orders:     ordersRepo,
		Settler:    settler,
		Tx:         client,
		Outbox:     publisher,
		Square:     charger,
		Locks:      locks,
		LocationID: "L1",
		Money:      formatter,
	})
	require.NoError(t, err)

	checkout, err := payments.NewService(payments.ServiceParams{
		Repo:   paymentsRepo,
		Orders: ordersRepo,
		Stores: stores.NewRepository(conn),
		Tx:     client,
		Outbox: publisher,
		Money:  formatter,
	})
	require.NoError(t, err)

	ctx := context.Background()
	store := dbtest.SeedStore(t, conn)
	table := dbtest.SeedTable(t, conn, store.ID)
	now := time.Now().UTC()
	order := &models.Order{StoreID: store.ID, StoreTableID: table.ID, StartTime: now}
	require.NoError(t, ordersRepo.Create(ctx, order))
	occupied, err := tablesRepo.Occupy(ctx, table.ID, store.ID, order.ID)
	require.NoError(t, err)
	require.True(t, occupied)
	require.NoError(t, conn.Create(&models.OrderItem{
		StoreID:   store.ID,
		OrderID:   order.ID,
		ItemID:    uuid.New(),
		ItemName:  "Bibimbap",
		Price:     1000,
		Count:     10,
		OrderedAt: now,
		UpdatedAt: now,
	}).Error)

	paymentID, err := checkout.Start(ctx, payments.StartPaymentInput{StoreID: store.ID, OrderID: order.ID})
	require.NoError(t, err)
	publisher.events = nil

	return &fixture{
		conn:      conn,
		svc:       svc,
		outbox:    publisher,
		charger:   charger,
		locks:     locks,
		order:     order,
		tableID:   table.ID,
		paymentID: paymentID,
	}
}

func (f *fixture) tender(t *testing.T, kind enums.PaymentMethodType, amount int64) uuid.UUID {
	t.Helper()
	id, err := f.svc.Create(context.Background(), CreatePaymentMethodInput{
		StoreID:   f.order.StoreID,
		OrderID:   f.order.ID,
		PaymentID: f.paymentID,
		Type:      kind,
		Amount:    amount,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) payment(t *testing.T) models.Payment {
	t.Helper()
	var payment models.Payment
	require.NoError(t, f.conn.First(&payment, "id = ?", f.paymentID).Error)
	return payment
}

func (f *fixture) orderStatus(t *testing.T) enums.OrderStatus {
	t.Helper()
	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", f.order.ID).Error)
	return order.Status
}

func (f *fixture) tableStatus(t *testing.T) enums.StoreTableStatus {
	t.Helper()
	var table models.StoreTable
	require.NoError(t, f.conn.First(&table, "id = ?", f.tableID).Error)
	return table.Status
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestSingleTenderSettlesCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	methodID := f.tender(t, enums.PaymentMethodTypeCash, 10000)
	require.NoError(t, f.svc.Succeed(ctx, SucceedInput{ID: methodID, StoreID: f.order.StoreID}))

	payment := f.payment(t)
	require.Equal(t, enums.PaymentStatusSuccess, payment.Status)
	require.Equal(t, int64(10000), payment.PaidPaymentAmount)
	require.Equal(t, enums.OrderStatusPaid, f.orderStatus(t))
	require.Equal(t, enums.StoreTableStatusEmpty, f.tableStatus(t))

	var ordered int64
	require.NoError(t, f.conn.Model(&models.OrderItem{}).
		Where("order_id = ? AND status = ?", f.order.ID, enums.OrderItemStatusOrdered).Count(&ordered).Error)
	require.Zero(t, ordered)

	require.Equal(t, []enums.OutboxEventType{
		enums.EventPaymentMethodPaid,
		enums.EventPaymentSettled,
		enums.EventOrderPaid,
	}, f.outbox.types())
}

func TestSplitTendersSettleOnLastOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cash := f.tender(t, enums.PaymentMethodTypeCash, 4000)
	card := f.tender(t, enums.PaymentMethodTypeCard, 6000)

	require.NoError(t, f.svc.Succeed(ctx, SucceedInput{ID: cash}))
	payment := f.payment(t)
	require.Equal(t, enums.PaymentStatusInProgress, payment.Status)
	require.Equal(t, int64(4000), payment.PaidPaymentAmount)
	require.Equal(t, enums.OrderStatusInProgress, f.orderStatus(t))
	require.Equal(t, enums.StoreTableStatusUsing, f.tableStatus(t))

	paid := f.outbox.events[0].Data.(payloads.PaymentMethodPaidEvent)
	require.Equal(t, int64(4000), paid.PaidPaymentAmount)

	require.NoError(t, f.svc.Succeed(ctx, SucceedInput{ID: card}))
	require.Equal(t, enums.PaymentStatusSuccess, f.payment(t).Status)
	require.Equal(t, enums.OrderStatusPaid, f.orderStatus(t))

	settled := f.outbox.events[2].Data.(payloads.PaymentSettledEvent)
	require.Len(t, settled.Tenders, 2)
}

func TestCreateRejectsAmountOverLeftToPay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreatePaymentMethodInput{
		StoreID: f.order.StoreID, OrderID: f.order.ID, PaymentID: f.paymentID,
		Type: enums.PaymentMethodTypeCash, Amount: 10001,
	})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonPaymentMethodAmountExceeds), "got %v", err)
	require.Equal(t, pkgerrors.CodeCapacity, pkgerrors.As(err).Code())

	methods, err := f.svc.List(ctx, f.paymentID, f.order.StoreID)
	require.NoError(t, err)
	require.Empty(t, methods)

	f.tender(t, enums.PaymentMethodTypeCash, 7000)
	_, err = f.svc.Create(ctx, CreatePaymentMethodInput{
		StoreID: f.order.StoreID, OrderID: f.order.ID, PaymentID: f.paymentID,
		Type: enums.PaymentMethodTypeCard, Amount: 3001,
	})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonPaymentMethodAmountExceeds),
		"open tenders count against what is left")
}

func TestCreateValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreatePaymentMethodInput{
		StoreID: f.order.StoreID, OrderID: f.order.ID, PaymentID: f.paymentID,
		Type: "bitcoin", Amount: 100,
	})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = f.svc.Create(ctx, CreatePaymentMethodInput{
		StoreID: f.order.StoreID, OrderID: f.order.ID, PaymentID: uuid.New(),
		Type: enums.PaymentMethodTypeCash, Amount: 100,
	})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonNoSuchPayment), "got %v", err)
}

func TestSucceedTwiceIsAlreadyPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	methodID := f.tender(t, enums.PaymentMethodTypeCash, 2000)
	require.NoError(t, f.svc.Succeed(ctx, SucceedInput{ID: methodID}))

	err := f.svc.Succeed(ctx, SucceedInput{ID: methodID})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonAlreadyPaid), "got %v", err)
	require.Equal(t, int64(2000), f.payment(t).PaidPaymentAmount)
}

func TestSucceedNeverPassesBill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	methodID := f.tender(t, enums.PaymentMethodTypeCash, 6000)
	// A tender inserted behind the capacity check still cannot overpay.
	rogue := models.PaymentMethod{PaymentID: f.paymentID, Type: enums.PaymentMethodTypeCash, Amount: 5000}
	require.NoError(t, f.conn.Create(&rogue).Error)

	require.NoError(t, f.svc.Succeed(ctx, SucceedInput{ID: methodID}))
	err := f.svc.Succeed(ctx, SucceedInput{ID: rogue.ID})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonPaidPaymentAmountExceeded), "got %v", err)

	require.Equal(t, int64(6000), f.payment(t).PaidPaymentAmount)
	var method models.PaymentMethod
	require.NoError(t, f.conn.First(&method, "id = ?", rogue.ID).Error)
	require.Equal(t, enums.PaymentMethodStatusInProgress, method.Status, "failed success leaves the tender open")
}

func TestSettlementFailureRollsBackTender(t *testing.T) {
	f := newFixture(t)
	f.outbox.failOn = enums.EventOrderPaid
	ctx := context.Background()

	methodID := f.tender(t, enums.PaymentMethodTypeCash, 10000)
	require.Error(t, f.svc.Succeed(ctx, SucceedInput{ID: methodID}))

	payment := f.payment(t)
	require.Equal(t, enums.PaymentStatusInProgress, payment.Status)
	require.Zero(t, payment.PaidPaymentAmount)
	require.Equal(t, enums.OrderStatusInProgress, f.orderStatus(t))
	require.Equal(t, enums.StoreTableStatusUsing, f.tableStatus(t))

	dto, err := f.svc.Get(ctx, methodID, f.paymentID, f.order.StoreID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentMethodStatusInProgress, dto.Status)
}

func TestSucceedIsStoreScoped(t *testing.T) {
	f := newFixture(t)
	methodID := f.tender(t, enums.PaymentMethodTypeCash, 1000)

	err := f.svc.Succeed(context.Background(), SucceedInput{ID: methodID, StoreID: uuid.New()})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonNoSuchPaymentMethod), "got %v", err)

	err = f.svc.Succeed(context.Background(), SucceedInput{ID: uuid.New()})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonNoSuchPaymentMethod), "got %v", err)
}

func TestCancelFreesLeftToPay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	open := f.tender(t, enums.PaymentMethodTypeCard, 10000)
	require.NoError(t, f.svc.Cancel(ctx, CancelInput{
		ID: open, PaymentID: f.paymentID, OrderID: f.order.ID, StoreID: f.order.StoreID,
	}))
	_, err := f.svc.Get(ctx, open, f.paymentID, f.order.StoreID)
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonNoSuchPaymentMethod), "got %v", err)

	paid := f.tender(t, enums.PaymentMethodTypeCash, 3000)
	require.NoError(t, f.svc.Succeed(ctx, SucceedInput{ID: paid}))
	err = f.svc.Cancel(ctx, CancelInput{
		ID: paid, PaymentID: f.paymentID, OrderID: f.order.ID, StoreID: f.order.StoreID,
	})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonAlreadyPaid), "got %v", err)
}

func TestGetHidesPaidTenders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	methodID := f.tender(t, enums.PaymentMethodTypeCash, 2500)
	dto, err := f.svc.Get(ctx, methodID, f.paymentID, f.order.StoreID)
	require.NoError(t, err)
	require.Equal(t, int64(2500), dto.Amount.Minor)
	require.Equal(t, "KRW", dto.Amount.Currency)

	_, err = f.svc.Get(ctx, methodID, f.paymentID, uuid.New())
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonNoSuchPaymentMethod), "got %v", err)

	require.NoError(t, f.svc.Succeed(ctx, SucceedInput{ID: methodID}))
	_, err = f.svc.Get(ctx, methodID, f.paymentID, f.order.StoreID)
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonNoSuchPaymentMethod), "got %v", err)

	methods, err := f.svc.List(ctx, f.paymentID, f.order.StoreID)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	require.Equal(t, enums.PaymentMethodStatusPaid, methods[0].Status)
}

func TestChargeCardSettlesCompletedCharge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	methodID := f.tender(t, enums.PaymentMethodTypeCard, 10000)
	dto, err := f.svc.ChargeCard(ctx, ChargeCardInput{
		ID: methodID, PaymentID: f.paymentID, OrderID: f.order.ID, StoreID: f.order.StoreID, SourceID: "cnon:ok",
	})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentMethodStatusPaid, dto.Status)
	require.NotNil(t, dto.ProviderPaymentID)
	require.Equal(t, "sq-"+methodID.String(), *dto.ProviderPaymentID)

	require.Len(t, f.charger.calls, 1)
	call := f.charger.calls[0]
	require.Equal(t, methodID.String(), call.ReferenceID)
	require.Equal(t, int64(10000), call.AmountMinor)
	require.Equal(t, "KRW", call.Currency)
	require.Equal(t, "L1", call.LocationID)
	require.Equal(t, "pm-"+methodID.String(), call.IdempotencyKey)

	require.Equal(t, enums.OrderStatusPaid, f.orderStatus(t))
	require.Empty(t, f.locks.held)
	require.Len(t, f.locks.released, 1)
}

func TestChargeCardLeavesPendingChargeOpen(t *testing.T) {
	f := newFixture(t)
	f.charger.status = "PENDING"
	ctx := context.Background()

	methodID := f.tender(t, enums.PaymentMethodTypeCard, 10000)
	_, err := f.svc.ChargeCard(ctx, ChargeCardInput{
		ID: methodID, PaymentID: f.paymentID, OrderID: f.order.ID, StoreID: f.order.StoreID, SourceID: "cnon:slow",
	})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonCardChargeNotCompleted), "got %v", err)
	require.Equal(t, enums.PaymentStatusInProgress, f.payment(t).Status)
}

func TestChargeCardRejectsCashAndConcurrentCharges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cash := f.tender(t, enums.PaymentMethodTypeCash, 1000)
	_, err := f.svc.ChargeCard(ctx, ChargeCardInput{
		ID: cash, PaymentID: f.paymentID, OrderID: f.order.ID, StoreID: f.order.StoreID, SourceID: "cnon:ok",
	})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	card := f.tender(t, enums.PaymentMethodTypeCard, 1000)
	f.locks.held = map[string]bool{"charge:" + card.String(): true}
	_, err = f.svc.ChargeCard(ctx, ChargeCardInput{
		ID: card, PaymentID: f.paymentID, OrderID: f.order.ID, StoreID: f.order.StoreID, SourceID: "cnon:ok",
	})
	require.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
	require.Empty(t, f.charger.calls)
}
