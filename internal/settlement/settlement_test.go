package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/internal/orders"
	"github.com/mylittlestore/pos-backend/internal/payments"
	"github.com/mylittlestore/pos-backend/internal/storetables"
	"github.com/mylittlestore/pos-backend/pkg/db"
	"github.com/mylittlestore/pos-backend/pkg/db/dbtest"
	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/outbox"
	"github.com/mylittlestore/pos-backend/pkg/outbox/payloads"
)

type stubOutbox struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type fixture struct {
	client  *db.Client
	conn    *gorm.DB
	settler *Settler
	outbox  *stubOutbox
	orderID uuid.UUID
	payment *models.Payment
	tableID uuid.UUID
}

// newFixture seeds an in-progress order of two lines with a payment paid in
// full by one cash tender, as the cascade sees it right before settling.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	publisher := &stubOutbox{}
	settler, err := New(Params{
		Orders:   orders.NewRepository(conn),
		Payments: payments.NewRepository(conn),
		Tables:   storetables.NewRepository(conn),
		Outbox:   publisher,
	})
	require.NoError(t, err)

	store := dbtest.SeedStore(t, conn)
	table := dbtest.SeedTable(t, conn, store.ID)
	now := time.Now().UTC()
	order := &models.Order{StoreID: store.ID, StoreTableID: table.ID, StartTime: now, Status: enums.OrderStatusInProgress}
	require.NoError(t, orders.NewRepository(conn).Create(context.Background(), order))
	ok, err := storetables.NewRepository(conn).Occupy(context.Background(), table.ID, store.ID, order.ID)
	require.NoError(t, err)
	require.True(t, ok)

	for _, line := range [][2]int64{{1000, 3}, {2000, 1}} {
		require.NoError(t, conn.Create(&models.OrderItem{
			StoreID: store.ID, OrderID: order.ID, ItemID: uuid.New(), ItemName: "Soju",
			Price: line[0], Count: line[1], OrderedAt: now, UpdatedAt: now,
		}).Error)
	}
	payment := &models.Payment{OrderID: order.ID, InitialPaymentAmount: 5000, PaidPaymentAmount: 5000}
	require.NoError(t, payments.NewRepository(conn).Create(context.Background(), payment))
	method := models.PaymentMethod{PaymentID: payment.ID, Type: enums.PaymentMethodTypeCash, Amount: 5000, Status: enums.PaymentMethodStatusPaid}
	require.NoError(t, conn.Create(&method).Error)
	payment.Methods = []models.PaymentMethod{method}

	return &fixture{
		client:  client,
		conn:    conn,
		settler: settler,
		outbox:  publisher,
		orderID: order.ID,
		payment: payment,
		tableID: table.ID,
	}
}

func (f *fixture) settle(ctx context.Context) error {
	return f.client.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := orders.NewRepository(tx).FindForUpdate(ctx, f.orderID)
		if err != nil {
			return err
		}
		return f.settler.Settle(ctx, tx, order, f.payment, nil)
	})
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Params{}); err == nil {
		t.Fatal("expected error creating settler without repositories")
	}
}

func TestSettleMovesEveryAggregate(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.settle(context.Background()))

	var payment models.Payment
	require.NoError(t, f.conn.First(&payment, "id = ?", f.payment.ID).Error)
	require.Equal(t, enums.PaymentStatusSuccess, payment.Status)
	require.NotNil(t, payment.CompleteDateTime)

	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", f.orderID).Error)
	require.Equal(t, enums.OrderStatusPaid, order.Status)
	require.NotNil(t, order.EndTime)

	var ordered int64
	require.NoError(t, f.conn.Model(&models.OrderItem{}).
		Where("order_id = ? AND status = ?", f.orderID, enums.OrderItemStatusOrdered).Count(&ordered).Error)
	require.Zero(t, ordered)

	var table models.StoreTable
	require.NoError(t, f.conn.First(&table, "id = ?", f.tableID).Error)
	require.Equal(t, enums.StoreTableStatusEmpty, table.Status)
	require.Nil(t, table.OrderID)

	require.Len(t, f.outbox.events, 2)
	settled := f.outbox.events[0].Data.(payloads.PaymentSettledEvent)
	require.Equal(t, int64(5000), settled.Amount)
	require.Len(t, settled.Tenders, 1)
	paid := f.outbox.events[1].Data.(payloads.OrderPaidEvent)
	require.Equal(t, enums.EventOrderPaid, f.outbox.events[1].EventType)
	require.Len(t, paid.Lines, 2)
	require.Equal(t, int64(5000), paid.Total)
}

func TestSettleRejectsPartialPayment(t *testing.T) {
	f := newFixture(t)
	f.payment.PaidPaymentAmount = 4000

	err := f.settle(context.Background())
	require.Equal(t, pkgerrors.CodeInvariant, pkgerrors.As(err).Code())
}

func TestSettleOrderNotInProgressIsFatal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", f.orderID).
		Update("status", enums.OrderStatusUsing).Error)

	err := f.settle(context.Background())
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonOrderNotInProgress), "got %v", err)
	require.Equal(t, pkgerrors.CodeInvariant, pkgerrors.As(err).Code())

	var payment models.Payment
	require.NoError(t, f.conn.First(&payment, "id = ?", f.payment.ID).Error)
	require.Equal(t, enums.PaymentStatusInProgress, payment.Status, "payment success rolled back")
}

func TestSettleWithoutLinesIsFatal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.conn.Model(&models.OrderItem{}).Where("order_id = ?", f.orderID).
		Update("status", enums.OrderItemStatusDeleted).Error)

	err := f.settle(context.Background())
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonOrderHasNoOrderItem), "got %v", err)
}

func TestSettleRollsBackWhenEventFails(t *testing.T) {
	f := newFixture(t)
	f.outbox.err = errors.New("outbox down")

	require.Error(t, f.settle(context.Background()))

	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", f.orderID).Error)
	require.Equal(t, enums.OrderStatusInProgress, order.Status)

	var table models.StoreTable
	require.NoError(t, f.conn.First(&table, "id = ?", f.tableID).Error)
	require.Equal(t, enums.StoreTableStatusUsing, table.Status)
}
