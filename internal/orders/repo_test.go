package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/db/dbtest"
	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	"github.com/mylittlestore/pos-backend/pkg/pagination"
)

func seedOrder(t *testing.T, conn *gorm.DB, storeID uuid.UUID, status enums.OrderStatus) *models.Order {
	t.Helper()
	table := dbtest.SeedTable(t, conn, storeID)
	order := &models.Order{
		StoreID:      storeID,
		StoreTableID: table.ID,
		StartTime:    time.Now().UTC(),
		Status:       status,
	}
	require.NoError(t, NewRepository(conn).Create(context.Background(), order))
	return order
}

func seedLine(t *testing.T, conn *gorm.DB, order *models.Order, price, count int64, status enums.OrderItemStatus, orderedAt time.Time) *models.OrderItem {
	t.Helper()
	line := &models.OrderItem{
		StoreID:   order.StoreID,
		OrderID:   order.ID,
		ItemID:    uuid.New(),
		ItemName:  "Dumpling",
		Price:     price,
		Count:     count,
		Status:    status,
		OrderedAt: orderedAt,
		UpdatedAt: orderedAt,
	}
	require.NoError(t, conn.Create(line).Error)
	return line
}

func TestRepositoryFindByIDLoadsLiveLinesInOrder(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	storeID := uuid.New()
	order := seedOrder(t, conn, storeID, enums.OrderStatusUsing)

	base := time.Now().UTC().Truncate(time.Second)
	second := seedLine(t, conn, order, 1000, 2, enums.OrderItemStatusOrdered, base.Add(time.Minute))
	first := seedLine(t, conn, order, 500, 1, enums.OrderItemStatusOrdered, base)
	seedLine(t, conn, order, 700, 1, enums.OrderItemStatusDeleted, base.Add(2*time.Minute))

	got, err := repo.FindByID(ctx, order.ID, storeID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	require.Equal(t, first.ID, got.Items[0].ID)
	require.Equal(t, second.ID, got.Items[1].ID)
	require.Equal(t, int64(2500), got.Total())
	require.Nil(t, got.Payment)

	_, err = repo.FindByID(ctx, order.ID, uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryFindActiveSkipsClosedOrders(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	storeID := uuid.New()

	active := seedOrder(t, conn, storeID, enums.OrderStatusInProgress)
	paid := seedOrder(t, conn, storeID, enums.OrderStatusPaid)

	got, err := repo.FindActiveForUpdate(ctx, active.ID, storeID)
	require.NoError(t, err)
	require.Equal(t, active.ID, got.ID)

	_, err = repo.FindActiveForUpdate(ctx, paid.ID, storeID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	locked, err := repo.FindForUpdate(ctx, paid.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPaid, locked.Status)
}

func TestRepositoryTransitionStatusIsConditional(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusUsing)

	ok, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusUsing, enums.OrderStatusInProgress, nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.TransitionStatus(ctx, order.ID, enums.OrderStatusUsing, enums.OrderStatusInProgress, nil)
	require.NoError(t, err)
	require.False(t, ok, "stale from status must not apply")

	end := time.Now().UTC()
	ok, err = repo.TransitionStatus(ctx, order.ID, enums.OrderStatusInProgress, enums.OrderStatusPaid, &end)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.FindForUpdate(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPaid, got.Status)
	require.NotNil(t, got.EndTime)
}

func TestRepositoryUpdateLinesStatus(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusInProgress)
	now := time.Now().UTC()
	seedLine(t, conn, order, 1000, 1, enums.OrderItemStatusOrdered, now)
	seedLine(t, conn, order, 2000, 1, enums.OrderItemStatusOrdered, now)
	seedLine(t, conn, order, 3000, 1, enums.OrderItemStatusDeleted, now)

	n, err := repo.UpdateLinesStatus(ctx, order.ID, enums.OrderItemStatusOrdered, enums.OrderItemStatusPaid, now)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	var paid int64
	require.NoError(t, conn.Model(&models.OrderItem{}).
		Where("order_id = ? AND status = ?", order.ID, enums.OrderItemStatusPaid).
		Count(&paid).Error)
	require.Equal(t, int64(2), paid)
}

func TestRepositoryListFiltersAndPaginates(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	storeID := uuid.New()

	seedOrder(t, conn, storeID, enums.OrderStatusUsing)
	seedOrder(t, conn, storeID, enums.OrderStatusPaid)
	seedOrder(t, conn, storeID, enums.OrderStatusDeleted)
	seedOrder(t, conn, uuid.New(), enums.OrderStatusUsing)

	all, err := repo.List(ctx, storeID, ListFilter{}, nil, 10)
	require.NoError(t, err)
	require.Len(t, all, 2, "deleted orders hidden without a filter")

	deleted := enums.OrderStatusDeleted
	onlyDeleted, err := repo.List(ctx, storeID, ListFilter{Status: &deleted}, nil, 10)
	require.NoError(t, err)
	require.Len(t, onlyDeleted, 1)

	firstPage, err := repo.List(ctx, storeID, ListFilter{}, nil, 1)
	require.NoError(t, err)
	require.Len(t, firstPage, 2, "one extra row signals a next page")
	cursor := &pagination.Cursor{CreatedAt: firstPage[0].CreatedAt, ID: firstPage[0].ID}

	rest, err := repo.List(ctx, storeID, ListFilter{}, cursor, 1)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Equal(t, firstPage[1].ID, rest[0].ID)
}
