package orderitems

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
)

func newLine(orderID, storeID, itemID uuid.UUID, price, count int64, at time.Time) *models.OrderItem {
	return &models.OrderItem{
		StoreID:   storeID,
		OrderID:   orderID,
		ItemID:    itemID,
		ItemName:  "Kimbap",
		Price:     price,
		Count:     count,
		OrderedAt: at,
		UpdatedAt: at,
	}
}

func TestRepositoryKeyLookupIgnoresDeletedLines(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	orderID, storeID, itemID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	gone := newLine(orderID, storeID, itemID, 1000, 1, now)
	require.NoError(t, repo.Create(ctx, gone))
	ok, err := repo.MarkDeleted(ctx, gone.ID, now)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = repo.FindOrderedByKey(ctx, orderID, itemID, 1000)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	live := newLine(orderID, storeID, itemID, 1000, 2, now)
	require.NoError(t, repo.Create(ctx, live), "a deleted line does not block its key")

	got, err := repo.FindOrderedByKey(ctx, orderID, itemID, 1000)
	require.NoError(t, err)
	require.Equal(t, live.ID, got.ID)

	_, err = repo.FindOrderedByKey(ctx, orderID, itemID, 1200)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound, "price is part of the key")

	ok, err = repo.MarkDeleted(ctx, gone.ID, now)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRepositoryDuplicateLiveKeyRejected(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	orderID, storeID, itemID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, newLine(orderID, storeID, itemID, 1000, 1, now)))
	require.Error(t, repo.Create(ctx, newLine(orderID, storeID, itemID, 1000, 1, now)))
	require.NoError(t, repo.Create(ctx, newLine(orderID, storeID, itemID, 900, 1, now)))
}

func TestRepositoryFindMatchingRequiresEveryField(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	orderID, storeID, itemID := uuid.New(), uuid.New(), uuid.New()

	line := newLine(orderID, storeID, itemID, 1000, 3, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, line))

	key := LineKey{ID: line.ID, OrderID: orderID, ItemID: itemID, Price: 1000}
	got, err := repo.FindMatching(ctx, key)
	require.NoError(t, err)
	require.Equal(t, int64(3), got.Count)

	for name, bad := range map[string]LineKey{
		"order": {ID: line.ID, OrderID: uuid.New(), ItemID: itemID, Price: 1000},
		"item":  {ID: line.ID, OrderID: orderID, ItemID: uuid.New(), Price: 1000},
		"price": {ID: line.ID, OrderID: orderID, ItemID: itemID, Price: 999},
	} {
		_, err := repo.FindMatching(ctx, bad)
		require.ErrorIs(t, err, gorm.ErrRecordNotFound, name)
	}
}

func TestRepositoryListByOrderSortsByOrderedAt(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	orderID, storeID := uuid.New(), uuid.New()
	base := time.Now().UTC().Truncate(time.Second)

	late := newLine(orderID, storeID, uuid.New(), 1000, 1, base.Add(time.Minute))
	early := newLine(orderID, storeID, uuid.New(), 2000, 1, base)
	require.NoError(t, repo.Create(ctx, late))
	require.NoError(t, repo.Create(ctx, early))

	lines, err := repo.ListByOrder(ctx, orderID, storeID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, early.ID, lines[0].ID)
	require.Equal(t, late.ID, lines[1].ID)

	early.ChangeCount(5, base.Add(2*time.Minute))
	require.NoError(t, repo.SaveCount(ctx, early))
	got, err := repo.FindByID(ctx, early.ID, orderID, storeID)
	require.NoError(t, err)
	require.Equal(t, int64(5), got.Count)
	require.Equal(t, enums.OrderItemStatusOrdered, got.Status)

	_, err = repo.FindByID(ctx, early.ID, orderID, uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
