package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mylittlestore/pos-backend/pkg/db/dbtest"
	"github.com/mylittlestore/pos-backend/pkg/enums"
)

func TestListAbandonedSkipsOrdersWithBill(t *testing.T) {
	conn := dbtest.Open(t)
	store := dbtest.SeedStore(t, conn)

	empty := seedOrder(t, conn, store.ID, enums.OrderStatusUsing)
	onlyRemoved := seedOrder(t, conn, store.ID, enums.OrderStatusUsing)
	seedLine(t, conn, onlyRemoved, 500, 1, enums.OrderItemStatusDeleted, time.Now().UTC())
	withLine := seedOrder(t, conn, store.ID, enums.OrderStatusUsing)
	seedLine(t, conn, withLine, 500, 1, enums.OrderItemStatusOrdered, time.Now().UTC())
	seedOrder(t, conn, store.ID, enums.OrderStatusInProgress)

	rows, err := NewAbandonedFinder(conn).ListAbandoned(context.Background(), time.Now().UTC().Add(time.Minute), 10)
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, row := range rows {
		require.Equal(t, store.ID, row.StoreID)
		ids[row.ID.String()] = true
	}
	require.Len(t, rows, 2)
	require.True(t, ids[empty.ID.String()])
	require.True(t, ids[onlyRemoved.ID.String()])
}

func TestListAbandonedHonoursCutoff(t *testing.T) {
	conn := dbtest.Open(t)
	store := dbtest.SeedStore(t, conn)
	seedOrder(t, conn, store.ID, enums.OrderStatusUsing)

	rows, err := NewAbandonedFinder(conn).ListAbandoned(context.Background(), time.Now().UTC().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Empty(t, rows)
}
