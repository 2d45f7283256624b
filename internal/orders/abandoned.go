package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/enums"
)

// AbandonedOrder identifies a seated order that never got anything on its bill.
type AbandonedOrder struct {
	ID      uuid.UUID
	StoreID uuid.UUID
}

// AbandonedFinder lists seated orders with no ordered lines and no payment.
type AbandonedFinder interface {
	ListAbandoned(ctx context.Context, seatedBefore time.Time, limit int) ([]AbandonedOrder, error)
}

// NewAbandonedFinder builds a finder over the orders table.
func NewAbandonedFinder(db *gorm.DB) AbandonedFinder {
	return &repository{db: db}
}

func (r *repository) ListAbandoned(ctx context.Context, seatedBefore time.Time, limit int) ([]AbandonedOrder, error) {
	var rows []AbandonedOrder
	err := r.db.WithContext(ctx).
		Table("orders").
		Select("orders.id AS id, orders.store_id AS store_id").
		Where("orders.status = ? AND orders.start_time < ?", enums.OrderStatusUsing, seatedBefore).
		Where("NOT EXISTS (SELECT 1 FROM order_items WHERE order_items.order_id = orders.id AND order_items.status = ?)", enums.OrderItemStatusOrdered).
		Where("NOT EXISTS (SELECT 1 FROM payments WHERE payments.order_id = orders.id)").
		Order("orders.start_time ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
