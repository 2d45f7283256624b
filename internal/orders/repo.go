package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/db"
	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	"github.com/mylittlestore/pos-backend/pkg/pagination"
)

var activeStatuses = []enums.OrderStatus{enums.OrderStatusUsing, enums.OrderStatusInProgress}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items", "Payment").Create(order).Error
}

// FindByID loads a non-deleted order with its live lines and payment.
func (r *repository) FindByID(ctx context.Context, id, storeID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := withAggregate(r.db.WithContext(ctx)).
		Where("id = ? AND store_id = ? AND status <> ?", id, storeID, enums.OrderStatusDeleted).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindActiveForUpdate loads an order that can still be changed and locks its
// row, serialising every line and payment mutation of the order.
func (r *repository) FindActiveForUpdate(ctx context.Context, id, storeID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := withAggregate(db.ForUpdate(r.db.WithContext(ctx))).
		Where("id = ? AND store_id = ? AND status IN ?", id, storeID, activeStatuses).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForUpdate locks an order regardless of status.
func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := withAggregate(db.ForUpdate(r.db.WithContext(ctx))).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, storeID uuid.UUID, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Where("store_id = ?", storeID)
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	} else {
		q = q.Where("status <> ?", enums.OrderStatusDeleted)
	}
	var orders []models.Order
	if err := pagination.Apply(q.Preload("Payment"), cursor, limit).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// TransitionStatus moves the order from one status to another and reports
// whether the row was still in from.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, endTime *time.Time) (bool, error) {
	updates := map[string]any{"status": to}
	if endTime != nil {
		updates["end_time"] = *endTime
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateLinesStatus flips every line of the order in from to to.
func (r *repository) UpdateLinesStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderItemStatus, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

func withAggregate(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Items", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("status <> ?", enums.OrderItemStatusDeleted).
				Order("ordered_at ASC").
				Order("id ASC")
		}).
		Preload("Payment")
}
