package orderitems

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
)

// Repository persists order lines. Callers hold the parent order lock, so
// reads here are plain selects.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, line *models.OrderItem) error
	FindOrderedByKey(ctx context.Context, orderID, itemID uuid.UUID, price int64) (*models.OrderItem, error)
	FindMatching(ctx context.Context, key LineKey) (*models.OrderItem, error)
	FindByID(ctx context.Context, id, orderID, storeID uuid.UUID) (*models.OrderItem, error)
	ListByOrder(ctx context.Context, orderID, storeID uuid.UUID) ([]models.OrderItem, error)
	SaveCount(ctx context.Context, line *models.OrderItem) error
	MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// LineKey identifies an ordered line together with the item and price the
// caller believes it has.
type LineKey struct {
	ID      uuid.UUID
	OrderID uuid.UUID
	ItemID  uuid.UUID
	Price   int64
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an order line repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, line *models.OrderItem) error {
	return r.db.WithContext(ctx).Create(line).Error
}

// FindOrderedByKey looks up the live line for (order, item, price).
func (r *repository) FindOrderedByKey(ctx context.Context, orderID, itemID uuid.UUID, price int64) (*models.OrderItem, error) {
	var line models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND item_id = ? AND price = ? AND status = ?", orderID, itemID, price, enums.OrderItemStatusOrdered).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *repository) FindMatching(ctx context.Context, key LineKey) (*models.OrderItem, error) {
	var line models.OrderItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND order_id = ? AND item_id = ? AND price = ? AND status = ?",
			key.ID, key.OrderID, key.ItemID, key.Price, enums.OrderItemStatusOrdered).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *repository) FindByID(ctx context.Context, id, orderID, storeID uuid.UUID) (*models.OrderItem, error) {
	var line models.OrderItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND order_id = ? AND store_id = ? AND status = ?", id, orderID, storeID, enums.OrderItemStatusOrdered).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// ListByOrder returns ordered lines oldest first.
func (r *repository) ListByOrder(ctx context.Context, orderID, storeID uuid.UUID) ([]models.OrderItem, error) {
	var lines []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND store_id = ? AND status = ?", orderID, storeID, enums.OrderItemStatusOrdered).
		Order("ordered_at ASC").
		Order("id ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repository) SaveCount(ctx context.Context, line *models.OrderItem) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ? AND status = ?", line.ID, enums.OrderItemStatusOrdered).
		Updates(map[string]any{
			"count":      line.Count,
			"price":      line.Price,
			"updated_at": line.UpdatedAt,
		}).Error
}

func (r *repository) MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ? AND status = ?", id, enums.OrderItemStatusOrdered).
		Updates(map[string]any{
			"status":     enums.OrderItemStatusDeleted,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
