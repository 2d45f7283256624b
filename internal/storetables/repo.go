package storetables

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/db"
	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
)

// Repository defines store table persistence. Occupy and Release are
// conditional updates so two orders can never seat on one table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, table *models.StoreTable) error
	FindByID(ctx context.Context, id, storeID uuid.UUID) (*models.StoreTable, error)
	FindForUpdate(ctx context.Context, id, storeID uuid.UUID) (*models.StoreTable, error)
	List(ctx context.Context, storeID uuid.UUID) ([]models.StoreTable, error)
	Occupy(ctx context.Context, id, storeID, orderID uuid.UUID) (bool, error)
	Release(ctx context.Context, id, orderID uuid.UUID) (bool, error)
	MarkDeleted(ctx context.Context, id uuid.UUID) (bool, error)
	HasOrderedLines(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a store table repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, table *models.StoreTable) error {
	return r.db.WithContext(ctx).Create(table).Error
}

// FindByID loads a table that has not been deleted.
func (r *repository) FindByID(ctx context.Context, id, storeID uuid.UUID) (*models.StoreTable, error) {
	var table models.StoreTable
	err := r.db.WithContext(ctx).
		Where("id = ? AND store_id = ? AND status <> ?", id, storeID, enums.StoreTableStatusDeleted).
		First(&table).Error
	if err != nil {
		return nil, err
	}
	return &table, nil
}

// FindForUpdate locks the table row until the transaction ends. Deleted tables
// are returned too so callers can tell them apart from missing ones.
func (r *repository) FindForUpdate(ctx context.Context, id, storeID uuid.UUID) (*models.StoreTable, error) {
	var table models.StoreTable
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("id = ? AND store_id = ?", id, storeID).
		First(&table).Error
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (r *repository) List(ctx context.Context, storeID uuid.UUID) ([]models.StoreTable, error) {
	var tables []models.StoreTable
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND status <> ?", storeID, enums.StoreTableStatusDeleted).
		Order("created_at ASC").
		Order("id ASC").
		Find(&tables).Error
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// Occupy seats orderID on an empty table. It reports false when the table was
// not empty at write time.
func (r *repository) Occupy(ctx context.Context, id, storeID, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StoreTable{}).
		Where("id = ? AND store_id = ? AND status = ?", id, storeID, enums.StoreTableStatusEmpty).
		Updates(map[string]any{
			"status":     enums.StoreTableStatusUsing,
			"order_id":   orderID,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release empties a table orderID is seated on.
func (r *repository) Release(ctx context.Context, id, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StoreTable{}).
		Where("id = ? AND order_id = ? AND status = ?", id, orderID, enums.StoreTableStatusUsing).
		Updates(map[string]any{
			"status":     enums.StoreTableStatusEmpty,
			"order_id":   nil,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkDeleted retires an empty table.
func (r *repository) MarkDeleted(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StoreTable{}).
		Where("id = ? AND status = ?", id, enums.StoreTableStatusEmpty).
		Updates(map[string]any{
			"status":     enums.StoreTableStatusDeleted,
			"order_id":   nil,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// HasOrderedLines reports whether an open order on the table still carries
// ordered lines.
func (r *repository) HasOrderedLines(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("orders").
		Joins("JOIN order_items ON order_items.order_id = orders.id").
		Where("orders.store_table_id = ?", id).
		Where("orders.status IN ?", []enums.OrderStatus{enums.OrderStatusUsing, enums.OrderStatusInProgress}).
		Where("order_items.status = ?", enums.OrderItemStatusOrdered).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
