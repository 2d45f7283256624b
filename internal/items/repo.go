package items

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/db"
	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/pagination"
)

// Changes are the catalog fields an update sets. Nil fields keep the stored
// value; in particular stock is only written when Stock is set.
type Changes struct {
	Name  *string
	Price *int64
	Stock *int64
}

func (c Changes) columns() map[string]any {
	cols := map[string]any{}
	if c.Name != nil {
		cols["name"] = *c.Name
	}
	if c.Price != nil {
		cols["price"] = *c.Price
	}
	if c.Stock != nil {
		cols["stock"] = *c.Stock
	}
	return cols
}

// Repository defines item persistence. Ordering moves stock through
// DecreaseStock and IncreaseStock; Update only sets stock on an explicit
// restock.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.Item) error
	FindByID(ctx context.Context, id, storeID uuid.UUID) (*models.Item, error)
	FindForUpdate(ctx context.Context, id, storeID uuid.UUID) (*models.Item, error)
	List(ctx context.Context, storeID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Item, error)
	Update(ctx context.Context, id uuid.UUID, changes Changes) error
	MarkDeleted(ctx context.Context, id uuid.UUID) (bool, error)
	DecreaseStock(ctx context.Context, id uuid.UUID, count int64) error
	IncreaseStock(ctx context.Context, id uuid.UUID, count int64) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an item repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// FindByID loads an item that is still on sale.
func (r *repository) FindByID(ctx context.Context, id, storeID uuid.UUID) (*models.Item, error) {
	var item models.Item
	err := r.db.WithContext(ctx).
		Where("id = ? AND store_id = ? AND status = ?", id, storeID, enums.ItemStatusOnSale).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindForUpdate loads an on-sale item and locks its row until the
// transaction ends.
func (r *repository) FindForUpdate(ctx context.Context, id, storeID uuid.UUID) (*models.Item, error) {
	var item models.Item
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("id = ? AND store_id = ? AND status = ?", id, storeID, enums.ItemStatusOnSale).
		Take(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) List(ctx context.Context, storeID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Item, error) {
	var items []models.Item
	q := r.db.WithContext(ctx).
		Where("store_id = ? AND status = ?", storeID, enums.ItemStatusOnSale)
	if err := pagination.Apply(q, cursor, limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Update writes the set fields of changes to an on-sale item.
func (r *repository) Update(ctx context.Context, id uuid.UUID, changes Changes) error {
	cols := changes.columns()
	if len(cols) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND status = ?", id, enums.ItemStatusOnSale).
		Updates(cols).Error
}

func (r *repository) MarkDeleted(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND status = ?", id, enums.ItemStatusOnSale).
		Update("status", enums.ItemStatusDeleted)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DecreaseStock takes count units in one conditional UPDATE. When no row
// matches, the item is reloaded to tell a missing item from a short one.
func (r *repository) DecreaseStock(ctx context.Context, id uuid.UUID, count int64) error {
	if count <= 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND stock >= ?", id, count).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock - ?", count),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrease stock")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var item models.Item
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not found").
				WithReason(pkgerrors.ReasonNoSuchItem)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload item")
	}
	if err := item.DecreaseStock(count); err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "stock changed concurrently").
		WithDetails(map[string]any{"item_id": id})
}

// IncreaseStock returns count units. It reports false when the item no longer
// exists.
func (r *repository) IncreaseStock(ctx context.Context, id uuid.UUID, count int64) (bool, error) {
	if count <= 0 {
		return true, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock + ?", count),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increase stock")
	}
	return res.RowsAffected == 1, nil
}
