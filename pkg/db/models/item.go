package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
)

// Item is a priced, stocked catalog entry. Price is in minor units.
type Item struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	StoreID   uuid.UUID        `gorm:"column:store_id;type:uuid;not null"`
	Name      string           `gorm:"column:name;not null"`
	Price     int64            `gorm:"column:price;not null"`
	Stock     int64            `gorm:"column:stock;not null;default:0"`
	Status    enums.ItemStatus `gorm:"column:status;not null;default:'on_sale'"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Item) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.Status == "" {
		i.Status = enums.ItemStatusOnSale
	}
	return nil
}

// DecreaseStock takes count units out of stock.
func (i *Item) DecreaseStock(count int64) error {
	if i.Stock < count {
		return NotEnoughStockError(i.ID, i.Stock, count)
	}
	i.Stock -= count
	return nil
}

// IncreaseStock returns count units to stock.
func (i *Item) IncreaseStock(count int64) {
	i.Stock += count
}

// Delete soft-deletes the item; it stays referenced by historical lines.
func (i *Item) Delete() error {
	if i.Status == enums.ItemStatusDeleted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "item already deleted").
			WithReason(pkgerrors.ReasonItemAlreadyDeleted)
	}
	i.Status = enums.ItemStatusDeleted
	return nil
}

// NotEnoughStockError is the capacity violation raised when stock < requested.
func NotEnoughStockError(itemID uuid.UUID, stock, requested int64) error {
	return pkgerrors.New(pkgerrors.CodeCapacity, "not enough stock").
		WithReason(pkgerrors.ReasonNotEnoughStock).
		WithDetails(map[string]any{
			"item_id":   itemID,
			"stock":     stock,
			"requested": requested,
		})
}
