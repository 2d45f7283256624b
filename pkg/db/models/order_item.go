package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
)

// OrderItem is one line of an order, keyed by (order, item, price). ItemName
// and Price are snapshots taken when the line was created.
type OrderItem struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	StoreID   uuid.UUID             `gorm:"column:store_id;type:uuid;not null"`
	OrderID   uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	ItemID    uuid.UUID             `gorm:"column:item_id;type:uuid;not null"`
	ItemName  string                `gorm:"column:item_name;not null"`
	Price     int64                 `gorm:"column:price;not null"`
	Count     int64                 `gorm:"column:count;not null"`
	Status    enums.OrderItemStatus `gorm:"column:status;not null;default:'ordered'"`
	OrderedAt time.Time             `gorm:"column:ordered_at;not null"`
	UpdatedAt time.Time             `gorm:"column:updated_at;not null"`
}

func (oi *OrderItem) BeforeCreate(*gorm.DB) error {
	if oi.ID == uuid.Nil {
		oi.ID = uuid.New()
	}
	if oi.Status == "" {
		oi.Status = enums.OrderItemStatusOrdered
	}
	return nil
}

// LineTotal is price x count.
func (oi *OrderItem) LineTotal() int64 {
	return oi.Price * oi.Count
}

// AddCount merges another add of the same (item, price) into this line.
func (oi *OrderItem) AddCount(count int64, now time.Time) {
	oi.Count += count
	oi.UpdatedAt = now
}

// ChangeCount sets the line to newCount and returns oldCount - newCount:
// positive means units go back to stock, negative means more are taken.
func (oi *OrderItem) ChangeCount(newCount int64, now time.Time) int64 {
	delta := oi.Count - newCount
	oi.Count = newCount
	oi.UpdatedAt = now
	return delta
}

// MarkPaid flips an ordered line to paid during settlement.
func (oi *OrderItem) MarkPaid() error {
	switch oi.Status {
	case enums.OrderItemStatusDeleted:
		return pkgerrors.New(pkgerrors.CodeInvariant, "order item already deleted").
			WithReason(pkgerrors.ReasonOrderItemAlreadyDeleted).
			WithDetails(map[string]any{"order_item_id": oi.ID})
	case enums.OrderItemStatusPaid:
		return pkgerrors.New(pkgerrors.CodeInvariant, "order item already paid").
			WithReason(pkgerrors.ReasonOrderItemAlreadyPaid).
			WithDetails(map[string]any{"order_item_id": oi.ID})
	}
	oi.Status = enums.OrderItemStatusPaid
	return nil
}

// Delete soft-deletes the line.
func (oi *OrderItem) Delete(now time.Time) error {
	if oi.Status == enums.OrderItemStatusDeleted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order item already deleted").
			WithReason(pkgerrors.ReasonOrderItemAlreadyDeleted)
	}
	if oi.Status == enums.OrderItemStatusPaid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order item already paid").
			WithReason(pkgerrors.ReasonOrderItemAlreadyPaid)
	}
	oi.Status = enums.OrderItemStatusDeleted
	oi.UpdatedAt = now
	return nil
}
