package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
)

// StoreTable is an occupancy slot inside a store. OrderID points at the
// order currently seated on it, if any.
type StoreTable struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	StoreID   uuid.UUID              `gorm:"column:store_id;type:uuid;not null"`
	OrderID   *uuid.UUID             `gorm:"column:order_id;type:uuid"`
	Status    enums.StoreTableStatus `gorm:"column:status;not null;default:'empty'"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *StoreTable) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = enums.StoreTableStatusEmpty
	}
	return nil
}

// AttachOrder seats orderID on the table. Only an empty table can be seated;
// otherwise the conflict names the order already there.
func (t *StoreTable) AttachOrder(orderID uuid.UUID) error {
	switch t.Status {
	case enums.StoreTableStatusEmpty:
		t.Status = enums.StoreTableStatusUsing
		t.OrderID = &orderID
		return nil
	case enums.StoreTableStatusDeleted:
		return pkgerrors.New(pkgerrors.CodeNotFound, "store table not found").
			WithReason(pkgerrors.ReasonNoSuchStoreTable)
	default:
		return t.OccupiedError()
	}
}

// Release frees a table in use. Tables in any other state are left alone.
func (t *StoreTable) Release() bool {
	if t.Status != enums.StoreTableStatusUsing {
		return false
	}
	t.Status = enums.StoreTableStatusEmpty
	t.OrderID = nil
	return true
}

// Delete retires the table. A table with a seated order cannot be deleted.
func (t *StoreTable) Delete() error {
	switch t.Status {
	case enums.StoreTableStatusDeleted:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "store table already deleted").
			WithReason(pkgerrors.ReasonTableAlreadyDeleted)
	case enums.StoreTableStatusUsing:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "store table is in use").
			WithReason(pkgerrors.ReasonTableUsing).
			WithDetails(t.redirectDetails())
	}
	t.Status = enums.StoreTableStatusDeleted
	t.OrderID = nil
	return nil
}

// OccupiedError is the conflict returned when an order is requested on a
// table that is already seated.
func (t *StoreTable) OccupiedError() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "store table already has an order").
		WithReason(pkgerrors.ReasonTableAlreadyOccupied).
		WithDetails(t.redirectDetails())
}

func (t *StoreTable) redirectDetails() map[string]any {
	details := map[string]any{"store_table_id": t.ID}
	if t.OrderID != nil {
		details["order_id"] = *t.OrderID
	}
	return details
}
