package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
)

// Address is the postal location of a store.
type Address struct {
	City    string `gorm:"column:city;not null"`
	Street  string `gorm:"column:street;not null"`
	Zipcode string `gorm:"column:zipcode;not null"`
}

// Store is the tenant a member operates. Tables and items belong to it.
type Store struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	MemberID  uuid.UUID         `gorm:"column:member_id;type:uuid;not null"`
	Name      string            `gorm:"column:name;not null"`
	Address   Address           `gorm:"embedded;embeddedPrefix:address_"`
	Status    enums.StoreStatus `gorm:"column:status;not null;default:'closed'"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Store) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = enums.StoreStatusClosed
	}
	return nil
}

// IsOpen reports whether the store accepts new orders.
func (s *Store) IsOpen() bool {
	return s.Status == enums.StoreStatusOpen
}

// EnsureOpen fails with a state conflict carrying the store id when closed.
func (s *Store) EnsureOpen() error {
	if s.IsOpen() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "store is closed").
		WithReason(pkgerrors.ReasonStoreClosed).
		WithDetails(map[string]any{"store_id": s.ID})
}

// ToggleStatus flips the store between open and closed and returns the new status.
func (s *Store) ToggleStatus() enums.StoreStatus {
	if s.IsOpen() {
		s.Status = enums.StoreStatusClosed
	} else {
		s.Status = enums.StoreStatusOpen
	}
	return s.Status
}
