package items

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/money"
)

// ItemDTO is the catalog view of an item.
type ItemDTO struct {
	ID        uuid.UUID        `json:"id"`
	StoreID   uuid.UUID        `json:"store_id"`
	Name      string           `json:"name"`
	Price     money.Amount     `json:"price"`
	Stock     int64            `json:"stock"`
	Status    enums.ItemStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// CreateItemInput carries the fields of a new catalog entry.
type CreateItemInput struct {
	Name  string `json:"name" validate:"required,min=1,max=128"`
	Price int64  `json:"price" validate:"required,gte=1"`
	Stock int64  `json:"stock" validate:"gte=0"`
}

// UpdateItemInput carries the mutable item fields. Nil fields are left alone.
type UpdateItemInput struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1,max=128"`
	Price *int64  `json:"price,omitempty" validate:"omitempty,gte=1"`
	Stock *int64  `json:"stock,omitempty" validate:"omitempty,gte=0"`
}

// changes trims and validates input.
func (in UpdateItemInput) changes() (Changes, error) {
	var c Changes
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return c, pkgerrors.New(pkgerrors.CodeValidation, "item name required")
		}
		c.Name = &name
	}
	if in.Price != nil {
		if *in.Price < 1 {
			return c, pkgerrors.New(pkgerrors.CodeValidation, "price must be at least 1")
		}
		c.Price = in.Price
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return c, pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
		}
		c.Stock = in.Stock
	}
	return c, nil
}

// FromModel maps an item into its view.
func FromModel(m *models.Item, f money.Formatter) *ItemDTO {
	if m == nil {
		return nil
	}
	return &ItemDTO{
		ID:        m.ID,
		StoreID:   m.StoreID,
		Name:      m.Name,
		Price:     f.Amount(m.Price),
		Stock:     m.Stock,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}
}
