package orderitems

import (
	"github.com/google/uuid"
)

// CreateOrderItemInput adds count units of an item at price to an order.
// Adding the same item at the same price again merges into the existing line.
type CreateOrderItemInput struct {
	StoreID  uuid.UUID `json:"-"`
	OrderID  uuid.UUID `json:"-"`
	MemberID uuid.UUID `json:"-"`
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Price    int64     `json:"price" validate:"required,min=1"`
	Count    int64     `json:"count" validate:"required,min=1"`
}

// UpdateOrderItemInput sets the count of an existing line.
type UpdateOrderItemInput struct {
	ID       uuid.UUID `json:"-"`
	StoreID  uuid.UUID `json:"-"`
	OrderID  uuid.UUID `json:"-"`
	MemberID uuid.UUID `json:"-"`
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Price    int64     `json:"price" validate:"required,min=1"`
	Count    int64     `json:"count" validate:"required,min=1"`
}

// DeleteOrderItemInput removes a line. Item and price must match the line.
type DeleteOrderItemInput struct {
	ID       uuid.UUID `json:"-"`
	StoreID  uuid.UUID `json:"-"`
	OrderID  uuid.UUID `json:"-"`
	MemberID uuid.UUID `json:"-"`
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Price    int64     `json:"price" validate:"required,min=1"`
}
