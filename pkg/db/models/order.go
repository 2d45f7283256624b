package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
)

// Order is one dining session on a table. It owns its lines and at most one
// payment.
type Order struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	StoreID      uuid.UUID         `gorm:"column:store_id;type:uuid;not null"`
	StoreTableID uuid.UUID         `gorm:"column:store_table_id;type:uuid;not null"`
	StartTime    time.Time         `gorm:"column:start_time;not null"`
	EndTime      *time.Time        `gorm:"column:end_time"`
	Status       enums.OrderStatus `gorm:"column:status;not null;default:'using'"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Items   []OrderItem `gorm:"foreignKey:OrderID;references:ID"`
	Payment *Payment    `gorm:"foreignKey:OrderID;references:ID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = enums.OrderStatusUsing
	}
	return nil
}

// EnsureNoPayment guards every mutation of the bill: once checkout starts
// the lines are frozen.
func (o *Order) EnsureNoPayment() error {
	if o.Payment == nil {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "payment already exists").
		WithReason(pkgerrors.ReasonPaymentAlreadyExists).
		WithDetails(map[string]any{
			"payment_id":     o.Payment.ID,
			"store_table_id": o.StoreTableID,
			"order_id":       o.ID,
		})
}

// OrderedItems returns the lines still counted toward the bill.
func (o *Order) OrderedItems() []OrderItem {
	out := make([]OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		if item.Status == enums.OrderItemStatusOrdered {
			out = append(out, item)
		}
	}
	return out
}

// Total sums price x count over ordered lines.
func (o *Order) Total() int64 {
	var total int64
	for _, item := range o.OrderedItems() {
		total += item.LineTotal()
	}
	return total
}

// StartCheckout moves a seated order into payment.
func (o *Order) StartCheckout() error {
	if o.Status != enums.OrderStatusUsing {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not open for checkout").
			WithDetails(map[string]any{"order_id": o.ID, "status": o.Status})
	}
	o.Status = enums.OrderStatusInProgress
	return nil
}

// RevertToUsing undoes StartCheckout after an aborted payment.
func (o *Order) RevertToUsing() error {
	if o.Status != enums.OrderStatusInProgress {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not in progress").
			WithReason(pkgerrors.ReasonOrderNotInProgress).
			WithDetails(map[string]any{"order_id": o.ID, "status": o.Status})
	}
	o.Status = enums.OrderStatusUsing
	return nil
}

// PaymentSuccess closes the order once its payment settled. The checks guard
// the settlement cascade; failing any of them means the aggregate is corrupt.
func (o *Order) PaymentSuccess(now time.Time) error {
	if o.Status != enums.OrderStatusInProgress {
		return invariantError(pkgerrors.ReasonOrderNotInProgress, "order is not in progress", o.ID)
	}
	if o.EndTime != nil {
		return invariantError(pkgerrors.ReasonOrderAlreadyHasEndTime, "order already has an end time", o.ID)
	}
	if len(o.OrderedItems()) == 0 {
		return invariantError(pkgerrors.ReasonOrderHasNoOrderItem, "order has no order items", o.ID)
	}
	o.Status = enums.OrderStatusPaid
	end := now
	o.EndTime = &end
	return nil
}

// Delete retires an order administratively. Paid orders are final.
func (o *Order) Delete(now time.Time) error {
	switch o.Status {
	case enums.OrderStatusPaid:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid").
			WithReason(pkgerrors.ReasonOrderAlreadyPaid)
	case enums.OrderStatusDeleted:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order already deleted").
			WithReason(pkgerrors.ReasonOrderAlreadyDeleted)
	}
	if err := o.EnsureNoPayment(); err != nil {
		return err
	}
	o.Status = enums.OrderStatusDeleted
	end := now
	o.EndTime = &end
	return nil
}

func invariantError(reason pkgerrors.Reason, msg string, orderID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeInvariant, msg).
		WithReason(reason).
		WithDetails(map[string]any{"order_id": orderID})
}
