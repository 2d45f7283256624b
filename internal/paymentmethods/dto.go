package paymentmethods

import (
	"github.com/google/uuid"

	"github.com/mylittlestore/pos-backend/pkg/enums"
)

// CreatePaymentMethodInput records a new tender against an open payment.
type CreatePaymentMethodInput struct {
	StoreID   uuid.UUID               `json:"-"`
	OrderID   uuid.UUID               `json:"-"`
	PaymentID uuid.UUID               `json:"-"`
	MemberID  uuid.UUID               `json:"-"`
	Type      enums.PaymentMethodType `json:"type" validate:"required,payment_method_type"`
	Amount    int64                   `json:"amount" validate:"gt=0"`
}

// SucceedInput settles a tender. StoreID is empty when the caller is a
// provider callback rather than a member.
type SucceedInput struct {
	ID                uuid.UUID
	StoreID           uuid.UUID
	MemberID          uuid.UUID
	ProviderPaymentID *string
}

// CancelInput drops a tender that has not been paid.
type CancelInput struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	OrderID   uuid.UUID
	StoreID   uuid.UUID
	MemberID  uuid.UUID
}

// ChargeCardInput charges a card tender through the card processor.
type ChargeCardInput struct {
	ID             uuid.UUID `json:"-"`
	PaymentID      uuid.UUID `json:"-"`
	OrderID        uuid.UUID `json:"-"`
	StoreID        uuid.UUID `json:"-"`
	MemberID       uuid.UUID `json:"-"`
	SourceID       string    `json:"source_id" validate:"required"`
	IdempotencyKey string    `json:"-"`
}
