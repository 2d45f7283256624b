package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	"github.com/mylittlestore/pos-backend/pkg/money"
)

// StartPaymentInput freezes the bill of an order.
type StartPaymentInput struct {
	StoreID  uuid.UUID
	OrderID  uuid.UUID
	MemberID uuid.UUID
}

// AbortPaymentInput cancels a checkout that has no tenders yet.
type AbortPaymentInput struct {
	PaymentID uuid.UUID
	StoreID   uuid.UUID
	OrderID   uuid.UUID
	MemberID  uuid.UUID
}

// MethodDTO is the flattened view of one tender.
type MethodDTO struct {
	ID                uuid.UUID                 `json:"id"`
	PaymentID         uuid.UUID                 `json:"payment_id"`
	Type              enums.PaymentMethodType   `json:"type"`
	Amount            money.Amount              `json:"amount"`
	Status            enums.PaymentMethodStatus `json:"status"`
	CompleteDateTime  *time.Time                `json:"complete_date_time,omitempty"`
	ProviderPaymentID *string                   `json:"provider_payment_id,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
}

// PaymentDTO reports the frozen bill and how much of it is covered.
type PaymentDTO struct {
	ID                   uuid.UUID           `json:"id"`
	OrderID              uuid.UUID           `json:"order_id"`
	Status               enums.PaymentStatus `json:"status"`
	InitialPaymentAmount money.Amount        `json:"initial_payment_amount"`
	PaidPaymentAmount    money.Amount        `json:"paid_payment_amount"`
	LeftToPay            money.Amount        `json:"left_to_pay"`
	CompleteDateTime     *time.Time          `json:"complete_date_time,omitempty"`
	Methods              []MethodDTO         `json:"methods"`
}

// MethodFromModel maps one tender.
func MethodFromModel(m *models.PaymentMethod, f money.Formatter) MethodDTO {
	return MethodDTO{
		ID:                m.ID,
		PaymentID:         m.PaymentID,
		Type:              m.Type,
		Amount:            f.Amount(m.Amount),
		Status:            m.Status,
		CompleteDateTime:  m.CompleteDateTime,
		ProviderPaymentID: m.ProviderPaymentID,
		CreatedAt:         m.CreatedAt,
	}
}

func FromModel(m *models.Payment, f money.Formatter) *PaymentDTO {
	if m == nil {
		return nil
	}
	dto := &PaymentDTO{
		ID:                   m.ID,
		OrderID:              m.OrderID,
		Status:               m.Status,
		InitialPaymentAmount: f.Amount(m.InitialPaymentAmount),
		PaidPaymentAmount:    f.Amount(m.PaidPaymentAmount),
		LeftToPay:            f.Amount(m.LeftToPay()),
		CompleteDateTime:     m.CompleteDateTime,
		Methods:              make([]MethodDTO, 0, len(m.Methods)),
	}
	for i := range m.Methods {
		dto.Methods = append(dto.Methods, MethodFromModel(&m.Methods[i], f))
	}
	return dto
}
