package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
)

// Payment is the checkout of one order. InitialPaymentAmount is the bill
// frozen when checkout started and is never recomputed.
type Payment struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID              uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	InitialPaymentAmount int64               `gorm:"column:initial_payment_amount;not null"`
	PaidPaymentAmount    int64               `gorm:"column:paid_payment_amount;not null;default:0"`
	CompleteDateTime     *time.Time          `gorm:"column:complete_date_time"`
	Status               enums.PaymentStatus `gorm:"column:status;not null;default:'in_progress'"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Methods []PaymentMethod `gorm:"foreignKey:PaymentID;references:ID"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = enums.PaymentStatusInProgress
	}
	return nil
}

// Pays records amount against the frozen bill.
func (p *Payment) Pays(amount int64) error {
	if p.Status == enums.PaymentStatusSuccess {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already succeeded").
			WithReason(pkgerrors.ReasonPaymentAlreadySuccess).
			WithDetails(map[string]any{"payment_id": p.ID})
	}
	if p.PaidPaymentAmount+amount > p.InitialPaymentAmount {
		return pkgerrors.New(pkgerrors.CodeCapacity, "paid amount would exceed the bill").
			WithReason(pkgerrors.ReasonPaidPaymentAmountExceeded).
			WithDetails(map[string]any{
				"payment_id":     p.ID,
				"initial_amount": p.InitialPaymentAmount,
				"paid_amount":    p.PaidPaymentAmount,
				"requested":      amount,
			})
	}
	p.PaidPaymentAmount += amount
	return nil
}

// IsFullyPaid reports whether the bill has been covered.
func (p *Payment) IsFullyPaid() bool {
	return p.PaidPaymentAmount > 0 && p.PaidPaymentAmount == p.InitialPaymentAmount
}

// MarkSuccess closes the payment.
func (p *Payment) MarkSuccess(now time.Time) {
	p.Status = enums.PaymentStatusSuccess
	done := now
	p.CompleteDateTime = &done
}

// LeftToPay is what new tenders may still claim: the bill minus settled
// tenders and tenders already created but not yet settled.
func (p *Payment) LeftToPay() int64 {
	var claimed int64
	for _, method := range p.Methods {
		claimed += method.Amount
	}
	return p.InitialPaymentAmount - claimed
}

// SettledAmount sums tenders already marked paid.
func (p *Payment) SettledAmount() int64 {
	var paid int64
	for _, method := range p.Methods {
		if method.Status == enums.PaymentMethodStatusPaid {
			paid += method.Amount
		}
	}
	return paid
}
