package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
)

// PaymentMethod is one tender toward a payment. ProviderPaymentID is set when
// the tender was charged through a card processor.
type PaymentMethod struct {
	ID                uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID         uuid.UUID                 `gorm:"column:payment_id;type:uuid;not null"`
	Type              enums.PaymentMethodType   `gorm:"column:type;not null"`
	Amount            int64                     `gorm:"column:amount;not null"`
	Status            enums.PaymentMethodStatus `gorm:"column:status;not null;default:'in_progress'"`
	CompleteDateTime  *time.Time                `gorm:"column:complete_date_time"`
	ProviderPaymentID *string                   `gorm:"column:provider_payment_id"`
	CreatedAt         time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *PaymentMethod) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = enums.PaymentMethodStatusInProgress
	}
	return nil
}

// MarkPaid settles the tender. It can happen once.
func (m *PaymentMethod) MarkPaid(now time.Time) error {
	if m.Status == enums.PaymentMethodStatusPaid || m.CompleteDateTime != nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment method already paid").
			WithReason(pkgerrors.ReasonAlreadyPaid).
			WithDetails(map[string]any{"payment_method_id": m.ID, "payment_id": m.PaymentID})
	}
	m.Status = enums.PaymentMethodStatusPaid
	done := now
	m.CompleteDateTime = &done
	return nil
}
