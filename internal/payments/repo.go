package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/db"
	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
)

// Repository persists payments. Amount and status changes are conditional
// updates so a stale caller never overwrites a newer state.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindOpenForUpdate(ctx context.Context, id, orderID uuid.UUID) (*models.Payment, error)
	FindOpen(ctx context.Context, id, orderID, storeID uuid.UUID) (*models.Payment, error)
	FindByID(ctx context.Context, id, orderID, storeID uuid.UUID) (*models.Payment, error)
	DeleteIfUntendered(ctx context.Context, id uuid.UUID) (bool, error)
	AddPaid(ctx context.Context, id uuid.UUID, amount int64) (bool, error)
	MarkSuccess(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Omit("Methods").Create(payment).Error
}

// FindOpenForUpdate locks an in-progress payment and loads its tenders.
func (r *repository) FindOpenForUpdate(ctx context.Context, id, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Preload("Methods", orderMethods).
		Where("id = ? AND order_id = ? AND status = ?", id, orderID, enums.PaymentStatusInProgress).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindOpen(ctx context.Context, id, orderID, storeID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := scoped(r.db.WithContext(ctx), storeID).
		Preload("Methods", orderMethods).
		Where("payments.id = ? AND payments.order_id = ? AND payments.status = ?", id, orderID, enums.PaymentStatusInProgress).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByID loads a payment in any status.
func (r *repository) FindByID(ctx context.Context, id, orderID, storeID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := scoped(r.db.WithContext(ctx), storeID).
		Preload("Methods", orderMethods).
		Where("payments.id = ? AND payments.order_id = ?", id, orderID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// DeleteIfUntendered removes an in-progress payment that has no tenders.
func (r *repository) DeleteIfUntendered(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, enums.PaymentStatusInProgress).
		Where("NOT EXISTS (SELECT 1 FROM payment_methods WHERE payment_methods.payment_id = payments.id)").
		Delete(&models.Payment{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AddPaid adds amount to the paid total unless it would pass the frozen bill.
func (r *repository) AddPaid(ctx context.Context, id uuid.UUID, amount int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ? AND paid_payment_amount + ? <= initial_payment_amount", id, enums.PaymentStatusInProgress, amount).
		UpdateColumns(map[string]any{
			"paid_payment_amount": gorm.Expr("paid_payment_amount + ?", amount),
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkSuccess closes a fully paid payment.
func (r *repository) MarkSuccess(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ? AND paid_payment_amount = initial_payment_amount", id, enums.PaymentStatusInProgress).
		Updates(map[string]any{
			"status":             enums.PaymentStatusSuccess,
			"complete_date_time": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func scoped(q *gorm.DB, storeID uuid.UUID) *gorm.DB {
	return q.Where("EXISTS (SELECT 1 FROM orders WHERE orders.id = payments.order_id AND orders.store_id = ?)", storeID)
}

func orderMethods(tx *gorm.DB) *gorm.DB {
	return tx.Order("created_at ASC").Order("id ASC")
}
