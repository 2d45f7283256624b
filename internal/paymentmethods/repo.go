package paymentmethods

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
)

// Owner identifies the payment and order a tender belongs to.
type Owner struct {
	PaymentID uuid.UUID
	OrderID   uuid.UUID
	StoreID   uuid.UUID
	Status    enums.PaymentMethodStatus
}

// Repository persists tenders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, method *models.PaymentMethod) error
	Locate(ctx context.Context, id uuid.UUID) (*Owner, error)
	FindByID(ctx context.Context, id, paymentID uuid.UUID) (*models.PaymentMethod, error)
	FindOpen(ctx context.Context, id, paymentID, storeID uuid.UUID) (*models.PaymentMethod, error)
	ListByPayment(ctx context.Context, paymentID, storeID uuid.UUID) ([]models.PaymentMethod, error)
	MarkPaid(ctx context.Context, id uuid.UUID, at time.Time, providerPaymentID *string) (bool, error)
	DeleteOpen(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payment methods repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, method *models.PaymentMethod) error {
	return r.db.WithContext(ctx).Create(method).Error
}

// Locate resolves the owning payment, order and store of a tender without
// taking any lock.
func (r *repository) Locate(ctx context.Context, id uuid.UUID) (*Owner, error) {
	var row struct {
		PaymentID uuid.UUID
		OrderID   uuid.UUID
		StoreID   uuid.UUID
		Status    enums.PaymentMethodStatus
	}
	res := r.db.WithContext(ctx).
		Table("payment_methods").
		Select("payment_methods.payment_id AS payment_id, payments.order_id AS order_id, orders.store_id AS store_id, payment_methods.status AS status").
		Joins("JOIN payments ON payments.id = payment_methods.payment_id").
		Joins("JOIN orders ON orders.id = payments.order_id").
		Where("payment_methods.id = ?", id).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &Owner{PaymentID: row.PaymentID, OrderID: row.OrderID, StoreID: row.StoreID, Status: row.Status}, nil
}

// FindByID loads a tender in any status. Callers hold the payment lock.
func (r *repository) FindByID(ctx context.Context, id, paymentID uuid.UUID) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	err := r.db.WithContext(ctx).
		Where("id = ? AND payment_id = ?", id, paymentID).
		First(&method).Error
	if err != nil {
		return nil, err
	}
	return &method, nil
}

func (r *repository) FindOpen(ctx context.Context, id, paymentID, storeID uuid.UUID) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	err := scoped(r.db.WithContext(ctx), storeID).
		Where("payment_methods.id = ? AND payment_methods.payment_id = ? AND payment_methods.status = ?",
			id, paymentID, enums.PaymentMethodStatusInProgress).
		First(&method).Error
	if err != nil {
		return nil, err
	}
	return &method, nil
}

func (r *repository) ListByPayment(ctx context.Context, paymentID, storeID uuid.UUID) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	err := scoped(r.db.WithContext(ctx), storeID).
		Where("payment_methods.payment_id = ?", paymentID).
		Order("payment_methods.created_at ASC").
		Order("payment_methods.id ASC").
		Find(&methods).Error
	return methods, err
}

// MarkPaid settles an in-progress tender. A tender is paid at most once.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time, providerPaymentID *string) (bool, error) {
	updates := map[string]any{
		"status":             enums.PaymentMethodStatusPaid,
		"complete_date_time": at,
	}
	if providerPaymentID != nil {
		updates["provider_payment_id"] = *providerPaymentID
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentMethod{}).
		Where("id = ? AND status = ? AND complete_date_time IS NULL", id, enums.PaymentMethodStatusInProgress).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteOpen drops a tender that has not been paid.
func (r *repository) DeleteOpen(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, enums.PaymentMethodStatusInProgress).
		Delete(&models.PaymentMethod{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func scoped(q *gorm.DB, storeID uuid.UUID) *gorm.DB {
	return q.Where(`EXISTS (SELECT 1 FROM payments JOIN orders ON orders.id = payments.order_id
		WHERE payments.id = payment_methods.payment_id AND orders.store_id = ?)`, storeID)
}
