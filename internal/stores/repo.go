package stores

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/db/models"
)

var errNilStore = errors.New("stores: nil store")

// mutableColumns are the store columns an owner may change after creation.
var mutableColumns = []string{"name", "address_city", "address_street", "address_zipcode", "status"}

// Repository defines store persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, store *models.Store) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	FindByIDAndMember(ctx context.Context, id, memberID uuid.UUID) (*models.Store, error)
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]models.Store, error)
	Update(ctx context.Context, store *models.Store) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func withID(id uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB { return q.Where("stores.id = ?", id) }
}

func ownedBy(memberID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB { return q.Where("stores.member_id = ?", memberID) }
}

func (r *repository) Create(ctx context.Context, store *models.Store) error {
	if store == nil {
		return errNilStore
	}
	return r.db.WithContext(ctx).Create(store).Error
}

func (r *repository) find(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) (*models.Store, error) {
	store := new(models.Store)
	if err := r.db.WithContext(ctx).Scopes(scopes...).Take(store).Error; err != nil {
		return nil, err
	}
	return store, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	return r.find(ctx, withID(id))
}

// FindByIDAndMember loads a store only if memberID owns it.
func (r *repository) FindByIDAndMember(ctx context.Context, id, memberID uuid.UUID) (*models.Store, error) {
	return r.find(ctx, withID(id), ownedBy(memberID))
}

func (r *repository) ListByMember(ctx context.Context, memberID uuid.UUID) ([]models.Store, error) {
	var stores []models.Store
	err := r.db.WithContext(ctx).
		Scopes(ownedBy(memberID)).
		Order("stores.created_at ASC").
		Order("stores.id ASC").
		Find(&stores).Error
	return stores, err
}

// Update writes the mutable columns of store, including zero values.
func (r *repository) Update(ctx context.Context, store *models.Store) error {
	if store == nil {
		return errNilStore
	}
	return r.db.WithContext(ctx).
		Model(store).
		Select(mutableColumns).
		Updates(store).Error
}
