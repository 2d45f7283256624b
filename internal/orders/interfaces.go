package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	"github.com/mylittlestore/pos-backend/pkg/pagination"
)

// Repository defines persistence for orders and the order-level view of their
// lines. Status changes are conditional on the current status.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id, storeID uuid.UUID) (*models.Order, error)
	FindActiveForUpdate(ctx context.Context, id, storeID uuid.UUID) (*models.Order, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, storeID uuid.UUID, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, endTime *time.Time) (bool, error)
	UpdateLinesStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderItemStatus, at time.Time) (int64, error)
}

// ListFilter narrows order listings. A nil status lists every live order.
type ListFilter struct {
	Status *enums.OrderStatus
}
