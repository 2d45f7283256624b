package storetables

import (
	"time"

	"github.com/google/uuid"

	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
)

// StoreTableDTO is the table view, including the order seated on it.
type StoreTableDTO struct {
	ID        uuid.UUID              `json:"id"`
	StoreID   uuid.UUID              `json:"store_id"`
	OrderID   *uuid.UUID             `json:"order_id,omitempty"`
	Status    enums.StoreTableStatus `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
}

// FromModel maps the persisted table into a DTO.
func FromModel(m *models.StoreTable) *StoreTableDTO {
	if m == nil {
		return nil
	}
	return &StoreTableDTO{
		ID:        m.ID,
		StoreID:   m.StoreID,
		OrderID:   m.OrderID,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}
}
