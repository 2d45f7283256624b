package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	"github.com/mylittlestore/pos-backend/pkg/money"
)

// CreateOrderInput seats a new order on a table.
type CreateOrderInput struct {
	StoreID      uuid.UUID
	StoreTableID uuid.UUID
	MemberID     uuid.UUID
}

// LineDTO is the flattened view of one order line.
type LineDTO struct {
	ID        uuid.UUID             `json:"id"`
	OrderID   uuid.UUID             `json:"order_id"`
	ItemID    uuid.UUID             `json:"item_id"`
	ItemName  string                `json:"item_name"`
	Price     money.Amount          `json:"price"`
	Count     int64                 `json:"count"`
	LineTotal money.Amount          `json:"line_total"`
	Status    enums.OrderItemStatus `json:"status"`
	OrderedAt time.Time             `json:"ordered_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// OrderDTO is the flattened order view with its lines sorted by ordered time.
type OrderDTO struct {
	ID           uuid.UUID         `json:"id"`
	StoreID      uuid.UUID         `json:"store_id"`
	StoreTableID uuid.UUID         `json:"store_table_id"`
	Status       enums.OrderStatus `json:"status"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      *time.Time        `json:"end_time,omitempty"`
	PaymentID    *uuid.UUID        `json:"payment_id,omitempty"`
	Total        money.Amount      `json:"total"`
	Lines        []LineDTO         `json:"lines"`
}

// OrderSummaryDTO is the listing row of an order.
type OrderSummaryDTO struct {
	ID           uuid.UUID         `json:"id"`
	StoreTableID uuid.UUID         `json:"store_table_id"`
	Status       enums.OrderStatus `json:"status"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      *time.Time        `json:"end_time,omitempty"`
	PaymentID    *uuid.UUID        `json:"payment_id,omitempty"`
}

// LineFromModel maps one order line.
func LineFromModel(m *models.OrderItem, f money.Formatter) LineDTO {
	return LineDTO{
		ID:        m.ID,
		OrderID:   m.OrderID,
		ItemID:    m.ItemID,
		ItemName:  m.ItemName,
		Price:     f.Amount(m.Price),
		Count:     m.Count,
		LineTotal: f.Amount(m.LineTotal()),
		Status:    m.Status,
		OrderedAt: m.OrderedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromModel maps an order with its preloaded lines. Once checkout started the
// frozen bill is reported as the total.
func FromModel(m *models.Order, f money.Formatter) *OrderDTO {
	if m == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:           m.ID,
		StoreID:      m.StoreID,
		StoreTableID: m.StoreTableID,
		Status:       m.Status,
		StartTime:    m.StartTime,
		EndTime:      m.EndTime,
		Total:        f.Amount(m.Total()),
		Lines:        make([]LineDTO, 0, len(m.Items)),
	}
	if m.Payment != nil {
		id := m.Payment.ID
		dto.PaymentID = &id
		dto.Total = f.Amount(m.Payment.InitialPaymentAmount)
	}
	for i := range m.Items {
		dto.Lines = append(dto.Lines, LineFromModel(&m.Items[i], f))
	}
	return dto
}

func summaryFromModel(m *models.Order) OrderSummaryDTO {
	out := OrderSummaryDTO{
		ID:           m.ID,
		StoreTableID: m.StoreTableID,
		Status:       m.Status,
		StartTime:    m.StartTime,
		EndTime:      m.EndTime,
	}
	if m.Payment != nil {
		id := m.Payment.ID
		out.PaymentID = &id
	}
	return out
}
