package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/mylittlestore/pos-backend/pkg/enums"
)

// OrderCreatedEvent is emitted when a table gets a new order.
type OrderCreatedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	StoreID      uuid.UUID `json:"store_id"`
	StoreTableID uuid.UUID `json:"store_table_id"`
	StartTime    time.Time `json:"start_time"`
}

// OrderDeletedEvent is emitted when an order is retired without payment.
type OrderDeletedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	StoreID      uuid.UUID `json:"store_id"`
	StoreTableID uuid.UUID `json:"store_table_id"`
	DeletedAt    time.Time `json:"deleted_at"`
}

// OrderItemChange names what happened to a line.
type OrderItemChange string

const (
	OrderItemCreated OrderItemChange = "created"
	OrderItemMerged  OrderItemChange = "merged"
	OrderItemUpdated OrderItemChange = "updated"
	OrderItemDeleted OrderItemChange = "deleted"
)

// OrderItemChangedEvent reports a line mutation along with its resulting count.
type OrderItemChangedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	StoreID     uuid.UUID       `json:"store_id"`
	OrderItemID uuid.UUID       `json:"order_item_id"`
	ItemID      uuid.UUID       `json:"item_id"`
	Change      OrderItemChange `json:"change"`
	Price       int64           `json:"price"`
	Count       int64           `json:"count"`
	StockDelta  int64           `json:"stock_delta"`
}

// PaymentStartedEvent freezes the bill for an order.
type PaymentStartedEvent struct {
	PaymentID            uuid.UUID `json:"payment_id"`
	OrderID              uuid.UUID `json:"order_id"`
	StoreID              uuid.UUID `json:"store_id"`
	InitialPaymentAmount int64     `json:"initial_payment_amount"`
}

// PaymentAbortedEvent reports a checkout cancelled before any tender.
type PaymentAbortedEvent struct {
	PaymentID uuid.UUID `json:"payment_id"`
	OrderID   uuid.UUID `json:"order_id"`
	StoreID   uuid.UUID `json:"store_id"`
}

// PaymentMethodPaidEvent reports one settled tender.
type PaymentMethodPaidEvent struct {
	PaymentMethodID   uuid.UUID               `json:"payment_method_id"`
	PaymentID         uuid.UUID               `json:"payment_id"`
	OrderID           uuid.UUID               `json:"order_id"`
	StoreID           uuid.UUID               `json:"store_id"`
	Type              enums.PaymentMethodType `json:"type"`
	Amount            int64                   `json:"amount"`
	PaidPaymentAmount int64                   `json:"paid_payment_amount"`
	PaidAt            time.Time               `json:"paid_at"`
	ProviderPaymentID *string                 `json:"provider_payment_id,omitempty"`
}

// TenderLine is one settled tender inside a settlement.
type TenderLine struct {
	PaymentMethodID uuid.UUID               `json:"payment_method_id"`
	Type            enums.PaymentMethodType `json:"type"`
	Amount          int64                   `json:"amount"`
}

// PaymentSettledEvent is emitted once the bill is covered in full.
type PaymentSettledEvent struct {
	PaymentID   uuid.UUID    `json:"payment_id"`
	OrderID     uuid.UUID    `json:"order_id"`
	StoreID     uuid.UUID    `json:"store_id"`
	Amount      int64        `json:"amount"`
	CompletedAt time.Time    `json:"completed_at"`
	Tenders     []TenderLine `json:"tenders"`
}

// SaleLine is one paid order line.
type SaleLine struct {
	OrderItemID uuid.UUID `json:"order_item_id"`
	ItemID      uuid.UUID `json:"item_id"`
	ItemName    string    `json:"item_name"`
	Price       int64     `json:"price"`
	Count       int64     `json:"count"`
}

// OrderPaidEvent closes an order and carries what was sold.
type OrderPaidEvent struct {
	OrderID      uuid.UUID  `json:"order_id"`
	StoreID      uuid.UUID  `json:"store_id"`
	StoreTableID uuid.UUID  `json:"store_table_id"`
	PaymentID    uuid.UUID  `json:"payment_id"`
	Total        int64      `json:"total"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	Lines        []SaleLine `json:"lines"`
}

// StoreStatusChangedEvent reports a store opening or closing.
type StoreStatusChangedEvent struct {
	StoreID uuid.UUID         `json:"store_id"`
	Status  enums.StoreStatus `json:"status"`
}
