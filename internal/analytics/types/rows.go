package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// Row kinds written to the sales table.
const (
	RowKindSaleLine = "sale_line"
	RowKindTender   = "tender"
)

// SalesEventRow mirrors the sales_events BigQuery schema. A paid order yields
// one sale_line row per line and a settled payment one tender row per tender.
type SalesEventRow struct {
	RowID           string             `bigquery:"row_id"`
	EventID         string             `bigquery:"event_id"`
	EventType       string             `bigquery:"event_type"`
	RowKind         string             `bigquery:"row_kind"`
	OccurredAt      time.Time          `bigquery:"occurred_at"`
	StoreID         string             `bigquery:"store_id"`
	OrderID         string             `bigquery:"order_id"`
	PaymentID       string             `bigquery:"payment_id"`
	StoreTableID    *string            `bigquery:"store_table_id"`
	OrderItemID     *string            `bigquery:"order_item_id"`
	ItemID          *string            `bigquery:"item_id"`
	ItemName        *string            `bigquery:"item_name"`
	UnitPriceMinor  *int64             `bigquery:"unit_price_minor"`
	Quantity        *int64             `bigquery:"quantity"`
	PaymentMethodID *string            `bigquery:"payment_method_id"`
	TenderType      *string            `bigquery:"tender_type"`
	AmountMinor     int64              `bigquery:"amount_minor"`
	Amount          float64            `bigquery:"amount"`
	Currency        string             `bigquery:"currency"`
	Payload         cbigquery.NullJSON `bigquery:"payload"`
}
