package router

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mylittlestore/pos-backend/internal/analytics/types"
	"github.com/mylittlestore/pos-backend/internal/analytics/writer"
	"github.com/mylittlestore/pos-backend/pkg/money"
)

type rowKey struct {
	storeID   uuid.UUID
	orderID   uuid.UUID
	paymentID uuid.UUID
}

// baseRow fills the columns every sales row shares. RowID is stable per
// event and position so BigQuery drops a redelivered insert.
func baseRow(envelope types.Envelope, kind string, index int, key rowKey, amount int64, fallback time.Time, f money.Formatter, payload any) (types.SalesEventRow, error) {
	raw, err := writer.EncodeJSON(payload)
	if err != nil {
		return types.SalesEventRow{}, err
	}
	occurredAt := envelope.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = fallback
	}
	return types.SalesEventRow{
		RowID:       fmt.Sprintf("%s:%s:%d", envelope.EventID, kind, index),
		EventID:     envelope.EventID,
		EventType:   string(envelope.EventType),
		RowKind:     kind,
		OccurredAt:  occurredAt.UTC(),
		StoreID:     key.storeID.String(),
		OrderID:     key.orderID.String(),
		PaymentID:   key.paymentID.String(),
		AmountMinor: amount,
		Amount:      f.Float(amount),
		Currency:    f.Currency(),
		Payload:     raw,
	}, nil
}

func stringPtr(v string) *string {
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}
