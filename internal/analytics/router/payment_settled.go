package router

import (
	"context"
	"fmt"

	"github.com/mylittlestore/pos-backend/internal/analytics/types"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/money"
	"github.com/mylittlestore/pos-backend/pkg/outbox/payloads"
)

type paymentSettledHandler struct {
	writer Writer
	money  money.Formatter
	logg   *logger.Logger
}

func newPaymentSettledHandler(writer Writer, f money.Formatter, logg *logger.Logger) Handler {
	return &paymentSettledHandler{writer: writer, money: f, logg: logg}
}

// Handle writes one tender row per settled tender.
func (h *paymentSettledHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.PaymentSettledEvent)
	if !ok {
		return fmt.Errorf("invalid payload for payment_settled")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"payment_id": event.PaymentID,
		"amount":     event.Amount,
		"tenders":    len(event.Tenders),
	})

	var tendered int64
	key := rowKey{storeID: event.StoreID, orderID: event.OrderID, paymentID: event.PaymentID}
	rows := make([]types.SalesEventRow, 0, len(event.Tenders))
	for i, tender := range event.Tenders {
		row, err := baseRow(envelope, types.RowKindTender, i, key, tender.Amount, event.CompletedAt, h.money, tender)
		if err != nil {
			h.logg.Error(logCtx, "failed to build tender row", err)
			return err
		}
		row.PaymentMethodID = stringPtr(tender.PaymentMethodID.String())
		row.TenderType = stringPtr(string(tender.Type))
		rows = append(rows, row)
		tendered += tender.Amount
	}
	if tendered != event.Amount {
		h.logg.Warn(logCtx, "settled tenders do not add up to the payment amount")
	}
	if len(rows) == 0 {
		return nil
	}

	if err := h.writer.InsertSales(logCtx, rows...); err != nil {
		h.logg.Error(logCtx, "failed to insert tender rows", err)
		return err
	}
	h.logg.Info(logCtx, "payment_settled handler inserted tenders")
	return nil
}
