package router

import (
	"context"
	"fmt"

	"github.com/mylittlestore/pos-backend/internal/analytics/types"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/money"
	"github.com/mylittlestore/pos-backend/pkg/outbox/payloads"
)

type orderPaidHandler struct {
	writer Writer
	money  money.Formatter
	logg   *logger.Logger
}

func newOrderPaidHandler(writer Writer, f money.Formatter, logg *logger.Logger) Handler {
	return &orderPaidHandler{writer: writer, money: f, logg: logg}
}

// Handle writes one sale_line row per sold line.
func (h *orderPaidHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderPaidEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_paid")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"order_id":   event.OrderID,
		"total":      event.Total,
		"lines":      len(event.Lines),
	})

	key := rowKey{storeID: event.StoreID, orderID: event.OrderID, paymentID: event.PaymentID}
	tableID := event.StoreTableID.String()
	rows := make([]types.SalesEventRow, 0, len(event.Lines))
	for i, line := range event.Lines {
		row, err := baseRow(envelope, types.RowKindSaleLine, i, key, line.Price*line.Count, event.EndTime, h.money, line)
		if err != nil {
			h.logg.Error(logCtx, "failed to build sale line row", err)
			return err
		}
		row.StoreTableID = stringPtr(tableID)
		row.OrderItemID = stringPtr(line.OrderItemID.String())
		row.ItemID = stringPtr(line.ItemID.String())
		row.ItemName = stringPtr(line.ItemName)
		row.UnitPriceMinor = int64Ptr(line.Price)
		row.Quantity = int64Ptr(line.Count)
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		h.logg.Warn(logCtx, "order_paid carried no lines")
		return nil
	}

	if err := h.writer.InsertSales(logCtx, rows...); err != nil {
		h.logg.Error(logCtx, "failed to insert sale line rows", err)
		return err
	}
	h.logg.Info(logCtx, "order_paid handler inserted sale lines")
	return nil
}
