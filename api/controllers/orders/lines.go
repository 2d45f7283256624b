package orders

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mylittlestore/pos-backend/api/middleware"
	"github.com/mylittlestore/pos-backend/api/responses"
	"github.com/mylittlestore/pos-backend/api/validators"
	"github.com/mylittlestore/pos-backend/internal/orderitems"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/logger"
)

// LineCreate adds units of an item to an order, merging into an existing line
// with the same item and price.
func LineCreate(svc orderitems.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order item service unavailable"))
			return
		}

		memberID, storeID, err := middleware.RequestScope(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input orderitems.CreateOrderItemInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.StoreID = storeID
		input.OrderID = orderID
		input.MemberID = memberID

		lineID, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteCreated(w, map[string]any{"id": lineID})
	}
}

func LineList(svc orderitems.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order item service unavailable"))
			return
		}

		_, storeID, err := middleware.RequestScope(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines, err := svc.List(r.Context(), orderID, storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, lines)
	}
}

func LineDetail(svc orderitems.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order item service unavailable"))
			return
		}

		_, storeID, err := middleware.RequestScope(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, lineID, err := lineParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		line, err := svc.Get(r.Context(), lineID, orderID, storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, line)
	}
}

// LineUpdate sets the count of a line that has not been paid.
func LineUpdate(svc orderitems.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order item service unavailable"))
			return
		}

		memberID, storeID, err := middleware.RequestScope(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, lineID, err := lineParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input orderitems.UpdateOrderItemInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.ID = lineID
		input.StoreID = storeID
		input.OrderID = orderID
		input.MemberID = memberID

		id, err := svc.Update(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"id": id})
	}
}

// LineDelete removes a line. The item_id and price query parameters must
// match the line being removed.
func LineDelete(svc orderitems.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order item service unavailable"))
			return
		}

		memberID, storeID, err := middleware.RequestScope(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, lineID, err := lineParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, price, err := lineMatchQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.Delete(r.Context(), orderitems.DeleteOrderItemInput{
			ID:       lineID,
			StoreID:  storeID,
			OrderID:  orderID,
			MemberID: memberID,
			ItemID:   itemID,
			Price:    price,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"id": lineID, "deleted": true})
	}
}

func lineParams(r *http.Request) (orderID, lineID uuid.UUID, err error) {
	orderID, err = validators.ParseUUIDParam(r, "orderId", "order id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	lineID, err = validators.ParseUUIDParam(r, "lineId", "order item id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return orderID, lineID, nil
}

func lineMatchQuery(r *http.Request) (uuid.UUID, int64, error) {
	q := r.URL.Query()
	itemID, err := uuid.Parse(strings.TrimSpace(q.Get("item_id")))
	if err != nil {
		return uuid.Nil, 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id").WithDetails(map[string]any{"field": "item_id"})
	}
	price, err := strconv.ParseInt(strings.TrimSpace(q.Get("price")), 10, 64)
	if err != nil || price < 1 {
		return uuid.Nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "price must be a positive integer").WithDetails(map[string]any{"field": "price"})
	}
	return itemID, price, nil
}
