package orders

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mylittlestore/pos-backend/api/middleware"
	"github.com/mylittlestore/pos-backend/api/responses"
	"github.com/mylittlestore/pos-backend/api/validators"
	internalorders "github.com/mylittlestore/pos-backend/internal/orders"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/logger"
)

type createOrderRequest struct {
	StoreTableID uuid.UUID `json:"store_table_id" validate:"required"`
}

// Create seats a new order on an empty table. An occupied table answers with
// a conflict whose details carry the order already seated there.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		memberID, storeID, err := middleware.RequestScope(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := svc.Create(r.Context(), internalorders.CreateOrderInput{
			StoreID:      storeID,
			StoreTableID: req.StoreTableID,
			MemberID:     memberID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteCreated(w, map[string]any{"id": orderID})
	}
}

// List returns a cursor page of the store's orders, optionally narrowed by status.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		_, storeID, err := middleware.RequestScope(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter, err := buildListFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pageParams, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), storeID, filter, pageParams)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// Detail returns the order with its lines.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
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

		order, err := svc.Get(r.Context(), orderID, storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// Delete discards an order that has nothing ordered yet and frees its table.
func Delete(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
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

		if err := svc.Delete(r.Context(), orderID, storeID, memberID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"id": orderID, "deleted": true})
	}
}

func buildListFilter(r *http.Request) (internalorders.ListFilter, error) {
	var filter internalorders.ListFilter
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return filter, nil
	}
	status, err := enums.ParseOrderStatus(strings.ToLower(raw))
	if err != nil {
		return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"})
	}
	filter.Status = &status
	return filter, nil
}
