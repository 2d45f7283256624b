package payments

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mylittlestore/pos-backend/api/middleware"
	"github.com/mylittlestore/pos-backend/api/responses"
	"github.com/mylittlestore/pos-backend/api/validators"
	internalpayments "github.com/mylittlestore/pos-backend/internal/payments"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/logger"
)

// Start freezes the bill of an order and opens its checkout.
func Start(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
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

		paymentID, err := svc.Start(r.Context(), internalpayments.StartPaymentInput{
			StoreID:  storeID,
			OrderID:  orderID,
			MemberID: memberID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteCreated(w, map[string]any{"id": paymentID})
	}
}

// Detail returns the payment with its tenders and the amount left to pay.
func Detail(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		_, storeID, err := middleware.RequestScope(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, paymentID, err := paymentParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Get(r.Context(), paymentID, orderID, storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payment)
	}
}

// Abort cancels a checkout that has no tenders and reopens the order.
func Abort(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		memberID, storeID, err := middleware.RequestScope(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, paymentID, err := paymentParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		aborted, err := svc.Abort(r.Context(), internalpayments.AbortPaymentInput{
			PaymentID: paymentID,
			StoreID:   storeID,
			OrderID:   orderID,
			MemberID:  memberID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"id": paymentID, "aborted": aborted})
	}
}

// Finish reports whether the payment has been settled.
func Finish(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		_, storeID, err := middleware.RequestScope(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, paymentID, err := paymentParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		finished, err := svc.Finish(r.Context(), paymentID, orderID, storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"id": paymentID, "finished": finished})
	}
}

func MethodTypes(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		responses.WriteSuccess(w, svc.MethodTypes())
	}
}

func paymentParams(r *http.Request) (orderID, paymentID uuid.UUID, err error) {
	orderID, err = validators.ParseUUIDParam(r, "orderId", "order id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	paymentID, err = validators.ParseUUIDParam(r, "paymentId", "payment id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return orderID, paymentID, nil
}
