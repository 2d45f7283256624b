package payments

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mylittlestore/pos-backend/api/middleware"
	"github.com/mylittlestore/pos-backend/api/responses"
	"github.com/mylittlestore/pos-backend/api/validators"
	"github.com/mylittlestore/pos-backend/internal/paymentmethods"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/logger"
)

// MethodCreate records a tender against an open payment.
func MethodCreate(svc paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment method service unavailable"))
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

		var input paymentmethods.CreatePaymentMethodInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.StoreID = storeID
		input.OrderID = orderID
		input.PaymentID = paymentID
		input.MemberID = memberID

		methodID, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteCreated(w, map[string]any{"id": methodID})
	}
}

func MethodList(svc paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment method service unavailable"))
			return
		}

		_, storeID, err := middleware.RequestScope(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		_, paymentID, err := paymentParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		methods, err := svc.List(r.Context(), paymentID, storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, methods)
	}
}

func MethodDetail(svc paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment method service unavailable"))
			return
		}

		_, storeID, err := middleware.RequestScope(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		_, paymentID, methodID, err := methodParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := svc.Get(r.Context(), methodID, paymentID, storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, method)
	}
}

// MethodCancel drops a tender that has not been paid.
func MethodCancel(svc paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment method service unavailable"))
			return
		}

		memberID, storeID, err := middleware.RequestScope(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, paymentID, methodID, err := methodParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.Cancel(r.Context(), paymentmethods.CancelInput{
			ID:        methodID,
			PaymentID: paymentID,
			OrderID:   orderID,
			StoreID:   storeID,
			MemberID:  memberID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"id": methodID, "deleted": true})
	}
}

// MethodSucceed marks a tender as paid. Settling the last open amount
// completes the payment and the order.
func MethodSucceed(svc paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment method service unavailable"))
			return
		}

		memberID, storeID, err := middleware.RequestScope(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		_, _, methodID, err := methodParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.Succeed(r.Context(), paymentmethods.SucceedInput{
			ID:       methodID,
			StoreID:  storeID,
			MemberID: memberID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"id": methodID, "paid": true})
	}
}

// MethodCharge charges a card tender through the card processor. The request
// Idempotency-Key is forwarded so processor retries never double charge.
func MethodCharge(svc paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment method service unavailable"))
			return
		}

		memberID, storeID, err := middleware.RequestScope(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, paymentID, methodID, err := methodParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		if key == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
			return
		}

		var input paymentmethods.ChargeCardInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.ID = methodID
		input.PaymentID = paymentID
		input.OrderID = orderID
		input.StoreID = storeID
		input.MemberID = memberID
		input.IdempotencyKey = key

		method, err := svc.ChargeCard(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, method)
	}
}

func methodParams(r *http.Request) (orderID, paymentID, methodID uuid.UUID, err error) {
	orderID, paymentID, err = paymentParams(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, uuid.Nil, err
	}
	methodID, err = validators.ParseUUIDParam(r, "methodId", "payment method id")
	if err != nil {
		return uuid.Nil, uuid.Nil, uuid.Nil, err
	}
	return orderID, paymentID, methodID, nil
}
