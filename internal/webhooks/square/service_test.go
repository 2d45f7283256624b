package squarewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mylittlestore/pos-backend/internal/paymentmethods"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
)

type stubSettler struct {
	calls []paymentmethods.SucceedInput
	err   error
}

func (s *stubSettler) Succeed(_ context.Context, input paymentmethods.SucceedInput) error {
	s.calls = append(s.calls, input)
	return s.err
}

func decodeEvent(t *testing.T, eventType, status, reference string) *SquareWebhookEvent {
	t.Helper()
	raw := map[string]any{
		"event_id": uuid.NewString(),
		"type":     eventType,
		"data": map[string]any{
			"type": "payment",
			"id":   "sq-pay-1",
			"object": map[string]any{
				"payment": map[string]any{
					"id":           "sq-pay-1",
					"status":       status,
					"reference_id": reference,
				},
			},
		},
	}
	payload, err := json.Marshal(raw)
	require.NoError(t, err)
	var event SquareWebhookEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	return &event
}

func TestHandleEventSettlesCompletedPayment(t *testing.T) {
	settler := &stubSettler{}
	svc, err := NewService(ServiceParams{PaymentMethods: settler})
	require.NoError(t, err)

	methodID := uuid.New()
	require.NoError(t, svc.HandleEvent(context.Background(), decodeEvent(t, "payment.updated", "COMPLETED", methodID.String())))

	require.Len(t, settler.calls, 1)
	require.Equal(t, methodID, settler.calls[0].ID)
	require.Equal(t, uuid.Nil, settler.calls[0].StoreID)
	require.Equal(t, "sq-pay-1", *settler.calls[0].ProviderPaymentID)
}

func TestHandleEventIgnoresUnfinishedAndForeignPayments(t *testing.T) {
	settler := &stubSettler{}
	svc, err := NewService(ServiceParams{PaymentMethods: settler})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, svc.HandleEvent(ctx, decodeEvent(t, "payment.updated", "APPROVED", uuid.NewString())))
	require.NoError(t, svc.HandleEvent(ctx, decodeEvent(t, "payment.updated", "COMPLETED", "invoice-42")))
	require.NoError(t, svc.HandleEvent(ctx, decodeEvent(t, "refund.updated", "COMPLETED", uuid.NewString())))
	require.Empty(t, settler.calls)
}

func TestHandleEventToleratesRedelivery(t *testing.T) {
	settler := &stubSettler{err: pkgerrors.New(pkgerrors.CodeStateConflict, "paid").WithReason(pkgerrors.ReasonAlreadyPaid)}
	svc, err := NewService(ServiceParams{PaymentMethods: settler})
	require.NoError(t, err)
	require.NoError(t, svc.HandleEvent(context.Background(), decodeEvent(t, "payment.updated", "COMPLETED", uuid.NewString())))

	settler.err = pkgerrors.New(pkgerrors.CodeNotFound, "gone").WithReason(pkgerrors.ReasonNoSuchPaymentMethod)
	require.NoError(t, svc.HandleEvent(context.Background(), decodeEvent(t, "payment.updated", "COMPLETED", uuid.NewString())))

	settler.err = errors.New("db down")
	require.Error(t, svc.HandleEvent(context.Background(), decodeEvent(t, "payment.updated", "COMPLETED", uuid.NewString())))
}

func TestHandleEventRequiresPaymentPayload(t *testing.T) {
	svc, err := NewService(ServiceParams{PaymentMethods: &stubSettler{}})
	require.NoError(t, err)

	err = svc.HandleEvent(context.Background(), &SquareWebhookEvent{Type: "payment.updated"})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	require.Error(t, svc.HandleEvent(context.Background(), nil))
}
