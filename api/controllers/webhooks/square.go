package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/mylittlestore/pos-backend/api/responses"
	squarewebhook "github.com/mylittlestore/pos-backend/internal/webhooks/square"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/square"
)

// Square notifications are small; anything larger is not from Square.
const maxSquareBody = 1 << 20

type SquareEventHandler interface {
	HandleEvent(ctx context.Context, event *squarewebhook.SquareWebhookEvent) error
}

type SignatureVerifier interface {
	VerifyWebhook(body []byte, signature string) bool
}

type DeliveryLedger interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// SquareWebhook authenticates a Square notification and applies it once per
// event id. A failed apply releases the id so Square's retry is processed.
func SquareWebhook(events SquareEventHandler, verifier SignatureVerifier, deliveries DeliveryLedger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if events == nil || verifier == nil || deliveries == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "square webhook not configured"))
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSquareBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "webhook body too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}

		if !verifier.VerifyWebhook(body, r.Header.Get(square.SignatureHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid square signature"))
			return
		}

		var event squarewebhook.SquareWebhookEvent
		if err := json.Unmarshal(body, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode square event"))
			return
		}
		deliveryID := strings.TrimSpace(event.EventID)
		if deliveryID == "" {
			deliveryID = strings.TrimSpace(event.Data.ID)
		}
		if deliveryID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "square event id missing"))
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"square_event_id": deliveryID, "square_event_type": event.Type})
		}

		claimed, err := deliveries.Claim(ctx, deliveryID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim square event"))
			return
		}
		if !claimed {
			if logg != nil {
				logg.Info(ctx, "square event already applied")
			}
			responses.WriteSuccess(w, nil)
			return
		}

		if err := events.HandleEvent(ctx, &event); err != nil {
			if relErr := deliveries.Release(context.WithoutCancel(ctx), deliveryID); relErr != nil && logg != nil {
				logg.Error(ctx, "release square event", relErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(ctx, "square event applied")
		}
		responses.WriteSuccess(w, nil)
	}
}
