package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/types"
)

// WriteCreated reports a newly created resource.
func WriteCreated(w http.ResponseWriter, data any) {
	_ = writeJSON(w, http.StatusCreated, types.Envelope[any]{Data: data})
}

func WriteSuccess(w http.ResponseWriter, data any) {
	_ = writeJSON(w, http.StatusOK, types.Envelope[any]{Data: data})
}

// WriteError renders err as an error envelope. Untyped errors are reported
// as internal and never leak their text to the client.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	body := types.ErrorBody{
		Code:      string(typed.Code()),
		Message:   meta.PublicMessage,
		RequestID: chimw.GetReqID(ctx),
	}
	if msg := typed.Message(); meta.ExposeMessage && msg != "" {
		body.Message = msg
	}
	if meta.HTTPStatus < http.StatusInternalServerError {
		body.Reason = string(typed.Reason())
	}
	if meta.DetailsAllowed {
		body.Details = typed.Details()
	}

	encodeErr := writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: body})
	if logg == nil {
		return
	}
	ctx = logg.WithFields(ctx, pkgerrors.LogFields(err))
	ctx = logg.WithField(ctx, "http_status", meta.HTTPStatus)
	if meta.HTTPStatus >= http.StatusInternalServerError {
		logg.Error(ctx, "request failed", err)
	} else {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "request rejected")
	}
	if encodeErr != nil {
		logg.Error(ctx, "failed to encode error response", encodeErr)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}
