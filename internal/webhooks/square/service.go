package squarewebhook

import (
	"context"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"

	"github.com/mylittlestore/pos-backend/internal/paymentmethods"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/square"
)

type tenderSettler interface {
	Succeed(ctx context.Context, input paymentmethods.SucceedInput) error
}

type ServiceParams struct {
	PaymentMethods tenderSettler
	Logger         *logger.Logger
}

// Service applies Square payment events to local tenders.
type Service struct {
	methods tenderSettler
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.PaymentMethods == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment methods service required")
	}
	return &Service{
		methods: params.PaymentMethods,
		logg:    params.Logger,
	}, nil
}

type SquareWebhookEvent struct {
	EventID    string            `json:"event_id"`
	MerchantID string            `json:"merchant_id"`
	Type       string            `json:"type"`
	Data       SquareWebhookData `json:"data"`
}

type SquareWebhookData struct {
	Type   string              `json:"type"`
	ID     string              `json:"id"`
	Object SquareWebhookObject `json:"object"`
}

type SquareWebhookObject struct {
	Payment *sq.Payment `json:"payment"`
}

// HandleEvent settles the tender referenced by a completed Square payment.
// Events for other objects, unfinished payments and foreign references are
// acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *SquareWebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}

	switch strings.ToLower(event.Type) {
	case "payment.created", "payment.updated":
	default:
		return nil
	}

	payment := event.Data.Object.Payment
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
	}
	if !square.IsCompleted(payment) {
		return nil
	}
	ref := payment.GetReferenceID()
	if ref == nil {
		return nil
	}
	methodID, err := uuid.Parse(strings.TrimSpace(*ref))
	if err != nil {
		s.warn(ctx, "square payment reference is not a payment method id", *ref)
		return nil
	}

	err = s.methods.Succeed(ctx, paymentmethods.SucceedInput{
		ID:                methodID,
		ProviderPaymentID: payment.GetID(),
	})
	switch {
	case err == nil:
		return nil
	case pkgerrors.HasReason(err, pkgerrors.ReasonAlreadyPaid):
		return nil
	case pkgerrors.HasReason(err, pkgerrors.ReasonNoSuchPaymentMethod):
		s.warn(ctx, "square payment references an unknown payment method", methodID.String())
		return nil
	default:
		return err
	}
}

func (s *Service) warn(ctx context.Context, msg, ref string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "reference_id", ref), msg)
}
