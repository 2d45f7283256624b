package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mylittlestore/pos-backend/pkg/enums"
	"github.com/mylittlestore/pos-backend/pkg/outbox/payloads"
)

func TestDecodersResolveByTypeAndVersion(t *testing.T) {
	decoders := NewDecoders()
	Register[payloads.OrderPaidEvent](decoders, enums.EventOrderPaid, 1)

	out, err := decoders.Decode(enums.EventOrderPaid, 0, json.RawMessage(`{"total":24000}`))
	require.NoError(t, err)
	event, ok := out.(*payloads.OrderPaidEvent)
	require.True(t, ok, "got %T", out)
	require.Equal(t, int64(24000), event.Total)

	_, err = decoders.Decode(enums.EventOrderPaid, 2, json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrNoDecoder)
	require.ErrorContains(t, err, "order_paid@v2")

	_, err = decoders.Decode(enums.EventPaymentSettled, 1, json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrNoDecoder)

	_, err = decoders.Decode(enums.EventOrderPaid, 1, json.RawMessage(`{`))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoDecoder)
}
