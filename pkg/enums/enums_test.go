package enums

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	for _, status := range []OrderStatus{OrderStatusUsing, OrderStatusInProgress, OrderStatusPaid, OrderStatusDeleted} {
		got, err := ParseOrderStatus(string(status))
		require.NoError(t, err)
		require.Equal(t, status, got)
	}
	_, err := ParseOrderStatus("USING")
	require.EqualError(t, err, `invalid order status "USING"`)
}

func TestStatusValidity(t *testing.T) {
	require.True(t, StoreTableStatusUsing.IsValid())
	require.False(t, StoreTableStatus("busy").IsValid())
	require.True(t, ItemStatusOnSale.IsValid())
	require.False(t, ItemStatus("sold_out").IsValid())
	require.True(t, PaymentStatusSuccess.IsValid())
	require.False(t, PaymentStatus("failed").IsValid())
	require.True(t, PaymentMethodStatusPaid.IsValid())
	require.True(t, OrderItemStatusOrdered.IsValid())
	require.True(t, StoreStatusOpen.IsValid())
}

func TestPaymentMethodTypesReturnsCopy(t *testing.T) {
	types := PaymentMethodTypes()
	require.Equal(t, []PaymentMethodType{PaymentMethodTypeCash, PaymentMethodTypeCard, PaymentMethodTypeTransfer, PaymentMethodTypeVoucher}, types)

	types[0] = "mutated"
	require.Equal(t, PaymentMethodTypeCash, PaymentMethodTypes()[0])

	_, err := ParsePaymentMethodType("bitcoin")
	require.Error(t, err)
}

func TestOutboxEnums(t *testing.T) {
	got, err := ParseOutboxEventType("order_paid")
	require.NoError(t, err)
	require.Equal(t, EventOrderPaid, got)

	_, err = ParseOutboxAggregateType("vendor_order")
	require.Error(t, err)
	require.True(t, OutboxDLQReasonMaxAttempts.IsValid())
	require.False(t, OutboxDLQErrorReason("timeout").IsValid())
}
