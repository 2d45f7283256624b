package enums

import "slices"

// PaymentMethodType enumerates accepted tenders.
type PaymentMethodType string

const (
	PaymentMethodTypeCash     PaymentMethodType = "cash"
	PaymentMethodTypeCard     PaymentMethodType = "card"
	PaymentMethodTypeTransfer PaymentMethodType = "transfer"
	PaymentMethodTypeVoucher  PaymentMethodType = "voucher"
)

var paymentMethodTypes = set[PaymentMethodType]{
	PaymentMethodTypeCash,
	PaymentMethodTypeCard,
	PaymentMethodTypeTransfer,
	PaymentMethodTypeVoucher,
}

func (p PaymentMethodType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethodType.
func (p PaymentMethodType) IsValid() bool {
	return paymentMethodTypes.has(p)
}

// ParsePaymentMethodType converts raw input into a PaymentMethodType.
func ParsePaymentMethodType(value string) (PaymentMethodType, error) {
	return paymentMethodTypes.parse("payment method type", value)
}

// PaymentMethodTypes lists every accepted tender in display order.
func PaymentMethodTypes() []PaymentMethodType {
	return slices.Clone(paymentMethodTypes)
}
