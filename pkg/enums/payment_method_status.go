package enums

// PaymentMethodStatus tracks a single tender.
type PaymentMethodStatus string

const (
	PaymentMethodStatusInProgress PaymentMethodStatus = "in_progress"
	PaymentMethodStatusPaid       PaymentMethodStatus = "paid"
)

var paymentMethodStatuses = set[PaymentMethodStatus]{
	PaymentMethodStatusInProgress,
	PaymentMethodStatusPaid,
}

func (p PaymentMethodStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethodStatus.
func (p PaymentMethodStatus) IsValid() bool {
	return paymentMethodStatuses.has(p)
}

// ParsePaymentMethodStatus converts raw input into a PaymentMethodStatus.
func ParsePaymentMethodStatus(value string) (PaymentMethodStatus, error) {
	return paymentMethodStatuses.parse("payment method status", value)
}
