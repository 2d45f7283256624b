package enums

// PaymentStatus tracks checkout of one order.
type PaymentStatus string

const (
	PaymentStatusInProgress PaymentStatus = "in_progress"
	PaymentStatusSuccess    PaymentStatus = "success"
)

var paymentStatuses = set[PaymentStatus]{
	PaymentStatusInProgress,
	PaymentStatusSuccess,
}

func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	return paymentStatuses.has(p)
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return paymentStatuses.parse("payment status", value)
}
