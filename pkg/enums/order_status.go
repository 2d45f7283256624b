package enums

// OrderStatus is the dining session lifecycle.
type OrderStatus string

const (
	OrderStatusUsing      OrderStatus = "using"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusDeleted    OrderStatus = "deleted"
)

var orderStatuses = set[OrderStatus]{
	OrderStatusUsing,
	OrderStatusInProgress,
	OrderStatusPaid,
	OrderStatusDeleted,
}

func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	return orderStatuses.has(o)
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	return orderStatuses.parse("order status", value)
}
