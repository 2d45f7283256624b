package enums

// OrderItemStatus is the lifecycle of one order line.
type OrderItemStatus string

const (
	OrderItemStatusOrdered OrderItemStatus = "ordered"
	OrderItemStatusPaid    OrderItemStatus = "paid"
	OrderItemStatusDeleted OrderItemStatus = "deleted"
)

var orderItemStatuses = set[OrderItemStatus]{
	OrderItemStatusOrdered,
	OrderItemStatusPaid,
	OrderItemStatusDeleted,
}

func (o OrderItemStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderItemStatus.
func (o OrderItemStatus) IsValid() bool {
	return orderItemStatuses.has(o)
}

// ParseOrderItemStatus converts raw input into an OrderItemStatus.
func ParseOrderItemStatus(value string) (OrderItemStatus, error) {
	return orderItemStatuses.parse("order item status", value)
}
