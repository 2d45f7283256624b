package enums

// ItemStatus flags whether a catalog item can still be ordered.
type ItemStatus string

const (
	ItemStatusOnSale  ItemStatus = "on_sale"
	ItemStatusDeleted ItemStatus = "deleted"
)

var itemStatuses = set[ItemStatus]{
	ItemStatusOnSale,
	ItemStatusDeleted,
}

func (i ItemStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is a known ItemStatus.
func (i ItemStatus) IsValid() bool {
	return itemStatuses.has(i)
}

// ParseItemStatus converts raw input into an ItemStatus.
func ParseItemStatus(value string) (ItemStatus, error) {
	return itemStatuses.parse("item status", value)
}
