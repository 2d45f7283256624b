package enums

// StoreStatus tracks whether a store accepts new orders.
type StoreStatus string

const (
	StoreStatusOpen   StoreStatus = "open"
	StoreStatusClosed StoreStatus = "closed"
)

var storeStatuses = set[StoreStatus]{
	StoreStatusOpen,
	StoreStatusClosed,
}

func (s StoreStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StoreStatus.
func (s StoreStatus) IsValid() bool {
	return storeStatuses.has(s)
}

// ParseStoreStatus converts raw input into a StoreStatus.
func ParseStoreStatus(value string) (StoreStatus, error) {
	return storeStatuses.parse("store status", value)
}
