package enums

// StoreTableStatus tracks table occupancy.
type StoreTableStatus string

const (
	StoreTableStatusEmpty   StoreTableStatus = "empty"
	StoreTableStatusUsing   StoreTableStatus = "using"
	StoreTableStatusDeleted StoreTableStatus = "deleted"
)

var storeTableStatuses = set[StoreTableStatus]{
	StoreTableStatusEmpty,
	StoreTableStatusUsing,
	StoreTableStatusDeleted,
}

func (s StoreTableStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StoreTableStatus.
func (s StoreTableStatus) IsValid() bool {
	return storeTableStatuses.has(s)
}

// ParseStoreTableStatus converts raw input into a StoreTableStatus.
func ParseStoreTableStatus(value string) (StoreTableStatus, error) {
	return storeTableStatuses.parse("store table status", value)
}
