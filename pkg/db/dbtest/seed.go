package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
)

// SeedStore inserts an open store owned by a random member.
func SeedStore(t testing.TB, conn *gorm.DB) *models.Store {
	t.Helper()
	store := &models.Store{
		MemberID: uuid.New(),
		Name:     "store-" + uuid.NewString()[:8],
		Address:  models.Address{City: "Seoul", Street: "Main 1", Zipcode: "04524"},
		Status:   enums.StoreStatusOpen,
	}
	if err := conn.Create(store).Error; err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

// SeedTable inserts an empty table for storeID.
func SeedTable(t testing.TB, conn *gorm.DB, storeID uuid.UUID) *models.StoreTable {
	t.Helper()
	table := &models.StoreTable{StoreID: storeID}
	if err := conn.Create(table).Error; err != nil {
		t.Fatalf("seed store table: %v", err)
	}
	return table
}

// SeedItem inserts an on-sale item.
func SeedItem(t testing.TB, conn *gorm.DB, storeID uuid.UUID, name string, price, stock int64) *models.Item {
	t.Helper()
	item := &models.Item{StoreID: storeID, Name: name, Price: price, Stock: stock}
	if err := conn.Create(item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}
