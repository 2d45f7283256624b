package items

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/db/dbtest"
	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/money"
	"github.com/mylittlestore/pos-backend/pkg/pagination"
)

var testMoney = money.NewFormatter("KRW", 0)

func TestServiceCreateValidates(t *testing.T) {
	svc := newTestService(t, &stubItemRepo{})
	cases := []CreateItemInput{
		{Name: " ", Price: 100},
		{Name: "Tea", Price: 0},
		{Name: "Tea", Price: 100, Stock: -1},
	}
	for _, input := range cases {
		_, err := svc.Create(context.Background(), uuid.New(), input)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error for %+v, got %v", input, err)
		}
	}
}

func TestServiceCreateFormatsPrice(t *testing.T) {
	repo := &stubItemRepo{}
	svc := newTestService(t, repo)

	dto, err := svc.Create(context.Background(), uuid.New(), CreateItemInput{Name: "Bibimbap", Price: 12000, Stock: 5})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if dto.Price.Minor != 12000 || dto.Price.Display != "12000" {
		t.Fatalf("unexpected price %+v", dto.Price)
	}
	if dto.Status != enums.ItemStatusOnSale {
		t.Fatalf("expected on sale, got %s", dto.Status)
	}
}

func TestServiceGetMissingItem(t *testing.T) {
	svc := newTestService(t, &stubItemRepo{})
	_, err := svc.Get(context.Background(), uuid.New(), uuid.New())
	if !pkgerrors.HasReason(err, pkgerrors.ReasonNoSuchItem) {
		t.Fatalf("expected no such item, got %v", err)
	}
}

func TestServiceUpdateAndDelete(t *testing.T) {
	item := &models.Item{ID: uuid.New(), StoreID: uuid.New(), Name: "Tea", Price: 3000, Stock: 2, Status: enums.ItemStatusOnSale}
	repo := &stubItemRepo{item: item}
	svc := newTestService(t, repo)

	price := int64(3500)
	dto, err := svc.Update(context.Background(), item.ID, item.StoreID, UpdateItemInput{Price: &price})
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if dto.Price.Minor != 3500 || dto.Name != "Tea" {
		t.Fatalf("unexpected update result %+v", dto)
	}

	if err := svc.Delete(context.Background(), item.ID, item.StoreID); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	if repo.item.Status != enums.ItemStatusDeleted {
		t.Fatalf("expected deleted item, got %s", repo.item.Status)
	}
	if err := svc.Delete(context.Background(), item.ID, item.StoreID); !pkgerrors.HasReason(err, pkgerrors.ReasonNoSuchItem) {
		t.Fatalf("expected deleted item to be gone, got %v", err)
	}
}

func TestServiceUpdateWithoutStockKeepsStock(t *testing.T) {
	item := &models.Item{ID: uuid.New(), StoreID: uuid.New(), Name: "Tea", Price: 3000, Stock: 7, Status: enums.ItemStatusOnSale}
	repo := &stubItemRepo{item: item}
	svc := newTestService(t, repo)

	name := "  Green Tea "
	dto, err := svc.Update(context.Background(), item.ID, item.StoreID, UpdateItemInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Green Tea", dto.Name)
	require.EqualValues(t, 7, dto.Stock)
	require.EqualValues(t, 7, repo.item.Stock)

	stock := int64(20)
	dto, err = svc.Update(context.Background(), item.ID, item.StoreID, UpdateItemInput{Stock: &stock})
	require.NoError(t, err)
	require.EqualValues(t, 20, dto.Stock)
	require.Equal(t, "Green Tea", dto.Name)

	negative := int64(-1)
	_, err = svc.Update(context.Background(), item.ID, item.StoreID, UpdateItemInput{Stock: &negative})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	require.EqualValues(t, 20, repo.item.Stock)
}

// takeOnLoad commits an order's stock take right after the item is loaded.
type takeOnLoad struct {
	Repository
	take int64
}

func (r takeOnLoad) WithTx(tx *gorm.DB) Repository {
	return takeOnLoad{Repository: r.Repository.WithTx(tx), take: r.take}
}

func (r takeOnLoad) FindForUpdate(ctx context.Context, id, storeID uuid.UUID) (*models.Item, error) {
	item, err := r.Repository.FindForUpdate(ctx, id, storeID)
	if err != nil {
		return nil, err
	}
	return item, r.Repository.DecreaseStock(ctx, id, r.take)
}

func TestServiceRenameKeepsStockTakenAfterLoad(t *testing.T) {
	client, conn := dbtest.Client(t)
	ctx := context.Background()
	repo := NewRepository(conn)

	item := &models.Item{StoreID: uuid.New(), Name: "Ramen", Price: 9000, Stock: 100}
	require.NoError(t, repo.Create(ctx, item))

	svc, err := NewService(takeOnLoad{Repository: repo, take: 10}, client, testMoney, nil)
	require.NoError(t, err)

	name := "Spicy Ramen"
	dto, err := svc.Update(ctx, item.ID, item.StoreID, UpdateItemInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Spicy Ramen", dto.Name)
	require.EqualValues(t, 90, dto.Stock)

	got, err := repo.FindByID(ctx, item.ID, item.StoreID)
	require.NoError(t, err)
	require.EqualValues(t, 90, got.Stock)
	require.Equal(t, "Spicy Ramen", got.Name)
}

func TestServiceListRejectsBadCursor(t *testing.T) {
	svc := newTestService(t, &stubItemRepo{})
	_, err := svc.List(context.Background(), uuid.New(), pagination.Params{Cursor: "%%%"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, testMoney, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

type stubItemRepo struct {
	item *models.Item
}

func (s *stubItemRepo) WithTx(*gorm.DB) Repository { return s }

func (s *stubItemRepo) Create(_ context.Context, item *models.Item) error {
	item.ID = uuid.New()
	item.Status = enums.ItemStatusOnSale
	s.item = item
	return nil
}

func (s *stubItemRepo) FindByID(_ context.Context, id, storeID uuid.UUID) (*models.Item, error) {
	if s.item == nil || s.item.ID != id || s.item.StoreID != storeID || s.item.Status != enums.ItemStatusOnSale {
		return nil, gorm.ErrRecordNotFound
	}
	cpy := *s.item
	return &cpy, nil
}

func (s *stubItemRepo) List(context.Context, uuid.UUID, *pagination.Cursor, int) ([]models.Item, error) {
	return nil, nil
}

func (s *stubItemRepo) FindForUpdate(ctx context.Context, id, storeID uuid.UUID) (*models.Item, error) {
	return s.FindByID(ctx, id, storeID)
}

func (s *stubItemRepo) Update(_ context.Context, _ uuid.UUID, changes Changes) error {
	if changes.Name != nil {
		s.item.Name = *changes.Name
	}
	if changes.Price != nil {
		s.item.Price = *changes.Price
	}
	if changes.Stock != nil {
		s.item.Stock = *changes.Stock
	}
	return nil
}

func (s *stubItemRepo) MarkDeleted(context.Context, uuid.UUID) (bool, error) {
	s.item.Status = enums.ItemStatusDeleted
	return true, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (s *stubItemRepo) DecreaseStock(_ context.Context, _ uuid.UUID, count int64) error {
	return s.item.DecreaseStock(count)
}

func (s *stubItemRepo) IncreaseStock(_ context.Context, _ uuid.UUID, count int64) (bool, error) {
	s.item.IncreaseStock(count)
	return true, nil
}
