package items

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/db/models"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/metrics"
	"github.com/mylittlestore/pos-backend/pkg/money"
	"github.com/mylittlestore/pos-backend/pkg/pagination"
)

// Service manages a store's catalog.
type Service interface {
	Create(ctx context.Context, storeID uuid.UUID, input CreateItemInput) (*ItemDTO, error)
	Get(ctx context.Context, id, storeID uuid.UUID) (*ItemDTO, error)
	List(ctx context.Context, storeID uuid.UUID, params pagination.Params) (*pagination.Page[ItemDTO], error)
	Update(ctx context.Context, id, storeID uuid.UUID, input UpdateItemInput) (*ItemDTO, error)
	Delete(ctx context.Context, id, storeID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo    Repository
	tx      txRunner
	money   money.Formatter
	metrics *metrics.UseCaseMetrics
}

// NewService builds the catalog service.
func NewService(repo Repository, tx txRunner, formatter money.Formatter, m *metrics.UseCaseMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("item repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, money: formatter, metrics: m}, nil
}

func (s *service) Create(ctx context.Context, storeID uuid.UUID, input CreateItemInput) (dto *ItemDTO, err error) {
	defer s.metrics.Track("create_item", time.Now(), &err)

	name := strings.TrimSpace(input.Name)
	switch {
	case name == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name required")
	case input.Price < 1:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be at least 1")
	case input.Stock < 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
	}

	item := &models.Item{
		StoreID: storeID,
		Name:    name,
		Price:   input.Price,
		Stock:   input.Stock,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create item")
	}
	return FromModel(item, s.money), nil
}

func (s *service) Get(ctx context.Context, id, storeID uuid.UUID) (*ItemDTO, error) {
	item, err := Load(ctx, s.repo, id, storeID)
	if err != nil {
		return nil, err
	}
	return FromModel(item, s.money), nil
}

func (s *service) List(ctx context.Context, storeID uuid.UUID, params pagination.Params) (*pagination.Page[ItemDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, storeID, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}
	page := pagination.Build(rows, params.Limit, func(m models.Item) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	out := &pagination.Page[ItemDTO]{
		Items:      make([]ItemDTO, 0, len(page.Items)),
		NextCursor: page.NextCursor,
	}
	for i := range page.Items {
		out.Items = append(out.Items, *FromModel(&page.Items[i], s.money))
	}
	return out, nil
}

// Update changes the catalog fields set in input. The item row is locked from
// load to write, and stock is only written when input sets it.
func (s *service) Update(ctx context.Context, id, storeID uuid.UUID, input UpdateItemInput) (dto *ItemDTO, err error) {
	defer s.metrics.Track("update_item", time.Now(), &err)

	changes, err := input.changes()
	if err != nil {
		return nil, err
	}

	var item *models.Item
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.FindForUpdate(ctx, id, storeID)
		if err != nil {
			return loadError(err, id)
		}
		if err := repo.Update(ctx, locked.ID, changes); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
		}
		item, err = Load(ctx, repo, locked.ID, storeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return FromModel(item, s.money), nil
}

// Delete soft-deletes the item. Lines already ordered keep their snapshot.
func (s *service) Delete(ctx context.Context, id, storeID uuid.UUID) (err error) {
	defer s.metrics.Track("delete_item", time.Now(), &err)

	item, err := Load(ctx, s.repo, id, storeID)
	if err != nil {
		return err
	}
	if err := item.Delete(); err != nil {
		return err
	}
	ok, err := s.repo.MarkDeleted(ctx, item.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete item")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "item already deleted").
			WithReason(pkgerrors.ReasonItemAlreadyDeleted)
	}
	return nil
}

// Load fetches an on-sale item or fails with NoSuchItem.
func Load(ctx context.Context, repo Repository, id, storeID uuid.UUID) (*models.Item, error) {
	item, err := repo.FindByID(ctx, id, storeID)
	if err != nil {
		return nil, loadError(err, id)
	}
	return item, nil
}

func loadError(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found").
			WithReason(pkgerrors.ReasonNoSuchItem).
			WithDetails(map[string]any{"item_id": id})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
}
