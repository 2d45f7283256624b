package storetables

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/db/models"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the tables of a store.
type Service interface {
	Create(ctx context.Context, storeID uuid.UUID) (*StoreTableDTO, error)
	Get(ctx context.Context, id, storeID uuid.UUID) (*StoreTableDTO, error)
	List(ctx context.Context, storeID uuid.UUID) ([]StoreTableDTO, error)
	Delete(ctx context.Context, id, storeID uuid.UUID) error
}

type service struct {
	repo    Repository
	tx      txRunner
	metrics *metrics.UseCaseMetrics
}

// NewService builds a store table service.
func NewService(repo Repository, tx txRunner, m *metrics.UseCaseMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("store table repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, metrics: m}, nil
}

func (s *service) Create(ctx context.Context, storeID uuid.UUID) (dto *StoreTableDTO, err error) {
	defer s.metrics.Track("create_store_table", time.Now(), &err)

	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	table := &models.StoreTable{StoreID: storeID}
	if err := s.repo.Create(ctx, table); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create store table")
	}
	return FromModel(table), nil
}

func (s *service) Get(ctx context.Context, id, storeID uuid.UUID) (*StoreTableDTO, error) {
	table, err := Load(ctx, s.repo, id, storeID)
	if err != nil {
		return nil, err
	}
	return FromModel(table), nil
}

func (s *service) List(ctx context.Context, storeID uuid.UUID) ([]StoreTableDTO, error) {
	tables, err := s.repo.List(ctx, storeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list store tables")
	}
	out := make([]StoreTableDTO, 0, len(tables))
	for i := range tables {
		out = append(out, *FromModel(&tables[i]))
	}
	return out, nil
}

// Delete retires a table. It fails while an order is seated on it or while an
// open order there still has ordered lines.
func (s *service) Delete(ctx context.Context, id, storeID uuid.UUID) (err error) {
	defer s.metrics.Track("delete_store_table", time.Now(), &err)

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		table, err := LoadForUpdate(ctx, repo, id, storeID)
		if err != nil {
			return err
		}

		active, err := repo.HasOrderedLines(ctx, table.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open orders")
		}
		if err := table.Delete(); err != nil {
			return err
		}
		if active {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "an order with ordered items is still on the table").
				WithReason(pkgerrors.ReasonOrderStillActive).
				WithDetails(map[string]any{"store_table_id": table.ID})
		}

		ok, err := repo.MarkDeleted(ctx, table.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete store table")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "store table changed concurrently").
				WithReason(pkgerrors.ReasonTableUsing)
		}
		return nil
	})
}

// Load fetches a live table or fails with NoSuchStoreTable.
func Load(ctx context.Context, repo Repository, id, storeID uuid.UUID) (*models.StoreTable, error) {
	table, err := repo.FindByID(ctx, id, storeID)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	return table, nil
}

// LoadForUpdate is Load holding a row lock. Deleted tables are returned; the
// model's transitions reject them.
func LoadForUpdate(ctx context.Context, repo Repository, id, storeID uuid.UUID) (*models.StoreTable, error) {
	table, err := repo.FindForUpdate(ctx, id, storeID)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	return table, nil
}

func mapLoadErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "store table not found").
			WithReason(pkgerrors.ReasonNoSuchStoreTable)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store table")
}
