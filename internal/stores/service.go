package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/db"
	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/metrics"
	"github.com/mylittlestore/pos-backend/pkg/outbox"
	"github.com/mylittlestore/pos-backend/pkg/outbox/payloads"
)

const storeNameConstraint = "ux_stores_name"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes store operations for the owning member.
type Service interface {
	Create(ctx context.Context, memberID uuid.UUID, input CreateStoreInput) (*StoreDTO, error)
	Get(ctx context.Context, storeID, memberID uuid.UUID) (*StoreDTO, error)
	List(ctx context.Context, memberID uuid.UUID) ([]StoreDTO, error)
	Update(ctx context.Context, storeID, memberID uuid.UUID, input UpdateStoreInput) (*StoreDTO, error)
	ToggleStatus(ctx context.Context, storeID, memberID uuid.UUID) (*StoreDTO, error)
	OwnsStore(ctx context.Context, storeID, memberID uuid.UUID) error
}

// ServiceParams groups the store service dependencies.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Metrics *metrics.UseCaseMetrics
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.UseCaseMetrics
}

// NewService builds a store service with the provided repositories.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("store repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
	}, nil
}

func (s *service) Create(ctx context.Context, memberID uuid.UUID, input CreateStoreInput) (dto *StoreDTO, err error) {
	defer s.metrics.Track("create_store", time.Now(), &err)

	if memberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "member identity missing")
	}
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store name required")
	}

	store := input.ToModel(memberID)
	if err := s.repo.Create(ctx, store); err != nil {
		if db.IsUniqueViolation(err, storeNameConstraint) {
			return nil, nameDuplicated(input.Name)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create store")
	}
	return FromModel(store), nil
}

func (s *service) Get(ctx context.Context, storeID, memberID uuid.UUID) (*StoreDTO, error) {
	store, err := s.loadOwned(ctx, s.repo, storeID, memberID)
	if err != nil {
		return nil, err
	}
	return FromModel(store), nil
}

// OwnsStore fails with NoSuchStore unless memberID owns storeID.
func (s *service) OwnsStore(ctx context.Context, storeID, memberID uuid.UUID) error {
	_, err := s.loadOwned(ctx, s.repo, storeID, memberID)
	return err
}

func (s *service) List(ctx context.Context, memberID uuid.UUID) ([]StoreDTO, error) {
	stores, err := s.repo.ListByMember(ctx, memberID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stores")
	}
	out := make([]StoreDTO, 0, len(stores))
	for i := range stores {
		out = append(out, *FromModel(&stores[i]))
	}
	return out, nil
}

func (s *service) Update(ctx context.Context, storeID, memberID uuid.UUID, input UpdateStoreInput) (dto *StoreDTO, err error) {
	defer s.metrics.Track("update_store", time.Now(), &err)

	store, err := s.loadOwned(ctx, s.repo, storeID, memberID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "store name required")
		}
		store.Name = name
	}
	if input.Address != nil {
		store.Address = input.Address.toModel()
	}

	if err := s.repo.Update(ctx, store); err != nil {
		if db.IsUniqueViolation(err, storeNameConstraint) {
			return nil, nameDuplicated(store.Name)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update store")
	}
	return FromModel(store), nil
}

func (s *service) ToggleStatus(ctx context.Context, storeID, memberID uuid.UUID) (dto *StoreDTO, err error) {
	defer s.metrics.Track("change_store_status", time.Now(), &err)

	var store *models.Store
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.loadOwned(ctx, repo, storeID, memberID)
		if err != nil {
			return err
		}
		status := loaded.ToggleStatus()
		if err := repo.Update(ctx, loaded); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update store status")
		}
		store = loaded

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStoreStatusChange,
			AggregateType: enums.AggregateStore,
			AggregateID:   loaded.ID,
			Actor:         &outbox.ActorRef{MemberID: memberID, StoreID: &loaded.ID},
			Data: payloads.StoreStatusChangedEvent{
				StoreID: loaded.ID,
				Status:  status,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return FromModel(store), nil
}

func (s *service) loadOwned(ctx context.Context, repo Repository, storeID, memberID uuid.UUID) (*models.Store, error) {
	store, err := repo.FindByIDAndMember(ctx, storeID, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found").
				WithReason(pkgerrors.ReasonNoSuchStore)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	return store, nil
}

func nameDuplicated(name string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "store name already taken").
		WithReason(pkgerrors.ReasonStoreNameDuplicated).
		WithDetails(map[string]any{"name": name})
}

// LoadOpen fetches a store and requires it to be open. Order-side use cases
// call it inside their transaction.
func LoadOpen(ctx context.Context, repo Repository, storeID uuid.UUID) (*models.Store, error) {
	store, err := repo.FindByID(ctx, storeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found").
				WithReason(pkgerrors.ReasonNoSuchStore)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	if err := store.EnsureOpen(); err != nil {
		return nil, err
	}
	return store, nil
}
