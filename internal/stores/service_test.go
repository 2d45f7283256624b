package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/outbox"
	"github.com/mylittlestore/pos-backend/pkg/outbox/payloads"
)

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{Tx: stubTxRunner{}, Outbox: &stubOutbox{}}); err == nil {
		t.Fatal("expected error creating service without repo")
	}
	if _, err := NewService(ServiceParams{Repo: &stubStoreRepo{}, Outbox: &stubOutbox{}}); err == nil {
		t.Fatal("expected error creating service without tx runner")
	}
	if _, err := NewService(ServiceParams{Repo: &stubStoreRepo{}, Tx: stubTxRunner{}}); err == nil {
		t.Fatal("expected error creating service without outbox")
	}
}

func TestServiceCreateStartsClosed(t *testing.T) {
	repo := &stubStoreRepo{}
	svc := newTestService(t, repo, &stubOutbox{})
	memberID := uuid.New()

	dto, err := svc.Create(context.Background(), memberID, CreateStoreInput{
		Name:    "  Noodle Bar ",
		Address: AddressDTO{City: "Seoul", Street: "Main 1", Zipcode: "04524"},
	})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if dto.Status != enums.StoreStatusClosed {
		t.Fatalf("expected closed store, got %s", dto.Status)
	}
	if dto.Name != "Noodle Bar" {
		t.Fatalf("expected trimmed name, got %q", dto.Name)
	}
	if repo.created == nil || repo.created.MemberID != memberID {
		t.Fatalf("expected store owned by member, got %+v", repo.created)
	}
}

func TestServiceCreateDuplicateName(t *testing.T) {
	repo := &stubStoreRepo{createErr: errors.New(`ERROR: duplicate key value violates unique constraint "ux_stores_name"`)}
	svc := newTestService(t, repo, &stubOutbox{})

	_, err := svc.Create(context.Background(), uuid.New(), CreateStoreInput{Name: "Taken"})
	if !pkgerrors.HasReason(err, pkgerrors.ReasonStoreNameDuplicated) {
		t.Fatalf("expected duplicated name, got %v", err)
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict code, got %v", err)
	}
}

func TestServiceGetNotFound(t *testing.T) {
	repo := &stubStoreRepo{findErr: gorm.ErrRecordNotFound}
	svc := newTestService(t, repo, &stubOutbox{})

	_, err := svc.Get(context.Background(), uuid.New(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %v", err)
	}
	if !pkgerrors.HasReason(err, pkgerrors.ReasonNoSuchStore) {
		t.Fatalf("expected no such store reason, got %v", err)
	}
}

func TestServiceGetDependencyError(t *testing.T) {
	repo := &stubStoreRepo{findErr: errors.New("boom")}
	svc := newTestService(t, repo, &stubOutbox{})

	_, err := svc.Get(context.Background(), uuid.New(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestServiceOwnsStore(t *testing.T) {
	store := baseStore()
	svc := newTestService(t, &stubStoreRepo{store: store}, &stubOutbox{})

	if err := svc.OwnsStore(context.Background(), store.ID, store.MemberID); err != nil {
		t.Fatalf("owner should pass: %v", err)
	}
	err := svc.OwnsStore(context.Background(), store.ID, uuid.New())
	if !pkgerrors.HasReason(err, pkgerrors.ReasonNoSuchStore) {
		t.Fatalf("expected no such store for a stranger, got %v", err)
	}
}

func TestServiceUpdateAppliesProvidedFields(t *testing.T) {
	store := baseStore()
	repo := &stubStoreRepo{store: store}
	svc := newTestService(t, repo, &stubOutbox{})

	name := "Renamed"
	dto, err := svc.Update(context.Background(), store.ID, store.MemberID, UpdateStoreInput{Name: &name})
	if err != nil {
		t.Fatalf("update store: %v", err)
	}
	if dto.Name != "Renamed" {
		t.Fatalf("expected renamed store, got %s", dto.Name)
	}
	if dto.Address.City != "Seoul" {
		t.Fatalf("expected address untouched, got %+v", dto.Address)
	}
	if repo.updated == nil {
		t.Fatal("expected repository update")
	}
}

func TestServiceUpdateRejectsBlankName(t *testing.T) {
	store := baseStore()
	svc := newTestService(t, &stubStoreRepo{store: store}, &stubOutbox{})

	blank := "   "
	_, err := svc.Update(context.Background(), store.ID, store.MemberID, UpdateStoreInput{Name: &blank})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceToggleStatusEmitsEvent(t *testing.T) {
	store := baseStore()
	repo := &stubStoreRepo{store: store}
	publisher := &stubOutbox{}
	svc := newTestService(t, repo, publisher)

	dto, err := svc.ToggleStatus(context.Background(), store.ID, store.MemberID)
	if err != nil {
		t.Fatalf("toggle status: %v", err)
	}
	if dto.Status != enums.StoreStatusOpen {
		t.Fatalf("expected open store, got %s", dto.Status)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.EventType != enums.EventStoreStatusChange {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	data, ok := event.Data.(payloads.StoreStatusChangedEvent)
	if !ok || data.Status != enums.StoreStatusOpen {
		t.Fatalf("unexpected event data %#v", event.Data)
	}

	dto, err = svc.ToggleStatus(context.Background(), store.ID, store.MemberID)
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if dto.Status != enums.StoreStatusClosed {
		t.Fatalf("expected closed store, got %s", dto.Status)
	}
}

func TestLoadOpenRejectsClosedStore(t *testing.T) {
	store := baseStore()
	_, err := LoadOpen(context.Background(), &stubStoreRepo{store: store}, store.ID)
	if !pkgerrors.HasReason(err, pkgerrors.ReasonStoreClosed) {
		t.Fatalf("expected store closed, got %v", err)
	}

	store.Status = enums.StoreStatusOpen
	got, err := LoadOpen(context.Background(), &stubStoreRepo{store: store}, store.ID)
	if err != nil {
		t.Fatalf("load open store: %v", err)
	}
	if got.ID != store.ID {
		t.Fatalf("expected store %s, got %s", store.ID, got.ID)
	}
}

func newTestService(t *testing.T, repo Repository, publisher outboxPublisher) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, Tx: stubTxRunner{}, Outbox: publisher})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func baseStore() *models.Store {
	now := time.Now().UTC()
	return &models.Store{
		ID:       uuid.New(),
		MemberID: uuid.New(),
		Name:     "Noodle Bar",
		Address: models.Address{
			City:    "Seoul",
			Street:  "Main 1",
			Zipcode: "04524",
		},
		Status:    enums.StoreStatusClosed,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type stubStoreRepo struct {
	store     *models.Store
	findErr   error
	createErr error
	created   *models.Store
	updated   *models.Store
}

func (s *stubStoreRepo) WithTx(*gorm.DB) Repository { return s }

func (s *stubStoreRepo) Create(_ context.Context, store *models.Store) error {
	if s.createErr != nil {
		return s.createErr
	}
	store.ID = uuid.New()
	s.created = store
	return nil
}

func (s *stubStoreRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Store, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.store == nil || s.store.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	cpy := *s.store
	return &cpy, nil
}

func (s *stubStoreRepo) FindByIDAndMember(ctx context.Context, id, memberID uuid.UUID) (*models.Store, error) {
	store, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if store.MemberID != memberID {
		return nil, gorm.ErrRecordNotFound
	}
	return store, nil
}

func (s *stubStoreRepo) ListByMember(context.Context, uuid.UUID) ([]models.Store, error) {
	if s.store == nil {
		return nil, nil
	}
	return []models.Store{*s.store}, nil
}

func (s *stubStoreRepo) Update(_ context.Context, store *models.Store) error {
	cpy := *store
	s.updated = &cpy
	s.store = &cpy
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}
