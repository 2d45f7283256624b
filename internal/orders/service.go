package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/internal/items"
	"github.com/mylittlestore/pos-backend/internal/stores"
	"github.com/mylittlestore/pos-backend/internal/storetables"
	"github.com/mylittlestore/pos-backend/pkg/db"
	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/metrics"
	"github.com/mylittlestore/pos-backend/pkg/money"
	"github.com/mylittlestore/pos-backend/pkg/outbox"
	"github.com/mylittlestore/pos-backend/pkg/outbox/payloads"
	"github.com/mylittlestore/pos-backend/pkg/pagination"
)

const activeTableConstraint = "ux_orders_active_table"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines order-level operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (uuid.UUID, error)
	Get(ctx context.Context, id, storeID uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, storeID uuid.UUID, filter ListFilter, params pagination.Params) (*pagination.Page[OrderSummaryDTO], error)
	Delete(ctx context.Context, id, storeID, memberID uuid.UUID) error
}

// ServiceParams groups the order service dependencies.
type ServiceParams struct {
	Repo    Repository
	Stores  stores.Repository
	Tables  storetables.Repository
	Items   items.Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Money   money.Formatter
	Metrics *metrics.UseCaseMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	repo    Repository
	stores  stores.Repository
	tables  storetables.Repository
	items   items.Repository
	tx      txRunner
	outbox  outboxPublisher
	money   money.Formatter
	metrics *metrics.UseCaseMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Stores == nil:
		return nil, fmt.Errorf("stores repository required")
	case params.Tables == nil:
		return nil, fmt.Errorf("store tables repository required")
	case params.Items == nil:
		return nil, fmt.Errorf("items repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:    params.Repo,
		stores:  params.Stores,
		tables:  params.Tables,
		items:   params.Items,
		tx:      params.Tx,
		outbox:  params.Outbox,
		money:   params.Money,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// Create seats a new order on an empty table of an open store. When the table
// is taken the conflict carries the seated order id for redirection.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (orderID uuid.UUID, err error) {
	defer s.metrics.Track("create_order", time.Now(), &err)

	if input.StoreID == uuid.Nil || input.StoreTableID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "store id and store table id required")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		tables := s.tables.WithTx(tx)
		table, err := storetables.LoadForUpdate(ctx, tables, input.StoreTableID, input.StoreID)
		if err != nil {
			return err
		}

		order := &models.Order{
			ID:           uuid.New(),
			StoreID:      input.StoreID,
			StoreTableID: table.ID,
			StartTime:    s.now(),
			Status:       enums.OrderStatusUsing,
		}
		if err := table.AttachOrder(order.ID); err != nil {
			return err
		}
		if _, err := stores.LoadOpen(ctx, s.stores.WithTx(tx), input.StoreID); err != nil {
			return err
		}

		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, activeTableConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, "store table already has an order").
					WithReason(pkgerrors.ReasonTableAlreadyOccupied).
					WithDetails(map[string]any{"store_table_id": table.ID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		seated, err := tables.Occupy(ctx, table.ID, input.StoreID, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "occupy store table")
		}
		if !seated {
			return pkgerrors.New(pkgerrors.CodeConflict, "store table already has an order").
				WithReason(pkgerrors.ReasonTableAlreadyOccupied).
				WithDetails(map[string]any{"store_table_id": table.ID})
		}

		orderID = order.ID
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor(input.MemberID, input.StoreID),
			Data: payloads.OrderCreatedEvent{
				OrderID:      order.ID,
				StoreID:      order.StoreID,
				StoreTableID: order.StoreTableID,
				StartTime:    order.StartTime,
			},
		})
	})
	if err != nil {
		return uuid.Nil, err
	}
	return orderID, nil
}

func (s *service) Get(ctx context.Context, id, storeID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, id, storeID)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	return FromModel(order, s.money), nil
}

func (s *service) List(ctx context.Context, storeID uuid.UUID, filter ListFilter, params pagination.Params) (*pagination.Page[OrderSummaryDTO], error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, storeID, filter, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page := pagination.Build(rows, params.Limit, func(m models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	out := &pagination.Page[OrderSummaryDTO]{
		Items:      make([]OrderSummaryDTO, 0, len(page.Items)),
		NextCursor: page.NextCursor,
	}
	for i := range page.Items {
		out.Items = append(out.Items, summaryFromModel(&page.Items[i]))
	}
	return out, nil
}

// Delete retires an unpaid order without a payment: ordered stock goes back,
// lines are soft-deleted and the table is freed.
func (s *service) Delete(ctx context.Context, id, storeID, memberID uuid.UUID) (err error) {
	defer s.metrics.Track("delete_order", time.Now(), &err)

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "load order")
		}
		if order.StoreID != storeID {
			return noSuchOrder(id)
		}

		previous := order.Status
		now := s.now()
		if err := order.Delete(now); err != nil {
			return err
		}

		itemsRepo := s.items.WithTx(tx)
		for _, line := range order.OrderedItems() {
			restored, err := itemsRepo.IncreaseStock(ctx, line.ItemID, line.Count)
			if err != nil {
				return err
			}
			if !restored && s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "item_id", line.ItemID.String()), "stock not restored, item missing")
			}
		}
		if _, err := repo.UpdateLinesStatus(ctx, order.ID, enums.OrderItemStatusOrdered, enums.OrderItemStatusDeleted, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order lines")
		}
		ok, err := repo.TransitionStatus(ctx, order.ID, previous, enums.OrderStatusDeleted, order.EndTime)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently").
				WithDetails(map[string]any{"order_id": order.ID})
		}
		if _, err := s.tables.WithTx(tx).Release(ctx, order.StoreTableID, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release store table")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDeleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor(memberID, storeID),
			Data: payloads.OrderDeletedEvent{
				OrderID:      order.ID,
				StoreID:      order.StoreID,
				StoreTableID: order.StoreTableID,
				DeletedAt:    now,
			},
		})
	})
}

// LoadActive locks an order that is neither paid nor deleted. Line and
// payment use cases start from it.
func LoadActive(ctx context.Context, repo Repository, id, storeID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindActiveForUpdate(ctx, id, storeID)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	return order, nil
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
			WithReason(pkgerrors.ReasonNoSuchOrder)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func noSuchOrder(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
		WithReason(pkgerrors.ReasonNoSuchOrder).
		WithDetails(map[string]any{"order_id": id})
}

func actor(memberID, storeID uuid.UUID) *outbox.ActorRef {
	if memberID == uuid.Nil {
		return nil
	}
	store := storeID
	return &outbox.ActorRef{MemberID: memberID, StoreID: &store}
}
