package orderitems

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/internal/items"
	"github.com/mylittlestore/pos-backend/internal/orders"
	"github.com/mylittlestore/pos-backend/internal/stores"
	"github.com/mylittlestore/pos-backend/pkg/db"
	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/metrics"
	"github.com/mylittlestore/pos-backend/pkg/money"
	"github.com/mylittlestore/pos-backend/pkg/outbox"
	"github.com/mylittlestore/pos-backend/pkg/outbox/payloads"
)

const lineKeyConstraint = "ux_order_items_line"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service mutates the lines of an open order. Every mutation keeps item stock
// in step with the ordered count.
type Service interface {
	Create(ctx context.Context, input CreateOrderItemInput) (uuid.UUID, error)
	Update(ctx context.Context, input UpdateOrderItemInput) (uuid.UUID, error)
	Delete(ctx context.Context, input DeleteOrderItemInput) error
	Get(ctx context.Context, id, orderID, storeID uuid.UUID) (*orders.LineDTO, error)
	List(ctx context.Context, orderID, storeID uuid.UUID) ([]orders.LineDTO, error)
}

type ServiceParams struct {
	Repo    Repository
	Orders  orders.Repository
	Stores  stores.Repository
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
	orders  orders.Repository
	stores  stores.Repository
	items   items.Repository
	tx      txRunner
	outbox  outboxPublisher
	money   money.Formatter
	metrics *metrics.UseCaseMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("order items repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Stores == nil:
		return nil, fmt.Errorf("stores repository required")
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
		orders:  params.Orders,
		stores:  params.Stores,
		items:   params.Items,
		tx:      params.Tx,
		outbox:  params.Outbox,
		money:   params.Money,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// Create takes stock and either merges into the live (order, item, price) line
// or opens a new one.
func (s *service) Create(ctx context.Context, input CreateOrderItemInput) (lineID uuid.UUID, err error) {
	defer s.metrics.Track("create_order_item", time.Now(), &err)

	if input.Count < 1 || input.Price < 1 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "price and count must be positive")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.loadMutable(ctx, tx, input.OrderID, input.StoreID)
		if err != nil {
			return err
		}
		itemsRepo := s.items.WithTx(tx)
		item, err := items.Load(ctx, itemsRepo, input.ItemID, input.StoreID)
		if err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		existing, err := repo.FindOrderedByKey(ctx, order.ID, item.ID, input.Price)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		if err := itemsRepo.DecreaseStock(ctx, item.ID, input.Count); err != nil {
			return err
		}

		now := s.now()
		line := existing
		change := payloads.OrderItemMerged
		if line != nil {
			line.AddCount(input.Count, now)
			if err := repo.SaveCount(ctx, line); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge order item")
			}
		} else {
			change = payloads.OrderItemCreated
			line = &models.OrderItem{
				StoreID:   input.StoreID,
				OrderID:   order.ID,
				ItemID:    item.ID,
				ItemName:  item.Name,
				Price:     input.Price,
				Count:     input.Count,
				Status:    enums.OrderItemStatusOrdered,
				OrderedAt: now,
				UpdatedAt: now,
			}
			if err := repo.Create(ctx, line); err != nil {
				if db.IsUniqueViolation(err, lineKeyConstraint) {
					return pkgerrors.New(pkgerrors.CodeConflict, "order item changed concurrently").
						WithDetails(map[string]any{"order_id": order.ID, "item_id": item.ID})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order item")
			}
		}

		lineID = line.ID
		return s.emit(ctx, tx, input.MemberID, line, change, -input.Count)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return lineID, nil
}

// Update sets a line's count. Lowering the count returns stock, raising it
// takes more.
func (s *service) Update(ctx context.Context, input UpdateOrderItemInput) (lineID uuid.UUID, err error) {
	defer s.metrics.Track("update_order_item", time.Now(), &err)

	if input.Count < 1 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "count must be positive")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.loadMutable(ctx, tx, input.OrderID, input.StoreID)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		line, err := s.loadLine(ctx, repo, LineKey{ID: input.ID, OrderID: order.ID, ItemID: input.ItemID, Price: input.Price})
		if err != nil {
			return err
		}

		delta := line.ChangeCount(input.Count, s.now())
		itemsRepo := s.items.WithTx(tx)
		switch {
		case delta > 0:
			restored, err := itemsRepo.IncreaseStock(ctx, line.ItemID, delta)
			if err != nil {
				return err
			}
			if !restored {
				s.warnMissingItem(ctx, line.ItemID)
			}
		case delta < 0:
			if err := itemsRepo.DecreaseStock(ctx, line.ItemID, -delta); err != nil {
				return err
			}
		}
		if err := repo.SaveCount(ctx, line); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order item")
		}

		lineID = line.ID
		return s.emit(ctx, tx, input.MemberID, line, payloads.OrderItemUpdated, delta)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return lineID, nil
}

// Delete soft-deletes a line and returns its units to stock. A vanished item
// does not fail the delete.
func (s *service) Delete(ctx context.Context, input DeleteOrderItemInput) (err error) {
	defer s.metrics.Track("delete_order_item", time.Now(), &err)

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.loadMutable(ctx, tx, input.OrderID, input.StoreID)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		line, err := s.loadLine(ctx, repo, LineKey{ID: input.ID, OrderID: order.ID, ItemID: input.ItemID, Price: input.Price})
		if err != nil {
			return err
		}

		restored, err := s.items.WithTx(tx).IncreaseStock(ctx, line.ItemID, line.Count)
		if err != nil {
			return err
		}
		if !restored {
			s.warnMissingItem(ctx, line.ItemID)
		}

		now := s.now()
		if err := line.Delete(now); err != nil {
			return err
		}
		ok, err := repo.MarkDeleted(ctx, line.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order item")
		}
		if !ok {
			return noSuchLine(line.ID)
		}
		return s.emit(ctx, tx, input.MemberID, line, payloads.OrderItemDeleted, line.Count)
	})
}

func (s *service) Get(ctx context.Context, id, orderID, storeID uuid.UUID) (*orders.LineDTO, error) {
	line, err := s.repo.FindByID(ctx, id, orderID, storeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, noSuchLine(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
	}
	dto := orders.LineFromModel(line, s.money)
	return &dto, nil
}

func (s *service) List(ctx context.Context, orderID, storeID uuid.UUID) ([]orders.LineDTO, error) {
	lines, err := s.repo.ListByOrder(ctx, orderID, storeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order items")
	}
	out := make([]orders.LineDTO, 0, len(lines))
	for i := range lines {
		out = append(out, orders.LineFromModel(&lines[i], s.money))
	}
	return out, nil
}

// loadMutable locks the order and checks the bill is still editable.
func (s *service) loadMutable(ctx context.Context, tx *gorm.DB, orderID, storeID uuid.UUID) (*models.Order, error) {
	order, err := orders.LoadActive(ctx, s.orders.WithTx(tx), orderID, storeID)
	if err != nil {
		return nil, err
	}
	if err := order.EnsureNoPayment(); err != nil {
		return nil, err
	}
	if _, err := stores.LoadOpen(ctx, s.stores.WithTx(tx), storeID); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) loadLine(ctx context.Context, repo Repository, key LineKey) (*models.OrderItem, error) {
	line, err := repo.FindMatching(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, noSuchLine(key.ID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
	}
	return line, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, line *models.OrderItem, change payloads.OrderItemChange, stockDelta int64) error {
	var actor *outbox.ActorRef
	if memberID != uuid.Nil {
		storeID := line.StoreID
		actor = &outbox.ActorRef{MemberID: memberID, StoreID: &storeID}
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderItemChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   line.OrderID,
		Actor:         actor,
		Data: payloads.OrderItemChangedEvent{
			OrderID:     line.OrderID,
			StoreID:     line.StoreID,
			OrderItemID: line.ID,
			ItemID:      line.ItemID,
			Change:      change,
			Price:       line.Price,
			Count:       line.Count,
			StockDelta:  stockDelta,
		},
	})
}

func (s *service) warnMissingItem(ctx context.Context, itemID uuid.UUID) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "item_id", itemID.String()), "stock not restored, item missing")
}

func noSuchLine(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found").
		WithReason(pkgerrors.ReasonNoSuchOrderItem).
		WithDetails(map[string]any{"order_item_id": id})
}
