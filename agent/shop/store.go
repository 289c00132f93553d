package shop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

var (
	ErrItemNotFound      = errors.New("menu item not found or unavailable")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("order status forbids this transition")
	ErrInvalidOrder      = errors.New("order contents are invalid")
)

// TransitionError reports a rejected status transition together with the
// status that blocked it.
type TransitionError struct {
	OrderID int64
	Status  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %d cannot transition from status %q", e.OrderID, e.Status)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ItemFilter narrows a catalog listing. Zero values mean "no constraint".
type ItemFilter struct {
	Category string
	MinPrice *float64
	MaxPrice *float64
}

// Store is the persistence contract for the catalog and orders. Every
// operation scopes its transaction to the single call; partial writes are
// never observable.
type Store interface {
	ListAvailableItems(ctx context.Context, filter ItemFilter) ([]MenuItem, error)
	GetItemByName(ctx context.Context, name string) (*MenuItem, error)
	CreateOrder(ctx context.Context, sessionID string, lines []LineInput) (*Receipt, error)
	GetOrderStatus(ctx context.Context, orderID int64) (*OrderStatus, error)
	CancelOrder(ctx context.Context, orderID int64) error
}

// PostgresStore implements Store on Postgres through bun.
type PostgresStore struct {
	db *bun.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *bun.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &PostgresStore{db: db}, nil
}

// Init creates the catalog and order tables when absent and seeds the
// catalog if it is empty.
func (s *PostgresStore) Init(ctx context.Context) error {
	models := []any{
		(*MenuItem)(nil),
		(*Order)(nil),
		(*OrderItem)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	count, err := s.db.NewSelect().Model((*MenuItem)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count menu items: %w", err)
	}
	if count > 0 {
		return nil
	}

	items := seedItems()
	if _, err := s.db.NewInsert().Model(&items).Exec(ctx); err != nil {
		return fmt.Errorf("seed menu items: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAvailableItems(ctx context.Context, filter ItemFilter) ([]MenuItem, error) {
	q := s.db.NewSelect().
		Model((*MenuItem)(nil)).
		Where("available = TRUE").
		Order("id ASC")

	if category := strings.TrimSpace(filter.Category); category != "" {
		q = q.Where("category = ?", category)
	}
	if filter.MinPrice != nil {
		q = q.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}

	items := make([]MenuItem, 0, 16)
	if err := q.Scan(ctx, &items); err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetItemByName(ctx context.Context, name string) (*MenuItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty item name", ErrItemNotFound)
	}

	var item MenuItem
	err := s.db.NewSelect().
		Model(&item).
		Where("name = ?", name).
		Where("available = TRUE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrItemNotFound, name)
		}
		return nil, fmt.Errorf("get menu item %q: %w", name, err)
	}
	return &item, nil
}

// validateLines rejects order contents the store will never accept:
// no lines at all, blank item names, or quantities below one.
func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: order has no items", ErrInvalidOrder)
	}
	for _, line := range lines {
		if strings.TrimSpace(line.ItemName) == "" {
			return fmt.Errorf("%w: item name is empty", ErrInvalidOrder)
		}
		if line.Quantity < 1 {
			return fmt.Errorf("%w: quantity %d for %q must be at least 1", ErrInvalidOrder, line.Quantity, line.ItemName)
		}
	}
	return nil
}

// CreateOrder re-validates every referenced item inside a single
// transaction, freezes the total from current catalog prices, and inserts
// the order with all of its line items atomically.
func (s *PostgresStore) CreateOrder(ctx context.Context, sessionID string, lines []LineInput) (*Receipt, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is empty", ErrInvalidOrder)
	}
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	var receipt Receipt
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		total := 0.0
		orderItems := make([]OrderItem, 0, len(lines))
		for _, line := range lines {
			var item MenuItem
			err := tx.NewSelect().
				Model(&item).
				Column("id", "price").
				Where("name = ?", strings.TrimSpace(line.ItemName)).
				Where("available = TRUE").
				Scan(ctx)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("%w: %q", ErrItemNotFound, line.ItemName)
				}
				return fmt.Errorf("validate item %q: %w", line.ItemName, err)
			}

			total += item.Price * float64(line.Quantity)
			orderItems = append(orderItems, OrderItem{
				ItemID:         item.ID,
				Quantity:       line.Quantity,
				Customizations: line.Customizations,
			})
		}

		order := Order{
			CustomerSessionID: sessionID,
			Status:            StatusPending,
			TotalPrice:        total,
		}
		if _, err := tx.NewInsert().Model(&order).Exec(ctx); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range orderItems {
			orderItems[i].OrderID = order.ID
		}
		if _, err := tx.NewInsert().Model(&orderItems).Exec(ctx); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}

		receipt = Receipt{OrderID: order.ID, TotalPrice: total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (s *PostgresStore) GetOrderStatus(ctx context.Context, orderID int64) (*OrderStatus, error) {
	var order Order
	err := s.db.NewSelect().
		Model(&order).
		Column("id", "status", "total_price").
		Where("id = ?", orderID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}
	return &OrderStatus{OrderID: order.ID, Status: order.Status, TotalPrice: order.TotalPrice}, nil
}

// CancelOrder reads the current status under a row lock so that at most one
// of two concurrent cancellations succeeds; the loser observes the
// now-cancelled status and fails with ErrInvalidTransition.
func (s *PostgresStore) CancelOrder(ctx context.Context, orderID int64) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var order Order
		err := tx.NewSelect().
			Model(&order).
			Column("id", "status").
			Where("id = ?", orderID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: id %d", ErrOrderNotFound, orderID)
			}
			return fmt.Errorf("lock order %d: %w", orderID, err)
		}

		if !CanCancel(order.Status) {
			return &TransitionError{OrderID: orderID, Status: order.Status}
		}

		if _, err := tx.NewUpdate().
			Model((*Order)(nil)).
			Set("status = ?", StatusCancelled).
			Where("id = ?", orderID).
			Exec(ctx); err != nil {
			return fmt.Errorf("cancel order %d: %w", orderID, err)
		}
		return nil
	})
}
