package shop

import (
	"time"

	"github.com/uptrace/bun"
)

// Order lifecycle. Cancellation is only valid from a non-terminal status.
const (
	StatusPending   = "pending"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// CanCancel reports whether an order in the given status may still be
// cancelled.
func CanCancel(status string) bool {
	switch status {
	case StatusCompleted, StatusReady, StatusCancelled:
		return false
	default:
		return true
	}
}

type MenuItem struct {
	bun.BaseModel `bun:"table:menu_items,alias:mi"`

	ID          int64   `bun:"id,pk,autoincrement" json:"-"`
	Name        string  `bun:"name,notnull,unique" json:"name"`
	Category    string  `bun:"category,notnull" json:"category"`
	Price       float64 `bun:"price,notnull" json:"price"`
	Description string  `bun:"description" json:"description"`
	Available   bool    `bun:"available,notnull,default:true" json:"-"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID                int64     `bun:"id,pk,autoincrement"`
	CustomerSessionID string    `bun:"customer_session_id,notnull"`
	OrderTime         time.Time `bun:"order_time,nullzero,notnull,default:current_timestamp"`
	Status            string    `bun:"status,notnull,default:'pending'"`
	TotalPrice        float64   `bun:"total_price,notnull,default:0"`
}

type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID             int64             `bun:"id,pk,autoincrement"`
	OrderID        int64             `bun:"order_id,notnull"`
	ItemID         int64             `bun:"item_id,notnull"`
	Quantity       int               `bun:"quantity,notnull,default:1"`
	Customizations map[string]string `bun:"customizations,type:jsonb"`
}

// LineInput is one requested line of a new order. Customizations are a flat
// string-keyed mapping; values are not validated against an allowed set.
type LineInput struct {
	ItemName       string
	Quantity       int
	Customizations map[string]string
}

// Receipt is the durable outcome of a placed order, with the total frozen
// at placement time.
type Receipt struct {
	OrderID    int64
	TotalPrice float64
}

// OrderStatus is the read-side projection of an order's state.
type OrderStatus struct {
	OrderID    int64
	Status     string
	TotalPrice float64
}

// seedItems is the initial Pearl Café catalog, inserted only when the
// menu_items table is empty.
func seedItems() []MenuItem {
	return []MenuItem{
		{Name: "Latte", Category: "Hot Drinks", Price: 18.00, Description: "Classic espresso with steamed milk and a thin layer of foam.", Available: true},
		{Name: "Cappuccino", Category: "Hot Drinks", Price: 18.00, Description: "Espresso with steamed milk and a thick layer of foam.", Available: true},
		{Name: "Espresso", Category: "Hot Drinks", Price: 12.00, Description: "A strong shot of coffee.", Available: true},
		{Name: "Americano", Category: "Hot Drinks", Price: 15.00, Description: "Espresso diluted with hot water.", Available: true},
		{Name: "Iced Latte", Category: "Cold Drinks", Price: 20.00, Description: "Espresso with cold milk and ice.", Available: true},
		{Name: "Cold Brew", Category: "Cold Drinks", Price: 22.00, Description: "Slow-steeped coffee concentrate over ice.", Available: true},
		{Name: "Mocha", Category: "Hot Drinks", Price: 20.00, Description: "Espresso with chocolate sauce and steamed milk.", Available: true},
		{Name: "Croissant", Category: "Pastries", Price: 10.00, Description: "Flaky, buttery pastry.", Available: true},
		{Name: "Blueberry Muffin", Category: "Pastries", Price: 12.00, Description: "Sweet muffin with fresh blueberries.", Available: true},
	}
}
