package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"

	contractx "github.com/pearlcafe/barista-agent/agent/contract"
	shopx "github.com/pearlcafe/barista-agent/agent/shop"
)

// fakeStore is an in-memory shop.Store with scripted failures.
type fakeStore struct {
	items      []shopx.MenuItem
	listErr    error
	lastFilter shopx.ItemFilter

	receipt   *shopx.Receipt
	createErr error
	lastLines []shopx.LineInput

	status        *shopx.OrderStatus
	statusErr     error
	statusOrderID int64

	cancelErr     error
	cancelOrderID int64
}

var _ shopx.Store = (*fakeStore)(nil)

func (f *fakeStore) ListAvailableItems(_ context.Context, filter shopx.ItemFilter) ([]shopx.MenuItem, error) {
	f.lastFilter = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.items, nil
}

func (f *fakeStore) GetItemByName(_ context.Context, name string) (*shopx.MenuItem, error) {
	for i := range f.items {
		if f.items[i].Name == name {
			return &f.items[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", shopx.ErrItemNotFound, name)
}

func (f *fakeStore) CreateOrder(_ context.Context, _ string, lines []shopx.LineInput) (*shopx.Receipt, error) {
	f.lastLines = lines
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.receipt, nil
}

func (f *fakeStore) GetOrderStatus(_ context.Context, orderID int64) (*shopx.OrderStatus, error) {
	f.statusOrderID = orderID
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status, nil
}

func (f *fakeStore) CancelOrder(_ context.Context, orderID int64) error {
	f.cancelOrderID = orderID
	return f.cancelErr
}

func mustExecute(t *testing.T, registry *Registry, action string, args map[string]any) string {
	t.Helper()
	text, err := registry.Execute(context.Background(), contractx.ActionRequest{Action: action, Args: args})
	if err != nil {
		t.Fatalf("Execute(%s): %v", action, err)
	}
	return text
}

func TestMenuItemsReturnsJSONAndForwardsFilter(t *testing.T) {
	t.Parallel()

	store := &fakeStore{items: []shopx.MenuItem{
		{Name: "Latte", Category: "Hot Drinks", Price: 18.00, Description: "Classic espresso with steamed milk.", Available: true},
		{Name: "Mocha", Category: "Hot Drinks", Price: 20.00, Description: "Espresso with chocolate sauce.", Available: true},
	}}
	registry, err := NewRegistry(store)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	text := mustExecute(t, registry, ActionGetMenuItems, map[string]any{
		"category":  "Hot Drinks",
		"max_price": float64(20),
	})

	var decoded []map[string]any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		t.Fatalf("result is not a JSON array: %v\n%s", err, text)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d items, want 2", len(decoded))
	}
	if decoded[0]["name"] != "Latte" {
		t.Fatalf("first item name = %v, want Latte", decoded[0]["name"])
	}
	if _, leaked := decoded[0]["ID"]; leaked {
		t.Fatal("internal item id must not appear in the rendered menu")
	}

	if store.lastFilter.Category != "Hot Drinks" {
		t.Fatalf("category filter = %q, want Hot Drinks", store.lastFilter.Category)
	}
	if store.lastFilter.MaxPrice == nil || *store.lastFilter.MaxPrice != 20 {
		t.Fatalf("max price filter = %v, want 20", store.lastFilter.MaxPrice)
	}
	if store.lastFilter.MinPrice != nil {
		t.Fatalf("min price filter = %v, want nil", store.lastFilter.MinPrice)
	}
}

func TestMenuItemsStoreFailureIsText(t *testing.T) {
	t.Parallel()

	store := &fakeStore{listErr: fmt.Errorf("connection refused")}
	registry, err := NewRegistry(store)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	text := mustExecute(t, registry, ActionGetMenuItems, map[string]any{})
	if !strings.Contains(text, "Error retrieving menu items") {
		t.Fatalf("unexpected failure text: %s", text)
	}
}

func TestItemDetails(t *testing.T) {
	t.Parallel()

	store := &fakeStore{items: []shopx.MenuItem{
		{Name: "Cold Brew", Category: "Cold Drinks", Price: 22.00, Description: "Slow-steeped coffee concentrate over ice.", Available: true},
	}}
	registry, err := NewRegistry(store)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	text := mustExecute(t, registry, ActionGetItemDetails, map[string]any{"item_name": "Cold Brew"})
	var decoded map[string]any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		t.Fatalf("result is not JSON: %v\n%s", err, text)
	}
	if decoded["price"] != 22.00 {
		t.Fatalf("price = %v, want 22", decoded["price"])
	}

	text = mustExecute(t, registry, ActionGetItemDetails, map[string]any{"item_name": "Matcha"})
	if text != "Item 'Matcha' not found or unavailable." {
		t.Fatalf("unexpected not-found text: %s", text)
	}
}

func TestPlaceOrderSuccess(t *testing.T) {
	t.Parallel()

	store := &fakeStore{receipt: &shopx.Receipt{OrderID: 42, TotalPrice: 56.00}}
	registry, err := NewRegistry(store)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	text := mustExecute(t, registry, ActionPlaceOrder, map[string]any{
		"customer_session_id": "single_coffee_customer",
		"items": []any{
			map[string]any{
				"item_name": "Latte",
				"quantity":  float64(2),
				"customizations": map[string]any{
					"milk_type": "oat",
					"shots":     float64(2),
				},
			},
			map[string]any{"item_name": "Croissant"},
		},
	})

	if !strings.Contains(text, "Order ID: 42") {
		t.Fatalf("result must carry the order id: %s", text)
	}
	if !strings.Contains(text, "56.00 EGP") {
		t.Fatalf("result must carry the frozen total: %s", text)
	}

	want := []shopx.LineInput{
		{ItemName: "Latte", Quantity: 2, Customizations: map[string]string{"milk_type": "oat", "shots": "2"}},
		{ItemName: "Croissant", Quantity: 1},
	}
	if !reflect.DeepEqual(store.lastLines, want) {
		t.Fatalf("lines passed to store = %+v, want %+v", store.lastLines, want)
	}
}

func TestPlaceOrderUnknownItem(t *testing.T) {
	t.Parallel()

	store := &fakeStore{createErr: fmt.Errorf("%w: %q", shopx.ErrItemNotFound, "Matcha")}
	registry, err := NewRegistry(store)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	text := mustExecute(t, registry, ActionPlaceOrder, map[string]any{
		"customer_session_id": "s1",
		"items":               []any{map[string]any{"item_name": "Matcha"}},
	})
	if text != "Error: Item 'Matcha' not found or unavailable." {
		t.Fatalf("unexpected text: %s", text)
	}
}

func TestPlaceOrderInvalidContents(t *testing.T) {
	t.Parallel()

	store := &fakeStore{createErr: fmt.Errorf("%w: quantity 0 for \"Latte\" must be at least 1", shopx.ErrInvalidOrder)}
	registry, err := NewRegistry(store)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	text := mustExecute(t, registry, ActionPlaceOrder, map[string]any{
		"customer_session_id": "s1",
		"items":               []any{map[string]any{"item_name": "Latte", "quantity": float64(0)}},
	})
	if !strings.Contains(text, "Error placing order") {
		t.Fatalf("unexpected text: %s", text)
	}
	if !strings.Contains(text, "at least 1") {
		t.Fatalf("validation detail missing: %s", text)
	}
}

func TestOrderStatus(t *testing.T) {
	t.Parallel()

	store := &fakeStore{status: &shopx.OrderStatus{OrderID: 7, Status: shopx.StatusPreparing, TotalPrice: 18.00}}
	registry, err := NewRegistry(store)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	text := mustExecute(t, registry, ActionGetOrderStatus, map[string]any{"order_id": float64(7)})
	if text != "Order ID 7 status: preparing. Total price: 18.00 EGP." {
		t.Fatalf("unexpected text: %s", text)
	}

	store.statusErr = fmt.Errorf("%w: id 99", shopx.ErrOrderNotFound)
	text = mustExecute(t, registry, ActionGetOrderStatus, map[string]any{"order_id": float64(99)})
	if text != "Order ID 99 not found." {
		t.Fatalf("unexpected not-found text: %s", text)
	}
}

func TestCancelOrder(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	registry, err := NewRegistry(store)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	text := mustExecute(t, registry, ActionCancelOrder, map[string]any{"order_id": float64(3)})
	if text != "Order ID 3 has been successfully cancelled." {
		t.Fatalf("unexpected text: %s", text)
	}
	if store.cancelOrderID != 3 {
		t.Fatalf("order id passed to store = %d, want 3", store.cancelOrderID)
	}

	store.cancelErr = &shopx.TransitionError{OrderID: 3, Status: shopx.StatusCompleted}
	text = mustExecute(t, registry, ActionCancelOrder, map[string]any{"order_id": float64(3)})
	if text != "Order ID 3 cannot be cancelled as its current status is 'completed'." {
		t.Fatalf("unexpected guard text: %s", text)
	}

	store.cancelErr = fmt.Errorf("%w: id 3", shopx.ErrOrderNotFound)
	text = mustExecute(t, registry, ActionCancelOrder, map[string]any{"order_id": float64(3)})
	if text != "Order ID 3 not found." {
		t.Fatalf("unexpected not-found text: %s", text)
	}
}

func TestFlattenCustomizations(t *testing.T) {
	t.Parallel()

	if got := flattenCustomizations(nil); got != nil {
		t.Fatalf("flattenCustomizations(nil) = %v, want nil", got)
	}

	got := flattenCustomizations(map[string]any{
		"milk_type": "oat",
		"iced":      true,
		"shots":     float64(2),
	})
	want := map[string]string{"milk_type": "oat", "iced": "true", "shots": "2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("flattenCustomizations = %v, want %v", got, want)
	}
}
