package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	shopx "github.com/pearlcafe/barista-agent/agent/shop"
)

const (
	ActionGetMenuItems   = "get_menu_items"
	ActionGetItemDetails = "get_item_details"
	ActionPlaceOrder     = "place_order"
	ActionGetOrderStatus = "get_order_status"
	ActionCancelOrder    = "cancel_order"
)

func menuItemsDefinition(store shopx.Store) *Definition {
	return &Definition{
		Name: ActionGetMenuItems,
		Desc: "Retrieves the list of available menu items, optionally filtered by category and/or price range. Returns a JSON array of items.",
		Params: map[string]*schema.ParameterInfo{
			"category": {
				Type: schema.String,
				Desc: `Filter items by category, e.g. "Hot Drinks", "Cold Drinks", "Pastries".`,
			},
			"min_price": {
				Type: schema.Number,
				Desc: "Minimum price for items, in EGP.",
			},
			"max_price": {
				Type: schema.Number,
				Desc: "Maximum price for items, in EGP.",
			},
		},
		Run: func(ctx context.Context, args map[string]any) string {
			filter := shopx.ItemFilter{}
			if category, ok := args["category"].(string); ok {
				filter.Category = category
			}
			if v, ok := asFloat(args["min_price"]); ok {
				filter.MinPrice = &v
			}
			if v, ok := asFloat(args["max_price"]); ok {
				filter.MaxPrice = &v
			}

			items, err := store.ListAvailableItems(ctx, filter)
			if err != nil {
				log.Error().Err(err).Str("action", ActionGetMenuItems).Msg("store operation failed")
				return "Error retrieving menu items: the shop system is temporarily unavailable. Please try again shortly."
			}

			payload, err := json.Marshal(items)
			if err != nil {
				return fmt.Sprintf("Error retrieving menu items: %v", err)
			}
			return string(payload)
		},
	}
}

func itemDetailsDefinition(store shopx.Store) *Definition {
	return &Definition{
		Name: ActionGetItemDetails,
		Desc: "Retrieves details (name, category, price, description) for a specific menu item.",
		Params: map[string]*schema.ParameterInfo{
			"item_name": {
				Type:     schema.String,
				Desc:     "Exact name of the menu item.",
				Required: true,
			},
		},
		Run: func(ctx context.Context, args map[string]any) string {
			itemName, _ := args["item_name"].(string)

			item, err := store.GetItemByName(ctx, itemName)
			if err != nil {
				if errors.Is(err, shopx.ErrItemNotFound) {
					return fmt.Sprintf("Item '%s' not found or unavailable.", itemName)
				}
				log.Error().Err(err).Str("action", ActionGetItemDetails).Msg("store operation failed")
				return fmt.Sprintf("Error retrieving item details for %s: the shop system is temporarily unavailable.", itemName)
			}

			payload, err := json.Marshal(item)
			if err != nil {
				return fmt.Sprintf("Error retrieving item details for %s: %v", itemName, err)
			}
			return string(payload)
		},
	}
}

func placeOrderDefinition(store shopx.Store) *Definition {
	return &Definition{
		Name: ActionPlaceOrder,
		Desc: "Records a new order. Each item carries an item_name, a quantity, and an optional flat map of customizations such as milk_type, sweetness, temperature, or size. Returns the order ID and total on success.",
		Params: map[string]*schema.ParameterInfo{
			"customer_session_id": {
				Type:     schema.String,
				Desc:     "Unique identifier of the current customer session.",
				Required: true,
			},
			"items": {
				Type:     schema.Array,
				Desc:     "Items to order.",
				Required: true,
				ElemInfo: &schema.ParameterInfo{
					Type: schema.Object,
					SubParams: map[string]*schema.ParameterInfo{
						"item_name": {
							Type:     schema.String,
							Desc:     "Exact name of the menu item.",
							Required: true,
						},
						"quantity": {
							Type: schema.Integer,
							Desc: "How many of this item; defaults to 1.",
						},
						"customizations": {
							Type: schema.Object,
							Desc: "Flat attribute-to-choice mapping, e.g. milk_type: oat.",
						},
					},
				},
			},
		},
		Run: func(ctx context.Context, args map[string]any) string {
			sessionID, _ := args["customer_session_id"].(string)
			rawItems, _ := args["items"].([]any)

			lines := make([]shopx.LineInput, 0, len(rawItems))
			for _, raw := range rawItems {
				entry, _ := raw.(map[string]any)
				line := shopx.LineInput{Quantity: 1}
				line.ItemName, _ = entry["item_name"].(string)
				if q, ok := asInt(entry["quantity"]); ok {
					line.Quantity = int(q)
				}
				if custom, ok := entry["customizations"].(map[string]any); ok {
					line.Customizations = flattenCustomizations(custom)
				}
				lines = append(lines, line)
			}

			receipt, err := store.CreateOrder(ctx, sessionID, lines)
			if err != nil {
				switch {
				case errors.Is(err, shopx.ErrItemNotFound):
					return fmt.Sprintf("Error: %s", itemNotFoundDetail(err))
				case errors.Is(err, shopx.ErrInvalidOrder):
					return fmt.Sprintf("Error placing order: %v", err)
				default:
					log.Error().Err(err).Str("action", ActionPlaceOrder).Msg("store operation failed")
					return "Error placing order: the shop system is temporarily unavailable. Please try again shortly."
				}
			}

			return fmt.Sprintf("Order placed successfully! Your Order ID: %d. Total: %.2f EGP.", receipt.OrderID, receipt.TotalPrice)
		},
	}
}

func orderStatusDefinition(store shopx.Store) *Definition {
	return &Definition{
		Name: ActionGetOrderStatus,
		Desc: "Retrieves the current status and total price of a specific order.",
		Params: map[string]*schema.ParameterInfo{
			"order_id": {
				Type:     schema.Integer,
				Desc:     "Identifier of the order.",
				Required: true,
			},
		},
		Run: func(ctx context.Context, args map[string]any) string {
			orderID, _ := asInt(args["order_id"])

			status, err := store.GetOrderStatus(ctx, orderID)
			if err != nil {
				if errors.Is(err, shopx.ErrOrderNotFound) {
					return fmt.Sprintf("Order ID %d not found.", orderID)
				}
				log.Error().Err(err).Str("action", ActionGetOrderStatus).Msg("store operation failed")
				return "Error retrieving order status: the shop system is temporarily unavailable."
			}

			return fmt.Sprintf("Order ID %d status: %s. Total price: %.2f EGP.", status.OrderID, status.Status, status.TotalPrice)
		},
	}
}

func cancelOrderDefinition(store shopx.Store) *Definition {
	return &Definition{
		Name: ActionCancelOrder,
		Desc: "Cancels an existing order when its status still allows it. Completed, ready, or already cancelled orders cannot be cancelled.",
		Params: map[string]*schema.ParameterInfo{
			"order_id": {
				Type:     schema.Integer,
				Desc:     "Identifier of the order.",
				Required: true,
			},
		},
		Run: func(ctx context.Context, args map[string]any) string {
			orderID, _ := asInt(args["order_id"])

			err := store.CancelOrder(ctx, orderID)
			if err == nil {
				return fmt.Sprintf("Order ID %d has been successfully cancelled.", orderID)
			}

			var transition *shopx.TransitionError
			switch {
			case errors.Is(err, shopx.ErrOrderNotFound):
				return fmt.Sprintf("Order ID %d not found.", orderID)
			case errors.As(err, &transition):
				return fmt.Sprintf("Order ID %d cannot be cancelled as its current status is '%s'.", orderID, transition.Status)
			default:
				log.Error().Err(err).Str("action", ActionCancelOrder).Msg("store operation failed")
				return fmt.Sprintf("Error cancelling order ID %d: the shop system is temporarily unavailable.", orderID)
			}
		},
	}
}

func flattenCustomizations(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

// itemNotFoundDetail collapses a wrapped ErrItemNotFound into the original
// "Item 'X' not found or unavailable." phrasing.
func itemNotFoundDetail(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, `: "`); idx >= 0 {
		name := strings.Trim(msg[idx+2:], `"`)
		return fmt.Sprintf("Item '%s' not found or unavailable.", name)
	}
	return "Item not found or unavailable."
}
