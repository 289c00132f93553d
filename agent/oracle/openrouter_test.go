package oracle

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/pearlcafe/barista-agent/agent/contract"
)

func TestToSchemaMessages(t *testing.T) {
	t.Parallel()

	history := []contractx.Message{
		{Role: contractx.RoleUser, Content: "a latte please"},
		{
			Role: contractx.RoleAssistant,
			Actions: []contractx.ActionRequest{{
				CallID: "call-1",
				Action: "place_order",
				Args:   map[string]any{"customer_session_id": "s1"},
			}},
		},
		{Role: contractx.RoleActionResult, Action: "place_order", CallID: "call-1", Content: "Order placed successfully! Your Order ID: 5. Total: 18.00 EGP."},
		{Role: contractx.RoleAssistant, Content: "Done, your latte is order 5."},
	}

	out := toSchemaMessages(history)
	if len(out) != 4 {
		t.Fatalf("mapped %d messages, want 4", len(out))
	}

	if out[0].Role != schema.User || out[0].Content != "a latte please" {
		t.Fatalf("unexpected user mapping: %+v", out[0])
	}

	if out[1].Role != schema.Assistant {
		t.Fatalf("unexpected role for action-bearing message: %s", out[1].Role)
	}
	if len(out[1].ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(out[1].ToolCalls))
	}
	call := out[1].ToolCalls[0]
	if call.ID != "call-1" || call.Type != "function" || call.Function.Name != "place_order" {
		t.Fatalf("unexpected tool call: %+v", call)
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		t.Fatalf("arguments are not JSON: %v", err)
	}
	if args["customer_session_id"] != "s1" {
		t.Fatalf("arguments = %v", args)
	}

	if out[2].Role != schema.Tool || out[2].ToolCallID != "call-1" {
		t.Fatalf("unexpected action result mapping: %+v", out[2])
	}

	if out[3].Role != schema.Assistant || out[3].Content != "Done, your latte is order 5." {
		t.Fatalf("unexpected final assistant mapping: %+v", out[3])
	}
}

func TestToToolCallsEmptyArgs(t *testing.T) {
	t.Parallel()

	calls := toToolCalls([]contractx.ActionRequest{{CallID: "c1", Action: "get_menu_items"}})
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if calls[0].Function.Arguments != "{}" {
		t.Fatalf("empty args must serialize as {}, got %q", calls[0].Function.Arguments)
	}
}

func TestToAssistantMessageFinalReply(t *testing.T) {
	t.Parallel()

	msg, err := toAssistantMessage(&schema.Message{
		Role:    schema.Assistant,
		Content: "  Welcome to Pearl Café!  ",
	})
	if err != nil {
		t.Fatalf("toAssistantMessage: %v", err)
	}
	if msg.Role != contractx.RoleAssistant {
		t.Fatalf("role = %s", msg.Role)
	}
	if msg.Content != "Welcome to Pearl Café!" {
		t.Fatalf("content = %q", msg.Content)
	}
	if msg.HasActions() {
		t.Fatal("final reply must carry no actions")
	}
}

func TestToAssistantMessageWithActions(t *testing.T) {
	t.Parallel()

	msg, err := toAssistantMessage(&schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{
				ID:   "c1",
				Type: "function",
				Function: schema.FunctionCall{
					Name:      "get_item_details",
					Arguments: `{"item_name":"Latte"}`,
				},
			},
			{
				ID:   "c2",
				Type: "function",
				Function: schema.FunctionCall{
					Name:      "get_menu_items",
					Arguments: "",
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("toAssistantMessage: %v", err)
	}
	if !msg.HasActions() {
		t.Fatal("expected an action-bearing message")
	}

	want := []contractx.ActionRequest{
		{CallID: "c1", Action: "get_item_details", Args: map[string]any{"item_name": "Latte"}},
		{CallID: "c2", Action: "get_menu_items", Args: map[string]any{}},
	}
	if !reflect.DeepEqual(msg.Actions, want) {
		t.Fatalf("actions = %+v, want %+v", msg.Actions, want)
	}
}

func TestToAssistantMessageSchemaViolations(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		msg  *schema.Message
	}{
		{
			name: "empty content and no actions",
			msg:  &schema.Message{Role: schema.Assistant, Content: "   "},
		},
		{
			name: "tool call without a name",
			msg: &schema.Message{
				Role: schema.Assistant,
				ToolCalls: []schema.ToolCall{{
					ID:       "c1",
					Type:     "function",
					Function: schema.FunctionCall{Name: "  ", Arguments: "{}"},
				}},
			},
		},
		{
			name: "tool call with malformed arguments",
			msg: &schema.Message{
				Role: schema.Assistant,
				ToolCalls: []schema.ToolCall{{
					ID:       "c1",
					Type:     "function",
					Function: schema.FunctionCall{Name: "get_menu_items", Arguments: "{not json"},
				}},
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := toAssistantMessage(tc.msg)
			if !errors.Is(err, contractx.ErrSchemaViolation) {
				t.Fatalf("error = %v, want ErrSchemaViolation", err)
			}
		})
	}
}
