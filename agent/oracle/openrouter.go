package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/pearlcafe/barista-agent/agent/contract"
	promptx "github.com/pearlcafe/barista-agent/agent/prompt"
	openrouterx "github.com/pearlcafe/barista-agent/pkg/openrouter"
)

// OpenRouterOracle adapts an OpenRouter-routed tool-calling chat model to
// the dialogue controller's decide contract. It serializes the transcript
// plus the action schemas into one model invocation and maps the response
// back to either a final message or a batch of action requests.
type OpenRouterOracle struct {
	runner compose.Runnable[map[string]any, *schema.Message]
}

var _ contractx.Oracle = (*OpenRouterOracle)(nil)

func New(ctx context.Context, builder openrouterx.LLMBuilder, actions []*schema.ToolInfo) (*OpenRouterOracle, error) {
	if builder == nil {
		return nil, fmt.Errorf("%w: llm builder is required", contractx.ErrValidation)
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("%w: at least one action schema is required", contractx.ErrValidation)
	}

	chatModel, err := builder.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: build chat model: %v", contractx.ErrModelInvoke, err)
	}
	toolModel, err := chatModel.WithTools(actions)
	if err != nil {
		return nil, fmt.Errorf("%w: bind action schemas: %v", contractx.ErrModelInvoke, err)
	}

	runner, err := compileDecideGraph(ctx, toolModel, promptx.LoadPromptSet().Barista)
	if err != nil {
		return nil, err
	}

	return &OpenRouterOracle{runner: runner}, nil
}

// Decide invokes the model once over the transcript. No retries: failures
// surface to the controller.
func (o *OpenRouterOracle) Decide(ctx context.Context, req contractx.DecideRequest) (contractx.Message, error) {
	out, err := o.runner.Invoke(ctx, map[string]any{
		"customer_id": req.CustomerID,
		"messages":    toSchemaMessages(req.Messages),
	})
	if err != nil {
		return contractx.Message{}, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if out == nil {
		return contractx.Message{}, fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)
	}

	return toAssistantMessage(out)
}

func compileDecideGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.MessagesPlaceholder("messages", false),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add decide prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add decide model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add decide edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add decide edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add decide edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("oracle.decide_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile decide graph: %w", err)
	}
	return runner, nil
}

/* ----------------------------- Wire mapping ------------------------------ */

func toSchemaMessages(messages []contractx.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case contractx.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case contractx.RoleAssistant:
			out = append(out, &schema.Message{
				Role:      schema.Assistant,
				Content:   m.Content,
				ToolCalls: toToolCalls(m.Actions),
			})
		case contractx.RoleActionResult:
			out = append(out, schema.ToolMessage(m.Content, m.CallID))
		}
	}
	return out
}

func toToolCalls(requests []contractx.ActionRequest) []schema.ToolCall {
	if len(requests) == 0 {
		return nil
	}
	calls := make([]schema.ToolCall, 0, len(requests))
	for _, req := range requests {
		arguments := "{}"
		if len(req.Args) > 0 {
			if raw, err := json.Marshal(req.Args); err == nil {
				arguments = string(raw)
			}
		}
		calls = append(calls, schema.ToolCall{
			ID:   req.CallID,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      req.Action,
				Arguments: arguments,
			},
		})
	}
	return calls
}

func toAssistantMessage(msg *schema.Message) (contractx.Message, error) {
	requests, err := toActionRequests(msg.ToolCalls)
	if err != nil {
		return contractx.Message{}, err
	}

	content := strings.TrimSpace(msg.Content)
	if len(requests) == 0 && content == "" {
		return contractx.Message{}, fmt.Errorf("%w: assistant message is empty", contractx.ErrSchemaViolation)
	}

	return contractx.Message{
		Role:    contractx.RoleAssistant,
		Content: content,
		Actions: requests,
	}, nil
}

func toActionRequests(calls []schema.ToolCall) ([]contractx.ActionRequest, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	reqs := make([]contractx.ActionRequest, 0, len(calls))
	for _, call := range calls {
		action := strings.TrimSpace(call.Function.Name)
		if action == "" {
			return nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}

		args := map[string]any{}
		rawArgs := strings.TrimSpace(call.Function.Arguments)
		if rawArgs != "" {
			if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
				return nil, fmt.Errorf("%w: invalid arguments for action=%s: %v", contractx.ErrSchemaViolation, action, err)
			}
		}

		reqs = append(reqs, contractx.ActionRequest{
			CallID: call.ID,
			Action: action,
			Args:   args,
		})
	}
	return reqs, nil
}
