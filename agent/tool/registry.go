package tool

import (
	"context"
	"fmt"
	"sort"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/pearlcafe/barista-agent/agent/contract"
	shopx "github.com/pearlcafe/barista-agent/agent/shop"
)

// Executor runs one action against the store and always returns text.
// Success and domain failures are both rendered conversationally so the
// oracle can read and react to either.
type Executor func(ctx context.Context, args map[string]any) string

// Definition is one registered action: a stable name, a description the
// oracle uses to decide applicability, a typed parameter schema, and an
// executor.
type Definition struct {
	Name   string
	Desc   string
	Params map[string]*schema.ParameterInfo
	Run    Executor
}

// Registry is the fixed, enumerable set of actions the oracle may request.
type Registry struct {
	defs  []*Definition
	index map[string]*Definition
}

var _ contractx.ActionRegistry = (*Registry)(nil)

// NewRegistry builds the coffee-shop action set over the given store.
func NewRegistry(store shopx.Store) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: shop store is required", contractx.ErrValidation)
	}

	defs := []*Definition{
		menuItemsDefinition(store),
		itemDetailsDefinition(store),
		placeOrderDefinition(store),
		orderStatusDefinition(store),
		cancelOrderDefinition(store),
	}

	index := make(map[string]*Definition, len(defs))
	for _, def := range defs {
		index[def.Name] = def
	}

	return &Registry{defs: defs, index: index}, nil
}

// Infos exposes the action schemas in the oracle's tool format.
func (r *Registry) Infos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(r.defs))
	for _, def := range r.defs {
		infos = append(infos, &schema.ToolInfo{
			Name:        def.Name,
			Desc:        def.Desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(def.Params),
		})
	}
	return infos
}

// Names returns the registered action names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for _, def := range r.defs {
		names = append(names, def.Name)
	}
	return names
}

// Execute resolves the requested action, validates its arguments against
// the declared schema, and runs it. Lookup and validation failures are
// protocol errors; everything past that point is text.
func (r *Registry) Execute(ctx context.Context, req contractx.ActionRequest) (string, error) {
	def, ok := r.index[req.Action]
	if !ok {
		return "", fmt.Errorf("%w: %q", contractx.ErrUnknownAction, req.Action)
	}
	if err := validateArgs(def.Params, req.Args); err != nil {
		return "", fmt.Errorf("%w: %s: %v", contractx.ErrInvalidArguments, req.Action, err)
	}
	return def.Run(ctx, req.Args), nil
}

/* ---------------------------- Schema validation --------------------------- */

func validateArgs(params map[string]*schema.ParameterInfo, args map[string]any) error {
	for _, name := range sortedParamNames(params) {
		info := params[name]
		value, present := args[name]
		if !present || value == nil {
			if info.Required {
				return fmt.Errorf("missing required argument %q", name)
			}
			continue
		}
		if err := validateValue(name, info, value); err != nil {
			return err
		}
	}
	for name := range args {
		if _, declared := params[name]; !declared {
			return fmt.Errorf("unknown argument %q", name)
		}
	}
	return nil
}

func validateValue(name string, info *schema.ParameterInfo, value any) error {
	switch info.Type {
	case schema.String:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("argument %q must be a string", name)
		}
	case schema.Boolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("argument %q must be a boolean", name)
		}
	case schema.Number:
		if _, ok := asFloat(value); !ok {
			return fmt.Errorf("argument %q must be a number", name)
		}
	case schema.Integer:
		if _, ok := asInt(value); !ok {
			return fmt.Errorf("argument %q must be an integer", name)
		}
	case schema.Object:
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("argument %q must be an object", name)
		}
		for _, sub := range sortedParamNames(info.SubParams) {
			subInfo := info.SubParams[sub]
			subValue, present := obj[sub]
			if !present || subValue == nil {
				if subInfo.Required {
					return fmt.Errorf("argument %q is missing required field %q", name, sub)
				}
				continue
			}
			if err := validateValue(name+"."+sub, subInfo, subValue); err != nil {
				return err
			}
		}
	case schema.Array:
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("argument %q must be an array", name)
		}
		if info.ElemInfo == nil {
			return nil
		}
		for i, elem := range arr {
			if err := validateValue(fmt.Sprintf("%s[%d]", name, i), info.ElemInfo, elem); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedParamNames(params map[string]*schema.ParameterInfo) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

/* ---------------------------- Argument coercion --------------------------- */

// JSON decoding and model tool calls deliver numbers as float64; accept the
// native integer kinds too.
func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func asInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case float32:
		if float64(v) != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}
