package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// ToolRegistry is a mutable, ordered collection of tools and their handlers.
// Mutations trigger a tool list-changed broadcast on every server the
// registry is attached to. It is safe for concurrent use.
type ToolRegistry struct {
	mu       sync.RWMutex
	tools    []Tool
	handlers map[string]ToolHandler
	schemas  map[string]*gojsonschema.Schema

	changes *changeNotifier
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		handlers: make(map[string]ToolHandler),
		schemas:  make(map[string]*gojsonschema.Schema),
		changes:  newChangeNotifier(),
	}
}

// Add registers a tool with its handler. Registering a name again replaces
// the earlier registration in place, keeping its position in the list. The
// tool's input schema, when present, is compiled here so every later call
// validates against it.
func (r *ToolRegistry) Add(tool Tool, handler ToolHandler) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if handler == nil {
		return fmt.Errorf("tool %q registered without handler", tool.Name)
	}

	var schema *gojsonschema.Schema
	if len(tool.InputSchema) > 0 {
		var err error
		schema, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(tool.InputSchema))
		if err != nil {
			return fmt.Errorf("compile input schema for tool %q: %w", tool.Name, err)
		}
	}

	r.mu.Lock()
	if _, ok := r.handlers[tool.Name]; ok {
		for i := range r.tools {
			if r.tools[i].Name == tool.Name {
				r.tools[i] = tool
				break
			}
		}
	} else {
		r.tools = append(r.tools, tool)
	}
	r.handlers[tool.Name] = handler
	if schema != nil {
		r.schemas[tool.Name] = schema
	} else {
		delete(r.schemas, tool.Name)
	}
	r.mu.Unlock()

	r.changes.notify()
	return nil
}

// Remove deletes the named tool, reporting whether it was present.
func (r *ToolRegistry) Remove(name string) bool {
	r.mu.Lock()
	if _, ok := r.handlers[name]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.handlers, name)
	delete(r.schemas, name)
	for i := range r.tools {
		if r.tools[i].Name == name {
			r.tools = append(r.tools[:i], r.tools[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.changes.notify()
	return true
}

// Tools returns a snapshot of the registered tools in registration order.
func (r *ToolRegistry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, len(r.tools))
	copy(tools, r.tools)
	return tools
}

// call locates the named tool, validates the arguments against its input
// schema, and runs the handler. Unknown names and invalid arguments fail as
// JSONRPCError so they surface as request errors rather than tool failures.
func (r *ToolRegistry) call(ctx context.Context, sess *ServerSession, params CallToolParams) (CallToolResult, error) {
	r.mu.RLock()
	handler, ok := r.handlers[params.Name]
	schema := r.schemas[params.Name]
	r.mu.RUnlock()

	if !ok {
		return CallToolResult{}, JSONRPCError{
			Code:    ErrCodeInvalidParams,
			Message: fmt.Sprintf("tool not found: %s", params.Name),
		}
	}

	if schema != nil {
		args := params.Arguments
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		result, err := schema.Validate(gojsonschema.NewBytesLoader(args))
		if err != nil {
			return CallToolResult{}, JSONRPCError{
				Code:    ErrCodeInvalidParams,
				Message: fmt.Sprintf("invalid tool arguments: %v", err),
			}
		}
		if !result.Valid() {
			return CallToolResult{}, JSONRPCError{
				Code:    ErrCodeInvalidParams,
				Message: fmt.Sprintf("invalid tool arguments: %s", validationErrors(result)),
			}
		}
	}

	return handler(ctx, sess, params)
}

func validationErrors(result *gojsonschema.Result) string {
	msg := ""
	for i, desc := range result.Errors() {
		if i > 0 {
			msg += "; "
		}
		msg += desc.String()
	}
	return msg
}

// ToolSchema reflects a JSON Schema from the type parameter, for building
// tool definitions from plain argument structs. The reflected schema inlines
// all definitions so it is self-contained.
func ToolSchema[T any]() (json.RawMessage, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(new(T))
	// The version marker is dropped so the schema compiles with validators
	// that do not know the 2020-12 draft.
	schema.Version = ""
	return json.Marshal(schema)
}

// AddTool reflects an input schema from the arguments struct T and registers
// the tool in one step. The handler receives the arguments already decoded
// into T.
func AddTool[T any](reg *ToolRegistry, name, description string,
	fn func(ctx context.Context, sess *ServerSession, args T) (CallToolResult, error),
) error {
	schema, err := ToolSchema[T]()
	if err != nil {
		return fmt.Errorf("reflect input schema for tool %q: %w", name, err)
	}

	tool := Tool{
		Name:        name,
		Description: description,
		InputSchema: schema,
	}
	return reg.Add(tool, func(ctx context.Context, sess *ServerSession, params CallToolParams) (CallToolResult, error) {
		var args T
		if len(params.Arguments) > 0 {
			if err := json.Unmarshal(params.Arguments, &args); err != nil {
				return CallToolResult{}, JSONRPCError{
					Code:    ErrCodeInvalidParams,
					Message: fmt.Sprintf("invalid tool arguments: %v", err),
				}
			}
		}
		return fn(ctx, sess, args)
	})
}
