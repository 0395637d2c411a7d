// Package toolset adapts the built-in mcptools handlers to the registry's
// Executor port, converting between the neutral domain.ToolCallFull/
// ToolOutput shapes and the mcp.ToolCall/ToolResult shapes those handlers
// were written against.
package toolset

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/xonecas/forge/internal/domain"
	"github.com/xonecas/forge/internal/mcp"
)

// Set is the built-in tool catalog: a closed map of tool name to handler,
// populated at startup by registering each concrete tool constructor from
// internal/mcptools (open.go, edit.go, shell.go, web.go, write.go, remove.go,
// undo.go, plan.go, followup.go, skill.go, completion.go, grep.go, git.go).
type Set struct {
	tools    map[domain.ToolName]mcp.Tool
	handlers map[domain.ToolName]mcp.ToolHandler
	schemas  map[domain.ToolName]*jsonschema.Schema
}

// NewSet builds an empty built-in catalog; call Register for each tool.
func NewSet() *Set {
	return &Set{
		tools:    make(map[domain.ToolName]mcp.Tool),
		handlers: make(map[domain.ToolName]mcp.ToolHandler),
		schemas:  make(map[domain.ToolName]*jsonschema.Schema),
	}
}

// Register adds a tool definition and its handler to the catalog, compiling
// its declared input schema once so Execute can validate arguments against it
// before every call instead of on every dispatch.
func (s *Set) Register(tool mcp.Tool, handler mcp.ToolHandler) {
	name := domain.ToolName(tool.Name)
	s.tools[name] = tool
	s.handlers[name] = handler

	schema, err := compileSchema(name, tool.InputSchema)
	if err != nil {
		log.Warn().Err(err).Str("tool", string(name)).Msg("skipping argument validation: schema did not compile")
		return
	}
	s.schemas[name] = schema
}

// compileSchema parses a tool's JSON Schema document and compiles it, or
// returns (nil, nil) when the tool declares no schema at all.
func compileSchema(name domain.ToolName, raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	resource := "mem://tools/" + string(name) + ".json"
	if err := c.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}

// Contains implements registry.Executor.
func (s *Set) Contains(name domain.ToolName) bool {
	_, ok := s.handlers[name]
	return ok
}

// Definitions returns every registered tool's definition, for the overview
// endpoint the orchestrator exposes to the provider as the request's tool
// list.
func (s *Set) Definitions() []domain.ToolDefinition {
	defs := make([]domain.ToolDefinition, 0, len(s.tools))
	for name, t := range s.tools {
		defs = append(defs, domain.ToolDefinition{Name: name, Description: t.Description, Parameters: t.InputSchema})
	}
	return defs
}

// Execute implements registry.Executor, running the handler registered for
// call.Name and translating its mcp.ToolResult back into a domain.ToolOutput.
func (s *Set) Execute(ctx context.Context, call domain.ToolCallFull) (domain.ToolOutput, error) {
	handler, ok := s.handlers[call.Name]
	if !ok {
		return domain.ToolOutput{}, fmt.Errorf("%w: %s", domain.ErrNotFound, call.Name)
	}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	if schema, ok := s.schemas[call.Name]; ok && schema != nil {
		var doc any
		if err := json.Unmarshal(args, &doc); err != nil {
			return domain.ToolOutput{}, fmt.Errorf("unmarshal arguments for %s: %w", call.Name, err)
		}
		if err := schema.Validate(doc); err != nil {
			return domain.ToolOutput{}, fmt.Errorf("arguments for %s failed schema validation: %w", call.Name, err)
		}
	}

	result, err := handler(ctx, args)
	if err != nil {
		return domain.ToolOutput{}, err
	}
	return toDomainOutput(result), nil
}

func toDomainOutput(result *mcp.ToolResult) domain.ToolOutput {
	if result == nil || len(result.Content) == 0 {
		return domain.EmptyOutput()
	}
	values := make([]domain.ToolOutputValue, 0, len(result.Content))
	for _, block := range result.Content {
		if block.Text == "" {
			continue
		}
		values = append(values, domain.ToolOutputValue{Kind: domain.ToolOutputText, Text: block.Text})
	}
	if len(values) == 0 {
		return domain.ToolOutput{IsError: result.IsError, Values: []domain.ToolOutputValue{{Kind: domain.ToolOutputEmpty}}}
	}
	return domain.ToolOutput{IsError: result.IsError, Values: values}
}
