package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"workbench/internal/workspace"
)

// Default allow/confirm lists for built-in tools. Read-only tools run
// freely; anything that mutates the workspace asks first.
var (
	DefaultAllowList = []string{
		"get_current_datetime", "read_file", "list_directory", "search_file",
	}
	DefaultConfirmList = []string{
		"write_file", "edit_file", "delete", "make_directory", "copy", "move",
	}
)

// Registry holds all available tools with their implementations. Tools are
// registered once at startup and immutable thereafter; the mutex guards the
// permission table, which slash commands may adjust at runtime.
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]Tool
	permissions map[string]Permission
	audit       zerolog.Logger
}

// NewRegistry creates a tool registry confined to the given workspace and
// registers all built-in file tools.
func NewRegistry(ws *workspace.Workspace) *Registry {
	return NewRegistryWithPolicy(ws, DefaultPolicy())
}

// NewRegistryWithPolicy creates a registry with the provided policy.
func NewRegistryWithPolicy(ws *workspace.Workspace, policy Policy) *Registry {
	r := &Registry{
		tools:       make(map[string]Tool),
		permissions: make(map[string]Permission),
		audit:       zerolog.Nop(),
	}

	registerBuiltInTools(r, ws)
	r.applyPolicy(DefaultPolicy())
	r.applyPolicy(policy)

	return r
}

// SetAuditLogger installs the append-only audit sink. Every dispatched call
// is logged (tool name, arguments, outcome) before the result is returned.
func (r *Registry) SetAuditLogger(logger zerolog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audit = logger
}

// RegisterTool adds a new tool with its implementation to the registry.
func (r *Registry) RegisterTool(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tool.Name() == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("tool %q is already registered", tool.Name())
	}
	r.tools[tool.Name()] = tool
	if _, ok := r.permissions[tool.Name()]; !ok {
		// Unknown tools default to blocked + confirmation.
		r.permissions[tool.Name()] = Permission{Allowed: false, RequireConfirmation: true}
	}
	return nil
}

// applyPolicy merges the provided policy into the registry permissions.
func (r *Registry) applyPolicy(policy Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.tools {
		perm, ok := r.permissions[name]
		if !ok {
			perm = Permission{Allowed: false, RequireConfirmation: true}
		}
		if policy.Allowed != nil {
			perm.Allowed = policy.Allowed[name]
		}
		if policy.RequireConfirmation != nil {
			perm.RequireConfirmation = policy.RequireConfirmation[name]
		}
		r.permissions[name] = perm
	}
}

// DefaultPolicy returns the default allow/confirm policy.
func DefaultPolicy() Policy {
	return PolicyFromLists(DefaultAllowList, DefaultConfirmList)
}

// PolicyFromLists builds a policy from allow/confirmation lists.
func PolicyFromLists(allow, confirm []string) Policy {
	allowMap := make(map[string]bool, len(allow)+len(confirm))
	for _, name := range allow {
		allowMap[name] = true
	}
	confirmMap := make(map[string]bool, len(confirm))
	for _, name := range confirm {
		allowMap[name] = true
		confirmMap[name] = true
	}
	return Policy{
		Allowed:             allowMap,
		RequireConfirmation: confirmMap,
	}
}

// GetToolNames returns all tool names in sorted order.
func (r *Registry) GetToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenAITools returns the registry as OpenAI tool definitions, sorted by
// name so the schema payload is deterministic across requests.
func (r *Registry) OpenAITools() []openai.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		tool := r.tools[name]
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return defs
}

// Execute runs the specified tool with given arguments.
func (r *Registry) Execute(ctx context.Context, function string, args map[string]interface{}) *ToolResult {
	return r.ExecuteWithOptions(ctx, function, args, ExecuteOptions{})
}

// ExecuteWithOptions runs the tool using the provided options. Every failure
// mode is converted into an error ToolResult; dispatch never panics and
// never aborts the conversation.
func (r *Registry) ExecuteWithOptions(ctx context.Context, function string, args map[string]interface{}, opts ExecuteOptions) (result *ToolResult) {
	result = &ToolResult{Function: function}
	defer func() {
		if rec := recover(); rec != nil {
			result.Error = fmt.Errorf("tool %q panicked: %v", function, rec)
			result.Result = fmt.Sprintf("Error: %v", result.Error)
		}
		result.Result, _ = sanitizeToolOutput(result.Result)
		r.logDispatch(function, args, result)
	}()

	tool, exists := r.getTool(function)
	if !exists {
		result.Error = fmt.Errorf("%w: %s", ErrToolNotFound, function)
		result.Result = fmt.Sprintf("Error: unknown tool %q. Available tools: %v", function, r.GetToolNames())
		return result
	}

	if !opts.Force {
		perm := r.getPermission(function)
		if !perm.Allowed {
			result.Error = fmt.Errorf("%w: %s", ErrToolNotAllowed, function)
			result.Result = fmt.Sprintf("Tool %q is blocked by policy.", function)
			return result
		}
		if perm.RequireConfirmation {
			result.Error = fmt.Errorf("%w: %s", ErrToolRequiresConfirmation, function)
			result.Result = fmt.Sprintf("Tool %q requires explicit approval before running.", function)
			return result
		}
	}

	if err := tool.Validate(args); err != nil {
		result.Error = fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		result.Result = fmt.Sprintf("Error: %v", err)
		return result
	}

	if timeout := timeoutForTool(function); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	output, err := tool.Execute(ctx, args)
	if err != nil {
		result.Error = err
		result.Result = fmt.Sprintf("Error: %v", err)
		return result
	}

	result.Result = output
	return result
}

// ExecuteOpenAIToolCall executes an OpenAI tool call payload.
func (r *Registry) ExecuteOpenAIToolCall(ctx context.Context, call openai.ToolCall) *ToolResult {
	return r.ExecuteOpenAIToolCallWithOptions(ctx, call, ExecuteOptions{})
}

// ExecuteOpenAIToolCallWithOptions executes a tool call with execution options.
func (r *Registry) ExecuteOpenAIToolCallWithOptions(ctx context.Context, call openai.ToolCall, opts ExecuteOptions) *ToolResult {
	name := call.Function.Name
	if name == "" {
		return &ToolResult{
			Function: "unknown_tool",
			Result:   "Error: tool call missing function name",
			Error:    fmt.Errorf("%w: tool call missing function name", ErrInvalidArguments),
		}
	}
	args, err := parseToolArgs(call.Function.Arguments)
	if err != nil {
		return &ToolResult{
			Function: name,
			Result:   fmt.Sprintf("Error: malformed arguments: %v", err),
			Error:    fmt.Errorf("%w: %v", ErrInvalidArguments, err),
		}
	}
	return r.ExecuteWithOptions(ctx, name, args, opts)
}

// AllowTool marks a tool as allowed and optionally keeps confirmation requirements.
func (r *Registry) AllowTool(name string, requireConfirmation bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	perm := r.permissions[name]
	perm.Allowed = true
	perm.RequireConfirmation = requireConfirmation
	r.permissions[name] = perm
}

// GetPermission returns the current permission entry for a tool.
func (r *Registry) GetPermission(name string) Permission {
	return r.getPermission(name)
}

func (r *Registry) logDispatch(function string, args map[string]interface{}, result *ToolResult) {
	logger := r.auditLogger()
	event := logger.Info()
	if result.Error != nil {
		event = logger.Warn().Err(result.Error)
	}
	event.Str("tool", function).
		Interface("args", args).
		Str("status", result.Status()).
		Msg("tool dispatched")
}

func (r *Registry) auditLogger() zerolog.Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.audit
}

// getTool safely retrieves a tool definition.
func (r *Registry) getTool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// getPermission safely fetches permissions for a tool.
func (r *Registry) getPermission(name string) Permission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if perm, ok := r.permissions[name]; ok {
		return perm
	}
	// Default for unknown tools: blocked and requires confirmation.
	return Permission{Allowed: false, RequireConfirmation: true}
}
