package tools

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	apperrors "workbench/internal/errors"
	"workbench/internal/workspace"
)

func newTestWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}
	return ws
}

func newTestRegistry(t *testing.T) (*Registry, *workspace.Workspace) {
	t.Helper()
	ws := newTestWorkspace(t)
	return NewRegistry(ws), ws
}

// execForce bypasses policy so tests can exercise mutating handlers directly.
func execForce(r *Registry, name string, args map[string]interface{}) *ToolResult {
	return r.ExecuteWithOptions(context.Background(), name, args, ExecuteOptions{Force: true})
}

func TestExecuteUnknownTool(t *testing.T) {
	registry, _ := newTestRegistry(t)
	result := registry.Execute(context.Background(), "does_not_exist", nil)
	if result.Error == nil {
		t.Fatal("expected error for unknown tool")
	}
	if !errors.Is(result.Error, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got: %v", result.Error)
	}
	if !strings.Contains(result.Result, "unknown tool") {
		t.Fatalf("expected result to mention unknown tool, got: %s", result.Result)
	}
	if !strings.Contains(result.Result, "read_file") {
		t.Fatalf("expected result to list available tools, got: %s", result.Result)
	}
}

func TestExecuteReadOnlyToolAllowedByDefault(t *testing.T) {
	registry, _ := newTestRegistry(t)
	result := registry.Execute(context.Background(), "get_current_datetime", nil)
	if result.Error != nil {
		t.Fatalf("expected no error, got: %v", result.Error)
	}
	if _, err := time.Parse(time.RFC3339, result.Result); err != nil {
		t.Fatalf("expected RFC3339 timestamp, got %q: %v", result.Result, err)
	}
}

func TestExecuteMutatingToolRequiresConfirmation(t *testing.T) {
	registry, _ := newTestRegistry(t)
	result := registry.Execute(context.Background(), "write_file", map[string]interface{}{
		"path":    "a.txt",
		"content": "hello",
	})
	if !errors.Is(result.Error, ErrToolRequiresConfirmation) {
		t.Fatalf("expected confirmation requirement, got: %v", result.Error)
	}
}

func TestExecuteForceBypassesConfirmation(t *testing.T) {
	registry, ws := newTestRegistry(t)
	result := execForce(registry, "write_file", map[string]interface{}{
		"path":    "a.txt",
		"content": "hello",
	})
	if result.Error != nil {
		t.Fatalf("expected no error, got: %v", result.Error)
	}
	if _, err := os.Stat(filepath.Join(ws.Root(), "a.txt")); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}
}

func TestExecuteBlockedTool(t *testing.T) {
	ws := newTestWorkspace(t)
	registry := NewRegistryWithPolicy(ws, PolicyFromLists([]string{"read_file"}, nil))

	result := registry.Execute(context.Background(), "list_directory", nil)
	if !errors.Is(result.Error, ErrToolNotAllowed) {
		t.Fatalf("expected policy block, got: %v", result.Error)
	}
}

func TestExecuteMissingRequiredArgument(t *testing.T) {
	registry, _ := newTestRegistry(t)
	result := registry.Execute(context.Background(), "read_file", map[string]interface{}{})
	if !errors.Is(result.Error, ErrInvalidArguments) {
		t.Fatalf("expected invalid arguments, got: %v", result.Error)
	}
	if !strings.Contains(result.Result, "path") {
		t.Fatalf("expected result to name the missing argument, got: %s", result.Result)
	}
}

func TestExecuteNeverPanics(t *testing.T) {
	registry, _ := newTestRegistry(t)
	if err := registry.RegisterTool(&ToolDefinition{
		NameValue:        "explode",
		DescriptionValue: "always panics",
		ExecuteFunc: func(ctx context.Context, args map[string]interface{}) (string, error) {
			panic("boom")
		},
	}); err != nil {
		t.Fatalf("failed to register tool: %v", err)
	}
	registry.AllowTool("explode", false)

	result := registry.Execute(context.Background(), "explode", nil)
	if result.Error == nil {
		t.Fatal("expected error result from panicking tool")
	}
	if !strings.Contains(result.Error.Error(), "panicked") {
		t.Fatalf("expected panic to be reported, got: %v", result.Error)
	}
}

func TestExecuteOpenAIToolCall(t *testing.T) {
	registry, _ := newTestRegistry(t)
	call := openai.ToolCall{
		ID:   "call-1",
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      "list_directory",
			Arguments: `{"path": "."}`,
		},
	}

	result := registry.ExecuteOpenAIToolCall(context.Background(), call)
	if result.Error != nil {
		t.Fatalf("expected no error, got: %v", result.Error)
	}
}

func TestExecuteOpenAIToolCallInvalidArgs(t *testing.T) {
	registry, _ := newTestRegistry(t)
	call := openai.ToolCall{
		ID:   "call-1",
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      "list_directory",
			Arguments: `{"path": `, // invalid JSON
		},
	}
	result := registry.ExecuteOpenAIToolCall(context.Background(), call)
	if !errors.Is(result.Error, ErrInvalidArguments) {
		t.Fatalf("expected invalid arguments error, got: %v", result.Error)
	}
}

func TestExecuteOpenAIToolCallMissingName(t *testing.T) {
	registry, _ := newTestRegistry(t)
	result := registry.ExecuteOpenAIToolCall(context.Background(), openai.ToolCall{ID: "call-1"})
	if result.Error == nil {
		t.Fatal("expected error for missing function name")
	}
	if result.Function != "unknown_tool" {
		t.Fatalf("expected placeholder function name, got %s", result.Function)
	}
}

func TestRegisterToolRejectsDuplicates(t *testing.T) {
	registry, _ := newTestRegistry(t)
	err := registry.RegisterTool(&ToolDefinition{NameValue: "read_file"})
	if err == nil {
		t.Fatal("expected error for duplicate tool name")
	}
}

func TestRegisterToolRejectsEmptyName(t *testing.T) {
	registry, _ := newTestRegistry(t)
	if err := registry.RegisterTool(&ToolDefinition{}); err == nil {
		t.Fatal("expected error for empty tool name")
	}
}

func TestGetToolNamesSorted(t *testing.T) {
	registry, _ := newTestRegistry(t)
	names := registry.GetToolNames()
	if len(names) == 0 {
		t.Fatal("expected registered tools")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("expected sorted names, got %v", names)
		}
	}
}

func TestOpenAIToolsDeterministic(t *testing.T) {
	registry, _ := newTestRegistry(t)
	first := registry.OpenAITools()
	second := registry.OpenAITools()
	if len(first) != len(second) {
		t.Fatal("expected stable tool list")
	}
	for i := range first {
		if first[i].Function.Name != second[i].Function.Name {
			t.Fatalf("tool order differs at %d: %s vs %s", i, first[i].Function.Name, second[i].Function.Name)
		}
		if first[i].Function.Parameters == nil {
			t.Fatalf("tool %s is missing a parameter schema", first[i].Function.Name)
		}
	}
}

func TestAuditLogRecordsDispatch(t *testing.T) {
	registry, _ := newTestRegistry(t)
	var buf bytes.Buffer
	registry.SetAuditLogger(zerolog.New(&buf))

	registry.Execute(context.Background(), "get_current_datetime", nil)
	registry.Execute(context.Background(), "no_such_tool", nil)

	log := buf.String()
	if !strings.Contains(log, `"tool":"get_current_datetime"`) {
		t.Fatalf("expected dispatch entry, got: %s", log)
	}
	if !strings.Contains(log, `"status":"ok"`) {
		t.Fatalf("expected ok status, got: %s", log)
	}
	if !strings.Contains(log, `"tool":"no_such_tool"`) || !strings.Contains(log, `"status":"error"`) {
		t.Fatalf("expected error entry for unknown tool, got: %s", log)
	}
}

func TestAccessDeniedProducesErrorResult(t *testing.T) {
	registry, _ := newTestRegistry(t)
	result := registry.Execute(context.Background(), "read_file", map[string]interface{}{
		"path": "../../etc/passwd",
	})
	if result.Error == nil {
		t.Fatal("expected access denied error result")
	}
	if apperrors.CodeOf(result.Error) != apperrors.CodeAccessDenied {
		t.Fatalf("expected access_denied code, got: %v", apperrors.CodeOf(result.Error))
	}
}

func TestPolicyFromListsMarksConfirmToolsAllowed(t *testing.T) {
	policy := PolicyFromLists([]string{"read_file"}, []string{"delete"})
	if !policy.Allowed["read_file"] || policy.RequireConfirmation["read_file"] {
		t.Fatal("read_file should be allowed without confirmation")
	}
	if !policy.Allowed["delete"] || !policy.RequireConfirmation["delete"] {
		t.Fatal("delete should be allowed with confirmation")
	}
}
