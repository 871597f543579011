package chat

import (
	"testing"

	"github.com/sashabaranov/go-openai"
	"workbench/internal/tools"
)

// TestAddToolResultMessage verifies tool result messages are added correctly
func TestAddToolResultMessage(t *testing.T) {
	session := newTestSession(t, &MockChatClient{})

	toolCall := openai.ToolCall{
		ID:   "call-123",
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      "read_file",
			Arguments: `{"path": "a.txt"}`,
		},
	}

	result := &tools.ToolResult{
		Function: "read_file",
		Result:   "tool result content",
		Error:    nil,
	}

	// Initial state: should have 1 system message
	if len(session.Messages) != 1 {
		t.Fatalf("expected 1 system message, got %d", len(session.Messages))
	}

	session.AddToolResultMessage(toolCall, result)

	if len(session.Messages) != 2 {
		t.Fatalf("expected 2 messages after adding tool result, got %d", len(session.Messages))
	}

	toolMsg := session.Messages[1]
	if toolMsg.Role != openai.ChatMessageRoleTool {
		t.Errorf("expected role 'tool', got %s", toolMsg.Role)
	}
	if toolMsg.ToolCallID != "call-123" {
		t.Errorf("expected tool_call_id 'call-123', got %s", toolMsg.ToolCallID)
	}
	if toolMsg.Name != "read_file" {
		t.Errorf("expected name 'read_file', got %s", toolMsg.Name)
	}
	if toolMsg.Content != "tool result content" {
		t.Errorf("unexpected content %q", toolMsg.Content)
	}
}

// TestAddToolResultMessageWithError verifies error results become plain text
func TestAddToolResultMessageWithError(t *testing.T) {
	session := newTestSession(t, &MockChatClient{})

	toolCall := openai.ToolCall{
		ID:   "call-456",
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      "failing_tool",
			Arguments: `{}`,
		},
	}

	result := &tools.ToolResult{
		Function: "failing_tool",
		Error:    tools.ErrToolNotAllowed,
	}

	session.AddToolResultMessage(toolCall, result)

	toolMsg := session.Messages[1]
	if toolMsg.Role != openai.ChatMessageRoleTool {
		t.Errorf("expected role 'tool', got %s", toolMsg.Role)
	}
	// Content should include error information
	if toolMsg.Content == "" {
		t.Error("expected non-empty content for error result")
	}
}

// TestAddToolResultMessageMissingName falls back to a placeholder name
func TestAddToolResultMessageMissingName(t *testing.T) {
	session := newTestSession(t, &MockChatClient{})

	session.AddToolResultMessage(openai.ToolCall{ID: "call-0"}, &tools.ToolResult{
		Function: "unknown_tool",
		Result:   "Error: tool call missing function name",
	})

	toolMsg := session.Messages[1]
	if toolMsg.Name != "unknown_tool" {
		t.Errorf("expected placeholder name, got %s", toolMsg.Name)
	}
}

// TestToolCallMessageSequence verifies the correct message sequence
func TestToolCallMessageSequence(t *testing.T) {
	session := newTestSession(t, &MockChatClient{})

	session.AddMessage(openai.ChatMessageRoleUser, "What time is it?")

	toolCalls := []openai.ToolCall{
		{
			ID:   "call-789",
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      "get_current_datetime",
				Arguments: `{}`,
			},
		},
	}
	session.AddAssistantMessage("", toolCalls)

	result := &tools.ToolResult{
		Function: "get_current_datetime",
		Result:   "2025-12-12T00:00:00Z",
	}
	session.AddToolResultMessage(toolCalls[0], result)

	// system, user, assistant, tool
	if len(session.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(session.Messages))
	}

	if session.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("message 0: expected system, got %s", session.Messages[0].Role)
	}
	if session.Messages[1].Role != openai.ChatMessageRoleUser {
		t.Errorf("message 1: expected user, got %s", session.Messages[1].Role)
	}
	if session.Messages[2].Role != openai.ChatMessageRoleAssistant {
		t.Errorf("message 2: expected assistant, got %s", session.Messages[2].Role)
	}
	if session.Messages[3].Role != openai.ChatMessageRoleTool {
		t.Errorf("message 3: expected tool, got %s", session.Messages[3].Role)
	}

	if len(session.Messages[2].ToolCalls) != 1 {
		t.Errorf("expected 1 tool call in assistant message, got %d", len(session.Messages[2].ToolCalls))
	}
	if session.Messages[3].ToolCallID != "call-789" {
		t.Errorf("tool message should reference call-789, got %s", session.Messages[3].ToolCallID)
	}
}

// TestMultipleToolCalls verifies handling of multiple tool calls in one turn
func TestMultipleToolCalls(t *testing.T) {
	client := ScriptedClient(
		toolCallResponse(
			openai.ToolCall{
				ID:   "call-1",
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      "list_directory",
					Arguments: `{"path": "."}`,
				},
			},
			openai.ToolCall{
				ID:   "call-2",
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      "get_current_datetime",
					Arguments: `{}`,
				},
			},
		),
		textResponse("done"),
	)
	session := newTestSession(t, client)

	if _, err := session.GetResponse("show me files and current time"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// system, user, assistant, tool1, tool2, assistant
	if len(session.Messages) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(session.Messages))
	}
	if session.Messages[3].ToolCallID != "call-1" {
		t.Errorf("expected tool message 3 to reference call-1, got %s", session.Messages[3].ToolCallID)
	}
	if session.Messages[4].ToolCallID != "call-2" {
		t.Errorf("expected tool message 4 to reference call-2, got %s", session.Messages[4].ToolCallID)
	}
}

// TestToolResultsInHistory verifies tool results appear in history
func TestToolResultsInHistory(t *testing.T) {
	session := newTestSession(t, &MockChatClient{})

	session.AddMessage(openai.ChatMessageRoleUser, "test")
	call := openai.ToolCall{
		ID:   "call-x",
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      "read_file",
			Arguments: `{"path":"a.txt"}`,
		},
	}
	session.AddAssistantMessage("", []openai.ToolCall{call})
	session.AddToolResultMessage(call, &tools.ToolResult{
		Function: "read_file",
		Result:   "result",
	})

	history := session.GetHistory()
	if len(history) != 3 {
		t.Fatalf("expected 3 messages in history, got %d", len(history))
	}

	foundToolMessage := false
	for _, msg := range history {
		if msg.Role == openai.ChatMessageRoleTool {
			foundToolMessage = true
			break
		}
	}
	if !foundToolMessage {
		t.Error("tool result message not found in history")
	}
}
