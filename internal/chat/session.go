// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/sashabaranov/go-openai"
	"workbench/internal/config"
	"workbench/internal/tools"
	"workbench/internal/workspace"
	systemprompt "workbench/system_prompt"
)

// maxToolTurns bounds the number of model round trips a single user turn may
// trigger before the loop gives up, so a tool-calling model cannot spin
// forever.
const maxToolTurns = 25

// Session holds the conversation state: the append-only message history, the
// tool registry confined to one workspace, and the provider client.
//
// Thread-safety: message operations are protected by an internal mutex. The
// loop itself is single-threaded with one in-flight provider request, but a
// multi-session server built on top gets per-session isolation for free.
type Session struct {
	Client       ChatClient
	Config       *config.Config
	Messages     []openai.ChatCompletionMessage
	ToolRegistry *tools.Registry

	// ToolApprover, when set, is asked before a confirmation-gated tool runs.
	// When nil, such calls fail with an error result the model can see.
	ToolApprover ToolApprovalFunc

	mu                sync.Mutex
	lastSavedMsgCount int // messages already persisted (protected by mu)
}

var defaultSystemPrompt = mustLoadSystemPrompt()

func mustLoadSystemPrompt() string {
	prompt, err := systemprompt.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load system prompt: %v", err))
	}
	return prompt
}

// NewSession creates a chat session with a real OpenAI-compatible client.
func NewSession(cfg *config.Config, ws *workspace.Workspace) *Session {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIURL != "" {
		clientConfig.BaseURL = cfg.APIURL
		clientConfig.HTTPClient = &http.Client{}
	}

	client := openai.NewClientWithConfig(clientConfig)
	return NewSessionWithClient(cfg, ws, client)
}

// NewSessionWithClient creates a chat session with a provided client (for testing).
func NewSessionWithClient(cfg *config.Config, ws *workspace.Workspace, client ChatClient) *Session {
	registry := tools.NewRegistryWithPolicy(ws, cfg.ToolPolicy())

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: fmt.Sprintf("%s\n\nWorkspace root: %s", defaultSystemPrompt, ws.Root()),
		},
	}

	return &Session{
		Client:       client,
		Config:       cfg,
		Messages:     messages,
		ToolRegistry: registry,
	}
}

// AddMessage adds a message to the conversation history.
func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, openai.ChatCompletionMessage{
		Role:    role,
		Content: content,
	})
}

// AddAssistantMessage adds an assistant message with optional tool calls.
func (s *Session) AddAssistantMessage(content string, toolCalls []openai.ToolCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, openai.ChatCompletionMessage{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
	})
}

// AddToolResultMessage appends a tool result message. Results are never
// mutated after this point; errors become plain text the model can react to.
func (s *Session) AddToolResultMessage(call openai.ToolCall, result *tools.ToolResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content := result.Result
	if result.Error != nil && content == "" {
		content = fmt.Sprintf("Error: %v", result.Error)
	}

	name := call.Function.Name
	if name == "" {
		name = "unknown_tool"
	}
	s.Messages = append(s.Messages, openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Content:    content,
		Name:       name,
		ToolCallID: call.ID,
	})
}

// MessagesSnapshot returns a copy of the current messages.
func (s *Session) MessagesSnapshot() []openai.ChatCompletionMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]openai.ChatCompletionMessage, len(s.Messages))
	copy(msgs, s.Messages)
	return msgs
}

// GetResponseWithContext runs one user turn: it appends the prompt, then
// alternates between the model and tool dispatch until the model produces a
// plain-text reply. Tool calls are dispatched sequentially in the order
// received; each result is appended before the next request, so the model
// sees tool outputs before its next reply.
func (s *Session) GetResponseWithContext(ctx context.Context, prompt string) (string, error) {
	s.AddMessage(openai.ChatMessageRoleUser, prompt)

	for turn := 0; turn < maxToolTurns; turn++ {
		req := openai.ChatCompletionRequest{
			Model:    s.Config.Model,
			Messages: s.MessagesSnapshot(),
			Tools:    s.ToolRegistry.OpenAITools(),
		}

		if s.Config.Temperature != nil {
			req.Temperature = *s.Config.Temperature
		}
		if s.Config.MaxTokens != nil {
			req.MaxTokens = *s.Config.MaxTokens
		}

		resp, err := s.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", &APIError{Operation: "create_completion", Err: err}
		}
		if len(resp.Choices) == 0 {
			return "", &APIError{Operation: "create_completion", Err: fmt.Errorf("response contains no choices")}
		}

		response := resp.Choices[0].Message
		s.AddAssistantMessage(response.Content, response.ToolCalls)

		if len(response.ToolCalls) == 0 {
			return response.Content, nil
		}

		for _, toolCall := range response.ToolCalls {
			result := s.dispatchToolCall(ctx, toolCall)
			s.AddToolResultMessage(toolCall, result)
		}
	}

	return "", &APIError{Operation: "tool_loop", Err: fmt.Errorf("exceeded %d tool turns without a text reply", maxToolTurns)}
}

// GetResponse runs one user turn with a background context.
func (s *Session) GetResponse(prompt string) (string, error) {
	return s.GetResponseWithContext(context.Background(), prompt)
}

// dispatchToolCall executes a tool call, handling the confirmation handshake:
// when the registry reports that approval is required, the ToolApprover is
// consulted and the call re-executed with policy checks bypassed.
func (s *Session) dispatchToolCall(ctx context.Context, call openai.ToolCall) *tools.ToolResult {
	result := s.ToolRegistry.ExecuteOpenAIToolCall(ctx, call)
	if result.Error == nil || !errors.Is(result.Error, tools.ErrToolRequiresConfirmation) {
		return result
	}

	if s.ToolApprover == nil {
		return result
	}

	approved, err := s.ToolApprover(call)
	if err != nil {
		return &tools.ToolResult{
			Function: call.Function.Name,
			Result:   fmt.Sprintf("Error: approval failed: %v", err),
			Error:    err,
		}
	}
	if !approved {
		return &tools.ToolResult{
			Function: call.Function.Name,
			Result:   "Tool execution denied by user.",
			Error:    fmt.Errorf("%w: %s", tools.ErrToolDeniedByUser, call.Function.Name),
		}
	}

	return s.ToolRegistry.ExecuteOpenAIToolCallWithOptions(ctx, call, tools.ExecuteOptions{Force: true})
}

// ClearHistory clears the conversation history, keeping the system message.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	systemMsg := s.Messages[0]
	s.Messages = []openai.ChatCompletionMessage{systemMsg}
	s.lastSavedMsgCount = 0
}

// GetHistory returns the conversation history excluding the system message.
func (s *Session) GetHistory() []openai.ChatCompletionMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Messages) <= 1 {
		return []openai.ChatCompletionMessage{}
	}
	history := make([]openai.ChatCompletionMessage, len(s.Messages)-1)
	copy(history, s.Messages[1:])
	return history
}

// SaveConversationHistory appends new messages to the history file as JSONL.
func (s *Session) SaveConversationHistory(filepath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.Messages[1:]
	if len(history) <= s.lastSavedMsgCount {
		return nil // Nothing new to save
	}

	file, err := os.OpenFile(filepath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &HistoryError{Operation: "open", Filepath: filepath, Err: err}
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	for i := s.lastSavedMsgCount; i < len(history); i++ {
		if err := encoder.Encode(history[i]); err != nil {
			return &HistoryError{Operation: "encode", Filepath: filepath, Err: err}
		}
	}

	s.lastSavedMsgCount = len(history)
	return nil
}

// LoadConversationHistory loads conversation history from a file, keeping at
// most maxMessages of the most recent entries.
func (s *Session) LoadConversationHistory(filepath string, maxMessages int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No history file is okay
		}
		return &HistoryError{Operation: "open", Filepath: filepath, Err: err}
	}
	defer file.Close()

	var messages []openai.ChatCompletionMessage
	decoder := json.NewDecoder(file)
	for {
		var msg openai.ChatCompletionMessage
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return &HistoryError{Operation: "decode", Filepath: filepath, Err: err}
		}
		messages = append(messages, msg)
	}

	if maxMessages > 0 && len(messages) > maxMessages {
		messages = messages[len(messages)-maxMessages:]
	}

	s.Messages = append(s.Messages, messages...)
	s.lastSavedMsgCount = len(messages)

	return nil
}

// Close is a no-op for compatibility but may be used for cleanup in the future.
func (s *Session) Close() error {
	return nil
}
