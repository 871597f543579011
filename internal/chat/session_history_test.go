package chat

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestSaveConversationHistory(t *testing.T) {
	historyFile := filepath.Join(t.TempDir(), "history.jsonl")

	session := newTestSession(t, &MockChatClient{})
	session.AddMessage(openai.ChatMessageRoleUser, "Hello")
	session.AddMessage(openai.ChatMessageRoleAssistant, "Hi there!")

	if err := session.SaveConversationHistory(historyFile); err != nil {
		t.Fatalf("SaveConversationHistory failed: %v", err)
	}

	content, err := os.ReadFile(historyFile)
	if err != nil {
		t.Fatalf("failed to read history file: %v", err)
	}
	if len(content) == 0 {
		t.Fatal("history file is empty")
	}
}

func TestSaveConversationHistoryAppends(t *testing.T) {
	historyFile := filepath.Join(t.TempDir(), "history.jsonl")

	session := newTestSession(t, &MockChatClient{})
	session.AddMessage(openai.ChatMessageRoleUser, "Message 1")

	if err := session.SaveConversationHistory(historyFile); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	session.AddMessage(openai.ChatMessageRoleAssistant, "Response 1")

	// Second save must append only the new message
	if err := session.SaveConversationHistory(historyFile); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	messages := readHistoryFile(t, historyFile)
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Content != "Message 1" || messages[1].Content != "Response 1" {
		t.Fatalf("unexpected messages: %+v", messages)
	}
}

func TestSaveConversationHistoryNothingNew(t *testing.T) {
	historyFile := filepath.Join(t.TempDir(), "history.jsonl")

	session := newTestSession(t, &MockChatClient{})
	session.AddMessage(openai.ChatMessageRoleUser, "once")

	if err := session.SaveConversationHistory(historyFile); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := session.SaveConversationHistory(historyFile); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	if got := len(readHistoryFile(t, historyFile)); got != 1 {
		t.Fatalf("expected 1 message after redundant save, got %d", got)
	}
}

func TestLoadConversationHistory(t *testing.T) {
	historyFile := filepath.Join(t.TempDir(), "history.jsonl")

	saved := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "old question"},
		{Role: openai.ChatMessageRoleAssistant, Content: "old answer"},
	}
	writeHistoryFile(t, historyFile, saved)

	session := newTestSession(t, &MockChatClient{})
	if err := session.LoadConversationHistory(historyFile, 100); err != nil {
		t.Fatalf("LoadConversationHistory failed: %v", err)
	}

	history := session.GetHistory()
	if len(history) != 2 {
		t.Fatalf("expected 2 loaded messages, got %d", len(history))
	}
	if history[0].Content != "old question" {
		t.Fatalf("unexpected first message: %q", history[0].Content)
	}
}

func TestLoadConversationHistoryCapsMessages(t *testing.T) {
	historyFile := filepath.Join(t.TempDir(), "history.jsonl")

	var saved []openai.ChatCompletionMessage
	for i := 0; i < 10; i++ {
		saved = append(saved, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: string(rune('a' + i)),
		})
	}
	writeHistoryFile(t, historyFile, saved)

	session := newTestSession(t, &MockChatClient{})
	if err := session.LoadConversationHistory(historyFile, 3); err != nil {
		t.Fatalf("LoadConversationHistory failed: %v", err)
	}

	history := session.GetHistory()
	if len(history) != 3 {
		t.Fatalf("expected 3 messages after cap, got %d", len(history))
	}
	// The most recent messages win
	if history[0].Content != "h" {
		t.Fatalf("expected oldest kept message 'h', got %q", history[0].Content)
	}
}

func TestLoadConversationHistoryMissingFile(t *testing.T) {
	session := newTestSession(t, &MockChatClient{})
	missing := filepath.Join(t.TempDir(), "nope.jsonl")
	if err := session.LoadConversationHistory(missing, 100); err != nil {
		t.Fatalf("missing history file should not error: %v", err)
	}
	if len(session.GetHistory()) != 0 {
		t.Fatal("expected empty history")
	}
}

func writeHistoryFile(t *testing.T, path string, messages []openai.ChatCompletionMessage) {
	t.Helper()
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create history file: %v", err)
	}
	defer file.Close()
	encoder := json.NewEncoder(file)
	for _, msg := range messages {
		if err := encoder.Encode(msg); err != nil {
			t.Fatalf("failed to encode message: %v", err)
		}
	}
}

func readHistoryFile(t *testing.T, path string) []openai.ChatCompletionMessage {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open history file: %v", err)
	}
	defer file.Close()

	var messages []openai.ChatCompletionMessage
	decoder := json.NewDecoder(file)
	for {
		var msg openai.ChatCompletionMessage
		if err := decoder.Decode(&msg); err != nil {
			break
		}
		messages = append(messages, msg)
	}
	return messages
}
