package llmprovider

import (
	"context"
	"errors"
	"testing"

	iriscore "github.com/petal-labs/iris/core"
)

// mockProvider implements iriscore.Provider for testing.
type mockProvider struct {
	id           string
	chatResponse *iriscore.ChatResponse
	chatError    error
	capturedReq  *iriscore.ChatRequest
}

func (m *mockProvider) ID() string { return m.id }

func (m *mockProvider) Chat(_ context.Context, req *iriscore.ChatRequest) (*iriscore.ChatResponse, error) {
	m.capturedReq = req
	if m.chatError != nil {
		return nil, m.chatError
	}
	return m.chatResponse, nil
}

func (m *mockProvider) StreamChat(context.Context, *iriscore.ChatRequest) (*iriscore.ChatStream, error) {
	return nil, nil
}

func (m *mockProvider) Models() []iriscore.ModelInfo {
	return []iriscore.ModelInfo{{ID: "mock-model"}}
}

func (m *mockProvider) Supports(f iriscore.Feature) bool {
	return f == iriscore.FeatureChat
}

var _ iriscore.Provider = (*mockProvider)(nil)

func TestChatBuildsRequest(t *testing.T) {
	mock := &mockProvider{
		id:           "ollama",
		chatResponse: &iriscore.ChatResponse{Output: "  hello there\n"},
	}
	c := &Client{provider: mock, model: "llama3.1:latest"}

	out, err := c.Chat(context.Background(), "you are terse", []Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hey"},
		{Role: "user", Content: "again"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != "hello there" {
		t.Fatalf("output = %q, want trimmed text", out)
	}

	req := mock.capturedReq
	if req.Model != iriscore.ModelID("llama3.1:latest") {
		t.Fatalf("model = %q", req.Model)
	}
	if len(req.Messages) != 4 {
		t.Fatalf("messages = %d, want 4 (system + 3 turns)", len(req.Messages))
	}
	if req.Messages[0].Role != iriscore.RoleSystem || req.Messages[0].Content != "you are terse" {
		t.Fatalf("first message = %+v, want system prompt", req.Messages[0])
	}
	if req.Messages[2].Role != iriscore.RoleAssistant {
		t.Fatalf("assistant turn role = %v", req.Messages[2].Role)
	}
}

func TestCompleteSendsSingleUserTurn(t *testing.T) {
	mock := &mockProvider{
		id:           "ollama",
		chatResponse: &iriscore.ChatResponse{Output: "plan"},
	}
	c := &Client{provider: mock, model: "llama3.1:latest"}

	out, err := c.Complete(context.Background(), "extract install commands")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "plan" {
		t.Fatalf("output = %q", out)
	}
	req := mock.capturedReq
	if len(req.Messages) != 1 || req.Messages[0].Role != iriscore.RoleUser {
		t.Fatalf("messages = %+v, want single user turn", req.Messages)
	}
}

func TestChatProviderError(t *testing.T) {
	mock := &mockProvider{id: "ollama", chatError: errors.New("connection refused")}
	c := &Client{provider: mock, model: "llama3.1:latest"}

	if _, err := c.Complete(context.Background(), "hi"); err == nil {
		t.Fatal("expected error from failing provider")
	}
}
