package generator

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/seanblong/testgen/internal/ai"
	"github.com/seanblong/testgen/internal/prompt"
	"github.com/seanblong/testgen/internal/store"
	"github.com/seanblong/testgen/pkg/models"
)

// MockAIClient implements the ai.Client interface for testing
type MockAIClient struct {
	SendChatFunc func(ctx context.Context, messages []ai.Message, model string) ([]byte, error)
	provider     ai.Provider
	model        string
	calls        [][]ai.Message
}

func (m *MockAIClient) SendChat(ctx context.Context, messages []ai.Message, model string) ([]byte, error) {
	m.calls = append(m.calls, messages)
	if m.SendChatFunc != nil {
		return m.SendChatFunc(ctx, messages, model)
	}
	return []byte(`{"choices":[{"message":{"content":"ok"}}]}`), nil
}

func (m *MockAIClient) ExtractText(raw []byte) string { return ai.Normalize(m.Provider(), raw) }

func (m *MockAIClient) Provider() ai.Provider {
	if m.provider == "" {
		return ai.ProviderOpenRouter
	}
	return m.provider
}

func (m *MockAIClient) DefaultModel() string {
	if m.model == "" {
		return "openrouter/auto"
	}
	return m.model
}

func replying(body string) func(context.Context, []ai.Message, string) ([]byte, error) {
	return func(context.Context, []ai.Message, string) ([]byte, error) { return []byte(body), nil }
}

// MockHistory implements store.HistoryStore for testing
type MockHistory struct {
	records   []models.Generation
	recordErr error
}

func (m *MockHistory) Migrate(context.Context) error { return nil }

func (m *MockHistory) Record(_ context.Context, g models.Generation) (models.Generation, error) {
	if m.recordErr != nil {
		return models.Generation{}, m.recordErr
	}
	m.records = append(m.records, g)
	return g, nil
}

func (m *MockHistory) Recent(context.Context, int) ([]models.Generation, error) {
	return m.records, nil
}

func TestSummarize(t *testing.T) {
	client := &MockAIClient{SendChatFunc: replying(`{"choices":[{"message":{"content":"[{\"id\":1,\"summary\":\"test f with no args\"}]"}}]}`)}
	history := &MockHistory{}
	svc := NewService(client, history)

	got, err := svc.Summarize(context.Background(), []models.FileContent{{Path: "a.py", Content: "def f(): pass"}}, "pytest")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	want := []models.TestSummary{{ID: 1, Summary: "test f with no args"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}

	if len(client.calls) != 1 || len(client.calls[0]) != 2 {
		t.Fatalf("Expected one call with two messages, got %+v", client.calls)
	}
	msgs := client.calls[0]
	if msgs[0].Role != ai.RoleSystem || msgs[0].Content != prompt.SummarySystem {
		t.Errorf("Unexpected system message %+v", msgs[0])
	}
	if msgs[1].Role != ai.RoleUser || !strings.Contains(msgs[1].Content, "--- File: a.py ---") {
		t.Errorf("Unexpected user message %+v", msgs[1])
	}

	if len(history.records) != 1 || history.records[0].Kind != store.KindSummaries || history.records[0].Provider != "openrouter" {
		t.Errorf("Expected one summaries record, got %+v", history.records)
	}
}

func TestSummarizeEmptyAnswerYieldsNoSummaries(t *testing.T) {
	client := &MockAIClient{provider: ai.ProviderGemini, SendChatFunc: replying(`{"candidates":[]}`)}
	svc := NewService(client, nil)

	got, err := svc.Summarize(context.Background(), []models.FileContent{{Path: "a.py"}}, "")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Expected empty summaries, got %#v", got)
	}
	if !strings.Contains(client.calls[0][1].Content, "PYTEST") {
		t.Error("Empty framework should default to pytest")
	}
}

func TestSummarizeUnparseableAnswer(t *testing.T) {
	client := &MockAIClient{SendChatFunc: replying(`{"choices":[{"message":{"content":"Sorry, I cannot help."}}]}`)}
	got, err := NewService(client, nil).Summarize(context.Background(), []models.FileContent{{Path: "a.py"}}, "pytest")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if len(got) != 1 || got[0].Summary != ai.ParseFailureSummary {
		t.Errorf("Expected parse-failure sentinel, got %+v", got)
	}
}

func TestSummarizePropagatesTransportError(t *testing.T) {
	client := &MockAIClient{SendChatFunc: func(context.Context, []ai.Message, string) ([]byte, error) {
		return nil, &ai.HTTPError{StatusCode: 502, Body: "upstream"}
	}}
	history := &MockHistory{}

	_, err := NewService(client, history).Summarize(context.Background(), []models.FileContent{{Path: "a.py"}}, "pytest")
	var httpErr *ai.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected *ai.HTTPError, got %v", err)
	}
	if len(history.records) != 0 {
		t.Error("Failed generations must not be recorded")
	}
}

func TestHistoryFailureDoesNotFailGeneration(t *testing.T) {
	client := &MockAIClient{SendChatFunc: replying(`{"choices":[{"message":{"content":"def test_x(): pass"}}]}`)}
	svc := NewService(client, &MockHistory{recordErr: errors.New("db down")})

	code, err := svc.GenerateCode(context.Background(), models.FileContent{Path: "x.py"}, "x works", "pytest")
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	if code != "def test_x(): pass" {
		t.Errorf("Unexpected code %q", code)
	}
}

func TestGenerateCode(t *testing.T) {
	client := &MockAIClient{SendChatFunc: replying(`{"choices":[{"message":{"content":"CODE"}}]}`)}
	history := &MockHistory{}

	code, err := NewService(client, history).GenerateCode(context.Background(),
		models.FileContent{Path: "login.py", Content: "def login(): ..."}, "login succeeds", "selenium")
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	if code != "CODE" {
		t.Errorf("Expected CODE, got %q", code)
	}
	msgs := client.calls[0]
	if msgs[0].Content != prompt.CodeSystem {
		t.Errorf("Unexpected system message %q", msgs[0].Content)
	}
	if !strings.Contains(msgs[1].Content, "WebDriverWait") {
		t.Error("Expected selenium instructions in prompt")
	}
	if history.records[0].Kind != store.KindCode || history.records[0].Framework != "selenium" {
		t.Errorf("Unexpected record %+v", history.records[0])
	}
}

func TestGenerateTest(t *testing.T) {
	client := &MockAIClient{SendChatFunc: replying(`{"choices":[{"message":{"content":"def test_add(): assert add(1, 2) == 3"}}]}`)}

	code, err := NewService(client, nil).GenerateTest(context.Background(), "maths.py", "def add(a, b): return a + b", "adds two ints")
	if err != nil {
		t.Fatalf("GenerateTest failed: %v", err)
	}
	if !strings.HasPrefix(code, "def test_add") {
		t.Errorf("Unexpected code %q", code)
	}
	if client.calls[0][0].Content != prompt.ScenarioSystem {
		t.Error("Expected scenario system message")
	}
}

func TestTestConnection(t *testing.T) {
	tests := []struct {
		name      string
		provider  ai.Provider
		body      string
		wantModel string
		wantOut   string
	}{
		{"openrouter reports model", ai.ProviderOpenRouter, `{"model":"openai/gpt-4o","choices":[{"message":{"content":"pong"}}]}`, "openai/gpt-4o", "pong"},
		{"openrouter falls back to default", ai.ProviderOpenRouter, `{"choices":[{"message":{"content":"pong"}}]}`, "default-model", "pong"},
		{"gemini uses configured model", ai.ProviderGemini, `{"candidates":[{"content":{"parts":[{"text":"pong"}]}}]}`, "default-model", "pong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &MockAIClient{provider: tt.provider, model: "default-model", SendChatFunc: replying(tt.body)}
			res, err := NewService(client, nil).TestConnection(context.Background())
			if err != nil {
				t.Fatalf("TestConnection failed: %v", err)
			}
			if res.Model != tt.wantModel || res.Output != tt.wantOut {
				t.Errorf("TestConnection() = %+v", res)
			}
			if client.calls[0][1].Content != "Reply with the word: pong" {
				t.Errorf("Unexpected ping message %q", client.calls[0][1].Content)
			}
		})
	}
}

func TestTestConnectionError(t *testing.T) {
	client := &MockAIClient{SendChatFunc: func(context.Context, []ai.Message, string) ([]byte, error) {
		return nil, errors.New("dial tcp: timeout")
	}}
	if _, err := NewService(client, nil).TestConnection(context.Background()); err == nil {
		t.Error("Expected error")
	}
}

func TestFrameworks(t *testing.T) {
	fws := Frameworks()
	if len(fws) != 6 {
		t.Fatalf("Expected 6 frameworks, got %d", len(fws))
	}
	if fws[0].Name != "pytest" || fws[1].Name != "selenium" {
		t.Errorf("Unexpected ordering: %+v", fws[:2])
	}
}

func TestWithStubClientEndToEnd(t *testing.T) {
	svc := NewService(ai.NewStubClient(""), store.Nop{})
	got, err := svc.Summarize(context.Background(), []models.FileContent{{Path: "a.py", Content: "def f(): pass"}}, "pytest")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if len(got) != 3 || got[0].ID != 1 {
		t.Errorf("Unexpected stub summaries %+v", got)
	}
}
