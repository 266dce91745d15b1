package generator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seanblong/testgen/internal/ai"
	"github.com/seanblong/testgen/pkg/models"
)

// concurrentClient is a goroutine-safe ai.Client that tracks how many calls
// are in flight.
type concurrentClient struct {
	mu       sync.Mutex
	inFlight int32
	maxSeen  int32
	reply    func(messages []ai.Message) ([]byte, error)
}

func (c *concurrentClient) SendChat(ctx context.Context, messages []ai.Message, model string) ([]byte, error) {
	n := atomic.AddInt32(&c.inFlight, 1)
	defer atomic.AddInt32(&c.inFlight, -1)
	c.mu.Lock()
	if n > c.maxSeen {
		c.maxSeen = n
	}
	c.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	return c.reply(messages)
}

func (c *concurrentClient) ExtractText(raw []byte) string { return ai.Normalize(ai.ProviderOpenRouter, raw) }
func (c *concurrentClient) Provider() ai.Provider         { return ai.ProviderOpenRouter }
func (c *concurrentClient) DefaultModel() string          { return "m" }

func isSummaryPrompt(messages []ai.Message) bool {
	return strings.Contains(messages[len(messages)-1].Content, "test case summaries")
}

func TestBatch(t *testing.T) {
	client := &concurrentClient{reply: func(messages []ai.Message) ([]byte, error) {
		if isSummaryPrompt(messages) {
			return []byte(`{"choices":[{"message":{"content":"[{\"id\":1,\"summary\":\"one\"},{\"id\":2,\"summary\":\"two\"}]"}}]}`), nil
		}
		return []byte(`{"choices":[{"message":{"content":"def test_x(): pass"}}]}`), nil
	}}
	files := []models.FileContent{{Path: "a.py"}, {Path: "b.py"}, {Path: "c.py"}}

	results := NewService(client, nil).Batch(context.Background(), files, BatchOptions{Generate: true, Concurrency: 2})

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Path != files[i].Path {
			t.Errorf("Expected result %d for %s, got %s", i, files[i].Path, r.Path)
		}
		if len(r.Summaries) != 2 || len(r.Tests) != 2 {
			t.Fatalf("Expected 2 summaries and 2 tests for %s, got %+v", r.Path, r)
		}
		if r.Tests[1].ID != 2 || r.Tests[1].Summary != "two" || r.Tests[1].Code != "def test_x(): pass" {
			t.Errorf("Unexpected test %+v", r.Tests[1])
		}
	}
	if client.maxSeen > 2 {
		t.Errorf("Expected at most 2 concurrent calls, saw %d", client.maxSeen)
	}
	if Failed(results) {
		t.Error("Expected no failures")
	}
}

func TestBatchSummariesOnly(t *testing.T) {
	client := &concurrentClient{reply: func(messages []ai.Message) ([]byte, error) {
		if !isSummaryPrompt(messages) {
			t.Error("Code should not be generated without Generate")
		}
		return []byte(`{"choices":[{"message":{"content":"[{\"id\":1,\"summary\":\"one\"}]"}}]}`), nil
	}}

	results := NewService(client, nil).Batch(context.Background(), []models.FileContent{{Path: "a.py"}}, BatchOptions{})
	if len(results[0].Summaries) != 1 || results[0].Tests != nil {
		t.Errorf("Unexpected result %+v", results[0])
	}
}

func TestBatchReportsFailures(t *testing.T) {
	client := &concurrentClient{reply: func(messages []ai.Message) ([]byte, error) {
		last := messages[len(messages)-1].Content
		switch {
		case isSummaryPrompt(messages) && strings.Contains(last, "--- File: bad.py ---"):
			return nil, errors.New("rate limited")
		case isSummaryPrompt(messages):
			return []byte(`{"choices":[{"message":{"content":"[{\"id\":1,\"summary\":\"one\"}]"}}]}`), nil
		default:
			return nil, errors.New("timeout")
		}
	}}

	results := NewService(client, nil).Batch(context.Background(),
		[]models.FileContent{{Path: "good.py"}, {Path: "bad.py"}}, BatchOptions{Generate: true})

	if results[1].Error != "rate limited" || results[1].Tests != nil {
		t.Errorf("Expected summarization error for bad.py, got %+v", results[1])
	}
	if len(results[0].Tests) != 1 || results[0].Tests[0].Error != "timeout" {
		t.Errorf("Expected code generation error for good.py, got %+v", results[0])
	}
	if !Failed(results) {
		t.Error("Expected Failed to report failures")
	}
}

func TestFailed(t *testing.T) {
	if Failed(nil) {
		t.Error("Empty results cannot fail")
	}
	if !Failed([]FileResult{{Tests: []GeneratedTest{{Error: "x"}}}}) {
		t.Error("Expected test error to count as failure")
	}
}
