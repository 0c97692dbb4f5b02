package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/forensicflow/forensicflow/internal/evidence"
)

// scriptedProvider replays a fixed sequence of replies.
type scriptedProvider struct {
	replies []Reply
	errs    []error
	calls   int
	prompts []string
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, tools []ToolSchema) (Reply, error) {
	i := p.calls
	p.calls++
	p.prompts = append(p.prompts, prompt)
	if i < len(p.errs) && p.errs[i] != nil {
		return Reply{}, p.errs[i]
	}
	if i < len(p.replies) {
		return p.replies[i], nil
	}
	return Reply{}, errors.New("no scripted reply")
}

// memoryCache is an in-process Cache for tests.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]QueryResult
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]QueryResult)}
}

func (c *memoryCache) Get(ctx context.Context, key string) (QueryResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[key]
	return r, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, result QueryResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = result
	return nil
}

func TestProcessQueryFallbackWithoutProvider(t *testing.T) {
	e := New(nil, nil, nil, Options{})
	items := []evidence.Item{testItem("e1", "bitcoin transfer", "WhatsApp", "")}
	result := e.ProcessQuery(context.Background(), "case-1", "bitcoin payments", items, nil)
	if result.Mode != ModeFallback {
		t.Fatalf("mode = %q, want fallback", result.Mode)
	}
	if result.Confidence < 0.3 || result.Confidence > 0.95 {
		t.Errorf("confidence = %v out of bounds", result.Confidence)
	}
	if len(result.Suggestions) == 0 {
		t.Error("no followup suggestions")
	}
}

func TestProcessQueryDirectAnswer(t *testing.T) {
	p := &scriptedProvider{replies: []Reply{{Text: "Evidence #e1 shows a single transfer."}}}
	e := New(p, nil, nil, Options{})
	items := []evidence.Item{testItem("e1", "bitcoin transfer", "WhatsApp", "")}
	result := e.ProcessQuery(context.Background(), "case-1", "what happened with the transfer", items, nil)
	if result.Mode != ModeDirect {
		t.Fatalf("mode = %q, want direct", result.Mode)
	}
	if result.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.7 base plus 0.1 citation", result.Confidence)
	}
	if p.calls != 1 {
		t.Errorf("provider calls = %d, want 1", p.calls)
	}
}

func TestProcessQuerySynthesized(t *testing.T) {
	p := &scriptedProvider{replies: []Reply{
		{ToolCalls: []ToolCall{{Name: ToolSearchEvidence, Args: map[string]interface{}{"query": "bitcoin"}}}},
		{Text: "One transfer found, see Evidence #e1."},
	}}
	e := New(p, nil, nil, Options{})
	items := []evidence.Item{testItem("e1", "bitcoin transfer", "WhatsApp", "")}
	result := e.ProcessQuery(context.Background(), "case-1", "find bitcoin transfers", items, nil)
	if result.Mode != ModeSynthesized {
		t.Fatalf("mode = %q, want synthesized", result.Mode)
	}
	if result.Confidence != 0.9 {
		t.Errorf("confidence = %v, want fixed 0.9", result.Confidence)
	}
	if len(result.ToolResults) != 1 || result.ToolResults[0].ToolName != ToolSearchEvidence {
		t.Errorf("tool results = %+v", result.ToolResults)
	}
	if !strings.Contains(p.prompts[1], "Tool results") {
		t.Error("synthesis prompt missing tool results")
	}
}

func TestProcessQueryProviderErrorFallsBack(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("upstream down")}}
	e := New(p, nil, nil, Options{})
	items := []evidence.Item{testItem("e1", "bitcoin transfer", "WhatsApp", "")}
	result := e.ProcessQuery(context.Background(), "case-1", "bitcoin payments", items, nil)
	if result.Mode != ModeFallback {
		t.Fatalf("mode = %q, want fallback after provider error", result.Mode)
	}
}

func TestProcessQueryToolCapAndSynthesisFailure(t *testing.T) {
	var calls []ToolCall
	for i := 0; i < 9; i++ {
		calls = append(calls, ToolCall{Name: ToolSearchEvidence, Args: map[string]interface{}{"query": "x"}})
	}
	p := &scriptedProvider{
		replies: []Reply{{ToolCalls: calls}},
		errs:    []error{nil, errors.New("synthesis down")},
	}
	e := New(p, nil, nil, Options{})
	items := []evidence.Item{testItem("e1", "x marks the spot", "SMS", "")}
	result := e.ProcessQuery(context.Background(), "case-1", "find x", items, nil)
	if result.Mode != ModeFallback {
		t.Fatalf("mode = %q, want fallback after synthesis failure", result.Mode)
	}
	if len(result.ToolResults) != 5 {
		t.Errorf("tool results = %d, want capped at 5", len(result.ToolResults))
	}
}

func TestProcessQueryClarification(t *testing.T) {
	e := New(nil, nil, nil, Options{})
	var items []evidence.Item
	for i := 0; i < 60; i++ {
		items = append(items, testItem("e", "x", "SMS", ""))
	}
	result := e.ProcessQuery(context.Background(), "case-1", "what happened", items, nil)
	if result.Mode != ModeClarification {
		t.Fatalf("mode = %q, want clarification", result.Mode)
	}
	if !strings.Contains(result.Summary, "60 evidence items") {
		t.Errorf("summary = %q", result.Summary)
	}
}

func TestProcessQueryCaching(t *testing.T) {
	cache := newMemoryCache()
	e := New(nil, cache, nil, Options{})
	items := []evidence.Item{testItem("e1", "bitcoin transfer", "WhatsApp", "")}

	first := e.ProcessQuery(context.Background(), "case-1", "bitcoin payments", items, nil)
	if first.Mode != ModeFallback {
		t.Fatalf("first mode = %q", first.Mode)
	}
	second := e.ProcessQuery(context.Background(), "case-1", "bitcoin payments", items, nil)
	if second.Mode != ModeCached {
		t.Fatalf("second mode = %q, want cached", second.Mode)
	}
	if second.Summary != first.Summary {
		t.Error("cached summary differs")
	}

	// A different evidence snapshot misses.
	more := append(items, testItem("e2", "new item", "SMS", ""))
	third := e.ProcessQuery(context.Background(), "case-1", "bitcoin payments", more, nil)
	if third.Mode == ModeCached {
		t.Error("changed snapshot must not hit the cache")
	}
}

func TestProcessQueryRecordsConversation(t *testing.T) {
	e := New(nil, nil, nil, Options{})
	conv := NewConversation(10)
	items := []evidence.Item{testItem("e1", "bitcoin transfer", "WhatsApp", "")}
	e.ProcessQuery(context.Background(), "case-1", "bitcoin payments", items, conv)
	if conv.QueryCount() != 1 {
		t.Fatalf("query count = %d", conv.QueryCount())
	}
	if len(conv.History()) != 1 {
		t.Fatalf("history = %d", len(conv.History()))
	}
}

func TestProcessQueryProactiveSuggestion(t *testing.T) {
	e := New(nil, nil, nil, Options{})
	conv := NewConversation(10)
	items := []evidence.Item{testItem("e1", "bitcoin transfer", "WhatsApp", "")}
	var last QueryResult
	for i := 0; i < 5; i++ {
		last = e.ProcessQuery(context.Background(), "case-1", "bitcoin payments", items, conv)
	}
	if !strings.Contains(last.Summary, "consolidated summary") {
		t.Errorf("fifth answer missing proactive suggestion:\n%s", last.Summary)
	}
}

func TestProcessQueryConfidenceBounds(t *testing.T) {
	providers := []ReasoningProvider{
		nil,
		&scriptedProvider{replies: []Reply{{Text: "short"}}},
		&scriptedProvider{replies: []Reply{
			{ToolCalls: []ToolCall{{Name: ToolSearchEvidence, Args: map[string]interface{}{"query": "x"}}}},
			{Text: "done"},
		}},
	}
	items := []evidence.Item{testItem("e1", "x", "SMS", "")}
	for i, p := range providers {
		e := New(p, nil, nil, Options{})
		result := e.ProcessQuery(context.Background(), "case-1", "find x now", items, nil)
		if result.Confidence < 0.3 || result.Confidence > 0.95 {
			t.Errorf("provider %d: confidence %v outside [0.3, 0.95]", i, result.Confidence)
		}
	}
}
