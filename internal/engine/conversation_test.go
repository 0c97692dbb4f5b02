package engine

import (
	"fmt"
	"strings"
	"testing"
)

func TestConversationRingBuffer(t *testing.T) {
	c := NewConversation(3)
	for i := 1; i <= 5; i++ {
		c.AddExchange(fmt.Sprintf("query %d", i), fmt.Sprintf("answer %d", i), nil)
	}
	history := c.History()
	if len(history) != 3 {
		t.Fatalf("history = %d, want 3", len(history))
	}
	for i, want := range []string{"query 3", "query 4", "query 5"} {
		if history[i].Query != want {
			t.Errorf("history[%d] = %q, want %q", i, history[i].Query, want)
		}
	}
	if c.QueryCount() != 5 {
		t.Errorf("query count = %d, want 5 (eviction does not reduce it)", c.QueryCount())
	}
}

func TestConversationEntityTracking(t *testing.T) {
	c := NewConversation(10)
	c.AddExchange("who called +15551234567?", "The number +15551234567 appears in Evidence #e7.", nil)
	c.AddExchange("more on +15551234567", "Nothing new.", nil)

	entities := c.TrackedEntities()
	var phone *TrackedEntity
	for i := range entities {
		if entities[i].Key == "phone:+15551234567" {
			phone = &entities[i]
		}
	}
	if phone == nil {
		t.Fatal("phone entity not tracked")
	}
	// Extraction dedupes within one exchange, so each exchange counts the
	// number once.
	if phone.Mentions != 2 {
		t.Errorf("mentions = %d, want 2", phone.Mentions)
	}

	found := false
	for _, e := range entities {
		if e.Key == "evidence:e7" {
			found = true
		}
	}
	if !found {
		t.Error("evidence reference not tracked")
	}
}

func TestConversationFactExtraction(t *testing.T) {
	c := NewConversation(10)
	c.AddExchange("q", "The number +15551234567 is the central hub of the network.", nil)
	facts := c.EstablishedFacts()
	if len(facts) != 1 {
		t.Fatalf("facts = %d, want 1", len(facts))
	}
	if !strings.Contains(facts[0], "central hub") {
		t.Errorf("fact = %q", facts[0])
	}

	// The same sentence again is not re-recorded.
	c.AddExchange("q2", "The number +15551234567 is the central hub of the network.", nil)
	if got := len(c.EstablishedFacts()); got != 1 {
		t.Errorf("facts after duplicate = %d, want 1", got)
	}
}

func TestConversationFactTrim(t *testing.T) {
	c := NewConversation(10)
	for i := 0; i < 60; i++ {
		c.AddExchange("q", fmt.Sprintf("The data shows a distinct pattern number %03d in the records.", i), nil)
	}
	facts := c.EstablishedFacts()
	if len(facts) > 50 {
		t.Fatalf("facts = %d, want at most 50 after trimming", len(facts))
	}
	if !strings.Contains(facts[len(facts)-1], "059") {
		t.Errorf("newest fact missing, last = %q", facts[len(facts)-1])
	}
	if strings.Contains(facts[0], "000") {
		t.Error("oldest fact should have been dropped")
	}
}

func TestConversationProactiveSummary(t *testing.T) {
	c := NewConversation(10)
	for i := 1; i <= 4; i++ {
		c.AddExchange("q", "a", nil)
		if i != 5 && c.ShouldOfferProactiveSummary() {
			t.Fatalf("fired at query %d", i)
		}
	}
	c.AddExchange("q", "a", nil)
	if !c.ShouldOfferProactiveSummary() {
		t.Error("should fire at the fifth query")
	}
}

func TestConversationRelevantEntities(t *testing.T) {
	c := NewConversation(10)
	c.AddExchange("numbers +15551234567 and +15559876543", "ok", nil)
	c.AddExchange("again +15551234567", "ok", nil)

	relevant := c.RelevantEntities("tell me about +15551234567")
	if len(relevant) != 1 {
		t.Fatalf("relevant = %d, want 1", len(relevant))
	}
	if relevant[0].Key != "phone:+15551234567" {
		t.Errorf("key = %q", relevant[0].Key)
	}
}

func TestConversationTokenEstimate(t *testing.T) {
	c := NewConversation(10)
	c.AddExchange(strings.Repeat("a", 400), strings.Repeat("b", 400), nil)
	if got := c.EstimateTokenCount(); got != 200 {
		t.Errorf("tokens = %d, want 200", got)
	}
	if c.ShouldSummarize() {
		t.Error("200 tokens should not trigger summarization")
	}
}
