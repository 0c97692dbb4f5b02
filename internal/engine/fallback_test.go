package engine

import (
	"reflect"
	"strings"
	"testing"

	"github.com/forensicflow/forensicflow/internal/evidence"
)

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords("Show me all the crypto transactions from Bob")
	want := []string{"crypto", "transactions", "bob"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("keywords = %v, want %v", got, want)
	}
}

func TestFallbackQueryNoMatches(t *testing.T) {
	items := []evidence.Item{testItem("e1", "nothing relevant here", "SMS", "")}
	summary, confidence := FallbackQuery("zebra sightings", items)
	if confidence != 0.3 {
		t.Fatalf("confidence = %v, want exactly 0.3", confidence)
	}
	if !strings.Contains(summary, "**Found:** **0 relevant evidence items**") {
		t.Errorf("summary missing no-match banner:\n%s", summary)
	}
}

func TestFallbackQueryMatches(t *testing.T) {
	items := []evidence.Item{
		testItem("e1", "bitcoin transfer confirmed", "WhatsApp", ""),
		testItem("e2", "lunch plans", "SMS", ""),
	}
	summary, confidence := FallbackQuery("bitcoin activity", items)
	// 1 of 2 relevant: 0.5 + 0.5 = 1.0, capped at 0.85.
	if confidence != 0.85 {
		t.Errorf("confidence = %v, want capped 0.85", confidence)
	}
	if !strings.Contains(summary, "**1 relevant evidence items**") {
		t.Errorf("summary:\n%s", summary)
	}
	if !strings.Contains(summary, "(Evidence #e1)") {
		t.Error("summary does not cite the matching item")
	}
}

func TestScoreConfidence(t *testing.T) {
	items := []evidence.Item{testItem("e1", "x", "SMS", "")}
	if got := ScoreConfidence("short", items); got != 0.7 {
		t.Errorf("base = %v, want 0.7", got)
	}
	long := strings.Repeat("a", 201)
	if got := ScoreConfidence(long, items); got != 0.8 {
		t.Errorf("long = %v, want 0.8", got)
	}
	cited := "Evidence #e1 shows " + long
	if got := ScoreConfidence(cited, items); got != 0.9 {
		t.Errorf("cited = %v, want 0.9", got)
	}

	var many []evidence.Item
	for i := 0; i < 5; i++ {
		many = append(many, testItem("e1", "x", "SMS", ""))
	}
	full := "Evidence #e1 reveals a clear pattern " + long
	if got := ScoreConfidence(full, many); got != 0.95 {
		t.Errorf("full = %v, want 0.95", got)
	}
}

func TestIsAmbiguous(t *testing.T) {
	if !IsAmbiguous("tell me more", 100) {
		t.Error("vague phrase over a large case should be ambiguous")
	}
	if IsAmbiguous("tell me more", 5) {
		t.Error("small cases do not need clarification")
	}
	if !IsAmbiguous("what happened", 60) {
		t.Error("short query over a large case should be ambiguous")
	}
	if IsAmbiguous("show me all bitcoin transfers from March", 60) {
		t.Error("specific queries are not ambiguous")
	}
}

func TestSuggestFollowups(t *testing.T) {
	items := []evidence.Item{
		{ID: "e1", Timestamp: "2024-03-01T10:00:00Z", Entities: []evidence.Entity{
			{Type: evidence.EntityPhone, Value: "+15551234567", Confidence: 1},
			{Type: evidence.EntityCrypto, Value: "0x" + strings.Repeat("a", 40), Confidence: 1},
		}},
		{ID: "e2", Timestamp: "2024-03-02T10:00:00Z"},
		{ID: "e3", Timestamp: "2024-03-03T10:00:00Z"},
		{ID: "e4", Timestamp: "2024-03-04T10:00:00Z"},
	}
	got := SuggestFollowups(items)
	if len(got) == 0 || len(got) > 5 {
		t.Fatalf("suggestions = %v", got)
	}
	if got[0] != "Who else communicated with +15551234567?" {
		t.Errorf("first = %q", got[0])
	}
	found := false
	for _, s := range got {
		if s == "Show me a timeline of these events" {
			found = true
		}
	}
	if !found {
		t.Error("timestamped set over three items should suggest a timeline")
	}
}

func TestSuggestFollowupsGeneric(t *testing.T) {
	got := SuggestFollowups([]evidence.Item{{ID: "e1"}})
	if len(got) != 2 {
		t.Fatalf("generic suggestions = %v", got)
	}
}

func TestChooseVisualizationTimeline(t *testing.T) {
	items := []evidence.Item{
		{ID: "e1", Timestamp: "2024-03-02T10:00:00Z", Content: "b", Source: "SMS"},
		{ID: "e2", Timestamp: "2024-03-01T10:00:00Z", Content: "a", Source: "SMS"},
	}
	comp := ChooseVisualization("show me a timeline of events", items, 100)
	if comp == nil || comp.Type != ComponentTimeline {
		t.Fatalf("component = %+v", comp)
	}
	events := comp.Data.([]TimelineEvent)
	if events[0].ID != "e2" {
		t.Errorf("events not sorted: %+v", events)
	}
}

func TestChooseVisualizationMap(t *testing.T) {
	items := []evidence.Item{
		{ID: "e1", Type: "location", Metadata: map[string]interface{}{"latitude": 12.9, "longitude": 77.6}},
	}
	comp := ChooseVisualization("where did they go", items, 100)
	if comp == nil || comp.Type != ComponentMap {
		t.Fatalf("component = %+v", comp)
	}
}

func TestChooseVisualizationChat(t *testing.T) {
	items := []evidence.Item{
		{ID: "e1", Type: "message", Source: "Alice", Content: "hi"},
		{ID: "e2", Type: "message", Source: "Sent by me", Content: "hello"},
	}
	comp := ChooseVisualization("show the conversation", items, 100)
	if comp == nil || comp.Type != ComponentChatBubbles {
		t.Fatalf("component = %+v", comp)
	}
	// Mixed types fall through to no visualization.
	mixed := append(items, evidence.Item{ID: "e3", Type: "call", Source: "Log"})
	if got := ChooseVisualization("show the conversation", mixed, 100); got != nil {
		t.Errorf("mixed types produced %+v", got)
	}
}

func TestChooseVisualizationNetwork(t *testing.T) {
	items := []evidence.Item{
		testItem("e1", "chat", "WhatsApp", "", phoneEntity("+15551234567"), phoneEntity("+15559876543")),
		testItem("e2", "chat", "WhatsApp", "", phoneEntity("+15551234567")),
	}
	comp := ChooseVisualization("what connections exist between these numbers", items, 100)
	if comp == nil || comp.Type != ComponentNetwork {
		t.Fatalf("component = %+v", comp)
	}
	if ChooseVisualization("plain question", items, 100) != nil {
		t.Error("no keyword should mean no visualization")
	}
}
