package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/forensicflow/forensicflow/internal/evidence"
)

func stampedItem(id, content string, ts time.Time) evidence.Item {
	return evidence.Item{
		ID:        id,
		Type:      evidence.TypeMessage,
		Content:   content,
		Source:    "SMS",
		Timestamp: ts.Format(time.RFC3339),
	}
}

func TestSignatureFindingsRequireTwoUniqueMatches(t *testing.T) {
	// One unique email repeated is not enough.
	one := []evidence.Item{
		testItem("e1", "contact alice@example.com", "SMS", ""),
		testItem("e2", "again alice@example.com", "SMS", ""),
	}
	for _, f := range signatureFindings(one) {
		if f.Metadata["pattern"] == "email_address" {
			t.Fatal("single unique email should not produce a finding")
		}
	}

	two := []evidence.Item{
		testItem("e1", "contact alice@example.com", "SMS", ""),
		testItem("e2", "cc bob@example.com", "SMS", ""),
	}
	for _, f := range signatureFindings(two) {
		if f.Metadata["pattern"] == "email_address" {
			if f.Type != FindingRegex {
				t.Errorf("type = %q, want %q", f.Type, FindingRegex)
			}
			if want := 0.6 + 0.05*2; f.Confidence != want {
				t.Errorf("confidence = %v, want %v", f.Confidence, want)
			}
			return
		}
	}
	t.Fatal("two unique emails produced no finding")
}

func TestSignatureConfidenceCap(t *testing.T) {
	var items []evidence.Item
	for i := 0; i < 10; i++ {
		items = append(items, testItem(fmt.Sprintf("e%d", i), fmt.Sprintf("user%d@example.com", i), "SMS", ""))
	}
	for _, f := range signatureFindings(items) {
		if f.Metadata["pattern"] == "email_address" {
			if f.Confidence != 0.9 {
				t.Errorf("confidence = %v, want capped at 0.9", f.Confidence)
			}
			return
		}
	}
	t.Fatal("no email finding")
}

func TestFrequencyFindings(t *testing.T) {
	freq := phoneEntity("+15551234567")
	rare := phoneEntity("+15559999999")
	items := []evidence.Item{
		testItem("e1", "a", "SMS", "", freq, rare),
		testItem("e2", "b", "SMS", "", freq),
		testItem("e3", "c", "SMS", "", freq),
	}
	findings := frequencyFindings(items)
	if len(findings) != 1 {
		t.Fatalf("findings = %d, want 1 (threshold is 3 items)", len(findings))
	}
	f := findings[0]
	if f.Metadata["entity"] != "phone:+15551234567" {
		t.Errorf("entity = %v", f.Metadata["entity"])
	}
	if want := 0.5 + 0.1*3; f.Confidence != want {
		t.Errorf("confidence = %v, want %v", f.Confidence, want)
	}
}

func TestFrequencyDedupesWithinItem(t *testing.T) {
	dup := phoneEntity("+15551234567")
	items := []evidence.Item{
		testItem("e1", "a", "SMS", "", dup, dup, dup),
		testItem("e2", "b", "SMS", "", dup),
	}
	if findings := frequencyFindings(items); len(findings) != 0 {
		t.Fatalf("duplicate mentions within one item must count once, got %d findings", len(findings))
	}
}

func TestTemporalSpike(t *testing.T) {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	var items []evidence.Item
	// Six items in one hour, six spread over six other hours: mean ~1.7,
	// spike 6 > 2x mean.
	for i := 0; i < 6; i++ {
		items = append(items, stampedItem(fmt.Sprintf("s%d", i), "x", base.Add(time.Duration(i)*time.Minute)))
	}
	for i := 0; i < 6; i++ {
		items = append(items, stampedItem(fmt.Sprintf("q%d", i), "x", base.Add(time.Duration(i+2)*time.Hour)))
	}
	f, ok := temporalSpike(items)
	if !ok {
		t.Fatal("expected a spike finding")
	}
	if f.Type != FindingTemporal {
		t.Errorf("type = %q", f.Type)
	}
	if f.Metadata["count"] != 6 {
		t.Errorf("count = %v, want 6", f.Metadata["count"])
	}
}

func TestTemporalSpikeNeedsSamples(t *testing.T) {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	var items []evidence.Item
	for i := 0; i < 10; i++ {
		items = append(items, stampedItem(fmt.Sprintf("e%d", i), "x", base))
	}
	// Exactly 10 parseable timestamps is not over the threshold.
	if _, ok := temporalSpike(items); ok {
		t.Fatal("ten samples should not trigger the spike pass")
	}
}

func TestDetectAnomaliesLateNight(t *testing.T) {
	night := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	var items []evidence.Item
	for i := 0; i < 4; i++ {
		items = append(items, stampedItem(fmt.Sprintf("n%d", i), "x", night.Add(time.Duration(i)*time.Minute)))
	}
	findings := DetectAnomalies(items)
	if len(findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(findings))
	}
	if findings[0].Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7", findings[0].Confidence)
	}

	// Exactly three late-night items is under the threshold.
	if got := DetectAnomalies(items[:3]); len(got) != 0 {
		t.Errorf("three items should not trigger, got %d findings", len(got))
	}
}

func TestDetectPatternsCapsFindings(t *testing.T) {
	var items []evidence.Item
	for i := 0; i < 20; i++ {
		content := fmt.Sprintf("meet user%d@example.com pay $%d00 from +1555%07d at 10.0.0.%d", i, i+1, i, i+1)
		it := testItem(fmt.Sprintf("e%d", i), content, "SMS", "")
		it.Entities = evidence.ExtractEntities(content)
		items = append(items, it)
	}
	if findings := DetectPatterns(items); len(findings) > 8 {
		t.Errorf("findings = %d, want at most 8", len(findings))
	}
}
