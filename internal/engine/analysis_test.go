package engine

import (
	"testing"
	"time"

	"github.com/forensicflow/forensicflow/internal/evidence"
)

func TestAnalyzeCaseFlags(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	items := []evidence.Item{
		{
			ID: "e1", Type: "message", Source: "WhatsApp", Content: "wallet",
			Timestamp: base.Format(time.RFC3339),
			Entities: []evidence.Entity{
				{Type: evidence.EntityCrypto, Value: "0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef", Confidence: 1},
			},
		},
		{
			ID: "e2", Type: "location", Source: "GPS", Content: "fix",
			Timestamp: base.Add(time.Hour).Format(time.RFC3339),
			Metadata:  map[string]interface{}{"latitude": 12.9, "longitude": 77.6},
		},
		{
			ID: "e3", Type: "call", Source: "Call Log", Content: "call",
			Timestamp: base.Add(100 * time.Hour).Format(time.RFC3339),
			Entities: []evidence.Entity{
				{Type: evidence.EntityPhone, Value: "+15551234567", Confidence: 1},
				{Type: evidence.EntityPhone, Value: "+15559876543", Confidence: 1},
				{Type: evidence.EntityPhone, Value: "+447700900123", Confidence: 1},
			},
		},
	}

	analysis := AnalyzeCase(items)
	if analysis.EvidenceCount != 3 {
		t.Fatalf("evidence count = %d", analysis.EvidenceCount)
	}

	titles := make(map[string]Finding)
	for _, f := range analysis.Flags {
		titles[f.Title] = f
		if f.Type != FindingCaseFlag {
			t.Errorf("flag %q has type %q", f.Title, f.Type)
		}
	}
	for _, want := range []string{"Cryptocurrency activity", "GPS location trail", "Foreign phone numbers", "Silent periods"} {
		if _, ok := titles[want]; !ok {
			t.Errorf("missing flag %q", want)
		}
	}
	if f := titles["Foreign phone numbers"]; f.Metadata["dominant_code"] != "+1" {
		t.Errorf("dominant code = %v", f.Metadata["dominant_code"])
	}
}

func TestAnalyzeCaseClean(t *testing.T) {
	items := []evidence.Item{
		testItem("e1", "lunch at noon", "SMS", ""),
		testItem("e2", "see you tomorrow", "SMS", ""),
	}
	analysis := AnalyzeCase(items)
	if len(analysis.Flags) != 0 {
		t.Errorf("flags = %+v, want none for mundane evidence", analysis.Flags)
	}
}

func TestCountryCode(t *testing.T) {
	cases := map[string]string{
		"+15551234567":  "+1",
		"+447700900123": "+44",
		"+917000000000": "+91",
		"5551234567":    "",
		"+":             "",
	}
	for in, want := range cases {
		if got := countryCode(in); got != want {
			t.Errorf("countryCode(%q) = %q, want %q", in, got, want)
		}
	}
}
