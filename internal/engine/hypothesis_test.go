package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/forensicflow/forensicflow/internal/evidence"
)

func TestTestHypothesisFallback(t *testing.T) {
	e := New(nil, nil, nil, Options{})
	items := []evidence.Item{
		testItem("e1", "bitcoin transfer to the wallet", "WhatsApp", ""),
		testItem("e2", "bitcoin payment confirmed", "WhatsApp", ""),
		testItem("e3", "lunch at noon", "SMS", ""),
	}
	result := e.TestHypothesis(context.Background(), "the suspect moved bitcoin", items)
	if result.Mode != ModeFallback {
		t.Fatalf("mode = %q", result.Mode)
	}
	// 2 of 3 items mention hypothesis terms.
	if result.Verdict != VerdictLikely {
		t.Errorf("verdict = %q, want likely at 0.67", result.Verdict)
	}
	if len(result.SupportingEvidence) != 2 {
		t.Errorf("supporting = %d", len(result.SupportingEvidence))
	}
}

func TestTestHypothesisFallbackUnlikely(t *testing.T) {
	e := New(nil, nil, nil, Options{})
	items := []evidence.Item{
		testItem("e1", "lunch at noon", "SMS", ""),
		testItem("e2", "see you tomorrow", "SMS", ""),
		testItem("e3", "running late", "SMS", ""),
		testItem("e4", "ok", "SMS", ""),
	}
	result := e.TestHypothesis(context.Background(), "the suspect moved bitcoin", items)
	if result.Verdict != VerdictUnlikely {
		t.Errorf("verdict = %q, want unlikely with no support", result.Verdict)
	}
	if result.Confidence != 0 {
		t.Errorf("confidence = %v", result.Confidence)
	}
}

func TestTestHypothesisProviderVerdict(t *testing.T) {
	p := &scriptedProvider{replies: []Reply{
		{Text: "The hypothesis is LIKELY given Evidence #e1, confidence around 80%."},
	}}
	e := New(p, nil, nil, Options{})
	items := []evidence.Item{testItem("e1", "bitcoin transfer", "WhatsApp", "")}
	result := e.TestHypothesis(context.Background(), "bitcoin was moved", items)
	if result.Mode != ModeSynthesized {
		t.Fatalf("mode = %q", result.Mode)
	}
	if result.Verdict != VerdictLikely {
		t.Errorf("verdict = %q", result.Verdict)
	}
	if result.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8 parsed from the text", result.Confidence)
	}
}

func TestTestHypothesisProviderErrorFallsBack(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("down")}}
	e := New(p, nil, nil, Options{})
	items := []evidence.Item{testItem("e1", "bitcoin transfer", "WhatsApp", "")}
	result := e.TestHypothesis(context.Background(), "bitcoin was moved", items)
	if result.Mode != ModeFallback {
		t.Fatalf("mode = %q, want fallback", result.Mode)
	}
}

func TestParseVerdict(t *testing.T) {
	cases := []struct {
		text       string
		verdict    string
		confidence float64
	}{
		{"This is unlikely, maybe 20% confidence.", VerdictUnlikely, 0.2},
		{"Quite likely overall. Confidence: 75%", VerdictLikely, 0.75},
		{"The evidence is mixed.", VerdictInconclusive, 0.5},
	}
	for _, tc := range cases {
		verdict, confidence := parseVerdict(tc.text)
		if verdict != tc.verdict || confidence != tc.confidence {
			t.Errorf("parseVerdict(%q) = (%q, %v), want (%q, %v)", tc.text, verdict, confidence, tc.verdict, tc.confidence)
		}
	}
}
