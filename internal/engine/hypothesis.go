package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/forensicflow/forensicflow/internal/evidence"
)

// Hypothesis verdicts.
const (
	VerdictLikely       = "likely"
	VerdictUnlikely     = "unlikely"
	VerdictInconclusive = "inconclusive"
)

// HypothesisResult is the outcome of testing one hypothesis against a
// case's evidence.
type HypothesisResult struct {
	Hypothesis         string        `json:"hypothesis"`
	Verdict            string        `json:"verdict"`
	Confidence         float64       `json:"confidence"`
	Reasoning          string        `json:"reasoning"`
	SupportingEvidence []EvidenceRef `json:"supporting_evidence"`
	Mode               string        `json:"mode"`
}

var confidencePercentRe = regexp.MustCompile(`(\d{1,3})\s?%`)

// TestHypothesis evaluates a hypothesis against the evidence. With a
// provider, the verdict and confidence are parsed from the generated
// reasoning; without one, or on any provider failure, keyword overlap
// stands in. It never returns an error.
func (e *Engine) TestHypothesis(ctx context.Context, hypothesis string, items []evidence.Item) HypothesisResult {
	supporting := supportingItems(hypothesis, items)

	if e.provider != nil {
		synthCtx, cancel := context.WithTimeout(ctx, e.opts.SynthesisTimeout)
		defer cancel()
		reply, err := e.provider.Generate(synthCtx, buildHypothesisPrompt(hypothesis, items), nil)
		if err == nil && strings.TrimSpace(reply.Text) != "" {
			verdict, confidence := parseVerdict(reply.Text)
			return HypothesisResult{
				Hypothesis:         hypothesis,
				Verdict:            verdict,
				Confidence:         confidence,
				Reasoning:          strings.TrimSpace(reply.Text),
				SupportingEvidence: evidenceRefs(supporting, 10),
				Mode:               ModeSynthesized,
			}
		}
		if err != nil {
			e.logger.Printf("[ENGINE] hypothesis call failed: %v", err)
		}
	}

	confidence := 0.0
	if len(items) > 0 {
		confidence = float64(len(supporting)) / float64(len(items))
	}
	if confidence > 0.9 {
		confidence = 0.9
	}
	return HypothesisResult{
		Hypothesis: hypothesis,
		Verdict:    verdictFromConfidence(confidence),
		Confidence: confidence,
		Reasoning: fmt.Sprintf("%d of %d evidence items mention terms from the hypothesis. This is a keyword overlap estimate, not a reasoned judgment.",
			len(supporting), len(items)),
		SupportingEvidence: evidenceRefs(supporting, 10),
		Mode:               ModeFallback,
	}
}

// supportingItems returns the items whose content or source contains any
// keyword from the hypothesis.
func supportingItems(hypothesis string, items []evidence.Item) []evidence.Item {
	terms := ExtractKeywords(hypothesis)
	var out []evidence.Item
	for _, it := range items {
		content := strings.ToLower(it.Content)
		source := strings.ToLower(it.Source)
		for _, term := range terms {
			if strings.Contains(content, term) || strings.Contains(source, term) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// parseVerdict reads the verdict word and any "NN%" confidence out of
// generated reasoning text.
func parseVerdict(text string) (string, float64) {
	lower := strings.ToLower(text)
	verdict := VerdictInconclusive
	// "unlikely" contains "likely", so check it first.
	switch {
	case strings.Contains(lower, "unlikely"):
		verdict = VerdictUnlikely
	case strings.Contains(lower, "likely"):
		verdict = VerdictLikely
	}

	confidence := 0.5
	if m := confidencePercentRe.FindStringSubmatch(text); m != nil {
		if pct, err := strconv.Atoi(m[1]); err == nil && pct <= 100 {
			confidence = float64(pct) / 100
		}
	}
	return verdict, confidence
}

func verdictFromConfidence(confidence float64) string {
	switch {
	case confidence > 0.6:
		return VerdictLikely
	case confidence < 0.3:
		return VerdictUnlikely
	default:
		return VerdictInconclusive
	}
}

func evidenceRefs(items []evidence.Item, limit int) []EvidenceRef {
	if len(items) > limit {
		items = items[:limit]
	}
	refs := make([]EvidenceRef, 0, len(items))
	for _, it := range items {
		content := it.Content
		if len(content) > 200 {
			content = content[:200]
		}
		refs = append(refs, EvidenceRef{
			ID: it.ID, Source: it.Source, Timestamp: it.Timestamp, Type: it.Type, Content: content,
		})
	}
	return refs
}
