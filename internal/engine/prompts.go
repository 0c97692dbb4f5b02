package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forensicflow/forensicflow/internal/evidence"
)

const (
	maxPromptEvidence   = 50
	maxPromptContentLen = 500
)

// formatEvidence renders at most 50 items as numbered evidence blocks for
// a reasoning prompt, with content clipped to 500 characters.
func formatEvidence(items []evidence.Item) string {
	var b strings.Builder
	shown := items
	if len(shown) > maxPromptEvidence {
		shown = shown[:maxPromptEvidence]
	}
	for _, it := range shown {
		content := it.Content
		if len(content) > maxPromptContentLen {
			content = content[:maxPromptContentLen] + "..."
		}
		fmt.Fprintf(&b, "Evidence #%s [%s]\n", it.ID, it.Type)
		fmt.Fprintf(&b, "  Source: %s", it.Source)
		if it.Device != "" {
			fmt.Fprintf(&b, " | Device: %s", it.Device)
		}
		if it.Timestamp != "" {
			fmt.Fprintf(&b, " | Time: %s", it.Timestamp)
		}
		b.WriteByte('\n')
		fmt.Fprintf(&b, "  Content: %s\n", content)
		if len(it.Entities) > 0 {
			keys := make([]string, 0, len(it.Entities))
			for _, e := range it.Entities {
				keys = append(keys, e.Type+":"+e.Value)
			}
			fmt.Fprintf(&b, "  Entities: %s\n", strings.Join(keys, ", "))
		}
		b.WriteByte('\n')
	}
	if len(items) > maxPromptEvidence {
		fmt.Fprintf(&b, "(%d additional evidence items omitted)\n", len(items)-maxPromptEvidence)
	}
	return b.String()
}

// buildQueryPrompt assembles the opening prompt of the agent loop: the
// analyst persona, the case evidence snapshot, retained conversation
// context, and the investigator's question.
func buildQueryPrompt(caseID, query string, items []evidence.Item, conv *Conversation) string {
	var b strings.Builder
	b.WriteString("You are a forensic analyst assistant helping an investigator explore digital evidence.\n")
	fmt.Fprintf(&b, "Case: %s. The case holds %d evidence items; a sample follows.\n\n", caseID, len(items))
	b.WriteString(formatEvidence(items))

	if conv != nil {
		if history := conv.HistoryForPrompt(); history != "" {
			b.WriteString("\nConversation so far:\n")
			b.WriteString(history)
		}
		if facts := conv.EstablishedFacts(); len(facts) > 0 {
			b.WriteString("\nEstablished facts from earlier analysis:\n")
			for _, f := range facts {
				fmt.Fprintf(&b, "- %s\n", f)
			}
		}
	}

	b.WriteString("\nAnswer the investigator's question. Call tools when a visualization, search or deeper analysis would help; otherwise answer directly. Cite evidence as 'Evidence #<id>'.\n\n")
	fmt.Fprintf(&b, "Investigator: %s\n", query)
	return b.String()
}

// buildSynthesisPrompt assembles the closing prompt: the question plus the
// outcome of every executed tool, asking for a consolidated answer.
func buildSynthesisPrompt(query string, results []ToolResult) string {
	var b strings.Builder
	b.WriteString("You are a forensic analyst assistant. You ran analysis tools for the investigator's question; synthesize the results into one clear answer.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\nTool results:\n", query)
	for _, res := range results {
		fmt.Fprintf(&b, "- %s (success=%v): %s\n", res.ToolName, res.Success, res.UserMessage)
		if res.Success && res.Data != nil {
			if raw, err := json.Marshal(res.Data); err == nil {
				payload := string(raw)
				if len(payload) > 2000 {
					payload = payload[:2000] + "..."
				}
				fmt.Fprintf(&b, "  data: %s\n", payload)
			}
		}
	}
	b.WriteString("\nWrite the answer in markdown. Cite evidence as 'Evidence #<id>'. Do not mention the tools themselves.\n")
	return b.String()
}

// buildHypothesisPrompt asks the provider to judge a hypothesis against
// the evidence and report a verdict with a confidence percentage.
func buildHypothesisPrompt(hypothesis string, items []evidence.Item) string {
	var b strings.Builder
	b.WriteString("You are a forensic analyst assistant. Evaluate the investigator's hypothesis strictly against the evidence below.\n\n")
	b.WriteString(formatEvidence(items))
	fmt.Fprintf(&b, "\nHypothesis: %s\n\n", hypothesis)
	b.WriteString("State whether the hypothesis is LIKELY, UNLIKELY or INCONCLUSIVE given the evidence, give a confidence percentage, cite supporting evidence as 'Evidence #<id>', and explain your reasoning briefly.\n")
	return b.String()
}
