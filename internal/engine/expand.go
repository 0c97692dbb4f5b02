package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const expandTimeout = 10 * time.Second

// ExpandQuery broadens a query into search terms. With a provider, the
// generated related terms are merged with the extracted keywords; without
// one, or on any failure, the keywords stand alone.
func (e *Engine) ExpandQuery(ctx context.Context, query string) []string {
	keywords := ExtractKeywords(query)
	if e.provider == nil {
		return keywords
	}

	expandCtx, cancel := context.WithTimeout(ctx, expandTimeout)
	defer cancel()
	prompt := fmt.Sprintf(
		"List 15 to 25 search terms related to this forensic investigation query, as a single comma-separated line with no other text. Include synonyms, slang and abbreviations investigators would encounter.\n\nQuery: %s",
		query)
	reply, err := e.provider.Generate(expandCtx, prompt, nil)
	if err != nil {
		e.logger.Printf("[ENGINE] query expansion failed: %v", err)
		return keywords
	}

	seen := make(map[string]struct{}, len(keywords))
	merged := make([]string, 0, len(keywords))
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if len(term) <= 2 {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		merged = append(merged, term)
	}
	for _, k := range keywords {
		add(k)
	}
	for _, term := range strings.Split(strings.ReplaceAll(reply.Text, "\n", ","), ",") {
		add(term)
	}
	return merged
}

const maxTitleLen = 60

// SuggestTitle names a chat session after its first query. The provider
// gets one shot; otherwise the query itself is truncated.
func (e *Engine) SuggestTitle(ctx context.Context, query string) string {
	if e.provider != nil {
		titleCtx, cancel := context.WithTimeout(ctx, expandTimeout)
		defer cancel()
		prompt := fmt.Sprintf(
			"Give a short title (at most six words, no quotes) for an investigation chat that starts with this question. Reply with the title only.\n\nQuestion: %s",
			query)
		reply, err := e.provider.Generate(titleCtx, prompt, nil)
		if err == nil {
			title := strings.TrimSpace(strings.Trim(strings.TrimSpace(reply.Text), `"`))
			if title != "" && len(title) <= maxTitleLen {
				return title
			}
		} else {
			e.logger.Printf("[ENGINE] title generation failed: %v", err)
		}
	}
	title := strings.TrimSpace(query)
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen] + "..."
	}
	return title
}
