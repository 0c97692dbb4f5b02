package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/forensicflow/forensicflow/internal/evidence"
)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"from": {}, "show": {}, "me": {}, "list": {}, "all": {}, "find": {}, "any": {},
}

var wordRe = regexp.MustCompile(`\b\w+\b`)

// ExtractKeywords pulls search terms out of a query: lowercased words
// longer than two characters that are not stop words.
func ExtractKeywords(text string) []string {
	var out []string
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

// FallbackQuery answers a query without any reasoning provider: keyword
// overlap scoring against evidence content, a grouped markdown summary
// when anything matches, canned guidance (confidence exactly 0.3)
// otherwise. It never fails.
func FallbackQuery(query string, items []evidence.Item) (string, float64) {
	terms := ExtractKeywords(query)

	var relevant []evidence.Item
	for _, it := range items {
		content := strings.ToLower(it.Content)
		source := strings.ToLower(it.Source)
		for _, term := range terms {
			if strings.Contains(content, term) || strings.Contains(source, term) {
				relevant = append(relevant, it)
				break
			}
		}
	}

	if len(relevant) == 0 {
		return noMatchSummary(query), 0.3
	}
	summary := fallbackSummary(query, relevant)
	confidence := 0.5 + float64(len(relevant))/float64(len(items))
	if confidence > 0.85 {
		confidence = 0.85
	}
	return summary, confidence
}

func noMatchSummary(query string) string {
	return fmt.Sprintf(`## Analysis Results

**Query:** %s
**Found:** **0 relevant evidence items**

### No Direct Matches

No evidence items directly match your search terms. This could mean:

- The specific terms you searched for don't appear in the evidence
- Try using broader or alternative search terms
- The evidence might use different terminology

### Suggestions

1. **Try related terms** - use synonyms or broader categories
2. **Simplify your query** - use "crypto" instead of "cryptocurrency wallet addresses"
3. **Browse manually** - check the evidence list to see all available items
4. **Use different views** - try the timeline or network views for different perspectives
`, "`"+query+"`")
}

// fallbackSummary renders a grouped markdown summary of the matching
// items: counts by type, content excerpts with evidence-id citations,
// common entities, and recommended next steps.
func fallbackSummary(query string, relevant []evidence.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Analysis Results\n\n**Query:** `%s`\n**Found:** **%d relevant evidence items**\n\n", query, len(relevant))

	shown := relevant
	if len(shown) > 10 {
		shown = shown[:10]
	}
	byType := make(map[string][]evidence.Item)
	var typeOrder []string
	for _, it := range shown {
		if _, ok := byType[it.Type]; !ok {
			typeOrder = append(typeOrder, it.Type)
		}
		byType[it.Type] = append(byType[it.Type], it)
	}

	b.WriteString("### Evidence Summary\n\n")
	for _, itemType := range typeOrder {
		group := byType[itemType]
		fmt.Fprintf(&b, "#### %s evidence (%d items)\n", titleCase(itemType), len(group))
		for i, it := range group {
			if i >= 3 {
				break
			}
			content := it.Content
			ellipsis := ""
			if len(content) > 100 {
				content = content[:100]
				ellipsis = "..."
			}
			fmt.Fprintf(&b, "- **%s**: %s%s (Evidence #%s)\n", it.Source, content, ellipsis, it.ID)
		}
		b.WriteByte('\n')
	}
	if len(relevant) > 10 {
		fmt.Fprintf(&b, "> Showing top 10 results. %d additional items found.\n\n", len(relevant)-10)
	}

	entityValues := make(map[string][]string)
	var entityTypeOrder []string
	for _, it := range relevant {
		for _, e := range it.Entities {
			vals := entityValues[e.Type]
			if vals == nil {
				entityTypeOrder = append(entityTypeOrder, e.Type)
			}
			if len(vals) < 3 && !containsString(vals, e.Value) {
				entityValues[e.Type] = append(vals, e.Value)
			}
		}
	}
	if len(entityTypeOrder) > 0 {
		b.WriteString("### Key Entities Identified\n\n")
		for i, et := range entityTypeOrder {
			if i >= 5 {
				break
			}
			quoted := make([]string, 0, len(entityValues[et]))
			for _, v := range entityValues[et] {
				quoted = append(quoted, "`"+v+"`")
			}
			fmt.Fprintf(&b, "- **%s**: %s\n", et, strings.Join(quoted, ", "))
		}
		b.WriteByte('\n')
	}

	b.WriteString(`### Recommended Actions

- Review the evidence items above for detailed analysis
- Use the timeline view to see chronological patterns
- Check the network view for connection analysis

> Analysis completed in fallback mode. Configure a reasoning provider for deeper insights.
`)
	return b.String()
}

var patternLanguageRe = regexp.MustCompile(`(?i)\b(?:pattern|connection|relationship)`)

// ScoreConfidence estimates how much a generated answer engaged with the
// evidence: base 0.7, +0.1 for citing an evidence id, +0.1 for length over
// 200 characters, +0.05 for pattern language over a non-trivial evidence
// set, capped at 0.95. This is a crude engagement heuristic, not a
// calibrated probability.
func ScoreConfidence(summary string, items []evidence.Item) float64 {
	confidence := 0.7
	for _, it := range items {
		if it.ID != "" && strings.Contains(summary, it.ID) {
			confidence += 0.1
			break
		}
	}
	if len(summary) > 200 {
		confidence += 0.1
	}
	if len(items) >= 5 && patternLanguageRe.MatchString(summary) {
		confidence += 0.05
	}
	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}

var vaguePhrases = []string{
	"tell me more", "more details", "anything else", "everything",
	"what do you see", "analyze this", "look into it",
}

// IsAmbiguous is the cheap pre-loop classifier: known vague phrasings, or
// a very short query against a large evidence set, warrant a clarification
// request instead of the tool loop.
func IsAmbiguous(query string, evidenceCount int) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if containsAny(q, vaguePhrases) {
		return evidenceCount > 20
	}
	return evidenceCount > 50 && len(strings.Fields(q)) < 4
}

// ClarificationMessage is the Clarification-Requested terminal response.
func ClarificationMessage(query string, evidenceCount int) string {
	return fmt.Sprintf(
		"Your question covers a lot of ground: this case holds %d evidence items. Could you narrow it down? For example: \"Show messages mentioning payments\", \"Who communicated with +1555...?\", or \"Timeline of the last week of activity\". (Original question: %s)",
		evidenceCount, query)
}

// SuggestFollowups proposes up to five next queries based on the entity
// types present in the result evidence.
func SuggestFollowups(items []evidence.Item) []string {
	entityExamples := make(map[string]string)
	hasTimestamps := false
	sample := items
	if len(sample) > 20 {
		sample = sample[:20]
	}
	for _, it := range sample {
		for _, e := range it.Entities {
			if _, ok := entityExamples[e.Type]; !ok && e.Value != "" {
				entityExamples[e.Type] = e.Value
			}
		}
		if it.Timestamp != "" {
			hasTimestamps = true
		}
	}

	var suggestions []string
	if phone, ok := entityExamples[evidence.EntityPhone]; ok {
		suggestions = append(suggestions, fmt.Sprintf("Who else communicated with %s?", phone))
	}
	if _, ok := entityExamples[evidence.EntityCrypto]; ok {
		suggestions = append(suggestions, "Show me all cryptocurrency transactions in this case")
	}
	if _, ok := entityExamples[evidence.EntityEmail]; ok {
		suggestions = append(suggestions, "Find all email communications")
	}
	if hasTimestamps && len(items) > 3 {
		suggestions = append(suggestions, "Show me a timeline of these events")
	}
	if len(items) > 5 {
		suggestions = append(suggestions, "What connections exist between these entities?")
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions,
			"Are there any suspicious patterns in this evidence?",
			"Summarize the key findings")
	}
	if len(suggestions) > 5 {
		suggestions = suggestions[:5]
	}
	return suggestions
}

var (
	timelineWords = []string{"timeline", "when", "chronological", "sequence", "order", "history"}
	mapWords      = []string{"where", "location", "map", "gps", "place", "coordinate"}
	chatWords     = []string{"conversation", "chat", "messages between", "discussion", "talked"}
	networkWords  = []string{"relation", "connection", "network", "linked", "between", "connect", "who knows", "associated", "ties", "relationship"}
)

// ChooseVisualization picks an embedded component for a query based on
// its phrasing and the shape of the matching evidence. Returns nil when
// no visualization fits.
func ChooseVisualization(query string, items []evidence.Item, maxGraphItems int) *EmbeddedComponent {
	q := strings.ToLower(query)

	if containsAny(q, timelineWords) {
		var events []TimelineEvent
		for _, it := range items {
			if len(events) >= 20 {
				break
			}
			if it.Timestamp == "" {
				continue
			}
			content := it.Content
			if len(content) > 200 {
				content = content[:200]
			}
			events = append(events, TimelineEvent{
				ID: it.ID, Timestamp: it.Timestamp, Title: it.Source,
				Description: content, Source: it.Source, EvidenceID: it.ID,
			})
		}
		if len(events) > 1 {
			sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp < events[j].Timestamp })
			return &EmbeddedComponent{Type: ComponentTimeline, Data: events}
		}
	}

	if containsAny(q, mapWords) {
		var points []map[string]interface{}
		sample := items
		if len(sample) > 50 {
			sample = sample[:50]
		}
		for _, it := range sample {
			lat, latOK := it.Metadata["latitude"]
			lon, lonOK := it.Metadata["longitude"]
			if !latOK || !lonOK {
				continue
			}
			points = append(points, map[string]interface{}{
				"id": it.ID, "lat": lat, "lon": lon,
				"timestamp": it.Timestamp, "label": it.Source, "device": it.Device,
			})
		}
		if len(points) > 0 {
			return &EmbeddedComponent{Type: ComponentMap, Data: points}
		}
	}

	if containsAny(q, chatWords) && len(items) > 0 && allMessages(items) {
		var messages []map[string]interface{}
		sample := items
		if len(sample) > 30 {
			sample = sample[:30]
		}
		for _, it := range sample {
			direction := "received"
			if s := strings.ToLower(it.Source); strings.Contains(s, "sent") || strings.Contains(s, "me") {
				direction = "sent"
			}
			messages = append(messages, map[string]interface{}{
				"id": it.ID, "sender": it.Source, "content": it.Content,
				"timestamp": it.Timestamp, "type": direction,
			})
		}
		return &EmbeddedComponent{Type: ComponentChatBubbles, Data: messages}
	}

	if containsAny(q, networkWords) && len(items) > 1 {
		g := ExtractGraph(items, maxGraphItems)
		if len(g.Nodes) > 1 {
			return &EmbeddedComponent{Type: ComponentNetwork, Data: g}
		}
	}
	return nil
}

func allMessages(items []evidence.Item) bool {
	for _, it := range items {
		switch strings.ToLower(it.Type) {
		case "message", "chat", "sms", "whatsapp":
		default:
			return false
		}
	}
	return true
}
