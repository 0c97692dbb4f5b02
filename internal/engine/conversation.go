package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/forensicflow/forensicflow/internal/evidence"
)

const (
	defaultMaxExchanges   = 10
	maxEstablishedFacts   = 50
	trimEstablishedFacts  = 40
	minFactLength         = 20
	proactiveQueryPeriod  = 5
	proactiveEntityCount  = 10
	summarizeTokenBudget  = 2000
	approxCharsPerToken   = 4
)

// Exchange is one query/response pair in a session.
type Exchange struct {
	Query     string                 `json:"query"`
	Response  string                 `json:"response"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// TrackedEntity counts mentions of one entity across a session.
type TrackedEntity struct {
	Key       string    `json:"key"`
	Mentions  int       `json:"mentions"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Conversation tracks bounded session context: a ring buffer of recent
// exchanges, entity mention counters, and established facts used to avoid
// repeating analysis. It has no internal locking; one instance belongs to
// exactly one session and must not be shared across goroutines.
type Conversation struct {
	maxExchanges int
	exchanges    []Exchange
	entities     map[string]*TrackedEntity
	entityOrder  []string
	// Facts are FIFO-ordered so the overflow trim keeps the most recent
	// entries deterministically.
	facts      []string
	factSet    map[string]struct{}
	queryCount int
}

// NewConversation creates a session tracker holding at most maxExchanges
// exchanges (default 10 when zero or negative).
func NewConversation(maxExchanges int) *Conversation {
	if maxExchanges <= 0 {
		maxExchanges = defaultMaxExchanges
	}
	return &Conversation{
		maxExchanges: maxExchanges,
		entities:     make(map[string]*TrackedEntity),
		factSet:      make(map[string]struct{}),
	}
}

var evidenceRefRe = regexp.MustCompile(`Evidence #(\w+)`)

var factPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)[^.\n]*\b(?:is|are|was|were)\b[^.\n]*\b(?:central|hub|key|main|primary)\b[^.\n]*`),
	regexp.MustCompile(`(?i)[^.\n]*\b(?:suggests|indicates|shows|reveals)\b[^.\n]*`),
	regexp.MustCompile(`(?i)[^.\n]*\b(?:pattern|trend|connection)\b[^.\n]*`),
}

// AddExchange records one query/response pair, evicting the oldest
// exchange once the ring buffer is full, and updates entity and fact
// tracking from both texts.
func (c *Conversation) AddExchange(query, response string, metadata map[string]interface{}) {
	c.exchanges = append(c.exchanges, Exchange{
		Query:     query,
		Response:  response,
		Timestamp: time.Now(),
		Metadata:  metadata,
	})
	if len(c.exchanges) > c.maxExchanges {
		c.exchanges = c.exchanges[len(c.exchanges)-c.maxExchanges:]
	}
	c.queryCount++
	c.trackEntities(query + " " + response)
	c.extractFacts(response)
}

// History returns the retained exchanges, oldest first.
func (c *Conversation) History() []Exchange {
	return c.exchanges
}

// QueryCount returns the number of exchanges ever added.
func (c *Conversation) QueryCount() int {
	return c.queryCount
}

func (c *Conversation) trackEntities(text string) {
	now := time.Now()
	touch := func(key string) {
		ent, ok := c.entities[key]
		if !ok {
			ent = &TrackedEntity{Key: key, FirstSeen: now}
			c.entities[key] = ent
			c.entityOrder = append(c.entityOrder, key)
		}
		ent.Mentions++
		ent.LastSeen = now
	}

	for _, e := range evidence.ExtractEntities(text) {
		switch e.Type {
		case evidence.EntityPhone, evidence.EntityEmail, evidence.EntityCrypto:
			touch(e.Type + ":" + e.Value)
		}
	}
	for _, m := range evidenceRefRe.FindAllStringSubmatch(text, -1) {
		touch("evidence:" + m[1])
	}
}

func (c *Conversation) extractFacts(response string) {
	for _, re := range factPatterns {
		for _, m := range re.FindAllString(response, -1) {
			fact := strings.ToLower(strings.TrimSpace(m))
			if len(fact) < minFactLength {
				continue
			}
			if _, ok := c.factSet[fact]; ok {
				continue
			}
			c.factSet[fact] = struct{}{}
			c.facts = append(c.facts, fact)
		}
	}
	if len(c.facts) > maxEstablishedFacts {
		dropped := c.facts[:len(c.facts)-trimEstablishedFacts]
		for _, f := range dropped {
			delete(c.factSet, f)
		}
		c.facts = append([]string(nil), c.facts[len(c.facts)-trimEstablishedFacts:]...)
	}
}

// EstablishedFacts returns the retained facts, oldest first.
func (c *Conversation) EstablishedFacts() []string {
	return c.facts
}

// ContextSummary renders a compact session summary for prompts. Entity
// mention counts are included when includeEntities is set.
func (c *Conversation) ContextSummary(includeEntities bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session with %d queries so far.\n", c.queryCount)
	if n := len(c.exchanges); n > 0 {
		b.WriteString("Recent queries:\n")
		for _, ex := range c.exchanges {
			fmt.Fprintf(&b, "- %s\n", ex.Query)
		}
	}
	if includeEntities && len(c.entityOrder) > 0 {
		b.WriteString("Entities discussed:\n")
		for _, key := range c.entityOrder {
			ent := c.entities[key]
			fmt.Fprintf(&b, "- %s (%d mentions)\n", ent.Key, ent.Mentions)
		}
	}
	if len(c.facts) > 0 {
		b.WriteString("Established facts:\n")
		for _, f := range c.facts {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String()
}

// HistoryForPrompt renders the retained exchanges for inclusion in a
// reasoning prompt, oldest first.
func (c *Conversation) HistoryForPrompt() string {
	if len(c.exchanges) == 0 {
		return ""
	}
	var b strings.Builder
	for _, ex := range c.exchanges {
		fmt.Fprintf(&b, "Investigator: %s\nAnalyst: %s\n", ex.Query, ex.Response)
	}
	return b.String()
}

// EstimateTokenCount approximates the token footprint of the retained
// history at four characters per token.
func (c *Conversation) EstimateTokenCount() int {
	chars := 0
	for _, ex := range c.exchanges {
		chars += len(ex.Query) + len(ex.Response)
	}
	return chars / approxCharsPerToken
}

// ShouldSummarize reports whether the retained history has outgrown the
// prompt budget and should be compacted by the caller.
func (c *Conversation) ShouldSummarize() bool {
	return c.EstimateTokenCount() > summarizeTokenBudget
}

// ShouldOfferProactiveSummary fires when the query count reaches a
// multiple of five or ten distinct entities have been discussed. The rule
// is edge-triggered; callers check it after each exchange.
func (c *Conversation) ShouldOfferProactiveSummary() bool {
	if c.queryCount > 0 && c.queryCount%proactiveQueryPeriod == 0 {
		return true
	}
	return len(c.entities) >= proactiveEntityCount
}

// ProactiveSummarySuggestion renders the suggestion text shown to the
// investigator when ShouldOfferProactiveSummary fires.
func (c *Conversation) ProactiveSummarySuggestion() string {
	return fmt.Sprintf(
		"You have explored %d queries covering %d entities. Would you like a consolidated summary of the findings so far?",
		c.queryCount, len(c.entities))
}

// RelevantEntities returns tracked entities whose value appears in the
// query text, most mentioned first.
func (c *Conversation) RelevantEntities(query string) []TrackedEntity {
	q := strings.ToLower(query)
	var out []TrackedEntity
	for _, key := range c.entityOrder {
		ent := c.entities[key]
		value := key
		if i := strings.IndexByte(key, ':'); i >= 0 {
			value = key[i+1:]
		}
		if strings.Contains(q, strings.ToLower(value)) {
			out = append(out, *ent)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mentions > out[j].Mentions })
	return out
}

// TrackedEntities returns all tracked entities in first-seen order.
func (c *Conversation) TrackedEntities() []TrackedEntity {
	out := make([]TrackedEntity, 0, len(c.entityOrder))
	for _, key := range c.entityOrder {
		out = append(out, *c.entities[key])
	}
	return out
}
