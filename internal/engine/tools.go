package engine

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/forensicflow/forensicflow/internal/evidence"
	"github.com/spf13/cast"
)

// Registry holds one request's evidence snapshot and executes the six
// analysis tools against it. Tools only read the snapshot; every
// invocation is appended to the execution log.
type Registry struct {
	caseID   string
	evidence []evidence.Item
	opts     Options
	logger   *log.Logger
	execLog  []ExecLogEntry
}

// ExecLogEntry records one tool invocation for observability.
type ExecLogEntry struct {
	ToolName  string                 `json:"tool_name"`
	Params    map[string]interface{} `json:"params"`
	Success   bool                   `json:"success"`
	Duration  time.Duration          `json:"duration"`
	Timestamp time.Time              `json:"timestamp"`
	Error     string                 `json:"error,omitempty"`
}

// NewRegistry creates a tool registry over one evidence snapshot.
func NewRegistry(caseID string, items []evidence.Item, opts Options, logger *log.Logger) *Registry {
	return &Registry{
		caseID:   caseID,
		evidence: items,
		opts:     opts.Normalize(),
		logger:   logger,
	}
}

// ExecutionLog returns all invocations recorded so far, in order.
func (r *Registry) ExecutionLog() []ExecLogEntry {
	return r.execLog
}

// Execute runs one tool by name. Dispatch is a closed switch over the six
// tool kinds; an unknown name yields a handled failure, never an error
// escaping to the caller. Failures inside a tool are likewise folded into
// the result envelope.
func (r *Registry) Execute(name string, params map[string]interface{}) ToolResult {
	start := time.Now()
	var data interface{}
	var err error

	switch name {
	case ToolGenerateNetworkGraph:
		data, err = r.generateNetworkGraph(params)
	case ToolGenerateTimeline:
		data, err = r.generateTimeline(params)
	case ToolSearchEvidence:
		data, err = r.searchEvidence(params)
	case ToolAnalyzePattern:
		data, err = r.analyzePattern(params)
	case ToolGetEntityDetails:
		data, err = r.getEntityDetails(params)
	case ToolFormatReportSection:
		data, err = r.formatReportSection(params)
	default:
		result := ToolResult{
			Success:     false,
			ToolName:    name,
			Error:       fmt.Sprintf("unknown tool %q", name),
			Timestamp:   time.Now().Format(time.RFC3339),
			UserMessage: fmt.Sprintf("I don't have a tool called '%s'. Available tools: %s.", name, strings.Join(toolNames(), ", ")),
		}
		r.record(name, params, result, time.Since(start))
		return result
	}

	elapsed := time.Since(start)
	result := ToolResult{
		ToolName:      name,
		ExecutionTime: elapsed.Seconds(),
		Timestamp:     time.Now().Format(time.RFC3339),
	}
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		result.UserMessage = fmt.Sprintf("I tried to %s but encountered an error: %v", strings.ReplaceAll(name, "_", " "), err)
	} else {
		result.Success = true
		result.Data = data
		result.UserMessage = r.userMessage(name, params, data)
	}
	r.record(name, params, result, elapsed)
	return result
}

func (r *Registry) record(name string, params map[string]interface{}, result ToolResult, elapsed time.Duration) {
	r.execLog = append(r.execLog, ExecLogEntry{
		ToolName:  name,
		Params:    params,
		Success:   result.Success,
		Duration:  elapsed,
		Timestamp: time.Now(),
		Error:     result.Error,
	})
	if r.logger != nil {
		r.logger.Printf("[TOOLS] %s success=%v elapsed=%s", name, result.Success, elapsed)
	}
}

func toolNames() []string {
	return []string{
		ToolGenerateNetworkGraph, ToolGenerateTimeline, ToolSearchEvidence,
		ToolAnalyzePattern, ToolGetEntityDetails, ToolFormatReportSection,
	}
}

// NetworkGraphData is the generate_network_graph result payload.
type NetworkGraphData struct {
	Type     string        `json:"type"`
	Nodes    interface{}   `json:"nodes"`
	Edges    interface{}   `json:"edges"`
	Insights GraphInsights `json:"insights,omitempty"`
}

// generateNetworkGraph runs co-occurrence extraction, or passes through
// provider-supplied nodes and edges after shape validation.
func (r *Registry) generateNetworkGraph(params map[string]interface{}) (interface{}, error) {
	if _, supplied := params["nodes"]; supplied {
		validated, err := ValidateGraphPayload(params)
		if err != nil {
			return nil, err
		}
		return NetworkGraphData{
			Type:  "network_graph",
			Nodes: validated["nodes"],
			Edges: validated["edges"],
		}, nil
	}
	g := ExtractGraph(r.evidence, r.opts.MaxGraphItems)
	return NetworkGraphData{Type: "network_graph", Nodes: g.Nodes, Edges: g.Edges, Insights: g.Insights}, nil
}

// TimelineEvent is one entry on a generated timeline.
type TimelineEvent struct {
	ID          string `json:"id,omitempty"`
	Timestamp   string `json:"timestamp"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      string `json:"source,omitempty"`
	EvidenceID  string `json:"evidence_id,omitempty"`
}

// TimeRange is the first/last timestamp of a sorted timeline.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TimelineData is the generate_timeline result payload.
type TimelineData struct {
	Type       string          `json:"type"`
	Events     []TimelineEvent `json:"events"`
	EventCount int             `json:"event_count"`
	TimeRange  TimeRange       `json:"time_range"`
}

// generateTimeline sorts provider-supplied events, or derives events from
// timestamped evidence items. Sorting is by timestamp string, which is
// chronological for the ISO-8601 timestamps the normalizer emits.
func (r *Registry) generateTimeline(params map[string]interface{}) (interface{}, error) {
	var events []TimelineEvent
	if raw, ok := params["events"].([]interface{}); ok && len(raw) > 0 {
		for _, el := range raw {
			m, ok := el.(map[string]interface{})
			if !ok {
				continue
			}
			events = append(events, TimelineEvent{
				ID:          cast.ToString(m["id"]),
				Timestamp:   cast.ToString(m["timestamp"]),
				Title:       cast.ToString(m["title"]),
				Description: cast.ToString(m["description"]),
				Source:      cast.ToString(m["source"]),
				EvidenceID:  cast.ToString(m["evidence_id"]),
			})
		}
	} else {
		for _, it := range r.evidence {
			if len(events) >= r.opts.MaxGraphItems {
				break
			}
			if it.Timestamp == "" {
				continue
			}
			title := it.Source
			if it.Type != "" {
				title += " - " + it.Type
			}
			desc := it.Content
			if len(desc) > 300 {
				desc = desc[:300]
			}
			events = append(events, TimelineEvent{
				ID:          it.ID,
				Timestamp:   it.Timestamp,
				Title:       title,
				Description: desc,
				Source:      it.Source,
				EvidenceID:  it.ID,
			})
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp < events[j].Timestamp })

	data := TimelineData{Type: "timeline", Events: events, EventCount: len(events)}
	if len(events) > 0 {
		data.TimeRange = TimeRange{Start: events[0].Timestamp, End: events[len(events)-1].Timestamp}
	}
	return data, nil
}

// SearchFilters echoes the filters applied to a search.
type SearchFilters struct {
	Types     []string          `json:"types,omitempty"`
	DateRange map[string]string `json:"date_range,omitempty"`
}

// SearchData is the search_evidence result payload.
type SearchData struct {
	Type     string          `json:"type"`
	Evidence []evidence.Item `json:"evidence"`
	Count    int             `json:"count"`
	Query    string          `json:"query"`
	Filters  SearchFilters   `json:"filters_applied"`
}

// searchEvidence is a case-insensitive substring match across content,
// source, device, type and entity values, with optional type and
// date-range filters. Date filtering compares timestamp strings, so the
// range bounds must be ISO-8601 like the stored timestamps.
func (r *Registry) searchEvidence(params map[string]interface{}) (interface{}, error) {
	query := strings.ToLower(cast.ToString(params["query"]))
	types := cast.ToStringSlice(params["evidence_types"])
	for i := range types {
		types[i] = strings.ToLower(types[i])
	}
	limit := cast.ToInt(params["limit"])
	if limit <= 0 {
		limit = 50
	}
	var start, end string
	dateRange := map[string]string{}
	if dr, ok := params["date_range"].(map[string]interface{}); ok {
		start = cast.ToString(dr["start"])
		end = cast.ToString(dr["end"])
		if start != "" {
			dateRange["start"] = start
		}
		if end != "" {
			dateRange["end"] = end
		}
	}

	matched := make([]evidence.Item, 0)
	for _, it := range r.evidence {
		if query != "" && !itemMatchesQuery(it, query) {
			continue
		}
		if len(types) > 0 && !containsString(types, strings.ToLower(it.Type)) {
			continue
		}
		if start != "" && it.Timestamp < start {
			continue
		}
		if end != "" && it.Timestamp > end {
			continue
		}
		matched = append(matched, it)
		if len(matched) >= limit {
			break
		}
	}
	return SearchData{
		Type:     "evidence_list",
		Evidence: matched,
		Count:    len(matched),
		Query:    query,
		Filters:  SearchFilters{Types: types, DateRange: dateRange},
	}, nil
}

func itemMatchesQuery(it evidence.Item, query string) bool {
	for _, field := range []string{it.Content, it.Source, it.Device, it.Type} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	for _, e := range it.Entities {
		if strings.Contains(strings.ToLower(e.Value), query) {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// PatternAnalysisData is the analyze_pattern result payload. Findings are
// heterogeneous per analysis type, so they stay loosely shaped.
type PatternAnalysisData struct {
	Type          string                   `json:"type"`
	AnalysisType  string                   `json:"analysis_type"`
	Focus         string                   `json:"focus,omitempty"`
	EvidenceCount int                      `json:"evidence_count"`
	Findings      []map[string]interface{} `json:"findings"`
}

// analyzePattern dispatches to temporal, frequency or communication
// analysis over an explicit evidence-id subset (or the first 100 items).
// Unrecognized analysis types produce zero findings rather than failing.
func (r *Registry) analyzePattern(params map[string]interface{}) (interface{}, error) {
	ids := cast.ToStringSlice(params["evidence_ids"])
	analysisType := cast.ToString(params["analysis_type"])
	focus := cast.ToString(params["focus"])

	var subset []evidence.Item
	if len(ids) > 0 {
		idSet := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			idSet[id] = struct{}{}
		}
		for _, it := range r.evidence {
			if _, ok := idSet[it.ID]; ok {
				subset = append(subset, it)
			}
		}
	} else {
		subset = r.evidence
		if len(subset) > 100 {
			subset = subset[:100]
		}
	}

	data := PatternAnalysisData{
		Type:          "pattern_analysis",
		AnalysisType:  analysisType,
		Focus:         focus,
		EvidenceCount: len(subset),
		Findings:      []map[string]interface{}{},
	}

	switch analysisType {
	case "temporal":
		data.Findings = temporalAnalysis(subset)
	case "frequency":
		data.Findings = frequencyAnalysis(subset)
	case "communication":
		data.Findings = communicationAnalysis(subset)
	}
	return data, nil
}

// temporalAnalysis reports the timestamped range plus any gaps over 24
// hours between consecutive events.
func temporalAnalysis(subset []evidence.Item) []map[string]interface{} {
	type stamped struct {
		raw string
		t   time.Time
	}
	var stamps []stamped
	for _, it := range subset {
		if t, ok := it.ParsedTime(); ok {
			stamps = append(stamps, stamped{raw: it.Timestamp, t: t})
		}
	}
	if len(stamps) == 0 {
		return []map[string]interface{}{}
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].t.Before(stamps[j].t) })

	findings := []map[string]interface{}{{
		"finding":    fmt.Sprintf("Analyzed %d timestamped events", len(stamps)),
		"time_range": fmt.Sprintf("%s to %s", stamps[0].raw, stamps[len(stamps)-1].raw),
	}}

	var gaps []map[string]interface{}
	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].t.Sub(stamps[i-1].t); gap > 24*time.Hour {
			gaps = append(gaps, map[string]interface{}{
				"start": stamps[i-1].raw,
				"end":   stamps[i].raw,
				"hours": gap.Hours(),
			})
		}
	}
	if len(gaps) > 0 {
		if len(gaps) > 5 {
			gaps = gaps[:5]
		}
		findings = append(findings, map[string]interface{}{
			"finding": "Notable time gaps detected",
			"gaps":    gaps,
		})
	}
	return findings
}

// frequencyAnalysis reports the top 10 entities by mention count.
func frequencyAnalysis(subset []evidence.Item) []map[string]interface{} {
	counts := make(map[string]int)
	var order []string
	for _, it := range subset {
		for _, e := range it.Entities {
			key := e.Type + ":" + e.Value
			if _, ok := counts[key]; !ok {
				order = append(order, key)
			}
			counts[key]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > 10 {
		order = order[:10]
	}
	findings := make([]map[string]interface{}, 0, len(order))
	for _, key := range order {
		entityType, value := key, ""
		if i := strings.IndexByte(key, ':'); i >= 0 {
			entityType, value = key[:i], key[i+1:]
		}
		findings = append(findings, map[string]interface{}{
			"entity": key, "count": counts[key], "type": entityType, "value": value,
		})
	}
	return findings
}

// communicationAnalysis reports the top 5 sources and devices by volume.
func communicationAnalysis(subset []evidence.Item) []map[string]interface{} {
	topCounts := func(get func(evidence.Item) string, field string) []map[string]interface{} {
		counts := make(map[string]int)
		var order []string
		for _, it := range subset {
			v := get(it)
			if v == "" {
				v = "Unknown"
			}
			if _, ok := counts[v]; !ok {
				order = append(order, v)
			}
			counts[v]++
		}
		sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
		if len(order) > 5 {
			order = order[:5]
		}
		items := make([]map[string]interface{}, 0, len(order))
		for _, v := range order {
			items = append(items, map[string]interface{}{field: v, "count": counts[v]})
		}
		return items
	}
	return []map[string]interface{}{
		{"category": "Top Sources", "items": topCounts(func(it evidence.Item) string { return it.Source }, "source")},
		{"category": "Top Devices", "items": topCounts(func(it evidence.Item) string { return it.Device }, "device")},
	}
}

// EvidenceRef is a lightweight reference to one evidence item.
type EvidenceRef struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
}

// EntityDetailsData is the get_entity_details result payload. FirstSeen
// and LastSeen follow evidence list order, not chronological order; this
// is cheap and tolerant of unparseable timestamps.
type EntityDetailsData struct {
	Type               string          `json:"type"`
	Entity             evidence.Entity `json:"entity"`
	Mentions           int             `json:"mentions"`
	FirstSeen          string          `json:"first_seen,omitempty"`
	LastSeen           string          `json:"last_seen,omitempty"`
	AssociatedEntities []string        `json:"associated_entities"`
	RelatedEvidence    []EvidenceRef   `json:"related_evidence"`
}

func (r *Registry) getEntityDetails(params map[string]interface{}) (interface{}, error) {
	entityType := strings.ToLower(cast.ToString(params["entity_type"]))
	entityValue := cast.ToString(params["entity_value"])
	if entityValue == "" {
		return nil, fmt.Errorf("entity_value is required")
	}
	needle := strings.ToLower(entityValue)

	var related []evidence.Item
	for _, it := range r.evidence {
		matched := false
		for _, e := range it.Entities {
			if strings.ToLower(e.Type) == entityType && strings.Contains(strings.ToLower(e.Value), needle) {
				matched = true
				break
			}
		}
		if !matched && strings.Contains(strings.ToLower(it.Content), needle) {
			matched = true
		}
		if matched {
			related = append(related, it)
		}
	}

	data := EntityDetailsData{
		Type:               "entity_details",
		Entity:             evidence.Entity{Type: entityType, Value: entityValue, Confidence: 1},
		Mentions:           len(related),
		AssociatedEntities: []string{},
		RelatedEvidence:    []EvidenceRef{},
	}
	if len(related) > 0 {
		data.FirstSeen = related[0].Timestamp
		data.LastSeen = related[len(related)-1].Timestamp
	}

	seen := make(map[string]struct{})
	sample := related
	if len(sample) > 20 {
		sample = sample[:20]
	}
	for _, it := range sample {
		for _, e := range it.Entities {
			if strings.EqualFold(e.Value, entityValue) {
				continue
			}
			key := e.Type + ":" + e.Value
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			if len(data.AssociatedEntities) < 10 {
				data.AssociatedEntities = append(data.AssociatedEntities, key)
			}
		}
	}

	refs := related
	if len(refs) > 10 {
		refs = refs[:10]
	}
	for _, it := range refs {
		content := it.Content
		if len(content) > 200 {
			content = content[:200]
		}
		data.RelatedEvidence = append(data.RelatedEvidence, EvidenceRef{
			ID: it.ID, Source: it.Source, Timestamp: it.Timestamp, Type: it.Type, Content: content,
		})
	}
	return data, nil
}

// ReportSectionData is the format_report_section result payload.
type ReportSectionData struct {
	Type               string        `json:"type"`
	SectionType        string        `json:"section_type"`
	Title              string        `json:"title"`
	Content            string        `json:"content"`
	EvidenceCount      int           `json:"evidence_count"`
	EvidenceReferences []EvidenceRef `json:"evidence_references"`
	GeneratedAt        string        `json:"generated_at"`
}

func (r *Registry) formatReportSection(params map[string]interface{}) (interface{}, error) {
	sectionType := cast.ToString(params["section_type"])
	if sectionType == "" {
		sectionType = "findings"
	}
	content := cast.ToString(params["content"])
	ids := cast.ToStringSlice(params["evidence_ids"])

	refs := []EvidenceRef{}
	if len(ids) > 0 {
		idSet := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			idSet[id] = struct{}{}
		}
		for _, it := range r.evidence {
			if _, ok := idSet[it.ID]; ok {
				refs = append(refs, EvidenceRef{ID: it.ID, Source: it.Source, Timestamp: it.Timestamp, Type: it.Type})
			}
		}
	}
	return ReportSectionData{
		Type:               "report_section",
		SectionType:        sectionType,
		Title:              titleCase(strings.ReplaceAll(sectionType, "_", " ")),
		Content:            content,
		EvidenceCount:      len(refs),
		EvidenceReferences: refs,
		GeneratedAt:        time.Now().Format(time.RFC3339),
	}, nil
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// userMessage renders the human-readable line attached to a successful
// tool result.
func (r *Registry) userMessage(name string, params map[string]interface{}, data interface{}) string {
	switch d := data.(type) {
	case NetworkGraphData:
		nodes := countOf(d.Nodes)
		edges := countOf(d.Edges)
		if nodes > 0 {
			return fmt.Sprintf("Generated a network graph with %d entities and %d connections.", nodes, edges)
		}
		return "I tried to create a network graph but couldn't find enough connections in the evidence."
	case TimelineData:
		if d.EventCount > 0 {
			return fmt.Sprintf("Created a timeline with %d events spanning from %s to %s.", d.EventCount, d.TimeRange.Start, d.TimeRange.End)
		}
		return "I tried to create a timeline but couldn't find timestamped events."
	case SearchData:
		if d.Count > 0 {
			return fmt.Sprintf("Found %d evidence items matching '%s'.", d.Count, d.Query)
		}
		return fmt.Sprintf("I searched for '%s' but found no matching evidence.", d.Query)
	case PatternAnalysisData:
		return fmt.Sprintf("Completed %s analysis and found %d patterns.", d.AnalysisType, len(d.Findings))
	case EntityDetailsData:
		if d.Mentions > 0 {
			return fmt.Sprintf("Found %d mentions of '%s' across the evidence.", d.Mentions, d.Entity.Value)
		}
		return fmt.Sprintf("I searched for '%s' but couldn't find it in the evidence.", d.Entity.Value)
	case ReportSectionData:
		return fmt.Sprintf("Formatted a %s section for the report.", strings.ReplaceAll(d.SectionType, "_", " "))
	default:
		return fmt.Sprintf("Executed %s successfully.", strings.ReplaceAll(name, "_", " "))
	}
}

func countOf(v interface{}) int {
	switch t := v.(type) {
	case []GraphNode:
		return len(t)
	case []GraphEdge:
		return len(t)
	case []interface{}:
		return len(t)
	default:
		return 0
	}
}
