package engine

import "strings"

// The closed set of tool names. Dispatch is exhaustive over these; any
// other name is a handled "unknown tool" error.
const (
	ToolGenerateNetworkGraph = "generate_network_graph"
	ToolGenerateTimeline     = "generate_timeline"
	ToolSearchEvidence       = "search_evidence"
	ToolAnalyzePattern       = "analyze_pattern"
	ToolGetEntityDetails     = "get_entity_details"
	ToolFormatReportSection  = "format_report_section"
)

// ToolSchemas returns the fixed, versioned parameter contracts for the six
// analysis tools, in the exact shape presented to the reasoning provider.
func ToolSchemas() []ToolSchema {
	return []ToolSchema{
		{
			Name:        ToolGenerateNetworkGraph,
			Description: "Generate a network graph visualization showing relationships between entities (people, organizations, devices, etc.) found in evidence. Use this when the officer asks to 'show network graph', 'show connections', 'show relationships', or similar requests.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"nodes": map[string]interface{}{
						"type":        "array",
						"description": "List of entities/nodes in the graph",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"id":    map[string]interface{}{"type": "string", "description": "Unique identifier for the node"},
								"label": map[string]interface{}{"type": "string", "description": "Display name for the node"},
								"group": map[string]interface{}{
									"type":        "string",
									"description": "Category of the node",
									"enum":        []string{"person", "organization", "device", "location", "account", "phone", "email", "crypto", "other"},
								},
							},
							"required": []string{"id", "label", "group"},
						},
					},
					"edges": map[string]interface{}{
						"type":        "array",
						"description": "List of relationships/connections between nodes",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"source": map[string]interface{}{"type": "string", "description": "ID of source node"},
								"target": map[string]interface{}{"type": "string", "description": "ID of target node"},
								"label":  map[string]interface{}{"type": "string", "description": "Type of relationship (e.g., 'communicated', 'transferred', 'located_at')"},
								"evidence_ids": map[string]interface{}{
									"type":        "array",
									"description": "List of evidence IDs supporting this connection",
									"items":       map[string]interface{}{"type": "string"},
								},
							},
							"required": []string{"source", "target", "label"},
						},
					},
				},
				"required": []string{"nodes", "edges"},
			},
		},
		{
			Name:        ToolGenerateTimeline,
			Description: "Generate a timeline visualization of events. Use this when the officer asks about chronology, 'what happened when', 'show timeline', 'sequence of events', etc.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"events": map[string]interface{}{
						"type":        "array",
						"description": "List of events in chronological order",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"id":          map[string]interface{}{"type": "string", "description": "Unique event ID"},
								"timestamp":   map[string]interface{}{"type": "string", "description": "ISO 8601 timestamp of the event"},
								"title":       map[string]interface{}{"type": "string", "description": "Brief title of the event"},
								"description": map[string]interface{}{"type": "string", "description": "Detailed description of what happened"},
								"source":      map[string]interface{}{"type": "string", "description": "Source of the event (e.g., 'WhatsApp', 'Call Log')"},
								"evidence_id": map[string]interface{}{"type": "string", "description": "ID of evidence item this event is from"},
							},
							"required": []string{"timestamp", "title", "description"},
						},
					},
				},
				"required": []string{"events"},
			},
		},
		{
			Name:        ToolSearchEvidence,
			Description: "Search for evidence items matching specific criteria. Use this when you need to find specific evidence that wasn't in the initial results, or to do a more targeted search.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{"type": "string", "description": "Search query or keywords to find evidence"},
					"evidence_types": map[string]interface{}{
						"type":        "array",
						"description": "Filter by evidence types",
						"items": map[string]interface{}{
							"type": "string",
							"enum": []string{"message", "call", "file", "location", "transaction", "browser", "app"},
						},
					},
					"date_range": map[string]interface{}{
						"type":        "object",
						"description": "Filter by date range",
						"properties": map[string]interface{}{
							"start": map[string]interface{}{"type": "string", "description": "Start date (ISO 8601)"},
							"end":   map[string]interface{}{"type": "string", "description": "End date (ISO 8601)"},
						},
					},
					"limit": map[string]interface{}{"type": "integer", "description": "Maximum number of results to return", "default": 20},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        ToolAnalyzePattern,
			Description: "Perform deep pattern analysis on a subset of evidence. Use this when the officer asks about patterns, trends, anomalies, or suspicious behavior.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"evidence_ids": map[string]interface{}{
						"type":        "array",
						"description": "List of evidence IDs to analyze",
						"items":       map[string]interface{}{"type": "string"},
					},
					"analysis_type": map[string]interface{}{
						"type":        "string",
						"description": "Type of pattern analysis to perform",
						"enum":        []string{"temporal", "frequency", "anomaly", "network", "financial", "communication"},
					},
					"focus": map[string]interface{}{"type": "string", "description": "What aspect to focus on (e.g., 'transaction amounts', 'call frequency', 'time gaps')"},
				},
				"required": []string{"evidence_ids", "analysis_type"},
			},
		},
		{
			Name:        ToolGetEntityDetails,
			Description: "Get detailed information about a specific entity (person, phone number, account, etc.). Use when the officer asks about a specific entity.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"entity_type": map[string]interface{}{
						"type":        "string",
						"description": "Type of entity",
						"enum":        []string{"phone", "email", "crypto_address", "person", "organization", "device", "location"},
					},
					"entity_value": map[string]interface{}{"type": "string", "description": "The value/identifier of the entity (e.g., phone number, email address)"},
				},
				"required": []string{"entity_type", "entity_value"},
			},
		},
		{
			Name:        ToolFormatReportSection,
			Description: "Format data into a structured report section. Use when the officer asks to 'create a report', 'summarize for report', or 'format this as...'",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"section_type": map[string]interface{}{
						"type":        "string",
						"description": "Type of report section",
						"enum":        []string{"executive_summary", "findings", "evidence_list", "timeline", "conclusions", "recommendations"},
					},
					"content": map[string]interface{}{"type": "string", "description": "Content to be formatted"},
					"evidence_ids": map[string]interface{}{
						"type":        "array",
						"description": "Evidence items to include in the section",
						"items":       map[string]interface{}{"type": "string"},
					},
				},
				"required": []string{"section_type", "content"},
			},
		},
	}
}

// toolKeywords routes query phrasings to the tools likely needed to answer
// them. Used both to hint the reasoning provider and to pick fallback
// visualizations.
var toolKeywords = map[string][]string{
	ToolGenerateNetworkGraph: {
		"network", "graph", "connection", "relationship", "link", "between",
		"show connections", "network diagram", "who knows who",
	},
	ToolGenerateTimeline: {
		"timeline", "chronolog", "when", "sequence", "order", "history",
		"what happened when", "time sequence", "series of events",
	},
	ToolSearchEvidence: {
		"find", "search", "look for", "show me", "get", "retrieve",
		"evidence about", "items containing",
	},
	ToolAnalyzePattern: {
		"pattern", "trend", "anomaly", "suspicious", "unusual", "frequency",
		"behavior", "analyze", "detect", "identify patterns",
	},
	ToolGetEntityDetails: {
		"who is", "what is", "tell me about", "information about",
		"details of", "profile of", "background on",
	},
	ToolFormatReportSection: {
		"report", "summarize", "format", "document", "write up",
		"create report", "format as", "prepare summary",
	},
}

// DetectRequiredTools returns the tool names whose keyword families match
// the query, in the registry's fixed tool order.
func DetectRequiredTools(query string) []string {
	q := strings.ToLower(query)
	ordered := []string{
		ToolGenerateNetworkGraph, ToolGenerateTimeline, ToolSearchEvidence,
		ToolAnalyzePattern, ToolGetEntityDetails, ToolFormatReportSection,
	}
	var out []string
	for _, name := range ordered {
		if containsAny(q, toolKeywords[name]) {
			out = append(out, name)
		}
	}
	return out
}
