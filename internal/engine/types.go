// Package engine implements the evidence correlation and insight engine:
// co-occurrence graph extraction, pattern and anomaly detection, bounded
// conversation tracking, and a tool-driven agent loop with a deterministic
// keyword fallback.
package engine

import (
	"context"
	"time"
)

// Relationship labels inferred for graph edges.
const (
	RelCommunicatedWith     = "communicated_with"
	RelFinancialTransaction = "financial_transaction"
	RelMetAtLocation        = "met_at_location"
	RelUsedDevice           = "used_device"
	RelAppearedIn           = "appeared_in"
	RelAssociatedWith       = "associated_with"
)

// GraphNode is one entity, source or device in the correlation graph.
type GraphNode struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Group       string   `json:"group"`
	Mentions    int      `json:"mentions"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// GraphEdge is a co-occurrence relationship between two nodes. Weight is
// the number of evidence items in which both endpoints appear together.
type GraphEdge struct {
	Source      string   `json:"source"`
	Target      string   `json:"target"`
	Label       string   `json:"label"`
	Weight      int      `json:"weight"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// EdgeContext is a snippet recorded at co-occurrence time and later used
// for relationship-type inference.
type EdgeContext struct {
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
	Snippet   string `json:"snippet"`
}

// CentralNode is a high-degree node surfaced in graph insights.
type CentralNode struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Degree int    `json:"degree"`
}

// GraphInsights summarizes the extracted graph: the top nodes by edge
// degree and the nodes connected to exactly one other node.
type GraphInsights struct {
	CentralNodes []CentralNode `json:"central_nodes"`
	Outliers     []string      `json:"outliers"`
}

// Graph is the full extraction result handed back to callers.
type Graph struct {
	Nodes    []GraphNode   `json:"nodes"`
	Edges    []GraphEdge   `json:"edges"`
	Insights GraphInsights `json:"insights"`
}

// Pattern finding types.
const (
	FindingRegex     = "signature"
	FindingFrequency = "frequency"
	FindingTemporal  = "temporal_spike"
	FindingAnomaly   = "anomaly"
)

// Finding is one detected pattern or anomaly.
type Finding struct {
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Confidence  float64                `json:"confidence"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Embedded visualization component types.
const (
	ComponentNetwork     = "network"
	ComponentTimeline    = "timeline"
	ComponentMap         = "map"
	ComponentChatBubbles = "chat_bubbles"
)

// EmbeddedComponent is an optional visualization payload attached to a
// query result.
type EmbeddedComponent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Terminal states of one query. Recorded on the result so callers and
// metrics can distinguish tool-grounded answers from degraded ones.
const (
	ModeSynthesized   = "synthesized"
	ModeDirect        = "direct"
	ModeClarification = "clarification"
	ModeFallback      = "fallback"
	ModeCached        = "cached"
)

// QueryResult is the engine's answer to one investigator query.
type QueryResult struct {
	Summary     string             `json:"summary"`
	Confidence  float64            `json:"confidence"`
	Mode        string             `json:"mode"`
	Embedded    *EmbeddedComponent `json:"embedded_component,omitempty"`
	ToolResults []ToolResult       `json:"tool_results,omitempty"`
	Suggestions []string           `json:"suggested_followups,omitempty"`
}

// ToolCall is one tool invocation requested by the reasoning provider.
type ToolCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// Reply is a normalized reasoning-provider response: free text, tool-call
// requests, or both.
type Reply struct {
	Text      string
	ToolCalls []ToolCall
}

// ReasoningProvider is the external text-generation capability. It may be
// absent (nil), in which case the engine runs fallback paths only. Calls
// must respect the context deadline; the engine never retries.
type ReasoningProvider interface {
	Generate(ctx context.Context, prompt string, tools []ToolSchema) (Reply, error)
}

// ToolSchema declares one tool's parameter contract as presented verbatim
// to the reasoning provider.
type ToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolResult is the uniform envelope returned by every tool invocation.
type ToolResult struct {
	Success       bool        `json:"success"`
	ToolName      string      `json:"tool_name"`
	Data          interface{} `json:"data,omitempty"`
	Error         string      `json:"error,omitempty"`
	ExecutionTime float64     `json:"execution_time"`
	Timestamp     string      `json:"timestamp"`
	UserMessage   string      `json:"user_message"`
}

// Options bound the engine's per-request work.
type Options struct {
	MaxGraphItems     int
	MaxToolIterations int
	QueryTimeout      time.Duration
	SynthesisTimeout  time.Duration
}

// Normalize applies defaults for unset option values.
func (o Options) Normalize() Options {
	if o.MaxGraphItems <= 0 {
		o.MaxGraphItems = 100
	}
	if o.MaxToolIterations <= 0 {
		o.MaxToolIterations = 5
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = 15 * time.Second
	}
	if o.SynthesisTimeout <= 0 {
		o.SynthesisTimeout = 30 * time.Second
	}
	return o
}
