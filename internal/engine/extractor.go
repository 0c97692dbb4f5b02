package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/forensicflow/forensicflow/internal/evidence"
)

const (
	maxGraphNodes   = 30
	maxGraphEdges   = 50
	maxLabelLen     = 40
	maxEdgeEvidence = 5
	maxEdgeContexts = 3
)

// nodeRef identifies one graph node touched by a single evidence item.
type nodeRef struct {
	key   string
	label string
	group string
}

// pairKey is the unordered co-occurrence key for two node ids.
type pairKey struct {
	a, b string
}

func makePairKey(x, y string) pairKey {
	if x > y {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

type coocEntry struct {
	weight      int
	evidenceIDs []string
	contexts    []EdgeContext
}

// graphAccumulator is threaded through the extraction fold. The readout
// (ranking, capping, inference) is a pure function of its final state.
type graphAccumulator struct {
	nodes     map[string]*GraphNode
	nodeOrder []string
	cooc      map[pairKey]*coocEntry
	pairOrder []pairKey
}

func newGraphAccumulator() *graphAccumulator {
	return &graphAccumulator{
		nodes: make(map[string]*GraphNode),
		cooc:  make(map[pairKey]*coocEntry),
	}
}

// ExtractGraph builds the entity co-occurrence graph for an evidence
// snapshot. The input is capped at maxItems for latency control and
// processed in original order; identical input yields identical output.
func ExtractGraph(items []evidence.Item, maxItems int) Graph {
	if maxItems <= 0 {
		maxItems = 100
	}
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	acc := newGraphAccumulator()
	for _, it := range items {
		acc.fold(it)
	}
	return acc.readout()
}

// fold records one evidence item: touch each of its nodes and count every
// unordered pair of distinct nodes as one co-occurrence.
func (acc *graphAccumulator) fold(it evidence.Item) {
	refs := itemNodeRefs(it)
	for _, ref := range refs {
		node, ok := acc.nodes[ref.key]
		if !ok {
			node = &GraphNode{ID: ref.key, Label: ref.label, Group: ref.group}
			acc.nodes[ref.key] = node
			acc.nodeOrder = append(acc.nodeOrder, ref.key)
		}
		node.Mentions++
		node.EvidenceIDs = append(node.EvidenceIDs, it.ID)
	}

	snippet := it.Content
	if len(snippet) > 100 {
		snippet = snippet[:100]
	}
	for i := 0; i < len(refs); i++ {
		for j := i + 1; j < len(refs); j++ {
			pk := makePairKey(refs[i].key, refs[j].key)
			entry, ok := acc.cooc[pk]
			if !ok {
				entry = &coocEntry{}
				acc.cooc[pk] = entry
				acc.pairOrder = append(acc.pairOrder, pk)
			}
			entry.weight++
			if len(entry.evidenceIDs) < maxEdgeEvidence {
				entry.evidenceIDs = append(entry.evidenceIDs, it.ID)
			}
			if len(entry.contexts) < maxEdgeContexts {
				entry.contexts = append(entry.contexts, EdgeContext{
					Source:    it.Source,
					Timestamp: it.Timestamp,
					Snippet:   snippet,
				})
			}
		}
	}
}

// itemNodeRefs collects the distinct nodes one item contributes: every
// entity mention with a value longer than 2 characters, plus the item's
// source and device as synthetic nodes.
func itemNodeRefs(it evidence.Item) []nodeRef {
	var refs []nodeRef
	seen := make(map[string]struct{})
	add := func(ref nodeRef) {
		if _, ok := seen[ref.key]; ok {
			return
		}
		seen[ref.key] = struct{}{}
		refs = append(refs, ref)
	}

	for _, e := range it.Entities {
		if len(e.Value) <= 2 {
			continue
		}
		add(nodeRef{
			key:   e.Type + ":" + e.Value,
			label: truncateLabel(e.Value),
			group: e.Type,
		})
	}
	if src := strings.TrimSpace(it.Source); src != "" && !strings.EqualFold(src, "unknown") {
		add(nodeRef{key: "source:" + src, label: truncateLabel(src), group: "source"})
	}
	if dev := strings.TrimSpace(it.Device); dev != "" && !strings.EqualFold(dev, "unknown") {
		add(nodeRef{key: "device:" + dev, label: truncateLabel(dev), group: "device"})
	}
	return refs
}

func truncateLabel(v string) string {
	if len(v) > maxLabelLen {
		return v[:maxLabelLen]
	}
	return v
}

// readout ranks and caps the accumulated state into the final graph.
func (acc *graphAccumulator) readout() Graph {
	// Top nodes by mentions, insertion order breaking ties.
	ranked := make([]string, len(acc.nodeOrder))
	copy(ranked, acc.nodeOrder)
	sort.SliceStable(ranked, func(i, j int) bool {
		return acc.nodes[ranked[i]].Mentions > acc.nodes[ranked[j]].Mentions
	})
	if len(ranked) > maxGraphNodes {
		ranked = ranked[:maxGraphNodes]
	}
	kept := make(map[string]struct{}, len(ranked))
	nodes := make([]GraphNode, 0, len(ranked))
	for _, id := range ranked {
		kept[id] = struct{}{}
		nodes = append(nodes, *acc.nodes[id])
	}

	// Edges between surviving nodes, top by weight.
	survivors := make([]pairKey, 0, len(acc.pairOrder))
	for _, pk := range acc.pairOrder {
		if _, ok := kept[pk.a]; !ok {
			continue
		}
		if _, ok := kept[pk.b]; !ok {
			continue
		}
		survivors = append(survivors, pk)
	}
	sort.SliceStable(survivors, func(i, j int) bool {
		return acc.cooc[survivors[i]].weight > acc.cooc[survivors[j]].weight
	})
	if len(survivors) > maxGraphEdges {
		survivors = survivors[:maxGraphEdges]
	}

	edges := make([]GraphEdge, 0, len(survivors))
	degree := make(map[string]int)
	for _, pk := range survivors {
		entry := acc.cooc[pk]
		edges = append(edges, GraphEdge{
			Source:      pk.a,
			Target:      pk.b,
			Label:       inferRelationship(pk.a, pk.b, entry.contexts),
			Weight:      entry.weight,
			EvidenceIDs: entry.evidenceIDs,
		})
		degree[pk.a]++
		degree[pk.b]++
	}

	return Graph{Nodes: nodes, Edges: edges, Insights: graphInsights(nodes, degree)}
}

var (
	communicationWords = []string{"call", "message", "text", "chat", "spoke", "talked"}
	financialWords     = []string{"payment", "transfer", "paid", "sent money", "bitcoin", "crypto", "transaction"}
	locationWords      = []string{"met at", "location", "meeting", "meet"}
)

// inferRelationship labels an edge from its recorded context snippets.
// The check order is fixed; the first matching family wins.
func inferRelationship(a, b string, contexts []EdgeContext) string {
	var text strings.Builder
	for i, c := range contexts {
		if i >= maxEdgeContexts {
			break
		}
		text.WriteString(strings.ToLower(c.Snippet))
		text.WriteByte(' ')
	}
	combined := text.String()

	if containsAny(combined, communicationWords) {
		return RelCommunicatedWith
	}
	if containsAny(combined, financialWords) {
		return RelFinancialTransaction
	}
	if containsAny(combined, locationWords) {
		return RelMetAtLocation
	}
	if strings.HasPrefix(a, "device:") || strings.HasPrefix(b, "device:") {
		return RelUsedDevice
	}
	if strings.HasPrefix(a, "source:") || strings.HasPrefix(b, "source:") {
		return RelAppearedIn
	}
	return RelAssociatedWith
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func graphInsights(nodes []GraphNode, degree map[string]int) GraphInsights {
	labels := make(map[string]string, len(nodes))
	for _, n := range nodes {
		labels[n.ID] = n.Label
	}

	type nd struct {
		id  string
		deg int
	}
	ranked := make([]nd, 0, len(nodes))
	for _, n := range nodes {
		if d := degree[n.ID]; d > 0 {
			ranked = append(ranked, nd{id: n.ID, deg: d})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].deg > ranked[j].deg })

	var insights GraphInsights
	for i, n := range ranked {
		if i >= 3 {
			break
		}
		insights.CentralNodes = append(insights.CentralNodes, CentralNode{
			ID: n.id, Label: labels[n.id], Degree: n.deg,
		})
	}
	for _, n := range ranked {
		if n.deg == 1 {
			insights.Outliers = append(insights.Outliers, labels[n.id])
		}
	}
	return insights
}

// ValidateGraphPayload checks an externally supplied graph document and
// converts it into the canonical payload. The legacy "links" key is
// accepted in place of "edges".
func ValidateGraphPayload(data map[string]interface{}) (map[string]interface{}, error) {
	nodes, ok := data["nodes"]
	if !ok {
		return nil, fmt.Errorf("graph payload missing nodes")
	}
	edges, ok := data["edges"]
	if !ok {
		edges, ok = data["links"]
		if !ok {
			return nil, fmt.Errorf("graph payload missing edges")
		}
	}
	return map[string]interface{}{"nodes": nodes, "edges": edges}, nil
}

// StarGraph builds the minimal "case hub to evidence items" graph used
// when extraction yields too few nodes to visualize.
func StarGraph(caseID string, items []evidence.Item) Graph {
	hub := GraphNode{ID: "case:" + caseID, Label: "Case " + caseID, Group: "case", Mentions: len(items)}
	g := Graph{Nodes: []GraphNode{hub}}
	for _, it := range items {
		id := "evidence:" + it.ID
		g.Nodes = append(g.Nodes, GraphNode{
			ID: id, Label: truncateLabel(it.Type + " " + it.ID), Group: it.Type,
			Mentions: 1, EvidenceIDs: []string{it.ID},
		})
		g.Edges = append(g.Edges, GraphEdge{
			Source: hub.ID, Target: id, Label: RelAssociatedWith, Weight: 1,
			EvidenceIDs: []string{it.ID},
		})
	}
	return g
}
