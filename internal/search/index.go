// Package search maintains per-case in-memory BM25 indexes over evidence
// items, backing the API's full-text search and autocomplete.
package search

import (
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/forensicflow/forensicflow/internal/evidence"
)

// Hit is one full-text search result.
type Hit struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	Source  string  `json:"source"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// indexDoc is the flat document shape handed to bleve.
type indexDoc struct {
	Content  string `json:"content"`
	Source   string `json:"source"`
	Device   string `json:"device"`
	Type     string `json:"type"`
	Entities string `json:"entities"`
}

// CaseIndex is the searchable view of one case's evidence.
type CaseIndex struct {
	mu    sync.RWMutex
	index bleve.Index
	meta  map[string]evidence.Item
}

// NewCaseIndex creates an empty in-memory index.
func NewCaseIndex() (*CaseIndex, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &CaseIndex{index: index, meta: make(map[string]evidence.Item)}, nil
}

// Add indexes one evidence item, replacing any previous document with the
// same id.
func (ci *CaseIndex) Add(it evidence.Item) error {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	ci.meta[it.ID] = it

	keys := make([]string, 0, len(it.Entities))
	for _, e := range it.Entities {
		keys = append(keys, e.Value)
	}
	return ci.index.Index(it.ID, indexDoc{
		Content:  it.Content,
		Source:   it.Source,
		Device:   it.Device,
		Type:     it.Type,
		Entities: strings.Join(keys, " "),
	})
}

// AddAll indexes a batch, stopping at the first failure.
func (ci *CaseIndex) AddAll(items []evidence.Item) error {
	for _, it := range items {
		if err := ci.Add(it); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of indexed items.
func (ci *CaseIndex) Count() int {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	return len(ci.meta)
}

// Items returns the indexed evidence sorted by ID.
func (ci *CaseIndex) Items() []evidence.Item {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	out := make([]evidence.Item, 0, len(ci.meta))
	for _, it := range ci.meta {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Search runs a BM25 query-string search and returns the top k hits.
func (ci *CaseIndex) Search(q string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 20
	}
	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k, 0, false)

	ci.mu.RLock()
	res, err := ci.index.Search(searchReq)
	ci.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	out := make([]Hit, 0, len(res.Hits))
	for i, hit := range res.Hits {
		ci.mu.RLock()
		it := ci.meta[hit.ID]
		ci.mu.RUnlock()
		out = append(out, Hit{
			ID:      hit.ID,
			Type:    it.Type,
			Source:  it.Source,
			Snippet: snippet(it.Content),
			Score:   hit.Score,
			Rank:    i + 1,
		})
	}
	return out, nil
}

// Suggest returns up to k entity values and sources starting with the
// given prefix, for query autocomplete.
func (ci *CaseIndex) Suggest(prefix string, k int) []string {
	if k <= 0 {
		k = 10
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil
	}

	ci.mu.RLock()
	defer ci.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	add := func(v string) {
		if v == "" || !strings.HasPrefix(strings.ToLower(v), prefix) {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, it := range ci.meta {
		for _, e := range it.Entities {
			add(e.Value)
		}
		add(it.Source)
	}
	sort.Strings(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func snippet(s string) string {
	if len(s) <= 300 {
		return s
	}
	return s[:300] + "..."
}

// Registry hands out one CaseIndex per case id.
type Registry struct {
	mu      sync.Mutex
	indexes map[string]*CaseIndex
}

// NewRegistry creates an empty index registry.
func NewRegistry() *Registry {
	return &Registry{indexes: make(map[string]*CaseIndex)}
}

// Get returns the index for a case, creating it on first use.
func (r *Registry) Get(caseID string) (*CaseIndex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ci, ok := r.indexes[caseID]; ok {
		return ci, nil
	}
	ci, err := NewCaseIndex()
	if err != nil {
		return nil, err
	}
	r.indexes[caseID] = ci
	return ci, nil
}

// Drop discards a case's index.
func (r *Registry) Drop(caseID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.indexes, caseID)
}
