package evidence

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Normalize coerces one loosely typed evidence record (as decoded from an
// export or API payload) into the canonical Item. Unknown fields land in
// Metadata, missing fields get stable defaults, and a synthetic ID is
// assigned when the record carries none. Normalize never fails; garbage in
// a single field degrades that field only.
func Normalize(raw map[string]interface{}, ordinal int) Item {
	it := Item{
		ID:        cast.ToString(raw["id"]),
		Type:      strings.ToLower(strings.TrimSpace(cast.ToString(raw["type"]))),
		Content:   cast.ToString(raw["content"]),
		Source:    cast.ToString(raw["source"]),
		Device:    cast.ToString(raw["device"]),
		Timestamp: cast.ToString(raw["timestamp"]),
	}
	if it.ID == "" {
		it.ID = fmt.Sprintf("item-%d", ordinal)
	}
	if it.Type == "" {
		it.Type = TypeGeneric
	}
	if it.Source == "" {
		it.Source = "unknown"
	}

	it.Entities = normalizeEntities(raw["entities"])
	if len(it.Entities) == 0 && it.Content != "" {
		it.Entities = ExtractEntities(it.Content)
	}

	known := map[string]struct{}{
		"id": {}, "type": {}, "content": {}, "source": {},
		"device": {}, "timestamp": {}, "entities": {}, "metadata": {},
	}
	if md, ok := raw["metadata"].(map[string]interface{}); ok {
		it.Metadata = md
	}
	for k, v := range raw {
		if _, ok := known[k]; ok {
			continue
		}
		if it.Metadata == nil {
			it.Metadata = make(map[string]interface{})
		}
		it.Metadata[k] = v
	}
	return it
}

// NormalizeAll normalizes a batch, assigning positional IDs to records
// that carry none.
func NormalizeAll(raws []map[string]interface{}) []Item {
	items := make([]Item, 0, len(raws))
	for i, raw := range raws {
		items = append(items, Normalize(raw, i+1))
	}
	return items
}

// normalizeEntities accepts the entity shapes seen in the wild: a list of
// {type,value} maps, a list of typed Entity values, or a list of bare
// strings (typed by re-extraction).
func normalizeEntities(raw interface{}) []Entity {
	switch v := raw.(type) {
	case nil:
		return nil
	case []Entity:
		return v
	case []interface{}:
		var out []Entity
		for _, el := range v {
			switch e := el.(type) {
			case map[string]interface{}:
				ent := Entity{
					Type:       cast.ToString(e["type"]),
					Value:      cast.ToString(e["value"]),
					Confidence: cast.ToFloat64(e["confidence"]),
				}
				if ent.Confidence == 0 {
					ent.Confidence = 1
				}
				if ent.Value != "" {
					out = append(out, ent)
				}
			case string:
				out = append(out, ExtractEntities(e)...)
			}
		}
		return out
	default:
		return nil
	}
}
