package evidence

import "regexp"

// Extraction patterns for identifiers commonly found in forensic exports.
// The crypto pattern covers legacy Bitcoin addresses and 0x-prefixed
// Ethereum addresses; bech32 detection lives in the pattern detector where
// it is scored rather than extracted.
var (
	rePhone  = regexp.MustCompile(`\+?\d{1,3}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,9}`)
	reEmail  = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	reCrypto = regexp.MustCompile(`\b[13][a-km-zA-HJ-NP-Z1-9]{25,34}\b|\b0x[a-fA-F0-9]{40}\b`)
	reIP     = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	reURL    = regexp.MustCompile(`https?://[^\s<>"]+`)
	reAmount = regexp.MustCompile(`[$₹€£]\s?\d+(?:,\d{3})*(?:\.\d{1,2})?`)
)

var entityPatterns = []struct {
	entityType string
	re         *regexp.Regexp
	minLen     int
}{
	{EntityEmail, reEmail, 0},
	{EntityCrypto, reCrypto, 0},
	{EntityURL, reURL, 0},
	{EntityIP, reIP, 0},
	{EntityAmount, reAmount, 0},
	// Phone last: its pattern is greedy enough to swallow fragments of the
	// others, and short matches are mostly noise.
	{EntityPhone, rePhone, 7},
}

// ExtractEntities scans free text for identifier entities. Matches are
// deduplicated on (type, value) preserving first-seen order.
func ExtractEntities(content string) []Entity {
	if content == "" {
		return nil
	}
	var out []Entity
	type key struct{ t, v string }
	seen := make(map[key]struct{})
	for _, p := range entityPatterns {
		for _, m := range p.re.FindAllString(content, -1) {
			if len(m) < p.minLen {
				continue
			}
			k := key{p.entityType, m}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, Entity{Type: p.entityType, Value: m, Confidence: 1})
		}
	}
	return out
}
