package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/forensicflow/forensicflow/internal/evidence"
)

// FindingCaseFlag marks findings produced by the case-load scan.
const FindingCaseFlag = "case_flag"

// CaseAnalysis is the automatic scan run when a case's evidence is first
// loaded: red-flag checks plus the pattern and anomaly detectors.
type CaseAnalysis struct {
	EvidenceCount int       `json:"evidence_count"`
	Flags         []Finding `json:"flags"`
	Patterns      []Finding `json:"patterns"`
	Anomalies     []Finding `json:"anomalies"`
}

// AnalyzeCase scans a full evidence snapshot for investigative red flags:
// cryptocurrency activity, GPS trails, foreign phone numbers, and long
// silent gaps. Pattern and anomaly findings ride along.
func AnalyzeCase(items []evidence.Item) CaseAnalysis {
	analysis := CaseAnalysis{
		EvidenceCount: len(items),
		Flags:         []Finding{},
		Patterns:      DetectPatterns(items),
		Anomalies:     DetectAnomalies(items),
	}

	if f, ok := cryptoFlag(items); ok {
		analysis.Flags = append(analysis.Flags, f)
	}
	if f, ok := gpsFlag(items); ok {
		analysis.Flags = append(analysis.Flags, f)
	}
	if f, ok := foreignNumberFlag(items); ok {
		analysis.Flags = append(analysis.Flags, f)
	}
	if f, ok := silentGapFlag(items); ok {
		analysis.Flags = append(analysis.Flags, f)
	}
	return analysis
}

func cryptoFlag(items []evidence.Item) (Finding, bool) {
	addresses := make(map[string]struct{})
	var ids []string
	for _, it := range items {
		for _, e := range it.Entities {
			if e.Type == evidence.EntityCrypto {
				addresses[e.Value] = struct{}{}
				ids = append(ids, it.ID)
			}
		}
	}
	if len(addresses) == 0 {
		return Finding{}, false
	}
	return Finding{
		Type:        FindingCaseFlag,
		Title:       "Cryptocurrency activity",
		Description: fmt.Sprintf("%d distinct cryptocurrency addresses appear in the evidence.", len(addresses)),
		Confidence:  0.85,
		Metadata:    map[string]interface{}{"addresses": len(addresses), "evidence_ids": capStrings(ids, 10)},
	}, true
}

func gpsFlag(items []evidence.Item) (Finding, bool) {
	var ids []string
	for _, it := range items {
		if _, ok := it.Metadata["latitude"]; !ok {
			continue
		}
		if _, ok := it.Metadata["longitude"]; !ok {
			continue
		}
		ids = append(ids, it.ID)
	}
	if len(ids) == 0 {
		return Finding{}, false
	}
	return Finding{
		Type:        FindingCaseFlag,
		Title:       "GPS location trail",
		Description: fmt.Sprintf("%d evidence items carry GPS coordinates and can be plotted on a map.", len(ids)),
		Confidence:  0.8,
		Metadata:    map[string]interface{}{"count": len(ids), "evidence_ids": capStrings(ids, 10)},
	}, true
}

// foreignNumberFlag reports phone numbers whose country code differs from
// the case's dominant one. The dominant code is the most frequent prefix,
// so the flag works without knowing the jurisdiction.
func foreignNumberFlag(items []evidence.Item) (Finding, bool) {
	codeCounts := make(map[string]int)
	byCode := make(map[string][]string)
	for _, it := range items {
		for _, e := range it.Entities {
			if e.Type != evidence.EntityPhone {
				continue
			}
			code := countryCode(e.Value)
			if code == "" {
				continue
			}
			codeCounts[code]++
			byCode[code] = append(byCode[code], e.Value)
		}
	}
	if len(codeCounts) < 2 {
		return Finding{}, false
	}

	codes := make([]string, 0, len(codeCounts))
	for code := range codeCounts {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if codeCounts[codes[i]] != codeCounts[codes[j]] {
			return codeCounts[codes[i]] > codeCounts[codes[j]]
		}
		return codes[i] < codes[j]
	})

	var foreign []string
	for _, code := range codes[1:] {
		foreign = append(foreign, byCode[code]...)
	}
	return Finding{
		Type:        FindingCaseFlag,
		Title:       "Foreign phone numbers",
		Description: fmt.Sprintf("%d phone numbers use a country code other than the dominant %s.", len(foreign), codes[0]),
		Confidence:  0.7,
		Metadata:    map[string]interface{}{"dominant_code": codes[0], "numbers": capStrings(foreign, 10)},
	}, true
}

// countryCode extracts the country-code prefix of an international number.
// Codes 1 and 7 are single digit; everything else is grouped by its first
// two digits, which is close enough for a same-or-different comparison.
// Numbers without a plus prefix are skipped rather than guessed at.
func countryCode(number string) string {
	if len(number) < 2 || number[0] != '+' {
		return ""
	}
	if number[1] < '0' || number[1] > '9' {
		return ""
	}
	if number[1] == '1' || number[1] == '7' {
		return number[:2]
	}
	if len(number) >= 3 && number[2] >= '0' && number[2] <= '9' {
		return number[:3]
	}
	return number[:2]
}

// silentGapFlag reports gaps over 48 hours between consecutive
// timestamped items. Sudden silence in an otherwise active device often
// marks a discarded phone or deliberate quiet period.
func silentGapFlag(items []evidence.Item) (Finding, bool) {
	var stamps []time.Time
	for _, it := range items {
		if t, ok := it.ParsedTime(); ok {
			stamps = append(stamps, t)
		}
	}
	if len(stamps) < 2 {
		return Finding{}, false
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	var gaps []map[string]interface{}
	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap > 48*time.Hour {
			gaps = append(gaps, map[string]interface{}{
				"start": stamps[i-1].Format(time.RFC3339),
				"end":   stamps[i].Format(time.RFC3339),
				"hours": gap.Hours(),
			})
		}
	}
	if len(gaps) == 0 {
		return Finding{}, false
	}
	if len(gaps) > 5 {
		gaps = gaps[:5]
	}
	return Finding{
		Type:        FindingCaseFlag,
		Title:       "Silent periods",
		Description: fmt.Sprintf("%d gaps of more than 48 hours separate otherwise continuous activity.", len(gaps)),
		Confidence:  0.65,
		Metadata:    map[string]interface{}{"gaps": gaps},
	}, true
}
