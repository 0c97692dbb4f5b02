package engine

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/forensicflow/forensicflow/internal/evidence"
)

const (
	maxFindings          = 8
	minSignatureMatches  = 2
	minEntityFrequency   = 3
	minTemporalSamples   = 10
	minLateNightItems    = 3
	lateNightConfidence  = 0.7
	spikeFactor          = 2.0
	maxFrequencyFindings = 5
)

// signature is one named regex family scanned across evidence content.
type signature struct {
	name  string
	title string
	re    *regexp.Regexp
}

var signatures = []signature{
	{"crypto_address", "Cryptocurrency addresses",
		regexp.MustCompile(`\b[13][a-km-zA-HJ-NP-Z1-9]{25,34}\b|\bbc1[a-z0-9]{39,59}\b|\b0x[a-fA-F0-9]{40}\b`)},
	{"bank_account", "Bank account numbers",
		regexp.MustCompile(`\b\d{8,18}\b`)},
	{"currency_amount", "Currency amounts",
		regexp.MustCompile(`[$₹€£]\s?\d+(?:,\d{3})*(?:\.\d{1,2})?`)},
	{"phone_number", "Phone numbers",
		regexp.MustCompile(`\+\d{1,3}[-.\s]?\d{4,14}`)},
	{"email_address", "Email addresses",
		regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
	{"ip_address", "IP addresses",
		regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{"meeting_reference", "Meeting references",
		regexp.MustCompile(`(?i)\b(?:meet|meeting|rendezvous|see you at|pick up|drop off)\b`)},
}

// DetectPatterns runs the regex signature, entity frequency and temporal
// spike passes over one evidence snapshot. At most 8 findings are returned
// in natural generation order. The detector never fails: unparseable
// timestamps simply drop items from the temporal pass.
func DetectPatterns(items []evidence.Item) []Finding {
	var findings []Finding
	findings = append(findings, signatureFindings(items)...)
	findings = append(findings, frequencyFindings(items)...)
	if f, ok := temporalSpike(items); ok {
		findings = append(findings, f)
	}
	if len(findings) > maxFindings {
		findings = findings[:maxFindings]
	}
	return findings
}

// DetectAnomalies runs the anomaly pass. Currently one detector: a burst
// of late-night activity (23:00 through 05:59).
func DetectAnomalies(items []evidence.Item) []Finding {
	var lateNight []string
	for _, it := range items {
		t, ok := it.ParsedTime()
		if !ok {
			continue
		}
		if h := t.Hour(); h >= 23 || h <= 5 {
			lateNight = append(lateNight, it.ID)
		}
	}
	if len(lateNight) <= minLateNightItems {
		return nil
	}
	return []Finding{{
		Type:        FindingAnomaly,
		Title:       "Late-night activity",
		Description: fmt.Sprintf("%d evidence items were recorded between 23:00 and 05:59, outside normal activity hours.", len(lateNight)),
		Confidence:  lateNightConfidence,
		Metadata: map[string]interface{}{
			"count":        len(lateNight),
			"evidence_ids": capStrings(lateNight, 10),
		},
	}}
}

// signatureFindings reports each regex family with at least 2 unique
// matches across the snapshot.
func signatureFindings(items []evidence.Item) []Finding {
	var findings []Finding
	for _, sig := range signatures {
		unique := make(map[string]struct{})
		var samples []string
		for _, it := range items {
			for _, m := range sig.re.FindAllString(it.Content, -1) {
				if _, ok := unique[m]; ok {
					continue
				}
				unique[m] = struct{}{}
				if len(samples) < 5 {
					samples = append(samples, m)
				}
			}
		}
		if len(unique) < minSignatureMatches {
			continue
		}
		findings = append(findings, Finding{
			Type:        FindingRegex,
			Title:       sig.title,
			Description: fmt.Sprintf("%d unique %s matches found across the evidence set.", len(unique), sig.name),
			Confidence:  capConfidence(0.6+0.05*float64(len(unique)), 0.9),
			Metadata: map[string]interface{}{
				"pattern": sig.name,
				"unique":  len(unique),
				"samples": samples,
			},
		})
	}
	return findings
}

// frequencyFindings reports canonical entities mentioned in 3 or more
// items, highest frequency first, at most 5.
func frequencyFindings(items []evidence.Item) []Finding {
	counts := make(map[string]int)
	var order []string
	for _, it := range items {
		seen := make(map[string]struct{})
		for _, e := range it.Entities {
			key := e.Type + ":" + e.Value
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if _, ok := counts[key]; !ok {
				order = append(order, key)
			}
			counts[key]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })

	var findings []Finding
	for _, key := range order {
		freq := counts[key]
		if freq < minEntityFrequency {
			continue
		}
		findings = append(findings, Finding{
			Type:        FindingFrequency,
			Title:       "Frequently mentioned entity",
			Description: fmt.Sprintf("Entity %s appears in %d evidence items.", key, freq),
			Confidence:  capConfidence(0.5+0.1*float64(freq), 0.9),
			Metadata:    map[string]interface{}{"entity": key, "frequency": freq},
		})
		if len(findings) >= maxFrequencyFindings {
			break
		}
	}
	return findings
}

// temporalSpike buckets parseable timestamps into hour windows and
// reports the single largest window whose count exceeds twice the mean.
func temporalSpike(items []evidence.Item) (Finding, bool) {
	buckets := make(map[time.Time]int)
	total := 0
	for _, it := range items {
		t, ok := it.ParsedTime()
		if !ok {
			continue
		}
		buckets[t.Truncate(time.Hour)]++
		total++
	}
	if total <= minTemporalSamples || len(buckets) == 0 {
		return Finding{}, false
	}

	mean := float64(total) / float64(len(buckets))
	var spikeAt time.Time
	spikeCount := 0
	for window, count := range buckets {
		if count > spikeCount || (count == spikeCount && window.Before(spikeAt)) {
			spikeAt = window
			spikeCount = count
		}
	}
	if float64(spikeCount) <= spikeFactor*mean {
		return Finding{}, false
	}
	return Finding{
		Type:        FindingTemporal,
		Title:       "Activity spike",
		Description: fmt.Sprintf("%d evidence items fall in the hour starting %s, against an average of %.1f per active hour.", spikeCount, spikeAt.Format(time.RFC3339), mean),
		Confidence:  capConfidence(0.5+0.05*float64(spikeCount), 0.9),
		Metadata: map[string]interface{}{
			"window_start": spikeAt.Format(time.RFC3339),
			"count":        spikeCount,
			"mean":         mean,
		},
	}, true
}

func capConfidence(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	return v
}

func capStrings(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}
