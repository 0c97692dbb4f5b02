package server

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxQueryLen = 2000
	minQueryLen = 3
)

// Queries are echoed into prompts, stored summaries and the web UI, so
// obvious injection payloads are rejected outright instead of escaped.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)\bDROP\s+TABLE\b`),
	regexp.MustCompile(`(?i)\bDELETE\s+FROM\b`),
	regexp.MustCompile(`(?i)<iframe`),
}

// validateQuery trims and bounds an investigator query.
func validateQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", fmt.Errorf("query is required")
	}
	if len(q) > maxQueryLen {
		return "", fmt.Errorf("query exceeds %d characters", maxQueryLen)
	}
	if len(q) < minQueryLen {
		return "", fmt.Errorf("query must be at least %d characters", minQueryLen)
	}
	for _, re := range dangerousPatterns {
		if re.MatchString(q) {
			return "", fmt.Errorf("query contains disallowed content")
		}
	}
	return q, nil
}
