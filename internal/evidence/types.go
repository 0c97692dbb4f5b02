package evidence

import (
	"strings"
	"time"
)

// Entity types attached to evidence items.
const (
	EntityPhone  = "phone"
	EntityEmail  = "email"
	EntityCrypto = "crypto_address"
	EntityIP     = "ip_address"
	EntityURL    = "url"
	EntityAmount = "amount"
	EntityPerson = "person"
)

// Evidence item types produced by the parsers.
const (
	TypeMessage  = "message"
	TypeCall     = "call"
	TypeContact  = "contact"
	TypeFile     = "file"
	TypeLocation = "location"
	TypeGeneric  = "evidence"
)

// Entity is a single extracted identifier (phone number, email, wallet, ...).
// Confidence defaults to 1.0 for regex-extracted and pre-annotated mentions.
type Entity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Item is the canonical evidence record every downstream component consumes.
// All tolerant coercion of upstream shapes happens in Normalize; past that
// boundary the fields are trusted.
type Item struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Content   string                 `json:"content"`
	Source    string                 `json:"source"`
	Device    string                 `json:"device"`
	Timestamp string                 `json:"timestamp"`
	Entities  []Entity               `json:"entities"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// timestampLayouts are tried in order when parsing evidence timestamps.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"01/02/2006 03:04:05 PM",
}

// ParsedTime parses the item timestamp against the known export layouts.
// The second return is false when the timestamp is empty or unparseable;
// callers are expected to skip such items rather than fail.
func (it Item) ParsedTime() (time.Time, bool) {
	return ParseTimestamp(it.Timestamp)
}

// ParseTimestamp parses a raw timestamp string from an export.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// HasEntity reports whether the item carries an entity of the given type.
func (it Item) HasEntity(entityType string) bool {
	for _, e := range it.Entities {
		if e.Type == entityType {
			return true
		}
	}
	return false
}
