package evidence

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
)

// Parser turns raw forensic export files (UFDR, JSON, XML, CSV, TSV) into
// canonical evidence items.
type Parser struct{}

// Parse dispatches on the file extension, falling back to content sniffing
// for .ufdr files and unknown extensions.
func (p *Parser) Parse(filename string, data []byte) ([]Item, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty export file %q", filename)
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return p.parseJSON(data)
	case ".xml":
		return p.parseXML(data)
	case ".csv":
		return p.parseDelimited(data, ',')
	case ".tsv":
		return p.parseDelimited(data, '\t')
	default:
		return p.parseDetected(data)
	}
}

// parseDetected sniffs the payload shape: JSON and XML by leading byte,
// otherwise delimited text with the separator guessed from the header line.
func (p *Parser) parseDetected(data []byte) ([]Item, error) {
	trimmed := bytes.TrimSpace(data)
	switch trimmed[0] {
	case '{', '[':
		return p.parseJSON(data)
	case '<':
		return p.parseXML(data)
	}
	header := trimmed
	if i := bytes.IndexByte(header, '\n'); i >= 0 {
		header = header[:i]
	}
	if bytes.Count(header, []byte{'\t'}) > bytes.Count(header, []byte{','}) {
		return p.parseDelimited(data, '\t')
	}
	return p.parseDelimited(data, ',')
}

// sectionTypes maps export section names to canonical item types.
var sectionTypes = map[string]string{
	"messages": TypeMessage, "message": TypeMessage, "chats": TypeMessage, "sms": TypeMessage,
	"calls": TypeCall, "call": TypeCall, "call_log": TypeCall,
	"contacts": TypeContact, "contact": TypeContact,
	"files": TypeFile, "file": TypeFile, "media": TypeFile,
	"locations": TypeLocation, "location": TypeLocation, "gps": TypeLocation,
}

func (p *Parser) parseJSON(data []byte) ([]Item, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode json export: %w", err)
	}

	var raws []map[string]interface{}
	appendRecord := func(itemType string, rec map[string]interface{}) {
		raws = append(raws, composeRecord(itemType, rec))
	}

	switch v := doc.(type) {
	case []interface{}:
		for _, el := range v {
			if rec, ok := el.(map[string]interface{}); ok {
				appendRecord(cast.ToString(rec["type"]), rec)
			}
		}
	case map[string]interface{}:
		matched := false
		for key, section := range v {
			itemType, known := sectionTypes[strings.ToLower(key)]
			if !known {
				continue
			}
			list, ok := section.([]interface{})
			if !ok {
				continue
			}
			matched = true
			for _, el := range list {
				if rec, ok := el.(map[string]interface{}); ok {
					appendRecord(itemType, rec)
				}
			}
		}
		if !matched {
			// Single-record document or unknown section names: take any
			// list-of-object value as generic evidence.
			for _, section := range v {
				list, ok := section.([]interface{})
				if !ok {
					continue
				}
				for _, el := range list {
					if rec, ok := el.(map[string]interface{}); ok {
						appendRecord("", rec)
					}
				}
			}
			if len(raws) == 0 {
				appendRecord(cast.ToString(v["type"]), v)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported json export shape %T", doc)
	}
	return NormalizeAll(raws), nil
}

// parseXML walks the token stream collecting elements whose name matches a
// known section record (message, call, contact, file, location). Child
// elements and attributes become record fields.
func (p *Parser) parseXML(data []byte) ([]Item, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var raws []map[string]interface{}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml export: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		itemType, known := sectionTypes[strings.ToLower(start.Name.Local)]
		if !known {
			continue
		}
		rec, err := decodeXMLRecord(dec, start)
		if err != nil {
			return nil, fmt.Errorf("decode xml record <%s>: %w", start.Name.Local, err)
		}
		raws = append(raws, composeRecord(itemType, rec))
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("no recognized records in xml export")
	}
	return NormalizeAll(raws), nil
}

// decodeXMLRecord reads one record element to its end tag, flattening
// attributes and immediate child elements into a string-keyed map.
func decodeXMLRecord(dec *xml.Decoder, start xml.StartElement) (map[string]interface{}, error) {
	rec := make(map[string]interface{})
	for _, attr := range start.Attr {
		rec[strings.ToLower(attr.Name.Local)] = attr.Value
	}
	var field string
	var text strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				field = strings.ToLower(t.Name.Local)
				text.Reset()
			}
		case xml.CharData:
			if depth == 1 {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 0 {
				return rec, nil
			}
			if depth == 1 && field != "" {
				if v := strings.TrimSpace(text.String()); v != "" {
					rec[field] = v
				}
				field = ""
			}
			depth--
		}
	}
}

func (p *Parser) parseDelimited(data []byte, comma rune) ([]Item, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode delimited export: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("delimited export has no data rows")
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	var raws []map[string]interface{}
	for _, row := range rows[1:] {
		rec := make(map[string]interface{}, len(header))
		for i, cell := range row {
			if i < len(header) && header[i] != "" {
				rec[header[i]] = cell
			}
		}
		raws = append(raws, composeRecord(cast.ToString(rec["type"]), rec))
	}
	return NormalizeAll(raws), nil
}

// Field aliases seen across UFDR exports.
var (
	contentFields   = []string{"content", "text", "body", "message", "description", "name", "filename", "path"}
	timestampFields = []string{"timestamp", "time", "date", "datetime", "sent_at", "created_at"}
	sourceFields    = []string{"source", "app", "application", "platform"}
	deviceFields    = []string{"device", "device_id", "device_name", "imei"}
)

// composeRecord rewrites one loosely shaped export record into the field
// names Normalize understands, synthesizing content for record shapes that
// carry structure instead of text (calls, contacts, locations).
func composeRecord(itemType string, rec map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{
		"id":        firstString(rec, "id", "uid", "record_id"),
		"type":      itemType,
		"content":   firstString(rec, contentFields...),
		"timestamp": firstString(rec, timestampFields...),
		"source":    firstString(rec, sourceFields...),
		"device":    firstString(rec, deviceFields...),
	}
	if ents, ok := rec["entities"]; ok {
		out["entities"] = ents
	}

	from := firstString(rec, "from", "sender", "caller")
	to := firstString(rec, "to", "recipient", "callee")
	switch itemType {
	case TypeCall:
		if cast.ToString(out["content"]) == "" {
			out["content"] = fmt.Sprintf("Call from %s to %s, duration %ss",
				from, to, firstString(rec, "duration", "duration_seconds"))
		}
	case TypeContact:
		if name := firstString(rec, "name", "display_name"); name != "" {
			phone := firstString(rec, "phone", "number", "phone_number")
			out["content"] = strings.TrimSpace(name + " " + phone)
		}
	case TypeLocation:
		lat := firstString(rec, "lat", "latitude")
		lon := firstString(rec, "lon", "lng", "longitude")
		if lat != "" && lon != "" {
			out["metadata"] = map[string]interface{}{"latitude": lat, "longitude": lon}
			if cast.ToString(out["content"]) == "" {
				out["content"] = fmt.Sprintf("Location fix at %s,%s", lat, lon)
			}
		}
	default:
		if cast.ToString(out["content"]) == "" && (from != "" || to != "") {
			out["content"] = strings.TrimSpace(from + " " + to)
		}
	}
	if from != "" || to != "" {
		md, _ := out["metadata"].(map[string]interface{})
		if md == nil {
			md = make(map[string]interface{})
		}
		if from != "" {
			md["from"] = from
		}
		if to != "" {
			md["to"] = to
		}
		out["metadata"] = md
	}
	return out
}

func firstString(rec map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := rec[k]; ok {
			if s := strings.TrimSpace(cast.ToString(v)); s != "" {
				return s
			}
		}
	}
	return ""
}
