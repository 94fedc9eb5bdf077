package geocoder

import (
	"fmt"
	"strconv"
	"strings"

	h3 "github.com/uber/h3-go/v4"
)

// fields typed as housenumbers are indexed by the engine but never exported
const housenumbersType = "housenumbers"

// Field describes one entity attribute declared in configuration.
type Field struct {
	Key  string
	Type string
}

// ParseFields parses "key[:type],..." into fields, skipping blanks.
func ParseFields(s string) []Field {
	var out []Field
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, typ, _ := strings.Cut(part, ":")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out = append(out, Field{Key: key, Type: strings.TrimSpace(typ)})
	}
	return out
}

// Accessor reads one named attribute off a result, "" when absent.
type Accessor func(Result) string

// AttributeTable is the immutable list of extra attributes exported as
// result_<key> columns, resolved once at startup.
type AttributeTable struct {
	headers   []string
	accessors []Accessor
}

// NewAttributeTable builds accessors for fields in declaration order.
// Duplicate keys keep their first occurrence. h3Res is the resolution used by
// the virtual "h3" attribute.
func NewAttributeTable(fields []Field, h3Res int) (AttributeTable, error) {
	if h3Res < 0 || h3Res > 15 {
		return AttributeTable{}, fmt.Errorf("invalid H3 resolution %d (must be 0..15)", h3Res)
	}
	var t AttributeTable
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Type == housenumbersType {
			continue
		}
		header := "result_" + f.Key
		if _, ok := seen[header]; ok {
			continue
		}
		seen[header] = struct{}{}
		t.headers = append(t.headers, header)
		t.accessors = append(t.accessors, accessorFor(f.Key, h3Res))
	}
	return t, nil
}

// Headers returns the result_* column names, in order.
func (t AttributeTable) Headers() []string {
	return append([]string(nil), t.headers...)
}

func (t AttributeTable) Len() int { return len(t.headers) }

// Apply calls set(header, value) for every attribute of r.
func (t AttributeTable) Apply(r Result, set func(header, value string)) {
	for i, h := range t.headers {
		set(h, t.accessors[i](r))
	}
}

func accessorFor(key string, h3Res int) Accessor {
	switch key {
	case "lat":
		return func(r Result) string { return FormatFloat(r.Lat) }
	case "lon":
		return func(r Result) string { return FormatFloat(r.Lon) }
	case "label":
		return func(r Result) string { return r.Label }
	case "score":
		return func(r Result) string { return FormatFloat(r.Score) }
	case "distance":
		return func(r Result) string { return strconv.Itoa(int(r.Distance)) }
	case "type":
		return func(r Result) string { return r.Type }
	case "id":
		return func(r Result) string { return r.ID }
	case "housenumber":
		return func(r Result) string { return r.HouseNumber }
	case "h3":
		return func(r Result) string {
			cell, err := h3.LatLngToCell(h3.LatLng{Lat: r.Lat, Lng: r.Lon}, h3Res)
			if err != nil {
				return ""
			}
			return cell.String()
		}
	default:
		return func(r Result) string { return r.Attributes[key] }
	}
}

// FormatFloat renders f in its shortest round-tripping decimal form.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
