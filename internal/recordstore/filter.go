package recordstore

import (
	"fmt"
	"strings"
)

// Filter is a small predicate tree over record fields, restricted to the
// equality and substring operators every backing store supports. It both
// encodes to the PocketBase filter syntax and evaluates in process, so the
// in-memory client and the HTTP client honor identical semantics.
type Filter struct {
	op    string // "eq", "contains", "and", "or"; empty matches everything
	field string
	value string
	kids  []Filter
}

// Eq matches records whose field equals value exactly.
func Eq(field, value string) Filter {
	return Filter{op: "eq", field: field, value: value}
}

// Contains matches records whose field contains value as a substring,
// case-insensitively.
func Contains(field, value string) Filter {
	return Filter{op: "contains", field: field, value: value}
}

// And matches records satisfying every given filter.
func And(filters ...Filter) Filter {
	return Filter{op: "and", kids: filters}
}

// Or matches records satisfying at least one of the given filters.
func Or(filters ...Filter) Filter {
	return Filter{op: "or", kids: filters}
}

// Match evaluates the filter against a record's fields.
func (f Filter) Match(fields Fields) bool {
	switch f.op {
	case "eq":
		return fields.String(f.field) == f.value
	case "contains":
		return strings.Contains(strings.ToLower(fields.String(f.field)), strings.ToLower(f.value))
	case "and":
		for _, kid := range f.kids {
			if !kid.Match(fields) {
				return false
			}
		}
		return true
	case "or":
		for _, kid := range f.kids {
			if kid.Match(fields) {
				return true
			}
		}
		return len(f.kids) == 0
	default:
		return true
	}
}

// Encode renders the filter as a PocketBase filter expression. Values are
// quoted and escaped; field names are expected to be trusted literals.
func (f Filter) Encode() string {
	switch f.op {
	case "eq":
		return fmt.Sprintf("%s = %s", f.field, quote(f.value))
	case "contains":
		return fmt.Sprintf("%s ~ %s", f.field, quote(f.value))
	case "and":
		return encodeGroup(f.kids, " && ")
	case "or":
		return encodeGroup(f.kids, " || ")
	default:
		return ""
	}
}

func encodeGroup(kids []Filter, sep string) string {
	parts := make([]string, 0, len(kids))
	for _, kid := range kids {
		if expr := kid.Encode(); expr != "" {
			parts = append(parts, expr)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}
