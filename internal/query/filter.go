package query

import "github.com/dreamware/vectorcore/internal/coreerr"

// Filter is a parsed metadata filter: one clause per field, implicit
// AND across fields (design §6). A field absent from a candidate's
// metadata never matches any clause, including $eq against a literal
// null.
type Filter map[string]fieldClause

// fieldClause is one field's matching rule. One or more of the
// pointer-typed operators is non-nil for a comparison clause, and all
// set operators must hold (e.g. $gte with $lt forms a range); equals
// is set (possibly to a nil interface) for both the bare-scalar and
// "$eq" forms.
type fieldClause struct {
	equals   any
	hasEqual bool
	in       []any
	gt       *float64
	gte      *float64
	lt       *float64
	lte      *float64
}

// ParseFilter parses the JSON-decoded filter object from the wire
// grammar: `{field: scalar | {"$in":[...]} | {"$gt|$gte|$lt|$lte":
// number} | {"$eq": scalar}}` (design §6).
func ParseFilter(raw map[string]any) (Filter, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	f := make(Filter, len(raw))
	for field, v := range raw {
		clause, err := parseClause(field, v)
		if err != nil {
			return nil, err
		}
		f[field] = clause
	}
	return f, nil
}

func parseClause(field string, v any) (fieldClause, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return fieldClause{equals: v, hasEqual: true}, nil
	}

	var c fieldClause
	seen := 0
	if raw, ok := obj["$eq"]; ok {
		c.equals, c.hasEqual = raw, true
		seen++
	}
	if raw, ok := obj["$in"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return fieldClause{}, coreerr.Validation("filter field %q: $in requires an array", field)
		}
		c.in = list
		seen++
	}
	for op, dst := range map[string]**float64{"$gt": &c.gt, "$gte": &c.gte, "$lt": &c.lt, "$lte": &c.lte} {
		raw, ok := obj[op]
		if !ok {
			continue
		}
		n, ok := asFloat(raw)
		if !ok {
			return fieldClause{}, coreerr.Validation("filter field %q: %s requires a number", field, op)
		}
		*dst = &n
		seen++
	}
	if seen == 0 {
		return fieldClause{}, coreerr.Validation("filter field %q: object clause has no recognized operator", field)
	}
	return c, nil
}

// Matches reports whether metadata satisfies every clause in f
// (implicit AND). A nil or empty Filter matches everything.
func (f Filter) Matches(metadata map[string]any) bool {
	for field, clause := range f {
		v, present := metadata[field]
		if !present {
			return false
		}
		if !clause.matches(v) {
			return false
		}
	}
	return true
}

func (c fieldClause) matches(v any) bool {
	if c.hasEqual && !equalScalar(v, c.equals) {
		return false
	}
	if c.in != nil {
		found := false
		for _, want := range c.in {
			if equalScalar(v, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if c.gt != nil || c.gte != nil || c.lt != nil || c.lte != nil {
		n, ok := asFloat(v)
		if !ok {
			return false
		}
		if c.gt != nil && !(n > *c.gt) {
			return false
		}
		if c.gte != nil && !(n >= *c.gte) {
			return false
		}
		if c.lt != nil && !(n < *c.lt) {
			return false
		}
		if c.lte != nil && !(n <= *c.lte) {
			return false
		}
	}
	return true
}

func equalScalar(a, b any) bool {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
