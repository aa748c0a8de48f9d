package abac

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Attrs is the attribute bag a policy condition is evaluated against:
// subject.*, resource.*, and environment.* dotted paths all resolve into
// this single map, keyed by the top-level namespace.
type Attrs struct {
	Subject     map[string]any
	Resource    map[string]any
	Environment map[string]any
}

// resolve walks a dotted path like "subject.role" or "resource.owner_id".
// A missing path resolves to nil rather than raising — spec.md §4.3
// requires missing fields to compare as null, never to error.
func (a Attrs) resolve(path string) any {
	parts := strings.Split(path, ".")
	if len(parts) < 2 {
		return nil
	}

	var root map[string]any
	switch parts[0] {
	case "subject":
		root = a.Subject
	case "resource":
		root = a.Resource
	case "environment":
		root = a.Environment
	default:
		return nil
	}

	var cur any = root
	for _, p := range parts[1:] {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[p]
		if !ok {
			return nil
		}
	}
	return cur
}

// Eval evaluates c against attrs, short-circuiting All/Any. It never panics
// on malformed values — comparisons against incompatible types simply
// evaluate false — since Condition.UnmarshalJSON already rejected anything
// structurally invalid at load time.
func (c *Condition) Eval(attrs Attrs) (bool, error) {
	switch c.kind {
	case kindAll:
		for _, sub := range c.All {
			ok, err := sub.Eval(attrs)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case kindAny:
		for _, sub := range c.Any {
			ok, err := sub.Eval(attrs)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case kindNot:
		ok, err := c.Not.Eval(attrs)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case kindCompare:
		return compare(attrs.resolve(c.Field), c.CmpOp, c.Value)

	default:
		return false, fmt.Errorf("abac: condition has no kind set")
	}
}

func compare(actual any, op Op, want any) (bool, error) {
	switch op {
	case OpEq:
		return equalAny(actual, want), nil
	case OpNe:
		return !equalAny(actual, want), nil
	case OpIn:
		return containsAny(want, actual), nil
	case OpNin:
		return !containsAny(want, actual), nil
	case OpGt, OpGe, OpLt, OpLe:
		return compareNumeric(actual, op, want)
	case OpRegex:
		pattern, ok := want.(string)
		if !ok {
			return false, nil
		}
		s, ok := actual.(string)
		if !ok {
			return false, nil
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("abac: invalid regex %q: %w", pattern, err)
		}
		return re.MatchString(s), nil
	case OpContains:
		return containsAny(actual, want), nil
	default:
		return false, fmt.Errorf("abac: unhandled operator %q", op)
	}
}

func equalAny(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// containsAny reports whether needle is an element of haystack, treating
// haystack as a slice (JSON arrays decode to []any) or falling back to
// substring containment for strings.
func containsAny(haystack, needle any) bool {
	switch h := haystack.(type) {
	case []any:
		for _, item := range h {
			if equalAny(item, needle) {
				return true
			}
		}
		return false
	case string:
		n, ok := needle.(string)
		return ok && strings.Contains(h, n)
	default:
		return false
	}
}

func compareNumeric(actual any, op Op, want any) (bool, error) {
	af, aok := toFloat(actual)
	bf, bok := toFloat(want)
	if !aok || !bok {
		return false, nil
	}
	switch op {
	case OpGt:
		return af > bf, nil
	case OpGe:
		return af >= bf, nil
	case OpLt:
		return af < bf, nil
	case OpLe:
		return af <= bf, nil
	default:
		return false, fmt.Errorf("abac: not a numeric operator: %q", op)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
