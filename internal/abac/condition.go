// Package abac evaluates per-organization attribute-based policies on top of
// RBAC (spec.md §4.3). Conditions are a tagged-union JSON DSL stored on
// model.Policy.Conditions; unknown operators are rejected at load time so a
// malformed policy never silently passes or fails at evaluation time.
package abac

import (
	"encoding/json"
	"fmt"
)

// Op is one comparison operator the DSL supports.
type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpIn       Op = "in"
	OpNin      Op = "nin"
	OpGt       Op = "gt"
	OpGe       Op = "ge"
	OpLt       Op = "lt"
	OpLe       Op = "le"
	OpRegex    Op = "regex"
	OpContains Op = "contains"
)

var validOps = map[Op]struct{}{
	OpEq: {}, OpNe: {}, OpIn: {}, OpNin: {}, OpGt: {}, OpGe: {}, OpLt: {}, OpLe: {}, OpRegex: {}, OpContains: {},
}

// Condition is a node in the policy condition tree. Exactly one of All, Any,
// Not, or the Compare fields (Field/Op/Value) is populated; UnmarshalJSON
// enforces that shape and rejects unknown ops immediately.
type Condition struct {
	All []Condition `json:"-"`
	Any []Condition `json:"-"`
	Not *Condition  `json:"-"`

	Field string `json:"-"`
	CmpOp Op     `json:"-"`
	Value any    `json:"-"`

	kind conditionKind
}

type conditionKind int

const (
	kindAll conditionKind = iota
	kindAny
	kindNot
	kindCompare
)

// rawCondition mirrors the wire shape so UnmarshalJSON can distinguish which
// branch is present.
type rawCondition struct {
	All   []json.RawMessage `json:"all"`
	Any   []json.RawMessage `json:"any"`
	Not   json.RawMessage   `json:"not"`
	Field string            `json:"field"`
	Op    Op                `json:"op"`
	Value any               `json:"value"`
}

// UnmarshalJSON parses one condition node and rejects it outright if it is
// shaped ambiguously or names an operator outside validOps — policies are
// validated once, at load/save time, not on every evaluation.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw rawCondition
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("abac: parsing condition: %w", err)
	}

	branches := 0
	if raw.All != nil {
		branches++
	}
	if raw.Any != nil {
		branches++
	}
	if raw.Not != nil {
		branches++
	}
	if raw.Field != "" || raw.Op != "" {
		branches++
	}
	if branches != 1 {
		return fmt.Errorf("abac: condition must have exactly one of all/any/not/field+op, got %d", branches)
	}

	switch {
	case raw.All != nil:
		c.kind = kindAll
		c.All = make([]Condition, len(raw.All))
		for i, r := range raw.All {
			if err := c.All[i].UnmarshalJSON(r); err != nil {
				return err
			}
		}
	case raw.Any != nil:
		c.kind = kindAny
		c.Any = make([]Condition, len(raw.Any))
		for i, r := range raw.Any {
			if err := c.Any[i].UnmarshalJSON(r); err != nil {
				return err
			}
		}
	case raw.Not != nil:
		c.kind = kindNot
		c.Not = &Condition{}
		if err := c.Not.UnmarshalJSON(raw.Not); err != nil {
			return err
		}
	default:
		if _, ok := validOps[raw.Op]; !ok {
			return fmt.Errorf("abac: unknown operator %q", raw.Op)
		}
		if raw.Field == "" {
			return fmt.Errorf("abac: compare condition missing field")
		}
		c.kind = kindCompare
		c.Field = raw.Field
		c.CmpOp = raw.Op
		c.Value = raw.Value
	}

	return nil
}

// ParsePolicyConditions parses a Policy.Conditions blob into a Condition.
func ParsePolicyConditions(raw json.RawMessage) (*Condition, error) {
	var c Condition
	if err := c.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return &c, nil
}
