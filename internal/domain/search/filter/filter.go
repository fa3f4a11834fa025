package filter

import (
	"fmt"
	"sort"
)

// MaxConditions is the maximum number of equality conditions in one expression.
const MaxConditions = 32

// Expression is a conjunction of metadata equality conditions.
// The zero value matches everything.
type Expression struct {
	must []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must ...Condition) (Expression, error) {
	if len(must) > MaxConditions {
		return Expression{}, fmt.Errorf("too many filter conditions (max %d)", MaxConditions)
	}
	seen := make(map[string]struct{}, len(must))
	for _, c := range must {
		if _, dup := seen[c.key]; dup {
			return Expression{}, fmt.Errorf("duplicate filter key %q", c.key)
		}
		seen[c.key] = struct{}{}
	}
	return Expression{must: must}, nil
}

// FromMap builds an Expression from key/value pairs, ordered by key.
func FromMap(m map[string]string) (Expression, error) {
	if len(m) == 0 {
		return Expression{}, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]Condition, 0, len(keys))
	for _, k := range keys {
		c, err := NewMatch(k, m[k])
		if err != nil {
			return Expression{}, err
		}
		conds = append(conds, c)
	}
	return NewExpression(conds...)
}

// Must returns the conditions.
func (e Expression) Must() []Condition { return e.must }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.must) == 0 }

// Matches reports whether every condition holds for the given lookup.
func (e Expression) Matches(lookup func(key string) (string, bool)) bool {
	for _, c := range e.must {
		v, ok := lookup(c.key)
		if !ok || v != c.match {
			return false
		}
	}
	return true
}

// Condition is a single exact-match clause on a metadata key.
type Condition struct {
	key   string
	match string
}

// NewMatch creates an exact match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// Key returns the metadata key.
func (c Condition) Key() string { return c.key }

// Match returns the expected value.
func (c Condition) Match() string { return c.match }
