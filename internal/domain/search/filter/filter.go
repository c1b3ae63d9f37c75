// Package filter defines scope filters that restrict retrieval to a subset of chunks.
package filter

import "fmt"

// MaxConditions is the maximum number of conditions per filter group.
const MaxConditions = 16

// Scope fields that filters may reference.
const (
	FieldLanguage     = "language"
	FieldDocumentID   = "document_id"
	FieldDocumentName = "document_name"
	FieldPageNumber   = "page_number"
)

var tagFields = map[string]struct{}{
	FieldLanguage:     {},
	FieldDocumentID:   {},
	FieldDocumentName: {},
}

var numericFields = map[string]struct{}{
	FieldPageNumber: {},
}

// Expression is a scope filter: every must condition holds and no must-not condition holds.
type Expression struct {
	must    []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditions {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditions)
	}
	if len(mustNot) > MaxConditions {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditions)
	}
	return Expression{must: must, mustNot: mustNot}, nil
}

// Language is a shorthand for the common single-language scope.
func Language(lang string) (Expression, error) {
	c, err := NewMatch(FieldLanguage, lang)
	if err != nil {
		return Expression{}, err
	}
	return NewExpression([]Condition{c}, nil)
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.mustNot) == 0
}

// Condition is a single filter clause: either a tag match or a numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// NewMatch creates an exact tag match condition on a tag scope field.
func NewMatch(key, match string) (Condition, error) {
	if _, ok := tagFields[key]; !ok {
		return Condition{}, fmt.Errorf("unknown tag filter field %q", key)
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewRange creates a numeric range condition on a numeric scope field.
func NewRange(key string, r Range) (Condition, error) {
	if _, ok := numericFields[key]; !ok {
		return Condition{}, fmt.Errorf("unknown range filter field %q", key)
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Range is an inclusive numeric range; a nil bound is open.
type Range struct {
	gte *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range. At least one bound is required.
func NewRangeFilter(gte, lte *float64) (Range, error) {
	if gte == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gte != nil && lte != nil && *gte > *lte {
		return Range{}, fmt.Errorf("range lower bound %g exceeds upper bound %g", *gte, *lte)
	}
	return Range{gte: gte, lte: lte}, nil
}

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }
