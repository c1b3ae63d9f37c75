package filter

import (
	"strings"
	"testing"
)

func floatPtr(f float64) *float64 { return &f }

func TestNewRangeFilter(t *testing.T) {
	if _, err := NewRangeFilter(nil, nil); err == nil || !strings.Contains(err.Error(), "at least one") {
		t.Errorf("expected missing boundary error, got %v", err)
	}
	if _, err := NewRangeFilter(floatPtr(10), floatPtr(1)); err == nil {
		t.Error("expected error for inverted range")
	}
	r, err := NewRangeFilter(floatPtr(1), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.GTE() == nil || *r.GTE() != 1 || r.LTE() != nil {
		t.Errorf("unexpected range bounds")
	}
}

func TestNewMatch(t *testing.T) {
	if _, err := NewMatch("color", "red"); err == nil {
		t.Error("expected error for unknown field")
	}
	if _, err := NewMatch(FieldLanguage, ""); err == nil {
		t.Error("expected error for empty value")
	}
	c, err := NewMatch(FieldLanguage, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsMatch() || c.IsRange() || c.Key() != FieldLanguage || c.Match() != "en" {
		t.Errorf("unexpected condition: %+v", c)
	}
}

func TestNewRange_NumericOnly(t *testing.T) {
	r, _ := NewRangeFilter(floatPtr(1), floatPtr(5))
	if _, err := NewRange(FieldLanguage, r); err == nil {
		t.Error("expected error for range on tag field")
	}
	c, err := NewRange(FieldPageNumber, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsRange() {
		t.Error("expected range condition")
	}
}

func TestNewExpression_Limits(t *testing.T) {
	c, _ := NewMatch(FieldLanguage, "en")
	tooMany := make([]Condition, MaxConditions+1)
	for i := range tooMany {
		tooMany[i] = c
	}
	if _, err := NewExpression(tooMany, nil); err == nil {
		t.Error("expected error for too many must conditions")
	}
	if _, err := NewExpression(nil, tooMany); err == nil {
		t.Error("expected error for too many must_not conditions")
	}
}

func TestLanguage(t *testing.T) {
	e, err := Language("de")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.IsEmpty() || len(e.Must()) != 1 || e.Must()[0].Match() != "de" {
		t.Errorf("unexpected expression: %+v", e)
	}
	if (Expression{}).IsEmpty() != true {
		t.Error("zero expression must be empty")
	}
}
