package core

import "strings"

// Transformer maps raw records to foods. It is deterministic and total: every
// RawRecord produces a Food, with unreadable numbers set to 0.
type Transformer struct {
	san          *Sanitizer
	rowsDegraded int
}

// NewTransformer returns a transformer using san for numeric fields.
func NewTransformer(san *Sanitizer) *Transformer {
	if san == nil {
		san = NewSanitizer(nil)
	}
	return &Transformer{san: san}
}

// Transform converts raw into a Food.
//
// The name has every underscore replaced with a space. Code and category pass
// through unchanged. The unit is inferred from the raw serving size token
// before that token is reduced to a number.
func (t *Transformer) Transform(raw RawRecord) Food {
	before := t.san.Degraded()

	f := Food{
		FoodCode:     raw.Code,
		FoodName:     strings.ReplaceAll(raw.Name, "_", " "),
		Category:     raw.Category,
		Unit:         InferUnit(raw.ServingSize),
		ServingSize:  t.san.Number(FieldServingSize, raw.ServingSize, raw.Line),
		Calories:     t.san.Number(FieldCalories, raw.Calories, raw.Line),
		Protein:      t.san.Number(FieldProtein, raw.Protein, raw.Line),
		Fat:          t.san.Number(FieldFat, raw.Fat, raw.Line),
		Carbohydrate: t.san.Number(FieldCarbohydrate, raw.Carbohydrate, raw.Line),
	}

	if t.san.Degraded() > before {
		t.rowsDegraded++
	}
	return f
}

// RowsDegraded returns how many transformed rows had at least one degraded token.
func (t *Transformer) RowsDegraded() int { return t.rowsDegraded }

// TokensDegraded returns the total number of degraded tokens.
func (t *Transformer) TokensDegraded() int { return t.san.Degraded() }
