package core

import (
	"strings"
	"testing"
)

// csvLine builds a 23-column dataset line with the given fields placed at
// the default layout positions.
func csvLine(code, name, category, serving, calories, protein, fat, carbs string) string {
	cols := make([]string, 23)
	for i := range cols {
		cols[i] = "x"
	}
	l := DefaultLayout()
	cols[l.Code] = code
	cols[l.Name] = name
	cols[l.Category] = category
	cols[l.ServingSize] = serving
	cols[l.Calories] = calories
	cols[l.Protein] = protein
	cols[l.Fat] = fat
	cols[l.Carbohydrate] = carbs
	return strings.Join(cols, ",")
}

func TestTransform_MillilitreServingAndUnderscoredName(t *testing.T) {
	raw := DefaultLayout().Extract(strings.Split(csvLine("F001", "Chicken_Breast", "Meat", "200ml", "165", "31", "3.6", "0"), ","), 2)

	f := NewTransformer(nil).Transform(raw)

	if f.FoodCode != "F001" {
		t.Errorf("FoodCode = %q", f.FoodCode)
	}
	if f.FoodName != "Chicken Breast" {
		t.Errorf("FoodName = %q, want %q", f.FoodName, "Chicken Breast")
	}
	if f.Unit != "ml" {
		t.Errorf("Unit = %q, want ml", f.Unit)
	}
	if f.ServingSize != 200 {
		t.Errorf("ServingSize = %v, want 200", f.ServingSize)
	}
	if f.Calories != 165 || f.Protein != 31 || f.Fat != 3.6 || f.Carbohydrate != 0 {
		t.Errorf("nutrients = %v/%v/%v/%v", f.Calories, f.Protein, f.Fat, f.Carbohydrate)
	}
}

func TestTransform_PlaceholderCaloriesBecomeZero(t *testing.T) {
	var diags []Diagnostic
	tr := NewTransformer(NewSanitizer(ReporterFunc(func(d Diagnostic) { diags = append(diags, d) })))

	raw := RawRecord{Code: "F002", Name: "Rice", ServingSize: "210g", Calories: "N/A", Protein: "4.3", Fat: "0.4", Carbohydrate: "45", Line: 3}
	f := tr.Transform(raw)

	if f.Calories != 0 {
		t.Errorf("Calories = %v, want 0", f.Calories)
	}
	if f.Unit != "g" || f.ServingSize != 210 {
		t.Errorf("serving = %v %q", f.ServingSize, f.Unit)
	}
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(diags))
	}
	if diags[0].Field != FieldCalories || diags[0].Line != 3 || diags[0].Token != "N/A" {
		t.Errorf("diagnostic = %+v", diags[0])
	}
	if tr.RowsDegraded() != 1 {
		t.Errorf("RowsDegraded = %d, want 1", tr.RowsDegraded())
	}
}

func TestTransform_NameUnderscores(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Chicken_Breast", "Chicken Breast"},
		{"a__b", "a  b"},
		{"_lead_trail_", " lead trail "},
		{"No Underscore", "No Underscore"},
		{"김치_찌개", "김치 찌개"},
	}
	tr := NewTransformer(nil)
	for _, tt := range tests {
		if got := tr.Transform(RawRecord{Name: tt.in}).FoodName; got != tt.want {
			t.Errorf("name %q -> %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTransform_PassThroughAndDefaults(t *testing.T) {
	f := NewTransformer(nil).Transform(RawRecord{Code: " C-1 ", Category: "Soup_Stew"})

	if f.FoodCode != " C-1 " {
		t.Errorf("FoodCode = %q, code must pass through unchanged", f.FoodCode)
	}
	if f.Category != "Soup_Stew" {
		t.Errorf("Category = %q, category must pass through unchanged", f.Category)
	}
	if f.Unit != "g" {
		t.Errorf("Unit = %q, want g for empty serving size", f.Unit)
	}
	if f.ServingSize != 0 || f.Calories != 0 {
		t.Errorf("empty numerics should be 0, got %v %v", f.ServingSize, f.Calories)
	}
}

func TestTransform_Deterministic(t *testing.T) {
	raw := RawRecord{Code: "F9", Name: "Milk_Tea", ServingSize: "350ML", Calories: "1,020", Protein: "-", Fat: "2.2.2", Carbohydrate: "30g"}
	a := NewTransformer(nil).Transform(raw)
	b := NewTransformer(nil).Transform(raw)
	if a != b {
		t.Errorf("Transform not deterministic: %+v vs %+v", a, b)
	}
}

func TestTransform_CountsRowsNotTokens(t *testing.T) {
	tr := NewTransformer(NewSanitizer(ReporterFunc(func(Diagnostic) {})))

	tr.Transform(RawRecord{Calories: "1.1.1", Protein: "N/A", Fat: "-"})
	tr.Transform(RawRecord{Calories: "10"})
	tr.Transform(RawRecord{Carbohydrate: ".."})

	if tr.RowsDegraded() != 2 {
		t.Errorf("RowsDegraded = %d, want 2", tr.RowsDegraded())
	}
	if tr.TokensDegraded() != 4 {
		t.Errorf("TokensDegraded = %d, want 4", tr.TokensDegraded())
	}
}
