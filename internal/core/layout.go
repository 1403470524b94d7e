package core

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Layout maps each food field to a zero-based column index in the input.
// The header line is never consulted; positions are taken as given.
type Layout struct {
	Code         int `yaml:"food_code"`
	Name         int `yaml:"food_name"`
	Category     int `yaml:"category"`
	ServingSize  int `yaml:"serving_size"`
	Calories     int `yaml:"calories"`
	Protein      int `yaml:"protein"`
	Fat          int `yaml:"fat"`
	Carbohydrate int `yaml:"carbohydrate"`
}

// DefaultLayout is the column layout of the public food nutrition dataset.
func DefaultLayout() Layout {
	return Layout{
		Code:         0,
		Name:         1,
		Category:     7,
		ServingSize:  16,
		Calories:     17,
		Protein:      19,
		Fat:          20,
		Carbohydrate: 22,
	}
}

// LayoutFromIndices builds a layout from 8 indices in field order:
// code, name, category, servingSize, calories, protein, fat, carbohydrate.
func LayoutFromIndices(idx []int) (Layout, error) {
	if len(idx) != 8 {
		return Layout{}, fmt.Errorf("layout needs 8 column indices, got %d", len(idx))
	}
	l := Layout{
		Code:         idx[0],
		Name:         idx[1],
		Category:     idx[2],
		ServingSize:  idx[3],
		Calories:     idx[4],
		Protein:      idx[5],
		Fat:          idx[6],
		Carbohydrate: idx[7],
	}
	return l, l.Validate()
}

type layoutFile struct {
	Columns Layout `yaml:"columns"`
}

// LoadLayout reads a YAML layout file of the form
//
//	columns:
//	  food_code: 0
//	  calories: 17
//
// Fields the file does not name keep their DefaultLayout index.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout file: %w", err)
	}

	lf := layoutFile{Columns: DefaultLayout()}
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return Layout{}, fmt.Errorf("parse layout file %s: %w", path, err)
	}
	if err := lf.Columns.Validate(); err != nil {
		return Layout{}, fmt.Errorf("layout file %s: %w", path, err)
	}
	return lf.Columns, nil
}

// Validate rejects negative indices.
func (l Layout) Validate() error {
	var errs []error
	for _, c := range l.columns() {
		if c.index < 0 {
			errs = append(errs, fmt.Errorf("column %s has negative index %d", c.field, c.index))
		}
	}
	return errors.Join(errs...)
}

type layoutColumn struct {
	field string
	index int
}

func (l Layout) columns() []layoutColumn {
	return []layoutColumn{
		{FieldCode, l.Code},
		{FieldName, l.Name},
		{FieldCategory, l.Category},
		{FieldServingSize, l.ServingSize},
		{FieldCalories, l.Calories},
		{FieldProtein, l.Protein},
		{FieldFat, l.Fat},
		{FieldCarbohydrate, l.Carbohydrate},
	}
}

// Extract picks the layout's columns out of a split line. Columns beyond the
// end of a short line yield empty tokens.
func (l Layout) Extract(fields []string, line int) RawRecord {
	at := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	return RawRecord{
		Code:         at(l.Code),
		Name:         at(l.Name),
		Category:     at(l.Category),
		ServingSize:  at(l.ServingSize),
		Calories:     at(l.Calories),
		Protein:      at(l.Protein),
		Fat:          at(l.Fat),
		Carbohydrate: at(l.Carbohydrate),
		Line:         line,
	}
}
