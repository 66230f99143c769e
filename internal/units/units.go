package units

import (
	"errors"
	"fmt"
)

// Kind is the physical quantity a conversion applies to
type Kind string

const (
	KindLength Kind = "length"
	KindWeight Kind = "weight"
	KindArea   Kind = "area"
)

// Unit symbols used by the reference data
const (
	Centimeter  = "cm"
	Inch        = "in"
	Meter       = "m"
	Foot        = "ft"
	Ton         = "ton"
	Pound       = "lb"
	Hectare     = "ha"
	SquareMeter = "m2"
)

// ErrUnsupportedConversion is returned when a pair is missing from the table
var ErrUnsupportedConversion = errors.New("unsupported unit conversion")

// ConversionError describes the pair that could not be converted
type ConversionError struct {
	Kind    Kind
	UnitIn  string
	UnitOut string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("unsupported %s conversion %q -> %q", e.Kind, e.UnitIn, e.UnitOut)
}

func (e *ConversionError) Unwrap() error {
	return ErrUnsupportedConversion
}

type pair struct {
	kind Kind
	in   string
	out  string
}

// Factor is one directed entry of a conversion table
type Factor struct {
	Kind    Kind
	UnitIn  string
	UnitOut string
	Scale   float64
}

// Table maps (kind, unitIn, unitOut) to a scale factor.
// A Table is immutable once built.
type Table struct {
	factors map[pair]float64
}

// NewTable builds a table from directed factors. Inverse directions are
// never derived; each one has to be listed.
func NewTable(factors []Factor) (*Table, error) {
	t := &Table{factors: make(map[pair]float64, len(factors))}
	for _, f := range factors {
		if f.UnitIn == "" || f.UnitOut == "" {
			return nil, fmt.Errorf("conversion factor for %s has an empty unit", f.Kind)
		}
		if f.Scale <= 0 {
			return nil, fmt.Errorf("conversion %s %q -> %q has non-positive scale %v",
				f.Kind, f.UnitIn, f.UnitOut, f.Scale)
		}
		key := pair{kind: f.Kind, in: f.UnitIn, out: f.UnitOut}
		if _, exists := t.factors[key]; exists {
			return nil, fmt.Errorf("duplicate conversion %s %q -> %q", f.Kind, f.UnitIn, f.UnitOut)
		}
		t.factors[key] = f.Scale
	}
	return t, nil
}

// Factor returns the scale for a pair. Identical units scale by 1.
func (t *Table) Factor(kind Kind, unitIn, unitOut string) (float64, error) {
	if unitIn == unitOut {
		return 1, nil
	}
	scale, ok := t.factors[pair{kind: kind, in: unitIn, out: unitOut}]
	if !ok {
		return 0, &ConversionError{Kind: kind, UnitIn: unitIn, UnitOut: unitOut}
	}
	return scale, nil
}

// Require checks at load time that a pair can be converted
func (t *Table) Require(kind Kind, unitIn, unitOut string) error {
	_, err := t.Factor(kind, unitIn, unitOut)
	return err
}

// Convert returns value * factor for the exact pair
func (t *Table) Convert(kind Kind, value float64, unitIn, unitOut string) (float64, error) {
	scale, err := t.Factor(kind, unitIn, unitOut)
	if err != nil {
		return 0, err
	}
	return value * scale, nil
}

// Length converts a length measure
func (t *Table) Length(value float64, unitIn, unitOut string) (float64, error) {
	return t.Convert(KindLength, value, unitIn, unitOut)
}

// Weight converts a weight measure
func (t *Table) Weight(value float64, unitIn, unitOut string) (float64, error) {
	return t.Convert(KindWeight, value, unitIn, unitOut)
}

// Area converts an area measure
func (t *Table) Area(value float64, unitIn, unitOut string) (float64, error) {
	return t.Convert(KindArea, value, unitIn, unitOut)
}

// Len returns the number of directed factors
func (t *Table) Len() int {
	return len(t.factors)
}
