package species

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnresolvedSpecies is returned when a genus/species pair has no unique reference entry
var ErrUnresolvedSpecies = errors.New("unresolved species")

// LookupError carries the pair that failed and how many entries matched it
type LookupError struct {
	Genus   string
	Species string
	Matches int
}

func (e *LookupError) Error() string {
	if e.Matches == 0 {
		return fmt.Sprintf("no reference metrics for %q %q", e.Genus, e.Species)
	}
	return fmt.Sprintf("ambiguous reference metrics for %q %q: %d matches", e.Genus, e.Species, e.Matches)
}

func (e *LookupError) Unwrap() error {
	return ErrUnresolvedSpecies
}

// Measure is a sequence of repeated field samples with an optional unit
type Measure struct {
	Samples []float64 `yaml:"measure" json:"measure"`
	Unit    string    `yaml:"unit,omitempty" json:"unit,omitempty"`
}

// Mean returns the arithmetic mean of the samples
func (m Measure) Mean() float64 {
	return Mean(m.Samples)
}

// Metric is the reference record for one genus/species pair
type Metric struct {
	GenusName            string  `yaml:"genusName" json:"genusName"`
	SpeciesName          string  `yaml:"speciesName" json:"speciesName"`
	Height               Measure `yaml:"height" json:"height"`
	DiameterBreastHeight Measure `yaml:"diameterBreastHeight" json:"diameterBreastHeight"`
	RootDryMass          Measure `yaml:"rootDryMass" json:"rootDryMass"`
	DryBiomass           Measure `yaml:"dryBiomass" json:"dryBiomass"`
	CarbonConcentration  Measure `yaml:"carbonConcentration" json:"carbonConcentration"`
}

// Key is the normalised lookup key for the metric
func (m Metric) Key() string {
	return Key(m.GenusName, m.SpeciesName)
}

// String names the metric as "genus species"
func (m Metric) String() string {
	return normalize(m.GenusName) + " " + normalize(m.SpeciesName)
}

// Validate rejects records the model cannot consume
func (m Metric) Validate() error {
	if normalize(m.GenusName) == "" || normalize(m.SpeciesName) == "" {
		return fmt.Errorf("metric has empty genus or species name")
	}
	measures := []struct {
		name string
		m    Measure
		unit bool
	}{
		{"height", m.Height, true},
		{"diameterBreastHeight", m.DiameterBreastHeight, true},
		{"rootDryMass", m.RootDryMass, false},
		{"dryBiomass", m.DryBiomass, false},
		{"carbonConcentration", m.CarbonConcentration, false},
	}
	for _, entry := range measures {
		if len(entry.m.Samples) == 0 {
			return fmt.Errorf("%s: %s has no samples", m, entry.name)
		}
		if entry.unit && entry.m.Unit == "" {
			return fmt.Errorf("%s: %s has no unit", m, entry.name)
		}
	}
	return nil
}

// Table is the read-only species reference table
type Table struct {
	metrics []Metric
	byKey   map[string][]int
}

// NewTable indexes the metrics by normalised genus and species. Duplicate
// keys are kept so that lookups on them fail as ambiguous.
func NewTable(metrics []Metric) (*Table, error) {
	t := &Table{
		metrics: make([]Metric, 0, len(metrics)),
		byKey:   make(map[string][]int, len(metrics)),
	}
	for _, m := range metrics {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		m.GenusName = normalize(m.GenusName)
		m.SpeciesName = normalize(m.SpeciesName)
		t.byKey[m.Key()] = append(t.byKey[m.Key()], len(t.metrics))
		t.metrics = append(t.metrics, m)
	}
	return t, nil
}

// Resolve finds the unique reference entry for a genus/species pair.
// Matching is case-insensitive and ignores surrounding whitespace.
func (t *Table) Resolve(genus, species string) (Metric, error) {
	idx := t.byKey[Key(genus, species)]
	if len(idx) != 1 {
		return Metric{}, &LookupError{Genus: genus, Species: species, Matches: len(idx)}
	}
	return t.metrics[idx[0]], nil
}

// All returns a copy of the reference entries
func (t *Table) All() []Metric {
	out := make([]Metric, len(t.metrics))
	copy(out, t.metrics)
	return out
}

// Len returns the number of reference entries
func (t *Table) Len() int {
	return len(t.metrics)
}

// Key builds the lookup key for a genus/species pair. Names may contain
// spaces, so the parts are joined with a NUL byte.
func Key(genus, species string) string {
	return normalize(genus) + "\x00" + normalize(species)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Mean returns the arithmetic mean; an empty slice has mean 0
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
