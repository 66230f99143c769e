// Package reference loads the immutable reference tables the carbon model
// runs against and keeps the current snapshot behind an atomic pointer.
package reference

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smukkama/farm-carbon/internal/aggregation"
	"github.com/smukkama/farm-carbon/internal/carbon"
	"github.com/smukkama/farm-carbon/internal/species"
	"github.com/smukkama/farm-carbon/internal/units"
)

// File names inside the reference directory
const (
	AtomicWeightFile      = "atomic_weight.yaml"
	UnitConversionFile    = "unit_conversion.yaml"
	PlantationMetricsFile = "plantation_metrics.yaml"
)

// Snapshot is one consistent set of reference tables with the model and
// pipeline built on top of them. Nothing in a snapshot changes after Load.
type Snapshot struct {
	Units    *units.Table
	Species  *species.Table
	Atomic   carbon.AtomicWeights
	Model    *carbon.Model
	Pipeline *aggregation.Pipeline
	LoadedAt time.Time
}

// Options tune how a snapshot is assembled
type Options struct {
	Policy        carbon.Policy
	HybridMarkers []string
}

type conversionEntry struct {
	In     string  `yaml:"in"`
	Out    string  `yaml:"out"`
	Factor float64 `yaml:"factor"`
}

type conversionFile struct {
	Length []conversionEntry `yaml:"length"`
	Weight []conversionEntry `yaml:"weight"`
	Area   []conversionEntry `yaml:"area"`
}

// Load reads the three reference files from dir. Every conversion the
// model will need is checked here so a bad table never reaches a request.
func Load(dir string, opts Options) (*Snapshot, error) {
	var atomic carbon.AtomicWeights
	if err := readYAML(filepath.Join(dir, AtomicWeightFile), &atomic); err != nil {
		return nil, err
	}

	var conversions conversionFile
	if err := readYAML(filepath.Join(dir, UnitConversionFile), &conversions); err != nil {
		return nil, err
	}
	table, err := units.NewTable(conversions.factors())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", UnitConversionFile, err)
	}

	var metrics []species.Metric
	if err := readYAML(filepath.Join(dir, PlantationMetricsFile), &metrics); err != nil {
		return nil, err
	}
	speciesTable, err := species.NewTable(metrics)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PlantationMetricsFile, err)
	}

	if err := checkConversions(table, speciesTable); err != nil {
		return nil, err
	}

	return build(table, speciesTable, atomic, opts)
}

// New assembles a snapshot from tables already in memory
func New(table *units.Table, speciesTable *species.Table, atomic carbon.AtomicWeights, opts Options) (*Snapshot, error) {
	if err := checkConversions(table, speciesTable); err != nil {
		return nil, err
	}
	return build(table, speciesTable, atomic, opts)
}

func build(table *units.Table, speciesTable *species.Table, atomic carbon.AtomicWeights, opts Options) (*Snapshot, error) {
	model, err := carbon.NewModel(table, atomic, opts.Policy)
	if err != nil {
		return nil, err
	}
	pipeline, err := aggregation.New(aggregation.Config{
		Model:         model,
		Species:       speciesTable,
		Units:         table,
		HybridMarkers: opts.HybridMarkers,
	})
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Units:    table,
		Species:  speciesTable,
		Atomic:   atomic,
		Model:    model,
		Pipeline: pipeline,
		LoadedAt: time.Now(),
	}, nil
}

// checkConversions verifies the pairs the model resolves at run time:
// species height to feet, diameter to inches, ton to pound and hectare to
// square meter.
func checkConversions(table *units.Table, speciesTable *species.Table) error {
	var errs []error
	if err := table.Require(units.KindWeight, units.Ton, units.Pound); err != nil {
		errs = append(errs, err)
	}
	if err := table.Require(units.KindArea, units.Hectare, units.SquareMeter); err != nil {
		errs = append(errs, err)
	}
	for _, m := range speciesTable.All() {
		if err := table.Require(units.KindLength, m.Height.Unit, units.Foot); err != nil {
			errs = append(errs, fmt.Errorf("%s height: %w", m, err))
		}
		if err := table.Require(units.KindLength, m.DiameterBreastHeight.Unit, units.Inch); err != nil {
			errs = append(errs, fmt.Errorf("%s diameter: %w", m, err))
		}
	}
	return errors.Join(errs...)
}

func (c conversionFile) factors() []units.Factor {
	var out []units.Factor
	add := func(kind units.Kind, entries []conversionEntry) {
		for _, e := range entries {
			out = append(out, units.Factor{Kind: kind, UnitIn: e.In, UnitOut: e.Out, Scale: e.Factor})
		}
	}
	add(units.KindLength, c.Length)
	add(units.KindWeight, c.Weight)
	add(units.KindArea, c.Area)
	return out
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read reference file: %w", err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
