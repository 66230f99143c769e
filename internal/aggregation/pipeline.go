// Package aggregation turns a batch of farm unit rows into one carbon
// profile per physical farm.
//
// The pipeline is sequential and free of side effects: it filters hybrid
// cultivars, annotates every row with the CO2 of one tree of its species,
// groups rows into farms, removes coordinate duplicates, derives geometry,
// sequestration rates and tree counts, joins hectare prices and formats the
// result. Rows and farms that cannot be computed are accounted for in the
// Report instead of being coerced to zero.
package aggregation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smukkama/farm-carbon/internal/carbon"
	"github.com/smukkama/farm-carbon/internal/species"
	"github.com/smukkama/farm-carbon/internal/units"
)

// DefaultHybridMarkers are the species names used for hybrid and clone cultivars
var DefaultHybridMarkers = []string{"clones", "GxN"}

// Config wires a pipeline to one reference snapshot
type Config struct {
	Model         *carbon.Model
	Species       *species.Table
	Units         *units.Table
	HybridMarkers []string
}

// Pipeline aggregates farm unit rows against fixed reference data
type Pipeline struct {
	model   *carbon.Model
	species *species.Table
	haM2    float64
	hybrids map[string]struct{}
}

// Result is the output of one pipeline run
type Result struct {
	Farms  []Farm
	Report Report
}

// New creates a pipeline. The hectare to square meter factor is resolved
// here so a missing pair fails before any batch is processed.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Model == nil || cfg.Species == nil || cfg.Units == nil {
		return nil, errors.New("pipeline needs a carbon model, a species table and a conversion table")
	}

	haM2, err := cfg.Units.Factor(units.KindArea, units.Hectare, units.SquareMeter)
	if err != nil {
		return nil, fmt.Errorf("hectare to square meter factor: %w", err)
	}

	markers := cfg.HybridMarkers
	if markers == nil {
		markers = DefaultHybridMarkers
	}
	hybrids := make(map[string]struct{}, len(markers))
	for _, m := range markers {
		hybrids[m] = struct{}{}
	}

	return &Pipeline{
		model:   cfg.Model,
		species: cfg.Species,
		haM2:    haM2,
		hybrids: hybrids,
	}, nil
}

// Run aggregates a full batch. A group scheme without a hectare price
// aborts the run with every missing entry joined into the error.
func (p *Pipeline) Run(rows []FarmUnit, prices []HectarePrice) (*Result, error) {
	report := Report{InputRows: len(rows)}

	// Work on a private copy of the batch
	batch := make([]FarmUnit, len(rows))
	copy(batch, rows)

	batch, report.HybridsRemoved = p.removeHybrids(batch)

	annotated, omitted, err := p.annotate(batch)
	if err != nil {
		return nil, err
	}
	report.Omitted = omitted

	annotated, report.InactiveRemoved = keepActive(annotated)

	farms := groupByFarm(annotated)
	report.Groups = len(farms)

	farms, report.DuplicatesRemoved = Deduplicate(farms)

	addScientificNames(farms)
	p.addRadius(farms)
	farms, report.FarmFailures = p.addCO2(farms)
	addTreesPlanted(farms)

	if err := addHectarePrice(farms, prices); err != nil {
		return nil, err
	}

	farms = Format(farms)
	report.Farms = len(farms)

	return &Result{Farms: farms, Report: report}, nil
}

// removeHybrids drops rows whose species name is an exact hybrid marker
func (p *Pipeline) removeHybrids(rows []FarmUnit) ([]FarmUnit, int) {
	kept := rows[:0]
	for _, row := range rows {
		if _, hybrid := p.hybrids[row.SpeciesName]; hybrid {
			continue
		}
		kept = append(kept, row)
	}
	return kept, len(rows) - len(kept)
}

type annotatedUnit struct {
	FarmUnit
	plantCO2 float64
}

// annotate attaches the CO2 of one tree to every row. Rows whose species
// does not resolve are omitted and reported. A missing unit conversion is
// a configuration error and aborts the batch.
func (p *Pipeline) annotate(rows []FarmUnit) ([]annotatedUnit, []Omission, error) {
	type resolved struct {
		co2 float64
		err error
	}
	memo := make(map[string]resolved)

	out := make([]annotatedUnit, 0, len(rows))
	var omitted []Omission
	for _, row := range rows {
		key := species.Key(row.GenusName, row.SpeciesName)
		r, ok := memo[key]
		if !ok {
			r.co2, r.err = p.treeCO2(row.GenusName, row.SpeciesName)
			memo[key] = r
		}

		if r.err != nil {
			if errors.Is(r.err, units.ErrUnsupportedConversion) {
				return nil, nil, r.err
			}
			omitted = append(omitted, Omission{
				FarmID:      row.FarmID,
				UnitNumber:  row.UnitNumber,
				GenusName:   row.GenusName,
				SpeciesName: row.SpeciesName,
				Reason:      r.err.Error(),
				Err:         r.err,
			})
			continue
		}
		out = append(out, annotatedUnit{FarmUnit: row, plantCO2: r.co2})
	}
	return out, omitted, nil
}

func (p *Pipeline) treeCO2(genus, speciesName string) (float64, error) {
	metric, err := p.species.Resolve(genus, speciesName)
	if err != nil {
		return 0, err
	}
	return p.model.TreeCO2(metric)
}

// keepActive drops rows flagged inactive. Rows without a flag are kept.
func keepActive(rows []annotatedUnit) ([]annotatedUnit, int) {
	kept := rows[:0]
	for _, row := range rows {
		if row.IsActive != nil && !*row.IsActive {
			continue
		}
		kept = append(kept, row)
	}
	return kept, len(rows) - len(kept)
}

// addScientificNames lists the "Genus species" names of every farm
func addScientificNames(farms []Farm) {
	for i := range farms {
		names := make(map[string]struct{}, len(farms[i].species))
		for _, s := range farms[i].species {
			names[s.genus+" "+s.species] = struct{}{}
		}
		farms[i].ScientificName = sortedKeys(names)
	}
}

// addRadius models every farm as a circle of the same area
func (p *Pipeline) addRadius(farms []Farm) {
	for i := range farms {
		farms[i].FarmRadius = radius(farms[i].FarmSize, p.haM2)
	}
}

// addCO2 computes the yearly and daily farm rate as the equal-weight mean
// of the plantation rate of each constituent species. Farms with an
// undefined rate are dropped and reported.
func (p *Pipeline) addCO2(farms []Farm) ([]Farm, []FarmFailure) {
	policy := p.model.Policy()

	kept := farms[:0]
	var failures []FarmFailure
	for _, f := range farms {
		rate, err := p.farmRate(f, policy.DiscountedSPHA(f.SphaSurvival))
		if err != nil {
			farmErr := &FarmError{FarmID: f.FarmID, GroupScheme: f.GroupScheme, Err: err}
			failures = append(failures, FarmFailure{
				FarmID:      f.FarmID,
				GroupScheme: f.GroupScheme,
				Reason:      farmErr.Error(),
				Err:         farmErr,
			})
			continue
		}
		f.FarmCO2y = rate
		f.FarmCO2d = carbon.PerDay(rate)
		kept = append(kept, f)
	}
	return kept, failures
}

func (p *Pipeline) farmRate(f Farm, spha float64) (float64, error) {
	rates := make([]float64, 0, len(f.species))
	for _, s := range f.species {
		rate, err := p.model.PlantationRate(s.co2, spha, f.PlantAge)
		if err != nil {
			return 0, err
		}
		rates = append(rates, rate)
	}
	return carbon.FarmRate(rates)
}

// addTreesPlanted estimates the tree count from the observed stem density
func addTreesPlanted(farms []Farm) {
	for i := range farms {
		farms[i].TreesPlanted = treesPlanted(farms[i].SphaSurvival, farms[i].EffectiveArea)
	}
}

// addHectarePrice joins the hectare price of each farm's group scheme
func addHectarePrice(farms []Farm, prices []HectarePrice) error {
	byScheme := make(map[string]float64, len(prices))
	for _, price := range prices {
		byScheme[strings.TrimSpace(price.GroupScheme)] = price.HectareUSD
	}

	var errs []error
	for i := range farms {
		usd, ok := byScheme[farms[i].GroupScheme]
		if !ok {
			errs = append(errs, &FarmError{
				FarmID:      farms[i].FarmID,
				GroupScheme: farms[i].GroupScheme,
				Err:         ErrMissingPricingEntry,
			})
			continue
		}
		farms[i].HectareUSD = usd
	}
	return errors.Join(errs...)
}
