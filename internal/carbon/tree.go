// Package carbon estimates CO2 sequestration from allometric tree metrics.
//
// Tree mass follows the green weight model: trunk height in feet and
// diameter at breast height in inches give a green weight in pounds, which
// is reduced to dry matter, then carbon, then CO2 by the ratio of atomic
// weights. Plantation and NFT rates scale the per-tree figure by stem
// density, area and time.
package carbon

import (
	"fmt"

	"github.com/smukkama/farm-carbon/internal/species"
	"github.com/smukkama/farm-carbon/internal/units"
)

// AtomicWeights holds the atomic weights used for the CO2/carbon ratio
type AtomicWeights struct {
	Carbon        float64 `yaml:"carbon" json:"carbon"`
	CarbonDioxide float64 `yaml:"carbonDioxide" json:"carbonDioxide"`
}

// Validate rejects weights that would make the ratio undefined
func (a AtomicWeights) Validate() error {
	if err := checkDivisor("carbon atomic weight", a.Carbon); err != nil {
		return err
	}
	if a.CarbonDioxide <= 0 {
		return fmt.Errorf("carbon dioxide atomic weight must be positive, got %v", a.CarbonDioxide)
	}
	return nil
}

// GreenWeight returns the live weight of a tree in pounds using the default policy
func GreenWeight(heightFt, diameterIn, root float64) float64 {
	return DefaultPolicy().GreenWeight(heightFt, diameterIn, root)
}

// GreenWeight returns the live weight of a tree in pounds. The coefficient
// is a step function of the diameter, not interpolated.
func (p Policy) GreenWeight(heightFt, diameterIn, root float64) float64 {
	return p.Coefficient(diameterIn) * heightFt * diameterIn * diameterIn * (1 + root)
}

// DryWeight returns the dry weight in pounds
func DryWeight(greenWeight, dryMatter float64) float64 {
	return greenWeight * dryMatter
}

// CarbonWeight returns the carbon weight in pounds
func CarbonWeight(dryWeight, carbonConcentration float64) float64 {
	return dryWeight * carbonConcentration
}

// CO2Mass returns the CO2 sequestered for a carbon weight
func CO2Mass(carbonWeight, atomicCarbon, atomicCO2 float64) float64 {
	return carbonWeight * (atomicCO2 / atomicCarbon)
}

// Model binds the pure formulas to reference data
type Model struct {
	units  *units.Table
	atomic AtomicWeights
	policy Policy
	tonLb  float64
}

// NewModel validates the inputs and resolves the ton to pound factor once
func NewModel(table *units.Table, atomic AtomicWeights, policy Policy) (*Model, error) {
	if err := atomic.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	tonLb, err := table.Factor(units.KindWeight, units.Ton, units.Pound)
	if err != nil {
		return nil, fmt.Errorf("ton to pound factor: %w", err)
	}
	return &Model{units: table, atomic: atomic, policy: policy, tonLb: tonLb}, nil
}

// Policy returns the policy the model was built with
func (m *Model) Policy() Policy {
	return m.policy
}

// TonToPound returns the weight factor used by the rate formulas
func (m *Model) TonToPound() float64 {
	return m.tonLb
}

// TreeCO2 returns the CO2 sequestered by one tree of the species, in pounds
func (m *Model) TreeCO2(metric species.Metric) (float64, error) {
	height, err := m.units.Length(metric.Height.Mean(), metric.Height.Unit, units.Foot)
	if err != nil {
		return 0, fmt.Errorf("height of %s: %w", metric, err)
	}
	diameter, err := m.units.Length(metric.DiameterBreastHeight.Mean(), metric.DiameterBreastHeight.Unit, units.Inch)
	if err != nil {
		return 0, fmt.Errorf("diameter of %s: %w", metric, err)
	}

	green := m.policy.GreenWeight(height, diameter, metric.RootDryMass.Mean())
	dry := DryWeight(green, metric.DryBiomass.Mean())
	carbon := CarbonWeight(dry, metric.CarbonConcentration.Mean())

	return CO2Mass(carbon, m.atomic.Carbon, m.atomic.CarbonDioxide), nil
}
