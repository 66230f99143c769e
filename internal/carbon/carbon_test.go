package carbon

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/smukkama/farm-carbon/internal/species"
	"github.com/smukkama/farm-carbon/internal/units"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestModel(t *testing.T) *Model {
	t.Helper()
	table, err := units.NewTable([]units.Factor{
		{Kind: units.KindLength, UnitIn: units.Centimeter, UnitOut: units.Inch, Scale: 1 / 2.54},
		{Kind: units.KindLength, UnitIn: units.Meter, UnitOut: units.Foot, Scale: 1 / 0.3048},
		{Kind: units.KindWeight, UnitIn: units.Ton, UnitOut: units.Pound, Scale: 2000},
	})
	require.NoError(t, err)
	model, err := NewModel(table, AtomicWeights{Carbon: 12, CarbonDioxide: 44}, DefaultPolicy())
	require.NoError(t, err)
	return model
}

func scenarioMetric() species.Metric {
	return species.Metric{
		GenusName:            "hevea",
		SpeciesName:          "brasiliensis",
		Height:               species.Measure{Samples: []float64{60}, Unit: units.Foot},
		DiameterBreastHeight: species.Measure{Samples: []float64{12}, Unit: units.Inch},
		RootDryMass:          species.Measure{Samples: []float64{0.2}},
		DryBiomass:           species.Measure{Samples: []float64{0.5}},
		CarbonConcentration:  species.Measure{Samples: []float64{0.5}},
	}
}

func TestGreenWeightCoefficientBoundary(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 0.15, p.Coefficient(11))
	assert.Equal(t, 0.25, p.Coefficient(10.999))
	assert.Equal(t, 0.15, p.Coefficient(30))

	// the step is not interpolated
	assert.InDelta(t, 0.25*10*121, GreenWeight(10, math.Nextafter(11, 0), 0), 1e-9)
	assert.InDelta(t, 0.15*10*121, GreenWeight(10, 11, 0), 1e-9)
}

func TestTreeChainScenario(t *testing.T) {
	green := GreenWeight(60, 12, 0.2)
	assert.InDelta(t, 1555.2, green, 1e-9)

	dry := DryWeight(green, 0.5)
	assert.InDelta(t, 777.6, dry, 1e-9)

	c := CarbonWeight(dry, 0.5)
	assert.InDelta(t, 388.8, c, 1e-9)

	assert.InDelta(t, 1425.6, CO2Mass(c, 12, 44), 1e-9)
}

func TestModel_TreeCO2(t *testing.T) {
	model := newTestModel(t)

	co2, err := model.TreeCO2(scenarioMetric())
	require.NoError(t, err)
	assert.InDelta(t, 1425.6, co2, 1e-9)
}

func TestModel_TreeCO2ConvertsUnits(t *testing.T) {
	model := newTestModel(t)

	metric := scenarioMetric()
	metric.Height = species.Measure{Samples: []float64{60 * 0.3048}, Unit: units.Meter}
	metric.DiameterBreastHeight = species.Measure{Samples: []float64{12 * 2.54}, Unit: units.Centimeter}

	co2, err := model.TreeCO2(metric)
	require.NoError(t, err)
	assert.InDelta(t, 1425.6, co2, 1e-6)
}

func TestModel_TreeCO2UnsupportedUnit(t *testing.T) {
	model := newTestModel(t)

	metric := scenarioMetric()
	metric.Height.Unit = "yd"

	_, err := model.TreeCO2(metric)
	assert.ErrorIs(t, err, units.ErrUnsupportedConversion)
}

func TestModel_TreeCO2LinearInCarbonConcentration(t *testing.T) {
	model := newTestModel(t)

	base := scenarioMetric()
	doubled := scenarioMetric()
	doubled.CarbonConcentration.Samples = []float64{1.0}

	a, err := model.TreeCO2(base)
	require.NoError(t, err)
	b, err := model.TreeCO2(doubled)
	require.NoError(t, err)
	assert.InDelta(t, 2*a, b, 1e-9)
}

func TestPlantationRateScenario(t *testing.T) {
	rate, err := PlantationRate(1425.6, 1000*DefaultPolicy().SurvivorshipFactor, 10, 2000)
	require.NoError(t, err)
	assert.InDelta(t, 64.152, rate, 1e-9)
	assert.InDelta(t, 64.152/365, PerDay(rate), 1e-12)
}

func TestPlantationRateLinearInTonFactor(t *testing.T) {
	a, err := PlantationRate(1425.6, 900, 10, 2000)
	require.NoError(t, err)
	b, err := PlantationRate(1425.6, 900, 10, 4000)
	require.NoError(t, err)
	assert.InDelta(t, a/2, b, 1e-12)
}

func TestPlantationRateInvalidDivisor(t *testing.T) {
	for _, age := range []float64{0, -1, math.NaN()} {
		_, err := PlantationRate(1425.6, 900, age, 2000)
		assert.ErrorIs(t, err, ErrInvalidDivisor)
	}

	_, err := PlantationRate(1425.6, 900, 10, 0)
	assert.ErrorIs(t, err, ErrInvalidDivisor)
}

func TestFarmRateEqualWeights(t *testing.T) {
	rate, err := FarmRate([]float64{10, 20, 60})
	require.NoError(t, err)
	assert.Equal(t, 30.0, rate)

	_, err = FarmRate(nil)
	assert.ErrorIs(t, err, ErrInvalidDivisor)
}

func TestNFTProration(t *testing.T) {
	// 1425.6 lb * 900 / 2000 = 641.52 t/ha; 2 ha over 1000 s
	rate, err := NFTProration(2, 900, 1425.6, 1000, 2000)
	require.NoError(t, err)
	assert.InDelta(t, 1.28304, rate, 1e-9)

	for _, elapsed := range []float64{0, -5} {
		_, err := NFTProration(2, 900, 1425.6, elapsed, 2000)
		assert.ErrorIs(t, err, ErrInvalidDivisor)
	}
}

func TestPolicy_SPHA(t *testing.T) {
	p := DefaultPolicy()
	zero := 0.0
	observed := 1000.0

	assert.Equal(t, 1.0, p.EffectiveSPHA(nil))
	assert.Equal(t, 1.0, p.EffectiveSPHA(&zero))
	negative := -250.0
	assert.Equal(t, 1.0, p.EffectiveSPHA(&negative))
	assert.InDelta(t, 0.9, p.DiscountedSPHA(&negative), 1e-12)
	notANumber := math.NaN()
	assert.Equal(t, 1.0, p.EffectiveSPHA(&notANumber))
	assert.InDelta(t, 900.0, p.DiscountedSPHA(&observed), 1e-9)

	p.SurvivorshipFactor = 0.8
	assert.InDelta(t, 800.0, p.DiscountedSPHA(&observed), 1e-9)
}

func TestNewModel_Validation(t *testing.T) {
	table, err := units.NewTable(nil)
	require.NoError(t, err)

	_, err = NewModel(table, AtomicWeights{Carbon: 12, CarbonDioxide: 44}, DefaultPolicy())
	assert.ErrorIs(t, err, units.ErrUnsupportedConversion)

	_, err = NewModel(table, AtomicWeights{Carbon: 0, CarbonDioxide: 44}, DefaultPolicy())
	assert.ErrorIs(t, err, ErrInvalidDivisor)

	bad := DefaultPolicy()
	bad.SurvivorshipFactor = 0
	_, err = NewModel(table, AtomicWeights{Carbon: 12, CarbonDioxide: 44}, bad)
	assert.Error(t, err)
}
