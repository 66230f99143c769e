package species

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hevea() Metric {
	return Metric{
		GenusName:            "hevea",
		SpeciesName:          "brasiliensis",
		Height:               Measure{Samples: []float64{20, 25, 30}, Unit: "m"},
		DiameterBreastHeight: Measure{Samples: []float64{30, 35}, Unit: "cm"},
		RootDryMass:          Measure{Samples: []float64{0.2}},
		DryBiomass:           Measure{Samples: []float64{0.5}},
		CarbonConcentration:  Measure{Samples: []float64{0.48, 0.52}},
	}
}

func TestTable_Resolve(t *testing.T) {
	table, err := NewTable([]Metric{hevea()})
	require.NoError(t, err)

	m, err := table.Resolve("  Hevea ", "BRASILIENSIS\t")
	require.NoError(t, err)
	assert.Equal(t, "hevea", m.GenusName)
	assert.Equal(t, 25.0, m.Height.Mean())
	assert.InDelta(t, 0.5, m.CarbonConcentration.Mean(), 1e-12)
}

func TestTable_ResolveNormalisesReferenceCopy(t *testing.T) {
	ref := hevea()
	ref.GenusName = " Hevea"
	ref.SpeciesName = "Brasiliensis "
	table, err := NewTable([]Metric{ref})
	require.NoError(t, err)

	_, err = table.Resolve("hevea", "brasiliensis")
	assert.NoError(t, err)
}

func TestTable_ResolveNotFound(t *testing.T) {
	table, err := NewTable([]Metric{hevea()})
	require.NoError(t, err)

	_, err = table.Resolve("Eucalyptus", "GxN")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvedSpecies))

	var lookupErr *LookupError
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, 0, lookupErr.Matches)
}

func TestTable_ResolveAmbiguous(t *testing.T) {
	dup := hevea()
	dup.GenusName = "HEVEA"
	table, err := NewTable([]Metric{hevea(), dup})
	require.NoError(t, err)

	_, err = table.Resolve("hevea", "brasiliensis")
	var lookupErr *LookupError
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, 2, lookupErr.Matches)
	assert.ErrorIs(t, err, ErrUnresolvedSpecies)
}

func TestNewTable_RejectsEmptySamples(t *testing.T) {
	bad := hevea()
	bad.DryBiomass.Samples = nil
	_, err := NewTable([]Metric{bad})
	assert.Error(t, err)

	bad = hevea()
	bad.Height.Unit = ""
	_, err = NewTable([]Metric{bad})
	assert.Error(t, err)
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
}

func TestTable_ResolveKeepsSpacedNamesApart(t *testing.T) {
	left := hevea()
	left.GenusName = "a b"
	left.SpeciesName = "c"
	right := hevea()
	right.GenusName = "a"
	right.SpeciesName = "b c"
	right.Height.Samples = []float64{10}

	assert.NotEqual(t, Key("a b", "c"), Key("a", "b c"))

	table, err := NewTable([]Metric{left, right})
	require.NoError(t, err)

	m, err := table.Resolve("a b", "c")
	require.NoError(t, err)
	assert.Equal(t, 25.0, m.Height.Mean())

	m, err = table.Resolve("a", "b c")
	require.NoError(t, err)
	assert.Equal(t, 10.0, m.Height.Mean())
	assert.Equal(t, "a b c", m.String())
}
