package reference

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/smukkama/farm-carbon/internal/carbon"
	"github.com/smukkama/farm-carbon/internal/species"
	"github.com/smukkama/farm-carbon/internal/units"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func defaultOptions() Options {
	return Options{Policy: carbon.DefaultPolicy()}
}

func writeRefdata(t *testing.T, conversions, metrics string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		AtomicWeightFile:      "carbon: 12\ncarbonDioxide: 44\n",
		UnitConversionFile:    conversions,
		PlantationMetricsFile: metrics,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

const scenarioConversions = `
length:
  - {in: cm, out: in, factor: 0.3937007874015748}
weight:
  - {in: ton, out: lb, factor: 2000}
area:
  - {in: ha, out: m2, factor: 10000}
`

const scenarioMetrics = `
- genusName: Hevea
  speciesName: Brasiliensis
  height: {measure: [60], unit: ft}
  diameterBreastHeight: {measure: [12], unit: in}
  rootDryMass: {measure: [0.2]}
  dryBiomass: {measure: [0.5]}
  carbonConcentration: {measure: [0.5]}
`

func TestLoad_ShippedReferenceData(t *testing.T) {
	snap, err := Load(filepath.Join("..", "..", "refdata"), defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, carbon.AtomicWeights{Carbon: 12, CarbonDioxide: 44}, snap.Atomic)
	assert.Equal(t, 4, snap.Species.Len())

	tonLb, err := snap.Units.Factor(units.KindWeight, units.Ton, units.Pound)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, tonLb)

	for _, m := range snap.Species.All() {
		co2, err := snap.Model.TreeCO2(m)
		require.NoError(t, err, m.String())
		assert.Greater(t, co2, 0.0, m.String())
	}
	assert.NotNil(t, snap.Pipeline)
}

func TestLoad_Scenario(t *testing.T) {
	dir := writeRefdata(t, scenarioConversions, scenarioMetrics)

	snap, err := Load(dir, defaultOptions())
	require.NoError(t, err)

	metric, err := snap.Species.Resolve("hevea", "brasiliensis")
	require.NoError(t, err)
	co2, err := snap.Model.TreeCO2(metric)
	require.NoError(t, err)
	assert.InDelta(t, 1425.6, co2, 1e-9)
}

func TestLoad_MissingSpeciesConversion(t *testing.T) {
	metrics := `
- genusName: tectona
  speciesName: grandis
  height: {measure: [30], unit: m}
  diameterBreastHeight: {measure: [40], unit: cm}
  rootDryMass: {measure: [0.2]}
  dryBiomass: {measure: [0.6]}
  carbonConcentration: {measure: [0.5]}
`
	dir := writeRefdata(t, scenarioConversions, metrics)

	_, err := Load(dir, defaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, units.ErrUnsupportedConversion)
	assert.Contains(t, err.Error(), "tectona grandis height")
}

func TestLoad_MissingModelConversions(t *testing.T) {
	conversions := `
length:
  - {in: cm, out: in, factor: 0.3937007874015748}
`
	dir := writeRefdata(t, conversions, scenarioMetrics)

	_, err := Load(dir, defaultOptions())
	require.Error(t, err)

	var convErr *units.ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Contains(t, err.Error(), "ton")
	assert.Contains(t, err.Error(), "ha")
}

func TestLoad_EmptySamples(t *testing.T) {
	metrics := `
- genusName: hevea
  speciesName: brasiliensis
  height: {measure: [], unit: ft}
  diameterBreastHeight: {measure: [12], unit: in}
  rootDryMass: {measure: [0.2]}
  dryBiomass: {measure: [0.5]}
  carbonConcentration: {measure: [0.5]}
`
	dir := writeRefdata(t, scenarioConversions, metrics)

	_, err := Load(dir, defaultOptions())
	assert.Error(t, err)
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"), defaultOptions())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_CurrentAndSwap(t *testing.T) {
	store := NewStore(nil)
	_, err := store.Current()
	assert.ErrorIs(t, err, ErrNotLoaded)

	first := &Snapshot{LoadedAt: time.Unix(1, 0)}
	second := &Snapshot{LoadedAt: time.Unix(2, 0)}

	assert.Nil(t, store.Swap(first))
	assert.Same(t, first, store.Swap(second))

	got, err := store.Current()
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestStore_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	snaps := make([]*Snapshot, 2)
	for i := range snaps {
		table, err := units.NewTable([]units.Factor{{Kind: units.KindWeight, UnitIn: units.Ton, UnitOut: units.Pound, Scale: float64(1000 * (i + 1))}})
		require.NoError(t, err)
		snaps[i] = &Snapshot{Units: table, Atomic: carbon.AtomicWeights{Carbon: float64(i + 1), CarbonDioxide: float64(i + 1)}}
	}
	store := NewStore(snaps[0])

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap, err := store.Current()
				if !assert.NoError(t, err) {
					return
				}
				scale, _ := snap.Units.Factor(units.KindWeight, units.Ton, units.Pound)
				assert.Equal(t, snap.Atomic.Carbon*1000, scale)
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		store.Swap(snaps[i%2])
	}
	close(stop)
	wg.Wait()
}

func TestRefresher_KeepsSnapshotOnFailure(t *testing.T) {
	good := &Snapshot{LoadedAt: time.Unix(1, 0)}
	store := NewStore(good)

	var calls atomic.Int32
	loader := func() (*Snapshot, error) {
		calls.Add(1)
		return nil, errors.New("plantation metrics unreadable")
	}

	var failures atomic.Int32
	r := NewRefresher(store, loader, time.Hour, zap.NewNop(), WithReloadHook(func(err error) {
		if err != nil {
			failures.Add(1)
		}
	}))

	assert.Error(t, r.Reload())
	got, err := store.Current()
	require.NoError(t, err)
	assert.Same(t, good, got)
	assert.Equal(t, int32(1), failures.Load())
}

func TestRefresher_ReloadsDoNotOverlap(t *testing.T) {
	store := NewStore(nil)
	unitTable, err := units.NewTable(nil)
	require.NoError(t, err)
	speciesTable, err := species.NewTable(nil)
	require.NoError(t, err)

	var seq, active, maxActive atomic.Int32
	loader := func() (*Snapshot, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		version := seq.Add(1)
		// the first read is the slowest, so without ordering it would land last
		if version == 1 {
			time.Sleep(20 * time.Millisecond)
		}
		return &Snapshot{Units: unitTable, Species: speciesTable, LoadedAt: time.Unix(int64(version), 0)}, nil
	}
	r := NewRefresher(store, loader, time.Hour, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.Reload())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
	got, err := store.Current()
	require.NoError(t, err)
	assert.Equal(t, time.Unix(8, 0), got.LoadedAt)
}

func TestRefresher_PeriodicReload(t *testing.T) {
	dir := writeRefdata(t, scenarioConversions, scenarioMetrics)
	initial, err := Load(dir, defaultOptions())
	require.NoError(t, err)
	store := NewStore(initial)

	var reloads atomic.Int32
	r := NewRefresher(store, func() (*Snapshot, error) {
		return Load(dir, defaultOptions())
	}, 10*time.Millisecond, nil, WithReloadHook(func(err error) {
		if err == nil {
			reloads.Add(1)
		}
	}))
	require.NoError(t, r.Start())
	defer r.Stop()

	assert.Eventually(t, func() bool { return reloads.Load() >= 2 }, time.Second, 5*time.Millisecond)

	got, err := store.Current()
	require.NoError(t, err)
	assert.NotSame(t, initial, got)
	_, err = got.Species.Resolve("HEVEA", " brasiliensis ")
	assert.NoError(t, err)
}

func TestRefresher_WatchReloadsOnChange(t *testing.T) {
	dir := writeRefdata(t, scenarioConversions, scenarioMetrics)
	initial, err := Load(dir, defaultOptions())
	require.NoError(t, err)
	store := NewStore(initial)

	r := NewRefresher(store, func() (*Snapshot, error) {
		return Load(dir, defaultOptions())
	}, time.Hour, nil, WithDebounce(10*time.Millisecond))
	require.NoError(t, r.Start())
	defer r.Stop()
	require.NoError(t, r.Watch(dir))
	assert.Error(t, r.Watch(dir))

	metrics := scenarioMetrics + `
- genusName: acacia
  speciesName: mangium
  height: {measure: [40], unit: ft}
  diameterBreastHeight: {measure: [8], unit: in}
  rootDryMass: {measure: [0.2]}
  dryBiomass: {measure: [0.5]}
  carbonConcentration: {measure: [0.5]}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, PlantationMetricsFile), []byte(metrics), 0o644))

	assert.Eventually(t, func() bool {
		snap, err := store.Current()
		return err == nil && snap.Species.Len() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRefresher_WatchMissingDirectory(t *testing.T) {
	r := NewRefresher(NewStore(nil), func() (*Snapshot, error) { return nil, errors.New("unused") }, time.Hour, nil)
	defer r.Stop()

	assert.Error(t, r.Watch(filepath.Join(t.TempDir(), "nope")))
}

func TestNew_FromTables(t *testing.T) {
	table, err := units.NewTable([]units.Factor{
		{Kind: units.KindWeight, UnitIn: units.Ton, UnitOut: units.Pound, Scale: 2000},
		{Kind: units.KindArea, UnitIn: units.Hectare, UnitOut: units.SquareMeter, Scale: 10000},
	})
	require.NoError(t, err)
	speciesTable, err := species.NewTable(nil)
	require.NoError(t, err)

	snap, err := New(table, speciesTable, carbon.AtomicWeights{Carbon: 12, CarbonDioxide: 44}, defaultOptions())
	require.NoError(t, err)
	assert.NotNil(t, snap.Model)

	_, err = New(table, speciesTable, carbon.AtomicWeights{}, defaultOptions())
	assert.Error(t, err)
}
