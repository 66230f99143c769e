package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestBuildFarmUnitQuery_NoFilter(t *testing.T) {
	query, args := buildFarmUnitQuery(FarmFilter{})
	assert.NotContains(t, query, "WHERE")
	assert.Contains(t, query, "FROM farm_units")
	assert.Empty(t, args)
}

func TestBuildFarmUnitQuery_AllFilters(t *testing.T) {
	query, args := buildFarmUnitQuery(FarmFilter{
		FarmID:       " F1 ",
		Country:      "Thailand",
		ProductGroup: "Rubber",
		Active:       ptr(true),
		MinSize:      ptr(1.5),
		MaxSize:      ptr(40.0),
	})

	assert.Contains(t, query, "farm_id = $1")
	assert.Contains(t, query, "LOWER(country) = LOWER($2)")
	assert.Contains(t, query, "LOWER(product_group) = LOWER($3)")
	assert.Contains(t, query, "COALESCE(is_active, TRUE) = $4")
	assert.Contains(t, query, "farm_size >= $5")
	assert.Contains(t, query, "farm_size <= $6")
	assert.Equal(t, []any{"F1", "Thailand", "Rubber", true, 1.5, 40.0}, args)
}

func TestBuildFarmUnitQuery_Inactive(t *testing.T) {
	query, args := buildFarmUnitQuery(FarmFilter{Active: ptr(false), MaxSize: ptr(10.0)})
	assert.Contains(t, query, "is_active = $1 AND farm_size <= $2")
	assert.Equal(t, []any{false, 10.0}, args)
}

func TestBuildFarmUnitQuery_Locations(t *testing.T) {
	query, args := buildFarmUnitQuery(FarmFilter{
		Country:   "Thailand",
		Locations: []Location{{Latitude: 12.5, Longitude: 101.2}, {Latitude: 13, Longitude: 100}},
	})
	assert.Contains(t, query, "LOWER(country) = LOWER($1) AND ((latitude = $2 AND longitude = $3) OR (latitude = $4 AND longitude = $5))")
	assert.Equal(t, []any{"Thailand", 12.5, 101.2, 13.0, 100.0}, args)
}

func TestMigrationFiles_Order(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.sql", "001_a.sql", "README.md", "010_c.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "999_dir.sql"), 0o755))

	files, err := MigrationFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql", "010_c.sql"}, files)
}

func TestMigrationFiles_Shipped(t *testing.T) {
	files, err := MigrationFiles(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"001_create_farm_units.sql",
		"002_create_hectare_prices.sql",
		"003_create_nfts.sql",
	}, files)
}

func TestGeolocationRoundTrip(t *testing.T) {
	encoded, err := encodeGeolocation(nil)
	require.NoError(t, err)
	assert.Nil(t, encoded)

	encoded, err = encodeGeolocation(map[string]any{"lat": 12.5})
	require.NoError(t, err)
	text, ok := encoded.(string)
	require.True(t, ok)

	decoded, err := decodeGeolocation([]byte(text))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"lat": 12.5}, decoded)

	decoded, err = decodeGeolocation(nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}
