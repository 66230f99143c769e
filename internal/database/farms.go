package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/smukkama/farm-carbon/internal/aggregation"
)

// FarmFilter narrows the farm unit rows handed to the pipeline. Zero
// values do not filter.
type FarmFilter struct {
	FarmID       string
	Country      string
	ProductGroup string
	Active       *bool
	MinSize      *float64
	MaxSize      *float64
	// Locations keeps rows at any of the given coordinates
	Locations []Location
}

// Location is a farm's exact coordinates
type Location struct {
	Latitude  float64
	Longitude float64
}

const farmUnitColumns = `farm_id, latitude, longitude, province, country, group_scheme,
	farm_size, unit_number, effective_area, product_group, genus_name, species_name,
	plant_age, spha_survival, is_active`

// buildFarmUnitQuery renders the select for a filter with positional args
func buildFarmUnitQuery(f FarmFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.FarmID != "" {
		add("farm_id = $%d", strings.TrimSpace(f.FarmID))
	}
	if f.Country != "" {
		add("LOWER(country) = LOWER($%d)", strings.TrimSpace(f.Country))
	}
	if f.ProductGroup != "" {
		add("LOWER(product_group) = LOWER($%d)", strings.TrimSpace(f.ProductGroup))
	}
	if f.Active != nil {
		// rows without a lifecycle flag count as active
		if *f.Active {
			add("COALESCE(is_active, TRUE) = $%d", true)
		} else {
			add("is_active = $%d", false)
		}
	}
	if f.MinSize != nil {
		add("farm_size >= $%d", *f.MinSize)
	}
	if f.MaxSize != nil {
		add("farm_size <= $%d", *f.MaxSize)
	}
	if len(f.Locations) > 0 {
		points := make([]string, 0, len(f.Locations))
		for _, loc := range f.Locations {
			args = append(args, loc.Latitude, loc.Longitude)
			points = append(points, fmt.Sprintf("(latitude = $%d AND longitude = $%d)", len(args)-1, len(args)))
		}
		where = append(where, "("+strings.Join(points, " OR ")+")")
	}

	query := "SELECT " + farmUnitColumns + " FROM farm_units"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY farm_id, unit_number"
	return query, args
}

// ListFarmUnits loads the unit rows matching the filter
func (db *DB) ListFarmUnits(ctx context.Context, f FarmFilter) ([]aggregation.FarmUnit, error) {
	query, args := buildFarmUnitQuery(f)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query farm units: %w", err)
	}
	defer rows.Close()

	var units []aggregation.FarmUnit
	for rows.Next() {
		var (
			u      aggregation.FarmUnit
			spha   sql.NullFloat64
			active sql.NullBool
		)
		if err := rows.Scan(
			&u.FarmID, &u.Latitude, &u.Longitude, &u.Province, &u.Country, &u.GroupScheme,
			&u.FarmSize, &u.UnitNumber, &u.EffectiveArea, &u.ProductGroup, &u.GenusName, &u.SpeciesName,
			&u.PlantAge, &spha, &active,
		); err != nil {
			return nil, fmt.Errorf("failed to scan farm unit: %w", err)
		}
		if spha.Valid {
			u.SphaSurvival = &spha.Float64
		}
		if active.Valid {
			u.IsActive = &active.Bool
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// ListHectarePrices loads the price per hectare of every group scheme
func (db *DB) ListHectarePrices(ctx context.Context) ([]aggregation.HectarePrice, error) {
	rows, err := db.QueryContext(ctx, `SELECT group_scheme, hectare_usd FROM hectare_prices ORDER BY group_scheme`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hectare prices: %w", err)
	}
	defer rows.Close()

	var prices []aggregation.HectarePrice
	for rows.Next() {
		var p aggregation.HectarePrice
		if err := rows.Scan(&p.GroupScheme, &p.HectareUSD); err != nil {
			return nil, fmt.Errorf("failed to scan hectare price: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// UpsertHectarePrice sets the price of a group scheme
func (db *DB) UpsertHectarePrice(ctx context.Context, p aggregation.HectarePrice) error {
	query := `
		INSERT INTO hectare_prices (group_scheme, hectare_usd)
		VALUES ($1, $2)
		ON CONFLICT (group_scheme) DO UPDATE
		SET hectare_usd = EXCLUDED.hectare_usd, updated_at = NOW()
	`
	if _, err := db.ExecContext(ctx, query, strings.TrimSpace(p.GroupScheme), p.HectareUSD); err != nil {
		return fmt.Errorf("failed to upsert hectare price: %w", err)
	}
	return nil
}
