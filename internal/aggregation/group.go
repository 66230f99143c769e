package aggregation

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/smukkama/farm-carbon/internal/species"
)

// farmKey identifies a farm: one group per scheme, location, size and
// lifecycle flag. A missing flag keys like an active one, the way
// keepActive treats it, so one farm is not split by partial flags.
type farmKey struct {
	groupScheme string
	country     string
	province    string
	farmID      string
	latitude    float64
	longitude   float64
	farmSize    float64
	isActive    string
}

func keyOf(u FarmUnit) farmKey {
	return farmKey{
		groupScheme: strings.TrimSpace(u.GroupScheme),
		country:     strings.TrimSpace(u.Country),
		province:    strings.TrimSpace(u.Province),
		farmID:      strings.TrimSpace(u.FarmID),
		latitude:    u.Latitude,
		longitude:   u.Longitude,
		farmSize:    u.FarmSize,
		isActive:    flag(u.IsActive),
	}
}

func flag(b *bool) string {
	if b == nil {
		return "true"
	}
	return strconv.FormatBool(*b)
}

func compareKeys(a, b farmKey) int {
	return cmp.Or(
		cmp.Compare(a.groupScheme, b.groupScheme),
		cmp.Compare(a.country, b.country),
		cmp.Compare(a.province, b.province),
		cmp.Compare(a.farmID, b.farmID),
		cmp.Compare(a.latitude, b.latitude),
		cmp.Compare(a.longitude, b.longitude),
		cmp.Compare(a.farmSize, b.farmSize),
		cmp.Compare(a.isActive, b.isActive),
	)
}

// compareUnits orders rows canonically so sums and means do not depend on
// the order the storage layer returned them in
func compareUnits(a, b annotatedUnit) int {
	return cmp.Or(
		compareKeys(keyOf(a.FarmUnit), keyOf(b.FarmUnit)),
		cmp.Compare(a.UnitNumber, b.UnitNumber),
		cmp.Compare(a.ProductGroup, b.ProductGroup),
		cmp.Compare(a.GenusName, b.GenusName),
		cmp.Compare(a.SpeciesName, b.SpeciesName),
		cmp.Compare(a.PlantAge, b.PlantAge),
		cmp.Compare(a.EffectiveArea, b.EffectiveArea),
		compareOptional(a.SphaSurvival, b.SphaSurvival),
	)
}

func compareOptional(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return cmp.Compare(*a, *b)
}

type accumulator struct {
	farm    Farm
	sphaSum float64
	sphaN   int
	ageSum  float64
	co2     map[string]speciesCO2
	groups  map[string]struct{}
	genera  map[string]struct{}
	names   map[string]struct{}
}

// groupByFarm aggregates rows per farm: units are counted, effective area
// summed, stem density and age averaged, and product groups, genera and
// species collected into sorted lists.
func groupByFarm(rows []annotatedUnit) []Farm {
	ordered := slices.Clone(rows)
	slices.SortStableFunc(ordered, compareUnits)

	var order []farmKey
	groups := make(map[farmKey]*accumulator)
	for _, row := range ordered {
		key := keyOf(row.FarmUnit)
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{
				farm: Farm{
					FarmID:      key.farmID,
					GroupScheme: key.groupScheme,
					Country:     key.country,
					Province:    key.province,
					Latitude:    key.latitude,
					Longitude:   key.longitude,
					FarmSize:    key.farmSize,
					IsActive:    row.IsActive,
				},
				co2:    make(map[string]speciesCO2),
				groups: make(map[string]struct{}),
				genera: make(map[string]struct{}),
				names:  make(map[string]struct{}),
			}
			groups[key] = acc
			order = append(order, key)
		}

		if acc.farm.IsActive == nil {
			acc.farm.IsActive = row.IsActive
		}
		acc.farm.UnitNumber++
		acc.farm.EffectiveArea += row.EffectiveArea
		acc.ageSum += row.PlantAge
		if row.SphaSurvival != nil && !math.IsNaN(*row.SphaSurvival) {
			acc.sphaSum += *row.SphaSurvival
			acc.sphaN++
		}

		genus := strings.TrimSpace(row.GenusName)
		name := strings.TrimSpace(row.SpeciesName)
		acc.groups[strings.TrimSpace(row.ProductGroup)] = struct{}{}
		acc.genera[genus] = struct{}{}
		acc.names[name] = struct{}{}

		speciesKey := species.Key(genus, name)
		if _, seen := acc.co2[speciesKey]; !seen {
			acc.co2[speciesKey] = speciesCO2{key: speciesKey, genus: genus, species: name, co2: row.plantCO2}
		}
	}

	farms := make([]Farm, 0, len(order))
	for _, key := range order {
		acc := groups[key]
		f := acc.farm

		f.PlantAge = acc.ageSum / float64(f.UnitNumber)
		if acc.sphaN > 0 {
			mean := acc.sphaSum / float64(acc.sphaN)
			f.SphaSurvival = &mean
		}

		f.ProductGroup = sortedKeys(acc.groups)
		f.GenusName = sortedKeys(acc.genera)
		f.SpeciesName = sortedKeys(acc.names)

		f.species = make([]speciesCO2, 0, len(acc.co2))
		for _, k := range sortedKeys(acc.co2) {
			f.species = append(f.species, acc.co2[k])
		}
		var co2Sum float64
		for _, s := range f.species {
			co2Sum += s.co2
		}
		f.PlantCO2 = co2Sum / float64(len(f.species))

		farms = append(farms, f)
	}
	return farms
}

// Deduplicate keeps one farm per coordinate pair: the first one ordered by
// group scheme ascending, then farm size descending. Running it on its own
// output changes nothing.
func Deduplicate(farms []Farm) ([]Farm, int) {
	ordered := slices.Clone(farms)
	slices.SortStableFunc(ordered, func(a, b Farm) int {
		return cmp.Or(
			cmp.Compare(a.GroupScheme, b.GroupScheme),
			cmp.Compare(b.FarmSize, a.FarmSize),
			cmp.Compare(a.FarmID, b.FarmID),
			cmp.Compare(a.Country, b.Country),
			cmp.Compare(a.Province, b.Province),
			cmp.Compare(flag(a.IsActive), flag(b.IsActive)),
		)
	})

	seen := make(map[[2]float64]struct{}, len(ordered))
	kept := make([]Farm, 0, len(ordered))
	for _, f := range ordered {
		coords := [2]float64{f.Latitude, f.Longitude}
		if _, dup := seen[coords]; dup {
			continue
		}
		seen[coords] = struct{}{}
		kept = append(kept, f)
	}

	slices.SortStableFunc(kept, compareFarms)
	return kept, len(farms) - len(kept)
}

func compareFarms(a, b Farm) int {
	return compareKeys(farmKeyOf(a), farmKeyOf(b))
}

func farmKeyOf(f Farm) farmKey {
	return farmKey{
		groupScheme: f.GroupScheme,
		country:     f.Country,
		province:    f.Province,
		farmID:      f.FarmID,
		latitude:    f.Latitude,
		longitude:   f.Longitude,
		farmSize:    f.FarmSize,
		isActive:    flag(f.IsActive),
	}
}

func radius(farmSize, haM2 float64) float64 {
	return math.Sqrt(farmSize * haM2 / math.Pi)
}

func treesPlanted(spha *float64, effectiveArea float64) int64 {
	if spha == nil || !(*spha > 0) {
		return 0
	}
	return int64(math.Floor(*spha * effectiveArea))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
