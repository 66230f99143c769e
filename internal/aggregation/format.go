package aggregation

import "strings"

// Format prepares farms for the boundary layer: every string value is
// stripped of surrounding whitespace. Field names follow the camelCase
// JSON tags of Farm.
func Format(farms []Farm) []Farm {
	out := make([]Farm, len(farms))
	for i, f := range farms {
		f.FarmID = strings.TrimSpace(f.FarmID)
		f.GroupScheme = strings.TrimSpace(f.GroupScheme)
		f.Country = strings.TrimSpace(f.Country)
		f.Province = strings.TrimSpace(f.Province)
		f.ProductGroup = trimAll(f.ProductGroup)
		f.GenusName = trimAll(f.GenusName)
		f.SpeciesName = trimAll(f.SpeciesName)
		f.ScientificName = trimAll(f.ScientificName)
		f.species = nil
		out[i] = f
	}
	return out
}

func trimAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
