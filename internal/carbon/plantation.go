package carbon

import "fmt"

// DaysPerYear converts yearly rates into daily rates
const DaysPerYear = 365

// PlantationRate returns tons of CO2 per hectare per year for trees of the
// same age and size planted at the given stem density.
func PlantationRate(co2PerTreeLb, spha, ageYears, tonLb float64) (float64, error) {
	if err := checkDivisor("ton to pound factor", tonLb); err != nil {
		return 0, err
	}
	if err := checkDivisor("plant age", ageYears); err != nil {
		return 0, err
	}
	return (co2PerTreeLb * spha / tonLb) / ageYears, nil
}

// PerHectare returns tons of CO2 per hectare for a stand
func PerHectare(co2PerTreeLb, spha, tonLb float64) (float64, error) {
	if err := checkDivisor("ton to pound factor", tonLb); err != nil {
		return 0, err
	}
	return co2PerTreeLb * spha / tonLb, nil
}

// FarmRate combines per-species plantation rates with equal weights. The
// species share of farm area is not taken into account.
func FarmRate(rates []float64) (float64, error) {
	if len(rates) == 0 {
		return 0, &DivisorError{Name: "species count", Value: 0}
	}
	var sum float64
	for _, r := range rates {
		sum += r
	}
	return sum / float64(len(rates)), nil
}

// PerDay converts a yearly rate into a daily one
func PerDay(ratePerYear float64) float64 {
	return ratePerYear / DaysPerYear
}

// PlantationRate applies the model's ton factor
func (m *Model) PlantationRate(co2PerTreeLb, spha, ageYears float64) (float64, error) {
	rate, err := PlantationRate(co2PerTreeLb, spha, ageYears, m.tonLb)
	if err != nil {
		return 0, fmt.Errorf("plantation rate: %w", err)
	}
	return rate, nil
}
