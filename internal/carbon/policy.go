package carbon

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDivisor is returned instead of producing NaN or Inf
var ErrInvalidDivisor = errors.New("invalid divisor")

// DivisorError names the divisor that made a rate undefined
type DivisorError struct {
	Name  string
	Value float64
}

func (e *DivisorError) Error() string {
	return fmt.Sprintf("invalid divisor %s=%v", e.Name, e.Value)
}

func (e *DivisorError) Unwrap() error {
	return ErrInvalidDivisor
}

// checkDivisor rejects zero, negative and non-finite divisors
func checkDivisor(name string, value float64) error {
	if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return &DivisorError{Name: name, Value: value}
	}
	return nil
}

// Policy holds the adjustable constants of the model. They are policy
// choices, not values derived from the data.
type Policy struct {
	// DiameterThresholdIn splits small and large trees; a diameter equal
	// to the threshold is large.
	DiameterThresholdIn  float64
	SmallTreeCoefficient float64
	LargeTreeCoefficient float64

	// SurvivorshipFactor discounts surveyed stems per hectare for
	// mortality between survey and maturity.
	SurvivorshipFactor float64

	// DefaultSPHA replaces a missing or non-positive stem density.
	// TODO: drop once the survey backfills spha for the legacy farm units.
	DefaultSPHA float64
}

// DefaultPolicy returns the constants used by the reference model
func DefaultPolicy() Policy {
	return Policy{
		DiameterThresholdIn:  11,
		SmallTreeCoefficient: 0.25,
		LargeTreeCoefficient: 0.15,
		SurvivorshipFactor:   0.9,
		DefaultSPHA:          1,
	}
}

// Validate checks the policy for values that would break the arithmetic
func (p Policy) Validate() error {
	if p.DiameterThresholdIn <= 0 {
		return fmt.Errorf("diameter threshold must be positive, got %v", p.DiameterThresholdIn)
	}
	if p.SmallTreeCoefficient <= 0 || p.LargeTreeCoefficient <= 0 {
		return fmt.Errorf("green weight coefficients must be positive")
	}
	if p.SurvivorshipFactor <= 0 || p.SurvivorshipFactor > 1 {
		return fmt.Errorf("survivorship factor must be in (0, 1], got %v", p.SurvivorshipFactor)
	}
	if p.DefaultSPHA <= 0 {
		return fmt.Errorf("default spha must be positive, got %v", p.DefaultSPHA)
	}
	return nil
}

// Coefficient returns the green weight coefficient for a trunk diameter in inches
func (p Policy) Coefficient(diameterIn float64) float64 {
	if diameterIn < p.DiameterThresholdIn {
		return p.SmallTreeCoefficient
	}
	return p.LargeTreeCoefficient
}

// EffectiveSPHA substitutes the default for a missing, zero or negative
// stem density
func (p Policy) EffectiveSPHA(spha *float64) float64 {
	if spha == nil || !(*spha > 0) {
		return p.DefaultSPHA
	}
	return *spha
}

// DiscountedSPHA is the stem density passed to the plantation model
func (p Policy) DiscountedSPHA(spha *float64) float64 {
	return p.EffectiveSPHA(spha) * p.SurvivorshipFactor
}
