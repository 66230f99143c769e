package aggregation

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingPricingEntry is returned when a group scheme has no hectare price
	ErrMissingPricingEntry = errors.New("missing pricing entry")
	// ErrFarmNotFound is returned when an instrument points at a farm the batch does not hold
	ErrFarmNotFound = errors.New("farm not found")
)

// FarmError is a structural failure of one aggregated farm
type FarmError struct {
	FarmID      string
	GroupScheme string
	Err         error
}

func (e *FarmError) Error() string {
	return fmt.Sprintf("farm %s (group scheme %q): %v", e.FarmID, e.GroupScheme, e.Err)
}

func (e *FarmError) Unwrap() error {
	return e.Err
}

// Omission is a row excluded from the batch, with the reason
type Omission struct {
	FarmID      string `json:"farmId"`
	UnitNumber  string `json:"unitNumber"`
	GenusName   string `json:"genusName"`
	SpeciesName string `json:"speciesName"`
	Reason      string `json:"reason"`
	Err         error  `json:"-"`
}

// FarmFailure is a farm dropped from the result, with the reason
type FarmFailure struct {
	FarmID      string `json:"farmId"`
	GroupScheme string `json:"groupScheme"`
	Reason      string `json:"reason"`
	Err         error  `json:"-"`
}

// Report accounts for every row and farm the pipeline did not return
type Report struct {
	InputRows         int           `json:"inputRows"`
	HybridsRemoved    int           `json:"hybridsRemoved"`
	Omitted           []Omission    `json:"omitted"`
	InactiveRemoved   int           `json:"inactiveRemoved"`
	Groups            int           `json:"groups"`
	DuplicatesRemoved int           `json:"duplicatesRemoved"`
	FarmFailures      []FarmFailure `json:"farmFailures"`
	Farms             int           `json:"farms"`
}
