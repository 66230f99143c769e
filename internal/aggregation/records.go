package aggregation

import "time"

// FarmUnit is one survey unit row as handed over by the storage layer
type FarmUnit struct {
	FarmID        string
	Latitude      float64
	Longitude     float64
	Province      string
	Country       string
	GroupScheme   string
	FarmSize      float64 // hectares
	UnitNumber    string
	EffectiveArea float64 // hectares
	ProductGroup  string
	GenusName     string
	SpeciesName   string
	PlantAge      float64 // years
	SphaSurvival  *float64
	IsActive      *bool
}

// HectarePrice is the price of one hectare for a group scheme
type HectarePrice struct {
	GroupScheme string  `json:"groupScheme"`
	HectareUSD  float64 `json:"hectareUsd"`
}

// Farm is the aggregated profile of one physical farm
type Farm struct {
	FarmID         string   `json:"farmId"`
	GroupScheme    string   `json:"groupScheme"`
	Country        string   `json:"country"`
	Province       string   `json:"province"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	IsActive       *bool    `json:"isActive,omitempty"`
	FarmSize       float64  `json:"farmSize"`      // hectares
	FarmRadius     float64  `json:"farmRadius"`    // meters
	UnitNumber     int      `json:"unitNumber"`    // farm units count
	EffectiveArea  float64  `json:"effectiveArea"` // hectares
	SphaSurvival   *float64 `json:"sphaSurvival"`  // stems per hectare
	PlantAge       float64  `json:"plantAge"`      // average
	PlantCO2       float64  `json:"plantCo2"`      // pounds per tree
	FarmCO2y       float64  `json:"farmCo2y"`      // tons per hectare per year
	FarmCO2d       float64  `json:"farmCo2d"`      // tons per hectare per day
	TreesPlanted   int64    `json:"treesPlanted"`  // estimated
	HectareUSD     float64  `json:"hectareUsd"`
	ProductGroup   []string `json:"productGroup"`
	GenusName      []string `json:"genusName"`
	SpeciesName    []string `json:"speciesName"`
	ScientificName []string `json:"scientificName"`

	species []speciesCO2
}

// speciesCO2 is the per-tree CO2 of one constituent species of a farm
type speciesCO2 struct {
	key     string
	genus   string
	species string
	co2     float64
}

// Instrument is the tokenized farm area an NFT represents
type Instrument struct {
	NftID         string
	FarmID        string
	NftArea       float64 // hectares
	MintStartDate time.Time
}

// NFTCarbon is the prorated sequestration of an instrument since mint
type NFTCarbon struct {
	NftID            string    `json:"nftId"`
	FarmID           string    `json:"farmId"`
	NftArea          float64   `json:"nftArea"`
	MintStartDate    time.Time `json:"mintStartDate"`
	ElapsedSeconds   float64   `json:"elapsedSeconds"`
	CO2TonsPerSecond float64   `json:"co2TonsPerSecond"`
	CO2Tons          float64   `json:"co2Tons"`
}
