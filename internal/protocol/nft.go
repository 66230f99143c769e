package protocol

import (
	"errors"
	"strings"
	"time"
)

// NFT is a minted land-tile instrument tied to one farm
type NFT struct {
	NftID          string         `json:"nftId"`
	NftName        string         `json:"nftName"`
	NftArea        float64        `json:"nftArea"`
	NftValueSol    float64        `json:"nftValueSol"`
	Geolocation    map[string]any `json:"geolocation,omitempty"`
	TileCount      int            `json:"tileCount"`
	CarbonURL      string         `json:"carbonUrl"`
	MintStatus     bool           `json:"mintStatus"`
	MintStartDate  time.Time      `json:"mintStartDate"`
	MintEndDate    *time.Time     `json:"mintEndDate,omitempty"`
	FarmID         string         `json:"farmId"`
	ScientificName []string       `json:"scientificName"`
	PlantStatus    string         `json:"plantStatus"`
}

// Validate checks the fields every stored NFT needs
func (n *NFT) Validate() error {
	var errs []error
	if strings.TrimSpace(n.NftID) == "" {
		errs = append(errs, errors.New("nftId is required"))
	}
	if strings.TrimSpace(n.FarmID) == "" {
		errs = append(errs, errors.New("farmId is required"))
	}
	if n.NftArea <= 0 {
		errs = append(errs, errors.New("nftArea must be positive"))
	}
	if n.MintStartDate.IsZero() {
		errs = append(errs, errors.New("mintStartDate is required"))
	}
	if n.MintEndDate != nil && n.MintEndDate.Before(n.MintStartDate) {
		errs = append(errs, errors.New("mintEndDate precedes mintStartDate"))
	}
	return errors.Join(errs...)
}
