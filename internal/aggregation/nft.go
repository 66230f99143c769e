package aggregation

import (
	"fmt"
	"strings"
	"time"
)

// NFTCarbon prorates the sequestration of the instrument's farm over the
// time elapsed since mint. The farm must be part of the aggregated result.
func (p *Pipeline) NFTCarbon(inst Instrument, farms []Farm, now time.Time) (*NFTCarbon, error) {
	farm, ok := findFarm(farms, inst.FarmID)
	if !ok {
		return nil, fmt.Errorf("nft %s: %w: %s", inst.NftID, ErrFarmNotFound, inst.FarmID)
	}

	elapsed := now.Sub(inst.MintStartDate).Seconds()
	spha := p.model.Policy().DiscountedSPHA(farm.SphaSurvival)

	rate, err := p.model.NFTProration(inst.NftArea, spha, farm.PlantCO2, elapsed)
	if err != nil {
		return nil, fmt.Errorf("nft %s: %w", inst.NftID, err)
	}

	return &NFTCarbon{
		NftID:            inst.NftID,
		FarmID:           farm.FarmID,
		NftArea:          inst.NftArea,
		MintStartDate:    inst.MintStartDate,
		ElapsedSeconds:   elapsed,
		CO2TonsPerSecond: rate,
		CO2Tons:          rate * elapsed,
	}, nil
}

func findFarm(farms []Farm, farmID string) (Farm, bool) {
	farmID = strings.TrimSpace(farmID)
	for _, f := range farms {
		if f.FarmID == farmID {
			return f, true
		}
	}
	return Farm{}, false
}
