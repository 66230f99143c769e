package carbon

import "fmt"

// NFTProration returns tons of CO2 per second sequestered by a tokenized
// area over the elapsed lifetime of the instrument.
func NFTProration(nftAreaHa, spha, co2PerTreeLb, elapsedSeconds, tonLb float64) (float64, error) {
	if err := checkDivisor("elapsed seconds", elapsedSeconds); err != nil {
		return 0, err
	}
	perHectare, err := PerHectare(co2PerTreeLb, spha, tonLb)
	if err != nil {
		return 0, err
	}
	return perHectare * nftAreaHa / elapsedSeconds, nil
}

// NFTProration applies the model's ton factor
func (m *Model) NFTProration(nftAreaHa, spha, co2PerTreeLb, elapsedSeconds float64) (float64, error) {
	rate, err := NFTProration(nftAreaHa, spha, co2PerTreeLb, elapsedSeconds, m.tonLb)
	if err != nil {
		return 0, fmt.Errorf("nft proration: %w", err)
	}
	return rate, nil
}
