package protocol

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleNFT() NFT {
	return NFT{
		NftID:          "nft-42",
		NftName:        "Rayong tile 42",
		NftArea:        2,
		NftValueSol:    1.5,
		Geolocation:    map[string]any{"lat": 12.5, "lon": 101.2},
		TileCount:      4,
		CarbonURL:      "https://carbon.example.com/nft-42",
		MintStartDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		FarmID:         "F1",
		ScientificName: []string{"Hevea brasiliensis"},
		PlantStatus:    "growing",
	}
}

func TestLedgerUpdate_Codec(t *testing.T) {
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	update := NewLedgerUpdate(UpdateTypeNFTCreated, sampleNFT(), now)

	_, err := uuid.Parse(update.MessageID)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, update.RequestedAt.Location())
	assert.Equal(t, "nft-42", update.Key())

	data, err := EncodeLedgerUpdate(update)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"nftId":"nft-42"`)
	assert.Contains(t, string(data), `"type":"NFT_CREATED"`)

	decoded, err := DecodeLedgerUpdate(data)
	require.NoError(t, err)
	assert.Equal(t, update.MessageID, decoded.MessageID)
	assert.Equal(t, update.Type, decoded.Type)
	assert.True(t, update.RequestedAt.Equal(decoded.RequestedAt))
	assert.Equal(t, update.NFT.ScientificName, decoded.NFT.ScientificName)
}

func TestDecodeLedgerUpdate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{"type":`},
		{"unknown type", `{"messageId":"` + uuid.NewString() + `","type":"NFT_BURNED"}`},
		{"bad message id", `{"messageId":"42","type":"NFT_MINTED"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeLedgerUpdate([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestNFT_Validate(t *testing.T) {
	nft := sampleNFT()
	assert.NoError(t, nft.Validate())

	end := nft.MintStartDate.Add(-time.Hour)
	bad := NFT{NftArea: 0, MintEndDate: &end}
	err := bad.Validate()
	require.Error(t, err)
	for _, want := range []string{"nftId", "farmId", "nftArea", "mintStartDate"} {
		assert.Contains(t, err.Error(), want)
	}
}
