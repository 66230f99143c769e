package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/smukkama/farm-carbon/internal/protocol"
)

var (
	// ErrNFTNotFound is returned when no NFT has the requested id
	ErrNFTNotFound = errors.New("nft not found")
	// ErrNFTExists is returned when inserting an id that is already stored
	ErrNFTExists = errors.New("nft already exists")
)

const nftColumns = `nft_id, nft_name, nft_area, nft_value_sol, geolocation, tile_count,
	carbon_url, mint_status, mint_start_date, mint_end_date, farm_id, scientific_name, plant_status`

// InsertNFT stores a new NFT
func (db *DB) InsertNFT(ctx context.Context, nft *protocol.NFT) error {
	geo, err := encodeGeolocation(nft.Geolocation)
	if err != nil {
		return err
	}

	query := `INSERT INTO nfts (` + nftColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = db.ExecContext(ctx, query,
		nft.NftID, nft.NftName, nft.NftArea, nft.NftValueSol, geo, nft.TileCount,
		nft.CarbonURL, nft.MintStatus, nft.MintStartDate, nft.MintEndDate, nft.FarmID,
		pq.Array(nft.ScientificName), nft.PlantStatus,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrNFTExists, nft.NftID)
		}
		return fmt.Errorf("failed to insert nft: %w", err)
	}
	return nil
}

// GetNFT loads one NFT by id
func (db *DB) GetNFT(ctx context.Context, nftID string) (*protocol.NFT, error) {
	query := `SELECT ` + nftColumns + ` FROM nfts WHERE nft_id = $1`

	var (
		nft     protocol.NFT
		geo     []byte
		endDate sql.NullTime
	)
	err := db.QueryRowContext(ctx, query, nftID).Scan(
		&nft.NftID, &nft.NftName, &nft.NftArea, &nft.NftValueSol, &geo, &nft.TileCount,
		&nft.CarbonURL, &nft.MintStatus, &nft.MintStartDate, &endDate, &nft.FarmID,
		pq.Array(&nft.ScientificName), &nft.PlantStatus,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNFTNotFound, nftID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get nft: %w", err)
	}

	if endDate.Valid {
		nft.MintEndDate = &endDate.Time
	}
	if nft.Geolocation, err = decodeGeolocation(geo); err != nil {
		return nil, err
	}
	return &nft, nil
}

// SetNFTMinted flags an NFT as minted and returns the stored record
func (db *DB) SetNFTMinted(ctx context.Context, nftID string) (*protocol.NFT, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE nfts SET mint_status = TRUE, updated_at = NOW() WHERE nft_id = $1`, nftID)
	if err != nil {
		return nil, fmt.Errorf("failed to update nft: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update nft: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNFTNotFound, nftID)
	}
	return db.GetNFT(ctx, nftID)
}

// encodeGeolocation renders the JSONB parameter; text keeps lib/pq from
// sending it as bytea
func encodeGeolocation(geo map[string]any) (any, error) {
	if geo == nil {
		return nil, nil
	}
	data, err := json.Marshal(geo)
	if err != nil {
		return nil, fmt.Errorf("failed to encode geolocation: %w", err)
	}
	return string(data), nil
}

func decodeGeolocation(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var geo map[string]any
	if err := json.Unmarshal(data, &geo); err != nil {
		return nil, fmt.Errorf("failed to decode geolocation: %w", err)
	}
	return geo, nil
}
