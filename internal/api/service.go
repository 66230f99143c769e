package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smukkama/farm-carbon/internal/aggregation"
	"github.com/smukkama/farm-carbon/internal/database"
	"github.com/smukkama/farm-carbon/internal/metrics"
	"github.com/smukkama/farm-carbon/internal/protocol"
	"github.com/smukkama/farm-carbon/internal/reference"
)

// FarmStore supplies farm unit rows
type FarmStore interface {
	ListFarmUnits(ctx context.Context, f database.FarmFilter) ([]aggregation.FarmUnit, error)
}

// PricingStore supplies and updates the hectare price table
type PricingStore interface {
	ListHectarePrices(ctx context.Context) ([]aggregation.HectarePrice, error)
	SetHectarePrice(ctx context.Context, p aggregation.HectarePrice) error
}

// NFTStore persists NFT records
type NFTStore interface {
	InsertNFT(ctx context.Context, nft *protocol.NFT) error
	GetNFT(ctx context.Context, nftID string) (*protocol.NFT, error)
	SetNFTMinted(ctx context.Context, nftID string) (*protocol.NFT, error)
}

// LedgerNotifier forwards NFT changes to the ledger without blocking
type LedgerNotifier interface {
	NotifyAsync(updateType protocol.UpdateType, nft protocol.NFT)
}

// SnapshotSource returns the reference snapshot in effect
type SnapshotSource interface {
	Current() (*reference.Snapshot, error)
}

// Deps are the collaborators of the HTTP layer
type Deps struct {
	Farms     FarmStore
	Prices    PricingStore
	NFTs      NFTStore
	Ledger    LedgerNotifier
	Reference SnapshotSource
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Service runs the aggregation for HTTP requests. Every request loads
// its own batch, so concurrent requests share nothing mutable.
type Service struct {
	deps Deps
}

// NewService creates a service
func NewService(deps Deps) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{deps: deps}
}

// Farms aggregates the farms matching the filter against the current
// reference snapshot
func (s *Service) Farms(ctx context.Context, filter database.FarmFilter) (*aggregation.Result, error) {
	snap, err := s.deps.Reference.Current()
	if err != nil {
		return nil, err
	}
	return s.run(ctx, snap, filter)
}

// Farm aggregates a single farm
func (s *Service) Farm(ctx context.Context, farmID string) (*aggregation.Farm, *aggregation.Report, error) {
	snap, err := s.deps.Reference.Current()
	if err != nil {
		return nil, nil, err
	}
	return s.farm(ctx, snap, farmID)
}

func (s *Service) run(ctx context.Context, snap *reference.Snapshot, filter database.FarmFilter) (*aggregation.Result, error) {
	rows, err := s.deps.Farms.ListFarmUnits(ctx, filter)
	if err != nil {
		return nil, err
	}
	prices, err := s.deps.Prices.ListHectarePrices(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := snap.Pipeline.Run(rows, prices)
	if s.deps.Metrics != nil {
		var report *aggregation.Report
		if result != nil {
			report = &result.Report
		}
		s.deps.Metrics.ObservePipeline(report, time.Since(start), err)
	}
	return result, err
}

// farm aggregates farmID together with every farm sharing its
// coordinates, so a farm removed as a coordinate duplicate from the list
// is not found here either.
func (s *Service) farm(ctx context.Context, snap *reference.Snapshot, farmID string) (*aggregation.Farm, *aggregation.Report, error) {
	farmID = strings.TrimSpace(farmID)
	own, err := s.deps.Farms.ListFarmUnits(ctx, database.FarmFilter{FarmID: farmID})
	if err != nil {
		return nil, nil, err
	}
	if len(own) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", aggregation.ErrFarmNotFound, farmID)
	}

	result, err := s.run(ctx, snap, database.FarmFilter{Locations: locationsOf(own)})
	if err != nil {
		return nil, nil, err
	}
	for i := range result.Farms {
		if result.Farms[i].FarmID == farmID {
			return &result.Farms[i], &result.Report, nil
		}
	}
	return nil, &result.Report, fmt.Errorf("%w: %s", aggregation.ErrFarmNotFound, farmID)
}

// SetHectarePrice updates the price of one group scheme. Later runs
// price the scheme's farms with it.
func (s *Service) SetHectarePrice(ctx context.Context, p aggregation.HectarePrice) (*aggregation.HectarePrice, error) {
	p.GroupScheme = strings.TrimSpace(p.GroupScheme)
	if err := s.deps.Prices.SetHectarePrice(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

func locationsOf(rows []aggregation.FarmUnit) []database.Location {
	seen := make(map[database.Location]struct{}, len(rows))
	var out []database.Location
	for _, row := range rows {
		loc := database.Location{Latitude: row.Latitude, Longitude: row.Longitude}
		if _, ok := seen[loc]; ok {
			continue
		}
		seen[loc] = struct{}{}
		out = append(out, loc)
	}
	return out
}

// CreateNFT stores a new, unminted NFT and notifies the ledger
func (s *Service) CreateNFT(ctx context.Context, nft protocol.NFT) (*protocol.NFT, error) {
	nft.MintStatus = false
	if err := s.deps.NFTs.InsertNFT(ctx, &nft); err != nil {
		return nil, err
	}
	s.deps.Ledger.NotifyAsync(protocol.UpdateTypeNFTCreated, nft)
	return &nft, nil
}

// MintNFT flags an NFT as minted and notifies the ledger
func (s *Service) MintNFT(ctx context.Context, nftID string) (*protocol.NFT, error) {
	nft, err := s.deps.NFTs.SetNFTMinted(ctx, nftID)
	if err != nil {
		return nil, err
	}
	s.deps.Ledger.NotifyAsync(protocol.UpdateTypeNFTMinted, *nft)
	return nft, nil
}

// NFTCarbon prorates the CO2 sequestered by an NFT's farm since mint
func (s *Service) NFTCarbon(ctx context.Context, nftID string) (*aggregation.NFTCarbon, error) {
	nft, err := s.deps.NFTs.GetNFT(ctx, nftID)
	if err != nil {
		return nil, err
	}

	snap, err := s.deps.Reference.Current()
	if err != nil {
		return nil, err
	}
	farm, _, err := s.farm(ctx, snap, nft.FarmID)
	if err != nil {
		return nil, err
	}

	inst := aggregation.Instrument{
		NftID:         nft.NftID,
		FarmID:        nft.FarmID,
		NftArea:       nft.NftArea,
		MintStartDate: nft.MintStartDate,
	}
	return snap.Pipeline.NFTCarbon(inst, []aggregation.Farm{*farm}, s.deps.Now())
}
