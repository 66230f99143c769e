package api

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/smukkama/farm-carbon/internal/aggregation"
	"github.com/smukkama/farm-carbon/internal/database"
	"github.com/smukkama/farm-carbon/internal/protocol"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// FarmListResponse is one page of aggregated farms
type FarmListResponse struct {
	Items  []aggregation.Farm `json:"items"`
	Total  int                `json:"total"`
	Page   int                `json:"page"`
	Size   int                `json:"size"`
	Report aggregation.Report `json:"report"`
}

// FarmResponse is a single aggregated farm
type FarmResponse struct {
	Item   aggregation.Farm   `json:"item"`
	Report aggregation.Report `json:"report"`
}

// NFTResponse wraps an NFT record
type NFTResponse struct {
	Status string       `json:"status"`
	Data   protocol.NFT `json:"data"`
}

// ListFarmsHandler serves GET /api/farms
func ListFarmsHandler(svc *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		filter, err := parseFarmFilter(c)
		if err != nil {
			return err
		}
		page, size, err := parsePage(c)
		if err != nil {
			return err
		}

		result, err := svc.Farms(c.Request().Context(), filter)
		if err != nil {
			return err
		}

		total := len(result.Farms)
		from := min((page-1)*size, total)
		to := min(from+size, total)

		return c.JSON(http.StatusOK, FarmListResponse{
			Items:  result.Farms[from:to],
			Total:  total,
			Page:   page,
			Size:   size,
			Report: result.Report,
		})
	}
}

// GetFarmHandler serves GET /api/farms/:farmId
func GetFarmHandler(svc *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		farm, report, err := svc.Farm(c.Request().Context(), c.Param("farmId"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, FarmResponse{Item: *farm, Report: *report})
	}
}

type hectarePriceRequest struct {
	HectareUSD *float64 `json:"hectareUsd"`
}

// SetHectarePriceHandler serves PUT /api/prices/:groupScheme
func SetHectarePriceHandler(svc *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		scheme := strings.TrimSpace(c.Param("groupScheme"))
		if scheme == "" {
			return badRequest("groupScheme is required", nil)
		}

		var req hectarePriceRequest
		if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
			return badRequest("can not understand the requested json", err)
		}
		if req.HectareUSD == nil {
			return badRequest("hectareUsd is required", nil)
		}
		if *req.HectareUSD < 0 || math.IsNaN(*req.HectareUSD) || math.IsInf(*req.HectareUSD, 0) {
			return badRequest("hectareUsd must be a non-negative number", nil)
		}

		price, err := svc.SetHectarePrice(c.Request().Context(), aggregation.HectarePrice{
			GroupScheme: scheme,
			HectareUSD:  *req.HectareUSD,
		})
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, price)
	}
}

// CreateNFTHandler serves POST /api/nfts
func CreateNFTHandler(svc *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctype := c.Request().Header.Get(echo.HeaderContentType)
		if !strings.HasPrefix(strings.ToLower(ctype), echo.MIMEApplicationJSON) {
			return badRequest("unexpected content type, it should be application/json", nil)
		}

		var nft protocol.NFT
		if err := c.Bind(&nft); err != nil {
			return badRequest("can not understand the requested json", err)
		}
		if err := nft.Validate(); err != nil {
			return badRequest(err.Error(), err)
		}

		created, err := svc.CreateNFT(c.Request().Context(), nft)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, NFTResponse{Status: "Success", Data: *created})
	}
}

// MintNFTHandler serves POST /api/nfts/:nftId/mint
func MintNFTHandler(svc *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		nft, err := svc.MintNFT(c.Request().Context(), c.Param("nftId"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, NFTResponse{Status: "Success", Data: *nft})
	}
}

// NFTCarbonHandler serves GET /api/nfts/:nftId/co2
func NFTCarbonHandler(svc *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		co2, err := svc.NFTCarbon(c.Request().Context(), c.Param("nftId"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, co2)
	}
}

// HealthHandler serves GET /healthz; it fails until reference data is loaded
func HealthHandler(src SnapshotSource) echo.HandlerFunc {
	return func(c echo.Context) error {
		snap, err := src.Current()
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{
			"status":            "ok",
			"referenceLoadedAt": snap.LoadedAt,
		})
	}
}

func parseFarmFilter(c echo.Context) (database.FarmFilter, error) {
	filter := database.FarmFilter{
		Country:      strings.TrimSpace(c.QueryParam("country")),
		ProductGroup: strings.TrimSpace(c.QueryParam("resource")),
	}

	switch status := strings.ToLower(strings.TrimSpace(c.QueryParam("status"))); status {
	case "", "all":
	case "active":
		active := true
		filter.Active = &active
	default:
		return filter, badRequest("status must be Active or All", nil)
	}

	var err error
	if filter.MinSize, err = optionalFloat(c, "minSize"); err != nil {
		return filter, err
	}
	if filter.MaxSize, err = optionalFloat(c, "maxSize"); err != nil {
		return filter, err
	}
	if filter.MinSize != nil && filter.MaxSize != nil && *filter.MinSize > *filter.MaxSize {
		return filter, badRequest("minSize must not exceed maxSize", nil)
	}
	return filter, nil
}

func optionalFloat(c echo.Context, name string) (*float64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, badRequest(name+" must be a number", err)
	}
	return &v, nil
}

func parsePage(c echo.Context) (int, int, error) {
	page, err := optionalInt(c, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	size, err := optionalInt(c, "size", defaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	if page < 1 {
		return 0, 0, badRequest("page must be at least 1", nil)
	}
	if size < 1 || size > maxPageSize {
		return 0, 0, badRequest("size must be between 1 and "+strconv.Itoa(maxPageSize), nil)
	}
	return page, size, nil
}

func optionalInt(c echo.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(name+" must be an integer", err)
	}
	return v, nil
}
