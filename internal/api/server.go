// Package api is the HTTP boundary of the farm carbon service.
package api

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/smukkama/farm-carbon/internal/metrics"
)

// NewServer builds the echo instance with every route registered
func NewServer(svc *Service, m *metrics.Metrics, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(RequestLogger(logger, m))

	e.GET("/healthz", HealthHandler(svc.deps.Reference))
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	api := e.Group("/api")
	api.GET("/farms", ListFarmsHandler(svc))
	api.GET("/farms/:farmId", GetFarmHandler(svc))
	api.PUT("/prices/:groupScheme", SetHectarePriceHandler(svc))
	api.POST("/nfts", CreateNFTHandler(svc))
	api.POST("/nfts/:nftId/mint", MintNFTHandler(svc))
	api.GET("/nfts/:nftId/co2", NFTCarbonHandler(svc))

	return e
}

// RequestLogger logs every request and records its latency
func RequestLogger(logger *zap.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			begin := time.Now()

			err := next(c)
			if err != nil {
				// let the error handler decide the status before it is recorded
				c.Error(err)
			}

			elapsed := time.Since(begin)
			req := c.Request()
			status := c.Response().Status
			route := c.Path()

			logger.Info("Request served",
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("method", req.Method),
				zap.String("route", route),
				zap.String("uri", req.RequestURI),
				zap.Int("status", status),
				zap.Duration("latency", elapsed))

			if m != nil {
				m.HTTPRequests.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
				m.HTTPDuration.WithLabelValues(req.Method, route).Observe(elapsed.Seconds())
			}
			return nil
		}
	}
}
