package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/twpayne/go-hgt"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve elevations over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address (env HGT_ADDR)")
}

type elevationResponse struct {
	Lat           float64    `json:"lat"`
	Lon           float64    `json:"lon"`
	Interpolation string     `json:"interpolation"`
	Tile          string     `json:"tile"`
	Bounds        [4]float64 `json:"bounds"`
	Elevation     *float64   `json:"elevation"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	addr := getConfigString(cmd, "addr", "HGT_ADDR", ":8080")

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := cfg.newStore(logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           newRouter(store, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("data_dir", store.Dir()))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newRouter(store *hgt.Store, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/v1/elevation", func(c *gin.Context) {
		lat, err := strconv.ParseFloat(c.Query("lat"), 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid lat"})
			return
		}
		lon, err := strconv.ParseFloat(c.Query("lon"), 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid lon"})
			return
		}
		if err := validateCoordinate(lat, lon); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		interpolation, ok := hgt.ParseInterpolation(c.Query("interpolation"))
		if !ok {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid interpolation"})
			return
		}

		var elevation float64
		switch interpolation {
		case hgt.Bilinear:
			elevation, ok, err = store.ElevationBilinear(c.Request.Context(), lat, lon)
		default:
			var sample int
			sample, ok, err = store.Elevation(c.Request.Context(), lat, lon)
			elevation = float64(sample)
		}
		switch {
		case errors.Is(err, hgt.ErrTileNotFound):
			c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		case err != nil:
			logger.Error("elevation", zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Error(err))
			c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}

		key := hgt.KeyFromCoordinate(lat, lon)
		bound := key.Bound()
		response := elevationResponse{
			Lat:           lat,
			Lon:           lon,
			Interpolation: interpolation.String(),
			Tile:          key.Name(),
			Bounds:        [4]float64{bound.Left(), bound.Bottom(), bound.Right(), bound.Top()},
		}
		if ok {
			response.Elevation = &elevation
		}
		c.JSON(http.StatusOK, response)
	})

	return router
}
