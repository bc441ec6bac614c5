package hgt

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	tileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hgt_tile_cache_hits_total",
		Help: "The total number of hits on the tile cache",
	})
	tileCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hgt_tile_cache_misses_total",
		Help: "The total number of misses on the tile cache",
	})
	tileCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hgt_tile_cache_evictions_total",
		Help: "The total number of evictions from the tile cache",
	})
	failedTileHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hgt_failed_tile_hits_total",
		Help: "The total number of requests for tiles that previously failed to resolve",
	})
	tileAcquisitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hgt_tile_acquisitions_total",
		Help: "The total number of tile acquisitions attempted",
	})
	tileAcquisitionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hgt_tile_acquisition_failures_total",
		Help: "The total number of tile acquisitions that failed",
	})
)

// A Store returns elevations from the HGT tiles in a directory, loading tiles
// on first use and acquiring missing tiles from a TileAcquirer. It is safe for
// concurrent use.
type Store struct {
	dir            string
	acquirer       TileAcquirer
	acquireTimeout time.Duration
	tileCache      TileCache
	logger         *zap.Logger

	group  singleflight.Group
	failed sync.Map // TileKey -> error
}

// A StoreOption sets an option on a Store.
type StoreOption func(*Store)

// NewStore returns a new Store reading tiles from dir.
func NewStore(dir string, options ...StoreOption) (*Store, error) {
	switch fileInfo, err := os.Stat(dir); {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%s: %w", dir, ErrDirectoryNotFound)
	case err != nil:
		return nil, err
	case !fileInfo.IsDir():
		return nil, fmt.Errorf("%s: %w", dir, ErrDirectoryNotFound)
	}

	s := &Store{
		dir:    dir,
		logger: zap.NewNop(),
	}
	for _, option := range options {
		option(s)
	}
	if s.tileCache == nil {
		tileCache, err := NewOtterTileCache(0)
		if err != nil {
			return nil, err
		}
		s.tileCache = tileCache
	}
	return s, nil
}

// WithAcquirer sets the TileAcquirer used to obtain missing tiles.
func WithAcquirer(acquirer TileAcquirer) StoreOption {
	return func(s *Store) {
		s.acquirer = acquirer
	}
}

// WithAcquireTimeout bounds the duration of each tile acquisition.
func WithAcquireTimeout(acquireTimeout time.Duration) StoreOption {
	return func(s *Store) {
		s.acquireTimeout = acquireTimeout
	}
}

func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithTileCache(tileCache TileCache) StoreOption {
	return func(s *Store) {
		s.tileCache = tileCache
	}
}

// Dir returns s's tile directory.
func (s *Store) Dir() string {
	return s.dir
}

// Elevation returns the elevation of the sample nearest to lat, lon. It
// returns false if the sample is void. If the tile containing lat, lon is not
// available it returns an error matching ErrTileNotFound.
func (s *Store) Elevation(ctx context.Context, lat, lon float64) (int, bool, error) {
	tile, err := s.getTileCached(ctx, KeyFromCoordinate(lat, lon))
	if err != nil {
		return 0, false, err
	}
	return tile.Sample(lat, lon)
}

// ElevationBilinear returns the bilinearly interpolated elevation at lat, lon.
func (s *Store) ElevationBilinear(ctx context.Context, lat, lon float64) (float64, bool, error) {
	tile, err := s.getTileCached(ctx, KeyFromCoordinate(lat, lon))
	if err != nil {
		return 0, false, err
	}
	return tile.SampleBilinear(lat, lon)
}

// Clear drops all cached tiles and remembered failures.
func (s *Store) Clear() {
	s.tileCache.Purge()
	s.failed.Clear()
}

// Reset forgets a failed resolution of key so that the next request retries
// it.
func (s *Store) Reset(key TileKey) {
	s.failed.Delete(key)
}

// getTileCached returns the tile for key, resolving it if needed. Concurrent
// calls for the same key share a single resolution.
func (s *Store) getTileCached(ctx context.Context, key TileKey) (*Tile, error) {
	for {
		if tile, ok := s.tileCache.Get(key); ok {
			tileCacheHits.Inc()
			return tile, nil
		}

		if err, ok := s.failed.Load(key); ok {
			failedTileHits.Inc()
			return nil, err.(error)
		}

		resultCh := s.group.DoChan(key.Name(), func() (any, error) {
			return s.resolveTile(ctx, key)
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case result := <-resultCh:
			if result.Err == nil {
				return result.Val.(*Tile), nil
			}
			// The resolving caller gave up, so try again with our own context.
			if result.Shared && isContextError(result.Err) && ctx.Err() == nil {
				continue
			}
			return nil, result.Err
		}
	}
}

// resolveTile resolves the tile for key and records the outcome. A panic while
// resolving is returned as an error and is not remembered, so the next request
// retries.
func (s *Store) resolveTile(ctx context.Context, key TileKey) (tile *Tile, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tile resolution panicked",
				zap.Stringer("key", key),
				zap.Any("panic", r),
			)
			tile, err = nil, fmt.Errorf("%s: %w: %v", key.Name(), ErrResolutionPanicked, r)
		}
	}()

	// Another resolution may have completed since the caller last looked.
	if tile, ok := s.tileCache.Get(key); ok {
		return tile, nil
	}
	if err, ok := s.failed.Load(key); ok {
		return nil, err.(error)
	}

	tileCacheMisses.Inc()
	tile, err = s.getTile(ctx, key)
	switch {
	case err == nil:
		s.tileCache.Add(key, tile)
	case !isContextError(err):
		s.failed.Store(key, err)
	}
	return tile, err
}

// getTile loads the tile for key from s's directory, acquiring it first if it
// is missing.
func (s *Store) getTile(ctx context.Context, key TileKey) (*Tile, error) {
	name := key.Name()
	switch tile, err := s.loadTile(name); {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		return tile, nil
	}

	if s.acquirer == nil {
		return nil, &TileNotFoundError{Name: name}
	}
	if err := s.acquireTile(ctx, name); err != nil {
		return nil, err
	}

	switch tile, err := s.loadTile(name); {
	case errors.Is(err, fs.ErrNotExist):
		return nil, &TileNotFoundError{Name: name}
	case err != nil:
		return nil, err
	default:
		return tile, nil
	}
}

// acquireTile asks s's acquirer for the tile called name.
func (s *Store) acquireTile(ctx context.Context, name string) error {
	acquireCtx := ctx
	if s.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, s.acquireTimeout)
		defer cancel()
	}

	tileAcquisitions.Inc()
	start := time.Now()
	s.logger.Info("acquiring tile", zap.String("name", name))
	if !s.acquirer.AcquireTile(acquireCtx, s.dir, name) {
		tileAcquisitionFailures.Inc()
		s.logger.Warn("tile acquisition failed",
			zap.String("name", name),
			zap.Duration("duration", time.Since(start)),
		)
		if err := ctx.Err(); err != nil {
			return err
		}
		return &TileNotFoundError{Name: name}
	}
	s.logger.Info("acquired tile",
		zap.String("name", name),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// loadTile loads the tile called name from s's directory, preferring the raw
// file over the archive. It returns an error matching fs.ErrNotExist if
// neither exists.
func (s *Store) loadTile(name string) (*Tile, error) {
	for _, path := range s.tilePaths(name) {
		switch _, err := os.Stat(path); {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			return nil, err
		}
		tile, err := ReadTileFile(path)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("loaded tile",
			zap.String("name", name),
			zap.String("path", path),
			zap.Int("resolution", tile.Resolution()),
		)
		return tile, nil
	}
	return nil, fs.ErrNotExist
}

// tilePaths returns the candidate local paths of the tile called name.
func (s *Store) tilePaths(name string) []string {
	return []string{
		filepath.Join(s.dir, name+rawSuffix),
		filepath.Join(s.dir, name+archiveSuffix),
	}
}

// isContextError returns true if err is the result of a caller's context
// ending rather than of the tile itself.
func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
