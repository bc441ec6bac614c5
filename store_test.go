package hgt_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-hgt"
)

func TestNewStore_DirectoryNotFound(t *testing.T) {
	dir := t.TempDir()

	_, err := hgt.NewStore(filepath.Join(dir, "missing"))
	assert.IsError(t, err, hgt.ErrDirectoryNotFound)

	filename := filepath.Join(dir, "file")
	assert.NoError(t, os.WriteFile(filename, nil, 0o666))
	_, err = hgt.NewStore(filename)
	assert.IsError(t, err, hgt.ErrDirectoryNotFound)
}

func TestStore_Elevation(t *testing.T) {
	dir := t.TempDir()
	writeTileFile(t, dir, "N47E011", newTileData(1201, func(row, col int) int {
		if row == 1 && col == 1 {
			return void
		}
		return 500 + row
	}))
	writeTileArchive(t, dir, "S17W069", constantTileData(3601, 3640))

	store, err := hgt.NewStore(dir)
	assert.NoError(t, err)

	for _, tc := range []struct {
		name       string
		lat        float64
		lon        float64
		expected   int
		expectedOK bool
	}{
		{name: "raw", lat: 47.267222, lon: 11.392778, expected: 500 + 320, expectedOK: true},
		{name: "archive", lat: -16.5, lon: -68.15, expected: 3640, expectedOK: true},
		{name: "void", lat: 47 + 1.5/1201, lon: 11 + 1.5/1201},
	} {
		t.Run(tc.name, func(t *testing.T) {
			actual, ok, err := store.Elevation(t.Context(), tc.lat, tc.lon)
			assert.NoError(t, err)
			assert.Equal(t, tc.expectedOK, ok)
			assert.Equal(t, tc.expected, actual)
		})
	}

	actual, ok, err := store.ElevationBilinear(t.Context(), -16.5, -68.15)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3640.0, actual)
}

func TestStore_TileNotFound(t *testing.T) {
	store, err := hgt.NewStore(t.TempDir())
	assert.NoError(t, err)

	_, _, err = store.Elevation(t.Context(), 47.267222, 11.392778)
	assert.IsError(t, err, hgt.ErrTileNotFound)
	var tileNotFoundErr *hgt.TileNotFoundError
	assert.True(t, errors.As(err, &tileNotFoundErr))
	assert.Equal(t, "N47E011", tileNotFoundErr.Name)

	_, _, err = store.ElevationBilinear(t.Context(), 47.267222, 11.392778)
	assert.IsError(t, err, hgt.ErrTileNotFound)
}

func TestStore_InvalidTile(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "N47E011.hgt"), make([]byte, 1024), 0o666))

	store, err := hgt.NewStore(dir)
	assert.NoError(t, err)

	_, _, err = store.Elevation(t.Context(), 47.5, 11.5)
	assert.IsError(t, err, hgt.ErrInvalidTileSize)
}

func TestStore_Acquirer(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	acquirer := hgt.AcquirerFunc(func(ctx context.Context, dir, name string) bool {
		calls.Add(1)
		assert.Equal(t, "S17W069", name)
		writeTileArchive(t, dir, name, constantTileData(1201, 3640))
		return true
	})

	store, err := hgt.NewStore(dir, hgt.WithAcquirer(acquirer))
	assert.NoError(t, err)

	for range 3 {
		actual, ok, err := store.Elevation(t.Context(), -16.5, -68.15)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 3640, actual)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestStore_AcquirerFailure(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	var available atomic.Bool
	acquirer := hgt.AcquirerFunc(func(ctx context.Context, dir, name string) bool {
		calls.Add(1)
		if !available.Load() {
			return false
		}
		writeTileFile(t, dir, name, constantTileData(1201, 42))
		return true
	})

	store, err := hgt.NewStore(dir, hgt.WithAcquirer(acquirer))
	assert.NoError(t, err)

	// Failures are remembered.
	for range 3 {
		_, _, err := store.Elevation(t.Context(), 47.5, 11.5)
		assert.IsError(t, err, hgt.ErrTileNotFound)
	}
	assert.Equal(t, int32(1), calls.Load())

	// Until the caller resets them.
	available.Store(true)
	store.Reset(hgt.TileKey{Lat: 47, Lon: 11})
	actual, ok, err := store.Elevation(t.Context(), 47.5, 11.5)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, actual)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStore_AcquirerClaimsSuccessWithoutTile(t *testing.T) {
	store, err := hgt.NewStore(t.TempDir(), hgt.WithAcquirer(hgt.AcquirerFunc(func(context.Context, string, string) bool {
		return true
	})))
	assert.NoError(t, err)

	_, _, err = store.Elevation(t.Context(), 47.5, 11.5)
	assert.IsError(t, err, hgt.ErrTileNotFound)
}

func TestStore_SingleFlight(t *testing.T) {
	for _, tc := range []struct {
		name      string
		available bool
	}{
		{name: "success", available: true},
		{name: "failure", available: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			var calls atomic.Int32
			release := make(chan struct{})
			acquirer := hgt.AcquirerFunc(func(ctx context.Context, dir, name string) bool {
				calls.Add(1)
				<-release
				if !tc.available {
					return false
				}
				writeTileFile(t, dir, name, constantTileData(1201, 7))
				return true
			})

			store, err := hgt.NewStore(dir, hgt.WithAcquirer(acquirer))
			assert.NoError(t, err)

			const n = 32
			elevations := make([]int, n)
			errs := make([]error, n)
			var started, finished sync.WaitGroup
			started.Add(n)
			finished.Add(n)
			for i := range n {
				go func() {
					defer finished.Done()
					started.Done()
					elevations[i], _, errs[i] = store.Elevation(context.Background(), 47.5+float64(i)/1000, 11.5)
				}()
			}
			started.Wait()
			time.Sleep(10 * time.Millisecond)
			close(release)
			finished.Wait()

			assert.Equal(t, int32(1), calls.Load())
			for i := range n {
				if tc.available {
					assert.NoError(t, errs[i])
					assert.Equal(t, 7, elevations[i])
				} else {
					assert.IsError(t, errs[i], hgt.ErrTileNotFound)
				}
			}
		})
	}
}

func TestStore_CancelledAcquisitionIsNotRemembered(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	acquirer := hgt.AcquirerFunc(func(ctx context.Context, dir, name string) bool {
		if calls.Add(1) == 1 {
			<-ctx.Done()
			return false
		}
		writeTileFile(t, dir, name, constantTileData(1201, 99))
		return true
	})

	store, err := hgt.NewStore(dir, hgt.WithAcquirer(acquirer))
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, _, err = store.Elevation(ctx, 47.5, 11.5)
	assert.IsError(t, err, context.Canceled)

	actual, ok, err := store.Elevation(t.Context(), 47.5, 11.5)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 99, actual)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStore_AcquirerPanic(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	acquirer := hgt.AcquirerFunc(func(ctx context.Context, dir, name string) bool {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		writeTileFile(t, dir, name, constantTileData(1201, 42))
		return true
	})

	store, err := hgt.NewStore(dir, hgt.WithAcquirer(acquirer))
	assert.NoError(t, err)

	_, _, err = store.Elevation(t.Context(), 47.5, 11.5)
	assert.IsError(t, err, hgt.ErrResolutionPanicked)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	actual, ok, err := store.Elevation(ctx, 47.5, 11.5)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, actual)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStore_AcquireTimeout(t *testing.T) {
	acquirer := hgt.AcquirerFunc(func(ctx context.Context, dir, name string) bool {
		<-ctx.Done()
		return false
	})

	store, err := hgt.NewStore(t.TempDir(),
		hgt.WithAcquirer(acquirer),
		hgt.WithAcquireTimeout(10*time.Millisecond),
	)
	assert.NoError(t, err)

	_, _, err = store.Elevation(t.Context(), 47.5, 11.5)
	assert.IsError(t, err, hgt.ErrTileNotFound)
}

func TestStore_Clear(t *testing.T) {
	dir := t.TempDir()
	tileCache, err := hgt.NewLRUTileCache(8)
	assert.NoError(t, err)
	store, err := hgt.NewStore(dir, hgt.WithTileCache(tileCache))
	assert.NoError(t, err)

	_, _, err = store.Elevation(t.Context(), 47.5, 11.5)
	assert.IsError(t, err, hgt.ErrTileNotFound)

	writeTileFile(t, dir, "N47E011", constantTileData(1201, 1))
	writeTileFile(t, dir, "N48E011", constantTileData(1201, 2))

	// The failure is remembered until the store is cleared.
	_, _, err = store.Elevation(t.Context(), 47.5, 11.5)
	assert.IsError(t, err, hgt.ErrTileNotFound)

	store.Clear()
	actual, _, err := store.Elevation(t.Context(), 47.5, 11.5)
	assert.NoError(t, err)
	assert.Equal(t, 1, actual)
	actual, _, err = store.Elevation(t.Context(), 48.5, 11.5)
	assert.NoError(t, err)
	assert.Equal(t, 2, actual)
	assert.Equal(t, 2, tileCache.Len())

	store.Clear()
	assert.Equal(t, 0, tileCache.Len())
}

func TestStore_LRUTileCache(t *testing.T) {
	dir := t.TempDir()
	writeTileFile(t, dir, "N47E011", constantTileData(1201, 1))
	writeTileFile(t, dir, "N48E011", constantTileData(1201, 2))

	tileCache, err := hgt.NewLRUTileCache(1)
	assert.NoError(t, err)
	store, err := hgt.NewStore(dir, hgt.WithTileCache(tileCache))
	assert.NoError(t, err)

	for _, tc := range []struct {
		lat      float64
		expected int
	}{
		{lat: 47.5, expected: 1},
		{lat: 48.5, expected: 2},
		{lat: 47.5, expected: 1},
	} {
		actual, ok, err := store.Elevation(t.Context(), tc.lat, 11.5)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, tc.expected, actual)
		assert.Equal(t, 1, tileCache.Len())
	}
}

func TestStore_OtterTileCache(t *testing.T) {
	dir := t.TempDir()
	writeTileFile(t, dir, "N47E011", constantTileData(1201, 1))

	tileCache, err := hgt.NewOtterTileCache(4)
	assert.NoError(t, err)
	store, err := hgt.NewStore(dir, hgt.WithTileCache(tileCache))
	assert.NoError(t, err)

	for range 2 {
		actual, ok, err := store.Elevation(t.Context(), 47.5, 11.5)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, actual)
	}
	_, ok := tileCache.Get(hgt.TileKey{Lat: 47, Lon: 11})
	assert.True(t, ok)
}

func TestStore_DefaultTileCacheIsUnbounded(t *testing.T) {
	dir := t.TempDir()
	for lat := 40; lat < 48; lat++ {
		writeTileFile(t, dir, hgt.TileKey{Lat: lat, Lon: 11}.Name(), constantTileData(1201, lat))
	}

	tileCache, err := hgt.NewOtterTileCache(0)
	assert.NoError(t, err)
	store, err := hgt.NewStore(dir, hgt.WithTileCache(tileCache))
	assert.NoError(t, err)

	for lat := 40; lat < 48; lat++ {
		actual, ok, err := store.Elevation(t.Context(), float64(lat)+0.5, 11.5)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, lat, actual)
	}
	assert.Equal(t, 8, tileCache.Len())

	store.Clear()
	assert.Equal(t, 0, tileCache.Len())
}
