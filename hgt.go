// Package hgt reads elevations from SRTM HGT tiles.
package hgt

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

var (
	ErrCoordinateOutOfRange = errors.New("coordinate out of range")
	ErrDirectoryNotFound    = errors.New("directory not found")
	ErrInvalidTileName      = errors.New("invalid tile name")
	ErrInvalidTileSize      = errors.New("invalid tile size")
	ErrResolutionPanicked   = errors.New("tile resolution panicked")
	ErrTileNotFound         = errors.New("tile not found")
)

// A TileNotFoundError is returned when a tile is neither available locally nor
// obtainable from the configured TileAcquirer.
type TileNotFoundError struct {
	Name string
}

func (e *TileNotFoundError) Error() string {
	return "tile not found: " + e.Name
}

func (e *TileNotFoundError) Is(target error) bool {
	return target == ErrTileNotFound
}

// A TileKey identifies a one degree tile by its south-west corner.
type TileKey struct {
	Lat int
	Lon int
}

// KeyFromCoordinate returns the key of the tile that contains lat, lon.
func KeyFromCoordinate(lat, lon float64) TileKey {
	return TileKey{
		Lat: keyDegree(lat),
		Lon: keyDegree(lon),
	}
}

// keyDegree floors the magnitude of coord and moves negative coordinates into
// the tile below or to the left.
func keyDegree(coord float64) int {
	deg := int(math.Floor(math.Abs(coord)))
	if coord < 0 {
		deg = -deg - 1
	}
	return deg
}

// Bound returns k's footprint.
func (k TileKey) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{float64(k.Lon), float64(k.Lat)},
		Max: orb.Point{float64(k.Lon + 1), float64(k.Lat + 1)},
	}
}

func (k TileKey) String() string {
	return fmt.Sprintf("(%d, %d)", k.Lat, k.Lon)
}
