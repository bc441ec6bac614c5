package hgt

import (
	"context"
	"math"

	"github.com/paulmach/orb"
)

// An Interpolation selects how samples are combined.
type Interpolation int

const (
	Nearest Interpolation = iota
	Bilinear
)

// ParseInterpolation parses "nearest" or "bilinear".
func ParseInterpolation(s string) (Interpolation, bool) {
	switch s {
	case "", "nearest":
		return Nearest, true
	case "bilinear":
		return Bilinear, true
	default:
		return 0, false
	}
}

func (i Interpolation) String() string {
	switch i {
	case Bilinear:
		return "bilinear"
	default:
		return "nearest"
	}
}

// Elevations returns the elevations at points, which are longitude, latitude
// pairs. Void samples are represented by NaNs. Each tile is resolved once
// regardless of how many points fall within it.
func (s *Store) Elevations(ctx context.Context, points []orb.Point, interpolation Interpolation) ([]float64, error) {
	elevations := make([]float64, len(points))

	// Group indexes by tile key.
	indexesByKey := make(map[TileKey][]int)
	for index, point := range points {
		key := KeyFromCoordinate(point.Lat(), point.Lon())
		indexesByKey[key] = append(indexesByKey[key], index)
	}

	// Populate elevations one tile at a time.
	for key, indexes := range indexesByKey {
		tile, err := s.getTileCached(ctx, key)
		if err != nil {
			return nil, err
		}
		for _, index := range indexes {
			elevation, ok, err := tile.sample(points[index], interpolation)
			if err != nil {
				return nil, err
			}
			if !ok {
				elevation = math.NaN()
			}
			elevations[index] = elevation
		}
	}

	return elevations, nil
}

func (t *Tile) sample(point orb.Point, interpolation Interpolation) (float64, bool, error) {
	switch interpolation {
	case Bilinear:
		return t.SampleBilinear(point.Lat(), point.Lon())
	default:
		sample, ok, err := t.Sample(point.Lat(), point.Lon())
		return float64(sample), ok, err
	}
}
