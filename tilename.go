package hgt

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	rawSuffix     = ".hgt"
	archiveSuffix = ".hgt.zip"
)

// Name returns the canonical name of k, for example N47E011.
func (k TileKey) Name() string {
	ns, lat := 'N', k.Lat
	if lat < 0 {
		ns, lat = 'S', -lat
	}
	ew, lon := 'E', k.Lon
	if lon < 0 {
		ew, lon = 'W', -lon
	}
	return fmt.Sprintf("%c%02d%c%03d", ns, lat, ew, lon)
}

// ParseTileName parses a tile name like N47E011 into a TileKey. Matching is
// case insensitive and any .hgt or .hgt.zip suffix is ignored.
func ParseTileName(name string) (TileKey, error) {
	s := strings.ToUpper(name)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}

	if len(s) < 4 {
		return TileKey{}, fmt.Errorf("%w: %q", ErrInvalidTileName, name)
	}

	var latSign int
	switch s[0] {
	case 'N':
		latSign = 1
	case 'S':
		latSign = -1
	default:
		return TileKey{}, fmt.Errorf("%w: %q", ErrInvalidTileName, name)
	}

	i := strings.IndexAny(s, "EW")
	if i < 2 {
		return TileKey{}, fmt.Errorf("%w: %q", ErrInvalidTileName, name)
	}
	lonSign := 1
	if s[i] == 'W' {
		lonSign = -1
	}

	lat, ok := parseMagnitude(s[1:i])
	if !ok {
		return TileKey{}, fmt.Errorf("%w: %q", ErrInvalidTileName, name)
	}
	lon, ok := parseMagnitude(s[i+1:])
	if !ok {
		return TileKey{}, fmt.Errorf("%w: %q", ErrInvalidTileName, name)
	}

	return TileKey{
		Lat: latSign * lat,
		Lon: lonSign * lon,
	}, nil
}

// parseMagnitude parses an unsigned decimal magnitude.
func parseMagnitude(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || '9' < c {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
