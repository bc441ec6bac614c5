package hgt

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Supported resolutions, in samples per side.
const (
	SRTM3Resolution = 1201
	SRTM1Resolution = 3601
)

const (
	srtm3Size = SRTM3Resolution * SRTM3Resolution * 2
	srtm1Size = SRTM1Resolution * SRTM1Resolution * 2
)

// voidSample is the bit pattern of a sample with no data.
const voidSample = 0x8000

// A Tile is a decoded HGT tile. Tiles are immutable and safe for concurrent
// use.
type Tile struct {
	key        TileKey
	resolution int
	data       []byte
}

// NewTile returns a new Tile for key backed by data. data must contain
// exactly 1201*1201 or 3601*3601 big-endian 16-bit samples.
func NewTile(key TileKey, data []byte) (*Tile, error) {
	var resolution int
	switch len(data) {
	case srtm3Size:
		resolution = SRTM3Resolution
	case srtm1Size:
		resolution = SRTM1Resolution
	default:
		return nil, fmt.Errorf("%s: %w: %d bytes", key.Name(), ErrInvalidTileSize, len(data))
	}
	return &Tile{
		key:        key,
		resolution: resolution,
		data:       data,
	}, nil
}

// ReadTileFile reads the tile at path, which is either a raw .hgt file or a
// .hgt.zip archive with a single entry. The tile's key is derived from the
// file name.
func ReadTileFile(path string) (*Tile, error) {
	key, err := ParseTileName(filepath.Base(path))
	if err != nil {
		return nil, err
	}

	var data []byte
	if strings.HasSuffix(strings.ToLower(path), ".zip") {
		data, err = readArchive(path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	return NewTile(key, data)
}

// readArchive returns the contents of the first entry in the zip archive at
// path.
func readArchive(path string) ([]byte, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if len(r.File) == 0 {
		return nil, fmt.Errorf("%s: empty archive", path)
	}
	entry := r.File[0]
	if entry.UncompressedSize64 > srtm1Size {
		return nil, fmt.Errorf("%s: %w: %d bytes", path, ErrInvalidTileSize, entry.UncompressedSize64)
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Key returns t's key.
func (t *Tile) Key() TileKey {
	return t.key
}

// Resolution returns the number of samples per side of t.
func (t *Tile) Resolution() int {
	return t.resolution
}

// Sample returns the sample nearest to lat, lon. It returns false if the sample
// is void. It returns an error matching ErrCoordinateOutOfRange if lat, lon
// falls outside t's grid, including east or west of t on a row that t covers.
func (t *Tile) Sample(lat, lon float64) (int, bool, error) {
	row, col := t.local(lat, lon)
	return t.sampleAt(int(math.Floor(row)), int(math.Floor(col)))
}

// SampleBilinear returns the bilinear interpolation of the four samples
// surrounding lat, lon. If any of them is void or outside t then it falls
// back to Sample.
func (t *Tile) SampleBilinear(lat, lon float64) (float64, bool, error) {
	row, col := t.local(lat, lon)
	row0, row1 := int(math.Floor(row)), int(math.Ceil(row))
	col0, col1 := int(math.Floor(col)), int(math.Ceil(col))

	var corners [4]float64
	for i, rc := range [4][2]int{
		{row0, col0},
		{row1, col0},
		{row0, col1},
		{row1, col1},
	} {
		sample, ok, err := t.cornerAt(rc[0], rc[1])
		if err != nil {
			return 0, false, err
		}
		if !ok {
			sample, ok, err := t.Sample(lat, lon)
			return float64(sample), ok, err
		}
		corners[i] = float64(sample)
	}

	return blerp(
		corners[0], corners[1], corners[2], corners[3],
		float64(row1)-row,
		float64(col1)-col,
	), true, nil
}

// local returns the fractional row and column of lat, lon, counted from t's
// south-west corner.
func (t *Tile) local(lat, lon float64) (float64, float64) {
	r := float64(t.resolution)
	return (lat - float64(t.key.Lat)) * r, (lon - float64(t.key.Lon)) * r
}

// cornerAt is sampleAt for bilinear corners, which may legitimately lie one
// row or column outside t.
func (t *Tile) cornerAt(row, col int) (int, bool, error) {
	if row < 0 || t.resolution <= row || col < 0 || t.resolution <= col {
		return 0, false, nil
	}
	return t.sampleAt(row, col)
}

// sampleAt returns the sample at row, col. Rows are stored north to south, so
// row 0 is the last row in t.data. Columns are checked as well as the offset so
// that a column past the edge does not wrap onto the next row.
func (t *Tile) sampleAt(row, col int) (int, bool, error) {
	offset := (t.resolution-row-1)*t.resolution*2 + col*2
	if offset < 0 || len(t.data) <= offset || col < 0 || t.resolution <= col {
		return 0, false, fmt.Errorf("%s: %w: row %d, column %d", t.key.Name(), ErrCoordinateOutOfRange, row, col)
	}
	bits := binary.BigEndian.Uint16(t.data[offset : offset+2])
	if bits == voidSample {
		return 0, false, nil
	}
	return int(int16(bits)), true, nil
}
