package hgt_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/klauspost/compress/zip"
	"github.com/paulmach/orb"
)

const void = -32768

// newTileData returns the bytes of a tile with resolution samples per side
// whose sample at row, col (counted from the south-west corner) is f(row, col).
func newTileData(resolution int, f func(row, col int) int) []byte {
	data := make([]byte, resolution*resolution*2)
	for row := range resolution {
		for col := range resolution {
			offset := (resolution-row-1)*resolution*2 + col*2
			binary.BigEndian.PutUint16(data[offset:], uint16(int16(f(row, col))))
		}
	}
	return data
}

func constantTileData(resolution, value int) []byte {
	return newTileData(resolution, func(int, int) int { return value })
}

// center returns the coordinate of the center of the sample at row, col in
// the tile with south-west corner lat, lon.
func center(lat, lon, resolution, row, col int) (float64, float64) {
	r := float64(resolution)
	return float64(lat) + (float64(row)+0.5)/r, float64(lon) + (float64(col)+0.5)/r
}

func writeTileFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, name+".hgt"), data, 0o666))
}

func zipTileData(t *testing.T, name string, data []byte) []byte {
	t.Helper()
	buffer := &bytes.Buffer{}
	w := zip.NewWriter(buffer)
	entry, err := w.Create(name + ".hgt")
	assert.NoError(t, err)
	_, err = entry.Write(data)
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	return buffer.Bytes()
}

func writeTileArchive(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, name+".hgt.zip"), zipTileData(t, name, data), 0o666))
}

func orbPoint(lat, lon float64) orb.Point {
	return orb.Point{lon, lat}
}
