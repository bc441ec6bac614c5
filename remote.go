package hgt

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// expandTemplate substitutes {name} and {lat} in template. {lat} is the
// latitude part of name, for example N47.
func expandTemplate(template, name string) string {
	lat := name
	if len(name) >= 3 {
		lat = name[:3]
	}
	return strings.NewReplacer(
		"{name}", name,
		"{lat}", lat,
	).Replace(template)
}

// localFilename returns the local filename for the tile called name fetched
// from remote, and whether remote is gzip compressed. Zip archives are kept as
// is and gzip compressed tiles are stored raw.
func localFilename(name, remote string) (string, bool) {
	switch lower := strings.ToLower(remote); {
	case strings.HasSuffix(lower, ".zip"):
		return name + archiveSuffix, false
	case strings.HasSuffix(lower, ".gz"):
		return name + rawSuffix, true
	default:
		return name + rawSuffix, false
	}
}

// copyTile copies src to dst, decompressing it if gzipped is true.
func copyTile(dst io.Writer, src io.Reader, gzipped bool) error {
	if gzipped {
		r, err := gzip.NewReader(src)
		if err != nil {
			return err
		}
		defer r.Close()
		src = r
	}
	_, err := io.Copy(dst, src)
	return err
}
