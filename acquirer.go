package hgt

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// A TileAcquirer obtains missing tiles. AcquireTile attempts to place the tile
// called name in dir, either as name.hgt or as name.hgt.zip, and returns true
// only if it is now present. It must be safe to call when the tile already
// exists.
type TileAcquirer interface {
	AcquireTile(ctx context.Context, dir, name string) bool
}

// An AcquirerFunc is a function that implements TileAcquirer.
type AcquirerFunc func(ctx context.Context, dir, name string) bool

func (f AcquirerFunc) AcquireTile(ctx context.Context, dir, name string) bool {
	return f(ctx, dir, name)
}

// A NoopAcquirer never acquires anything, restricting a Store to the tiles
// already present locally.
type NoopAcquirer struct{}

func (NoopAcquirer) AcquireTile(ctx context.Context, dir, name string) bool {
	return tileExists(dir, name)
}

// An ArchiveAcquirer copies tiles from a mirror, for example a shared network
// filesystem or an unpacked distribution.
type ArchiveAcquirer struct {
	fsys   fs.FS
	logger *zap.Logger
}

// NewArchiveAcquirer returns a new ArchiveAcquirer that copies from fsys.
func NewArchiveAcquirer(fsys fs.FS, logger *zap.Logger) *ArchiveAcquirer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveAcquirer{
		fsys:   fsys,
		logger: logger,
	}
}

func (a *ArchiveAcquirer) AcquireTile(ctx context.Context, dir, name string) bool {
	if tileExists(dir, name) {
		return true
	}
	for _, suffix := range []string{rawSuffix, archiveSuffix} {
		filename := name + suffix
		switch err := a.copyFile(ctx, dir, filename); {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			a.logger.Error("copy tile", zap.String("filename", filename), zap.Error(err))
			return false
		default:
			return true
		}
	}
	return false
}

func (a *ArchiveAcquirer) copyFile(ctx context.Context, dir, filename string) error {
	src, err := a.fsys.Open(filename)
	if err != nil {
		return err
	}
	defer src.Close()
	return placeFile(dir, filename, func(dst *os.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := io.Copy(dst, src)
		return err
	})
}

// placeFile creates filename in dir by calling write with a temporary file in
// dir and then renaming it into place, so readers never see a partial file.
func placeFile(dir, filename string, write func(*os.File) error) (err error) {
	tmp, err := os.CreateTemp(dir, "."+filename+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, filename))
}

// tileExists returns true if the tile called name is present in dir.
func tileExists(dir, name string) bool {
	for _, suffix := range []string{rawSuffix, archiveSuffix} {
		if fileInfo, err := os.Stat(filepath.Join(dir, name+suffix)); err == nil && fileInfo.Mode().IsRegular() {
			return true
		}
	}
	return false
}
