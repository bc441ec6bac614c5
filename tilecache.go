package hgt

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/maypok86/otter/v2"
)

// A TileCache holds resolved tiles.
type TileCache interface {
	Get(key TileKey) (*Tile, bool)
	Add(key TileKey, tile *Tile)
	Len() int
	Purge()
}

// An LRUTileCache is a TileCache that holds at most a fixed number of tiles,
// evicting the least recently used.
type LRUTileCache struct {
	cache *lru.Cache[TileKey, *Tile]
}

// NewLRUTileCache returns a new LRUTileCache holding at most size tiles.
func NewLRUTileCache(size int) (*LRUTileCache, error) {
	cache, err := lru.NewWithEvict(size, func(key TileKey, tile *Tile) {
		tileCacheEvictions.Inc()
	})
	if err != nil {
		return nil, err
	}
	return &LRUTileCache{
		cache: cache,
	}, nil
}

func (c *LRUTileCache) Get(key TileKey) (*Tile, bool) {
	return c.cache.Get(key)
}

func (c *LRUTileCache) Add(key TileKey, tile *Tile) {
	c.cache.Add(key, tile)
}

func (c *LRUTileCache) Len() int {
	return c.cache.Len()
}

func (c *LRUTileCache) Purge() {
	c.cache.Purge()
}

// An OtterTileCache is a TileCache backed by otter. It is unbounded unless
// given a size, in which case it evicts approximately least frequently used
// tiles.
type OtterTileCache struct {
	cache *otter.Cache[TileKey, *Tile]
}

// NewOtterTileCache returns a new OtterTileCache holding approximately size
// tiles, or an unbounded OtterTileCache if size is zero.
func NewOtterTileCache(size int) (*OtterTileCache, error) {
	cache, err := otter.New(&otter.Options[TileKey, *Tile]{
		MaximumSize: size,
	})
	if err != nil {
		return nil, err
	}
	return &OtterTileCache{
		cache: cache,
	}, nil
}

func (c *OtterTileCache) Get(key TileKey) (*Tile, bool) {
	return c.cache.GetIfPresent(key)
}

func (c *OtterTileCache) Add(key TileKey, tile *Tile) {
	c.cache.Set(key, tile)
}

func (c *OtterTileCache) Len() int {
	return c.cache.EstimatedSize()
}

func (c *OtterTileCache) Purge() {
	c.cache.InvalidateAll()
}
