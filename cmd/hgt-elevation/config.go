package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/twpayne/go-hgt"
)

// A config is the command configuration. Flags take precedence over
// environment variables.
type config struct {
	DataDir        string
	Source         string
	URLTemplate    string
	ArchiveDir     string
	NASAProduct    string
	Username       string
	Password       string
	AcquireTimeout time.Duration
	CacheSize      int
	CachePolicy    string
	LogLevel       string
	S3             hgt.S3Config
	OSS            hgt.OSSConfig
}

func loadConfig(cmd *cobra.Command) config {
	return config{
		DataDir:        getConfigString(cmd, "data-dir", "HGT_DATA_DIR", "."),
		Source:         getConfigString(cmd, "source", "HGT_SOURCE", "none"),
		URLTemplate:    getConfigString(cmd, "url-template", "HGT_URL_TEMPLATE", ""),
		ArchiveDir:     getConfigString(cmd, "archive-dir", "HGT_ARCHIVE_DIR", ""),
		NASAProduct:    getConfigString(cmd, "nasa-product", "HGT_NASA_PRODUCT", string(hgt.SRTMGL1)),
		Username:       os.Getenv("HGT_USERNAME"),
		Password:       os.Getenv("HGT_PASSWORD"),
		AcquireTimeout: getConfigDuration(cmd, "acquire-timeout", "HGT_ACQUIRE_TIMEOUT", time.Minute),
		CacheSize:      getConfigInt(cmd, "cache-size", "HGT_CACHE_SIZE", 0),
		CachePolicy:    getConfigString(cmd, "cache-policy", "HGT_CACHE_POLICY", "otter"),
		LogLevel:       getConfigString(cmd, "log-level", "HGT_LOG_LEVEL", "info"),
		S3: hgt.S3Config{
			Endpoint:        os.Getenv("HGT_S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("HGT_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("HGT_S3_SECRET_ACCESS_KEY"),
			Bucket:          os.Getenv("HGT_S3_BUCKET"),
			KeyTemplate:     os.Getenv("HGT_S3_KEY_TEMPLATE"),
			Insecure:        os.Getenv("HGT_S3_INSECURE") == "true",
		},
		OSS: hgt.OSSConfig{
			Endpoint:        os.Getenv("HGT_OSS_ENDPOINT"),
			AccessKeyID:     os.Getenv("HGT_OSS_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("HGT_OSS_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("HGT_OSS_BUCKET"),
			KeyTemplate:     os.Getenv("HGT_OSS_KEY_TEMPLATE"),
		},
	}
}

// newAcquirer returns the TileAcquirer selected by c.Source, or nil if
// missing tiles should not be acquired.
func (c *config) newAcquirer(logger *zap.Logger) (hgt.TileAcquirer, error) {
	switch c.Source {
	case "", "none":
		return nil, nil
	case "http":
		if c.URLTemplate == "" {
			return nil, fmt.Errorf("http source requires a URL template")
		}
		options := []hgt.HTTPAcquirerOption{hgt.WithHTTPLogger(logger)}
		if c.Username != "" {
			options = append(options, hgt.WithCredentials(c.Username, c.Password))
		}
		return hgt.NewHTTPAcquirer(c.URLTemplate, options...)
	case "skadi":
		return hgt.NewSkadiAcquirer(hgt.WithHTTPLogger(logger))
	case "nasa":
		return hgt.NewNASAAcquirer(hgt.NASAProduct(c.NASAProduct), c.Username, c.Password, hgt.WithHTTPLogger(logger))
	case "archive":
		if c.ArchiveDir == "" {
			return nil, fmt.Errorf("archive source requires an archive directory")
		}
		return hgt.NewArchiveAcquirer(os.DirFS(c.ArchiveDir), logger), nil
	case "s3":
		return hgt.NewS3Acquirer(c.S3, logger)
	case "oss":
		return hgt.NewOSSAcquirer(c.OSS, logger)
	default:
		return nil, fmt.Errorf("%s: unknown source", c.Source)
	}
}

func (c *config) newStore(logger *zap.Logger) (*hgt.Store, error) {
	options := []hgt.StoreOption{
		hgt.WithLogger(logger),
		hgt.WithAcquireTimeout(c.AcquireTimeout),
	}

	acquirer, err := c.newAcquirer(logger)
	if err != nil {
		return nil, err
	}
	if acquirer != nil {
		options = append(options, hgt.WithAcquirer(acquirer))
	}

	tileCache, err := c.newTileCache()
	if err != nil {
		return nil, err
	}
	options = append(options, hgt.WithTileCache(tileCache))

	return hgt.NewStore(c.DataDir, options...)
}

// newTileCache returns the TileCache selected by c.CachePolicy and
// c.CacheSize.
func (c *config) newTileCache() (hgt.TileCache, error) {
	if c.CacheSize < 0 {
		return nil, fmt.Errorf("%d: invalid cache size", c.CacheSize)
	}
	switch c.CachePolicy {
	case "", "otter":
		return hgt.NewOtterTileCache(c.CacheSize)
	case "lru":
		if c.CacheSize == 0 {
			return nil, fmt.Errorf("lru cache policy requires a cache size")
		}
		return hgt.NewLRUTileCache(c.CacheSize)
	default:
		return nil, fmt.Errorf("%s: unknown cache policy", c.CachePolicy)
	}
}

func getConfigString(cmd *cobra.Command, flagName, envName, defaultValue string) string {
	if cmd.Flags().Changed(flagName) {
		value, _ := cmd.Flags().GetString(flagName)
		return value
	}
	if value := os.Getenv(envName); value != "" {
		return value
	}
	return defaultValue
}

func getConfigInt(cmd *cobra.Command, flagName, envName string, defaultValue int) int {
	if cmd.Flags().Changed(flagName) {
		value, _ := cmd.Flags().GetInt(flagName)
		return value
	}
	if value := os.Getenv(envName); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getConfigDuration(cmd *cobra.Command, flagName, envName string, defaultValue time.Duration) time.Duration {
	if cmd.Flags().Changed(flagName) {
		value, _ := cmd.Flags().GetDuration(flagName)
		return value
	}
	if value := os.Getenv(envName); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
