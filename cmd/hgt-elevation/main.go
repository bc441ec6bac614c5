package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "hgt-elevation",
	Short:         "Look up elevations in SRTM HGT tiles",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("data-dir", "", "directory containing HGT tiles (env HGT_DATA_DIR)")
	flags.String("source", "", "source of missing tiles: none, http, skadi, nasa, archive, s3, or oss (env HGT_SOURCE)")
	flags.String("url-template", "", "URL template for the http source (env HGT_URL_TEMPLATE)")
	flags.String("archive-dir", "", "mirror directory for the archive source (env HGT_ARCHIVE_DIR)")
	flags.String("nasa-product", "", "NASA product, SRTMGL1 or SRTMGL3 (env HGT_NASA_PRODUCT)")
	flags.Duration("acquire-timeout", 0, "timeout for acquiring a single tile (env HGT_ACQUIRE_TIMEOUT)")
	flags.Int("cache-size", 0, "maximum number of cached tiles, 0 for unbounded (env HGT_CACHE_SIZE)")
	flags.String("cache-policy", "otter", "tile cache eviction policy, otter or lru (env HGT_CACHE_POLICY)")
	flags.String("log-level", "", "log level: debug, info, warn, or error (env HGT_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
