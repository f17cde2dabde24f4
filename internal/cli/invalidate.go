package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vietddude/pollster/internal/core/config"
	redisclient "github.com/vietddude/pollster/internal/infra/redis"
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate [asin...]",
	Short: "Drop cached products so the next fetch re-scrapes them",
	Args:  cobra.MinimumNArgs(1),
	Run:   runInvalidate,
}

func init() {
	rootCmd.AddCommand(invalidateCmd)
}

func runInvalidate(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Redis.URL == "" {
		fmt.Println("No product cache configured, nothing to invalidate")
		return
	}

	ctx := context.Background()
	cache, err := redisclient.NewClient(cfg.Redis, cfg.Fetching.CacheTTL.Std())
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = cache.Close()
	}()

	for _, asin := range args {
		asin = strings.ToUpper(strings.TrimSpace(asin))
		if err := cache.InvalidateProduct(ctx, asin); err != nil {
			slog.Error("Failed to invalidate product", "asin", asin, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Invalidated %s\n", asin)
	}
}
