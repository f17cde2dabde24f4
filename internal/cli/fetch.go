package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/pollster/internal/core/config"
	"github.com/vietddude/pollster/internal/core/domain"
	"github.com/vietddude/pollster/internal/fetching"
	"github.com/vietddude/pollster/internal/infra/images"
	"github.com/vietddude/pollster/internal/infra/quota"
	"github.com/vietddude/pollster/internal/infra/scraper"
	"github.com/vietddude/pollster/internal/infra/storage"
	"github.com/vietddude/pollster/internal/infra/storage/postgres"
)

var fetchASINs []string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Bulk-fetch competitor listings by ASIN",
	Run:   runFetch,
}

func init() {
	fetchCmd.Flags().StringArrayVar(&fetchASINs, "asin", nil, "ASIN to fetch (repeatable)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	asins := append(fetchASINs, args...)
	if len(asins) == 0 {
		stylelog.InitDefault()
		slog.Error("No ASINs given, use --asin")
		os.Exit(1)
	}

	initLogger(cfg)

	// Persist into Postgres when configured, otherwise print-only.
	var repo storage.ProductRepository
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			_ = db.Close()
		}()
		repo = postgres.NewProductRepo(db)
	}

	limits := make(map[string]int)
	if cfg.Scraper.DailyQuota > 0 {
		limits["scraper"] = cfg.Scraper.DailyQuota
	}
	sc := scraper.NewClient(
		cfg.Scraper.BaseURL,
		cfg.Scraper.APIKey,
		cfg.Scraper.Marketplace,
		cfg.Scraper.Retry.Policy(config.DefaultScraperRetry),
		quota.NewTracker(limits),
	)
	fetcher := fetching.NewFetcher(sc, images.NewFetcher(cfg.Fetching.ImageTimeout.Std()), nil, repo, fetching.Config{
		ItemDelay: cfg.Fetching.ItemDelay.Std(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bar := pb.StartNew(len(asins))
	result, err := fetcher.FetchAll(ctx, asins, func(done, total int, asin string, status domain.ItemStatus) {
		bar.Increment()
	})
	bar.Finish()
	if err != nil {
		slog.Error("Bulk fetch aborted", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ASIN\tSTATUS\tDETAIL")
	for _, item := range result.Results {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", item.ASIN, colorItemStatus(item.Status), itemDetail(item))
	}
	_ = w.Flush()

	fmt.Printf("\n%d fetched, %d need review, %d failed\n",
		result.SuccessCount, result.NeedsReviewCount, result.FailedCount)
}

func itemDetail(item domain.ItemResult) string {
	switch {
	case item.Error != "":
		return item.Error
	case len(item.Warnings) > 0:
		return strings.Join(item.Warnings, "; ")
	case item.Product != nil:
		return item.Product.Title
	}
	return ""
}

func colorItemStatus(s domain.ItemStatus) string {
	switch s {
	case domain.ItemStatusSuccess:
		return color.GreenString(string(s))
	case domain.ItemStatusNeedsReview:
		return color.YellowString(string(s))
	default:
		return color.RedString(string(s))
	}
}
