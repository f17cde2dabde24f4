package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/vietddude/pollster/internal/core/config"
	"github.com/vietddude/pollster/internal/core/domain"
	"github.com/vietddude/pollster/internal/infra/images"
	"github.com/vietddude/pollster/internal/infra/llm"
	"github.com/vietddude/pollster/internal/infra/quota"
	"github.com/vietddude/pollster/internal/infra/storage/memory"
	"github.com/vietddude/pollster/internal/polling"
)

// Manual smoke harness: runs one title poll against the real provider
// configured in the environment.
func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found")
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		log.Fatalf("ANTHROPIC_API_KEY is not set")
	}

	ctx := context.Background()

	// 1. Create provider and retry-governed client
	provider, err := llm.NewProvider("anthropic", apiKey, "claude-sonnet-4-20250514", 4096)
	if err != nil {
		log.Fatalf("provider: %v", err)
	}
	tracker := quota.NewTracker(map[string]int{"anthropic": 1000})
	client := llm.NewClient(provider, config.DefaultLLMRetry, tracker)

	// 2. Wire the simulator onto in-memory storage
	store := memory.NewMemoryStorage()
	sim := polling.NewSimulator(client, images.NewFetcher(30*time.Second), memory.NewPollRunRepo(store), polling.Config{})

	// 3. Run one poll
	run, err := sim.Run(ctx, domain.PollRequest{
		Kind:     domain.PollKindTitle,
		Question: "Which wireless keyboard would you buy for home office use?",
		Products: []domain.Product{
			{ASIN: "B0DEMO0001", Title: "Slim Wireless Keyboard, 2.4GHz, Quiet Keys, 12-Month Battery"},
			{ASIN: "B0DEMO0002", Title: "Ergonomic Split Keyboard with Cushioned Palm Rest, Bluetooth"},
			{ASIN: "B0DEMO0003", Title: "Compact 60% Mechanical Keyboard, RGB, USB-C, Hot-Swappable"},
		},
	})
	if err != nil {
		log.Fatalf("poll failed: %v", err)
	}

	// 4. Print rankings and samples
	fmt.Printf("=== Poll %s (%s/%s, %dms) ===\n", run.ID, run.Provider, run.Model, run.DurationMS)
	for _, r := range run.Rankings {
		fmt.Printf("%d. %-70s %5.1f%%  (matched by %s)\n", r.Rank, r.Title, r.Percentage, r.Matched)
	}
	fmt.Println()
	for i, s := range run.Samples {
		fmt.Printf("Respondent %d: %s\n", i+1, s)
	}

	// 5. Show quota usage
	usage := tracker.GetUsage("anthropic")
	fmt.Printf("\nTotal calls made: %d / %d (%.1f%%)\n",
		usage.TotalCalls, usage.DailyLimit, usage.UsagePercentage)
}
