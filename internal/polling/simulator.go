// Package polling simulates consumer preference polls over competing
// listings through a completion provider. Products are anonymized and
// shuffled before they reach the model; the parsed distribution is
// mapped back to the original listings afterwards.
package polling

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/pollster/internal/core/domain"
	"github.com/vietddude/pollster/internal/infra/images"
	"github.com/vietddude/pollster/internal/infra/llm"
	"github.com/vietddude/pollster/internal/infra/metrics"
	"github.com/vietddude/pollster/internal/infra/storage"
	"github.com/vietddude/pollster/internal/retry"
)

// Config sizes the simulated respondent panel.
type Config struct {
	Respondents int
	Samples     int
}

// Simulator runs polls. Safe for concurrent use.
type Simulator struct {
	llm     *llm.Client
	images  *images.Fetcher
	runs    storage.PollRunRepository
	cfg     Config
	shuffle func(n int, swap func(i, j int))
	log     *slog.Logger
}

// entry is one product under its anonymized presentation label.
type entry struct {
	label   string
	product domain.Product
}

// pollResponse is the JSON shape the prompt instructs the model to emit.
type pollResponse struct {
	Rankings []rankingEntry `json:"rankings"`
	Samples  []string       `json:"sample_responses"`
}

type rankingEntry struct {
	Product    string  `json:"product"`
	Percentage float64 `json:"percentage"`
}

// NewSimulator creates a poll simulator. runs may be nil when results
// are not persisted.
func NewSimulator(client *llm.Client, fetcher *images.Fetcher, runs storage.PollRunRepository, cfg Config) *Simulator {
	if cfg.Respondents <= 0 {
		cfg.Respondents = 100
	}
	if cfg.Samples <= 0 {
		cfg.Samples = 5
	}
	return &Simulator{
		llm:     client,
		images:  fetcher,
		runs:    runs,
		cfg:     cfg,
		shuffle: rand.Shuffle,
		log:     slog.Default().With("component", "polling"),
	}
}

// Run executes one poll: anonymize and shuffle the products, issue a
// single completion call, map the distribution back, persist the run.
// The distribution is validated inside the retried call so a degenerate
// reply gets a fresh attempt instead of surfacing to the caller.
func (s *Simulator) Run(ctx context.Context, req domain.PollRequest) (*domain.PollRun, error) {
	if err := validateRequest(&req, s.cfg.Samples); err != nil {
		metrics.PollsTotal.WithLabelValues(string(req.Kind), "rejected").Inc()
		return nil, err
	}

	start := time.Now()
	entries := s.anonymize(req.Products)

	llmReq, err := s.buildRequest(ctx, req, entries)
	if err != nil {
		metrics.PollsTotal.WithLabelValues(string(req.Kind), "error").Inc()
		return nil, err
	}

	op := "poll_" + string(req.Kind)
	check := func(r *pollResponse) error {
		return validateDistribution(r.Rankings, len(entries))
	}
	parsed, err := llm.CompleteJSON(ctx, s.llm, op, llmReq, nil, check)
	if err != nil {
		metrics.PollsTotal.WithLabelValues(string(req.Kind), "error").Inc()
		return nil, err
	}

	if len(parsed.Samples) < req.SampleSize {
		s.log.Warn("Poll returned fewer sample responses than requested",
			"kind", req.Kind,
			"got", len(parsed.Samples),
			"want", req.SampleSize,
		)
	}

	run := &domain.PollRun{
		ID:          uuid.NewString(),
		Kind:        req.Kind,
		Question:    req.Question,
		Demographic: req.Demographic,
		Provider:    s.llm.Provider().Name(),
		Model:       s.llm.Provider().Model(),
		Rankings:    s.matchRankings(parsed.Rankings, entries),
		Samples:     parsed.Samples,
		DurationMS:  time.Since(start).Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}

	if s.runs != nil {
		if err := s.runs.Save(ctx, run); err != nil {
			s.log.Warn("Failed to persist poll run", "id", run.ID, "error", err)
		}
	}

	metrics.PollsTotal.WithLabelValues(string(req.Kind), "success").Inc()
	s.log.Info("Poll completed",
		"id", run.ID,
		"kind", run.Kind,
		"products", len(req.Products),
		"duration_ms", run.DurationMS,
	)
	return run, nil
}

// anonymize shuffles presentation order and assigns index-based labels.
// The returned slice order is the presentation order; the original
// product identity rides along in each entry.
func (s *Simulator) anonymize(products []domain.Product) []entry {
	order := make([]int, len(products))
	for i := range order {
		order[i] = i
	}
	s.shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	entries := make([]entry, len(order))
	for pos, idx := range order {
		entries[pos] = entry{
			label:   fmt.Sprintf("Product %d", pos+1),
			product: products[idx],
		}
	}
	return entries
}

// buildRequest renders the prompt and, for image-bearing kinds, attaches
// one labeled image per product.
func (s *Simulator) buildRequest(ctx context.Context, req domain.PollRequest, entries []entry) (llm.Request, error) {
	out := llm.Request{
		System: systemPrompt,
		Prompt: buildPrompt(req, entries, s.cfg.Respondents),
	}
	if !req.Kind.ImageBearing() {
		return out, nil
	}

	batch := s.images.NewBatch()
	defer batch.Close()

	var urls []string
	for _, e := range entries {
		if len(e.product.ImageURLs) > 0 {
			urls = append(urls, e.product.ImageURLs[0])
		}
	}
	batch.Prefetch(ctx, urls)

	for _, e := range entries {
		data, err := s.firstImage(ctx, batch, e.product)
		if err != nil {
			s.log.Warn("No usable image for product, presenting without one",
				"asin", e.product.ASIN,
				"label", e.label,
				"error", err,
			)
			continue
		}
		out.Images = append(out.Images, llm.Image{Data: data, Label: e.label})
	}
	if len(out.Images) == 0 {
		return out, retry.Terminal("invalid input: no product in this poll has a usable image", nil)
	}
	return out, nil
}

// firstImage returns the first of the product's image URLs that
// downloads and sniffs as an image.
func (s *Simulator) firstImage(ctx context.Context, batch *images.Batch, p domain.Product) ([]byte, error) {
	if len(p.ImageURLs) == 0 {
		return nil, fmt.Errorf("product %s has no image URLs", p.ASIN)
	}
	var lastErr error
	for _, u := range p.ImageURLs {
		data, err := batch.Get(ctx, u)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
