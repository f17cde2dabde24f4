package retry

import "time"

// Policy defines backoff behavior for one external service class.
//
// InitialDelay must not exceed MaxDelay and Multiplier must be > 1 for
// genuine exponential growth. The policy caps only the delay between
// attempts, never the attempt count.
type Policy struct {
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	AttemptTimeout time.Duration // 0 disables the per-attempt deadline
}

// GenerativePolicy suits long multi-second LLM completion calls.
var GenerativePolicy = Policy{
	InitialDelay:   2 * time.Second,
	MaxDelay:       60 * time.Second,
	Multiplier:     2.0,
	AttemptTimeout: 120 * time.Second,
}

// InteractivePolicy suits short calls a user is actively waiting on, such
// as screenshot field extraction.
var InteractivePolicy = Policy{
	InitialDelay:   1 * time.Second,
	MaxDelay:       15 * time.Second,
	Multiplier:     2.0,
	AttemptTimeout: 45 * time.Second,
}

// ScrapePolicy suits single-product scraping API lookups.
var ScrapePolicy = Policy{
	InitialDelay:   1 * time.Second,
	MaxDelay:       30 * time.Second,
	Multiplier:     2.0,
	AttemptTimeout: 60 * time.Second,
}
