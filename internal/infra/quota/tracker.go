// Package quota tracks daily request budgets for external services.
//
// Budgets are advisory: calls always proceed, but the health monitor
// degrades once a service burns most of its daily allowance. Counters
// reset at local midnight.
package quota

import (
	"sync"
	"time"

	"github.com/vietddude/pollster/internal/infra/metrics"
)

// UsageStats holds quota usage statistics for one service.
type UsageStats struct {
	TotalCalls      int
	CallsPerHour    int
	DailyLimit      int
	RemainingCalls  int
	UsagePercentage float64
	NextResetAt     time.Time
}

type serviceUsage struct {
	totalCalls     int
	callsThisHour  int
	hourStartTime  time.Time
	operationCalls map[string]int
}

// Tracker tracks per-service daily call counts against configured limits.
type Tracker struct {
	mu        sync.RWMutex
	usage     map[string]*serviceUsage
	limits    map[string]int // 0 = unlimited
	resetTime time.Time
}

// NewTracker creates a tracker with per-service daily limits.
func NewTracker(limits map[string]int) *Tracker {
	t := &Tracker{
		usage:  make(map[string]*serviceUsage),
		limits: make(map[string]int),
	}
	for service, limit := range limits {
		t.limits[service] = limit
	}
	t.resetTime = nextMidnight(time.Now())
	return t
}

// RecordCall records one call for quota tracking.
func (t *Tracker) RecordCall(service, operation string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if time.Now().After(t.resetTime) {
		t.resetUnsafe()
	}

	u, ok := t.usage[service]
	if !ok {
		u = &serviceUsage{
			hourStartTime:  time.Now(),
			operationCalls: make(map[string]int),
		}
		t.usage[service] = u
	}

	if time.Since(u.hourStartTime) >= time.Hour {
		u.callsThisHour = 0
		u.hourStartTime = time.Now()
	}

	u.totalCalls++
	u.callsThisHour++
	u.operationCalls[operation]++

	metrics.QuotaUsed.WithLabelValues(service).Set(float64(u.totalCalls))
}

// GetUsage returns usage statistics for a service.
func (t *Tracker) GetUsage(service string) UsageStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	limit := t.limits[service]
	stats := UsageStats{
		DailyLimit:  limit,
		NextResetAt: t.resetTime,
	}

	u, ok := t.usage[service]
	if !ok {
		stats.RemainingCalls = limit
		return stats
	}

	stats.TotalCalls = u.totalCalls
	stats.CallsPerHour = u.callsThisHour

	if limit > 0 {
		remaining := limit - u.totalCalls
		if remaining < 0 {
			remaining = 0
		}
		stats.RemainingCalls = remaining
		stats.UsagePercentage = float64(u.totalCalls) / float64(limit) * 100
	}
	return stats
}

// Exhausted reports whether a service has burned its whole daily limit.
// Unlimited services are never exhausted.
func (t *Tracker) Exhausted(service string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	limit := t.limits[service]
	if limit <= 0 {
		return false
	}
	u, ok := t.usage[service]
	if !ok {
		return false
	}
	return u.totalCalls >= limit
}

// Reset clears all usage counters.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetUnsafe()
}

func (t *Tracker) resetUnsafe() {
	for service, u := range t.usage {
		u.totalCalls = 0
		u.callsThisHour = 0
		u.hourStartTime = time.Now()
		u.operationCalls = make(map[string]int)
		metrics.QuotaUsed.WithLabelValues(service).Set(0)
	}
	t.resetTime = nextMidnight(time.Now())
}

func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}
