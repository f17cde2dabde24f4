package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/pollster/internal/infra/quota"
)

// DBPinger checks database reachability.
type DBPinger interface {
	Health(ctx context.Context) error
}

// CachePinger checks cache reachability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// Credentials carries configured key lengths. The monitor never sees
// the keys themselves.
type Credentials struct {
	LLMKeyLen     int
	ScraperKeyLen int
}

// Monitor aggregates health status from system components.
type Monitor struct {
	creds      Credentials
	db         DBPinger
	cache      CachePinger
	tracker    *quota.Tracker
	services   []string
	lastCheck  time.Time
	lastReport *Report
	mu         sync.Mutex
}

// NewMonitor creates a health monitor. db and cache may be nil when the
// deployment runs on memory storage or without a cache; services names
// the quota budgets worth watching.
func NewMonitor(creds Credentials, db DBPinger, cache CachePinger, tracker *quota.Tracker, services []string) *Monitor {
	return &Monitor{
		creds:    creds,
		db:       db,
		cache:    cache,
		tracker:  tracker,
		services: services,
	}
}

// Check performs a health check across all components.
func (m *Monitor) Check(ctx context.Context) *Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks (max once per 10s) to avoid hammering the DB
	if time.Since(m.lastCheck) < 10*time.Second && m.lastReport != nil {
		return m.lastReport
	}

	report := &Report{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth),
	}
	add := func(c ComponentHealth) {
		report.Components[c.Name] = c
		if worse(c.Status, report.SystemStatus) {
			report.SystemStatus = c.Status
		}
	}

	// Completion calls are the product; a missing key there is critical.
	// Scraping degrades to cached products only.
	add(credentialHealth("llm_credentials", m.creds.LLMKeyLen, StatusCritical))
	add(credentialHealth("scraper_credentials", m.creds.ScraperKeyLen, StatusDegraded))

	add(m.checkDB(ctx))
	add(m.checkCache(ctx))
	for _, svc := range m.services {
		add(m.checkQuota(svc))
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

func credentialHealth(name string, keyLen int, whenMissing SystemStatus) ComponentHealth {
	if keyLen == 0 {
		return ComponentHealth{Name: name, Status: whenMissing, Detail: "credential not configured"}
	}
	return ComponentHealth{Name: name, Status: StatusHealthy, Detail: fmt.Sprintf("configured, %d characters", keyLen)}
}

func (m *Monitor) checkDB(ctx context.Context) ComponentHealth {
	c := ComponentHealth{Name: "database", Status: StatusHealthy}
	if m.db == nil {
		c.Detail = "in-memory storage"
		return c
	}
	if err := m.db.Health(ctx); err != nil {
		c.Status = StatusDegraded
		c.Detail = err.Error()
	}
	return c
}

func (m *Monitor) checkCache(ctx context.Context) ComponentHealth {
	c := ComponentHealth{Name: "cache", Status: StatusHealthy}
	if m.cache == nil {
		c.Detail = "disabled"
		return c
	}
	if err := m.cache.Ping(ctx); err != nil {
		c.Status = StatusDegraded
		c.Detail = err.Error()
	}
	return c
}

func (m *Monitor) checkQuota(service string) ComponentHealth {
	c := ComponentHealth{Name: service + "_quota", Status: StatusHealthy}
	if m.tracker == nil {
		return c
	}
	stats := m.tracker.GetUsage(service)
	if stats.DailyLimit == 0 {
		c.Detail = "no daily limit"
		return c
	}
	c.Detail = fmt.Sprintf("%.0f%% of daily limit used", stats.UsagePercentage)
	switch {
	case stats.UsagePercentage >= 100:
		c.Status = StatusCritical
	case stats.UsagePercentage > 85:
		c.Status = StatusDegraded
	}
	return c
}
