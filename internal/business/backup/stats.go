package backup

import (
	"context"
	"time"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

// HealthServiceName identifies the backup cache in health reports.
const HealthServiceName = "eraktkosh_cached_backup"

// Health statuses.
const (
	HealthHealthy = "healthy"
	HealthStale   = "stale"
	HealthError   = "error"
)

// ValidationStats sums one refresh cycle's validator output per entity type.
type ValidationStats struct {
	Valid    map[string]int `json:"valid"`
	Invalid  map[string]int `json:"invalid"`
	Warnings int            `json:"warnings"`
}

// HealthReport is the dashboard view of the backup cache.
type HealthReport struct {
	Service            string            `json:"service"`
	Status             string            `json:"status"`
	IsUpdating         bool              `json:"is_updating"`
	RunningRefreshID   string            `json:"running_refresh_id,omitempty"`
	CacheExpired       bool              `json:"cache_expired"`
	CurrentCounts      model.CacheCounts `json:"current_counts"`
	LastUpdate         *time.Time        `json:"last_update,omitempty"`
	LastUpdateDuration float64           `json:"last_update_duration,omitempty"`
	ValidationStats    *ValidationStats  `json:"validation_stats,omitempty"`
	Error              string            `json:"error,omitempty"`
}

// AggregateValidationStats reduces a metrics record into per-entity validation counts.
func AggregateValidationStats(rec model.CacheMetricsRecord) ValidationStats {
	stats := ValidationStats{
		Valid:   make(map[string]int, len(rec.Entities)),
		Invalid: make(map[string]int, len(rec.Entities)),
	}
	for entity, m := range rec.Entities {
		stats.Valid[entity] = m.Valid
		stats.Invalid[entity] = m.Invalid
		stats.Warnings += m.Warnings
	}
	return stats
}

// Health reports counts and staleness of the backup cache. Store failures are reported in
// the body, not as an error.
func (s *Service) Health(ctx context.Context) HealthReport {
	running := s.guard.Running()
	report := HealthReport{
		Service:          HealthServiceName,
		IsUpdating:       running != "",
		RunningRefreshID: running,
	}

	last, err := s.store.LastSuccessfulMetrics(ctx)
	if err != nil {
		report.Status = HealthError
		report.Error = err.Error()
		return report
	}
	counts, err := s.store.ActiveCounts(ctx)
	if err != nil {
		report.Status = HealthError
		report.Error = err.Error()
		return report
	}
	report.CurrentCounts = counts

	report.CacheExpired = last == nil || s.now().Sub(last.Date) > s.cfg.CacheDuration
	if report.CacheExpired {
		report.Status = HealthStale
	} else {
		report.Status = HealthHealthy
	}
	if last != nil {
		date := last.Date
		report.LastUpdate = &date
		report.LastUpdateDuration = last.TotalDuration
		stats := AggregateValidationStats(*last)
		report.ValidationStats = &stats
	}
	return report
}
