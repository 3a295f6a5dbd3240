package backup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/repository"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/util"
)

// Defaults for Config fields left zero.
const (
	DefaultCacheDuration = 2 * time.Hour
	DefaultFetchTimeout  = 30 * time.Second

	// storedBankLimit bounds the banks reloaded from the store when donors are derived
	// without a fresh bank scrape.
	storedBankLimit = 5000
	metricsTimeout  = 10 * time.Second
)

// Status is the outcome of one Refresh call.
type Status string

const (
	StatusSkipped   Status = "skipped"
	StatusFresh     Status = "fresh"
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// CacheState is the freshness of the persisted snapshot.
type CacheState string

const (
	StateRefreshing CacheState = "refreshing"
	StateStale      CacheState = "stale"
	StateFresh      CacheState = "fresh"
)

// Config tunes the refresh pipeline.
type Config struct {
	// States are swept one call each, followed by one unfiltered call.
	States            []string
	CacheDuration     time.Duration
	FetchTimeout      time.Duration
	DefaultDonorGroup model.BloodType
	// MaxCycleDuration bounds one cycle. Keep it below the refresh lease TTL so a slow
	// sweep never outlives the lease. Zero means no bound.
	MaxCycleDuration  time.Duration
}

// RefreshResult describes one Refresh call. Metrics is nil unless a cycle ran.
type RefreshResult struct {
	RunID   string                    `json:"run_id,omitempty"`
	Status  Status                    `json:"status"`
	Metrics *model.CacheMetricsRecord `json:"metrics,omitempty"`
}

// Healthy reports whether the loop may wait the long interval before the next cycle.
func (r RefreshResult) Healthy() bool {
	return r.Status != StatusFailed && r.Status != StatusPartial
}

// Service keeps the backup snapshot of the blood bank portal and serves reads from it.
type Service struct {
	source       Source
	store        Store
	validator    *Validator
	orchestrator *Orchestrator
	guard        *RefreshGuard
	cfg          Config
	logger       *zap.Logger
	now          func() time.Time

	lastSuccess atomic.Pointer[time.Time]
	nudge       chan struct{}
}

func NewService(source Source, store Store, guard *RefreshGuard, orchestrator *Orchestrator, cfg Config, logger *zap.Logger) *Service {
	if cfg.CacheDuration <= 0 {
		cfg.CacheDuration = DefaultCacheDuration
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if !cfg.DefaultDonorGroup.Valid() {
		cfg.DefaultDonorGroup = model.OPos
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if guard == nil {
		guard = NewRefreshGuard(nil, logger)
	}
	if orchestrator == nil {
		orchestrator = NewOrchestrator(0, logger)
	}
	return &Service{
		source:       source,
		store:        store,
		validator:    NewValidator(),
		orchestrator: orchestrator,
		guard:        guard,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
		nudge:        make(chan struct{}, 1),
	}
}

// Refresh runs one refresh cycle. Concurrent calls return StatusSkipped; without force, a
// cache that has not expired returns StatusFresh. Every executed cycle appends exactly one
// metrics record, whatever its outcome.
func (s *Service) Refresh(ctx context.Context, force bool) (RefreshResult, error) {
	runID := uuid.NewString()
	runCtx, release, err := s.guard.Begin(ctx, runID)
	if errors.Is(err, ErrRefreshInProgress) {
		s.logger.Info("refresh already in progress, skipping")
		return RefreshResult{Status: StatusSkipped}, nil
	}
	if err != nil {
		return RefreshResult{}, err
	}
	defer release()

	if s.cfg.MaxCycleDuration > 0 {
		var cancelCycle context.CancelFunc
		runCtx, cancelCycle = context.WithTimeout(runCtx, s.cfg.MaxCycleDuration)
		defer cancelCycle()
	}

	if !force {
		expired, err := s.IsCacheExpired(runCtx)
		if err != nil {
			s.logger.Warn("check cache expiry, treating as expired", zap.Error(err))
		}
		if !expired {
			s.logger.Info("backup cache is fresh, skipping refresh")
			return RefreshResult{RunID: runID, Status: StatusFresh}, nil
		}
	}

	rec := s.runCycle(runCtx, runID)
	status := cycleStatus(rec)

	// The metrics row is written even when the cycle was canceled.
	metricsCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsTimeout)
	defer cancel()
	if err := s.store.AppendMetrics(metricsCtx, rec); err != nil {
		return RefreshResult{RunID: runID, Status: status, Metrics: &rec},
			fmt.Errorf("append refresh metrics: %w", err)
	}
	if rec.Successful {
		date := rec.Date
		s.lastSuccess.Store(&date)
	}

	s.logger.Info("backup refresh finished",
		zap.String("run_id", runID),
		zap.String("status", string(status)),
		zap.Int("valid_records", rec.ValidRecords()),
		zap.Int("invalid_records", rec.InvalidRecords()),
		zap.Float64("total_duration_seconds", rec.TotalDuration))

	result := RefreshResult{RunID: runID, Status: status, Metrics: &rec}
	if err := runCtx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return result, fmt.Errorf("refresh exceeded %s: %w", s.cfg.MaxCycleDuration, err)
		}
		return result, fmt.Errorf("refresh canceled: %w", err)
	}
	return result, nil
}

// runCycle scrapes, validates and stores availability, banks and donors. Each entity type
// fails on its own; a failed type keeps its previous generation.
func (s *Service) runCycle(ctx context.Context, runID string) model.CacheMetricsRecord {
	start := s.now().UTC()
	rec := model.CacheMetricsRecord{
		ID:       runID,
		Date:     start,
		Entities: make(map[string]model.EntityMetrics, 3),
	}
	s.logger.Info("starting backup refresh", zap.String("run_id", runID), zap.String("source", s.source.Name()))

	rawAvailability, availErr := s.sweepAvailability(ctx)
	rawBanks, bankErr := s.sweepBanks(ctx)
	scraped := s.now()
	rec.ScrapingDuration = scraped.Sub(start).Seconds()

	var (
		availBatch Batch[model.BloodAvailability]
		bankBatch  Batch[model.BloodBank]
	)
	if availErr == nil {
		availBatch = s.validator.ValidateAvailabilityRows(rawAvailability)
	}
	if bankErr == nil {
		bankBatch = s.validator.ValidateBanks(rawBanks)
	}
	rec.ValidationDuration = s.now().Sub(scraped).Seconds()

	stamp := s.now().UTC()
	source := s.source.Name()

	availMetrics := entityMetrics(len(rawAvailability), availBatch.Stats, availErr)
	if availErr == nil {
		rows := stampAvailability(availBatch.Valid, source, stamp)
		availBatch.Valid = rows
		s.replaceGeneration(ctx, model.EntityAvailability, &availMetrics, func(ctx context.Context) (repository.ReplaceResult, error) {
			return s.store.ReplaceAvailability(ctx, source, rows)
		})
	}
	rec.Entities[model.EntityAvailability] = availMetrics

	bankMetrics := entityMetrics(len(rawBanks), bankBatch.Stats, bankErr)
	if bankErr == nil {
		rows := stampBanks(bankBatch.Valid, source, stamp)
		bankBatch.Valid = rows
		s.replaceGeneration(ctx, model.EntityBloodBanks, &bankMetrics, func(ctx context.Context) (repository.ReplaceResult, error) {
			return s.store.ReplaceBloodBanks(ctx, source, rows)
		})
	}
	rec.Entities[model.EntityBloodBanks] = bankMetrics

	rec.Entities[model.EntityDonors] = s.refreshDonors(ctx, source, stamp, bankBatch.Valid, bankErr, availBatch.Valid, availErr)

	rec.TotalDuration = s.now().UTC().Sub(start).Seconds()
	var failures []string
	for _, entity := range []string{model.EntityAvailability, model.EntityBloodBanks, model.EntityDonors} {
		if m := rec.Entities[entity]; !m.Succeeded {
			failures = append(failures, entity+": "+m.Error)
		}
	}
	rec.Successful = len(failures) == 0
	rec.ErrorMessage = strings.Join(failures, "; ")
	return rec
}

func (s *Service) refreshDonors(
	ctx context.Context,
	source string,
	stamp time.Time,
	banks []model.BloodBank,
	bankErr error,
	availability []model.BloodAvailability,
	availErr error,
) model.EntityMetrics {
	if bankErr != nil {
		stored, err := s.store.ListBloodBanks(ctx, repository.BankQuery{Limit: storedBankLimit})
		if err != nil {
			return model.EntityMetrics{Error: fmt.Sprintf("load stored blood banks: %v", err)}
		}
		if len(stored) == 0 {
			return model.EntityMetrics{Error: "no blood banks to derive donors from"}
		}
		banks = stored
	}
	if availErr != nil {
		stored, err := s.store.ListAvailability(ctx, repository.AvailabilityQuery{Limit: storedBankLimit})
		if err != nil {
			s.logger.Warn("load stored availability for donor groups", zap.Error(err))
		}
		availability = stored
	}

	raws := SynthesizeDonors(banks, availability, s.cfg.DefaultDonorGroup)
	batch := s.validator.ValidateDonors(raws)
	m := entityMetrics(len(raws), batch.Stats, nil)
	rows := stampDonors(batch.Valid, source, stamp)
	s.replaceGeneration(ctx, model.EntityDonors, &m, func(ctx context.Context) (repository.ReplaceResult, error) {
		return s.store.ReplaceDonors(ctx, source, rows)
	})
	return m
}

// replaceGeneration runs one generation swap and records its outcome in m.
func (s *Service) replaceGeneration(ctx context.Context, entity string, m *model.EntityMetrics, replace func(context.Context) (repository.ReplaceResult, error)) {
	res, err := replace(ctx)
	if err != nil {
		m.Succeeded = false
		m.Error = err.Error()
		s.logger.Error("store backup generation", zap.String("entity", entity), zap.Error(err))
		return
	}
	m.Stored = res.Stored
	m.Deactivated = res.Deactivated
	m.Succeeded = true
}

func (s *Service) sweepAvailability(ctx context.Context) ([]model.RawAvailabilityRecord, error) {
	rows, _, err := Sweep(ctx, s.orchestrator, model.EntityAvailability, s.cfg.States,
		func(ctx context.Context, state string) ([]model.RawAvailabilityRecord, error) {
			ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
			defer cancel()
			return s.source.FetchAvailability(ctx, "", state)
		})
	return rows, err
}

func (s *Service) sweepBanks(ctx context.Context) ([]model.RawBankRecord, error) {
	rows, _, err := Sweep(ctx, s.orchestrator, model.EntityBloodBanks, s.cfg.States,
		func(ctx context.Context, state string) ([]model.RawBankRecord, error) {
			ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
			defer cancel()
			return s.source.FetchBloodBanks(ctx, state)
		})
	return rows, err
}

func entityMetrics(scraped int, stats BatchStats, fetchErr error) model.EntityMetrics {
	m := model.EntityMetrics{
		Scraped:  scraped,
		Valid:    stats.Valid,
		Invalid:  stats.Invalid,
		Warnings: stats.Warnings,
	}
	if fetchErr != nil {
		m.Error = fetchErr.Error()
	}
	return m
}

func cycleStatus(rec model.CacheMetricsRecord) Status {
	succeeded := 0
	for _, m := range rec.Entities {
		if m.Succeeded {
			succeeded++
		}
	}
	switch {
	case succeeded == len(rec.Entities):
		return StatusCompleted
	case succeeded > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// IsCacheExpired reports whether no refresh has succeeded within the cache duration.
func (s *Service) IsCacheExpired(ctx context.Context) (bool, error) {
	last, err := s.store.LastSuccessfulMetrics(ctx)
	if err != nil {
		return true, fmt.Errorf("load last successful refresh: %w", err)
	}
	if last == nil {
		return true, nil
	}
	date := last.Date
	s.lastSuccess.Store(&date)
	return s.now().Sub(last.Date) > s.cfg.CacheDuration, nil
}

// State reports whether the snapshot is being refreshed, stale or fresh.
func (s *Service) State(ctx context.Context) (CacheState, error) {
	if s.guard.IsRunning() {
		return StateRefreshing, nil
	}
	expired, err := s.IsCacheExpired(ctx)
	if err != nil {
		return StateStale, err
	}
	if expired {
		return StateStale, nil
	}
	return StateFresh, nil
}

// Nudges delivers a signal whenever a read found the snapshot stale.
func (s *Service) Nudges() <-chan struct{} {
	return s.nudge
}

// CancelRefresh aborts the in-flight cycle, if any.
func (s *Service) CancelRefresh() bool {
	return s.guard.Cancel()
}

func (s *Service) nudgeIfStale() {
	last := s.lastSuccess.Load()
	if last != nil && s.now().Sub(*last) <= s.cfg.CacheDuration {
		return
	}
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

// CachedDonors returns cached donors as matcher candidates.
func (s *Service) CachedDonors(ctx context.Context, q repository.DonorQuery) ([]model.DonorCandidate, error) {
	s.nudgeIfStale()
	rows, err := s.store.ListDonors(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list cached donors: %w", err)
	}
	out := make([]model.DonorCandidate, 0, len(rows))
	for _, d := range rows {
		out = append(out, d.Candidate())
	}
	return out, nil
}

// CachedBloodBanks returns cached banks matching location.
func (s *Service) CachedBloodBanks(ctx context.Context, q repository.BankQuery) ([]model.BloodBank, error) {
	s.nudgeIfStale()
	rows, err := s.store.ListBloodBanks(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list cached blood banks: %w", err)
	}
	return rows, nil
}

// CachedAvailability returns cached stock lines with units on hand.
func (s *Service) CachedAvailability(ctx context.Context, q repository.AvailabilityQuery) ([]model.BloodAvailability, error) {
	s.nudgeIfStale()
	rows, err := s.store.ListAvailability(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list cached availability: %w", err)
	}
	return rows, nil
}

// RecentMetrics returns the latest refresh audit rows, newest first.
func (s *Service) RecentMetrics(ctx context.Context, limit int) ([]model.CacheMetricsRecord, error) {
	return s.store.RecentMetrics(ctx, limit)
}

func stampBanks(rows []model.BloodBank, source string, now time.Time) []model.BloodBank {
	return dedupe(rows, func(b *model.BloodBank) string {
		b.ExternalID = util.HashBankKey(b.Name, b.Address, b.State)
		b.Source, b.ScrapedAt, b.LastUpdated, b.IsActive = source, now, now, true
		return b.ExternalID
	})
}

func stampAvailability(rows []model.BloodAvailability, source string, now time.Time) []model.BloodAvailability {
	return dedupe(rows, func(a *model.BloodAvailability) string {
		a.ExternalID = util.HashAvailabilityKey(a.BloodBankName, a.City, a.State, string(a.BloodGroup))
		a.Source, a.ScrapedAt, a.LastUpdated, a.IsActive = source, now, now, true
		return a.ExternalID
	})
}

func stampDonors(rows []model.BackupDonor, source string, now time.Time) []model.BackupDonor {
	return dedupe(rows, func(d *model.BackupDonor) string {
		d.ExternalID = util.HashDonorKey(d.Name, d.Phone, string(d.BloodGroup))
		d.Source, d.ScrapedAt, d.LastUpdated, d.IsActive = source, now, now, true
		return d.ExternalID
	})
}

// dedupe stamps every row and keeps the last occurrence of each id in first-seen order.
// The state sweep and the unfiltered call return overlapping rows.
func dedupe[T any](rows []T, stamp func(*T) string) []T {
	index := make(map[string]int, len(rows))
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		id := stamp(&row)
		if i, ok := index[id]; ok {
			out[i] = row
			continue
		}
		index[id] = len(out)
		out = append(out, row)
	}
	return out
}

// LiveBloodBanks fetches banks straight from the source and validates them without
// touching the cache.
func (s *Service) LiveBloodBanks(ctx context.Context, location string) ([]model.BloodBank, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	raws, err := s.source.FetchBloodBanks(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("fetch live blood banks: %w", err)
	}
	batch := s.validator.ValidateBanks(raws)
	return stampBanks(batch.Valid, s.source.Name(), s.now()), nil
}

// LiveAvailability fetches stock lines straight from the source. Lines without units on
// hand are dropped, matching what the cached listing returns.
func (s *Service) LiveAvailability(ctx context.Context, group model.BloodType, location string) ([]model.BloodAvailability, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	raws, err := s.source.FetchAvailability(ctx, string(group), location)
	if err != nil {
		return nil, fmt.Errorf("fetch live availability: %w", err)
	}
	batch := s.validator.ValidateAvailabilityRows(raws)
	rows := make([]model.BloodAvailability, 0, len(batch.Valid))
	for _, a := range batch.Valid {
		if a.UnitsAvailable > 0 && (group == "" || a.BloodGroup == group) {
			rows = append(rows, a)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].UnitsAvailable > rows[j].UnitsAvailable })
	return stampAvailability(rows, s.source.Name(), s.now()), nil
}
