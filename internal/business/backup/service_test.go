package backup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/repository"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

var refreshNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

var (
	aiimsBank = model.RawBankRecord{
		Name: "AIIMS Blood Bank", Address: "Ansari Nagar", Contact: "+91 98100 00001",
		City: "New Delhi", State: "Delhi", Latitude: "28.5672", Longitude: "77.2100", Category: "Govt",
	}
	fortisBank = model.RawBankRecord{
		Name: "Fortis Blood Bank", Address: "Vasant Kunj", City: "New Delhi", State: "Delhi",
		Latitude: "28.5200", Longitude: "77.1590",
	}
	safdarjungBank = model.RawBankRecord{
		Name: "Safdarjung Hospital Blood Bank", Address: "Ring Road", Contact: "011-26707444",
		City: "New Delhi", State: "DL",
	}
)

func newPortal() *fakeSource {
	return &fakeSource{
		banks: map[string][]model.RawBankRecord{
			"Delhi": {aiimsBank, fortisBank},
			"":      {aiimsBank, safdarjungBank, {Name: "X"}},
		},
		availability: map[string][]model.RawAvailabilityRecord{
			"Delhi": {
				{BloodBankName: "AIIMS Blood Bank", BloodGroup: "O+", UnitsAvailable: "10", State: "Delhi"},
				{BloodBankName: "AIIMS Blood Bank", BloodGroup: "B-", UnitsAvailable: "25", State: "Delhi"},
			},
			"": {
				{BloodBankName: "Fortis Blood Bank", BloodGroup: "A POSITIVE", UnitsAvailable: "7", State: "Delhi"},
				{BloodBankName: "AIIMS Blood Bank", BloodGroup: "O+", UnitsAvailable: "10", State: "Delhi"},
			},
		},
	}
}

func newTestService(src Source, store Store) *Service {
	svc := NewService(src, store, nil, NewOrchestrator(2, nil), Config{States: []string{"Delhi"}}, zap.NewNop())
	svc.now = func() time.Time { return refreshNow }
	return svc
}

func donorGroups(donors []model.BackupDonor) map[string]model.BloodType {
	out := make(map[string]model.BloodType, len(donors))
	for _, d := range donors {
		out[d.Name] = d.BloodGroup
	}
	return out
}

func TestRefreshStoresEveryEntity(t *testing.T) {
	store := &memStore{}
	svc := newTestService(newPortal(), store)

	res, err := svc.Refresh(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.NotEmpty(t, res.RunID)

	require.Len(t, store.metrics, 1)
	rec := store.metrics[0]
	assert.True(t, rec.Successful)
	assert.Empty(t, rec.ErrorMessage)
	assert.Equal(t, res.RunID, rec.ID)
	assert.Equal(t, refreshNow, rec.Date)

	banks := rec.Entities[model.EntityBloodBanks]
	assert.Equal(t, model.EntityMetrics{Scraped: 5, Valid: 4, Invalid: 1, Warnings: banks.Warnings, Stored: 3, Succeeded: true}, banks)
	avail := rec.Entities[model.EntityAvailability]
	assert.Equal(t, 4, avail.Scraped)
	assert.Equal(t, 3, avail.Stored)

	require.Len(t, store.banks, 3)
	for _, b := range store.banks {
		assert.Contains(t, b.ExternalID, "bank_")
		assert.Equal(t, model.SourceERaktKoshMock, b.Source)
		assert.True(t, b.IsActive)
		assert.Equal(t, refreshNow, b.ScrapedAt)
	}

	assert.Equal(t, map[string]model.BloodType{
		"AIIMS Blood Bank":               model.BNeg,
		"Fortis Blood Bank":              model.APos,
		"Safdarjung Hospital Blood Bank": model.OPos,
	}, donorGroups(store.donors))
	for _, d := range store.donors {
		assert.True(t, d.IsBloodBank)
		assert.True(t, d.HospitalAffiliated)
		assert.True(t, d.FlexibleSchedule)
	}
}

func TestRefreshSecondGenerationDeactivatesMissingRows(t *testing.T) {
	store := &memStore{}
	src := newPortal()
	svc := newTestService(src, store)

	_, err := svc.Refresh(context.Background(), true)
	require.NoError(t, err)

	src.banks = map[string][]model.RawBankRecord{"": {aiimsBank}}
	res, err := svc.Refresh(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 2, res.Metrics.Entities[model.EntityBloodBanks].Deactivated)
	assert.Len(t, store.banks, 1)
	assert.Len(t, store.metrics, 2)
}

func TestRefreshSkipsFreshCacheUnlessForced(t *testing.T) {
	tests := []struct {
		name       string
		lastUpdate time.Duration
		force      bool
		want       Status
	}{
		{"fresh", -1 * time.Hour, false, StatusFresh},
		{"stale", -3 * time.Hour, false, StatusCompleted},
		{"forced", -1 * time.Hour, true, StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{metrics: []model.CacheMetricsRecord{{ID: "prev", Date: refreshNow.Add(tt.lastUpdate), Successful: true}}}
			src := newPortal()
			res, err := newTestService(src, store).Refresh(context.Background(), tt.force)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Status)
			if tt.want == StatusFresh {
				assert.Zero(t, src.calls.Load())
				assert.Len(t, store.metrics, 1)
			}
		})
	}
}

func TestRefreshSkippedWhileAnotherRuns(t *testing.T) {
	store := &memStore{}
	src := newPortal()
	svc := newTestService(src, store)

	_, release, err := svc.guard.Begin(context.Background(), "other-run")
	require.NoError(t, err)
	defer release()

	res, err := svc.Refresh(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Zero(t, src.calls.Load())
	assert.Empty(t, store.metrics)

	state, err := svc.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateRefreshing, state)
}

func TestRefreshPartialWhenAvailabilityFails(t *testing.T) {
	store := &memStore{}
	src := newPortal()
	src.availErr = errPortalDown
	svc := newTestService(src, store)

	res, err := svc.Refresh(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, res.Status)
	assert.False(t, res.Healthy())

	require.Len(t, store.metrics, 1)
	rec := store.metrics[0]
	assert.False(t, rec.Successful)
	assert.Contains(t, rec.ErrorMessage, model.EntityAvailability)
	assert.False(t, rec.Entities[model.EntityAvailability].Succeeded)
	assert.True(t, rec.Entities[model.EntityBloodBanks].Succeeded)
	assert.True(t, rec.Entities[model.EntityDonors].Succeeded)

	for name, group := range donorGroups(store.donors) {
		assert.Equal(t, model.OPos, group, name)
	}

	expired, err := svc.IsCacheExpired(context.Background())
	require.NoError(t, err)
	assert.True(t, expired, "a partial cycle does not refresh the cache clock")
}

func TestRefreshDerivesDonorsFromStoredBanksWhenScrapeFails(t *testing.T) {
	store := &memStore{banks: []model.BloodBank{{ExternalID: "bank_stored", Name: "Red Cross Blood Bank", State: "Delhi", IsActive: true}}}
	src := newPortal()
	src.bankErr = errPortalDown
	svc := newTestService(src, store)

	res, err := svc.Refresh(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, map[string]model.BloodType{"Red Cross Blood Bank": model.OPos}, donorGroups(store.donors))
	assert.Len(t, store.banks, 1, "previous bank generation is kept")
}

func TestRefreshFailedWhenEverythingFails(t *testing.T) {
	store := &memStore{}
	src := newPortal()
	src.bankErr = errPortalDown
	src.availErr = errPortalDown
	svc := newTestService(src, store)

	res, err := svc.Refresh(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	require.Len(t, store.metrics, 1)
	assert.False(t, store.metrics[0].Successful)
	assert.Contains(t, store.metrics[0].ErrorMessage, "no blood banks")
}

func TestIsCacheExpired(t *testing.T) {
	tests := []struct {
		name    string
		metrics []model.CacheMetricsRecord
		want    bool
	}{
		{"no record", nil, true},
		{"three hours old", []model.CacheMetricsRecord{{Date: refreshNow.Add(-3 * time.Hour), Successful: true}}, true},
		{"one hour old", []model.CacheMetricsRecord{{Date: refreshNow.Add(-1 * time.Hour), Successful: true}}, false},
		{"only failures", []model.CacheMetricsRecord{{Date: refreshNow.Add(-1 * time.Hour)}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(newPortal(), &memStore{metrics: tt.metrics})
			expired, err := svc.IsCacheExpired(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, expired)
		})
	}
}

func TestCachedReadsNudgeWhenStale(t *testing.T) {
	store := &memStore{}
	svc := newTestService(newPortal(), store)

	_, err := svc.CachedBloodBanks(context.Background(), repository.BankQuery{})
	require.NoError(t, err)
	select {
	case <-svc.Nudges():
	default:
		t.Fatal("expected a nudge for an empty cache")
	}

	_, err = svc.Refresh(context.Background(), true)
	require.NoError(t, err)

	donors, err := svc.CachedDonors(context.Background(), repository.DonorQuery{})
	require.NoError(t, err)
	require.Len(t, donors, 3)
	for _, d := range donors {
		assert.Equal(t, model.ProvenanceBackup, d.Provenance)
		assert.True(t, d.EmergencyAvailable)
	}
	select {
	case <-svc.Nudges():
		t.Fatal("fresh cache must not nudge")
	default:
	}
}

func TestHealth(t *testing.T) {
	store := &memStore{}
	svc := newTestService(newPortal(), store)

	report := svc.Health(context.Background())
	assert.Equal(t, HealthStale, report.Status)
	assert.True(t, report.CacheExpired)
	assert.Nil(t, report.LastUpdate)

	_, err := svc.Refresh(context.Background(), true)
	require.NoError(t, err)

	report = svc.Health(context.Background())
	assert.Equal(t, HealthServiceName, report.Service)
	assert.Equal(t, HealthHealthy, report.Status)
	assert.False(t, report.IsUpdating)
	assert.Equal(t, model.CacheCounts{BloodBanks: 3, Availability: 3, Donors: 3}, report.CurrentCounts)
	require.NotNil(t, report.LastUpdate)
	assert.Equal(t, refreshNow, *report.LastUpdate)
	require.NotNil(t, report.ValidationStats)
	assert.Equal(t, 4, report.ValidationStats.Valid[model.EntityBloodBanks])
	assert.Equal(t, 1, report.ValidationStats.Invalid[model.EntityBloodBanks])
}

func TestLiveBloodBanksValidatesWithoutStoring(t *testing.T) {
	store := &memStore{}
	svc := newTestService(newPortal(), store)

	banks, err := svc.LiveBloodBanks(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, banks, 2)
	assert.Equal(t, "AIIMS Blood Bank", banks[0].Name)
	assert.Equal(t, "Delhi", banks[1].State)
	for _, b := range banks {
		assert.NotEmpty(t, b.ExternalID)
		assert.Equal(t, model.SourceERaktKoshMock, b.Source)
		assert.True(t, b.IsActive)
	}
	assert.Empty(t, store.banks)
	assert.Zero(t, store.metricCount())
}

func TestLiveAvailabilityFiltersGroupAndOrdersByUnits(t *testing.T) {
	svc := newTestService(newPortal(), &memStore{})

	rows, err := svc.LiveAvailability(context.Background(), "", "Delhi")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.BNeg, rows[0].BloodGroup)
	assert.Equal(t, model.OPos, rows[1].BloodGroup)

	rows, err = svc.LiveAvailability(context.Background(), model.OPos, "Delhi")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 10, rows[0].UnitsAvailable)
}

func TestLiveFetchWrapsSourceError(t *testing.T) {
	src := newPortal()
	src.bankErr = errPortalDown
	svc := newTestService(src, &memStore{})

	_, err := svc.LiveBloodBanks(context.Background(), "Delhi")
	assert.ErrorIs(t, err, errPortalDown)
}

func TestStampAvailabilityKeepsSameNamedBanksInDifferentStates(t *testing.T) {
	rows := []model.BloodAvailability{
		{BloodBankName: "District Hospital Blood Bank", State: "Bihar", BloodGroup: model.OPos, UnitsAvailable: 12},
		{BloodBankName: "District Hospital Blood Bank", State: "Kerala", BloodGroup: model.OPos, UnitsAvailable: 3},
		{BloodBankName: "District Hospital Blood Bank", State: "Kerala", BloodGroup: model.OPos, UnitsAvailable: 5},
	}

	got := stampAvailability(rows, model.SourceERaktKosh, refreshNow)
	require.Len(t, got, 2)
	assert.Equal(t, "Bihar", got[0].State)
	assert.Equal(t, 12, got[0].UnitsAvailable)
	assert.Equal(t, "Kerala", got[1].State)
	assert.Equal(t, 5, got[1].UnitsAvailable, "a repeated row in the same state replaces the earlier one")
	assert.NotEqual(t, got[0].ExternalID, got[1].ExternalID)
}

func TestHealthReportsRunningRefresh(t *testing.T) {
	svc := newTestService(newPortal(), &memStore{})

	_, release, err := svc.guard.Begin(context.Background(), "run-42")
	require.NoError(t, err)

	report := svc.Health(context.Background())
	assert.True(t, report.IsUpdating)
	assert.Equal(t, "run-42", report.RunningRefreshID)

	release()
	report = svc.Health(context.Background())
	assert.False(t, report.IsUpdating)
	assert.Empty(t, report.RunningRefreshID)
}

func TestRefreshStopsAtMaxCycleDuration(t *testing.T) {
	store := &memStore{}
	svc := NewService(stalledSource{}, store, nil, NewOrchestrator(2, nil), Config{
		States:           []string{"Delhi", "Kerala"},
		MaxCycleDuration: 50 * time.Millisecond,
	}, zap.NewNop())

	start := time.Now()
	res, err := svc.Refresh(context.Background(), true)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StatusFailed, res.Status)
	require.Len(t, store.metrics, 1, "the metrics row is written after the deadline")
	assert.False(t, store.metrics[0].Successful)
	assert.False(t, svc.guard.IsRunning())
}
