package backup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/repository"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

var errPortalDown = errors.New("portal down")

type fakeSource struct {
	banks        map[string][]model.RawBankRecord
	availability map[string][]model.RawAvailabilityRecord
	bankErr      error
	availErr     error
	failStates   map[string]bool
	calls        atomic.Int32
}

func (f *fakeSource) Name() string { return model.SourceERaktKoshMock }

func (f *fakeSource) FetchBloodBanks(ctx context.Context, location string) ([]model.RawBankRecord, error) {
	f.calls.Add(1)
	if f.bankErr != nil {
		return nil, f.bankErr
	}
	if f.failStates[location] {
		return nil, errPortalDown
	}
	return f.banks[location], nil
}

func (f *fakeSource) FetchAvailability(ctx context.Context, bloodGroup, location string) ([]model.RawAvailabilityRecord, error) {
	f.calls.Add(1)
	if f.availErr != nil {
		return nil, f.availErr
	}
	if f.failStates[location] {
		return nil, errPortalDown
	}
	return f.availability[location], nil
}

// stalledSource never answers until the caller gives up.
type stalledSource struct{}

func (stalledSource) Name() string { return model.SourceERaktKoshMock }

func (stalledSource) FetchBloodBanks(ctx context.Context, location string) ([]model.RawBankRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledSource) FetchAvailability(ctx context.Context, bloodGroup, location string) ([]model.RawAvailabilityRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// memStore keeps one generation per entity type in memory.
type memStore struct {
	mu           sync.Mutex
	banks        []model.BloodBank
	availability []model.BloodAvailability
	donors       []model.BackupDonor
	metrics      []model.CacheMetricsRecord
	replaceErr   error
}

func (m *memStore) ReplaceBloodBanks(ctx context.Context, source string, banks []model.BloodBank) (repository.ReplaceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return repository.ReplaceResult{}, m.replaceErr
	}
	res := repository.ReplaceResult{Stored: len(banks), Deactivated: countMissing(ids(m.banks, bankID), ids(banks, bankID))}
	m.banks = banks
	return res, nil
}

func (m *memStore) ReplaceAvailability(ctx context.Context, source string, rows []model.BloodAvailability) (repository.ReplaceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return repository.ReplaceResult{}, m.replaceErr
	}
	res := repository.ReplaceResult{Stored: len(rows), Deactivated: countMissing(ids(m.availability, availID), ids(rows, availID))}
	m.availability = rows
	return res, nil
}

func (m *memStore) ReplaceDonors(ctx context.Context, source string, donors []model.BackupDonor) (repository.ReplaceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return repository.ReplaceResult{}, m.replaceErr
	}
	res := repository.ReplaceResult{Stored: len(donors), Deactivated: countMissing(ids(m.donors, donorID), ids(donors, donorID))}
	m.donors = donors
	return res, nil
}

func (m *memStore) ListBloodBanks(ctx context.Context, q repository.BankQuery) ([]model.BloodBank, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.BloodBank(nil), m.banks...), nil
}

func (m *memStore) ListAvailability(ctx context.Context, q repository.AvailabilityQuery) ([]model.BloodAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.BloodAvailability(nil), m.availability...), nil
}

func (m *memStore) ListDonors(ctx context.Context, q repository.DonorQuery) ([]model.BackupDonor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.BackupDonor(nil), m.donors...), nil
}

func (m *memStore) AppendMetrics(ctx context.Context, rec model.CacheMetricsRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = append(m.metrics, rec)
	return nil
}

func (m *memStore) LastSuccessfulMetrics(ctx context.Context) (*model.CacheMetricsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *model.CacheMetricsRecord
	for i := range m.metrics {
		rec := m.metrics[i]
		if rec.Successful && (last == nil || rec.Date.After(last.Date)) {
			last = &rec
		}
	}
	return last, nil
}

func (m *memStore) RecentMetrics(ctx context.Context, limit int) ([]model.CacheMetricsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.CacheMetricsRecord, 0, len(m.metrics))
	for i := len(m.metrics) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.metrics[i])
	}
	return out, nil
}

func (m *memStore) ActiveCounts(ctx context.Context) (model.CacheCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.CacheCounts{BloodBanks: len(m.banks), Availability: len(m.availability), Donors: len(m.donors)}, nil
}

func (m *memStore) metricCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.metrics)
}

func bankID(b model.BloodBank) string { return b.ExternalID }
func availID(a model.BloodAvailability) string { return a.ExternalID }
func donorID(d model.BackupDonor) string { return d.ExternalID }

func ids[T any](rows []T, id func(T) string) map[string]struct{} {
	out := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		out[id(r)] = struct{}{}
	}
	return out
}

func countMissing(previous, incoming map[string]struct{}) int {
	n := 0
	for id := range previous {
		if _, ok := incoming[id]; !ok {
			n++
		}
	}
	return n
}

// fakeLease records acquisitions; a non-nil err is returned from TryAcquire.
type fakeLease struct {
	held     bool
	err      error
	released []string
}

func (l *fakeLease) TryAcquire(ctx context.Context, owner string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLease) Release(ctx context.Context, owner string) error {
	l.held = false
	l.released = append(l.released, owner)
	return nil
}
