package repository

import (
	"context"

	"cloud.google.com/go/firestore"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

// FirestoreStore is the backup cache persisted in Firestore.
type FirestoreStore struct {
	banks        *BloodBankRepository
	availability *AvailabilityRepository
	donors       *DonorRepository
	metrics      *MetricsRepository
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		banks:        NewBloodBankRepository(client),
		availability: NewAvailabilityRepository(client),
		donors:       NewDonorRepository(client),
		metrics:      NewMetricsRepository(client),
	}
}

func (s *FirestoreStore) ReplaceBloodBanks(ctx context.Context, source string, banks []model.BloodBank) (ReplaceResult, error) {
	return s.banks.Replace(ctx, source, banks)
}

func (s *FirestoreStore) ReplaceAvailability(ctx context.Context, source string, rows []model.BloodAvailability) (ReplaceResult, error) {
	return s.availability.Replace(ctx, source, rows)
}

func (s *FirestoreStore) ReplaceDonors(ctx context.Context, source string, donors []model.BackupDonor) (ReplaceResult, error) {
	return s.donors.Replace(ctx, source, donors)
}

func (s *FirestoreStore) ListBloodBanks(ctx context.Context, q BankQuery) ([]model.BloodBank, error) {
	return s.banks.List(ctx, q)
}

func (s *FirestoreStore) ListAvailability(ctx context.Context, q AvailabilityQuery) ([]model.BloodAvailability, error) {
	return s.availability.List(ctx, q)
}

func (s *FirestoreStore) ListDonors(ctx context.Context, q DonorQuery) ([]model.BackupDonor, error) {
	return s.donors.List(ctx, q)
}

func (s *FirestoreStore) AppendMetrics(ctx context.Context, rec model.CacheMetricsRecord) error {
	return s.metrics.Append(ctx, rec)
}

func (s *FirestoreStore) LastSuccessfulMetrics(ctx context.Context) (*model.CacheMetricsRecord, error) {
	return s.metrics.LastSuccessful(ctx)
}

func (s *FirestoreStore) RecentMetrics(ctx context.Context, limit int) ([]model.CacheMetricsRecord, error) {
	return s.metrics.Recent(ctx, limit)
}

// ActiveCounts tallies active rows per cached entity type.
func (s *FirestoreStore) ActiveCounts(ctx context.Context) (model.CacheCounts, error) {
	var counts model.CacheCounts
	var err error
	if counts.BloodBanks, err = s.banks.CountActive(ctx); err != nil {
		return counts, err
	}
	if counts.Availability, err = s.availability.CountActive(ctx); err != nil {
		return counts, err
	}
	if counts.Donors, err = s.donors.CountActive(ctx); err != nil {
		return counts, err
	}
	return counts, nil
}
