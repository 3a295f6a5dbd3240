package backup

import (
	"context"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/repository"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

// Source abstracts the backup portal so the refresh pipeline can run without network calls.
// An empty location or blood group means "no filter".
type Source interface {
	Name() string
	FetchBloodBanks(ctx context.Context, location string) ([]model.RawBankRecord, error)
	FetchAvailability(ctx context.Context, bloodGroup, location string) ([]model.RawAvailabilityRecord, error)
}

// Store abstracts the persisted backup snapshot. Both the Firestore and SQLite stores
// satisfy it.
type Store interface {
	ReplaceBloodBanks(ctx context.Context, source string, banks []model.BloodBank) (repository.ReplaceResult, error)
	ReplaceAvailability(ctx context.Context, source string, rows []model.BloodAvailability) (repository.ReplaceResult, error)
	ReplaceDonors(ctx context.Context, source string, donors []model.BackupDonor) (repository.ReplaceResult, error)

	ListBloodBanks(ctx context.Context, q repository.BankQuery) ([]model.BloodBank, error)
	ListAvailability(ctx context.Context, q repository.AvailabilityQuery) ([]model.BloodAvailability, error)
	ListDonors(ctx context.Context, q repository.DonorQuery) ([]model.BackupDonor, error)

	AppendMetrics(ctx context.Context, rec model.CacheMetricsRecord) error
	LastSuccessfulMetrics(ctx context.Context) (*model.CacheMetricsRecord, error)
	RecentMetrics(ctx context.Context, limit int) ([]model.CacheMetricsRecord, error)
	ActiveCounts(ctx context.Context) (model.CacheCounts, error)
}

var (
	_ Store = (*repository.FirestoreStore)(nil)
	_ Store = (*repository.SQLiteStore)(nil)
)
