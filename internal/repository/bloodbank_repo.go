package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

const bloodBanksCollection = "backup_blood_banks"

// BloodBankRepository handles Firestore read/write for cached blood banks.
type BloodBankRepository struct {
	client *firestore.Client
}

func NewBloodBankRepository(client *firestore.Client) *BloodBankRepository {
	return &BloodBankRepository{client: client}
}

var bankGeneration = generation[model.BloodBank]{
	collection: bloodBanksCollection,
	id:         func(b model.BloodBank) string { return b.ExternalID },
	isActive:   func(b model.BloodBank) bool { return b.IsActive },
	retire: func(b model.BloodBank, now time.Time) model.BloodBank {
		b.IsActive = false
		b.LastUpdated = now
		return b
	},
	carry: func(prev, next model.BloodBank) model.BloodBank {
		if !prev.ScrapedAt.IsZero() {
			next.ScrapedAt = prev.ScrapedAt
		}
		return next
	},
}

// Replace swaps source's blood banks for banks in one transaction.
func (r *BloodBankRepository) Replace(ctx context.Context, source string, banks []model.BloodBank) (ReplaceResult, error) {
	return replace(ctx, r.client, bankGeneration, source, banks)
}

// List returns active banks matching q.
func (r *BloodBankRepository) List(ctx context.Context, q BankQuery) ([]model.BloodBank, error) {
	all, err := loadActive[model.BloodBank](ctx, r.client, bloodBanksCollection)
	if err != nil {
		return nil, err
	}
	return filterBanks(all, q), nil
}

// CountActive counts active banks.
func (r *BloodBankRepository) CountActive(ctx context.Context) (int, error) {
	return countActive(ctx, r.client, bloodBanksCollection)
}
