package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

const donorsCollection = "backup_donors"

// DonorRepository handles Firestore read/write for cached donors.
type DonorRepository struct {
	client *firestore.Client
}

func NewDonorRepository(client *firestore.Client) *DonorRepository {
	return &DonorRepository{client: client}
}

var donorGeneration = generation[model.BackupDonor]{
	collection: donorsCollection,
	id:         func(d model.BackupDonor) string { return d.ExternalID },
	isActive:   func(d model.BackupDonor) bool { return d.IsActive },
	retire: func(d model.BackupDonor, now time.Time) model.BackupDonor {
		d.IsActive = false
		d.LastUpdated = now
		return d
	},
	carry: func(prev, next model.BackupDonor) model.BackupDonor {
		if !prev.ScrapedAt.IsZero() {
			next.ScrapedAt = prev.ScrapedAt
		}
		return next
	},
}

func (r *DonorRepository) Replace(ctx context.Context, source string, donors []model.BackupDonor) (ReplaceResult, error) {
	return replace(ctx, r.client, donorGeneration, source, donors)
}

// List returns active donors in any of q.BloodGroups.
func (r *DonorRepository) List(ctx context.Context, q DonorQuery) ([]model.BackupDonor, error) {
	var filters []firestore.PropertyFilter
	if len(q.BloodGroups) > 0 {
		groups := make([]string, len(q.BloodGroups))
		for i, g := range q.BloodGroups {
			groups[i] = string(g)
		}
		filters = append(filters, firestore.PropertyFilter{Path: "blood_group", Operator: "in", Value: groups})
	}
	all, err := loadActive[model.BackupDonor](ctx, r.client, donorsCollection, filters...)
	if err != nil {
		return nil, err
	}
	return filterDonors(all, q), nil
}

func (r *DonorRepository) CountActive(ctx context.Context) (int, error) {
	return countActive(ctx, r.client, donorsCollection)
}
