package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

const availabilityCollection = "backup_blood_availability"

// AvailabilityRepository handles Firestore read/write for cached stock lines.
type AvailabilityRepository struct {
	client *firestore.Client
}

func NewAvailabilityRepository(client *firestore.Client) *AvailabilityRepository {
	return &AvailabilityRepository{client: client}
}

var availabilityGeneration = generation[model.BloodAvailability]{
	collection: availabilityCollection,
	id:         func(a model.BloodAvailability) string { return a.ExternalID },
	isActive:   func(a model.BloodAvailability) bool { return a.IsActive },
	retire: func(a model.BloodAvailability, now time.Time) model.BloodAvailability {
		a.IsActive = false
		a.LastUpdated = now
		return a
	},
	carry: func(prev, next model.BloodAvailability) model.BloodAvailability {
		if !prev.ScrapedAt.IsZero() {
			next.ScrapedAt = prev.ScrapedAt
		}
		return next
	},
}

func (r *AvailabilityRepository) Replace(ctx context.Context, source string, rows []model.BloodAvailability) (ReplaceResult, error) {
	return replace(ctx, r.client, availabilityGeneration, source, rows)
}

// List returns active stock lines with units on hand, most units first.
func (r *AvailabilityRepository) List(ctx context.Context, q AvailabilityQuery) ([]model.BloodAvailability, error) {
	var filters []firestore.PropertyFilter
	if q.BloodGroup != "" {
		filters = append(filters, firestore.PropertyFilter{Path: "blood_group", Operator: "==", Value: string(q.BloodGroup)})
	}
	all, err := loadActive[model.BloodAvailability](ctx, r.client, availabilityCollection, filters...)
	if err != nil {
		return nil, err
	}
	return filterAvailability(all, q), nil
}

func (r *AvailabilityRepository) CountActive(ctx context.Context) (int, error) {
	return countActive(ctx, r.client, availabilityCollection)
}
