package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

// MetricsCollection holds one document per refresh cycle.
const MetricsCollection = "backup_cache_metrics"

// MetricsRepository manages the append-only refresh audit trail.
type MetricsRepository struct {
	client *firestore.Client
}

func NewMetricsRepository(client *firestore.Client) *MetricsRepository {
	return &MetricsRepository{client: client}
}

// Append stores one refresh record. Records are never updated.
func (r *MetricsRepository) Append(ctx context.Context, rec model.CacheMetricsRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("metrics id is required")
	}
	ref := r.client.Collection(MetricsCollection).Doc(rec.ID)
	if _, err := ref.Create(ctx, rec); err != nil {
		return fmt.Errorf("append metrics %s: %w", rec.ID, err)
	}
	return nil
}

// LastSuccessful returns the newest successful record, or nil when there is none.
// Needs the composite index (successful ASC, date DESC).
func (r *MetricsRepository) LastSuccessful(ctx context.Context) (*model.CacheMetricsRecord, error) {
	iter := r.client.Collection(MetricsCollection).
		Where("successful", "==", true).
		OrderBy("date", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last successful metrics: %w", err)
	}
	var rec model.CacheMetricsRecord
	if err := doc.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("decode metrics %s: %w", doc.Ref.ID, err)
	}
	return &rec, nil
}

// Recent returns up to limit records, newest first.
func (r *MetricsRepository) Recent(ctx context.Context, limit int) ([]model.CacheMetricsRecord, error) {
	iter := r.client.Collection(MetricsCollection).
		OrderBy("date", firestore.Desc).
		Limit(limitOrDefault(limit)).
		Documents(ctx)
	defer iter.Stop()

	var out []model.CacheMetricsRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate metrics: %w", err)
		}
		var rec model.CacheMetricsRecord
		if err := doc.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode metrics %s: %w", doc.Ref.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
