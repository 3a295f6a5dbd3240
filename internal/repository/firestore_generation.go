package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
)

// maxTxWrites stays under Firestore's 500 writes per transaction.
const maxTxWrites = 500

// generation describes how one cached collection swaps a source's rows.
type generation[T any] struct {
	collection string
	id         func(T) string
	isActive   func(T) bool
	// retire marks a row from the previous generation inactive.
	retire func(T, time.Time) T
	// carry copies fields that must survive a re-scrape (scraped_at) from prev into next.
	carry func(prev, next T) T
}

// replace runs one transaction: every active row of source not present in rows is
// retired, then rows are written keyed by their external id. Either all of it commits
// or none of it does.
func replace[T any](ctx context.Context, client *firestore.Client, g generation[T], source string, rows []T) (ReplaceResult, error) {
	col := client.Collection(g.collection)
	var res ReplaceResult

	err := client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// the callback may be retried; start from a clean tally each time
		res = ReplaceResult{}
		now := time.Now().UTC()

		snaps, err := tx.Documents(col.Where("source", "==", source)).GetAll()
		if err != nil {
			return fmt.Errorf("load %s generation: %w", g.collection, err)
		}
		existing := make(map[string]T, len(snaps))
		for _, snap := range snaps {
			var row T
			if err := snap.DataTo(&row); err != nil {
				return fmt.Errorf("decode %s %s: %w", g.collection, snap.Ref.ID, err)
			}
			existing[snap.Ref.ID] = row
		}

		incoming := make(map[string]T, len(rows))
		for _, row := range rows {
			incoming[g.id(row)] = row
		}

		writes := 0
		for id, prev := range existing {
			if _, keep := incoming[id]; keep || !g.isActive(prev) {
				continue
			}
			if err := tx.Set(col.Doc(id), g.retire(prev, now)); err != nil {
				return fmt.Errorf("retire %s %s: %w", g.collection, id, err)
			}
			res.Deactivated++
			writes++
		}
		for id, row := range incoming {
			if prev, ok := existing[id]; ok {
				row = g.carry(prev, row)
			}
			if err := tx.Set(col.Doc(id), row); err != nil {
				return fmt.Errorf("write %s %s: %w", g.collection, id, err)
			}
			res.Stored++
			writes++
		}
		if writes > maxTxWrites {
			return fmt.Errorf("%s generation needs %d writes, over the %d transaction limit", g.collection, writes, maxTxWrites)
		}
		return nil
	})
	if err != nil {
		return ReplaceResult{}, fmt.Errorf("replace %s for %s: %w", g.collection, source, err)
	}
	return res, nil
}

// loadActive reads every active row of a collection.
func loadActive[T any](ctx context.Context, client *firestore.Client, collection string, filters ...firestore.PropertyFilter) ([]T, error) {
	q := client.Collection(collection).Where("is_active", "==", true)
	for _, f := range filters {
		q = q.WhereEntity(f)
	}
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	out := make([]T, 0, len(snaps))
	for _, snap := range snaps {
		var row T
		if err := snap.DataTo(&row); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", collection, snap.Ref.ID, err)
		}
		out = append(out, row)
	}
	return out, nil
}

// countActive runs a server-side count aggregation.
func countActive(ctx context.Context, client *firestore.Client, collection string) (int, error) {
	q := client.Collection(collection).Where("is_active", "==", true)
	res, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	v, ok := res["all"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("count %s: unexpected aggregation result %T", collection, res["all"])
	}
	return int(v.GetIntegerValue()), nil
}
