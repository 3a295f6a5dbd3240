package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

// PrimaryDonorRepository reads registered donors from the primary Postgres database.
type PrimaryDonorRepository struct {
	db *sql.DB
}

func NewPrimaryDonorRepository(db *sql.DB) *PrimaryDonorRepository {
	return &PrimaryDonorRepository{db: db}
}

const primaryDonorQuery = `
SELECT d.id, u.full_name, d.blood_group, d.latitude, d.longitude, u.city, u.state, u.phone,
       d.is_available, d.emergency_volunteer, d.emergency_available, d.flexible_schedule,
       d.hospital_affiliated, d.last_donation_date, d.total_donations, d.response_rate,
       d.completion_rate, u.last_active_at
FROM donors d
JOIN users u ON u.id = d.user_id
WHERE u.is_active = TRUE
  AND (cardinality($1::text[]) = 0 OR d.blood_group = ANY($1::text[]))
  AND ($2 = '' OR u.city ILIKE '%' || $2 || '%' OR u.state ILIKE '%' || $2 || '%')
ORDER BY d.total_donations DESC, d.id
LIMIT $3`

// QueryDonors returns registered donors in any of q.BloodGroups near q.Location.
func (r *PrimaryDonorRepository) QueryDonors(ctx context.Context, q DonorQuery) ([]model.DonorCandidate, error) {
	groups := make([]string, len(q.BloodGroups))
	for i, g := range q.BloodGroups {
		groups[i] = string(g)
	}

	rows, err := r.db.QueryContext(ctx, primaryDonorQuery,
		pq.Array(groups), strings.TrimSpace(q.Location), limitOrDefault(q.Limit))
	if err != nil {
		return nil, fmt.Errorf("query primary donors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.DonorCandidate
	for rows.Next() {
		var (
			d                 model.DonorCandidate
			name, city, state sql.NullString
			phone             sql.NullString
			group             string
			lat, lon          sql.NullFloat64
			lastDonation      pq.NullTime
			lastActive        pq.NullTime
			responseRate      sql.NullFloat64
			completionRate    sql.NullFloat64
		)
		if err := rows.Scan(&d.ID, &name, &group, &lat, &lon, &city, &state, &phone,
			&d.IsActive, &d.EmergencyVolunteer, &d.EmergencyAvailable, &d.FlexibleSchedule,
			&d.HospitalAffiliated, &lastDonation, &d.TotalDonations, &responseRate,
			&completionRate, &lastActive); err != nil {
			return nil, fmt.Errorf("scan primary donor: %w", err)
		}

		bt, err := model.ParseBloodType(group)
		if err != nil {
			// skip rows with an unknown group
			continue
		}
		d.BloodType = bt
		d.Name = name.String
		d.City = city.String
		d.State = state.String
		d.Phone = phone.String
		d.Location = location(lat, lon)
		if lastDonation.Valid {
			t := lastDonation.Time
			d.LastDonationDate = &t
		}
		if lastActive.Valid {
			t := lastActive.Time
			d.LastActiveDate = &t
		}
		if responseRate.Valid {
			v := responseRate.Float64
			d.ResponseRate = &v
		}
		if completionRate.Valid {
			v := completionRate.Float64
			d.CompletionRate = &v
		}
		d.Provenance = model.ProvenancePrimary
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate primary donors: %w", err)
	}
	return out, nil
}
