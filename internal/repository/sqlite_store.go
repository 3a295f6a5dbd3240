package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

// timeLayout is fixed width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore is the backup cache persisted in a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// retireGeneration marks every active row of source inactive and returns the ids that
// were active before.
func (s *SQLiteStore) retireGeneration(ctx context.Context, tx *sql.Tx, table, source string, now string) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT external_id FROM `+table+` WHERE source = ? AND is_active = 1`, source)
	if err != nil {
		return nil, fmt.Errorf("query %s generation: %w", table, err)
	}
	active := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan %s id: %w", table, err)
		}
		active[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate %s generation: %w", table, err)
	}
	_ = rows.Close()

	if _, err := tx.ExecContext(ctx,
		`UPDATE `+table+` SET is_active = 0, last_updated = ? WHERE source = ? AND is_active = 1`,
		now, source); err != nil {
		return nil, fmt.Errorf("retire %s generation: %w", table, err)
	}
	return active, nil
}

func deactivatedCount(previous map[string]struct{}, incoming []string) int {
	kept := 0
	seen := make(map[string]struct{}, len(incoming))
	for _, id := range incoming {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := previous[id]; ok {
			kept++
		}
	}
	return len(previous) - kept
}

// ReplaceBloodBanks swaps source's banks in one transaction. Re-confirmed rows keep
// their original scraped_at.
func (s *SQLiteStore) ReplaceBloodBanks(ctx context.Context, source string, banks []model.BloodBank) (ReplaceResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ReplaceResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(s.now())
	previous, err := s.retireGeneration(ctx, tx, "backup_blood_banks", source, now)
	if err != nil {
		return ReplaceResult{}, err
	}

	ids := make([]string, 0, len(banks))
	for _, b := range banks {
		lat, lon := coordinates(b.Coordinates)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO backup_blood_banks (external_id, name, address, contact, email, city, state,
			     latitude, longitude, is_government, source, scraped_at, is_active, last_updated,
			     validated_at, validation_source)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
			 ON CONFLICT (external_id) DO UPDATE SET
			     name = excluded.name, address = excluded.address, contact = excluded.contact,
			     email = excluded.email, city = excluded.city, state = excluded.state,
			     latitude = excluded.latitude, longitude = excluded.longitude,
			     is_government = excluded.is_government, source = excluded.source, is_active = 1,
			     last_updated = excluded.last_updated, validated_at = excluded.validated_at,
			     validation_source = excluded.validation_source`,
			b.ExternalID, b.Name, b.Address, b.Contact, b.Email, b.City, b.State,
			lat, lon, boolToInt(b.IsGovernment), source, formatTime(b.ScrapedAt), now,
			nullTime(b.ValidatedAt), b.ValidationSource,
		)
		if err != nil {
			return ReplaceResult{}, fmt.Errorf("upsert blood bank %s: %w", b.ExternalID, err)
		}
		ids = append(ids, b.ExternalID)
	}

	if err := tx.Commit(); err != nil {
		return ReplaceResult{}, fmt.Errorf("commit blood banks: %w", err)
	}
	return ReplaceResult{Stored: len(banks), Deactivated: deactivatedCount(previous, ids)}, nil
}

// ReplaceAvailability swaps source's stock lines in one transaction.
func (s *SQLiteStore) ReplaceAvailability(ctx context.Context, source string, rows []model.BloodAvailability) (ReplaceResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ReplaceResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(s.now())
	previous, err := s.retireGeneration(ctx, tx, "backup_blood_availability", source, now)
	if err != nil {
		return ReplaceResult{}, err
	}

	ids := make([]string, 0, len(rows))
	for _, a := range rows {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO backup_blood_availability (external_id, blood_bank_name, blood_group,
			     units_available, city, state, source, scraped_at, is_active, last_updated,
			     validated_at, validation_source)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
			 ON CONFLICT (external_id) DO UPDATE SET
			     blood_bank_name = excluded.blood_bank_name, blood_group = excluded.blood_group,
			     units_available = excluded.units_available, city = excluded.city,
			     state = excluded.state, source = excluded.source, is_active = 1,
			     last_updated = excluded.last_updated, validated_at = excluded.validated_at,
			     validation_source = excluded.validation_source`,
			a.ExternalID, a.BloodBankName, string(a.BloodGroup), a.UnitsAvailable, a.City, a.State,
			source, formatTime(a.ScrapedAt), now, nullTime(a.ValidatedAt), a.ValidationSource,
		)
		if err != nil {
			return ReplaceResult{}, fmt.Errorf("upsert availability %s: %w", a.ExternalID, err)
		}
		ids = append(ids, a.ExternalID)
	}

	if err := tx.Commit(); err != nil {
		return ReplaceResult{}, fmt.Errorf("commit availability: %w", err)
	}
	return ReplaceResult{Stored: len(rows), Deactivated: deactivatedCount(previous, ids)}, nil
}

// ReplaceDonors swaps source's cached donors in one transaction.
func (s *SQLiteStore) ReplaceDonors(ctx context.Context, source string, donors []model.BackupDonor) (ReplaceResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ReplaceResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(s.now())
	previous, err := s.retireGeneration(ctx, tx, "backup_donors", source, now)
	if err != nil {
		return ReplaceResult{}, err
	}

	ids := make([]string, 0, len(donors))
	for _, d := range donors {
		lat, lon := coordinates(d.Coordinates)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO backup_donors (external_id, name, blood_group, phone, email, address, city,
			     state, latitude, longitude, is_blood_bank, hospital_affiliated, flexible_schedule,
			     source, scraped_at, is_active, last_updated, validated_at, validation_source)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
			 ON CONFLICT (external_id) DO UPDATE SET
			     name = excluded.name, blood_group = excluded.blood_group, phone = excluded.phone,
			     email = excluded.email, address = excluded.address, city = excluded.city,
			     state = excluded.state, latitude = excluded.latitude, longitude = excluded.longitude,
			     is_blood_bank = excluded.is_blood_bank,
			     hospital_affiliated = excluded.hospital_affiliated,
			     flexible_schedule = excluded.flexible_schedule, source = excluded.source,
			     is_active = 1, last_updated = excluded.last_updated,
			     validated_at = excluded.validated_at, validation_source = excluded.validation_source`,
			d.ExternalID, d.Name, string(d.BloodGroup), d.Phone, d.Email, d.Address, d.City, d.State,
			lat, lon, boolToInt(d.IsBloodBank), boolToInt(d.HospitalAffiliated),
			boolToInt(d.FlexibleSchedule), source, formatTime(d.ScrapedAt), now,
			nullTime(d.ValidatedAt), d.ValidationSource,
		)
		if err != nil {
			return ReplaceResult{}, fmt.Errorf("upsert donor %s: %w", d.ExternalID, err)
		}
		ids = append(ids, d.ExternalID)
	}

	if err := tx.Commit(); err != nil {
		return ReplaceResult{}, fmt.Errorf("commit donors: %w", err)
	}
	return ReplaceResult{Stored: len(donors), Deactivated: deactivatedCount(previous, ids)}, nil
}

// locationClause builds the case-insensitive OR over the given columns.
func locationClause(location string, columns ...string) (string, []any) {
	needle := strings.ToLower(strings.TrimSpace(location))
	if needle == "" {
		return "", nil
	}
	parts := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, c := range columns {
		parts[i] = "lower(" + c + ") LIKE ?"
		args[i] = "%" + needle + "%"
	}
	return " AND (" + strings.Join(parts, " OR ") + ")", args
}

func (s *SQLiteStore) ListBloodBanks(ctx context.Context, q BankQuery) ([]model.BloodBank, error) {
	where, args := locationClause(q.Location, "name", "address", "city", "state")
	args = append(args, limitOrDefault(q.Limit))
	rows, err := s.db.QueryContext(ctx,
		`SELECT external_id, name, address, contact, email, city, state, latitude, longitude,
		        is_government, source, scraped_at, is_active, last_updated, validated_at,
		        validation_source
		 FROM backup_blood_banks
		 WHERE is_active = 1`+where+`
		 ORDER BY name LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("query blood banks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.BloodBank
	for rows.Next() {
		var (
			b                model.BloodBank
			lat, lon         sql.NullFloat64
			gov, active      int
			scraped, updated string
			validated        sql.NullString
		)
		if err := rows.Scan(&b.ExternalID, &b.Name, &b.Address, &b.Contact, &b.Email, &b.City,
			&b.State, &lat, &lon, &gov, &b.Source, &scraped, &active, &updated, &validated,
			&b.ValidationSource); err != nil {
			return nil, fmt.Errorf("scan blood bank: %w", err)
		}
		b.Coordinates = location(lat, lon)
		b.IsGovernment = gov == 1
		b.IsActive = active == 1
		b.ScrapedAt = parseTime(scraped)
		b.LastUpdated = parseTime(updated)
		b.ValidatedAt = parseTime(validated.String)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListAvailability(ctx context.Context, q AvailabilityQuery) ([]model.BloodAvailability, error) {
	query := `SELECT external_id, blood_bank_name, blood_group, units_available, city, state,
	                 source, scraped_at, is_active, last_updated, validated_at, validation_source
	          FROM backup_blood_availability
	          WHERE is_active = 1 AND units_available > 0`
	var args []any
	if q.BloodGroup != "" {
		query += " AND blood_group = ?"
		args = append(args, string(q.BloodGroup))
	}
	where, locArgs := locationClause(q.Location, "blood_bank_name", "city", "state")
	query += where + " ORDER BY units_available DESC, blood_bank_name LIMIT ?"
	args = append(append(args, locArgs...), limitOrDefault(q.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query availability: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.BloodAvailability
	for rows.Next() {
		var (
			a                model.BloodAvailability
			group            string
			active           int
			scraped, updated string
			validated        sql.NullString
		)
		if err := rows.Scan(&a.ExternalID, &a.BloodBankName, &group, &a.UnitsAvailable, &a.City,
			&a.State, &a.Source, &scraped, &active, &updated, &validated,
			&a.ValidationSource); err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		a.BloodGroup = model.BloodType(group)
		a.IsActive = active == 1
		a.ScrapedAt = parseTime(scraped)
		a.LastUpdated = parseTime(updated)
		a.ValidatedAt = parseTime(validated.String)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListDonors(ctx context.Context, q DonorQuery) ([]model.BackupDonor, error) {
	query := `SELECT external_id, name, blood_group, phone, email, address, city, state, latitude,
	                 longitude, is_blood_bank, hospital_affiliated, flexible_schedule, source,
	                 scraped_at, is_active, last_updated, validated_at, validation_source
	          FROM backup_donors
	          WHERE is_active = 1`
	var args []any
	if len(q.BloodGroups) > 0 {
		marks := make([]string, len(q.BloodGroups))
		for i, g := range q.BloodGroups {
			marks[i] = "?"
			args = append(args, string(g))
		}
		query += " AND blood_group IN (" + strings.Join(marks, ", ") + ")"
	}
	where, locArgs := locationClause(q.Location, "name", "address", "city", "state")
	query += where + " ORDER BY name LIMIT ?"
	args = append(append(args, locArgs...), limitOrDefault(q.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query donors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.BackupDonor
	for rows.Next() {
		var (
			d                            model.BackupDonor
			group                        string
			lat, lon                     sql.NullFloat64
			bank, hospital, flex, active int
			scraped, updated             string
			validated                    sql.NullString
		)
		if err := rows.Scan(&d.ExternalID, &d.Name, &group, &d.Phone, &d.Email, &d.Address,
			&d.City, &d.State, &lat, &lon, &bank, &hospital, &flex, &d.Source, &scraped, &active,
			&updated, &validated, &d.ValidationSource); err != nil {
			return nil, fmt.Errorf("scan donor: %w", err)
		}
		d.BloodGroup = model.BloodType(group)
		d.Coordinates = location(lat, lon)
		d.IsBloodBank = bank == 1
		d.HospitalAffiliated = hospital == 1
		d.FlexibleSchedule = flex == 1
		d.IsActive = active == 1
		d.ScrapedAt = parseTime(scraped)
		d.LastUpdated = parseTime(updated)
		d.ValidatedAt = parseTime(validated.String)
		out = append(out, d)
	}
	return out, rows.Err()
}

// AppendMetrics stores one refresh record.
func (s *SQLiteStore) AppendMetrics(ctx context.Context, rec model.CacheMetricsRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("metrics id is required")
	}
	entities, err := json.Marshal(rec.Entities)
	if err != nil {
		return fmt.Errorf("encode metrics entities: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO backup_cache_metrics (id, date, entities, scraping_duration_seconds,
		     validation_duration_seconds, total_duration_seconds, successful, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, formatTime(rec.Date), string(entities), rec.ScrapingDuration,
		rec.ValidationDuration, rec.TotalDuration, boolToInt(rec.Successful), rec.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("append metrics %s: %w", rec.ID, err)
	}
	return nil
}

const metricsColumns = `id, date, entities, scraping_duration_seconds, validation_duration_seconds,
	total_duration_seconds, successful, error_message`

// LastSuccessfulMetrics returns the newest successful record, or nil when there is none.
func (s *SQLiteStore) LastSuccessfulMetrics(ctx context.Context) (*model.CacheMetricsRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+metricsColumns+` FROM backup_cache_metrics
		 WHERE successful = 1 ORDER BY date DESC LIMIT 1`)
	rec, err := scanMetrics(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last successful metrics: %w", err)
	}
	return &rec, nil
}

// RecentMetrics returns up to limit records, newest first.
func (s *SQLiteStore) RecentMetrics(ctx context.Context, limit int) ([]model.CacheMetricsRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+metricsColumns+` FROM backup_cache_metrics ORDER BY date DESC LIMIT ?`,
		limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.CacheMetricsRecord
	for rows.Next() {
		rec, err := scanMetrics(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metrics: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ActiveCounts tallies active rows per cached entity type.
func (s *SQLiteStore) ActiveCounts(ctx context.Context) (model.CacheCounts, error) {
	var c model.CacheCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT
		     (SELECT COUNT(*) FROM backup_blood_banks WHERE is_active = 1),
		     (SELECT COUNT(*) FROM backup_blood_availability WHERE is_active = 1),
		     (SELECT COUNT(*) FROM backup_donors WHERE is_active = 1)`,
	).Scan(&c.BloodBanks, &c.Availability, &c.Donors)
	if err != nil {
		return c, fmt.Errorf("count cache rows: %w", err)
	}
	return c, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMetrics(row scanner) (model.CacheMetricsRecord, error) {
	var (
		rec        model.CacheMetricsRecord
		date       string
		entities   string
		successful int
	)
	if err := row.Scan(&rec.ID, &date, &entities, &rec.ScrapingDuration, &rec.ValidationDuration,
		&rec.TotalDuration, &successful, &rec.ErrorMessage); err != nil {
		return rec, err
	}
	rec.Date = parseTime(date)
	rec.Successful = successful == 1
	if err := json.Unmarshal([]byte(entities), &rec.Entities); err != nil {
		return rec, fmt.Errorf("decode metrics entities: %w", err)
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func coordinates(loc *model.Location) (any, any) {
	if loc == nil {
		return nil, nil
	}
	return loc.Latitude, loc.Longitude
}

func location(lat, lon sql.NullFloat64) *model.Location {
	if !lat.Valid || !lon.Valid {
		return nil
	}
	return &model.Location{Latitude: lat.Float64, Longitude: lon.Float64}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
