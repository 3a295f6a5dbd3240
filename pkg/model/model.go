package model

import "time"

// Source names for cached rows. Every backup row is tagged with the portal it came from.
const (
	SourceERaktKosh     = "eraktkosh"
	SourceERaktKoshMock = "eraktkosh_mock"
)

// RawBankRecord mirrors an unvalidated blood bank scraped from the backup portal.
type RawBankRecord struct {
	Name      string `json:"name,omitempty"`
	Address   string `json:"address,omitempty"`
	Contact   string `json:"contact,omitempty"`
	Email     string `json:"email,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Latitude  string `json:"latitude,omitempty"`
	Longitude string `json:"longitude,omitempty"`
	Category  string `json:"category,omitempty"`
}

// RawAvailabilityRecord mirrors one stock line of a blood bank.
type RawAvailabilityRecord struct {
	BloodBankName  string `json:"blood_bank_name,omitempty"`
	BloodGroup     string `json:"blood_group,omitempty"`
	UnitsAvailable string `json:"units_available,omitempty"`
	City           string `json:"city,omitempty"`
	State          string `json:"state,omitempty"`
}

// RawDonorRecord is a donor entry before validation, usually synthesized from a bank.
type RawDonorRecord struct {
	Name               string `json:"name,omitempty"`
	BloodGroup         string `json:"blood_group,omitempty"`
	Phone              string `json:"phone,omitempty"`
	Email              string `json:"email,omitempty"`
	Address            string `json:"address,omitempty"`
	City               string `json:"city,omitempty"`
	State              string `json:"state,omitempty"`
	Latitude           string `json:"latitude,omitempty"`
	Longitude          string `json:"longitude,omitempty"`
	IsBloodBank        bool   `json:"is_blood_bank,omitempty"`
	HospitalAffiliated bool   `json:"hospital_affiliated,omitempty"`
	FlexibleSchedule   bool   `json:"flexible_schedule,omitempty"`
}

// BloodBank is the document stored in the `backup_blood_banks` collection.
type BloodBank struct {
	ExternalID       string    `json:"external_id" firestore:"external_id"`
	Name             string    `json:"name" firestore:"name"`
	Address          string    `json:"address,omitempty" firestore:"address"`
	Contact          string    `json:"contact,omitempty" firestore:"contact"`
	Email            string    `json:"email,omitempty" firestore:"email"`
	City             string    `json:"city,omitempty" firestore:"city"`
	State            string    `json:"state,omitempty" firestore:"state"`
	Coordinates      *Location `json:"coordinates,omitempty" firestore:"coordinates"`
	IsGovernment     bool      `json:"is_government" firestore:"is_government"`
	Source           string    `json:"source" firestore:"source"`
	ScrapedAt        time.Time `json:"scraped_at" firestore:"scraped_at"`
	IsActive         bool      `json:"is_active" firestore:"is_active"`
	LastUpdated      time.Time `json:"last_updated" firestore:"last_updated"`
	ValidatedAt      time.Time `json:"validated_at,omitempty" firestore:"validated_at"`
	ValidationSource string    `json:"validation_source,omitempty" firestore:"validation_source"`
}

// BloodAvailability is one stock line, stored in `backup_blood_availability`.
type BloodAvailability struct {
	ExternalID       string    `json:"external_id" firestore:"external_id"`
	BloodBankName    string    `json:"blood_bank_name" firestore:"blood_bank_name"`
	BloodGroup       BloodType `json:"blood_group" firestore:"blood_group"`
	UnitsAvailable   int       `json:"units_available" firestore:"units_available"`
	City             string    `json:"city,omitempty" firestore:"city"`
	State            string    `json:"state,omitempty" firestore:"state"`
	Source           string    `json:"source" firestore:"source"`
	ScrapedAt        time.Time `json:"scraped_at" firestore:"scraped_at"`
	IsActive         bool      `json:"is_active" firestore:"is_active"`
	LastUpdated      time.Time `json:"last_updated" firestore:"last_updated"`
	ValidatedAt      time.Time `json:"validated_at,omitempty" firestore:"validated_at"`
	ValidationSource string    `json:"validation_source,omitempty" firestore:"validation_source"`
}

// BackupDonor is a cached donor row, stored in `backup_donors`.
type BackupDonor struct {
	ExternalID         string    `json:"external_id" firestore:"external_id"`
	Name               string    `json:"name" firestore:"name"`
	BloodGroup         BloodType `json:"blood_group" firestore:"blood_group"`
	Phone              string    `json:"phone,omitempty" firestore:"phone"`
	Email              string    `json:"email,omitempty" firestore:"email"`
	Address            string    `json:"address,omitempty" firestore:"address"`
	City               string    `json:"city,omitempty" firestore:"city"`
	State              string    `json:"state,omitempty" firestore:"state"`
	Coordinates        *Location `json:"coordinates,omitempty" firestore:"coordinates"`
	IsBloodBank        bool      `json:"is_blood_bank" firestore:"is_blood_bank"`
	HospitalAffiliated bool      `json:"hospital_affiliated" firestore:"hospital_affiliated"`
	FlexibleSchedule   bool      `json:"flexible_schedule" firestore:"flexible_schedule"`
	Source             string    `json:"source" firestore:"source"`
	ScrapedAt          time.Time `json:"scraped_at" firestore:"scraped_at"`
	IsActive           bool      `json:"is_active" firestore:"is_active"`
	LastUpdated        time.Time `json:"last_updated" firestore:"last_updated"`
	ValidatedAt        time.Time `json:"validated_at,omitempty" firestore:"validated_at"`
	ValidationSource   string    `json:"validation_source,omitempty" firestore:"validation_source"`
}

// Candidate converts a cached donor row into a matcher candidate. Bank-backed donors are
// institutional: always active and reachable around the clock.
func (d BackupDonor) Candidate() DonorCandidate {
	return DonorCandidate{
		ID:                 d.ExternalID,
		Name:               d.Name,
		BloodType:          d.BloodGroup,
		Location:           d.Coordinates,
		City:               d.City,
		State:              d.State,
		Phone:              d.Phone,
		IsActive:           d.IsActive,
		EmergencyAvailable: d.IsBloodBank,
		FlexibleSchedule:   d.FlexibleSchedule,
		HospitalAffiliated: d.HospitalAffiliated,
		IsBloodBank:        d.IsBloodBank,
		Provenance:         ProvenanceBackup,
	}
}

// Entity types tracked by the refresh audit trail.
const (
	EntityBloodBanks   = "blood_banks"
	EntityAvailability = "availability"
	EntityDonors       = "donors"
)

// EntityMetrics stores counters for one entity type in one refresh cycle.
type EntityMetrics struct {
	Scraped     int    `json:"scraped" firestore:"scraped"`
	Valid       int    `json:"valid" firestore:"valid"`
	Invalid     int    `json:"invalid" firestore:"invalid"`
	Warnings    int    `json:"warnings" firestore:"warnings"`
	Stored      int    `json:"stored" firestore:"stored"`
	Deactivated int    `json:"deactivated" firestore:"deactivated"`
	Succeeded   bool   `json:"succeeded" firestore:"succeeded"`
	Error       string `json:"error,omitempty" firestore:"error,omitempty"`
}

// CacheMetricsRecord is the append-only audit row written once per refresh cycle.
type CacheMetricsRecord struct {
	ID                 string                   `json:"id" firestore:"id"`
	Date               time.Time                `json:"date" firestore:"date"`
	Entities           map[string]EntityMetrics `json:"entities" firestore:"entities"`
	ScrapingDuration   float64                  `json:"scraping_duration_seconds" firestore:"scraping_duration_seconds"`
	ValidationDuration float64                  `json:"validation_duration_seconds" firestore:"validation_duration_seconds"`
	TotalDuration      float64                  `json:"total_duration_seconds" firestore:"total_duration_seconds"`
	Successful         bool                     `json:"successful" firestore:"successful"`
	ErrorMessage       string                   `json:"error_message,omitempty" firestore:"error_message,omitempty"`
}

// ValidRecords sums valid rows across entity types.
func (r CacheMetricsRecord) ValidRecords() int {
	n := 0
	for _, m := range r.Entities {
		n += m.Valid
	}
	return n
}

// InvalidRecords sums rejected rows across entity types.
func (r CacheMetricsRecord) InvalidRecords() int {
	n := 0
	for _, m := range r.Entities {
		n += m.Invalid
	}
	return n
}

// CacheCounts is a point-in-time tally of active cached rows.
type CacheCounts struct {
	BloodBanks   int `json:"blood_banks"`
	Availability int `json:"availability"`
	Donors       int `json:"donors"`
}
