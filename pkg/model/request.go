package model

import (
	"errors"
	"fmt"
	"time"
)

// DefaultMaxDistanceKm applies when a request does not set a search radius.
const DefaultMaxDistanceKm = 50.0

// ErrMissingBloodType is returned when a request does not name the blood type it needs.
var ErrMissingBloodType = errors.New("request blood type is required")

// Location is a WGS84 point.
type Location struct {
	Latitude  float64 `json:"latitude" firestore:"latitude"`
	Longitude float64 `json:"longitude" firestore:"longitude"`
}

// Provenance tags where a record came from.
type Provenance string

const (
	ProvenancePrimary Provenance = "primary"
	ProvenanceBackup  Provenance = "backup"
)

// DonorCandidate is a potential donor as seen by the matcher, either from the primary
// store or synthesized from a cached blood bank.
type DonorCandidate struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name,omitempty"`
	BloodType          BloodType  `json:"blood_group"`
	Location           *Location  `json:"location,omitempty"`
	City               string     `json:"city,omitempty"`
	State              string     `json:"state,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	IsActive           bool       `json:"is_active"`
	EmergencyVolunteer bool       `json:"emergency_volunteer"`
	EmergencyAvailable bool       `json:"emergency_available"`
	FlexibleSchedule   bool       `json:"flexible_schedule"`
	HospitalAffiliated bool       `json:"hospital_affiliated"`
	IsBloodBank        bool       `json:"is_blood_bank,omitempty"`
	LastDonationDate   *time.Time `json:"last_donation_date,omitempty"`
	TotalDonations     int        `json:"total_donations"`
	// nil rates are unknown; the scorer substitutes population defaults.
	ResponseRate   *float64   `json:"response_rate,omitempty"`
	CompletionRate *float64   `json:"completion_rate,omitempty"`
	LastActiveDate *time.Time `json:"last_active_date,omitempty"`
	Provenance     Provenance `json:"source"`
}

// RequestContext describes one blood request being matched.
type RequestContext struct {
	ID            string       `json:"id"`
	BloodType     BloodType    `json:"blood_group"`
	Location      *Location    `json:"location,omitempty"`
	UnitsNeeded   int          `json:"units_needed"`
	MaxDistanceKm float64      `json:"max_distance_km"`
	NeededBy      *time.Time   `json:"needed_by,omitempty"`
	Urgency       UrgencyLevel `json:"urgency_level"`
}

// Validate fails fast on a request that cannot be matched.
func (r RequestContext) Validate() error {
	if r.BloodType == "" {
		return ErrMissingBloodType
	}
	if !r.BloodType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidBloodType, r.BloodType)
	}
	if r.Urgency != "" {
		if _, err := ParseUrgency(string(r.Urgency)); err != nil {
			return err
		}
	}
	if r.MaxDistanceKm < 0 {
		return fmt.Errorf("max distance must not be negative, got %v", r.MaxDistanceKm)
	}
	return nil
}

// WithDefaults returns a copy with units, radius and urgency filled in. A valid urgency
// in any case is normalized to its canonical level.
func (r RequestContext) WithDefaults() RequestContext {
	if r.UnitsNeeded <= 0 {
		r.UnitsNeeded = 1
	}
	if r.MaxDistanceKm <= 0 {
		r.MaxDistanceKm = DefaultMaxDistanceKm
	}
	if u, err := ParseUrgency(string(r.Urgency)); err == nil {
		r.Urgency = u
	}
	return r
}

// DonorScore is the ranking of one donor against one request. Sub-scores and the total
// are on a 0–100 scale.
type DonorScore struct {
	DonorID            string         `json:"donor_id"`
	Donor              DonorCandidate `json:"donor"`
	TotalScore         float64        `json:"total_score"`
	CompatibilityScore float64        `json:"compatibility_score"`
	DistanceScore      float64        `json:"distance_score"`
	AvailabilityScore  float64        `json:"availability_score"`
	ReliabilityScore   float64        `json:"reliability_score"`
	UrgencyBonus       float64        `json:"urgency_bonus"`
	DistanceKm         *float64       `json:"distance_km,omitempty"`
	Factors            []string       `json:"factors"`
}
