package matching

import (
	"fmt"
	"math"
	"time"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

// Weights combine the five sub-scores into the total. They must sum to 1.
type Weights struct {
	Compatibility float64
	Distance      float64
	Availability  float64
	Reliability   float64
	Urgency       float64
}

// DefaultWeights is the production ranking.
var DefaultWeights = Weights{
	Compatibility: 0.4,
	Distance:      0.25,
	Availability:  0.2,
	Reliability:   0.1,
	Urgency:       0.05,
}

// Validate checks the weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Compatibility, w.Distance, w.Availability, w.Reliability, w.Urgency} {
		if v < 0 {
			return fmt.Errorf("negative weight %v", v)
		}
	}
	sum := w.Compatibility + w.Distance + w.Availability + w.Reliability + w.Urgency
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("weights sum to %v, want 1", sum)
	}
	return nil
}

const (
	minDonationGap      = 84 * 24 * time.Hour
	defaultResponseRate = 0.8
	defaultCompletion   = 0.9
)

// Factor labels attached to a DonorScore.
const (
	FactorCompatible     = "Blood type compatible"
	FactorVeryClose      = "Very close proximity"
	FactorNearby         = "Nearby location"
	FactorImmediate      = "Immediately available"
	FactorAvailableSoon  = "Available soon"
	FactorHighlyReliable = "Highly reliable donor"
	FactorRegularDonor   = "Regular donor"
	FactorEmergency      = "Emergency responder"
	FactorNotEligibleYet = "Not eligible yet"
)

// Scorer ranks one donor against one request. It is stateless apart from its clock and
// safe for concurrent use.
type Scorer struct {
	weights Weights
	now     func() time.Time
}

// NewScorer builds a scorer with the default weights and the wall clock.
func NewScorer() *Scorer {
	return &Scorer{weights: DefaultWeights, now: time.Now}
}

// NewScorerWithWeights builds a scorer with custom weights.
func NewScorerWithWeights(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: w, now: time.Now}, nil
}

// WithClock returns a copy of the scorer that reads time from now.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	cp := *s
	cp.now = now
	return &cp
}

// Score computes the sub-scores and weighted total of donor for req. req is expected to
// carry defaults (see model.RequestContext.WithDefaults).
func (s *Scorer) Score(donor model.DonorCandidate, req model.RequestContext) model.DonorScore {
	now := s.now()
	factors := make([]string, 0, 6)

	compat := compatibilityScore(donor.BloodType, req.BloodType)
	if compat > 0 {
		factors = append(factors, FactorCompatible)
	}

	distance, km, known := distanceScore(donor.Location, req.Location, req.MaxDistanceKm)
	switch {
	case distance > 0.8:
		factors = append(factors, FactorVeryClose)
	case distance > 0.5:
		factors = append(factors, FactorNearby)
	}

	availability, eligible := availabilityScore(donor, req.NeededBy, now)
	switch {
	case !eligible:
		factors = append(factors, FactorNotEligibleYet)
	case availability > 0.8:
		factors = append(factors, FactorImmediate)
	case availability > 0.5:
		factors = append(factors, FactorAvailableSoon)
	}

	reliability := reliabilityScore(donor, now)
	switch {
	case reliability > 0.8:
		factors = append(factors, FactorHighlyReliable)
	case reliability > 0.6:
		factors = append(factors, FactorRegularDonor)
	}

	urgency := urgencyBonus(donor, req)
	if urgency > 0 {
		factors = append(factors, FactorEmergency)
	}

	total := 100 * (compat*s.weights.Compatibility +
		distance*s.weights.Distance +
		availability*s.weights.Availability +
		reliability*s.weights.Reliability +
		urgency*s.weights.Urgency)

	score := model.DonorScore{
		DonorID:            donor.ID,
		Donor:              donor,
		TotalScore:         round2(total),
		CompatibilityScore: round2(compat * 100),
		DistanceScore:      round2(distance * 100),
		AvailabilityScore:  round2(availability * 100),
		ReliabilityScore:   round2(reliability * 100),
		UrgencyBonus:       round2(urgency * 100),
		Factors:            factors,
	}
	if known {
		d := round2(km)
		score.DistanceKm = &d
	}
	return score
}

func compatibilityScore(donor, recipient model.BloodType) float64 {
	switch {
	case !CanDonate(donor, recipient):
		return 0
	case donor == recipient:
		return 1.0
	case donor == model.ONeg:
		return 0.95
	default:
		return 0.8
	}
}

// distanceScore decays linearly to a 0.1 floor inside the radius and is 0 beyond it.
// Unknown locations score a neutral 0.5.
func distanceScore(donor, patient *model.Location, maxKm float64) (score, km float64, known bool) {
	km, known = HaversineKm(donor, patient)
	if !known {
		return 0.5, 0, false
	}
	if maxKm <= 0 {
		maxKm = model.DefaultMaxDistanceKm
	}
	if km > maxKm {
		return 0, km, true
	}
	return math.Max(0.1, 1-km/maxKm), km, true
}

// availabilityScore returns 0 and eligible=false while the donor is inside the
// 84-day donation gap.
func availabilityScore(d model.DonorCandidate, neededBy *time.Time, now time.Time) (float64, bool) {
	score := 0.5
	if d.IsActive {
		score += 0.2
	}
	if d.LastDonationDate != nil && now.Sub(*d.LastDonationDate) < minDonationGap {
		return 0, false
	}
	score += 0.3

	if neededBy != nil {
		hours := neededBy.Sub(now).Hours()
		switch {
		case hours < 6:
			if d.EmergencyAvailable {
				score += 0.2
			}
		case hours < 24:
			score += 0.1
		}
	}
	if d.FlexibleSchedule {
		score += 0.1
	}
	return math.Min(1, score), true
}

func reliabilityScore(d model.DonorCandidate, now time.Time) float64 {
	score := 0.5
	switch {
	case d.TotalDonations >= 10:
		score += 0.3
	case d.TotalDonations >= 5:
		score += 0.2
	case d.TotalDonations >= 1:
		score += 0.1
	}

	rr, cr := defaultResponseRate, defaultCompletion
	if d.ResponseRate != nil {
		rr = *d.ResponseRate
	}
	if d.CompletionRate != nil {
		cr = *d.CompletionRate
	}
	score += (rr - 0.5) * 0.4
	score += (cr - 0.5) * 0.4

	if d.LastActiveDate != nil {
		days := int(now.Sub(*d.LastActiveDate).Hours() / 24)
		switch {
		case days <= 30:
			score += 0.1
		case days <= 90:
			score += 0.05
		}
	}
	return math.Min(1, score)
}

func urgencyBonus(d model.DonorCandidate, req model.RequestContext) float64 {
	if req.Urgency == model.UrgencyLow {
		return 0
	}
	bonus := 0.0
	if d.EmergencyVolunteer {
		switch req.Urgency {
		case model.UrgencyCritical:
			bonus += 0.8
		case model.UrgencyHigh:
			bonus += 0.6
		case model.UrgencyMedium:
			bonus += 0.3
		}
	}
	if req.BloodType.IsRare() && d.BloodType == req.BloodType {
		bonus += 0.5
	}
	if d.HospitalAffiliated {
		bonus += 0.2
	}
	return math.Min(1, bonus)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
