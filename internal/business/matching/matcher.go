package matching

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

var (
	// ErrMissingRequestID is returned when a batch request has no id to key its result.
	ErrMissingRequestID = errors.New("batch request id is required")
	// ErrDuplicateRequestID is returned when two batch requests share an id.
	ErrDuplicateRequestID = errors.New("duplicate batch request id")
)

// Matcher ranks donor pools against requests.
type Matcher struct {
	scorer *Scorer
}

// NewMatcher wraps a scorer. A nil scorer uses NewScorer().
func NewMatcher(scorer *Scorer) *Matcher {
	if scorer == nil {
		scorer = NewScorer()
	}
	return &Matcher{scorer: scorer}
}

// FindCompatibleDonors scores every donor in pool against req and returns the compatible,
// in-radius ones ordered by total score, best first. Equal scores keep pool order.
func (m *Matcher) FindCompatibleDonors(req model.RequestContext, pool []model.DonorCandidate) ([]model.DonorScore, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return m.rank(req.WithDefaults(), pool), nil
}

func (m *Matcher) rank(req model.RequestContext, pool []model.DonorCandidate) []model.DonorScore {
	matches := make([]model.DonorScore, 0, len(pool))
	for _, donor := range pool {
		score := m.scorer.Score(donor, req)
		if score.CompatibilityScore == 0 || score.DistanceScore == 0 {
			continue
		}
		matches = append(matches, score)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].TotalScore > matches[j].TotalScore
	})
	return matches
}

// BatchMatchRequests matches several requests against one shared pool. Requests run most
// urgent first (stable among equal urgency); each one reserves its top
// min(units_needed, matches) donors so later requests cannot rank them again.
//
// The allocation is greedy with no backtracking, so a lower-priority request may go
// without donors that an optimal assignment would have given it.
func (m *Matcher) BatchMatchRequests(requests []model.RequestContext, pool []model.DonorCandidate) (map[string][]model.DonorScore, error) {
	if err := CheckRequestIDs(requests); err != nil {
		return nil, err
	}
	ordered := make([]model.RequestContext, 0, len(requests))
	for i, req := range requests {
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("request %d (%s): %w", i, req.ID, err)
		}
		ordered = append(ordered, req.WithDefaults())
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Urgency.Priority() > ordered[j].Urgency.Priority()
	})

	results := make(map[string][]model.DonorScore, len(ordered))
	reserved := make(map[string]struct{})
	for _, req := range ordered {
		available := make([]model.DonorCandidate, 0, len(pool))
		for _, d := range pool {
			if _, taken := reserved[d.ID]; !taken {
				available = append(available, d)
			}
		}

		matches := m.rank(req, available)
		results[req.ID] = matches

		take := req.UnitsNeeded
		if take > len(matches) {
			take = len(matches)
		}
		for _, s := range matches[:take] {
			reserved[s.DonorID] = struct{}{}
		}
	}
	return results, nil
}

// CheckRequestIDs fails when a batch request has a blank id or shares one with an
// earlier request, since results are keyed by id.
func CheckRequestIDs(requests []model.RequestContext) error {
	seen := make(map[string]int, len(requests))
	for i, req := range requests {
		if strings.TrimSpace(req.ID) == "" {
			return fmt.Errorf("request %d: %w", i, ErrMissingRequestID)
		}
		if first, dup := seen[req.ID]; dup {
			return fmt.Errorf("requests %d and %d: %w: %q", first, i, ErrDuplicateRequestID, req.ID)
		}
		seen[req.ID] = i
	}
	return nil
}
