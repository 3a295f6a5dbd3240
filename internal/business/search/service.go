// Package search answers donor, blood bank and stock lookups. Every lookup goes to the
// primary source first and falls back to the eRaktKosh backup snapshot.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/business/fallback"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/business/matching"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/repository"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

// candidatePoolLimit bounds how many donors are scored for one match call.
const candidatePoolLimit = 500

var (
	// ErrInvalidRequest wraps every input validation failure.
	ErrInvalidRequest = errors.New("invalid request")

	errNoPrimary = errors.New("primary donor store not configured")
)

// PrimaryDonors is the registered donor store.
type PrimaryDonors interface {
	QueryDonors(ctx context.Context, q repository.DonorQuery) ([]model.DonorCandidate, error)
}

// Backup is the eRaktKosh side: live portal lookups and the persisted snapshot.
type Backup interface {
	CachedDonors(ctx context.Context, q repository.DonorQuery) ([]model.DonorCandidate, error)
	CachedBloodBanks(ctx context.Context, q repository.BankQuery) ([]model.BloodBank, error)
	CachedAvailability(ctx context.Context, q repository.AvailabilityQuery) ([]model.BloodAvailability, error)
	LiveBloodBanks(ctx context.Context, location string) ([]model.BloodBank, error)
	LiveAvailability(ctx context.Context, group model.BloodType, location string) ([]model.BloodAvailability, error)
}

// DonorSearch asks for donors able to give to BloodGroup.
type DonorSearch struct {
	BloodGroup model.BloodType
	Location   string
	Limit      int
}

// MatchResult is the ranked answer to one emergency request.
type MatchResult struct {
	RequestID string             `json:"request_id"`
	Matches   []model.DonorScore `json:"matches"`
	Source    model.Provenance   `json:"source"`
}

// BatchResult maps request ids to the donors reserved for them.
type BatchResult struct {
	Assignments map[string][]model.DonorScore `json:"assignments"`
	Source      model.Provenance              `json:"source"`
}

// Service is safe for concurrent use.
type Service struct {
	primary     PrimaryDonors
	backup      Backup
	coordinator *fallback.Coordinator
	matcher     *matching.Matcher
	logger      *zap.Logger
}

// NewService wires the lookups. primary may be nil, in which case every donor lookup is
// served from the backup.
func NewService(primary PrimaryDonors, backup Backup, coordinator *fallback.Coordinator, matcher *matching.Matcher, logger *zap.Logger) *Service {
	if coordinator == nil {
		coordinator = fallback.NewCoordinator(0, logger)
	}
	if matcher == nil {
		matcher = matching.NewMatcher(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		primary:     primary,
		backup:      backup,
		coordinator: coordinator,
		matcher:     matcher,
		logger:      logger,
	}
}

// SearchDonors returns donors whose group can give to q.BloodGroup.
func (s *Service) SearchDonors(ctx context.Context, q DonorSearch) (fallback.Result[model.DonorCandidate], error) {
	group, err := requireGroup(q.BloodGroup)
	if err != nil {
		return fallback.Result[model.DonorCandidate]{}, err
	}
	return s.candidates(ctx, "search_donors", repository.DonorQuery{
		BloodGroups: matching.DonorsForRecipient(group),
		Location:    q.Location,
		Limit:       q.Limit,
	})
}

// MatchEmergency ranks the compatible donor pool for one request.
func (s *Service) MatchEmergency(ctx context.Context, req model.RequestContext) (MatchResult, error) {
	if err := req.Validate(); err != nil {
		return MatchResult{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	pool, err := s.candidates(ctx, "match_emergency", repository.DonorQuery{
		BloodGroups: matching.DonorsForRecipient(req.BloodType),
		Limit:       candidatePoolLimit,
	})
	if err != nil {
		return MatchResult{}, err
	}
	matches, err := s.matcher.FindCompatibleDonors(req, pool.Items)
	if err != nil {
		return MatchResult{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	s.logger.Info("emergency match",
		zap.String("request_id", req.ID),
		zap.String("blood_group", string(req.BloodType)),
		zap.Int("pool", len(pool.Items)),
		zap.Int("matches", len(matches)),
		zap.String("source", string(pool.Source)))
	return MatchResult{RequestID: req.ID, Matches: matches, Source: pool.Source}, nil
}

// BatchMatch allocates donors across requests from one shared pool covering every
// requested group.
func (s *Service) BatchMatch(ctx context.Context, requests []model.RequestContext) (BatchResult, error) {
	if len(requests) == 0 {
		return BatchResult{}, fmt.Errorf("%w: no requests", ErrInvalidRequest)
	}
	if err := matching.CheckRequestIDs(requests); err != nil {
		return BatchResult{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	var groups []model.BloodType
	seen := make(map[model.BloodType]bool)
	for i, req := range requests {
		if err := req.Validate(); err != nil {
			return BatchResult{}, fmt.Errorf("%w: request %d (%s): %w", ErrInvalidRequest, i, req.ID, err)
		}
		for _, g := range matching.DonorsForRecipient(req.BloodType) {
			if !seen[g] {
				seen[g] = true
				groups = append(groups, g)
			}
		}
	}

	pool, err := s.candidates(ctx, "batch_match", repository.DonorQuery{
		BloodGroups: groups,
		Limit:       candidatePoolLimit,
	})
	if err != nil {
		return BatchResult{}, err
	}
	assignments, err := s.matcher.BatchMatchRequests(requests, pool.Items)
	if err != nil {
		return BatchResult{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return BatchResult{Assignments: assignments, Source: pool.Source}, nil
}

// BloodBanks lists banks near location, live first.
func (s *Service) BloodBanks(ctx context.Context, location string, limit int) (fallback.Result[model.BloodBank], error) {
	location = strings.TrimSpace(location)
	return fallback.Do(ctx, s.coordinator, "blood_banks",
		func(ctx context.Context) ([]model.BloodBank, error) {
			banks, err := s.backup.LiveBloodBanks(ctx, location)
			return truncate(banks, limit), err
		},
		func(ctx context.Context) ([]model.BloodBank, error) {
			return s.backup.CachedBloodBanks(ctx, repository.BankQuery{Location: location, Limit: limit})
		})
}

// Availability lists stock lines with units on hand, live first. An empty group matches
// every group.
func (s *Service) Availability(ctx context.Context, group model.BloodType, location string, limit int) (fallback.Result[model.BloodAvailability], error) {
	if group != "" && !group.Valid() {
		return fallback.Result[model.BloodAvailability]{}, fmt.Errorf("%w: %w: %q", ErrInvalidRequest, model.ErrInvalidBloodType, group)
	}
	location = strings.TrimSpace(location)
	return fallback.Do(ctx, s.coordinator, "availability",
		func(ctx context.Context) ([]model.BloodAvailability, error) {
			rows, err := s.backup.LiveAvailability(ctx, group, location)
			return truncate(rows, limit), err
		},
		func(ctx context.Context) ([]model.BloodAvailability, error) {
			return s.backup.CachedAvailability(ctx, repository.AvailabilityQuery{BloodGroup: group, Location: location, Limit: limit})
		})
}

func (s *Service) candidates(ctx context.Context, op string, q repository.DonorQuery) (fallback.Result[model.DonorCandidate], error) {
	return fallback.Do(ctx, s.coordinator, op,
		func(ctx context.Context) ([]model.DonorCandidate, error) {
			if s.primary == nil {
				return nil, errNoPrimary
			}
			return s.primary.QueryDonors(ctx, q)
		},
		func(ctx context.Context) ([]model.DonorCandidate, error) {
			return s.backup.CachedDonors(ctx, q)
		})
}

func requireGroup(g model.BloodType) (model.BloodType, error) {
	if g == "" {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, model.ErrMissingBloodType)
	}
	if !g.Valid() {
		return "", fmt.Errorf("%w: %w: %q", ErrInvalidRequest, model.ErrInvalidBloodType, g)
	}
	return g, nil
}

func truncate[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
