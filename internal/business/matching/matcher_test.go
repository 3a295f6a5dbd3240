package matching

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

func donorAt(id string, bt model.BloodType, km float64) model.DonorCandidate {
	return model.DonorCandidate{
		ID:        id,
		BloodType: bt,
		Location:  &model.Location{Latitude: aiims.Latitude + kmToLatDegrees(km), Longitude: aiims.Longitude},
		IsActive:  true,
	}
}

func TestFindCompatibleDonorsExcludesIncompatible(t *testing.T) {
	m := NewMatcher(fixedScorer())
	pool := []model.DonorCandidate{
		donorAt("o-neg", model.ONeg, 1),
		donorAt("b-pos", model.BPos, 1),
		donorAt("a-pos", model.APos, 1),
		donorAt("ab-pos", model.ABPos, 1),
	}

	got, err := m.FindCompatibleDonors(model.RequestContext{BloodType: model.APos, Location: aiims}, pool)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Less(t, len(got), len(pool))
	assert.Equal(t, "a-pos", got[0].DonorID, "exact match ranks first")
	assert.Equal(t, "o-neg", got[1].DonorID)
	for _, s := range got {
		assert.Positive(t, s.CompatibilityScore)
	}
}

func TestFindCompatibleDonorsDropsOutOfRadius(t *testing.T) {
	m := NewMatcher(fixedScorer())
	pool := []model.DonorCandidate{donorAt("near", model.OPos, 3), donorAt("far", model.OPos, 30)}

	got, err := m.FindCompatibleDonors(model.RequestContext{BloodType: model.OPos, Location: aiims, MaxDistanceKm: 10}, pool)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].DonorID)
}

func TestFindCompatibleDonorsKeepsUnknownLocations(t *testing.T) {
	m := NewMatcher(fixedScorer())
	pool := []model.DonorCandidate{{ID: "nowhere", BloodType: model.OPos, IsActive: true}}

	got, err := m.FindCompatibleDonors(model.RequestContext{BloodType: model.OPos, Location: aiims}, pool)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 50.0, got[0].DistanceScore)
	assert.Nil(t, got[0].DistanceKm)
}

func TestFindCompatibleDonorsStableOnTies(t *testing.T) {
	m := NewMatcher(fixedScorer())
	pool := []model.DonorCandidate{
		{ID: "first", BloodType: model.OPos},
		{ID: "second", BloodType: model.OPos},
		{ID: "third", BloodType: model.OPos},
	}
	got, err := m.FindCompatibleDonors(model.RequestContext{BloodType: model.OPos}, pool)
	require.NoError(t, err)
	ids := []string{got[0].DonorID, got[1].DonorID, got[2].DonorID}
	assert.Equal(t, []string{"first", "second", "third"}, ids)
}

func TestFindCompatibleDonorsRejectsMalformedRequest(t *testing.T) {
	m := NewMatcher(nil)
	_, err := m.FindCompatibleDonors(model.RequestContext{}, []model.DonorCandidate{donorAt("a", model.OPos, 1)})
	assert.ErrorIs(t, err, model.ErrMissingBloodType)
}

func TestBatchMatchReservesDonorsByUrgency(t *testing.T) {
	m := NewMatcher(fixedScorer())
	pool := []model.DonorCandidate{
		donorAt("d1", model.ONeg, 1),
		donorAt("d2", model.ONeg, 2),
		donorAt("d3", model.ONeg, 3),
	}
	requests := []model.RequestContext{
		{ID: "low", BloodType: model.OPos, Location: aiims, UnitsNeeded: 2, Urgency: model.UrgencyLow},
		{ID: "critical", BloodType: model.OPos, Location: aiims, UnitsNeeded: 2, Urgency: model.UrgencyCritical},
	}

	got, err := m.BatchMatchRequests(requests, pool)
	require.NoError(t, err)
	require.Len(t, got["critical"], 3)
	assert.Equal(t, "d1", got["critical"][0].DonorID)
	assert.Equal(t, "d2", got["critical"][1].DonorID)
	require.Len(t, got["low"], 1, "critical reserved two of three donors")
	assert.Equal(t, "d3", got["low"][0].DonorID)
}

func TestBatchMatchNeverReusesReservedDonors(t *testing.T) {
	m := NewMatcher(fixedScorer())
	var pool []model.DonorCandidate
	for i := 0; i < 6; i++ {
		pool = append(pool, donorAt(fmt.Sprintf("d%d", i), model.ONeg, float64(i+1)))
	}
	var requests []model.RequestContext
	for i, u := range []model.UrgencyLevel{model.UrgencyMedium, model.UrgencyHigh, model.UrgencyLow, model.UrgencyCritical} {
		requests = append(requests, model.RequestContext{
			ID: fmt.Sprintf("r%d", i), BloodType: model.ABPos, Location: aiims, UnitsNeeded: 2, Urgency: u,
		})
	}

	got, err := m.BatchMatchRequests(requests, pool)
	require.NoError(t, err)

	reserved := map[string]string{}
	for _, id := range []string{"r3", "r1", "r0", "r2"} {
		matches := got[id]
		for _, s := range matches {
			if owner, taken := reserved[s.DonorID]; taken {
				t.Fatalf("%s offered donor %s already reserved by %s", id, s.DonorID, owner)
			}
		}
		for i := 0; i < 2 && i < len(matches); i++ {
			reserved[matches[i].DonorID] = id
		}
	}
	assert.LessOrEqual(t, len(reserved), len(pool))
	assert.Empty(t, got["r2"], "lowest priority request runs after the pool is exhausted")
}

func TestBatchMatchFailsFastOnMalformedRequest(t *testing.T) {
	m := NewMatcher(fixedScorer())
	_, err := m.BatchMatchRequests([]model.RequestContext{
		{ID: "ok", BloodType: model.OPos},
		{ID: "bad", BloodType: "Q-"},
	}, nil)
	assert.ErrorIs(t, err, model.ErrInvalidBloodType)
}

func TestBatchMatchRejectsBlankAndDuplicateIDs(t *testing.T) {
	m := NewMatcher(fixedScorer())
	pool := []model.DonorCandidate{donorAt("d1", model.ONeg, 1), donorAt("d2", model.ONeg, 2)}

	_, err := m.BatchMatchRequests([]model.RequestContext{
		{BloodType: model.OPos, Urgency: model.UrgencyCritical},
		{BloodType: model.APos, Urgency: model.UrgencyLow},
	}, pool)
	assert.ErrorIs(t, err, ErrMissingRequestID)

	_, err = m.BatchMatchRequests([]model.RequestContext{
		{ID: "r1", BloodType: model.OPos},
		{ID: "r2", BloodType: model.APos},
		{ID: "r1", BloodType: model.BPos},
	}, pool)
	assert.ErrorIs(t, err, ErrDuplicateRequestID)
	assert.Contains(t, err.Error(), `"r1"`)
}

func TestFindCompatibleDonorsAcceptsUrgencyInAnyCase(t *testing.T) {
	m := NewMatcher(fixedScorer())
	volunteer := donorAt("v1", model.OPos, 1)
	volunteer.EmergencyVolunteer = true

	upper, err := m.FindCompatibleDonors(model.RequestContext{
		ID: "r", BloodType: model.OPos, Location: aiims, Urgency: "CRITICAL",
	}, []model.DonorCandidate{volunteer})
	require.NoError(t, err)
	lower, err := m.FindCompatibleDonors(model.RequestContext{
		ID: "r", BloodType: model.OPos, Location: aiims, Urgency: model.UrgencyCritical,
	}, []model.DonorCandidate{volunteer})
	require.NoError(t, err)

	require.Len(t, upper, 1)
	require.Len(t, lower, 1)
	assert.Equal(t, 80.0, upper[0].UrgencyBonus)
	assert.Equal(t, lower[0].TotalScore, upper[0].TotalScore)
}
