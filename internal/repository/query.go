package repository

import (
	"sort"
	"strings"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

// DefaultListLimit caps list queries that do not set a limit.
const DefaultListLimit = 100

// BankQuery filters cached blood banks.
type BankQuery struct {
	// Location matches case-insensitively against name, address, city and state.
	Location string
	Limit    int
}

// AvailabilityQuery filters cached stock lines. Only rows with units on hand are returned.
type AvailabilityQuery struct {
	BloodGroup model.BloodType
	Location   string
	Limit      int
}

// DonorQuery filters cached donors. An empty BloodGroups matches every group.
type DonorQuery struct {
	BloodGroups []model.BloodType
	Location    string
	Limit       int
}

// ReplaceResult reports what one generation swap did.
type ReplaceResult struct {
	Stored      int
	Deactivated int
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return DefaultListLimit
	}
	return n
}

func matchesLocation(location string, fields ...string) bool {
	needle := strings.ToLower(strings.TrimSpace(location))
	if needle == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func containsGroup(groups []model.BloodType, g model.BloodType) bool {
	if len(groups) == 0 {
		return true
	}
	for _, want := range groups {
		if want == g {
			return true
		}
	}
	return false
}

// filterBanks applies q in memory, ordered by name.
func filterBanks(all []model.BloodBank, q BankQuery) []model.BloodBank {
	out := make([]model.BloodBank, 0, len(all))
	for _, b := range all {
		if b.IsActive && matchesLocation(q.Location, b.Name, b.Address, b.City, b.State) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit := limitOrDefault(q.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out
}

// filterAvailability applies q in memory, most units first.
func filterAvailability(all []model.BloodAvailability, q AvailabilityQuery) []model.BloodAvailability {
	out := make([]model.BloodAvailability, 0, len(all))
	for _, a := range all {
		if !a.IsActive || a.UnitsAvailable <= 0 {
			continue
		}
		if q.BloodGroup != "" && a.BloodGroup != q.BloodGroup {
			continue
		}
		if matchesLocation(q.Location, a.BloodBankName, a.City, a.State) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UnitsAvailable > out[j].UnitsAvailable })
	if limit := limitOrDefault(q.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out
}

// filterDonors applies q in memory, ordered by name.
func filterDonors(all []model.BackupDonor, q DonorQuery) []model.BackupDonor {
	out := make([]model.BackupDonor, 0, len(all))
	for _, d := range all {
		if !d.IsActive || !containsGroup(q.BloodGroups, d.BloodGroup) {
			continue
		}
		if matchesLocation(q.Location, d.Name, d.Address, d.City, d.State) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit := limitOrDefault(q.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out
}
