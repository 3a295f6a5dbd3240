package backup

import (
	"strconv"
	"strings"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

// SynthesizeDonors derives one institutional donor per blood bank. The donor's group is
// the group the bank holds most units of, or defaultGroup when the bank reported no stock.
// Stock lines are joined to a bank by name and state; lines without a state join by name.
func SynthesizeDonors(banks []model.BloodBank, availability []model.BloodAvailability, defaultGroup model.BloodType) []model.RawDonorRecord {
	dominant := dominantGroups(availability)

	donors := make([]model.RawDonorRecord, 0, len(banks))
	for _, bank := range banks {
		group := defaultGroup
		if g, ok := dominant[bankKey(bank.Name, bank.State)]; ok {
			group = g
		} else if g, ok := dominant[bankKey(bank.Name, "")]; ok {
			group = g
		}
		donor := model.RawDonorRecord{
			Name:               bank.Name,
			BloodGroup:         string(group),
			Phone:              bank.Contact,
			Email:              bank.Email,
			Address:            bank.Address,
			City:               bank.City,
			State:              bank.State,
			IsBloodBank:        true,
			HospitalAffiliated: true,
			FlexibleSchedule:   true,
		}
		if bank.Coordinates != nil {
			donor.Latitude = strconv.FormatFloat(bank.Coordinates.Latitude, 'f', -1, 64)
			donor.Longitude = strconv.FormatFloat(bank.Coordinates.Longitude, 'f', -1, 64)
		}
		donors = append(donors, donor)
	}
	return donors
}

// dominantGroups maps a bank to the group with the most units on hand. Ties go to the
// group listed first in AllBloodTypes.
func dominantGroups(availability []model.BloodAvailability) map[string]model.BloodType {
	units := make(map[string]map[model.BloodType]int)
	for _, row := range availability {
		if row.UnitsAvailable <= 0 || !row.BloodGroup.Valid() {
			continue
		}
		key := bankKey(row.BloodBankName, row.State)
		if units[key] == nil {
			units[key] = make(map[model.BloodType]int)
		}
		units[key][row.BloodGroup] += row.UnitsAvailable
	}

	out := make(map[string]model.BloodType, len(units))
	for key, byGroup := range units {
		best, bestUnits := model.BloodType(""), 0
		for _, g := range model.AllBloodTypes() {
			if byGroup[g] > bestUnits {
				best, bestUnits = g, byGroup[g]
			}
		}
		out[key] = best
	}
	return out
}

func bankKey(name, state string) string {
	norm := func(s string) string { return strings.ToLower(strings.Join(strings.Fields(s), " ")) }
	return norm(name) + "|" + norm(state)
}
