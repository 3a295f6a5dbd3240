package eraktkosh

import (
	"strings"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

// Demo data served when the client runs in mock mode.
var mockBanks = []model.RawBankRecord{
	{
		Name:      "AIIMS Delhi Blood Bank",
		Address:   "AIIMS, Ansari Nagar, New Delhi, Delhi 110029",
		Contact:   "+91-11-26588500",
		Email:     "bloodbank@aiims.edu",
		City:      "New Delhi",
		State:     "Delhi",
		Latitude:  "28.5672",
		Longitude: "77.2100",
		Category:  "Government",
	},
	{
		Name:      "Fortis Hospital Blood Center",
		Address:   "Fortis Hospital, Vasant Kunj, New Delhi",
		Contact:   "+91-11-42778800",
		Email:     "blood@fortis.in",
		City:      "New Delhi",
		State:     "Delhi",
		Latitude:  "28.5244",
		Longitude: "77.1855",
		Category:  "Private",
	},
	{
		Name:      "Max Hospital Blood Bank",
		Address:   "Max Hospital, Saket, New Delhi",
		Contact:   "+91-11-26515050",
		Email:     "bloodbank@maxhealthcare.com",
		City:      "New Delhi",
		State:     "Delhi",
		Latitude:  "28.5355",
		Longitude: "77.2030",
		Category:  "Private",
	},
}

var mockAvailability = []model.RawAvailabilityRecord{
	{BloodBankName: "AIIMS Delhi Blood Bank", BloodGroup: "O+", UnitsAvailable: "25", City: "New Delhi", State: "Delhi"},
	{BloodBankName: "Fortis Hospital Blood Center", BloodGroup: "A+", UnitsAvailable: "18", City: "New Delhi", State: "Delhi"},
	{BloodBankName: "Max Hospital Blood Bank", BloodGroup: "B+", UnitsAvailable: "12", City: "New Delhi", State: "Delhi"},
}

func mockFetchBanks(location string) []model.RawBankRecord {
	var out []model.RawBankRecord
	for _, b := range mockBanks {
		if matches(location, b.Name, b.Address, b.City, b.State) {
			out = append(out, b)
		}
	}
	return out
}

func mockFetchAvailability(bloodGroup, location string) []model.RawAvailabilityRecord {
	var out []model.RawAvailabilityRecord
	for _, a := range mockAvailability {
		if bloodGroup != "" && !strings.EqualFold(bloodGroup, a.BloodGroup) {
			continue
		}
		if matches(location, a.BloodBankName, a.City, a.State) {
			out = append(out, a)
		}
	}
	return out
}

func matches(location string, fields ...string) bool {
	location = strings.ToLower(strings.TrimSpace(location))
	if location == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), location) {
			return true
		}
	}
	return false
}
