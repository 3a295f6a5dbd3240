package backup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

var validatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestValidator() *Validator {
	return &Validator{now: func() time.Time { return validatedAt }}
}

func TestValidateBankCleansAndStamps(t *testing.T) {
	v := newTestValidator()
	bank, rep := v.ValidateBank(model.RawBankRecord{
		Name:      "AIIMS  Blood Bank",
		Address:   "Address: ANSARI NAGAR, , NEW DELHI",
		Contact:   "011-2658 8500",
		Email:     "bloodbank@AIIMS.edu",
		City:      "New Delhi",
		State:     "dl",
		Latitude:  "28.5672",
		Longitude: "77.2100",
		Category:  "Govt.",
	})

	require.True(t, rep.Valid(), "errors: %v", rep.Errors)
	assert.Equal(t, "AIIMS Blood Bank", bank.Name)
	assert.Equal(t, "Ansari Nagar, New Delhi", bank.Address)
	assert.Empty(t, bank.Contact, "landline numbers are not mobile numbers")
	assert.Equal(t, "bloodbank@aiims.edu", bank.Email)
	assert.Equal(t, "Delhi", bank.State)
	require.NotNil(t, bank.Coordinates)
	assert.InDelta(t, 28.5672, bank.Coordinates.Latitude, 1e-9)
	assert.True(t, bank.IsGovernment)
	assert.Equal(t, validatedAt, bank.ValidatedAt)
	assert.Equal(t, ValidationSource, bank.ValidationSource)
	assert.NotEmpty(t, rep.Warnings)
}

func TestValidateBankRejects(t *testing.T) {
	v := newTestValidator()
	cases := map[string]model.RawBankRecord{
		"short name":         {Name: "AB"},
		"latitude too large": {Name: "City Hospital", Latitude: "128.1", Longitude: "77.0"},
		"longitude too low":  {Name: "City Hospital", Latitude: "28.1", Longitude: "-190"},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, rep := v.ValidateBank(raw)
			assert.False(t, rep.Valid())
		})
	}
}

func TestValidateBankUnparseableCoordinatesWarn(t *testing.T) {
	_, rep := newTestValidator().ValidateBank(model.RawBankRecord{
		Name: "Red Cross Blood Bank", Address: "1 Red Cross Road", Latitude: "n/a", Longitude: "77.2",
	})
	assert.True(t, rep.Valid())
	assert.Len(t, rep.Warnings, 1)
}

func TestValidateBankFlagsMarkupInAddress(t *testing.T) {
	bank, rep := newTestValidator().ValidateBank(model.RawBankRecord{
		Name: "Red Cross Blood Bank", Address: "1 Red Cross Road<br>Near&nbsp;Parliament",
	})
	assert.True(t, rep.Valid())
	assert.NotContains(t, bank.Address, "<")
	assert.NotContains(t, bank.Address, "&nbsp;")
	assert.Equal(t, []string{"address carried page markup, stripped"}, rep.Warnings)
}

func TestValidateAvailability(t *testing.T) {
	v := newTestValidator()
	tests := []struct {
		name      string
		raw       model.RawAvailabilityRecord
		wantValid bool
		wantUnits int
		wantGroup model.BloodType
	}{
		{"spelled group", model.RawAvailabilityRecord{BloodBankName: "AIIMS Blood Bank", BloodGroup: "B POSITIVE", UnitsAvailable: "12"}, true, 12, model.BPos},
		{"negative units", model.RawAvailabilityRecord{BloodBankName: "AIIMS Blood Bank", BloodGroup: "O-", UnitsAvailable: "-3"}, true, 0, model.ONeg},
		{"non numeric units", model.RawAvailabilityRecord{BloodBankName: "AIIMS Blood Bank", BloodGroup: "O-", UnitsAvailable: "many"}, true, 0, model.ONeg},
		{"huge units", model.RawAvailabilityRecord{BloodBankName: "AIIMS Blood Bank", BloodGroup: "AB+", UnitsAvailable: "5000"}, true, 5000, model.ABPos},
		{"unknown group", model.RawAvailabilityRecord{BloodBankName: "AIIMS Blood Bank", BloodGroup: "C+", UnitsAvailable: "4"}, false, 4, ""},
		{"missing bank", model.RawAvailabilityRecord{BloodGroup: "A+", UnitsAvailable: "4"}, false, 4, model.APos},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, rep := v.ValidateAvailability(tt.raw)
			assert.Equal(t, tt.wantValid, rep.Valid(), "errors: %v", rep.Errors)
			assert.Equal(t, tt.wantUnits, row.UnitsAvailable)
			assert.Equal(t, tt.wantGroup, row.BloodGroup)
		})
	}
}

func TestValidateDonor(t *testing.T) {
	v := newTestValidator()

	donor, rep := v.ValidateDonor(model.RawDonorRecord{
		Name:        "Fortis Blood Bank",
		BloodGroup:  "o+ve",
		Phone:       "098765 43210",
		State:       "Delhi",
		IsBloodBank: true,
	})
	require.True(t, rep.Valid(), "errors: %v", rep.Errors)
	assert.Equal(t, model.OPos, donor.BloodGroup)
	assert.Equal(t, "+919876543210", donor.Phone)
	assert.True(t, donor.IsBloodBank)

	_, rep = v.ValidateDonor(model.RawDonorRecord{Name: "Fortis Blood Bank", BloodGroup: "O+", Phone: "12345"})
	assert.False(t, rep.Valid(), "a present but invalid phone rejects the donor")

	_, rep = v.ValidateDonor(model.RawDonorRecord{Name: "X", BloodGroup: "O+"})
	assert.False(t, rep.Valid())
}

func TestNormalizeState(t *testing.T) {
	tests := map[string]string{
		"delhi":          "Delhi",
		"  TAMIL   NADU": "Tamil Nadu",
		"ga":             "Goa",
		"up":             "Uttar Pradesh",
		"new delhi":      "Delhi",
		"bengal":         "West Bengal",
	}
	for in, want := range tests {
		got, ok := NormalizeState(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := NormalizeState("zz")
	assert.False(t, ok)
	_, ok = NormalizeState("atlantis")
	assert.False(t, ok)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+919876543210", normalizePhone("+91 98765-43210"))
	assert.Equal(t, "+919876543210", normalizePhone("9876543210"))
	assert.Equal(t, "+919876543210", normalizePhone("09876543210"))
	assert.Empty(t, normalizePhone("5876543210"))
	assert.Empty(t, normalizePhone("011-26588500"))
}

func TestValidateBanksBatch(t *testing.T) {
	batch := newTestValidator().ValidateBanks([]model.RawBankRecord{
		{Name: "AIIMS Blood Bank", Address: "Ansari Nagar", State: "Delhi"},
		{Name: "X"},
		{Name: "Safdarjung Hospital", State: "Narnia"},
	})

	assert.Equal(t, BatchStats{Total: 3, Valid: 2, Invalid: 1, Warnings: 3, Errors: 1}, batch.Stats)
	require.Len(t, batch.Invalid, 1)
	assert.Equal(t, 1, batch.Invalid[0].Index)
	assert.Equal(t, "X", batch.Invalid[0].Name)
	assert.Len(t, batch.Valid, 2)
}
