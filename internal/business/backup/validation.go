package backup

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/util"
)

// ValidationSource is stamped on every row the validator accepts.
const ValidationSource = "eraktkosh_validator"

// Indian states and union territories.
var validStates = []string{
	"andaman and nicobar islands", "andhra pradesh", "arunachal pradesh", "assam", "bihar",
	"chandigarh", "chhattisgarh", "dadra and nagar haveli and daman and diu", "delhi", "goa",
	"gujarat", "haryana", "himachal pradesh", "jammu and kashmir", "jharkhand", "karnataka",
	"kerala", "ladakh", "lakshadweep", "madhya pradesh", "maharashtra", "manipur", "meghalaya",
	"mizoram", "nagaland", "odisha", "puducherry", "punjab", "rajasthan", "sikkim", "tamil nadu",
	"telangana", "tripura", "uttar pradesh", "uttarakhand", "west bengal",
}

var stateAbbreviations = map[string]string{
	"ap": "andhra pradesh",
	"ar": "arunachal pradesh",
	"as": "assam",
	"br": "bihar",
	"cg": "chhattisgarh",
	"dl": "delhi",
	"ga": "goa",
	"gj": "gujarat",
	"hr": "haryana",
	"hp": "himachal pradesh",
	"jh": "jharkhand",
	"jk": "jammu and kashmir",
	"ka": "karnataka",
	"kl": "kerala",
	"mp": "madhya pradesh",
	"mh": "maharashtra",
	"mn": "manipur",
	"ml": "meghalaya",
	"mz": "mizoram",
	"nl": "nagaland",
	"or": "odisha",
	"od": "odisha",
	"pb": "punjab",
	"rj": "rajasthan",
	"sk": "sikkim",
	"tn": "tamil nadu",
	"tg": "telangana",
	"ts": "telangana",
	"tr": "tripura",
	"up": "uttar pradesh",
	"uk": "uttarakhand",
	"wb": "west bengal",
}

var governmentKeywords = []string{
	"government", "govt", "district", "state", "central", "municipal",
	"corporation", "council", "public", "national", "regional",
}

var (
	emailPattern  = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\+91[6-9]\d{9}$`),
		regexp.MustCompile(`^[6-9]\d{9}$`),
		regexp.MustCompile(`^0[6-9]\d{9}$`),
	}
	addressPrefixes = []string{"address:", "addr:", "add:"}
)

// Report lists what the validator found in one record. Errors reject the record;
// warnings let a cleaned version through.
type Report struct {
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (r *Report) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Valid reports whether the record had no errors.
func (r Report) Valid() bool { return len(r.Errors) == 0 }

// InvalidRecord is a rejected raw record with its reasons.
type InvalidRecord struct {
	Index    int      `json:"index"`
	Name     string   `json:"name"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

// BatchStats summarizes a ValidateBatch run.
type BatchStats struct {
	Total    int `json:"total"`
	Valid    int `json:"valid"`
	Invalid  int `json:"invalid"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
}

// Batch is the outcome of validating a list of raw records.
type Batch[T any] struct {
	Valid   []T
	Invalid []InvalidRecord
	Stats   BatchStats
}

// Validator cleans and checks scraped backup records.
type Validator struct {
	now func() time.Time
}

func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// ValidateBatch runs validate over raws, splitting accepted rows from rejected ones.
func ValidateBatch[R, T any](raws []R, name func(R) string, validate func(R) (T, Report)) Batch[T] {
	b := Batch[T]{Stats: BatchStats{Total: len(raws)}}
	for i, raw := range raws {
		row, rep := validate(raw)
		b.Stats.Warnings += len(rep.Warnings)
		b.Stats.Errors += len(rep.Errors)
		if rep.Valid() {
			b.Valid = append(b.Valid, row)
			b.Stats.Valid++
			continue
		}
		b.Invalid = append(b.Invalid, InvalidRecord{
			Index:    i,
			Name:     name(raw),
			Errors:   rep.Errors,
			Warnings: rep.Warnings,
		})
		b.Stats.Invalid++
	}
	return b
}

// ValidateBanks validates a scraped bank list.
func (v *Validator) ValidateBanks(raws []model.RawBankRecord) Batch[model.BloodBank] {
	return ValidateBatch(raws, func(r model.RawBankRecord) string { return r.Name }, v.ValidateBank)
}

// ValidateAvailabilityRows validates a scraped stock list.
func (v *Validator) ValidateAvailabilityRows(raws []model.RawAvailabilityRecord) Batch[model.BloodAvailability] {
	return ValidateBatch(raws, func(r model.RawAvailabilityRecord) string { return r.BloodBankName }, v.ValidateAvailability)
}

// ValidateDonors validates raw donor entries.
func (v *Validator) ValidateDonors(raws []model.RawDonorRecord) Batch[model.BackupDonor] {
	return ValidateBatch(raws, func(r model.RawDonorRecord) string { return r.Name }, v.ValidateDonor)
}

// ValidateBank checks one blood bank. Short names and out-of-range coordinates are
// errors; everything else is cleaned with a warning.
func (v *Validator) ValidateBank(raw model.RawBankRecord) (model.BloodBank, Report) {
	var rep Report
	bank := model.BloodBank{}

	if len(strings.TrimSpace(raw.Name)) < 3 {
		rep.errorf("blood bank name is missing or too short")
	} else {
		bank.Name = util.CleanText(raw.Name)
		if bank.Name != raw.Name {
			rep.warnf("blood bank name was cleaned")
		}
	}

	if strings.TrimSpace(raw.Address) == "" {
		rep.warnf("address is missing")
	} else {
		bank.Address = cleanAddress(raw.Address)
		switch {
		case util.NeedsCleanup(raw.Address):
			rep.warnf("address carried page markup, stripped")
		case bank.Address != raw.Address:
			rep.warnf("address was cleaned")
		}
	}

	if raw.Contact != "" {
		bank.Contact = normalizePhone(raw.Contact)
		switch {
		case bank.Contact == "":
			rep.warnf("contact number %q is invalid", raw.Contact)
		case bank.Contact != raw.Contact:
			rep.warnf("contact number was cleaned")
		}
	}

	bank.Email = v.checkEmail(raw.Email, &rep)
	bank.City = util.CleanText(raw.City)
	bank.State = v.checkState(raw.State, &rep)
	bank.Coordinates = parseCoordinates(raw.Latitude, raw.Longitude, true, &rep)
	bank.IsGovernment = isGovernment(raw.Name+" "+raw.Address) ||
		strings.Contains(strings.ToLower(raw.Category), "gov")

	bank.ValidatedAt = v.now().UTC()
	bank.ValidationSource = ValidationSource
	return bank, rep
}

// ValidateAvailability checks one stock line. An unknown blood group or bank name is an
// error; bad unit counts become 0 with a warning.
func (v *Validator) ValidateAvailability(raw model.RawAvailabilityRecord) (model.BloodAvailability, Report) {
	var rep Report
	row := model.BloodAvailability{}

	row.BloodGroup = checkBloodGroup(raw.BloodGroup, &rep)

	units := strings.TrimSpace(raw.UnitsAvailable)
	switch n, err := strconv.Atoi(units); {
	case units == "":
		rep.warnf("units available is missing, setting to 0")
	case err != nil:
		rep.warnf("units available %q is not a valid number, setting to 0", raw.UnitsAvailable)
	case n < 0:
		rep.warnf("units available is negative, setting to 0")
	default:
		if n > 1000 {
			rep.warnf("units available %d seems unusually high", n)
		}
		row.UnitsAvailable = n
	}

	if name := strings.TrimSpace(raw.BloodBankName); len(name) < 3 {
		rep.errorf("blood bank name is missing or too short")
	} else {
		row.BloodBankName = util.CleanText(name)
	}

	row.City = util.CleanText(raw.City)
	row.State = v.checkState(raw.State, &rep)
	row.ValidatedAt = v.now().UTC()
	row.ValidationSource = ValidationSource
	return row, rep
}

// ValidateDonor checks one donor. A donor must carry a usable blood group; a phone
// that is present but not a valid Indian number is rejected.
func (v *Validator) ValidateDonor(raw model.RawDonorRecord) (model.BackupDonor, Report) {
	var rep Report
	donor := model.BackupDonor{
		IsBloodBank:        raw.IsBloodBank,
		HospitalAffiliated: raw.HospitalAffiliated,
		FlexibleSchedule:   raw.FlexibleSchedule,
	}

	if name := strings.TrimSpace(raw.Name); len(name) < 2 {
		rep.errorf("donor name is missing or too short")
	} else {
		donor.Name = util.CleanText(name)
	}

	donor.BloodGroup = checkBloodGroup(raw.BloodGroup, &rep)

	if raw.Phone != "" {
		donor.Phone = normalizePhone(raw.Phone)
		if donor.Phone == "" {
			rep.errorf("phone number %q is invalid", raw.Phone)
		}
	}

	donor.Email = v.checkEmail(raw.Email, &rep)
	if raw.Address != "" {
		donor.Address = cleanAddress(raw.Address)
	}
	donor.City = util.CleanText(raw.City)
	donor.State = v.checkState(raw.State, &rep)
	donor.Coordinates = parseCoordinates(raw.Latitude, raw.Longitude, true, &rep)

	donor.ValidatedAt = v.now().UTC()
	donor.ValidationSource = ValidationSource
	return donor, rep
}

func (v *Validator) checkEmail(email string, rep *Report) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	if !emailPattern.MatchString(email) {
		rep.warnf("email %q is invalid", email)
		return ""
	}
	return strings.ToLower(email)
}

func (v *Validator) checkState(state string, rep *Report) string {
	state = strings.TrimSpace(state)
	if state == "" {
		return ""
	}
	normalized, ok := NormalizeState(state)
	if !ok {
		rep.warnf("state %q is not recognized", state)
		return util.CleanText(state)
	}
	if !strings.EqualFold(normalized, state) {
		rep.warnf("state %q corrected to %q", state, normalized)
	}
	return normalized
}

func checkBloodGroup(raw string, rep *Report) model.BloodType {
	bt, err := model.ParseBloodType(raw)
	if err != nil {
		rep.errorf("invalid blood group: %q", raw)
		return ""
	}
	if string(bt) != strings.TrimSpace(raw) {
		rep.warnf("blood group %q corrected to %q", raw, bt)
	}
	return bt
}

// NormalizeState maps a state name, a fragment of one, or its two-letter code to the
// title-cased official name.
func NormalizeState(state string) (string, bool) {
	s := strings.ToLower(strings.Join(strings.Fields(state), " "))
	if s == "" {
		return "", false
	}
	if i := sort.SearchStrings(validStates, s); i < len(validStates) && validStates[i] == s {
		return util.TitleCase(s), true
	}
	if full, ok := stateAbbreviations[s]; ok {
		return util.TitleCase(full), true
	}
	if len(s) < 3 {
		return "", false
	}
	for _, valid := range validStates {
		if strings.Contains(valid, s) || strings.Contains(s, valid) {
			return util.TitleCase(valid), true
		}
	}
	return "", false
}

// normalizePhone returns the +91 form of an Indian mobile number, or "" if phone is not
// one.
func normalizePhone(phone string) string {
	cleaned := util.DigitsOnly(phone)
	for _, p := range phonePatterns {
		if !p.MatchString(cleaned) {
			continue
		}
		switch {
		case strings.HasPrefix(cleaned, "+91"):
			return cleaned
		case len(cleaned) == 10:
			return "+91" + cleaned
		default:
			return "+91" + cleaned[1:]
		}
	}
	return ""
}

func cleanAddress(address string) string {
	a := strings.TrimSpace(address)
	lower := strings.ToLower(a)
	for _, prefix := range addressPrefixes {
		if strings.HasPrefix(lower, prefix) {
			a = a[len(prefix):]
			break
		}
	}
	return util.CleanAddress(a)
}

// parseCoordinates returns nil when either value is absent or unparseable. Out-of-range
// values are errors when strict, warnings otherwise.
func parseCoordinates(latRaw, lonRaw string, strict bool, rep *Report) *model.Location {
	latRaw, lonRaw = strings.TrimSpace(latRaw), strings.TrimSpace(lonRaw)
	if latRaw == "" && lonRaw == "" {
		return nil
	}
	if latRaw == "" || lonRaw == "" {
		rep.warnf("only one coordinate present, dropping location")
		return nil
	}
	lat, errLat := strconv.ParseFloat(latRaw, 64)
	lon, errLon := strconv.ParseFloat(lonRaw, 64)
	if errLat != nil || errLon != nil {
		rep.warnf("coordinates %q,%q are not valid numbers", latRaw, lonRaw)
		return nil
	}
	report := rep.warnf
	if strict {
		report = rep.errorf
	}
	if lat < -90 || lat > 90 {
		report("latitude %v is out of valid range", lat)
		return nil
	}
	if lon < -180 || lon > 180 {
		report("longitude %v is out of valid range", lon)
		return nil
	}
	return &model.Location{Latitude: lat, Longitude: lon}
}

func isGovernment(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range governmentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
