package model

import (
	"errors"
	"fmt"
	"strings"
)

// BloodType is one of the eight ABO/Rh groups.
type BloodType string

const (
	ONeg  BloodType = "O-"
	OPos  BloodType = "O+"
	ANeg  BloodType = "A-"
	APos  BloodType = "A+"
	BNeg  BloodType = "B-"
	BPos  BloodType = "B+"
	ABNeg BloodType = "AB-"
	ABPos BloodType = "AB+"
)

// ErrInvalidBloodType is returned when a string cannot be mapped to a blood group.
var ErrInvalidBloodType = errors.New("invalid blood type")

var allBloodTypes = []BloodType{ONeg, OPos, ANeg, APos, BNeg, BPos, ABNeg, ABPos}

// spelled-out variants seen on the eRaktKosh portal and in user input.
var bloodTypeAliases = map[string]BloodType{
	"A POSITIVE":  APos,
	"A NEGATIVE":  ANeg,
	"B POSITIVE":  BPos,
	"B NEGATIVE":  BNeg,
	"AB POSITIVE": ABPos,
	"AB NEGATIVE": ABNeg,
	"O POSITIVE":  OPos,
	"O NEGATIVE":  ONeg,
	"A POS":       APos,
	"A NEG":       ANeg,
	"B POS":       BPos,
	"B NEG":       BNeg,
	"AB POS":      ABPos,
	"AB NEG":      ABNeg,
	"O POS":       OPos,
	"O NEG":       ONeg,
	"A+VE":        APos,
	"A-VE":        ANeg,
	"B+VE":        BPos,
	"B-VE":        BNeg,
	"AB+VE":       ABPos,
	"AB-VE":       ABNeg,
	"O+VE":        OPos,
	"O-VE":        ONeg,
}

// AllBloodTypes returns the eight groups in a fixed order.
func AllBloodTypes() []BloodType {
	out := make([]BloodType, len(allBloodTypes))
	copy(out, allBloodTypes)
	return out
}

// ParseBloodType normalizes s into a BloodType. Canonical forms ("ab+") and the common
// spelled variants ("AB POSITIVE", "O NEG") are accepted.
func ParseBloodType(s string) (BloodType, error) {
	norm := strings.ToUpper(strings.Join(strings.Fields(s), " "))
	if norm == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidBloodType)
	}
	compact := strings.ReplaceAll(norm, " ", "")
	for _, bt := range allBloodTypes {
		if compact == string(bt) {
			return bt, nil
		}
	}
	if bt, ok := bloodTypeAliases[norm]; ok {
		return bt, nil
	}
	if bt, ok := bloodTypeAliases[compact]; ok {
		return bt, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBloodType, s)
}

// Valid reports whether b is one of the eight groups.
func (b BloodType) Valid() bool {
	for _, bt := range allBloodTypes {
		if b == bt {
			return true
		}
	}
	return false
}

// IsRare reports whether b is one of the rare negative groups (A-, B-, AB-).
func (b BloodType) IsRare() bool {
	return b == ANeg || b == BNeg || b == ABNeg
}

func (b BloodType) String() string { return string(b) }

// UrgencyLevel is the priority tier of a request.
type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "low"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyCritical UrgencyLevel = "critical"
)

// ErrInvalidUrgency is returned for an unknown urgency string.
var ErrInvalidUrgency = errors.New("invalid urgency level")

// ParseUrgency maps s to an UrgencyLevel. An empty string means medium.
func ParseUrgency(s string) (UrgencyLevel, error) {
	switch UrgencyLevel(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return UrgencyMedium, nil
	case UrgencyLow:
		return UrgencyLow, nil
	case UrgencyMedium:
		return UrgencyMedium, nil
	case UrgencyHigh:
		return UrgencyHigh, nil
	case UrgencyCritical:
		return UrgencyCritical, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidUrgency, s)
}

// Priority orders urgency levels for batch processing: critical=4 down to low=1.
// Unknown levels rank as medium.
func (u UrgencyLevel) Priority() int {
	switch u {
	case UrgencyCritical:
		return 4
	case UrgencyHigh:
		return 3
	case UrgencyLow:
		return 1
	default:
		return 2
	}
}
