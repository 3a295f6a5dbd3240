package util

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// ExternalID prefixes per cached entity type.
const (
	BankIDPrefix         = "bank_"
	AvailabilityIDPrefix = "avail_"
	DonorIDPrefix        = "donor_"
)

// HashBankKey derives the external id of a blood bank from its identity fields, so a
// re-scrape of the same bank maps onto the same row.
func HashBankKey(name, address, state string) string {
	return BankIDPrefix + hashParts(name, address, state)
}

// HashAvailabilityKey derives the external id of one stock line. Banks share names
// across districts, so the location is part of the identity.
func HashAvailabilityKey(bankName, city, state, bloodGroup string) string {
	return AvailabilityIDPrefix + hashParts(bankName, city, state, bloodGroup)
}

// HashDonorKey derives the external id of a cached donor.
func HashDonorKey(name, phone, bloodGroup string) string {
	return DonorIDPrefix + hashParts(name, phone, bloodGroup)
}

func hashParts(parts ...string) string {
	builder := strings.Builder{}
	for i, p := range parts {
		if i > 0 {
			builder.WriteString("|")
		}
		builder.WriteString(strings.TrimSpace(strings.ToLower(p)))
	}
	return hashString(builder.String())
}

func hashString(input string) string {
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}
