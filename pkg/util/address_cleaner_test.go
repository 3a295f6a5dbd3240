package util

import "testing"

func TestCleanAddress(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "removes HTML tags",
			input: "Ansari Nagar<br><span></span>, New Delhi",
			want:  "Ansari Nagar, New Delhi",
		},
		{
			name:  "collapses empty comma parts",
			input: "Sector 5, , ,Rohini",
			want:  "Sector 5, Rohini",
		},
		{
			name:  "title-cases all-caps addresses",
			input: "PRESS ENCLAVE ROAD, SAKET",
			want:  "Press Enclave Road, Saket",
		},
		{
			name:  "keeps door numbers",
			input: "#12 MG Road, Bengaluru",
			want:  "#12 MG Road, Bengaluru",
		},
		{
			name:  "decodes HTML entities",
			input: "Hospital Rd &amp; Ring Rd",
			want:  "Hospital Rd & Ring Rd",
		},
		{
			name:  "handles empty address",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanAddress(tt.input)
			if got != tt.want {
				t.Errorf("CleanAddress(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "strips symbols",
			input: "AIIMS Blood Bank***",
			want:  "AIIMS Blood Bank",
		},
		{
			name:  "fixes escaped closing tags",
			input: "<td>Fortis<\\/td>",
			want:  "Fortis",
		},
		{
			name:  "removes nbsp",
			input: "Max&nbsp;Hospital",
			want:  "Max Hospital",
		},
		{
			name:  "normalizes whitespace",
			input: "Lok   \n   Nayak",
			want:  "Lok Nayak",
		},
		{
			name:  "handles empty string",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanText(tt.input)
			if got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNeedsCleanup(t *testing.T) {
	if !NeedsCleanup("Saket<br>") {
		t.Error("expected markup to need cleanup")
	}
	if !NeedsCleanup("ok", "A&nbsp;B") {
		t.Error("expected nbsp to need cleanup")
	}
	if NeedsCleanup("Press Enclave Road", "Saket") {
		t.Error("clean fields should not need cleanup")
	}
}

func TestHashKeysAreStableAndPrefixed(t *testing.T) {
	a := HashBankKey("AIIMS Blood Bank", "Ansari Nagar", "Delhi")
	b := HashBankKey("  aiims blood bank ", "ANSARI NAGAR", "delhi ")
	if a != b {
		t.Fatalf("bank key should ignore case and padding: %s vs %s", a, b)
	}
	if a[:len(BankIDPrefix)] != BankIDPrefix {
		t.Fatalf("bank key %q missing prefix", a)
	}
	if HashBankKey("AIIMS Blood Bank", "Ansari Nagar", "Haryana") == a {
		t.Fatal("different state must give a different key")
	}
	if got := HashAvailabilityKey("AIIMS", "New Delhi", "Delhi", "O+"); got[:len(AvailabilityIDPrefix)] != AvailabilityIDPrefix {
		t.Fatalf("availability key %q missing prefix", got)
	}
	if HashAvailabilityKey("AIIMS", "New Delhi", "Delhi", "O+") == HashAvailabilityKey("AIIMS", "New Delhi", "Delhi", "O-") {
		t.Fatal("blood group must be part of the availability key")
	}
	if HashAvailabilityKey("District Hospital", "Patna", "Bihar", "O+") == HashAvailabilityKey("District Hospital", "Kochi", "Kerala", "O+") {
		t.Fatal("same-named banks in different states must not share a stock key")
	}
}
