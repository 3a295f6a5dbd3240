package eraktkosh

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

type column int

const (
	colUnknown column = iota
	colName
	colAddress
	colContact
	colEmail
	colCity
	colState
	colLatitude
	colLongitude
	colCategory
	colBloodGroup
	colUnits
)

// headerRoles is checked in order; the first keyword found in a header wins.
var headerRoles = []struct {
	keywords []string
	role     column
}{
	{[]string{"blood group", "group"}, colBloodGroup},
	{[]string{"unit", "availab", "stock"}, colUnits},
	{[]string{"latitude", "lat"}, colLatitude},
	{[]string{"longitude", "long", "lng"}, colLongitude},
	{[]string{"address", "location"}, colAddress},
	{[]string{"contact", "phone", "mobile", "tel"}, colContact},
	{[]string{"mail"}, colEmail},
	{[]string{"district", "city"}, colCity},
	{[]string{"state"}, colState},
	{[]string{"category", "type", "ownership"}, colCategory},
	{[]string{"blood bank", "blood centre", "blood center", "name", "hospital"}, colName},
}

var (
	numberPattern = regexp.MustCompile(`\d+`)
	// stockPattern matches "O+Ve : 12" style entries of a combined stock cell.
	stockPattern = regexp.MustCompile(`(?i)\b(AB|A|B|O)\s*([+-])\s*(?:ve)?\s*[:=-]?\s*(\d+)`)
)

func roleOf(header string) column {
	h := strings.ToLower(strings.TrimSpace(header))
	for _, hr := range headerRoles {
		for _, kw := range hr.keywords {
			if strings.Contains(h, kw) {
				return hr.role
			}
		}
	}
	return colUnknown
}

// table is one parsed HTML table: the role of each column and the text of each data row.
type table struct {
	roles []column
	rows  [][]string
}

func (t table) has(role column) bool {
	for _, r := range t.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (t table) cell(row []string, role column) string {
	for i, r := range t.roles {
		if r == role && i < len(row) {
			return row[i]
		}
	}
	return ""
}

func parseTables(r io.Reader) ([]table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var tables []table
	doc.Find("table").Each(func(_ int, s *goquery.Selection) {
		var t table
		s.Find("tr").Each(func(i int, tr *goquery.Selection) {
			var cells []string
			tr.Find("th, td").Each(func(_ int, c *goquery.Selection) {
				cells = append(cells, strings.Join(strings.Fields(c.Text()), " "))
			})
			if len(cells) == 0 {
				return
			}
			if t.roles == nil {
				t.roles = make([]column, len(cells))
				for j, h := range cells {
					t.roles[j] = roleOf(h)
				}
				return
			}
			t.rows = append(t.rows, cells)
		})
		if t.has(colName) {
			tables = append(tables, t)
		}
	})
	return tables, nil
}

// ParseBloodBanks extracts blood bank rows from a directory page. Tables without a
// recognizable name column are ignored.
func ParseBloodBanks(r io.Reader) ([]model.RawBankRecord, error) {
	tables, err := parseTables(r)
	if err != nil {
		return nil, err
	}

	var out []model.RawBankRecord
	for _, t := range tables {
		for _, row := range t.rows {
			name := t.cell(row, colName)
			if name == "" {
				continue
			}
			out = append(out, model.RawBankRecord{
				Name:      name,
				Address:   t.cell(row, colAddress),
				Contact:   t.cell(row, colContact),
				Email:     t.cell(row, colEmail),
				City:      t.cell(row, colCity),
				State:     t.cell(row, colState),
				Latitude:  t.cell(row, colLatitude),
				Longitude: t.cell(row, colLongitude),
				Category:  t.cell(row, colCategory),
			})
		}
	}
	return out, nil
}

// ParseAvailability extracts stock lines from an availability page. A row either names
// one blood group and its units, or lists every group in one stock cell
// ("O+Ve: 12, A-Ve: 3").
func ParseAvailability(r io.Reader) ([]model.RawAvailabilityRecord, error) {
	tables, err := parseTables(r)
	if err != nil {
		return nil, err
	}

	var out []model.RawAvailabilityRecord
	for _, t := range tables {
		for _, row := range t.rows {
			base := model.RawAvailabilityRecord{
				BloodBankName: t.cell(row, colName),
				City:          t.cell(row, colCity),
				State:         t.cell(row, colState),
			}
			if base.BloodBankName == "" {
				continue
			}

			if t.has(colBloodGroup) {
				rec := base
				rec.BloodGroup = t.cell(row, colBloodGroup)
				rec.UnitsAvailable = units(t.cell(row, colUnits))
				out = append(out, rec)
				continue
			}

			for _, m := range stockPattern.FindAllStringSubmatch(t.cell(row, colUnits), -1) {
				rec := base
				rec.BloodGroup = strings.ToUpper(m[1]) + m[2]
				rec.UnitsAvailable = m[3]
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

// units returns the first number in raw, "0" for "Not Available", or raw itself so the
// validator can report it.
func units(raw string) string {
	if n := numberPattern.FindString(raw); n != "" {
		return n
	}
	if strings.Contains(strings.ToLower(raw), "not available") {
		return "0"
	}
	return raw
}
