package parcels

import (
	"regexp"
	"strings"
	"time"

	"github.com/colisdesk/colisdesk/internal/models"
)

// SearchField narrows the query to one column; FieldAll matches across all of
// them.
type SearchField string

const (
	FieldAll       SearchField = "all"
	FieldReference SearchField = "reference"
	FieldClient    SearchField = "client"
	FieldPhone     SearchField = "tel"
	FieldNumber    SearchField = "numero"
)

// DateRange bounds date_creation. Either side may be empty.
type DateRange struct {
	From string
	To   string
}

// StatusAll disables the status pre-filter.
const StatusAll = "all"

var numericQuery = regexp.MustCompile(`^[0-9]+$`)

// Layouts the provider has been seen to use for date_creation.
var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// Filter applies status, query and date criteria to an already-fetched record
// set. It is pure: records are matched in place, never mutated.
//
// A fully numeric query is an identifier (phone, parcel number, code barre)
// and must match a field exactly. Anything else is a case-insensitive
// substring search.
func Filter(records []models.Parcel, status, query string, field SearchField, dates DateRange) []models.Parcel {
	query = strings.TrimSpace(query)
	from, hasFrom := parseDay(dates.From)
	to, hasTo := parseDay(dates.To)

	out := make([]models.Parcel, 0, len(records))
	for _, p := range records {
		if status != "" && status != StatusAll && p.Status != status {
			continue
		}
		if hasFrom || hasTo {
			day, ok := parseDay(p.CreationDate)
			if !ok {
				continue
			}
			if hasFrom && day.Before(from) {
				continue
			}
			if hasTo && day.After(to) {
				continue
			}
		}
		if query != "" && !matches(p, query, field) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matches(p models.Parcel, query string, field SearchField) bool {
	if numericQuery.MatchString(query) {
		return matchExact(p, query, field)
	}
	return matchSubstring(p, query, field)
}

func matchExact(p models.Parcel, query string, field SearchField) bool {
	switch field {
	case FieldReference:
		return p.Reference == query
	case FieldClient:
		return p.Client == query
	case FieldPhone:
		return p.Phone1 == query || p.Phone2 == query
	case FieldNumber:
		return p.ParcelNumber == query || p.Code == query
	default:
		return p.Phone1 == query || p.Phone2 == query ||
			p.ParcelNumber == query || p.Code == query ||
			p.Reference == query
	}
}

func matchSubstring(p models.Parcel, query string, field SearchField) bool {
	q := strings.ToLower(query)
	contains := func(s string) bool {
		return strings.Contains(strings.ToLower(s), q)
	}
	switch field {
	case FieldReference:
		return contains(p.Reference)
	case FieldClient:
		return contains(p.Client)
	case FieldPhone:
		return contains(p.Phone1) || contains(p.Phone2)
	case FieldNumber:
		return contains(p.ParcelNumber) || contains(p.Code)
	default:
		return contains(p.Reference) || contains(p.Client) ||
			contains(p.Phone1) || contains(p.Phone2) ||
			contains(p.City) || contains(p.Province) ||
			contains(p.ParcelNumber) || contains(p.Code) ||
			contains(p.Designation)
	}
}

// parseDay truncates to the day so range bounds are inclusive of the whole
// day on both ends.
func parseDay(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Truncate(24 * time.Hour), true
		}
	}
	return time.Time{}, false
}
