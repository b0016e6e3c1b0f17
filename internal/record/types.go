package record

import (
	"errors"
	"strings"
)

// Column names expected in the header row.
const (
	ColEventName    = "event_name"
	ColVenue        = "venue"
	ColTime         = "Time"
	ColDate         = "Date"
	ColInchargeName = "event_incharge_name"
	ColStudentID    = "student_id_number"
)

// RequiredColumns must all be present in the header.
var RequiredColumns = []string{ColEventName, ColVenue, ColTime, ColInchargeName, ColStudentID}

var (
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	ErrEmptyDataset      = errors.New("dataset has no header row")
	ErrMissingColumn     = errors.New("dataset is missing a required column")
)

// NotificationRecord is one event notification derived from one row.
type NotificationRecord struct {
	// Line is the 1-based line (or sheet row) the record came from.
	Line int

	EventName    string
	Venue        string
	Time         string
	Date         string // optional
	InchargeName string
	RecipientID  string

	// RecipientAddress is RecipientID + "@" + domain.
	RecipientAddress string
}

// HasDate reports whether the optional date was supplied.
func (r NotificationRecord) HasDate() bool { return r.Date != "" }

// Row maps trimmed column names to raw cell values.
type Row map[string]string

// Table is a parsed dataset: a header plus raw rows in source order.
type Table struct {
	Source string
	Header []string
	Rows   [][]string
	// Lines holds the 1-based source line of each entry in Rows.
	Lines []int
}

// Records returns each data row keyed by trimmed header name. Cells beyond
// the header are ignored; missing trailing cells are absent from the map.
// When a header name repeats, the first column wins.
func (t Table) Records() []Row {
	out := make([]Row, 0, len(t.Rows))
	for _, raw := range t.Rows {
		row := make(Row, len(t.Header))
		for i, name := range t.Header {
			if i >= len(raw) || name == "" {
				continue
			}
			if _, dup := row[name]; dup {
				continue
			}
			row[name] = raw[i]
		}
		out = append(out, row)
	}
	return out
}

func (t Table) hasColumn(name string) bool {
	for _, h := range t.Header {
		if h == name {
			return true
		}
	}
	return false
}

// missingSentinels are the textual forms spreadsheet tools use for empty cells.
var missingSentinels = map[string]struct{}{
	"nan":  {},
	"none": {},
	"null": {},
	"n/a":  {},
	"<na>": {},
	"nat":  {},
}

// IsMissing reports whether v is empty or a missing-value sentinel.
func IsMissing(v string) bool {
	s := strings.TrimSpace(v)
	if s == "" {
		return true
	}
	_, ok := missingSentinels[strings.ToLower(s)]
	return ok
}
