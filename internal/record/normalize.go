package record

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Normalizer validates and cleans dataset rows.
type Normalizer struct {
	// Domain is appended to the cleaned student id.
	Domain string
}

// Dropped describes a row excluded by Normalize.
type Dropped struct {
	Line   int
	Reason string
}

// Result is the outcome of normalizing one table.
type Result struct {
	Records []NotificationRecord
	Dropped []Dropped
}

// Normalize converts t into records in source order.
//
// A header lacking a required column is a batch error. Rows with a missing
// required value, or whose id cleans down to nothing, are dropped and listed
// in Result.Dropped; that is not an error.
func (n Normalizer) Normalize(t Table) (Result, error) {
	if len(t.Header) == 0 {
		return Result{}, ErrEmptyDataset
	}
	var missing []string
	for _, c := range RequiredColumns {
		if !t.hasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	domain := strings.TrimPrefix(strings.TrimSpace(n.Domain), "@")
	rows := t.Records()
	res := Result{Records: make([]NotificationRecord, 0, len(rows))}
	for i, row := range rows {
		line := i + 2
		if i < len(t.Lines) {
			line = t.Lines[i]
		}
		rec, reason := normalizeRow(row, domain)
		if reason != "" {
			res.Dropped = append(res.Dropped, Dropped{Line: line, Reason: reason})
			continue
		}
		rec.Line = line
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func normalizeRow(row Row, domain string) (NotificationRecord, string) {
	for _, c := range RequiredColumns {
		if IsMissing(row[c]) {
			return NotificationRecord{}, "missing " + c
		}
	}
	id, ok := CleanRecipientID(row[ColStudentID])
	if !ok {
		return NotificationRecord{}, "unusable " + ColStudentID
	}

	rec := NotificationRecord{
		EventName:    strings.TrimSpace(row[ColEventName]),
		Venue:        strings.TrimSpace(row[ColVenue]),
		Time:         strings.TrimSpace(row[ColTime]),
		InchargeName: strings.TrimSpace(row[ColInchargeName]),
		RecipientID:  id,
	}
	if d := row[ColDate]; !IsMissing(d) {
		rec.Date = strings.TrimSpace(d)
	}
	rec.RecipientAddress = id + "@" + domain
	return rec, ""
}

// CleanRecipientID coerces a raw student id cell to its canonical string.
//
// Everything from the first '.' on is dropped, so a numeric id read back as
// "2200080234.0" becomes "2200080234". Scientific notation written by
// spreadsheet tools ("2.200080234E+09") is expanded first. ok is false when
// nothing usable remains.
func CleanRecipientID(raw string) (id string, ok bool) {
	s := strings.TrimSpace(raw)
	if IsMissing(s) {
		return "", false
	}
	if strings.ContainsAny(s, "eE") {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f < 1e18 && !math.IsInf(f, 0) {
			s = strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if IsMissing(s) {
		return "", false
	}
	return s, true
}
