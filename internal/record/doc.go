// Package record turns an uploaded dataset into notification records.
//
// A dataset is a CSV file or the first sheet of an XLSX workbook with a
// header row. Header names are trimmed and matched case-sensitively against
// the column names below. Rows missing a required value are dropped
// silently; a structurally unusable file fails the whole batch.
package record
