package record

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sampleSheet = "records"

// SampleHeader is the canonical column order of the sample dataset.
var SampleHeader = []string{ColEventName, ColVenue, ColTime, ColDate, ColInchargeName, ColStudentID}

// SampleRows are example records matching SampleHeader.
var SampleRows = [][]string{
	{"Tech Talk", "Indoor Stadium", "1:30 PM", "", "Aravind", "2200080234"},
	{"Blood Donation Camp", "C Block Seminar Hall", "9:00 AM", "14-03-2025", "Meghana", "2200080101"},
}

// WriteSample writes the canonical example dataset to w.
func WriteSample(w io.Writer, format Format) error {
	switch format {
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(SampleHeader); err != nil {
			return err
		}
		if err := cw.WriteAll(SampleRows); err != nil {
			return err
		}
		return cw.Error()
	case FormatXLSX:
		return writeSampleXLSX(w)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func writeSampleXLSX(w io.Writer) error {
	wb := excelize.NewFile()
	defer wb.Close()

	if err := wb.SetSheetName(wb.GetSheetName(0), sampleSheet); err != nil {
		return err
	}
	rows := append([][]string{SampleHeader}, SampleRows...)
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		vals := make([]interface{}, len(r))
		for j, v := range r {
			vals[j] = v
		}
		if err := wb.SetSheetRow(sampleSheet, cell, &vals); err != nil {
			return err
		}
	}
	return wb.Write(w)
}
