package app

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"venuemail/internal/storage"
)

// Preview prints the normalized records of b as a table, followed by the
// rows that were dropped.
func Preview(w io.Writer, b *Batch) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Line", "Event", "Venue", "Time", "Date", "In-charge", "Recipient", "Status"})
	table.SetAutoWrapText(false)
	table.SetRowLine(false)

	for i, rec := range b.Records {
		status := "ready"
		if i < len(b.Outgoing) && b.Outgoing[i].Err != nil {
			status = b.Outgoing[i].Err.Error()
		}
		table.Append([]string{
			strconv.Itoa(rec.Line),
			rec.EventName,
			rec.Venue,
			rec.Time,
			rec.Date,
			rec.InchargeName,
			rec.RecipientAddress,
			status,
		})
	}
	table.SetFooter([]string{"", "", "", "", "", "", "records", strconv.Itoa(len(b.Records))})
	table.Render()

	for _, d := range b.Dropped {
		fmt.Fprintf(w, "dropped line %d: %s\n", d.Line, d.Reason)
	}
}

// History prints journaled runs, newest first.
func History(w io.Writer, runs []storage.RunEntry) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Run", "At", "Source", "Total", "Sent", "Failed", "Skipped", "Dropped", "Took", "Error"})
	table.SetAutoWrapText(false)
	for _, r := range runs {
		table.Append([]string{
			r.ID,
			r.At.Local().Format(time.DateTime),
			r.Source,
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Sent),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Dropped),
			(time.Duration(r.TookMS) * time.Millisecond).String(),
			r.Error,
		})
	}
	table.Render()
}
