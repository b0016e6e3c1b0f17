package record

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const domain = "kluniversity.in"

func mustCSV(t *testing.T, body string) Table {
	t.Helper()
	tbl, err := Read("batch.csv", strings.NewReader(body))
	require.NoError(t, err)
	return tbl
}

func TestNormalizeExampleRow(t *testing.T) {
	tbl := mustCSV(t, "event_name,venue,Time,event_incharge_name,student_id_number\n"+
		"Tech Talk,Indoor Stadium,1:30 PM,Aravind,2200080234\n")

	res, err := Normalizer{Domain: domain}.Normalize(tbl)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, "Tech Talk", rec.EventName)
	assert.Equal(t, "Indoor Stadium", rec.Venue)
	assert.Equal(t, "1:30 PM", rec.Time)
	assert.Equal(t, "Aravind", rec.InchargeName)
	assert.Equal(t, "2200080234@kluniversity.in", rec.RecipientAddress)
	assert.False(t, rec.HasDate())
	assert.Equal(t, 2, rec.Line)
}

func TestNormalizeStripsFractionalID(t *testing.T) {
	tbl := mustCSV(t, "event_name,venue,Time,event_incharge_name,student_id_number,Date\n"+
		"Tech Talk,Indoor Stadium,1:30 PM,Aravind,2200080234.0,12-03-2025\n")

	res, err := Normalizer{Domain: domain}.Normalize(tbl)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "2200080234@kluniversity.in", res.Records[0].RecipientAddress)
	assert.Equal(t, "12-03-2025", res.Records[0].Date)
}

func TestNormalizeTrimsHeaderNames(t *testing.T) {
	tbl := mustCSV(t, "\ufeff event_name , venue,Time ,event_incharge_name,  student_id_number\n"+
		"Quiz,Hall A,10 AM,Ravi,2300030001\n")

	res, err := Normalizer{Domain: domain}.Normalize(tbl)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Quiz", res.Records[0].EventName)
}

func TestNormalizeHeaderIsCaseSensitive(t *testing.T) {
	tbl := mustCSV(t, "event_name,venue,time,event_incharge_name,student_id_number\n"+
		"Quiz,Hall A,10 AM,Ravi,2300030001\n")

	_, err := Normalizer{Domain: domain}.Normalize(tbl)
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "Time")
}

func TestNormalizeDropsIncompleteRows(t *testing.T) {
	tbl := mustCSV(t, strings.Join([]string{
		"event_name,venue,Time,event_incharge_name,student_id_number",
		"Quiz,Hall A,10 AM,Ravi,2300030001",
		",Hall A,10 AM,Ravi,2300030002",     // no event
		"Quiz,Hall A,10 AM,Ravi,",           // no id
		"Quiz,Hall A,10 AM,Ravi,nan",        // sentinel id
		"Quiz,Hall A,10 AM,Ravi,.5",         // id cleans to nothing
		"Quiz,,10 AM,Ravi,2300030003",       // no venue
		"Quiz,Hall A,10 AM,None,2300030004", // sentinel incharge
		"Quiz,Hall A",                       // short row
		"",                                  // blank line
		"Debate,Hall B,11 AM,Sita,2300030005.0",
	}, "\n"))

	res, err := Normalizer{Domain: domain}.Normalize(tbl)
	require.NoError(t, err)

	got := make([]string, 0, len(res.Records))
	for _, r := range res.Records {
		got = append(got, r.RecipientAddress)
		assert.NotEmpty(t, r.EventName)
		assert.NotEmpty(t, r.RecipientID)
	}
	assert.Equal(t, []string{"2300030001@kluniversity.in", "2300030005@kluniversity.in"}, got)
	assert.Len(t, res.Dropped, 7)
	assert.Equal(t, 3, res.Dropped[0].Line)
	assert.Equal(t, "missing event_name", res.Dropped[0].Reason)
}

func TestLinesFollowPhysicalSourceLines(t *testing.T) {
	tbl := mustCSV(t, strings.Join([]string{
		"event_name,venue,Time,event_incharge_name,student_id_number",
		`Quiz,"Hall A`,
		`first floor",10 AM,Ravi,2300030001`,
		"",
		"Quiz,Hall B,10 AM,Ravi,",
		"Debate,Hall C,11 AM,Sita,2300030005",
	}, "\n"))

	res, err := Normalizer{Domain: domain}.Normalize(tbl)
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, 2, res.Records[0].Line)
	assert.Equal(t, "Hall A\nfirst floor", res.Records[0].Venue)
	assert.Equal(t, 6, res.Records[1].Line)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, 5, res.Dropped[0].Line)
}

func TestCleanRecipientID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{raw: "2200080234", want: "2200080234", ok: true},
		{raw: " 2200080234 ", want: "2200080234", ok: true},
		{raw: "2200080234.0", want: "2200080234", ok: true},
		{raw: "2200080234.75", want: "2200080234", ok: true},
		{raw: "2.200080234E+09", want: "2200080234", ok: true},
		{raw: "2200080234.0.1", want: "2200080234", ok: true},
		{raw: "KL2200.1", want: "KL2200", ok: true},
		{raw: "nan", ok: false},
		{raw: "NaN", ok: false},
		{raw: "None", ok: false},
		{raw: "", ok: false},
		{raw: ".0", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := CleanRecipientID(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecipientAddressProperty(t *testing.T) {
	ids := []string{"1", "42.0", " 2200080234 ", "007.9", "abc.def"}
	for _, raw := range ids {
		tbl := Table{
			Header: RequiredColumns,
			Rows:   [][]string{{"E", "V", "T", "I", raw}},
		}
		res, err := Normalizer{Domain: domain}.Normalize(tbl)
		require.NoError(t, err)
		require.Len(t, res.Records, 1)

		want := strings.TrimSpace(raw)
		if i := strings.IndexByte(want, '.'); i >= 0 {
			want = want[:i]
		}
		assert.Equal(t, want+"@"+domain, res.Records[0].RecipientAddress)
	}
}

func TestReadRejectsUnknownExtension(t *testing.T) {
	_, err := Read("batch.pdf", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadEmptyDataset(t *testing.T) {
	_, err := Read("batch.csv", strings.NewReader("\n\n"))
	require.ErrorIs(t, err, ErrEmptyDataset)
}

func TestReadMalformedCSV(t *testing.T) {
	_, err := Read("batch.csv", strings.NewReader("a,b\n\"unterminated,1\n"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEmptyDataset))
}

func TestReadMalformedXLSX(t *testing.T) {
	_, err := Read("batch.xlsx", strings.NewReader("definitely not a zip"))
	require.Error(t, err)
}

func TestSampleDatasetsNormalize(t *testing.T) {
	for _, f := range []Format{FormatCSV, FormatXLSX} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteSample(&buf, f))

			tbl, err := Read("sample."+string(f), &buf)
			require.NoError(t, err)
			assert.Equal(t, SampleHeader, tbl.Header)

			res, err := Normalizer{Domain: domain}.Normalize(tbl)
			require.NoError(t, err)
			require.Len(t, res.Records, len(SampleRows))
			assert.Equal(t, "2200080234@kluniversity.in", res.Records[0].RecipientAddress)
			assert.False(t, res.Records[0].HasDate())
			assert.Equal(t, "14-03-2025", res.Records[1].Date)
		})
	}
}

func TestWriteSampleUnknownFormat(t *testing.T) {
	require.ErrorIs(t, WriteSample(&bytes.Buffer{}, Format("ods")), ErrUnsupportedFormat)
}
