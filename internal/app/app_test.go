package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mail "gopkg.in/mail.v2"

	"venuemail/internal/config"
	"venuemail/internal/dispatch"
	"venuemail/internal/record"
	"venuemail/internal/storage"
	logx "venuemail/pkg/logx"
)

const dataset = `event_name,venue,Time,Date,event_incharge_name,student_id_number
Tech Talk,Room 101,10:00 AM,,Dr. Rao,2200080234
Blood Donation Camp,Seminar Hall,09:00 AM,14-03-2025,Meghana,2.200080101E+09
Hackathon,Lab 3,11:00 AM,,Kiran,
Quiz,Block C,02:00 PM,,Anil,2200080999.0
`

var creds = config.Credentials{User: "events@kluniversity.in", Password: "secret"}

type recordingSender struct {
	mu     sync.Mutex
	to     []string
	failTo string
}

func (s *recordingSender) Send(ctx context.Context, m *mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	to := m.GetHeader("To")[0]
	s.to = append(s.to, to)
	if to == s.failTo {
		return errors.New("550 mailbox unavailable")
	}
	return nil
}

func writeDataset(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "batch.csv")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func newApp(t *testing.T, s dispatch.Sender, opts ...Option) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	var out bytes.Buffer
	opts = append([]Option{
		WithOutput(&out),
		WithLogger(logx.Nop()),
		WithSenderFactory(func(dispatch.RelayConfig, config.Credentials) (dispatch.Sender, error) { return s, nil }),
	}, opts...)
	a, err := New(&cfg, opts...)
	require.NoError(t, err)
	return a, &out
}

// execute runs a batch the way the send command does, without confirmation.
func execute(a *App, run Run) (dispatch.Report, error) {
	ctx := context.Background()
	b, err := a.Prepare(ctx, run)
	if err != nil {
		return dispatch.Report{}, err
	}
	return a.Send(ctx, run, b)
}

func TestPrepareNormalizesAndRenders(t *testing.T) {
	a, _ := newApp(t, &recordingSender{})
	b, err := a.Prepare(context.Background(), NewRun(writeDataset(t, dataset), creds))
	require.NoError(t, err)

	require.Len(t, b.Records, 3)
	require.Len(t, b.Dropped, 1)
	assert.Equal(t, 4, b.Dropped[0].Line)
	assert.Equal(t, "batch.csv", b.Source)

	require.Len(t, b.Outgoing, 3)
	assert.Equal(t, "2200080234@kluniversity.in", b.Outgoing[0].To)
	assert.Equal(t, "Venue Update for Tech Talk", b.Outgoing[0].Subject)
	assert.Equal(t, "2200080101@kluniversity.in", b.Outgoing[1].To)
	assert.Equal(t, "Venue Update for Blood Donation Camp on 14-03-2025", b.Outgoing[1].Subject)
	assert.Equal(t, "2200080999@kluniversity.in", b.Outgoing[2].To)
	assert.Equal(t, 3, b.Rendered())
}

func TestPrepareMissingColumnIsBatchError(t *testing.T) {
	s := &recordingSender{}
	a, _ := newApp(t, s)
	_, err := execute(a, NewRun(writeDataset(t, "event_name,venue\nTalk,Hall\n"), creds))
	require.ErrorIs(t, err, record.ErrMissingColumn)
	assert.Empty(t, s.to)
}

func TestSendIsolatesOneFailure(t *testing.T) {
	s := &recordingSender{failTo: "2200080101@kluniversity.in"}
	a, out := newApp(t, s)

	rep, err := execute(a, NewRun(writeDataset(t, dataset), creds))
	require.NoError(t, err)

	require.Len(t, rep.Results, 3)
	assert.Equal(t, 2, rep.Sent())
	assert.Equal(t, 1, rep.Failed())
	assert.Equal(t, []string{
		"2200080234@kluniversity.in",
		"2200080101@kluniversity.in",
		"2200080999@kluniversity.in",
	}, s.to)
	assert.Equal(t, ExitPartial, ExitCode(rep))

	text := out.String()
	assert.Contains(t, text, "sent to 2200080234@kluniversity.in with cc to vjoenithin@kluniversity.in")
	assert.Contains(t, text, "failed to send to 2200080101@kluniversity.in: 550 mailbox unavailable")
	assert.Contains(t, text, "2 sent, 1 failed, 0 skipped, 1 dropped")
}

func TestSendRequiresCredentials(t *testing.T) {
	a, _ := newApp(t, &recordingSender{})
	run := NewRun(writeDataset(t, dataset), config.Credentials{User: "events@kluniversity.in"})
	_, err := execute(a, run)
	require.ErrorIs(t, err, dispatch.ErrNoCredentials)
}

func TestDryRunOpensNoSession(t *testing.T) {
	cfg := config.Default()
	var out bytes.Buffer
	a, err := New(&cfg, WithOutput(&out), WithSenderFactory(func(dispatch.RelayConfig, config.Credentials) (dispatch.Sender, error) {
		t.Fatal("sender must not be built in dry run")
		return nil, nil
	}))
	require.NoError(t, err)

	run := NewRun(writeDataset(t, dataset), config.Credentials{})
	run.DryRun = true
	rep, err := execute(a, run)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Sent())
	assert.Equal(t, ExitOK, ExitCode(rep))
	assert.Contains(t, out.String(), "would send to 2200080234@kluniversity.in")
	assert.Contains(t, out.String(), "(dry run)")
}

func TestSendMissingAttachmentIsBatchError(t *testing.T) {
	s := &recordingSender{}
	a, _ := newApp(t, s)
	run := NewRun(writeDataset(t, dataset), creds, filepath.Join(t.TempDir(), "missing.pdf"))
	_, err := execute(a, run)
	require.Error(t, err)
	assert.Empty(t, s.to)
}

func TestRenderFailureIsRecordLevel(t *testing.T) {
	tpl := filepath.Join(t.TempDir(), "tpl.html")
	require.NoError(t, os.WriteFile(tpl, []byte("<p>[event_name] on [Date]</p>"), 0o600))

	cfg := config.Default()
	cfg.Template.Path = tpl
	s := &recordingSender{}
	a, err := New(&cfg, WithOutput(&bytes.Buffer{}), WithSenderFactory(func(dispatch.RelayConfig, config.Credentials) (dispatch.Sender, error) { return s, nil }))
	require.NoError(t, err)

	rep, err := execute(a, NewRun(writeDataset(t, dataset), creds))
	require.NoError(t, err)
	// Only the dated record can fill [Date].
	assert.Equal(t, 1, rep.Sent())
	assert.Equal(t, 2, rep.Failed())
	assert.Equal(t, []string{"2200080101@kluniversity.in"}, s.to)
}

func TestRunsAreJournaled(t *testing.T) {
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "venuemail.db")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	a, _ := newApp(t, &recordingSender{failTo: "2200080999@kluniversity.in"}, WithStore(st))
	run := NewRun(writeDataset(t, dataset), creds)
	_, err = execute(a, run)
	require.NoError(t, err)
	_, err = execute(a, NewRun(writeDataset(t, "a,b\n1,2\n"), creds))
	require.Error(t, err)

	runs, err := st.Runs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.NotEmpty(t, runs[0].Error)
	assert.Equal(t, run.ID, runs[1].ID)
	assert.Equal(t, 3, runs[1].Total)
	assert.Equal(t, 2, runs[1].Sent)
	assert.Equal(t, 1, runs[1].Failed)
	assert.Equal(t, 1, runs[1].Dropped)
}

func TestPrepareDataJournalsBatchErrors(t *testing.T) {
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "venuemail.db")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	a, _ := newApp(t, &recordingSender{}, WithStore(st))
	run := NewRun("", creds)
	_, err = a.PrepareData(context.Background(), run, "drop.xlsx", []byte("not a workbook"))
	require.Error(t, err)

	b, err := a.PrepareData(context.Background(), NewRun("", creds), "drop.csv", []byte(dataset))
	require.NoError(t, err)
	assert.Len(t, b.Outgoing, 3)

	runs, err := st.Runs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, "drop.xlsx", runs[0].Source)
	assert.NotEmpty(t, runs[0].Error)
}

func TestPreviewListsRecordsAndDrops(t *testing.T) {
	a, _ := newApp(t, &recordingSender{})
	b, err := a.Prepare(context.Background(), NewRun(writeDataset(t, dataset), creds))
	require.NoError(t, err)

	var w bytes.Buffer
	Preview(&w, b)
	text := w.String()
	assert.Contains(t, text, "2200080234@kluniversity.in")
	assert.Contains(t, text, "Blood Donation Camp")
	assert.Contains(t, text, "dropped line 4")
	assert.Equal(t, 1, strings.Count(text, "dropped line"))
}

func TestMapStorageConfig(t *testing.T) {
	cfg := config.Default()
	_, enabled, err := mapStorageConfig(&cfg)
	require.NoError(t, err)
	assert.False(t, enabled)

	cfg.Storage = &config.StorageConfig{Driver: "sqlite"}
	_, _, err = mapStorageConfig(&cfg)
	require.Error(t, err)

	cfg.Storage = &config.StorageConfig{Driver: "SQLite", Path: "x.db", BusyTimeout: "3s"}
	sc, enabled, err := mapStorageConfig(&cfg)
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, "sqlite", sc.Driver)

	cfg.Storage = &config.StorageConfig{Driver: "redis"}
	_, _, err = mapStorageConfig(&cfg)
	require.Error(t, err)
}
