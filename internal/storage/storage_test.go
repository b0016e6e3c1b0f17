package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "venuemail/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		require.NoError(t, err)
		assert.Nil(t, st)
	}
	_, err := Open(Config{Driver: "postgres", Path: "x"}, logx.Nop())
	require.Error(t, err)
}

func TestDrivers(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "journal", "venuemail.db")
			cfg := Config{Driver: driver, Path: path, BusyTimeout: time.Second}

			st, err := Open(cfg, logx.Nop())
			require.NoError(t, err)
			require.NotNil(t, st)

			base := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
			for i, id := range []string{"run-1", "run-2", "run-3"} {
				require.NoError(t, st.AppendRun(ctx, RunEntry{
					ID: id, At: base.Add(time.Duration(i) * time.Minute), Source: "batch.csv",
					Total: 4, Sent: 3, Failed: 1, TookMS: 1200,
				}))
			}
			runs, err := st.Runs(ctx, 2)
			require.NoError(t, err)
			require.Len(t, runs, 2)
			assert.Equal(t, "run-3", runs[0].ID)
			assert.Equal(t, "run-2", runs[1].ID)
			assert.Equal(t, 3, runs[0].Sent)
			assert.Equal(t, 1, runs[0].Failed)

			ok, err := st.IsProcessed(ctx, "sha256:abc")
			require.NoError(t, err)
			assert.False(t, ok)
			require.NoError(t, st.MarkProcessed(ctx, "sha256:abc", "batch.csv", base))
			ok, err = st.IsProcessed(ctx, "sha256:abc")
			require.NoError(t, err)
			assert.True(t, ok)
			require.NoError(t, st.Close())

			// The ledger survives a reopen.
			st, err = Open(cfg, logx.Nop())
			require.NoError(t, err)
			defer st.Close()
			ok, err = st.IsProcessed(ctx, "sha256:abc")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestRunsOrderWithinOneSecond(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			st, err := Open(Config{Driver: driver, Path: filepath.Join(t.TempDir(), "venuemail.db")}, logx.Nop())
			require.NoError(t, err)
			defer st.Close()

			base := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
			require.NoError(t, st.AppendRun(ctx, RunEntry{ID: "older", At: base, Source: "a.csv"}))
			require.NoError(t, st.AppendRun(ctx, RunEntry{ID: "newer", At: base.Add(300 * time.Millisecond), Source: "b.csv"}))

			runs, err := st.Runs(ctx, 10)
			require.NoError(t, err)
			require.Len(t, runs, 2)
			assert.Equal(t, "newer", runs[0].ID)
			assert.Equal(t, "older", runs[1].ID)
			assert.True(t, runs[1].At.Equal(base))
		})
	}
}
