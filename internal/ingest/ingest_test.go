package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"intel.gg/discord-intel/internal/store"
)

const sampleExport = `{
  "channel": {"id": "c1", "name": "general", "category": "Text", "topic": "chit chat"},
  "messages": [
    {
      "id": "m1",
      "author": {"id": "a1", "name": "ada"},
      "content": "hello team",
      "timestamp": "2025-01-02T03:04:05.678+00:00",
      "reference": {"messageId": "m0"},
      "attachments": [{"url": "x"}],
      "reactions": [{"count": 2}, {"count": 1}],
      "isPinned": true
    },
    {
      "id": "",
      "author": {"id": "a2", "name": "bob"},
      "content": "no id, should be skipped",
      "timestamp": "2025-01-02T03:05:00+00:00"
    },
    {
      "id": "m2",
      "author": {"id": "a2", "name": "bob"},
      "content": "",
      "timestamp": "not-a-timestamp"
    }
  ]
}`

func writeExport(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func newTestIngester(t *testing.T) (*Ingester, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewIngester(st, zap.NewNop()), st
}

func TestLoadDirMapsExportFields(t *testing.T) {
	ing, st := newTestIngester(t)

	dir := t.TempDir()
	writeExport(t, dir, "general.json", sampleExport)

	report, err := ing.LoadDir(dir)
	require.NoError(t, err)
	require.Equal(t, 1, report.Files)
	require.Equal(t, 2, report.Inserted)
	require.Equal(t, 1, report.Skipped)

	msg, err := st.GetMessage("m1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, "general", msg.ChannelName)
	require.Equal(t, "ada", msg.AuthorName)
	require.Equal(t, "hello team", msg.Content)
	require.Equal(t, store.StatusPending, msg.SafetyStatus)
	require.NotNil(t, msg.ReplyTo)
	require.Equal(t, "m0", *msg.ReplyTo)
	require.Equal(t, 1, msg.AttachmentsCount)
	require.Equal(t, 3, msg.ReactionsCount)
	require.True(t, msg.IsPinned)
	require.NotZero(t, msg.TimestampEpoch)

	// Unparseable timestamp: display form kept, epoch zero.
	msg, err = st.GetMessage("m2")
	require.NoError(t, err)
	require.Equal(t, "not-a-timestamp", msg.Timestamp)
	require.Zero(t, msg.TimestampEpoch)
}

func TestLoadDirIsIdempotent(t *testing.T) {
	ing, st := newTestIngester(t)

	dir := t.TempDir()
	writeExport(t, dir, "general.json", sampleExport)

	first, err := ing.LoadDir(dir)
	require.NoError(t, err)

	second, err := ing.LoadDir(dir)
	require.NoError(t, err)
	require.Zero(t, second.Inserted)
	require.Equal(t, first.Inserted, second.Duplicates)

	counts, err := st.CountByStatus()
	require.NoError(t, err)
	require.Equal(t, first.Inserted, counts[store.StatusPending])
}

func TestLoadDirSkipsMalformedFile(t *testing.T) {
	ing, _ := newTestIngester(t)

	dir := t.TempDir()
	writeExport(t, dir, "broken.json", "{not json")
	writeExport(t, dir, "ok.json", sampleExport)

	report, err := ing.LoadDir(dir)
	require.NoError(t, err)
	require.Equal(t, 1, report.Files)
	require.Equal(t, 2, report.Inserted)
}

func TestParseTimestampForms(t *testing.T) {
	cases := []struct {
		in     string
		wantOK bool
	}{
		{"2025-01-02T03:04:05.678+00:00", true},
		{"2025-01-02T03:04:05+00:00", true},
		{"2025-01-02T03:04:05", true},
		{"yesterday", false},
		{"", false},
	}
	for _, tc := range cases {
		got := parseTimestamp(tc.in)
		if tc.wantOK {
			require.NotZero(t, got, "timestamp %q", tc.in)
		} else {
			require.Zero(t, got, "timestamp %q", tc.in)
		}
	}
}
