package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlatext/parlatext/pkg/types"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parlatext.db")
	kv, err := NewSQLiteKV(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return New(kv), path
}

func record(id string) types.StoredJobRecord {
	return types.StoredJobRecord{JobID: id, AccessToken: "token-" + id}
}

func ids(records []types.StoredJobRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.JobID
	}
	return out
}

func TestAddOrdersMostRecentFirst(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Add(record("a")))
	require.NoError(t, s.Add(record("b")))
	require.NoError(t, s.Add(record("c")))

	records, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(records))
}

func TestAddIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Add(record("a")))
	require.NoError(t, s.Add(record("b")))
	// Re-adding must neither duplicate nor move the record
	require.NoError(t, s.Add(record("a")))

	records, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(records))
}

func TestAddRequiresJobID(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Error(t, s.Add(types.StoredJobRecord{AccessToken: "orphan"}))
}

func TestRemove(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Add(record("a")))
	require.NoError(t, s.Add(record("b")))

	require.NoError(t, s.Remove("a"))
	records, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(records))

	// removing an absent id is a no-op
	require.NoError(t, s.Remove("ghost"))
}

func TestRemoveInvalid(t *testing.T) {
	s, _ := newTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Add(record(id)))
	}

	require.NoError(t, s.RemoveInvalid(map[string]struct{}{
		"a": {},
		"c": {},
		"x": {}, // unknown ids are ignored
	}))

	records, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(records))

	require.NoError(t, s.RemoveInvalid(nil))
}

func TestClear(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Add(record("a")))
	require.NoError(t, s.Clear())

	records, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTokens(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Add(record("a")))
	require.NoError(t, s.Add(record("b")))

	tokens, err := s.Tokens()
	require.NoError(t, err)
	assert.Equal(t, []string{"token-b", "token-a"}, tokens)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	_, ok, err := s.LoadSnapshot()
	require.NoError(t, err)
	assert.False(t, ok, "no snapshot before the first save")

	jobs := []types.Job{
		{ID: "a", Filename: "talk.mp3", Status: types.JobStatusProcessing, Progress: 40, CreatedAt: time.Now().UTC().Truncate(time.Second)},
		{ID: "b", Filename: "keynote.mp4", Status: types.JobStatusCompleted, CreatedAt: time.Now().UTC().Truncate(time.Second)},
	}
	require.NoError(t, s.SaveSnapshot(jobs))

	loaded, ok, err := s.LoadSnapshot()
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, loaded, 2)
	assert.Equal(t, "a", loaded[0].ID)
	assert.Equal(t, types.JobStatusCompleted, loaded[1].Status)
}

func TestPromptedFlag(t *testing.T) {
	s, _ := newTestStore(t)

	prompted, err := s.WasPrompted()
	require.NoError(t, err)
	assert.False(t, prompted)

	require.NoError(t, s.MarkPrompted())

	prompted, err = s.WasPrompted()
	require.NoError(t, err)
	assert.True(t, prompted)
}

func TestRecordsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parlatext.db")

	kv, err := NewSQLiteKV(path)
	require.NoError(t, err)
	s := New(kv)
	require.NoError(t, s.Add(record("a")))
	require.NoError(t, s.MarkPrompted())
	require.NoError(t, kv.Close())

	kv, err = NewSQLiteKV(path)
	require.NoError(t, err)
	defer func() { _ = kv.Close() }()
	s = New(kv)

	records, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(records))

	prompted, err := s.WasPrompted()
	require.NoError(t, err)
	assert.True(t, prompted)
}
