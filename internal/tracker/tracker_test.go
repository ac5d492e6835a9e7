package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlatext/parlatext/internal/realtime"
	"github.com/parlatext/parlatext/internal/store"
	v1 "github.com/parlatext/parlatext/pkg/api/v1/client"
	"github.com/parlatext/parlatext/pkg/types"
)

type fakeAPI struct {
	v1.Client

	listResponse types.ListJobsResponse
	listErr      error
	lastTokens   []string

	cancelErr    error
	cancelledIDs []string
}

func (f *fakeAPI) ListJobs(_ context.Context, tokens []string, _, _ int) (types.ListJobsResponse, error) {
	f.lastTokens = tokens
	if f.listErr != nil {
		return types.ListJobsResponse{}, f.listErr
	}
	return f.listResponse, nil
}

func (f *fakeAPI) CancelJob(_ context.Context, id, _ string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelledIDs = append(f.cancelledIDs, id)
	return nil
}

type fakeNotifier struct {
	completed []string
	failed    []string
}

func (f *fakeNotifier) NotifyComplete(name string) { f.completed = append(f.completed, name) }
func (f *fakeNotifier) NotifyFailed(name string)   { f.failed = append(f.failed, name) }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	kv, err := store.NewSQLiteKV(filepath.Join(t.TempDir(), "parlatext.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return store.New(kv)
}

func job(id string, status types.JobStatus) types.Job {
	return types.Job{ID: id, Filename: id + ".mp3", Status: status}
}

func seedRecords(t *testing.T, st *store.Store, ids ...string) {
	t.Helper()
	// Add in reverse so the listed order matches ids
	for i := len(ids) - 1; i >= 0; i-- {
		require.NoError(t, st.Add(types.StoredJobRecord{JobID: ids[i], AccessToken: "tok-" + ids[i]}))
	}
}

func storedIDs(t *testing.T, st *store.Store) []string {
	t.Helper()
	records, err := st.List()
	require.NoError(t, err)
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.JobID
	}
	return out
}

func TestFetchReplacesListAndPaginates(t *testing.T) {
	st := newTestStore(t)
	seedRecords(t, st, "a", "b")

	api := &fakeAPI{listResponse: types.ListJobsResponse{
		Jobs:  []types.Job{job("a", types.JobStatusProcessing), job("b", types.JobStatusPending)},
		Total: 15,
	}}
	tr := New(Config{API: api, Store: st, PerPage: 10})

	view := tr.Fetch(context.Background(), 1)

	assert.False(t, view.Offline)
	assert.Len(t, view.Jobs, 2)
	assert.Equal(t, 15, view.Total)
	assert.Equal(t, 2, view.TotalPages)
	assert.Equal(t, []string{"tok-a", "tok-b"}, api.lastTokens)
}

func TestFetchPrunesRecordsAbsentFromResponse(t *testing.T) {
	st := newTestStore(t)
	seedRecords(t, st, "a", "b", "c")

	api := &fakeAPI{listResponse: types.ListJobsResponse{
		Jobs:  []types.Job{job("b", types.JobStatusProcessing)},
		Total: 1,
	}}
	tr := New(Config{API: api, Store: st})

	tr.Fetch(context.Background(), 1)

	assert.Equal(t, []string{"b"}, storedIDs(t, st), "ids missing from a successful fetch are expired")
}

func TestFetchEmptyResponsePrunesEverything(t *testing.T) {
	st := newTestStore(t)
	seedRecords(t, st, "a", "b", "c")

	api := &fakeAPI{listResponse: types.ListJobsResponse{}}
	tr := New(Config{API: api, Store: st})

	tr.Fetch(context.Background(), 1)

	assert.Empty(t, storedIDs(t, st))
}

func TestFetchFailureServesSnapshotAndPrunesNothing(t *testing.T) {
	st := newTestStore(t)
	seedRecords(t, st, "a", "b", "c")

	// First a successful fetch to populate the snapshot
	api := &fakeAPI{listResponse: types.ListJobsResponse{
		Jobs:  []types.Job{job("a", types.JobStatusProcessing), job("b", types.JobStatusPending), job("c", types.JobStatusPending)},
		Total: 3,
	}}
	tr := New(Config{API: api, Store: st})
	view := tr.Fetch(context.Background(), 1)
	require.False(t, view.Offline)

	// Then the network goes away
	api.listErr = errors.New("connection refused")
	view = tr.Fetch(context.Background(), 1)

	assert.True(t, view.Offline)
	assert.Len(t, view.Jobs, 3, "offline view must serve the cached snapshot, not an empty list")
	assert.Equal(t, []string{"a", "b", "c"}, storedIDs(t, st), "absence during an outage is not evidence of expiry")
}

func TestFetchFailureWithoutSnapshot(t *testing.T) {
	st := newTestStore(t)
	seedRecords(t, st, "a")

	api := &fakeAPI{listErr: errors.New("connection refused")}
	tr := New(Config{API: api, Store: st})

	view := tr.Fetch(context.Background(), 1)
	assert.True(t, view.Offline)
	assert.Empty(t, view.Jobs)
}

func TestSeedingNeverNotifiesRetroactively(t *testing.T) {
	st := newTestStore(t)
	seedRecords(t, st, "done", "dead")

	notifier := &fakeNotifier{}
	api := &fakeAPI{listResponse: types.ListJobsResponse{
		Jobs:  []types.Job{job("done", types.JobStatusCompleted), job("dead", types.JobStatusFailed)},
		Total: 2,
	}}
	tr := New(Config{API: api, Store: st, Notifier: notifier})

	tr.Fetch(context.Background(), 1)

	assert.Empty(t, notifier.completed, "jobs already terminal at first load must not notify")
	assert.Empty(t, notifier.failed)
}

func TestTerminalTransitionNotifiesExactlyOnce(t *testing.T) {
	st := newTestStore(t)
	seedRecords(t, st, "a")

	notifier := &fakeNotifier{}
	api := &fakeAPI{listResponse: types.ListJobsResponse{
		Jobs:  []types.Job{job("a", types.JobStatusProcessing)},
		Total: 1,
	}}
	tr := New(Config{API: api, Store: st, Notifier: notifier})
	tr.Fetch(context.Background(), 1)

	// Poll observes the completion first...
	api.listResponse = types.ListJobsResponse{
		Jobs:  []types.Job{job("a", types.JobStatusCompleted)},
		Total: 1,
	}
	tr.Fetch(context.Background(), 1)

	// ...and a racing push update reports the same transition again
	tr.applyPatch(realtime.Update{
		Kind:  realtime.KindFull,
		JobID: "a",
		Job:   job("a", types.JobStatusCompleted),
	})

	assert.Equal(t, []string{"a.mp3"}, notifier.completed, "both channels reported the transition, one notification")
	assert.Empty(t, notifier.failed)
}

func TestPushTransitionNotifies(t *testing.T) {
	st := newTestStore(t)
	seedRecords(t, st, "a")

	notifier := &fakeNotifier{}
	api := &fakeAPI{listResponse: types.ListJobsResponse{
		Jobs:  []types.Job{job("a", types.JobStatusProcessing)},
		Total: 1,
	}}
	tr := New(Config{API: api, Store: st, Notifier: notifier})
	tr.Fetch(context.Background(), 1)

	raw, err := json.Marshal(map[string]any{"job_id": "a", "status": "failed", "error_message": "no speech found"})
	require.NoError(t, err)
	changed := tr.applyPatch(realtime.Update{Kind: realtime.KindPartial, JobID: "a", Raw: raw})

	assert.True(t, changed)
	assert.Equal(t, []string{"a.mp3"}, notifier.failed)

	// The patch merged field-by-field onto the tracked record
	got, ok := tr.find("a")
	require.True(t, ok)
	assert.Equal(t, types.JobStatusFailed, got.Status)
	assert.Equal(t, "no speech found", got.ErrorMessage)
	assert.Equal(t, "a.mp3", got.Filename, "fields absent from the patch keep their values")
}

func TestTerminalStatusNeverRegresses(t *testing.T) {
	st := newTestStore(t)
	seedRecords(t, st, "a")

	api := &fakeAPI{listResponse: types.ListJobsResponse{
		Jobs:  []types.Job{job("a", types.JobStatusCompleted)},
		Total: 1,
	}}
	tr := New(Config{API: api, Store: st})
	tr.Fetch(context.Background(), 1)

	changed := tr.applyPatch(realtime.Update{
		Kind:  realtime.KindFull,
		JobID: "a",
		Job:   job("a", types.JobStatusProcessing),
	})

	assert.False(t, changed)
	got, _ := tr.find("a")
	assert.Equal(t, types.JobStatusCompleted, got.Status)
}

func TestPatchForUntrackedJobIsDropped(t *testing.T) {
	st := newTestStore(t)
	tr := New(Config{API: &fakeAPI{}, Store: st})
	tr.Fetch(context.Background(), 1)

	changed := tr.applyPatch(realtime.Update{
		Kind:  realtime.KindFull,
		JobID: "elsewhere",
		Job:   job("elsewhere", types.JobStatusCompleted),
	})
	assert.False(t, changed, "updates outside the tracked page are dropped, not queued")
}

func TestCancelPendingJob(t *testing.T) {
	st := newTestStore(t)
	seedRecords(t, st, "a")

	api := &fakeAPI{listResponse: types.ListJobsResponse{
		Jobs:  []types.Job{job("a", types.JobStatusPending)},
		Total: 1,
	}}
	tr := New(Config{API: api, Store: st})
	tr.Fetch(context.Background(), 1)

	require.NoError(t, tr.Cancel(context.Background(), "a"))

	assert.Equal(t, []string{"a"}, api.cancelledIDs)
	assert.Empty(t, storedIDs(t, st), "cancelling removes the local record")
	_, ok := tr.find("a")
	assert.False(t, ok)
}

func TestCancelProcessingJobRefused(t *testing.T) {
	st := newTestStore(t)
	seedRecords(t, st, "a")

	api := &fakeAPI{listResponse: types.ListJobsResponse{
		Jobs:  []types.Job{job("a", types.JobStatusProcessing)},
		Total: 1,
	}}
	tr := New(Config{API: api, Store: st})
	tr.Fetch(context.Background(), 1)

	err := tr.Cancel(context.Background(), "a")
	require.Error(t, err)
	assert.Empty(t, api.cancelledIDs)
	assert.Equal(t, []string{"a"}, storedIDs(t, st))
}

func TestCancelUntrackedJob(t *testing.T) {
	st := newTestStore(t)
	tr := New(Config{API: &fakeAPI{}, Store: st})

	err := tr.Cancel(context.Background(), "ghost")
	assert.Error(t, err)
}
