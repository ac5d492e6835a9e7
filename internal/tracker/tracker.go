// Package tracker maintains the client's view of job statuses. A single
// owner applies two kinds of inbound updates to one job list: full refreshes
// from the poll loop, which are authoritative and replace the list
// wholesale, and partial patches from the push channel, which are
// last-write-wins per job id. Terminal statuses never regress, and each
// job's transition into a terminal state produces at most one notification
// no matter which channel reported it first.
package tracker

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/parlatext/parlatext/internal/logger"
	"github.com/parlatext/parlatext/internal/realtime"
	"github.com/parlatext/parlatext/internal/store"
	v1 "github.com/parlatext/parlatext/pkg/api/v1/client"
	"github.com/parlatext/parlatext/pkg/types"
)

// DefaultPerPage is the page size used when none is configured
const DefaultPerPage = 10

// DefaultPollInterval is how often the poll loop re-establishes ground truth
const DefaultPollInterval = 15 * time.Second

// Notifier receives terminal-state alerts. notify.Manager satisfies it.
type Notifier interface {
	NotifyComplete(name string)
	NotifyFailed(name string)
}

// Config wires a Tracker's collaborators
type Config struct {
	API      v1.Client
	Store    *store.Store
	Sub      realtime.Subscriber // optional
	Notifier Notifier            // optional
	PerPage  int
	Interval time.Duration
}

// View is a read-only snapshot of the tracked state
type View struct {
	Jobs       []types.Job
	Total      int
	Page       int
	TotalPages int
	Offline    bool
}

// Tracker owns the in-memory job list
type Tracker struct {
	api      v1.Client
	store    *store.Store
	sub      realtime.Subscriber
	notifier Notifier
	perPage  int
	interval time.Duration

	refetch chan struct{}

	// state below is only touched from the owning goroutine during Run;
	// the synchronous Fetch path reuses the same methods before Run starts
	// or in one-shot mode.
	jobs       []types.Job
	total      int
	page       int
	totalPages int
	offline    bool

	// notified holds ids whose terminal transition has already produced a
	// notification (or predates this session). In-memory only: jobs already
	// finished before the session began must never notify retroactively,
	// and that is exactly what seeding from the first snapshot gives us.
	notified map[string]struct{}
	seeded   bool

	// lastActive is the id set the realtime subscription currently covers
	lastActive map[string]struct{}

	views chan View
}

// New creates a Tracker
func New(cfg Config) *Tracker {
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Tracker{
		api:        cfg.API,
		store:      cfg.Store,
		sub:        cfg.Sub,
		notifier:   cfg.Notifier,
		perPage:    perPage,
		interval:   interval,
		page:       1,
		refetch:    make(chan struct{}, 1),
		notified:   make(map[string]struct{}),
		lastActive: make(map[string]struct{}),
		views:      make(chan View, 1),
	}
}

// Fetch performs one poll for the given page and returns the resulting view.
// Poll failures are absorbed into the offline state, never returned.
func (t *Tracker) Fetch(ctx context.Context, page int) View {
	if page > 0 {
		t.page = page
	}
	t.poll(ctx)
	return t.view()
}

// Refetch asks a running tracker to poll now instead of waiting for the
// next tick.
func (t *Tracker) Refetch() {
	select {
	case t.refetch <- struct{}{}:
	default:
	}
}

// Views delivers a snapshot after every state change while Run is active
func (t *Tracker) Views() <-chan View {
	return t.views
}

// Run polls periodically and merges push updates until ctx is cancelled.
// It owns all tracker state for its duration.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	var updates <-chan realtime.Update
	if t.sub != nil {
		updates = t.sub.Updates()
		defer func() {
			// Unsubscribe fully on teardown
			if err := t.sub.Subscribe(context.Background(), nil); err != nil {
				logger.Debugf("realtime teardown: %v", err)
			}
		}()
	}

	t.poll(ctx)
	t.publish()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.poll(ctx)
			t.publish()
		case <-t.refetch:
			t.poll(ctx)
			t.publish()
		case update, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if t.applyPatch(update) {
				t.resubscribe(ctx)
				t.publish()
			}
		}
	}
}

// Cancel cancels a pending job and removes its local record. Only pending
// jobs can be cancelled; processing ones run to completion.
func (t *Tracker) Cancel(ctx context.Context, jobID string) error {
	record, err := t.record(jobID)
	if err != nil {
		return err
	}

	if job, ok := t.find(jobID); ok && job.Status != types.JobStatusPending {
		return &types.SubmissionError{Detail: "only pending jobs can be cancelled"}
	}

	if err := t.api.CancelJob(ctx, jobID, record.AccessToken); err != nil {
		return err
	}
	if err := t.store.Remove(jobID); err != nil {
		return err
	}

	kept := t.jobs[:0]
	for _, job := range t.jobs {
		if job.ID != jobID {
			kept = append(kept, job)
		}
	}
	t.jobs = kept
	return nil
}

// poll fetches one page with the stored bearer-token set. Success replaces
// the list wholesale, snapshots it, prunes expired records, and refreshes
// the realtime subscription. Failure flips the view offline and serves the
// last snapshot; nothing is pruned while offline, because absence during an
// outage is not evidence of expiry.
func (t *Tracker) poll(ctx context.Context) {
	records, err := t.store.List()
	if err != nil {
		logger.Errorf("cannot read local job records: %v", err)
		t.offline = true
		return
	}

	tokens := make([]string, len(records))
	for i, record := range records {
		tokens[i] = record.AccessToken
	}

	response, err := t.api.ListJobs(ctx, tokens, t.page, t.perPage)
	if err != nil {
		logger.WarnWithFields("job list fetch failed, serving cached snapshot", map[string]interface{}{
			"error": err.Error(),
		})
		t.offline = true
		if snapshot, ok, loadErr := t.store.LoadSnapshot(); loadErr == nil && ok {
			t.jobs = snapshot
		}
		return
	}

	t.offline = false
	t.jobs = response.Jobs
	t.total = response.Total
	t.totalPages = (response.Total + t.perPage - 1) / t.perPage

	if err := t.store.SaveSnapshot(response.Jobs); err != nil {
		logger.Warnf("cannot cache job snapshot: %v", err)
	}

	t.recordTerminals()
	t.prune(records, response.Jobs)
	t.resubscribe(ctx)
}

// prune silently removes stored records the server no longer reports.
// Only runs after a successful fetch.
func (t *Tracker) prune(records []types.StoredJobRecord, jobs []types.Job) {
	reported := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		reported[job.ID] = struct{}{}
	}

	expired := make(map[string]struct{})
	for _, record := range records {
		if _, ok := reported[record.JobID]; !ok {
			expired[record.JobID] = struct{}{}
		}
	}
	if len(expired) == 0 {
		return
	}

	logger.DebugWithFields("pruning expired job records", map[string]interface{}{
		"count": len(expired),
	})
	if err := t.store.RemoveInvalid(expired); err != nil {
		logger.Errorf("cannot prune expired records: %v", err)
	}
}

// applyPatch merges one push update into the tracked list. Updates for jobs
// outside the currently tracked page are dropped; the next poll covers
// them. Returns whether the list changed.
func (t *Tracker) applyPatch(update realtime.Update) bool {
	if update.Kind == realtime.KindMalformed {
		return false
	}

	for i, existing := range t.jobs {
		if existing.ID != update.JobID {
			continue
		}

		var next types.Job
		switch update.Kind {
		case realtime.KindFull:
			next = update.Job
		case realtime.KindPartial:
			next = existing
			if err := json.Unmarshal(update.Raw, &next); err != nil {
				logger.Warnf("cannot apply partial update for job %s: %v", update.JobID, err)
				return false
			}
		}

		// A terminal status never regresses, whichever channel reported it
		if existing.Status.IsTerminal() && !next.Status.IsTerminal() {
			return false
		}

		t.jobs[i] = next
		t.recordTerminals()
		return true
	}

	logger.Debugf("dropping update for untracked job %s", update.JobID)
	return false
}

// recordTerminals extends the notified set with every tracked job now in a
// terminal state. The first successful load seeds the set without
// notifying, so reconnecting to an old session never fires alerts for jobs
// that finished before it began. After seeding, each first-observed
// transition notifies exactly once.
func (t *Tracker) recordTerminals() {
	seeding := !t.seeded
	t.seeded = true

	for _, job := range t.jobs {
		if !job.Status.IsTerminal() {
			continue
		}
		if _, seen := t.notified[job.ID]; seen {
			continue
		}
		t.notified[job.ID] = struct{}{}

		if seeding || t.notifier == nil {
			continue
		}
		switch job.Status {
		case types.JobStatusCompleted:
			t.notifier.NotifyComplete(job.Filename)
		case types.JobStatusFailed:
			t.notifier.NotifyFailed(job.Filename)
		}
	}
}

// resubscribe keeps the realtime subscription aligned with the set of
// pending/processing jobs currently tracked.
func (t *Tracker) resubscribe(ctx context.Context) {
	if t.sub == nil {
		return
	}

	active := make(map[string]struct{})
	var ids []string
	for _, job := range t.jobs {
		if job.Status.IsActive() {
			active[job.ID] = struct{}{}
			ids = append(ids, job.ID)
		}
	}
	if sameIDSet(active, t.lastActive) {
		return
	}

	sort.Strings(ids)
	if err := t.sub.Subscribe(ctx, ids); err != nil {
		logger.Warnf("cannot update realtime subscription: %v", err)
		return
	}
	t.lastActive = active
}

func sameIDSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

func (t *Tracker) record(jobID string) (types.StoredJobRecord, error) {
	records, err := t.store.List()
	if err != nil {
		return types.StoredJobRecord{}, err
	}
	for _, record := range records {
		if record.JobID == jobID {
			return record, nil
		}
	}
	return types.StoredJobRecord{}, &types.SubmissionError{Detail: "job " + jobID + " is not tracked on this device"}
}

func (t *Tracker) find(jobID string) (types.Job, bool) {
	for _, job := range t.jobs {
		if job.ID == jobID {
			return job, true
		}
	}
	return types.Job{}, false
}

func (t *Tracker) view() View {
	jobs := make([]types.Job, len(t.jobs))
	copy(jobs, t.jobs)
	return View{
		Jobs:       jobs,
		Total:      t.total,
		Page:       t.page,
		TotalPages: t.totalPages,
		Offline:    t.offline,
	}
}

// publish pushes the latest view to the channel, dropping the stale one if
// nobody consumed it yet.
func (t *Tracker) publish() {
	select {
	case <-t.views:
	default:
	}
	t.views <- t.view()
}
