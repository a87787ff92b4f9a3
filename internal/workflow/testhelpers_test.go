package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"dailybrief/internal/aggregator"
	"dailybrief/internal/catalog"
	"dailybrief/internal/config"
	"dailybrief/internal/generation"
	"dailybrief/internal/notebook"
	"dailybrief/internal/notifications"
	"dailybrief/internal/sources"
	"dailybrief/internal/testsupport"
	"dailybrief/internal/workflow"
)

type stubAggregator struct {
	batch   aggregator.Batch
	observe func(ctx context.Context)
	calls   int
	mu      sync.Mutex
}

func (s *stubAggregator) Aggregate(ctx context.Context, userID string) aggregator.Batch {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.observe != nil {
		s.observe(ctx)
	}
	batch := s.batch
	batch.UserID = userID
	return batch
}

func feedBatch(titles ...string) aggregator.Batch {
	entries := make([]sources.Entry, len(titles))
	for i, title := range titles {
		entries[i] = sources.Entry{Title: title, Summary: "summary of " + title}
	}
	return aggregator.Batch{Feeds: []sources.FeedResult{{
		Source:  catalog.FeedSource{URL: "https://feed.example/rss", Name: "Example"},
		Entries: entries,
	}}}
}

// fakeRemote completes every source immediately; audio behavior is scripted.
type fakeRemote struct {
	mu          sync.Mutex
	sources     []string
	format      notebook.Format
	instr       string
	audio       notebook.AudioStatus
	onGenerate  func()
	closeCalls  int
	createCalls int
}

func (f *fakeRemote) CreateNotebook(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	return "nb-42", nil
}

func (f *fakeRemote) AddTextSource(_ context.Context, _, title, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, title)
	return "src-" + title, nil
}

func (f *fakeRemote) AddURLSource(_ context.Context, _, url string) (string, error) {
	return "src-" + url, nil
}

func (f *fakeRemote) SourceStates(_ context.Context, _ string, ids []string) (map[string]notebook.SourceState, error) {
	out := make(map[string]notebook.SourceState, len(ids))
	for _, id := range ids {
		out[id] = notebook.SourceReady
	}
	return out, nil
}

func (f *fakeRemote) GenerateAudio(_ context.Context, _, instructions string, format notebook.Format) (string, error) {
	f.mu.Lock()
	f.format = format
	f.instr = instructions
	hook := f.onGenerate
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return "task-1", nil
}

func (f *fakeRemote) AudioStatus(context.Context, string, string) (notebook.AudioStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audio, nil
}

func (f *fakeRemote) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *fakeRemote) closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

type stubSessions struct {
	remote *fakeRemote
	err    error
}

func (s *stubSessions) GetClient(context.Context, string) (*notebook.Client, error) {
	if s.err != nil {
		return nil, s.err
	}
	return notebook.NewClient(s.remote, notebook.WithPollInterval(5*time.Millisecond)), nil
}

type stubPreferences struct {
	settings catalog.Settings
}

func (s stubPreferences) Settings(context.Context, string) (catalog.Settings, error) {
	return s.settings, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	last   notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.last = payload
	return nil
}

func (r *recordingNotifier) snapshot() ([]notifications.Event, notifications.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Event(nil), r.events...), r.last
}

type harness struct {
	cfg      *config.Config
	store    *generation.Store
	agg      *stubAggregator
	remote   *fakeRemote
	sessions *stubSessions
	notifier *recordingNotifier
	mgr      *workflow.Manager
}

func newHarness(t *testing.T, opts ...workflow.Option) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	h := &harness{
		cfg:      cfg,
		store:    testsupport.MustOpenGenerationStore(t, cfg),
		agg:      &stubAggregator{batch: feedBatch("One", "Two", "Three")},
		remote:   &fakeRemote{audio: notebook.AudioStatus{State: notebook.AudioCompleted, URL: "https://audio.example/brief.mp3"}},
		notifier: &recordingNotifier{},
	}
	h.sessions = &stubSessions{remote: h.remote}
	all := append([]workflow.Option{workflow.WithNotifier(h.notifier)}, opts...)
	h.mgr = workflow.NewManager(cfg, h.store, h.agg, h.sessions, all...)
	return h
}

func waitForTerminal(t *testing.T, store *generation.Store, id string, timeout time.Duration) *generation.Log {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		log, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if log != nil && log.Status.Terminal() {
			return log
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("generation %s did not finish within %s", id, timeout)
	return nil
}
