package daemon_test

import (
	"context"
	"testing"
	"time"

	"dailybrief/internal/aggregator"
	"dailybrief/internal/catalog"
	"dailybrief/internal/config"
	"dailybrief/internal/daemon"
	"dailybrief/internal/generation"
	"dailybrief/internal/session"
	"dailybrief/internal/testsupport"
	"dailybrief/internal/workflow"
)

type emptyAggregator struct{}

func (emptyAggregator) Aggregate(_ context.Context, userID string) aggregator.Batch {
	return aggregator.Batch{UserID: userID}
}

type fixture struct {
	cfg         *config.Config
	generations *generation.Store
	catalog     *catalog.Store
	daemon      *daemon.Daemon
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	gens := testsupport.MustOpenGenerationStore(t, cfg)
	cat := testsupport.MustOpenCatalog(t, cfg)
	sessions := session.NewManager(cfg)
	wf := workflow.NewManager(cfg, gens, emptyAggregator{}, sessions)
	d, err := daemon.New(cfg, daemon.Dependencies{
		Generations: gens,
		Catalog:     cat,
		Sessions:    sessions,
		Workflow:    wf,
	}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return &fixture{cfg: cfg, generations: gens, catalog: cat, daemon: d}
}

func TestDaemonStartStop(t *testing.T) {
	f := newFixture(t, testsupport.NewConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := f.daemon.Status(ctx)
	if !status.Running || !status.Workflow.Running {
		t.Fatal("expected daemon and workflow to report running")
	}
	if status.LockFilePath != f.cfg.LockPath() || status.DatabasePath != f.cfg.DatabasePath() {
		t.Fatalf("unexpected paths %#v", status)
	}

	// Second start should fail
	if err := f.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	f.daemon.Stop()
	if f.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newFixture(t, cfg)
	second := newFixture(t, cfg)
	ctx := context.Background()

	if err := first.daemon.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.daemon.Start(ctx); err == nil {
		t.Fatal("expected second daemon to be locked out")
	}
	first.daemon.Stop()
	if err := second.daemon.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
	second.daemon.Stop()
}

func TestTriggerDailySchedulesEnabledUsers(t *testing.T) {
	f := newFixture(t, testsupport.NewConfig(t))
	ctx := context.Background()
	doc := catalog.Document{Users: []catalog.UserDocument{
		{ID: "alice", DailyEnabled: true, Topics: []catalog.TopicDocument{{Topic: "fusion power"}}},
		{ID: "bob", DailyEnabled: false},
	}}
	if err := f.catalog.Import(ctx, doc); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if err := f.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.daemon.Stop()

	resp, err := f.daemon.TriggerDaily(ctx)
	if err != nil {
		t.Fatalf("TriggerDaily: %v", err)
	}
	if len(resp.Scheduled) != 1 || resp.Scheduled[0].UserID != "alice" || len(resp.Failed) != 0 {
		t.Fatalf("unexpected cron response %#v", resp)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		log, err := f.generations.GetByID(ctx, resp.Scheduled[0].ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if log.Status.Terminal() {
			if log.Status != generation.StatusFailed {
				t.Fatalf("expected empty batch to fail, got %s", log.Status)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("generation did not finish, status %s", log.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := daemon.New(testsupport.NewConfig(t), daemon.Dependencies{}, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
