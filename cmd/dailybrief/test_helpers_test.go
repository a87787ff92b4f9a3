package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"dailybrief/internal/aggregator"
	"dailybrief/internal/catalog"
	"dailybrief/internal/config"
	"dailybrief/internal/daemon"
	"dailybrief/internal/generation"
	"dailybrief/internal/session"
	"dailybrief/internal/testsupport"
	"dailybrief/internal/workflow"
)

const (
	testAPIToken   = "cli-token"
	testAdminToken = "cli-admin"
)

type emptyAggregator struct{}

func (emptyAggregator) Aggregate(_ context.Context, userID string) aggregator.Batch {
	return aggregator.Batch{UserID: userID}
}

type cliTestEnv struct {
	cfg         *config.Config
	generations *generation.Store
	catalog     *catalog.Store
	daemon      *daemon.Daemon
	configPath  string
}

// setupCLITestEnv starts a real daemon on an ephemeral port and writes a
// config file pointing the CLI at it.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedBinaries(),
		testsupport.WithAPIToken(testAPIToken),
		testsupport.WithAdminToken(testAdminToken),
	)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

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
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = d.Close()
	})

	cfg.Paths.APIBind = d.APIAddress()
	cfg.Search.APIKey = "pplx-test"
	configPath := filepath.Join(testsupport.BaseDir(cfg), "dailybrief.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:         cfg,
		generations: gens,
		catalog:     cat,
		daemon:      d,
		configPath:  configPath,
	}
}

func runCLI(t *testing.T, args []string, configPath, user string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	if user != "" {
		flags = append(flags, "--user", user)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
