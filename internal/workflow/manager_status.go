package workflow

import (
	"context"
	"sort"

	"dailybrief/internal/generation"
	"dailybrief/internal/logging"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool
	ActiveRuns []string
	LastError  string
	LastRun    *generation.Log
	Counts     map[generation.Status]int
	RunLogDir  string
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastRun := m.lastRun
	active := make([]string, 0, len(m.active))
	for id := range m.active {
		active = append(active, id)
	}
	m.mu.RUnlock()
	sort.Strings(active)

	counts, err := m.store.CountByStatus(ctx)
	if err != nil {
		logging.WarnWithContext(m.logger, "failed to read generation counts", "status_counts_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status output omits generation counts"),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
	}

	summary := StatusSummary{
		Running:    running,
		ActiveRuns: active,
		Counts:     counts,
		RunLogDir:  m.runLogs.Dir(),
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastRun != nil {
		copy := *lastRun
		summary.LastRun = &copy
	}
	return summary
}

func (m *Manager) setLastRun(log *generation.Log, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = err
	if log != nil {
		copy := *log
		m.lastRun = &copy
	}
}
