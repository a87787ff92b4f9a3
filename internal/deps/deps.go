package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// Requirement is an external executable the daemon shells out to. A
// configured Command must resolve; when it is empty the Candidates are
// searched on PATH in order.
type Requirement struct {
	Name        string
	Description string
	Command     string
	Candidates  []string
	Optional    bool
}

// Status is the resolved form of a Requirement. Command holds the absolute
// path when Available.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries resolves each requirement, preserving order.
func CheckBinaries(requirements []Requirement) []Status {
	statuses := make([]Status, len(requirements))
	for i, req := range requirements {
		statuses[i] = Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		path, err := req.resolve()
		if err != nil {
			statuses[i].Detail = err.Error()
			continue
		}
		statuses[i].Command = path
		statuses[i].Available = true
	}
	return statuses
}

func (r Requirement) resolve() (string, error) {
	if configured := strings.TrimSpace(r.Command); configured != "" {
		path, err := lookPath(configured)
		if err != nil {
			return "", fmt.Errorf("binary %q not found: %w", configured, err)
		}
		return path, nil
	}
	if len(r.Candidates) == 0 {
		return "", fmt.Errorf("%s: command not configured", r.Name)
	}
	for _, candidate := range r.Candidates {
		if path, err := lookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no %s binary found on PATH (tried %s)", r.Name, strings.Join(r.Candidates, ", "))
}
