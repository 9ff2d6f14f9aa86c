package models

// Preflight check statuses.
const (
	CheckPass = "pass"
	CheckFail = "fail"
	CheckWarn = "warn"
	CheckSkip = "skip"
)

// Preflight overall verdicts.
const (
	MachineReady    = "ready"
	MachineNotReady = "not_ready"
)

// PreflightCheckResult is the outcome of one named readiness check.
// Produced fresh on every inspection run, never persisted.
type PreflightCheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // pass, fail, warn, skip
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// PreflightSummary tallies check outcomes for one inspection run.
type PreflightSummary struct {
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Warnings int `json:"warnings"`
	Skipped  int `json:"skipped"`
}

// PreflightReport aggregates a full inspection run over one machine.
type PreflightReport struct {
	MachineID string                 `json:"machine_id"`
	Overall   string                 `json:"overall"` // ready, not_ready
	Checks    []PreflightCheckResult `json:"checks"`
	Summary   PreflightSummary       `json:"summary"`
}

// QuickCheckResult is the fast connectivity+tools+agent verdict for UI
// paths that need a cheap yes/no instead of the full report.
type QuickCheckResult struct {
	Ready  bool     `json:"ready"`
	Errors []string `json:"errors"`
}
