package service

import (
	"context"
	"fmt"
	"strings"

	"beacon/core/models"
)

// Preflight check names, in pipeline order. Order and skip semantics
// are load-bearing: nothing after a failed connectivity check can
// produce a meaningful answer.
const (
	CheckMachineExists   = "machine_exists"
	CheckSSHConnectivity = "ssh_connectivity"
	CheckRequiredTools   = "required_tools"
	CheckAgentInstalled  = "agent_installed"
	CheckVaultState      = "credential_vault_state"
	CheckHooksInstalled  = "hooks_installed"
	CheckTunnel          = "tunnel_connectivity"
)

// vaultInspector is the slice of the credential vault preflight needs:
// a live lock-state probe and a stored-secret presence check.
type vaultInspector interface {
	VerifyUnlocked(ctx context.Context, machineID string, executor RemoteCommandExecutor) (VerifyResult, error)
	Has(machineID string) bool
}

// tunnelInspector is the slice of the tunnel monitor preflight needs.
type tunnelInspector interface {
	GetTunnelStatus(machineID string) (models.TunnelStatus, bool)
	ProbeTunnel(ctx context.Context, machineID string) error
}

// PreflightInspector runs the ordered battery of readiness checks
// against one remote machine. It reads its collaborators; the only
// mutation it ever triggers is an unlock, and that happens elsewhere.
type PreflightInspector struct {
	machines machineStore
	executor RemoteCommandExecutor
	vault    vaultInspector
	tunnels  tunnelInspector

	requiredTools []string
	requiredHooks []string
	agentBinary   string
}

// NewPreflightInspector creates an inspector. The tool list, hook list,
// and agent binary are configuration, not hard-coded policy.
func NewPreflightInspector(machines machineStore, executor RemoteCommandExecutor, vault vaultInspector, tunnels tunnelInspector, requiredTools, requiredHooks []string, agentBinary string) *PreflightInspector {
	return &PreflightInspector{
		machines:      machines,
		executor:      executor,
		vault:         vault,
		tunnels:       tunnels,
		requiredTools: requiredTools,
		requiredHooks: requiredHooks,
		agentBinary:   agentBinary,
	}
}

// RunAllChecks produces the full diagnostic report for one machine.
func (p *PreflightInspector) RunAllChecks(ctx context.Context, machineID string) *models.PreflightReport {
	checks := make([]models.PreflightCheckResult, 0, 7)

	machine, err := p.machines.GetByID(machineID)
	if err != nil {
		checks = append(checks, models.PreflightCheckResult{
			Name:    CheckMachineExists,
			Status:  models.CheckFail,
			Message: "Machine not found",
		})
		// Nothing else to check without a machine.
		for _, name := range []string{CheckSSHConnectivity, CheckRequiredTools, CheckAgentInstalled, CheckVaultState, CheckHooksInstalled, CheckTunnel} {
			checks = append(checks, skipped(name, "Skipped: machine not found"))
		}
		return aggregate(machineID, checks)
	}
	checks = append(checks, models.PreflightCheckResult{
		Name:    CheckMachineExists,
		Status:  models.CheckPass,
		Message: fmt.Sprintf("Machine %s (%s)", machine.Name, machine.Hostname),
	})

	conn := p.checkConnectivity(ctx, machineID)
	checks = append(checks, conn)
	if conn.Status == models.CheckFail {
		for _, name := range []string{CheckRequiredTools, CheckAgentInstalled, CheckVaultState, CheckHooksInstalled, CheckTunnel} {
			checks = append(checks, skipped(name, "Skipped: no SSH connection"))
		}
		return aggregate(machineID, checks)
	}

	// Once connectivity is established the remaining checks are
	// independent: one failing does not skip the others.
	checks = append(checks,
		p.checkRequiredTools(ctx, machineID),
		p.checkAgentInstalled(ctx, machineID),
		p.checkVaultState(ctx, machineID),
		p.checkHooksInstalled(ctx, machineID),
		p.checkTunnel(ctx, machineID),
	)
	return aggregate(machineID, checks)
}

// QuickCheck is the fast connectivity+tools+agent subset for UI paths
// that need a cheap yes/no instead of the full report.
func (p *PreflightInspector) QuickCheck(ctx context.Context, machineID string) models.QuickCheckResult {
	result := models.QuickCheckResult{Ready: true, Errors: []string{}}

	if _, err := p.machines.GetByID(machineID); err != nil {
		result.Ready = false
		result.Errors = append(result.Errors, "Machine not found")
		return result
	}

	conn := p.checkConnectivity(ctx, machineID)
	if conn.Status == models.CheckFail {
		result.Ready = false
		result.Errors = append(result.Errors, conn.Message)
		return result
	}

	if tools := p.checkRequiredTools(ctx, machineID); tools.Status == models.CheckFail {
		result.Ready = false
		result.Errors = append(result.Errors, tools.Message)
	}
	if agent := p.checkAgentInstalled(ctx, machineID); agent.Status == models.CheckFail {
		result.Ready = false
		result.Errors = append(result.Errors, agent.Message)
	}
	return result
}

func (p *PreflightInspector) checkConnectivity(ctx context.Context, machineID string) models.PreflightCheckResult {
	res, err := p.executor.Execute(ctx, machineID, "echo beacon-ok")
	if err != nil {
		return models.PreflightCheckResult{
			Name:    CheckSSHConnectivity,
			Status:  models.CheckFail,
			Message: fmt.Sprintf("SSH connection failed: %v", err),
		}
	}
	if !res.Success || !strings.Contains(res.Stdout, "beacon-ok") {
		return models.PreflightCheckResult{
			Name:    CheckSSHConnectivity,
			Status:  models.CheckFail,
			Message: fmt.Sprintf("SSH connection failed: %s", strings.TrimSpace(res.Stderr)),
		}
	}
	return models.PreflightCheckResult{
		Name:    CheckSSHConnectivity,
		Status:  models.CheckPass,
		Message: "Connected",
	}
}

func (p *PreflightInspector) checkRequiredTools(ctx context.Context, machineID string) models.PreflightCheckResult {
	var missing []string
	for _, tool := range p.requiredTools {
		res, err := p.executor.Execute(ctx, machineID, "command -v "+tool)
		if err != nil {
			return models.PreflightCheckResult{
				Name:    CheckRequiredTools,
				Status:  models.CheckFail,
				Message: fmt.Sprintf("Tool probe failed: %v", err),
			}
		}
		if !res.Success || strings.TrimSpace(res.Stdout) == "" {
			missing = append(missing, tool)
		}
	}

	if len(missing) > 0 {
		return models.PreflightCheckResult{
			Name:    CheckRequiredTools,
			Status:  models.CheckFail,
			Message: "Missing tools: " + strings.Join(missing, ", "),
		}
	}
	return models.PreflightCheckResult{
		Name:    CheckRequiredTools,
		Status:  models.CheckPass,
		Message: fmt.Sprintf("All %d required tools found", len(p.requiredTools)),
	}
}

func (p *PreflightInspector) checkAgentInstalled(ctx context.Context, machineID string) models.PreflightCheckResult {
	res, err := p.executor.Execute(ctx, machineID, p.agentBinary+" --version")
	if err != nil {
		return models.PreflightCheckResult{
			Name:    CheckAgentInstalled,
			Status:  models.CheckFail,
			Message: fmt.Sprintf("Agent probe failed: %v", err),
		}
	}
	if !res.Success {
		return models.PreflightCheckResult{
			Name:    CheckAgentInstalled,
			Status:  models.CheckFail,
			Message: fmt.Sprintf("Agent %q not found", p.agentBinary),
		}
	}

	version := strings.TrimSpace(res.Stdout)
	if idx := strings.IndexByte(version, '\n'); idx >= 0 {
		version = version[:idx]
	}
	return models.PreflightCheckResult{
		Name:    CheckAgentInstalled,
		Status:  models.CheckPass,
		Message: fmt.Sprintf("Agent installed: %s", version),
	}
}

func (p *PreflightInspector) checkVaultState(ctx context.Context, machineID string) models.PreflightCheckResult {
	res, err := p.executor.Execute(ctx, machineID, "uname -s")
	if err != nil {
		return models.PreflightCheckResult{
			Name:    CheckVaultState,
			Status:  models.CheckFail,
			Message: fmt.Sprintf("Platform probe failed: %v", err),
		}
	}
	if !strings.Contains(res.Stdout, "Darwin") {
		return models.PreflightCheckResult{
			Name:    CheckVaultState,
			Status:  models.CheckSkip,
			Message: "Not macOS",
		}
	}

	verify, err := p.vault.VerifyUnlocked(ctx, machineID, p.executor)
	if err != nil {
		return models.PreflightCheckResult{
			Name:    CheckVaultState,
			Status:  models.CheckFail,
			Message: fmt.Sprintf("Keychain probe failed: %v", err),
		}
	}
	if verify.IsUnlocked {
		return models.PreflightCheckResult{
			Name:    CheckVaultState,
			Status:  models.CheckPass,
			Message: "Keychain unlocked",
		}
	}
	if p.vault.Has(machineID) {
		return models.PreflightCheckResult{
			Name:    CheckVaultState,
			Status:  models.CheckWarn,
			Message: "Keychain locked, but can auto-unlock",
		}
	}
	return models.PreflightCheckResult{
		Name:    CheckVaultState,
		Status:  models.CheckFail,
		Message: "Keychain locked, no password stored",
	}
}

func (p *PreflightInspector) checkHooksInstalled(ctx context.Context, machineID string) models.PreflightCheckResult {
	cmd := fmt.Sprintf("cat ~/.config/%s/hooks.json 2>/dev/null || true", p.agentBinary)
	res, err := p.executor.Execute(ctx, machineID, cmd)
	if err != nil {
		return models.PreflightCheckResult{
			Name:    CheckHooksInstalled,
			Status:  models.CheckWarn,
			Message: fmt.Sprintf("Unable to query hooks: %v", err),
		}
	}

	installed := 0
	for _, hook := range p.requiredHooks {
		if strings.Contains(res.Stdout, hook) {
			installed++
		}
	}

	total := len(p.requiredHooks)
	switch {
	case installed == total:
		return models.PreflightCheckResult{
			Name:    CheckHooksInstalled,
			Status:  models.CheckPass,
			Message: fmt.Sprintf("All %d hooks installed", total),
		}
	case installed == 0:
		return models.PreflightCheckResult{
			Name:    CheckHooksInstalled,
			Status:  models.CheckWarn,
			Message: "No hooks installed",
		}
	default:
		// Partial is never a hard failure; the system still functions,
		// degraded.
		return models.PreflightCheckResult{
			Name:    CheckHooksInstalled,
			Status:  models.CheckWarn,
			Message: fmt.Sprintf("Partial: %d/%d", installed, total),
		}
	}
}

func (p *PreflightInspector) checkTunnel(ctx context.Context, machineID string) models.PreflightCheckResult {
	st, ok := p.tunnels.GetTunnelStatus(machineID)
	if !ok {
		// Not fatal: a tunnel can be created later.
		return models.PreflightCheckResult{
			Name:    CheckTunnel,
			Status:  models.CheckWarn,
			Message: "No reverse tunnel active",
		}
	}

	if err := p.tunnels.ProbeTunnel(ctx, machineID); err != nil {
		return models.PreflightCheckResult{
			Name:    CheckTunnel,
			Status:  models.CheckFail,
			Message: err.Error(),
		}
	}
	return models.PreflightCheckResult{
		Name:    CheckTunnel,
		Status:  models.CheckPass,
		Message: fmt.Sprintf("Tunnel responding on remote port %d", st.RemotePort),
	}
}

func skipped(name, message string) models.PreflightCheckResult {
	return models.PreflightCheckResult{Name: name, Status: models.CheckSkip, Message: message}
}

// aggregate derives the overall verdict and summary tally. Warnings and
// skips never block readiness; any single fail does.
func aggregate(machineID string, checks []models.PreflightCheckResult) *models.PreflightReport {
	report := &models.PreflightReport{
		MachineID: machineID,
		Overall:   models.MachineReady,
		Checks:    checks,
	}
	for _, check := range checks {
		switch check.Status {
		case models.CheckPass:
			report.Summary.Passed++
		case models.CheckFail:
			report.Summary.Failed++
			report.Overall = models.MachineNotReady
		case models.CheckWarn:
			report.Summary.Warnings++
		case models.CheckSkip:
			report.Summary.Skipped++
		}
	}
	return report
}
