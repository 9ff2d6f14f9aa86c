package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"beacon/utils/retry"
	"beacon/utils/sshutil"
)

// RemoteCommandExecutor abstracts however commands reach a remote
// machine. The vault and the preflight inspector depend only on this
// shape, never on the transport.
type RemoteCommandExecutor interface {
	Execute(ctx context.Context, machineID, command string) (sshutil.ExecResult, error)
}

// VerifyResult is the outcome of a live keychain lock-state probe.
type VerifyResult struct {
	IsUnlocked bool   `json:"is_unlocked"`
	Method     string `json:"method"`
}

// UnlockResult reports how an unlock-with-verification run ended.
type UnlockResult struct {
	Attempts int  `json:"attempts"`
	Verified bool `json:"verified"`
}

// KeychainStatus is the authoritative reconciliation view of one
// machine's vault: what is stored locally, what the remote machine
// says right now, and what the session cache believes.
type KeychainStatus struct {
	HasStoredPassword bool   `json:"has_stored_password"`
	ActuallyUnlocked  bool   `json:"actually_unlocked"`
	SessionUnlocked   bool   `json:"session_unlocked"`
	VerificationError string `json:"verification_error,omitempty"`
}

// runFunc executes a local command and captures stdout/stderr. Swapped
// out in tests.
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

// CredentialVault stores per-machine secrets in the platform secure
// store and tracks a session-scoped unlocked cache. The cache is a fast
// advisory layer; GetKeychainStatus is the authoritative reconciliation
// point that corrects it against a live probe.
type CredentialVault struct {
	serviceName string
	goos        string
	run         runFunc

	maxAttempts int
	unlockDelay time.Duration

	mu       sync.Mutex
	unlocked map[string]bool
}

// NewCredentialVault creates a vault using the host platform's secure
// store. serviceName namespaces the stored secrets.
func NewCredentialVault(serviceName string, maxAttempts int, unlockDelay time.Duration) *CredentialVault {
	return &CredentialVault{
		serviceName: serviceName,
		goos:        runtime.GOOS,
		run:         runLocal,
		maxAttempts: maxAttempts,
		unlockDelay: unlockDelay,
		unlocked:    make(map[string]bool),
	}
}

func runLocal(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Store writes a secret for a machine, overwriting any existing one.
// The delete-then-add dance is how the macOS security CLI spells an
// idempotent overwrite.
func (v *CredentialVault) Store(machineID, secret string) error {
	if strings.TrimSpace(machineID) == "" || secret == "" {
		return fmt.Errorf("%w: machine id and secret are required", ErrInvalidInput)
	}
	if v.goos != "darwin" {
		return ErrUnsupportedPlatform
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Best-effort removal; absent is fine.
	v.run(ctx, "security", "delete-generic-password", "-a", machineID, "-s", v.serviceName)

	_, stderr, err := v.run(ctx, "security", "add-generic-password", "-a", machineID, "-s", v.serviceName, "-w", secret)
	if err != nil {
		return fmt.Errorf("store secret for %s: %v (%s)", machineID, err, strings.TrimSpace(stderr))
	}
	return nil
}

// Retrieve reads the stored secret for a machine. Returns ErrNotFound
// if nothing is stored.
func (v *CredentialVault) Retrieve(machineID string) (string, error) {
	if strings.TrimSpace(machineID) == "" {
		return "", fmt.Errorf("%w: machine id is required", ErrInvalidInput)
	}
	if v.goos != "darwin" {
		return "", ErrUnsupportedPlatform
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stdout, stderr, err := v.run(ctx, "security", "find-generic-password", "-a", machineID, "-s", v.serviceName, "-w")
	if err != nil {
		if classifyKeychainOutput(false, stdout, stderr) == verdictNotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("retrieve secret for %s: %v (%s)", machineID, err, strings.TrimSpace(stderr))
	}
	return strings.TrimRight(stdout, "\n"), nil
}

// Delete removes the stored secret for a machine. Deleting an absent
// secret is not an error.
func (v *CredentialVault) Delete(machineID string) error {
	if strings.TrimSpace(machineID) == "" {
		return fmt.Errorf("%w: machine id is required", ErrInvalidInput)
	}
	if v.goos != "darwin" {
		return ErrUnsupportedPlatform
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stdout, stderr, err := v.run(ctx, "security", "delete-generic-password", "-a", machineID, "-s", v.serviceName)
	if err != nil {
		if classifyKeychainOutput(false, stdout, stderr) == verdictNotFound {
			return nil
		}
		return fmt.Errorf("delete secret for %s: %v (%s)", machineID, err, strings.TrimSpace(stderr))
	}
	return nil
}

// Has reports whether a secret is stored for a machine. Best-effort: any
// underlying error reads as false rather than propagating.
func (v *CredentialVault) Has(machineID string) bool {
	_, err := v.Retrieve(machineID)
	return err == nil
}

// IsUnlockedInSession reports the session cache's belief about a
// machine's keychain. Pure cache read, no I/O.
func (v *CredentialVault) IsUnlockedInSession(machineID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.unlocked[machineID]
}

// MarkUnlocked records that this process unlocked the machine's keychain.
func (v *CredentialVault) MarkUnlocked(machineID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.unlocked[machineID] = true
}

// MarkLocked records that the machine's keychain is locked.
func (v *CredentialVault) MarkLocked(machineID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.unlocked, machineID)
}

// ClearAllSessionState forgets every cached unlock. Used for tests and
// for manual "forget everything" resets.
func (v *CredentialVault) ClearAllSessionState() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.unlocked = make(map[string]bool)
}

// VerifyUnlocked asks the remote machine directly whether its keychain
// is unlocked, via a read-only show-keychain-info probe. A failure of
// the remote call itself surfaces as ErrCommandFailed, distinct from a
// successful call with a "locked" answer.
func (v *CredentialVault) VerifyUnlocked(ctx context.Context, machineID string, executor RemoteCommandExecutor) (VerifyResult, error) {
	if strings.TrimSpace(machineID) == "" {
		return VerifyResult{}, fmt.Errorf("%w: machine id is required", ErrInvalidInput)
	}

	res, err := executor.Execute(ctx, machineID, "security show-keychain-info")
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: %v", ErrCommandFailed, err)
	}

	switch classifyKeychainOutput(res.Success, res.Stdout, res.Stderr) {
	case verdictUnlocked:
		return VerifyResult{IsUnlocked: true, Method: "show-keychain-info"}, nil
	case verdictLocked:
		return VerifyResult{IsUnlocked: false, Method: "show-keychain-info"}, nil
	case verdictNotFound:
		return VerifyResult{}, fmt.Errorf("%w: keychain not found on %s", ErrCommandFailed, machineID)
	default:
		return VerifyResult{}, fmt.Errorf("%w: unrecognized response: %s", ErrCommandFailed, strings.TrimSpace(res.Stderr))
	}
}

// UnlockWithVerification submits the stored secret to the remote
// machine, then confirms the keychain actually unlocked, retrying a
// bounded number of times. A session-cache hit short-circuits with
// zero attempts: hot paths stay cheap, and correctness is re-established
// lazily by GetKeychainStatus. A wrong password fails immediately; it
// will not become right on retry.
func (v *CredentialVault) UnlockWithVerification(ctx context.Context, machineID, name string, executor RemoteCommandExecutor) (UnlockResult, error) {
	if strings.TrimSpace(machineID) == "" {
		return UnlockResult{}, fmt.Errorf("%w: machine id is required", ErrInvalidInput)
	}

	if v.IsUnlockedInSession(machineID) {
		return UnlockResult{Attempts: 0, Verified: true}, nil
	}

	secret, err := v.Retrieve(machineID)
	if errors.Is(err, ErrNotFound) {
		return UnlockResult{}, fmt.Errorf("%w for %s", ErrNoStoredPassword, name)
	}
	if err != nil {
		return UnlockResult{}, err
	}

	log.Printf("Unlocking keychain on %s...", name)

	unlockCmd := "security unlock-keychain -p " + sshutil.ShellQuote(secret)
	attempts, lastErr := retry.Do(ctx, retry.Config{
		MaxAttempts: v.maxAttempts,
		Delay:       v.unlockDelay,
		IsRetryable: func(err error) bool {
			return !errors.Is(err, ErrAuthenticationFailed)
		},
	}, func(ctx context.Context) error {
		res, err := executor.Execute(ctx, machineID, unlockCmd)
		if err == nil && !res.Success {
			if classifyKeychainOutput(res.Success, res.Stdout, res.Stderr) == verdictAuthFailed {
				return fmt.Errorf("%w: stored password for %s rejected", ErrAuthenticationFailed, name)
			}
		}

		// Whatever the submit reported, trust only the probe.
		verify, verr := v.VerifyUnlocked(ctx, machineID, executor)
		if verr != nil {
			return verr
		}
		if !verify.IsUnlocked {
			return fmt.Errorf("keychain on %s still locked after unlock attempt", name)
		}
		return nil
	})

	if lastErr != nil {
		return UnlockResult{Attempts: attempts, Verified: false}, lastErr
	}

	v.MarkUnlocked(machineID)
	log.Printf("Keychain on %s unlocked and verified (attempts: %d)", name, attempts)
	return UnlockResult{Attempts: attempts, Verified: true}, nil
}

// GetKeychainStatus reports the full vault picture for a machine. It
// always performs a live verification and corrects the session cache to
// match reality, healing stale "unlocked" entries after a machine's
// keychain re-locks itself without any lock event being observed.
func (v *CredentialVault) GetKeychainStatus(ctx context.Context, machineID string, executor RemoteCommandExecutor) KeychainStatus {
	status := KeychainStatus{
		HasStoredPassword: v.Has(machineID),
	}

	verify, err := v.VerifyUnlocked(ctx, machineID, executor)
	if err != nil {
		status.VerificationError = err.Error()
		status.SessionUnlocked = v.IsUnlockedInSession(machineID)
		return status
	}

	status.ActuallyUnlocked = verify.IsUnlocked
	if verify.IsUnlocked {
		v.MarkUnlocked(machineID)
	} else {
		v.MarkLocked(machineID)
	}
	status.SessionUnlocked = v.IsUnlockedInSession(machineID)
	return status
}
