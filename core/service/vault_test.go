package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"beacon/utils/sshutil"
)

// scriptedExecutor answers remote commands by substring match and
// counts how many times each pattern was hit.
type scriptedExecutor struct {
	responses map[string]sshutil.ExecResult
	errs      map[string]error
	calls     map[string]int
}

func newScriptedExecutor() *scriptedExecutor {
	return &scriptedExecutor{
		responses: make(map[string]sshutil.ExecResult),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

func (e *scriptedExecutor) Execute(ctx context.Context, machineID, command string) (sshutil.ExecResult, error) {
	for pattern, res := range e.responses {
		if strings.Contains(command, pattern) {
			e.calls[pattern]++
			return res, e.errs[pattern]
		}
	}
	for pattern, err := range e.errs {
		if strings.Contains(command, pattern) {
			e.calls[pattern]++
			return sshutil.ExecResult{}, err
		}
	}
	return sshutil.ExecResult{}, fmt.Errorf("unscripted command: %s", command)
}

func newTestVault() *CredentialVault {
	v := NewCredentialVault("beacon-test", 3, 0)
	v.goos = "darwin"
	return v
}

// withSecret makes local keychain reads return a stored secret.
func withSecret(v *CredentialVault, secret string) {
	v.run = func(ctx context.Context, name string, args ...string) (string, string, error) {
		if len(args) > 0 && args[0] == "find-generic-password" {
			return secret + "\n", "", nil
		}
		return "", "", nil
	}
}

// withoutSecret makes local keychain reads report no stored item.
func withoutSecret(v *CredentialVault) {
	v.run = func(ctx context.Context, name string, args ...string) (string, string, error) {
		return "", "The specified item could not be found in the keychain.", errors.New("exit status 44")
	}
}

func TestUnlockSessionCacheShortCircuits(t *testing.T) {
	v := newTestVault()
	withSecret(v, "hunter2")
	v.MarkUnlocked("m1")

	exec := newScriptedExecutor()
	result, err := v.UnlockWithVerification(context.Background(), "m1", "studio", exec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Attempts != 0 || !result.Verified {
		t.Fatalf("result = %+v, want 0 attempts and verified", result)
	}
	if len(exec.calls) != 0 {
		t.Fatalf("cache hit should issue no remote commands, got %v", exec.calls)
	}
}

func TestUnlockWithoutStoredPassword(t *testing.T) {
	v := newTestVault()
	withoutSecret(v)

	_, err := v.UnlockWithVerification(context.Background(), "m1", "studio", newScriptedExecutor())
	if !errors.Is(err, ErrNoStoredPassword) {
		t.Fatalf("err = %v, want ErrNoStoredPassword", err)
	}
}

func TestUnlockWrongPasswordFailsWithoutRetry(t *testing.T) {
	v := newTestVault()
	withSecret(v, "wrong")

	exec := newScriptedExecutor()
	exec.responses["unlock-keychain"] = sshutil.ExecResult{
		Success: false,
		Stderr:  "security: SecKeychainUnlock: The user name or passphrase you entered is not correct.",
	}

	result, err := v.UnlockWithVerification(context.Background(), "m1", "studio", exec)
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("err = %v, want ErrAuthenticationFailed", err)
	}
	if result.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (a wrong password never becomes right)", result.Attempts)
	}
	if result.Verified {
		t.Fatalf("verified should be false")
	}
	if v.IsUnlockedInSession("m1") {
		t.Fatalf("failed unlock must not mark the session cache")
	}
}

func TestUnlockExhaustsAttemptsWhenNeverVerified(t *testing.T) {
	v := newTestVault()
	withSecret(v, "hunter2")

	exec := newScriptedExecutor()
	exec.responses["unlock-keychain"] = sshutil.ExecResult{Success: true}
	exec.responses["show-keychain-info"] = sshutil.ExecResult{
		Success: false,
		Stderr:  "security: SecKeychainCopySettings: User interaction is not allowed.",
	}

	result, err := v.UnlockWithVerification(context.Background(), "m1", "studio", exec)
	if err == nil {
		t.Fatalf("expected error when keychain never verifies")
	}
	if result.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", result.Attempts)
	}
	if exec.calls["unlock-keychain"] != 3 {
		t.Fatalf("unlock submissions = %d, want 3", exec.calls["unlock-keychain"])
	}
	if v.IsUnlockedInSession("m1") {
		t.Fatalf("unverified unlock must not mark the session cache")
	}
}

func TestUnlockSuccessMarksSession(t *testing.T) {
	v := newTestVault()
	withSecret(v, "hunter2")

	exec := newScriptedExecutor()
	exec.responses["unlock-keychain"] = sshutil.ExecResult{Success: true}
	exec.responses["show-keychain-info"] = sshutil.ExecResult{Success: true}

	result, err := v.UnlockWithVerification(context.Background(), "m1", "studio", exec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Attempts != 1 || !result.Verified {
		t.Fatalf("result = %+v, want 1 attempt and verified", result)
	}
	if !v.IsUnlockedInSession("m1") {
		t.Fatalf("verified unlock should mark the session cache")
	}
}

func TestVerifyUnlockedDistinguishesTransportFailure(t *testing.T) {
	v := newTestVault()

	exec := newScriptedExecutor()
	exec.errs["show-keychain-info"] = errors.New("ssh: connection refused")

	_, err := v.VerifyUnlocked(context.Background(), "m1", exec)
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("err = %v, want ErrCommandFailed", err)
	}
}

func TestGetKeychainStatusHealsStaleUnlockedCache(t *testing.T) {
	v := newTestVault()
	withSecret(v, "hunter2")
	v.MarkUnlocked("m1") // stale: the machine re-locked behind our back

	exec := newScriptedExecutor()
	exec.responses["show-keychain-info"] = sshutil.ExecResult{
		Success: false,
		Stderr:  "User interaction is not allowed.",
	}

	status := v.GetKeychainStatus(context.Background(), "m1", exec)
	if status.ActuallyUnlocked {
		t.Fatalf("ActuallyUnlocked = true, want false")
	}
	if status.SessionUnlocked {
		t.Fatalf("SessionUnlocked should report the corrected cache")
	}
	if !status.HasStoredPassword {
		t.Fatalf("HasStoredPassword = false, want true")
	}
	if v.IsUnlockedInSession("m1") {
		t.Fatalf("stale cache entry should be healed to locked")
	}
}

func TestGetKeychainStatusAdoptsExternalUnlock(t *testing.T) {
	v := newTestVault()
	withoutSecret(v)

	exec := newScriptedExecutor()
	exec.responses["show-keychain-info"] = sshutil.ExecResult{Success: true}

	status := v.GetKeychainStatus(context.Background(), "m1", exec)
	if !status.ActuallyUnlocked || !status.SessionUnlocked {
		t.Fatalf("status = %+v, want unlocked adopted into cache", status)
	}
	if !v.IsUnlockedInSession("m1") {
		t.Fatalf("externally unlocked keychain should be cached as unlocked")
	}
}

func TestGetKeychainStatusKeepsCacheOnVerificationError(t *testing.T) {
	v := newTestVault()
	withSecret(v, "hunter2")
	v.MarkUnlocked("m1")

	exec := newScriptedExecutor()
	exec.errs["show-keychain-info"] = errors.New("ssh: connection refused")

	status := v.GetKeychainStatus(context.Background(), "m1", exec)
	if status.VerificationError == "" {
		t.Fatalf("expected verification error to be reported")
	}
	if !status.SessionUnlocked {
		t.Fatalf("unverifiable probe must not clobber the cache")
	}
	if !v.IsUnlockedInSession("m1") {
		t.Fatalf("cache entry dropped on transport failure")
	}
}

func TestDeleteMissingSecretIsIdempotent(t *testing.T) {
	v := newTestVault()
	withoutSecret(v)

	if err := v.Delete("m1"); err != nil {
		t.Fatalf("deleting an absent secret should succeed, got %v", err)
	}
}

func TestVaultRejectsUnsupportedPlatform(t *testing.T) {
	v := NewCredentialVault("beacon-test", 3, 0)
	v.goos = "linux"

	if err := v.Store("m1", "secret"); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("Store err = %v, want ErrUnsupportedPlatform", err)
	}
	if _, err := v.Retrieve("m1"); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("Retrieve err = %v, want ErrUnsupportedPlatform", err)
	}
	if err := v.Delete("m1"); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("Delete err = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestVaultRejectsEmptyInput(t *testing.T) {
	v := newTestVault()

	if err := v.Store("", "secret"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Store err = %v, want ErrInvalidInput", err)
	}
	if err := v.Store("m1", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Store with empty secret err = %v, want ErrInvalidInput", err)
	}
	if _, err := v.Retrieve("  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Retrieve err = %v, want ErrInvalidInput", err)
	}
}

func TestSessionCacheLifecycle(t *testing.T) {
	v := newTestVault()

	if v.IsUnlockedInSession("m1") {
		t.Fatalf("fresh vault should report locked")
	}
	v.MarkUnlocked("m1")
	v.MarkUnlocked("m2")
	if !v.IsUnlockedInSession("m1") || !v.IsUnlockedInSession("m2") {
		t.Fatalf("MarkUnlocked not reflected")
	}
	v.MarkLocked("m1")
	if v.IsUnlockedInSession("m1") {
		t.Fatalf("MarkLocked not reflected")
	}
	v.ClearAllSessionState()
	if v.IsUnlockedInSession("m2") {
		t.Fatalf("ClearAllSessionState not reflected")
	}
}
