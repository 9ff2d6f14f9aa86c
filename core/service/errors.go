// Package service provides the operational health and reconciliation
// core for Beacon: activity tracking, status reconciliation, credential
// vault access, readiness inspection, and tunnel health monitoring.
package service

import "errors"

// Error taxonomy shared by the services. "Expected negative" outcomes
// (a locked vault, a missing secret) are returned as typed results, not
// surfaced through panics.
var (
	// ErrNotFound marks an absent entity or secret. Expected, not exceptional.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedPlatform marks a feature gated to one OS.
	ErrUnsupportedPlatform = errors.New("platform secure store not available on this OS")

	// ErrInvalidInput marks a caller programming error (empty ids or secrets).
	ErrInvalidInput = errors.New("invalid input")

	// ErrCommandFailed marks a failure in the remote execution layer,
	// distinct from a successful call with a negative answer.
	ErrCommandFailed = errors.New("remote command failed")

	// ErrAuthenticationFailed marks a wrong secret. Never retried.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNoStoredPassword marks an unlock attempt with no stored secret.
	ErrNoStoredPassword = errors.New("no stored password")

	// ErrReconnectInProgress guards against overlapping tunnel reconnects.
	ErrReconnectInProgress = errors.New("reconnect already in progress")

	// ErrNoTunnel marks a tunnel operation on an untracked machine.
	ErrNoTunnel = errors.New("no tunnel found")
)
