// Package sshutil provides remote command execution over the system ssh binary.
package sshutil

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"beacon/core/models"
)

// ExecResult is the outcome of one remote command. Success reflects the
// remote exit code; a false Success with a nil error means the command
// ran and failed, which is distinct from the transport failing.
type ExecResult struct {
	Success bool
	Stdout  string
	Stderr  string
}

// MachineResolver looks up the SSH target for a machine id.
type MachineResolver interface {
	GetByID(id string) (*models.RemoteMachine, error)
}

// Executor runs commands on remote machines through ssh subprocesses.
type Executor struct {
	machines MachineResolver
	timeout  time.Duration
}

// NewExecutor creates an executor. timeout bounds each remote call,
// connection setup included.
func NewExecutor(machines MachineResolver, timeout time.Duration) *Executor {
	return &Executor{machines: machines, timeout: timeout}
}

// Execute runs command on the machine identified by machineID and
// captures its output. The error return covers lookup and transport
// failures only; a remote non-zero exit is reported via ExecResult.
func (e *Executor) Execute(ctx context.Context, machineID, command string) (ExecResult, error) {
	machine, err := e.machines.GetByID(machineID)
	if err != nil {
		return ExecResult{}, fmt.Errorf("resolve machine %s: %w", machineID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := []string{
		"-o", "BatchMode=yes",
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", fmt.Sprintf("ConnectTimeout=%d", int(e.timeout.Seconds())),
		// Keep connections stable across NATs and stricter SSH servers.
		"-o", "ServerAliveInterval=10",
		"-o", "ServerAliveCountMax=3",
	}
	if machine.Port != 0 && machine.Port != 22 {
		args = append(args, "-p", strconv.Itoa(machine.Port))
	}
	args = append(args, machine.Addr(), command)

	cmd := exec.CommandContext(ctx, "ssh", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	result := ExecResult{
		Success: err == nil,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return result, fmt.Errorf("ssh to %s timed out after %v", machine.Addr(), e.timeout)
		}
		if _, ok := err.(*exec.ExitError); ok {
			// Remote command ran and exited non-zero; not a transport error.
			return result, nil
		}
		return result, fmt.Errorf("ssh to %s: %w", machine.Addr(), err)
	}
	return result, nil
}

// ShellQuote wraps s in single quotes for safe interpolation into a
// remote shell command.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
