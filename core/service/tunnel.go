package service

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"beacon/core/models"
)

// machineStore is the slice of the persistence layer that machine-level
// services need.
type machineStore interface {
	GetByID(id string) (*models.RemoteMachine, error)
}

// instanceCounter reports how many instances a machine hosts.
type instanceCounter interface {
	CountByMachine(machineID string) (int, error)
}

// probeFunc checks whether a tracked tunnel still answers. The default
// asks the remote machine to call back through the tunnel.
type probeFunc func(ctx context.Context, status models.TunnelStatus) error

// reconnectFunc tears down and re-establishes the tunnel transport.
type reconnectFunc func(ctx context.Context, machine *models.RemoteMachine, status models.TunnelStatus) error

// downAfterFailures is how many consecutive probe failures demote a
// tunnel from degraded to down.
const downAfterFailures = 3

// TunnelHealthMonitor tracks one reverse tunnel per remote machine. A
// background loop re-probes each tunnel; ForceReconnect is the one
// stateful, concurrency-sensitive operation and is guarded by a
// per-machine in-flight flag.
type TunnelHealthMonitor struct {
	machines  machineStore
	instances instanceCounter
	executor  RemoteCommandExecutor
	broadcast Broadcaster

	probeInterval time.Duration
	probeTimeout  time.Duration
	probe         probeFunc
	reconnect     reconnectFunc
	now           func() time.Time

	mu           sync.Mutex
	tunnels      map[string]*models.TunnelStatus
	failures     map[string]int
	reconnecting map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewTunnelHealthMonitor creates a monitor with the default
// through-the-tunnel probe and ssh-based reconnect transport.
func NewTunnelHealthMonitor(machines machineStore, instances instanceCounter, executor RemoteCommandExecutor, broadcast Broadcaster, probeInterval, probeTimeout time.Duration) *TunnelHealthMonitor {
	m := &TunnelHealthMonitor{
		machines:      machines,
		instances:     instances,
		executor:      executor,
		broadcast:     broadcast,
		probeInterval: probeInterval,
		probeTimeout:  probeTimeout,
		now:           time.Now,
		tunnels:       make(map[string]*models.TunnelStatus),
		failures:      make(map[string]int),
		reconnecting:  make(map[string]bool),
	}
	m.probe = m.remoteProbe
	m.reconnect = m.sshReconnect
	return m
}

// Track registers a tunnel for a machine. Re-tracking an existing
// machine resets its ports but keeps its reconnect counters.
func (m *TunnelHealthMonitor) Track(machineID, machineName string, localPort, remotePort int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.tunnels[machineID]; ok {
		st.MachineName = machineName
		st.LocalPort = localPort
		st.RemotePort = remotePort
		return
	}
	m.tunnels[machineID] = &models.TunnelStatus{
		MachineID:   machineID,
		MachineName: machineName,
		HealthState: models.TunnelDegraded,
		LocalPort:   localPort,
		RemotePort:  remotePort,
	}
}

// Untrack forgets a machine's tunnel. Untracking an unknown machine is
// a no-op.
func (m *TunnelHealthMonitor) Untrack(machineID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tunnels, machineID)
	delete(m.failures, machineID)
}

// GetTunnelStatus returns a copy of one machine's tunnel status.
func (m *TunnelHealthMonitor) GetTunnelStatus(machineID string) (models.TunnelStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.tunnels[machineID]
	if !ok {
		return models.TunnelStatus{}, false
	}
	return *st, true
}

// GetAllTunnelStatuses returns copies of every tracked tunnel status,
// ordered by machine name.
func (m *TunnelHealthMonitor) GetAllTunnelStatuses() []models.TunnelStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make([]models.TunnelStatus, 0, len(m.tunnels))
	for _, st := range m.tunnels {
		statuses = append(statuses, *st)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].MachineName < statuses[j].MachineName
	})
	return statuses
}

// ForceReconnect tears down and re-establishes a machine's tunnel. A
// second call while a reconnect for the same machine is in flight gets
// ErrReconnectInProgress instead of queuing or racing; an untracked
// machine gets ErrNoTunnel.
func (m *TunnelHealthMonitor) ForceReconnect(ctx context.Context, machineID string) error {
	m.mu.Lock()
	st, ok := m.tunnels[machineID]
	if !ok {
		m.mu.Unlock()
		return ErrNoTunnel
	}
	if m.reconnecting[machineID] {
		m.mu.Unlock()
		return ErrReconnectInProgress
	}
	m.reconnecting[machineID] = true
	st.ReconnectAttempts++
	snapshot := *st
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.reconnecting, machineID)
		m.mu.Unlock()
	}()

	machine, err := m.machines.GetByID(machineID)
	if err != nil {
		m.recordProbe(machineID, fmt.Errorf("resolve machine: %w", err))
		return fmt.Errorf("reconnect %s: %w", machineID, err)
	}

	log.Printf("Reconnecting tunnel for %s (attempt %d)", snapshot.MachineName, snapshot.ReconnectAttempts)
	if err := m.reconnect(ctx, machine, snapshot); err != nil {
		m.recordProbe(machineID, err)
		return fmt.Errorf("reconnect %s: %w", snapshot.MachineName, err)
	}

	m.recordProbe(machineID, nil)
	return nil
}

// Start launches the background probe loop. Calling Start twice is a no-op.
func (m *TunnelHealthMonitor) Start() {
	if m.cancel != nil {
		return
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	go m.probeLoop()
	log.Printf("Tunnel health monitor started (interval: %v)", m.probeInterval)
}

// Stop halts the probe loop. Safe to call without Start, or twice.
func (m *TunnelHealthMonitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.cancel = nil
}

func (m *TunnelHealthMonitor) probeLoop() {
	ticker := time.NewTicker(m.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.ProbeAll(m.ctx)
		}
	}
}

// ProbeTunnel runs one connectivity probe for a machine's tunnel and
// folds the outcome into its health state. Returns ErrNoTunnel for an
// untracked machine.
func (m *TunnelHealthMonitor) ProbeTunnel(ctx context.Context, machineID string) error {
	st, ok := m.GetTunnelStatus(machineID)
	if !ok {
		return ErrNoTunnel
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	err := m.probe(probeCtx, st)
	cancel()
	m.recordProbe(machineID, err)
	return err
}

// ProbeAll re-probes every tracked tunnel once and updates health
// state, last-seen timestamps, and instance counts.
func (m *TunnelHealthMonitor) ProbeAll(ctx context.Context) {
	for _, st := range m.GetAllTunnelStatuses() {
		probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
		err := m.probe(probeCtx, st)
		cancel()
		m.recordProbe(st.MachineID, err)

		if m.instances != nil {
			if count, cerr := m.instances.CountByMachine(st.MachineID); cerr == nil {
				m.mu.Lock()
				if cur, ok := m.tunnels[st.MachineID]; ok {
					cur.InstanceCount = count
				}
				m.mu.Unlock()
			}
		}
	}
}

// recordProbe folds one probe outcome into the tunnel's health state.
func (m *TunnelHealthMonitor) recordProbe(machineID string, err error) {
	now := m.now()

	m.mu.Lock()
	st, ok := m.tunnels[machineID]
	if !ok {
		m.mu.Unlock()
		return
	}

	previous := st.HealthState
	st.LastHealthCheck = now

	if err == nil {
		m.failures[machineID] = 0
		st.HealthState = models.TunnelHealthy
		st.LastSeenAt = now
		st.Error = ""
	} else {
		m.failures[machineID]++
		st.Error = err.Error()
		if m.failures[machineID] >= downAfterFailures {
			st.HealthState = models.TunnelDown
		} else {
			st.HealthState = models.TunnelDegraded
		}
	}
	changed := st.HealthState != previous
	snapshot := *st
	m.mu.Unlock()

	if changed {
		log.Printf("Tunnel for %s: %s -> %s", snapshot.MachineName, previous, snapshot.HealthState)
		if m.broadcast != nil {
			m.broadcast.Publish(models.Event{
				Type:      models.EventTunnelChanged,
				EntityID:  machineID,
				Payload:   snapshot,
				Timestamp: now,
			})
		}
	}
}

// remoteProbe is the default connectivity probe: the reverse tunnel is
// alive iff the remote machine can reach the control plane's health
// endpoint through its end of the forward. This exercises the whole
// path, not just one socket.
func (m *TunnelHealthMonitor) remoteProbe(ctx context.Context, status models.TunnelStatus) error {
	cmd := fmt.Sprintf("curl -sf -m 5 http://127.0.0.1:%d/beacon/health", status.RemotePort)
	res, err := m.executor.Execute(ctx, status.MachineID, cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommandFailed, err)
	}
	if !res.Success {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = fmt.Sprintf("no listener on remote port %d", status.RemotePort)
		}
		return fmt.Errorf("tunnel probe: %s", detail)
	}
	return nil
}

// sshReconnect is the default reconnect transport: a fresh background
// ssh process holding the reverse forward (the remote machine listens
// on RemotePort and forwards to the control plane's LocalPort). The
// previous process, if any, dies with its forwarded port;
// ExitOnForwardFailure makes the replacement fail fast instead of
// silently holding no forward.
func (m *TunnelHealthMonitor) sshReconnect(ctx context.Context, machine *models.RemoteMachine, status models.TunnelStatus) error {
	args := []string{
		"-o", "BatchMode=yes",
		"-o", "ExitOnForwardFailure=yes",
		"-o", "ServerAliveInterval=10",
		"-o", "ServerAliveCountMax=3",
		"-o", "ConnectTimeout=10",
	}
	if machine.Port != 0 && machine.Port != 22 {
		args = append(args, "-p", strconv.Itoa(machine.Port))
	}
	args = append(args,
		"-f", "-N",
		"-R", fmt.Sprintf("%d:127.0.0.1:%d", status.RemotePort, status.LocalPort),
		machine.Addr(),
	)

	cmd := exec.CommandContext(ctx, "ssh", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ssh forward: %v (%s)", err, string(out))
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	return m.remoteProbe(probeCtx, status)
}
