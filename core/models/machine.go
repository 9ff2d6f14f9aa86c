package models

import "time"

// RemoteMachine represents an SSH-reachable machine that hosts remote
// instances. CredentialRef names the secure-store entry holding the
// machine's keychain password.
type RemoteMachine struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Hostname      string    `json:"hostname"`
	Port          int       `json:"port"`
	Username      string    `json:"username"`
	CredentialRef string    `json:"credential_ref,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Addr returns the user@host SSH target for the machine.
func (m *RemoteMachine) Addr() string {
	if m.Username == "" {
		return m.Hostname
	}
	return m.Username + "@" + m.Hostname
}
