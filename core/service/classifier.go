package service

import (
	"strings"
)

// keychainVerdict classifies free-text output from the macOS `security`
// tool into an explicit result instead of scattering substring checks
// through the vault flows.
type keychainVerdict int

const (
	verdictUnknown keychainVerdict = iota
	verdictUnlocked
	verdictLocked
	verdictAuthFailed
	verdictNotFound
)

func (v keychainVerdict) String() string {
	switch v {
	case verdictUnlocked:
		return "unlocked"
	case verdictLocked:
		return "locked"
	case verdictAuthFailed:
		return "auth_failed"
	case verdictNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// classifyKeychainOutput maps a `security` invocation's outcome to a
// verdict. The tool reports everything interesting on stderr:
//
//	"User interaction is not allowed."          -> the keychain is locked
//	"...passphrase you entered is not correct." -> wrong password
//	"...could not be found."                    -> no such keychain/item
//
// A successful exit with none of those patterns means the keychain
// answered, i.e. it is unlocked.
func classifyKeychainOutput(success bool, stdout, stderr string) keychainVerdict {
	combined := strings.ToLower(stdout + "\n" + stderr)

	switch {
	case strings.Contains(combined, "not correct"):
		return verdictAuthFailed
	case strings.Contains(combined, "interaction is not allowed"):
		return verdictLocked
	case strings.Contains(combined, "could not be found"):
		return verdictNotFound
	case success:
		return verdictUnlocked
	default:
		return verdictUnknown
	}
}
