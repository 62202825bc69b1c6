package profile

import (
	"os"
	"strings"
)

// EnvEnvironment sets the host default environment.
const EnvEnvironment = "MNTN_ENV"

const (
	// DefaultEnvironment is used when nothing else names an environment.
	DefaultEnvironment = "default"
	unknownMachine     = "unknown-machine"
)

// HostDefaults are the machine id and environment used when neither the CLI
// nor the selected profile sets them.
type HostDefaults struct {
	MachineID   string
	Environment string
}

// DetectHostDefaults reads the machine id override file, falling back to the
// hostname, and the environment from MNTN_ENV.
func DetectHostDefaults(machineIDPath string) HostDefaults {
	return HostDefaults{
		MachineID:   detectMachineID(machineIDPath, os.Hostname),
		Environment: detectEnvironment(os.Getenv),
	}
}

func detectMachineID(path string, hostname func() (string, error)) string {
	if data, err := os.ReadFile(path); err == nil { //nolint:gosec // path comes from the layout
		if id := SanitizeMachineID(string(data)); id != "" {
			return id
		}
	}
	host, err := hostname()
	if err != nil {
		return unknownMachine
	}
	// Short name only: laptop.local and laptop are the same machine.
	host, _, _ = strings.Cut(host, ".")
	if id := SanitizeMachineID(host); id != "" {
		return id
	}
	return unknownMachine
}

func detectEnvironment(getenv func(string) string) string {
	if env := strings.TrimSpace(getenv(EnvEnvironment)); env != "" {
		return env
	}
	return DefaultEnvironment
}

// SanitizeMachineID lowercases s and drops every character outside
// [a-z0-9._-] so the result is safe as a single path component.
func SanitizeMachineID(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == '.':
			if b.Len() > 0 {
				b.WriteRune(r)
			}
		}
	}
	return strings.Trim(b.String(), ".")
}
