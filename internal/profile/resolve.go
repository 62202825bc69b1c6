package profile

import (
	"fmt"

	"github.com/zjrosen/mntn/internal/log"
)

// ActiveProfile is the resolved identity for one invocation.
type ActiveProfile struct {
	// Name is the selected profile definition, empty when none applied.
	Name        string
	MachineID   string
	Environment string
}

func (p ActiveProfile) String() string {
	name := p.Name
	if name == "" {
		name = "(none)"
	}
	return fmt.Sprintf("profile=%s machine=%s environment=%s", name, p.MachineID, p.Environment)
}

// Overrides are the per-invocation CLI choices. Empty fields are unset.
type Overrides struct {
	Profile     string
	MachineID   string
	Environment string
}

// Resolver builds ActiveProfile values from the profile file, the marker and
// host defaults.
type Resolver struct {
	ConfigPath string
	Marker     MarkerStore
	Host       HostDefaults
}

// Resolve picks the profile definition and then decides machine id and
// environment independently: CLI override, else the definition, else host.
func (r Resolver) Resolve(o Overrides) ActiveProfile {
	cfg := LoadConfigOrDefault(r.ConfigPath)
	name, def, ok := r.selectDefinition(cfg, o.Profile)

	p := ActiveProfile{
		MachineID:   r.Host.MachineID,
		Environment: r.Host.Environment,
	}
	if ok {
		p.Name = name
		if def.MachineID != nil && *def.MachineID != "" {
			p.MachineID = *def.MachineID
		}
		if def.Environment != nil && *def.Environment != "" {
			p.Environment = *def.Environment
		}
	}
	if o.MachineID != "" {
		p.MachineID = o.MachineID
	}
	if o.Environment != "" {
		p.Environment = o.Environment
	}

	log.Debug(log.CatProfile, "resolved profile", "name", p.Name, "machine", p.MachineID, "environment", p.Environment)
	return p
}

func (r Resolver) selectDefinition(cfg *Config, explicit string) (string, Definition, bool) {
	requested := explicit
	if requested == "" {
		requested, _ = r.Marker.Get()
	}
	if requested != "" {
		if def, ok := cfg.Get(requested); ok {
			return requested, def, true
		}
		log.Warn(log.CatProfile, "requested profile is not defined, using default", "profile", requested)
	}
	if cfg.DefaultProfile != nil {
		if def, ok := cfg.Get(*cfg.DefaultProfile); ok {
			return *cfg.DefaultProfile, def, true
		}
	}
	return "", Definition{}, false
}
