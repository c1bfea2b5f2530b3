// Package config loads and validates the parameters that drive a run.
// Parsing is deliberately plain encoding/json (see DESIGN.md for why
// no configuration library is adopted here).
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/faults"
)

// Algorithm names the protocol selector.
type Algorithm string

const (
	AlgorithmBenOr   Algorithm = "benor"
	AlgorithmJACM86  Algorithm = "jacm86"
)

// Params is the full set of parameters consumed from the external
// config file, plus the logging level knob.
type Params struct {
	Servers               int       `json:"servers"`
	F                     int       `json:"f"`
	Eps                   float64   `json:"eps"`
	K                     float64   `json:"K"`
	Algorithm             Algorithm `json:"algorithm"`
	ByzantineP            float64   `json:"byzantine_p"`
	BroadcastPeriodMS     int       `json:"broadcast_period"`
	ControllerPort        int       `json:"controller_port"`
	LoggingServerIP       string    `json:"logging_server_ip"`
	TerminateOnPAgreement bool      `json:"terminate_on_p_agreement"`
	LogLevel              string    `json:"log_level"`

	// PeerAddrs, if set, gives each replica's peer-broadcast address by
	// id; these are treated as opaque strings. When unset, PeerAddr
	// derives a localhost address from PeerBasePort.
	PeerAddrs    []string `json:"peer_addrs,omitempty"`
	PeerBasePort int      `json:"peer_base_port,omitempty"`
}

// PeerAddr returns the peer-broadcast address for replica id.
func (p Params) PeerAddr(id int) string {
	if id < len(p.PeerAddrs) && p.PeerAddrs[id] != "" {
		return p.PeerAddrs[id]
	}
	return fmt.Sprintf("127.0.0.1:%d", p.PeerBasePort+id)
}

// Load reads and parses a Params document from path.
func Load(path string) (Params, error) {
	var p Params
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return p, nil
}

// Validate enforces the feasibility preconditions of the selected
// algorithm. A non-nil error always wraps faults.ErrConfiguration.
func (p Params) Validate() error {
	if p.Servers <= 0 {
		return fmt.Errorf("%w: servers must be positive, got %d", faults.ErrConfiguration, p.Servers)
	}
	if p.F < 0 {
		return fmt.Errorf("%w: f must be non-negative, got %d", faults.ErrConfiguration, p.F)
	}
	switch p.Algorithm {
	case AlgorithmBenOr:
		if p.Servers <= 2*p.F {
			return fmt.Errorf("%w: BenOr requires servers > 2f, got servers=%d f=%d", faults.ErrConfiguration, p.Servers, p.F)
		}
	case AlgorithmJACM86:
		if p.Servers < 5*p.F+1 {
			return fmt.Errorf("%w: JACM86 requires servers >= 5f+1, got servers=%d f=%d", faults.ErrConfiguration, p.Servers, p.F)
		}
		if p.Eps <= 0 {
			return fmt.Errorf("%w: JACM86 requires eps > 0, got %v", faults.ErrConfiguration, p.Eps)
		}
	default:
		return fmt.Errorf("%w: unknown algorithm %q", faults.ErrConfiguration, p.Algorithm)
	}
	if p.BroadcastPeriodMS <= 0 {
		return fmt.Errorf("%w: broadcast_period must be positive, got %d", faults.ErrConfiguration, p.BroadcastPeriodMS)
	}
	return nil
}

// SupportsByzantine reports whether the selected algorithm tolerates
// Byzantine replicas under this parameter set, mirroring
// ApproximateConsensusAlgorithm.supports_byzantine in the original.
func (p Params) SupportsByzantine() bool {
	switch p.Algorithm {
	case AlgorithmJACM86:
		return p.Servers >= 5*p.F+1
	default:
		return false
	}
}
