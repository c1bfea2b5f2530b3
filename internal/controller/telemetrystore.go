package controller

import (
	"sync"

	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/wire"
)

// StateRecord is one telemetry snapshot plus the controller's receipt
// timestamp, per the serverStates log in the original controller.
type StateRecord struct {
	wire.TelemetryFrame
	TimeReceivedMS int64 `json:"time_received"`
}

// PAgreement records the moment every replica reported converged=true.
type PAgreement struct {
	Time  int64 `json:"time"`
	Phase int   `json:"phase"`
}

// TelemetryStore is the controller's append-only per-replica telemetry
// log, reified as an object behind a mutex rather than package-level
// state shared across goroutines.
type TelemetryStore struct {
	mu         sync.Mutex
	states     map[int][]StateRecord
	ready      []bool
	converged  []bool
	pAgreement *PAgreement
}

// NewTelemetryStore allocates a TelemetryStore for n replicas.
func NewTelemetryStore(n int) *TelemetryStore {
	states := make(map[int][]StateRecord, n)
	for i := 0; i < n; i++ {
		states[i] = nil
	}
	return &TelemetryStore{
		states:    states,
		ready:     make([]bool, n),
		converged: make([]bool, n),
	}
}

// MarkReady records that replica id has signaled readiness.
func (s *TelemetryStore) MarkReady(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready[id] = true
}

// AllReady reports whether every replica has signaled readiness.
func (s *TelemetryStore) AllReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.ready {
		if !v {
			return false
		}
	}
	return true
}

// Append records a state snapshot with its receipt time, and — if it
// is the first time every replica has reported converged=true — the
// p_agreement event.
func (s *TelemetryStore) Append(frame wire.TelemetryFrame, receivedAtMS int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[frame.ID] = append(s.states[frame.ID], StateRecord{TelemetryFrame: frame, TimeReceivedMS: receivedAtMS})

	if s.pAgreement == nil {
		if frame.Converged {
			s.converged[frame.ID] = true
		}
		if allTrue(s.converged) {
			s.pAgreement = &PAgreement{Time: frame.TimeGenerated, Phase: frame.P}
		}
	}
}

// PAgreementEvent returns the recorded p_agreement event, or nil if
// convergence has not yet been observed from every replica.
func (s *TelemetryStore) PAgreementEvent() *PAgreement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pAgreement
}

// Snapshot returns a copy of the full telemetry log, for persistence.
func (s *TelemetryStore) Snapshot() map[int][]StateRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int][]StateRecord, len(s.states))
	for id, records := range s.states {
		cp := make([]StateRecord, len(records))
		copy(cp, records)
		out[id] = cp
	}
	return out
}

func allTrue(b []bool) bool {
	for _, v := range b {
		if !v {
			return false
		}
	}
	return true
}
