package wire

import (
	"encoding/json"
	"fmt"

	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/faults"
)

// PeerFrame is exchanged directly between replicas. Phase is only
// meaningful for Ben-Or (sub-phase 1 or 2). The replica runtime carries
// every payload in V, including Ben-Or's sub-phase-2 intermediate w;
// it does not set W.
type PeerFrame struct {
	ID     int      `json:"id"`
	P      int      `json:"p"`
	Phase  int      `json:"phase,omitempty"`
	V      float64  `json:"v"`
	W      *float64 `json:"w,omitempty"`
	IsDone bool     `json:"is_done"`
}

// EncodePeerFrame serializes a PeerFrame as a single JSON line.
func EncodePeerFrame(f PeerFrame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("wire: encoding peer frame: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodePeerFrame parses a single JSON-encoded PeerFrame. An error is
// returned for malformed JSON or a frame missing the required "id"
// field; callers should drop the frame and continue rather than
// propagate the error into the protocol engine.
func DecodePeerFrame(data []byte) (PeerFrame, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return PeerFrame{}, fmt.Errorf("wire: decoding peer frame: %w: %w", faults.ErrMalformedMessage, err)
	}
	if _, ok := raw["id"]; !ok {
		return PeerFrame{}, fmt.Errorf("%w: peer frame missing id field", faults.ErrMalformedMessage)
	}
	var f PeerFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return PeerFrame{}, fmt.Errorf("wire: decoding peer frame: %w: %w", faults.ErrMalformedMessage, err)
	}
	return f, nil
}
