package wire

import (
	"encoding/json"
	"fmt"

	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/faults"
)

// TelemetryFrame is sent replica -> controller. It is either a
// one-shot ready signal (Ready=true, all other fields zero) or a state
// snapshot; the two variants are distinguished by the presence of the
// Ready field.
type TelemetryFrame struct {
	ID            int      `json:"id"`
	Ready         bool     `json:"ready,omitempty"`
	P             int      `json:"p,omitempty"`
	V             float64  `json:"v,omitempty"`
	W             *float64 `json:"w,omitempty"`
	Converged     bool     `json:"converged,omitempty"`
	IsDone        bool     `json:"is_done,omitempty"`
	TimeGenerated int64    `json:"time_generated,omitempty"`
}

// IsReadySignal reports whether this frame is the one-shot ready
// handshake rather than a state snapshot.
func (t TelemetryFrame) IsReadySignal() bool {
	return t.Ready
}

// EncodeTelemetryFrame serializes a TelemetryFrame as a UDP datagram
// payload.
func EncodeTelemetryFrame(t TelemetryFrame) ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("wire: encoding telemetry frame: %w", err)
	}
	return data, nil
}

// DecodeTelemetryFrame parses a telemetry datagram. As with peer
// frames, a missing "id" field is treated as malformed and the frame
// should be silently dropped by the caller.
func DecodeTelemetryFrame(data []byte) (TelemetryFrame, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return TelemetryFrame{}, fmt.Errorf("wire: decoding telemetry frame: %w: %w", faults.ErrMalformedMessage, err)
	}
	if _, ok := raw["id"]; !ok {
		return TelemetryFrame{}, fmt.Errorf("%w: telemetry frame missing id field", faults.ErrMalformedMessage)
	}
	var t TelemetryFrame
	if err := json.Unmarshal(data, &t); err != nil {
		return TelemetryFrame{}, fmt.Errorf("wire: decoding telemetry frame: %w: %w", faults.ErrMalformedMessage, err)
	}
	return t, nil
}
