// Package wire defines the on-the-wire message envelopes used between
// the controller and its replicas, and their JSON codecs. The control
// frame uses a fixed-width, right-justified encoding instead of a
// length prefix so a reader can always consume exactly
// ControlFrameSize bytes off the wire; peer frames use ordinary
// newline-delimited JSON since their reader is a stream scanner rather
// than a fixed-size socket read, and each telemetry frame is a single
// JSON document sent as one UDP datagram.
package wire

import (
	"encoding/json"
	"fmt"
)

// ControlFrameSize is the fixed width of a control frame in bytes.
const ControlFrameSize = 1024

// ControlFrame is sent controller -> replica.
type ControlFrame struct {
	IsDown      bool `json:"is_down"`
	IsByzantine bool `json:"is_byzantine"`
	IsDone      bool `json:"is_done"`
}

// Encode renders the frame as right-justified ASCII JSON padded to
// ControlFrameSize bytes.
func (c ControlFrame) Encode() ([]byte, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("wire: encoding control frame: %w", err)
	}
	if len(body) > ControlFrameSize {
		return nil, fmt.Errorf("wire: control frame of %d bytes exceeds frame size %d", len(body), ControlFrameSize)
	}
	padded := make([]byte, ControlFrameSize)
	for i := range padded {
		padded[i] = ' '
	}
	copy(padded[ControlFrameSize-len(body):], body)
	return padded, nil
}

// DecodeControlFrame parses a (possibly padded) control frame.
func DecodeControlFrame(data []byte) (ControlFrame, error) {
	var c ControlFrame
	trimmed := trimLeadingSpace(data)
	if err := json.Unmarshal(trimmed, &c); err != nil {
		return c, fmt.Errorf("wire: decoding control frame: %w", err)
	}
	return c, nil
}

func trimLeadingSpace(data []byte) []byte {
	i := 0
	for i < len(data) && (data[i] == ' ' || data[i] == '\t' || data[i] == '\n' || data[i] == '\r' || data[i] == 0) {
		i++
	}
	return data[i:]
}
