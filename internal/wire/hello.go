package wire

import (
	"encoding/json"
	"fmt"
)

// HelloFrame is the one-line handshake a replica sends immediately
// after dialing the controller's control port, identifying itself by
// id, since the control connection carries no other identifying
// information once established.
type HelloFrame struct {
	ID int `json:"id"`
}

// EncodeHelloFrame serializes a HelloFrame as a single JSON line.
func EncodeHelloFrame(f HelloFrame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("wire: encoding hello frame: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeHelloFrame parses a single JSON-encoded HelloFrame line.
func DecodeHelloFrame(line []byte) (HelloFrame, error) {
	var f HelloFrame
	if err := json.Unmarshal(line, &f); err != nil {
		return HelloFrame{}, fmt.Errorf("wire: decoding hello frame: %w", err)
	}
	return f, nil
}
