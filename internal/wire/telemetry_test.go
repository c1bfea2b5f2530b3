package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/faults"
)

func TestTelemetryFrame_ReadySignal(t *testing.T) {
	encoded, err := EncodeTelemetryFrame(TelemetryFrame{ID: 3, Ready: true})
	require.NoError(t, err)

	got, err := DecodeTelemetryFrame(encoded)
	require.NoError(t, err)
	require.True(t, got.IsReadySignal())
	require.Equal(t, 3, got.ID)
}

func TestTelemetryFrame_Snapshot(t *testing.T) {
	w := 1.0
	want := TelemetryFrame{ID: 1, P: 4, V: 0.5, W: &w, Converged: true, IsDone: false, TimeGenerated: 12345}
	encoded, err := EncodeTelemetryFrame(want)
	require.NoError(t, err)

	got, err := DecodeTelemetryFrame(encoded)
	require.NoError(t, err)
	require.False(t, got.IsReadySignal())
	require.Equal(t, want.P, got.P)
	require.InDelta(t, *want.W, *got.W, 1e-9)
}

func TestDecodeTelemetryFrame_MissingID(t *testing.T) {
	_, err := DecodeTelemetryFrame([]byte(`{"ready": true}`))
	require.Error(t, err)
	require.True(t, errors.Is(err, faults.ErrMalformedMessage))
}

func TestPeerFrame_RoundTrip(t *testing.T) {
	w := -1.0
	want := PeerFrame{ID: 2, P: 1, Phase: 2, V: 0, W: &w, IsDone: false}
	encoded, err := EncodePeerFrame(want)
	require.NoError(t, err)

	got, err := DecodePeerFrame(encoded)
	require.NoError(t, err)
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, want.Phase, got.Phase)
	require.InDelta(t, *want.W, *got.W, 1e-9)
}

func TestDecodePeerFrame_MissingID(t *testing.T) {
	_, err := DecodePeerFrame([]byte(`{"p": 1}`))
	require.Error(t, err)
	require.True(t, errors.Is(err, faults.ErrMalformedMessage))
}
