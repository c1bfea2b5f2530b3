package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestControlFrame_RoundTrip(t *testing.T) {
	cases := []ControlFrame{
		{IsDown: false, IsByzantine: false, IsDone: false},
		{IsDown: true, IsByzantine: false, IsDone: false},
		{IsDown: false, IsByzantine: true, IsDone: false},
		{IsDown: true, IsByzantine: true, IsDone: true},
	}
	for _, want := range cases {
		encoded, err := want.Encode()
		require.NoError(t, err)
		require.Len(t, encoded, ControlFrameSize)

		got, err := DecodeControlFrame(encoded)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestDecodeControlFrame_Malformed(t *testing.T) {
	_, err := DecodeControlFrame([]byte("not json"))
	require.Error(t, err)
}
