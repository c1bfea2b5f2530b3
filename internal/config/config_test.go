package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/faults"
	"github.com/stretchr/testify/require"
)

func writeParams(t *testing.T, p Params) string {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoad_RoundTrip(t *testing.T) {
	want := Params{
		Servers: 4, F: 1, Eps: 0.01, K: 1,
		Algorithm: AlgorithmBenOr, ByzantineP: 0.5,
		BroadcastPeriodMS: 200, ControllerPort: 9000,
		LoggingServerIP: "127.0.0.1",
	}
	path := writeParams(t, want)

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestValidate_BenOr(t *testing.T) {
	p := Params{Servers: 3, F: 1, Algorithm: AlgorithmBenOr, BroadcastPeriodMS: 100}
	err := p.Validate()
	require.Error(t, err)
	require.True(t, errors.Is(err, faults.ErrConfiguration))

	p.Servers = 4
	require.NoError(t, p.Validate())
}

func TestValidate_JACM86(t *testing.T) {
	p := Params{Servers: 5, F: 1, Eps: 0.01, Algorithm: AlgorithmJACM86, BroadcastPeriodMS: 100}
	err := p.Validate()
	require.Error(t, err)
	require.True(t, errors.Is(err, faults.ErrConfiguration))

	p.Servers = 6
	require.NoError(t, p.Validate())
	require.True(t, p.SupportsByzantine())
}

func TestValidate_UnknownAlgorithm(t *testing.T) {
	p := Params{Servers: 4, F: 1, Algorithm: "bogus", BroadcastPeriodMS: 100}
	require.Error(t, p.Validate())
}
