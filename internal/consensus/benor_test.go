package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/faults"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/randsrc"
)

func TestNewBenOrEngine_RejectsInfeasibleConfiguration(t *testing.T) {
	_, err := NewBenOrEngine(0, 3, 1, randsrc.New(1))
	require.Error(t, err)
	require.ErrorIs(t, err, faults.ErrConfiguration)
}

func TestBenOrEngine_AllOnesTerminatesWithinOnePhase(t *testing.T) {
	const n, f = 4, 1
	engines := make([]*BenOrEngine, n)
	for i := range engines {
		e, err := NewBenOrEngine(i, n, f, randsrc.New(int64(i)))
		require.NoError(t, err)
		e.v = 1
		e.reset()
		engines[i] = e
	}

	// Phase 1: every replica broadcasts its v=1 report to every other.
	for _, e := range engines {
		for _, sender := range engines {
			if sender.id == e.id {
				continue
			}
			e.ProcessMessage(Message{SenderID: sender.id, P: 0, Phase: 1, V: 1})
		}
	}
	for _, e := range engines {
		require.Equal(t, 2, e.phase)
		require.NotNil(t, e.w)
		require.Equal(t, 1, *e.w)
	}

	// Phase 2: every replica broadcasts its sub-phase-2 w=1 decision.
	for _, e := range engines {
		for _, sender := range engines {
			if sender.id == e.id {
				continue
			}
			e.ProcessMessage(Message{SenderID: sender.id, P: 0, Phase: 2, V: 1})
		}
	}
	for _, e := range engines {
		require.True(t, e.IsDone())
		require.Equal(t, float64(1), e.Snapshot().V)
	}
}

func TestCheckMajority(t *testing.T) {
	one, zero := 1, 0
	r := []*int{&one, &one, &one, &zero}
	v, ok := checkMajority(r)
	require.True(t, ok)
	require.Equal(t, 1, v)

	tie := []*int{&one, &one, &zero, &zero}
	_, ok = checkMajority(tie)
	require.False(t, ok)
}

func TestFirstDecided_SkipsSentinel(t *testing.T) {
	sentinel, one := -1, 1
	s := []*int{&sentinel, nil, &one}
	v, ok := firstDecided(s)
	require.True(t, ok)
	require.Equal(t, 1, v)
}
