package controller

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDoneVector_AllDone(t *testing.T) {
	d := NewDoneVector(3)
	require.False(t, d.AllDone())
	d.MarkDone(0)
	d.MarkDone(1)
	require.False(t, d.AllDone())
	d.MarkDone(2)
	require.True(t, d.AllDone())
	require.Equal(t, []bool{true, true, true}, d.Snapshot())
}

func TestSelectFaultSet_DistinctAndSized(t *testing.T) {
	rng := &deterministicSource{vals: []int{2, 0}}
	set := selectFaultSet(5, 2, rng)
	count := 0
	for _, v := range set {
		if v {
			count++
		}
	}
	require.Equal(t, 2, count)
}

// deterministicSource is a minimal randsrc.Source stub for exercising
// selectFaultSet's Fisher-Yates draws deterministically.
type deterministicSource struct {
	vals []int
	i    int
}

func (d deterministicSource) Float64() float64 { return 0 }

func (d *deterministicSource) Intn(n int) int {
	v := d.vals[d.i%len(d.vals)]
	d.i++
	if v >= n {
		v = n - 1
	}
	return v
}
