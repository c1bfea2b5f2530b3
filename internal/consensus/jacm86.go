package consensus

import (
	"fmt"
	"math"

	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/faults"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/randsrc"
)

// JACM86Engine implements the Dolev-Lynch-Pinter-Stark-Weihl real-valued
// approximate agreement protocol. It requires n >= 5f+1 and, under
// that bound, tolerates f Byzantine replicas.
type JACM86Engine struct {
	n, f, id int
	eps      float64
	k        float64

	v     float64
	p     int
	pEnd  *int

	r           []*float64
	doneServers []bool

	// Slack is the Byzantine slack fraction 0.5*(n-5f)/(2(n-f)), kept
	// for diagnostics and surfaced in Snapshot; it plays no role in termination or
	// value selection.
	Slack float64
}

// NewJACM86Engine constructs a JACM86 engine for replica id among n
// replicas tolerating f Byzantine faults, with convergence tolerance
// eps and initial value drawn uniformly from [0, k). Returns a wrapped
// faults.ErrConfiguration if n < 5f+1.
func NewJACM86Engine(id, n, f int, eps, k float64, rng randsrc.Source) (*JACM86Engine, error) {
	if n < 5*f+1 {
		return nil, fmt.Errorf("%w: JACM86 requires n >= 5f+1, got n=%d f=%d", faults.ErrConfiguration, n, f)
	}
	e := &JACM86Engine{
		n: n, f: f, id: id, eps: eps, k: k,
		v:           randsrc.UniformFloat(rng, k),
		Slack:       0.5 * (float64(n-5*f) / (2 * float64(n-f))),
		doneServers: make([]bool, n),
	}
	e.reset()
	return e, nil
}

func (e *JACM86Engine) reset() {
	e.r = make([]*float64, e.n)
	v := e.v
	e.r[e.id] = &v
}

// IsDone implements Engine: true once the phase counter has advanced
// past the computed phase bound, matching is_done.
func (e *JACM86Engine) IsDone() bool {
	return e.pEnd != nil && e.p > *e.pEnd
}

// SupportsByzantine implements Engine: true whenever the configured
// n/f satisfy n >= 5f+1, which NewJACM86Engine already requires, so
// this is always true for a successfully constructed engine.
func (e *JACM86Engine) SupportsByzantine() bool { return e.n >= 5*e.f+1 }

// Snapshot implements Engine. Phase and W are Ben-Or-only and left zero/nil.
func (e *JACM86Engine) Snapshot() Snapshot {
	return Snapshot{P: e.p, V: e.v, Done: e.IsDone(), Slack: e.Slack}
}

// ProcessMessage implements Engine, following AlgorithmJACM86.process_message.
func (e *JACM86Engine) ProcessMessage(m Message) bool {
	if m.IsDone {
		e.doneServers[m.SenderID] = true
	}
	if m.P == e.p && e.r[m.SenderID] == nil {
		v := m.V
		e.r[m.SenderID] = &v
	}

	filtered := filterNonNil(e.r)
	doneCount := countTrue(e.doneServers)
	if len(filtered)+doneCount < e.n-e.f {
		return false
	}

	for i, done := range e.doneServers {
		if done {
			zero := 0.0
			e.r[i] = &zero
		}
	}
	filtered = filterNonNil(e.r)

	switch {
	case e.p == 0:
		e.v = meanTrim(filtered, 2*e.f)
		dV := maxFloat(filtered) - minFloat(filtered)
		base := c(e.n-3*e.f, 2*e.f)
		pEnd := int(math.Ceil(math.Log(dV/e.eps) / math.Log(base)))
		e.pEnd = &pEnd
		e.p++
		e.reset()
		return true

	case e.pEnd != nil && e.p <= *e.pEnd:
		e.v = mean(selectEveryKth(trim(filtered, e.f), 2*e.f))
		e.p++
		e.reset()
		return true
	}
	return false
}

func countTrue(b []bool) int {
	n := 0
	for _, v := range b {
		if v {
			n++
		}
	}
	return n
}
