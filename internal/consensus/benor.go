package consensus

import (
	"fmt"

	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/faults"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/randsrc"
)

// BenOrEngine implements randomized binary agreement. It requires
// n > 2f and is not Byzantine-tolerant.
type BenOrEngine struct {
	n, f, id int
	rng      randsrc.Source

	v     int
	w     *int // nil == no value computed yet, distinct from the -1 sentinel
	p     int
	phase int // 1 or 2

	r []*int
	s []*int

	futures map[int][]Message

	done bool
}

// NewBenOrEngine constructs a Ben-Or engine for replica id among n
// replicas tolerating f crash faults. Returns a wrapped
// faults.ErrConfiguration if n <= 2f, the minimum replica count for
// which crash-fault agreement is feasible.
func NewBenOrEngine(id, n, f int, rng randsrc.Source) (*BenOrEngine, error) {
	if n <= 2*f {
		return nil, fmt.Errorf("%w: BenOr requires n > 2f, got n=%d f=%d", faults.ErrConfiguration, n, f)
	}
	e := &BenOrEngine{
		n: n, f: f, id: id, rng: rng,
		v:       randsrc.FlipCoin(rng),
		phase:   1,
		futures: make(map[int][]Message),
	}
	e.reset()
	return e, nil
}

func (e *BenOrEngine) reset() {
	e.r = make([]*int, e.n)
	e.s = make([]*int, e.n)
	v := e.v
	e.r[e.id] = &v
	v2 := e.v
	e.s[e.id] = &v2
	e.w = nil
}

// IsDone implements Engine.
func (e *BenOrEngine) IsDone() bool { return e.done }

// SupportsByzantine implements Engine: Ben-Or tolerates only crash
// faults.
func (e *BenOrEngine) SupportsByzantine() bool { return false }

// Snapshot implements Engine.
func (e *BenOrEngine) Snapshot() Snapshot {
	var w *float64
	if e.w != nil {
		w = floatPtr(float64(*e.w))
	}
	return Snapshot{P: e.p, Phase: e.phase, V: float64(e.v), W: w, Done: e.done}
}

// ProcessMessage implements Engine, following AlgorithmBenOr.process_message.
func (e *BenOrEngine) ProcessMessage(m Message) bool {
	e.drainFutures()

	if m.P > e.p {
		e.futures[m.P] = append(e.futures[m.P], m)
	}
	if m.P == e.p && m.Phase == 1 {
		v := int(m.V)
		e.r[m.SenderID] = &v
	} else if m.P == e.p && m.Phase == 2 {
		w := int(m.V)
		e.s[m.SenderID] = &w
	}

	return e.advance()
}

// drainFutures replays any messages buffered for the engine's current
// phase, applying each as if it had just arrived. See DESIGN.md for
// why each buffered message is attributed to its own original sender
// rather than the id of whatever message triggered the drain.
func (e *BenOrEngine) drainFutures() {
	msgs, ok := e.futures[e.p]
	if !ok || len(msgs) == 0 {
		return
	}
	delete(e.futures, e.p)
	for _, fm := range msgs {
		if fm.Phase == 1 {
			v := int(fm.V)
			e.r[fm.SenderID] = &v
		} else {
			w := int(fm.V)
			e.s[fm.SenderID] = &w
		}
	}
}

// advance checks the current sub-phase's threshold and transitions if
// met, returning whether the phase counter incremented.
func (e *BenOrEngine) advance() bool {
	filledR := countNonNil(e.r)
	filledS := countNonNil(e.s)

	switch {
	case e.phase == 1 && filledR >= e.n-e.f:
		if maj, ok := checkMajority(e.r); ok {
			e.w = &maj
		} else {
			sentinel := -1
			e.w = &sentinel
		}
		e.phase = 2
		return false

	case e.phase == 2 && filledS >= e.n-e.f:
		x, found := firstDecided(e.s)
		if found {
			e.v = x
			if countEqual(e.s, x) > e.f {
				e.done = true
			}
		} else {
			e.v = randsrc.FlipCoin(e.rng)
		}
		e.phase = 1
		e.reset()
		e.p++
		return true
	}
	return false
}

// checkMajority returns the value appearing in more than n/2 of r's n
// slots (including un-filled ⊥ slots in the denominator, matching
// __check_majority__'s use of len(l1) on the full, unfiltered vector),
// and whether such a value exists.
func checkMajority(r []*int) (int, bool) {
	counts := make(map[int]int)
	for _, v := range r {
		if v != nil {
			counts[*v]++
		}
	}
	threshold := float64(len(r)) / 2.0
	for v, c := range counts {
		if float64(c) > threshold {
			return v, true
		}
	}
	return 0, false
}

// firstDecided returns the first non-⊥, non-sentinel(-1) value in s,
// by index order.
func firstDecided(s []*int) (int, bool) {
	for _, v := range s {
		if v != nil && *v != -1 {
			return *v, true
		}
	}
	return 0, false
}

func countEqual(s []*int, x int) int {
	n := 0
	for _, v := range s {
		if v != nil && *v == x {
			n++
		}
	}
	return n
}

func countNonNil(s []*int) int {
	n := 0
	for _, v := range s {
		if v != nil {
			n++
		}
	}
	return n
}
