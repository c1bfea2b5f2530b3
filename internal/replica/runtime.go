// Package replica implements the round-based broadcast/receive runtime
// that owns one protocol engine: periodic broadcast, inbound
// demultiplexing, control-channel handling, and telemetry emission.
// The runtime itself never decides protocol semantics; it only drives
// an internal/consensus.Engine with messages and timers.
package replica

import (
	"context"
	"sync"
	"time"

	"github.com/joeycumines/go-microbatch"

	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/config"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/consensus"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/obslog"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/randsrc"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/wire"
)

// Runtime is a single replica's process loop.
type Runtime struct {
	id     int
	params config.Params
	engine consensus.Engine
	rng    randsrc.Source
	logger obslog.Logger

	mesh      *peerMesh
	control   *controlStream
	telemetry *telemetryClient
	governor  *broadcastGovernor
	telBatch  *microbatch.Batcher[wire.TelemetryFrame]

	mu          sync.RWMutex
	isDown      bool
	isByzantine bool
	isDone      bool
}

// New constructs a replica Runtime. listenAddr is this replica's own
// peer-broadcast listen address; peerAddrs maps every other replica's
// id to its peer address.
func New(
	id int,
	params config.Params,
	engine consensus.Engine,
	rng randsrc.Source,
	logger obslog.Logger,
	listenAddr string,
	peerAddrs map[int]string,
	controllerAddr string,
	telemetryAddr string,
) (*Runtime, error) {
	mesh, err := newPeerMesh(id, peerAddrs, listenAddr, logger)
	if err != nil {
		return nil, err
	}
	control, err := dialController(context.Background(), controllerAddr, id)
	if err != nil {
		mesh.close()
		return nil, err
	}
	tel, err := dialTelemetry(telemetryAddr)
	if err != nil {
		mesh.close()
		control.close()
		return nil, err
	}

	r := &Runtime{
		id: id, params: params, engine: engine, rng: rng, logger: logger,
		mesh: mesh, control: control, telemetry: tel,
		governor: newBroadcastGovernor(time.Duration(params.BroadcastPeriodMS) * time.Millisecond),
	}
	r.telBatch = microbatch.NewBatcher(&microbatch.BatcherConfig{
		FlushInterval: time.Duration(params.BroadcastPeriodMS) * time.Millisecond,
		MaxSize:       64,
	}, r.flushTelemetry)
	return r, nil
}

func (r *Runtime) flushTelemetry(ctx context.Context, frames []wire.TelemetryFrame) error {
	for _, f := range frames {
		if err := r.telemetry.send(f); err != nil {
			r.logger.Warning().Err(err).Log("telemetry send failed")
		}
	}
	return nil
}

// Run executes the ready handshake, then the main loop, until the
// replica is permanently shut down or ctx is canceled.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.telemetry.send(wire.TelemetryFrame{ID: r.id, Ready: true}); err != nil {
		return err
	}
	if _, err := r.control.next(); err != nil {
		return err
	}
	r.logger.Info().Log("ready handshake complete")

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); r.controlLoop(ctx) }()
	go func() { defer wg.Done(); r.inboundLoop(ctx) }()
	go func() { defer wg.Done(); r.broadcastLoop(ctx) }()
	wg.Wait()
	return nil
}

func (r *Runtime) controlLoop(ctx context.Context) {
	for {
		frame, err := r.control.next()
		if err != nil {
			r.logger.Warning().Err(err).Log("control stream closed")
			r.shutdown()
			return
		}
		r.mu.Lock()
		r.isDown = frame.IsDown
		r.isByzantine = frame.IsByzantine
		if frame.IsDone {
			r.isDone = true
		}
		done := r.isDone
		r.mu.Unlock()

		if done {
			r.shutdown()
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (r *Runtime) inboundLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-r.mesh.inbound:
			if !ok {
				return
			}
			if r.down() {
				continue
			}
			advanced := r.engine.ProcessMessage(consensus.Message{
				SenderID: f.ID, P: f.P, Phase: f.Phase, V: f.V, IsDone: f.IsDone,
			})
			if advanced {
				r.emitTelemetry(ctx)
				if r.engine.IsDone() {
					r.shutdown()
					return
				}
			}
		}
	}
}

func (r *Runtime) broadcastLoop(ctx context.Context) {
	period := time.Duration(r.params.BroadcastPeriodMS) * time.Millisecond
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.done() {
				return
			}
			if r.down() {
				continue
			}
			if !r.governor.allow() {
				continue
			}
			r.broadcastOnce()
			r.emitTelemetry(ctx)
		}
	}
}

func (r *Runtime) broadcastOnce() {
	snap := r.engine.Snapshot()
	phase := snap.Phase

	// Ben-Or sub-phase 2 broadcasts the computed intermediate w, not
	// the proposal v; JACM86 (Phase always 0) and Ben-Or sub-phase 1
	// both broadcast v.
	payload := snap.V
	if phase == 2 && snap.W != nil {
		payload = *snap.W
	}

	if r.byzantine() {
		if r.params.Algorithm == config.AlgorithmBenOr {
			payload = float64(randsrc.FlipCoin(r.rng))
		} else {
			payload = randsrc.UniformFloat(r.rng, r.params.K)
		}
	}

	r.mesh.broadcast(wire.PeerFrame{
		ID: r.id, P: snap.P, Phase: phase, V: payload, IsDone: snap.Done,
	})
}

func (r *Runtime) emitTelemetry(ctx context.Context) {
	snap := r.engine.Snapshot()
	frame := wire.TelemetryFrame{
		ID: r.id, P: snap.P, V: snap.V, IsDone: snap.Done,
		TimeGenerated: time.Now().UnixNano(),
	}
	if snap.W != nil {
		frame.W = snap.W
	}
	if _, err := r.telBatch.Submit(ctx, frame); err != nil {
		r.logger.Warning().Err(err).Log("telemetry submit failed")
	}
}

func (r *Runtime) shutdown() {
	r.mu.Lock()
	if r.isDone {
		r.mu.Unlock()
		return
	}
	r.isDone = true
	r.mu.Unlock()

	_ = r.telemetry.send(wire.TelemetryFrame{ID: r.id, IsDone: true, TimeGenerated: time.Now().UnixNano()})
	_ = r.telBatch.Shutdown(context.Background())
	r.mesh.close()
	_ = r.control.close()
	_ = r.telemetry.close()
}

func (r *Runtime) down() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isDown
}

func (r *Runtime) byzantine() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isByzantine
}

func (r *Runtime) done() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isDone
}
