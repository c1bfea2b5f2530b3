// Package controller implements the fault-orchestration and
// termination-detection side of a run: it selects the fault set,
// drives each replica's UP/DOWN/Byzantine state over a persistent
// control stream, listens for telemetry, and persists results once
// every replica is done.
package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/config"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/faults"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/obslog"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/randsrc"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/wire"
)

// Controller drives one run.
type Controller struct {
	params config.Params
	logger obslog.Logger
	sched  *FaultScheduler
	rng    randsrc.Source

	done      *DoneVector
	telemetry *TelemetryStore

	mu    sync.Mutex
	conns map[int]net.Conn
}

// New constructs a Controller for the given parameters. rng drives
// both fault-set selection and the FaultScheduler's wait-time sampling.
func New(params config.Params, logger obslog.Logger, rng randsrc.Source) *Controller {
	return &Controller{
		params:    params,
		logger:    logger,
		sched:     NewFaultScheduler(rng),
		rng:       rng,
		done:      NewDoneVector(params.Servers),
		telemetry: NewTelemetryStore(params.Servers),
		conns:     make(map[int]net.Conn),
	}
}

// Run executes a full controller lifecycle: accept connections, wait
// for readiness, start the run, inject faults, detect termination,
// and return the Results to persist.
func (c *Controller) Run(ctx context.Context) (*Results, error) {
	controlLn, err := net.Listen("tcp", fmt.Sprintf(":%d", c.params.ControllerPort))
	if err != nil {
		return nil, fmt.Errorf("controller: listening for control connections: %w", err)
	}
	defer controlLn.Close()

	telConn, err := net.ListenPacket("udp", fmt.Sprintf(":%d", c.params.ControllerPort))
	if err != nil {
		return nil, fmt.Errorf("controller: listening for telemetry: %w", err)
	}
	defer telConn.Close()

	telemetryCtx, cancelTelemetry := context.WithCancel(ctx)
	defer cancelTelemetry()
	go c.telemetryLoop(telemetryCtx, telConn)

	if err := c.acceptReplicas(controlLn); err != nil {
		return nil, err
	}
	c.logger.Info().Log("controller has connected to all replicas")

	for !c.telemetry.AllReady() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		time.Sleep(100 * time.Millisecond)
	}
	c.logger.Info().Log("controller received ready from all replicas")

	firstStarted := nowMS()
	c.broadcastAll(wire.ControlFrame{})
	allStarted := nowMS()

	faultSet := selectFaultSet(c.params.Servers, c.params.F, c.rng)
	byzantineCapable := c.params.SupportsByzantine()

	var wg sync.WaitGroup
	for id := 0; id < c.params.Servers; id++ {
		id := id
		conn := c.connFor(id)
		if faultSet[id] {
			wg.Add(1)
			if byzantineCapable {
				go func() { defer wg.Done(); c.unreliableLoop(ctx, conn, id, true) }()
			} else {
				go func() { defer wg.Done(); c.downedLoop(conn, id) }()
			}
		} else {
			wg.Add(1)
			go func() { defer wg.Done(); c.unreliableLoop(ctx, conn, id, false) }()
		}
	}
	wg.Wait()
	cancelTelemetry()

	return &Results{
		States:          c.telemetry.Snapshot(),
		Params:          c.params,
		FirstStartTime:  firstStarted,
		AllStartTime:    allStarted,
		PAgreementEvent: c.telemetry.PAgreementEvent(),
	}, nil
}

func (c *Controller) acceptReplicas(ln net.Listener) error {
	for i := 0; i < c.params.Servers; i++ {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("controller: accepting replica connection: %w", err)
		}
		reader := bufio.NewReader(conn)
		line, err := reader.ReadBytes('\n')
		if err != nil {
			conn.Close()
			return fmt.Errorf("controller: reading hello frame: %w", err)
		}
		hello, err := wire.DecodeHelloFrame(line)
		if err != nil {
			conn.Close()
			return fmt.Errorf("controller: decoding hello frame: %w", err)
		}
		c.mu.Lock()
		c.conns[hello.ID] = conn
		c.mu.Unlock()
	}
	return nil
}

func (c *Controller) connFor(id int) net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conns[id]
}

func (c *Controller) broadcastAll(frame wire.ControlFrame) {
	data, err := frame.Encode()
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.conns {
		_, _ = conn.Write(data)
	}
}

// downedLoop implements the permanently-crashed per-replica control
// loop: one final down-and-done frame, then the connection is closed.
func (c *Controller) downedLoop(conn net.Conn, id int) {
	frame := wire.ControlFrame{IsDown: true, IsDone: true}
	data, err := frame.Encode()
	if err == nil {
		_, _ = conn.Write(data)
	}
	_ = conn.Close()
	c.done.MarkDone(id)
	c.logger.Info().Int("replica_id", id).Log("controller sent permanent down command")
}

// unreliableLoop implements the honest/Byzantine-eligible per-replica
// control loop: toggle is_down each cycle, with the Byzantine flag
// sticky once sampled true.
func (c *Controller) unreliableLoop(ctx context.Context, conn net.Conn, id int, byzantineEligible bool) {
	isDown := false
	isByzantine := false
	defer conn.Close()

	for {
		wait := c.sched.WaitTime(isDown)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if c.done.IsDone(id) {
			// courtesy final UP message, so the replica doesn't stay
			// stuck down at exit.
			frame := wire.ControlFrame{IsByzantine: isByzantine}
			if data, err := frame.Encode(); err == nil {
				_, _ = conn.Write(data)
			}
			return
		}

		isDown = !isDown
		if byzantineEligible && !isByzantine {
			isByzantine = c.sched.BernoulliByzantine(c.params.ByzantineP)
		}

		frame := wire.ControlFrame{IsDown: isDown, IsByzantine: isByzantine}
		data, err := frame.Encode()
		if err != nil {
			continue
		}
		if _, err := conn.Write(data); err != nil {
			wrapped := fmt.Errorf("controller: writing control frame to replica %d: %w: %w", id, faults.ErrControlTransport, err)
			c.logger.Warning().Err(wrapped).Int("replica_id", id).Log("control transport error")
			c.done.MarkDone(id)
			return
		}
	}
}

// telemetryLoop consumes telemetry datagrams, tracks
// readiness/convergence/done state, and triggers a global shutdown
// broadcast once every replica is marked done.
func (c *Controller) telemetryLoop(ctx context.Context, conn net.PacketConn) {
	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			continue
		}
		frame, err := wire.DecodeTelemetryFrame(buf[:n])
		if err != nil {
			// malformed message: dropped, not propagated.
			continue
		}

		if frame.IsReadySignal() {
			c.telemetry.MarkReady(frame.ID)
			continue
		}

		c.telemetry.Append(frame, nowMS())

		if c.params.TerminateOnPAgreement && c.telemetry.PAgreementEvent() != nil {
			c.logger.Info().Log("controller is terminating replicas by p agreement")
			for id := 0; id < c.params.Servers; id++ {
				c.done.MarkDone(id)
			}
		}

		if frame.IsDone {
			c.done.MarkDone(frame.ID)
		}

		if c.done.AllDone() {
			c.broadcastAll(wire.ControlFrame{IsDown: true, IsDone: true})
			return
		}
	}
}

func nowMS() int64 {
	return timeNow().UnixNano() / int64(time.Millisecond)
}

// selectFaultSet draws f distinct replica ids uniformly without
// replacement, via partial Fisher-Yates.
func selectFaultSet(n, f int, rng randsrc.Source) []bool {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	for i := 0; i < f && i < n; i++ {
		j := i + rng.Intn(n-i)
		ids[i], ids[j] = ids[j], ids[i]
	}
	out := make([]bool, n)
	for i := 0; i < f && i < n; i++ {
		out[ids[i]] = true
	}
	return out
}

// Results is the persisted output of a run.
type Results struct {
	States          map[int][]StateRecord `json:"server_states"`
	Params          config.Params         `json:"params"`
	FirstStartTime  int64                 `json:"first_start_time"`
	AllStartTime    int64                 `json:"all_start_time"`
	PAgreementEvent *PAgreement           `json:"p_agreement,omitempty"`
}

// WriteFile persists r as self-describing indented JSON to path.
func (r *Results) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("controller: marshaling results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("controller: writing results to %s: %w", path, err)
	}
	return nil
}

// for testing purposes, mirroring catrate's timeNow override pattern.
var timeNow = time.Now
