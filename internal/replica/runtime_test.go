package replica

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/config"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/consensus"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/obslog"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/randsrc"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/wire"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

// TestRuntime_TwoHonestReplicasAgree wires up two Runtimes against a
// minimal stand-in controller, and asserts both honest replicas
// terminate and agree on the same value, for n=2, f=0.
func TestRuntime_TwoHonestReplicasAgree(t *testing.T) {
	controllerPort := freePort(t)
	peerPorts := []int{freePort(t), freePort(t)}

	controllerAddr := net.JoinHostPort("127.0.0.1", strconv.Itoa(controllerPort))

	ctrlLn, err := net.Listen("tcp", controllerAddr)
	require.NoError(t, err)
	defer ctrlLn.Close()
	udpConn, err := net.ListenPacket("udp", controllerAddr)
	require.NoError(t, err)
	defer udpConn.Close()

	go stubController(t, ctrlLn, 2)

	params := config.Params{
		Servers: 2, F: 0, Algorithm: config.AlgorithmBenOr,
		BroadcastPeriodMS: 20, ControllerPort: controllerPort,
		PeerAddrs: []string{
			net.JoinHostPort("127.0.0.1", strconv.Itoa(peerPorts[0])),
			net.JoinHostPort("127.0.0.1", strconv.Itoa(peerPorts[1])),
		},
	}

	logger := obslog.New(io.Discard, obslog.ParseLevel("error"))

	runtimes := make([]*Runtime, 2)
	for i := range runtimes {
		engine, err := consensus.NewEngine(string(params.Algorithm), i, params.Servers, params.F, params.Eps, 1, randsrc.New(int64(i)))
		require.NoError(t, err)

		peerAddrs := map[int]string{}
		for j, addr := range params.PeerAddrs {
			if j != i {
				peerAddrs[j] = addr
			}
		}

		rt, err := New(i, params, engine, randsrc.New(int64(i)), logger,
			net.JoinHostPort("127.0.0.1", strconv.Itoa(peerPorts[i])),
			peerAddrs, controllerAddr, controllerAddr)
		require.NoError(t, err)
		runtimes[i] = rt
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, rt := range runtimes {
		go func(rt *Runtime) { _ = rt.Run(ctx) }(rt)
	}

	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) {
		if runtimes[0].done() && runtimes[1].done() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, runtimes[0].done())
	require.True(t, runtimes[1].done())
	require.Equal(t, runtimes[0].engine.Snapshot().V, runtimes[1].engine.Snapshot().V)
}

// stubController accepts n hello handshakes then immediately sends an
// "up" control frame to each, enough to unblock the ready handshake;
// it never sends a shutdown frame, relying on the engines' own
// termination to end the test.
func stubController(t *testing.T, ln net.Listener, n int) {
	for i := 0; i < n; i++ {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go func(conn net.Conn) {
			reader := bufio.NewReader(conn)
			if _, err := reader.ReadBytes('\n'); err != nil {
				return
			}
			frame := wire.ControlFrame{}
			data, err := frame.Encode()
			if err != nil {
				return
			}
			_, _ = conn.Write(data)
		}(conn)
	}
}
