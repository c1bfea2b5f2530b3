// Command replica runs a single consensus replica: it owns one
// protocol engine, broadcasts to its peers on a timer, demultiplexes
// inbound peer and control traffic, and reports telemetry back to the
// controller.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/config"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/consensus"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/obslog"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/randsrc"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/replica"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		paramsPath     = flag.String("params", "", "path to the run parameters JSON file")
		id             = flag.Int("id", -1, "this replica's id in [0, servers)")
		controllerHost = flag.String("controller-host", "127.0.0.1", "host the controller listens on")
		seed           = flag.Int64("seed", time.Now().UnixNano(), "seed for this replica's randomness source")
	)
	flag.Parse()

	if *paramsPath == "" || *id < 0 {
		fmt.Fprintln(os.Stderr, "replica: -params and -id are required")
		return 22
	}

	params, err := config.Load(*paramsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 22
	}
	if err := params.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 22
	}

	logFile, err := os.Create(fmt.Sprintf("replica-%d.log", *id))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logFile.Close()

	root := obslog.New(logFile, obslog.ParseLevel(params.LogLevel))
	logger := obslog.ForReplica(root, *id, string(params.Algorithm))

	rng := randsrc.New(*seed)
	engine, err := consensus.NewEngine(string(params.Algorithm), *id, params.Servers, params.F, params.Eps, params.K, rng)
	if err != nil {
		logger.Err(err).Log("failed to construct engine")
		return 22
	}

	peerAddrs := make(map[int]string, params.Servers-1)
	for i := 0; i < params.Servers; i++ {
		if i == *id {
			continue
		}
		peerAddrs[i] = params.PeerAddr(i)
	}
	_, listenPort, err := net.SplitHostPort(params.PeerAddr(*id))
	if err != nil {
		logger.Err(err).Log("failed to determine own listen port")
		return 22
	}

	controllerAddr := net.JoinHostPort(*controllerHost, strconv.Itoa(params.ControllerPort))

	rt, err := replica.New(
		*id, params, engine, rng, logger,
		net.JoinHostPort("0.0.0.0", listenPort),
		peerAddrs,
		controllerAddr,
		controllerAddr,
	)
	if err != nil {
		logger.Err(err).Log("failed to construct replica runtime")
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info().Log("replica is starting")
	if err := rt.Run(ctx); err != nil {
		logger.Err(err).Log("replica run failed")
		return 1
	}
	logger.Info().Log("replica is finished")
	return 0
}
