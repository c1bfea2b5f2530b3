// Command controller runs the fault-orchestration side of a run: it
// loads run parameters, waits for every replica to connect and report
// ready, injects UP/DOWN/Byzantine state over time, detects global
// termination, and persists results.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/config"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/controller"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/faults"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/obslog"
	"github.com/Dariusrussellkish/eventual-consensus-simulation/internal/randsrc"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		paramsPath = flag.String("params", "", "path to the run parameters JSON file")
		outputPath = flag.String("output", "results.json", "path to write the persisted results JSON")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "seed for the controller's randomness source")
	)
	flag.Parse()

	if *paramsPath == "" {
		fmt.Fprintln(os.Stderr, "controller: -params is required")
		return 22
	}

	params, err := config.Load(*paramsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 22
	}
	if err := params.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, faults.ErrConfiguration) {
			return 22
		}
		return 1
	}

	logFile, err := os.Create("controller.log")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logFile.Close()

	root := obslog.New(logFile, obslog.ParseLevel(params.LogLevel))
	logger := obslog.ForController(root, string(params.Algorithm), params.Servers)
	logger.Info().Log("controller is starting")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ctrl := controller.New(params, logger, randsrc.New(*seed))
	results, err := ctrl.Run(ctx)
	if err != nil {
		logger.Err(err).Log("controller run failed")
		return 1
	}

	if err := results.WriteFile(*outputPath); err != nil {
		logger.Err(err).Log("controller failed to persist results")
		return 1
	}

	logger.Info().Log("controller is finished")
	return 0
}
