// Command edgeward serves a static document root over HTTP/1.1 with a
// multi-process, event-driven worker fleet.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/latchpoint/edgeward/internal/config"
	"github.com/latchpoint/edgeward/internal/logging"
	"github.com/latchpoint/edgeward/internal/supervisor"
	"github.com/latchpoint/edgeward/internal/worker"
)

const defaultConfigPath = "./edgeward.yaml"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if wa, isWorker := parseWorkerArgs(args); isWorker {
		return runWorker(wa)
	}
	return runSupervisor(args)
}

// workerArgs is what a re-executed worker process needs; the supervisor
// passes all of it on the command line since a worker never reads its
// own CLI flags the way the supervisor's Usage() documents.
type workerArgs struct {
	id         int
	configPath string
	devMode    bool
}

// parseWorkerArgs recognizes the hidden -worker-id/-config/-dev flags
// the supervisor passes when re-executing itself; none of these are
// documented in Usage().
func parseWorkerArgs(args []string) (workerArgs, bool) {
	wa := workerArgs{configPath: defaultConfigPath}
	found := false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-worker-id":
			if i+1 >= len(args) {
				return workerArgs{}, false
			}
			id, err := strconv.Atoi(args[i+1])
			if err != nil {
				return workerArgs{}, false
			}
			wa.id = id
			found = true
			i++
		case "-config":
			if i+1 >= len(args) {
				return workerArgs{}, false
			}
			wa.configPath = args[i+1]
			i++
		case "-dev":
			wa.devMode = true
		}
	}
	return wa, found
}

func runSupervisor(args []string) int {
	cli, err := config.ParseCLI(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if cli.ShowHelp {
		fmt.Print(config.Usage())
		return 0
	}

	path := cli.ConfigPath
	if path == "" {
		path = defaultConfigPath
	}

	store, err := config.NewStore(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if cli.DevMode {
		store.Get().DevelopmentMode = true
	}

	if err := os.MkdirAll(store.Get().Root, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "edgeward: cannot ensure document root:", err)
		return 1
	}
	raiseFDLimit()

	logger := logging.New(store.Get().DevelopmentMode, -1)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sup := supervisor.New(store, path, cli.DevMode, logger)
	return sup.Run(ctx)
}

func runWorker(wa workerArgs) int {
	store, err := config.NewStore(wa.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if wa.devMode {
		store.Get().DevelopmentMode = true
	}

	logger := logging.New(store.Get().DevelopmentMode, wa.id)

	if err := worker.Run(wa.id, store, logger); err != nil {
		logger.Error().Err(err).Msg("worker exited with error")
		return 1
	}
	return 0
}

// raiseFDLimit lifts RLIMIT_NOFILE to its hard ceiling so a busy worker
// fleet does not starve on descriptors before max_connections is reached.
func raiseFDLimit() {
	var rl syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rl); err != nil {
		return
	}
	rl.Cur = rl.Max
	_ = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rl)
}
