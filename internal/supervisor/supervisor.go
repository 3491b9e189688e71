// Package supervisor implements the master process: it launches one
// re-executed worker process per configured worker slot, pins each to a
// CPU, reaps and restarts crashed workers, and propagates INT/TERM/HUP to
// the fleet. It neither binds nor probes the listening port itself.
//
// Go has no fork() that preserves goroutine/runtime state, so "forking a
// worker" here means re-executing the same binary with a hidden
// -worker-id flag; each worker independently binds the listening port
// with SO_REUSEPORT rather than inheriting a descriptor.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/latchpoint/edgeward/internal/config"
)

const (
	workerIDFlag          = "-worker-id"
	healthCheckInterval   = 1 * time.Second
	statsLogInterval      = 60 * time.Second
	maxConsecutiveFailure = 5
	drainGrace            = 5 * time.Second
)

// Supervisor owns the worker fleet for one server run.
type Supervisor struct {
	store      *config.Store
	configPath string
	devMode    bool
	logger     zerolog.Logger

	mu      sync.Mutex
	workers map[int]*workerProc

	consecutiveFailures int
	restartCount        int
}

type workerProc struct {
	id    int
	cmd   *exec.Cmd
	dead  bool
}

// New constructs a Supervisor bound to cfg and ready to launch its fleet.
// configPath and devMode are forwarded to every re-executed worker so
// each loads the same configuration file the supervisor did.
func New(store *config.Store, configPath string, devMode bool, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		store:      store,
		configPath: configPath,
		devMode:    devMode,
		logger:     logger,
		workers:    make(map[int]*workerProc),
	}
}

// Run launches the configured worker count, then blocks servicing
// signals and worker liveness until a termination signal is handled or
// the restart-failure budget is exceeded. It returns the process exit code.
func (s *Supervisor) Run(ctx context.Context) int {
	cfg := s.store.Get()

	exe, err := os.Executable()
	if err != nil {
		s.logger.Error().Err(err).Msg("cannot resolve executable path for worker re-exec")
		return 1
	}

	for i := 0; i < cfg.WorkerProcesses; i++ {
		if err := s.spawn(exe, i); err != nil {
			s.logger.Error().Err(err).Int("worker_id", i).Msg("initial worker spawn failed")
			return 1
		}
	}

	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGPIPE, syscall.SIGCHLD)
	defer signal.Stop(sigCh)

	healthTicker := time.NewTicker(healthCheckInterval)
	defer healthTicker.Stop()
	statsTicker := time.NewTicker(statsLogInterval)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.drainAndExit(syscall.SIGTERM)
			return 0

		case sig := <-sigCh:
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM:
				s.drainAndExit(syscall.SIGTERM)
				return 0
			case syscall.SIGHUP:
				s.reload(exe)
			case syscall.SIGPIPE:
				// Ignored globally: a broken peer on any descriptor must
				// not take the supervisor down.
			case syscall.SIGCHLD:
				s.reapExited(exe)
			}

		case <-healthTicker.C:
			s.reapExited(exe)
			if s.consecutiveFailures >= maxConsecutiveFailure {
				s.logger.Error().Int("failures", s.consecutiveFailures).Msg("restart failure budget exceeded, shutting down")
				s.drainAndExit(syscall.SIGTERM)
				return 1
			}

		case <-statsTicker.C:
			s.logFleetStats()
		}
	}
}

func (s *Supervisor) spawn(exe string, id int) error {
	workerArgs := []string{workerIDFlag, fmt.Sprintf("%d", id), "-config", s.configPath}
	if s.devMode {
		workerArgs = append(workerArgs, "-dev")
	}
	cmd := exec.Command(exe, workerArgs...)
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return err
	}

	pinCPU(cmd.Process.Pid, id)

	s.mu.Lock()
	s.workers[id] = &workerProc{id: id, cmd: cmd}
	s.mu.Unlock()

	s.logger.Info().Int("worker_id", id).Int("pid", cmd.Process.Pid).Msg("worker started")
	return nil
}

// reapExited polls each tracked worker's process state without blocking
// and restarts any that have exited, on a fixed 1s cadence rather than
// relying solely on SIGCHLD delivery ordering.
func (s *Supervisor) reapExited(exe string) {
	s.mu.Lock()
	dead := make([]int, 0)
	for id, w := range s.workers {
		if w.dead {
			continue
		}
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(w.cmd.Process.Pid, &ws, syscall.WNOHANG, nil)
		if err != nil || pid == 0 {
			continue
		}
		w.dead = true
		dead = append(dead, id)
	}
	s.mu.Unlock()

	for _, id := range dead {
		s.logger.Warn().Int("worker_id", id).Msg("worker exited, restarting")
		if err := s.spawn(exe, id); err != nil {
			s.consecutiveFailures++
			s.logger.Error().Err(err).Int("worker_id", id).Msg("worker restart failed")
			continue
		}
		s.consecutiveFailures = 0
		s.restartCount++
	}
}

// reapOnly marks exited workers dead without restarting them, used
// while draining so a worker that exits after receiving SIGTERM is not
// immediately relaunched.
func (s *Supervisor) reapOnly() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.workers {
		if w.dead {
			continue
		}
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(w.cmd.Process.Pid, &ws, syscall.WNOHANG, nil)
		if err != nil || pid == 0 {
			continue
		}
		w.dead = true
	}
}

func (s *Supervisor) reload(exe string) {
	if err := s.store.Reload(); err != nil {
		s.logger.Error().Err(err).Msg("config reload failed, keeping previous configuration")
		return
	}
	s.logger.Info().Msg("configuration reloaded")

	s.mu.Lock()
	pids := make([]int, 0, len(s.workers))
	for _, w := range s.workers {
		if !w.dead {
			pids = append(pids, w.cmd.Process.Pid)
		}
	}
	s.mu.Unlock()

	for _, pid := range pids {
		_ = syscall.Kill(pid, syscall.SIGHUP)
	}
}

func (s *Supervisor) drainAndExit(sig syscall.Signal) {
	s.mu.Lock()
	pids := make([]int, 0, len(s.workers))
	for _, w := range s.workers {
		if !w.dead {
			pids = append(pids, w.cmd.Process.Pid)
		}
	}
	s.mu.Unlock()

	for _, pid := range pids {
		_ = syscall.Kill(pid, sig)
	}

	deadline := time.Now().Add(drainGrace)
	for time.Now().Before(deadline) {
		if s.allExited() {
			return
		}
		time.Sleep(100 * time.Millisecond)
		s.reapOnly()
	}

	s.mu.Lock()
	for _, w := range s.workers {
		if !w.dead {
			_ = syscall.Kill(w.cmd.Process.Pid, syscall.SIGKILL)
		}
	}
	s.mu.Unlock()
}

func (s *Supervisor) allExited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.workers {
		if !w.dead {
			return false
		}
	}
	return true
}

func (s *Supervisor) logFleetStats() {
	s.mu.Lock()
	alive := 0
	for _, w := range s.workers {
		if !w.dead {
			alive++
		}
	}
	restarts := s.restartCount
	s.mu.Unlock()

	s.logger.Info().Int("workers_alive", alive).Int("restart_count", restarts).Msg("fleet status")
}

