// Package worker wires one worker process's full request-serving stack
// together: buffer pool, rate limiter, path resolver, response cache,
// HTTP handler, connection loop, janitor, and metrics, then runs the
// loop until shut down.
package worker

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/latchpoint/edgeward/internal/bufpool"
	"github.com/latchpoint/edgeward/internal/cache"
	"github.com/latchpoint/edgeward/internal/config"
	"github.com/latchpoint/edgeward/internal/httpproto"
	"github.com/latchpoint/edgeward/internal/janitor"
	"github.com/latchpoint/edgeward/internal/logging"
	"github.com/latchpoint/edgeward/internal/pathresolver"
	"github.com/latchpoint/edgeward/internal/ratelimit"
	"github.com/latchpoint/edgeward/internal/stats"
	"github.com/latchpoint/edgeward/internal/workerloop"
)

const (
	readBufferSize = 8 * 1024
	listenBacklog  = 1024
)

// Run builds and runs one worker process's event loop. It blocks until
// the loop's Run returns (normally only on a fatal I/O error, since
// graceful shutdown is driven by the supervisor killing the process).
func Run(id int, store *config.Store, logger zerolog.Logger) error {
	cfg := store.Get()

	resolver, err := pathresolver.New(cfg.Root)
	if err != nil {
		return err
	}

	respCache := cache.New(cfg.CacheSize, time.Duration(cfg.CacheTimeout)*time.Second)
	handler := httpproto.NewHandler(resolver, respCache, cfg.KeepAliveTimeout)

	limiter := ratelimit.New(ratelimit.Config{
		DevelopmentMode: cfg.DevelopmentMode,
	})

	pool := bufpool.New(cfg.MaxConnections, readBufferSize)

	listenFD, err := workerloop.Listen(cfg.Port, listenBacklog)
	if err != nil {
		return err
	}

	accessLog, accessFile, err := openAccessLogger(cfg.Log, logger)
	if err != nil {
		return err
	}
	if accessFile != nil {
		defer accessFile.Close()
	}

	registry := stats.New(id)
	stopMetrics := serveMetrics(cfg.MetricsPort, id, registry, logger)
	defer stopMetrics()

	loop, err := workerloop.New(workerloop.Config{
		ListenFD:       listenFD,
		BufPool:        pool,
		Limiter:        limiter,
		Handler:        handler,
		MaxConnections: cfg.MaxConnections,
		IdleTimeout:    time.Duration(cfg.KeepAliveTimeout) * time.Second,
		Logger:         logger,
		AccessLog:      accessLog,
		WorkerID:       id,
		StatsRegistry:  registry,
	})
	if err != nil {
		return err
	}

	j := janitor.New(respCache, limiter, logger, registry)
	j.Start()
	defer j.Stop()

	logger.Info().Int("port", cfg.Port).Msg("worker ready")
	return loop.Run()
}

// serveMetrics starts the registry's scrape endpoint on an internal-only
// listener, offset per worker so every worker in the fleet can bind its
// own without colliding on a shared port. It returns a func that shuts
// the listener down; a bind failure is logged and otherwise ignored,
// since a stalled metrics endpoint must never take the content path down
// with it.
func serveMetrics(basePort, id int, registry *stats.Registry, logger zerolog.Logger) func() {
	addr := fmt.Sprintf("127.0.0.1:%d", basePort+id)
	srv := &http.Server{Addr: addr, Handler: registry.Handler()}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Str("addr", addr).Msg("metrics listener failed")
		}
	}()

	return func() { srv.Close() }
}

func openAccessLogger(path string, logger zerolog.Logger) (workerloop.AccessLogFunc, interface{ Close() error }, error) {
	f, err := logging.OpenAccessLog(path)
	if err != nil {
		return nil, nil, err
	}
	fileLogger := zerolog.New(f).With().Timestamp().Logger()
	fn := func(connID, peerIP, method, path string, status int, bytes int64, dur time.Duration, cacheHit bool) {
		logging.LogAccess(fileLogger, logging.AccessEvent{
			ConnID: connID, PeerIP: peerIP, Method: method, Path: path,
			Status: status, Bytes: bytes, Duration: dur, CacheHit: cacheHit,
		})
	}
	return fn, f, nil
}
