// Package janitor schedules the periodic maintenance sweeps a worker
// needs outside the hot request path: cache TTL purges, rate-limiter
// slot sweeps, and aggregate stats logging.
package janitor

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/latchpoint/edgeward/internal/cache"
	"github.com/latchpoint/edgeward/internal/ratelimit"
	"github.com/latchpoint/edgeward/internal/stats"
)

// Janitor owns the cron scheduler for one worker process.
type Janitor struct {
	cron *cron.Cron
}

// New schedules the standard maintenance entries and returns the
// unstarted Janitor; call Start to begin running them. reg may be nil,
// in which case no metrics are published.
func New(c *cache.Cache, limiter *ratelimit.Limiter, logger zerolog.Logger, reg *stats.Registry) *Janitor {
	sched := cron.New(cron.WithSeconds())

	sched.AddFunc("@every 30s", func() {
		c.PurgeExpired(time.Now())
	})

	sched.AddFunc("@every 30s", func() {
		limiter.Sweep(time.Now())
	})

	var prevCache cache.CacheStats
	var prevRate ratelimit.Stats

	sched.AddFunc("@every 60s", func() {
		cs := c.Snapshot()
		rs := limiter.Snapshot()
		logger.Info().
			Int64("cache_bytes", cs.BytesUsed).
			Uint64("cache_hits", cs.Hits).
			Uint64("cache_misses", cs.Misses).
			Uint64("cache_evictions", cs.Evictions).
			Uint64("rate_admitted", rs.Admitted).
			Uint64("rate_denied", rs.Denied).
			Uint64("rate_banned", rs.Banned).
			Msg("periodic stats")

		if reg != nil {
			reg.CacheHits.WithLabelValues("all").Add(float64(cs.Hits - prevCache.Hits))
			reg.CacheMisses.WithLabelValues("all").Add(float64(cs.Misses - prevCache.Misses))
			reg.CacheEvictions.Add(float64(cs.Evictions - prevCache.Evictions))
			reg.CacheBytes.Set(float64(cs.BytesUsed))
			reg.RateAdmitted.Add(float64(rs.Admitted - prevRate.Admitted))
			reg.RateDenied.Add(float64(rs.Denied - prevRate.Denied))
			reg.RateBanned.Add(float64(rs.Banned - prevRate.Banned))
			prevCache = cs
			prevRate = rs
		}
	})

	return &Janitor{cron: sched}
}

func (j *Janitor) Start() { j.cron.Start() }
func (j *Janitor) Stop()  { <-j.cron.Stop().Done() }
