// Package stats exposes the server's runtime counters as Prometheus
// metrics on an internal-only listener, kept separate from the public
// content-serving port.
package stats

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns every metric this server exports.
type Registry struct {
	reg *prometheus.Registry

	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheEvictions prometheus.Counter
	CacheBytes     prometheus.Gauge

	RateAdmitted prometheus.Counter
	RateDenied   prometheus.Counter
	RateBanned   prometheus.Counter

	Connections *prometheus.GaugeVec
	Requests    *prometheus.CounterVec
}

// New builds and registers every metric under a fresh registry, labeling
// per-worker series with the given workerID.
func New(workerID int) *Registry {
	reg := prometheus.NewRegistry()
	workerLabel := prometheus.Labels{"worker_id": itoa(workerID)}

	r := &Registry{
		reg: reg,
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgeward_cache_hits_total",
			Help: "Response cache hits by vary key.",
		}, []string{"vary"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgeward_cache_misses_total",
			Help: "Response cache misses by vary key.",
		}, []string{"vary"}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "edgeward_cache_evictions_total",
			Help:        "Cache slots displaced by collision or purged by TTL.",
			ConstLabels: workerLabel,
		}),
		CacheBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "edgeward_cache_bytes",
			Help:        "Bytes currently held in the response cache.",
			ConstLabels: workerLabel,
		}),
		RateAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "edgeward_ratelimit_admitted_total",
			Help:        "Connections admitted by the rate limiter.",
			ConstLabels: workerLabel,
		}),
		RateDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "edgeward_ratelimit_denied_total",
			Help:        "Connections denied by the rate limiter (ban, concurrency ceiling, or request window).",
			ConstLabels: workerLabel,
		}),
		RateBanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "edgeward_ratelimit_banned_total",
			Help:        "Bans imposed on source IPs after repeated request-window violations.",
			ConstLabels: workerLabel,
		}),
		Connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "edgeward_connections",
			Help: "Currently open connections.",
		}, []string{"worker_id"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgeward_requests_total",
			Help: "Completed requests by status class.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		r.CacheHits, r.CacheMisses, r.CacheEvictions, r.CacheBytes,
		r.RateAdmitted, r.RateDenied, r.RateBanned,
		r.Connections, r.Requests,
	)
	return r
}

// Handler returns the HTTP handler to mount on the internal listener.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func itoa(n int) string {
	if n < 0 {
		return "supervisor"
	}
	return strconv.Itoa(n)
}
