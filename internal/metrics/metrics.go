// Package metrics exports run statistics in the Prometheus text format, for the
// node_exporter textfile collector or any scraper that reads files.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Norgate-AV/cachestat/internal/stats"
)

const namespace = "cachestat"

// Registry builds a registry holding the gauges for one run.
// A nil s records only the run duration.
func Registry(s *stats.RunStats, backend string, durationSeconds int64) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"backend": backend}

	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "run_duration_seconds",
		Help:        "Wall time between the start and finish of the run",
		ConstLabels: labels,
	})
	duration.Set(float64(durationSeconds))
	reg.MustRegister(duration)

	if s == nil {
		return reg
	}

	units := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "units",
		Help:        "Compilation units observed in the run by cache result",
		ConstLabels: labels,
	}, []string{"result"})
	units.WithLabelValues("local_hit").Set(float64(s.LocalHits))
	units.WithLabelValues("remote_hit").Set(float64(s.RemoteHits))
	units.WithLabelValues("miss").Set(float64(s.Misses))
	units.WithLabelValues("error").Set(float64(s.Errors))

	hitRate := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "hit_rate_ratio",
		Help:        "Fraction of units served from a cache tier",
		ConstLabels: labels,
	})
	if s.Total > 0 {
		hitRate.Set(float64(s.Hits) / float64(s.Total))
	}

	var missMillis int64
	for _, m := range s.TopMisses {
		missMillis += m.ElapsedMillis
	}

	missTime := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "miss_compile_seconds",
		Help:        "Total compile time spent on cache misses",
		ConstLabels: labels,
	})
	missTime.Set(float64(missMillis) / 1000)

	reg.MustRegister(units, hitRate, missTime)

	return reg
}

// WriteFile writes the registry for a run to path. An empty path is a no-op.
func WriteFile(path string, s *stats.RunStats, backend string, durationSeconds int64) error {
	if path == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, Registry(s, backend, durationSeconds)); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}

	return nil
}
