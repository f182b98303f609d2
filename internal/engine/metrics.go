package engine

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bisondb/bison/internal/bisonerr"
)

var (
	cacheHitsDesc = prometheus.NewDesc(
		"bison_cache_hits_total", "Number of result-cache lookups that hit.", nil, nil,
	)
	cacheMissesDesc = prometheus.NewDesc(
		"bison_cache_misses_total", "Number of result-cache lookups that missed.", nil, nil,
	)
)

// Describe implements prometheus.Collector.
func (e *Engine) Describe(ch chan<- *prometheus.Desc) {
	e.verbCalls.Describe(ch)
	ch <- cacheHitsDesc
	ch <- cacheMissesDesc
}

// Collect implements prometheus.Collector, forwarding the per-verb
// counters and reading the cache's cumulative hit/miss counts at scrape
// time.
func (e *Engine) Collect(ch chan<- prometheus.Metric) {
	e.verbCalls.Collect(ch)

	hits, misses := e.cache.Stats()
	ch <- prometheus.MustNewConstMetric(cacheHitsDesc, prometheus.CounterValue, float64(hits))
	ch <- prometheus.MustNewConstMetric(cacheMissesDesc, prometheus.CounterValue, float64(misses))
}

var _ prometheus.Collector = (*Engine)(nil)

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, bisonerr.Wrap(bisonerr.IoError, err, "read %q", path)
	}

	return data, nil
}
