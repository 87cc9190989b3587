package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/mttbar/internal/db"
)

// RunLister is the part of the result store the store collector reads.
type RunLister interface {
	Runs(ctx context.Context) ([]db.Run, error)
}

const storeScrapeTimeout = 5 * time.Second

var (
	storedRunsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "store", "runs"),
		"Runs recorded in the result store.",
		nil, nil)
	storedEventsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "store", "run_events"),
		"Events of a stored run, by analysis stage.",
		[]string{"run", "strategy", "stage"}, nil)
	storedFinishedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "store", "run_finished"),
		"1 if the stored run finished, else 0.",
		[]string{"run", "strategy"}, nil)
)

// storeCollector reports the result store's contents on each scrape.
type storeCollector struct {
	store RunLister
}

// NewStoreCollector returns a collector exporting the runs in store as
// gauges.
func NewStoreCollector(store RunLister) prometheus.Collector {
	return storeCollector{store: store}
}

func (c storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- storedRunsDesc
	ch <- storedEventsDesc
	ch <- storedFinishedDesc
}

func (c storeCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), storeScrapeTimeout)
	defer cancel()

	runs, err := c.store.Runs(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(storedRunsDesc, err)
		return
	}
	ch <- prometheus.MustNewConstMetric(storedRunsDesc, prometheus.GaugeValue, float64(len(runs)))

	for _, r := range runs {
		for _, s := range []struct {
			stage string
			n     int64
		}{
			{"read", r.Events},
			{"selected", r.Selected},
			{"reconstructed", r.Reconstructed},
			{"skipped", r.Skipped},
		} {
			ch <- prometheus.MustNewConstMetric(storedEventsDesc, prometheus.GaugeValue,
				float64(s.n), r.ID, r.Strategy, s.stage)
		}

		finished := 0.0
		if r.FinishedAt != nil {
			finished = 1
		}
		ch <- prometheus.MustNewConstMetric(storedFinishedDesc, prometheus.GaugeValue, finished, r.ID, r.Strategy)
	}
}

// WatchStore registers a store collector on the registry.
func (m *Metrics) WatchStore(store RunLister) error {
	return m.registry.Register(NewStoreCollector(store))
}
