package metrics

import (
	"net/http"

	"github.com/can-bridge/udp2can/pkg/intfmap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "udp2can"

// Collector exports the shape of the analyzed mapping table.
type Collector struct {
	entries   prometheus.Gauge
	groups    *prometheus.GaugeVec
	distinct  *prometheus.GaugeVec
	contended *prometheus.GaugeVec
}

func NewCollector() *Collector {
	return &Collector{
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mapping_entries",
			Help:      "Number of entries in the interface mapping table.",
		}),
		groups: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resource_groups",
			Help:      "Connection tally per direction used to size forwarding workers.",
		}, []string{"direction"}),
		distinct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "distinct_resources",
			Help:      "Number of distinct resource keys per direction.",
		}, []string{"direction"}),
		contended: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "contended_entries",
			Help:      "Number of entries whose resource needs a mutex, per direction.",
		}, []string{"direction"}),
	}
}

func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.entries, c.groups, c.distinct, c.contended} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// Observe records the table size and both grouping passes.
func (c *Collector) Observe(entries int, a intfmap.Analysis) {
	c.entries.Set(float64(entries))
	for _, p := range []intfmap.Pass{a.Outbound, a.Inbound} {
		dir := string(p.Direction)
		c.groups.WithLabelValues(dir).Set(float64(p.Count))
		c.distinct.WithLabelValues(dir).Set(float64(p.DistinctKeys))
		c.contended.WithLabelValues(dir).Set(float64(p.Contended()))
	}
}

// NewRegistry returns a registry carrying c plus the Go and process
// collectors, and the handler serving it.
func NewRegistry(c *Collector) (*prometheus.Registry, http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := c.Register(reg); err != nil {
		return nil, nil, err
	}
	if err := reg.Register(prometheus.NewGoCollector()); err != nil {
		return nil, nil, err
	}
	if err := reg.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{})); err != nil {
		return nil, nil, err
	}
	return reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
