package cryptstate

import "github.com/prometheus/client_golang/prometheus"

// StatsCollector exposes a Stats object as prometheus counters. The codec
// itself takes no locks, so the collector reads whatever values the
// owning connection goroutine has published; scrapes may lag by a packet.
type StatsCollector struct {
	stats *Stats
	good  *prometheus.Desc
	late  *prometheus.Desc
	lost  *prometheus.Desc
}

// NewStatsCollector wraps stats for registration with a prometheus
// registry. labels are attached to all three series, typically a session
// or connection id.
func NewStatsCollector(stats *Stats, labels prometheus.Labels) *StatsCollector {
	return &StatsCollector{
		stats: stats,
		good: prometheus.NewDesc(
			"mumble_udp_good_packets_total",
			"Datagrams decrypted and authenticated successfully.",
			nil, labels,
		),
		late: prometheus.NewDesc(
			"mumble_udp_late_packets_total",
			"Datagrams that arrived out of order within the reorder window.",
			nil, labels,
		),
		lost: prometheus.NewDesc(
			"mumble_udp_lost_packets_total",
			"Datagrams presumed lost based on nonce gaps.",
			nil, labels,
		),
	}
}

func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.good
	ch <- c.late
	ch <- c.lost
}

func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.good, prometheus.CounterValue, float64(c.stats.Good))
	ch <- prometheus.MustNewConstMetric(c.late, prometheus.CounterValue, float64(c.stats.Late))
	ch <- prometheus.MustNewConstMetric(c.lost, prometheus.CounterValue, float64(c.stats.Lost))
}
