package cryptstate

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCollector(t *testing.T) {
	stats := &Stats{Good: 42, Late: 3, Lost: 7}
	collector := NewStatsCollector(stats, prometheus.Labels{"session": "17"})

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(collector))

	expected := `
# HELP mumble_udp_good_packets_total Datagrams decrypted and authenticated successfully.
# TYPE mumble_udp_good_packets_total counter
mumble_udp_good_packets_total{session="17"} 42
# HELP mumble_udp_late_packets_total Datagrams that arrived out of order within the reorder window.
# TYPE mumble_udp_late_packets_total counter
mumble_udp_late_packets_total{session="17"} 3
# HELP mumble_udp_lost_packets_total Datagrams presumed lost based on nonce gaps.
# TYPE mumble_udp_lost_packets_total counter
mumble_udp_lost_packets_total{session="17"} 7
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected)))

	// The collector reads live values, not a snapshot.
	stats.Good++
	assert.Equal(t, 3, testutil.CollectAndCount(collector))
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(strings.Replace(expected, "} 42", "} 43", 1))))
}
