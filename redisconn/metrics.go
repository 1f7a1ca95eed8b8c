package redisconn

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

type connMetrics struct {
	requests   *metrics.Counter
	errors     *metrics.Counter
	reconnects *metrics.Counter
	faults     *metrics.Counter
	duration   *metrics.Histogram
}

func newConnMetrics(addr string) *connMetrics {
	return &connMetrics{
		requests:   metrics.GetOrCreateCounter(fmt.Sprintf(`redisnet_requests_total{addr=%q}`, addr)),
		errors:     metrics.GetOrCreateCounter(fmt.Sprintf(`redisnet_request_errors_total{addr=%q}`, addr)),
		reconnects: metrics.GetOrCreateCounter(fmt.Sprintf(`redisnet_reconnects_total{addr=%q}`, addr)),
		faults:     metrics.GetOrCreateCounter(fmt.Sprintf(`redisnet_faults_total{addr=%q}`, addr)),
		duration:   metrics.GetOrCreateHistogram(fmt.Sprintf(`redisnet_request_duration_seconds{addr=%q}`, addr)),
	}
}

func (m *connMetrics) request(nanos int64, err error) {
	m.requests.Inc()
	if err != nil {
		m.errors.Inc()
	}
	m.duration.Update(float64(nanos) / 1e9)
}
