package redispool

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

type poolMetrics struct {
	acquires   *metrics.Counter
	dials      *metrics.Counter
	dialErrors *metrics.Counter
	stale      *metrics.Counter
	exhausted  *metrics.Counter
}

func newPoolMetrics(addr string) *poolMetrics {
	return &poolMetrics{
		acquires:   metrics.GetOrCreateCounter(fmt.Sprintf(`redisnet_pool_acquires_total{addr=%q}`, addr)),
		dials:      metrics.GetOrCreateCounter(fmt.Sprintf(`redisnet_pool_dials_total{addr=%q}`, addr)),
		dialErrors: metrics.GetOrCreateCounter(fmt.Sprintf(`redisnet_pool_dial_errors_total{addr=%q}`, addr)),
		stale:      metrics.GetOrCreateCounter(fmt.Sprintf(`redisnet_pool_stale_total{addr=%q}`, addr)),
		exhausted:  metrics.GetOrCreateCounter(fmt.Sprintf(`redisnet_pool_exhausted_total{addr=%q}`, addr)),
	}
}
