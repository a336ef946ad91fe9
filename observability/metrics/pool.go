package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"lendingpool/native/pool"
)

// PoolMetrics exposes the accounting buckets of every served pool as gauges.
type PoolMetrics struct {
	buckets    *prometheus.GaugeVec
	sharePrice *prometheus.GaugeVec
	lenderAPY  *prometheus.GaugeVec
	functional *prometheus.GaugeVec
	reconcile  *prometheus.CounterVec
}

var (
	poolOnce     sync.Once
	poolRegistry *PoolMetrics
)

// Pool returns the lazily-initialised pool gauge registry.
func Pool() *PoolMetrics {
	poolOnce.Do(func() {
		poolRegistry = &PoolMetrics{
			buckets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lendingpool_bucket_value",
				Help: "Pool accounting bucket in the asset's smallest unit.",
			}, []string{"pool", "bucket"}),
			sharePrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lendingpool_share_price",
				Help: "Value of one whole share in the asset's smallest unit.",
			}, []string{"pool"}),
			lenderAPY: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lendingpool_lender_apy_ratio",
				Help: "Current lender APY as a ratio.",
			}, []string{"pool"}),
			functional: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "lendingpool_functional",
				Help: "1 while the pool meets its health policy.",
			}, []string{"pool"}),
			reconcile: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lendingpool_reconcile_total",
				Help: "Checkpoint reconciliations by outcome.",
			}, []string{"pool", "outcome"}),
		}
		prometheus.MustRegister(
			poolRegistry.buckets,
			poolRegistry.sharePrice,
			poolRegistry.lenderAPY,
			poolRegistry.functional,
			poolRegistry.reconcile,
		)
	})
	return poolRegistry
}

// ObserveStats publishes every bucket of stats under name.
func (m *PoolMetrics) ObserveStats(name string, stats pool.Stats) {
	if m == nil {
		return
	}
	for bucket, value := range map[string]*big.Int{
		"custody":          stats.Custody,
		"liquid":           stats.Liquid,
		"allocated":        stats.Allocated,
		"strategized":      stats.Strategized,
		"total_fund":       stats.TotalFund,
		"manager_revenue":  stats.ManagerRevenue,
		"protocol_revenue": stats.ProtocolRevenue,
		"total_shares":     stats.TotalShares,
		"staked_shares":    stats.StakedShares,
		"pool_funds_limit": stats.PoolFundsLimit,
	} {
		m.buckets.WithLabelValues(name, bucket).Set(toFloat(value))
	}
}

// ObserveHealth publishes the derived health figures of a pool.
func (m *PoolMetrics) ObserveHealth(name string, sharePrice *big.Int, lenderAPY pool.Percent, functional bool) {
	if m == nil {
		return
	}
	m.sharePrice.WithLabelValues(name).Set(toFloat(sharePrice))
	m.lenderAPY.WithLabelValues(name).Set(float64(lenderAPY) / float64(pool.OneHundredPercent))
	healthy := 0.0
	if functional {
		healthy = 1
	}
	m.functional.WithLabelValues(name).Set(healthy)
}

// RecordReconcile counts one checkpoint reconciliation.
func (m *PoolMetrics) RecordReconcile(name string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "mismatch"
	}
	m.reconcile.WithLabelValues(name, outcome).Inc()
}

func toFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
