package observability

import (
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type rpcMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics

	vaultMetricsOnce sync.Once
	vaultRegistry    *VaultMetrics
)

// RPCMetrics returns the lazily-initialised registry recording JSON-RPC
// handler activity.
func RPCMetrics() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "amana",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "amana",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and status code.",
			}, []string{"method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "amana",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "amana",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the rate limiter.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.latency,
			rpcRegistry.throttles,
		)
	})
	return rpcRegistry
}

// Observe records the outcome of an RPC request. The status code should be the
// HTTP status ultimately written to the response writer.
func (m *rpcMetrics) Observe(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit" so dashboards stay consistent.
func (m *rpcMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// VaultMetrics wraps collectors tracking vault accounting health.
type VaultMetrics struct {
	deposits    prometheus.Counter
	withdrawals prometheus.Counter
	feesPaid    prometheus.Counter
	claims      prometheus.Counter
	totalAssets prometheus.Gauge
	totalShares prometheus.Gauge
	sharePrice  prometheus.Gauge
}

// Vault exposes the metrics registry for the vault module.
func Vault() *VaultMetrics {
	vaultMetricsOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			deposits: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "amana",
				Subsystem: "vault",
				Name:      "deposits_total",
				Help:      "Count of completed deposits.",
			}),
			withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "amana",
				Subsystem: "vault",
				Name:      "withdrawals_total",
				Help:      "Count of completed withdrawals and redemptions.",
			}),
			feesPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "amana",
				Subsystem: "vault",
				Name:      "fee_payments_total",
				Help:      "Count of performance fee payments to the fee recipient.",
			}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "amana",
				Subsystem: "vault",
				Name:      "reward_claims_total",
				Help:      "Count of non-zero reward claims.",
			}),
			totalAssets: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "amana",
				Subsystem: "vault",
				Name:      "total_assets",
				Help:      "Current asset value controlled by the vault in integer units.",
			}),
			totalShares: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "amana",
				Subsystem: "vault",
				Name:      "total_shares",
				Help:      "Outstanding vault shares.",
			}),
			sharePrice: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "amana",
				Subsystem: "vault",
				Name:      "share_price",
				Help:      "Assets per share; 1.0 at the bootstrap level.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.deposits,
			vaultRegistry.withdrawals,
			vaultRegistry.feesPaid,
			vaultRegistry.claims,
			vaultRegistry.totalAssets,
			vaultRegistry.totalShares,
			vaultRegistry.sharePrice,
		)
	})
	return vaultRegistry
}

func (m *VaultMetrics) RecordDeposit() {
	if m == nil {
		return
	}
	m.deposits.Inc()
}

func (m *VaultMetrics) RecordWithdrawal() {
	if m == nil {
		return
	}
	m.withdrawals.Inc()
}

func (m *VaultMetrics) RecordFeePayment() {
	if m == nil {
		return
	}
	m.feesPaid.Inc()
}

func (m *VaultMetrics) RecordClaim() {
	if m == nil {
		return
	}
	m.claims.Inc()
}

// RecordSupply refreshes the asset, share and implied price gauges.
func (m *VaultMetrics) RecordSupply(totalAssets, totalShares *big.Int) {
	if m == nil {
		return
	}
	assets := bigToFloat(totalAssets)
	shares := bigToFloat(totalShares)
	m.totalAssets.Set(assets)
	m.totalShares.Set(shares)
	if shares > 0 {
		m.sharePrice.Set(assets / shares)
	}
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, _ := new(big.Float).SetInt(value).Float64()
	if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
		return 0
	}
	return floatVal
}
