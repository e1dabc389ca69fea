/*

Package metrics exposes the keeper's Prometheus metrics on a dedicated registry.

*/

package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "farmworker"

type Metrics struct {
	registry *prometheus.Registry

	Cycles         prometheus.Counter
	Reinvests      prometheus.Counter
	Kills          prometheus.Counter
	ActionFailures *prometheus.CounterVec // by action type

	CycleDuration   prometheus.Histogram
	BountyEarned    prometheus.Counter   // reward token, whole units
	PrizeEarned     prometheus.Counter   // vault token, whole units
	PositionHealth  *prometheus.GaugeVec // debt ratio percent, by position id
	PositionsAtRisk prometheus.Gauge
	WorkerBalance   *prometheus.GaugeVec // total staked balance, by worker
	WorkerPending   *prometheus.GaugeVec // pending reward, by worker
	VaultTotalToken prometheus.Gauge
	BlockHeight     prometheus.Gauge
}

// New creates the keeper metrics and registers them on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "cycles_total",
			Help:      "number of keeper cycles run",
		}),
		Reinvests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "reinvests_total",
			Help:      "number of successful reinvests",
		}),
		Kills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "kills_total",
			Help:      "number of successful position kills",
		}),
		ActionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "action_failures_total",
			Help:      "number of keeper actions that reverted",
		}, []string{"action"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "cycle_duration_seconds",
			Help:      "wall-clock duration of a keeper cycle",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		BountyEarned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "bounty_earned",
			Help:      "reinvest bounty earned by the keeper, in reward tokens",
		}),
		PrizeEarned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "prize_earned",
			Help:      "kill prize earned by the keeper, in vault tokens",
		}),
		PositionHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "position_debt_ratio_percent",
			Help:      "debt over health of an open position, in percent",
		}, []string{"position"}),
		PositionsAtRisk: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "positions_at_risk",
			Help:      "open positions above the at-risk debt ratio",
		}),
		WorkerBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "total_balance",
			Help:      "farming tokens staked by the worker",
		}, []string{"worker"}),
		WorkerPending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "pending_reward",
			Help:      "reward the next reinvest would harvest",
		}, []string{"worker"}),
		VaultTotalToken: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "total_token",
			Help:      "value owed to vault lenders, in vault tokens",
		}),
		BlockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "block_height",
			Help:      "latest block of the simulated chain",
		}),
	}

	m.registry = prometheus.NewRegistry()
	err := errors.Join(
		m.registry.Register(m.Cycles),
		m.registry.Register(m.Reinvests),
		m.registry.Register(m.Kills),
		m.registry.Register(m.ActionFailures),

		m.registry.Register(m.CycleDuration),
		m.registry.Register(m.BountyEarned),
		m.registry.Register(m.PrizeEarned),
		m.registry.Register(m.PositionHealth),
		m.registry.Register(m.PositionsAtRisk),
		m.registry.Register(m.WorkerBalance),
		m.registry.Register(m.WorkerPending),
		m.registry.Register(m.VaultTotalToken),
		m.registry.Register(m.BlockHeight),
	)
	return m, err
}

// Registry returns the registry holding the keeper metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
