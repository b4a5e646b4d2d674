package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor 下单守卫的Prometheus指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 订单指标
	ordersRecorded *prometheus.CounterVec
	ordersAccepted *prometheus.CounterVec
	ordersRejected *prometheus.CounterVec

	// 历史与持久化
	historyEntries *prometheus.GaugeVec
	persistLatency prometheus.Histogram

	// 规则热更新
	ruleReloads *prometheus.CounterVec
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "guard",
		Subsystem: "orders",
	}
}

// New 创建新的Monitor实例，使用独立registry
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Monitor{
		registry: reg,

		ordersRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "recorded_total",
			Help:      "已记录的订单总数",
		}, []string{"symbol"}),
		ordersAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "accepted_total",
			Help:      "通过规则校验的订单总数",
		}, []string{"symbol"}),
		ordersRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rejected_total",
			Help:      "被拒绝的订单总数（按原因）",
		}, []string{"symbol", "reason"}),

		historyEntries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "history_entries",
			Help:      "内存中保留的历史条数",
		}, []string{"symbol"}),
		persistLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "snapshot_persist_seconds",
			Help:      "快照落盘耗时（秒）",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		ruleReloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rule_reloads_total",
			Help:      "动态规则重载次数",
		}, []string{"result"}),
	}
}

func (m *Monitor) RecordSubmission(symbol string) {
	m.ordersRecorded.WithLabelValues(symbol).Inc()
}

func (m *Monitor) RecordAccepted(symbol string) {
	m.ordersAccepted.WithLabelValues(symbol).Inc()
}

func (m *Monitor) RecordRejected(symbol, reason string) {
	m.ordersRejected.WithLabelValues(symbol, reason).Inc()
}

func (m *Monitor) SetHistorySize(symbol string, n int) {
	m.historyEntries.WithLabelValues(symbol).Set(float64(n))
}

func (m *Monitor) ObservePersist(d time.Duration) {
	m.persistLatency.Observe(d.Seconds())
}

// RecordRuleReload result: ok / error
func (m *Monitor) RecordRuleReload(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.ruleReloads.WithLabelValues(result).Inc()
}

// Registry 暴露底层registry（测试用）
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 处理器
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
