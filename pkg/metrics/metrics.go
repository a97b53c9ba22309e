package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 帳務引擎的 Prometheus 指標
// nil *Metrics 是合法的 no-op，測試不需要註冊 registry
type Metrics struct {
	transactionsPosted  *prometheus.CounterVec
	conflictRetries     prometheus.Counter
	statementsGenerated prometheus.Counter
	postDuration        *prometheus.HistogramVec
}

// New 建立並註冊所有指標
//
// 參數:
//
//	reg: Prometheus registerer (通常是 prometheus.DefaultRegisterer)
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transactionsPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "transactions_posted_total",
			Help:      "Completed transactions by type.",
		}, []string{"type"}),
		conflictRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "conflict_retries_total",
			Help:      "Write conflicts that triggered an internal retry.",
		}),
		statementsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "statements_generated_total",
			Help:      "Statements reconstructed and persisted.",
		}),
		postDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "post_duration_seconds",
			Help:      "End-to-end latency of posting a transaction, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}
	reg.MustRegister(m.transactionsPosted, m.conflictRetries, m.statementsGenerated, m.postDuration)
	return m
}

// ObservePost 記錄一筆成功過帳的類型與耗時
func (m *Metrics) ObservePost(transactionType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transactionsPosted.WithLabelValues(transactionType).Inc()
	m.postDuration.WithLabelValues(transactionType).Observe(elapsed.Seconds())
}

// ConflictRetried 記錄一次因寫入衝突觸發的重試
func (m *Metrics) ConflictRetried() {
	if m == nil {
		return
	}
	m.conflictRetries.Inc()
}

// StatementGenerated 記錄一份產生完成的對帳單
func (m *Metrics) StatementGenerated() {
	if m == nil {
		return
	}
	m.statementsGenerated.Inc()
}
