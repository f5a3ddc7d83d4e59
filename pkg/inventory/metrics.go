package inventory

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the ledger's Prometheus collectors. A nil *Metrics records nothing.
// 在庫台帳のPrometheusメトリクス
type Metrics struct {
	movements    *prometheus.CounterVec
	moved        *prometheus.CounterVec
	reservations *prometheus.CounterVec
	transfers    *prometheus.CounterVec
	alerts       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
// メトリクスを作成して登録
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockledger",
			Name:      "movements_total",
			Help:      "Stock movements recorded, by movement type.",
		}, []string{"movement_type"}),
		moved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockledger",
			Name:      "moved_units_total",
			Help:      "Units moved, by movement type.",
		}, []string{"movement_type"}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockledger",
			Name:      "reservations_total",
			Help:      "Reservation calls, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockledger",
			Name:      "transfer_transitions_total",
			Help:      "Transfer status transitions, by target status.",
		}, []string{"status"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockledger",
			Name:      "alerts_raised_total",
			Help:      "Alerts materialised, by alert type.",
		}, []string{"alert_type"}),
	}
	if reg != nil {
		reg.MustRegister(m.movements, m.moved, m.reservations, m.transfers, m.alerts)
	}
	return m
}

func (m *Metrics) movementRecorded(mv *StockMovement) {
	if m == nil || mv == nil {
		return
	}
	m.movements.WithLabelValues(string(mv.MovementType)).Inc()
	m.moved.WithLabelValues(string(mv.MovementType)).Add(float64(mv.Quantity))
}

func (m *Metrics) reservation(operation string, kind OutcomeKind) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(operation, kind.String()).Inc()
}

func (m *Metrics) transferTransition(status TransferStatus) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) alertRaised(alertType AlertType) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(string(alertType)).Inc()
}
