package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vimonitor"

// Cancellation outcomes.
const (
	OutcomeUnsubscribed = "unsubscribed"
	OutcomeSuperseded   = "superseded"
	OutcomeFailed       = "failed"
)

// Metrics holds the monitor's collectors.
type Metrics struct {
	framesReceived       *prometheus.CounterVec
	decodeErrors         prometheus.Counter
	commandsSent         *prometheus.CounterVec
	sendErrors           prometheus.Counter
	reconnects           prometheus.Counter
	connected            prometheus.Gauge
	activeInstruments    prometheus.Gauge
	pendingCancellations prometheus.Gauge
	ticksForwarded       prometheus.Counter
	ticksDropped         prometheus.Counter
	cancellations        *prometheus.CounterVec
	journalRows          *prometheus.CounterVec
	journalFlushErrors   prometheus.Counter
	journalDropped       prometheus.Counter
}

// New registers the collectors with reg. A nil reg uses a fresh registry so
// tests can create several instances.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		framesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames by tr_cd.",
		}, []string{"tr_cd"}),
		decodeErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Frames dropped because they could not be decoded.",
		}),
		commandsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_sent_total",
			Help:      "Subscribe and unsubscribe commands written to the stream.",
		}, []string{"tr_cd", "tr_type"}),
		sendErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Commands that failed to send.",
		}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Stream sessions established after a lost connection.",
		}),
		connected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the stream connection is up.",
		}),
		activeInstruments: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_instruments",
			Help:      "Instruments currently under VI.",
		}),
		pendingCancellations: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_cancellations",
			Help:      "Armed deferred unsubscribe checks.",
		}),
		ticksForwarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_forwarded_total",
			Help:      "Ticks forwarded for active instruments.",
		}),
		ticksDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_dropped_total",
			Help:      "Ticks dropped because the instrument was not active.",
		}),
		cancellations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancellations_total",
			Help:      "Fired cancellation checks by outcome.",
		}, []string{"outcome"}),
		journalRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_rows_total",
			Help:      "Rows written to the journal by table.",
		}, []string{"table"}),
		journalFlushErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_flush_errors_total",
			Help:      "Journal batches that failed to write.",
		}),
		journalDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_dropped_total",
			Help:      "Rows discarded because the journal queue was full.",
		}),
	}
}

func (m *Metrics) FrameReceived(trCd string) {
	if m == nil {
		return
	}
	if trCd == "" {
		trCd = "none"
	}
	m.framesReceived.WithLabelValues(trCd).Inc()
}

func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

func (m *Metrics) CommandSent(trCd, trType string) {
	if m == nil {
		return
	}
	m.commandsSent.WithLabelValues(trCd, trType).Inc()
}

func (m *Metrics) SendError() {
	if m == nil {
		return
	}
	m.sendErrors.Inc()
}

func (m *Metrics) Reconnected() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// SetConnected records whether the stream is up.
func (m *Metrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

func (m *Metrics) SetActiveInstruments(n int) {
	if m == nil {
		return
	}
	m.activeInstruments.Set(float64(n))
}

func (m *Metrics) SetPendingCancellations(n int) {
	if m == nil {
		return
	}
	m.pendingCancellations.Set(float64(n))
}

func (m *Metrics) TickForwarded() {
	if m == nil {
		return
	}
	m.ticksForwarded.Inc()
}

func (m *Metrics) TickDropped() {
	if m == nil {
		return
	}
	m.ticksDropped.Inc()
}

// Cancellation records a fired cancellation check. See the Outcome constants.
func (m *Metrics) Cancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) JournalRows(table string, n int) {
	if m == nil {
		return
	}
	m.journalRows.WithLabelValues(table).Add(float64(n))
}

func (m *Metrics) JournalFlushError() {
	if m == nil {
		return
	}
	m.journalFlushErrors.Inc()
}

func (m *Metrics) JournalDropped() {
	if m == nil {
		return
	}
	m.journalDropped.Inc()
}
