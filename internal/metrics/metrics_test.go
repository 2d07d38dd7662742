package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.FrameReceived("VI_")
	m.DecodeError()
	m.CommandSent("S3_", "3")
	m.SendError()
	m.Reconnected()
	m.SetConnected(true)
	m.SetActiveInstruments(3)
	m.SetPendingCancellations(1)
	m.TickForwarded()
	m.TickDropped()
	m.Cancellation(OutcomeSuperseded)
	m.JournalRows("ticks", 10)
	m.JournalFlushError()
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.FrameReceived("VI_")
	m.FrameReceived("VI_")
	m.FrameReceived("")
	m.CommandSent("S3_", "3")
	m.Cancellation(OutcomeUnsubscribed)
	m.SetConnected(true)
	m.SetActiveInstruments(2)
	m.JournalRows("vi_events", 5)

	if got := testutil.ToFloat64(m.framesReceived.WithLabelValues("VI_")); got != 2 {
		t.Errorf("frames_received{VI_} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.framesReceived.WithLabelValues("none")); got != 1 {
		t.Errorf("frames_received{none} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.commandsSent.WithLabelValues("S3_", "3")); got != 1 {
		t.Errorf("commands_sent{S3_,3} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.cancellations.WithLabelValues(OutcomeUnsubscribed)); got != 1 {
		t.Errorf("cancellations{unsubscribed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.connected); got != 1 {
		t.Errorf("connected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.activeInstruments); got != 2 {
		t.Errorf("active_instruments = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.journalRows.WithLabelValues("vi_events")); got != 5 {
		t.Errorf("journal_rows{vi_events} = %v, want 5", got)
	}

	n, err := testutil.GatherAndCount(reg, "vimonitor_frames_received_total")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if n != 2 {
		t.Errorf("frames_received series = %d, want 2", n)
	}
}

func TestNew_NilRegisterer(t *testing.T) {
	a := New(nil)
	b := New(nil)
	if a == nil || b == nil {
		t.Fatal("New(nil) returned nil")
	}
}
