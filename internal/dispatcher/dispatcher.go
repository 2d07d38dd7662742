package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/vi-monitor/internal/connection"
	"github.com/rickgao/vi-monitor/internal/metrics"
	"github.com/rickgao/vi-monitor/internal/protocol"
	"github.com/rickgao/vi-monitor/internal/registry"
	"github.com/rickgao/vi-monitor/internal/scheduler"
)

// Dispatcher routes stream frames and owns the subscription lifecycle.
type Dispatcher struct {
	cfg     Config
	enc     *protocol.Encoder
	sender  Sender
	reg     *registry.Registry
	sched   *scheduler.Scheduler
	sinks   []Sink
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu    sync.Mutex
	stats Stats
}

var _ connection.Handler = (*Dispatcher)(nil)

// New creates a Dispatcher. Sinks are called in order for every VI event
// and forwarded tick.
func New(
	cfg Config,
	enc *protocol.Encoder,
	sender Sender,
	reg *registry.Registry,
	sched *scheduler.Scheduler,
	m *metrics.Metrics,
	logger *slog.Logger,
	sinks ...Sink,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultConfig().GracePeriod
	}

	return &Dispatcher{
		cfg:     cfg,
		enc:     enc,
		sender:  sender,
		reg:     reg,
		sched:   sched,
		sinks:   sinks,
		metrics: m,
		logger:  logger.With("component", "dispatcher"),
	}
}

// OnConnected subscribes the session to VI events for all instruments and
// re-subscribes ticks for every instrument still active. Subscriptions are
// connection-scoped, so pending cancellations from the previous session are
// dropped.
func (d *Dispatcher) OnConnected(ctx context.Context, s connection.Session) error {
	log := d.logger.With("session_id", s.ID)

	if s.Reconnect {
		dropped := 0
		for _, p := range d.sched.Pending() {
			if d.sched.Cancel(p.Instrument.Code) {
				dropped++
			}
		}
		if dropped > 0 {
			log.Info("dropped pending cancellations from previous session", "count", dropped)
		}
		d.metrics.SetPendingCancellations(d.sched.Len())
	}

	if err := d.send(d.enc.EncodeRootVISubscribe(), protocol.TrCdVI, ""); err != nil {
		return fmt.Errorf("subscribe VI feed: %w", err)
	}

	active := d.reg.Active()
	for _, rec := range active {
		inst := rec.Instrument
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.send(d.enc.EncodeSubscribe(inst), protocol.TickTrCd(inst.Exchange), inst.Code); err != nil {
			return fmt.Errorf("resubscribe %s: %w", inst.Code, err)
		}
	}

	log.Info("stream subscriptions issued",
		"reconnect", s.Reconnect,
		"resubscribed", len(active),
	)
	return nil
}

// OnFrame decodes and routes one frame. Malformed frames are logged and
// dropped.
func (d *Dispatcher) OnFrame(f connection.Frame) {
	d.count(func(s *Stats) { s.FramesReceived++ })

	env, err := protocol.Decode(f.Data)
	if err != nil {
		d.decodeFailed(err, "", len(f.Data))
		return
	}
	d.metrics.FrameReceived(env.Category())

	if env.IsAck() {
		d.handleAck(env)
	}
	if !env.HasBody() {
		return
	}

	switch trCd := env.Category(); {
	case trCd == protocol.TrCdVI:
		d.handleVI(env, f)
	case protocol.IsTickCategory(trCd):
		d.handleTick(env, f)
	default:
		d.count(func(s *Stats) { s.Ignored++ })
		d.logger.Debug("ignoring frame", "tr_cd", trCd)
	}
}

func (d *Dispatcher) handleAck(env protocol.Envelope) {
	d.count(func(s *Stats) { s.Acks++ })

	attrs := []any{
		"tr_cd", env.Header.TrCd,
		"tr_key", env.Header.TrKey,
		"rsp_cd", env.Header.RspCd,
		"rsp_msg", env.Header.RspMsg,
	}
	switch env.Header.RspCd {
	case protocol.RspSubscribed:
		d.logger.Info("subscription acknowledged", attrs...)
	case protocol.RspUnsubscribed:
		d.logger.Info("unsubscription acknowledged", attrs...)
	default:
		d.logger.Warn("command rejected", attrs...)
	}
}

func (d *Dispatcher) handleVI(env protocol.Envelope, f connection.Frame) {
	ev, err := protocol.DecodeVI(env)
	if err != nil {
		d.decodeFailed(err, env.Category(), len(f.Data))
		return
	}
	d.count(func(s *Stats) { s.VIEvents++ })

	log := d.logger.With("code", ev.Instrument.Code, "tr_cd", protocol.TrCdVI)
	if ev.Status == protocol.VIUnrecognized {
		log.Warn("unrecognized vi status", "vi_gubun", ev.RawStatus)
	}
	if ev.PriceErr != nil {
		log.Warn("vi price field unreadable, using zero", "error", ev.PriceErr)
	}

	tr := d.reg.Apply(ev)
	inst := tr.Record.Instrument

	switch tr.Action {
	case registry.ActionSubscribe:
		d.count(func(s *Stats) { s.Subscribes++ })
		log.Info("vi triggered, subscribing ticks",
			"status", ev.Status,
			"exchange", ev.ExchangeName,
			"trigger_price", ev.TriggerPrice,
			"time", ev.Time,
		)
		if err := d.send(d.enc.EncodeSubscribe(inst), protocol.TickTrCd(inst.Exchange), inst.Code); err != nil {
			// The record stays; the next session re-subscribes it.
			log.Error("tick subscribe failed", "error", err)
		}

	case registry.ActionRefresh:
		log.Debug("vi refreshed", "status", ev.Status, "previous", tr.Previous)

	case registry.ActionRelease:
		d.count(func(s *Stats) { s.Releases++ })
		p, ok := d.sched.Arm(inst, d.cfg.GracePeriod, d.fireCancellation)
		if ok {
			log.Info("vi released, cancellation armed", "fire_at", p.FireAt)
		} else {
			log.Warn("vi released while scheduler stopped")
		}

	case registry.ActionNone:
		if ev.Status == protocol.VIReleased {
			log.Debug("release for idle instrument ignored")
		}
	}

	d.metrics.SetActiveInstruments(d.reg.Len())
	d.metrics.SetPendingCancellations(d.sched.Len())

	u := VIUpdate{Event: ev, Transition: tr, SessionID: f.SessionID, ReceivedAt: f.ReceivedAt}
	for _, s := range d.sinks {
		s.OnVI(u)
	}
}

func (d *Dispatcher) handleTick(env protocol.Envelope, f connection.Frame) {
	tick, err := protocol.DecodeTick(env)
	if err != nil {
		d.decodeFailed(err, env.Category(), len(f.Data))
		return
	}

	rec, ok := d.reg.Get(tick.Code)
	if !ok {
		d.count(func(s *Stats) { s.TicksDropped++ })
		d.metrics.TickDropped()
		d.logger.Debug("dropping tick for inactive instrument", "code", tick.Code, "tr_cd", tick.TrCd)
		return
	}

	d.count(func(s *Stats) { s.TicksForwarded++ })
	d.metrics.TickForwarded()

	u := TickUpdate{Event: tick, Record: rec, SessionID: f.SessionID, ReceivedAt: f.ReceivedAt}
	for _, s := range d.sinks {
		s.OnTick(u)
	}
}

// fireCancellation runs on a scheduler goroutine. The registry check and the
// unsubscribe happen under the registry lock so a concurrent trigger is
// ordered either entirely before or entirely after.
func (d *Dispatcher) fireCancellation(p scheduler.Pending) {
	inst := p.Instrument
	log := d.logger.With("code", inst.Code, "tr_cd", protocol.TickTrCd(inst.Exchange))

	var sendErr error
	idle := d.reg.WhenIdle(inst.Code, func() {
		sendErr = d.send(d.enc.EncodeUnsubscribe(inst), protocol.TickTrCd(inst.Exchange), inst.Code)
	})
	defer d.metrics.SetPendingCancellations(d.sched.Len())

	switch {
	case !idle:
		d.count(func(s *Stats) { s.Superseded++ })
		d.metrics.Cancellation(metrics.OutcomeSuperseded)
		log.Info("cancellation superseded by re-trigger", "armed_at", p.ArmedAt)
	case sendErr != nil:
		d.metrics.Cancellation(metrics.OutcomeFailed)
		if errors.Is(sendErr, connection.ErrNotConnected) {
			log.Warn("unsubscribe skipped, not connected")
			return
		}
		log.Error("unsubscribe failed", "error", sendErr)
	default:
		d.count(func(s *Stats) { s.Unsubscribes++ })
		d.metrics.Cancellation(metrics.OutcomeUnsubscribed)
		log.Info("tick subscription released after grace period", "armed_at", p.ArmedAt)
	}
}

func (d *Dispatcher) send(env protocol.Envelope, trCd, code string) error {
	data, err := protocol.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	if err := d.sender.Send(data); err != nil {
		d.count(func(s *Stats) { s.SendErrors++ })
		d.metrics.SendError()
		return err
	}
	d.metrics.CommandSent(trCd, env.Header.TrType)
	d.logger.Debug("command sent", "tr_cd", trCd, "tr_type", env.Header.TrType, "code", code)
	return nil
}

func (d *Dispatcher) decodeFailed(err error, trCd string, size int) {
	d.count(func(s *Stats) { s.DecodeErrors++ })
	d.metrics.DecodeError()
	d.logger.Warn("dropping malformed frame", "tr_cd", trCd, "bytes", size, "error", err)
}

func (d *Dispatcher) count(fn func(*Stats)) {
	d.mu.Lock()
	fn(&d.stats)
	d.mu.Unlock()
}

// Stats returns current statistics.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}
