package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/rickgao/vi-monitor/internal/connection"
	"github.com/rickgao/vi-monitor/internal/protocol"
	"github.com/rickgao/vi-monitor/internal/registry"
	"github.com/rickgao/vi-monitor/internal/scheduler"
)

const testGrace = 40 * time.Millisecond

type command struct {
	TrType string
	TrCd   string
	TrKey  string
}

// fakeSender records commands written to the stream.
type fakeSender struct {
	mu   sync.Mutex
	sent []command
	err  error
}

func (s *fakeSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	var wire struct {
		Header struct {
			TrType string `json:"tr_type"`
		} `json:"header"`
		Body struct {
			TrCd  string `json:"tr_cd"`
			TrKey string `json:"tr_key"`
		} `json:"body"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.sent = append(s.sent, command{TrType: wire.Header.TrType, TrCd: wire.Body.TrCd, TrKey: wire.Body.TrKey})
	return nil
}

func (s *fakeSender) commands() []command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]command(nil), s.sent...)
}

func (s *fakeSender) count(c command) int {
	n := 0
	for _, got := range s.commands() {
		if got == c {
			n++
		}
	}
	return n
}

func (s *fakeSender) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// recordingSink captures dispatched updates.
type recordingSink struct {
	mu    sync.Mutex
	vis   []VIUpdate
	ticks []TickUpdate
}

func (s *recordingSink) OnVI(u VIUpdate) {
	s.mu.Lock()
	s.vis = append(s.vis, u)
	s.mu.Unlock()
}

func (s *recordingSink) OnTick(u TickUpdate) {
	s.mu.Lock()
	s.ticks = append(s.ticks, u)
	s.mu.Unlock()
}

func (s *recordingSink) tickCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

type fixture struct {
	d      *Dispatcher
	sender *fakeSender
	sink   *recordingSink
	reg    *registry.Registry
	sched  *scheduler.Scheduler
	sess   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sender := &fakeSender{}
	sink := &recordingSink{}
	reg := registry.New()
	sched := scheduler.New(nil)
	t.Cleanup(sched.Stop)

	d := New(Config{GracePeriod: testGrace}, protocol.NewEncoder("tok", ""), sender, reg, sched, nil, nil, sink)
	return &fixture{d: d, sender: sender, sink: sink, reg: reg, sched: sched, sess: uuid.New()}
}

func (f *fixture) frame(raw string) {
	f.d.OnFrame(connection.Frame{Data: []byte(raw), ReceivedAt: time.Now(), SessionID: f.sess})
}

const (
	triggerSamsung = `{"header":{"tr_cd":"VI_"},"body":{"ref_shcode":"005930","vi_gubun":"1","exchname":"KRX","vi_trgprice":"70000","svi_recprice":"70000","dvi_recprice":"0","time":"090000"}}`
	releaseSamsung = `{"header":{"tr_cd":"VI_"},"body":{"ref_shcode":"005930","vi_gubun":"0","exchname":"KRX"}}`
	tickSamsung    = `{"header":{"tr_cd":"S3_","tr_key":"005930"},"body":{"price":"69500","change":"-500","drate":"-0.71","volume":"1000","value":"69500000","bidho":"69400","offerho":"69600","chetime":"090001","exchname":"KRX"}}`
	tickHynix      = `{"header":{"tr_cd":"S3_","tr_key":"000660"},"body":{"price":"120000","chetime":"090002"}}`
)

var (
	subscribeSamsung   = command{TrType: "3", TrCd: "S3_", TrKey: "005930"}
	unsubscribeSamsung = command{TrType: "4", TrCd: "S3_", TrKey: "005930"}
)

func TestOnFrame_TriggerSubscribes(t *testing.T) {
	f := newFixture(t)
	f.frame(triggerSamsung)

	rec, ok := f.reg.Get("005930")
	if !ok {
		t.Fatal("registry missing 005930 after trigger")
	}
	if rec.Status != protocol.VIStaticTriggered {
		t.Errorf("Status = %v, want static", rec.Status)
	}

	cmds := f.sender.commands()
	if len(cmds) != 1 || cmds[0] != subscribeSamsung {
		t.Errorf("commands = %+v, want [%+v]", cmds, subscribeSamsung)
	}

	if len(f.sink.vis) != 1 {
		t.Fatalf("sink VI updates = %d, want 1", len(f.sink.vis))
	}
	if f.sink.vis[0].Transition.Action != registry.ActionSubscribe {
		t.Errorf("Action = %v, want subscribe", f.sink.vis[0].Transition.Action)
	}
	if f.sink.vis[0].SessionID != f.sess {
		t.Errorf("SessionID = %v, want %v", f.sink.vis[0].SessionID, f.sess)
	}
}

func TestOnFrame_SecondaryExchange(t *testing.T) {
	f := newFixture(t)
	f.frame(`{"header":{"tr_cd":"VI_"},"body":{"ref_shcode":"035720","vi_gubun":"2","exchname":"KOSDAQ"}}`)

	want := command{TrType: "3", TrCd: "K3_", TrKey: "035720"}
	if got := f.sender.count(want); got != 1 {
		t.Errorf("K3_ subscribes = %d, want 1", got)
	}
}

func TestOnFrame_RetriggerIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.frame(triggerSamsung)
	f.frame(`{"header":{"tr_cd":"VI_"},"body":{"ref_shcode":"005930","vi_gubun":"3","exchname":"KRX","vi_trgprice":"71000"}}`)

	if got := f.sender.count(subscribeSamsung); got != 1 {
		t.Errorf("subscribes = %d, want 1", got)
	}
	rec, _ := f.reg.Get("005930")
	if rec.Status != protocol.VIBothTriggered {
		t.Errorf("Status = %v, want both", rec.Status)
	}
}

func TestOnFrame_TickForwardedWhileActive(t *testing.T) {
	f := newFixture(t)
	f.frame(triggerSamsung)
	f.frame(tickSamsung)

	if got := f.sink.tickCount(); got != 1 {
		t.Fatalf("forwarded ticks = %d, want 1", got)
	}
	u := f.sink.ticks[0]
	if u.Event.Price.String() != "69500" {
		t.Errorf("Price = %s, want 69500", u.Event.Price)
	}
	if u.Record.Status != protocol.VIStaticTriggered {
		t.Errorf("Record.Status = %v, want static", u.Record.Status)
	}
	if st := f.d.Stats(); st.TicksForwarded != 1 {
		t.Errorf("TicksForwarded = %d, want 1", st.TicksForwarded)
	}
}

func TestOnFrame_TickForInactiveDropped(t *testing.T) {
	f := newFixture(t)
	f.frame(tickHynix)

	if got := f.sink.tickCount(); got != 0 {
		t.Errorf("forwarded ticks = %d, want 0", got)
	}
	if st := f.d.Stats(); st.TicksDropped != 1 {
		t.Errorf("TicksDropped = %d, want 1", st.TicksDropped)
	}
	if len(f.sender.commands()) != 0 {
		t.Error("dropped tick should not send commands")
	}
}

func TestOnFrame_TickAfterReleaseDropped(t *testing.T) {
	f := newFixture(t)
	f.frame(triggerSamsung)
	f.frame(releaseSamsung)
	f.frame(tickSamsung)

	if got := f.sink.tickCount(); got != 0 {
		t.Errorf("forwarded ticks = %d, want 0", got)
	}
}

func TestRelease_UnsubscribesOnceAfterGrace(t *testing.T) {
	f := newFixture(t)
	f.frame(triggerSamsung)
	f.frame(releaseSamsung)

	if f.reg.IsActive("005930") {
		t.Fatal("005930 still active after release")
	}
	if f.sched.Len() != 1 {
		t.Fatalf("pending cancellations = %d, want 1", f.sched.Len())
	}
	if got := f.sender.count(unsubscribeSamsung); got != 0 {
		t.Fatalf("unsubscribe sent before grace period")
	}

	time.Sleep(3 * testGrace)

	if got := f.sender.count(unsubscribeSamsung); got != 1 {
		t.Errorf("unsubscribes = %d, want 1", got)
	}
	if f.sched.Len() != 0 {
		t.Errorf("pending cancellations = %d, want 0", f.sched.Len())
	}
	if st := f.d.Stats(); st.Unsubscribes != 1 {
		t.Errorf("Unsubscribes = %d, want 1", st.Unsubscribes)
	}
}

func TestRelease_UnreadablePriceStillReleases(t *testing.T) {
	f := newFixture(t)
	f.frame(triggerSamsung)
	f.frame(`{"header":{"tr_cd":"VI_"},"body":{"ref_shcode":"005930","vi_gubun":"0","exchname":"KRX","vi_trgprice":"-","svi_recprice":"-","dvi_recprice":"-"}}`)

	if f.reg.IsActive("005930") {
		t.Fatal("005930 still active after release with unreadable prices")
	}
	if st := f.d.Stats(); st.DecodeErrors != 0 {
		t.Errorf("DecodeErrors = %d, want 0", st.DecodeErrors)
	}

	time.Sleep(3 * testGrace)

	if got := f.sender.count(unsubscribeSamsung); got != 1 {
		t.Errorf("unsubscribes = %d, want 1", got)
	}
}

func TestRelease_RetriggerWithinGraceSuppressesUnsubscribe(t *testing.T) {
	f := newFixture(t)
	f.frame(triggerSamsung)
	f.frame(releaseSamsung)
	time.Sleep(testGrace / 2)
	f.frame(triggerSamsung)

	time.Sleep(3 * testGrace)

	if got := f.sender.count(unsubscribeSamsung); got != 0 {
		t.Errorf("unsubscribes = %d, want 0", got)
	}
	if got := f.sender.count(subscribeSamsung); got != 2 {
		t.Errorf("subscribes = %d, want 2", got)
	}
	if !f.reg.IsActive("005930") {
		t.Error("005930 should be active")
	}
	if st := f.d.Stats(); st.Superseded != 1 {
		t.Errorf("Superseded = %d, want 1", st.Superseded)
	}
}

func TestRelease_UsesSubscribedExchange(t *testing.T) {
	f := newFixture(t)
	f.frame(`{"header":{"tr_cd":"VI_"},"body":{"ref_shcode":"035720","vi_gubun":"1","exchname":"KOSDAQ"}}`)
	// The release reports a different exchange name.
	f.frame(`{"header":{"tr_cd":"VI_"},"body":{"ref_shcode":"035720","vi_gubun":"0","exchname":"KRX"}}`)

	time.Sleep(3 * testGrace)

	want := command{TrType: "4", TrCd: "K3_", TrKey: "035720"}
	if got := f.sender.count(want); got != 1 {
		t.Errorf("K3_ unsubscribes = %d, want 1 (commands %+v)", got, f.sender.commands())
	}
}

func TestRelease_IdleIgnored(t *testing.T) {
	f := newFixture(t)
	f.frame(releaseSamsung)

	if f.sched.Len() != 0 {
		t.Errorf("pending cancellations = %d, want 0", f.sched.Len())
	}
	if len(f.sender.commands()) != 0 {
		t.Errorf("commands = %+v, want none", f.sender.commands())
	}
}

func TestOnFrame_MalformedDoesNotStopLoop(t *testing.T) {
	f := newFixture(t)

	inputs := []string{
		`{"header": {"tr_cd": "VI_"`,
		`garbage`,
		``,
		`{"header":{"tr_cd":"VI_"},"body":{"vi_gubun":"1"}}`,
		`{"header":{"tr_cd":"S3_","tr_key":"005930"},"body":{"price":"abc"}}`,
	}
	for _, in := range inputs {
		f.frame(in)
	}
	f.frame(triggerSamsung)

	st := f.d.Stats()
	if st.DecodeErrors != int64(len(inputs)) {
		t.Errorf("DecodeErrors = %d, want %d", st.DecodeErrors, len(inputs))
	}
	if st.FramesReceived != int64(len(inputs)+1) {
		t.Errorf("FramesReceived = %d, want %d", st.FramesReceived, len(inputs)+1)
	}
	if !f.reg.IsActive("005930") {
		t.Error("valid frame after malformed input was not processed")
	}
}

func TestOnFrame_AckAndIgnored(t *testing.T) {
	f := newFixture(t)
	f.frame(`{"header":{"tr_cd":"VI_","rsp_cd":"00000","rsp_msg":"ok"},"body":null}`)
	f.frame(`{"header":{"tr_cd":"S3_","rsp_cd":"00001","rsp_msg":"ok"}}`)
	f.frame(`{"header":{"tr_cd":"H1_","tr_key":"005930"},"body":{"x":"1"}}`)

	st := f.d.Stats()
	if st.Acks != 2 {
		t.Errorf("Acks = %d, want 2", st.Acks)
	}
	if st.Ignored != 1 {
		t.Errorf("Ignored = %d, want 1", st.Ignored)
	}
	if f.reg.Len() != 0 {
		t.Errorf("registry Len = %d, want 0", f.reg.Len())
	}
}

func TestOnFrame_AckWithBodyStillRouted(t *testing.T) {
	f := newFixture(t)
	f.frame(`{"header":{"tr_cd":"VI_","rsp_cd":"00000","rsp_msg":"ok"},"body":{"ref_shcode":"005930","vi_gubun":"1","exchname":"KRX"}}`)

	if !f.reg.IsActive("005930") {
		t.Error("VI body on an ack frame should be processed")
	}
}

func TestOnConnected_SubscribesRootAndActive(t *testing.T) {
	f := newFixture(t)
	f.frame(triggerSamsung)
	f.frame(`{"header":{"tr_cd":"VI_"},"body":{"ref_shcode":"035720","vi_gubun":"1","exchname":"KOSDAQ"}}`)
	before := len(f.sender.commands())

	err := f.d.OnConnected(context.Background(), connection.Session{ID: uuid.New(), Reconnect: true})
	if err != nil {
		t.Fatalf("OnConnected: %v", err)
	}

	got := f.sender.commands()[before:]
	want := []command{
		{TrType: "3", TrCd: "VI_", TrKey: "000000"},
		{TrType: "3", TrCd: "S3_", TrKey: "005930"},
		{TrType: "3", TrCd: "K3_", TrKey: "035720"},
	}
	if len(got) != len(want) {
		t.Fatalf("commands = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestOnConnected_FirstSessionOnlyRoot(t *testing.T) {
	f := newFixture(t)

	if err := f.d.OnConnected(context.Background(), connection.Session{ID: uuid.New()}); err != nil {
		t.Fatalf("OnConnected: %v", err)
	}
	cmds := f.sender.commands()
	if len(cmds) != 1 || cmds[0].TrCd != "VI_" {
		t.Errorf("commands = %+v, want root VI only", cmds)
	}
}

func TestOnConnected_ReconnectDropsPendingCancellations(t *testing.T) {
	f := newFixture(t)
	f.frame(triggerSamsung)
	f.frame(releaseSamsung)

	if err := f.d.OnConnected(context.Background(), connection.Session{ID: uuid.New(), Reconnect: true}); err != nil {
		t.Fatalf("OnConnected: %v", err)
	}
	if f.sched.Len() != 0 {
		t.Errorf("pending cancellations = %d, want 0", f.sched.Len())
	}

	time.Sleep(3 * testGrace)
	if got := f.sender.count(unsubscribeSamsung); got != 0 {
		t.Errorf("unsubscribes = %d, want 0", got)
	}
}

func TestOnConnected_SendFailure(t *testing.T) {
	f := newFixture(t)
	f.sender.setErr(errors.New("broken pipe"))

	err := f.d.OnConnected(context.Background(), connection.Session{ID: uuid.New()})
	if err == nil {
		t.Fatal("expected error when root subscription fails")
	}
	if st := f.d.Stats(); st.SendErrors != 1 {
		t.Errorf("SendErrors = %d, want 1", st.SendErrors)
	}
}

func TestSubscribeFailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	f.sender.setErr(connection.ErrNotConnected)
	f.frame(triggerSamsung)

	if !f.reg.IsActive("005930") {
		t.Error("record should survive a failed subscribe")
	}

	f.sender.setErr(nil)
	if err := f.d.OnConnected(context.Background(), connection.Session{ID: uuid.New(), Reconnect: true}); err != nil {
		t.Fatalf("OnConnected: %v", err)
	}
	if got := f.sender.count(subscribeSamsung); got != 1 {
		t.Errorf("subscribes after reconnect = %d, want 1", got)
	}
}

// Race a re-trigger against the firing timer many times: the wire must
// never end with an unsubscribe for an active instrument.
func TestCancellationRaceWithRetrigger(t *testing.T) {
	for i := 0; i < 20; i++ {
		sender := &fakeSender{}
		reg := registry.New()
		sched := scheduler.New(nil)
		d := New(Config{GracePeriod: time.Millisecond}, protocol.NewEncoder("tok", ""), sender, reg, sched, nil, nil)
		frame := func(raw string) {
			d.OnFrame(connection.Frame{Data: []byte(raw), ReceivedAt: time.Now()})
		}

		frame(triggerSamsung)
		frame(releaseSamsung)
		time.Sleep(time.Duration(i%3) * time.Millisecond)
		frame(triggerSamsung)
		time.Sleep(10 * time.Millisecond)
		sched.Stop()

		cmds := sender.commands()
		last := cmds[len(cmds)-1]
		if last != subscribeSamsung {
			t.Fatalf("iteration %d: last command = %+v, want subscribe (all %+v)", i, last, cmds)
		}
	}
}
