// Package console renders VI transitions and forwarded ticks for an
// operator watching the terminal.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/rickgao/vi-monitor/internal/dispatcher"
	"github.com/rickgao/vi-monitor/internal/protocol"
	"github.com/rickgao/vi-monitor/internal/registry"
)

// Presenter is a dispatcher sink that writes one table per event.
type Presenter struct {
	mu    sync.Mutex
	out   io.Writer
	style table.Style
}

// New creates a Presenter writing to out.
func New(out io.Writer) *Presenter {
	return &Presenter{out: out, style: table.StyleLight}
}

// OnVI renders a VI event with its human status label.
func (p *Presenter) OnVI(u dispatcher.VIUpdate) {
	ev := u.Event

	title := fmt.Sprintf("[%s] %s", ev.Status.Label(), ev.Instrument.Code)
	t := p.newTable()
	t.AppendRows([]table.Row{
		{"code", ev.Instrument.Code},
		{"exchange", exchangeName(ev.ExchangeName, ev.Instrument.Exchange)},
		{"trigger price", ev.TriggerPrice.String()},
		{"static ref price", ev.StaticRefPrice.String()},
		{"dynamic ref price", ev.DynamicRefPrice.String()},
		{"time", ev.Time},
	})
	if u.Transition.Action != registry.ActionNone {
		t.AppendRow(table.Row{"action", u.Transition.Action.String()})
	}
	p.render(title, t)
}

// OnTick renders a forwarded tick together with the instrument's VI state.
func (p *Presenter) OnTick(u dispatcher.TickUpdate) {
	ev := u.Event
	rec := u.Record

	title := fmt.Sprintf("[tick] %s (%s)", ev.Code, exchangeName(ev.ExchangeName, rec.Instrument.Exchange))
	t := p.newTable()
	t.AppendRows([]table.Row{
		{"time", ev.Time},
		{"price", fmt.Sprintf("%s (%s / %s%%)", ev.Price, ev.Change, ev.Rate)},
		{"bid | offer", fmt.Sprintf("%s | %s", ev.Bid, ev.Ask)},
		{"volume | value", fmt.Sprintf("%s | %s", ev.Volume, ev.Value)},
		{"vi trigger price", rec.TriggerPrice.String()},
		{"vi status", rec.Status.Label()},
	})
	p.render(title, t)
}

func (p *Presenter) newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(p.style)
	return t
}

func (p *Presenter) render(title string, t table.Writer) {
	body := t.Render()

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s\n%s\n", title, body)
}

func exchangeName(name string, ex protocol.Exchange) string {
	if name != "" {
		return name
	}
	return ex.String()
}
