package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/rickgao/vi-monitor/internal/protocol"
)

// Registry is a mutex-guarded table of active instruments keyed by code.
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
	now     func() time.Time
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// Apply runs the state machine for one VI event.
func (r *Registry) Apply(ev protocol.VIEvent) Transition {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := ev.Instrument.Code
	existing, active := r.records[code]

	switch {
	case ev.Status.Triggered() && !active:
		now := r.now()
		rec := &Record{
			Instrument:      ev.Instrument,
			Status:          ev.Status,
			TriggerPrice:    ev.TriggerPrice,
			StaticRefPrice:  ev.StaticRefPrice,
			DynamicRefPrice: ev.DynamicRefPrice,
			TriggerTime:     ev.Time,
			SubscribedAt:    now,
			UpdatedAt:       now,
		}
		r.records[code] = rec
		return Transition{Action: ActionSubscribe, Record: *rec}

	case ev.Status.Triggered() && active:
		prev := existing.Status
		// The exchange is fixed at subscribe time so the eventual
		// unsubscribe matches the subscribed feed.
		existing.Status = ev.Status
		existing.TriggerPrice = ev.TriggerPrice
		existing.StaticRefPrice = ev.StaticRefPrice
		existing.DynamicRefPrice = ev.DynamicRefPrice
		existing.TriggerTime = ev.Time
		existing.UpdatedAt = r.now()
		return Transition{Action: ActionRefresh, Record: *existing, Previous: prev, WasActive: true}

	case ev.Status == protocol.VIReleased && active:
		delete(r.records, code)
		return Transition{Action: ActionRelease, Record: *existing, Previous: existing.Status, WasActive: true}

	case active:
		// Unrecognized status on an active instrument.
		return Transition{Action: ActionNone, Record: *existing, Previous: existing.Status, WasActive: true}

	default:
		return Transition{Action: ActionNone, Record: Record{Instrument: ev.Instrument}}
	}
}

// Get returns a copy of the record for code.
func (r *Registry) Get(code string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[code]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// IsActive reports whether code has a record.
func (r *Registry) IsActive(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[code]
	return ok
}

// Active returns copies of all records sorted by code.
func (r *Registry) Active() []Record {
	r.mu.Lock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Instrument.Code < out[j].Instrument.Code
	})
	return out
}

// Len returns the number of active instruments.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// WhenIdle runs fn while holding the registry lock, but only if code has no
// record. It reports whether fn ran. A trigger for code cannot be applied
// while fn runs.
func (r *Registry) WhenIdle(code string, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[code]; ok {
		return false
	}
	fn()
	return true
}
