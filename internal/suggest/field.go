package suggest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-location/internal/application"
	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/failure"
	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/location"
)

// DefaultDebounce is the quiet period after the last keystroke before a lookup runs.
const DefaultDebounce = 300 * time.Millisecond

// Source is what a field asks for suggestions and resolutions.
type Source interface {
	Suggest(ctx context.Context, query string, limit int) (*application.SuggestionsDTO, error)
	Resolve(ctx context.Context, sel location.Selection) (location.ResolvedLocation, error)
}

// State is the observable state of one input field.
type State struct {
	Seq         uint64                `json:"seq"`
	Query       string                `json:"query"`
	Suggestions []location.Suggestion `json:"suggestions"`
	Loading     bool                  `json:"loading"`
	Approximate bool                  `json:"approximate"`
	Notice      string                `json:"notice,omitempty"`
	Error       string                `json:"error,omitempty"`
	ErrorKind   failure.Kind          `json:"error_kind,omitempty"`
}

// Field drives autocomplete for one logical input such as pickup or dropoff.
// At most one lookup is in flight; a newer input cancels the older lookup
// and only the latest lookup may change the state.
type Field struct {
	name     string
	source   Source
	debounce time.Duration
	limit    int
	logger   *zap.Logger

	parent context.Context

	mu         sync.Mutex
	seq        uint64
	timer      *time.Timer
	cancel     context.CancelFunc
	state      State
	subs       map[uint64]func(State)
	nextSub    uint64
	outbox     []State
	delivering bool
	closed     bool
}

// NewField creates a Field. Lookups run under ctx and stop when it is done.
// A non-positive debounce uses DefaultDebounce.
func NewField(ctx context.Context, name string, source Source, debounce time.Duration, limit int, logger *zap.Logger) *Field {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Field{
		name:     name,
		source:   source,
		debounce: debounce,
		limit:    limit,
		logger:   logger.With(zap.String("field", name)),
		parent:   ctx,
		state:    State{Suggestions: []location.Suggestion{}},
		subs:     make(map[uint64]func(State)),
	}
}

// Name returns the field name.
func (f *Field) Name() string {
	return f.name
}

// State returns a snapshot of the current state.
func (f *Field) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Subscribe registers fn for state changes and returns a function that
// removes it. States reach subscribers in order, outside the field lock.
func (f *Field) Subscribe(fn func(State)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// OnInputChange records new input text. The lookup starts once the input
// has been quiet for the debounce window; empty input shows the history
// right away.
func (f *Field) OnInputChange(text string) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}

	f.stopLocked()
	f.seq++
	seq := f.seq

	f.state.Seq = seq
	f.state.Query = text
	f.state.Loading = true
	f.notifyLocked()

	delay := f.debounce
	if strings.TrimSpace(text) == "" {
		delay = 0
	}
	f.timer = time.AfterFunc(delay, func() { f.dispatch(seq, text) })
	f.mu.Unlock()

	f.flush()
}

// Select resolves a picked candidate. It supersedes every earlier lookup or
// selection on the field: their contexts are cancelled, and a selection that
// is itself superseded before it completes returns a Cancelled failure.
func (f *Field) Select(ctx context.Context, sel location.Selection) (location.ResolvedLocation, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return location.ResolvedLocation{}, failure.New(failure.KindCancelled, "field closed")
	}
	f.stopLocked()
	f.seq++
	seq := f.seq
	f.state = State{
		Seq:         seq,
		Query:       sel.Text,
		Suggestions: []location.Suggestion{},
	}
	f.notifyLocked()

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.mu.Unlock()
	defer cancel()

	f.flush()

	loc, err := f.source.Resolve(ctx, sel)

	f.mu.Lock()
	defer f.mu.Unlock()
	if seq != f.seq || f.closed {
		f.logger.Debug("dropping stale selection", zap.Uint64("seq", seq), zap.Uint64("latest", f.seq))
		return location.ResolvedLocation{}, failure.New(failure.KindCancelled, "selection superseded")
	}
	f.cancel = nil
	return loc, err
}

// Close cancels pending work. Later input is ignored.
func (f *Field) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopLocked()
	f.closed = true
	f.subs = make(map[uint64]func(State))
	f.outbox = nil
}

// dispatch runs the lookup for seq if it is still the latest request.
func (f *Field) dispatch(seq uint64, text string) {
	f.mu.Lock()
	if f.closed || seq != f.seq {
		f.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(f.parent)
	f.cancel = cancel
	f.timer = nil
	f.mu.Unlock()
	defer cancel()

	result, err := f.source.Suggest(ctx, text, f.limit)

	f.mu.Lock()
	if seq != f.seq || f.closed {
		f.mu.Unlock()
		f.logger.Debug("dropping stale suggestions", zap.Uint64("seq", seq))
		return
	}
	f.cancel = nil

	if failure.IsCancelled(err) {
		f.mu.Unlock()
		f.logger.Debug("suggestion lookup cancelled", zap.Uint64("seq", seq))
		return
	}

	next := State{
		Seq:         seq,
		Query:       text,
		Suggestions: []location.Suggestion{},
	}
	if err != nil {
		next.Error = userMessage(err)
		next.ErrorKind = failure.KindOf(err)
	} else {
		next.Suggestions = result.Suggestions
		next.Approximate = result.Approximate
		next.Notice = result.Notice
	}
	f.state = next
	f.notifyLocked()
	f.mu.Unlock()

	f.flush()
}

func (f *Field) stopLocked() {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

// notifyLocked queues the current state; flush delivers it.
func (f *Field) notifyLocked() {
	if len(f.subs) == 0 {
		return
	}
	f.outbox = append(f.outbox, f.snapshotLocked())
}

// flush hands queued states to subscribers without holding the lock. One
// goroutine delivers at a time, so subscribers see states in queue order.
func (f *Field) flush() {
	f.mu.Lock()
	if f.delivering {
		f.mu.Unlock()
		return
	}
	f.delivering = true
	for len(f.outbox) > 0 {
		next := f.outbox[0]
		f.outbox = f.outbox[1:]
		subs := make([]func(State), 0, len(f.subs))
		for _, fn := range f.subs {
			subs = append(subs, fn)
		}
		f.mu.Unlock()

		for _, fn := range subs {
			fn(next)
		}

		f.mu.Lock()
	}
	f.delivering = false
	f.mu.Unlock()
}

func (f *Field) snapshotLocked() State {
	s := f.state
	s.Suggestions = append([]location.Suggestion(nil), f.state.Suggestions...)
	if s.Suggestions == nil {
		s.Suggestions = []location.Suggestion{}
	}
	return s
}

func userMessage(err error) string {
	var fe *failure.Error
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	return err.Error()
}
