package suggest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-location/internal/application"
	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/failure"
	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/location"
)

// gatedSource answers each query only when its gate is released. It ignores
// cancellation unless told otherwise, like a response already on the wire.
type gatedSource struct {
	mu          sync.Mutex
	gates       map[string]chan struct{}
	started     chan string
	calls       []string
	honorCancel bool
}

func newGatedSource() *gatedSource {
	return &gatedSource{gates: map[string]chan struct{}{}, started: make(chan string, 16)}
}

func (s *gatedSource) gate(q string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gates[q]
	if !ok {
		g = make(chan struct{})
		s.gates[q] = g
	}
	return g
}

func (s *gatedSource) Suggest(ctx context.Context, q string, _ int) (*application.SuggestionsDTO, error) {
	s.mu.Lock()
	s.calls = append(s.calls, q)
	s.mu.Unlock()
	s.started <- q

	select {
	case <-s.gate(q):
	case <-ctx.Done():
		if s.honorCancel {
			return nil, failure.Wrap(failure.KindCancelled, "lookup cancelled", ctx.Err())
		}
		<-s.gate(q)
	}
	return &application.SuggestionsDTO{
		Query:       q,
		Suggestions: []location.Suggestion{{ID: q, Text: q}},
	}, nil
}

func (s *gatedSource) Resolve(_ context.Context, sel location.Selection) (location.ResolvedLocation, error) {
	c := location.Coordinates{Lat: -1.95, Lng: 30.09}
	return location.NewResolvedLocation(location.ResolvedFields{Name: sel.Text, Coordinates: &c}), nil
}

func (s *gatedSource) callList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func waitStarted(t *testing.T, src *gatedSource, want string) {
	t.Helper()
	select {
	case q := <-src.started:
		require.Equal(t, want, q)
	case <-time.After(2 * time.Second):
		t.Fatalf("lookup for %q never started", want)
	}
}

func TestField_LatestRequestWins(t *testing.T) {
	src := newGatedSource()
	f := NewField(context.Background(), "pickup", src, time.Millisecond, 10, zap.NewNop())
	defer f.Close()
	rec := &recorder{}
	f.Subscribe(rec.record)

	f.OnInputChange("Kigali A")
	waitStarted(t, src, "Kigali A")
	f.OnInputChange("Kigali B")
	waitStarted(t, src, "Kigali B")

	// B completes first, then the stale A arrives.
	close(src.gate("Kigali B"))
	require.Eventually(t, func() bool {
		s := f.State()
		return !s.Loading && s.Query == "Kigali B"
	}, 2*time.Second, 5*time.Millisecond)

	close(src.gate("Kigali A"))
	time.Sleep(50 * time.Millisecond)

	s := f.State()
	assert.Equal(t, "Kigali B", s.Query)
	require.Len(t, s.Suggestions, 1)
	assert.Equal(t, "Kigali B", s.Suggestions[0].Text)

	for _, st := range rec.all() {
		for _, sg := range st.Suggestions {
			assert.NotEqual(t, "Kigali A", sg.Text)
		}
	}
}

func TestField_DebounceCoalescesKeystrokes(t *testing.T) {
	src := newGatedSource()
	f := NewField(context.Background(), "dropoff", src, 100*time.Millisecond, 10, zap.NewNop())
	defer f.Close()

	for _, text := range []string{"K", "Ki", "Kig", "Kiga"} {
		f.OnInputChange(text)
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, f.State().Loading)

	waitStarted(t, src, "Kiga")
	close(src.gate("Kiga"))
	require.Eventually(t, func() bool { return !f.State().Loading }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"Kiga"}, src.callList())
}

func TestField_CancelledLookupIsSilent(t *testing.T) {
	src := newGatedSource()
	src.honorCancel = true
	f := NewField(context.Background(), "pickup", src, time.Millisecond, 10, zap.NewNop())
	defer f.Close()
	rec := &recorder{}
	f.Subscribe(rec.record)

	f.OnInputChange("Remera")
	waitStarted(t, src, "Remera")
	f.OnInputChange("Remera Taxi")
	waitStarted(t, src, "Remera Taxi")
	close(src.gate("Remera Taxi"))

	require.Eventually(t, func() bool { return !f.State().Loading }, 2*time.Second, 5*time.Millisecond)
	for _, st := range rec.all() {
		assert.Empty(t, st.Error)
		assert.Empty(t, st.ErrorKind)
	}
}

func TestField_EmptyInputSkipsDebounce(t *testing.T) {
	src := newGatedSource()
	f := NewField(context.Background(), "pickup", src, time.Hour, 10, zap.NewNop())
	defer f.Close()

	f.OnInputChange("")
	waitStarted(t, src, "")
	close(src.gate(""))
	require.Eventually(t, func() bool { return !f.State().Loading }, 2*time.Second, 5*time.Millisecond)
}

func TestField_SelectAbandonsPendingLookup(t *testing.T) {
	src := newGatedSource()
	f := NewField(context.Background(), "pickup", src, time.Millisecond, 10, zap.NewNop())
	defer f.Close()

	f.OnInputChange("Kacyiru")
	waitStarted(t, src, "Kacyiru")

	loc, err := f.Select(context.Background(), location.Selection{Text: "Kacyiru"})
	require.NoError(t, err)
	assert.True(t, loc.HasCoordinates())

	close(src.gate("Kacyiru"))
	time.Sleep(50 * time.Millisecond)

	s := f.State()
	assert.False(t, s.Loading)
	assert.Empty(t, s.Suggestions)
}

func TestField_ErrorsReachSubscribers(t *testing.T) {
	f := NewField(context.Background(), "pickup", failingSource{}, time.Millisecond, 10, zap.NewNop())
	defer f.Close()

	f.OnInputChange("Kigali")
	require.Eventually(t, func() bool { return !f.State().Loading }, 2*time.Second, 5*time.Millisecond)

	s := f.State()
	assert.Equal(t, failure.KindRateLimited, s.ErrorKind)
	assert.Equal(t, "slow down", s.Error)
	assert.Empty(t, s.Suggestions)
}

type failingSource struct{}

func (failingSource) Suggest(context.Context, string, int) (*application.SuggestionsDTO, error) {
	return nil, failure.New(failure.KindRateLimited, "slow down")
}

func (failingSource) Resolve(context.Context, location.Selection) (location.ResolvedLocation, error) {
	return location.ResolvedLocation{}, failure.New(failure.KindNotFound, "nothing")
}

// slowResolver answers each selection after a per-text delay and reports
// whether the lookup's context was cancelled first.
type slowResolver struct {
	failingSource
	delays map[string]time.Duration

	mu        sync.Mutex
	cancelled map[string]bool
}

func (r *slowResolver) Resolve(ctx context.Context, sel location.Selection) (location.ResolvedLocation, error) {
	select {
	case <-time.After(r.delays[sel.Text]):
		c := location.Coordinates{Lat: -1.95, Lng: 30.09}
		return location.NewResolvedLocation(location.ResolvedFields{Name: sel.Text, Coordinates: &c}), nil
	case <-ctx.Done():
		r.mu.Lock()
		r.cancelled[sel.Text] = true
		r.mu.Unlock()
		return location.ResolvedLocation{}, failure.Wrap(failure.KindCancelled, "resolve cancelled", ctx.Err())
	}
}

func TestField_LatestSelectionWins(t *testing.T) {
	src := &slowResolver{
		delays:    map[string]time.Duration{"Remera": 200 * time.Millisecond, "Kanombe": 10 * time.Millisecond},
		cancelled: map[string]bool{},
	}
	f := NewField(context.Background(), "dropoff", src, time.Millisecond, 10, zap.NewNop())
	defer f.Close()

	type outcome struct {
		name string
		err  error
	}
	results := make(chan outcome, 2)
	go func() {
		loc, err := f.Select(context.Background(), location.Selection{Text: "Remera"})
		results <- outcome{loc.Name(), err}
	}()
	time.Sleep(20 * time.Millisecond)
	go func() {
		loc, err := f.Select(context.Background(), location.Selection{Text: "Kanombe"})
		results <- outcome{loc.Name(), err}
	}()

	var got []outcome
	for i := 0; i < 2; i++ {
		select {
		case o := <-results:
			got = append(got, o)
		case <-time.After(2 * time.Second):
			t.Fatal("selection never completed")
		}
	}

	var won, superseded int
	for _, o := range got {
		if o.err == nil {
			won++
			assert.Equal(t, "Kanombe", o.name)
			continue
		}
		superseded++
		assert.True(t, failure.IsCancelled(o.err), o.err)
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, superseded)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.True(t, src.cancelled["Remera"])
	assert.False(t, src.cancelled["Kanombe"])
}

func TestField_InputSupersedesSelection(t *testing.T) {
	src := &slowResolver{
		delays:    map[string]time.Duration{"Remera": time.Second},
		cancelled: map[string]bool{},
	}
	f := NewField(context.Background(), "pickup", src, time.Hour, 10, zap.NewNop())
	defer f.Close()

	done := make(chan error, 1)
	go func() {
		_, err := f.Select(context.Background(), location.Selection{Text: "Remera"})
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	f.OnInputChange("Kim")

	select {
	case err := <-done:
		assert.True(t, failure.IsCancelled(err), err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("selection was not cancelled by new input")
	}
}

func TestField_SlowSubscriberDoesNotBlockField(t *testing.T) {
	src := newGatedSource()
	f := NewField(context.Background(), "pickup", src, time.Hour, 10, zap.NewNop())
	defer f.Close()

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	rec := &recorder{}
	f.Subscribe(func(s State) {
		select {
		case entered <- struct{}{}:
			<-release
		default:
		}
		rec.record(s)
	})

	go f.OnInputChange("Ki")
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never called")
	}

	// the first delivery is stuck; the field must still respond
	returned := make(chan struct{})
	go func() {
		f.OnInputChange("Kig")
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("input blocked behind a slow subscriber")
	}
	assert.Equal(t, "Kig", f.State().Query)

	close(release)
	require.Eventually(t, func() bool { return len(rec.all()) == 2 }, 2*time.Second, 5*time.Millisecond)
	states := rec.all()
	assert.Equal(t, "Ki", states[0].Query)
	assert.Equal(t, "Kig", states[1].Query)
}
