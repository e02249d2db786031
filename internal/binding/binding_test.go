package binding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type profile struct {
	ID   int
	Name string
}

// gatedFetcher blocks each call until the test releases the gate of its id.
// It ignores cancellation, like a transport that cannot be aborted.
type gatedFetcher struct {
	mu    sync.Mutex
	gates map[int]chan struct{}
	calls atomic.Int32
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{gates: make(map[int]chan struct{})}
}

func (g *gatedFetcher) gate(id int) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[id]
	if !ok {
		ch = make(chan struct{})
		g.gates[id] = ch
	}
	return ch
}

func (g *gatedFetcher) release(id int) {
	close(g.gate(id))
}

func (g *gatedFetcher) fetch(_ context.Context, deps []any) (profile, error) {
	g.calls.Add(1)
	id := deps[0].(int)
	<-g.gate(id)
	return profile{ID: id, Name: "user"}, nil
}

func waitSettled[T any](t *testing.T, b *Binding[T]) State[T] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := b.Wait(ctx)
	require.NoError(t, err)
	return st
}

func TestBinding_EqualSnapshotFetchesOnce(t *testing.T) {
	var calls atomic.Int32
	b := New("user", func(ctx context.Context, deps []any) (int, error) {
		calls.Add(1)
		return deps[0].(int) * 2, nil
	})
	defer b.Close()

	first := []any{18}
	second := []any{18}
	assert.True(t, b.Update(first...))
	assert.False(t, b.Update(second...))

	st := waitSettled(t, b)
	assert.False(t, b.Update(18))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, PhaseSuccess, st.Phase)
	assert.Equal(t, 36, st.Data)
	assert.False(t, st.Loading)
	assert.NoError(t, st.Err)
}

func TestBinding_StructuredDepsCompareByValue(t *testing.T) {
	var calls atomic.Int32
	b := New("filter", func(ctx context.Context, deps []any) (string, error) {
		calls.Add(1)
		return "ok", nil
	})
	defer b.Close()

	type query struct {
		ID    int
		Range []string
	}
	b.Update(query{ID: 12, Range: []string{"week"}}, map[string]int{"limit": 7})
	b.Update(query{ID: 12, Range: []string{"week"}}, map[string]int{"limit": 7})
	waitSettled(t, b)
	assert.Equal(t, int32(1), calls.Load())

	b.Update(query{ID: 12, Range: []string{"month"}}, map[string]int{"limit": 7})
	waitSettled(t, b)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBinding_CallerMutationDoesNotLeakIntoSnapshot(t *testing.T) {
	var calls atomic.Int32
	b := New("user", func(ctx context.Context, deps []any) (int, error) {
		calls.Add(1)
		return 0, nil
	})
	defer b.Close()

	deps := []any{18}
	b.Update(deps...)
	deps[0] = 12
	waitSettled(t, b)

	assert.True(t, b.Update(12))
	waitSettled(t, b)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBinding_InPlaceMutationRefetches(t *testing.T) {
	var calls atomic.Int32
	b := New("user", func(ctx context.Context, deps []any) (int, error) {
		calls.Add(1)
		return deps[0].([]int)[0], nil
	})
	defer b.Close()

	ids := []int{18}
	require.True(t, b.Update(ids))
	assert.Equal(t, 18, waitSettled(t, b).Data)

	ids[0] = 12
	require.True(t, b.Update(ids), "changed slice element must refetch")
	assert.Equal(t, 12, waitSettled(t, b).Data)
	assert.False(t, b.Update(ids))
	assert.Equal(t, int32(2), calls.Load())
}

func TestBinding_NestedMutationRefetches(t *testing.T) {
	type window struct {
		Days  []int
		Extra map[string]*int
	}
	var calls atomic.Int32
	b := New("sessions", func(ctx context.Context, deps []any) (int, error) {
		return int(calls.Add(1)), nil
	})
	defer b.Close()

	limit := 7
	q := &window{Days: []int{1, 2}, Extra: map[string]*int{"limit": &limit}}
	b.Update(q)
	waitSettled(t, b)

	limit = 14
	assert.True(t, b.Update(q))
	waitSettled(t, b)

	q.Days = append(q.Days, 3)
	assert.True(t, b.Update(q))
	waitSettled(t, b)

	assert.False(t, b.Update(&window{Days: []int{1, 2, 3}, Extra: map[string]*int{"limit": &limit}}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestCloneDeps(t *testing.T) {
	type node struct {
		Name string
		Next *node
		tag  string
	}
	n := &node{Name: "a", tag: "x"}
	n.Next = n

	deps := []any{n, []string{"w"}, map[int][]int{1: {2}}, [2]int{3, 4}, nil, 5}
	out := cloneDeps(deps)
	require.Len(t, out, 6)
	assert.Equal(t, deps, out)

	c := out[0].(*node)
	assert.NotSame(t, n, c)
	assert.Same(t, c, c.Next)
	assert.Equal(t, "x", c.tag)

	deps[1].([]string)[0] = "changed"
	deps[2].(map[int][]int)[1][0] = 9
	assert.Equal(t, []string{"w"}, out[1])
	assert.Equal(t, map[int][]int{1: {2}}, out[2])
	assert.Nil(t, out[4])
}

func TestBinding_LastStartedRequestWins(t *testing.T) {
	for _, releaseStaleFirst := range []bool{false, true} {
		name := "StaleResolvesLast"
		if releaseStaleFirst {
			name = "StaleResolvesFirst"
		}
		t.Run(name, func(t *testing.T) {
			f := newGatedFetcher()
			b := New("user", f.fetch)
			defer b.Close()

			dropped := make(chan struct{}, 1)
			b.onStale = func() { dropped <- struct{}{} }

			var published []State[profile]
			var mu sync.Mutex
			succeeded := make(chan struct{}, 2)
			b.Subscribe(func(st State[profile]) {
				mu.Lock()
				published = append(published, st)
				mu.Unlock()
				if st.Phase == PhaseSuccess {
					succeeded <- struct{}{}
				}
			})

			require.True(t, b.Update(18))
			require.True(t, b.Update(12))
			assert.Equal(t, PhaseLoading, b.State().Phase)

			if releaseStaleFirst {
				f.release(18)
				<-dropped
				assert.Equal(t, PhaseLoading, b.State().Phase)
				f.release(12)
				st := waitSettled(t, b)
				assert.Equal(t, 12, st.Data.ID)
			} else {
				f.release(12)
				st := waitSettled(t, b)
				assert.Equal(t, 12, st.Data.ID)
				f.release(18)
				<-dropped
			}

			<-succeeded
			st := b.State()
			assert.Equal(t, PhaseSuccess, st.Phase)
			assert.Equal(t, 12, st.Data.ID)
			assert.Equal(t, int32(2), f.calls.Load())

			mu.Lock()
			defer mu.Unlock()
			for _, p := range published {
				assert.NotEqual(t, 18, p.Data.ID, "stale result published")
			}
			require.Len(t, published, 3)
			assert.Equal(t, PhaseSuccess, published[2].Phase)
		})
	}
}

func TestBinding_SupersededRequestIsCancelled(t *testing.T) {
	cancelled := make(chan struct{})
	b := New("user", func(ctx context.Context, deps []any) (int, error) {
		if deps[0].(int) == 18 {
			<-ctx.Done()
			close(cancelled)
			return 0, ctx.Err()
		}
		return deps[0].(int), nil
	})
	defer b.Close()

	b.Update(18)
	b.Update(12)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("superseded request context was not cancelled")
	}
	st := waitSettled(t, b)
	assert.Equal(t, 12, st.Data)
	assert.NoError(t, st.Err)
}

func TestBinding_Failure(t *testing.T) {
	errUpstream := errors.New("upstream down")
	var fail atomic.Bool
	fail.Store(true)
	b := New("user", func(ctx context.Context, deps []any) (*profile, error) {
		if fail.Load() {
			return nil, errUpstream
		}
		return &profile{ID: deps[0].(int)}, nil
	})
	defer b.Close()

	b.Update(18)
	st := waitSettled(t, b)
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.ErrorIs(t, st.Err, errUpstream)
	assert.Nil(t, st.Data)
	assert.False(t, st.Loading)

	// Failed -> Loading -> Success on the next change
	fail.Store(false)
	b.Update(12)
	st = waitSettled(t, b)
	assert.Equal(t, PhaseSuccess, st.Phase)
	assert.NoError(t, st.Err)
	assert.Equal(t, 12, st.Data.ID)
}

func TestBinding_PanicBecomesError(t *testing.T) {
	b := New("user", func(ctx context.Context, deps []any) (int, error) {
		panic("boom")
	})
	defer b.Close()

	b.Update(1)
	st := waitSettled(t, b)
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.ErrorContains(t, st.Err, "fetch panicked: boom")
}

func TestBinding_MissingDepsStayIdle(t *testing.T) {
	var calls atomic.Int32
	b := New("user", func(ctx context.Context, deps []any) (int, error) {
		calls.Add(1)
		return 1, nil
	})
	defer b.Close()

	var noID *int
	assert.False(t, b.Update())
	assert.False(t, b.Update(nil))
	assert.False(t, b.Update(noID))

	st, err := b.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Zero(t, calls.Load())
}

func TestBinding_CloseSilencesPendingRequest(t *testing.T) {
	f := newGatedFetcher()
	b := New("user", f.fetch)

	dropped := make(chan struct{}, 1)
	b.onStale = func() { dropped <- struct{}{} }

	var deliveries atomic.Int32
	b.Subscribe(func(State[profile]) { deliveries.Add(1) })

	b.Update(18)
	require.Equal(t, int32(1), deliveries.Load())

	b.Close()
	f.release(18)
	<-dropped

	assert.Equal(t, int32(1), deliveries.Load())
	assert.Equal(t, PhaseLoading, b.State().Phase)
	assert.False(t, b.Update(12))

	_, err := b.Wait(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	b.Close()
}

func TestBinding_CloseFromSubscriberStopsDelivery(t *testing.T) {
	b := New("user", func(ctx context.Context, deps []any) (int, error) { return 1, nil })

	var deliveries atomic.Int32
	closeOnFirst := func(State[int]) {
		deliveries.Add(1)
		b.Close()
	}
	b.Subscribe(closeOnFirst)
	b.Subscribe(closeOnFirst)
	b.Subscribe(closeOnFirst)

	b.Update(1)
	assert.Equal(t, int32(1), deliveries.Load())

	_, err := b.Wait(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, int32(1), deliveries.Load())
}

func TestBinding_UnsubscribeDuringDelivery(t *testing.T) {
	b := New("user", func(ctx context.Context, deps []any) (int, error) { return 1, nil })
	defer b.Close()

	var deliveries atomic.Int32
	var unsubs []func()
	for range 2 {
		unsubs = append(unsubs, b.Subscribe(func(State[int]) {
			deliveries.Add(1)
			for _, u := range unsubs {
				u()
			}
		}))
	}

	b.Update(1)
	waitSettled(t, b)
	assert.Equal(t, int32(1), deliveries.Load())
}

func TestBinding_InvalidateRefetches(t *testing.T) {
	var calls atomic.Int32
	b := New("user", func(ctx context.Context, deps []any) (int32, error) {
		return calls.Add(1), nil
	})
	defer b.Close()

	b.Update(18)
	assert.Equal(t, int32(1), waitSettled(t, b).Data)
	assert.False(t, b.Update(18))

	b.Invalidate()
	assert.Equal(t, int32(1), b.State().Data)
	assert.True(t, b.Update(18))
	assert.Equal(t, int32(2), waitSettled(t, b).Data)
}

func TestBinding_LoadingKeepsPreviousData(t *testing.T) {
	f := newGatedFetcher()
	b := New("user", f.fetch)
	defer b.Close()

	b.Update(18)
	f.release(18)
	waitSettled(t, b)

	b.Update(12)
	st := b.State()
	assert.True(t, st.Loading)
	assert.Equal(t, 18, st.Data.ID)
	assert.Equal(t, 18, b.Status().Data.(profile).ID)

	f.release(12)
	assert.Equal(t, 12, waitSettled(t, b).Data.ID)
}

func TestBinding_ReentrantUpdateFromSubscriber(t *testing.T) {
	b := New("user", func(ctx context.Context, deps []any) (int, error) {
		return deps[0].(int), nil
	})
	defer b.Close()

	var phases []Phase
	var mu sync.Mutex
	done := make(chan struct{})
	b.Subscribe(func(st State[int]) {
		mu.Lock()
		phases = append(phases, st.Phase)
		mu.Unlock()
		// a consumer re-rendering with an equal snapshot on every state
		b.Update(7)
		if st.Phase == PhaseSuccess {
			close(done)
		}
	})

	b.Update(7)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("no success published")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Phase{PhaseLoading, PhaseSuccess}, phases)
}

func TestBinding_WaitHonoursContext(t *testing.T) {
	f := newGatedFetcher()
	b := New("user", f.fetch)
	defer func() {
		f.release(18)
		b.Close()
	}()

	b.Update(18)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	st, err := b.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, st.Loading)
}

func TestBinding_Unsubscribe(t *testing.T) {
	b := New("user", func(ctx context.Context, deps []any) (int, error) { return 1, nil })
	defer b.Close()

	var deliveries atomic.Int32
	unsubscribe := b.Subscribe(func(State[int]) { deliveries.Add(1) })
	unsubscribe()

	b.Update(1)
	waitSettled(t, b)
	assert.Zero(t, deliveries.Load())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "loading", PhaseLoading.String())
	assert.Equal(t, "success", PhaseSuccess.String())
	assert.Equal(t, "failed", PhaseFailed.String())
}
