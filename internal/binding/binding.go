// Package binding runs a fetch for a resource whenever its dependency
// snapshot changes by value, and publishes {data, loading, error} state.
//
// Callers may pass freshly built but equal dependencies on every cycle:
// snapshots are compared with deep value equality, so an equal snapshot never
// refetches. When the snapshot changes, the request in flight becomes stale
// and its result is dropped; only the most recently started request may
// publish. Close detaches the consumer and silences any pending request.
package binding

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"fitboard/internal/telemetry"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSuccess
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

var ErrClosed = errors.New("binding closed")

type State[T any] struct {
	Phase   Phase
	Data    T
	Loading bool
	Err     error
}

// Fetcher loads the resource for one dependency snapshot. ctx is cancelled
// once the request goes stale; honouring it is optional.
type Fetcher[T any] func(ctx context.Context, deps []any) (T, error)

type Binding[T any] struct {
	key   string
	fetch Fetcher[T]

	mu          sync.Mutex
	snapshot    []any
	hasSnapshot bool
	gen         uint64
	cancel      context.CancelFunc
	state       State[T]
	settled     chan struct{}
	closed      bool

	subs     map[int]func(State[T])
	nextSub  int
	queue    []State[T]
	draining bool

	// called after a stale result was dropped
	onStale func()
}

func New[T any](key string, fetch Fetcher[T]) *Binding[T] {
	return &Binding[T]{
		key:   key,
		fetch: fetch,
		subs:  make(map[int]func(State[T])),
	}
}

// missing reports a snapshot that is not known yet: no values, or a nil one.
func missing(deps []any) bool {
	if len(deps) == 0 {
		return true
	}
	for _, d := range deps {
		if d == nil {
			return true
		}
		switch v := reflect.ValueOf(d); v.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
			if v.IsNil() {
				return true
			}
		}
	}
	return false
}

// Update hands the binding the current dependency snapshot. It starts a fetch
// and returns true only when the snapshot differs by value from the last one.
// An incomplete snapshot (no values or a nil value) is ignored.
func (b *Binding[T]) Update(deps ...any) bool {
	if missing(deps) {
		return false
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	if b.hasSnapshot && reflect.DeepEqual(b.snapshot, deps) {
		b.mu.Unlock()
		return false
	}

	snapshot := cloneDeps(deps)
	b.snapshot = snapshot
	b.hasSnapshot = true
	b.gen++
	gen := b.gen

	if b.cancel != nil {
		b.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	if b.state.Phase != PhaseLoading {
		b.settled = make(chan struct{})
	}
	b.setLocked(State[T]{Phase: PhaseLoading, Data: b.state.Data, Loading: true})
	b.mu.Unlock()

	telemetry.RecordBindingFetch(b.key)
	go b.run(ctx, gen, cloneDeps(snapshot))

	b.drain()
	return true
}

func (b *Binding[T]) run(ctx context.Context, gen uint64, deps []any) {
	data, err := b.call(ctx, deps)

	b.mu.Lock()
	if b.closed || gen != b.gen {
		onStale := b.onStale
		b.mu.Unlock()
		telemetry.RecordBindingStale(b.key)
		if onStale != nil {
			onStale()
		}
		return
	}

	b.cancel()
	b.cancel = nil
	if err != nil {
		var zero T
		b.setLocked(State[T]{Phase: PhaseFailed, Data: zero, Err: err})
	} else {
		b.setLocked(State[T]{Phase: PhaseSuccess, Data: data})
	}
	close(b.settled)
	b.mu.Unlock()

	b.drain()
}

func (b *Binding[T]) call(ctx context.Context, deps []any) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: fetch panicked: %v", b.key, r)
		}
	}()
	return b.fetch(ctx, deps)
}

func (b *Binding[T]) setLocked(st State[T]) {
	b.state = st
	b.queue = append(b.queue, st)
}

// drain delivers queued states to subscribers outside the lock, in the order
// they were set. A re-entrant call (a subscriber calling Update) only queues;
// the outer drain delivers.
func (b *Binding[T]) drain() {
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	for len(b.queue) > 0 {
		st := b.queue[0]
		b.queue = b.queue[1:]
		ids := make([]int, 0, len(b.subs))
		for id := range b.subs {
			ids = append(ids, id)
		}
		b.mu.Unlock()

		for _, id := range ids {
			// a subscriber may close the binding or unsubscribe others
			b.mu.Lock()
			fn, ok := b.subs[id]
			b.mu.Unlock()
			if ok {
				fn(st)
			}
		}

		b.mu.Lock()
	}
	b.draining = false
	b.mu.Unlock()
}

func (b *Binding[T]) State() State[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Subscribe registers fn for every state published from now on.
func (b *Binding[T]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Wait blocks until the binding is not loading and returns its state.
func (b *Binding[T]) Wait(ctx context.Context) (State[T], error) {
	for {
		b.mu.Lock()
		st, settled, closed := b.state, b.settled, b.closed
		b.mu.Unlock()

		if closed {
			return st, ErrClosed
		}
		if st.Phase != PhaseLoading {
			return st, nil
		}
		select {
		case <-settled:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Invalidate forgets the last snapshot so the next Update refetches even with
// equal dependencies. Published state is kept.
func (b *Binding[T]) Invalidate() {
	b.mu.Lock()
	b.snapshot = nil
	b.hasSnapshot = false
	b.mu.Unlock()
}

// Close detaches all subscribers and makes any pending request stale. The
// binding accepts no further updates. Close does not wait for a pending fetch:
// its context is cancelled and whatever it returns is dropped.
func (b *Binding[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.gen++
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	if b.state.Phase == PhaseLoading {
		close(b.settled)
	}
	b.subs = map[int]func(State[T]){}
	b.queue = nil
}

// Status is the type-erased view of a binding's state.
type Status struct {
	Key     string
	Phase   Phase
	Loading bool
	Err     error
	Data    any
}

func (b *Binding[T]) Status() Status {
	st := b.State()
	s := Status{Key: b.key, Phase: st.Phase, Loading: st.Loading, Err: st.Err}
	if st.Phase == PhaseSuccess || st.Phase == PhaseLoading {
		s.Data = st.Data
	}
	return s
}
