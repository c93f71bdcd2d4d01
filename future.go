package reactor

import "sync"

type futureState int

const (
	pending futureState = iota
	resolved
	haltedState
	rejected
)

// Future is the deferred half of Payload: the eventual outcome of an async
// transform, which may resolve to a value, halt (suppressing downstream
// propagation without invoking it), or fail with an error.
type Future[E any] struct {
	mu    sync.Mutex
	state futureState
	value E
	err   error
	done  chan struct{}
	thens []func(E, bool, error)
}

// newFuture returns an unresolved Future together with the three functions
// that settle it. Exactly one of them has any effect; later calls are no-ops.
func newFuture[E any]() (fut *Future[E], resolve func(E), halt func(), reject func(error)) {
	fut = &Future[E]{done: make(chan struct{})}
	resolve = func(v E) { fut.settle(resolved, v, nil) }
	halt = func() {
		var zero E
		fut.settle(haltedState, zero, nil)
	}
	reject = func(err error) {
		var zero E
		fut.settle(rejected, zero, err)
	}
	return fut, resolve, halt, reject
}

func (f *Future[E]) settle(state futureState, value E, err error) {
	f.mu.Lock()
	if f.state != pending {
		f.mu.Unlock()
		return
	}
	f.state = state
	f.value = value
	f.err = err
	thens := f.thens
	f.thens = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range thens {
		fn(value, state == haltedState, err)
	}
}

// Then registers a callback invoked once the future settles: with the
// resolved value, whether the upstream halted, and any rejection error. If
// the future has already settled, fn runs synchronously before Then
// returns.
func (f *Future[E]) Then(fn func(value E, halted bool, err error)) {
	f.mu.Lock()
	if f.state == pending {
		f.thens = append(f.thens, fn)
		f.mu.Unlock()
		return
	}
	state, value, err := f.state, f.value, f.err
	f.mu.Unlock()
	fn(value, state == haltedState, err)
}

// Await blocks until the future settles. ok is false when the upstream
// halted or rejected; callers that need the rejection error should use Err.
func (f *Future[E]) Await() (value E, ok bool) {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.state == resolved
}

// Err blocks until the future settles and returns its rejection error, if
// any. It is nil for a resolved or halted future.
func (f *Future[E]) Err() error {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Payload is the tagged union flowing through a Stream: either a value that
// is already available (Immediate) or one that will become available later
// (Deferred, observed through the embedded Future).
type Payload[E any] struct {
	Immediate bool
	Value     E
	Future    *Future[E]
}

func immediatePayload[E any](v E) Payload[E] {
	return Payload[E]{Immediate: true, Value: v}
}

func haltedPayload[E any]() Payload[E] {
	fut, _, halt, _ := newFuture[E]()
	halt()
	return Payload[E]{Future: fut}
}

// Result is what a Transform returns for a single emission: either a value
// available now (Value) or one produced asynchronously (Async).
type Result[O any] struct {
	immediate bool
	value     O
	future    *Future[O]
}

// Value wraps a synchronously available result.
func Value[O any](v O) Result[O] {
	return Result[O]{immediate: true, value: v}
}

// Async runs fn on its own goroutine and wraps its eventual outcome as a
// deferred Result. fn may return a Halt error to signal an asynchronous
// halt; any other error is treated as a rejection.
func Async[O any](fn func() (O, error)) Result[O] {
	fut, resolve, halt, reject := newFuture[O]()
	go func() {
		v, err := fn()
		if err != nil {
			if _, ok := IsHalt(err); ok {
				halt()
				return
			}
			reject(err)
			return
		}
		resolve(v)
	}()
	return Result[O]{future: fut}
}

func payloadFromResult[O any](r Result[O]) Payload[O] {
	if r.immediate {
		return immediatePayload(r.value)
	}
	return Payload[O]{Future: r.future}
}
