package reactor

import "github.com/lattice-run/reactor/internal/scope"

func safePredicate[T any](pred func(T) bool, v T) (result bool, panicked bool) {
	defer func() {
		if recover() != nil {
			panicked = true
			result = false
		}
	}()
	result = pred(v)
	return result, panicked
}

// NewPartition derives two sibling handlers from h: the first fires for
// values where pred returns true, the second for values where it returns
// false. Exactly one of the two fires per emission, unless pred itself
// panics, in which case neither does. Implemented as two independent
// Subscribe calls that each use Halt to prune the branch they don't own.
func NewPartition[T any](h Handler[T], pred func(T) bool) (Handler[T], Handler[T]) {
	truthy := Subscribe(h, func(v T) (Result[T], error) {
		ok, panicked := safePredicate(pred, v)
		if panicked || !ok {
			return Result[T]{}, Halt("partition")
		}
		return Value(v), nil
	})
	falsy := Subscribe(h, func(v T) (Result[T], error) {
		ok, panicked := safePredicate(pred, v)
		if panicked || ok {
			return Result[T]{}, Halt("partition")
		}
		return Value(v), nil
	})
	return truthy, falsy
}

// Listen subscribes effect to fire, via the mutation-queue's sibling
// listener queue, for every value that reaches h (after any upstream async
// resolution completes). Listener effects run last in a flush, after pure
// propagation has reached fixpoint and mutation effects have run.
func Listen[E any](h Handler[E], effect func(E)) {
	sched := h.scheduler()
	Subscribe(h, func(v E) (Result[struct{}], error) {
		sched.enqueueListener(func() { effect(v) })
		sched.scheduleFlush()
		return Value(struct{}{}), nil
	})
}

// ListenMutation is Listen's counterpart for the mutation queue, which
// drains before the listener queue but after pure propagation reaches
// fixpoint. Use it for effects that other listeners should be able to
// observe the results of.
func ListenMutation[E any](h Handler[E], effect func(E)) {
	sched := h.scheduler()
	Subscribe(h, func(v E) (Result[struct{}], error) {
		sched.enqueueMutation(func() { effect(v) })
		sched.scheduleFlush()
		return Value(struct{}{}), nil
	})
}

// ListenSync subscribes effect to fire, via the listener queue, at the
// moment an emission reaches h -- synchronously, before any async
// transform along the way has resolved. effect receives a Future wrapping
// the eventual value (already resolved for a synchronous upstream item),
// which resolves to ok=false if the upstream halts.
func ListenSync[E any](h Handler[E], effect func(*Future[E])) {
	sched := h.scheduler()
	sub := h.Stream().Subscribe(func(item Payload[E]) {
		fut := item.Future
		if item.Immediate {
			f, resolve, _, _ := newFuture[E]()
			resolve(item.Value)
			fut = f
		}
		sched.enqueueListener(func() { effect(fut) })
		sched.scheduleFlush()
	})
	scope.OnTeardown(func() { sub.Unsubscribe() })
}
