package reactor

import (
	"github.com/lattice-run/reactor/internal/logging"
	"github.com/lattice-run/reactor/internal/scope"
)

// Handler is a node in the propagation graph: it exposes the stream of
// payloads flowing through it. The interface is sealed (via the unexported
// scheduler method) because Subscribe needs to know which Scheduler a
// handler's emissions are drained on; callers never implement Handler
// themselves, only obtain one from NewEvent, NewTopic, or Subscribe.
type Handler[E any] interface {
	Stream() *Stream[Payload[E]]
	scheduler() *Scheduler
}

type handlerNode[E any] struct {
	stream *Stream[Payload[E]]
	sched  *Scheduler
}

func (h *handlerNode[E]) Stream() *Stream[Payload[E]] { return h.stream }
func (h *handlerNode[E]) scheduler() *Scheduler       { return h.sched }

// Transform maps an upstream value to a downstream Result. Returning a Halt
// error (see Halt) suppresses the emission along this edge instead of
// propagating it; any other error propagates to the originating Emit call
// when the upstream item was synchronous, or is logged when it was not.
type Transform[E, O any] func(E) (Result[O], error)

// Subscribe derives a new Handler[O] by applying transform to every value
// that flows through h. The subscription is torn down when the enclosing
// scope (see package scope) is disposed.
func Subscribe[E, O any](h Handler[E], transform Transform[E, O]) Handler[O] {
	sched := h.scheduler()
	downstream := NewStream[Payload[O]]()
	out := &handlerNode[O]{stream: downstream, sched: sched}

	deliver := func(p Payload[O]) {
		sched.enqueuePure(func() { downstream.Push(p) })
	}

	applyTransform := func(v E, synchronous bool) (Payload[O], bool) {
		result, err := transform(v)
		if err != nil {
			if reason, ok := IsHalt(err); ok {
				sched.logger().Info("propagation halted", logging.String("reason", reason))
				return Payload[O]{}, false
			}
			if synchronous {
				sched.recordSyncError(err)
			} else {
				sched.logger().Error("transform error", logging.Error(err))
			}
			return Payload[O]{}, false
		}
		return payloadFromResult(result), true
	}

	sub := h.Stream().Subscribe(func(item Payload[E]) {
		if item.Immediate {
			if p, ok := applyTransform(item.Value, true); ok {
				deliver(p)
			}
			return
		}
		item.Future.Then(func(value E, halted bool, err error) {
			defer sched.scheduleFlush()
			if halted {
				deliver(haltedPayload[O]())
				return
			}
			if err != nil {
				sched.logger().Error("upstream rejected", logging.Error(err))
				return
			}
			if p, ok := applyTransform(value, false); ok {
				deliver(p)
			}
		})
	})
	scope.OnTeardown(func() { sub.Unsubscribe() })

	return out
}
