package reactor

import (
	"testing"

	"github.com/lattice-run/reactor/internal/scope"
)

func TestFlushQueuesOrdering(t *testing.T) {
	sched := NewScheduler()
	var order []string

	sched.enqueueListener(func() { order = append(order, "listener") })
	sched.enqueueMutation(func() { order = append(order, "mutation") })
	sched.enqueuePure(func() { order = append(order, "pure") })

	sched.FlushQueues()

	want := []string{"pure", "mutation", "listener"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestReentrantEmitFromPureTransformDrainsSynchronously(t *testing.T) {
	var got []int
	scope.Run(func() {
		sched := NewScheduler()
		h, emit := NewEventWith[int](sched)
		doubled := Subscribe(h, func(v int) (Result[int], error) {
			if v == 1 {
				if err := emit.Emit(2); err != nil {
					t.Fatalf("nested Emit: %v", err)
				}
			}
			return Value(v), nil
		})
		Listen(doubled, func(v int) { got = append(got, v) })

		if err := emit.Emit(1); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	})

	if want := []int{1, 2}; !equalInts(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestIntrospectQueuesReportsDepths(t *testing.T) {
	sched := NewScheduler()
	sched.enqueuePure(func() {})
	sched.enqueuePure(func() {})
	sched.enqueueMutation(func() {})
	sched.enqueueListener(func() {})
	sched.enqueueListener(func() {})
	sched.enqueueListener(func() {})

	depths := sched.Introspect()
	want := QueueDepths{Pure: 2, Mutation: 1, Listener: 3}
	if depths != want {
		t.Fatalf("got %+v, want %+v", depths, want)
	}
}
