package reactor

import (
	"testing"
	"time"

	"github.com/lattice-run/reactor/internal/scope"
)

func TestNewPartitionExactlyOneBranchFires(t *testing.T) {
	var evens, odds []int
	scope.Run(func() {
		h, emit := NewEventWith[int](NewScheduler())
		even, odd := NewPartition(h, func(v int) bool { return v%2 == 0 })
		Listen(even, func(v int) { evens = append(evens, v) })
		Listen(odd, func(v int) { odds = append(odds, v) })

		for _, v := range []int{1, 2, 3, 4, 5} {
			if err := emit.Emit(v); err != nil {
				t.Fatalf("Emit(%d): %v", v, err)
			}
		}
	})

	if want := []int{2, 4}; !equalInts(evens, want) {
		t.Fatalf("evens = %v, want %v", evens, want)
	}
	if want := []int{1, 3, 5}; !equalInts(odds, want) {
		t.Fatalf("odds = %v, want %v", odds, want)
	}
}

func TestNewPartitionPredicatePanicFiresNeither(t *testing.T) {
	var evens, odds []int
	scope.Run(func() {
		h, emit := NewEventWith[int](NewScheduler())
		even, odd := NewPartition(h, func(v int) bool {
			if v == 3 {
				panic("bad predicate")
			}
			return v%2 == 0
		})
		Listen(even, func(v int) { evens = append(evens, v) })
		Listen(odd, func(v int) { odds = append(odds, v) })

		for _, v := range []int{2, 3, 4} {
			if err := emit.Emit(v); err != nil {
				t.Fatalf("Emit(%d): %v", v, err)
			}
		}
	})

	if want := []int{2, 4}; !equalInts(evens, want) {
		t.Fatalf("evens = %v, want %v", evens, want)
	}
	if len(odds) != 0 {
		t.Fatalf("odds = %v, want none", odds)
	}
}

func TestListenMutationRunsBeforeListener(t *testing.T) {
	var order []string
	scope.Run(func() {
		h, emit := NewEventWith[int](NewScheduler())
		ListenMutation(h, func(v int) { order = append(order, "mutation") })
		Listen(h, func(v int) { order = append(order, "listener") })

		if err := emit.Emit(1); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	})

	want := []string{"mutation", "listener"}
	if len(order) != len(want) || order[0] != want[0] || order[1] != want[1] {
		t.Fatalf("got %v, want %v", order, want)
	}
}

func TestListenSyncObservesFutureBeforeResolution(t *testing.T) {
	gate := make(chan struct{})
	results := make(chan *Future[int], 1)

	scope.Run(func() {
		h, emit := NewEventWith[int](NewScheduler())
		async := Subscribe(h, func(v int) (Result[int], error) {
			return Async(func() (int, error) {
				<-gate
				return v * 2, nil
			}), nil
		})
		ListenSync(async, func(fut *Future[int]) { results <- fut })

		if err := emit.Emit(5); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	})

	var fut *Future[int]
	select {
	case fut = <-results:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ListenSync to observe the future")
	}

	select {
	case <-fut.done:
		t.Fatal("future settled before the async transform completed")
	default:
	}

	close(gate)

	v, ok := fut.Await()
	if !ok || v != 10 {
		t.Fatalf("Await() = (%d, %v), want (10, true)", v, ok)
	}
}
