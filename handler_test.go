package reactor

import (
	"errors"
	"testing"
	"time"

	"github.com/lattice-run/reactor/internal/scope"
)

func TestSubscribePropagatesTransformedValues(t *testing.T) {
	var got []int
	scope.Run(func() {
		h, emit := NewEventWith[int](NewScheduler())
		doubled := Subscribe(h, func(v int) (Result[int], error) {
			return Value(v * 2), nil
		})
		Listen(doubled, func(v int) { got = append(got, v) })

		if err := emit.Emit(3); err != nil {
			t.Fatalf("Emit: %v", err)
		}
		if err := emit.Emit(5); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	})

	if want := []int{6, 10}; !equalInts(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSubscribeHaltSuppressesPropagation(t *testing.T) {
	var got []int
	scope.Run(func() {
		h, emit := NewEventWith[int](NewScheduler())
		evens := Subscribe(h, func(v int) (Result[int], error) {
			if v%2 != 0 {
				return Result[int]{}, Halt("odd")
			}
			return Value(v), nil
		})
		Listen(evens, func(v int) { got = append(got, v) })

		for _, v := range []int{1, 2, 3, 4} {
			if err := emit.Emit(v); err != nil {
				t.Fatalf("Emit(%d): %v", v, err)
			}
		}
	})

	if want := []int{2, 4}; !equalInts(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestEmitReturnsSynchronousTransformError(t *testing.T) {
	boom := errors.New("boom")
	scope.Run(func() {
		h, emit := NewEventWith[int](NewScheduler())
		Subscribe(h, func(v int) (Result[int], error) {
			return Result[int]{}, boom
		})

		err := emit.Emit(1)
		if !errors.Is(err, boom) {
			t.Fatalf("Emit error = %v, want %v", err, boom)
		}
	})
}

func TestSubscribeAsyncTransformResolvesDownstream(t *testing.T) {
	done := make(chan int, 1)
	scope.Run(func() {
		h, emit := NewEventWith[int](NewScheduler())
		async := Subscribe(h, func(v int) (Result[int], error) {
			return Async(func() (int, error) {
				return v * 10, nil
			}), nil
		})
		Listen(async, func(v int) { done <- v })

		if err := emit.Emit(4); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	})

	select {
	case v := <-done:
		if v != 40 {
			t.Fatalf("got %d, want 40", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for async propagation")
	}
}

func TestTeardownStopsFurtherPropagation(t *testing.T) {
	var got []int
	h, emit := NewEventWith[int](NewScheduler())

	disposer := scope.Run(func() {
		doubled := Subscribe(h, func(v int) (Result[int], error) {
			return Value(v * 2), nil
		})
		Listen(doubled, func(v int) { got = append(got, v) })
	})

	if err := emit.Emit(1); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	disposer.Dispose()
	if err := emit.Emit(2); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	if want := []int{2}; !equalInts(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
