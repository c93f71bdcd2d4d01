package reactor

import (
	"reflect"
	"testing"

	"github.com/lattice-run/reactor/internal/scope"
)

func TestTopicFanOutMatchesKeyPathAlgorithm(t *testing.T) {
	var seen []int
	push := func(v int) { seen = append(seen, v) }

	scope.Run(func() {
		onTopic, emitTopic := NewTopicWith[any](NewScheduler())

		onTopic.At("a").Listen(func(v any) { push(v.(int)) })
		onTopic.At("b").Listen(func(v any) { push(v.(map[string]any)["c"].(int)) })
		onTopic.At("b", "c").Listen(func(v any) { push(v.(int)) })

		emitTopic.At("a").Emit(1)
		emitTopic.At("b").Emit(map[string]any{"c": 2})
		emitTopic.At("b", "c").Emit(3)
		emitTopic.Emit(map[string]any{"a": 4, "b": map[string]any{"c": 5}})
	})

	want := []int{1, 2, 2, 3, 3, 4, 5, 5}
	if !reflect.DeepEqual(seen, want) {
		t.Fatalf("fan-out sequence = %v, want %v", seen, want)
	}

	onTopic, _ := NewTopicWith[any](NewScheduler())
	scope.Run(func() {
		onTopic.At("a").Listen(func(any) {})
		onTopic.At("b").Listen(func(any) {})
		onTopic.At("b", "c").Listen(func(any) {})
	})
	if got := onTopic.NodeCount(); got != 4 {
		t.Fatalf("NodeCount() = %d, want 4 (root + a + b + b.c)", got)
	}
}

func TestTopicEmitWithoutSubscriberIsNoop(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("emitting to an unsubscribed path panicked: %v", r)
		}
	}()

	_, emitTopic := NewTopicWith[any](NewScheduler())
	emitTopic.At("a", "b").Emit(42)
	emitTopic.Emit(map[string]any{"a": 1})
}

func TestOnTopicAssertsLeafType(t *testing.T) {
	var got []int
	scope.Run(func() {
		onTopic, emitTopic := NewTopicWith[any](NewScheduler())
		doubled := OnTopic[int](onTopic.At("n"), func(n int) (int, error) {
			return n * 2, nil
		})
		Listen(doubled, func(v any) { got = append(got, v.(int)) })

		emitTopic.At("n").Emit(5)
	})

	want := []int{10}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got = %v, want %v", got, want)
	}
}
