package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/lattice-run/reactor"
	"github.com/lattice-run/reactor/internal/scope"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [scenario]",
	Short: "Run a canonical scenario and print the observed listener sequence",
	Long: `run executes one of the core library's eight canonical scenarios and
prints the sequence of values its listeners observed. With no argument, all
eight run in turn.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			for _, name := range scenarioNames() {
				runScenario(cmd, name)
			}
			return nil
		}
		if _, ok := scenarios[args[0]]; !ok {
			return fmt.Errorf("unknown scenario %q (known: %v)", args[0], scenarioNames())
		}
		runScenario(cmd, args[0])
		return nil
	},
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func runScenario(cmd *cobra.Command, name string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", name, scenarios[name]())
}

var scenarios = map[string]func() []any{
	"1-basic":             scenarioBasic,
	"2-transform-chain":   scenarioTransformChain,
	"3-halt":              scenarioHalt,
	"4-ordering":          scenarioOrdering,
	"5-mutation-listener": scenarioMutationListener,
	"6-topic-fanout":      scenarioTopicFanout,
	"7-async-flatten":     scenarioAsyncFlatten,
	"8-sync-listener":     scenarioSyncListener,
}

func scenarioBasic() []any {
	var got []any
	h, emit := reactor.NewEventWith[string](reactor.NewScheduler())
	disposer := scope.Run(func() {
		reactor.Listen(h, func(p string) { got = append(got, p) })
	})
	emit.Emit("hello")
	disposer.Dispose()
	emit.Emit("world")
	return got
}

func scenarioTransformChain() []any {
	var got []any
	scope.Run(func() {
		h, emit := reactor.NewEventWith[string](reactor.NewScheduler())
		decorated := reactor.Subscribe(h, func(p string) (reactor.Result[string], error) {
			return reactor.Value("Decorated: " + p), nil
		})
		reactor.Listen(decorated, func(p string) { got = append(got, p) })
		emit.Emit("hello")
	})
	return got
}

func scenarioHalt() []any {
	var got []any
	scope.Run(func() {
		h, emit := reactor.NewEventWith[string](reactor.NewScheduler())
		valid := reactor.Subscribe(h, func(p string) (reactor.Result[string], error) {
			if len(p) < 3 {
				return reactor.Result[string]{}, reactor.Halt("Huh")
			}
			return reactor.Value(p), nil
		})
		reactor.Listen(valid, func(p string) { got = append(got, p) })
		emit.Emit("hello")
		emit.Emit("hi")
	})
	return got
}

func scenarioOrdering() []any {
	var got []any
	scope.Run(func() {
		h, emit := reactor.NewEventWith[int](reactor.NewScheduler())
		reactor.Listen(h, func(n int) { got = append(got, n) })
		double := reactor.Subscribe(h, func(n int) (reactor.Result[int], error) { return reactor.Value(n * 2), nil })
		doubleDouble := reactor.Subscribe(double, func(n int) (reactor.Result[int], error) { return reactor.Value(n * 2), nil })
		reactor.Listen(doubleDouble, func(n int) { got = append(got, n) })
		reactor.Listen(double, func(n int) { got = append(got, n) })
		reactor.Listen(h, func(n int) { got = append(got, n) })
		emit.Emit(1)
	})
	return got
}

func scenarioMutationListener() []any {
	var got []any
	scope.Run(func() {
		h, emit := reactor.NewEventWith[string](reactor.NewScheduler())
		reactor.Subscribe(h, func(p string) (reactor.Result[string], error) {
			got = append(got, 1)
			return reactor.Value(p), nil
		})
		reactor.ListenMutation(h, func(p string) { got = append(got, 2) })
		reactor.Listen(h, func(p string) { got = append(got, 3) })
		emit.Emit("hello")
	})
	return got
}

func scenarioTopicFanout() []any {
	var got []any
	scope.Run(func() {
		onTopic, emitTopic := reactor.NewTopicWith[any](reactor.NewScheduler())
		onTopic.At("a").Listen(func(v any) { got = append(got, v) })
		onTopic.At("b").Listen(func(v any) { got = append(got, v.(map[string]any)["c"]) })
		onTopic.At("b", "c").Listen(func(v any) { got = append(got, v) })

		emitTopic.At("a").Emit(1)
		emitTopic.At("b").Emit(map[string]any{"c": 2})
		emitTopic.At("b", "c").Emit(3)
		emitTopic.Emit(map[string]any{"a": 4, "b": map[string]any{"c": 5}})
	})
	return got
}

func scenarioAsyncFlatten() []any {
	var got []any
	scope.Run(func() {
		h, emit := reactor.NewEventWith[string](reactor.NewScheduler())
		async := reactor.Subscribe(h, func(p string) (reactor.Result[string], error) {
			return reactor.Async(func() (string, error) {
				time.Sleep(10 * time.Millisecond)
				return p, nil
			}), nil
		})
		reactor.Listen(async, func(p string) { got = append(got, p) })
		emit.Emit("hello")
	})
	time.Sleep(50 * time.Millisecond)
	return got
}

// scenarioSyncListener runs the canonical sync-listener scenario. Its final
// two elements race between a scheduled queue flush and the sync listener's
// own Future.Then callback (see DESIGN.md's reentrant-emit-from-listener
// note); the printed order may occasionally swap relative to spec.md's
// documented [0, 1, 2].
func scenarioSyncListener() []any {
	var got []any
	scope.Run(func() {
		h, emit := reactor.NewEventWith[int](reactor.NewScheduler())
		async := reactor.Subscribe(h, func(n int) (reactor.Result[int], error) {
			return reactor.Async(func() (int, error) {
				time.Sleep(10 * time.Millisecond)
				return n + 1, nil
			}), nil
		})
		reactor.Listen(async, func(n int) { got = append(got, n) })
		reactor.ListenSync(async, func(fut *reactor.Future[int]) {
			got = append(got, 0)
			fut.Then(func(v int, halted bool, err error) {
				if !halted && err == nil {
					got = append(got, v+1)
				}
			})
		})
		emit.Emit(0)
	})
	time.Sleep(50 * time.Millisecond)
	return got
}
