package reactor

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/lattice-run/reactor/internal/logging"
)

// QueueDepths is a point-in-time snapshot of how much work each of the
// scheduler's three queues is currently holding, used for diagnostics.
type QueueDepths struct {
	Pure     int
	Mutation int
	Listener int
}

// Scheduler drains three queues, always in the same order: pure transforms
// to fixpoint, then mutation effects, then listener effects. Each queue is
// reentrancy-guarded so a transform that itself emits cannot recursively
// re-enter a drain already in progress for that queue.
type Scheduler struct {
	mu sync.Mutex

	pure     []func()
	mutation []func()
	listener []func()

	pureRunning     bool
	mutationRunning bool
	listenerRunning bool
	scheduled       bool

	log      *logging.Logger
	observer func(QueueDepths)
	emitErr  error
}

// NewScheduler returns an isolated scheduler, recommended for tests that
// want to reason about queue draining without interference from other
// emissions sharing the package-level DefaultScheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{log: logging.NewTestLogger()}
}

var defaultScheduler = &Scheduler{}

// DefaultScheduler returns the process-wide scheduler used by NewEvent and
// NewTopic unless a *With variant is given an explicit one.
func DefaultScheduler() *Scheduler { return defaultScheduler }

// SetLogger overrides the logger used for halt/error diagnostics.
func (s *Scheduler) SetLogger(l *logging.Logger) {
	s.mu.Lock()
	s.log = l
	s.mu.Unlock()
}

// SetObserver registers a callback invoked with the queue depths after every
// completed FlushQueues call; internal/metrics uses this to mirror depths
// into Prometheus gauges.
func (s *Scheduler) SetObserver(fn func(QueueDepths)) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

func (s *Scheduler) logger() *logging.Logger {
	s.mu.Lock()
	l := s.log
	s.mu.Unlock()
	if l == nil {
		return logging.L()
	}
	return l
}

// Introspect reports the current depth of each queue.
func (s *Scheduler) Introspect() QueueDepths {
	s.mu.Lock()
	defer s.mu.Unlock()
	return QueueDepths{Pure: len(s.pure), Mutation: len(s.mutation), Listener: len(s.listener)}
}

// beginEmission reports whether this call is the outermost one for the
// pure queue (i.e. no drain is currently in progress) and, if so, clears
// the slot that captures the first synchronous transform error for the
// emission that is about to start.
func (s *Scheduler) beginEmission() (outermost bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pureRunning {
		return false
	}
	s.emitErr = nil
	return true
}

// takeEmitError returns and clears the first synchronous error recorded
// during the emission started by a matching beginEmission call.
func (s *Scheduler) takeEmitError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.emitErr
	s.emitErr = nil
	return err
}

func (s *Scheduler) recordSyncError(err error) {
	s.mu.Lock()
	if s.emitErr == nil {
		s.emitErr = err
	}
	s.mu.Unlock()
}

func (s *Scheduler) enqueuePure(task func()) {
	s.mu.Lock()
	s.pure = append(s.pure, task)
	s.mu.Unlock()
}

func (s *Scheduler) enqueueMutation(task func()) {
	s.mu.Lock()
	s.mutation = append(s.mutation, task)
	s.mu.Unlock()
}

func (s *Scheduler) enqueueListener(task func()) {
	s.mu.Lock()
	s.listener = append(s.listener, task)
	s.mu.Unlock()
}

// FlushQueues drains pure, then mutation, then listener, synchronously.
// Reentrant calls made from within an active drain are no-ops for whichever
// queue is already running; the enclosing call is responsible for draining
// it to completion.
func (s *Scheduler) FlushQueues() {
	s.drainPure()
	s.drainMutation()
	s.drainListener()

	s.mu.Lock()
	observer := s.observer
	s.mu.Unlock()
	if observer != nil {
		observer(s.Introspect())
	}
}

func (s *Scheduler) drainPure() {
	s.mu.Lock()
	if s.pureRunning {
		s.mu.Unlock()
		return
	}
	s.pureRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.pureRunning = false
		s.mu.Unlock()
	}()

	for {
		s.mu.Lock()
		if len(s.pure) == 0 {
			s.mu.Unlock()
			return
		}
		task := s.pure[0]
		s.pure = s.pure[1:]
		s.mu.Unlock()

		if ok := s.runGuarded(task, "pure"); !ok {
			s.logger().Error("pure queue drain aborted after panic")
			return
		}
	}
}

func (s *Scheduler) drainMutation() {
	s.mu.Lock()
	if s.mutationRunning {
		s.mu.Unlock()
		return
	}
	s.mutationRunning = true
	tasks := s.mutation
	s.mutation = nil
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.mutationRunning = false
		s.mu.Unlock()
	}()

	for i, task := range tasks {
		if ok := s.runGuarded(task, "mutation"); !ok {
			s.logger().Error("mutation queue drain aborted after panic",
				logging.Int("remaining", len(tasks)-i-1))
			return
		}
	}
}

func (s *Scheduler) drainListener() {
	s.mu.Lock()
	if s.listenerRunning {
		s.mu.Unlock()
		return
	}
	s.listenerRunning = true
	tasks := s.listener
	s.listener = nil
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.listenerRunning = false
		s.mu.Unlock()
	}()

	for i, task := range tasks {
		if ok := s.runGuarded(task, "listener"); !ok {
			s.logger().Error("listener queue drain aborted after panic",
				logging.Int("remaining", len(tasks)-i-1))
			return
		}
	}
}

// runGuarded runs task, recovering a panic into an error-level log entry.
// It reports false when task panicked, so callers can stop draining the
// remainder of the current pass rather than silently continue past a
// corrupted queue.
func (s *Scheduler) runGuarded(task func(), queue string) (ok bool) {
	ok = true
	defer func() {
		if r := recover(); r != nil {
			err, isErr := r.(error)
			if !isErr {
				err = fmt.Errorf("%v", r)
			}
			s.logger().Error(queue+" effect panicked", logging.Error(err))
			ok = false
		}
	}()
	task()
	return ok
}

// scheduleFlush guarantees a future FlushQueues call without synchronously
// re-entering one. It is the mechanism by which work enqueued outside any
// active drain (an async transform resolving on its own goroutine, or a
// listener/mutation registration) is still guaranteed to be drained.
func (s *Scheduler) scheduleFlush() {
	s.mu.Lock()
	if s.scheduled {
		s.mu.Unlock()
		return
	}
	s.scheduled = true
	s.mu.Unlock()

	go func() {
		runtime.Gosched()
		s.mu.Lock()
		s.scheduled = false
		s.mu.Unlock()
		s.FlushQueues()
	}()
}

// FlushQueues drains the default scheduler's queues.
func FlushQueues() { DefaultScheduler().FlushQueues() }

// IntrospectQueues reports the default scheduler's queue depths.
func IntrospectQueues() QueueDepths { return DefaultScheduler().Introspect() }
