package reactor

import (
	"fmt"
	"sort"
	"sync"
)

// topicNode is one key in the hierarchical topic tree. Its (handler,
// emitter) pair is created lazily, the first time something subscribes at
// its path; emitting at a path that nobody has ever subscribed to is a
// no-op rather than allocating a node.
type topicNode struct {
	mu       sync.Mutex
	handler  Handler[any]
	emitter  *Emitter[any]
	children map[string]*topicNode
	sched    *Scheduler
}

func newTopicNode(s *Scheduler) *topicNode {
	return &topicNode{children: make(map[string]*topicNode), sched: s}
}

func (n *topicNode) childAt(keys []string) *topicNode {
	node := n
	for _, k := range keys {
		node.mu.Lock()
		child, ok := node.children[k]
		if !ok {
			child = newTopicNode(node.sched)
			node.children[k] = child
		}
		node.mu.Unlock()
		node = child
	}
	return node
}

// peekChildAt navigates to the node at keys without creating anything,
// returning ok=false if any segment of the path has never been touched.
func (n *topicNode) peekChildAt(keys []string) (target *topicNode, ok bool) {
	node := n
	for _, k := range keys {
		node.mu.Lock()
		child, exists := node.children[k]
		node.mu.Unlock()
		if !exists {
			return nil, false
		}
		node = child
	}
	return node, true
}

func (n *topicNode) ensureEvent() (Handler[any], *Emitter[any]) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.handler == nil {
		h, e := NewEventWith[any](n.sched)
		n.handler = h
		n.emitter = &e
	}
	return n.handler, n.emitter
}

func (n *topicNode) existingEvent() (*Emitter[any], bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.emitter == nil {
		return nil, false
	}
	return n.emitter, true
}

func (n *topicNode) count() int {
	n.mu.Lock()
	children := make([]*topicNode, 0, len(n.children))
	for _, c := range n.children {
		children = append(children, c)
	}
	n.mu.Unlock()

	total := 1
	for _, c := range children {
		total += c.count()
	}
	return total
}

// TopicHandler is the subscription side of a hierarchical topic tree: it
// names a key path and lets a transform be registered at it.
type TopicHandler[T any] struct {
	root *topicNode
	path []string
}

// TopicEmitter is the publishing side of a hierarchical topic tree.
type TopicEmitter[T any] struct {
	root *topicNode
	path []string
}

// NewTopic creates a (TopicHandler, TopicEmitter) pair rooted at an empty
// key path, on the default scheduler. T only documents the payload shape
// at the root; nested keys route dynamic (map[string]any) payloads.
func NewTopic[T any]() (TopicHandler[T], TopicEmitter[T]) {
	return NewTopicWith[T](DefaultScheduler())
}

// NewTopicWith is NewTopic parameterized by an explicit scheduler.
func NewTopicWith[T any](s *Scheduler) (TopicHandler[T], TopicEmitter[T]) {
	root := newTopicNode(s)
	return TopicHandler[T]{root: root}, TopicEmitter[T]{root: root}
}

func appendKeys(path []string, keys ...string) []string {
	out := make([]string, 0, len(path)+len(keys))
	out = append(out, path...)
	out = append(out, keys...)
	return out
}

// At partially applies further key segments, mirroring onTopic('a') in the
// original callable-or-variadic form: the result can itself be narrowed
// further with At, or subscribed with On.
func (t TopicHandler[T]) At(keys ...string) TopicHandler[T] {
	return TopicHandler[T]{root: t.root, path: appendKeys(t.path, keys...)}
}

// On subscribes transform at this handler's key path, creating the node
// (and its underlying event) if this is the first subscription there.
func (t TopicHandler[T]) On(transform func(any) (any, error)) Handler[any] {
	node := t.root.childAt(t.path)
	h, _ := node.ensureEvent()
	return Subscribe(h, func(v any) (Result[any], error) {
		out, err := transform(v)
		if err != nil {
			return Result[any]{}, err
		}
		return Value[any](out), nil
	})
}

// OnTopic is a convenience wrapper around On for the common fully-typed
// leaf case: it asserts the incoming payload to T before calling transform,
// so callers at a single-type leaf don't repeat the any-typed assertion
// themselves.
func OnTopic[T any](t TopicHandler[any], transform func(T) (T, error)) Handler[any] {
	return t.On(func(v any) (any, error) {
		typed, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("reactor: topic payload is %T, want %T", v, typed)
		}
		out, err := transform(typed)
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Listen subscribes effect at this handler's key path as a side effect
// (via the listener queue), for callers that don't need a derived Handler.
func (t TopicHandler[T]) Listen(effect func(any)) {
	node := t.root.childAt(t.path)
	h, _ := node.ensureEvent()
	Listen(h, func(v any) { effect(v) })
}

// NodeCount reports how many key-path nodes exist at and below this
// handler's position in the tree, including this node itself and any
// intermediate nodes created on the way to a subscribed path (nodes are
// created by subscribing, never by emitting). internal/metrics mirrors it
// into a gauge.
func (t TopicHandler[T]) NodeCount() int {
	node, ok := t.root.peekChildAt(t.path)
	if !ok {
		return 0
	}
	return node.count()
}

// At partially applies further key segments on the emitting side.
func (t TopicEmitter[T]) At(keys ...string) TopicEmitter[T] {
	return TopicEmitter[T]{root: t.root, path: appendKeys(t.path, keys...)}
}

// Emit publishes payload at this emitter's key path. Object payloads
// (map[string]any) recurse per own key before anything is delivered;
// primitive payloads fan out a wrapped reconstruction to every ancestor
// key path that already has a subscriber, and the raw payload to the exact
// path. Paths nobody has ever subscribed to are silently skipped.
func (t TopicEmitter[T]) Emit(payload any) {
	emitAt(t.root, t.path, payload)
}

func asObject(payload any) (map[string]any, bool) {
	obj, ok := payload.(map[string]any)
	return obj, ok
}

func wrap(suffix []string, payload any) any {
	if len(suffix) == 0 {
		return payload
	}
	return map[string]any{suffix[0]: wrap(suffix[1:], payload)}
}

func deliverIfExists(root *topicNode, path []string, value any) {
	node, ok := root.peekChildAt(path)
	if !ok {
		return
	}
	emitter, ok := node.existingEvent()
	if !ok {
		return
	}
	emitter.Emit(value)
}

func emitAt(root *topicNode, path []string, payload any) {
	if obj, ok := asObject(payload); ok {
		// 1.- Own keys recurse in a deterministic (sorted) order so fan-out
		// sequences are reproducible regardless of map iteration order.
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			emitAt(root, appendKeys(path, k), obj[k])
		}
		return
	}

	n := len(path)
	for i := 0; i <= n; i++ {
		prefix := path[:i]
		suffix := path[i:n]
		deliverIfExists(root, prefix, wrap(suffix, payload))
	}
}
