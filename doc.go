// Package reactor implements a fine-grained event-composition core: a graph
// of handlers propagates emissions through pure transforms, mutation
// effects, and listener effects, each drained from its own queue in that
// fixed order. See Subscribe, NewEvent, and NewTopic for the primary entry
// points.
package reactor
