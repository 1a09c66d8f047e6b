// Package graph implements the dataflow execution layer: stream edges,
// the operator protocol, and graph lifecycle.
// See doc.go for complete package documentation.
package graph

import (
	"github.com/cockroachdb/errors"

	"github.com/dreamware/diffflow/internal/multiset"
	"github.com/dreamware/diffflow/internal/version"
)

// streamWriter is the sending half of a stream edge: a single-writer,
// multi-reader channel. Every reader sees its own FIFO queue of
// messages; when the writer emits, the message is pushed onto every
// queue. Collections are shared by reference, which is safe because
// emitted MultiSets are immutable.
//
// The writer validates on the way out:
//   - Data versions must be covered by the last sent frontier
//   - Frontiers must be monotonically non-decreasing
//
// These checks turn dataflow-author mistakes into errors at the point of
// emission instead of corrupted state downstream.
//
// streamWriter is unsynchronized: the graph is stepped by one goroutine
// and writers are owned by exactly one operator (or input handle).
type streamWriter[T any] struct {
	// readers holds one queue per attached reader. Readers attach only
	// during graph construction.
	readers []*streamReader[T]

	// frontier is the last sent (or initial) frontier. Data below it is
	// refused; the next frontier must be at or beyond it.
	frontier version.Antichain
}

// newStreamWriter creates a writer whose coverage starts at the given
// initial frontier.
func newStreamWriter[T any](initial version.Antichain) *streamWriter[T] {
	return &streamWriter[T]{frontier: initial}
}

// newReader attaches and returns a new reader with an empty queue.
func (w *streamWriter[T]) newReader() *streamReader[T] {
	r := &streamReader[T]{}
	w.readers = append(w.readers, r)
	return r
}

// sendData fans a change batch out to every reader.
//
// Returns version.ErrInvalidVersion (wrapped) if the version is not
// covered by the writer's current frontier: the writer would be
// contradicting a promise it already made.
func (w *streamWriter[T]) sendData(at version.Version, collection multiset.MultiSet[T]) error {
	if !w.frontier.LessEqualVersion(at) {
		return errors.Wrapf(version.ErrInvalidVersion,
			"data version %s not covered by frontier %s", at, w.frontier)
	}
	msg := Message[T]{Type: MessageData, Data: DataPayload[T]{Version: at, Collection: collection}}
	for _, r := range w.readers {
		r.push(msg)
	}
	return nil
}

// sendFrontier fans a frontier update out to every reader and records it
// as the writer's new coverage.
//
// Returns ErrInvalidFrontierUpdate if the new frontier is not at or
// beyond the previous one.
func (w *streamWriter[T]) sendFrontier(frontier version.Antichain) error {
	if !w.frontier.LessEqual(frontier) {
		return errors.Wrapf(ErrInvalidFrontierUpdate,
			"frontier %s is not beyond %s", frontier, w.frontier)
	}
	w.frontier = frontier
	msg := Message[T]{Type: MessageFrontier, Frontier: frontier}
	for _, r := range w.readers {
		r.push(msg)
	}
	return nil
}

// streamReader is one receiving half of a stream edge: a private FIFO
// queue drained by the owning operator once per run.
type streamReader[T any] struct {
	// queue holds the undelivered messages in emission order.
	queue []Message[T]
}

// push appends a message. Only the writer calls this.
func (r *streamReader[T]) push(msg Message[T]) {
	r.queue = append(r.queue, msg)
}

// drain removes and returns all queued messages in order.
func (r *streamReader[T]) drain() []Message[T] {
	out := r.queue
	r.queue = nil
	return out
}

// pending returns the number of undelivered messages.
func (r *streamReader[T]) pending() int {
	return len(r.queue)
}
