// Package graph implements the dataflow execution layer: stream edges,
// the operator protocol, and graph lifecycle.
// See doc.go for complete package documentation.
package graph

import (
	"golang.org/x/exp/slices"

	"github.com/dreamware/diffflow/internal/multiset"
	"github.com/dreamware/diffflow/internal/version"
)

// pendingBatch accumulates all data received at one version until the
// frontier seals it.
type pendingBatch[T any] struct {
	at    version.Version
	batch multiset.MultiSet[T]
}

// consolidateOp buffers data per version and emits each version exactly
// once, consolidated, after the input frontier has passed it.
//
// Upstream operators may emit many small batches at the same version;
// consolidate flattens them into one batch per version with no
// zero-multiplicity noise. It is the operator to place before Output
// when the application wants one coherent change batch per version.
type consolidateOp[T any] struct {
	unaryOp[T, T]

	// pending maps version keys to their accumulating batches. An entry
	// is dropped when its version is sealed and flushed.
	pending map[string]*pendingBatch[T]
}

// Consolidate buffers the stream per version and emits one consolidated
// batch per version once the input frontier has advanced past it.
func (s *Stream[T]) Consolidate() *Stream[T] {
	base, out := newUnary[T, T](s, "consolidate", s.initial, s.scope)
	op := &consolidateOp[T]{
		unaryOp: base,
		pending: make(map[string]*pendingBatch[T]),
	}
	s.g.register(op)
	return out
}

func (o *consolidateOp[T]) run() error {
	for _, msg := range o.input.drain() {
		switch msg.Type {
		case MessageData:
			vk := msg.Data.Version.Key()
			p, ok := o.pending[vk]
			if !ok {
				p = &pendingBatch[T]{at: msg.Data.Version}
				o.pending[vk] = p
			}
			p.batch.Extend(msg.Data.Collection)
		case MessageFrontier:
			if err := o.acceptFrontier(msg.Frontier); err != nil {
				return err
			}
		}
	}

	// Flush versions the frontier has passed, earliest first.
	var sealed []*pendingBatch[T]
	for _, p := range o.pending {
		if !o.inputFrontier.LessEqualVersion(p.at) {
			sealed = append(sealed, p)
		}
	}
	slices.SortFunc(sealed, func(a, b *pendingBatch[T]) int {
		return a.at.CompareTotal(b.at)
	})
	for _, p := range sealed {
		consolidated := p.batch.Consolidate()
		if !consolidated.IsEmpty() {
			if err := o.output.sendData(p.at, consolidated); err != nil {
				return err
			}
		}
		delete(o.pending, p.at.Key())
	}

	return o.advanceOutput(o.inputFrontier)
}
