// Package graph implements the dataflow execution layer: stream edges,
// the operator protocol, and graph lifecycle.
// See doc.go for complete package documentation.
package graph

import (
	"github.com/dreamware/diffflow/internal/version"
)

// The iteration operators let a dataflow express a fixpoint: the loop
// body sees its own output from the previous iteration, and versions
// inside the loop carry one extra coordinate counting iterations.
//
// The protocol:
//   - Ingress brings data into the scope: each batch at v enters at
//     v.Extend() and its negation enters at v.Extend().ApplyStep(1), so
//     the net effect at iteration 1 and beyond is zero unless the body
//     reintroduces it
//   - Feedback closes the loop: body output at v re-enters at
//     v.ApplyStep(step), and the operator's termination bookkeeping
//     decides when the frontier may leave the scope
//   - Egress truncates the iteration coordinate on the way out

// ingressOp lifts data into an iteration scope.
type ingressOp[T any] struct {
	unaryOp[T, T]
}

func (o *ingressOp[T]) run() error {
	for _, msg := range o.input.drain() {
		switch msg.Type {
		case MessageData:
			entering := msg.Data.Version.Extend()
			if err := o.output.sendData(entering, msg.Data.Collection); err != nil {
				return err
			}
			// Cancel at the next iteration; the body must re-derive
			// anything it wants to keep.
			if err := o.output.sendData(entering.ApplyStep(1), msg.Data.Collection.Negate()); err != nil {
				return err
			}
		case MessageFrontier:
			if err := o.acceptFrontier(msg.Frontier); err != nil {
				return err
			}
			if err := o.advanceOutput(o.inputFrontier.Extend()); err != nil {
				return err
			}
		}
	}
	return nil
}

// egressOp drops data back out of an iteration scope.
type egressOp[T any] struct {
	unaryOp[T, T]
}

func (o *egressOp[T]) run() error {
	for _, msg := range o.input.drain() {
		switch msg.Type {
		case MessageData:
			if err := o.output.sendData(msg.Data.Version.Truncate(), msg.Data.Collection); err != nil {
				return err
			}
		case MessageFrontier:
			if err := o.acceptFrontier(msg.Frontier); err != nil {
				return err
			}
			if err := o.advanceOutput(o.inputFrontier.Truncate()); err != nil {
				return err
			}
		}
	}
	return nil
}

// feedbackOp closes the iteration loop: body output at v re-enters the
// loop at v.ApplyStep(step), and the operator decides when the loop has
// quiesced.
//
// Termination bookkeeping, per top-level (truncated) version:
//   - inFlight: the stepped versions whose data is still circulating;
//     a version is dropped once a kept frontier element passes it
//   - emptySeen: the distinct incremented frontier elements observed
//     with no in-flight data
//
// On every run the operator derives a candidate output frontier from the
// incremented input frontier. An element whose top-level version has
// in-flight data is kept. An element with none is tolerated for a few
// distinct empty observations; a stable element (an outer time whose
// data simply has not arrived yet) never accumulates more than one, so
// it is kept indefinitely, while an element spinning through iterations
// with no data exhausts the tolerance and is rejected. Rejected elements
// are replaced by their joins with the surviving in-flight versions so
// data at other top-level times is preserved.
//
// The tolerance heuristic is sound only under single-threaded
// cooperative stepping: by the time several distinct empty frontier
// updates have been observed, the body is quiescent for that outer time.
type feedbackOp[T any] struct {
	unaryOp[T, T]

	step      int
	tolerance int

	// inFlight maps truncated version keys to the stepped versions with
	// pending data.
	inFlight map[string]map[string]version.Version

	// emptySeen maps truncated version keys to the distinct frontier
	// elements observed with no in-flight data.
	emptySeen map[string]map[string]struct{}
}

func (o *feedbackOp[T]) run() error {
	for _, msg := range o.input.drain() {
		switch msg.Type {
		case MessageData:
			stepped := msg.Data.Version.ApplyStep(o.step)
			if err := o.output.sendData(stepped, msg.Data.Collection); err != nil {
				return err
			}
			tk := stepped.Truncate().Key()
			flights, ok := o.inFlight[tk]
			if !ok {
				flights = make(map[string]version.Version)
				o.inFlight[tk] = flights
			}
			flights[stepped.Key()] = stepped
			// Fresh data resets the empty observations for this outer
			// time.
			delete(o.emptySeen, tk)
		case MessageFrontier:
			if err := o.acceptFrontier(msg.Frontier); err != nil {
				return err
			}
		}
	}

	incremented := o.inputFrontier.ApplyStep(o.step)
	var kept []version.Version
	var rejected []version.Version
	for _, elem := range incremented.Elements() {
		tk := elem.Truncate().Key()
		flights := o.inFlight[tk]
		if len(flights) > 0 {
			kept = append(kept, elem)
			// Versions this element has passed are no longer in flight.
			for vk, w := range flights {
				if w.LessThan(elem) {
					delete(flights, vk)
				}
			}
			if len(flights) == 0 {
				delete(o.inFlight, tk)
			}
			continue
		}
		seen, ok := o.emptySeen[tk]
		if !ok {
			seen = make(map[string]struct{})
			o.emptySeen[tk] = seen
		}
		if len(seen) < o.tolerance {
			kept = append(kept, elem)
			seen[elem.Key()] = struct{}{}
			continue
		}
		rejected = append(rejected, elem)
	}
	// A rejected element may still matter to outer times with live
	// data; keep its joins with every surviving in-flight version.
	for _, r := range rejected {
		for _, flights := range o.inFlight {
			for _, w := range flights {
				kept = append(kept, r.Join(w))
			}
		}
	}
	return o.advanceOutput(version.NewAntichain(kept...))
}

// Iterate runs body to fixpoint over the stream. The body receives the
// entering data concatenated with its own output from the previous
// iteration, and its result is both fed back into the loop and, with
// the iteration coordinate truncated, returned.
//
// The loop terminates for an outer time once no more differences
// circulate for it; the feedback operator's tolerance for empty frontier
// updates (a graph option, default 3) guards against declaring
// quiescence while data is still in flight.
//
// The feedback edge is allocated before the body is built and its
// writing operator wired in after, which is how the logical cycle is
// expressed without any operator owning another.
func Iterate[T any](s *Stream[T], body func(*Stream[T]) *Stream[T]) *Stream[T] {
	g := s.g
	g.mustBuild()
	extended := s.initial.Extend()

	ingressBase, ingressOut := newUnary[T, T](s, "ingress", extended, s.scope+1)
	g.register(&ingressOp[T]{unaryOp: ingressBase})

	// The feedback stream exists before the body so the body can read
	// it; its writer is driven by the feedback operator created below.
	feedbackWriter := newStreamWriter[T](extended)
	feedbackStream := &Stream[T]{g: g, w: feedbackWriter, initial: extended, scope: s.scope + 1}

	bodyOut := body(ingressOut.Concat(feedbackStream))
	if bodyOut.g != g {
		panic(ErrCrossGraphComposition)
	}

	feedback := &feedbackOp[T]{
		unaryOp: unaryOp[T, T]{
			id:             g.takeOpID(),
			name:           "feedback",
			log:            g.log,
			input:          bodyOut.w.newReader(),
			output:         feedbackWriter,
			inputFrontier:  bodyOut.initial,
			outputFrontier: extended,
		},
		step:      1,
		tolerance: g.feedbackTolerance,
		inFlight:  make(map[string]map[string]version.Version),
		emptySeen: make(map[string]map[string]struct{}),
	}
	g.register(feedback)

	egressBase, egressOut := newUnary[T, T](bodyOut, "egress", bodyOut.initial.Truncate(), s.scope)
	g.register(&egressOp[T]{unaryOp: egressBase})
	return egressOut
}
