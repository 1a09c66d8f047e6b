// Package graph implements the dataflow execution layer: stream edges,
// the operator protocol, and graph lifecycle.
// See doc.go for complete package documentation.
package graph

import (
	"fmt"

	"github.com/dreamware/diffflow/internal/multiset"
	"github.com/dreamware/diffflow/internal/version"
)

// MessageType discriminates the two message kinds carried on a stream
// edge.
type MessageType int

const (
	// MessageData carries a change batch at a version.
	MessageData MessageType = iota

	// MessageFrontier carries a promise that no more data will be sent
	// at versions not at or beyond some element of the antichain.
	MessageFrontier
)

// String returns the lowercase message kind name.
func (t MessageType) String() string {
	switch t {
	case MessageData:
		return "data"
	case MessageFrontier:
		return "frontier"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// DataPayload is the body of a MessageData message.
type DataPayload[T any] struct {
	// Version the change batch applies at.
	Version version.Version

	// Collection is the change batch. Emitted collections are shared by
	// reference across readers and must be treated as immutable.
	Collection multiset.MultiSet[T]
}

// Message is one unit on a stream edge: either a data batch or a
// frontier update. Exactly one of Data and Frontier is meaningful,
// according to Type.
//
// Applications observe Messages through the Output operator; everything
// else about edges is internal to the engine.
type Message[T any] struct {
	// Type says which payload field is meaningful.
	Type MessageType

	// Data is the change batch when Type is MessageData.
	Data DataPayload[T]

	// Frontier is the promise when Type is MessageFrontier.
	Frontier version.Antichain
}

// String formats the message for the debug operator.
func (m Message[T]) String() string {
	switch m.Type {
	case MessageData:
		return fmt.Sprintf("data %s %s", m.Data.Version, m.Data.Collection)
	case MessageFrontier:
		return fmt.Sprintf("frontier %s", m.Frontier)
	default:
		return m.Type.String()
	}
}
