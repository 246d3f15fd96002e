// Package feed delivers remote mutation events into the board reconciler.
//
// Transports push loosely typed rows with at-least-once semantics and no
// ordering guarantee across reconnects; everything downstream assumes events
// may repeat or arrive out of order. Decoding into the typed model happens
// here, at the boundary, so a malformed payload is dropped before it can
// touch in-memory state.
package feed

import (
	"context"
	"fmt"

	"taskboard-cli/internal/model"
)

type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

func (k Kind) Valid() bool {
	switch k {
	case KindInsert, KindUpdate, KindDelete:
		return true
	}
	return false
}

// Topic identifies one logical subscription. ProjectID is only honored for
// the tasks collection; the transport cannot filter child collections
// relationally, so those subscribe unfiltered and are filtered client-side.
type Topic struct {
	Collection model.Collection
	ProjectID  string
}

func (t Topic) String() string {
	if t.ProjectID != "" {
		return fmt.Sprintf("%s:project_id=eq.%s", t.Collection, t.ProjectID)
	}
	return string(t.Collection)
}

// RawEvent is what a transport delivers: undecoded, untrusted.
type RawEvent struct {
	Collection model.Collection
	Kind       Kind
	Record     model.Record
}

// Event is a decoded feed event. ID is always set; exactly one entity pointer
// is non-nil for inserts and updates, all are nil for deletes (delete payloads
// carry only the old row's id).
type Event struct {
	Collection model.Collection
	Kind       Kind
	ID         string

	Project    *model.Project
	Task       *model.Task
	Subtask    *model.Subtask
	Tag        *model.Tag
	TaskTag    *model.TaskTag
	Attachment *model.Attachment
}

// Subscription is a live topic registration. Unsubscribe is safe to call any
// number of times.
type Subscription interface {
	Unsubscribe() error
}

// Transport is the push channel collaborator. Reconnection policy belongs to
// the transport; after a reconnect the first delivered batch may be a replay.
type Transport interface {
	Subscribe(ctx context.Context, topic Topic, fn func(RawEvent)) (Subscription, error)
	Close() error
}
