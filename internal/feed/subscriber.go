package feed

import (
	"context"
	"log/slog"
	"sync"

	"taskboard-cli/internal/model"
)

// Applier receives decoded events. Application must be idempotent and
// order-tolerant; the subscriber makes no exactly-once promise.
type Applier interface {
	ApplyRemoteEvent(Event)
}

// Subscriber owns the per-project subscription set: tasks filtered by project,
// plus unfiltered subscriptions for the child collections and the global tag
// vocabulary. Switching projects tears the whole set down before anything new
// is established, on every exit path, so a stale subscription can never
// deliver into the new project's state.
type Subscriber struct {
	transport Transport
	applier   Applier
	log       *slog.Logger

	mu   sync.Mutex
	subs []Subscription
}

func NewSubscriber(transport Transport, applier Applier, log *slog.Logger) *Subscriber {
	if log == nil {
		log = slog.Default()
	}
	return &Subscriber{transport: transport, applier: applier, log: log}
}

// projectTopics is the subscription set for one active project. Projects stay
// watched so the sidebar follows remote creates/renames.
func projectTopics(projectID string) []Topic {
	return []Topic{
		{Collection: model.Projects},
		{Collection: model.Tasks, ProjectID: projectID},
		{Collection: model.Subtasks},
		{Collection: model.Tags},
		{Collection: model.TaskTags},
		{Collection: model.Attachments},
	}
}

// SetProject replaces the subscription set for a new active project. An empty
// id tears everything down and subscribes to nothing but the project list.
func (s *Subscriber) SetProject(ctx context.Context, projectID string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
	defer func() {
		if err != nil {
			s.teardownLocked()
		}
	}()

	topics := []Topic{{Collection: model.Projects}}
	if projectID != "" {
		topics = projectTopics(projectID)
	}
	for _, t := range topics {
		sub, serr := s.transport.Subscribe(ctx, t, s.deliver)
		if serr != nil {
			err = serr
			return err
		}
		s.subs = append(s.subs, sub)
	}
	return nil
}

// Stop tears down all subscriptions.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}

func (s *Subscriber) teardownLocked() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.log.Warn("feed: unsubscribe failed", "error", err)
		}
	}
	s.subs = nil
}

// deliver decodes one transport event and forwards it. A malformed payload is
// logged and dropped; it must not affect other events or the subscription.
func (s *Subscriber) deliver(raw RawEvent) {
	ev, err := Decode(raw)
	if err != nil {
		s.log.Warn("feed: dropping malformed event",
			"collection", raw.Collection, "kind", raw.Kind, "error", err)
		return
	}
	s.applier.ApplyRemoteEvent(ev)
}
