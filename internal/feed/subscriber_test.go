package feed

import (
	"context"
	"errors"
	"sync"
	"testing"

	"taskboard-cli/internal/model"
)

type fakeTransport struct {
	mu       sync.Mutex
	active   map[string]func(RawEvent) // topic -> handler
	failNext error
	log      []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{active: map[string]func(RawEvent){}}
}

type fakeSub struct {
	t     *fakeTransport
	topic string
}

func (s fakeSub) Unsubscribe() error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	delete(s.t.active, s.topic)
	s.t.log = append(s.t.log, "unsub "+s.topic)
	return nil
}

func (t *fakeTransport) Subscribe(ctx context.Context, topic Topic, fn func(RawEvent)) (Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failNext != nil {
		err := t.failNext
		t.failNext = nil
		return nil, err
	}
	t.active[topic.String()] = fn
	t.log = append(t.log, "sub "+topic.String())
	return fakeSub{t: t, topic: topic.String()}, nil
}

func (t *fakeTransport) Close() error { return nil }

func (t *fakeTransport) deliver(topic string, raw RawEvent) bool {
	t.mu.Lock()
	fn, ok := t.active[topic]
	t.mu.Unlock()
	if ok {
		fn(raw)
	}
	return ok
}

func (t *fakeTransport) topics() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for k := range t.active {
		out = append(out, k)
	}
	return out
}

type recordingApplier struct {
	mu     sync.Mutex
	events []Event
}

func (a *recordingApplier) ApplyRemoteEvent(ev Event) {
	a.mu.Lock()
	a.events = append(a.events, ev)
	a.mu.Unlock()
}

func (a *recordingApplier) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

func TestSetProjectSubscribesFullSet(t *testing.T) {
	tr := newFakeTransport()
	app := &recordingApplier{}
	s := NewSubscriber(tr, app, nil)

	if err := s.SetProject(context.Background(), "p1"); err != nil {
		t.Fatalf("SetProject: %v", err)
	}
	topics := tr.topics()
	if len(topics) != 6 {
		t.Fatalf("expected 6 topics, got %v", topics)
	}
	found := false
	for _, tp := range topics {
		if tp == "tasks:project_id=eq.p1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("task topic must be project-filtered: %v", topics)
	}
}

func TestSetProjectTearsDownPreviousSet(t *testing.T) {
	tr := newFakeTransport()
	app := &recordingApplier{}
	s := NewSubscriber(tr, app, nil)

	if err := s.SetProject(context.Background(), "p1"); err != nil {
		t.Fatalf("SetProject(p1): %v", err)
	}
	if err := s.SetProject(context.Background(), "p2"); err != nil {
		t.Fatalf("SetProject(p2): %v", err)
	}

	// The old task topic must be dead: delivering on it reaches nobody.
	if tr.deliver("tasks:project_id=eq.p1", RawEvent{Collection: model.Tasks, Kind: KindDelete, Record: model.Record{"id": "t1"}}) {
		t.Fatalf("stale project topic still has a live handler")
	}
	if !tr.deliver("tasks:project_id=eq.p2", RawEvent{Collection: model.Tasks, Kind: KindDelete, Record: model.Record{"id": "t1"}}) {
		t.Fatalf("new project topic not subscribed")
	}
	if app.count() != 1 {
		t.Fatalf("expected exactly the new-topic event, got %d", app.count())
	}
}

func TestSetProjectFailureLeavesNothingSubscribed(t *testing.T) {
	tr := newFakeTransport()
	app := &recordingApplier{}
	s := NewSubscriber(tr, app, nil)

	if err := s.SetProject(context.Background(), "p1"); err != nil {
		t.Fatalf("SetProject(p1): %v", err)
	}
	tr.mu.Lock()
	tr.failNext = errors.New("subscribe refused")
	tr.mu.Unlock()
	if err := s.SetProject(context.Background(), "p2"); err == nil {
		t.Fatalf("expected subscribe error")
	}
	if got := tr.topics(); len(got) != 0 {
		t.Fatalf("failed switch must tear down partial set, got %v", got)
	}
}

func TestSetProjectEmptyKeepsOnlyProjectList(t *testing.T) {
	tr := newFakeTransport()
	s := NewSubscriber(tr, &recordingApplier{}, nil)

	if err := s.SetProject(context.Background(), "p1"); err != nil {
		t.Fatalf("SetProject(p1): %v", err)
	}
	if err := s.SetProject(context.Background(), ""); err != nil {
		t.Fatalf("SetProject(\"\"): %v", err)
	}
	topics := tr.topics()
	if len(topics) != 1 || topics[0] != "projects" {
		t.Fatalf("expected only the project list topic, got %v", topics)
	}
}

func TestDeliverDropsMalformedEvents(t *testing.T) {
	tr := newFakeTransport()
	app := &recordingApplier{}
	s := NewSubscriber(tr, app, nil)
	if err := s.SetProject(context.Background(), "p1"); err != nil {
		t.Fatalf("SetProject: %v", err)
	}

	tr.deliver("subtasks", RawEvent{Collection: model.Subtasks, Kind: KindInsert, Record: model.Record{"id": "s1"}}) // missing fields
	tr.deliver("subtasks", RawEvent{Collection: model.Subtasks, Kind: KindInsert, Record: model.Record{
		"id": "s1", "task_id": "t1", "title": "valid",
	}})
	if app.count() != 1 {
		t.Fatalf("malformed event must be dropped, valid one applied: got %d", app.count())
	}
}

func TestStopUnsubscribesEverything(t *testing.T) {
	tr := newFakeTransport()
	s := NewSubscriber(tr, &recordingApplier{}, nil)
	if err := s.SetProject(context.Background(), "p1"); err != nil {
		t.Fatalf("SetProject: %v", err)
	}
	s.Stop()
	if got := tr.topics(); len(got) != 0 {
		t.Fatalf("Stop left live subscriptions: %v", got)
	}
}
