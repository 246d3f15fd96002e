package feed

import (
	"fmt"

	"taskboard-cli/internal/model"
)

// Decode validates a raw transport event into a typed one. Deletes only need
// an id; inserts and updates must decode fully or the event is rejected.
func Decode(raw RawEvent) (Event, error) {
	if !raw.Kind.Valid() {
		return Event{}, fmt.Errorf("feed: unknown event kind %q", raw.Kind)
	}
	id, err := raw.Record.ID()
	if err != nil && raw.Collection != model.TaskTags {
		return Event{}, fmt.Errorf("feed: %s %s: %w", raw.Collection, raw.Kind, err)
	}
	ev := Event{Collection: raw.Collection, Kind: raw.Kind, ID: id}

	if raw.Kind == KindDelete && raw.Collection != model.TaskTags {
		return ev, nil
	}

	switch raw.Collection {
	case model.Projects:
		p, err := model.DecodeProject(raw.Record)
		if err != nil {
			return Event{}, err
		}
		ev.Project = &p
	case model.Tasks:
		t, err := model.DecodeTask(raw.Record)
		if err != nil {
			return Event{}, err
		}
		ev.Task = &t
	case model.Subtasks:
		s, err := model.DecodeSubtask(raw.Record)
		if err != nil {
			return Event{}, err
		}
		ev.Subtask = &s
	case model.Tags:
		t, err := model.DecodeTag(raw.Record)
		if err != nil {
			return Event{}, err
		}
		ev.Tag = &t
	case model.TaskTags:
		// Associations are keyed by the pair, for deletes as well: the old
		// row image carries both foreign keys.
		tt, err := model.DecodeTaskTag(raw.Record)
		if err != nil {
			return Event{}, err
		}
		ev.TaskTag = &tt
		ev.ID = tt.Key()
	case model.Attachments:
		a, err := model.DecodeAttachment(raw.Record)
		if err != nil {
			return Event{}, err
		}
		ev.Attachment = &a
	default:
		return Event{}, fmt.Errorf("feed: unknown collection %q", raw.Collection)
	}
	return ev, nil
}
