package gateway

import (
	"context"
	"sort"

	"taskboard-cli/internal/model"
)

// Filter narrows a list or delete to matching rows. Zero fields are ignored.
// The underlying store only supports equality filters on these columns.
type Filter struct {
	ProjectID string
	TaskID    string
	TagID     string
}

func (f Filter) IsZero() bool {
	return f.ProjectID == "" && f.TaskID == "" && f.TagID == ""
}

// Gateway is the persistence collaborator. Implementations are constructed and
// passed in; nothing in the client reaches for a shared connection object.
// All calls may block on the network and honor ctx cancellation.
type Gateway interface {
	List(ctx context.Context, c model.Collection, f Filter) ([]model.Record, error)

	// Insert returns the canonical record (server-assigned id and defaults).
	Insert(ctx context.Context, c model.Collection, rec model.Record) (model.Record, error)

	Update(ctx context.Context, c model.Collection, id string, patch model.Record) error

	// Delete fails with NotFoundError when the row is already gone; callers
	// that treat that as satisfied check gateway.IsNotFound.
	Delete(ctx context.Context, c model.Collection, id string) error

	// DeleteWhere removes rows matching the filter. Used for task_tags, which
	// have no identity beyond the (task_id, tag_id) pair.
	DeleteWhere(ctx context.Context, c model.Collection, f Filter) error
}

// ObjectStore is the binary-object collaborator for attachment payloads.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Remove(ctx context.Context, key string) error

	// PublicURL is synchronous and pure: it derives the URL from the key alone.
	PublicURL(key string) string
}

// Typed list wrappers. Decoding happens here so callers never see raw records;
// a row that fails to decode fails the whole load (a partial load is worse
// than an empty one).

func ListProjects(ctx context.Context, g Gateway) ([]model.Project, error) {
	recs, err := g.List(ctx, model.Projects, Filter{})
	if err != nil {
		return nil, err
	}
	out := make([]model.Project, 0, len(recs))
	for _, r := range recs {
		p, err := model.DecodeProject(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func ListTasks(ctx context.Context, g Gateway, projectID string) ([]model.Task, error) {
	recs, err := g.List(ctx, model.Tasks, Filter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	out := make([]model.Task, 0, len(recs))
	for _, r := range recs {
		t, err := model.DecodeTask(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func ListSubtasks(ctx context.Context, g Gateway) ([]model.Subtask, error) {
	recs, err := g.List(ctx, model.Subtasks, Filter{})
	if err != nil {
		return nil, err
	}
	out := make([]model.Subtask, 0, len(recs))
	for _, r := range recs {
		s, err := model.DecodeSubtask(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func ListTags(ctx context.Context, g Gateway) ([]model.Tag, error) {
	recs, err := g.List(ctx, model.Tags, Filter{})
	if err != nil {
		return nil, err
	}
	out := make([]model.Tag, 0, len(recs))
	for _, r := range recs {
		t, err := model.DecodeTag(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func ListTaskTags(ctx context.Context, g Gateway) ([]model.TaskTag, error) {
	recs, err := g.List(ctx, model.TaskTags, Filter{})
	if err != nil {
		return nil, err
	}
	out := make([]model.TaskTag, 0, len(recs))
	for _, r := range recs {
		tt, err := model.DecodeTaskTag(r)
		if err != nil {
			return nil, err
		}
		out = append(out, tt)
	}
	return out, nil
}

func ListAttachments(ctx context.Context, g Gateway) ([]model.Attachment, error) {
	recs, err := g.List(ctx, model.Attachments, Filter{})
	if err != nil {
		return nil, err
	}
	out := make([]model.Attachment, 0, len(recs))
	for _, r := range recs {
		a, err := model.DecodeAttachment(r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
