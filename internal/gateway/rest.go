package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taskboard-cli/internal/model"
)

// REST speaks PostgREST conventions against the hosted backend:
// GET/POST/PATCH/DELETE on /rest/v1/<collection> with eq. filters in the
// query string and Prefer: return=representation where the caller needs the
// canonical row back.
type REST struct {
	base    *url.URL
	apiKey  string
	session SessionSource
	http    *http.Client
}

type RESTConfig struct {
	// BaseURL is the project root, e.g. https://xyz.example.co (the /rest/v1
	// prefix is appended here).
	BaseURL string
	APIKey  string
	Session SessionSource
	Client  *http.Client
}

func NewREST(cfg RESTConfig) (*REST, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("gateway: missing base url")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("gateway: bad base url: %w", err)
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	sess := cfg.Session
	if sess == nil {
		sess = StaticSession{}
	}
	return &REST{base: u, apiKey: cfg.APIKey, session: sess, http: hc}, nil
}

func (r *REST) collectionURL(c model.Collection, query url.Values) string {
	u := *r.base
	u.Path = strings.TrimRight(u.Path, "/") + "/rest/v1/" + string(c)
	u.RawQuery = query.Encode()
	return u.String()
}

func filterQuery(f Filter) url.Values {
	q := url.Values{}
	if f.ProjectID != "" {
		q.Set("project_id", "eq."+f.ProjectID)
	}
	if f.TaskID != "" {
		q.Set("task_id", "eq."+f.TaskID)
	}
	if f.TagID != "" {
		q.Set("tag_id", "eq."+f.TagID)
	}
	return q
}

func (r *REST) do(ctx context.Context, op, method, rawURL string, body any, prefer string) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode: %w", op, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("apikey", r.apiKey)
	token := r.apiKey
	if s, ok := r.session.Current(); ok {
		token = s.AccessToken
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, TransportError{Op: op, Err: err}
	}
	return resp, nil
}

// serverMessage pulls the human-readable message out of a PostgREST error body.
func serverMessage(resp *http.Response) string {
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Message string `json:"message"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(b, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(b))
}

func (r *REST) failure(op string, c model.Collection, id string, resp *http.Response) error {
	msg := serverMessage(resp)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return TransportError{Op: op, Err: fmt.Errorf("auth rejected (%d): %s", resp.StatusCode, msg)}
	case resp.StatusCode == http.StatusNotFound:
		return NotFoundError{Collection: c, ID: id}
	case resp.StatusCode == http.StatusConflict:
		return ConstraintError{Detail: msg}
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		if op == "list" {
			return QueryError{Op: op, Detail: msg}
		}
		return ValidationError{Detail: msg}
	default:
		return TransportError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, msg)}
	}
}

func (r *REST) List(ctx context.Context, c model.Collection, f Filter) ([]model.Record, error) {
	q := filterQuery(f)
	q.Set("select", "*")
	resp, err := r.do(ctx, "list", http.MethodGet, r.collectionURL(c, q), nil, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, r.failure("list", c, "", resp)
	}
	defer resp.Body.Close()
	var recs []model.Record
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return nil, TransportError{Op: "list", Err: err}
	}
	return recs, nil
}

func (r *REST) Insert(ctx context.Context, c model.Collection, rec model.Record) (model.Record, error) {
	resp, err := r.do(ctx, "insert", http.MethodPost, r.collectionURL(c, nil), rec, "return=representation")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, r.failure("insert", c, "", resp)
	}
	defer resp.Body.Close()
	var recs []model.Record
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return nil, TransportError{Op: "insert", Err: err}
	}
	if len(recs) == 0 {
		return nil, TransportError{Op: "insert", Err: fmt.Errorf("empty representation for %s", c)}
	}
	return recs[0], nil
}

func (r *REST) Update(ctx context.Context, c model.Collection, id string, patch model.Record) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	resp, err := r.do(ctx, "update", http.MethodPatch, r.collectionURL(c, q), patch, "return=representation")
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return r.failure("update", c, id, resp)
	}
	defer resp.Body.Close()
	var recs []model.Record
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return TransportError{Op: "update", Err: err}
	}
	// PostgREST returns 200 with an empty set when the filter matched nothing.
	if len(recs) == 0 {
		return NotFoundError{Collection: c, ID: id}
	}
	return nil
}

func (r *REST) Delete(ctx context.Context, c model.Collection, id string) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	resp, err := r.do(ctx, "delete", http.MethodDelete, r.collectionURL(c, q), nil, "return=representation")
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return r.failure("delete", c, id, resp)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	var recs []model.Record
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return TransportError{Op: "delete", Err: err}
	}
	if len(recs) == 0 {
		return NotFoundError{Collection: c, ID: id}
	}
	return nil
}

func (r *REST) DeleteWhere(ctx context.Context, c model.Collection, f Filter) error {
	if f.IsZero() {
		// Refuse an unfiltered delete outright rather than truncating a table.
		return QueryError{Op: "delete", Detail: "empty filter"}
	}
	resp, err := r.do(ctx, "delete", http.MethodDelete, r.collectionURL(c, filterQuery(f)), nil, "")
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return r.failure("delete", c, "", resp)
	}
	resp.Body.Close()
	return nil
}
