package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultCallTimeout = 5 * time.Second
	adminTokenTTL      = 30 * time.Minute
	listPageSize       = 200
)

// PocketBase talks to a PocketBase instance over its REST API using superuser
// credentials. The admin token is acquired explicitly and cached with an
// expiry rather than held as ambient process state; a 401 response forces a
// single re-acquisition and retry.
type PocketBase struct {
	baseURL     string
	adminEmail  string
	adminPass   string
	httpClient  *http.Client
	callTimeout time.Duration

	mu            sync.Mutex
	adminToken    string
	tokenAcquired time.Time
}

// PocketBaseConfig carries the connection settings for a PocketBase client.
type PocketBaseConfig struct {
	URL           string
	AdminEmail    string
	AdminPassword string
	CallTimeout   time.Duration
}

// NewPocketBase constructs a client for the given instance. Credentials are
// verified lazily on first use.
func NewPocketBase(cfg PocketBaseConfig) (*PocketBase, error) {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("recordstore: pocketbase URL is required")
	}
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil, errors.New("recordstore: pocketbase admin credentials are required")
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	return &PocketBase{
		baseURL:     base,
		adminEmail:  cfg.AdminEmail,
		adminPass:   cfg.AdminPassword,
		httpClient:  &http.Client{},
		callTimeout: timeout,
	}, nil
}

// Create inserts a new record and returns the stored envelope.
func (p *PocketBase) Create(ctx context.Context, kind string, fields Fields) (Record, error) {
	var rec Record
	path := fmt.Sprintf("/api/collections/%s/records", url.PathEscape(kind))
	if err := p.do(ctx, http.MethodPost, path, fields, &rec, "create", kind, ""); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Get fetches a record by id.
func (p *PocketBase) Get(ctx context.Context, kind, id string) (Record, error) {
	var rec Record
	path := fmt.Sprintf("/api/collections/%s/records/%s", url.PathEscape(kind), url.PathEscape(id))
	if err := p.do(ctx, http.MethodGet, path, nil, &rec, "get", kind, id); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// FindOne returns the first record matching the filter, or ErrNotFound.
func (p *PocketBase) FindOne(ctx context.Context, kind string, filter Filter) (Record, error) {
	page, err := p.listPage(ctx, kind, filter, 1, 1)
	if err != nil {
		return Record{}, err
	}
	if len(page.Items) == 0 {
		return Record{}, ErrNotFound
	}
	return page.Items[0], nil
}

// FindAll returns every record matching the filter, paging through the store.
func (p *PocketBase) FindAll(ctx context.Context, kind string, filter Filter) ([]Record, error) {
	var out []Record
	for pageNum := 1; ; pageNum++ {
		page, err := p.listPage(ctx, kind, filter, pageNum, listPageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if pageNum >= page.TotalPages || len(page.Items) == 0 {
			return out, nil
		}
	}
}

// Update applies a partial patch to an existing record.
func (p *PocketBase) Update(ctx context.Context, kind, id string, patch Fields) (Record, error) {
	var rec Record
	path := fmt.Sprintf("/api/collections/%s/records/%s", url.PathEscape(kind), url.PathEscape(id))
	if err := p.do(ctx, http.MethodPatch, path, patch, &rec, "update", kind, id); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Delete removes a record by id.
func (p *PocketBase) Delete(ctx context.Context, kind, id string) error {
	path := fmt.Sprintf("/api/collections/%s/records/%s", url.PathEscape(kind), url.PathEscape(id))
	return p.do(ctx, http.MethodDelete, path, nil, nil, "delete", kind, id)
}

type listResult struct {
	Items      []Record
	TotalPages int
}

func (p *PocketBase) listPage(ctx context.Context, kind string, filter Filter, page, perPage int) (listResult, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("perPage", strconv.Itoa(perPage))
	query.Set("sort", "created,id")
	if expr := filter.Encode(); expr != "" {
		query.Set("filter", expr)
	}

	path := fmt.Sprintf("/api/collections/%s/records?%s", url.PathEscape(kind), query.Encode())

	var body struct {
		TotalPages int               `json:"totalPages"`
		Items      []json.RawMessage `json:"items"`
	}
	if err := p.do(ctx, http.MethodGet, path, nil, &body, "list", kind, ""); err != nil {
		return listResult{}, err
	}

	items := make([]Record, 0, len(body.Items))
	for _, raw := range body.Items {
		rec, err := decodeRecord(raw)
		if err != nil {
			return listResult{}, &StoreError{Op: "list", Kind: kind, Err: err}
		}
		items = append(items, rec)
	}

	return listResult{Items: items, TotalPages: body.TotalPages}, nil
}

// do issues one API call with a bounded timeout, authenticating as needed. out
// may be *Record, a JSON-decodable pointer, or nil.
func (p *PocketBase) do(ctx context.Context, method, path string, payload any, out any, op, kind, id string) error {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	token, err := p.adminCredential(ctx)
	if err != nil {
		return &StoreError{Op: op, Kind: kind, ID: id, Err: err}
	}

	status, raw, err := p.roundTrip(ctx, method, path, payload, token)
	if status == http.StatusUnauthorized {
		// Token expired server-side; re-acquire once and retry.
		p.invalidateCredential(token)
		if token, err = p.adminCredential(ctx); err == nil {
			status, raw, err = p.roundTrip(ctx, method, path, payload, token)
		}
	}
	if err != nil {
		return &StoreError{Op: op, Kind: kind, ID: id, Err: err}
	}

	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status < 200 || status > 299:
		return &StoreError{Op: op, Kind: kind, ID: id, Status: status,
			Err: fmt.Errorf("unexpected status %d: %s", status, truncate(raw))}
	}

	if out == nil {
		return nil
	}
	if rec, ok := out.(*Record); ok {
		decoded, err := decodeRecord(raw)
		if err != nil {
			return &StoreError{Op: op, Kind: kind, ID: id, Err: err}
		}
		*rec = decoded
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &StoreError{Op: op, Kind: kind, ID: id, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (p *PocketBase) roundTrip(ctx context.Context, method, path string, payload any, token string) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// adminCredential returns a valid superuser token, acquiring one when the
// cached token is missing or stale.
func (p *PocketBase) adminCredential(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.adminToken != "" && time.Since(p.tokenAcquired) < adminTokenTTL {
		return p.adminToken, nil
	}

	status, raw, err := p.roundTrip(ctx, http.MethodPost,
		"/api/collections/_superusers/auth-with-password",
		map[string]string{"identity": p.adminEmail, "password": p.adminPass}, "")
	if err != nil {
		return "", fmt.Errorf("admin auth: %w", err)
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("admin auth: unexpected status %d: %s", status, truncate(raw))
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", fmt.Errorf("admin auth: decode response: %w", err)
	}
	if body.Token == "" {
		return "", errors.New("admin auth: empty token in response")
	}

	p.adminToken = body.Token
	p.tokenAcquired = time.Now()
	return p.adminToken, nil
}

// invalidateCredential drops the cached token if it is still the one that
// failed, so a concurrent refresh is not thrown away.
func (p *PocketBase) invalidateCredential(failed string) {
	p.mu.Lock()
	if p.adminToken == failed {
		p.adminToken = ""
	}
	p.mu.Unlock()
}

// decodeRecord splits a PocketBase record payload into the envelope and the
// caller-visible fields.
func decodeRecord(raw []byte) (Record, error) {
	var all map[string]any
	if err := json.Unmarshal(raw, &all); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}

	rec := Record{Fields: make(Fields, len(all))}
	for k, v := range all {
		switch k {
		case "id":
			rec.ID, _ = v.(string)
		case "created":
			if s, ok := v.(string); ok {
				rec.Created = parseTimestamp(s)
			}
		case "updated":
			if s, ok := v.(string); ok {
				rec.Updated = parseTimestamp(s)
			}
		case "collectionId", "collectionName", "expand":
			// envelope noise
		default:
			rec.Fields[k] = v
		}
	}
	return rec, nil
}

func truncate(raw []byte) string {
	const max = 256
	s := strings.TrimSpace(string(raw))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

var _ Client = (*PocketBase)(nil)
