package recordstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// CollectionField describes one field of a collection schema.
type CollectionField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
	Max      int    `json:"max,omitempty"`
}

// CollectionSpec describes a base collection for schema bootstrap.
type CollectionSpec struct {
	Name   string
	Fields []CollectionField
}

// HasCollection reports whether a collection with the given name exists.
func (p *PocketBase) HasCollection(ctx context.Context, name string) (bool, error) {
	path := fmt.Sprintf("/api/collections/%s", url.PathEscape(name))
	err := p.do(ctx, http.MethodGet, path, nil, nil, "collection", name, "")
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateCollection creates a base collection with the given schema. It is the
// caller's responsibility to check for existence first; creating a duplicate
// fails with a *StoreError.
func (p *PocketBase) CreateCollection(ctx context.Context, spec CollectionSpec) error {
	payload := map[string]any{
		"name":   spec.Name,
		"type":   "base",
		"fields": spec.Fields,
	}
	return p.do(ctx, http.MethodPost, "/api/collections", payload, nil, "collection", spec.Name, "")
}
