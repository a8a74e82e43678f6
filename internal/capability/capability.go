// Package capability validates the opaque bearer tokens that grant other
// services access to privileged endpoints.
package capability

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/betweenus/backend/internal/collections"
	"github.com/betweenus/backend/internal/recordstore"
)

// Validator checks whether a presented capability token is currently valid.
type Validator interface {
	IsValid(ctx context.Context, token string) (bool, error)
}

// StaticSecret validates against a single shared secret from configuration.
type StaticSecret struct {
	Secret string
}

// IsValid reports whether the token matches the configured secret.
func (s StaticSecret) IsValid(_ context.Context, token string) (bool, error) {
	if s.Secret == "" || token == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(s.Secret), []byte(token)) == 1, nil
}

// StoreValidator validates tokens against the server_tokens collection,
// honoring per-token expiry.
type StoreValidator struct {
	Store recordstore.Client
	Now   func() time.Time
}

// IsValid looks the token up and checks it has not expired.
func (v StoreValidator) IsValid(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}

	rec, err := v.Store.FindOne(ctx, collections.ServerTokens, recordstore.Eq(collections.FieldToken, token))
	if errors.Is(err, recordstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if expiresAt := rec.Fields.Time(collections.FieldExpiresAt); !expiresAt.IsZero() {
		now := time.Now().UTC()
		if v.Now != nil {
			now = v.Now()
		}
		if now.After(expiresAt) {
			return false, nil
		}
	}
	return true, nil
}

// Issuer mints capability tokens into the server_tokens collection.
type Issuer struct {
	Store recordstore.Client
}

// Issue creates a token record and returns the opaque token value.
func (i Issuer) Issue(ctx context.Context, generatedFrom, createdByUserID string, expiresAt time.Time) (string, error) {
	token := uuid.NewString()
	fields := recordstore.Fields{
		collections.FieldToken:           token,
		collections.FieldGeneratedFrom:   generatedFrom,
		collections.FieldCreatedByUserID: createdByUserID,
	}
	if !expiresAt.IsZero() {
		fields[collections.FieldExpiresAt] = collections.Timestamp(expiresAt)
	}
	if _, err := i.Store.Create(ctx, collections.ServerTokens, fields); err != nil {
		return "", err
	}
	return token, nil
}
