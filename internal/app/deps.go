package app

import (
	"context"
	"time"

	"github.com/betweenus/backend/internal/accounts"
	"github.com/betweenus/backend/internal/auth"
	"github.com/betweenus/backend/internal/capability"
	"github.com/betweenus/backend/internal/config"
	"github.com/betweenus/backend/internal/db"
	"github.com/betweenus/backend/internal/handlers"
	"github.com/betweenus/backend/internal/middleware"
	"github.com/betweenus/backend/internal/recordstore"
	"github.com/betweenus/backend/internal/relationship"
	"github.com/betweenus/backend/internal/repositories"
	"github.com/betweenus/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. A nil pool falls back to in-memory sessions, which is only
// appropriate for local development.
func buildDependencies(ctx context.Context, cfg config.Config, store recordstore.Client, pool db.Pool) (handlers.Dependencies, error) {
	var sessionStore auth.SessionStore
	if pool != nil {
		sessionStore = repositories.NewPostgresSessionStore(pool)
	} else {
		sessionStore = auth.NewInMemorySessionStore()
	}
	sessions := auth.NewManager(15*time.Minute, cfg.SessionTTL, sessionStore)

	var validator middleware.CapabilityValidator
	if cfg.ServerTokenSecret != "" {
		validator = capability.StaticSecret{Secret: cfg.ServerTokenSecret}
	} else {
		validator = capability.StoreValidator{Store: store}
	}

	var avatars handlers.AvatarStorage
	if cfg.ObjectStore.Bucket != "" {
		s3, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, err
		}
		avatars = s3
	}

	return handlers.Dependencies{
		Accounts:    accounts.NewService(store, sessions, nil),
		Sessions:    sessions,
		Friends:     relationship.NewEngine(store),
		Avatars:     avatars,
		Capability:  validator,
		AuthLimiter: middleware.NewIPRateLimiter(cfg.RateLimitPerMinute, time.Minute, cfg.RateLimitBurst, 10*time.Minute),
	}, nil
}
