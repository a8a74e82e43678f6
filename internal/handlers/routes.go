package handlers

import (
	"net/http"

	"github.com/betweenus/backend/internal/middleware"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Accounts: deps.Accounts, Sessions: deps.Sessions, Limiter: deps.AuthLimiter}
	friends := FriendHandler{Friends: deps.Friends}
	users := UserHandler{Accounts: deps.Accounts, Avatars: deps.Avatars}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("/api/v1/auth/logout", auth.Logout)
	mux.HandleFunc("/api/v1/friends", friends.List)
	mux.HandleFunc("/api/v1/friends/invite", friends.Invite)
	mux.HandleFunc("/api/v1/friends/respond", friends.Respond)
	mux.HandleFunc("/api/v1/users", users.Get)
	mux.HandleFunc("/api/v1/users/avatar", users.UploadAvatar)

	// Only other services holding a capability token may enumerate users.
	mux.Handle("/api/v1/users/search", middleware.RequireCapability(deps.Capability)(http.HandlerFunc(users.Search)))
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Accounts    AccountService
	Sessions    SessionManager
	Friends     FriendEngine
	Avatars     AvatarStorage
	Capability  middleware.CapabilityValidator
	AuthLimiter RateLimiter
}
