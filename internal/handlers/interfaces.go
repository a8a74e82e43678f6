package handlers

import (
	"context"
	"io"

	"github.com/betweenus/backend/internal/accounts"
	"github.com/betweenus/backend/internal/models"
	"github.com/betweenus/backend/internal/relationship"
)

// AccountService captures the account operations required by the auth and
// user handlers.
type AccountService interface {
	SignUp(ctx context.Context, in accounts.NewAccount) (accounts.AuthResult, error)
	SignIn(ctx context.Context, email, password, deviceID, deviceName string) (accounts.AuthResult, error)
	ByUID(ctx context.Context, uid string) (models.User, error)
	SearchByUsername(ctx context.Context, query string) ([]models.User, error)
	SetAvatar(ctx context.Context, uid, avatarURL string) (models.User, error)
}

// SessionManager refreshes and revokes issued session tokens.
type SessionManager interface {
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, refreshToken string)
}

// FriendEngine captures the relationship operations required by the friend
// handlers.
type FriendEngine interface {
	SendFriendRequest(ctx context.Context, fromUID, toUID string) (models.FriendRequest, error)
	ResolveFriendRequest(ctx context.Context, requestID, actingUID, newState string) (relationship.Resolution, error)
	SentRequests(ctx context.Context, uid string) ([]relationship.RequestView, error)
	ReceivedRequests(ctx context.Context, uid string) ([]relationship.RequestView, error)
	Friendships(ctx context.Context, uid string) ([]models.Friendship, error)
}

// AvatarStorage persists uploaded profile pictures and returns their public
// location.
type AvatarStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}
