package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/betweenus/backend/internal/logging"
	"github.com/betweenus/backend/internal/models"
	"github.com/betweenus/backend/internal/relationship"
)

// JSON shapes returned to clients. Models carry no wire tags; the HTTP layer
// owns the representation.

type userView struct {
	UID       string `json:"uid"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	FullName  string `json:"fullname,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type tokensView struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

type friendRequestView struct {
	ID          string    `json:"id"`
	SenderUID   string    `json:"senderUid"`
	ReceiverUID string    `json:"receiverUid"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"createdAt"`
}

type requestWithUserView struct {
	Request     friendRequestView `json:"request"`
	Counterpart userView          `json:"user"`
}

type friendshipView struct {
	ID        string    `json:"id"`
	UserUID   string    `json:"userUid"`
	FriendUID string    `json:"friendUid"`
	CreatedAt time.Time `json:"createdAt"`
}

func viewUser(u models.User) userView {
	return userView{
		UID:       u.UID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
	}
}

func viewRequest(r models.FriendRequest) friendRequestView {
	return friendRequestView{
		ID:          r.ID,
		SenderUID:   r.SenderUID,
		ReceiverUID: r.ReceiverUID,
		State:       r.State,
		CreatedAt:   r.CreatedAt,
	}
}

func viewRequestList(views []relationship.RequestView) []requestWithUserView {
	out := make([]requestWithUserView, 0, len(views))
	for _, v := range views {
		out = append(out, requestWithUserView{
			Request:     viewRequest(v.Request),
			Counterpart: viewUser(v.Counterpart),
		})
	}
	return out
}

func viewFriendships(friendships []models.Friendship) []friendshipView {
	out := make([]friendshipView, 0, len(friendships))
	for _, f := range friendships {
		out = append(out, friendshipView{
			ID:        f.ID,
			UserUID:   f.UserUID,
			FriendUID: f.FriendUID,
			CreatedAt: f.CreatedAt,
		})
	}
	return out
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}
