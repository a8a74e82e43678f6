package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/betweenus/backend/internal/logging"
	"github.com/betweenus/backend/internal/models"
	"github.com/betweenus/backend/internal/recordstore"
	"github.com/betweenus/backend/internal/relationship"
	"github.com/betweenus/backend/internal/saga"
)

// FriendHandler implements friend request and friendship endpoints.
type FriendHandler struct {
	Friends FriendEngine
}

// Invite handles POST /api/v1/friends/invite requests.
func (h FriendHandler) Invite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Friends == nil {
		logger.Error("friend engine unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friend services unavailable"})
		return
	}

	var req inviteFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid invite payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	created, err := h.Friends.SendFriendRequest(ctx, req.FromUID, req.ToUID)
	if err != nil {
		h.respondError(w, r, err, "send friend request")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, friendRequestResponse{Request: viewRequest(created)})
}

// Respond handles POST /api/v1/friends/respond requests.
func (h FriendHandler) Respond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Friends == nil {
		logger.Error("friend engine unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friend services unavailable"})
		return
	}

	var req respondFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid respond payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var state string
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "accept":
		state = models.RequestAccepted
	case "decline":
		state = models.RequestDeclined
	default:
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "action must be accept or decline"})
		return
	}

	resolution, err := h.Friends.ResolveFriendRequest(ctx, req.RequestID, req.UID, state)
	if err != nil {
		h.respondError(w, r, err, "resolve friend request")
		return
	}

	resp := resolutionResponse{
		Request:      viewRequest(resolution.Request),
		StaleRequest: resolution.StaleRequest,
	}
	if resolution.Friendship != nil {
		f := viewFriendships([]models.Friendship{*resolution.Friendship})[0]
		resp.Friendship = &f
	}

	respondJSON(ctx, w, http.StatusOK, resp)
}

// List handles GET /api/v1/friends requests, returning the caller's
// friendships alongside pending requests in both directions.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Friends == nil {
		logger.Error("friend engine unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friend services unavailable"})
		return
	}

	uid := strings.TrimSpace(r.URL.Query().Get("user"))
	if uid == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "user query parameter is required"})
		return
	}

	friendships, err := h.Friends.Friendships(ctx, uid)
	if err != nil {
		h.respondError(w, r, err, "list friendships")
		return
	}
	sent, err := h.Friends.SentRequests(ctx, uid)
	if err != nil {
		h.respondError(w, r, err, "list sent requests")
		return
	}
	received, err := h.Friends.ReceivedRequests(ctx, uid)
	if err != nil {
		h.respondError(w, r, err, "list received requests")
		return
	}

	respondJSON(ctx, w, http.StatusOK, listFriendsResponse{
		Friends:  viewFriendships(friendships),
		Sent:     viewRequestList(sent),
		Received: viewRequestList(received),
	})
}

func (h FriendHandler) respondError(w http.ResponseWriter, r *http.Request, err error, op string) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var updateErr *relationship.UpdateFailedError
	var compErr *saga.CompensationError
	switch {
	case errors.Is(err, relationship.ErrInvalidArgument):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, relationship.ErrRequestExists):
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "a pending request already exists between these users"})
	case errors.Is(err, relationship.ErrInvalidTransition):
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "request has already been resolved"})
	case errors.Is(err, relationship.ErrForbidden):
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "not a participant of this request"})
	case errors.Is(err, relationship.ErrUserNotFound), errors.Is(err, recordstore.ErrNotFound):
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.As(err, &compErr):
		logger.Error(op+" rollback incomplete", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "relationship update failed"})
	case errors.As(err, &updateErr):
		logger.Error(op+" failed", "step", updateErr.Step, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "relationship update failed"})
	default:
		logger.Error(op+" failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "relationship update failed"})
	}
}

type inviteFriendRequest struct {
	FromUID string `json:"fromUid"`
	ToUID   string `json:"toUid"`
}

type respondFriendRequest struct {
	RequestID string `json:"requestId"`
	UID       string `json:"uid"`
	Action    string `json:"action"`
}

type friendRequestResponse struct {
	Request friendRequestView `json:"request"`
}

type resolutionResponse struct {
	Request      friendRequestView `json:"request"`
	Friendship   *friendshipView   `json:"friendship,omitempty"`
	StaleRequest bool              `json:"staleRequest,omitempty"`
}

type listFriendsResponse struct {
	Friends  []friendshipView      `json:"friends"`
	Sent     []requestWithUserView `json:"sent"`
	Received []requestWithUserView `json:"received"`
}
