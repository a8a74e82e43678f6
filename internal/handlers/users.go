package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/betweenus/backend/internal/accounts"
	"github.com/betweenus/backend/internal/logging"
	"github.com/betweenus/backend/internal/recordstore"
)

const maxAvatarBytes = 5 << 20

// UserHandler implements user lookup and profile endpoints.
type UserHandler struct {
	Accounts AccountService
	Avatars  AvatarStorage
}

// Search handles GET /api/v1/users/search requests. Registration of this
// route is expected to sit behind the capability middleware.
func (h UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Accounts == nil {
		logger.Error("account service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "user services unavailable"})
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "q query parameter is required"})
		return
	}

	users, err := h.Accounts.SearchByUsername(ctx, query)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidArgument) {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		logger.Error("user search failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "user search failed"})
		return
	}

	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, viewUser(u))
	}
	respondJSON(ctx, w, http.StatusOK, searchUsersResponse{Users: out})
}

// Get handles GET /api/v1/users requests for a single profile.
func (h UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Accounts == nil {
		logger.Error("account service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "user services unavailable"})
		return
	}

	uid := strings.TrimSpace(r.URL.Query().Get("uid"))
	if uid == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "uid query parameter is required"})
		return
	}

	user, err := h.Accounts.ByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		logger.Error("user lookup failed", "uid", uid, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "user lookup failed"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, viewUser(user))
}

// UploadAvatar handles POST /api/v1/users/avatar multipart uploads.
func (h UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Accounts == nil || h.Avatars == nil {
		logger.Error("avatar dependencies unavailable", "hasAccounts", h.Accounts != nil, "hasStorage", h.Avatars != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "avatar services unavailable"})
		return
	}

	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		logger.Warn("invalid avatar upload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid multipart body"})
		return
	}

	uid := strings.TrimSpace(r.FormValue("uid"))
	if uid == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "uid form field is required"})
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "avatar file is required"})
		return
	}
	defer file.Close()

	key := fmt.Sprintf("avatars/%s%s", uid, strings.ToLower(path.Ext(header.Filename)))
	location, err := h.Avatars.Save(ctx, key, file)
	if err != nil {
		logger.Error("avatar upload failed", "uid", uid, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to store avatar"})
		return
	}

	user, err := h.Accounts.SetAvatar(ctx, uid, location)
	if err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		logger.Error("avatar update failed", "uid", uid, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update avatar"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, viewUser(user))
}

type searchUsersResponse struct {
	Users []userView `json:"users"`
}
