package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/betweenus/backend/internal/capability"
	"github.com/betweenus/backend/internal/models"
	"github.com/betweenus/backend/internal/recordstore"
)

func TestUserHandlerSearch(t *testing.T) {
	fake := &fakeAccounts{
		searchResult: []models.User{
			{UID: "u1", Username: "alice"},
			{UID: "u2", Username: "alicia"},
		},
	}
	handler := UserHandler{Accounts: fake}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/search?q=ali", nil)
	rec := httptest.NewRecorder()

	handler.Search(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp searchUsersResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Users) != 2 || resp.Users[0].Username != "alice" {
		t.Fatalf("unexpected users: %+v", resp.Users)
	}
}

func TestUserHandlerSearchFailures(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/search", nil)
	rec := httptest.NewRecorder()
	UserHandler{Accounts: &fakeAccounts{}}.Search(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/search?q=ali", nil)
	rec = httptest.NewRecorder()
	UserHandler{Accounts: &fakeAccounts{searchErr: errors.New("store down")}}.Search(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected internal error got %d", rec.Code)
	}
}

func TestUserSearchRequiresCapability(t *testing.T) {
	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Accounts:   &fakeAccounts{searchResult: []models.User{{UID: "u1", Username: "alice"}}},
		Sessions:   &fakeSessions{},
		Friends:    &stubEngine{},
		Capability: capability.StaticSecret{Secret: "hunter2"},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/search?q=ali", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized without server token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/search?q=ali", nil)
	req.Header.Set("X-Server-Token", "hunter2")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ok with server token, got %d", rec.Code)
	}
}

func TestUserHandlerGet(t *testing.T) {
	fake := &fakeAccounts{byUIDResult: models.User{UID: "u1", Username: "alice"}}
	handler := UserHandler{Accounts: fake}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users?uid=u1", nil)
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp userView
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UID != "u1" {
		t.Fatalf("unexpected user: %+v", resp)
	}
}

func TestUserHandlerGetNotFound(t *testing.T) {
	handler := UserHandler{Accounts: &fakeAccounts{byUIDErr: recordstore.ErrNotFound}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users?uid=ghost", nil)
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected not found got %d", rec.Code)
	}
}

func TestUserHandlerUploadAvatar(t *testing.T) {
	storage := &fakeAvatarStorage{location: "https://cdn.example.com/avatars/u1.png"}
	fake := &fakeAccounts{
		setAvatarResult: models.User{UID: "u1", Username: "alice", AvatarURL: "https://cdn.example.com/avatars/u1.png"},
	}
	handler := UserHandler{Accounts: fake, Avatars: storage}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("uid", "u1"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := writer.CreateFormFile("avatar", "me.PNG")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("fake image bytes")); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/avatar", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()

	handler.UploadAvatar(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if storage.savedKey != "avatars/u1.png" {
		t.Fatalf("expected normalized object key, got %q", storage.savedKey)
	}
	if fake.setAvatarURL != storage.location {
		t.Fatalf("expected avatar url recorded on account, got %q", fake.setAvatarURL)
	}
}

func TestUserHandlerUploadAvatarFailures(t *testing.T) {
	newUpload := func(uid string, withFile bool) *http.Request {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		if uid != "" {
			_ = writer.WriteField("uid", uid)
		}
		if withFile {
			part, _ := writer.CreateFormFile("avatar", "me.png")
			_, _ = part.Write([]byte("x"))
		}
		_ = writer.Close()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/avatar", &buf)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req
	}

	rec := httptest.NewRecorder()
	UserHandler{Accounts: &fakeAccounts{}, Avatars: &fakeAvatarStorage{}}.UploadAvatar(rec, newUpload("", true))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request without uid got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	UserHandler{Accounts: &fakeAccounts{}, Avatars: &fakeAvatarStorage{}}.UploadAvatar(rec, newUpload("u1", false))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request without file got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	UserHandler{Accounts: &fakeAccounts{}, Avatars: &fakeAvatarStorage{err: errors.New("bucket down")}}.UploadAvatar(rec, newUpload("u1", true))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected internal error got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	UserHandler{Accounts: &fakeAccounts{setAvatarErr: recordstore.ErrNotFound}, Avatars: &fakeAvatarStorage{location: "url"}}.UploadAvatar(rec, newUpload("ghost", true))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected not found got %d", rec.Code)
	}
}
