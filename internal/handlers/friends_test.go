package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/betweenus/backend/internal/models"
	"github.com/betweenus/backend/internal/recordstore"
	"github.com/betweenus/backend/internal/relationship"
	"github.com/betweenus/backend/internal/saga"
)

func TestFriendHandlerInvite(t *testing.T) {
	engine := &stubEngine{
		sendResult: models.FriendRequest{
			ID:          "req-1",
			SenderUID:   "u1",
			ReceiverUID: "u2",
			State:       models.RequestPending,
			CreatedAt:   time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	handler := FriendHandler{Friends: engine}

	body, err := json.Marshal(inviteFriendRequest{FromUID: "u1", ToUID: "u2"})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/friends/invite", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Invite(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}
	if engine.lastFrom != "u1" || engine.lastTo != "u2" {
		t.Fatalf("unexpected engine call: from=%q to=%q", engine.lastFrom, engine.lastTo)
	}

	var resp friendRequestResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Request.State != models.RequestPending {
		t.Fatalf("expected state %q got %q", models.RequestPending, resp.Request.State)
	}
}

func TestFriendHandlerInviteFailures(t *testing.T) {
	body := []byte(`{"fromUid":"u1","toUid":"u2"}`)

	cases := []struct {
		name       string
		handler    FriendHandler
		method     string
		body       []byte
		wantStatus int
	}{
		{"wrongMethod", FriendHandler{Friends: &stubEngine{}}, http.MethodGet, body, http.StatusMethodNotAllowed},
		{"missingEngine", FriendHandler{}, http.MethodPost, body, http.StatusInternalServerError},
		{"badJSON", FriendHandler{Friends: &stubEngine{}}, http.MethodPost, []byte("{"), http.StatusBadRequest},
		{"invalidArgument", FriendHandler{Friends: &stubEngine{sendErr: relationship.ErrInvalidArgument}}, http.MethodPost, body, http.StatusBadRequest},
		{"duplicatePending", FriendHandler{Friends: &stubEngine{sendErr: relationship.ErrRequestExists}}, http.MethodPost, body, http.StatusConflict},
		{"unknownUser", FriendHandler{Friends: &stubEngine{sendErr: relationship.ErrUserNotFound}}, http.MethodPost, body, http.StatusNotFound},
		{"updateFailed", FriendHandler{Friends: &stubEngine{sendErr: &relationship.UpdateFailedError{Step: "create edge", Err: errors.New("boom")}}}, http.MethodPost, body, http.StatusInternalServerError},
		{"compensationFailed", FriendHandler{Friends: &stubEngine{sendErr: &saga.CompensationError{Saga: "send_friend_request"}}}, http.MethodPost, body, http.StatusInternalServerError},
		{"internal", FriendHandler{Friends: &stubEngine{sendErr: errors.New("boom")}}, http.MethodPost, body, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/friends/invite", bytes.NewReader(tc.body))
			rec := httptest.NewRecorder()

			tc.handler.Invite(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}

func TestFriendHandlerRespondAccept(t *testing.T) {
	friendship := models.Friendship{ID: "f-1", UserUID: "u1", FriendUID: "u2"}
	engine := &stubEngine{
		resolution: relationship.Resolution{
			Request:    models.FriendRequest{ID: "req-1", SenderUID: "u1", ReceiverUID: "u2", State: models.RequestAccepted},
			Friendship: &friendship,
		},
	}
	handler := FriendHandler{Friends: engine}

	body := []byte(`{"requestId":"req-1","uid":"u2","action":"accept"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/friends/respond", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Respond(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if engine.lastState != models.RequestAccepted {
		t.Fatalf("expected engine called with %q got %q", models.RequestAccepted, engine.lastState)
	}

	var resp resolutionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Friendship == nil || resp.Friendship.ID != "f-1" {
		t.Fatalf("expected friendship in response, got %+v", resp)
	}
	if resp.StaleRequest {
		t.Fatalf("unexpected stale request flag")
	}
}

func TestFriendHandlerRespondDecline(t *testing.T) {
	engine := &stubEngine{
		resolution: relationship.Resolution{
			Request: models.FriendRequest{ID: "req-1", State: models.RequestDeclined},
		},
	}
	handler := FriendHandler{Friends: engine}

	body := []byte(`{"requestId":"req-1","uid":"u2","action":"decline"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/friends/respond", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Respond(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if engine.lastState != models.RequestDeclined {
		t.Fatalf("expected engine called with %q got %q", models.RequestDeclined, engine.lastState)
	}

	var resp resolutionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Friendship != nil {
		t.Fatalf("decline must not create a friendship: %+v", resp)
	}
}

func TestFriendHandlerRespondStaleRequest(t *testing.T) {
	engine := &stubEngine{
		resolution: relationship.Resolution{
			Request:      models.FriendRequest{ID: "req-1", State: models.RequestAccepted},
			Friendship:   &models.Friendship{ID: "f-1"},
			StaleRequest: true,
		},
	}
	handler := FriendHandler{Friends: engine}

	body := []byte(`{"requestId":"req-1","uid":"u2","action":"accept"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/friends/respond", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Respond(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp resolutionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.StaleRequest {
		t.Fatalf("expected stale request flag to surface")
	}
}

func TestFriendHandlerRespondFailures(t *testing.T) {
	body := []byte(`{"requestId":"req-1","uid":"u2","action":"accept"}`)

	cases := []struct {
		name       string
		handler    FriendHandler
		method     string
		body       []byte
		wantStatus int
	}{
		{"wrongMethod", FriendHandler{Friends: &stubEngine{}}, http.MethodGet, body, http.StatusMethodNotAllowed},
		{"missingEngine", FriendHandler{}, http.MethodPost, body, http.StatusInternalServerError},
		{"badJSON", FriendHandler{Friends: &stubEngine{}}, http.MethodPost, []byte("{"), http.StatusBadRequest},
		{"badAction", FriendHandler{Friends: &stubEngine{}}, http.MethodPost, []byte(`{"requestId":"req-1","uid":"u2","action":"maybe"}`), http.StatusBadRequest},
		{"unknownRequest", FriendHandler{Friends: &stubEngine{resolveErr: recordstore.ErrNotFound}}, http.MethodPost, body, http.StatusNotFound},
		{"stranger", FriendHandler{Friends: &stubEngine{resolveErr: relationship.ErrForbidden}}, http.MethodPost, body, http.StatusForbidden},
		{"alreadyResolved", FriendHandler{Friends: &stubEngine{resolveErr: relationship.ErrInvalidTransition}}, http.MethodPost, body, http.StatusConflict},
		{"internal", FriendHandler{Friends: &stubEngine{resolveErr: errors.New("boom")}}, http.MethodPost, body, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/friends/respond", bytes.NewReader(tc.body))
			rec := httptest.NewRecorder()

			tc.handler.Respond(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}

func TestFriendHandlerList(t *testing.T) {
	engine := &stubEngine{
		friendships: []models.Friendship{{ID: "f-1", UserUID: "u1", FriendUID: "u2"}},
		sent: []relationship.RequestView{{
			Request:     models.FriendRequest{ID: "req-1", SenderUID: "u1", ReceiverUID: "u3", State: models.RequestPending},
			Counterpart: models.User{UID: "u3", Username: "carol"},
		}},
		received: []relationship.RequestView{{
			Request:     models.FriendRequest{ID: "req-2", SenderUID: "u4", ReceiverUID: "u1", State: models.RequestPending},
			Counterpart: models.User{UID: "u4", Username: "dave"},
		}},
	}
	handler := FriendHandler{Friends: engine}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends?user=u1", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp listFriendsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Friends) != 1 || resp.Friends[0].ID != "f-1" {
		t.Fatalf("unexpected friendships: %+v", resp.Friends)
	}
	if len(resp.Sent) != 1 || resp.Sent[0].Counterpart.Username != "carol" {
		t.Fatalf("unexpected sent requests: %+v", resp.Sent)
	}
	if len(resp.Received) != 1 || resp.Received[0].Request.ID != "req-2" {
		t.Fatalf("unexpected received requests: %+v", resp.Received)
	}
}

func TestFriendHandlerListFailures(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/friends", nil)
	rec := httptest.NewRecorder()
	FriendHandler{Friends: &stubEngine{}}.List(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected method not allowed got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/friends", nil)
	rec = httptest.NewRecorder()
	FriendHandler{Friends: &stubEngine{}}.List(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/friends?user=u1", nil)
	rec = httptest.NewRecorder()
	FriendHandler{}.List(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected internal error got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/friends?user=u1", nil)
	rec = httptest.NewRecorder()
	FriendHandler{Friends: &stubEngine{listErr: errors.New("store down")}}.List(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected internal error got %d", rec.Code)
	}
}
