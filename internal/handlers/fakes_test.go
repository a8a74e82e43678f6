package handlers

import (
	"context"
	"io"

	"github.com/betweenus/backend/internal/accounts"
	"github.com/betweenus/backend/internal/models"
	"github.com/betweenus/backend/internal/relationship"
)

type fakeAccounts struct {
	signUpResult accounts.AuthResult
	signUpErr    error
	signUpInput  accounts.NewAccount

	signInResult accounts.AuthResult
	signInErr    error
	signInDevice string

	searchResult []models.User
	searchErr    error

	byUIDResult models.User
	byUIDErr    error

	setAvatarResult models.User
	setAvatarErr    error
	setAvatarURL    string
}

func (f *fakeAccounts) SignUp(_ context.Context, in accounts.NewAccount) (accounts.AuthResult, error) {
	f.signUpInput = in
	return f.signUpResult, f.signUpErr
}

func (f *fakeAccounts) SignIn(_ context.Context, email, password, deviceID, deviceName string) (accounts.AuthResult, error) {
	f.signInDevice = deviceID
	return f.signInResult, f.signInErr
}

func (f *fakeAccounts) ByUID(context.Context, string) (models.User, error) {
	return f.byUIDResult, f.byUIDErr
}

func (f *fakeAccounts) SearchByUsername(context.Context, string) ([]models.User, error) {
	return f.searchResult, f.searchErr
}

func (f *fakeAccounts) SetAvatar(_ context.Context, _ string, avatarURL string) (models.User, error) {
	f.setAvatarURL = avatarURL
	return f.setAvatarResult, f.setAvatarErr
}

type fakeSessions struct {
	refreshResult models.SessionTokens
	refreshErr    error
	revoked       []string
}

func (f *fakeSessions) Refresh(context.Context, string) (models.SessionTokens, error) {
	return f.refreshResult, f.refreshErr
}

func (f *fakeSessions) Revoke(_ context.Context, refreshToken string) {
	f.revoked = append(f.revoked, refreshToken)
}

type stubEngine struct {
	sendResult models.FriendRequest
	sendErr    error
	lastFrom   string
	lastTo     string

	resolution relationship.Resolution
	resolveErr error
	lastState  string

	friendships []models.Friendship
	sent        []relationship.RequestView
	received    []relationship.RequestView
	listErr     error
}

func (s *stubEngine) SendFriendRequest(_ context.Context, fromUID, toUID string) (models.FriendRequest, error) {
	s.lastFrom, s.lastTo = fromUID, toUID
	return s.sendResult, s.sendErr
}

func (s *stubEngine) ResolveFriendRequest(_ context.Context, requestID, actingUID, newState string) (relationship.Resolution, error) {
	s.lastState = newState
	return s.resolution, s.resolveErr
}

func (s *stubEngine) SentRequests(context.Context, string) ([]relationship.RequestView, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.sent, nil
}

func (s *stubEngine) ReceivedRequests(context.Context, string) ([]relationship.RequestView, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.received, nil
}

func (s *stubEngine) Friendships(context.Context, string) ([]models.Friendship, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.friendships, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

type fakeAvatarStorage struct {
	location string
	err      error
	savedKey string
}

func (f *fakeAvatarStorage) Save(_ context.Context, name string, r io.Reader) (string, error) {
	f.savedKey = name
	if f.err != nil {
		return "", f.err
	}
	_, _ = io.Copy(io.Discard, r)
	return f.location, nil
}
