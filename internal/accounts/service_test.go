package accounts

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/betweenus/backend/internal/collections"
	"github.com/betweenus/backend/internal/models"
	"github.com/betweenus/backend/internal/recordstore"
)

type fakeSessions struct {
	issued   int
	issueErr error
	revoked  []string
}

func (f *fakeSessions) Issue(_ context.Context, uid, deviceID string) (models.SessionTokens, error) {
	if f.issueErr != nil {
		return models.SessionTokens{}, f.issueErr
	}
	f.issued++
	return models.SessionTokens{
		AccessToken:  fmt.Sprintf("access-%s-%d", uid, f.issued),
		RefreshToken: fmt.Sprintf("refresh-%s-%d", uid, f.issued),
	}, nil
}

func (f *fakeSessions) Revoke(_ context.Context, refreshToken string) {
	f.revoked = append(f.revoked, refreshToken)
}

// plainHasher keeps tests fast; production wiring uses bcrypt.
type plainHasher struct{}

func (plainHasher) Hash(secret string) (string, error) { return "plain:" + secret, nil }
func (plainHasher) Verify(secret, digest string) bool  { return digest == "plain:"+secret }

type failingCreate struct {
	recordstore.Client
	kind string
	err  error
}

func (f *failingCreate) Create(ctx context.Context, kind string, fields recordstore.Fields) (recordstore.Record, error) {
	if kind == f.kind {
		return recordstore.Record{}, f.err
	}
	return f.Client.Create(ctx, kind, fields)
}

func validSignUp() NewAccount {
	return NewAccount{
		Email:      "ada@example.com",
		Password:   "correct horse",
		Username:   "ada",
		FullName:   "Ada Lovelace",
		DeviceID:   "device-1",
		DeviceName: "Ada's phone",
	}
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemory()
	sessions := &fakeSessions{}
	svc := NewService(store, sessions, plainHasher{})

	result, err := svc.SignUp(ctx, validSignUp())
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if result.User.UID != DeriveUID("ada@example.com") {
		t.Fatalf("uid must derive from the email, got %q", result.User.UID)
	}
	if result.User.Password != "" {
		t.Fatal("result must not carry the password digest")
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatalf("expected issued tokens, got %+v", result.Tokens)
	}

	if _, err := store.FindOne(ctx, collections.Users, recordstore.Eq(collections.FieldEmail, "ada@example.com")); err != nil {
		t.Fatalf("account record should exist: %v", err)
	}
	device, err := store.FindOne(ctx, collections.Devices, recordstore.And(
		recordstore.Eq(collections.FieldOwnerUID, result.User.UID),
		recordstore.Eq(collections.FieldDeviceID, "device-1"),
	))
	if err != nil {
		t.Fatalf("device record should exist: %v", err)
	}
	if got := device.Fields.String(collections.FieldDeviceName); got != "Ada's phone" {
		t.Fatalf("unexpected device name %q", got)
	}
}

func TestSignUpRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*NewAccount)
	}{
		{"badEmail", func(a *NewAccount) { a.Email = "not-an-email" }},
		{"shortPassword", func(a *NewAccount) { a.Password = "short" }},
		{"missingUsername", func(a *NewAccount) { a.Username = " " }},
		{"missingDevice", func(a *NewAccount) { a.DeviceID = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := recordstore.NewMemory()
			svc := NewService(store, &fakeSessions{}, plainHasher{})

			in := validSignUp()
			tc.mutate(&in)

			if _, err := svc.SignUp(context.Background(), in); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}

			recs, err := store.FindAll(context.Background(), collections.Users, recordstore.Filter{})
			if err != nil {
				t.Fatalf("list users: %v", err)
			}
			if len(recs) != 0 {
				t.Fatal("rejected input must create no account")
			}
		})
	}
}

func TestSignUpUniqueness(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemory()
	svc := NewService(store, &fakeSessions{}, plainHasher{})

	if _, err := svc.SignUp(ctx, validSignUp()); err != nil {
		t.Fatalf("first sign up: %v", err)
	}

	dup := validSignUp()
	dup.Username = "someone-else"
	if _, err := svc.SignUp(ctx, dup); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	dup = validSignUp()
	dup.Email = "other@example.com"
	if _, err := svc.SignUp(ctx, dup); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestSignUpDeviceFailureCompensatesAccount(t *testing.T) {
	ctx := context.Background()
	mem := recordstore.NewMemory()
	store := &failingCreate{Client: mem, kind: collections.Devices, err: errors.New("store down")}
	sessions := &fakeSessions{}
	svc := NewService(store, sessions, plainHasher{})

	_, err := svc.SignUp(ctx, validSignUp())
	var devErr *DeviceRegistrationError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected *DeviceRegistrationError, got %v", err)
	}

	if _, err := mem.FindOne(ctx, collections.Users, recordstore.Eq(collections.FieldEmail, "ada@example.com")); !errors.Is(err, recordstore.ErrNotFound) {
		t.Fatalf("account must be compensated away, got %v", err)
	}
	if len(sessions.revoked) != 1 {
		t.Fatalf("the issued session must be revoked, revoked=%v", sessions.revoked)
	}
}

func TestSignUpSessionFailureCompensatesAccount(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemory()
	svc := NewService(store, &fakeSessions{issueErr: errors.New("token service down")}, plainHasher{})

	if _, err := svc.SignUp(ctx, validSignUp()); err == nil {
		t.Fatal("expected an error")
	}

	recs, err := store.FindAll(ctx, collections.Users, recordstore.Filter{})
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(recs) != 0 {
		t.Fatal("account must not survive a failed session issue")
	}
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemory()
	svc := NewService(store, &fakeSessions{}, plainHasher{})

	if _, err := svc.SignUp(ctx, validSignUp()); err != nil {
		t.Fatalf("sign up: %v", err)
	}

	result, err := svc.SignIn(ctx, "Ada@Example.com", "correct horse", "device-2", "Ada's tablet")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if result.Tokens.AccessToken == "" {
		t.Fatal("expected issued tokens")
	}

	devices, err := store.FindAll(ctx, collections.Devices, recordstore.Eq(collections.FieldOwnerUID, result.User.UID))
	if err != nil {
		t.Fatalf("list devices: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected the second device to be registered, got %d", len(devices))
	}

	if _, err := svc.SignIn(ctx, "ada@example.com", "wrong", "device-2", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "nobody@example.com", "whatever", "device-2", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestRegisterDeviceUpsertsInPlace(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemory()
	svc := NewService(store, &fakeSessions{}, plainHasher{})

	first, err := svc.RegisterDevice(ctx, "u1", "device-1", "Phone")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	second, err := svc.RegisterDevice(ctx, "u1", "device-1", "Renamed Phone")
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("re-registration must update the existing record, not create another")
	}
	if second.DeviceName != "Renamed Phone" {
		t.Fatalf("expected updated name, got %q", second.DeviceName)
	}

	recs, err := store.FindAll(ctx, collections.Devices, recordstore.Filter{})
	if err != nil {
		t.Fatalf("list devices: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("(owner, device) must stay unique, got %d records", len(recs))
	}
}

func TestSearchByUsername(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemory()
	svc := NewService(store, &fakeSessions{}, plainHasher{})

	for _, name := range []string{"ada", "adamant", "grace"} {
		in := validSignUp()
		in.Email = name + "@example.com"
		in.Username = name
		if _, err := svc.SignUp(ctx, in); err != nil {
			t.Fatalf("sign up %s: %v", name, err)
		}
	}

	matches, err := svc.SearchByUsername(ctx, "ada")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	for _, u := range matches {
		if u.Password != "" {
			t.Fatal("search results must not leak digests")
		}
	}

	if _, err := svc.SearchByUsername(ctx, "  "); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty query, got %v", err)
	}
}

func TestSetAvatar(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemory()
	svc := NewService(store, &fakeSessions{}, plainHasher{})

	result, err := svc.SignUp(ctx, validSignUp())
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	updated, err := svc.SetAvatar(ctx, result.User.UID, "https://cdn.example.com/avatars/ada.png")
	if err != nil {
		t.Fatalf("set avatar: %v", err)
	}
	if updated.AvatarURL != "https://cdn.example.com/avatars/ada.png" {
		t.Fatalf("unexpected avatar url %q", updated.AvatarURL)
	}

	if _, err := svc.SetAvatar(ctx, "missing", "x"); !errors.Is(err, recordstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
