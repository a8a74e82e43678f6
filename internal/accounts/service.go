// Package accounts implements sign-up, sign-in, and device registration over
// the record store. Sign-up is a saga: the account create is compensated by a
// delete when the device link cannot be established.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/betweenus/backend/internal/collections"
	"github.com/betweenus/backend/internal/logging"
	"github.com/betweenus/backend/internal/models"
	"github.com/betweenus/backend/internal/recordstore"
	"github.com/betweenus/backend/internal/saga"
)

const minPasswordLength = 8

// SessionIssuer issues and revokes bearer session tokens for accounts.
type SessionIssuer interface {
	Issue(ctx context.Context, uid, deviceID string) (models.SessionTokens, error)
	Revoke(ctx context.Context, refreshToken string)
}

// Service owns the account lifecycle. It is stateless; all account state
// lives in the record store.
type Service struct {
	store    recordstore.Client
	sessions SessionIssuer
	hasher   PasswordHasher
	now      func() time.Time
}

// NewService constructs an account service. A nil hasher defaults to bcrypt.
func NewService(store recordstore.Client, sessions SessionIssuer, hasher PasswordHasher) *Service {
	if store == nil {
		panic("accounts: store client must not be nil")
	}
	if sessions == nil {
		panic("accounts: session issuer must not be nil")
	}
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &Service{
		store:    store,
		sessions: sessions,
		hasher:   hasher,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewAccount carries validated sign-up input.
type NewAccount struct {
	Email      string
	Password   string
	Username   string
	FullName   string
	DeviceID   string
	DeviceName string
}

// AuthResult pairs the account with its freshly issued session.
type AuthResult struct {
	User   models.User
	Tokens models.SessionTokens
}

// SignUp creates an account and binds it to the device it signed up from. If
// the device link fails, the account (and any issued session) is compensated
// away and a *DeviceRegistrationError is returned.
func (s *Service) SignUp(ctx context.Context, in NewAccount) (AuthResult, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.DeviceID = strings.TrimSpace(in.DeviceID)

	if _, err := mail.ParseAddress(in.Email); err != nil {
		return AuthResult{}, fmt.Errorf("%w: invalid email address", ErrInvalidArgument)
	}
	if len(in.Password) < minPasswordLength {
		return AuthResult{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidArgument, minPasswordLength)
	}
	if in.Username == "" {
		return AuthResult{}, fmt.Errorf("%w: username is required", ErrInvalidArgument)
	}
	if in.DeviceID == "" {
		return AuthResult{}, fmt.Errorf("%w: device id is required", ErrInvalidArgument)
	}

	ctx, span := logging.StartSpan(ctx, "accounts.sign_up")
	defer span.End()

	if err := s.checkUnused(ctx, collections.FieldEmail, in.Email, ErrEmailTaken); err != nil {
		return AuthResult{}, err
	}
	if err := s.checkUnused(ctx, collections.FieldUsername, in.Username, ErrUsernameTaken); err != nil {
		return AuthResult{}, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	sg := saga.New("sign_up")

	uid := DeriveUID(in.Email)
	rec, err := s.store.Create(ctx, collections.Users, recordstore.Fields{
		collections.FieldUID:          uid,
		collections.FieldEmail:        in.Email,
		collections.FieldUsername:     in.Username,
		collections.FieldFullName:     in.FullName,
		collections.FieldPasswordHash: digest,
	})
	if err != nil {
		return AuthResult{}, fmt.Errorf("create account: %w", err)
	}
	sg.Completed("create account", collections.Users, rec.ID, func(ctx context.Context) error {
		return s.store.Delete(ctx, collections.Users, rec.ID)
	})

	tokens, err := s.sessions.Issue(ctx, uid, in.DeviceID)
	if err != nil {
		return AuthResult{}, s.abort(ctx, sg, fmt.Errorf("issue session: %w", err))
	}
	sg.Completed("issue session", "sessions", uid, func(ctx context.Context) error {
		s.sessions.Revoke(ctx, tokens.RefreshToken)
		return nil
	})

	if _, err := s.RegisterDevice(ctx, uid, in.DeviceID, in.DeviceName); err != nil {
		return AuthResult{}, s.abort(ctx, sg, &DeviceRegistrationError{Err: err})
	}

	return AuthResult{
		User:   collections.PublicUser(collections.UserFromRecord(rec)),
		Tokens: tokens,
	}, nil
}

// SignIn authenticates an account and refreshes its device binding. Device
// registration here is standalone, not part of a saga: a failure simply
// propagates.
func (s *Service) SignIn(ctx context.Context, email, password, deviceID, deviceName string) (AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return AuthResult{}, fmt.Errorf("%w: email and password are required", ErrInvalidArgument)
	}

	ctx, span := logging.StartSpan(ctx, "accounts.sign_in")
	defer span.End()

	rec, err := s.store.FindOne(ctx, collections.Users, recordstore.Eq(collections.FieldEmail, email))
	if err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("look up account: %w", err)
	}

	user := collections.UserFromRecord(rec)
	if !s.hasher.Verify(password, user.Password) {
		return AuthResult{}, ErrInvalidCredentials
	}

	if deviceID = strings.TrimSpace(deviceID); deviceID != "" {
		if _, err := s.RegisterDevice(ctx, user.UID, deviceID, deviceName); err != nil {
			return AuthResult{}, fmt.Errorf("register device: %w", err)
		}
	}

	tokens, err := s.sessions.Issue(ctx, user.UID, deviceID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue session: %w", err)
	}

	return AuthResult{User: collections.PublicUser(user), Tokens: tokens}, nil
}

// RegisterDevice creates the device record for (ownerUID, deviceID) or, when
// one already exists, updates its name and last-login timestamp in place.
func (s *Service) RegisterDevice(ctx context.Context, ownerUID, deviceID, deviceName string) (models.Device, error) {
	ownerUID = strings.TrimSpace(ownerUID)
	deviceID = strings.TrimSpace(deviceID)
	if ownerUID == "" || deviceID == "" {
		return models.Device{}, fmt.Errorf("%w: owner and device id are required", ErrInvalidArgument)
	}
	if deviceName == "" {
		deviceName = "Unknown Device"
	}

	lastLogin := collections.Timestamp(s.now())

	existing, err := s.store.FindOne(ctx, collections.Devices, recordstore.And(
		recordstore.Eq(collections.FieldOwnerUID, ownerUID),
		recordstore.Eq(collections.FieldDeviceID, deviceID),
	))
	switch {
	case err == nil:
		updated, err := s.store.Update(ctx, collections.Devices, existing.ID, recordstore.Fields{
			collections.FieldDeviceName:  deviceName,
			collections.FieldLastLoginAt: lastLogin,
		})
		if err != nil {
			return models.Device{}, fmt.Errorf("update device: %w", err)
		}
		return collections.DeviceFromRecord(updated), nil
	case errors.Is(err, recordstore.ErrNotFound):
		created, err := s.store.Create(ctx, collections.Devices, recordstore.Fields{
			collections.FieldOwnerUID:    ownerUID,
			collections.FieldDeviceID:    deviceID,
			collections.FieldDeviceName:  deviceName,
			collections.FieldLastLoginAt: lastLogin,
		})
		if err != nil {
			return models.Device{}, fmt.Errorf("create device: %w", err)
		}
		return collections.DeviceFromRecord(created), nil
	default:
		return models.Device{}, fmt.Errorf("look up device: %w", err)
	}
}

// ByUID fetches a single account by its stable identifier.
func (s *Service) ByUID(ctx context.Context, uid string) (models.User, error) {
	rec, err := s.store.FindOne(ctx, collections.Users, recordstore.Eq(collections.FieldUID, uid))
	if err != nil {
		return models.User{}, err
	}
	return collections.PublicUser(collections.UserFromRecord(rec)), nil
}

// SearchByUsername returns accounts whose username contains the query.
func (s *Service) SearchByUsername(ctx context.Context, query string) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrInvalidArgument)
	}

	recs, err := s.store.FindAll(ctx, collections.Users, recordstore.Contains(collections.FieldUsername, query))
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	out := make([]models.User, 0, len(recs))
	for _, rec := range recs {
		out = append(out, collections.PublicUser(collections.UserFromRecord(rec)))
	}
	return out, nil
}

// SetAvatar records the public avatar location on the account.
func (s *Service) SetAvatar(ctx context.Context, uid, avatarURL string) (models.User, error) {
	rec, err := s.store.FindOne(ctx, collections.Users, recordstore.Eq(collections.FieldUID, uid))
	if err != nil {
		return models.User{}, err
	}

	updated, err := s.store.Update(ctx, collections.Users, rec.ID, recordstore.Fields{
		collections.FieldAvatarURL: avatarURL,
	})
	if err != nil {
		return models.User{}, fmt.Errorf("update avatar: %w", err)
	}
	return collections.PublicUser(collections.UserFromRecord(updated)), nil
}

func (s *Service) checkUnused(ctx context.Context, field, value string, taken error) error {
	_, err := s.store.FindOne(ctx, collections.Users, recordstore.Eq(field, value))
	if err == nil {
		return taken
	}
	if !errors.Is(err, recordstore.ErrNotFound) {
		return fmt.Errorf("check existing accounts: %w", err)
	}
	return nil
}

func (s *Service) abort(ctx context.Context, sg *saga.Saga, cause error) error {
	logging.FromContext(ctx).Warn("sign-up aborted, rolling back", "error", cause)
	if rbErr := sg.Rollback(ctx); rbErr != nil {
		return rbErr
	}
	return cause
}

// DeriveUID produces the stable account identifier from a normalized email
// address, so repeat registrations of the same address collide on uid as well
// as on the uniqueness check.
func DeriveUID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("betweenus:"+email)).String()
}
