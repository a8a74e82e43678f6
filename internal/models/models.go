package models

import "time"

// User represents an account within the betweenUs platform. UID is the stable
// identifier exchanged between services; ID is the record store's own record
// identifier.
type User struct {
	ID        string
	UID       string
	Username  string
	Email     string
	FullName  string
	Password  string
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Friend request states. Pending is the only state a request is created in;
// Accepted and Declined are terminal.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestDeclined = "declined"
)

// FriendRequest represents the invitation workflow between two users.
type FriendRequest struct {
	ID          string
	SenderUID   string
	ReceiverUID string
	State       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Terminal reports whether the request has reached a final state.
func (r FriendRequest) Terminal() bool {
	return r.State != RequestPending
}

// Participant reports whether uid is one of the two users on the request.
func (r FriendRequest) Participant(uid string) bool {
	return uid == r.SenderUID || uid == r.ReceiverUID
}

// Friendship is materialized when a friend request is accepted. UserUID is the
// original sender and FriendUID the accepter; the relationship itself is
// symmetric for query purposes.
type Friendship struct {
	ID        string
	UserUID   string
	FriendUID string
	CreatedAt time.Time
}

// Relation edge kinds. Each friend request owns a request_sent edge for the
// sender and a request_received edge for the receiver; each friendship owns a
// friendship edge per participant.
const (
	EdgeRequestSent     = "request_sent"
	EdgeRequestReceived = "request_received"
	EdgeFriendship      = "friendship"
)

// RelationEdge is one directed entry in a user's relationship index. The pair
// of edges written for a record replaces the mutable back-reference lists the
// user record would otherwise carry.
type RelationEdge struct {
	ID    string
	UID   string
	RefID string
	Kind  string
}

// Device is a registered login device for an account. (OwnerUID, DeviceID) is
// unique; repeat logins from the same device update the existing record.
type Device struct {
	ID          string
	OwnerUID    string
	DeviceID    string
	DeviceName  string
	LastLoginAt time.Time
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
