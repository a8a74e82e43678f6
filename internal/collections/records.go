package collections

import (
	"time"

	"github.com/betweenus/backend/internal/models"
	"github.com/betweenus/backend/internal/recordstore"
)

// UserFromRecord maps a users record to its model.
func UserFromRecord(rec recordstore.Record) models.User {
	return models.User{
		ID:        rec.ID,
		UID:       rec.Fields.String(FieldUID),
		Username:  rec.Fields.String(FieldUsername),
		Email:     rec.Fields.String(FieldEmail),
		FullName:  rec.Fields.String(FieldFullName),
		Password:  rec.Fields.String(FieldPasswordHash),
		AvatarURL: rec.Fields.String(FieldAvatarURL),
		CreatedAt: rec.Created,
		UpdatedAt: rec.Updated,
	}
}

// PublicUser strips credential material before a user leaves the service.
func PublicUser(u models.User) models.User {
	u.Password = ""
	return u
}

// RequestFromRecord maps a friend_requests record to its model.
func RequestFromRecord(rec recordstore.Record) models.FriendRequest {
	return models.FriendRequest{
		ID:          rec.ID,
		SenderUID:   rec.Fields.String(FieldSenderUID),
		ReceiverUID: rec.Fields.String(FieldReceiverUID),
		State:       rec.Fields.String(FieldState),
		CreatedAt:   rec.Created,
		UpdatedAt:   rec.Updated,
	}
}

// FriendshipFromRecord maps a friendships record to its model.
func FriendshipFromRecord(rec recordstore.Record) models.Friendship {
	return models.Friendship{
		ID:        rec.ID,
		UserUID:   rec.Fields.String(FieldUserUID),
		FriendUID: rec.Fields.String(FieldFriendUID),
		CreatedAt: rec.Created,
	}
}

// EdgeFromRecord maps a relation_edges record to its model.
func EdgeFromRecord(rec recordstore.Record) models.RelationEdge {
	return models.RelationEdge{
		ID:    rec.ID,
		UID:   rec.Fields.String(FieldUID),
		RefID: rec.Fields.String(FieldRefID),
		Kind:  rec.Fields.String(FieldKind),
	}
}

// DeviceFromRecord maps a devices record to its model.
func DeviceFromRecord(rec recordstore.Record) models.Device {
	return models.Device{
		ID:          rec.ID,
		OwnerUID:    rec.Fields.String(FieldOwnerUID),
		DeviceID:    rec.Fields.String(FieldDeviceID),
		DeviceName:  rec.Fields.String(FieldDeviceName),
		LastLoginAt: rec.Fields.Time(FieldLastLoginAt),
	}
}

// Timestamp renders a time the way the record store stores it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
