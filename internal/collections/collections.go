// Package collections names the record store collections owned by the service
// and converts between store records and domain models.
package collections

// Collection names as they exist in the record store.
const (
	Users          = "users"
	FriendRequests = "friend_requests"
	Friendships    = "friendships"
	RelationEdges  = "relation_edges"
	Devices        = "devices"
	ServerTokens   = "server_tokens"
)

// Field names shared by the engine, the account service, and the schema
// bootstrap.
const (
	FieldUID          = "uid"
	FieldUsername     = "username"
	FieldEmail        = "email"
	FieldFullName     = "fullname"
	FieldPasswordHash = "passwordHash"
	FieldAvatarURL    = "avatarUrl"

	FieldSenderUID   = "senderUid"
	FieldReceiverUID = "receiverUid"
	FieldState       = "state"

	FieldUserUID   = "userUid"
	FieldFriendUID = "friendUid"

	FieldRefID = "refId"
	FieldKind  = "kind"

	FieldOwnerUID    = "ownerUid"
	FieldDeviceID    = "deviceId"
	FieldDeviceName  = "deviceName"
	FieldLastLoginAt = "lastLoginAt"

	FieldToken           = "token"
	FieldGeneratedFrom   = "generatedFrom"
	FieldCreatedByUserID = "createdByUserId"
	FieldExpiresAt       = "expiresAt"
)
