package collections

import (
	"context"
	"fmt"

	"github.com/betweenus/backend/internal/logging"
	"github.com/betweenus/backend/internal/recordstore"
)

// Admin is the slice of the record store's management API needed to bootstrap
// the schema.
type Admin interface {
	HasCollection(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, spec recordstore.CollectionSpec) error
}

// Ensure creates every collection the service depends on if it does not exist
// yet. It is idempotent and safe to run on every deploy.
func Ensure(ctx context.Context, admin Admin) error {
	logger := logging.FromContext(ctx)

	for _, spec := range specs() {
		exists, err := admin.HasCollection(ctx, spec.Name)
		if err != nil {
			return fmt.Errorf("check collection %s: %w", spec.Name, err)
		}
		if exists {
			logger.Info("collection present", "collection", spec.Name)
			continue
		}
		if err := admin.CreateCollection(ctx, spec); err != nil {
			return fmt.Errorf("create collection %s: %w", spec.Name, err)
		}
		logger.Info("collection created", "collection", spec.Name)
	}
	return nil
}

func specs() []recordstore.CollectionSpec {
	text := func(name string, required bool) recordstore.CollectionField {
		return recordstore.CollectionField{Name: name, Type: "text", Required: required}
	}

	return []recordstore.CollectionSpec{
		{
			Name: Users,
			Fields: []recordstore.CollectionField{
				text(FieldUID, true),
				text(FieldUsername, true),
				text(FieldEmail, true),
				text(FieldFullName, false),
				text(FieldPasswordHash, true),
				text(FieldAvatarURL, false),
			},
		},
		{
			Name: FriendRequests,
			Fields: []recordstore.CollectionField{
				text(FieldSenderUID, true),
				text(FieldReceiverUID, true),
				text(FieldState, true),
			},
		},
		{
			Name: Friendships,
			Fields: []recordstore.CollectionField{
				text(FieldUserUID, true),
				text(FieldFriendUID, true),
			},
		},
		{
			Name: RelationEdges,
			Fields: []recordstore.CollectionField{
				text(FieldUID, true),
				text(FieldRefID, true),
				text(FieldKind, true),
			},
		},
		{
			Name: Devices,
			Fields: []recordstore.CollectionField{
				text(FieldOwnerUID, true),
				text(FieldDeviceID, true),
				text(FieldDeviceName, false),
				text(FieldLastLoginAt, false),
			},
		},
		{
			Name: ServerTokens,
			Fields: []recordstore.CollectionField{
				text(FieldToken, true),
				text(FieldGeneratedFrom, false),
				text(FieldCreatedByUserID, false),
				text(FieldExpiresAt, false),
			},
		},
	}
}
