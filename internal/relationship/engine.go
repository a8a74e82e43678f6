// Package relationship orchestrates the multi-record mutations behind friend
// requests and friendships. The record store only guarantees atomicity per
// record, so every operation here is written as a saga: forward steps tracked
// with paired compensations, unwound in reverse on the first failure, making
// the whole mutation all-or-nothing as far as readers can observe.
package relationship

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/betweenus/backend/internal/collections"
	"github.com/betweenus/backend/internal/logging"
	"github.com/betweenus/backend/internal/models"
	"github.com/betweenus/backend/internal/recordstore"
	"github.com/betweenus/backend/internal/saga"
)

// Engine is a stateless orchestrator over records owned by the store. It is
// the only writer of friend_requests, friendships, and relation_edges; it
// holds no locks and relies on the store's single-record atomicity plus the
// pending-state precondition to keep concurrent resolutions from double
// firing.
type Engine struct {
	store recordstore.Client
}

// NewEngine constructs an engine over the provided store client.
func NewEngine(store recordstore.Client) *Engine {
	if store == nil {
		panic("relationship: store client must not be nil")
	}
	return &Engine{store: store}
}

// Resolution is the outcome of resolving a friend request. Friendship is set
// only when the request was accepted. StaleRequest reports that the accepted
// request record (or its index edges) could not be cleaned up and was left
// behind for out-of-band repair; the friendship itself is intact.
type Resolution struct {
	Request      models.FriendRequest
	Friendship   *models.Friendship
	StaleRequest bool
}

// RequestView pairs a friend request with the profile of the other
// participant, the shape the read endpoints serve.
type RequestView struct {
	Request     models.FriendRequest
	Counterpart models.User
}

// SendFriendRequest creates a pending request from one user to another and
// indexes it for both participants. On any non-success return no request
// record and no index edge survives.
func (e *Engine) SendFriendRequest(ctx context.Context, fromUID, toUID string) (models.FriendRequest, error) {
	fromUID = strings.TrimSpace(fromUID)
	toUID = strings.TrimSpace(toUID)
	if fromUID == "" || toUID == "" {
		return models.FriendRequest{}, fmt.Errorf("%w: sender and receiver are required", ErrInvalidArgument)
	}
	if fromUID == toUID {
		return models.FriendRequest{}, fmt.Errorf("%w: cannot send a friend request to yourself", ErrInvalidArgument)
	}

	ctx, span := logging.StartSpan(ctx, "relationship.send_friend_request")
	defer span.End()

	// Duplicate-pending guard over the unordered pair. This check also makes
	// caller retries of server errors safe: a retry after a half-visible
	// failure either finds the pending request or starts clean.
	guard := recordstore.And(
		recordstore.Eq(collections.FieldState, models.RequestPending),
		recordstore.Or(
			recordstore.And(
				recordstore.Eq(collections.FieldSenderUID, fromUID),
				recordstore.Eq(collections.FieldReceiverUID, toUID),
			),
			recordstore.And(
				recordstore.Eq(collections.FieldSenderUID, toUID),
				recordstore.Eq(collections.FieldReceiverUID, fromUID),
			),
		),
	)
	if _, err := e.store.FindOne(ctx, collections.FriendRequests, guard); err == nil {
		return models.FriendRequest{}, ErrRequestExists
	} else if !errors.Is(err, recordstore.ErrNotFound) {
		return models.FriendRequest{}, fmt.Errorf("check existing friend request: %w", err)
	}

	sg := saga.New("send_friend_request")

	rec, err := e.store.Create(ctx, collections.FriendRequests, recordstore.Fields{
		collections.FieldSenderUID:   fromUID,
		collections.FieldReceiverUID: toUID,
		collections.FieldState:       models.RequestPending,
	})
	if err != nil {
		return models.FriendRequest{}, fmt.Errorf("create friend request: %w", err)
	}
	sg.Completed("create friend request", collections.FriendRequests, rec.ID, func(ctx context.Context) error {
		return e.store.Delete(ctx, collections.FriendRequests, rec.ID)
	})

	for _, uid := range []string{fromUID, toUID} {
		if _, err := e.store.FindOne(ctx, collections.Users, recordstore.Eq(collections.FieldUID, uid)); err != nil {
			if errors.Is(err, recordstore.ErrNotFound) {
				return models.FriendRequest{}, e.abort(ctx, sg, fmt.Errorf("%w: %s", ErrUserNotFound, uid))
			}
			return models.FriendRequest{}, e.abort(ctx, sg, &UpdateFailedError{Step: "look up participants", Err: err})
		}
	}

	if err := e.createEdge(ctx, sg, fromUID, rec.ID, models.EdgeRequestSent); err != nil {
		return models.FriendRequest{}, e.abort(ctx, sg, err)
	}
	if err := e.createEdge(ctx, sg, toUID, rec.ID, models.EdgeRequestReceived); err != nil {
		return models.FriendRequest{}, e.abort(ctx, sg, err)
	}

	return collections.RequestFromRecord(rec), nil
}

// ResolveFriendRequest transitions a pending request to accepted or declined
// on behalf of one of its participants. Accepting materializes a friendship,
// indexes it for both users, and removes the resolved request; declining
// leaves the request in place as an audit trail.
func (e *Engine) ResolveFriendRequest(ctx context.Context, requestID, actingUID, newState string) (Resolution, error) {
	if newState != models.RequestAccepted && newState != models.RequestDeclined {
		return Resolution{}, fmt.Errorf("%w: unsupported state %q", ErrInvalidArgument, newState)
	}

	rec, err := e.store.Get(ctx, collections.FriendRequests, requestID)
	if err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			return Resolution{}, fmt.Errorf("friend request %s: %w", requestID, recordstore.ErrNotFound)
		}
		return Resolution{}, fmt.Errorf("fetch friend request: %w", err)
	}

	req := collections.RequestFromRecord(rec)
	if !req.Participant(actingUID) {
		return Resolution{}, ErrForbidden
	}
	// The pending precondition is the concurrency guard: when two resolutions
	// race, the store's per-record atomicity lets only the first state write
	// win and the loser fails here on refetch.
	if req.Terminal() {
		return Resolution{}, fmt.Errorf("%w: already %s", ErrInvalidTransition, req.State)
	}

	ctx, span := logging.StartSpan(ctx, "relationship.resolve_friend_request")
	defer span.End()

	sg := saga.New("resolve_friend_request")

	updated, err := e.store.Update(ctx, collections.FriendRequests, requestID, recordstore.Fields{
		collections.FieldState: newState,
	})
	if err != nil {
		return Resolution{}, fmt.Errorf("update friend request state: %w", err)
	}
	sg.Completed("update request state", collections.FriendRequests, requestID, func(ctx context.Context) error {
		_, err := e.store.Update(ctx, collections.FriendRequests, requestID, recordstore.Fields{
			collections.FieldState: models.RequestPending,
		})
		return err
	})
	req = collections.RequestFromRecord(updated)

	if newState == models.RequestDeclined {
		return Resolution{Request: req}, nil
	}

	fsRec, err := e.store.Create(ctx, collections.Friendships, recordstore.Fields{
		collections.FieldUserUID:   req.SenderUID,
		collections.FieldFriendUID: req.ReceiverUID,
	})
	if err != nil {
		return Resolution{}, e.abort(ctx, sg, &UpdateFailedError{Step: "create friendship", Err: err})
	}
	sg.Completed("create friendship", collections.Friendships, fsRec.ID, func(ctx context.Context) error {
		return e.store.Delete(ctx, collections.Friendships, fsRec.ID)
	})

	if err := e.createEdge(ctx, sg, req.SenderUID, fsRec.ID, models.EdgeFriendship); err != nil {
		return Resolution{}, e.abort(ctx, sg, err)
	}
	if err := e.createEdge(ctx, sg, req.ReceiverUID, fsRec.ID, models.EdgeFriendship); err != nil {
		return Resolution{}, e.abort(ctx, sg, err)
	}

	fs := collections.FriendshipFromRecord(fsRec)
	res := Resolution{Request: req, Friendship: &fs}

	// The friendship is the durable, user-visible outcome. A failure while
	// removing the resolved request or its index edges is not rolled back;
	// the leftovers are flagged for out-of-band cleanup instead.
	if err := e.removeResolvedRequest(ctx, requestID); err != nil {
		logging.FromContext(ctx).Warn("stale friend request left behind after accept",
			"request_id", requestID, "error", err)
		res.StaleRequest = true
	}

	return res, nil
}

// SentRequests returns every request the user has sent, with the receiver's
// profile attached. Reads are eventually consistent; a counterpart missing
// under a stale read is returned as a zero profile rather than an error.
func (e *Engine) SentRequests(ctx context.Context, uid string) ([]RequestView, error) {
	return e.requestViews(ctx, recordstore.Eq(collections.FieldSenderUID, uid), func(r models.FriendRequest) string {
		return r.ReceiverUID
	})
}

// ReceivedRequests returns every request addressed to the user, with the
// sender's profile attached.
func (e *Engine) ReceivedRequests(ctx context.Context, uid string) ([]RequestView, error) {
	return e.requestViews(ctx, recordstore.Eq(collections.FieldReceiverUID, uid), func(r models.FriendRequest) string {
		return r.SenderUID
	})
}

// Friendships returns every friendship the user participates in, regardless of
// which side accepted.
func (e *Engine) Friendships(ctx context.Context, uid string) ([]models.Friendship, error) {
	recs, err := e.store.FindAll(ctx, collections.Friendships, recordstore.Or(
		recordstore.Eq(collections.FieldUserUID, uid),
		recordstore.Eq(collections.FieldFriendUID, uid),
	))
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}

	out := make([]models.Friendship, 0, len(recs))
	for _, rec := range recs {
		out = append(out, collections.FriendshipFromRecord(rec))
	}
	return out, nil
}

// RelationIndex returns the user's directed relation edges of the given kind.
// It is the edge-collection replacement for the back-reference id lists a user
// record would otherwise carry.
func (e *Engine) RelationIndex(ctx context.Context, uid, kind string) ([]models.RelationEdge, error) {
	recs, err := e.store.FindAll(ctx, collections.RelationEdges, recordstore.And(
		recordstore.Eq(collections.FieldUID, uid),
		recordstore.Eq(collections.FieldKind, kind),
	))
	if err != nil {
		return nil, fmt.Errorf("list relation edges: %w", err)
	}

	out := make([]models.RelationEdge, 0, len(recs))
	for _, rec := range recs {
		out = append(out, collections.EdgeFromRecord(rec))
	}
	return out, nil
}

func (e *Engine) requestViews(ctx context.Context, filter recordstore.Filter, counterpart func(models.FriendRequest) string) ([]RequestView, error) {
	recs, err := e.store.FindAll(ctx, collections.FriendRequests, filter)
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}

	views := make([]RequestView, 0, len(recs))
	for _, rec := range recs {
		req := collections.RequestFromRecord(rec)
		view := RequestView{Request: req}

		userRec, err := e.store.FindOne(ctx, collections.Users, recordstore.Eq(collections.FieldUID, counterpart(req)))
		switch {
		case err == nil:
			view.Counterpart = collections.PublicUser(collections.UserFromRecord(userRec))
		case errors.Is(err, recordstore.ErrNotFound):
			// stale read; leave the profile empty
		default:
			return nil, fmt.Errorf("look up counterpart: %w", err)
		}

		views = append(views, view)
	}
	return views, nil
}

// createEdge writes one directed relation edge and registers its compensation.
func (e *Engine) createEdge(ctx context.Context, sg *saga.Saga, uid, refID, kind string) error {
	rec, err := e.store.Create(ctx, collections.RelationEdges, recordstore.Fields{
		collections.FieldUID:   uid,
		collections.FieldRefID: refID,
		collections.FieldKind:  kind,
	})
	if err != nil {
		return &UpdateFailedError{Step: "index " + kind + " edge", Err: err}
	}
	sg.Completed("index "+kind+" edge", collections.RelationEdges, rec.ID, func(ctx context.Context) error {
		return e.store.Delete(ctx, collections.RelationEdges, rec.ID)
	})
	return nil
}

// removeResolvedRequest deletes an accepted request's index edges and then the
// request record itself. Best effort: it keeps going after a failure and
// reports the first error.
func (e *Engine) removeResolvedRequest(ctx context.Context, requestID string) error {
	var firstErr error

	edges, err := e.store.FindAll(ctx, collections.RelationEdges, recordstore.Eq(collections.FieldRefID, requestID))
	if err != nil {
		firstErr = fmt.Errorf("list request edges: %w", err)
	}
	for _, edge := range edges {
		if err := e.store.Delete(ctx, collections.RelationEdges, edge.ID); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("delete request edge %s: %w", edge.ID, err)
		}
	}

	if err := e.store.Delete(ctx, collections.FriendRequests, requestID); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("delete friend request: %w", err)
	}
	return firstErr
}

// abort rolls back the saga and returns the forward failure, unless a
// compensation itself failed, in which case the compensation error dominates:
// it is the one condition the engine cannot self-heal.
func (e *Engine) abort(ctx context.Context, sg *saga.Saga, cause error) error {
	logging.FromContext(ctx).Warn("saga aborted, rolling back", "error", cause)
	if rbErr := sg.Rollback(ctx); rbErr != nil {
		return rbErr
	}
	return cause
}
