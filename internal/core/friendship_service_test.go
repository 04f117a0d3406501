package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compartilar-backend-go/internal/access"
	"compartilar-backend-go/internal/db"
	"compartilar-backend-go/internal/models"
)

func TestSendFriendRequestRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, "ana", "ana")
	env.user(t, "bruno", "bruno")

	_, err := env.friends.SendRequest(ctx, "ana", models.SendFriendRequestRequest{ReceiverUsername: "ana"})
	assertKind(t, err, ErrValidation, "You cannot send a friend request to yourself")
	_, err = env.friends.SendRequest(ctx, "ana", models.SendFriendRequestRequest{ReceiverUsername: "nobody"})
	assertKind(t, err, ErrNotFound, "User not found")
	_, err = env.friends.SendRequest(ctx, "ana", models.SendFriendRequestRequest{ReceiverID: "bruno", RelationshipType: "enemy"})
	assertKind(t, err, ErrValidation, "")

	req, err := env.friends.SendRequest(ctx, "ana", models.SendFriendRequestRequest{ReceiverUsername: "BRUNO"})
	require.NoError(t, err)
	assert.Equal(t, "bruno", req.ReceiverID)
	assert.Equal(t, models.RelationshipCoparent, req.RelationshipType)
	assert.Equal(t, models.FriendRequestPending, req.Status)
	assert.Equal(t, 1, countType(env.notificationsFor(t, "bruno"), models.NotificationFriendRequest))

	// Duplicates are rejected in both directions.
	_, err = env.friends.SendRequest(ctx, "ana", models.SendFriendRequestRequest{ReceiverID: "bruno"})
	assertKind(t, err, ErrValidation, "")
	_, err = env.friends.SendRequest(ctx, "bruno", models.SendFriendRequestRequest{ReceiverID: "ana"})
	assertKind(t, err, ErrValidation, "")

	incoming, err := env.friends.ListRequests(ctx, "bruno", "incoming")
	require.NoError(t, err)
	assert.Len(t, incoming, 1)
	outgoing, err := env.friends.ListRequests(ctx, "bruno", "outgoing")
	require.NoError(t, err)
	assert.Empty(t, outgoing)
	_, err = env.friends.ListRequests(ctx, "bruno", "sideways")
	assertKind(t, err, ErrValidation, "")
}

func TestSharedChildrenMustBeOwned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, "ana", "ana")
	env.user(t, "bruno", "bruno")
	theirs := env.child(t, "carla", []string{"ana"}, nil)

	_, err := env.friends.SendRequest(ctx, "ana", models.SendFriendRequestRequest{ReceiverID: "bruno", SharedChildren: []string{theirs.ID}})
	assertKind(t, err, ErrForbidden, "You can only share children you own")
}

func TestAcceptGrantsAccessToSharedChildren(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, "ana", "ana")
	env.user(t, "bruno", "bruno")
	env.user(t, "vovo", "vovo")
	c := env.child(t, "ana", nil, nil)
	historyBefore := env.store.ChildHistoryLen(c.ID)

	coparent, err := env.friends.SendRequest(ctx, "ana", models.SendFriendRequestRequest{ReceiverID: "bruno", SharedChildren: []string{c.ID}})
	require.NoError(t, err)
	support, err := env.friends.SendRequest(ctx, "ana", models.SendFriendRequestRequest{ReceiverID: "vovo", RelationshipType: models.RelationshipSupport, SharedChildren: []string{c.ID}})
	require.NoError(t, err)

	_, err = env.friends.Accept(ctx, "ana", coparent.ID)
	assertKind(t, err, ErrForbidden, "Only the receiver can accept this friend request")

	accepted, err := env.friends.Accept(ctx, "bruno", coparent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestAccepted, accepted.Status)
	require.NotNil(t, accepted.RespondedAt)

	_, err = env.friends.Accept(ctx, "vovo", support.ID)
	require.NoError(t, err)

	got, err := env.children.Get(ctx, "ana", c.ID)
	require.NoError(t, err)
	assert.Equal(t, access.Editor, access.Resolve(got.ACL(), "bruno"))
	assert.Equal(t, access.Viewer, access.Resolve(got.ACL(), "vovo"))
	assert.Equal(t, historyBefore+2, env.store.ChildHistoryLen(c.ID))

	friends, err := env.friends.ListFriends(ctx, "bruno")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "ana", friends[0].FriendID)
	friends, err = env.friends.ListFriends(ctx, "ana")
	require.NoError(t, err)
	assert.Len(t, friends, 2)

	_, err = env.friends.Accept(ctx, "bruno", coparent.ID)
	assertKind(t, err, ErrValidation, "Friend request is no longer pending")

	// Already friends now.
	_, err = env.friends.SendRequest(ctx, "bruno", models.SendFriendRequestRequest{ReceiverID: "ana"})
	assertKind(t, err, ErrValidation, "You are already friends with this user")
	assert.Equal(t, 2, countType(env.notificationsFor(t, "ana"), models.NotificationFriendAccepted))
}

func TestDeclineAndCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, "ana", "ana")
	env.user(t, "bruno", "bruno")

	req, err := env.friends.SendRequest(ctx, "ana", models.SendFriendRequestRequest{ReceiverID: "bruno"})
	require.NoError(t, err)
	_, err = env.friends.Decline(ctx, "ana", req.ID)
	assertKind(t, err, ErrForbidden, "")
	declined, err := env.friends.Decline(ctx, "bruno", req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestDeclined, declined.Status)

	// A declined request no longer blocks a new one.
	req, err = env.friends.SendRequest(ctx, "ana", models.SendFriendRequestRequest{ReceiverID: "bruno"})
	require.NoError(t, err)
	assertKind(t, env.friends.Cancel(ctx, "bruno", req.ID), ErrForbidden, "Only the sender can cancel this friend request")
	require.NoError(t, env.friends.Cancel(ctx, "ana", req.ID))
	assertKind(t, env.friends.Cancel(ctx, "ana", req.ID), ErrValidation, "")
	assertKind(t, env.friends.Cancel(ctx, "ana", "missing"), ErrNotFound, "Friend request not found")
}

func TestRemoveFriendUnlinksBothSides(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, "ana", "ana")
	env.user(t, "bruno", "bruno")

	req, err := env.friends.SendRequest(ctx, "ana", models.SendFriendRequestRequest{ReceiverID: "bruno", RelationshipType: models.RelationshipOther})
	require.NoError(t, err)
	_, err = env.friends.Accept(ctx, "bruno", req.ID)
	require.NoError(t, err)

	require.NoError(t, env.friends.RemoveFriend(ctx, "bruno", "ana"))
	for _, uid := range []string{"ana", "bruno"} {
		friends, err := env.friends.ListFriends(ctx, uid)
		require.NoError(t, err)
		assert.Empty(t, friends, uid)
	}
	assertKind(t, env.friends.RemoveFriend(ctx, "bruno", "ana"), ErrNotFound, "Friend not found")
}

func TestConcurrentFriendRequestsCreateOne(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, "ana", "ana")
	env.user(t, "bruno", "bruno")

	const senders = 8
	var wg sync.WaitGroup
	errs := make([]error, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := "ana", "bruno"
			if i%2 == 1 {
				from, to = to, from
			}
			_, errs[i] = env.friends.SendRequest(ctx, from, models.SendFriendRequestRequest{ReceiverID: to})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assertKind(t, err, ErrValidation, "A pending friend request already exists between you and this user")
	}
	assert.Equal(t, 1, ok)

	incoming, err := env.friends.ListRequests(ctx, "ana", "incoming")
	require.NoError(t, err)
	outgoing, err := env.friends.ListRequests(ctx, "ana", "outgoing")
	require.NoError(t, err)
	assert.Len(t, append(incoming, outgoing...), 1)
}

func TestCreateRequestRejectsPendingPair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	repo := env.store.FriendshipRepository()

	first := &models.FriendRequest{SenderID: "ana", ReceiverID: "bruno", Status: models.FriendRequestPending}
	id, err := repo.CreateRequest(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestID("bruno", "ana"), id)

	_, err = repo.CreateRequest(ctx, &models.FriendRequest{SenderID: "bruno", ReceiverID: "ana", Status: models.FriendRequestPending})
	assert.ErrorIs(t, err, db.ErrAlreadyExists)
}
