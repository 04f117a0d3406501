package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"compartilar-backend-go/internal/access"
	"compartilar-backend-go/internal/db"
	"compartilar-backend-go/internal/models"
)

const requestNotFoundMsg = "Friend request not found"

type friendshipService struct {
	friendRepo    db.FriendshipRepository
	userRepo      db.UserRepository
	childRepo     db.ChildRepository
	auditService  AuditService
	notifications NotificationService
	logger        *zap.Logger
	now           func() time.Time
}

// NewFriendshipService creates a FriendshipService.
func NewFriendshipService(friendRepo db.FriendshipRepository, userRepo db.UserRepository, childRepo db.ChildRepository, auditService AuditService, notifications NotificationService, logger *zap.Logger) FriendshipService {
	return &friendshipService{
		friendRepo:    friendRepo,
		userRepo:      userRepo,
		childRepo:     childRepo,
		auditService:  auditService,
		notifications: notifications,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// grantFor is the child capability a relationship type gives the receiver.
func grantFor(relationship string) access.Capability {
	if relationship == models.RelationshipCoparent {
		return access.Editor
	}
	return access.Viewer
}

func (s *friendshipService) resolveReceiver(ctx context.Context, req models.SendFriendRequestRequest) (string, error) {
	if req.ReceiverID != "" {
		if _, err := s.userRepo.GetByID(ctx, req.ReceiverID); err != nil {
			return "", classify(err, "User not found")
		}
		return req.ReceiverID, nil
	}
	username, ok := NormalizeUsername(req.ReceiverUsername)
	if !ok {
		return "", Validation("receiverId or a valid receiverUsername is required")
	}
	uid, err := s.userRepo.UsernameOwner(ctx, username)
	if err != nil {
		return "", classify(err, "User not found")
	}
	return uid, nil
}

func (s *friendshipService) SendRequest(ctx context.Context, userID string, req models.SendFriendRequestRequest) (*models.FriendRequest, error) {
	relationship := req.RelationshipType
	if relationship == "" {
		relationship = models.RelationshipCoparent
	}
	if !oneOf(relationship, []string{models.RelationshipCoparent, models.RelationshipSupport, models.RelationshipOther}) {
		return nil, Validation("relationshipType must be one of coparent, support, other")
	}

	receiverID, err := s.resolveReceiver(ctx, req)
	if err != nil {
		return nil, err
	}
	if receiverID == userID {
		return nil, Validation("You cannot send a friend request to yourself")
	}

	if _, err := s.friendRepo.GetFriend(ctx, userID, receiverID); err == nil {
		return nil, Validation("You are already friends with this user")
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	if _, err := s.friendRepo.FindPending(ctx, userID, receiverID); err == nil {
		return nil, Validation("A pending friend request already exists between you and this user")
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	shared := make([]string, 0, len(req.SharedChildren))
	seen := map[string]struct{}{}
	for _, id := range req.SharedChildren {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		child, err := s.childRepo.GetByID(ctx, id)
		if errors.Is(err, db.ErrNotFound) || (err == nil && child.IsDeleted) {
			return nil, Validation(fmt.Sprintf("child %s does not exist", id))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load child '%s': %w", id, err)
		}
		if access.Resolve(child.ACL(), userID) != access.Owner {
			return nil, Forbidden("You can only share children you own")
		}
		shared = append(shared, id)
	}

	now := s.now()
	fr := &models.FriendRequest{
		SenderID:         userID,
		ReceiverID:       receiverID,
		Status:           models.FriendRequestPending,
		RelationshipType: relationship,
		SharedChildren:   shared,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	id, err := s.friendRepo.CreateRequest(ctx, fr)
	if errors.Is(err, db.ErrAlreadyExists) {
		return nil, Validation("A pending friend request already exists between you and this user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create friend request: %w", err)
	}
	fr.ID = id

	s.notifications.Notify(ctx, models.Notification{
		UserID:     receiverID,
		Type:       models.NotificationFriendRequest,
		Title:      "You have a new friend request",
		EntityType: "friend_request",
		EntityID:   id,
		ActorID:    userID,
	})
	return fr, nil
}

func (s *friendshipService) ListRequests(ctx context.Context, userID, direction string) ([]*models.FriendRequest, error) {
	var incoming bool
	switch direction {
	case "", "incoming":
		incoming = true
	case "outgoing":
	default:
		return nil, Validation("direction must be incoming or outgoing")
	}
	reqs, err := s.friendRepo.ListRequests(ctx, userID, incoming, models.FriendRequestPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list friend requests: %w", err)
	}
	return reqs, nil
}

// Accept marks the request accepted, links both users and grants the receiver
// access to every shared child the sender still owns.
func (s *friendshipService) Accept(ctx context.Context, userID, requestID string) (*models.FriendRequest, error) {
	req, err := s.friendRepo.Accept(ctx, requestID, func(req *models.FriendRequest, children []*models.Child) (map[string]*models.ChangeLogEntry, error) {
		if req.ReceiverID != userID {
			return nil, Forbidden("Only the receiver can accept this friend request")
		}
		if req.Status != models.FriendRequestPending {
			return nil, Validation("Friend request is no longer pending")
		}
		now := s.now()
		req.Status = models.FriendRequestAccepted
		req.RespondedAt = &now
		req.UpdatedAt = now

		level := grantFor(req.RelationshipType)
		entries := make(map[string]*models.ChangeLogEntry, len(children))
		for _, c := range children {
			acl := c.ACL()
			if c.IsDeleted || acl.OwnerID != req.SenderID || access.Resolve(acl, userID) >= level {
				continue
			}
			after, err := access.Grant(acl, userID, level)
			if err != nil {
				return nil, err
			}
			c.SetACL(after)
			c.UpdatedAt = now
			entries[c.ID] = &models.ChangeLogEntry{
				Timestamp:    now,
				UserID:       userID,
				Action:       models.ActionShare,
				EntityType:   entityChild,
				FieldsBefore: aclSnapshot(acl),
				FieldsAfter:  aclSnapshot(c.ACL()),
				Description:  fmt.Sprintf("Shared through friend request (%s)", req.RelationshipType),
			}
		}
		return entries, nil
	})
	if err != nil {
		return nil, classify(err, requestNotFoundMsg)
	}

	s.auditService.Record(ctx, userID, models.AuditFriendAccept, "FRIEND_REQUEST", requestID, map[string]interface{}{
		"senderId":       req.SenderID,
		"sharedChildren": req.SharedChildren,
	})
	s.notifications.Notify(ctx, models.Notification{
		UserID:     req.SenderID,
		Type:       models.NotificationFriendAccepted,
		Title:      "Your friend request was accepted",
		EntityType: "friend_request",
		EntityID:   requestID,
		ActorID:    userID,
	})
	return req, nil
}

func (s *friendshipService) Decline(ctx context.Context, userID, requestID string) (*models.FriendRequest, error) {
	req, err := s.friendRepo.UpdateRequest(ctx, requestID, func(req *models.FriendRequest) error {
		if req.ReceiverID != userID {
			return Forbidden("Only the receiver can decline this friend request")
		}
		if req.Status != models.FriendRequestPending {
			return Validation("Friend request is no longer pending")
		}
		now := s.now()
		req.Status = models.FriendRequestDeclined
		req.RespondedAt = &now
		req.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, classify(err, requestNotFoundMsg)
	}
	return req, nil
}

func (s *friendshipService) Cancel(ctx context.Context, userID, requestID string) error {
	_, err := s.friendRepo.UpdateRequest(ctx, requestID, func(req *models.FriendRequest) error {
		if req.SenderID != userID {
			return Forbidden("Only the sender can cancel this friend request")
		}
		if req.Status != models.FriendRequestPending {
			return Validation("Only pending friend requests can be canceled")
		}
		req.Status = models.FriendRequestCanceled
		req.UpdatedAt = s.now()
		return nil
	})
	return classify(err, requestNotFoundMsg)
}

func (s *friendshipService) ListFriends(ctx context.Context, userID string) ([]*models.Friend, error) {
	friends, err := s.friendRepo.ListFriends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	return friends, nil
}

// RemoveFriend unlinks both users. Child access granted through the friendship is kept;
// owners revoke it explicitly.
func (s *friendshipService) RemoveFriend(ctx context.Context, userID, friendID string) error {
	if _, err := s.friendRepo.GetFriend(ctx, userID, friendID); err != nil {
		return classify(err, "Friend not found")
	}
	if err := s.friendRepo.RemoveFriend(ctx, userID, friendID); err != nil {
		return err
	}
	s.auditService.Record(ctx, userID, models.AuditFriendRemove, "FRIEND", friendID, nil)
	return nil
}
