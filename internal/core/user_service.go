package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"compartilar-backend-go/internal/db"
	"compartilar-backend-go/internal/models"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9._]{3,30}$`)

// NormalizeUsername lowercases and trims a username and checks its format.
func NormalizeUsername(username string) (string, bool) {
	u := strings.ToLower(strings.TrimSpace(username))
	return u, usernamePattern.MatchString(u)
}

// userService implements the UserService interface.
type userService struct {
	userRepo     db.UserRepository
	auditService AuditService
	logger       *zap.Logger
}

// NewUserService creates a new UserService instance.
func NewUserService(userRepo db.UserRepository, auditService AuditService, logger *zap.Logger) UserService {
	return &userService{userRepo: userRepo, auditService: auditService, logger: logger}
}

func (s *userService) Initialize(ctx context.Context, claims models.TokenClaims, req models.InitializeUserRequest) (*models.User, bool, error) {
	if claims.UID == "" {
		return nil, false, Unauthorized("User ID not found in token")
	}

	created := false
	user, err := s.userRepo.GetByID(ctx, claims.UID)
	if errors.Is(err, db.ErrNotFound) {
		now := time.Now().UTC()
		user = &models.User{
			ID:          claims.UID,
			Email:       claims.Email,
			DisplayName: firstNonEmpty(req.DisplayName, claims.DisplayName),
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			PhotoURL:    claims.PhotoURL,
			Subscription: models.Subscription{
				Status: models.SubscriptionNone,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		err = s.userRepo.Create(ctx, user)
		if errors.Is(err, db.ErrAlreadyExists) {
			// Lost a race with a concurrent initialize for the same uid.
			user, err = s.userRepo.GetByID(ctx, claims.UID)
		} else if err == nil {
			created = true
			s.logger.Info("user account created", zap.String("userId", claims.UID))
			s.auditService.Record(ctx, claims.UID, models.AuditUserInitialize, "USER", claims.UID, nil)
		}
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to initialize user '%s': %w", claims.UID, err)
	}

	if req.Username != "" {
		if err := s.ReserveUsername(ctx, claims.UID, req.Username); err != nil {
			return nil, created, err
		}
		user.Username, _ = NormalizeUsername(req.Username)
	}
	return user, created, nil
}

func (s *userService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, classify(err, "User not found")
	}
	return user, nil
}

// ReserveUsername claims username for userID. Usernames are unique case-insensitively.
func (s *userService) ReserveUsername(ctx context.Context, userID, username string) error {
	normalized, ok := NormalizeUsername(username)
	if !ok {
		return Validation("Username must be 3-30 characters: letters, numbers, dots or underscores")
	}
	if err := s.userRepo.ReserveUsername(ctx, userID, normalized); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return &Error{Kind: ErrValidation, Message: "Username already taken", Err: err}
		}
		return err
	}
	return nil
}

func (s *userService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	normalized, ok := NormalizeUsername(username)
	if !ok {
		return false, Validation("Invalid username")
	}
	_, err := s.userRepo.UsernameOwner(ctx, normalized)
	if errors.Is(err, db.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	if _, err := s.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	if req.Username != nil {
		if err := s.ReserveUsername(ctx, userID, *req.Username); err != nil {
			return nil, err
		}
	}

	fields := map[string]interface{}{}
	set := func(name string, v *string) {
		if v != nil {
			fields[name] = strings.TrimSpace(*v)
		}
	}
	set("displayName", req.DisplayName)
	set("firstName", req.FirstName)
	set("lastName", req.LastName)
	set("phoneNumber", req.PhoneNumber)
	set("photoURL", req.PhotoURL)

	if len(fields) > 0 {
		if err := s.userRepo.Update(ctx, userID, fields); err != nil {
			return nil, fmt.Errorf("failed to update profile of '%s': %w", userID, err)
		}
		s.auditService.Record(ctx, userID, models.AuditUserUpdate, "USER", userID, fields)
	}
	return s.GetByID(ctx, userID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
