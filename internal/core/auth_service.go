package core

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sohaibansari420/careease-backened/internal/auth"
	"github.com/sohaibansari420/careease-backened/internal/store"
)

type AuthService struct {
	users  store.UserStore
	tokens *auth.TokenManager
	clock  Clock
	logger *zap.Logger
}

func NewAuthService(users store.UserStore, tokens *auth.TokenManager, clock Clock, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, clock: clock, logger: logger}
}

type RegisterInput struct {
	Username  string `json:"username" validate:"min=3,max=30,username" msg:"Username must be 3-30 characters of letters, numbers, and underscores"`
	Email     string `json:"email" validate:"required,email" msg:"Please provide a valid email"`
	Password  string `json:"password" validate:"min=6,strongpassword" msg:"Password must be at least 6 characters long and contain one lowercase letter, one uppercase letter, and one number"`
	FirstName string `json:"firstName" validate:"min=1,max=50" msg:"First name is required and must be less than 50 characters"`
	LastName  string `json:"lastName" validate:"min=1,max=50" msg:"Last name is required and must be less than 50 characters"`
}

func (in *RegisterInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email" msg:"Please provide a valid email"`
	Password string `json:"password" validate:"required" msg:"Password is required"`
}

type PreferencesInput struct {
	Theme         *string `json:"theme" validate:"omitempty,oneof=light dark system" msg:"Theme must be light, dark, or system"`
	Notifications *bool   `json:"notifications"`
}

type UpdateProfileInput struct {
	FirstName   *string           `json:"firstName" validate:"omitempty,min=1,max=50" msg:"First name must be less than 50 characters"`
	LastName    *string           `json:"lastName" validate:"omitempty,min=1,max=50" msg:"Last name must be less than 50 characters"`
	Preferences *PreferencesInput `json:"preferences"`
}

// Session is returned by register and login.
type Session struct {
	User  *store.User `json:"user"`
	Token string      `json:"token"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	user, err := s.createUser(ctx, in, store.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

// CreateAdmin seeds an administrator account.
func (s *AuthService) CreateAdmin(ctx context.Context, in RegisterInput) (*store.User, error) {
	return s.createUser(ctx, in, store.RoleAdmin)
}

func (s *AuthService) createUser(ctx context.Context, in RegisterInput, role store.Role) (*store.User, error) {
	in.normalize()
	if err := Validate(&in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, InternalError("Server error during registration", err)
	}
	now := s.clock.now()
	user := &store.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
		IsActive:     true,
		Preferences:  store.Preferences{Theme: "light", Notifications: true},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		var dup *store.DuplicateError
		if errors.As(err, &dup) {
			return nil, ValidationError("User already exists", FieldError{Field: dup.Field, Message: dup.Field + " already exists"})
		}
		return nil, InternalError("Server error during registration", err)
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := Validate(&in); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, in.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, AuthError("Invalid credentials")
	}
	if err != nil {
		return nil, InternalError("Server error during login", err)
	}
	ok, err := auth.CheckPassword(user.PasswordHash, in.Password)
	if err != nil {
		return nil, InternalError("Server error during login", err)
	}
	if !ok {
		return nil, AuthError("Invalid credentials")
	}
	if err := accountAllowed(user); err != nil {
		return nil, err
	}

	now := s.clock.now()
	user.LastLogin = &now
	user.UpdatedAt = now
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, storeError(err, "User not found", "Server error during login")
	}
	return s.session(user)
}

func accountAllowed(user *store.User) error {
	if user.IsBanned {
		msg := "Account has been banned"
		if user.BanReason != "" {
			msg += ": " + user.BanReason
		}
		return ForbiddenError(msg)
	}
	if !user.IsActive {
		return AuthError("Account is deactivated")
	}
	return nil
}

func (s *AuthService) session(user *store.User) (*Session, error) {
	token, err := s.tokens.Generate(user.ID, string(user.Role))
	if err != nil {
		return nil, InternalError("Server error issuing token", err)
	}
	return &Session{User: user, Token: token}, nil
}

// Authenticate resolves a bearer token to a user who may still use the API.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*store.User, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, AuthError("Invalid or expired token")
	}
	user, err := s.users.GetUser(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return nil, AuthError("Invalid token. User not found")
	}
	if err != nil {
		return nil, InternalError("Server error during authentication", err)
	}
	if err := accountAllowed(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*store.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, "User not found", "Server error fetching profile")
	}
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*store.User, error) {
	if in.FirstName != nil {
		v := strings.TrimSpace(*in.FirstName)
		in.FirstName = &v
	}
	if in.LastName != nil {
		v := strings.TrimSpace(*in.LastName)
		in.LastName = &v
	}
	if err := Validate(&in); err != nil {
		return nil, err
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, "User not found", "Server error updating profile")
	}
	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if p := in.Preferences; p != nil {
		if p.Theme != nil {
			user.Preferences.Theme = *p.Theme
		}
		if p.Notifications != nil {
			user.Preferences.Notifications = *p.Notifications
		}
	}
	user.UpdatedAt = s.clock.now()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, storeError(err, "User not found", "Server error updating profile")
	}
	return user, nil
}
