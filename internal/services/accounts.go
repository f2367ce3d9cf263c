package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/memora/backend/internal/mailer"
	"github.com/memora/backend/internal/models"
	"github.com/memora/backend/internal/storage"
	"github.com/memora/backend/pkg/logger"
	"github.com/memora/backend/pkg/utils"
	"gorm.io/gorm"
)

const tokenBytes = 32

type SignupInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type PasswordChangeInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

type ResetPasswordInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// Session is returned by every successful login.
type Session struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

type Profile struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Avatar      *string   `json:"avatar"`
	HasPassword bool      `json:"hasPassword"`
}

type AccountService struct {
	DB             *gorm.DB
	Store          storage.ObjectStore
	Mailer         mailer.Sender
	Memories       *MemoryService
	Audit          *AuditService
	Google         IdentityVerifier
	GoogleCode     CodeVerifier
	FrontendURL    string
	PresignTTL     time.Duration
	SocialTokenTTL time.Duration
	validate       *validator.Validate
}

func NewAccountService(db *gorm.DB, store storage.ObjectStore, sender mailer.Sender, memories *MemoryService, audit *AuditService, google IdentityVerifier, frontendURL string) *AccountService {
	return &AccountService{
		DB:             db,
		Store:          store,
		Mailer:         sender,
		Memories:       memories,
		Audit:          audit,
		Google:         google,
		FrontendURL:    strings.TrimRight(frontendURL, "/"),
		PresignTTL:     defaultPresignTTL,
		SocialTokenTTL: 30 * 24 * time.Hour,
		validate:       newValidator(),
	}
}

// Signup creates an unverified local account and mails its verification link.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}

	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if count > 0 {
		return nil, &ConflictError{Message: "email already registered"}
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	token, err := utils.RandomToken(tokenBytes)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Name:              in.Name,
		Email:             in.Email,
		PasswordHash:      &hash,
		VerificationToken: &token,
		AuthProvider:      models.AuthProviderLocal,
	}
	if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &ConflictError{Message: "email already registered"}
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	email := mailer.VerificationEmail(user.Name, s.FrontendURL+"/verify?token="+token)
	if err := s.Mailer.Send(user.Email, email.Subject, email.Body); err != nil {
		return nil, fmt.Errorf("sending verification email: %w", err)
	}

	s.audit(ctx, &user.ID, "user.register", nil)
	logger.InfoWithUser(user.ID.String(), "user_registered", map[string]interface{}{
		"email": user.Email,
	})
	return &user, nil
}

// Verify marks the account holding token as verified and sends a welcome
// email. A failed welcome email does not fail verification.
func (s *AccountService) Verify(ctx context.Context, token string) error {
	user, err := s.userByToken(ctx, token)
	if err != nil {
		return err
	}

	if err := s.DB.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"is_verified":        true,
		"verification_token": nil,
	}).Error; err != nil {
		return fmt.Errorf("verifying user: %w", err)
	}

	s.sendWelcome(user, string(models.AuthProviderLocal))
	s.audit(ctx, &user.ID, "user.verify", nil)
	return nil
}

func (s *AccountService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}

	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", in.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "user"}
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	if !user.IsVerified {
		return nil, &AuthError{Message: "please verify your email first", Forbidden: true}
	}
	if !user.HasPassword() {
		return nil, &AuthError{Message: "this account uses social login"}
	}
	if !utils.CheckPassword(*user.PasswordHash, in.Password) {
		logger.WarnWithUser(user.ID.String(), "login_failed", map[string]interface{}{
			"reason": "invalid_password",
		})
		return nil, &AuthError{Message: "invalid password"}
	}

	token, err := utils.GenerateToken(&user)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	s.audit(ctx, &user.ID, "user.login", nil)
	return &Session{Token: token, User: s.profileOf(ctx, &user)}, nil
}

// SocialLogin signs in with a provider ID token, creating or refreshing the
// local account keyed by email.
func (s *AccountService) SocialLogin(ctx context.Context, provider, idToken string) (*Session, error) {
	if provider != string(models.AuthProviderGoogle) {
		return nil, validationf("unsupported provider %q", provider)
	}
	if idToken == "" {
		return nil, validationf("token is required")
	}
	if s.Google == nil {
		return nil, &AuthError{Message: "google login is not configured"}
	}

	identity, err := s.Google.Verify(ctx, idToken)
	if err != nil {
		logger.Warn("social_login_rejected", map[string]interface{}{
			"provider": provider,
			"error":    err.Error(),
		})
		return nil, &AuthError{Message: "social authentication failed"}
	}
	return s.socialSession(ctx, provider, identity)
}

// SocialLoginWithCode is SocialLogin for the redirect flow, where the client
// holds an authorization code instead of an ID token.
func (s *AccountService) SocialLoginWithCode(ctx context.Context, provider, code string) (*Session, error) {
	if provider != string(models.AuthProviderGoogle) {
		return nil, validationf("unsupported provider %q", provider)
	}
	if code == "" {
		return nil, validationf("code is required")
	}
	if s.GoogleCode == nil {
		return nil, &AuthError{Message: "google code login is not configured"}
	}

	identity, err := s.GoogleCode.VerifyCode(ctx, code)
	if err != nil {
		logger.Warn("social_login_rejected", map[string]interface{}{
			"provider": provider,
			"flow":     "code",
			"error":    err.Error(),
		})
		return nil, &AuthError{Message: "social authentication failed"}
	}
	return s.socialSession(ctx, provider, identity)
}

// socialSession creates or refreshes the local account keyed by the
// identity's email and issues a long-lived token.
func (s *AccountService) socialSession(ctx context.Context, provider string, identity *Identity) (*Session, error) {
	email := normalizeEmail(identity.Email)
	name := identity.Name
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	var avatar *string
	if identity.Picture != "" {
		avatar = &identity.Picture
	}

	var user models.User
	isNew := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", email).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			isNew = true
			user = models.User{
				Name:         name,
				Email:        email,
				AvatarURL:    avatar,
				IsVerified:   true,
				AuthProvider: models.AuthProviderGoogle,
			}
			return tx.Create(&user).Error
		}
		if err != nil {
			return err
		}

		user.Name = name
		user.AvatarURL = avatar
		user.IsVerified = true
		return tx.Model(&user).Updates(map[string]interface{}{
			"name":        name,
			"avatar_url":  avatar,
			"is_verified": true,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("upserting social user: %w", err)
	}

	if isNew {
		s.sendWelcome(&user, provider)
	}

	token, err := utils.GenerateTokenWithExpiry(&user, s.SocialTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	s.audit(ctx, &user.ID, "user.social_login", map[string]interface{}{
		"provider": provider,
		"new_user": isNew,
	})
	return &Session{Token: token, User: s.profileOf(ctx, &user)}, nil
}

func (s *AccountService) Profile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := s.profileOf(ctx, user)
	return &profile, nil
}

func (s *AccountService) UpdateName(ctx context.Context, userID uuid.UUID, name string) (*Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("name is required")
	}
	if len(name) > 100 {
		return nil, validationf("name must be at most 100 characters")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(user).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("updating name: %w", err)
	}
	user.Name = name

	s.audit(ctx, &user.ID, "user.profile_update", map[string]interface{}{"field": "name"})
	profile := s.profileOf(ctx, user)
	return &profile, nil
}

func (s *AccountService) UpdatePassword(ctx context.Context, userID uuid.UUID, in PasswordChangeInput) error {
	if err := validateStruct(s.validate, in); err != nil {
		return err
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return validationf("social login accounts cannot change password here")
	}
	if !utils.CheckPassword(*user.PasswordHash, in.CurrentPassword) {
		return validationf("invalid current password")
	}

	hash, err := utils.HashPassword(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.DB.WithContext(ctx).Model(user).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	s.audit(ctx, &user.ID, "user.password_change", nil)
	return nil
}

// UpdateAvatar stores the image under a per-user key, replacing any earlier
// avatar with a different extension.
func (s *AccountService) UpdateAvatar(ctx context.Context, userID uuid.UUID, file Upload) (*Profile, error) {
	if file.Open == nil {
		return nil, validationf("no image file provided")
	}
	contentType := contentTypeFor(file)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, validationf("avatar must be an image")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := avatarKey(userID, file.Filename)
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("opening avatar: %w", err)
	}
	defer rc.Close()

	if err := s.Store.Upload(ctx, key, rc, file.Size, contentType); err != nil {
		return nil, &StorageError{Op: "upload", Keys: []string{key}, Err: err}
	}

	previous := user.AvatarKey
	if err := s.DB.WithContext(ctx).Model(user).Update("avatar_key", key).Error; err != nil {
		s.Audit.RecordDivergence(userID, nil, "avatar row not saved after upload", []string{key}, err)
		return nil, fmt.Errorf("saving avatar: %w", err)
	}
	user.AvatarKey = &key

	if previous != nil && *previous != key {
		if err := s.Store.Delete(ctx, *previous); err != nil {
			s.Audit.RecordDivergence(userID, nil, "previous avatar not deleted", []string{*previous}, err)
		}
	}

	s.audit(ctx, &user.ID, "user.avatar_update", map[string]interface{}{"key": key})
	profile := s.profileOf(ctx, user)
	return &profile, nil
}

// ForgotPassword issues a reset token. It reuses the verification token
// column, so a pending verification link stops working.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return validationf("email is required")
	}

	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Resource: "user"}
	}
	if err != nil {
		return fmt.Errorf("loading user: %w", err)
	}

	token, err := utils.RandomToken(tokenBytes)
	if err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Model(&user).Update("verification_token", token).Error; err != nil {
		return fmt.Errorf("saving reset token: %w", err)
	}

	msg := mailer.PasswordResetEmail(user.Name, s.FrontendURL+"/reset-password?token="+token)
	if err := s.Mailer.Send(user.Email, msg.Subject, msg.Body); err != nil {
		return fmt.Errorf("sending reset email: %w", err)
	}

	s.audit(ctx, &user.ID, "user.password_reset_request", nil)
	return nil
}

func (s *AccountService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := validateStruct(s.validate, in); err != nil {
		return err
	}

	user, err := s.userByToken(ctx, in.Token)
	if err != nil {
		return err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.DB.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"password_hash":      hash,
		"verification_token": nil,
	}).Error; err != nil {
		return fmt.Errorf("resetting password: %w", err)
	}

	s.audit(ctx, &user.ID, "user.password_reset", nil)
	return nil
}

// DeleteAccount removes every memory with its photos, the avatar object and
// finally the user row.
func (s *AccountService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	removed, err := s.Memories.DeleteUserMemories(ctx, userID)
	if err != nil {
		return err
	}

	if user.AvatarKey != nil {
		if err := s.Store.Delete(ctx, *user.AvatarKey); err != nil {
			s.Audit.RecordDivergence(userID, nil, "avatar delete failed", []string{*user.AvatarKey}, err)
		}
	}

	if err := s.DB.WithContext(ctx).Delete(user).Error; err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	s.audit(ctx, &user.ID, "user.delete", map[string]interface{}{"memories": removed})
	logger.InfoWithUser(userID.String(), "account_deleted", map[string]interface{}{
		"memories": removed,
	})
	return nil
}

func (s *AccountService) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "user"}
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return &user, nil
}

func (s *AccountService) userByToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, validationf("invalid or expired token")
	}
	var user models.User
	err := s.DB.WithContext(ctx).Where("verification_token = ?", token).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, validationf("invalid or expired token")
	}
	if err != nil {
		return nil, fmt.Errorf("loading user by token: %w", err)
	}
	return &user, nil
}

// profileOf prefers an uploaded avatar, signed on every call, over an
// external picture URL.
func (s *AccountService) profileOf(ctx context.Context, user *models.User) Profile {
	profile := Profile{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		Avatar:      user.AvatarURL,
		HasPassword: user.HasPassword(),
	}
	if user.AvatarKey != nil {
		url, err := s.Store.PresignedGetURL(ctx, *user.AvatarKey, s.PresignTTL)
		if err != nil {
			logger.ErrorWithUser(user.ID.String(), "avatar_presign_failed", err, nil)
		} else {
			profile.Avatar = &url
		}
	}
	return profile
}

func (s *AccountService) sendWelcome(user *models.User, provider string) {
	msg := mailer.WelcomeEmail(user.Name, provider, s.FrontendURL+"/dashboard")
	if err := s.Mailer.Send(user.Email, msg.Subject, msg.Body); err != nil {
		logger.WarnWithUser(user.ID.String(), "welcome_email_failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *AccountService) audit(ctx context.Context, userID *uuid.UUID, action string, details map[string]interface{}) {
	meta := requestMetaFrom(ctx)
	s.Audit.LogAsync(AuditEntry{
		UserID:       userID,
		Action:       action,
		ResourceType: "user",
		ResourceID:   userID,
		Details:      details,
		IPAddress:    meta.IPAddress,
		RequestID:    meta.RequestID,
	})
}

func avatarKey(userID uuid.UUID, filename string) string {
	ext := "img"
	if i := strings.LastIndex(filename, "."); i >= 0 && i < len(filename)-1 {
		ext = strings.ToLower(filename[i+1:])
	}
	return fmt.Sprintf("avatars/%s/avatar.%s", userID, ext)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

