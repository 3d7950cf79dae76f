package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cadence/internal/models"
	"cadence/internal/repository"
	"cadence/internal/security"
	"cadence/internal/validation"
)

var (
	ErrAuthDisabled       = errors.New("auth configuration is missing")
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrCodeInvalid        = errors.New("sign-in link is invalid or has expired")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
)

// Code lifetimes. OAuth codes only bridge one redirect hop, so they are
// short; recovery links live long enough to survive a slow inbox.
const (
	magicLinkCodeTTL = 15 * time.Minute
	recoveryCodeTTL  = 1 * time.Hour
	oauthCodeTTL     = 5 * time.Minute
)

// AuthService hosts the identity concerns the rest of the app consumes
// opaquely: password sign-in, emailed one-time codes, OAuth identities,
// code-for-session exchange, and session validation with sliding refresh.
type AuthService struct {
	userRepo        *repository.UserRepository
	sessionDuration time.Duration
	enabled         bool
}

// NewAuthService creates a new auth service. enabled mirrors the presence
// of the auth configuration; when false every operation fails with
// ErrAuthDisabled and the session gate degrades to allow-all.
func NewAuthService(userRepo *repository.UserRepository, sessionDuration time.Duration, enabled bool) *AuthService {
	return &AuthService{
		userRepo:        userRepo,
		sessionDuration: sessionDuration,
		enabled:         enabled,
	}
}

// Enabled reports whether the auth configuration is present
func (s *AuthService) Enabled() bool {
	return s.enabled
}

// SignInWithPassword authenticates a user and creates a session
func (s *AuthService) SignInWithPassword(email, password string) (*models.Session, *models.User, error) {
	if !s.enabled {
		return nil, nil, ErrAuthDisabled
	}

	user, err := s.userRepo.GetUserByEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, nil, ErrInvalidCredentials
	}

	if !security.CheckPassword(password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	if !user.EmailConfirmed {
		return nil, nil, ErrEmailNotConfirmed
	}

	session, err := s.createSession(user.ID)
	if err != nil {
		return nil, nil, err
	}

	return session, user, nil
}

// SendMagicLink emails a single-use sign-in code. The account is created on
// first use; the emailed link runs through /auth/callback like every other
// sign-in mode.
func (s *AuthService) SendMagicLink(ctx context.Context, emailService *EmailService, email, next string) error {
	if !s.enabled {
		return ErrAuthDisabled
	}
	if err := validation.ValidateEmail(email); err != nil {
		return err
	}

	user, err := s.userRepo.GetUserByEmail(email)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		user, err = s.userRepo.CreateUser(uuid.New().String(), email, "", false)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
	}

	code, err := generateSecureToken(32)
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}
	if err := s.userRepo.CreateAuthCode(code, user.ID, models.CodeTypeMagicLink, time.Now().Add(magicLinkCodeTTL)); err != nil {
		return err
	}

	if emailService != nil && emailService.IsEnabled() {
		if err := emailService.SendMagicLinkEmail(ctx, user.Email, code, next); err != nil {
			return fmt.Errorf("failed to send magic link email: %w", err)
		}
	}

	return nil
}

// RequestPasswordReset creates a recovery code and emails it. A missing
// account is not revealed to the caller.
func (s *AuthService) RequestPasswordReset(ctx context.Context, emailService *EmailService, email string) error {
	if !s.enabled {
		return ErrAuthDisabled
	}

	user, err := s.userRepo.GetUserByEmail(email)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil
	}

	code, err := generateSecureToken(32)
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}
	if err := s.userRepo.CreateAuthCode(code, user.ID, models.CodeTypeRecovery, time.Now().Add(recoveryCodeTTL)); err != nil {
		return err
	}

	if emailService != nil && emailService.IsEnabled() {
		if err := emailService.SendRecoveryEmail(ctx, user.Email, code); err != nil {
			return fmt.Errorf("failed to send recovery email: %w", err)
		}
	}

	return nil
}

// OAuthLogin finds or creates the user for an OAuth identity
func (s *AuthService) OAuthLogin(provider, subject, email string) (*models.User, error) {
	if !s.enabled {
		return nil, ErrAuthDisabled
	}
	if provider == "" || subject == "" {
		return nil, errors.New("missing oauth provider information")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetUserByOAuth(provider, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup oauth user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	existing, err := s.userRepo.GetUserByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		if existing.OAuthProvider != "" && existing.OAuthProvider != provider {
			return nil, ErrEmailTaken
		}
		if err := s.userRepo.LinkOAuthProvider(existing.ID, provider, subject); err != nil {
			return nil, err
		}
		if !existing.EmailConfirmed {
			if err := s.userRepo.MarkEmailConfirmed(existing.ID); err != nil {
				return nil, err
			}
			existing.EmailConfirmed = true
		}
		return existing, nil
	}

	// The provider vouches for the address, so the account starts confirmed
	user, err = s.userRepo.CreateUser(uuid.New().String(), email, "", true)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth user: %w", err)
	}
	if err := s.userRepo.LinkOAuthProvider(user.ID, provider, subject); err != nil {
		return nil, err
	}

	return user, nil
}

// CreateOAuthCode mints the short-lived code that carries an OAuth sign-in
// through /auth/callback
func (s *AuthService) CreateOAuthCode(userID string) (string, error) {
	if !s.enabled {
		return "", ErrAuthDisabled
	}
	code, err := generateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	if err := s.userRepo.CreateAuthCode(code, userID, models.CodeTypeOAuth, time.Now().Add(oauthCodeTTL)); err != nil {
		return "", err
	}
	return code, nil
}

// ExchangeCodeForSession consumes a single-use code and creates a session.
// A code that is missing, expired, already spent, or concurrently consumed
// all collapse to ErrCodeInvalid.
func (s *AuthService) ExchangeCodeForSession(code string) (*models.Session, *models.User, error) {
	if !s.enabled {
		return nil, nil, ErrAuthDisabled
	}

	authCode, err := s.userRepo.GetAuthCode(code)
	if err != nil {
		return nil, nil, err
	}
	if authCode == nil || authCode.Used || authCode.IsExpired() {
		return nil, nil, ErrCodeInvalid
	}

	affected, err := s.userRepo.MarkAuthCodeUsed(code)
	if err != nil {
		return nil, nil, err
	}
	if affected == 0 {
		// Someone else exchanged the same code first
		return nil, nil, ErrCodeInvalid
	}

	// Completing an emailed link proves control of the address
	if authCode.CodeType == models.CodeTypeMagicLink || authCode.CodeType == models.CodeTypeRecovery {
		if err := s.userRepo.MarkEmailConfirmed(authCode.UserID); err != nil {
			return nil, nil, err
		}
	}

	user, err := s.userRepo.GetUserByID(authCode.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrCodeInvalid
	}

	session, err := s.createSession(user.ID)
	if err != nil {
		return nil, nil, err
	}

	return session, user, nil
}

// ValidateSession checks a session and returns the associated user. When
// the session has passed half its lifetime its expiry is pushed forward;
// callers must re-set the cookie from the returned session so the refresh
// reaches the browser.
func (s *AuthService) ValidateSession(sessionID string) (*models.User, *models.Session, error) {
	if !s.enabled {
		return nil, nil, ErrAuthDisabled
	}

	session, err := s.userRepo.GetSession(sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, nil, ErrSessionNotFound
	}

	if session.IsExpired() {
		_ = s.userRepo.DeleteSession(sessionID)
		return nil, nil, ErrSessionExpired
	}

	if time.Until(session.ExpiresAt) < s.sessionDuration/2 {
		refreshed := time.Now().Add(s.sessionDuration)
		if err := s.userRepo.ExtendSession(sessionID, refreshed); err == nil {
			session.ExpiresAt = refreshed
		}
	}

	user, err := s.userRepo.GetUserByID(session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, nil, ErrSessionNotFound
	}

	return user, session, nil
}

// UpdatePassword sets a new password for the user
func (s *AuthService) UpdatePassword(userID, newPassword string) error {
	if !s.enabled {
		return ErrAuthDisabled
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return err
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.userRepo.UpdatePassword(userID, passwordHash)
}

// SignOut invalidates a session
func (s *AuthService) SignOut(sessionID string) error {
	if err := s.userRepo.DeleteSession(sessionID); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// CleanupExpired removes expired sessions and spent auth codes
func (s *AuthService) CleanupExpired() error {
	if err := s.userRepo.DeleteExpiredSessions(); err != nil {
		return fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	if err := s.userRepo.DeleteExpiredAuthCodes(); err != nil {
		return fmt.Errorf("failed to cleanup auth codes: %w", err)
	}
	return nil
}

func (s *AuthService) createSession(userID string) (*models.Session, error) {
	sessionID := security.GenerateSessionID()
	expiresAt := time.Now().Add(s.sessionDuration)

	session, err := s.userRepo.CreateSession(sessionID, userID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// generateSecureToken generates a cryptographically secure random token
func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
