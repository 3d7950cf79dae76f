package repository

import (
	"database/sql"
	"fmt"
	"time"

	"cadence/internal/database"
	"cadence/internal/models"
)

// UserRepository handles database operations for users, sessions, and
// single-use auth codes
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a new user into the database
func (r *UserRepository) CreateUser(id, email, passwordHash string, emailConfirmed bool) (*models.User, error) {
	query := `
		INSERT INTO users (id, email, password_hash, email_confirmed)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, id, email, passwordHash, emailConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	user := &models.User{
		ID:             id,
		Email:          email,
		PasswordHash:   passwordHash,
		EmailConfirmed: emailConfirmed,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	return user, nil
}

// GetUserByEmail retrieves a user by email address
func (r *UserRepository) GetUserByEmail(email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, oauth_provider, oauth_subject, email_confirmed, created_at, updated_at
		FROM users
		WHERE email = ?
	`
	return r.scanUser(r.db.QueryRow(query, email))
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(id string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, oauth_provider, oauth_subject, email_confirmed, created_at, updated_at
		FROM users
		WHERE id = ?
	`
	return r.scanUser(r.db.QueryRow(query, id))
}

// GetUserByOAuth retrieves a user by OAuth provider and subject
func (r *UserRepository) GetUserByOAuth(provider, subject string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, oauth_provider, oauth_subject, email_confirmed, created_at, updated_at
		FROM users
		WHERE oauth_provider = ? AND oauth_subject = ?
	`
	return r.scanUser(r.db.QueryRow(query, provider, subject))
}

func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.OAuthProvider,
		&user.OAuthSubject,
		&user.EmailConfirmed,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// LinkOAuthProvider attaches an OAuth identity to an existing user
func (r *UserRepository) LinkOAuthProvider(userID, provider, subject string) error {
	query := "UPDATE users SET oauth_provider = ?, oauth_subject = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	_, err := r.db.Exec(query, provider, subject, userID)
	if err != nil {
		return fmt.Errorf("failed to link oauth provider: %w", err)
	}
	return nil
}

// UpdatePassword updates a user's password hash
func (r *UserRepository) UpdatePassword(userID, passwordHash string) error {
	query := "UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	_, err := r.db.Exec(query, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// MarkEmailConfirmed marks a user's email address as confirmed
func (r *UserRepository) MarkEmailConfirmed(userID string) error {
	query := "UPDATE users SET email_confirmed = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	_, err := r.db.Exec(query, true, userID)
	if err != nil {
		return fmt.Errorf("failed to mark email confirmed: %w", err)
	}
	return nil
}

// CreateSession creates a new session for a user
func (r *UserRepository) CreateSession(sessionID, userID string, expiresAt time.Time) (*models.Session, error) {
	query := `
		INSERT INTO sessions (id, user_id, expires_at)
		VALUES (?, ?, ?)
	`
	_, err := r.db.Exec(query, sessionID, userID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	session := &models.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}

	return session, nil
}

// GetSession retrieves a session by ID
func (r *UserRepository) GetSession(sessionID string) (*models.Session, error) {
	query := `
		SELECT id, user_id, expires_at, created_at
		FROM sessions
		WHERE id = ?
	`
	session := &models.Session{}
	err := r.db.QueryRow(query, sessionID).Scan(
		&session.ID,
		&session.UserID,
		&session.ExpiresAt,
		&session.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// ExtendSession pushes a session's expiry forward (sliding refresh)
func (r *UserRepository) ExtendSession(sessionID string, expiresAt time.Time) error {
	query := "UPDATE sessions SET expires_at = ? WHERE id = ?"
	_, err := r.db.Exec(query, expiresAt, sessionID)
	if err != nil {
		return fmt.Errorf("failed to extend session: %w", err)
	}
	return nil
}

// DeleteSession removes a session
func (r *UserRepository) DeleteSession(sessionID string) error {
	query := "DELETE FROM sessions WHERE id = ?"
	_, err := r.db.Exec(query, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all expired sessions
func (r *UserRepository) DeleteExpiredSessions() error {
	query := "DELETE FROM sessions WHERE expires_at < ?"
	_, err := r.db.Exec(query, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return nil
}

// CreateAuthCode stores a single-use auth code
func (r *UserRepository) CreateAuthCode(code, userID, codeType string, expiresAt time.Time) error {
	query := `
		INSERT INTO auth_codes (code, user_id, code_type, expires_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, code, userID, codeType, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to create auth code: %w", err)
	}
	return nil
}

// GetAuthCode retrieves an auth code
func (r *UserRepository) GetAuthCode(code string) (*models.AuthCode, error) {
	query := `
		SELECT code, user_id, code_type, expires_at, used, created_at
		FROM auth_codes
		WHERE code = ?
	`
	authCode := &models.AuthCode{}
	err := r.db.QueryRow(query, code).Scan(
		&authCode.Code,
		&authCode.UserID,
		&authCode.CodeType,
		&authCode.ExpiresAt,
		&authCode.Used,
		&authCode.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auth code: %w", err)
	}

	return authCode, nil
}

// MarkAuthCodeUsed consumes an auth code. Returns the number of rows
// updated so callers can detect a concurrent consumer.
func (r *UserRepository) MarkAuthCodeUsed(code string) (int64, error) {
	query := "UPDATE auth_codes SET used = ? WHERE code = ? AND used = ?"
	result, err := r.db.Exec(query, true, code, false)
	if err != nil {
		return 0, fmt.Errorf("failed to mark auth code used: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}

// DeleteExpiredAuthCodes removes expired and spent auth codes
func (r *UserRepository) DeleteExpiredAuthCodes() error {
	query := "DELETE FROM auth_codes WHERE expires_at < ? OR used = ?"
	_, err := r.db.Exec(query, time.Now(), true)
	if err != nil {
		return fmt.Errorf("failed to delete expired auth codes: %w", err)
	}
	return nil
}
