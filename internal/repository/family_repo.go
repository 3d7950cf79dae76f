package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cadence/internal/database"
	"cadence/internal/models"
)

// DefaultFamilyName is used for families created during first-login bootstrap
const DefaultFamilyName = "My Family"

// FamilyRepository handles database operations for profiles, families, and
// family memberships
type FamilyRepository struct {
	db *database.DB
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db *database.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// UpsertProfile inserts or refreshes the profile row keyed by the user id.
// Idempotent: repeated calls never duplicate.
func (r *FamilyRepository) UpsertProfile(userID, email string) error {
	_, err := r.db.Exec(r.db.Dialect.UpsertProfileQuery(), userID, email)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// GetFamilyIDForUser returns the family id of the user's oldest membership,
// or "" when the user has no membership yet.
func (r *FamilyRepository) GetFamilyIDForUser(userID string) (string, error) {
	query := `
		SELECT family_id
		FROM family_members
		WHERE user_id = ?
		ORDER BY created_at ASC
		LIMIT 1
	`
	var familyID string
	err := r.db.QueryRow(query, userID).Scan(&familyID)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get family membership: %w", err)
	}

	return familyID, nil
}

// CreateFamilyWithOwner creates a family and its owner membership in one
// transaction. Either both rows exist afterwards or neither does; a family
// without a membership can never be observed.
func (r *FamilyRepository) CreateFamilyWithOwner(userID string) (string, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	familyID := uuid.New().String()
	query := "INSERT INTO families (id, owner_profile_id, name) VALUES (?, ?, ?)"
	if _, err := tx.Exec(query, familyID, userID, DefaultFamilyName); err != nil {
		return "", fmt.Errorf("failed to create family: %w", err)
	}

	query = "INSERT INTO family_members (id, family_id, user_id, role) VALUES (?, ?, ?, 'owner')"
	if _, err := tx.Exec(query, uuid.New().String(), familyID, userID); err != nil {
		return "", fmt.Errorf("failed to add family member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return familyID, nil
}

// IsUniqueViolation reports whether err stems from the unique membership
// constraint (a concurrent bootstrap for the same user)
func (r *FamilyRepository) IsUniqueViolation(err error) bool {
	return r.db.IsUniqueViolation(err)
}

// GetFamilyByID retrieves a family by ID
func (r *FamilyRepository) GetFamilyByID(familyID string) (*models.Family, error) {
	query := "SELECT id, owner_profile_id, name, created_at FROM families WHERE id = ?"
	family := &models.Family{}
	err := r.db.QueryRow(query, familyID).Scan(
		&family.ID,
		&family.OwnerProfileID,
		&family.Name,
		&family.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}

	return family, nil
}

// GetFamilyMembers retrieves all members of a family, oldest first
func (r *FamilyRepository) GetFamilyMembers(familyID string) ([]models.FamilyMember, error) {
	query := `
		SELECT id, family_id, user_id, role, created_at
		FROM family_members
		WHERE family_id = ?
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query family members: %w", err)
	}
	defer rows.Close()

	var members []models.FamilyMember
	for rows.Next() {
		var member models.FamilyMember
		var createdAt time.Time
		if err := rows.Scan(&member.ID, &member.FamilyID, &member.UserID, &member.Role, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan family member: %w", err)
		}
		member.CreatedAt = createdAt
		members = append(members, member)
	}

	return members, rows.Err()
}
