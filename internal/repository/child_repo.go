package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cadence/internal/database"
	"cadence/internal/models"
)

// ChildRepository handles database operations for children. Every query is
// keyed by family id; there is no unscoped fetch path.
type ChildRepository struct {
	db *database.DB
}

// NewChildRepository creates a new child repository
func NewChildRepository(db *database.DB) *ChildRepository {
	return &ChildRepository{db: db}
}

// CreateChild creates a child profile inside the given family. The family
// id always comes from the caller's resolved scope, never from client input.
func (r *ChildRepository) CreateChild(familyID, name string, birthYear *int) (*models.Child, error) {
	childID := uuid.New().String()
	query := "INSERT INTO children (id, family_id, name, birth_year) VALUES (?, ?, ?, ?)"
	_, err := r.db.Exec(query, childID, familyID, name, birthYear)
	if err != nil {
		return nil, fmt.Errorf("failed to create child: %w", err)
	}

	child := &models.Child{
		ID:        childID,
		FamilyID:  familyID,
		Name:      name,
		BirthYear: birthYear,
		CreatedAt: time.Now(),
	}

	return child, nil
}

// GetChildInFamily retrieves a child filtered by BOTH family and child id.
// Zero rows means the child does not exist or belongs to another family;
// the two cases are indistinguishable on purpose.
func (r *ChildRepository) GetChildInFamily(familyID, childID string) (*models.Child, error) {
	query := `
		SELECT id, family_id, name, birth_year, created_at
		FROM children
		WHERE family_id = ? AND id = ?
	`
	child := &models.Child{}
	err := r.db.QueryRow(query, familyID, childID).Scan(
		&child.ID,
		&child.FamilyID,
		&child.Name,
		&child.BirthYear,
		&child.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}

	return child, nil
}

// ListChildren retrieves all children in a family, oldest first
func (r *ChildRepository) ListChildren(familyID string) ([]models.Child, error) {
	query := `
		SELECT id, family_id, name, birth_year, created_at
		FROM children
		WHERE family_id = ?
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	var children []models.Child
	for rows.Next() {
		var child models.Child
		if err := rows.Scan(
			&child.ID,
			&child.FamilyID,
			&child.Name,
			&child.BirthYear,
			&child.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		children = append(children, child)
	}

	return children, rows.Err()
}
