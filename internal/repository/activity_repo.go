package repository

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"cadence/internal/database"
	"cadence/internal/models"
)

// ActivityRepository handles database operations for activities. Like the
// child repository, every query carries the family id filter.
type ActivityRepository struct {
	db *database.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// CreateActivity inserts an activity. Callers must have verified that the
// child belongs to familyID before calling.
func (r *ActivityRepository) CreateActivity(familyID, childID, subject string, occurredAt time.Time, durationMinutes *int, notes *string) (*models.Activity, error) {
	activityID := uuid.New().String()
	query := `
		INSERT INTO activities (id, family_id, child_id, subject, occurred_at, duration_minutes, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, activityID, familyID, childID, subject, occurredAt, durationMinutes, notes)
	if err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}

	activity := &models.Activity{
		ID:              activityID,
		FamilyID:        familyID,
		ChildID:         childID,
		Subject:         subject,
		OccurredAt:      occurredAt,
		DurationMinutes: durationMinutes,
		Notes:           notes,
		CreatedAt:       time.Now(),
	}

	return activity, nil
}

// ListRecentActivities retrieves the most recent activities for a child
// within a family, newest first
func (r *ActivityRepository) ListRecentActivities(familyID, childID string, limit int) ([]models.Activity, error) {
	query := `
		SELECT id, family_id, child_id, subject, occurred_at, duration_minutes, notes, created_at
		FROM activities
		WHERE family_id = ? AND child_id = ?
		ORDER BY occurred_at DESC
		LIMIT ?
	`
	rows, err := r.db.Query(query, familyID, childID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []models.Activity
	for rows.Next() {
		var activity models.Activity
		if err := rows.Scan(
			&activity.ID,
			&activity.FamilyID,
			&activity.ChildID,
			&activity.Subject,
			&activity.OccurredAt,
			&activity.DurationMinutes,
			&activity.Notes,
			&activity.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, activity)
	}

	return activities, rows.Err()
}
