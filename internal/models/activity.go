package models

import "time"

// Activity is a logged learning activity. It belongs to one family and one
// child, and the referenced child must belong to the same family.
type Activity struct {
	ID              string    `json:"id"`
	FamilyID        string    `json:"familyId"`
	ChildID         string    `json:"childId"`
	Subject         string    `json:"subject"`
	OccurredAt      time.Time `json:"occurredAt"`
	DurationMinutes *int      `json:"durationMinutes"`
	Notes           *string   `json:"notes"`
	CreatedAt       time.Time `json:"createdAt"`
}
