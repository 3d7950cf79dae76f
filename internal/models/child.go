package models

import "time"

// Child is a child profile within a family
type Child struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"familyId"`
	Name      string    `json:"name"`
	BirthYear *int      `json:"birthYear"`
	CreatedAt time.Time `json:"createdAt"`
}
