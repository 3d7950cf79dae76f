package models

import "time"

// Profile is the application-side record for a user, created lazily on the
// first authenticated request. Invariant: Profile.ID == User.ID.
type Profile struct {
	ID        string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Family is the tenant boundary: every child and activity row belongs to
// exactly one family.
type Family struct {
	ID             string    `json:"id"`
	OwnerProfileID string    `json:"ownerProfileId"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FamilyMember links a profile to a family with a role ('owner' or
// 'member'). The schema enforces one membership per user; the oldest
// membership is the active tenant.
type FamilyMember struct {
	ID        string
	FamilyID  string
	UserID    string
	Role      string
	CreatedAt time.Time
}
