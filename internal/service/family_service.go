package service

import (
	"errors"
	"strings"
	"time"

	"cadence/internal/models"
	"cadence/internal/repository"
	"cadence/internal/validation"
)

// ErrChildNotFound covers both a missing child and a child belonging to
// another family; callers cannot tell the cases apart, so a cross-tenant
// probe learns nothing.
var ErrChildNotFound = errors.New("child not found in your family")

// DefaultRecentActivityLimit bounds the recent-activity feed
const DefaultRecentActivityLimit = 20

// FamilyService implements the tenant-scoped operations on children and
// activities. Every method resolves the caller's family first and passes
// that id to the repositories; client-supplied family ids never exist in
// this API.
type FamilyService struct {
	bootstrap    *BootstrapService
	childRepo    *repository.ChildRepository
	activityRepo *repository.ActivityRepository
}

// NewFamilyService creates a new family service
func NewFamilyService(bootstrap *BootstrapService, childRepo *repository.ChildRepository, activityRepo *repository.ActivityRepository) *FamilyService {
	return &FamilyService{
		bootstrap:    bootstrap,
		childRepo:    childRepo,
		activityRepo: activityRepo,
	}
}

// CreateChildInput carries the client-controllable child fields
type CreateChildInput struct {
	Name      string
	BirthYear *int
}

// CreateChild validates and creates a child in the caller's family
func (s *FamilyService) CreateChild(userID string, input CreateChildInput) (*models.Child, error) {
	familyID, err := s.bootstrap.GetCurrentFamilyID(userID)
	if err != nil {
		return nil, err
	}

	if err := validation.ValidateChildName(input.Name); err != nil {
		return nil, err
	}
	if err := validation.ValidateBirthYear(input.BirthYear); err != nil {
		return nil, err
	}

	return s.childRepo.CreateChild(familyID, strings.TrimSpace(input.Name), input.BirthYear)
}

// ListChildren returns the children of the caller's family, oldest first
func (s *FamilyService) ListChildren(userID string) ([]models.Child, error) {
	familyID, err := s.bootstrap.GetCurrentFamilyID(userID)
	if err != nil {
		return nil, err
	}
	return s.childRepo.ListChildren(familyID)
}

// AssertChildInCurrentFamily verifies the child belongs to the caller's
// family. This is the authorization check every operation touching a child
// id must pass before using it.
func (s *FamilyService) AssertChildInCurrentFamily(userID, childID string) (*models.Child, error) {
	familyID, err := s.bootstrap.GetCurrentFamilyID(userID)
	if err != nil {
		return nil, err
	}

	child, err := s.childRepo.GetChildInFamily(familyID, childID)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, ErrChildNotFound
	}
	return child, nil
}

// CreateActivityInput carries the client-controllable activity fields
type CreateActivityInput struct {
	ChildID         string
	Subject         string
	OccurredAt      time.Time
	DurationMinutes *int
	Notes           *string
}

// CreateActivity validates input, verifies the child reference resolves
// within the caller's family, then writes the activity under that family.
func (s *FamilyService) CreateActivity(userID string, input CreateActivityInput) (*models.Activity, error) {
	familyID, err := s.bootstrap.GetCurrentFamilyID(userID)
	if err != nil {
		return nil, err
	}

	if err := validation.ValidateSubject(input.Subject); err != nil {
		return nil, err
	}
	if err := validation.ValidateDurationMinutes(input.DurationMinutes); err != nil {
		return nil, err
	}
	notes, err := validation.NormalizeNotes(input.Notes)
	if err != nil {
		return nil, err
	}

	child, err := s.childRepo.GetChildInFamily(familyID, input.ChildID)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, ErrChildNotFound
	}

	return s.activityRepo.CreateActivity(familyID, child.ID, strings.TrimSpace(input.Subject), input.OccurredAt, input.DurationMinutes, notes)
}

// ListRecentActivities returns the newest activities for one child in the
// caller's family
func (s *FamilyService) ListRecentActivities(userID, childID string, limit int) ([]models.Activity, error) {
	familyID, err := s.bootstrap.GetCurrentFamilyID(userID)
	if err != nil {
		return nil, err
	}

	child, err := s.childRepo.GetChildInFamily(familyID, childID)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, ErrChildNotFound
	}

	if limit <= 0 {
		limit = DefaultRecentActivityLimit
	}
	return s.activityRepo.ListRecentActivities(familyID, child.ID, limit)
}
