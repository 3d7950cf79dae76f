package service

import (
	"errors"
	"fmt"

	"cadence/internal/models"
	"cadence/internal/repository"
)

// ErrNoFamily is returned when a user has no resolvable family membership
var ErrNoFamily = errors.New("no family found for the current user")

// BootstrapService resolves the caller's tenant: every authenticated user
// maps to exactly one family, created on first login if necessary.
type BootstrapService struct {
	familyRepo *repository.FamilyRepository
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(familyRepo *repository.FamilyRepository) *BootstrapService {
	return &BootstrapService{familyRepo: familyRepo}
}

// EnsureBootstrap guarantees the user has a profile row and a family,
// returning the family id. Idempotent and safe under concurrent first
// login: the unique membership constraint turns the check-then-act race
// into a detectable conflict, which is resolved by re-reading the winner's
// membership.
func (s *BootstrapService) EnsureBootstrap(userID, email string) (string, error) {
	if email == "" {
		// Some providers omit the address; keep the profile row deterministic
		email = userID + "@local.invalid"
	}
	if err := s.familyRepo.UpsertProfile(userID, email); err != nil {
		return "", err
	}

	familyID, err := s.familyRepo.GetFamilyIDForUser(userID)
	if err != nil {
		return "", err
	}
	if familyID != "" {
		return familyID, nil
	}

	familyID, err = s.familyRepo.CreateFamilyWithOwner(userID)
	if err != nil {
		if s.familyRepo.IsUniqueViolation(err) {
			// A concurrent request bootstrapped this user first
			familyID, lookupErr := s.familyRepo.GetFamilyIDForUser(userID)
			if lookupErr != nil {
				return "", lookupErr
			}
			if familyID == "" {
				// The conflicting membership vanished between the violation
				// and the re-read; partial state must not be papered over
				return "", fmt.Errorf("bootstrap conflict but no membership found for user %s: %w", userID, err)
			}
			return familyID, nil
		}
		return "", err
	}

	return familyID, nil
}

// GetCurrentFamily loads the user's active family row with its members
func (s *BootstrapService) GetCurrentFamily(userID string) (*models.Family, []models.FamilyMember, error) {
	familyID, err := s.GetCurrentFamilyID(userID)
	if err != nil {
		return nil, nil, err
	}

	family, err := s.familyRepo.GetFamilyByID(familyID)
	if err != nil {
		return nil, nil, err
	}
	if family == nil {
		return nil, nil, ErrNoFamily
	}

	members, err := s.familyRepo.GetFamilyMembers(familyID)
	if err != nil {
		return nil, nil, err
	}

	return family, members, nil
}

// GetCurrentFamilyID resolves the user's active family (oldest membership)
func (s *BootstrapService) GetCurrentFamilyID(userID string) (string, error) {
	familyID, err := s.familyRepo.GetFamilyIDForUser(userID)
	if err != nil {
		return "", err
	}
	if familyID == "" {
		return "", ErrNoFamily
	}
	return familyID, nil
}
