package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cadence/internal/database"
	"cadence/internal/models"
	"cadence/internal/repository"
	"cadence/internal/validation"
)

type testEnv struct {
	db        *database.DB
	auth      *AuthService
	bootstrap *BootstrapService
	family    *FamilyService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dbPath := filepath.Join(t.TempDir(), "cadence_test.db")
	db, err := database.Initialize(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(filepath.Join("..", "..", "migrations")); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	childRepo := repository.NewChildRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	bootstrap := NewBootstrapService(familyRepo)

	return &testEnv{
		db:        db,
		auth:      NewAuthService(userRepo, 24*time.Hour, true),
		bootstrap: bootstrap,
		family:    NewFamilyService(bootstrap, childRepo, activityRepo),
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.bootstrap.EnsureBootstrap("user-1", "parent@example.com")
	if err != nil {
		t.Fatalf("First bootstrap failed: %v", err)
	}
	if first == "" {
		t.Fatal("Expected a family id")
	}

	second, err := env.bootstrap.EnsureBootstrap("user-1", "parent@example.com")
	if err != nil {
		t.Fatalf("Second bootstrap failed: %v", err)
	}
	if second != first {
		t.Errorf("Expected same family on repeat bootstrap, got %s then %s", first, second)
	}

	var count int
	if err := env.db.QueryRow("SELECT COUNT(*) FROM families").Scan(&count); err != nil {
		t.Fatalf("Failed to count families: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 family, got %d", count)
	}

	family, members, err := env.bootstrap.GetCurrentFamily("user-1")
	if err != nil {
		t.Fatalf("GetCurrentFamily failed: %v", err)
	}
	if family.ID != first {
		t.Errorf("Expected family %s, got %s", first, family.ID)
	}
	if len(members) != 1 || members[0].Role != "owner" {
		t.Errorf("Expected a single owner membership, got %+v", members)
	}
}

func TestBootstrapConcurrentFirstLogin(t *testing.T) {
	env := newTestEnv(t)

	const workers = 8
	results := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.bootstrap.EnsureBootstrap("user-1", "parent@example.com")
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("Worker %d failed: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Fatalf("Workers resolved different families: %s vs %s", results[0], results[i])
		}
	}

	var count int
	if err := env.db.QueryRow("SELECT COUNT(*) FROM family_members WHERE user_id = ?", "user-1").Scan(&count); err != nil {
		t.Fatalf("Failed to count memberships: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 membership, got %d", count)
	}
}

func TestChildCreateAndListRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.bootstrap.EnsureBootstrap("user-1", "parent@example.com"); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	birthYear := 2018
	created, err := env.family.CreateChild("user-1", CreateChildInput{Name: "  Ada  ", BirthYear: &birthYear})
	if err != nil {
		t.Fatalf("CreateChild failed: %v", err)
	}
	if created.Name != "Ada" {
		t.Errorf("Expected trimmed name Ada, got %q", created.Name)
	}

	children, err := env.family.ListChildren("user-1")
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(children) != 1 || children[0].ID != created.ID {
		t.Fatalf("Expected the created child back, got %+v", children)
	}
	if children[0].BirthYear == nil || *children[0].BirthYear != 2018 {
		t.Errorf("Expected birth year 2018, got %v", children[0].BirthYear)
	}
}

func TestValidationFailureWritesNothing(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.bootstrap.EnsureBootstrap("user-1", "parent@example.com"); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	badYear := 1492
	_, err := env.family.CreateChild("user-1", CreateChildInput{Name: "Ada", BirthYear: &badYear})
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if !validation.IsValidationError(err) {
		t.Fatalf("Expected a validation error, got %v", err)
	}

	var count int
	if err := env.db.QueryRow("SELECT COUNT(*) FROM children").Scan(&count); err != nil {
		t.Fatalf("Failed to count children: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no child rows after validation failure, got %d", count)
	}
}

func TestCrossFamilyChildIsRejected(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.bootstrap.EnsureBootstrap("user-a", "a@example.com"); err != nil {
		t.Fatalf("Bootstrap a failed: %v", err)
	}
	if _, err := env.bootstrap.EnsureBootstrap("user-b", "b@example.com"); err != nil {
		t.Fatalf("Bootstrap b failed: %v", err)
	}

	theirChild, err := env.family.CreateChild("user-b", CreateChildInput{Name: "Theirs"})
	if err != nil {
		t.Fatalf("CreateChild failed: %v", err)
	}

	_, err = env.family.CreateActivity("user-a", CreateActivityInput{
		ChildID:    theirChild.ID,
		Subject:    "Reading",
		OccurredAt: time.Now(),
	})
	if !errors.Is(err, ErrChildNotFound) {
		t.Fatalf("Expected ErrChildNotFound for a foreign child, got %v", err)
	}

	// The rejection must leave no partial row behind
	var count int
	if err := env.db.QueryRow("SELECT COUNT(*) FROM activities").Scan(&count); err != nil {
		t.Fatalf("Failed to count activities: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no activity rows, got %d", count)
	}

	if _, err := env.family.AssertChildInCurrentFamily("user-a", theirChild.ID); !errors.Is(err, ErrChildNotFound) {
		t.Errorf("Expected AssertChildInCurrentFamily to reject a foreign child, got %v", err)
	}

	mine, err := env.family.ListChildren("user-a")
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(mine) != 0 {
		t.Errorf("Expected user-a to see no children, got %d", len(mine))
	}
}

func TestActivityRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.bootstrap.EnsureBootstrap("user-1", "parent@example.com"); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	child, err := env.family.CreateChild("user-1", CreateChildInput{Name: "Ada"})
	if err != nil {
		t.Fatalf("CreateChild failed: %v", err)
	}

	duration := 30
	notes := "  practiced fractions  "
	activity, err := env.family.CreateActivity("user-1", CreateActivityInput{
		ChildID:         child.ID,
		Subject:         "Math",
		OccurredAt:      time.Now().Add(-time.Hour),
		DurationMinutes: &duration,
		Notes:           &notes,
	})
	if err != nil {
		t.Fatalf("CreateActivity failed: %v", err)
	}
	if activity.Notes == nil || *activity.Notes != "practiced fractions" {
		t.Errorf("Expected trimmed notes, got %v", activity.Notes)
	}

	activities, err := env.family.ListRecentActivities("user-1", child.ID, DefaultRecentActivityLimit)
	if err != nil {
		t.Fatalf("ListRecentActivities failed: %v", err)
	}
	if len(activities) != 1 || activities[0].ID != activity.ID {
		t.Fatalf("Expected the created activity back, got %+v", activities)
	}
}

func TestAuthCodeIsSingleUse(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.auth.OAuthLogin("google", "sub-123", "parent@example.com")
	if err != nil {
		t.Fatalf("OAuthLogin failed: %v", err)
	}

	code, err := env.auth.CreateOAuthCode(user.ID)
	if err != nil {
		t.Fatalf("CreateOAuthCode failed: %v", err)
	}

	session, gotUser, err := env.auth.ExchangeCodeForSession(code)
	if err != nil {
		t.Fatalf("First exchange failed: %v", err)
	}
	if gotUser.ID != user.ID {
		t.Errorf("Exchange returned wrong user: %s", gotUser.ID)
	}
	if session.IsExpired() {
		t.Error("Fresh session should not be expired")
	}

	if _, _, err := env.auth.ExchangeCodeForSession(code); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("Expected second exchange to fail with ErrCodeInvalid, got %v", err)
	}
}

func TestMagicLinkCreatesAndConfirmsUser(t *testing.T) {
	env := newTestEnv(t)

	if err := env.auth.SendMagicLink(context.Background(), nil, "new@example.com", "/log"); err != nil {
		t.Fatalf("SendMagicLink failed: %v", err)
	}

	var code string
	if err := env.db.QueryRow("SELECT code FROM auth_codes WHERE code_type = ?", models.CodeTypeMagicLink).Scan(&code); err != nil {
		t.Fatalf("Expected a stored magic link code: %v", err)
	}

	_, user, err := env.auth.ExchangeCodeForSession(code)
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if user.Email != "new@example.com" {
		t.Errorf("Expected user for new@example.com, got %s", user.Email)
	}
	if !user.EmailConfirmed {
		t.Error("Completing a magic link should confirm the email")
	}
}

func TestSessionValidationAndSignOut(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.auth.OAuthLogin("google", "sub-1", "parent@example.com")
	if err != nil {
		t.Fatalf("OAuthLogin failed: %v", err)
	}
	code, err := env.auth.CreateOAuthCode(user.ID)
	if err != nil {
		t.Fatalf("CreateOAuthCode failed: %v", err)
	}
	session, _, err := env.auth.ExchangeCodeForSession(code)
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}

	gotUser, gotSession, err := env.auth.ValidateSession(session.ID)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if gotUser.ID != user.ID || gotSession.ID != session.ID {
		t.Fatal("ValidateSession returned the wrong user or session")
	}

	if err := env.auth.SignOut(session.ID); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	if _, _, err := env.auth.ValidateSession(session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Expected ErrSessionNotFound after sign-out, got %v", err)
	}
}

func TestDisabledAuthFailsClosedAtServiceLayer(t *testing.T) {
	env := newTestEnv(t)

	disabled := NewAuthService(repository.NewUserRepository(env.db), 24*time.Hour, false)

	if _, _, err := disabled.SignInWithPassword("a@example.com", "pw"); !errors.Is(err, ErrAuthDisabled) {
		t.Errorf("Expected ErrAuthDisabled, got %v", err)
	}
	if _, _, err := disabled.ExchangeCodeForSession("code"); !errors.Is(err, ErrAuthDisabled) {
		t.Errorf("Expected ErrAuthDisabled, got %v", err)
	}
}
