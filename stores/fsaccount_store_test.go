package stores_test

import (
	"errors"
	"testing"
	"time"

	la "github.com/panyam/localauth"
	"github.com/panyam/localauth/stores"
)

func createAccount(t *testing.T, store *stores.FSAccountStore, id, email string) *la.Account {
	t.Helper()
	now := time.Now()
	acct := &la.Account{
		ID:           id,
		Name:         "Test User",
		Email:        email,
		PasswordHash: "fake-hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.Create(acct); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return acct
}

func TestCreateAndLookup(t *testing.T) {
	store := stores.NewFSAccountStore(t.TempDir())
	createAccount(t, store, "acct-1", "a@example.com")

	byID, err := store.ById("acct-1", false)
	if err != nil {
		t.Fatalf("ById failed: %v", err)
	}
	if byID.Email != "a@example.com" {
		t.Errorf("Unexpected email: %s", byID.Email)
	}
	if byID.PasswordHash != "" {
		t.Error("Sanitized read should not expose the password hash")
	}

	byEmail, err := store.ByEmail("a@example.com", true)
	if err != nil {
		t.Fatalf("ByEmail failed: %v", err)
	}
	if byEmail.ID != "acct-1" {
		t.Errorf("Unexpected id: %s", byEmail.ID)
	}
	if byEmail.PasswordHash != "fake-hash" {
		t.Error("Sensitive read should expose the password hash")
	}

	if _, err := store.ById("missing", false); !errors.Is(err, la.ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got: %v", err)
	}
}

func TestDuplicateEmailRejected(t *testing.T) {
	store := stores.NewFSAccountStore(t.TempDir())
	createAccount(t, store, "acct-1", "dup@example.com")

	err := store.Create(&la.Account{ID: "acct-2", Email: "dup@example.com"})
	if !errors.Is(err, la.ErrDuplicateAccount) {
		t.Errorf("Expected ErrDuplicateAccount, got: %v", err)
	}

	// The losing create must not clobber the winner's index
	acct, err := store.ByEmail("dup@example.com", false)
	if err != nil {
		t.Fatalf("ByEmail failed: %v", err)
	}
	if acct.ID != "acct-1" {
		t.Errorf("Expected acct-1 to still own the email, got %s", acct.ID)
	}
}

func TestUpdateMovesEmailIndex(t *testing.T) {
	store := stores.NewFSAccountStore(t.TempDir())
	createAccount(t, store, "acct-1", "old@example.com")
	createAccount(t, store, "acct-2", "taken@example.com")

	// Collision with another account's email fails
	taken := "taken@example.com"
	if _, err := store.Update("acct-1", la.AccountUpdates{Email: &taken}); !errors.Is(err, la.ErrDuplicateAccount) {
		t.Errorf("Expected ErrDuplicateAccount, got: %v", err)
	}

	// A free email moves the index
	fresh := "new@example.com"
	updated, err := store.Update("acct-1", la.AccountUpdates{Email: &fresh})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Email != "new@example.com" {
		t.Errorf("Unexpected email: %s", updated.Email)
	}
	if _, err := store.ByEmail("old@example.com", false); !errors.Is(err, la.ErrAccountNotFound) {
		t.Errorf("Old email should be free, got: %v", err)
	}
	if acct, err := store.ByEmail("new@example.com", false); err != nil || acct.ID != "acct-1" {
		t.Errorf("New email should resolve to acct-1, got %v / %v", acct, err)
	}
}

func TestDeleteFreesEmail(t *testing.T) {
	store := stores.NewFSAccountStore(t.TempDir())
	createAccount(t, store, "acct-1", "gone@example.com")

	if err := store.Delete("acct-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.ById("acct-1", false); !errors.Is(err, la.ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got: %v", err)
	}

	// Email is immediately reusable
	createAccount(t, store, "acct-2", "gone@example.com")
}

func TestConsumeResetToken(t *testing.T) {
	store := stores.NewFSAccountStore(t.TempDir())
	createAccount(t, store, "acct-1", "reset@example.com")

	digest := la.HashResetSecret("some-secret")
	if err := store.SetResetToken("acct-1", digest, time.Now().Add(15*time.Minute)); err != nil {
		t.Fatalf("SetResetToken failed: %v", err)
	}

	acct, err := store.ConsumeResetToken(digest, time.Now(), "new-hash")
	if err != nil {
		t.Fatalf("ConsumeResetToken failed: %v", err)
	}
	if acct.ID != "acct-1" {
		t.Errorf("Unexpected account: %s", acct.ID)
	}

	// Consumed means gone
	if _, err := store.ConsumeResetToken(digest, time.Now(), "another-hash"); !errors.Is(err, la.ErrInvalidOrExpiredToken) {
		t.Errorf("Expected ErrInvalidOrExpiredToken, got: %v", err)
	}

	stored, err := store.ById("acct-1", true)
	if err != nil {
		t.Fatalf("ById failed: %v", err)
	}
	if stored.PasswordHash != "new-hash" {
		t.Errorf("Password hash not swapped, got: %s", stored.PasswordHash)
	}
	if stored.ResetTokenHash != "" {
		t.Error("Reset digest should be cleared after consumption")
	}
}

func TestConsumeExpiredToken(t *testing.T) {
	store := stores.NewFSAccountStore(t.TempDir())
	createAccount(t, store, "acct-1", "late@example.com")

	digest := la.HashResetSecret("late-secret")
	if err := store.SetResetToken("acct-1", digest, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("SetResetToken failed: %v", err)
	}
	if _, err := store.ConsumeResetToken(digest, time.Now(), "new-hash"); !errors.Is(err, la.ErrInvalidOrExpiredToken) {
		t.Errorf("Expected ErrInvalidOrExpiredToken, got: %v", err)
	}
}
