package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/auth-service/internal/apperror"
	"github.com/sakif/auth-service/internal/model"
)

func TestRefreshTokenConsume_SingleUse(t *testing.T) {
	db := newTestDB(t)
	repo := db.RefreshTokens()
	ctx := context.Background()

	token := &model.RefreshToken{
		Token:     "user-1.deadbeef",
		UserID:    "user-1",
		UserEmail: "jane@example.com",
		Expires:   time.Now().Add(24 * time.Hour),
	}
	if err := repo.Create(ctx, token); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.Consume(ctx, "jane@example.com", "user-1.deadbeef")
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if got.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", got.UserID)
	}

	// A second consume of the same token must fail: it was deleted
	if _, err := repo.Consume(ctx, "jane@example.com", "user-1.deadbeef"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Consume() error = %v, want ErrNotFound", err)
	}
}

func TestRefreshTokenConsume_EmailMustMatch(t *testing.T) {
	db := newTestDB(t)
	repo := db.RefreshTokens()
	ctx := context.Background()

	token := &model.RefreshToken{
		Token:     "user-1.cafebabe",
		UserID:    "user-1",
		UserEmail: "jane@example.com",
		Expires:   time.Now().Add(24 * time.Hour),
	}
	if err := repo.Create(ctx, token); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := repo.Consume(ctx, "mallory@example.com", "user-1.cafebabe"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Consume() with wrong email error = %v, want ErrNotFound", err)
	}

	// The mismatch did not burn the token for its real owner
	if _, err := repo.Consume(ctx, "JANE@example.com", "user-1.cafebabe"); err != nil {
		t.Errorf("Consume() by owner after mismatch error = %v", err)
	}
}

// Expired tokens are still handed back by Consume; the caller decides what
// expiry means. They are removed either way.
func TestRefreshTokenConsume_ReturnsExpired(t *testing.T) {
	db := newTestDB(t)
	repo := db.RefreshTokens()
	ctx := context.Background()

	token := &model.RefreshToken{
		Token:     "user-1.stale",
		UserID:    "user-1",
		UserEmail: "jane@example.com",
		Expires:   time.Now().Add(-time.Hour),
	}
	if err := repo.Create(ctx, token); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.Consume(ctx, "jane@example.com", "user-1.stale")
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if !got.Expired(time.Now()) {
		t.Error("token should report expired")
	}
	if _, err := repo.Consume(ctx, "jane@example.com", "user-1.stale"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expired token survived Consume(): %v", err)
	}
}

func TestRefreshTokenDeleteByUser(t *testing.T) {
	db := newTestDB(t)
	repo := db.RefreshTokens()
	ctx := context.Background()

	for _, tok := range []string{"user-1.a", "user-1.b"} {
		err := repo.Create(ctx, &model.RefreshToken{
			Token:     tok,
			UserID:    "user-1",
			UserEmail: "jane@example.com",
			Expires:   time.Now().Add(24 * time.Hour),
		})
		if err != nil {
			t.Fatalf("Create(%s) error = %v", tok, err)
		}
	}
	err := repo.Create(ctx, &model.RefreshToken{
		Token:     "user-2.c",
		UserID:    "user-2",
		UserEmail: "bob@example.com",
		Expires:   time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.DeleteByUser(ctx, "user-1"); err != nil {
		t.Fatalf("DeleteByUser() error = %v", err)
	}

	if _, err := repo.Consume(ctx, "jane@example.com", "user-1.a"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("user-1 token survived DeleteByUser: %v", err)
	}
	if _, err := repo.Consume(ctx, "bob@example.com", "user-2.c"); err != nil {
		t.Errorf("other user's token was deleted: %v", err)
	}
}

func TestResetTokenConsume_SingleUse(t *testing.T) {
	db := newTestDB(t)
	repo := db.PasswordResetTokens()
	ctx := context.Background()

	token := &model.PasswordResetToken{
		Verification:   "user-1.reset",
		UserID:         "user-1",
		UserEmail:      "jane@example.com",
		Expires:        time.Now().Add(4 * time.Hour),
		IPRequest:      "203.0.113.9",
		BrowserRequest: "curl/8.0",
		CountryRequest: "DE",
	}
	if err := repo.Create(ctx, token); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.Consume(ctx, "jane@example.com", "user-1.reset")
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if got.IPRequest != "203.0.113.9" || got.CountryRequest != "DE" {
		t.Errorf("request provenance not round-tripped: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("Create() did not default CreatedAt")
	}

	if _, err := repo.Consume(ctx, "jane@example.com", "user-1.reset"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Consume() error = %v, want ErrNotFound", err)
	}
}

func TestResetTokenDeleteByUser(t *testing.T) {
	db := newTestDB(t)
	repo := db.PasswordResetTokens()
	ctx := context.Background()

	err := repo.Create(ctx, &model.PasswordResetToken{
		Verification: "user-1.reset",
		UserID:       "user-1",
		UserEmail:    "jane@example.com",
		Expires:      time.Now().Add(4 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.DeleteByUser(ctx, "user-1"); err != nil {
		t.Fatalf("DeleteByUser() error = %v", err)
	}
	if _, err := repo.Consume(ctx, "jane@example.com", "user-1.reset"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("reset token survived DeleteByUser: %v", err)
	}
}
