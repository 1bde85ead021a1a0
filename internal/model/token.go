package model

import "time"

// RefreshToken is a long-lived opaque credential exchanged for a new access
// token. Each token authorizes exactly one refresh: consumption deletes the
// row, and a replacement token is minted on success (rotate-on-use).
//
// UserEmail is denormalized from the owning account so the exchange endpoint
// can look up by (email, token) without a join. Token values embed the user
// ID followed by 40 random bytes — possession is the sole proof of
// authorization, so the random part must come from crypto/rand.
type RefreshToken struct {
	Token     string    `json:"token"     db:"token"`
	UserID    string    `json:"userId"    db:"user_id"`
	UserEmail string    `json:"userEmail" db:"user_email"`
	Expires   time.Time `json:"expires"   db:"expires"`
}

// Expired reports whether the token's expiry has passed.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.Expires)
}

// PasswordResetToken is a single-use opaque credential proving the holder
// requested a password reset for a specific account. It records where the
// request came from (IP, browser, country) for audit and abuse review.
type PasswordResetToken struct {
	Verification   string    `json:"verification"   db:"verification"`
	UserID         string    `json:"userId"         db:"user_id"`
	UserEmail      string    `json:"userEmail"      db:"user_email"`
	Expires        time.Time `json:"expires"        db:"expires"`
	IPRequest      string    `json:"ipRequest"      db:"ip_request"`
	BrowserRequest string    `json:"browserRequest" db:"browser_request"`
	CountryRequest string    `json:"countryRequest" db:"country_request"`
	CreatedAt      time.Time `json:"createdAt"      db:"created_at"`
}

// Expired reports whether the token's expiry has passed.
func (t *PasswordResetToken) Expired(now time.Time) bool {
	return now.After(t.Expires)
}
