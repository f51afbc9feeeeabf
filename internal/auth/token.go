package auth

import (
	"time"

	"golang.org/x/oauth2"
)

// DefaultLifetime is assumed when the token endpoint omits expires_in.
const DefaultLifetime = time.Hour

// Token is a bearer credential and its absolute expiry. Tokens are replaced, never mutated.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// IsZero reports whether t holds no credential.
func (t Token) IsZero() bool { return t.Value == "" }

// ValidAt reports whether t can still be used at now with margin to spare.
func (t Token) ValidAt(now time.Time, margin time.Duration) bool {
	return !t.IsZero() && now.Add(margin).Before(t.ExpiresAt)
}

// String hides the credential so tokens can be logged safely.
func (t Token) String() string {
	if t.IsZero() {
		return "Token(empty)"
	}
	return "Token(expires " + t.ExpiresAt.UTC().Format(time.RFC3339) + ")"
}

// fromOAuth2 converts an upstream token, assuming [DefaultLifetime] when it carries no expiry.
func fromOAuth2(tok *oauth2.Token, now time.Time) Token {
	exp := tok.Expiry
	if exp.IsZero() {
		exp = now.Add(DefaultLifetime)
	}
	return Token{Value: tok.AccessToken, ExpiresAt: exp}
}
