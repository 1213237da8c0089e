// Package identity implements the login gate: it decodes the credential
// handed over by Google Identity Services and checks it against the single
// allowed identity.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidCredentials is returned when the candidate matches neither
	// the allowed email nor the allowed name.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMalformedCredential is returned when the provider credential
	// cannot be decoded.
	ErrMalformedCredential = errors.New("malformed credential")
)

// Candidate is the identity asserted by the provider.
type Candidate struct {
	Subject   string
	Email     string
	FirstName string
	LastName  string
}

// Session is the record of an authenticated user.
type Session struct {
	FirstName string
	LastName  string
	Email     string
	// Token is the provider's opaque subject identifier.
	Token string
}

// DisplayName joins the first and last name.
func (s Session) DisplayName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Gate compares candidates against one allowed email and first name.
type Gate struct {
	AllowedEmail string
	AllowedName  string
}

// Authenticate rejects c only when both its email and its first name differ
// from the allowed values. A matching first name alone is therefore enough
// to sign in, whatever the email.
func (g Gate) Authenticate(c Candidate) (Session, error) {
	if c.Email != g.AllowedEmail && c.FirstName != g.AllowedName {
		return Session{}, ErrInvalidCredentials
	}
	return Session{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Token:     c.Subject,
	}, nil
}

// googleClaims are the ID token claims blogadmin reads.
type googleClaims struct {
	jwt.RegisteredClaims
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// DecodeCredential extracts the candidate from a Google ID token. The
// signature is not verified; the sign-in flow of the provider is trusted
// to have done so.
func DecodeCredential(raw string) (Candidate, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Candidate{}, fmt.Errorf("%w: empty credential", ErrMalformedCredential)
	}
	var claims googleClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return Candidate{}, fmt.Errorf("%w: %w", ErrMalformedCredential, err)
	}
	return Candidate{
		Subject:   claims.Subject,
		Email:     claims.Email,
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
	}, nil
}
