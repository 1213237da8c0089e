package identity

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateAuthenticate(t *testing.T) {
	gate := Gate{AllowedEmail: "a@x.com", AllowedName: "Ada"}

	tests := []struct {
		name      string
		candidate Candidate
		wantErr   bool
	}{
		{"email matches, name differs", Candidate{Email: "a@x.com", FirstName: "Bob"}, false},
		{"name matches, email differs", Candidate{Email: "b@x.com", FirstName: "Ada"}, false},
		{"both match", Candidate{Email: "a@x.com", FirstName: "Ada"}, false},
		{"neither matches", Candidate{Email: "b@x.com", FirstName: "Bob"}, true},
		{"case differs", Candidate{Email: "A@X.COM", FirstName: "ada"}, true},
		{"empty candidate", Candidate{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := gate.Authenticate(tt.candidate)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidCredentials)
				assert.Equal(t, Session{}, sess)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.candidate.Email, sess.Email)
			assert.Equal(t, tt.candidate.FirstName, sess.FirstName)
		})
	}
}

func TestGateSessionFields(t *testing.T) {
	gate := Gate{AllowedEmail: "a@x.com", AllowedName: "Ada"}
	sess, err := gate.Authenticate(Candidate{Subject: "1234", Email: "a@x.com", FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, Session{FirstName: "Ada", LastName: "Lovelace", Email: "a@x.com", Token: "1234"}, sess)
	assert.Equal(t, "Ada Lovelace", sess.DisplayName())
}

func signCredential(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-the-google-key"))
	require.NoError(t, err)
	return tok
}

func TestDecodeCredential(t *testing.T) {
	raw := signCredential(t, jwt.MapClaims{
		"iss":         "https://accounts.google.com",
		"sub":         "110248495921238986420",
		"email":       "ada@example.com",
		"given_name":  "Ada",
		"family_name": "Lovelace",
		"exp":         1,
	})

	c, err := DecodeCredential(raw)
	require.NoError(t, err)
	assert.Equal(t, Candidate{
		Subject:   "110248495921238986420",
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}, c)
}

func TestDecodeCredentialMalformed(t *testing.T) {
	for _, raw := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		_, err := DecodeCredential(raw)
		assert.ErrorIs(t, err, ErrMalformedCredential, "raw=%q", raw)
	}
}
