package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier() *Verifier {
	return NewVerifier(VerifierConfig{Secret: []byte("test-secret"), Issuer: "exam-platform"})
}

func TestVerifyRoundTrip(t *testing.T) {
	v := newTestVerifier()

	token, err := v.Issue(User{ID: "uid-1", DisplayName: "Asha", Email: "asha@example.com"}, time.Hour)
	require.NoError(t, err)

	user, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", user.ID)
	assert.Equal(t, "Asha", user.DisplayName)
	assert.Equal(t, "asha@example.com", user.Email)
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := newTestVerifier()

	token, err := v.Issue(User{ID: "uid-1"}, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyRejectsWrongSecretAndIssuer(t *testing.T) {
	v := newTestVerifier()
	other := NewVerifier(VerifierConfig{Secret: []byte("other-secret"), Issuer: "exam-platform"})

	token, err := other.Issue(User{ID: "uid-1"}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := NewVerifier(VerifierConfig{Secret: []byte("test-secret"), Issuer: "someone-else"})
	token, err = wrongIssuer.Issue(User{ID: "uid-1"}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewareAttachesUser(t *testing.T) {
	v := newTestVerifier()
	token, err := v.Issue(User{ID: "uid-9", DisplayName: "Ravi"}, time.Hour)
	require.NoError(t, err)

	var seen *User
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	assert.Equal(t, "uid-9", seen.ID)
}

func TestMiddlewareLeavesAnonymousOnBadToken(t *testing.T) {
	v := newTestVerifier()

	var seen *User
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Nil(t, seen)
}

func TestUserNameFallback(t *testing.T) {
	var u *User
	assert.Equal(t, "Anonymous", u.Name())
	assert.Equal(t, "Anonymous", (&User{}).Name())
	assert.Equal(t, "Asha", (&User{DisplayName: "Asha"}).Name())
}

func TestFromContextMissing(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}
