package identity

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims carried by identity-provider tokens.
type Claims struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// VerifierConfig holds token validation configuration.
type VerifierConfig struct {
	Secret []byte
	Issuer string
}

// Verifier validates bearer tokens and extracts the user they identify.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a token verifier.
func NewVerifier(cfg VerifierConfig) *Verifier {
	return &Verifier{secret: cfg.Secret, issuer: cfg.Issuer}
}

// Verify parses and validates a token, returning the user it asserts.
func (v *Verifier) Verify(tokenString string) (*User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &User{
		ID:          claims.Subject,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
	}, nil
}

// Issue mints a token for the given user. Used by tests and local tooling;
// production tokens come from the external provider with the same secret.
func (v *Verifier) Issue(user User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		DisplayName: user.DisplayName,
		Email:       user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Middleware resolves an optional bearer token into a context user. Requests
// without a token stay anonymous; handlers that need a user check for nil.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			if user, err := v.Verify(strings.TrimSpace(token)); err == nil {
				r = r.WithContext(IntoContext(r.Context(), user))
			}
		}
		next.ServeHTTP(w, r)
	})
}
