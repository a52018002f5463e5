package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

func TestVerifier(t *testing.T) {
	verifier := NewVerifier("test-secret")

	t.Run("round trips an access token", func(t *testing.T) {
		token, err := verifier.Issue(42, time.Hour)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}

		userID, err := verifier.Verify(token)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if userID != 42 {
			t.Errorf("expected user 42, got %d", userID)
		}
	})

	t.Run("rejects token signed with another secret", func(t *testing.T) {
		token, err := NewVerifier("other-secret").Issue(42, time.Hour)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}

		if _, err := verifier.Verify(token); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("rejects expired token", func(t *testing.T) {
		token, err := verifier.Issue(42, -time.Hour)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}

		if _, err := verifier.Verify(token); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("rejects refresh token", func(t *testing.T) {
		token := signClaims(t, claims{
			Type: "refresh",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "42",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})

		if _, err := verifier.Verify(token); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("rejects non numeric subject", func(t *testing.T) {
		token := signClaims(t, claims{
			Type: accessTokenType,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "alice",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})

		if _, err := verifier.Verify(token); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		if _, err := verifier.Verify("not-a-jwt"); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func signClaims(t *testing.T, c claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}
