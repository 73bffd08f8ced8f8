package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestIssuer() *TokenIssuer {
	return NewTokenIssuer(testSecret, 15*time.Minute, 7*24*time.Hour)
}

func TestTokenPairRoundTrip(t *testing.T) {
	issuer := newTestIssuer()
	userID := uuid.New()

	pair, err := issuer.Pair(userID)
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}

	got, err := issuer.Verify(pair.AccessToken, TokenAccess)
	if err != nil {
		t.Fatalf("Verify access: %v", err)
	}
	if got != userID {
		t.Fatalf("access subject %s, want %s", got, userID)
	}

	got, err = issuer.Verify(pair.RefreshToken, TokenRefresh)
	if err != nil {
		t.Fatalf("Verify refresh: %v", err)
	}
	if got != userID {
		t.Fatalf("refresh subject %s, want %s", got, userID)
	}
}

func TestTokenTypeMismatchRejected(t *testing.T) {
	issuer := newTestIssuer()
	pair, err := issuer.Pair(uuid.New())
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}

	if _, err := issuer.Verify(pair.RefreshToken, TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh-as-access: got %v, want ErrInvalidToken", err)
	}
	if _, err := issuer.Verify(pair.AccessToken, TokenRefresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access-as-refresh: got %v, want ErrInvalidToken", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	issuer := newTestIssuer()
	now := time.Now()
	issuer.now = func() time.Time { return now }

	pair, err := issuer.Pair(uuid.New())
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}

	issuer.now = func() time.Time { return now.Add(16 * time.Minute) }
	if _, err := issuer.Verify(pair.AccessToken, TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired access: got %v, want ErrInvalidToken", err)
	}
	// The refresh token has a much longer lifetime and must still verify.
	if _, err := issuer.Verify(pair.RefreshToken, TokenRefresh); err != nil {
		t.Fatalf("refresh within lifetime: %v", err)
	}
}

func TestForeignSignatureRejected(t *testing.T) {
	pair, err := newTestIssuer().Pair(uuid.New())
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}

	other := NewTokenIssuer("another-secret-another-secret-32", 15*time.Minute, time.Hour)
	if _, err := other.Verify(pair.AccessToken, TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	if _, err := newTestIssuer().Verify("not.a.jwt", TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hashed, err := HashPassword("s3cret-passphrase")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := CheckPassword(hashed, "s3cret-passphrase"); err != nil {
		t.Fatalf("CheckPassword: %v", err)
	}
	if err := CheckPassword(hashed, "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("got %v, want ErrBadCredentials", err)
	}
}
