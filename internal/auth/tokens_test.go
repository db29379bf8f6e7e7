package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestIssuer(t *testing.T, opts ...TokenOption) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer("access-secret-for-tests", "refresh-secret-for-tests", opts...)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return issuer
}

var testPrincipal = Principal{
	UserID:         "user-42",
	OrganizationID: "org-7",
	Role:           RoleAdmin,
	Locale:         LocaleES,
}

func TestTokenPairRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)
	pair, err := issuer.IssuePair(testPrincipal)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if pair.SessionID == "" {
		t.Fatalf("expected session id")
	}

	access, err := issuer.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if access.Principal() != testPrincipal {
		t.Fatalf("unexpected access principal: %+v", access.Principal())
	}
	if access.Issuer != DefaultIssuer {
		t.Fatalf("unexpected issuer: %s", access.Issuer)
	}
	if got := access.ExpiresAt.Sub(access.IssuedAt.Time); got != DefaultAccessTTL {
		t.Fatalf("unexpected access lifetime: %v", got)
	}

	refresh, err := issuer.VerifyRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if refresh.SessionID != pair.SessionID || refresh.ID != pair.SessionID {
		t.Fatalf("session id not embedded: %+v", refresh)
	}
	if !refresh.ExpiresAt.Time.Equal(pair.RefreshTokenExpiresAt) {
		t.Fatalf("expiry mismatch: %v vs %v", refresh.ExpiresAt.Time, pair.RefreshTokenExpiresAt)
	}
	if got := refresh.ExpiresAt.Sub(refresh.IssuedAt.Time); got != DefaultRefreshTTL {
		t.Fatalf("unexpected refresh lifetime: %v", got)
	}
}

func TestTokenPairsUseDistinctSessions(t *testing.T) {
	issuer := newTestIssuer(t)
	a, _ := issuer.IssuePair(testPrincipal)
	b, _ := issuer.IssuePair(testPrincipal)
	if a.SessionID == b.SessionID || a.RefreshToken == b.RefreshToken {
		t.Fatalf("expected fresh session per pair")
	}
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	issuer := newTestIssuer(t)
	pair, _ := issuer.IssuePair(testPrincipal)

	if _, err := issuer.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
	if _, err := issuer.VerifyRefresh(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token accepted as refresh token: %v", err)
	}
}

func TestTokenFlippedSignatureRejected(t *testing.T) {
	issuer := newTestIssuer(t)
	pair, _ := issuer.IssuePair(testPrincipal)

	for name, token := range map[string]string{
		"access":  pair.AccessToken,
		"refresh": pair.RefreshToken,
	} {
		tampered := flipSignatureByte(t, token)
		var err error
		if name == "access" {
			_, err = issuer.VerifyAccess(tampered)
		} else {
			_, err = issuer.VerifyRefresh(tampered)
		}
		if !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: tampered token accepted: %v", name, err)
		}
	}
}

func TestTokenExpiryEnforced(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	issuer := newTestIssuer(t, WithClock(func() time.Time { return clock() }))
	pair, _ := issuer.IssuePair(testPrincipal)

	clock = func() time.Time { return now.Add(DefaultAccessTTL + time.Second) }
	if _, err := issuer.VerifyAccess(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired access token accepted: %v", err)
	}
	if _, err := issuer.VerifyRefresh(pair.RefreshToken); err != nil {
		t.Fatalf("refresh token should still be valid: %v", err)
	}

	clock = func() time.Time { return now.Add(DefaultRefreshTTL + time.Second) }
	if _, err := issuer.VerifyRefresh(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired refresh token accepted: %v", err)
	}
}

func TestTokenIssuerMismatchRejected(t *testing.T) {
	a := newTestIssuer(t)
	b := newTestIssuer(t, WithIssuer("someone-else"))
	pair, _ := a.IssuePair(testPrincipal)
	if _, err := b.VerifyAccess(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign issuer accepted: %v", err)
	}
}

func TestTokenRejectsOtherAlgorithms(t *testing.T) {
	issuer := newTestIssuer(t)
	claims := Claims{
		Organization: "org-7",
		Role:         RoleAdmin,
		Locale:       LocaleEN,
		Use:          useAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DefaultIssuer,
			Subject:   "user-42",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("access-secret-for-tests"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := issuer.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("HS512 token accepted: %v", err)
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := issuer.VerifyAccess(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("unsigned token accepted: %v", err)
	}
}

func TestTokenRejectsUnknownRole(t *testing.T) {
	issuer := newTestIssuer(t)
	p := testPrincipal
	p.Role = "owner"
	pair, err := issuer.IssuePair(p)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if _, err := issuer.VerifyAccess(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("unknown role accepted: %v", err)
	}
}

func TestNewTokenIssuerRequiresDistinctSecrets(t *testing.T) {
	if _, err := NewTokenIssuer("same", "same"); err == nil {
		t.Fatalf("expected error for identical secrets")
	}
	if _, err := NewTokenIssuer("", "refresh"); err == nil {
		t.Fatalf("expected error for empty access secret")
	}
}

func TestHashToken(t *testing.T) {
	got := HashToken("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("HashToken(abc)=%s, want %s", got, want)
	}
}

func flipSignatureByte(t *testing.T, token string) string {
	t.Helper()
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("malformed token: %s", token)
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	sig[len(sig)/2] ^= 0xff
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)
	return strings.Join(parts, ".")
}
