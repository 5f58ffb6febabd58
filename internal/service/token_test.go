package service

import (
	"errors"
	"testing"
	"time"
)

func newTestCodec(t *testing.T) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec([]byte("test-access-secret"), []byte("test-refresh-secret"))
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	return codec
}

func TestTokenRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	for _, class := range []string{TokenClassAccess, TokenClassRefresh} {
		token, tokenID, err := codec.Encode(42, class, time.Minute)
		if err != nil {
			t.Fatalf("Encode(%s): %v", class, err)
		}
		if tokenID == "" {
			t.Fatalf("Encode(%s): empty token ID", class)
		}

		claims, err := codec.Decode(token, class)
		if err != nil {
			t.Fatalf("Decode(%s): %v", class, err)
		}
		if claims.UserID != 42 {
			t.Fatalf("got user %d, want 42", claims.UserID)
		}
		if claims.TokenID != tokenID {
			t.Fatalf("got token ID %q, want %q", claims.TokenID, tokenID)
		}
		if !claims.ExpiresAt.After(time.Now()) {
			t.Fatalf("expiry %v not in the future", claims.ExpiresAt)
		}
	}
}

func TestTokenClassesAreDisjoint(t *testing.T) {
	codec := newTestCodec(t)

	accessToken, _, err := codec.Encode(1, TokenClassAccess, time.Minute)
	if err != nil {
		t.Fatalf("Encode access: %v", err)
	}
	refreshToken, _, err := codec.Encode(1, TokenClassRefresh, time.Minute)
	if err != nil {
		t.Fatalf("Encode refresh: %v", err)
	}

	if _, err := codec.Decode(accessToken, TokenClassRefresh); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
	if _, err := codec.Decode(refreshToken, TokenClassAccess); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
}

func TestTokenExpiredIsExpiredNotMalformed(t *testing.T) {
	codec := newTestCodec(t)

	token, _, err := codec.Encode(7, TokenClassAccess, -time.Minute)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, err = codec.Decode(token, TokenClassAccess)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("got %v, want ErrTokenExpired", err)
	}
}

func TestTokenTamperedFailsSignature(t *testing.T) {
	codec := newTestCodec(t)

	token, _, err := codec.Encode(7, TokenClassAccess, time.Minute)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	last := token[len(token)-1]
	replacement := byte('A')
	if last == 'A' {
		replacement = 'B'
	}
	tampered := token[:len(token)-1] + string(replacement)

	_, err = codec.Decode(tampered, TokenClassAccess)
	if !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("got %v, want ErrTokenSignature", err)
	}
}

func TestTokenGarbageIsMalformed(t *testing.T) {
	codec := newTestCodec(t)

	for _, raw := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		if _, err := codec.Decode(raw, TokenClassAccess); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("Decode(%q): got %v, want ErrTokenMalformed", raw, err)
		}
	}
}

func TestTokenCodecRejectsSharedSecret(t *testing.T) {
	if _, err := NewTokenCodec([]byte("same"), []byte("same")); !errors.Is(err, ErrMisconfigured) {
		t.Fatalf("got %v, want ErrMisconfigured", err)
	}
	if _, err := NewTokenCodec(nil, []byte("refresh")); !errors.Is(err, ErrMisconfigured) {
		t.Fatalf("got %v, want ErrMisconfigured", err)
	}
}
