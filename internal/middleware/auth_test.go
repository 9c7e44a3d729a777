package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newAuthedMux(password, secret string) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return Auth(password, secret)(next)
}

func doRequest(h http.Handler, configure func(*http.Request)) int {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	if configure != nil {
		configure(r)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w.Code
}

func TestAuthPassword(t *testing.T) {
	h := newAuthedMux("hunter2", "secret")

	if code := doRequest(h, nil); code != http.StatusUnauthorized {
		t.Errorf("no credentials: got %d, want 401", code)
	}
	if code := doRequest(h, func(r *http.Request) {
		r.Header.Set("X-Api-Password", "wrong")
	}); code != http.StatusUnauthorized {
		t.Errorf("wrong password: got %d, want 401", code)
	}
	if code := doRequest(h, func(r *http.Request) {
		r.Header.Set("X-Api-Password", "hunter2")
	}); code != http.StatusNoContent {
		t.Errorf("correct password: got %d, want 204", code)
	}
}

func TestAuthBearerToken(t *testing.T) {
	const secret = "test-secret"
	h := newAuthedMux("hunter2", secret)

	token, err := CreateToken(secret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	if code := doRequest(h, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}); code != http.StatusNoContent {
		t.Errorf("valid token: got %d, want 204", code)
	}
	if code := doRequest(h, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not-a-token")
	}); code != http.StatusUnauthorized {
		t.Errorf("garbage token: got %d, want 401", code)
	}

	// Token signed with a different secret must not pass.
	other, err := CreateToken("other-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if code := doRequest(h, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+other)
	}); code != http.StatusUnauthorized {
		t.Errorf("wrong-secret token: got %d, want 401", code)
	}
}

func TestAuthExpiredToken(t *testing.T) {
	const secret = "test-secret"
	h := newAuthedMux("", secret)

	token, err := CreateToken(secret, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if code := doRequest(h, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}); code != http.StatusUnauthorized {
		t.Errorf("expired token: got %d, want 401", code)
	}
}

func TestAuthDisabledEverythingRejected(t *testing.T) {
	h := newAuthedMux("", "")

	if code := doRequest(h, func(r *http.Request) {
		r.Header.Set("X-Api-Password", "anything")
	}); code != http.StatusUnauthorized {
		t.Errorf("no auth configured: got %d, want 401", code)
	}
}
