package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lapizarra/backend/internal/domain/admin"
	"lapizarra/backend/internal/domain/match"
	"lapizarra/backend/internal/domain/members"
	stripedom "lapizarra/backend/internal/domain/stripe"
	"lapizarra/backend/internal/domain/team"
	"lapizarra/backend/internal/media"

	"firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog"
)

type fakeVerifier map[string]*auth.Token

func (f fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if tok, ok := f[idToken]; ok {
		return tok, nil
	}
	return nil, errors.New("invalid")
}

type fakeClaims struct {
	set map[string]map[string]interface{}
}

func (f *fakeClaims) GetUser(_ context.Context, uid string) (*auth.UserRecord, error) {
	return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: uid}, CustomClaims: map[string]interface{}{}}, nil
}

func (f *fakeClaims) SetCustomUserClaims(_ context.Context, uid string, claims map[string]interface{}) error {
	f.set[uid] = claims
	return nil
}

func newTestRouter(claims *fakeClaims) http.Handler {
	return NewRouter(RouterDeps{
		Logger: zerolog.Nop(),
		Verifier: fakeVerifier{
			"coach-token": {UID: "coach", Claims: map[string]interface{}{"email": "coach@club.es"}},
			"admin-token": {UID: "boss", Claims: map[string]interface{}{"admin": true}},
		},
		Admin: admin.NewService(claims, nil, nil),
	})
}

func do(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHealth(t *testing.T) {
	w := do(newTestRouter(&fakeClaims{}), http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	h := newTestRouter(&fakeClaims{})
	for _, path := range []string{"/v1/me", "/v1/teams", "/v1/exercises", "/v1/sessions"} {
		if w := do(h, http.MethodGet, path, "", ""); w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d", path, w.Code)
		}
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	h := newTestRouter(&fakeClaims{})
	w := do(h, http.MethodPost, "/v1/teams", "coach-token", `{"name":"Cadete B","colour":"red"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body["message"] == "" {
		t.Errorf("body = %v, err = %v", body, err)
	}
}

func TestAdminClaimRoute(t *testing.T) {
	claims := &fakeClaims{set: map[string]map[string]interface{}{}}
	h := newTestRouter(claims)

	if w := do(h, http.MethodPost, "/v1/admin/users/coach/claims", "coach-token", `{"admin":true}`); w.Code != http.StatusForbidden {
		t.Errorf("coach: status = %d", w.Code)
	}
	if len(claims.set) != 0 {
		t.Fatalf("claims changed by non-admin: %v", claims.set)
	}

	w := do(h, http.MethodPost, "/v1/admin/users/coach/claims", "admin-token", `{"admin":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("admin: status = %d body %s", w.Code, w.Body.String())
	}
	if claims.set["coach"]["admin"] != true {
		t.Errorf("claims = %v", claims.set["coach"])
	}

	if w := do(h, http.MethodPost, "/v1/admin/users/boss/claims", "admin-token", `{"admin":false}`); w.Code != http.StatusBadRequest {
		t.Errorf("self revoke: status = %d", w.Code)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: name is required", team.ErrBadRequest), http.StatusBadRequest},
		{fmt.Errorf("%w: read-only", match.ErrUnauthorized), http.StatusForbidden},
		{fmt.Errorf("%w: match not found", match.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: already finished", match.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: pending", members.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: teams", stripedom.ErrLimitReached), http.StatusPaymentRequired},
		{stripedom.ErrNotConfigured, http.StatusServiceUnavailable},
		{media.ErrNotConfigured, http.StatusServiceUnavailable},
		{errors.New("deadline exceeded"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := mapError(tt.err); got != tt.want {
			t.Errorf("mapError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
