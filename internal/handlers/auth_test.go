package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ewastehub/apiserver/internal/auth"
)

func registerBody(t *testing.T, name, email, password string) *bytes.Buffer {
	t.Helper()
	payload, err := json.Marshal(map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewBuffer(payload)
}

func TestRegisterCreatesUser(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", registerBody(t, "Ana", "ana@example.com", "hunter22"))
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	mustStatus(t, rec.Code, http.StatusCreated, rec.Body)

	raw := rec.Body.Bytes()
	var created struct {
		ID    int    `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if created.ID == 0 || created.Email != "ana@example.com" || created.Role != "user" {
		t.Errorf("unexpected created user: %+v", created)
	}
	if bytes.Contains(raw, []byte("password")) {
		t.Error("response must not expose password fields")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	api := newTestAPI(t)

	first := httptest.NewRequest(http.MethodPost, "/auth/register", registerBody(t, "Ana", "ana@example.com", "hunter22"))
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, first)
	mustStatus(t, rec.Code, http.StatusCreated, rec.Body)

	second := httptest.NewRequest(http.MethodPost, "/auth/register", registerBody(t, "Also Ana", "ana@example.com", "other"))
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, second)
	mustStatus(t, rec.Code, http.StatusBadRequest, rec.Body)

	var errResp ErrorResponse
	decodeBody(t, rec.Body, &errResp)
	if errResp.Error != "email already registered" {
		t.Errorf("error = %q", errResp.Error)
	}
}

func TestRegisterMissingFields(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", registerBody(t, "", "ana@example.com", "hunter22"))
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	mustStatus(t, rec.Code, http.StatusBadRequest, rec.Body)
}

func TestLoginRoundtrip(t *testing.T) {
	api := newTestAPI(t)

	reg := httptest.NewRequest(http.MethodPost, "/auth/register", registerBody(t, "Ana", "ana@example.com", "hunter22"))
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, reg)
	mustStatus(t, rec.Code, http.StatusCreated, rec.Body)

	body, _ := json.Marshal(map[string]string{"email": "ana@example.com", "password": "hunter22"})
	login := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBuffer(body))
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, login)
	mustStatus(t, rec.Code, http.StatusOK, rec.Body)

	var resp LoginResponse
	decodeBody(t, rec.Body, &resp)
	if resp.TokenType != "bearer" {
		t.Errorf("token_type = %q, want bearer", resp.TokenType)
	}
	if resp.User.Email != "ana@example.com" || resp.User.Name != "Ana" {
		t.Errorf("unexpected user summary: %+v", resp.User)
	}

	claims, err := auth.ValidateToken(api.cfg.Secret, resp.AccessToken)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.Subject != "ana@example.com" {
		t.Errorf("subject = %q, want email", claims.Subject)
	}
	if claims.UserID != resp.User.ID {
		t.Errorf("user_id = %d, want %d", claims.UserID, resp.User.ID)
	}

	me := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	me.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, me)
	mustStatus(t, rec.Code, http.StatusOK, rec.Body)
}

func TestLoginBadCredentials(t *testing.T) {
	api := newTestAPI(t)

	reg := httptest.NewRequest(http.MethodPost, "/auth/register", registerBody(t, "Ana", "ana@example.com", "hunter22"))
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, reg)
	mustStatus(t, rec.Code, http.StatusCreated, rec.Body)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "ana@example.com", "nope"},
		{"unknown email", "ghost@example.com", "hunter22"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(map[string]string{"email": tc.email, "password": tc.password})
			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBuffer(body))
			rec := httptest.NewRecorder()
			api.router.ServeHTTP(rec, req)
			mustStatus(t, rec.Code, http.StatusUnauthorized, rec.Body)

			var errResp ErrorResponse
			decodeBody(t, rec.Body, &errResp)
			if errResp.Error != "invalid credentials" {
				t.Errorf("error = %q", errResp.Error)
			}
		})
	}
}

func TestMeRejectsMissingToken(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	mustStatus(t, rec.Code, http.StatusUnauthorized, rec.Body)

	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	mustStatus(t, rec.Code, http.StatusUnauthorized, rec.Body)
}
