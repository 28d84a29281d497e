package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// TestGetLoginURL_ContainsOfflineAccessAndConsent は認証URLに
// リフレッシュトークン取得に必要なパラメータが含まれることを検証する。
func TestGetLoginURL_ContainsOfflineAccessAndConsent(t *testing.T) {
	p := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "client-id",
		RedirectURL: "http://localhost:8080/auth/google/callback",
	})

	loginURL := p.GetLoginURL("state-abc")

	parsed, err := url.Parse(loginURL)
	if err != nil {
		t.Fatalf("failed to parse login URL: %v", err)
	}

	q := parsed.Query()
	if got := q.Get("access_type"); got != "offline" {
		t.Errorf("access_type = %q, want %q", got, "offline")
	}
	if got := q.Get("prompt"); got != "consent" {
		t.Errorf("prompt = %q, want %q", got, "consent")
	}
	if got := q.Get("state"); got != "state-abc" {
		t.Errorf("state = %q, want %q", got, "state-abc")
	}
	if got := q.Get("response_type"); got != "code" {
		t.Errorf("response_type = %q, want %q", got, "code")
	}
	if scope := q.Get("scope"); !strings.Contains(scope, "email") {
		t.Errorf("scope = %q, should contain email", scope)
	}
}

// TestExchangeCode_Success はコード交換とユーザー情報取得の一連の流れを検証する。
func TestExchangeCode_Success(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q, want %q", got, "authorization_code")
		}
		if got := r.PostForm.Get("code"); got != "auth-code-123" {
			t.Errorf("code = %q, want %q", got, "auth-code-123")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access-abc","token_type":"Bearer","expires_in":3600,"refresh_token":"refresh-xyz"}`))
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer access-abc" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer access-abc")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sub":"12345","email":"user@example.com","name":"Test User"}`))
	}))
	defer userInfoServer.Close()

	p := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		TokenURL:     tokenServer.URL,
		UserInfoURL:  userInfoServer.URL,
	})

	result, err := p.ExchangeCode(context.Background(), "auth-code-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Email != "user@example.com" {
		t.Errorf("Email = %q, want %q", result.Email, "user@example.com")
	}
	if result.Provider != "google" {
		t.Errorf("Provider = %q, want %q", result.Provider, "google")
	}
	if result.RefreshCredential != "refresh-xyz" {
		t.Errorf("RefreshCredential = %q, want %q", result.RefreshCredential, "refresh-xyz")
	}
}

// TestExchangeCode_NoRefreshToken_ReturnsEmptyCredential はレスポンスに
// リフレッシュトークンがない場合に空のまま返すことを検証する（エラーにしない）。
func TestExchangeCode_NoRefreshToken_ReturnsEmptyCredential(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"access-abc","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sub":"12345","email":"user@example.com","name":"Test User"}`))
	}))
	defer userInfoServer.Close()

	p := NewGoogleOAuthProvider(GoogleOAuthConfig{
		TokenURL:    tokenServer.URL,
		UserInfoURL: userInfoServer.URL,
	})

	result, err := p.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RefreshCredential != "" {
		t.Errorf("RefreshCredential = %q, want empty", result.RefreshCredential)
	}
}

// TestExchangeCode_TokenEndpointError_ReturnsError はトークン交換失敗時に
// エラーを返すことを検証する。
func TestExchangeCode_TokenEndpointError_ReturnsError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer tokenServer.Close()

	p := NewGoogleOAuthProvider(GoogleOAuthConfig{
		TokenURL: tokenServer.URL,
	})

	if _, err := p.ExchangeCode(context.Background(), "bad-code"); err == nil {
		t.Error("expected error for token endpoint failure")
	}
}

// TestExchangeCode_EmptyAccessToken_ReturnsError はアクセストークンが
// 空のレスポンスでエラーを返すことを検証する。
func TestExchangeCode_EmptyAccessToken_ReturnsError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer tokenServer.Close()

	p := NewGoogleOAuthProvider(GoogleOAuthConfig{
		TokenURL: tokenServer.URL,
	})

	if _, err := p.ExchangeCode(context.Background(), "auth-code"); err == nil {
		t.Error("expected error for empty access token")
	}
}

// TestExchangeCode_EmptyEmail_ReturnsError はユーザー情報にメールアドレスが
// ない場合にエラーを返すことを検証する。
func TestExchangeCode_EmptyEmail_ReturnsError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"access-abc","refresh_token":"refresh-xyz"}`))
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sub":"12345","name":"No Email"}`))
	}))
	defer userInfoServer.Close()

	p := NewGoogleOAuthProvider(GoogleOAuthConfig{
		TokenURL:    tokenServer.URL,
		UserInfoURL: userInfoServer.URL,
	})

	if _, err := p.ExchangeCode(context.Background(), "auth-code"); err == nil {
		t.Error("expected error for missing email")
	}
}
