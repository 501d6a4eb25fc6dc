package authapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barambur26/go-aidock-client/authapi"
)

func TestLoginDecodesTokenResponse(t *testing.T) {
	t.Parallel()

	var gotBody authapi.LoginRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "bearer",
			"expires_in":    900,
			"user": map[string]any{
				"user_id":  "u-1",
				"username": "alice",
				"email":    "alice@example.com",
				"role":     "user",
			},
		})
	}))
	t.Cleanup(srv.Close)

	client := authapi.NewClient(srv.URL)
	resp, err := client.Login(context.Background(), authapi.LoginRequest{
		Username:   "alice",
		Password:   "password123",
		RememberMe: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", gotBody.Username)
	assert.True(t, gotBody.RememberMe)
	assert.Equal(t, "access-1", resp.AccessToken)
	assert.Equal(t, "refresh-1", resp.RefreshToken)
	assert.Equal(t, int64(900), resp.ExpiresIn)
	require.NotNil(t, resp.User)
	assert.Equal(t, "alice", resp.User.Username)
}

func TestMeSendsBearerToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/me", r.URL.Path)
		require.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user_id":  "u-1",
			"username": "alice",
			"email":    "alice@example.com",
			"role":     "admin",
		})
	}))
	t.Cleanup(srv.Close)

	client := authapi.NewClient(srv.URL)
	profile, err := client.Me(context.Background(), "access-1")
	require.NoError(t, err)
	assert.Equal(t, "admin", profile.Role)
}

func TestErrorNormalization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "detail string",
			status:  http.StatusUnauthorized,
			body:    `{"detail": "Invalid username or password"}`,
			wantMsg: "Invalid username or password",
		},
		{
			name:    "detail field error list",
			status:  http.StatusUnprocessableEntity,
			body:    `{"detail": [{"msg": "username too short"}, {"msg": "password required"}]}`,
			wantMsg: "username too short; password required",
		},
		{
			name:    "structured error body",
			status:  http.StatusForbidden,
			body:    `{"error": "authentication_failed", "message": "Account is inactive"}`,
			wantMsg: "Account is inactive",
		},
		{
			name:    "error category only",
			status:  http.StatusForbidden,
			body:    `{"error": "authentication_failed"}`,
			wantMsg: "authentication_failed",
		},
		{
			name:    "unparseable body falls back",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			wantMsg: "authentication request failed",
		},
		{
			name:    "empty body falls back",
			status:  http.StatusInternalServerError,
			body:    "",
			wantMsg: "authentication request failed",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			client := authapi.NewClient(srv.URL)
			_, err := client.Refresh(context.Background(), "refresh-1")
			require.Error(t, err)

			var apiErr *authapi.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
		})
	}
}

func TestIsUnauthorized(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "Invalid or expired refresh token"}`))
	}))
	t.Cleanup(srv.Close)

	client := authapi.NewClient(srv.URL)
	_, err := client.Refresh(context.Background(), "stale")
	require.Error(t, err)
	assert.True(t, authapi.IsUnauthorized(err))

	err = client.Logout(context.Background(), "stale")
	require.Error(t, err)
	assert.True(t, authapi.IsUnauthorized(err))
}
