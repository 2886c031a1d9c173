package datti

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/datti/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestClient_CreateLending(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/groups/g1/lendings", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Lending{ID: "l1", GroupID: "g1", Name: "Dinner", Amount: 300, PaidBy: "A"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", srv.Client())
	in := LendingInput{
		Name:      "Dinner",
		EventedAt: time.Date(2026, 10, 1, 19, 0, 0, 0, time.UTC),
		PaidBy:    "A",
		Amount:    300,
		Payments:  PaymentsFromDebts([]models.Debt{{PaidTo: "B", Amount: 100, PaymentID: "p1"}}, false),
	}

	lending, err := client.CreateLending(context.Background(), "g1", in)
	require.NoError(t, err)
	assert.Equal(t, "l1", lending.ID)

	assert.Equal(t, "Dinner", got["name"])
	assert.Equal(t, "2026-10-01T19:00:00Z", got["eventedAt"])
	assert.Equal(t, float64(300), got["amount"])
	payments := got["payments"].([]any)
	require.Len(t, payments, 1)
	payment := payments[0].(map[string]any)
	assert.Equal(t, "B", payment["paidTo"])
	assert.NotContains(t, payment, "paymentId")
}

func TestClient_UpdateLendingKeepsPaymentIDs(t *testing.T) {
	var got LendingInput
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/groups/g1/lendings/l1", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(models.Lending{ID: "l1"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	debts := []models.Debt{{PaidTo: "B", Amount: 50, PaymentID: "p1"}, {PaidTo: "C"}}

	_, err := client.UpdateLending(context.Background(), "g1", "l1", LendingInput{Payments: PaymentsFromDebts(debts, true)})
	require.NoError(t, err)
	assert.Equal(t, []PaymentInput{{PaymentID: "p1", PaidTo: "B", Amount: 50}, {PaidTo: "C"}}, got.Payments)
}

func TestClient_APIError(t *testing.T) {
	t.Run("status and message are kept", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"message":"not a member of this group"}`))
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, srv.Client()).ListMembers(context.Background(), "g1")

		apiErr, ok := AsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		assert.Equal(t, "Forbidden", apiErr.Status)
		assert.Equal(t, "not a member of this group", apiErr.Message)
	})

	t.Run("non json body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, srv.Client()).GetLending(context.Background(), "g1", "missing")

		assert.True(t, IsNotFound(err))
		apiErr, _ := AsAPIError(err)
		assert.Empty(t, apiErr.Message)
		assert.Equal(t, "datti api: 404 Not Found", apiErr.Error())
	})

	t.Run("delete with no content", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		assert.NoError(t, NewClient(srv.URL, srv.Client()).DeleteLending(context.Background(), "g1", "l1"))
	})
}

func TestGroupPathEscapes(t *testing.T) {
	assert.Equal(t, "/groups/a%2Fb/lendings/x", groupPath("a/b", "lendings", "x"))
}

func TestNewSessionClient_RefreshesAndSaves(t *testing.T) {
	var refreshes int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
		atomic.AddInt32(&refreshes, 1)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access-2","refresh_token":"refresh-2","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-2", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(models.User{ID: "A", Name: "Taro"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	expired := &oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Minute),
	}

	var saved *oauth2.Token
	conf := NewOAuthConfig(srv.URL, "web", "secret")
	client := NewSessionClient(context.Background(), conf, srv.URL, expired, SessionHooks{
		Save: func(ctx context.Context, tok *oauth2.Token) error {
			saved = tok
			return nil
		},
		Revoked: func(ctx context.Context) { t.Error("refresh should not be refused") },
	})

	user, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", user.ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
	require.NotNil(t, saved)
	assert.Equal(t, "access-2", saved.AccessToken)
	assert.Equal(t, "refresh-2", saved.RefreshToken)
}

func TestNewSessionClient_RefusedRefresh(t *testing.T) {
	var meCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"refresh token expired"}`))
	})
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&meCalls, 1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	expired := &oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Minute),
	}

	var revoked int
	conf := NewOAuthConfig(srv.URL, "web", "secret")
	client := NewSessionClient(context.Background(), conf, srv.URL, expired, SessionHooks{
		Save:    func(ctx context.Context, tok *oauth2.Token) error { t.Error("nothing to save"); return nil },
		Revoked: func(ctx context.Context) { revoked++ },
	})

	_, err := client.Me(context.Background())
	require.Error(t, err)
	assert.True(t, IsSessionRevoked(err))
	_, isAPIErr := AsAPIError(err)
	assert.False(t, isAPIErr)

	_, err = client.Me(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, revoked)
	assert.Equal(t, int32(0), atomic.LoadInt32(&meCalls))
}

func TestIsSessionRevoked(t *testing.T) {
	refused := &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadRequest}}
	unavailable := &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadGateway}}

	assert.True(t, IsSessionRevoked(fmt.Errorf("get me: %w", refused)))
	assert.False(t, IsSessionRevoked(unavailable))
	assert.False(t, IsSessionRevoked(&APIError{StatusCode: http.StatusUnauthorized}))
	assert.False(t, IsSessionRevoked(nil))
}
