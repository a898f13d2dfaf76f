package oquapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultClientConfig(server.URL)
	cfg.Logger = logger.Nop()
	return NewClient(cfg), server
}

func TestClient_FetchRemoteLedger(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/progress/user-1", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_ = json.NewEncoder(w).Encode(LedgerDTO{UserID: "user-1", TotalXP: 720})
	}))

	ledger, err := client.FetchRemoteLedger(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, progress.UserID("user-1"), ledger.UserID)
	assert.Equal(t, progress.XP(720), ledger.TotalXP)
}

func TestClient_PushXPDelta(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/progress/user-1/delta", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req PushDeltaRequestDTO
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 40, req.Delta)

		_ = json.NewEncoder(w).Encode(PushDeltaResponseDTO{TotalXP: 540})
	}))

	total, err := client.PushXPDelta(context.Background(), "user-1", 40)
	require.NoError(t, err)
	assert.Equal(t, progress.XP(540), total)
}

func TestClient_PushXPDelta_RejectsNonPositive(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("server must not be called")
	}))

	_, err := client.PushXPDelta(context.Background(), "user-1", 0)
	assert.ErrorIs(t, err, shared.ErrNonPositiveXP)
}

func TestClient_FetchCohort_DropsMalformedRows(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(CohortDTO{Members: []CohortMemberDTO{
			{UserID: "user-1", DisplayName: "Aruzhan", TotalXP: 900},
			{UserID: "", TotalXP: 100},
			{UserID: "user-2", TotalXP: -5},
		}})
	}))

	members, err := client.FetchCohort(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, progress.UserID("user-1"), members[0].UserID)
}

func TestClient_ClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, shared.ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, shared.ErrRateLimited},
		{"server error", http.StatusInternalServerError, shared.ErrServiceUnavailable},
		{"not found", http.StatusNotFound, shared.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			_, err := client.FetchRemoteLedger(context.Background(), "user-1")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_ClassifiesBadPayload(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json at all"))
	}))

	_, err := client.FetchRemoteLedger(context.Background(), "user-1")
	assert.ErrorIs(t, err, shared.ErrParsing)
}

func TestClient_ClassifiesOffline(t *testing.T) {
	client, server := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	_, err := client.FetchRemoteLedger(context.Background(), "user-1")
	assert.ErrorIs(t, err, shared.ErrOffline)
}

func TestClient_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	// Default breaker opens after 5 consecutive failures.
	for i := 0; i < 5; i++ {
		_, err := client.FetchRemoteLedger(context.Background(), "user-1")
		require.ErrorIs(t, err, shared.ErrServiceUnavailable)
	}

	_, err := client.FetchRemoteLedger(context.Background(), "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
}

func TestClient_SendsAPIKey(t *testing.T) {
	var gotAuth string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(LedgerDTO{UserID: "user-1", TotalXP: 10})
	}))
	client.config.APIKey = "secret-key"

	_, err := client.FetchRemoteLedger(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-key", gotAuth)
}
