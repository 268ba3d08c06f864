package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	libErr "github.com/artemislabs/lib-entitlement-go/error"
	"github.com/artemislabs/lib-entitlement-go/internal/config"
	"github.com/artemislabs/lib-entitlement-go/model"
	"github.com/artemislabs/lib-entitlement-go/test/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, gatewayURL string) *Client {
	t.Helper()

	cfg := config.NewDefaultConfig()
	cfg.AppName = "test-app"
	cfg.GatewayURL = gatewayURL
	cfg.HTTPTimeout = time.Second
	cfg.RetryBackoff = 10 * time.Millisecond
	cfg.GenerateFingerprint()

	return New(&cfg, nil, helper.NewTestLogger(t))
}

func TestValidateAllowed(t *testing.T) {
	var gotBody validateRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/licenses/validate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(model.ValidationResult{
			Valid:          true,
			Tier:           model.TierFullSuite,
			ExpiryDaysLeft: 30,
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.Validate(context.Background(), "LK-1", "salesforce")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, model.TierFullSuite, result.Tier)
	assert.False(t, result.CheckedAt.IsZero())

	// The request carries the key, connector and client version
	assert.Equal(t, "LK-1", gotBody.LicenseKey)
	assert.Equal(t, "salesforce", gotBody.ConnectorID)
	assert.NotEmpty(t, gotBody.Version)
	assert.NotEmpty(t, gotBody.Fingerprint)
}

func TestValidateDeniedWithReason(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(model.ErrorResponse{
			Code:   "ENT-0003",
			Reason: model.ReasonRevoked,
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	// A 4xx is an authoritative denial, not an error
	result, err := client.Validate(context.Background(), "LK-1", "salesforce")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, model.ReasonRevoked, result.Reason)
}

func TestValidateDeniedWithoutReasonDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.Validate(context.Background(), "LK-1", "salesforce")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, model.ReasonNotEntitled, result.Reason)
}

func TestValidateRetriesOnceOnServerError(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Validate(context.Background(), "LK-1", "salesforce")
	require.Error(t, err)
	assert.True(t, libErr.IsServerError(err))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestValidateRecoversOnRetry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		_ = json.NewEncoder(w).Encode(model.ValidationResult{Valid: true, Tier: model.TierTrial})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.Validate(context.Background(), "LK-1", "salesforce")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestValidateConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close() // nothing listening anymore

	client := newTestClient(t, server.URL)

	_, err := client.Validate(context.Background(), "LK-1", "salesforce")
	require.Error(t, err)
	assert.True(t, libErr.IsConnectionError(err))
}

func TestValidateDoesNotRetryOnCancelledContext(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		// Cancel while the retry backoff is pending
		time.Sleep(2 * time.Millisecond)
		cancel()
	}()

	_, err := client.Validate(ctx, "LK-1", "salesforce")
	require.Error(t, err)
	assert.LessOrEqual(t, attempts.Load(), int32(2))
}
