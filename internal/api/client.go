// Package api talks to the external licensing service for online validation.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/LerianStudio/lib-commons/commons/log"
	"github.com/artemislabs/lib-entitlement-go/constant"
	libErr "github.com/artemislabs/lib-entitlement-go/error"
	"github.com/artemislabs/lib-entitlement-go/internal/config"
	"github.com/artemislabs/lib-entitlement-go/model"
	"github.com/artemislabs/lib-entitlement-go/pkg"
)

// Client handles communication with the licensing service
type Client struct {
	httpClient *http.Client
	config     *config.ClientConfig
	logger     log.Logger
}

// New creates a new API client
func New(cfg *config.ClientConfig, httpClient *http.Client, logger log.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.HTTPTimeout,
		}
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     logger,
	}
}

// SetHTTPClient allows overriding the HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// validateRequest is the outbound wire shape.
type validateRequest struct {
	LicenseKey  string `json:"licenseKey"`
	ConnectorID string `json:"connectorId"`
	Version     string `json:"version"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Validate asks the licensing service whether a key is valid for a
// connector. The call is idempotent; transport failures and 5xx responses
// are retried exactly once after a short backoff before the failure is
// surfaced, so an outage never turns into a retry storm.
func (c *Client) Validate(ctx context.Context, licenseKey, connectorID string) (model.ValidationResult, error) {
	result, err := c.validateOnce(ctx, licenseKey, connectorID)
	if err == nil {
		return result, nil
	}

	if !retryable(err) {
		return model.ValidationResult{}, err
	}

	c.logger.Warnf("License validation failed for key %s, retrying once - error: %s",
		pkg.HashKeyID(licenseKey), err.Error())

	select {
	case <-ctx.Done():
		return model.ValidationResult{}, ctx.Err()
	case <-time.After(c.config.RetryBackoff):
	}

	return c.validateOnce(ctx, licenseKey, connectorID)
}

// validateOnce performs a single validation round-trip
func (c *Client) validateOnce(ctx context.Context, licenseKey, connectorID string) (model.ValidationResult, error) {
	url := fmt.Sprintf("%s/v1/licenses/validate", c.config.GatewayURL)

	body, err := json.Marshal(validateRequest{
		LicenseKey:  licenseKey,
		ConnectorID: connectorID,
		Version:     constant.ClientVersion,
		Fingerprint: c.config.Fingerprint,
	})
	if err != nil {
		return model.ValidationResult{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return model.ValidationResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.ValidationResult{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp)
	}

	var result model.ValidationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return model.ValidationResult{}, fmt.Errorf("failed to decode response: %w", err)
	}

	result.CheckedAt = time.Now()

	return result, nil
}

// handleErrorResponse processes error responses from the licensing service.
// 4xx responses carry an authoritative machine-readable denial reason and
// are returned as a Denied result, not an error.
func (c *Client) handleErrorResponse(resp *http.Response) (model.ValidationResult, error) {
	var errorResp model.ErrorResponse

	bodyBytes, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(bodyBytes, &errorResp)

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		reason := errorResp.Reason
		if reason == model.ReasonNone {
			reason = model.ReasonNotEntitled
		}

		c.logger.Debugf("License denied by service - status: %d, code: %s, reason: %s",
			resp.StatusCode, errorResp.Code, reason)

		return model.ValidationResult{
			Valid:     false,
			Reason:    reason,
			CheckedAt: time.Now(),
		}, nil
	}

	c.logger.Debugf("Server error during license validation - status: %d, code: %s, message: %s",
		resp.StatusCode, errorResp.Code, errorResp.Message)

	return model.ValidationResult{}, &libErr.ApiError{
		StatusCode: resp.StatusCode,
		Msg:        fmt.Sprintf("server error: %d", resp.StatusCode),
	}
}

// retryable reports whether a failure is worth the single retry
func retryable(err error) bool {
	return libErr.IsServerError(err) || libErr.IsConnectionError(err)
}
