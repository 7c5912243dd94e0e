package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stitchworks/api/internal/config"
	"github.com/stitchworks/api/internal/model"
)

// AdvisoryChecker is the contract of the external rule-based risk scorer
// consulted before routing customization. Its verdict is surfaced verbatim.
type AdvisoryChecker interface {
	CheckRouteCustomization(ctx context.Context, orderID string, method model.Method, steps []model.RoutingStepRequest) (*model.AdvisoryResult, error)
	IsConfigured() bool
}

// AdvisoryClient talks to the advisory validation service over HTTP.
type AdvisoryClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type routeCheckRequest struct {
	OrderID string                     `json:"order_id"`
	Method  model.Method               `json:"method"`
	Steps   []model.RoutingStepRequest `json:"steps"`
}

// NewAdvisoryClient creates a new advisory service client.
func NewAdvisoryClient(cfg *config.AdvisoryConfig) *AdvisoryClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if cfg.Timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AdvisoryClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// IsConfigured returns true if a base URL is set.
func (c *AdvisoryClient) IsConfigured() bool {
	return c.baseURL != ""
}

// CheckRouteCustomization asks the advisory service to score a proposed
// routing graph. Unconfigured clients return a permissive verdict so
// development environments keep working without the collaborator.
func (c *AdvisoryClient) CheckRouteCustomization(ctx context.Context, orderID string, method model.Method, steps []model.RoutingStepRequest) (*model.AdvisoryResult, error) {
	if !c.IsConfigured() {
		return &model.AdvisoryResult{Blocked: false, Risk: "unscored"}, nil
	}

	reqBody := routeCheckRequest{
		OrderID: orderID,
		Method:  method,
		Steps:   steps,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/route-customization/check", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("advisory service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result model.AdvisoryResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &result, nil
}
