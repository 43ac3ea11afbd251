// Package repository holds the REST clients for the external collaborators
// the conversation core consumes: persisted message store, request/offer
// directory, identity lookup and the read watermarks.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const requestTimeout = 10 * time.Second

// APIClient is a thin JSON client for the chat gateway's REST surface.
type APIClient struct {
	BaseURL    string
	AuthToken  string
	HTTPClient *http.Client
}

// NewAPIClient creates a gateway API client authenticated as one viewer.
func NewAPIClient(baseURL, authToken string) *APIClient {
	return &APIClient{
		BaseURL:    baseURL,
		AuthToken:  authToken,
		HTTPClient: &http.Client{Timeout: requestTimeout},
	}
}

// doRequest performs an HTTP request against the gateway.
func (c *APIClient) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	// the gateway middleware reads the token from the auth query parameter
	q := req.URL.Query()
	q.Set("auth", c.AuthToken)
	req.URL.RawQuery = q.Encode()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, fmt.Errorf("gateway error %d: %s", resp.StatusCode, errResp.Error)
	}

	return respBody, nil
}
