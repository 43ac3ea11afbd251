package repository

import (
	"context"
	"encoding/json"
	"net/url"

	"vehicle_marketplace_chat/pkg/chaterr"
)

// ProfileResponse identity lookup result.
type ProfileResponse struct {
	ID           string `json:"id"`
	DisplayLabel string `json:"display_label"`
}

// ProfileClient is the identity/profile lookup collaborator.
type ProfileClient struct {
	api *APIClient
}

// NewProfileClient profile client over the gateway API.
func NewProfileClient(api *APIClient) *ProfileClient {
	return &ProfileClient{api: api}
}

// ResolveDisplayLabel resolves a participant's display name. Failures are
// expected to degrade at the caller, not propagate.
func (c *ProfileClient) ResolveDisplayLabel(ctx context.Context, participantID string) (string, error) {
	respBody, err := c.api.doRequest(ctx, "GET", "/api/v1/profiles/"+url.PathEscape(participantID), nil)
	if err != nil {
		return "", chaterr.Wrap(chaterr.ErrEnrichmentFailed, err)
	}

	var resp ProfileResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", chaterr.Wrap(chaterr.ErrEnrichmentFailed, err)
	}
	return resp.DisplayLabel, nil
}
