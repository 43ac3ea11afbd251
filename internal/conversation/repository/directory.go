package repository

import (
	"context"
	"encoding/json"
	"net/url"

	"vehicle_marketplace_chat/internal/conversation/domain"
)

// DirectoryResponse conversations the viewer participates in.
type DirectoryResponse struct {
	Conversations []domain.DirectoryEntry `json:"conversations"`
}

// DirectoryClient is the request/offer directory collaborator.
type DirectoryClient struct {
	api *APIClient
}

// NewDirectoryClient directory client over the gateway API.
func NewDirectoryClient(api *APIClient) *DirectoryClient {
	return &DirectoryClient{api: api}
}

// ListConversationKeys resolves which (request, partner) pairs exist for the
// viewer. The token already identifies the caller; id and role ride along so
// the server can reject a mismatch.
func (c *DirectoryClient) ListConversationKeys(ctx context.Context, viewerID string, role domain.Role) ([]domain.DirectoryEntry, error) {
	path := "/api/v1/conversations?viewer=" + url.QueryEscape(viewerID) + "&role=" + url.QueryEscape(string(role))
	respBody, err := c.api.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var resp DirectoryResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}
