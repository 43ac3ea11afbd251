package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"vehicle_marketplace_chat/internal/conversation/domain"
)

// WatermarkResponse persisted read watermark for one (room, role).
type WatermarkResponse struct {
	LastReadAt int64 `json:"last_read_at"`
}

// markReadRequest watermark advance body.
type markReadRequest struct {
	Role string `json:"role"`
	At   int64  `json:"at"`
}

// WatermarkClient read-through client for the persisted read watermarks.
// Implements unread.WatermarkStore.
type WatermarkClient struct {
	api *APIClient
}

// NewWatermarkClient watermark store over the gateway API.
func NewWatermarkClient(api *APIClient) *WatermarkClient {
	return &WatermarkClient{api: api}
}

// Get fetches the persisted watermark, zero when none exists.
func (c *WatermarkClient) Get(ctx context.Context, room string, role domain.Role) (int64, error) {
	path := fmt.Sprintf("/api/v1/rooms/%s/read?role=%s", url.PathEscape(room), url.QueryEscape(string(role)))
	respBody, err := c.api.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return 0, err
	}

	var resp WatermarkResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, err
	}
	return resp.LastReadAt, nil
}

// Advance moves the persisted watermark to max(current, at).
func (c *WatermarkClient) Advance(ctx context.Context, room string, role domain.Role, at int64) (int64, error) {
	reqBody, _ := json.Marshal(markReadRequest{Role: string(role), At: at})
	respBody, err := c.api.doRequest(ctx, "POST", "/api/v1/rooms/"+url.PathEscape(room)+"/read", reqBody)
	if err != nil {
		return 0, err
	}

	var resp WatermarkResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, err
	}
	return resp.LastReadAt, nil
}
