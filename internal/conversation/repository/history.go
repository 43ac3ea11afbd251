package repository

import (
	"context"
	"encoding/json"
	"net/url"

	"vehicle_marketplace_chat/internal/conversation/domain"
	"vehicle_marketplace_chat/pkg/chaterr"
)

// HistoryResponse persisted history for one room, ascending by sent_at.
type HistoryResponse struct {
	Room     string           `json:"room"`
	Messages []domain.Message `json:"messages"`
}

// PostMessageRequest fallback REST send body.
type PostMessageRequest struct {
	Body string `json:"body"`
}

// HistoryClient is the persisted message store collaborator.
type HistoryClient struct {
	api *APIClient
}

// NewHistoryClient message store client over the gateway API.
func NewHistoryClient(api *APIClient) *HistoryClient {
	return &HistoryClient{api: api}
}

// GetHistory fetches the persisted sequence for a room (cold truth).
func (c *HistoryClient) GetHistory(ctx context.Context, room string) ([]domain.Message, error) {
	respBody, err := c.api.doRequest(ctx, "GET", "/api/v1/rooms/"+url.PathEscape(room)+"/history", nil)
	if err != nil {
		return nil, chaterr.Wrap(chaterr.ErrHistoryFetchFailed, err)
	}

	var resp HistoryResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, chaterr.Wrap(chaterr.ErrHistoryFetchFailed, err)
	}
	for i := range resp.Messages {
		resp.Messages[i].Delivery = domain.DeliveryConfirmed
	}
	return resp.Messages, nil
}

// PostMessage persists a message over REST. Only used as the non-realtime
// fallback while the socket is down; the normal path is the channel emit.
func (c *HistoryClient) PostMessage(ctx context.Context, room, body string) (domain.Message, error) {
	reqBody, _ := json.Marshal(PostMessageRequest{Body: body})
	respBody, err := c.api.doRequest(ctx, "POST", "/api/v1/rooms/"+url.PathEscape(room)+"/messages", reqBody)
	if err != nil {
		return domain.Message{}, chaterr.Wrap(chaterr.ErrSendFailed, err)
	}

	var msg domain.Message
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return domain.Message{}, chaterr.Wrap(chaterr.ErrSendFailed, err)
	}
	msg.Delivery = domain.DeliveryConfirmed
	return msg, nil
}
