package api

import (
	"context"
	"strconv"

	"github.com/carnage999-max/liberty-realtime/call"
)

// CreateCallRequest creates a call resource.
type CreateCallRequest struct {
	ReceiverID     string `json:"receiver_id"`
	CallType       string `json:"call_type"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// CreateCall creates a call server-side and returns its identifiers.
// Satisfies call.Creator.
func (c *Client) CreateCall(ctx context.Context, receiverID string, medium call.Medium, conversationID string) (call.CreatedCall, error) {
	c.logger.Debug("creating call", "receiver_id", receiverID, "call_type", medium)

	var out Call
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(CreateCallRequest{
			ReceiverID:     receiverID,
			CallType:       string(medium),
			ConversationID: conversationID,
		}).
		SetResult(&out).
		Post("/api/calls/")
	if err := checkResponse(resp, err); err != nil {
		return call.CreatedCall{}, err
	}

	return call.CreatedCall{ID: out.ID, ConversationID: out.ConversationID}, nil
}

// ListCalls returns the call history, most recent first.
func (c *Client) ListCalls(ctx context.Context, page int) (*Page[Call], error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("ordering", "-started_at")
	if page > 1 {
		req.SetQueryParam("page", strconv.Itoa(page))
	}

	var out Page[Call]
	resp, err := req.SetResult(&out).Get("/api/calls/")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}
