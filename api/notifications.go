package api

import (
	"context"
	"strconv"
)

// ListNotifications returns notifications, most recent first.
func (c *Client) ListNotifications(ctx context.Context, page int) (*Page[Notification], error) {
	req := c.http.R().SetContext(ctx)
	if page > 1 {
		req.SetQueryParam("page", strconv.Itoa(page))
	}

	var out Page[Notification]
	resp, err := req.SetResult(&out).Get("/api/notifications/")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// UnreadCount returns the number of unread notifications.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		UnreadCount int `json:"unread_count"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/notifications/unread-count/")
	if err := checkResponse(resp, err); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Patch("/api/notifications/" + id + "/read/")
	return checkResponse(resp, err)
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Post("/api/notifications/read-all/")
	return checkResponse(resp, err)
}
