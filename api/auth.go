package api

import "context"

// LoginRequest are the credentials for password login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer credential.
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	User         User   `json:"user"`
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	c.logger.Debug("logging in", "username", username)

	var out LoginResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(LoginRequest{Username: username, Password: password}).
		SetResult(&out).
		Post("/api/auth/login/")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}

	c.SetToken(out.Token)
	c.logger.Debug("login successful", "user_id", out.User.ID)
	return &out, nil
}

// Me fetches the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/auth/me/")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}
