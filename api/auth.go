package api

import (
	"context"
	"errors"

	"moob/models"
)

// Register creates an account and returns its access token.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.postJSON(ctx, pathRegister, req, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, errors.New("register response carried no access token")
	}
	return &resp, nil
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.postJSON(ctx, pathLogin, req, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, errors.New("login response carried no access token")
	}
	return &resp, nil
}

// Profile returns the user owning the persisted token.
func (c *Client) Profile(ctx context.Context) (*models.ProfileResponse, error) {
	var resp models.ProfileResponse
	if err := c.getJSON(ctx, pathProfile, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
