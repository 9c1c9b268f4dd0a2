package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
)

const loginPath = "/sso/api/login"

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Code       string `json:"code"`
	RedirectTo string `json:"redirectTo"`
}

// Login exchanges the account's credentials for the bearer token that the
// streaming feed presents as a websocket subprotocol. The token rides back
// in the Authorization response header, not the body.
func (c *Client) Login(ctx context.Context) (string, error) {
	payload, err := sonic.Marshal(loginRequest{
		Username:   c.acc.Credentials.APIUsername,
		Password:   c.acc.Credentials.APIPassword,
		Code:       c.acc.Credentials.APICode,
		RedirectTo: "/",
	})
	if err != nil {
		return "", &AuthError{Account: c.acc.Name, Err: fmt.Errorf("marshal login: %w", err)}
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.acc.Credentials.APIBaseURL+loginPath,
		bytes.NewReader(payload),
	)
	if err != nil {
		return "", &AuthError{Account: c.acc.Name, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &AuthError{Account: c.acc.Name, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return "", &AuthError{Account: c.acc.Name, Err: fmt.Errorf("login http %d", resp.StatusCode)}
	}

	token := resp.Header.Get("Authorization")
	token = strings.TrimPrefix(token, "Bearer ")
	if token == "" {
		return "", &AuthError{Account: c.acc.Name, Err: fmt.Errorf("login returned no Authorization header")}
	}
	return token, nil
}
