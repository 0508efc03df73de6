package goqsw

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// loginRequest is the users/login payload. The password crosses the wire
// base64-encoded; that is the vendor contract, not a security boundary — the
// transport is expected to be secured separately.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) loginRequired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, hasCookie := c.cookies[cookieSessionID]
	_, hasAuth := c.headers[headerAuthorization]
	return c.apiKey == "" || !hasCookie || !hasAuth
}

func (c *Client) clearLogin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = ""
	delete(c.cookies, cookieSessionID)
	delete(c.headers, headerAuthorization)
}

// login performs a fresh login, replacing any held credential. Callers must
// hold loginMu.
func (c *Client) login(ctx context.Context) error {
	c.clearLogin()

	params := loginRequest{
		Username: c.opts.User,
		Password: base64.StdEncoding.EncodeToString([]byte(c.opts.Password)),
	}
	resp, err := c.PostUsersLogin(ctx, params)
	if err != nil {
		if errors.Is(err, ErrLogin) {
			return err
		}
		if errors.Is(err, ErrAPI) {
			return fmt.Errorf("%w: %v", ErrLogin, err)
		}
		return err
	}

	var token string
	if resp.Result == nil || json.Unmarshal(resp.Result, &token) != nil || token == "" {
		return fmt.Errorf("%w: invalid login response", ErrLogin)
	}

	c.mu.Lock()
	c.apiKey = token
	c.cookies[cookieSessionID] = token
	c.headers[headerAuthorization] = "Bearer " + token
	c.mu.Unlock()
	return nil
}

// Login forces a fresh login, replacing any held credential. Logins never run
// concurrently with each other.
func (c *Client) Login(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	return c.login(ctx)
}

// EnsureLoggedIn logs in when no credential is held. Otherwise it verifies
// the session with a cheap call and logs in again once if the device
// rejected it.
func (c *Client) EnsureLoggedIn(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	if c.loginRequired() {
		return c.login(ctx)
	}
	if _, err := c.GetUsersVerification(ctx); err != nil {
		if errors.Is(err, ErrLogin) {
			return c.login(ctx)
		}
		return err
	}
	return nil
}

// Logout ends the session. The exit call is best effort: failures are
// swallowed and the local credential is cleared regardless.
func (c *Client) Logout(ctx context.Context) {
	if !c.loginRequired() {
		if _, err := c.PostUsersExit(ctx); err != nil {
			c.log.Debugf("qsw logout: %v", err)
		}
	}
	c.clearLogin()
}
