package goqsw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// ConnectionOptions identify one switch.
type ConnectionOptions struct {
	URL      string
	User     string
	Password string
}

// Response is the envelope every JSON endpoint replies with. Result is left
// raw because its shape depends on the endpoint (object, list or string).
type Response struct {
	ErrorCode    int             `json:"error_code"`
	ErrorMessage string          `json:"error_message"`
	Result       json.RawMessage `json:"result"`
}

// Client talks to the QSW management API and owns the session credential.
// Requests are capped at httpMaxRequests in flight so that several consumers
// sharing one client cannot flood the switch.
type Client struct {
	http *http.Client
	opts ConnectionOptions
	log  *logrus.Logger
	sem  *semaphore.Weighted

	loginMu sync.Mutex // serializes login attempts

	mu      sync.RWMutex // guards the credential state below
	apiKey  string
	cookies map[string]string
	headers map[string]string
}

// NewClient builds a client for the switch at opts.URL. A nil httpClient gets
// a default one with the fixed per-call timeout.
func NewClient(httpClient *http.Client, opts ConnectionOptions) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: httpCallTimeout}
	}
	return &Client{
		http: httpClient,
		opts: opts,
		log:  logrus.StandardLogger(),
		sem:  semaphore.NewWeighted(httpMaxRequests),
		cookies: map[string]string{
			cookieLanguage: defaultLanguage,
		},
		headers: map[string]string{},
	}
}

// SetLogger replaces the default logrus logger.
func (c *Client) SetLogger(log *logrus.Logger) {
	if log != nil {
		c.log = log
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, []byte, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, newAPIError(ErrAPI, method, path, 0, "", err)
		}
		body = bytes.NewReader(buf)
	}

	url := strings.TrimRight(c.opts.URL, "/") + "/" + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, nil, newAPIError(ErrInvalidHost, method, path, 0, "", err)
	}

	c.mu.RLock()
	for name, value := range c.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	for name, value := range c.headers {
		req.Header.Set(name, value)
	}
	c.mu.RUnlock()
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, newAPIError(ErrInvalidHost, method, path, 0, "", err)
	}
	defer c.sem.Release(1)

	c.log.Debugf("qsw request: %s /%s", method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		kind := ErrInvalidHost
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			kind = ErrAPITimeout
		}
		return nil, nil, newAPIError(kind, method, path, 0, "", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, newAPIError(ErrInvalidResponse, method, path, resp.StatusCode, "", err)
	}
	return resp, raw, nil
}

func statusError(method, path string, status int, body string) *APIError {
	switch status {
	case http.StatusUnauthorized:
		return newAPIError(ErrLogin, method, path, status, body, nil)
	case http.StatusInternalServerError:
		return newAPIError(ErrInternalServer, method, path, status, body, nil)
	default:
		return newAPIError(ErrAPI, method, path, status, body, nil)
	}
}

// request performs one JSON API call and decodes the response envelope.
func (c *Client) request(ctx context.Context, method, path string, payload any) (*Response, error) {
	resp, raw, err := c.do(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	c.log.Debugf("qsw response: %s /%s HTTP=%d", method, path, resp.StatusCode)

	var env Response
	if jerr := json.Unmarshal(raw, &env); jerr != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, statusError(method, path, resp.StatusCode, string(raw))
		}
		return nil, newAPIError(ErrInvalidResponse, method, path, resp.StatusCode, string(raw), jerr)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(method, path, resp.StatusCode, string(raw))
	}
	return &env, nil
}

// requestBytes performs one API call and returns the body verbatim. Used for
// the config backup, which is not JSON.
func (c *Client) requestBytes(ctx context.Context, method, path string, payload any) ([]byte, error) {
	resp, raw, err := c.do(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(method, path, resp.StatusCode, string(raw))
	}
	return raw, nil
}

// authRequest is request plus the single transparent re-login: a 401 on an
// authenticated call triggers exactly one fresh login and one retry.
func (c *Client) authRequest(ctx context.Context, method, path string, payload any) (*Response, error) {
	env, err := c.request(ctx, method, path, payload)
	if err != nil && errors.Is(err, ErrLogin) {
		if lerr := c.Login(ctx); lerr != nil {
			return nil, lerr
		}
		return c.request(ctx, method, path, payload)
	}
	return env, err
}

func (c *Client) authRequestBytes(ctx context.Context, method, path string, payload any) ([]byte, error) {
	raw, err := c.requestBytes(ctx, method, path, payload)
	if err != nil && errors.Is(err, ErrLogin) {
		if lerr := c.Login(ctx); lerr != nil {
			return nil, lerr
		}
		return c.requestBytes(ctx, method, path, payload)
	}
	return raw, err
}

// GetAbout fetches the unauthenticated about endpoint.
func (c *Client) GetAbout(ctx context.Context) (*Response, error) {
	return c.request(ctx, http.MethodGet, apiPath+"/about", nil)
}

// GetLive probes device liveness. It needs no session.
func (c *Client) GetLive(ctx context.Context) (*Response, error) {
	return c.request(ctx, http.MethodGet, apiPath+"/live", nil)
}

func (c *Client) GetFirmwareCondition(ctx context.Context) (*Response, error) {
	return c.authRequest(ctx, http.MethodGet, apiPathV1+"/firmware/condition", nil)
}

func (c *Client) GetFirmwareInfo(ctx context.Context) (*Response, error) {
	return c.authRequest(ctx, http.MethodGet, apiPathV1+"/firmware/info", nil)
}

func (c *Client) GetFirmwareStatus(ctx context.Context) (*Response, error) {
	return c.authRequest(ctx, http.MethodGet, apiPathV1+"/firmware/status", nil)
}

func (c *Client) GetFirmwareUpdate(ctx context.Context) (*Response, error) {
	return c.authRequest(ctx, http.MethodGet, apiPathV1+"/firmware/update", nil)
}

func (c *Client) GetFirmwareUpdateCheck(ctx context.Context) (*Response, error) {
	return c.authRequest(ctx, http.MethodGet, apiPathV1+"/firmware/update/check", nil)
}

func (c *Client) GetLACPInfo(ctx context.Context) (*Response, error) {
	return c.authRequest(ctx, http.MethodGet, apiPathV1+"/lacp/info", nil)
}

func (c *Client) GetPortsStatistics(ctx context.Context) (*Response, error) {
	return c.authRequest(ctx, http.MethodGet, apiPathV1+"/ports/statistics", nil)
}

func (c *Client) GetPortsStatus(ctx context.Context) (*Response, error) {
	return c.authRequest(ctx, http.MethodGet, apiPathV1+"/ports/status", nil)
}

func (c *Client) GetSystemBoard(ctx context.Context) (*Response, error) {
	return c.authRequest(ctx, http.MethodGet, apiPathV1+"/system/board", nil)
}

// GetSystemConfig downloads the device configuration as an opaque blob.
func (c *Client) GetSystemConfig(ctx context.Context) ([]byte, error) {
	return c.authRequestBytes(ctx, http.MethodGet, apiPathV1+"/system/config", nil)
}

func (c *Client) GetSystemSensor(ctx context.Context) (*Response, error) {
	return c.authRequest(ctx, http.MethodGet, apiPathV1+"/system/sensor", nil)
}

func (c *Client) GetSystemTime(ctx context.Context) (*Response, error) {
	return c.authRequest(ctx, http.MethodGet, apiPathV1+"/system/time", nil)
}

// GetUsersVerification checks the held credential. It is deliberately on the
// non-retrying path; EnsureLoggedIn decides what to do with a rejection.
func (c *Client) GetUsersVerification(ctx context.Context) (*Response, error) {
	return c.request(ctx, http.MethodGet, apiPathV1+"/users/verification", nil)
}

func (c *Client) PostSystemCommand(ctx context.Context, command string) (*Response, error) {
	payload := map[string]string{"command": command}
	return c.authRequest(ctx, http.MethodPost, apiPathV1+"/system/command", payload)
}

func (c *Client) PostFirmwareUpdateLive(ctx context.Context) (*Response, error) {
	return c.authRequest(ctx, http.MethodPost, apiPathV1+"/firmware/update/live", struct{}{})
}

func (c *Client) PostUsersExit(ctx context.Context) (*Response, error) {
	return c.request(ctx, http.MethodPost, apiPathV1+"/users/exit", struct{}{})
}

func (c *Client) PostUsersLogin(ctx context.Context, params loginRequest) (*Response, error) {
	return c.request(ctx, http.MethodPost, apiPathV1+"/users/login", params)
}
