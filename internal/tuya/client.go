// Package tuya is a small client for the Tuya cloud OpenAPI: token
// management, request signing, device status and device commands.
package tuya

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	signMethod = "HMAC-SHA256"

	codeTokenInvalid = 1010

	tokenExpiryBuffer = 60 * time.Second
	maxErrorBody      = 512
)

var regionURLs = map[string]string{
	"cn":   "https://openapi.tuyacn.com",
	"us":   "https://openapi.tuyaus.com",
	"us-e": "https://openapi-ueaz.tuyaus.com",
	"eu":   "https://openapi.tuyaeu.com",
	"eu-w": "https://openapi-weaz.tuyaeu.com",
	"in":   "https://openapi.tuyain.com",
}

// RegionURL maps a short region name to its OpenAPI endpoint.
func RegionURL(region string) (string, error) {
	u, ok := regionURLs[strings.ToLower(region)]
	if !ok {
		return "", fmt.Errorf("unknown tuya region %q", region)
	}
	return u, nil
}

// DataPoint is one device property ("DP") as exchanged with the cloud.
type DataPoint struct {
	Code  string `json:"code"`
	Value any    `json:"value"`
}

type response struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Result  json.RawMessage `json:"result"`
}

type tokenResult struct {
	AccessToken string `json:"access_token"`
	ExpireTime  int64  `json:"expire_time"`
}

// APIError is an unsuccessful response body from the OpenAPI.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tuya api error %d: %s", e.Code, e.Msg)
}

type Client struct {
	baseURL  string
	clientID string
	secret   string
	http     *http.Client
	now      func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(baseURL, clientID, secret string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		secret:   secret,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

// GetStatus returns the current data points of deviceID.
func (c *Client) GetStatus(ctx context.Context, deviceID string) ([]DataPoint, error) {
	raw, err := c.call(ctx, http.MethodGet, "/v1.0/iot-03/devices/"+url.PathEscape(deviceID)+"/status", nil)
	if err != nil {
		return nil, err
	}
	var dps []DataPoint
	if err := json.Unmarshal(raw, &dps); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return dps, nil
}

// SendCommands writes data points to deviceID.
func (c *Client) SendCommands(ctx context.Context, deviceID string, commands []DataPoint) error {
	body, err := json.Marshal(map[string]any{"commands": commands})
	if err != nil {
		return fmt.Errorf("failed to marshal commands: %w", err)
	}
	raw, err := c.call(ctx, http.MethodPost, "/v1.0/iot-03/devices/"+url.PathEscape(deviceID)+"/commands", body)
	if err != nil {
		return err
	}

	var ok bool
	if err := json.Unmarshal(raw, &ok); err == nil && !ok {
		return fmt.Errorf("device rejected commands")
	}
	return nil
}

// call performs a signed business request, refreshing the token once if the
// API reports it as invalid.
func (c *Client) call(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}

		raw, err := c.do(ctx, method, path, body, token)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == codeTokenInvalid && attempt == 0 {
			log.Debug().Msg("Tuya access token rejected, refreshing")
			c.clearToken()
			continue
		}
		return raw, err
	}
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	raw, err := c.do(ctx, http.MethodGet, "/v1.0/token?grant_type=1", nil, "")
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	var tr tokenResult
	if err := json.Unmarshal(raw, &tr); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("empty access token")
	}

	c.token = tr.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(tr.ExpireTime)*time.Second - tokenExpiryBuffer)

	log.Debug().Time("expires", c.tokenExpiry).Msg("Obtained Tuya access token")
	return c.token, nil
}

func (c *Client) clearToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, token string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	t := strconv.FormatInt(c.now().UnixMilli(), 10)
	nonce := uuid.NewString()
	sign := Sign(c.secret, c.clientID, token, t, nonce, StringToSign(method, body, req.URL))

	req.Header.Set("client_id", c.clientID)
	req.Header.Set("sign_method", signMethod)
	req.Header.Set("t", t)
	req.Header.Set("nonce", nonce)
	req.Header.Set("sign", sign)
	if token != "" {
		req.Header.Set("access_token", token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("tuya returned non-success status: %d %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !r.Success {
		return nil, &APIError{Code: r.Code, Msg: r.Msg}
	}
	return r.Result, nil
}

// StringToSign builds the canonical request string: method, body digest,
// signed headers (none) and the path with its query sorted by key.
func StringToSign(method string, body []byte, u *url.URL) string {
	digest := sha256.Sum256(body)

	canonical := u.EscapedPath()
	if q := u.Query(); len(q) > 0 {
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+q.Get(k))
		}
		canonical += "?" + strings.Join(pairs, "&")
	}

	return strings.Join([]string{method, hex.EncodeToString(digest[:]), "", canonical}, "\n")
}

// Sign computes the upper-case hex HMAC-SHA256 request signature.
func Sign(secret, clientID, token, t, nonce, stringToSign string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(clientID + token + t + nonce + stringToSign))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}
