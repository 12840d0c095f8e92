package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultAuthInfoURL    = "https://rpxnow.com/api/v2/auth_info"
	defaultRequestTimeout = 15 * time.Second
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("identity: rpx api key not configured")
	// ErrMissingToken is returned for an empty login token.
	ErrMissingToken = errors.New("identity: missing token")
)

// Profile is the subset of an RPX profile that ILog keeps.
type Profile struct {
	Identifier        string `json:"identifier"`
	ProviderName      string `json:"providerName"`
	PreferredUsername string `json:"preferredUsername"`
	DisplayName       string `json:"displayName"`
	Email             string `json:"email"`
	VerifiedEmail     string `json:"verifiedEmail"`
	Name              struct {
		Formatted string `json:"formatted"`
	} `json:"name"`
}

// BestEmail prefers the verified address.
func (p Profile) BestEmail() string {
	if p.VerifiedEmail != "" {
		return p.VerifiedEmail
	}
	return p.Email
}

// BestName returns a display name for pre-filling registration.
func (p Profile) BestName() string {
	switch {
	case strings.TrimSpace(p.DisplayName) != "":
		return strings.TrimSpace(p.DisplayName)
	case strings.TrimSpace(p.Name.Formatted) != "":
		return strings.TrimSpace(p.Name.Formatted)
	default:
		return p.PreferredUsername
	}
}

// APIError is a failure reported by the RPX service itself.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity: rpx error %d: %s", e.Code, e.Message)
}

type authInfoResponse struct {
	Stat    string    `json:"stat"`
	Profile *Profile  `json:"profile"`
	Err     *APIError `json:"err"`
}

// Client exchanges RPX login tokens for provider profiles.
type Client struct {
	url    string
	apiKey func() string
	client *http.Client
}

// NewClient returns a client reading the API key on every call so admin edits apply immediately.
func NewClient(apiKey func() string) *Client {
	return &Client{
		url:    defaultAuthInfoURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: defaultRequestTimeout},
	}
}

// WithEndpoint overrides the auth_info URL.
func (c *Client) WithEndpoint(endpoint string) *Client {
	if c != nil && strings.TrimSpace(endpoint) != "" {
		c.url = endpoint
	}
	return c
}

// AuthInfo resolves a login token posted by the RPX widget.
func (c *Client) AuthInfo(ctx context.Context, token string) (*Profile, error) {
	if c == nil || c.apiKey == nil || strings.TrimSpace(c.apiKey()) == "" {
		return nil, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	if ctx == nil {
		ctx = context.Background()
	}

	form := url.Values{}
	form.Set("apiKey", c.apiKey())
	form.Set("token", token)
	form.Set("format", "json")

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if errReq != nil {
		return nil, fmt.Errorf("identity: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, errDo := c.client.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("identity: request failed: %w", errDo)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("identity: close response body failed")
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("identity: unexpected status %d", resp.StatusCode)
	}
	body, errRead := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if errRead != nil {
		return nil, fmt.Errorf("identity: read response: %w", errRead)
	}

	var payload authInfoResponse
	if errDecode := json.Unmarshal(body, &payload); errDecode != nil {
		return nil, fmt.Errorf("identity: decode response: %w", errDecode)
	}
	if payload.Stat != "ok" {
		if payload.Err != nil {
			return nil, payload.Err
		}
		return nil, fmt.Errorf("identity: rpx stat %q", payload.Stat)
	}
	if payload.Profile == nil || strings.TrimSpace(payload.Profile.Identifier) == "" {
		return nil, fmt.Errorf("identity: profile without identifier")
	}
	return payload.Profile, nil
}
