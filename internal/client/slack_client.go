package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slackpost/internal/model"
)

// Scopes requested during workspace authorization.
var Scopes = []string{
	"channels:read",
	"groups:read",
	"chat:write",
	"chat:write.public",
	"users:read",
	"team:read",
}

// SlackClient is a stateless wrapper around the Slack Web API. It
// performs no retries and keeps no credential state; every call takes
// the access token it should use.
type SlackClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	redirectURI  string
	client       *http.Client
}

func NewSlackClient(baseURL, clientID, clientSecret, redirectURI string) *SlackClient {
	return &SlackClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SendResult is the outcome of one chat.postMessage call. When OK is
// false, Error holds the remote reason verbatim.
type SendResult struct {
	OK      bool   `json:"ok"`
	TS      string `json:"ts"`
	Channel string `json:"channel"`
	Error   string `json:"error"`
}

// TokenResponse is Slack's oauth.v2.access payload, shared by the code
// exchange and the refresh grant.
type TokenResponse struct {
	OK           bool   `json:"ok"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	Team         struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"team"`
	Error string `json:"error"`
}

type sendRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// SendMessage posts text to a channel. A transport or decode failure is
// returned as an error; a remote decline comes back as SendResult with
// OK=false. The access token is never included in errors.
func (c *SlackClient) SendMessage(ctx context.Context, accessToken, channelID, text string) (SendResult, error) {
	reqBody, err := json.Marshal(sendRequest{Channel: channelID, Text: text})
	if err != nil {
		return SendResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat.postMessage", bytes.NewReader(reqBody))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	var result SendResult
	if err := c.doJSON(req, &result); err != nil {
		return SendResult{}, err
	}
	return result, nil
}

// ExchangeCode trades an OAuth authorization code for a credential pair.
func (c *SlackClient) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"code":          {code},
		"redirect_uri":  {c.redirectURI},
	}
	return c.tokenCall(ctx, form)
}

// RefreshToken obtains a new access token using the refresh grant.
func (c *SlackClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return c.tokenCall(ctx, form)
}

func (c *SlackClient) tokenCall(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/oauth.v2.access", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	// Token responses carry credentials, so decode failures must not
	// echo the body the way doJSON does.
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	return &tr, nil
}

type channelsResponse struct {
	OK       bool            `json:"ok"`
	Channels []model.Channel `json:"channels"`
	Error    string          `json:"error"`
}

// ListChannels fetches the workspace's public and private channels.
func (c *SlackClient) ListChannels(ctx context.Context, accessToken string) ([]model.Channel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/conversations.list?types=public_channel,private_channel", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var cr channelsResponse
	if err := c.doJSON(req, &cr); err != nil {
		return nil, err
	}
	if !cr.OK {
		return nil, fmt.Errorf("conversations.list failed: %s", cr.Error)
	}
	return cr.Channels, nil
}

// AuthorizeURL builds the oauth/v2/authorize redirect target.
func (c *SlackClient) AuthorizeURL(state string) string {
	params := url.Values{
		"client_id":     {c.clientID},
		"scope":         {strings.Join(Scopes, ",")},
		"redirect_uri":  {c.redirectURI},
		"response_type": {"code"},
	}
	if state != "" {
		params.Set("state", state)
	}
	return c.baseURL + "/oauth/v2/authorize?" + params.Encode()
}

func (c *SlackClient) doJSON(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	return nil
}
