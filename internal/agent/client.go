package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WireCommand is a queued command as delivered by the server. Payload is
// ciphertext until the dispatcher decrypts it.
type WireCommand struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// Client talks to the Couchpilot server on behalf of one device.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates an API client. apiKey may be empty for the activation
// call, which authenticates with the registration token instead.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// ActivationResult carries the identity the server assigns at activation.
type ActivationResult struct {
	DeviceID int64  `json:"device_id"`
	APIKey   string `json:"api_key"`
}

// Activate redeems a registration token, binding this device's public key.
func (c *Client) Activate(ctx context.Context, token, publicKey, name string) (*ActivationResult, error) {
	body, err := json.Marshal(map[string]string{
		"token":      token,
		"public_key": publicKey,
		"name":       name,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/devices/activate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var result ActivationResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CheckIn records liveness with the server.
func (c *Client) CheckIn(ctx context.Context) error {
	req, err := c.newAgentRequest(ctx, http.MethodPost, "/api/agent/checkin", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Poll fetches the device's due commands. Commands in the response are
// already marked sent server-side.
func (c *Client) Poll(ctx context.Context) ([]WireCommand, error) {
	req, err := c.newAgentRequest(ctx, http.MethodGet, "/api/agent/poll", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Commands []WireCommand `json:"commands"`
	}
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return result.Commands, nil
}

// ReportFailure tells the server a command could not be executed.
func (c *Client) ReportFailure(ctx context.Context, commandID int64, reason string) error {
	body, err := json.Marshal(map[string]string{"reason": reason})
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/api/agent/commands/%d/failure", commandID)
	req, err := c.newAgentRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) newAgentRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Access-Token", c.apiKey)
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
