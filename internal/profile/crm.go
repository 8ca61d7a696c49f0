package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/campuskit/advisor/internal/reliability"
)

// CRMClient talks to a CRM-style HTTP API for profiles and intents.
type CRMClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewCRMClient(baseURL, apiKey string) *CRMClient {
	return &CRMClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type crmContact struct {
	UserID     string            `json:"user_id"`
	Attributes map[string]string `json:"attributes"`
}

func (c *CRMClient) FetchProfile(ctx context.Context, userID string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/contacts/"+userID, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("create profile request: %w", err)
	}
	c.authorize(req)

	res, err := c.client.Do(req)
	if err != nil {
		return Profile{}, reliability.Transient("crm", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		// Unknown users are not an error; the turn simply runs without
		// personalization.
		return Profile{UserID: userID, Attributes: map[string]string{}, LastSyncedAt: time.Now().UTC()}, nil
	case res.StatusCode != http.StatusOK:
		err := fmt.Errorf("crm status %d", res.StatusCode)
		if reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return Profile{}, reliability.Transient("crm", err)
		}
		return Profile{}, err
	}

	var contact crmContact
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&contact); err != nil {
		return Profile{}, fmt.Errorf("decode contact: %w", err)
	}
	if contact.Attributes == nil {
		contact.Attributes = map[string]string{}
	}
	return Profile{
		UserID:       userID,
		Attributes:   contact.Attributes,
		LastSyncedAt: time.Now().UTC(),
	}, nil
}

type submitIntentRequest struct {
	UserID     string            `json:"user_id"`
	Type       string            `json:"type"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

func (c *CRMClient) SubmitIntent(ctx context.Context, userID string, intent Intent, idempotencyKey string) (PendingIntent, error) {
	payload, err := json.Marshal(submitIntentRequest{
		UserID:     userID,
		Type:       intent.Type,
		Parameters: intent.Parameters,
	})
	if err != nil {
		return PendingIntent{}, fmt.Errorf("marshal intent: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/intents", bytes.NewReader(payload))
	if err != nil {
		return PendingIntent{}, fmt.Errorf("create intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	c.authorize(req)

	res, err := c.client.Do(req)
	if err != nil {
		return PendingIntent{}, reliability.Transient("crm", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		err := fmt.Errorf("crm intent status %d", res.StatusCode)
		if reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return PendingIntent{}, reliability.Transient("crm", err)
		}
		return PendingIntent{}, err
	}

	var pending PendingIntent
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&pending); err != nil {
		return PendingIntent{}, fmt.Errorf("decode pending intent: %w", err)
	}
	return pending, nil
}

func (c *CRMClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
