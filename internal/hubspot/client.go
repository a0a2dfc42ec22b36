// Package hubspot talks to the HubSpot CRM: it decodes webhook events and
// writes validation outcomes back onto contacts.
package hubspot

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

	"golang.org/x/oauth2"

	"github.com/ignite/email-validator/internal/config"
	"github.com/ignite/email-validator/internal/domain"
	"github.com/ignite/email-validator/internal/pkg/httpretry"
)

// Contact properties written after validation.
const (
	PropEmail            = "email"
	PropValidationStatus = "email_validation_status"
	PropRecheckNeeded    = "email_recheck_needed"
	PropLastChecked      = "email_last_checked"
	PropOriginalEmail    = "email_original"
	PropWasCorrected     = "email_was_corrected"
)

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hubspot API error (status %d): %s", e.StatusCode, e.Body)
}

// Client is a HubSpot CRM v3 API client authenticated with a private app
// access token.
type Client struct {
	baseURL    string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a client that retries transient failures.
func NewClient(cfg config.HubSpotConfig) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey, TokenType: "Bearer"})
	base := oauth2.NewClient(context.Background(), src)
	base.Timeout = cfg.Timeout()

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpretry.NewRetryClient(base, cfg.MaxRetries),
	}
}

// UpdateContact sets properties on the contact with the given ID.
func (c *Client) UpdateContact(ctx context.Context, contactID string, props map[string]string) error {
	if contactID == "" {
		return fmt.Errorf("update contact: missing contact id")
	}
	body, err := json.Marshal(map[string]any{"properties": props})
	if err != nil {
		return fmt.Errorf("encoding contact update: %w", err)
	}

	endpoint := c.baseURL + "/crm/v3/objects/contacts/" + url.PathEscape(contactID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(msg)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ContactProperties maps a verdict onto the contact properties pushed back
// to the CRM. The original address is only sent when it was corrected.
func ContactProperties(v domain.Verdict) map[string]string {
	props := map[string]string{
		PropEmail:            v.CurrentAddress,
		PropValidationStatus: string(v.Status),
		PropRecheckNeeded:    formatBool(v.RecheckNeeded),
		PropLastChecked:      v.CheckedAt.UTC().Format(time.RFC3339),
	}
	if v.WasCorrected {
		props[PropOriginalEmail] = v.OriginalAddress
		props[PropWasCorrected] = formatBool(true)
	}
	return props
}
