// Package chatwoot provides the HTTP client for the Chatwoot application API.
package chatwoot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"funnelboard_backend/platform/config"
	"funnelboard_backend/platform/logger"
)

// APIError is the failure returned for any Chatwoot call that did not
// complete with a 2xx status. Status is 0 when the request never produced
// a response (transport failure or timeout); Data holds the decoded response
// body, or {"raw": text} when the body was not valid JSON. Callers
// differentiate failures by Status and body shape only.
type APIError struct {
	Status int
	Data   interface{}
	err    error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.err != nil {
		return "chatwoot request failed: " + e.err.Error()
	}
	return fmt.Sprintf("chatwoot API error: %d", e.Status)
}

// Unwrap returns the transport error, if any.
func (e *APIError) Unwrap() error { return e.err }

// Client is the authenticated HTTP client for one Chatwoot account.
type Client struct {
	baseURL    string
	accountID  string
	token      string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a Chatwoot API client from configuration.
// Returns nil when the account id or access token is missing; services treat
// a nil client as "not configured" and fail fast without issuing calls.
func NewClient(cfg config.ChatwootConfig, log *logger.Logger) *Client {
	if !cfg.IsChatwootConfigured() {
		return nil
	}

	return &Client{
		baseURL:    cfg.GetChatwootBaseURL(),
		accountID:  cfg.GetChatwootAccountID(),
		token:      cfg.GetChatwootToken(),
		httpClient: &http.Client{Timeout: cfg.GetChatwootTimeout()},
		log:        log,
	}
}

// accountPath builds a path under /api/v1/accounts/{accountID}.
func (c *Client) accountPath(format string, ids ...string) string {
	escaped := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		escaped = append(escaped, url.PathEscape(id))
	}
	return "/api/v1/accounts/" + url.PathEscape(c.accountID) + fmt.Sprintf(format, escaped...)
}

// call performs one authenticated JSON request. On 2xx the body is decoded
// into out when provided; a malformed 2xx body is not an error, callers
// simply find expected fields absent. Non-2xx and transport failures return
// an *APIError. There is no retry here; retry policy belongs to callers.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &APIError{err: fmt.Errorf("marshal request body: %w", err)}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &APIError{err: err}
	}
	req.Header.Set("api_access_token", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.UpstreamError(method+" "+path, 0, err)
		return &APIError{err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{Status: resp.StatusCode, Data: decodeLoose(text)}
		c.log.UpstreamError(method+" "+path, resp.StatusCode, apiErr)
		return apiErr
	}

	if out != nil && len(bytes.TrimSpace(text)) > 0 {
		_ = json.Unmarshal(text, out)
	}
	return nil
}

// decodeLoose parses a response body as JSON, wrapping non-JSON text as
// {"raw": text} rather than failing.
func decodeLoose(text []byte) interface{} {
	trimmed := bytes.TrimSpace(text)
	if len(trimmed) == 0 {
		return nil
	}
	var data interface{}
	if err := json.Unmarshal(trimmed, &data); err != nil {
		return map[string]interface{}{"raw": string(text)}
	}
	return data
}

// ListContacts fetches one page of the account's contacts. query is the
// optional free-text search; page is 1-based.
func (c *Client) ListContacts(ctx context.Context, page, perPage int, query string) (ContactsPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))
	if query != "" {
		params.Set("q", query)
	}

	var result ContactsPage
	err := c.call(ctx, http.MethodGet, c.accountPath("/contacts")+"?"+params.Encode(), nil, &result)
	return result, err
}

// UpdateContactAttributes writes the contact's custom attributes. Only the
// attributes present in attrs change; the upstream merges per key.
func (c *Client) UpdateContactAttributes(ctx context.Context, contactID string, attrs map[string]interface{}) error {
	body := map[string]interface{}{"custom_attributes": attrs}
	return c.call(ctx, http.MethodPut, c.accountPath("/contacts/%s", contactID), body, nil)
}

// ContactLabels fetches the contact's current label set.
func (c *Client) ContactLabels(ctx context.Context, contactID string) ([]string, error) {
	var result labelsPayload
	if err := c.call(ctx, http.MethodGet, c.accountPath("/contacts/%s/labels", contactID), nil, &result); err != nil {
		return nil, err
	}
	return result.Payload, nil
}

// SetContactLabels overwrites the contact's label set and returns the set
// the upstream acknowledged.
func (c *Client) SetContactLabels(ctx context.Context, contactID string, labels []string) ([]string, error) {
	var result labelsPayload
	body := map[string]interface{}{"labels": labels}
	if err := c.call(ctx, http.MethodPost, c.accountPath("/contacts/%s/labels", contactID), body, &result); err != nil {
		return nil, err
	}
	return result.Payload, nil
}

// ContactConversations fetches all conversations of a contact.
func (c *Client) ContactConversations(ctx context.Context, contactID string) ([]RawConversation, error) {
	var result conversationsPayload
	if err := c.call(ctx, http.MethodGet, c.accountPath("/contacts/%s/conversations", contactID), nil, &result); err != nil {
		return nil, err
	}
	return result.Payload, nil
}

// ConversationLabels fetches a conversation's current label set.
func (c *Client) ConversationLabels(ctx context.Context, conversationID string) ([]string, error) {
	var result labelsPayload
	if err := c.call(ctx, http.MethodGet, c.accountPath("/conversations/%s/labels", conversationID), nil, &result); err != nil {
		return nil, err
	}
	return result.Payload, nil
}

// SetConversationLabels overwrites a conversation's label set and returns
// the set the upstream acknowledged.
func (c *Client) SetConversationLabels(ctx context.Context, conversationID string, labels []string) ([]string, error) {
	var result labelsPayload
	body := map[string]interface{}{"labels": labels}
	if err := c.call(ctx, http.MethodPost, c.accountPath("/conversations/%s/labels", conversationID), body, &result); err != nil {
		return nil, err
	}
	return result.Payload, nil
}
