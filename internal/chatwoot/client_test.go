package chatwoot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"funnelboard_backend/platform/logger"
)

type testConfig struct {
	baseURL   string
	accountID string
	token     string
}

func (c testConfig) GetChatwootBaseURL() string        { return c.baseURL }
func (c testConfig) GetChatwootAccountID() string      { return c.accountID }
func (c testConfig) GetChatwootToken() string          { return c.token }
func (c testConfig) GetChatwootTimeout() time.Duration { return 2 * time.Second }
func (c testConfig) IsChatwootConfigured() bool        { return c.accountID != "" && c.token != "" }

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(testConfig{baseURL: srv.URL, accountID: "7", token: "secret"}, logger.New("development"))
	if client == nil {
		t.Fatalf("client should be configured")
	}
	return client, srv
}

func TestNewClient_NilWhenUnconfigured(t *testing.T) {
	if c := NewClient(testConfig{baseURL: "https://app.chatwoot.com"}, logger.New("development")); c != nil {
		t.Fatalf("expected nil client without credentials")
	}
}

func TestClient_SendsAuthHeaderAndAccountPath(t *testing.T) {
	var gotPath, gotToken, gotQuery string
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("api_access_token")
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(ContactsPage{})
	})

	if _, err := client.ListContacts(context.Background(), 2, 50, "ana"); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if gotPath != "/api/v1/accounts/7/contacts" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotToken != "secret" {
		t.Fatalf("api_access_token = %q", gotToken)
	}
	if gotQuery != "page=2&per_page=50&q=ana" {
		t.Fatalf("query = %q", gotQuery)
	}
}

func TestClient_ListContactsDecodesFlexibleIDs(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{
			"payload": [
				{"id": 5, "name": "Ana", "updated_at": 1700000000},
				{"id": "6", "name": "Bia", "updated_at": "2023-11-14T00:00:00Z"}
			],
			"meta": {"current_page": "1", "total_pages": 3, "next_page": 2}
		}`))
	})

	page, err := client.ListContacts(context.Background(), 1, 100, "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page.Payload) != 2 {
		t.Fatalf("payload = %d contacts", len(page.Payload))
	}
	if page.Payload[0].ID.String() != "5" || page.Payload[1].ID.String() != "6" {
		t.Fatalf("ids = %q, %q", page.Payload[0].ID, page.Payload[1].ID)
	}
	if page.Payload[1].UpdatedAt.Unix() == 0 {
		t.Fatalf("RFC 3339 updated_at should decode to a timestamp")
	}
	if page.Meta == nil || page.Meta.NextPage.IntOr(0) != 2 || page.Meta.TotalPages.IntOr(0) != 3 {
		t.Fatalf("meta = %+v", page.Meta)
	}
}

func TestClient_SetContactLabelsSendsAndReturnsPayload(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/accounts/7/contacts/42/labels" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string][]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string][]string{"payload": body["labels"]})
	})

	labels, err := client.SetContactLabels(context.Background(), "42", []string{"vip", "proposta"})
	if err != nil {
		t.Fatalf("set labels failed: %v", err)
	}
	if want := []string{"vip", "proposta"}; !reflect.DeepEqual(labels, want) {
		t.Fatalf("acked labels = %v, want %v", labels, want)
	}
}

func TestClient_NonJSONErrorBodyWrappedAsRaw(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	})

	_, err := client.ContactLabels(context.Background(), "42")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error = %#v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Fatalf("status = %d", apiErr.Status)
	}
	data, ok := apiErr.Data.(map[string]interface{})
	if !ok || data["raw"] != "upstream exploded" {
		t.Fatalf("data = %#v, want raw wrapper", apiErr.Data)
	}
}

func TestClient_JSONErrorBodyPassedThrough(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "Resource could not be found"}`))
	})

	err := client.UpdateContactAttributes(context.Background(), "42", map[string]interface{}{"funil_de_vendas": "Proposta"})
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Status != http.StatusNotFound {
		t.Fatalf("error = %#v, want 404 *APIError", err)
	}
	data, ok := apiErr.Data.(map[string]interface{})
	if !ok || data["error"] != "Resource could not be found" {
		t.Fatalf("data = %#v", apiErr.Data)
	}
}

func TestClient_MalformedSuccessBodyTolerated(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json at all"))
	})

	labels, err := client.ContactLabels(context.Background(), "42")
	if err != nil {
		t.Fatalf("malformed 2xx body should not fail: %v", err)
	}
	if labels != nil {
		t.Fatalf("labels = %v, want none", labels)
	}
}

func TestClient_TransportFailureHasZeroStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client := NewClient(testConfig{baseURL: srv.URL, accountID: "7", token: "secret"}, logger.New("development"))
	srv.Close() // connection refused from here on

	_, err := client.ContactLabels(context.Background(), "42")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error = %#v, want *APIError", err)
	}
	if apiErr.Status != 0 {
		t.Fatalf("status = %d, want 0 for transport failure", apiErr.Status)
	}
	if apiErr.Unwrap() == nil {
		t.Fatalf("transport failure should carry the underlying error")
	}
}

func TestClient_PathEscapesIDs(t *testing.T) {
	var gotPath string
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_ = json.NewEncoder(w).Encode(map[string][]string{"payload": {}})
	})

	if _, err := client.ConversationLabels(context.Background(), "9/../../admin"); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if gotPath != "/api/v1/accounts/7/conversations/9%2F..%2F..%2Fadmin/labels" {
		t.Fatalf("path = %q", gotPath)
	}
}
