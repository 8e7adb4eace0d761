package board

import (
	"context"

	"funnelboard_backend/internal/chatwoot"
)

// ContactReader is the slice of the Chatwoot client the board consumes.
type ContactReader interface {
	ListContacts(ctx context.Context, page, perPage int, query string) (chatwoot.ContactsPage, error)
	ContactLabels(ctx context.Context, contactID string) ([]string, error)
	ContactConversations(ctx context.Context, contactID string) ([]chatwoot.RawConversation, error)
	ConversationLabels(ctx context.Context, conversationID string) ([]string, error)
}

// Inbox is the flattened contact inbox association.
type Inbox struct {
	SourceID string `json:"source_id"`
	InboxID  string `json:"inbox_id,omitempty"`
}

// Contact is the display-ready projection of an upstream contact. The raw
// upstream schema never leaves the board module.
type Contact struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name,omitempty"`
	Identifier       string                 `json:"identifier,omitempty"`
	Email            string                 `json:"email,omitempty"`
	PhoneNumber      string                 `json:"phone_number,omitempty"`
	ContactInboxes   []Inbox                `json:"contact_inboxes"`
	CustomAttributes map[string]interface{} `json:"custom_attributes"`
	UpdatedAt        float64                `json:"updated_at"`
	Stage            string                 `json:"stage"`
}

// Conversation is the projection served by the contact conversations
// endpoint, including the conversation's label set.
type Conversation struct {
	ID             string   `json:"id"`
	Status         string   `json:"status,omitempty"`
	UpdatedAt      float64  `json:"updated_at"`
	LastActivityAt float64  `json:"last_activity_at"`
	Labels         []string `json:"labels"`
}

// Column is one kanban column of the grouped board view.
type Column struct {
	Stage    string    `json:"stage"`
	Slug     string    `json:"slug"`
	Count    int       `json:"count"`
	Contacts []Contact `json:"contacts"`
}

// ListOptions controls a contact listing.
type ListOptions struct {
	Query    string
	PerPage  int
	MaxPages int
	Refresh  bool
}

// Pagination bounds. maxPagesCeiling caps the loop against a misbehaving
// upstream regardless of what the caller requests.
const (
	defaultPerPage  = 100
	defaultMaxPages = 50
	maxPagesCeiling = 200
)

func (o *ListOptions) normalize() {
	if o.PerPage < 1 {
		o.PerPage = defaultPerPage
	}
	if o.PerPage > defaultPerPage {
		o.PerPage = defaultPerPage
	}
	if o.MaxPages < 1 {
		o.MaxPages = defaultMaxPages
	}
	if o.MaxPages > maxPagesCeiling {
		o.MaxPages = maxPagesCeiling
	}
}
