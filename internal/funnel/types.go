package funnel

import (
	"context"

	"funnelboard_backend/internal/chatwoot"
)

// attributeKey is the contact custom attribute holding the funnel stage.
const attributeKey = "funil_de_vendas"

// ContactAPI is the slice of the Chatwoot client the stage mover consumes.
// Narrowing the dependency keeps the mover testable against fakes.
type ContactAPI interface {
	UpdateContactAttributes(ctx context.Context, contactID string, attrs map[string]interface{}) error
	ContactLabels(ctx context.Context, contactID string) ([]string, error)
	SetContactLabels(ctx context.Context, contactID string, labels []string) ([]string, error)
	ContactConversations(ctx context.Context, contactID string) ([]chatwoot.RawConversation, error)
	ConversationLabels(ctx context.Context, conversationID string) ([]string, error)
	SetConversationLabels(ctx context.Context, conversationID string, labels []string) ([]string, error)
}

// ConversationResult reports the label set written to one conversation.
type ConversationResult struct {
	ConversationID string   `json:"conversationId"`
	Labels         []string `json:"labels"`
}

// MoveResult is the outcome of a completed stage move.
type MoveResult struct {
	OK            bool                 `json:"ok"`
	Stage         string               `json:"stage"`
	Label         string               `json:"label"`
	Labels        []string             `json:"labels"`
	Conversations []ConversationResult `json:"conversations"`
}
