// Package funnel implements the stage-move synchronization protocol: one
// move updates the contact's funnel custom attribute, the contact's label
// set, and the label sets of the selected conversations, in that order,
// against an upstream that offers only per-resource atomicity. A failed
// step aborts the move and triggers a best-effort revert of everything
// already written.
package funnel

import (
	"context"
	"strings"
	"sync"

	"funnelboard_backend/internal/chatwoot"
	"funnelboard_backend/platform/apperr"
	"funnelboard_backend/platform/config"
	"funnelboard_backend/platform/logger"
	"funnelboard_backend/platform/slug"
)

// Service orchestrates stage moves.
type Service struct {
	api      ContactAPI
	strategy string
	log      *logger.Logger

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewService creates the stage mover. api may be nil when Chatwoot
// credentials are not configured; every move then fails fast without
// issuing calls. strategy is one of config.LabelStrategyMerge or
// config.LabelStrategyReplace.
func NewService(api ContactAPI, strategy string, log *logger.Logger) *Service {
	return &Service{
		api:      api,
		strategy: strategy,
		log:      log,
		pending:  make(map[string]struct{}),
	}
}

// progress tracks which forward steps completed, so revert touches only
// state the move actually wrote.
type progress struct {
	attributeDone bool
	labelsDone    bool
	conversations []ConversationResult
}

// Move changes a contact's funnel stage and propagates it to labels.
//
// previousStage is optional: nil means no revert is possible and no prior
// stage slug is removed during reconciliation. An empty previous stage is
// meaningful (the contact had no funnel) and maps to the sem_funil slug.
//
// Steps run strictly in order; the first failure aborts the rest, triggers
// the revert, and becomes the caller's error. Revert failures are logged
// and swallowed. No step is retried.
func (s *Service) Move(ctx context.Context, contactID, newStage string, previousStage *string) (MoveResult, error) {
	if s.api == nil {
		return MoveResult{}, apperr.Validation("CHATWOOT_ACCOUNT_ID and CHATWOOT_API_ACCESS_TOKEN are not configured")
	}

	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return MoveResult{}, apperr.BadRequest("contact id is required")
	}

	if !s.acquire(contactID) {
		return MoveResult{}, apperr.Conflict("a move for this contact is already in progress")
	}
	defer s.release(contactID)

	// A client disconnect must not abort a move mid-sequence; per-call
	// timeouts still bound each upstream request.
	ctx = context.WithoutCancel(ctx)

	stage := strings.TrimSpace(newStage)
	newSlug := slug.Make(stage)
	var prog progress

	// Step 1: contact custom attribute (raw display text, not the slug).
	if err := s.api.UpdateContactAttributes(ctx, contactID, map[string]interface{}{attributeKey: stage}); err != nil {
		s.revert(ctx, contactID, previousStage, newSlug, prog)
		return MoveResult{}, chatwoot.AsAppError("funnel.update_attribute", err)
	}
	prog.attributeDone = true

	// Step 2: contact label reconciliation.
	contactLabels, err := s.reconcileContactLabels(ctx, contactID, newSlug, previousSlug(previousStage))
	if err != nil {
		s.revert(ctx, contactID, previousStage, newSlug, prog)
		return MoveResult{}, chatwoot.AsAppError("funnel.contact_labels", err)
	}
	prog.labelsDone = true

	// Step 3: conversation discovery and selection.
	conversations, err := s.api.ContactConversations(ctx, contactID)
	if err != nil {
		s.revert(ctx, contactID, previousStage, newSlug, prog)
		return MoveResult{}, chatwoot.AsAppError("funnel.list_conversations", err)
	}
	selected := SelectConversations(conversations)

	// Step 4: conversation label reconciliation, one at a time.
	results := make([]ConversationResult, 0, len(selected))
	for _, conversationID := range selected {
		labels, err := s.reconcileConversationLabels(ctx, conversationID, newSlug, previousSlug(previousStage))
		if err != nil {
			prog.conversations = results
			s.revert(ctx, contactID, previousStage, newSlug, prog)
			return MoveResult{}, chatwoot.AsAppError("funnel.conversation_labels", err)
		}
		results = append(results, ConversationResult{ConversationID: conversationID, Labels: labels})
	}

	return MoveResult{
		OK:            true,
		Stage:         slug.Display(stage),
		Label:         newSlug,
		Labels:        contactLabels,
		Conversations: results,
	}, nil
}

// previousSlug maps the optional previous stage to the slug to remove
// during reconciliation. Nil means nothing is removed.
func previousSlug(previousStage *string) string {
	if previousStage == nil {
		return ""
	}
	return slug.Make(*previousStage)
}

// reconcile computes the label set that carries addSlug and drops
// removeSlug, honoring the configured strategy. Merge preserves unrelated
// labels; replace collapses the set to the stage slug alone.
func (s *Service) reconcile(existing []string, addSlug, removeSlug string) []string {
	if s.strategy == config.LabelStrategyReplace {
		return []string{addSlug}
	}

	out := make([]string, 0, len(existing)+1)
	seen := make(map[string]struct{}, len(existing)+1)
	for _, label := range existing {
		trimmed := strings.TrimSpace(label)
		if trimmed == "" || trimmed == addSlug || (removeSlug != "" && trimmed == removeSlug) {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return append(out, addSlug)
}

func (s *Service) reconcileContactLabels(ctx context.Context, contactID, addSlug, removeSlug string) ([]string, error) {
	existing, err := s.api.ContactLabels(ctx, contactID)
	if err != nil {
		return nil, err
	}

	next := s.reconcile(existing, addSlug, removeSlug)
	acked, err := s.api.SetContactLabels(ctx, contactID, next)
	if err != nil {
		return nil, err
	}
	if acked == nil {
		// Upstream acknowledged without echoing the set back.
		return next, nil
	}
	return acked, nil
}

func (s *Service) reconcileConversationLabels(ctx context.Context, conversationID, addSlug, removeSlug string) ([]string, error) {
	existing, err := s.api.ConversationLabels(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	next := s.reconcile(existing, addSlug, removeSlug)
	acked, err := s.api.SetConversationLabels(ctx, conversationID, next)
	if err != nil {
		return nil, err
	}
	if acked == nil {
		return next, nil
	}
	return acked, nil
}

// revert makes a best-effort attempt to restore the prior stage after a
// failed forward step, in reverse order of the forward writes. It runs only
// when the caller supplied the previous stage. Every failure here is logged
// and swallowed so the forward error stays the one the caller sees.
func (s *Service) revert(ctx context.Context, contactID string, previousStage *string, newSlug string, prog progress) {
	if previousStage == nil {
		return
	}

	prevStage := strings.TrimSpace(*previousStage)
	prevSlug := slug.Make(prevStage)

	for i := len(prog.conversations) - 1; i >= 0; i-- {
		conversationID := prog.conversations[i].ConversationID
		if _, err := s.reconcileConversationLabels(ctx, conversationID, prevSlug, newSlug); err != nil {
			s.log.RevertFailed(contactID, "conversation_labels", err)
		}
	}

	if prog.labelsDone {
		if _, err := s.reconcileContactLabels(ctx, contactID, prevSlug, newSlug); err != nil {
			s.log.RevertFailed(contactID, "contact_labels", err)
		}
	}

	if prog.attributeDone {
		if err := s.api.UpdateContactAttributes(ctx, contactID, map[string]interface{}{attributeKey: prevStage}); err != nil {
			s.log.RevertFailed(contactID, "attribute", err)
		}
	}
}

// acquire marks a move as pending for the contact. Returns false when one
// is already in flight; concurrent moves for the same contact are rejected
// instead of interleaving their upstream writes.
func (s *Service) acquire(contactID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[contactID]; ok {
		return false
	}
	s.pending[contactID] = struct{}{}
	return true
}

func (s *Service) release(contactID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, contactID)
}
