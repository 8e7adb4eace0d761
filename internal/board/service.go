// Package board mirrors the upstream contact set into a display-ready
// kanban projection grouped by funnel stage. It holds no authoritative
// state: the optional cache is a disposable mirror, always reconcilable by
// re-fetching from the upstream.
package board

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"funnelboard_backend/internal/chatwoot"
	"funnelboard_backend/platform/apperr"
	"funnelboard_backend/platform/logger"
	"funnelboard_backend/platform/phone"
	"funnelboard_backend/platform/slug"

	"golang.org/x/sync/singleflight"
)

// Service lists, caches, and groups contacts.
type Service struct {
	api        ContactReader
	cache      *Cache
	stageOrder []string
	group      singleflight.Group
	log        *logger.Logger
}

// NewService creates the board service. api may be nil when Chatwoot
// credentials are not configured; cache may be nil when Redis is not
// configured. stageOrder is the optional configured column order.
func NewService(api ContactReader, cache *Cache, stageOrder []string, log *logger.Logger) *Service {
	return &Service{
		api:        api,
		cache:      cache,
		stageOrder: stageOrder,
		log:        log,
	}
}

var errNotConfigured = apperr.Validation("CHATWOOT_ACCOUNT_ID and CHATWOOT_API_ACCESS_TOKEN are not configured")

// ListContacts materializes the full contact set by paginating the upstream
// list endpoint. Results are served from the cache when fresh (unless
// Refresh is set), and concurrent refreshes for the same options collapse
// into one upstream fetch.
func (s *Service) ListContacts(ctx context.Context, opts ListOptions) ([]Contact, error) {
	if s.api == nil {
		return nil, errNotConfigured
	}
	opts.normalize()

	key := cacheKey(opts)
	if !opts.Refresh && s.cache != nil {
		if contacts, ok := s.cache.Get(ctx, key); ok {
			return contacts, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		contacts, err := s.fetchAll(ctx, opts)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Set(ctx, key, contacts)
		}
		return contacts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Contact), nil
}

// Board groups the contact set into ordered kanban columns.
func (s *Service) Board(ctx context.Context, opts ListOptions) ([]Column, error) {
	contacts, err := s.ListContacts(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s.groupColumns(contacts), nil
}

// ContactLabels returns the contact's current label set.
func (s *Service) ContactLabels(ctx context.Context, contactID string) ([]string, error) {
	if s.api == nil {
		return nil, errNotConfigured
	}
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return nil, apperr.BadRequest("contact id is required")
	}

	labels, err := s.api.ContactLabels(ctx, contactID)
	if err != nil {
		return nil, chatwoot.AsAppError("board.contact_labels", err)
	}
	if labels == nil {
		labels = []string{}
	}
	return labels, nil
}

// ContactConversations returns the contact's conversations with their label
// sets, filling in labels with a per-conversation fetch only when the list
// payload omitted them.
func (s *Service) ContactConversations(ctx context.Context, contactID string) ([]Conversation, error) {
	if s.api == nil {
		return nil, errNotConfigured
	}
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return nil, apperr.BadRequest("contact id is required")
	}

	raw, err := s.api.ContactConversations(ctx, contactID)
	if err != nil {
		return nil, chatwoot.AsAppError("board.contact_conversations", err)
	}

	conversations := make([]Conversation, 0, len(raw))
	for _, conv := range raw {
		id := conv.ID.String()
		if id == "" {
			continue
		}
		labels := conv.Labels
		if labels == nil {
			labels, err = s.api.ConversationLabels(ctx, id)
			if err != nil {
				return nil, chatwoot.AsAppError("board.conversation_labels", err)
			}
		}
		if labels == nil {
			labels = []string{}
		}
		conversations = append(conversations, Conversation{
			ID:             id,
			Status:         conv.Status,
			UpdatedAt:      conv.UpdatedAt.Unix(),
			LastActivityAt: conv.LastActivityAt.Unix(),
			Labels:         labels,
		})
	}
	return conversations, nil
}

// fetchAll runs the pagination loop. Explicit pagination metadata decides
// whether to continue when present; otherwise a short or empty page stops
// the loop. MaxPages is a hard ceiling either way.
func (s *Service) fetchAll(ctx context.Context, opts ListOptions) ([]Contact, error) {
	contacts := make([]Contact, 0, opts.PerPage)

	page := 1
	for fetched := 0; fetched < opts.MaxPages; fetched++ {
		pageData, err := s.api.ListContacts(ctx, page, opts.PerPage, opts.Query)
		if err != nil {
			return nil, chatwoot.AsAppError("board.list_contacts", err)
		}

		for _, raw := range pageData.Payload {
			if raw.ID.String() == "" {
				continue
			}
			contacts = append(contacts, projectContact(raw))
		}

		next := nextPage(page, len(pageData.Payload), opts.PerPage, pageData.Meta)
		if next <= page {
			break
		}
		page = next
	}

	return contacts, nil
}

// nextPage decides the next page to fetch, or returns current to stop.
func nextPage(current, got, perPage int, meta *chatwoot.PageMeta) int {
	if got == 0 {
		return current
	}

	if meta != nil {
		if np := meta.NextPage.IntOr(0); np > current {
			return np
		}
		if tot := meta.TotalPages.IntOr(0); tot > 0 {
			cur := meta.CurrentPage.IntOr(current)
			if cur >= tot {
				return current
			}
			return cur + 1
		}
		if meta.NextPage != "" || meta.TotalPages != "" {
			// Metadata present but exhausted (e.g. next_page null on the
			// last page).
			return current
		}
	}

	if got < perPage {
		return current
	}
	return current + 1
}

// projectContact flattens an upstream contact into the display projection.
func projectContact(raw chatwoot.RawContact) Contact {
	inboxes := make([]Inbox, 0, len(raw.ContactInboxes))
	for _, ci := range raw.ContactInboxes {
		if ci.SourceID == "" && ci.InboxID.String() == "" {
			continue
		}
		inboxes = append(inboxes, Inbox{SourceID: ci.SourceID, InboxID: ci.InboxID.String()})
	}

	attrs := raw.CustomAttributes
	if attrs == nil {
		attrs = map[string]interface{}{}
	}

	return Contact{
		ID:               raw.ID.String(),
		Name:             strings.TrimSpace(raw.Name),
		Identifier:       strings.TrimSpace(raw.Identifier),
		Email:            strings.TrimSpace(raw.Email),
		PhoneNumber:      phone.NormalizeE164(raw.PhoneNumber),
		ContactInboxes:   inboxes,
		CustomAttributes: attrs,
		UpdatedAt:        raw.UpdatedAt.Unix(),
		Stage:            stageOf(attrs),
	}
}

// stageOf resolves the displayed stage: the funnel custom attribute when
// non-empty, else the "Sem funil" sentinel.
func stageOf(attrs map[string]interface{}) string {
	switch value := attrs["funil_de_vendas"].(type) {
	case string:
		return slug.Display(value)
	case nil:
		return slug.DisplaySentinel
	default:
		return slug.Display(fmt.Sprintf("%v", value))
	}
}

// groupColumns builds the ordered column view: configured stages first, the
// remainder alphabetically, the no-funnel column last unless explicitly
// configured. Contacts within a column sort by name, then id.
func (s *Service) groupColumns(contacts []Contact) []Column {
	groups := make(map[string][]Contact)
	for _, contact := range contacts {
		groups[contact.Stage] = append(groups[contact.Stage], contact)
	}

	order := make([]string, 0, len(groups))
	seen := make(map[string]struct{}, len(groups))
	for _, stage := range s.stageOrder {
		if _, ok := groups[stage]; ok {
			if _, dup := seen[stage]; !dup {
				order = append(order, stage)
				seen[stage] = struct{}{}
			}
		}
	}

	rest := make([]string, 0, len(groups))
	for stage := range groups {
		if _, ok := seen[stage]; ok || stage == slug.DisplaySentinel {
			continue
		}
		rest = append(rest, stage)
	}
	sort.Strings(rest)
	order = append(order, rest...)

	if _, ok := groups[slug.DisplaySentinel]; ok {
		if _, configured := seen[slug.DisplaySentinel]; !configured {
			order = append(order, slug.DisplaySentinel)
		}
	}

	columns := make([]Column, 0, len(order))
	for _, stage := range order {
		members := groups[stage]
		sort.SliceStable(members, func(i, j int) bool {
			if members[i].Name != members[j].Name {
				return members[i].Name < members[j].Name
			}
			return members[i].ID < members[j].ID
		})
		columns = append(columns, Column{
			Stage:    stage,
			Slug:     slug.Make(stage),
			Count:    len(members),
			Contacts: members,
		})
	}
	return columns
}

func cacheKey(opts ListOptions) string {
	return fmt.Sprintf("board:contacts:q=%s:pp=%d:mp=%d", opts.Query, opts.PerPage, opts.MaxPages)
}
