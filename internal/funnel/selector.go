package funnel

import (
	"sort"
	"strings"

	"funnelboard_backend/internal/chatwoot"
)

// maxOpenConversations bounds how many conversations one move labels.
// Older open threads may be missed; the funnel label is a soft
// classification tag, so bounded latency wins.
const maxOpenConversations = 5

// SelectConversations picks which of a contact's conversations receive the
// stage label. Open conversations (status set and not "resolved") win, most
// recent first, capped at maxOpenConversations. With no open conversation,
// the single most recent one is chosen. Ids are deduplicated; a contact with
// zero conversations selects nothing.
func SelectConversations(conversations []chatwoot.RawConversation) []string {
	open := make([]chatwoot.RawConversation, 0, len(conversations))
	for _, conv := range conversations {
		status := strings.ToLower(strings.TrimSpace(conv.Status))
		if status != "" && status != "resolved" {
			open = append(open, conv)
		}
	}

	if len(open) > 0 {
		sort.SliceStable(open, func(i, j int) bool {
			return open[i].Recency() > open[j].Recency()
		})
		return dedupeIDs(open, maxOpenConversations)
	}

	var newest *chatwoot.RawConversation
	for i := range conversations {
		if conversations[i].ID.String() == "" {
			continue
		}
		if newest == nil || conversations[i].Recency() > newest.Recency() {
			newest = &conversations[i]
		}
	}
	if newest == nil {
		return nil
	}
	return []string{newest.ID.String()}
}

func dedupeIDs(conversations []chatwoot.RawConversation, limit int) []string {
	ids := make([]string, 0, limit)
	seen := make(map[string]struct{}, limit)
	for _, conv := range conversations {
		id := conv.ID.String()
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		if len(ids) == limit {
			break
		}
	}
	return ids
}
