package chatwoot

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// FlexID is an identifier that the upstream may send as a JSON number or
// string. It always renders as a string on our side.
type FlexID string

// UnmarshalJSON accepts numbers, strings, and null.
func (f *FlexID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*f = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// String returns the identifier as a string.
func (f FlexID) String() string { return string(f) }

// FlexTime is a timestamp the upstream may send as unix seconds (number or
// numeric string) or as an RFC 3339 string. Zero means absent or unparsable.
type FlexTime float64

// UnmarshalJSON accepts numbers, numeric strings, RFC 3339 strings, and null.
// Unparsable values decode to zero rather than failing the whole payload.
func (f *FlexTime) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*f = 0
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			*f = 0
			return nil
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			*f = FlexTime(v)
			return nil
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			*f = FlexTime(t.Unix())
			return nil
		}
		*f = 0
		return nil
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		*f = 0
		return nil
	}
	*f = FlexTime(v)
	return nil
}

// Unix returns the timestamp as unix seconds.
func (f FlexTime) Unix() float64 { return float64(f) }

// RawContactInbox associates a contact with an inbox source.
type RawContactInbox struct {
	SourceID string `json:"source_id"`
	InboxID  FlexID `json:"inbox_id"`
}

// RawContact is the upstream contact schema, reduced to the fields this
// application consumes.
type RawContact struct {
	ID               FlexID                 `json:"id"`
	Name             string                 `json:"name"`
	Identifier       string                 `json:"identifier"`
	Email            string                 `json:"email"`
	PhoneNumber      string                 `json:"phone_number"`
	ContactInboxes   []RawContactInbox      `json:"contact_inboxes"`
	CustomAttributes map[string]interface{} `json:"custom_attributes"`
	UpdatedAt        FlexTime               `json:"updated_at"`
}

// RawConversation is the upstream conversation schema, reduced to the fields
// the conversation selector consumes.
type RawConversation struct {
	ID             FlexID   `json:"id"`
	Status         string   `json:"status"`
	UpdatedAt      FlexTime `json:"updated_at"`
	LastActivityAt FlexTime `json:"last_activity_at"`
	Labels         []string `json:"labels"`
}

// Recency returns the most recent activity timestamp of the conversation.
func (c RawConversation) Recency() float64 {
	if c.LastActivityAt > c.UpdatedAt {
		return c.LastActivityAt.Unix()
	}
	return c.UpdatedAt.Unix()
}

// PageMeta is the pagination metadata some list endpoints return.
type PageMeta struct {
	CurrentPage FlexID `json:"current_page"`
	TotalPages  FlexID `json:"total_pages"`
	NextPage    FlexID `json:"next_page"`
}

// IntOr parses a FlexID as an integer, returning fallback when absent or
// not numeric.
func (f FlexID) IntOr(fallback int) int {
	if f == "" {
		return fallback
	}
	v, err := strconv.Atoi(string(f))
	if err != nil {
		return fallback
	}
	return v
}

// ContactsPage is one page of the list contacts endpoint.
type ContactsPage struct {
	Payload []RawContact `json:"payload"`
	Meta    *PageMeta    `json:"meta"`
}

// labelsPayload is the envelope of the label endpoints.
type labelsPayload struct {
	Payload []string `json:"payload"`
}

// conversationsPayload is the envelope of the contact conversations endpoint.
type conversationsPayload struct {
	Payload []RawConversation `json:"payload"`
}
