package store

// Status tracks a message's progress through the screening pipeline.
// Every status other than StatusPending is terminal; moving a record back to
// pending requires an explicit administrative reset.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRegexFlag  Status = "regex_flagged"
	StatusFlagged    Status = "flagged"
	StatusSafe       Status = "safe"
	StatusUnverified Status = "unverified"
)

// Terminal reports whether a status is final within normal pipeline flow.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// Valid reports whether s is one of the known pipeline statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRegexFlag, StatusFlagged, StatusSafe, StatusUnverified:
		return true
	}
	return false
}

type Message struct {
	ID               string   `json:"id"`
	ChannelID        string   `json:"channel_id"`
	ChannelName      string   `json:"channel_name"`
	AuthorID         string   `json:"author_id"`
	AuthorName       string   `json:"author_name"`
	Content          string   `json:"content"`
	Timestamp        string   `json:"timestamp"`
	TimestampEpoch   int64    `json:"timestamp_epoch"`
	ReplyTo          *string  `json:"reply_to,omitempty"`
	AttachmentsCount int      `json:"attachments_count"`
	ReactionsCount   int      `json:"reactions_count"`
	IsPinned         bool     `json:"is_pinned"`
	ExportDate       string   `json:"export_date"`
	SafetyStatus     Status   `json:"safety_status"`
	SafetyScore      *float64 `json:"safety_score,omitempty"`
	SafetyFlags      *string  `json:"safety_flags,omitempty"`
}

type Channel struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Topic        string `json:"topic"`
	MessageCount int    `json:"message_count"`
	LastExport   string `json:"last_export"`
}
