package ingest

import "time"

// Export is one channel's export artifact: a channel descriptor plus the
// channel's message objects.
type Export struct {
	Channel  ExportChannel   `json:"channel"`
	Messages []ExportMessage `json:"messages"`
}

type ExportChannel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Topic    string `json:"topic"`
}

type ExportMessage struct {
	ID          string           `json:"id"`
	Author      ExportAuthor     `json:"author"`
	Content     string           `json:"content"`
	Timestamp   string           `json:"timestamp"`
	Reference   *ExportReference `json:"reference"`
	Attachments []map[string]any `json:"attachments"`
	Reactions   []ExportReaction `json:"reactions"`
	IsPinned    bool             `json:"isPinned"`
}

type ExportAuthor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ExportReference struct {
	MessageID string `json:"messageId"`
}

type ExportReaction struct {
	Count int `json:"count"`
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
}

// parseTimestamp converts an export timestamp to its numeric-epoch form.
// The display string is always preserved as-is; an unparseable value yields
// epoch 0 rather than an error.
func parseTimestamp(ts string) int64 {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.Unix()
		}
	}
	return 0
}
