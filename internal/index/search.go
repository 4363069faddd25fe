package index

import (
	"context"
	"fmt"
	"strings"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// Result is one search hit: an indexed record and its similarity to the
// query, where 1 is identical and 0 is orthogonal.
type Result struct {
	MessageID  string  `json:"message_id"`
	Channel    string  `json:"channel"`
	Author     string  `json:"author"`
	Content    string  `json:"content"`
	Timestamp  string  `json:"timestamp"`
	Similarity float64 `json:"similarity"`
}

// Filters optionally narrow search hits by exact channel or author name.
type Filters struct {
	Channel string
	Author  string
}

// Search embeds the query and returns up to limit results, nearest first.
func (p *Publisher) Search(ctx context.Context, query string, limit int, filters Filters) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if limit <= 0 {
		limit = 10
	}

	queryVec, err := p.embedder.GetEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	blob, err := vec.SerializeFloat32(queryVec)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize query embedding: %w", err)
	}

	// vec0 knn queries cannot pre-filter on metadata, so over-fetch and
	// filter in Go when channel/author filters are present.
	k := limit
	if filters.Channel != "" || filters.Author != "" {
		k = limit * 4
	}

	rows, err := p.db.QueryContext(ctx, `
        SELECT m.message_id, m.channel, m.author, m.content, m.timestamp, v.distance
        FROM message_vectors v
        JOIN indexed_messages m ON m.rowid = v.rowid
        WHERE v.embedding MATCH ? AND k = ?
        ORDER BY v.distance`,
		blob, k)
	if err != nil {
		return nil, fmt.Errorf("index search failed (has the index been published?): %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var distance float64
		if err := rows.Scan(&r.MessageID, &r.Channel, &r.Author, &r.Content, &r.Timestamp, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		if filters.Channel != "" && r.Channel != filters.Channel {
			continue
		}
		if filters.Author != "" && r.Author != filters.Author {
			continue
		}
		r.Similarity = 1 - distance
		results = append(results, r)
		if len(results) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search row iteration failed: %w", err)
	}
	return results, nil
}

// Count returns the number of indexed records, or zero when the index has
// never been published.
func (p *Publisher) Count(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM indexed_messages`).Scan(&n)
	if err != nil {
		// An unpublished index has no tables yet.
		if strings.Contains(err.Error(), "no such table") {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count indexed messages: %w", err)
	}
	return n, nil
}
