// Package index publishes verified-safe messages to a sqlite-vec index and
// serves nearest-neighbor search over it. The index is derived data: every
// publish is a full rebuild from the record store, never an incremental
// upsert, so a half-written index can always be regenerated.
package index

import (
	"context"
	"database/sql"
	"fmt"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"go.uber.org/zap"

	"intel.gg/discord-intel/internal/core"
	"intel.gg/discord-intel/internal/store"
)

// Publisher rebuilds and queries the vector index. The index lives in its
// own database file; a publish failure never touches the record store.
type Publisher struct {
	db       *sql.DB
	embedder core.Embedder
	logger   *zap.Logger
}

func NewPublisher(indexPath string, embedder core.Embedder, logger *zap.Logger) (*Publisher, error) {
	db, err := sql.Open("sqlite3", indexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping index database: %w", err)
	}
	return &Publisher{db: db, embedder: embedder, logger: logger}, nil
}

func (p *Publisher) Close() error {
	return p.db.Close()
}

// Publish selects all safe messages with content of at least minContentLen
// characters, embeds them, and replaces the index contents wholesale.
// Messages without content are excluded, never zero-vector-embedded. Any
// embedding or write failure aborts the publish and rolls back, leaving the
// previous index intact.
func (p *Publisher) Publish(ctx context.Context, st *store.SQLiteStore, minContentLen int) (int, error) {
	messages, err := st.SafeMessages(minContentLen)
	if err != nil {
		return 0, fmt.Errorf("failed to select safe messages: %w", err)
	}
	if len(messages) == 0 {
		p.logger.Info("no safe messages to index")
		return 0, p.clear(ctx)
	}

	type embedded struct {
		msg    store.Message
		vector []byte
	}
	records := make([]embedded, 0, len(messages))
	var dim int
	for i := range messages {
		msg := &messages[i]
		vector, err := p.embedder.GetEmbedding(ctx, msg.Content)
		if err != nil {
			return 0, fmt.Errorf("failed to embed message %s: %w", msg.ID, err)
		}
		if dim == 0 {
			dim = len(vector)
		} else if len(vector) != dim {
			return 0, fmt.Errorf("embedding dimension changed mid-publish: %d vs %d", len(vector), dim)
		}
		blob, err := vec.SerializeFloat32(vector)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize embedding for %s: %w", msg.ID, err)
		}
		records = append(records, embedded{msg: *msg, vector: blob})
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin index transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DROP TABLE IF EXISTS message_vectors`,
		`DROP TABLE IF EXISTS indexed_messages`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE message_vectors USING vec0(embedding float[%d] distance_metric=cosine)`, dim),
		`CREATE TABLE indexed_messages (
            rowid INTEGER PRIMARY KEY,
            message_id TEXT NOT NULL,
            channel TEXT,
            author TEXT,
            content TEXT NOT NULL,
            timestamp TEXT
        )`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("failed to rebuild index schema: %w", err)
		}
	}

	for i, rec := range records {
		rowid := int64(i + 1)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_vectors (rowid, embedding) VALUES (?, ?)`,
			rowid, rec.vector,
		); err != nil {
			return 0, fmt.Errorf("failed to insert vector for %s: %w", rec.msg.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO indexed_messages (rowid, message_id, channel, author, content, timestamp)
             VALUES (?, ?, ?, ?, ?, ?)`,
			rowid, rec.msg.ID, rec.msg.ChannelName, rec.msg.AuthorName, rec.msg.Content, rec.msg.Timestamp,
		); err != nil {
			return 0, fmt.Errorf("failed to insert metadata for %s: %w", rec.msg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit index rebuild: %w", err)
	}

	p.logger.Info("index published",
		zap.Int("messages", len(records)),
		zap.Int("dimension", dim))
	return len(records), nil
}

func (p *Publisher) clear(ctx context.Context) error {
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS message_vectors`,
		`DROP TABLE IF EXISTS indexed_messages`,
	} {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear index: %w", err)
		}
	}
	return nil
}
