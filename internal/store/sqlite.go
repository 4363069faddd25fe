package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// SQLite allows one writer at a time; funneling all access through a
	// single connection avoids SQLITE_BUSY under the evaluator's fan-out.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY,
        channel_id TEXT,
        channel_name TEXT,
        author_id TEXT,
        author_name TEXT,
        content TEXT,
        timestamp TEXT,
        timestamp_epoch INTEGER,
        reply_to TEXT,
        attachments_count INTEGER DEFAULT 0,
        reactions_count INTEGER DEFAULT 0,
        is_pinned INTEGER DEFAULT 0,
        export_date TEXT,
        safety_status TEXT DEFAULT 'pending',
        safety_score REAL,
        safety_flags TEXT
    );

    CREATE INDEX IF NOT EXISTS idx_author ON messages(author_name);
    CREATE INDEX IF NOT EXISTS idx_channel ON messages(channel_name);
    CREATE INDEX IF NOT EXISTS idx_timestamp ON messages(timestamp_epoch);
    CREATE INDEX IF NOT EXISTS idx_safety_status ON messages(safety_status);

    CREATE TABLE IF NOT EXISTS channels (
        id TEXT PRIMARY KEY,
        name TEXT,
        category TEXT,
        topic TEXT,
        message_count INTEGER,
        last_export TEXT
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// UpsertIfAbsent inserts a new message with safety_status 'pending'.
// A duplicate id is a silent no-op: the existing row, including any safety
// verdict already recorded on it, is left untouched. Returns whether a row
// was actually inserted.
func (s *SQLiteStore) UpsertIfAbsent(msg *Message) (bool, error) {
	res, err := s.db.Exec(`
        INSERT OR IGNORE INTO messages
        (id, channel_id, channel_name, author_id, author_name, content,
         timestamp, timestamp_epoch, reply_to, attachments_count,
         reactions_count, is_pinned, export_date, safety_status)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ChannelID, msg.ChannelName, msg.AuthorID, msg.AuthorName,
		msg.Content, msg.Timestamp, msg.TimestampEpoch, msg.ReplyTo,
		msg.AttachmentsCount, msg.ReactionsCount, boolToInt(msg.IsPinned),
		msg.ExportDate, string(StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert message %s: %w", msg.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpsertChannel records the channel descriptor from an export.
func (s *SQLiteStore) UpsertChannel(ch *Channel) error {
	_, err := s.db.Exec(`
        INSERT OR REPLACE INTO channels (id, name, category, topic, message_count, last_export)
        VALUES (?, ?, ?, ?, ?, ?)`,
		ch.ID, ch.Name, ch.Category, ch.Topic, ch.MessageCount, ch.LastExport,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert channel %s: %w", ch.ID, err)
	}
	return nil
}

// SelectByStatus returns all messages with the given safety status, in a
// stable order (timestamp_epoch, then id). Callers must not assume any
// ordering beyond stability for a given store state.
func (s *SQLiteStore) SelectByStatus(status Status) ([]Message, error) {
	rows, err := s.db.Query(`
        SELECT `+messageColumns+`
        FROM messages
        WHERE safety_status = ?
        ORDER BY timestamp_epoch ASC, id ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query messages by status: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// UpdateStatusFrom transitions a message's safety status with a per-row
// compare-and-set: the update applies only if the row still holds the
// expected current status. Returns false when the row is missing or has
// already transitioned; that is a miss, not an error.
func (s *SQLiteStore) UpdateStatusFrom(id string, from, to Status, score *float64, flags *string) (bool, error) {
	res, err := s.db.Exec(`
        UPDATE messages
        SET safety_status = ?, safety_score = ?, safety_flags = ?
        WHERE id = ? AND safety_status = ?`,
		string(to), score, flags, id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update status for message %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// ResetStatus is the administrative escape hatch: it moves every message
// currently in the given status back to pending and clears the recorded
// verdict, making them eligible for re-evaluation on the next run.
func (s *SQLiteStore) ResetStatus(from Status) (int64, error) {
	if from == StatusPending {
		return 0, fmt.Errorf("cannot reset from pending")
	}
	res, err := s.db.Exec(`
        UPDATE messages
        SET safety_status = ?, safety_score = NULL, safety_flags = NULL
        WHERE safety_status = ?`,
		string(StatusPending), string(from),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset status %s: %w", from, err)
	}
	return res.RowsAffected()
}

// SafeMessages returns messages eligible for publishing: verified safe with
// content at least minContentLen characters long. Empty content is always
// excluded regardless of status.
func (s *SQLiteStore) SafeMessages(minContentLen int) ([]Message, error) {
	if minContentLen < 1 {
		minContentLen = 1
	}
	rows, err := s.db.Query(`
        SELECT `+messageColumns+`
        FROM messages
        WHERE safety_status = ?
          AND content IS NOT NULL
          AND LENGTH(content) >= ?
        ORDER BY timestamp_epoch ASC, id ASC`,
		string(StatusSafe), minContentLen)
	if err != nil {
		return nil, fmt.Errorf("failed to query safe messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// SafeMessagesFiltered is the read-only query surface for the downstream
// agent: safe records only, optionally narrowed by channel or author name.
func (s *SQLiteStore) SafeMessagesFiltered(channel, author string, limit int) ([]Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
        SELECT ` + messageColumns + `
        FROM messages
        WHERE safety_status = ? AND content IS NOT NULL AND LENGTH(content) > 0`
	args := []any{string(StatusSafe)}
	if channel != "" {
		query += " AND channel_name = ?"
		args = append(args, channel)
	}
	if author != "" {
		query += " AND author_name = ?"
		args = append(args, author)
	}
	query += " ORDER BY timestamp_epoch DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query safe messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// CountByStatus returns a status -> row count map for run reports.
func (s *SQLiteStore) CountByStatus() (map[Status]int, error) {
	rows, err := s.db.Query(`SELECT safety_status, COUNT(*) FROM messages GROUP BY safety_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

// GetMessage fetches a single message by id; (nil, nil) when absent.
func (s *SQLiteStore) GetMessage(id string) (*Message, error) {
	row := s.db.QueryRow(`
        SELECT `+messageColumns+`
        FROM messages WHERE id = ?`, id)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return msg, nil
}

// PingContext exposes a liveness check for the API health endpoint.
func (s *SQLiteStore) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const messageColumns = `id, channel_id, channel_name, author_id, author_name, content,
         timestamp, timestamp_epoch, reply_to, attachments_count,
         reactions_count, is_pinned, export_date, safety_status, safety_score, safety_flags`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var msg Message
	var replyTo sql.NullString
	var score sql.NullFloat64
	var flags sql.NullString
	var pinned int

	err := row.Scan(
		&msg.ID, &msg.ChannelID, &msg.ChannelName, &msg.AuthorID, &msg.AuthorName,
		&msg.Content, &msg.Timestamp, &msg.TimestampEpoch, &replyTo,
		&msg.AttachmentsCount, &msg.ReactionsCount, &pinned, &msg.ExportDate,
		&msg.SafetyStatus, &score, &flags,
	)
	if err != nil {
		return nil, err
	}

	msg.IsPinned = pinned != 0
	if replyTo.Valid {
		msg.ReplyTo = &replyTo.String
	}
	if score.Valid {
		msg.SafetyScore = &score.Float64
	}
	if flags.Valid {
		msg.SafetyFlags = &flags.String
	}
	return &msg, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
