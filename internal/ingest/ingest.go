package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"intel.gg/discord-intel/internal/store"
)

// Report summarizes one ingestion run.
type Report struct {
	Files      int
	Inserted   int
	Duplicates int
	Skipped    int
}

// Ingester loads channel export files into the record store.
type Ingester struct {
	store  *store.SQLiteStore
	logger *zap.Logger
}

func NewIngester(st *store.SQLiteStore, logger *zap.Logger) *Ingester {
	return &Ingester{store: st, logger: logger}
}

// LoadDir ingests every .json export in dir. A file that cannot be read or
// parsed is skipped with a warning; it never aborts the run.
func (i *Ingester) LoadDir(dir string) (*Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read export directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	exportDate := time.Now().Format("2006-01-02 15:04:05")
	report := &Report{}
	for _, path := range files {
		fr, err := i.LoadFile(path, exportDate)
		if err != nil {
			i.logger.Warn("skipping export file",
				zap.String("file", path),
				zap.Error(err))
			continue
		}
		report.Files++
		report.Inserted += fr.Inserted
		report.Duplicates += fr.Duplicates
		report.Skipped += fr.Skipped
	}

	i.logger.Info("ingestion complete",
		zap.Int("files", report.Files),
		zap.Int("inserted", report.Inserted),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

// LoadFile ingests a single channel export. Malformed individual messages
// are counted as skipped and do not abort the file.
func (i *Ingester) LoadFile(path, exportDate string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export file: %w", err)
	}

	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse export file: %w", err)
	}

	channelName := export.Channel.Name
	if channelName == "" {
		base := filepath.Base(path)
		channelName = base[:len(base)-len(filepath.Ext(base))]
	}

	report := &Report{Files: 1}
	for _, em := range export.Messages {
		if em.ID == "" {
			report.Skipped++
			i.logger.Debug("skipping message without id", zap.String("file", path))
			continue
		}

		msg := messageFromExport(em, export.Channel.ID, channelName, exportDate)
		inserted, err := i.store.UpsertIfAbsent(msg)
		if err != nil {
			report.Skipped++
			i.logger.Warn("failed to insert message",
				zap.String("message_id", em.ID),
				zap.Error(err))
			continue
		}
		if inserted {
			report.Inserted++
		} else {
			report.Duplicates++
		}
	}

	if err := i.store.UpsertChannel(&store.Channel{
		ID:           export.Channel.ID,
		Name:         channelName,
		Category:     export.Channel.Category,
		Topic:        export.Channel.Topic,
		MessageCount: len(export.Messages),
		LastExport:   exportDate,
	}); err != nil {
		i.logger.Warn("failed to record channel descriptor",
			zap.String("channel", channelName),
			zap.Error(err))
	}

	return report, nil
}

func messageFromExport(em ExportMessage, channelID, channelName, exportDate string) *store.Message {
	var replyTo *string
	if em.Reference != nil && em.Reference.MessageID != "" {
		id := em.Reference.MessageID
		replyTo = &id
	}

	reactions := 0
	for _, r := range em.Reactions {
		reactions += r.Count
	}

	return &store.Message{
		ID:               em.ID,
		ChannelID:        channelID,
		ChannelName:      channelName,
		AuthorID:         em.Author.ID,
		AuthorName:       em.Author.Name,
		Content:          em.Content,
		Timestamp:        em.Timestamp,
		TimestampEpoch:   parseTimestamp(em.Timestamp),
		ReplyTo:          replyTo,
		AttachmentsCount: len(em.Attachments),
		ReactionsCount:   reactions,
		IsPinned:         em.IsPinned,
		ExportDate:       exportDate,
	}
}
