package redis

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const documentKeyPrefix = "document:"

// DocumentStore keeps guild documents as plain string keys. It implements document.Store.
type DocumentStore struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewDocumentStore creates a store on top of an existing client.
func NewDocumentStore(client rueidis.Client, logger *zap.Logger) *DocumentStore {
	return &DocumentStore{
		client: client,
		logger: logger.Named("redis_document"),
	}
}

// documentKey builds the key for one guild document.
func documentKey(guildID snowflake.ID, name string) string {
	return fmt.Sprintf("%s%d:%s", documentKeyPrefix, guildID, name)
}

// Get returns the raw document, or nil when the guild has none.
func (s *DocumentStore) Get(ctx context.Context, guildID snowflake.ID, name string) ([]byte, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(documentKey(guildID, name)).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return data, nil
}

// Set replaces the document.
func (s *DocumentStore) Set(ctx context.Context, guildID snowflake.ID, name string, data []byte) error {
	cmd := s.client.B().Set().Key(documentKey(guildID, name)).Value(rueidis.BinaryString(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to set document: %w", err)
	}

	s.logger.Debug("Stored guild document",
		zap.Uint64("guildID", uint64(guildID)),
		zap.String("name", name),
		zap.Int("bytes", len(data)))

	return nil
}

// Guilds returns the ids of every guild that has the named document, in ascending order.
func (s *DocumentStore) Guilds(ctx context.Context, name string) ([]snowflake.ID, error) {
	var (
		guilds []snowflake.ID
		cursor uint64
	)

	suffix := ":" + name
	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match(documentKeyPrefix + "*" + suffix).Count(100).Build()

		entry, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("failed to scan documents: %w", err)
		}

		for _, key := range entry.Elements {
			raw := strings.TrimSuffix(strings.TrimPrefix(key, documentKeyPrefix), suffix)

			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				s.logger.Warn("Skipping malformed document key", zap.String("key", key))
				continue
			}
			guilds = append(guilds, snowflake.ID(id))
		}

		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}

	slices.Sort(guilds)

	return slices.Compact(guilds), nil
}
